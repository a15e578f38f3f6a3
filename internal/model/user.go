// Package model はドメインモデルを定義する。
package model

import "time"

// User はGoogleアカウントで認証されたサービス利用ユーザーを表す。
// google_idとemailはそれぞれ一意であり、初回ログイン時に作成される。
// このサブシステムがユーザーを削除することはない。
type User struct {
	ID        string
	GoogleID  string
	Email     string
	Name      string // 未設定の場合は空文字列
	AvatarURL string // 未設定の場合は空文字列
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はサーバー側に永続化されたログインセッションを表す。
// Tokenは高エントロピーの不透明トークンで、レコードごとに一意。
// expires_atを過ぎたセッションは存在しないものとして扱う（遅延失効）。
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClientMeta はセッション作成時に記録するクライアント情報を表す。
type ClientMeta struct {
	IPAddress string
	UserAgent string
}
