// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/crvouga/colddrive/internal/model"
)

// UserRepository はユーザーディレクトリの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// Upsert は外部IdPの識別情報からユーザーを検索または作成する。
	// 照合はgoogle_id優先、次にemailで行い、どちらにも一致しなければ新規作成する。
	// google_id一致時はプロフィール（name/avatar_url）のみ更新し、emailは書き換えない。
	// email一致時はgoogle_idを紐付け直し、reboundとしてtrueを返す。
	// name、avatarURLがnilの場合は既存の値を維持する。
	Upsert(ctx context.Context, googleID, email string, name, avatarURL *string) (user *model.User, rebound bool, err error)
}

// SessionRepository はセッションレコードの永続化インターフェース。
// セッションの失効判定の正はこのストアが持つ（資格情報の期限とは独立）。
type SessionRepository interface {
	// Create はセッションレコードを作成する。
	// session_tokenが既存レコードと衝突した場合はmodel.ErrSessionTokenConflictを返す。
	Create(ctx context.Context, session *model.Session) error

	// FindValidByToken は不透明トークンで有効な（期限内の）セッションを検索する。
	// 見つからない場合、または期限切れの場合はnilを返す。
	FindValidByToken(ctx context.Context, sessionToken string) (*model.Session, error)

	// DeleteByToken は指定トークンのセッションを削除する。
	// 存在しないトークンに対してもエラーを返さない（冪等）。
	DeleteByToken(ctx context.Context, sessionToken string) error

	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	// google_idの紐付け直し時に旧連携下のセッションを失効させるために使う。
	DeleteByUserID(ctx context.Context, userID string) error

	// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
