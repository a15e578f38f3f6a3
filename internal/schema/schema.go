// Package schema はクライアント側レプリカの正規スキーマを提供する。
//
// サーバー本体のPostgreSQLスキーマとは別に、組み込みデータベース
// （レプリカ）に適用できる可搬なSQLサブセットで定義する。
// スキーマとそのSHA-256ハッシュはschema.get RPCで配信され、
// クライアントはハッシュの変化でスキーマ更新を検知する。
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SQL はレプリカに適用する正規スキーマ。
// 変更は破壊的再構築を引き起こすため、互換性のない変更は慎重に行うこと。
const SQL = `
-- Tables
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    google_id TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    name TEXT,
    avatar_url TEXT,
    created_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
    updated_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);

CREATE TABLE drives (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
    updated_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);

CREATE TABLE folders (
    id TEXT PRIMARY KEY,
    drive_id TEXT NOT NULL REFERENCES drives(id) ON DELETE CASCADE,
    parent_folder_id TEXT REFERENCES folders(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    created_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
    updated_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
    UNIQUE (drive_id, parent_folder_id, name)
);

CREATE TABLE files (
    id TEXT PRIMARY KEY,
    drive_id TEXT NOT NULL REFERENCES drives(id) ON DELETE CASCADE,
    folder_id TEXT REFERENCES folders(id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    mime_type TEXT,
    current_version_id TEXT,
    created_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
    updated_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
    UNIQUE (drive_id, folder_id, name)
);

CREATE TABLE file_versions (
    id TEXT PRIMARY KEY,
    file_id TEXT NOT NULL REFERENCES files(id) ON DELETE CASCADE,
    version_number INTEGER NOT NULL,
    size_bytes INTEGER NOT NULL,
    storage_key TEXT NOT NULL,
    storage_provider TEXT NOT NULL DEFAULT 's3-glacier',
    storage_region TEXT,
    checksum TEXT,
    uploaded_by TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
    created_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
    UNIQUE (file_id, version_number)
);

CREATE TABLE drive_shares (
    id TEXT PRIMARY KEY,
    drive_id TEXT NOT NULL REFERENCES drives(id) ON DELETE CASCADE,
    shared_with_user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    permission TEXT NOT NULL CHECK (permission IN ('read', 'write', 'admin')),
    shared_by TEXT NOT NULL REFERENCES users(id) ON DELETE RESTRICT,
    created_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
    UNIQUE (drive_id, shared_with_user_id)
);

-- Indexes
CREATE INDEX users_google_id_idx ON users (google_id);
CREATE INDEX users_email_idx ON users (email);
CREATE INDEX drives_user_id_idx ON drives (user_id);
CREATE INDEX folders_drive_id_idx ON folders (drive_id);
CREATE INDEX folders_parent_folder_id_idx ON folders (parent_folder_id);
CREATE INDEX files_drive_id_idx ON files (drive_id);
CREATE INDEX files_folder_id_idx ON files (folder_id);
CREATE INDEX file_versions_file_id_idx ON file_versions (file_id);
CREATE INDEX file_versions_storage_key_idx ON file_versions (storage_key);
CREATE INDEX file_versions_uploaded_by_idx ON file_versions (uploaded_by);
CREATE INDEX drive_shares_drive_id_idx ON drive_shares (drive_id);
CREATE INDEX drive_shares_shared_by_idx ON drive_shares (shared_by);
CREATE INDEX drive_shares_shared_with_user_id_idx ON drive_shares (shared_with_user_id);
`

// Canonical は前後の空白を除去した正規形のスキーマを返す。
// ハッシュ計算と配信には必ずこの正規形を使用する。
func Canonical() string {
	return strings.TrimSpace(SQL)
}

// Hash は正規形スキーマのSHA-256ハッシュを16進文字列で返す。
func Hash() string {
	sum := sha256.Sum256([]byte(Canonical()))
	return hex.EncodeToString(sum[:])
}
