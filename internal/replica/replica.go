// Package replica はクライアント側レプリカ（組み込みデータベース）の
// 初期化とスキーマ同期を提供する。
//
// レプリカはサーバーが配信する正規スキーマ（schema.get）に追従する。
// ローカルに保存したスキーマハッシュと配信ハッシュが一致すれば何もせず、
// 不一致の場合は全テーブルを破棄してスキーマを適用し直す（破壊的再構築）。
// ローカルデータはサーバーから再取得できるキャッシュとして扱う。
package replica

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SchemaBundle は配信されたスキーマとそのハッシュの組。
type SchemaBundle struct {
	Schema string `json:"schema"`
	Hash   string `json:"hash"`
}

// SchemaFetcher はサーバーから正規スキーマを取得するインターフェース。
type SchemaFetcher interface {
	FetchSchema(ctx context.Context) (*SchemaBundle, error)
}

// HTTPSchemaFetcher はschema.get RPCからスキーマを取得する実装。
type HTTPSchemaFetcher struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSchemaFetcher はHTTPSchemaFetcherを生成する。
// baseURLはサーバーのオリジン（例: "http://localhost:8080"）。
func NewHTTPSchemaFetcher(baseURL string) *HTTPSchemaFetcher {
	return &HTTPSchemaFetcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchSchema はschema.get RPCを呼び出しスキーマとハッシュを取得する。
func (f *HTTPSchemaFetcher) FetchSchema(ctx context.Context) (*SchemaBundle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/api/rpc/schema.get", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("schema request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("schema fetch failed with status %d", resp.StatusCode)
	}

	var bundle SchemaBundle
	if err := json.NewDecoder(resp.Body).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("failed to parse schema response: %w", err)
	}
	if bundle.Schema == "" || bundle.Hash == "" {
		return nil, fmt.Errorf("empty schema or hash in response")
	}

	return &bundle, nil
}

// compile-time interface check
var _ SchemaFetcher = (*HTTPSchemaFetcher)(nil)

// Manager はレプリカのライフサイクルを管理する。
// DB()は何度呼んでも初期化は1回だけ実行され、並行呼び出しは
// 進行中の初期化を待ち合わせる。初期化失敗後の呼び出しは再試行する。
type Manager struct {
	path    string // レプリカDBファイルのパス
	fetcher SchemaFetcher

	mu sync.Mutex
	db *sql.DB
}

// NewManager はManagerを生成する。
func NewManager(path string, fetcher SchemaFetcher) *Manager {
	return &Manager{path: path, fetcher: fetcher}
}

// hashPath はスキーマハッシュを保存するサイドファイルのパス。
func (m *Manager) hashPath() string {
	return m.path + ".schema-hash"
}

// DB は初期化済みのレプリカDBを返す。未初期化の場合はスキーマ同期を
// 含めて初期化する。並行呼び出しは同一の初期化を共有する。
func (m *Manager) DB(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db != nil {
		return m.db, nil
	}

	db, err := m.initialize(ctx)
	if err != nil {
		return nil, err
	}

	m.db = db
	return m.db, nil
}

// Close はレプリカDBを閉じる。未初期化の場合は何もしない。
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

// initialize はDBを開き、配信スキーマとの同期を行う。
func (m *Manager) initialize(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", m.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replica: %w", err)
	}

	if err := m.syncSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// syncSchema は保存済みハッシュと配信ハッシュを比較し、
// 不一致の場合のみ破壊的再構築を行う。
func (m *Manager) syncSchema(ctx context.Context, db *sql.DB) error {
	bundle, err := m.fetcher.FetchSchema(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch schema: %w", err)
	}

	storedHash := m.readStoredHash()
	if storedHash == bundle.Hash {
		slog.Info("replica schema is up to date", slog.String("hash", bundle.Hash))
		return nil
	}

	slog.Info("replica schema mismatch, rebuilding",
		slog.String("stored_hash", storedHash),
		slog.String("new_hash", bundle.Hash),
	)

	if err := applySchema(ctx, db, bundle.Schema); err != nil {
		return err
	}

	if err := m.writeStoredHash(bundle.Hash); err != nil {
		return fmt.Errorf("failed to store schema hash: %w", err)
	}

	slog.Info("replica schema applied", slog.String("hash", bundle.Hash))
	return nil
}

// applySchema は既存の全テーブルを破棄して新スキーマを適用する。
func applySchema(ctx context.Context, db *sql.DB, schemaSQL string) error {
	// 外部キー制約があると削除順序に依存するため一時的に無効化する
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return fmt.Errorf("failed to list tables: %w", err)
	}

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return fmt.Errorf("failed to iterate tables: %w", err)
	}
	rows.Close()

	for _, table := range tables {
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS "`+table+`"`); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return nil
}

// readStoredHash は保存済みスキーマハッシュを読む。未保存なら空文字。
func (m *Manager) readStoredHash() string {
	data, err := os.ReadFile(m.hashPath())
	if err != nil {
		return ""
	}
	return string(data)
}

// writeStoredHash はスキーマハッシュをサイドファイルに保存する。
func (m *Manager) writeStoredHash(hash string) error {
	return os.WriteFile(m.hashPath(), []byte(hash), 0o644)
}
