package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/crvouga/colddrive/internal/model"
)

// uniqueViolation はPostgreSQLの一意制約違反エラーコード。
const uniqueViolation = "23505"

// PostgresSessionRepo はPostgreSQLを使用したセッションリポジトリ。
type PostgresSessionRepo struct {
	db *sql.DB
}

// NewPostgresSessionRepo はPostgresSessionRepoを生成する。
func NewPostgresSessionRepo(db *sql.DB) *PostgresSessionRepo {
	return &PostgresSessionRepo{db: db}
}

// Create はセッションレコードを作成する。
// session_tokenが既存レコードと衝突した場合はmodel.ErrSessionTokenConflictを返す。
func (r *PostgresSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_sessions (id, user_id, session_token, expires_at, ip_address, user_agent, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $7)`,
		session.ID, session.UserID, session.Token, session.ExpiresAt,
		session.IPAddress, session.UserAgent, session.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return model.ErrSessionTokenConflict
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// sessionFindValidQuery は期限内のセッションだけに一致する。
// 期限切れ判定はストア側のexpires_atが正。
const sessionFindValidQuery = `SELECT id, user_id, session_token, expires_at,
	        COALESCE(ip_address, ''), COALESCE(user_agent, ''), created_at, updated_at
	 FROM user_sessions
	 WHERE session_token = $1 AND expires_at > now()`

// FindValidByToken は不透明トークンで有効な（期限内の）セッションを検索する。
// 見つからない場合、または期限切れの場合はnilを返す。
// 期限切れレコードの物理削除はスイープワーカーに任せる。
func (r *PostgresSessionRepo) FindValidByToken(ctx context.Context, sessionToken string) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		sessionFindValidQuery,
		sessionToken,
	).Scan(&session.ID, &session.UserID, &session.Token, &session.ExpiresAt,
		&session.IPAddress, &session.UserAgent, &session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// DeleteByToken は指定トークンのセッションを削除する。
// 存在しないトークンに対してもエラーを返さない（冪等）。
func (r *PostgresSessionRepo) DeleteByToken(ctx context.Context, sessionToken string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE session_token = $1`,
		sessionToken,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *PostgresSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
func (r *PostgresSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM user_sessions WHERE expires_at <= now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ SessionRepository = (*PostgresSessionRepo)(nil)
