package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/crvouga/colddrive/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, google_id, email, COALESCE(name, ''), COALESCE(avatar_url, ''), created_at, updated_at`

// userUpdateProfileQuery はgoogle_id一致時のプロフィール更新。
// emailはこの経路では不変（一致判定に使ったgoogle_idが正であり、
// ローカルに保存済みのemailを書き換えない）。
const userUpdateProfileQuery = `UPDATE users
	 SET name = COALESCE($2, name), avatar_url = COALESCE($3, avatar_url)
	 WHERE id = $1
	 RETURNING ` + userColumns

// userRebindByEmailQuery はemail一致時にgoogle_idを紐付け直す。
const userRebindByEmailQuery = `UPDATE users
	 SET google_id = $2, name = COALESCE($3, name), avatar_url = COALESCE($4, avatar_url)
	 WHERE email = $1
	 RETURNING ` + userColumns

const userInsertQuery = `INSERT INTO users (id, google_id, email, name, avatar_url, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $6)
	 RETURNING ` + userColumns

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.AvatarURL, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// Upsert は外部IdPの識別情報からユーザーを検索または作成する。
// 3段階の照合をトランザクション内で行う:
//  1. google_id一致 → プロフィール（name/avatar_url）を更新。emailは不変
//  2. email一致 → google_idを紐付け直し、プロフィールをマージ（rebound=true）
//  3. どちらも不一致 → 新規作成
func (r *PostgresUserRepo) Upsert(ctx context.Context, googleID, email string, name, avatarURL *string) (*model.User, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// google_idで検索
	var id string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM users WHERE google_id = $1`,
		googleID,
	).Scan(&id)
	if err != nil && err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("failed to find user by google ID: %w", err)
	}

	if err == nil {
		// 既存ユーザー: プロフィールを最新値で更新。nilフィールドは既存値を維持する。
		user, err := scanUser(tx.QueryRowContext(ctx,
			userUpdateProfileQuery,
			id, name, avatarURL,
		))
		if err != nil {
			return nil, false, fmt.Errorf("failed to update user: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return user, false, nil
	}

	// emailでフォールバック検索。一致すればgoogle_idを紐付け直す。
	user, err := scanUser(tx.QueryRowContext(ctx,
		userRebindByEmailQuery,
		email, googleID, name, avatarURL,
	))
	if err != nil {
		return nil, false, fmt.Errorf("failed to rebind user by email: %w", err)
	}
	if user != nil {
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return user, true, nil
	}

	// 新規作成
	now := time.Now()
	user, err = scanUser(tx.QueryRowContext(ctx,
		userInsertQuery,
		uuid.New().String(), googleID, email, name, avatarURL, now,
	))
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert user: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return user, false, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
