package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/tunesync/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// Upsert はユーザーを作成または更新する。
// 初回ログイン時はINSERT、以降のログインではemail、name、picture、
// last_loginを上書きする。created_atは初回の値を保持する。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (user_id, email, name, picture, created_at, last_login)
		 VALUES ($1, $2, $3, $4, now(), now())
		 ON CONFLICT (user_id) DO UPDATE SET
		     email      = EXCLUDED.email,
		     name       = EXCLUDED.name,
		     picture    = EXCLUDED.picture,
		     last_login = now()`,
		user.ID, user.Email, user.Name, user.Picture,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
