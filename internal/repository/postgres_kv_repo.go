package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/tunesync/internal/model"
)

// PostgresKeyValueRepo はPostgreSQLを使用したキーバリューリポジトリ。
// playback_storeとfavorites_storeの2テーブルを扱う。
type PostgresKeyValueRepo struct {
	db *sql.DB
}

// NewPostgresKeyValueRepo はPostgresKeyValueRepoを生成する。
func NewPostgresKeyValueRepo(db *sql.DB) *PostgresKeyValueRepo {
	return &PostgresKeyValueRepo{db: db}
}

// ensureTableDDL は同期ストアテーブルの冪等なDDLを返す。
// マイグレーション000002と同一のスキーマを維持すること。
func ensureTableDDL(table model.Table) string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
		    user_id    TEXT NOT NULL,
		    key        TEXT NOT NULL,
		    value      TEXT NOT NULL DEFAULT '',
		    updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		    PRIMARY KEY (user_id, key)
		)`, table.StoreName())
}

// EnsureTables は両テーブルを冪等に作成する。
// 1回限りのマイグレーションに依存せず、各リクエスト前に呼んでも安全。
func (r *PostgresKeyValueRepo) EnsureTables(ctx context.Context) error {
	for _, table := range model.Tables() {
		if _, err := r.db.ExecContext(ctx, ensureTableDDL(table)); err != nil {
			return fmt.Errorf("failed to ensure table %s: %w", table, err)
		}
	}
	return nil
}

// GetValues は指定キー群の保存値をkey→valueマップで返す。
func (r *PostgresKeyValueRepo) GetValues(ctx context.Context, table model.Table, userID string, keys []string) (map[string]string, error) {
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	query := fmt.Sprintf(
		`SELECT key, value FROM %s WHERE user_id = $1 AND key = ANY($2)`,
		table.StoreName())

	rows, err := r.db.QueryContext(ctx, query, userID, pq.Array(keys))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	return scanKeyValues(rows, table)
}

// ListAll はユーザーの全レコードをkey→valueマップで返す。
func (r *PostgresKeyValueRepo) ListAll(ctx context.Context, table model.Table, userID string) (map[string]string, error) {
	query := fmt.Sprintf(
		`SELECT key, value FROM %s WHERE user_id = $1`,
		table.StoreName())

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	defer rows.Close()

	return scanKeyValues(rows, table)
}

// BatchUpsert はentriesの全ペアを1トランザクションでUPSERTする。
func (r *PostgresKeyValueRepo) BatchUpsert(ctx context.Context, table model.Table, userID string, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(
		`INSERT INTO %s (user_id, key, value, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (user_id, key) DO UPDATE SET
		     value      = EXCLUDED.value,
		     updated_at = now()`,
		table.StoreName())

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for key, value := range entries {
		if _, err := stmt.ExecContext(ctx, userID, key, value); err != nil {
			return fmt.Errorf("failed to upsert key %q into %s: %w", key, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert batch: %w", err)
	}

	return nil
}

// BatchDelete は指定キー群を1トランザクションで削除する。
func (r *PostgresKeyValueRepo) BatchDelete(ctx context.Context, table model.Table, userID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(
		`DELETE FROM %s WHERE user_id = $1 AND key = $2`,
		table.StoreName())

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, key := range keys {
		if _, err := stmt.ExecContext(ctx, userID, key); err != nil {
			return fmt.Errorf("failed to delete key %q from %s: %w", key, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete batch: %w", err)
	}

	return nil
}

// scanKeyValues は(key, value)行をマップへ読み込む。
func scanKeyValues(rows *sql.Rows, table model.Table) (map[string]string, error) {
	result := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", table, err)
		}
		result[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed for %s: %w", table, err)
	}
	return result, nil
}

// compile-time interface check
var _ KeyValueRepository = (*PostgresKeyValueRepo)(nil)
