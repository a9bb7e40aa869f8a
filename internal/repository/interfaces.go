// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/tunesync/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
// セッションはCookie内のクレームで完結するため、読み出し系の操作は持たない。
type UserRepository interface {
	// Upsert はユーザーを作成または更新する。
	// 既存ユーザーの場合はemail、name、picture、last_loginを更新する。
	Upsert(ctx context.Context, user *model.User) error
}

// KeyValueRepository はユーザーごとのキーバリューレコードの永続化インターフェース。
// すべての操作は論理テーブル（playback/favorites）単位で実行される。
type KeyValueRepository interface {
	// EnsureTables は両テーブルを冪等に作成する（CREATE TABLE IF NOT EXISTS）。
	// 各リクエストの読み書き前に呼び出しても安全なように軽量に保つ。
	EnsureTables(ctx context.Context) error

	// GetValues は指定キー群の保存値をkey→valueマップで返す。
	// 存在しないキーはマップに含まれない。
	GetValues(ctx context.Context, table model.Table, userID string, keys []string) (map[string]string, error)

	// ListAll はユーザーの全レコードをkey→valueマップで返す。
	ListAll(ctx context.Context, table model.Table, userID string) (map[string]string, error)

	// BatchUpsert はentriesの全ペアを1トランザクションでUPSERTする。
	BatchUpsert(ctx context.Context, table model.Table, userID string, entries map[string]string) error

	// BatchDelete は指定キー群を1トランザクションで削除する。
	// 存在しないキーの削除はエラーにならない。
	BatchDelete(ctx context.Context, table model.Table, userID string, keys []string) error
}
