// Package syncstore はユーザーごとのキーバリュー同期ストアを提供する。
//
// キー名の固定振り分けルールによりplayback/favoritesの2論理テーブルへ
// 分割し、1リクエスト内のテーブルごとのバッチは並行に実行する。
// バックエンドDBが構成されていない場合はすべての操作が縮退応答になる。
package syncstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/tunesync/internal/metrics"
	"github.com/hitoshi/tunesync/internal/model"
	"github.com/hitoshi/tunesync/internal/repository"
)

// Service は同期ストアのビジネスロジックを提供する。
type Service struct {
	repo      repository.KeyValueRepository
	collector metrics.MetricsCollector
}

// NewService はServiceを生成する。
// repoがnilの場合、ストアは利用不可（縮退モード）として動作する。
func NewService(repo repository.KeyValueRepository, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		repo:      repo,
		collector: collector,
	}
}

// Available はバックエンドストアが利用可能かを返す。
func (s *Service) Available() bool {
	return s.repo != nil
}

// Read は指定キー群の値を取得する。
// keysが空の場合は両テーブルのユーザーの全レコードを返す。
// keysが指定された場合、存在しないキーはnilとして結果に含まれる
// （リクエストされたキーの欠落を明示するため）。
func (s *Service) Read(ctx context.Context, userID string, keys []string) (map[string]*string, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("sync store is not available")
	}
	if err := s.repo.EnsureTables(ctx); err != nil {
		return nil, err
	}
	s.collector.RecordSyncOp("read")

	if len(keys) == 0 {
		return s.readAll(ctx, userID)
	}
	return s.readKeys(ctx, userID, keys)
}

// readAll は両テーブルの全レコードを並行に取得してマージする。
// キーの振り分けは決定的なので、同一キーが両テーブルに現れることはない。
func (s *Service) readAll(ctx context.Context, userID string) (map[string]*string, error) {
	result := map[string]*string{}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, table := range model.Tables() {
		table := table
		g.Go(func() error {
			values, err := s.repo.ListAll(gctx, table, userID)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for key, value := range values {
				value := value
				result[key] = &value
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// readKeys は要求キーをテーブルごとに分割し、非空のパーティションごとに
// 1クエリを並行発行する。結果は全キーをnilで事前シードしてから上書きする。
func (s *Service) readKeys(ctx context.Context, userID string, keys []string) (map[string]*string, error) {
	result := make(map[string]*string, len(keys))
	partitions := map[model.Table][]string{}
	for _, key := range keys {
		result[key] = nil
		partitions[model.ClassifyKey(key)] = append(partitions[model.ClassifyKey(key)], key)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for table, partKeys := range partitions {
		table, partKeys := table, partKeys
		g.Go(func() error {
			values, err := s.repo.GetValues(gctx, table, userID, partKeys)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for key, value := range values {
				value := value
				result[key] = &value
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Write はdataの全ペアを保存し、処理したエントリ数を返す。
// 値はすべて文字列へ変換され（nullは空文字列）、キーごとの振り分け先
// テーブルへ1トランザクションのバッチでUPSERTされる。テーブルごとの
// バッチは並行に実行される。返す件数は入力サイズであり、実際の行変更数
// ではない。
func (s *Service) Write(ctx context.Context, userID string, data map[string]interface{}) (int, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("sync store is not available")
	}
	if err := s.repo.EnsureTables(ctx); err != nil {
		return 0, err
	}
	s.collector.RecordSyncOp("write")

	partitions := map[model.Table]map[string]string{}
	for key, value := range data {
		table := model.ClassifyKey(key)
		if partitions[table] == nil {
			partitions[table] = map[string]string{}
		}
		partitions[table][key] = CoerceValue(value)
	}

	g, gctx := errgroup.WithContext(ctx)
	for table, entries := range partitions {
		table, entries := table, entries
		g.Go(func() error {
			return s.repo.BatchUpsert(gctx, table, userID, entries)
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Delete は指定キー群を削除し、対象になったキー数を返す。
// 空文字列のキーのみ無視される（空白のみのキーは通常のキーとして扱う）。
// テーブルごとの削除バッチは並行に実行される。
func (s *Service) Delete(ctx context.Context, userID string, keys []string) (int, error) {
	if s.repo == nil {
		return 0, fmt.Errorf("sync store is not available")
	}
	if err := s.repo.EnsureTables(ctx); err != nil {
		return 0, err
	}
	s.collector.RecordSyncOp("delete")

	partitions := map[model.Table][]string{}
	count := 0
	for _, key := range keys {
		if key == "" {
			continue
		}
		partitions[model.ClassifyKey(key)] = append(partitions[model.ClassifyKey(key)], key)
		count++
	}

	g, gctx := errgroup.WithContext(ctx)
	for table, partKeys := range partitions {
		table, partKeys := table, partKeys
		g.Go(func() error {
			return s.repo.BatchDelete(gctx, table, userID, partKeys)
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return count, nil
}

// CoerceValue は任意のJSON値を保存用の文字列形式へ変換する。
// null→空文字列、スカラーはその文字列表現、配列・オブジェクトは
// JSONテキストとして再エンコードする。
func CoerceValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
