package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/hitoshi/sitecache/internal/cache"
	"github.com/hitoshi/sitecache/internal/cachekey"
	"github.com/hitoshi/sitecache/internal/metrics"
	"github.com/hitoshi/sitecache/internal/model"
	"github.com/hitoshi/sitecache/internal/query"
)

// ContentTable は1つのコンテンツテーブルに束縛されたリポジトリ。
// Specがキャッシュキーを持つ場合はキャッシュを経由して読み取る（read-through）。
//
// キャッシュの投入は少なくとも1回（at-least-once）であり、
// 同じキーに対する並行したミスは両方がストレージを読み、両方が同じ値を書き込みうる。
type ContentTable struct {
	name    string
	exec    Executor
	cache   *cache.Manager
	metrics metrics.MetricsCollector
}

// NewContentTable はContentTableを生成する。
func NewContentTable(name string, exec Executor, manager *cache.Manager, collector metrics.MetricsCollector) *ContentTable {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &ContentTable{name: name, exec: exec, cache: manager, metrics: collector}
}

// TableName は束縛されたテーブル名を返す。
func (t *ContentTable) TableName() string {
	return t.name
}

// CacheManager は手動でキャッシュを投入するためのハンドルを返す。
func (t *ContentTable) CacheManager() *cache.Manager {
	return t.cache
}

// Count はSpecの条件に一致する件数を返す。
func (t *ContentTable) Count(ctx context.Context, spec query.Spec) (int, error) {
	return readThrough(ctx, t, spec.CacheKey(), func(ctx context.Context) (int, error) {
		return t.exec.Count(ctx, t.name, spec)
	}, nil)
}

// GetSummaries はContentSummaryの一覧を返す。
func (t *ContentTable) GetSummaries(ctx context.Context, spec query.Spec) ([]model.ContentSummary, error) {
	return readThrough(ctx, t, spec.CacheKey(), func(ctx context.Context) ([]model.ContentSummary, error) {
		return t.exec.SelectSummaries(ctx, t.name, spec)
	}, nil)
}

// GetContents はContentの一覧を返す。
func (t *ContentTable) GetContents(ctx context.Context, spec query.Spec) ([]*model.Content, error) {
	return readThrough(ctx, t, spec.CacheKey(), func(ctx context.Context) ([]*model.Content, error) {
		return t.exec.SelectContents(ctx, t.name, spec)
	}, nil)
}

// Get は主キーでContentを1件取得する。specはキャッシュキーの指定にのみ使う。
// 存在しない行はキャッシュしない。
func (t *ContentTable) Get(ctx context.Context, contentID int, spec query.Spec) (*model.Content, error) {
	return readThrough(ctx, t, spec.CacheKey(), func(ctx context.Context) (*model.Content, error) {
		return t.exec.SelectContent(ctx, t.name, contentID)
	}, func(c *model.Content) bool { return c != nil })
}

// GetInts は1列の整数一覧を返す。
func (t *ContentTable) GetInts(ctx context.Context, spec query.Spec) ([]int, error) {
	return readThrough(ctx, t, spec.CacheKey(), func(ctx context.Context) ([]int, error) {
		return t.exec.SelectInts(ctx, t.name, spec)
	}, nil)
}

// readThrough はキーが空でなければキャッシュを確認し、ミスの場合はloadの結果を書き込む。
// storableがfalseを返した値は書き込まない。
func readThrough[T any](
	ctx context.Context,
	t *ContentTable,
	key string,
	load func(context.Context) (T, error),
	storable func(T) bool,
) (T, error) {
	if key == "" || t.cache == nil {
		return load(ctx)
	}

	shape := string(cachekey.ShapeOf(key))

	var cached T
	hit, err := t.cache.Get(ctx, key, &cached)
	if err != nil {
		var zero T
		return zero, err
	}
	if hit {
		t.metrics.RecordCacheHit(shape)
		return cached, nil
	}
	t.metrics.RecordCacheMiss(shape)

	v, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	if storable != nil && !storable(v) {
		return v, nil
	}
	if err := t.cache.Put(ctx, key, v); err != nil {
		var zero T
		return zero, fmt.Errorf("キャッシュへの書き込みに失敗しました: %w", err)
	}
	return v, nil
}

// ContentTables はテーブル名ごとにContentTableを1つずつ保持するレジストリ。
type ContentTables struct {
	exec    Executor
	cache   *cache.Manager
	metrics metrics.MetricsCollector

	mu     sync.Mutex
	tables map[string]*ContentTable
}

// NewContentTables はContentTablesを生成する。
func NewContentTables(exec Executor, manager *cache.Manager, collector metrics.MetricsCollector) *ContentTables {
	return &ContentTables{
		exec:    exec,
		cache:   manager,
		metrics: collector,
		tables:  make(map[string]*ContentTable),
	}
}

// Get はテーブル名に対応するContentTableを返す。
func (r *ContentTables) Get(tableName string) *ContentTable {
	r.mu.Lock()
	defer r.mu.Unlock()

	if t, ok := r.tables[tableName]; ok {
		return t
	}
	t := NewContentTable(tableName, r.exec, r.cache, r.metrics)
	r.tables[tableName] = t
	return t
}
