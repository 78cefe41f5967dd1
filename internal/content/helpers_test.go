package content

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/sitecache/internal/cache"
	"github.com/hitoshi/sitecache/internal/model"
	"github.com/hitoshi/sitecache/internal/repository"
)

// mockChannelRepo はテスト用のChannelRepositoryモック。
type mockChannelRepo struct {
	findByIDFn      func(ctx context.Context, id int) (*model.Channel, error)
	getTableNameFn  func(ctx context.Context, site *model.Site, channelID int) (string, error)
	getChannelIDsFn func(ctx context.Context, siteID, channelID int, scope model.ScopeType) ([]int, error)
}

func (m *mockChannelRepo) FindByID(ctx context.Context, id int) (*model.Channel, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockChannelRepo) GetTableName(ctx context.Context, site *model.Site, channelID int) (string, error) {
	if m.getTableNameFn != nil {
		return m.getTableNameFn(ctx, site, channelID)
	}
	return "", nil
}

func (m *mockChannelRepo) GetChannelIDs(ctx context.Context, siteID, channelID int, scope model.ScopeType) ([]int, error) {
	if m.getChannelIDsFn != nil {
		return m.getChannelIDsFn(ctx, siteID, channelID, scope)
	}
	return nil, nil
}

// channelsByID はチャンネル一覧からFindByIDを組み立てる。
func channelsByID(channels ...*model.Channel) func(context.Context, int) (*model.Channel, error) {
	index := make(map[int]*model.Channel, len(channels))
	for _, ch := range channels {
		index[ch.ID] = ch
	}
	return func(_ context.Context, id int) (*model.Channel, error) {
		return index[id], nil
	}
}

// mapStore はテスト用のマップによるcache.Store実装。
type mapStore struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string][]byte)}
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *mapStore) Put(_ context.Context, key string, val []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = val
	return nil
}

func (s *mapStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok, nil
}

func (s *mapStore) snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = string(v)
	}
	return out
}

// fixedDates はテスト用のDateParser。
type fixedDates struct {
	parseFn func(s string) (time.Time, error)
}

func (f fixedDates) Parse(s string) (time.Time, error) {
	return f.parseFn(s)
}

// primedCollector は投入件数を記録するMetricsCollector。
type primedCollector struct {
	mu     sync.Mutex
	primed map[string]int
}

func (c *primedCollector) RecordCacheHit(string)                    {}
func (c *primedCollector) RecordCacheMiss(string)                   {}
func (c *primedCollector) RecordQueryLatency(string, time.Duration) {}
func (c *primedCollector) RecordWarmCycle(time.Duration, int)       {}
func (c *primedCollector) RecordEntriesPrimed(kind string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.primed == nil {
		c.primed = make(map[string]int)
	}
	c.primed[kind] += n
}

// fixture はテストで共有する依存関係。
type fixture struct {
	svc      *Service
	exec     *repository.MemoryExecutor
	store    *mapStore
	channels *mockChannelRepo
	metrics  *primedCollector
}

func newFixture(opts Options) *fixture {
	exec := repository.NewMemoryExecutor()
	store := newMapStore()
	channels := &mockChannelRepo{}
	collector := &primedCollector{}
	tables := repository.NewContentTables(exec, cache.NewManager(store), collector)
	dates := fixedDates{parseFn: func(s string) (time.Time, error) {
		return time.Parse("2006-01-02", s)
	}}
	return &fixture{
		svc:      NewService(tables, channels, dates, collector, nil, opts),
		exec:     exec,
		store:    store,
		channels: channels,
		metrics:  collector,
	}
}
