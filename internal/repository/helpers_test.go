package repository

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/sitecache/internal/cache"
)

// mapStore はテスト用のマップによるcache.Store実装。
type mapStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	puts    int
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
	s.puts++
	return nil
}

func (s *mapStore) Exists(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok, nil
}

func (s *mapStore) has(key string) bool {
	ok, _ := s.Exists(context.Background(), key)
	return ok
}

var _ cache.Store = (*mapStore)(nil)

// recordingCollector はキャッシュのヒット・ミスを記録するMetricsCollector。
type recordingCollector struct {
	mu     sync.Mutex
	hits   map[string]int
	misses map[string]int
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{hits: make(map[string]int), misses: make(map[string]int)}
}

func (c *recordingCollector) RecordCacheHit(shape string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hits[shape]++
}

func (c *recordingCollector) RecordCacheMiss(shape string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.misses[shape]++
}

func (c *recordingCollector) RecordQueryLatency(string, time.Duration) {}
func (c *recordingCollector) RecordEntriesPrimed(string, int)         {}
func (c *recordingCollector) RecordWarmCycle(time.Duration, int)      {}
