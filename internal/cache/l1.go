package cache

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// L1 はristrettoによるプロセス内キャッシュ。
type L1 struct {
	rc  *ristretto.Cache[string, []byte]
	ttl time.Duration
}

// NewL1 は新しいL1を生成する。
// maxEntriesは保持する最大エントリ数（各エントリのコストは1）。
// ttlが0の場合は自動的に期限切れにならない。
func NewL1(maxEntries int64, ttl time.Duration) (*L1, error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("cache: maxEntries must be positive, got %d", maxEntries)
	}
	rc, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: failed to create ristretto cache: %w", err)
	}
	return &L1{rc: rc, ttl: ttl}, nil
}

// Get はキーの値を取得する。
func (l *L1) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := l.rc.Get(key)
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(v), true, nil
}

// Put はキーに値を保存する。書き込みはバッファ経由のため反映を待ってから返す。
func (l *L1) Put(_ context.Context, key string, val []byte) error {
	l.rc.SetWithTTL(key, bytes.Clone(val), 1, l.ttl)
	l.rc.Wait()
	return nil
}

// Exists はキーが存在するかを返す。
func (l *L1) Exists(_ context.Context, key string) (bool, error) {
	_, ok := l.rc.Get(key)
	return ok, nil
}

// Close は内部のゴルーチンを停止する。
func (l *L1) Close() {
	l.rc.Close()
}

var _ Store = (*L1)(nil)
