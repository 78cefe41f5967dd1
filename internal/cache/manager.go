package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Manager はStoreに対する型付きのハンドル。値はJSONで保存する。
// 手動でキャッシュを温める処理はExistsとPutを組み合わせて使う。
type Manager struct {
	store Store
}

// NewManager はStoreをラップしたManagerを生成する。
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Get はキーの値をdstにデコードする。boolはヒットしたかどうか。
func (m *Manager) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, ok, err := m.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache: get %q: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("cache: decode %q: %w", key, err)
	}
	return true, nil
}

// Put はvをJSONにエンコードして保存する。
func (m *Manager) Put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %q: %w", key, err)
	}
	if err := m.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("cache: put %q: %w", key, err)
	}
	return nil
}

// Exists はキーが存在するかを返す。
func (m *Manager) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := m.store.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cache: exists %q: %w", key, err)
	}
	return ok, nil
}
