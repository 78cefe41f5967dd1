package cache

import "context"

// Tiered はL1（プロセス内）とL2（共有）を組み合わせたキャッシュ。
// 読み取りはL1→L2の順に参照し、L2のヒットはL1へ昇格する。書き込みは両方に行う。
type Tiered struct {
	l1 Store
	l2 Store
}

// NewTiered は2層キャッシュを生成する。
func NewTiered(l1, l2 Store) *Tiered {
	return &Tiered{l1: l1, l2: l2}
}

// Get はL1、L2の順に値を取得する。
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if v, ok, err := t.l1.Get(ctx, key); err != nil || ok {
		return v, ok, err
	}
	v, ok, err := t.l2.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := t.l1.Put(ctx, key, v); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Put はL2、L1の順に書き込む。
func (t *Tiered) Put(ctx context.Context, key string, val []byte) error {
	if err := t.l2.Put(ctx, key, val); err != nil {
		return err
	}
	return t.l1.Put(ctx, key, val)
}

// Exists はいずれかの層にキーが存在するかを返す。
func (t *Tiered) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := t.l1.Exists(ctx, key)
	if err != nil || ok {
		return ok, err
	}
	return t.l2.Exists(ctx, key)
}

var _ Store = (*Tiered)(nil)
