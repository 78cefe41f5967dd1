// Package cache はキャッシュストアの抽象とその実装を提供する。
//
// L1はristrettoによるプロセス内キャッシュ、L2はRedisによる共有キャッシュ、
// TieredはL1→L2の順に参照する2層構成。いずれもTTLと退避はストア側の方針に従う。
package cache

import "context"

// Store はキー単位でバイト列を保持するキャッシュストア。
//
// 契約:
//   - 並行呼び出しに対して安全であること。
//   - Getはミス時に (nil, false, nil) を返す。
//   - Existsの後にPutする処理は原子的ではない。同じキーを複数の呼び出し元が
//     同時に書き込むことがあり得るが、値は同じ計算結果であるため許容する。
type Store interface {
	// Get はキーの値を取得する。boolはヒットしたかどうか。
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put はキーに値を保存する。有効期限はストアの設定に従う。
	Put(ctx context.Context, key string, val []byte) error

	// Exists はキーが存在するかを返す。
	Exists(ctx context.Context, key string) (bool, error)
}
