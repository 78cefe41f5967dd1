package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// failureLogInterval はRedisエラーの警告ログを出す最小間隔。
const failureLogInterval = 10 * time.Second

// L2 はRedisによる共有キャッシュ。
// 接続エラーはミス扱い（書き込みは破棄）とし、呼び出し元には返さない。
// エラーはWarnで記録するが、障害中のログ量を抑えるため間引く。
type L2 struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	warn   rate.Sometimes
}

// NewL2 は新しいL2を生成する。ttlが0の場合は有効期限を設定しない。
// loggerがnilの場合はslog.Default()を使う。
func NewL2(addr, password string, db int, ttl time.Duration, logger *slog.Logger) *L2 {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &L2{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
		warn:   rate.Sometimes{First: 1, Interval: failureLogInterval},
	}
}

// logFailure はRedis操作の失敗を間引いて記録する。
func (l *L2) logFailure(op string, err error) {
	l.warn.Do(func() {
		l.logger.Warn("redis cache operation failed",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)
	})
}

// Get はキーの値を取得する。ミスまたはRedisに到達できない場合は (nil, false, nil)。
func (l *L2) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := l.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		// 接続エラーもミスとして扱う
		l.logFailure("get", err)
		return nil, false, nil
	}
	return val, true, nil
}

// Put はキーに値を保存する。エラーは記録して破棄する。
func (l *L2) Put(ctx context.Context, key string, val []byte) error {
	if err := l.rdb.Set(ctx, key, val, l.ttl).Err(); err != nil {
		l.logFailure("put", err)
	}
	return nil
}

// Exists はキーが存在するかを返す。Redisに到達できない場合はfalse。
func (l *L2) Exists(ctx context.Context, key string) (bool, error) {
	n, err := l.rdb.Exists(ctx, key).Result()
	if err != nil {
		l.logFailure("exists", err)
		return false, nil
	}
	return n > 0, nil
}

// Ping はRedisへの接続を確認する。
func (l *L2) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close はRedisクライアントを閉じる。
func (l *L2) Close() error {
	return l.rdb.Close()
}

var _ Store = (*L2)(nil)
