package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// releaseScript は保存値がトークンと一致する場合だけキーを削除する。
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end
`

var errHeld = errors.New("lock held")

// RedisLocker は Redis の SET NX PX を使ったキー単位のロック。
// 複数インスタンス間で同じ設定キーへの書き込みを直列化する。
type RedisLocker struct {
	client        redis.Cmdable
	keyPrefix     string
	ttl           time.Duration
	retryInterval time.Duration
	waitTimeout   time.Duration
	logger        *slog.Logger
}

// RedisLockerOption は RedisLocker の設定オプション。
type RedisLockerOption func(*RedisLocker)

// WithKeyPrefix はロックキーのプレフィックスを設定する。
func WithKeyPrefix(prefix string) RedisLockerOption {
	return func(l *RedisLocker) {
		l.keyPrefix = prefix
	}
}

// WithTTL はロックの有効期限を設定する。
func WithTTL(ttl time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		l.ttl = ttl
	}
}

// WithRetry は再試行間隔と最大待機時間を設定する。
func WithRetry(interval, waitTimeout time.Duration) RedisLockerOption {
	return func(l *RedisLocker) {
		l.retryInterval = interval
		l.waitTimeout = waitTimeout
	}
}

// WithLogger は解放失敗を記録するロガーを設定する。
func WithLogger(logger *slog.Logger) RedisLockerOption {
	return func(l *RedisLocker) {
		l.logger = logger
	}
}

// NewRedisLocker は新しい RedisLocker を生成する。
func NewRedisLocker(client redis.Cmdable, opts ...RedisLockerOption) *RedisLocker {
	l := &RedisLocker{
		client:        client,
		keyPrefix:     "lock",
		ttl:           10 * time.Second,
		retryInterval: 50 * time.Millisecond,
		waitTimeout:   5 * time.Second,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *RedisLocker) lockKey(key string) string {
	return l.keyPrefix + ":" + key
}

// Lock は key のロックを取得するまで retryInterval ごとに再試行する。
// waitTimeout を超えた場合は ErrLockTimeout を返す。
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.lockKey(key)
	token := generateToken()

	waitCtx, cancel := context.WithTimeout(ctx, l.waitTimeout)
	defer cancel()

	op := func() error {
		ok, err := l.client.SetNX(waitCtx, fullKey, token, l.ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil {
				return waitCtx.Err()
			}
			return backoff.Permanent(fmt.Errorf("failed to acquire lock: %w", err))
		}
		if !ok {
			return errHeld
		}
		return nil
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(l.retryInterval), waitCtx)
	if err := backoff.Retry(op, b); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, errHeld) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		return nil, err
	}

	return func() {
		if err := l.release(context.Background(), fullKey, token); err != nil {
			l.logger.Warn("failed to release lock", slog.String("key", key), slog.String("error", err.Error()))
		}
	}, nil
}

func (l *RedisLocker) release(ctx context.Context, fullKey, token string) error {
	result, err := l.client.Eval(ctx, releaseScript, []string{fullKey}, token).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrTokenMismatch
	}
	return nil
}
