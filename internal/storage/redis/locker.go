package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lebowvsky/atelier-kaisla-sub001/internal/lib/logger/sl"
)

var ErrLockNotHeld = errors.New("lock is not held")

const lockPrefix = "lock:"

// releaseScript удаляет ключ, только если он всё ещё принадлежит владельцу.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Locker распределенная блокировка по ключу на основе SET NX PX
type Locker struct {
	Client *Client
	log    *slog.Logger

	TTL   time.Duration
	Retry time.Duration
	// Token генерирует токен владельца, по умолчанию uuid
	Token func() string
}

func NewLocker(log *slog.Logger, client *Client, ttl time.Duration) *Locker {
	return &Locker{
		Client: client,
		log:    log,
		TTL:    ttl,
		Retry:  50 * time.Millisecond,
		Token:  uuid.NewString,
	}
}

func lockKey(key string) string {
	return lockPrefix + key
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	const op = "storage.redis.Locker.Lock"

	token := l.Token()
	k := lockKey(key)

	for {
		ok, err := l.Client.SetNX(ctx, k, token, l.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(l.Retry):
		}
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.release(ctx, k, token); err != nil {
			// ErrLockNotHeld: TTL истек раньше, чем владелец закончил работу
			l.log.Warn("failed to release lock",
				slog.String("op", op),
				slog.String("key", k),
				slog.Duration("ttl", l.TTL),
				sl.Err(err),
			)
		}
	}, nil
}

func (l *Locker) release(ctx context.Context, key, token string) error {
	n, err := releaseScript.Run(ctx, l.Client, []string{key}, token).Int64()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockNotHeld
	}

	return nil
}
