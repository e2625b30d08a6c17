// Package redislock provides a pair lock shared across engine instances.
package redislock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fd1az/flashloan-arb/business/arbitrage/app"
	"github.com/fd1az/flashloan-arb/internal/apperror"
)

// unlockLua deletes the key only while it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

const (
	keyPrefix     = "flasharb:lock:"
	unlockTimeout = 5 * time.Second
)

var _ app.PairLock = (*Lock)(nil)

// Lock implements app.PairLock with SET NX and a TTL. The TTL bounds how long
// a crashed holder can block a pair.
type Lock struct {
	rdb    *redis.Client
	ttl    time.Duration
	unlock *redis.Script
}

// Config holds connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New connects to redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Lock, error) {
	if cfg.TTL <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("redis lock ttl must be positive"))
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, apperror.New(apperror.CodeServiceUnavailable, apperror.WithCause(err),
			apperror.WithContext("redis: ping "+cfg.Addr))
	}
	return &Lock{rdb: rdb, ttl: cfg.TTL, unlock: redis.NewScript(unlockLua)}, nil
}

// TryLock claims key until the returned func runs or the TTL expires.
func (l *Lock) TryLock(ctx context.Context, key string) (func(), bool, error) {
	token := uuid.NewString()
	k := keyPrefix + key

	ok, err := l.rdb.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, false, apperror.New(apperror.CodeServiceUnavailable, apperror.WithCause(err),
			apperror.WithContext("redis: acquire "+key))
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// The execution context may already be cancelled.
			uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
			defer cancel()
			_ = l.unlock.Run(uctx, l.rdb, []string{k}, token).Err()
		})
	}
	return release, true, nil
}

// Ping checks the connection for health reporting.
func (l *Lock) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (l *Lock) Close() error {
	return l.rdb.Close()
}
