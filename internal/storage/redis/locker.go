package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/seating/internal/domain"
)

const (
	defaultKeyPrefix  = "seating:lock:"
	defaultTTL        = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
	releaseTimeout    = 2 * time.Second
)

// releaseScript снимает блокировку, только если она всё ещё принадлежит владельцу токена.
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// Locker — распределённая блокировка столиков между репликами сервиса на SET NX PX.
type Locker struct {
	client     goredis.UniversalClient
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	logger     *log.Entry
}

// Option настраивает Locker.
type Option func(*Locker)

// WithKeyPrefix задаёт префикс ключей блокировок.
func WithKeyPrefix(prefix string) Option {
	return func(l *Locker) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// WithTTL задаёт время жизни блокировки на случай падения владельца.
func WithTTL(ttl time.Duration) Option {
	return func(l *Locker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithRetryDelay задаёт паузу между попытками захвата.
func WithRetryDelay(delay time.Duration) Option {
	return func(l *Locker) {
		if delay > 0 {
			l.retryDelay = delay
		}
	}
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(l *Locker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLocker создаёт Locker поверх клиента go-redis.
func NewLocker(client goredis.UniversalClient, opts ...Option) *Locker {
	l := &Locker{
		client:     client,
		prefix:     defaultKeyPrefix,
		ttl:        defaultTTL,
		retryDelay: defaultRetryDelay,
		logger:     log.WithField("component", "redis-locker"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock пытается захватить ключ, пока не истечёт ctx.
func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryDelay)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		switch {
		case err == nil && ok:
			return l.unlockFunc(redisKey, token), nil
		case err != nil && ctx.Err() == nil:
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrLockNotAcquired, key, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Locker) unlockFunc(redisKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		deleted, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
		if err != nil && !errors.Is(err, goredis.Nil) {
			l.logger.WithError(err).WithField("key", redisKey).Warn("failed to release lock")
			return
		}
		if deleted == 0 {
			l.logger.WithField("key", redisKey).Warn("lock expired before release")
		}
	}
}

// Ping проверяет доступность Redis.
func (l *Locker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var _ domain.Locker = (*Locker)(nil)
