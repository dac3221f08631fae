package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/backoffice/internal/domain/shared"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix         = "backoffice:lock:"
	defaultTTL        = 10 * time.Second
	defaultTries      = 32
	defaultRetryDelay = 50 * time.Millisecond
)

// ErrEmptyKey is returned when a lock is requested without a name
var ErrEmptyKey = errors.New("lock key cannot be empty")

// RedisOption configures a RedisDocumentLocker
type RedisOption func(*RedisDocumentLocker)

// WithTries sets how many acquisition attempts are made before giving up
func WithTries(tries int) RedisOption {
	return func(l *RedisDocumentLocker) {
		if tries > 0 {
			l.tries = tries
		}
	}
}

// WithRetryDelay sets the pause between acquisition attempts
func WithRetryDelay(d time.Duration) RedisOption {
	return func(l *RedisDocumentLocker) {
		if d >= 0 {
			l.retryDelay = d
		}
	}
}

// RedisDocumentLocker holds a redlock mutex per document for the duration
// of one unit of work.
type RedisDocumentLocker struct {
	rs         *redsync.Redsync
	ttl        time.Duration
	tries      int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewRedisDocumentLocker creates a locker over the given Redis client.
// A non-positive ttl falls back to 10s.
func NewRedisDocumentLocker(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger, opts ...RedisOption) *RedisDocumentLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &RedisDocumentLocker{
		rs:         redsync.New(goredis.NewPool(client)),
		ttl:        ttl,
		tries:      defaultTries,
		retryDelay: defaultRetryDelay,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WithLock runs fn while holding the lock named key.
// Failing to acquire the lock in time is reported as a concurrency conflict.
func (l *RedisDocumentLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}

	mutex := l.rs.NewMutex(
		keyPrefix+key,
		redsync.WithExpiry(l.ttl),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(l.retryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if isContention(err) {
			l.logger.Debug("Document lock busy", zap.String("key", key))
			return fmt.Errorf("%w: %s is locked", shared.ErrConcurrencyConflict, key)
		}
		l.logger.Error("Failed to acquire document lock", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("acquire lock %s: %w", key, err)
	}

	defer func() {
		// Unlock with a fresh context so a cancelled request still frees the key
		unlockCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.ttl)
		defer cancel()
		if ok, err := mutex.UnlockContext(unlockCtx); !ok || err != nil {
			l.logger.Warn("Failed to release document lock",
				zap.String("key", key), zap.Bool("unlock_ok", ok), zap.Error(err))
		}
	}()

	return fn(ctx)
}

// isContention reports whether acquisition failed because another holder owns the key
func isContention(err error) bool {
	return errors.Is(err, redsync.ErrFailed) || strings.Contains(err.Error(), "lock already taken")
}
