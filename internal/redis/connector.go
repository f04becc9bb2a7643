// Package redis dials the Redis instance that holds the link collection.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/streamlinks/internal/logger"
)

// ConnectOptions defines the client settings and the startup retry policy.
type ConnectOptions struct {
	Addr           string        // Redis address (ex: "localhost:6379")
	User           string        // Optional username
	Password       string        // Optional password
	RedisDB        int           // Redis DB number
	DialTimeout    time.Duration // Redis dial timeout
	ReadTimeout    time.Duration // Redis read timeout
	WriteTimeout   time.Duration // Redis write timeout
	PoolSize       int           // Redis connection pool size
	ConnectTimeout time.Duration // Total time allowed for connection attempts (ex: 30s)
	RetryInterval  time.Duration // First wait between attempts, doubled after each failure
	MaxWait        time.Duration // Upper bound of the wait between attempts
	PingTimeout    time.Duration // Timeout of a single ping
	WarnThreshold  int           // Failed attempts logged as warnings before switching to errors
}

func (o ConnectOptions) validate() error {
	switch {
	case o.Addr == "":
		return fmt.Errorf("redis address is empty")
	case o.ConnectTimeout <= 0:
		return fmt.Errorf("ConnectTimeout must be > 0, got %v", o.ConnectTimeout)
	case o.RetryInterval <= 0:
		return fmt.Errorf("RetryInterval must be > 0, got %v", o.RetryInterval)
	case o.MaxWait <= 0:
		return fmt.Errorf("MaxWait must be > 0, got %v", o.MaxWait)
	case o.PingTimeout <= 0:
		return fmt.Errorf("PingTimeout must be > 0, got %v", o.PingTimeout)
	case o.WarnThreshold < 0:
		return fmt.Errorf("WarnThreshold must be >= 0, got %d", o.WarnThreshold)
	}
	return nil
}

func (o ConnectOptions) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.RetryInterval
	b.MaxInterval = o.MaxWait
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = o.ConnectTimeout
	return b
}

// New creates a Redis client and pings it until it answers or
// ConnectTimeout runs out. The client is closed when it never answers.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	if err := opts.validate(); err != nil {
		log.Error("invalid redis connection options", logger.Error(err))
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.RedisDB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	if err := waitForPing(ctx, client, opts, log); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func waitForPing(ctx context.Context, client *redis.Client, opts ConnectOptions, log logger.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	log.Info("connecting to redis",
		logger.String("addr", opts.Addr),
		logger.Duration("timeout", opts.ConnectTimeout))

	start := time.Now()
	attempts := 0

	ping := func() error {
		attempts++
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		defer pingCancel()
		return client.Ping(pingCtx).Err()
	}

	notify := func(err error, next time.Duration) {
		fields := []logger.Field{
			logger.String("addr", opts.Addr),
			logger.Int("attempt", attempts),
			logger.Duration("next_retry_in", next),
			logger.Error(err),
		}
		if attempts <= opts.WarnThreshold {
			log.Warn("redis connection failed, retrying", fields...)
			return
		}
		log.Error("redis still unavailable, retrying", fields...)
	}

	err := backoff.RetryNotify(ping, backoff.WithContext(opts.backoff(), ctx), notify)
	if err != nil {
		log.Error("redis unavailable, giving up",
			logger.String("addr", opts.Addr),
			logger.Int("attempts", attempts),
			logger.Duration("timeout", opts.ConnectTimeout),
			logger.Error(err))
		return fmt.Errorf("redis unavailable at %s after %d attempts (timeout: %v): %w",
			opts.Addr, attempts, opts.ConnectTimeout, err)
	}

	if attempts > 1 {
		log.Warn("connected to redis after retry",
			logger.String("addr", opts.Addr),
			logger.Int("attempts", attempts),
			logger.Duration("elapsed", time.Since(start)))
	} else {
		log.Info("connected to redis", logger.String("addr", opts.Addr))
	}
	return nil
}
