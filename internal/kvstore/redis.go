package kvstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/velahub/signalcore/internal/logging"
	"github.com/velahub/signalcore/internal/metrics"
	"go.uber.org/zap"
)

// RedisStore is the production Store implementation, wrapped in a circuit
// breaker so a struggling Redis degrades fan-out to "log and continue"
// instead of blocking the connection manager (§7 Persistence failure).
// Grounded on the connection-setup and breaker shape of the prior Redis
// pub/sub service this project replaces; the pub/sub concern itself (cross-
// pod fan-out) is dropped since this system does not support horizontal
// federation (Non-goals).
type RedisStore struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewRedisStore dials Redis and verifies connectivity before returning.
func NewRedisStore(addr, password string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to KV store: %w", err)
	}

	st := gobreaker.Settings{
		Name:        "kvstore",
		MaxRequests: 5,
		Interval:    1 * time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues("kvstore").Set(stateVal)
		},
	}

	logging.Info(context.Background(), "connected to KV store", zap.String("addr", addr))
	return &RedisStore{
		client: rdb,
		cb:     gobreaker.NewCircuitBreaker(st),
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		v, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			return "", nil
		}
		return v, err
	})
	metrics.RedisOperationsTotal.WithLabelValues("get", statusFor(err)).Inc()
	if err != nil {
		if err == gobreaker.ErrOpenState {
			logging.Warn(ctx, "kv store circuit open: treating get as miss", zap.String("key", key))
			return "", false, nil
		}
		return "", false, fmt.Errorf("kv get %s: %w", key, err)
	}
	v, _ := res.(string)
	if v == "" {
		return "", false, nil
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, key, value, 0).Err()
	})
	metrics.RedisOperationsTotal.WithLabelValues("set", statusFor(err)).Inc()
	return degrade(ctx, "set", key, err)
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, key).Err()
	})
	metrics.RedisOperationsTotal.WithLabelValues("delete", statusFor(err)).Inc()
	return degrade(ctx, "delete", key, err)
}

// PushTrim prepends value to a list and trims it to maxLen, keeping the
// newest entries at the head (§5 bounded history).
func (s *RedisStore) PushTrim(ctx context.Context, key, value string, maxLen int64) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		pipe := s.client.TxPipeline()
		pipe.LPush(ctx, key, value)
		pipe.LTrim(ctx, key, 0, maxLen-1)
		_, err := pipe.Exec(ctx)
		return nil, err
	})
	metrics.RedisOperationsTotal.WithLabelValues("push_trim", statusFor(err)).Inc()
	return degrade(ctx, "push_trim", key, err)
}

// LRange returns the newest count entries, oldest-first: the list is stored
// newest-at-head, so the natural Redis order (0..count-1) is newest-first
// and must be reversed before returning.
func (s *RedisStore) LRange(ctx context.Context, key string, count int64) ([]string, error) {
	res, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.LRange(ctx, key, 0, count-1).Result()
	})
	metrics.RedisOperationsTotal.WithLabelValues("lrange", statusFor(err)).Inc()
	if err != nil {
		if err == gobreaker.ErrOpenState {
			logging.Warn(ctx, "kv store circuit open: returning empty history", zap.String("key", key))
			return nil, nil
		}
		return nil, fmt.Errorf("kv lrange %s: %w", key, err)
	}
	newestFirst, _ := res.([]string)
	oldestFirst := make([]string, len(newestFirst))
	for i, v := range newestFirst {
		oldestFirst[len(newestFirst)-1-i] = v
	}
	return oldestFirst, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("kvstore").Inc()
	}
	return err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func degrade(ctx context.Context, op, key string, err error) error {
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState {
		metrics.CircuitBreakerFailures.WithLabelValues("kvstore").Inc()
		logging.Warn(ctx, "kv store circuit open: dropping write", zap.String("op", op), zap.String("key", key))
		return nil
	}
	logging.Error(ctx, "kv store operation failed", zap.String("op", op), zap.String("key", key), zap.Error(err))
	return fmt.Errorf("kv %s %s: %w", op, key, err)
}

func statusFor(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
