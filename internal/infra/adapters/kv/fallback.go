package kv

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/qrave1/RoomChat/internal/application/constant"
	"github.com/qrave1/RoomChat/internal/application/metric"
)

// FallbackStore sends every call to the durable store with a bounded timeout. Writes
// that succeed there are mirrored into the volatile store, so it holds the live room
// state when it takes over. The first failure switches to the volatile store for the
// rest of the process life: data written afterwards is lost on restart, but the
// service stays up and running rooms keep their members, admins and queues.
type FallbackStore struct {
	primary  Store
	volatile Store
	timeout  time.Duration
	degraded atomic.Bool
}

func NewFallbackStore(primary, volatile Store, timeout time.Duration) *FallbackStore {
	return &FallbackStore{
		primary:  primary,
		volatile: volatile,
		timeout:  timeout,
	}
}

// Degraded reports whether the volatile store is serving.
func (f *FallbackStore) Degraded() bool {
	return f.degraded.Load()
}

// Probe pings the durable store once and degrades if it does not answer.
func (f *FallbackStore) Probe(ctx context.Context) {
	_ = f.exec(ctx, "ping", func(ctx context.Context, s Store) error {
		return s.Ping(ctx)
	})
}

func (f *FallbackStore) degrade(op string, err error) {
	if f.degraded.CompareAndSwap(false, true) {
		slog.Warn(
			"durable store unavailable, switching to in-memory store",
			slog.String("op", op),
			slog.Any(constant.Error, err),
		)
		metric.StoreFallback()
	}
}

// exec runs fn on the active store. Cancellation of the caller's own context is
// returned as is and does not degrade the store.
func (f *FallbackStore) exec(ctx context.Context, op string, fn func(context.Context, Store) error) error {
	if !f.degraded.Load() {
		callCtx, cancel := context.WithTimeout(ctx, f.timeout)
		err := fn(callCtx, f.primary)
		cancel()

		if err == nil {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return err
		}

		f.degrade(op, err)
	}

	return fn(ctx, f.volatile)
}

// write is exec for mutating calls: a write accepted by the durable store is
// replayed on the volatile one.
func (f *FallbackStore) write(ctx context.Context, op string, fn func(context.Context, Store) error) error {
	if f.degraded.Load() {
		return fn(ctx, f.volatile)
	}

	callCtx, cancel := context.WithTimeout(ctx, f.timeout)
	err := fn(callCtx, f.primary)
	cancel()

	if err == nil {
		f.mirror(ctx, op, fn)
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}

	f.degrade(op, err)

	return fn(ctx, f.volatile)
}

func (f *FallbackStore) mirror(ctx context.Context, op string, fn func(context.Context, Store) error) {
	if err := fn(ctx, f.volatile); err != nil {
		slog.Warn("mirror write to in-memory store", slog.String("op", op), slog.Any(constant.Error, err))
	}
}

func (f *FallbackStore) Get(ctx context.Context, key string) (v string, ok bool, err error) {
	err = f.exec(ctx, "get", func(ctx context.Context, s Store) error {
		v, ok, err = s.Get(ctx, key)
		return err
	})
	return v, ok, err
}

func (f *FallbackStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (set bool, err error) {
	primary := !f.degraded.Load()
	err = f.exec(ctx, "setnx", func(ctx context.Context, s Store) error {
		set, err = s.SetNX(ctx, key, value, ttl)
		return err
	})
	// захваченный ключ повторяем в памяти, результат берём от основного стора
	if err == nil && set && primary && !f.degraded.Load() {
		f.mirror(ctx, "setnx", func(ctx context.Context, s Store) error {
			_, err := s.SetNX(ctx, key, value, ttl)
			return err
		})
	}
	return set, err
}

func (f *FallbackStore) HSet(ctx context.Context, key string, values map[string]string) error {
	return f.write(ctx, "hset", func(ctx context.Context, s Store) error {
		return s.HSet(ctx, key, values)
	})
}

func (f *FallbackStore) HGet(ctx context.Context, key, field string) (v string, ok bool, err error) {
	err = f.exec(ctx, "hget", func(ctx context.Context, s Store) error {
		v, ok, err = s.HGet(ctx, key, field)
		return err
	})
	return v, ok, err
}

func (f *FallbackStore) HGetAll(ctx context.Context, key string) (m map[string]string, err error) {
	err = f.exec(ctx, "hgetall", func(ctx context.Context, s Store) error {
		m, err = s.HGetAll(ctx, key)
		return err
	})
	return m, err
}

func (f *FallbackStore) HDel(ctx context.Context, key string, fields ...string) error {
	return f.write(ctx, "hdel", func(ctx context.Context, s Store) error {
		return s.HDel(ctx, key, fields...)
	})
}

func (f *FallbackStore) SAdd(ctx context.Context, key string, members ...string) error {
	return f.write(ctx, "sadd", func(ctx context.Context, s Store) error {
		return s.SAdd(ctx, key, members...)
	})
}

func (f *FallbackStore) SRem(ctx context.Context, key string, members ...string) error {
	return f.write(ctx, "srem", func(ctx context.Context, s Store) error {
		return s.SRem(ctx, key, members...)
	})
}

func (f *FallbackStore) SMembers(ctx context.Context, key string) (members []string, err error) {
	err = f.exec(ctx, "smembers", func(ctx context.Context, s Store) error {
		members, err = s.SMembers(ctx, key)
		return err
	})
	return members, err
}

func (f *FallbackStore) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return f.write(ctx, "zadd", func(ctx context.Context, s Store) error {
		return s.ZAdd(ctx, key, score, member)
	})
}

func (f *FallbackStore) ZRem(ctx context.Context, key string, members ...string) error {
	return f.write(ctx, "zrem", func(ctx context.Context, s Store) error {
		return s.ZRem(ctx, key, members...)
	})
}

func (f *FallbackStore) ZRange(ctx context.Context, key string) (members []string, err error) {
	err = f.exec(ctx, "zrange", func(ctx context.Context, s Store) error {
		members, err = s.ZRange(ctx, key)
		return err
	})
	return members, err
}

func (f *FallbackStore) ZCard(ctx context.Context, key string) (n int64, err error) {
	err = f.exec(ctx, "zcard", func(ctx context.Context, s Store) error {
		n, err = s.ZCard(ctx, key)
		return err
	})
	return n, err
}

func (f *FallbackStore) RPush(ctx context.Context, key string, values ...string) error {
	return f.write(ctx, "rpush", func(ctx context.Context, s Store) error {
		return s.RPush(ctx, key, values...)
	})
}

func (f *FallbackStore) LTrim(ctx context.Context, key string, start, stop int64) error {
	return f.write(ctx, "ltrim", func(ctx context.Context, s Store) error {
		return s.LTrim(ctx, key, start, stop)
	})
}

func (f *FallbackStore) LRange(ctx context.Context, key string, start, stop int64) (values []string, err error) {
	err = f.exec(ctx, "lrange", func(ctx context.Context, s Store) error {
		values, err = s.LRange(ctx, key, start, stop)
		return err
	})
	return values, err
}

func (f *FallbackStore) Del(ctx context.Context, keys ...string) error {
	return f.write(ctx, "del", func(ctx context.Context, s Store) error {
		return s.Del(ctx, keys...)
	})
}

func (f *FallbackStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return f.write(ctx, "expire", func(ctx context.Context, s Store) error {
		return s.Expire(ctx, key, ttl)
	})
}

func (f *FallbackStore) Ping(ctx context.Context) error {
	return f.exec(ctx, "ping", func(ctx context.Context, s Store) error {
		return s.Ping(ctx)
	})
}

func (f *FallbackStore) Close() error {
	return errors.Join(f.primary.Close(), f.volatile.Close())
}
