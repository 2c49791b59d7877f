package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrProducerPanicked is returned to every caller of a flight whose
// producer panicked
var ErrProducerPanicked = errors.New("cache: producer panicked")

// GetOrSet returns the cached value for key, or computes it with producer.
//
// Unless forceRefresh is set, a fresh cached value is returned without
// calling producer. On a miss, concurrent callers for the same key share a
// single producer invocation. Only the caller that started the producer
// writes the result, and it does so before any waiter is released. A
// failed producer writes nothing and every waiter gets the error.
//
// All callers of one key must use the same T.
func GetOrSet[T any](ctx context.Context, s *Service, key string, ttl time.Duration, producer Producer[T], forceRefresh bool) (T, error) {
	return getOrSet(ctx, s, s.remote, key, ttl, producer, forceRefresh)
}

// GetOrSetLocal is GetOrSet over the local store
func GetOrSetLocal[T any](ctx context.Context, s *Service, key string, ttl time.Duration, producer Producer[T], forceRefresh bool) (T, error) {
	return getOrSet(ctx, s, s.local, key, ttl, producer, forceRefresh)
}

// Coalesce runs fn with at-most-one-in-flight semantics for key, without
// reading or writing the store.
func Coalesce[T any](ctx context.Context, s *Service, key string, fn Producer[T]) (T, error) {
	return coalesce(ctx, s, key, fn)
}

func getOrSet[T any](ctx context.Context, s *Service, store Store, key string, ttl time.Duration, producer Producer[T], forceRefresh bool) (T, error) {
	if !forceRefresh {
		value, ok, err := get[T](ctx, store, key)
		if err != nil {
			var zero T
			return zero, err
		}
		if ok {
			s.recorder.CachedHit(Namespace(key))
			return value, nil
		}
	}

	return coalesce(ctx, s, key, func(ctx context.Context) (T, error) {
		value, err := producer(ctx)
		if err != nil {
			return value, err
		}
		if err := set(ctx, store, key, value, ttl); err != nil {
			return value, err
		}
		return value, nil
	})
}

func coalesce[T any](ctx context.Context, s *Service, key string, fn Producer[T]) (T, error) {
	var zero T
	started := false

	// The producer runs detached from the caller's cancellation: other
	// callers may be waiting on the same result.
	// singleflight re-panics on a fresh goroutine, out of reach of any
	// caller's recover, so a panic is turned into an error here.
	ch := s.pending.DoChan(key, func() (value interface{}, err error) {
		started = true
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("cache producer panicked", "key", key, "panic", r)
				value, err = nil, fmt.Errorf("%w: key %s: %v", ErrProducerPanicked, key, r)
			}
		}()
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if !started {
			s.recorder.PendingHit(Namespace(key))
		}
		if res.Err != nil {
			return zero, res.Err
		}
		if res.Val == nil {
			return zero, nil
		}
		value, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache: key %s is in flight with type %T, want %T", key, res.Val, zero)
		}
		return value, nil
	}
}
