// Copyright 2025 placerec Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cache

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"go.uber.org/zap"
)

// ErrLockHeld is returned by GetOrBuild when the build lock stays held by
// another builder after all retries.
var ErrLockHeld = errors.New("build lock held by another builder")

// BuildOptions controls how GetOrBuild caches an artifact.
type BuildOptions[T any] struct {
	// Name labels build metrics. Defaults to the cache key.
	Name          string
	TTL           time.Duration
	LockTTL       time.Duration
	RetryInterval time.Duration
	// MaxRetries bounds contention retries. Zero retries until ctx is done.
	MaxRetries   uint
	ForceRefresh bool
	// Empty reports results that must not be cached.
	Empty func(T) bool
}

// GetOrBuild returns the artifact stored under key, building it at most once
// across all processes sharing the cache. Callers that lose the race for the
// build lock wait RetryInterval and start over, so they usually pick up the
// freshly built value. The lock is released whether the builder succeeds or not.
func GetOrBuild[T any](ctx context.Context, db Database, key string, opts BuildOptions[T], build func(context.Context) (T, error)) (T, error) {
	name := opts.Name
	if name == "" {
		name = key
	}
	forceRefresh := opts.ForceRefresh
	operation := func() (T, error) {
		var zero T
		// only the first attempt skips the cache
		if !forceRefresh {
			if value, ok := lookup[T](ctx, db, key); ok {
				return value, nil
			}
		}
		forceRefresh = false

		acquired, err := db.SetNX(ctx, LockKey(key), []byte(time.Now().Format(time.RFC3339Nano)), opts.LockTTL)
		if err != nil {
			return zero, backoff.Permanent(errors.Trace(err))
		}
		if !acquired {
			LockContendedTimes.Inc()
			log.Logger().Debug("build lock held, wait for retry", zap.String("key", key))
			return zero, ErrLockHeld
		}
		defer func() {
			if err := db.Delete(context.WithoutCancel(ctx), LockKey(key)); err != nil {
				log.Logger().Error("failed to release build lock", zap.String("key", key), zap.Error(err))
			}
		}()

		start := time.Now()
		value, err := build(ctx)
		if err != nil {
			return zero, backoff.Permanent(errors.Annotatef(err, "build %s", name))
		}
		BuildSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if opts.Empty != nil && opts.Empty(value) {
			log.Logger().Debug("skip caching empty artifact", zap.String("key", key))
			return value, nil
		}
		data, err := Encode(value)
		if err != nil {
			return zero, backoff.Permanent(err)
		}
		if err = db.Set(ctx, key, data, opts.TTL); err != nil {
			return zero, backoff.Permanent(errors.Trace(err))
		}
		return value, nil
	}

	retryOpts := []backoff.RetryOption{
		backoff.WithBackOff(backoff.NewConstantBackOff(opts.RetryInterval)),
		backoff.WithMaxElapsedTime(0),
	}
	if opts.MaxRetries > 0 {
		retryOpts = append(retryOpts, backoff.WithMaxTries(opts.MaxRetries+1))
	}
	value, err := backoff.Retry(ctx, operation, retryOpts...)
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		err = permanent.Unwrap()
	}
	return value, err
}

// Load decodes the artifact stored under key. A missing entry reports ok=false.
func Load[T any](ctx context.Context, db Database, key string) (T, bool, error) {
	var zero T
	data, err := db.Get(ctx, key)
	if errors.Is(err, errors.NotFound) {
		return zero, false, nil
	} else if err != nil {
		return zero, false, errors.Trace(err)
	}
	value, err := Decode[T](data)
	if err != nil {
		return zero, false, err
	}
	return value, true, nil
}

// Store encodes value under key.
func Store[T any](ctx context.Context, db Database, key string, value T, ttl time.Duration) error {
	data, err := Encode(value)
	if err != nil {
		return err
	}
	return db.Set(ctx, key, data, ttl)
}

func lookup[T any](ctx context.Context, db Database, key string) (T, bool) {
	value, ok, err := Load[T](ctx, db, key)
	if err != nil {
		// a corrupt or unreadable entry is rebuilt
		log.Logger().Warn("failed to load cached artifact", zap.String("key", key), zap.Error(err))
		return value, false
	}
	if ok {
		HitTimes.Inc()
	} else {
		MissTimes.Inc()
	}
	return value, ok
}
