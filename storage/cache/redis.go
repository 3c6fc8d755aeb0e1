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
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/storage"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// Redis cache storage.
type Redis struct {
	storage.TablePrefix
	client redis.UniversalClient
}

// Close redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) scan(ctx context.Context, client redis.Cmdable, work func(string) error) error {
	var (
		result []string
		cursor uint64
		err    error
	)
	for {
		result, cursor, err = client.Scan(ctx, cursor, string(r.TablePrefix)+"*", 0).Result()
		if err != nil {
			return errors.Trace(err)
		}
		for _, key := range result {
			if err = work(key); err != nil {
				return errors.Trace(err)
			}
		}
		if cursor == 0 {
			return nil
		}
	}
}

// Purge deletes all keys with the table prefix.
func (r *Redis) Purge(ctx context.Context) error {
	purge := func(ctx context.Context, client *redis.Client) error {
		return r.scan(ctx, client, func(key string) error {
			return client.Del(ctx, key).Err()
		})
	}
	switch client := r.client.(type) {
	case *redis.ClusterClient:
		return errors.Trace(client.ForEachMaster(ctx, purge))
	case *redis.Client:
		return errors.Trace(purge(ctx, client))
	}
	return errors.NotSupportedf("redis client %T", r.client)
}

// Get returns a value from Redis.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer func() { GetSeconds.Observe(time.Since(start).Seconds()) }()
	val, err := r.client.Get(ctx, r.Key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Annotate(ErrObjectNotExist, key)
		}
		return nil, errors.Trace(err)
	}
	return val, nil
}

// Set a value in Redis.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	defer func() { SetSeconds.Observe(time.Since(start).Seconds()) }()
	return errors.Trace(r.client.Set(ctx, r.Key(key), value, ttl).Err())
}

func (r *Redis) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.Key(key), value, ttl).Result()
	return ok, errors.Trace(err)
}

// Delete objects from Redis.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipeline := r.client.Pipeline()
	for _, key := range keys {
		pipeline.Del(ctx, r.Key(key))
	}
	_, err := pipeline.Exec(ctx)
	return errors.Trace(err)
}

func (r *Redis) IncrHashFloats(ctx context.Context, key string, increments map[string]float64, ttl time.Duration) error {
	if len(increments) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { IncrHashSeconds.Observe(time.Since(start).Seconds()) }()
	pipeline := r.client.Pipeline()
	for _, field := range lo.Keys(increments) {
		pipeline.HIncrByFloat(ctx, r.Key(key), field, increments[field])
	}
	if ttl > 0 {
		pipeline.Expire(ctx, r.Key(key), ttl)
	}
	_, err := pipeline.Exec(ctx)
	return errors.Trace(err)
}

func (r *Redis) GetHashFloats(ctx context.Context, key string) (map[string]float64, error) {
	fields, err := r.client.HGetAll(ctx, r.Key(key)).Result()
	if err != nil {
		return nil, errors.Trace(err)
	}
	result := make(map[string]float64, len(fields))
	for field, value := range fields {
		if result[field], err = strconv.ParseFloat(value, 64); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return result, nil
}
