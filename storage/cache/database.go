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
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/placerec/placerec/storage"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

var (
	ErrObjectNotExist = errors.NotFoundf("object")
	ErrNoDatabase     = errors.NotAssignedf("cache database")
)

// Database is the shared low-latency store. Values are opaque bytes with an
// optional time-to-live (0 means no expiry). Hashes of floats back the speed layer.
type Database interface {
	Close() error
	Ping(ctx context.Context) error
	// Purge removes every key owned by this database.
	Purge(ctx context.Context) error

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX sets the key only if it does not exist and reports whether it was set.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error

	// IncrHashFloats adds increments to fields of a hash and resets the hash
	// time-to-live in one round trip.
	IncrHashFloats(ctx context.Context, key string, increments map[string]float64, ttl time.Duration) error
	// GetHashFloats returns all fields of a hash. A missing hash is empty.
	GetHashFloats(ctx context.Context, key string) (map[string]float64, error)
}

// Open a connection to a database.
func Open(path, tablePrefix string) (Database, error) {
	switch scheme := storage.ParseScheme(path); scheme {
	case storage.SchemeRedis:
		opt, err := redis.ParseURL(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database := new(Redis)
		database.client = redis.NewClient(opt)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if err = redisotel.InstrumentTracing(database.client); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	case storage.SchemeRedisCluster:
		// go-redis parses cluster URLs with the plain redis schemes
		newURL := strings.Replace(path, "+cluster", "", 1)
		opt, err := redis.ParseClusterURL(newURL)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database := new(Redis)
		database.client = redis.NewClusterClient(opt)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		if err = redisotel.InstrumentTracing(database.client); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	case storage.SchemeMemory:
		database := new(Memory)
		database.TablePrefix = storage.TablePrefix(tablePrefix)
		database.cache = ttlcache.New[string, any](
			ttlcache.WithDisableTouchOnHit[string, any](),
		)
		go database.cache.Start()
		return database, nil
	default:
		return nil, errors.NotSupportedf("cache store %s", scheme)
	}
}
