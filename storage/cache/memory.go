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
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/juju/errors"
	"github.com/placerec/placerec/storage"
)

// Memory is an in-process cache backed by ttlcache. It offers the same atomicity
// as Redis within a single process and is used by tests and single-node setups.
type Memory struct {
	storage.TablePrefix
	mu    sync.Mutex
	cache *ttlcache.Cache[string, any]
}

func (m *Memory) Close() error {
	m.cache.Stop()
	return nil
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}

func (m *Memory) Purge(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range m.cache.Keys() {
		if strings.HasPrefix(key, string(m.TablePrefix)) {
			m.cache.Delete(key)
		}
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	item := m.cache.Get(m.Key(key))
	if item == nil {
		return nil, errors.Annotate(ErrObjectNotExist, key)
	}
	value, ok := item.Value().([]byte)
	if !ok {
		return nil, errors.Errorf("WRONGTYPE %s is not a string", key)
	}
	return value, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Set(m.Key(key), value, ttl)
	return nil
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cache.Get(m.Key(key)) != nil {
		return false, nil
	}
	m.cache.Set(m.Key(key), value, ttl)
	return true, nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		m.cache.Delete(m.Key(key))
	}
	return nil
}

func (m *Memory) IncrHashFloats(_ context.Context, key string, increments map[string]float64, ttl time.Duration) error {
	if len(increments) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hash := make(map[string]float64)
	var keepTTL time.Duration
	if item := m.cache.Get(m.Key(key)); item != nil {
		prev, ok := item.Value().(map[string]float64)
		if !ok {
			return errors.Errorf("WRONGTYPE %s is not a hash", key)
		}
		maps.Copy(hash, prev)
		keepTTL = time.Until(item.ExpiresAt())
	}
	for field, delta := range increments {
		hash[field] += delta
	}
	if ttl <= 0 {
		ttl = keepTTL
	}
	m.cache.Set(m.Key(key), hash, ttl)
	return nil
}

func (m *Memory) GetHashFloats(_ context.Context, key string) (map[string]float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := m.cache.Get(m.Key(key))
	if item == nil {
		return map[string]float64{}, nil
	}
	hash, ok := item.Value().(map[string]float64)
	if !ok {
		return nil, errors.Errorf("WRONGTYPE %s is not a hash", key)
	}
	return maps.Clone(hash), nil
}
