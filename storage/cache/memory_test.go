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
	"testing"
	"testing/synctest"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type MemoryTestSuite struct {
	baseTestSuite
}

func (suite *MemoryTestSuite) SetupSuite() {
	var err error
	suite.Database, err = Open("memory://", "placerec_")
	suite.NoError(err)
}

func TestMemory(t *testing.T) {
	suite.Run(t, new(MemoryTestSuite))
}

func TestMemoryTTL(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx := context.Background()
		db, err := Open("memory://", "")
		assert.NoError(t, err)
		defer db.Close()

		err = db.Set(ctx, "ttl", []byte("1"), time.Minute)
		assert.NoError(t, err)
		ok, err := db.SetNX(ctx, "lock:ttl", []byte("1"), time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		err = db.IncrHashFloats(ctx, "hash", map[string]float64{"1": 1}, time.Minute)
		assert.NoError(t, err)

		time.Sleep(2 * time.Minute)
		_, err = db.Get(ctx, "ttl")
		assert.True(t, errors.Is(err, errors.NotFound), err)
		ok, err = db.SetNX(ctx, "lock:ttl", []byte("1"), time.Minute)
		assert.NoError(t, err)
		assert.True(t, ok)
		scores, err := db.GetHashFloats(ctx, "hash")
		assert.NoError(t, err)
		assert.Empty(t, scores)
	})
}

func TestMemoryWrongType(t *testing.T) {
	ctx := context.Background()
	db, err := Open("memory://", "")
	assert.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.IncrHashFloats(ctx, "hash", map[string]float64{"1": 1}, 0))
	_, err = db.Get(ctx, "hash")
	assert.Error(t, err)
	assert.NoError(t, db.Set(ctx, "string", []byte("1"), 0))
	_, err = db.GetHashFloats(ctx, "string")
	assert.Error(t, err)
}

func TestMemorySetWaitsForSetNX(t *testing.T) {
	ctx := context.Background()
	db, err := Open("memory://", "")
	assert.NoError(t, err)
	defer db.Close()
	memory := db.(*Memory)

	// hold the lock the way SetNX does between its check and its write
	memory.mu.Lock()
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, db.Set(ctx, GlobalRebuildLockKey, []byte("running"), time.Minute))
	}()
	select {
	case <-done:
		t.Fatal("Set must not run while the check-then-set lock is held")
	case <-time.After(50 * time.Millisecond):
	}
	_, err = db.Get(ctx, GlobalRebuildLockKey)
	assert.True(t, errors.Is(err, errors.NotFound), err)
	memory.cache.Set(memory.Key(GlobalRebuildLockKey), []byte("scheduled"), time.Minute)
	memory.mu.Unlock()

	<-done
	value, err := db.Get(ctx, GlobalRebuildLockKey)
	assert.NoError(t, err)
	assert.Equal(t, []byte("running"), value)
}
