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

package parallel

import (
	"context"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
)

func TestParallelWorkers(t *testing.T) {
	for _, nWorkers := range []int{1, 3, 8} {
		synctest.Test(t, func(t *testing.T) {
			squares := make([]int, 2000)
			workers := make([]int, len(squares))
			err := Parallel(context.Background(), len(squares), nWorkers, func(workerId, jobId int) error {
				squares[jobId] = jobId * jobId
				workers[jobId] = workerId
				time.Sleep(time.Microsecond)
				return nil
			})
			assert.NoError(t, err)
			assert.Equal(t, lo.Map(lo.Range(len(squares)), func(i, _ int) int { return i * i }), squares)
			used := mapset.NewSet(workers...)
			assert.LessOrEqual(t, used.Cardinality(), nWorkers)
			if nWorkers == 1 {
				assert.True(t, used.Equal(mapset.NewSet(0)))
			}
		})
	}
}

func TestParallelMoreWorkersThanJobs(t *testing.T) {
	var count atomic.Int32
	err := Parallel(context.Background(), 3, 16, func(_, _ int) error {
		count.Add(1)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(3), count.Load())
}

func TestParallelError(t *testing.T) {
	for _, nWorkers := range []int{1, 4} {
		err := Parallel(context.Background(), 500, nWorkers, func(_, jobId int) error {
			if jobId == 250 {
				return errors.NotFoundf("place %d", jobId)
			}
			return nil
		})
		assert.True(t, errors.Is(err, errors.NotFound), nWorkers)
	}
}

func TestParallelPanic(t *testing.T) {
	err := Parallel(context.Background(), 10, 2, func(_, jobId int) error {
		if jobId == 7 {
			panic("corrupted vector")
		}
		return nil
	})
	assert.ErrorContains(t, err, "corrupted vector")
}

func TestParallelCancel(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		var count atomic.Int32
		err := Parallel(ctx, 100, 4, func(_, jobId int) error {
			if jobId == 0 {
				cancel()
			}
			count.Add(1)
			time.Sleep(100 * time.Millisecond)
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, int(count.Load()), 100)
	})
}

func TestBlocks(t *testing.T) {
	assert.Equal(t, [][2]int{{0, 500}, {500, 1000}, {1000, 1203}}, Blocks(1203, 500))
	assert.Equal(t, [][2]int{{0, 3}}, Blocks(3, 500))
	assert.Nil(t, Blocks(0, 500))
}
