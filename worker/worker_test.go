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

package worker

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"testing/synctest"
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/engine"
	"github.com/placerec/placerec/logics"
	"github.com/placerec/placerec/master"
	"github.com/placerec/placerec/protocol"
	"github.com/placerec/placerec/storage/cache"
	"github.com/placerec/placerec/storage/data"
	"github.com/placerec/placerec/storage/message"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Rebuild.CoalesceWindow = 0
	cfg.Collaborative.NumJobs = 2
	cfg.Worker.NumJobs = 2
	cfg.Worker.MaxAttempts = 3
	cfg.Worker.RetryInterval = time.Second
	cfg.Worker.PollInterval = time.Second
	return cfg
}

// newQueueWorker creates a worker without stores for handler tests.
func newQueueWorker(cfg *config.Config) *Worker {
	queue := protocol.NewQueue(message.NewMemory())
	return NewWorker(cfg, queue, nil, nil, "test")
}

func newWorker(t *testing.T) (*Worker, *protocol.Notifier) {
	cfg := newTestConfig()
	cacheClient, err := cache.Open("memory://", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheClient.Close() })
	dataClient, err := data.Open("sqlite://"+filepath.Join(t.TempDir(), "data.db"), "")
	require.NoError(t, err)
	require.NoError(t, dataClient.Init())
	t.Cleanup(func() { _ = dataClient.Close() })
	queue := protocol.NewQueue(message.NewMemory())
	extractor, err := logics.NewLocalExtractor(cfg.Content.Dimension)
	require.NoError(t, err)
	eng := engine.NewEngine(cfg, cacheClient, dataClient, queue, extractor)
	w := NewWorker(cfg, queue, eng, master.NewOrchestrator(cfg, eng, queue), "test")
	notifier := protocol.NewNotifier(dataClient, protocol.NewDispatcher(queue), cfg.Interaction)
	return w, notifier
}

func TestRetry(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := newQueueWorker(newTestConfig())
		var calls atomic.Int32
		var attempts []time.Time
		w.Handle("flaky", true, func(context.Context, protocol.Task) error {
			attempts = append(attempts, time.Now())
			if calls.Add(1) < 3 {
				return errors.New("temporary failure")
			}
			return nil
		})
		task, err := protocol.NewTask("flaky", nil)
		require.NoError(t, err)
		require.NoError(t, w.Queue.Enqueue(context.Background(), task, time.Now()))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- w.Serve(ctx) }()
		time.Sleep(time.Minute)
		synctest.Wait()
		cancel()
		assert.NoError(t, <-done)

		assert.Equal(t, int32(3), calls.Load())
		if assert.Len(t, attempts, 3) {
			// the delay doubles with every attempt
			assert.GreaterOrEqual(t, attempts[1].Sub(attempts[0]), time.Second)
			assert.GreaterOrEqual(t, attempts[2].Sub(attempts[1]), 2*time.Second)
		}
	})
}

func TestRetryExhausted(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		w := newQueueWorker(newTestConfig())
		var calls, permanent, once atomic.Int32
		w.Handle("broken", true, func(context.Context, protocol.Task) error {
			calls.Add(1)
			return errors.New("always fails")
		})
		w.Handle("malformed", true, func(_ context.Context, task protocol.Task) error {
			permanent.Add(1)
			var payload protocol.UserPayload
			return decode(task, &payload)
		})
		w.Handle("once", false, func(context.Context, protocol.Task) error {
			once.Add(1)
			return errors.New("not retried")
		})
		for _, name := range []string{"broken", "malformed", "once", "unknown"} {
			task, err := protocol.NewTask(name, nil)
			require.NoError(t, err)
			require.NoError(t, w.Queue.Enqueue(context.Background(), task, time.Now()))
		}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error)
		go func() { done <- w.Serve(ctx) }()
		time.Sleep(time.Hour)
		synctest.Wait()
		cancel()
		assert.NoError(t, <-done)

		assert.Equal(t, int32(w.Config.Worker.MaxAttempts), calls.Load())
		assert.Equal(t, int32(1), permanent.Load())
		assert.Equal(t, int32(1), once.Load())
	})
}

func TestRetryDelay(t *testing.T) {
	w := newQueueWorker(newTestConfig())
	assert.Equal(t, time.Second, w.retryDelay(1))
	assert.Equal(t, 2*time.Second, w.retryDelay(2))
	assert.Equal(t, 4*time.Second, w.retryDelay(3))
}

func TestCoalescedItemEdits(t *testing.T) {
	ctx := context.Background()
	w, notifier := newWorker(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Engine.DataClient.BatchInsertItems(ctx, []data.Item{{ItemId: fmt.Sprintf("p%d", i), Description: "beach"}}))
	}
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)

	before := testutil.ToFloat64(master.RebuildTotal.WithLabelValues(master.RebuildStatusSucceeded))
	require.NoError(t, notifier.SaveItem(ctx, data.Item{ItemId: "p1", Description: "quiet beach"}))
	require.NoError(t, notifier.SaveItem(ctx, data.Item{ItemId: "p2", Description: "busy beach"}))
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	// 2 invalidations, 2 requests and 1 rebuild
	assert.Equal(t, 5, n)
	assert.Equal(t, before+1, testutil.ToFloat64(master.RebuildTotal.WithLabelValues(master.RebuildStatusSucceeded)))

	ds, err := w.Engine.CleanedData(ctx, false)
	require.NoError(t, err)
	assert.Len(t, ds.Items, 3)
	_, err = w.Engine.CacheClient.Get(ctx, cache.GlobalRebuildLockKey)
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestInteractionBoost(t *testing.T) {
	ctx := context.Background()
	w, notifier := newWorker(t)
	require.NoError(t, cache.Store(ctx, w.Engine.CacheClient, cache.SimilarItemsKey("x"),
		[]cache.Score{{Id: "a", Score: 0.9}, {Id: "b", Score: 0.5}, {Id: "c", Score: 0.1}}, time.Hour))

	like := &data.Interaction{Kind: data.Like, UserId: "u", ItemId: "x"}
	require.NoError(t, notifier.SaveInteraction(ctx, like))
	_, err := w.RunOnce(ctx)
	require.NoError(t, err)
	boosts, err := w.Engine.CacheClient.GetHashFloats(ctx, cache.BoostScoresKey("u"))
	require.NoError(t, err)
	assert.InDeltaMapValues(t, map[string]float64{"a": 0.06, "b": 0.06, "c": 0.06}, boosts, 1e-12)

	// deleting the like takes the boost back
	require.NoError(t, notifier.DeleteInteraction(ctx, like.Id))
	_, err = w.RunOnce(ctx)
	require.NoError(t, err)
	boosts, err = w.Engine.CacheClient.GetHashFloats(ctx, cache.BoostScoresKey("u"))
	require.NoError(t, err)
	assert.InDeltaMapValues(t, map[string]float64{"a": 0, "b": 0, "c": 0}, boosts, 1e-12)
}

func TestGenerateUserBatchTask(t *testing.T) {
	ctx := context.Background()
	w, _ := newWorker(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, w.Engine.DataClient.BatchInsertItems(ctx, []data.Item{{ItemId: fmt.Sprintf("p%d", i), VisitCount: i}}))
	}
	// a batch miss asks a worker to fill the batch layer
	assert.Len(t, w.Engine.Recommend(ctx, "u", 2), 2)
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	scores, ok, err := cache.Load[map[string]float64](ctx, w.Engine.CacheClient, cache.BatchRecommendKey("u"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, scores, 3)
}

func TestGenerateBatchTask(t *testing.T) {
	ctx := context.Background()
	w, _ := newWorker(t)
	task, err := protocol.NewTask(protocol.TaskGenerateBatch, nil)
	require.NoError(t, err)
	require.NoError(t, w.Queue.Enqueue(ctx, task, time.Now()))
	n, err := w.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	// progress shows up next to the rebuild steps
	progress := w.Orchestrator.TaskMonitor.Tasks[master.TaskGenerateBatch]
	if assert.NotNil(t, progress) {
		assert.Equal(t, master.TaskStatusComplete, progress.Status)
	}
}
