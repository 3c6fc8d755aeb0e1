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

package master

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/engine"
	"github.com/placerec/placerec/protocol"
	"github.com/placerec/placerec/storage/cache"
	"github.com/placerec/placerec/storage/data"
	"github.com/placerec/placerec/storage/message"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockObserver records the global lock state whenever profiles are built.
type lockObserver struct {
	cacheClient cache.Database
	states      []string
	err         error
}

func (o *lockObserver) Extract(ctx context.Context, texts []string) ([][]float64, error) {
	state, err := o.cacheClient.Get(ctx, cache.GlobalRebuildLockKey)
	if err != nil {
		return nil, err
	}
	o.states = append(o.states, string(state))
	if o.err != nil {
		return nil, o.err
	}
	return lo.Map(texts, func(string, int) []float64 { return []float64{1, 0} }), nil
}

func newTestConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Rebuild.CoalesceWindow = 0
	cfg.Rebuild.RetryDelay = 0
	cfg.Collaborative.NumJobs = 2
	return cfg
}

func newOrchestrator(t *testing.T) (*Orchestrator, *lockObserver) {
	cfg := newTestConfig()
	cacheClient, err := cache.Open("memory://", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cacheClient.Close() })
	dataClient, err := data.Open("sqlite://"+filepath.Join(t.TempDir(), "data.db"), "")
	require.NoError(t, err)
	require.NoError(t, dataClient.Init())
	t.Cleanup(func() { _ = dataClient.Close() })
	queueClient, err := message.Open("memory://", "")
	require.NoError(t, err)
	queue := protocol.NewQueue(queueClient)
	observer := &lockObserver{cacheClient: cacheClient}
	eng := engine.NewEngine(cfg, cacheClient, dataClient, queue, observer)
	return NewOrchestrator(cfg, eng, queue), observer
}

func insertData(t *testing.T, o *Orchestrator) {
	ctx := context.Background()
	var items []data.Item
	for i := 0; i < 5; i++ {
		items = append(items, data.Item{ItemId: fmt.Sprintf("p%d", i), Description: "museum", VisitCount: i})
	}
	require.NoError(t, o.Engine.DataClient.BatchInsertItems(ctx, items))
	require.NoError(t, o.Engine.DataClient.BatchInsertUsers(ctx, []data.User{{UserId: "u1"}, {UserId: "u2"}}))
	require.NoError(t, o.Engine.DataClient.BatchInsertInteractions(ctx, []data.Interaction{
		{Kind: data.Like, UserId: "u1", ItemId: "p1"},
		{Kind: data.Like, UserId: "u2", ItemId: "p1"},
		{Kind: data.View, UserId: "u2", ItemId: "p2"},
	}))
}

func drain(t *testing.T, queue *protocol.Queue) []string {
	var names []string
	for {
		task, err := queue.Dequeue(context.Background())
		if err == io.EOF {
			return names
		}
		require.NoError(t, err)
		names = append(names, task.Name)
	}
}

func TestRequestGlobalRebuildCoalesces(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	dispatcher := protocol.NewDispatcher(o.Queue)
	require.NoError(t, dispatcher.Publish(ctx, protocol.ItemChanged{ItemId: "p1"}))
	require.NoError(t, dispatcher.Publish(ctx, protocol.ItemChanged{ItemId: "p2"}))
	tasks := drain(t, o.Queue)
	assert.Equal(t, 2, lo.Count(tasks, protocol.TaskRequestGlobalRebuild))

	var outcomes []string
	for range 2 {
		outcome, err := o.RequestGlobalRebuild(ctx)
		require.NoError(t, err)
		outcomes = append(outcomes, outcome)
	}
	assert.Equal(t, []string{RequestScheduled, RequestCoalesced}, outcomes)
	assert.Equal(t, []string{protocol.TaskRebuildAll}, drain(t, o.Queue))
	state, err := o.Engine.CacheClient.Get(ctx, cache.GlobalRebuildLockKey)
	require.NoError(t, err)
	assert.Equal(t, RebuildScheduled, string(state))
}

func TestRequestGlobalRebuildWhileRunning(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	require.NoError(t, o.Engine.CacheClient.Set(ctx, cache.GlobalRebuildLockKey, []byte(RebuildRunning), time.Minute))
	outcome, err := o.RequestGlobalRebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, RequestDeferred, outcome)
	assert.Equal(t, []string{protocol.TaskRequestGlobalRebuild}, drain(t, o.Queue))

	// the lock expires with its owner
	require.NoError(t, o.Engine.CacheClient.Delete(ctx, cache.GlobalRebuildLockKey))
	outcome, err = o.RequestGlobalRebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, RequestScheduled, outcome)
}

func TestRequestGlobalRebuildDelay(t *testing.T) {
	ctx := context.Background()
	o, _ := newOrchestrator(t)
	o.Config.Rebuild.CoalesceWindow = time.Hour
	outcome, err := o.RequestGlobalRebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, RequestScheduled, outcome)
	// not due before the coalescing window ends
	assert.Empty(t, drain(t, o.Queue))
}

func TestRebuildAll(t *testing.T) {
	ctx := context.Background()
	o, observer := newOrchestrator(t)
	insertData(t, o)
	_, err := o.RequestGlobalRebuild(ctx)
	require.NoError(t, err)
	require.NoError(t, o.RebuildAll(ctx))

	assert.Equal(t, []string{RebuildRunning}, observer.states)
	for _, key := range []string{cache.CleanedDataKey, cache.CollaborativeDataKey, cache.ItemProfilesKey, cache.PopularityKey} {
		_, err = o.Engine.CacheClient.Get(ctx, key)
		assert.NoError(t, err, key)
	}
	_, err = o.Engine.CacheClient.Get(ctx, cache.GlobalRebuildLockKey)
	assert.True(t, errors.Is(err, errors.NotFound))
	for _, name := range RebuildSteps {
		assert.Equal(t, TaskStatusComplete, o.TaskMonitor.Tasks[name].Status, name)
	}

	// rebuilt artifacts reflect new data
	require.NoError(t, o.Engine.DataClient.BatchInsertItems(ctx, []data.Item{{ItemId: "p5", Description: "museum"}}))
	require.NoError(t, o.RebuildAll(ctx))
	profiles, err := o.Engine.ItemProfiles(ctx, false)
	require.NoError(t, err)
	assert.Contains(t, profiles.ItemIds, "p5")
}

func TestRebuildAllFailure(t *testing.T) {
	ctx := context.Background()
	o, observer := newOrchestrator(t)
	insertData(t, o)
	observer.err = errors.New("extractor unavailable")
	assert.Error(t, o.RebuildAll(ctx))

	_, err := o.Engine.CacheClient.Get(ctx, cache.GlobalRebuildLockKey)
	assert.True(t, errors.Is(err, errors.NotFound))
	assert.Equal(t, TaskStatusComplete, o.TaskMonitor.Tasks[TaskCollaborative].Status)
	assert.Equal(t, TaskStatusFailed, o.TaskMonitor.Tasks[TaskItemProfiles].Status)
	assert.Equal(t, TaskStatusPending, o.TaskMonitor.Tasks[TaskPopularity].Status)
	// the next request schedules a new rebuild
	outcome, err := o.RequestGlobalRebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, RequestScheduled, outcome)
}

func TestRunTasksLoop(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		cfg := newTestConfig()
		queue := protocol.NewQueue(message.NewMemory())
		m := NewMaster(cfg, engine.NewEngine(cfg, cache.NoDatabase{}, data.NoDatabase{}, queue, nil), queue)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			m.RunTasksLoop(ctx)
			close(done)
		}()
		synctest.Wait()
		assert.Equal(t, []string{protocol.TaskRequestGlobalRebuild}, drain(t, queue))

		time.Sleep(cfg.Rebuild.BatchPeriod)
		synctest.Wait()
		tasks := drain(t, queue)
		assert.Equal(t, int(cfg.Rebuild.BatchPeriod/cfg.Rebuild.RebuildPeriod), lo.Count(tasks, protocol.TaskRequestGlobalRebuild))
		assert.Equal(t, 1, lo.Count(tasks, protocol.TaskGenerateBatch))

		cancel()
		<-done
	})
}
