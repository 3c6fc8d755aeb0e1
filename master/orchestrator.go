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
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/engine"
	"github.com/placerec/placerec/protocol"
	"github.com/placerec/placerec/storage/cache"
	"go.uber.org/zap"
)

// States held by the global rebuild lock.
const (
	RebuildScheduled = "scheduled"
	RebuildRunning   = "running"
)

// Outcomes of a rebuild request.
const (
	RequestScheduled = "scheduled"
	RequestCoalesced = "coalesced"
	RequestDeferred  = "deferred"
)

// Orchestrator coalesces rebuild requests into global rebuilds. The global
// rebuild lock in the cache is the only record of a pending or running
// rebuild, so requests from any process agree on whether a rebuild is due.
type Orchestrator struct {
	Config      *config.Config
	Engine      *engine.Engine
	Queue       *protocol.Queue
	TaskMonitor *TaskMonitor
}

func NewOrchestrator(cfg *config.Config, eng *engine.Engine, queue *protocol.Queue) *Orchestrator {
	return &Orchestrator{
		Config:      cfg,
		Engine:      eng,
		Queue:       queue,
		TaskMonitor: NewTaskMonitor(),
	}
}

// RequestGlobalRebuild makes sure a global rebuild starts after this request.
// The first request takes the global lock and schedules rebuild_all after the
// coalescing window. Requests arriving before that rebuild starts are absorbed
// by it. Requests arriving while it runs may miss its snapshot, so they are
// retried after the retry delay.
func (o *Orchestrator) RequestGlobalRebuild(ctx context.Context) (string, error) {
	cacheClient := o.Engine.CacheClient
	acquired, err := cacheClient.SetNX(ctx, cache.GlobalRebuildLockKey, []byte(RebuildScheduled), o.Config.Rebuild.GlobalLockTTL)
	if err != nil {
		return "", errors.Trace(err)
	}
	if acquired {
		task, err := protocol.NewTask(protocol.TaskRebuildAll, nil)
		if err == nil {
			err = o.Queue.Enqueue(ctx, task, time.Now().Add(o.Config.Rebuild.CoalesceWindow))
		}
		if err != nil {
			// nothing would release the lock otherwise
			if err := cacheClient.Delete(context.WithoutCancel(ctx), cache.GlobalRebuildLockKey); err != nil {
				log.Logger().Error("failed to release global rebuild lock", zap.Error(err))
			}
			return "", errors.Trace(err)
		}
		RebuildRequestTotal.WithLabelValues(RequestScheduled).Inc()
		log.Logger().Info("global rebuild scheduled", zap.Duration("delay", o.Config.Rebuild.CoalesceWindow))
		return RequestScheduled, nil
	}

	state, err := cacheClient.Get(ctx, cache.GlobalRebuildLockKey)
	if err != nil && !errors.Is(err, errors.NotFound) {
		return "", errors.Trace(err)
	}
	if string(state) == RebuildScheduled {
		RebuildRequestTotal.WithLabelValues(RequestCoalesced).Inc()
		log.Logger().Debug("global rebuild already scheduled")
		return RequestCoalesced, nil
	}
	task, err := protocol.NewTask(protocol.TaskRequestGlobalRebuild, nil)
	if err != nil {
		return "", errors.Trace(err)
	}
	if err = o.Queue.Enqueue(ctx, task, time.Now().Add(o.Config.Rebuild.RetryDelay)); err != nil {
		return "", errors.Trace(err)
	}
	RebuildRequestTotal.WithLabelValues(RequestDeferred).Inc()
	log.Logger().Info("global rebuild in progress, retry request later", zap.Duration("delay", o.Config.Rebuild.RetryDelay))
	return RequestDeferred, nil
}

type rebuildStep struct {
	name string
	run  func(context.Context) error
}

func step[T any](name string, build func(context.Context, bool) (T, error)) rebuildStep {
	return rebuildStep{name: name, run: func(ctx context.Context) error {
		_, err := build(ctx, true)
		return err
	}}
}

// RebuildAll rebuilds the cleaned dataset, the collaborative filtering data,
// the item profiles and the popularity ranking in order. The global lock is
// released however the rebuild ends. A failed rebuild is not retried.
func (o *Orchestrator) RebuildAll(ctx context.Context) error {
	cacheClient := o.Engine.CacheClient
	if err := cacheClient.Set(ctx, cache.GlobalRebuildLockKey, []byte(RebuildRunning), o.Config.Rebuild.GlobalLockTTL); err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err := cacheClient.Delete(context.WithoutCancel(ctx), cache.GlobalRebuildLockKey); err != nil {
			log.Logger().Error("failed to release global rebuild lock", zap.Error(err))
		}
	}()

	start := time.Now()
	log.Logger().Info("start global rebuild")
	steps := []rebuildStep{
		step(TaskLoadDataset, o.Engine.CleanedData),
		step(TaskCollaborative, o.Engine.CollaborativeData),
		step(TaskItemProfiles, o.Engine.ItemProfiles),
		step(TaskPopularity, o.Engine.Popularity),
	}
	for _, s := range steps {
		tracker := o.TaskMonitor.NewTaskTracker(s.name)
		tracker.Start(1)
		stepStart := time.Now()
		if err := s.run(ctx); err != nil {
			tracker.Fail(err)
			RebuildTotal.WithLabelValues(RebuildStatusFailed).Inc()
			log.Logger().Error("global rebuild failed", zap.String("step", s.name), zap.Error(err))
			return errors.Annotatef(err, "rebuild step %s", s.name)
		}
		tracker.Finish()
		RebuildStepSeconds.WithLabelValues(s.name).Set(time.Since(stepStart).Seconds())
	}
	RebuildTotal.WithLabelValues(RebuildStatusSucceeded).Inc()
	RebuildTotalSeconds.Set(time.Since(start).Seconds())
	log.Logger().Info("complete global rebuild", zap.Duration("used_time", time.Since(start)))
	return nil
}
