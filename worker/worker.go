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
	"io"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/engine"
	"github.com/placerec/placerec/master"
	"github.com/placerec/placerec/protocol"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Handler executes a task.
type Handler func(ctx context.Context, task protocol.Task) error

type handler struct {
	run   Handler
	retry bool
}

// Worker consumes the task queue. Failed tasks are pushed back with an
// exponential delay until they run out of attempts.
type Worker struct {
	Config       *config.Config
	Queue        *protocol.Queue
	Engine       *engine.Engine
	Orchestrator *master.Orchestrator
	WorkerName   string

	handlers map[string]handler
	executed atomic.Int64
}

// NewWorker creates a worker that executes every placerec task.
func NewWorker(cfg *config.Config, queue *protocol.Queue, eng *engine.Engine, orchestrator *master.Orchestrator, workerName string) *Worker {
	w := &Worker{
		Config:       cfg,
		Queue:        queue,
		Engine:       eng,
		Orchestrator: orchestrator,
		WorkerName:   workerName,
		handlers:     make(map[string]handler),
	}
	w.Handle(protocol.TaskRequestGlobalRebuild, true, func(ctx context.Context, _ protocol.Task) error {
		_, err := w.Orchestrator.RequestGlobalRebuild(ctx)
		return err
	})
	// a failed rebuild waits for the next trigger
	w.Handle(protocol.TaskRebuildAll, false, func(ctx context.Context, _ protocol.Task) error {
		return w.Orchestrator.RebuildAll(ctx)
	})
	w.Handle(protocol.TaskInvalidateSimilar, true, func(ctx context.Context, task protocol.Task) error {
		var payload protocol.ItemPayload
		if err := decode(task, &payload); err != nil {
			return err
		}
		return w.Engine.InvalidateSimilar(ctx, payload.ItemId)
	})
	w.Handle(protocol.TaskApplyInteraction, true, func(ctx context.Context, task protocol.Task) error {
		var payload protocol.InteractionPayload
		if err := decode(task, &payload); err != nil {
			return err
		}
		return w.Engine.ApplyInteraction(ctx, payload)
	})
	w.Handle(protocol.TaskGenerateBatch, false, func(ctx context.Context, _ protocol.Task) error {
		return w.Engine.GenerateBatch(ctx, w.Orchestrator.TaskMonitor.NewTaskTracker(master.TaskGenerateBatch))
	})
	w.Handle(protocol.TaskGenerateUserBatch, true, func(ctx context.Context, task protocol.Task) error {
		var payload protocol.UserPayload
		if err := decode(task, &payload); err != nil {
			return err
		}
		_, err := w.Engine.GenerateUserBatch(ctx, payload.UserId)
		return err
	})
	return w
}

// Handle registers the handler of a task. Tasks without retry are dropped
// after the first failure.
func (w *Worker) Handle(name string, retry bool, run Handler) {
	w.handlers[name] = handler{run: run, retry: retry}
}

// decode marks malformed payloads as not retryable.
func decode(task protocol.Task, v any) error {
	if err := task.Decode(v); err != nil {
		return errors.NewNotValid(err, "payload of task "+task.Name)
	}
	return nil
}

// Execute runs a task and schedules a retry if it fails.
func (w *Worker) Execute(ctx context.Context, task protocol.Task) {
	h, ok := w.handlers[task.Name]
	if !ok {
		TaskTotal.WithLabelValues(task.Name, StatusDropped).Inc()
		log.Logger().Error("drop unknown task", zap.String("task", task.Name))
		return
	}
	logger := log.TaskLogger(task.Name, w.WorkerName)
	start := time.Now()
	err := h.run(ctx, task)
	TaskSeconds.WithLabelValues(task.Name).Observe(time.Since(start).Seconds())
	w.executed.Add(1)
	if err == nil {
		TaskTotal.WithLabelValues(task.Name, StatusSucceeded).Inc()
		logger.Debug("task succeeded", zap.Duration("used_time", time.Since(start)))
		return
	}
	if !h.retry || errors.Is(err, errors.NotValid) || task.Attempt+1 >= w.Config.Worker.MaxAttempts {
		TaskTotal.WithLabelValues(task.Name, StatusFailed).Inc()
		logger.Error("task failed", zap.Uint("attempt", task.Attempt), zap.Error(err))
		return
	}
	task.Attempt++
	delay := w.retryDelay(task.Attempt)
	if err := w.Queue.Enqueue(context.WithoutCancel(ctx), task, time.Now().Add(delay)); err != nil {
		TaskTotal.WithLabelValues(task.Name, StatusFailed).Inc()
		logger.Error("failed to retry task", zap.Error(err))
		return
	}
	TaskTotal.WithLabelValues(task.Name, StatusRetried).Inc()
	logger.Warn("task failed, retry later",
		zap.Uint("attempt", task.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err))
}

// retryDelay doubles the retry interval with every attempt.
func (w *Worker) retryDelay(attempt uint) time.Duration {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     w.Config.Worker.RetryInterval,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         time.Hour,
	}
	b.Reset()
	var delay time.Duration
	for i := uint(0); i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

// RunOnce executes tasks until none is due and returns the number executed.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	var n int
	for {
		if err := ctx.Err(); err != nil {
			return n, errors.Trace(err)
		}
		task, err := w.Queue.Dequeue(ctx)
		if err == io.EOF {
			return n, nil
		} else if err != nil {
			return n, errors.Trace(err)
		}
		w.Execute(ctx, task)
		n++
	}
}

// Serve runs NumJobs consumers until ctx is done. Idle consumers poll the
// queue every PollInterval.
func (w *Worker) Serve(ctx context.Context) error {
	log.Logger().Info("start worker",
		zap.String("worker_name", w.WorkerName),
		zap.Int("n_jobs", w.Config.Worker.NumJobs))
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.Config.Worker.NumJobs; i++ {
		g.Go(func() error {
			for {
				if _, err := w.RunOnce(ctx); err != nil {
					if ctx.Err() != nil {
						return nil
					}
					log.Logger().Error("failed to consume task queue", zap.Error(err))
				}
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(w.Config.Worker.PollInterval):
				}
			}
		})
	}
	return g.Wait()
}

// Executed returns the number of tasks executed by this worker.
func (w *Worker) Executed() int64 {
	return w.executed.Load()
}
