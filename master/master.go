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

	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/engine"
	"github.com/placerec/placerec/protocol"
	"go.uber.org/zap"
)

// Master schedules periodic work and owns the rebuild orchestrator. Scheduled
// tasks run on workers.
type Master struct {
	*Orchestrator
}

// NewMaster creates a master node.
func NewMaster(cfg *config.Config, eng *engine.Engine, queue *protocol.Queue) *Master {
	return &Master{Orchestrator: NewOrchestrator(cfg, eng, queue)}
}

// RunTasksLoop requests a global rebuild every rebuild period and batch
// generation every batch period until ctx is done. A rebuild is requested at
// startup so a fresh deployment warms its caches.
func (m *Master) RunTasksLoop(ctx context.Context) {
	rebuildTicker := time.NewTicker(m.Config.Rebuild.RebuildPeriod)
	defer rebuildTicker.Stop()
	batchTicker := time.NewTicker(m.Config.Rebuild.BatchPeriod)
	defer batchTicker.Stop()

	m.schedule(ctx, protocol.TaskRequestGlobalRebuild)
	for {
		select {
		case <-ctx.Done():
			return
		case <-rebuildTicker.C:
			m.schedule(ctx, protocol.TaskRequestGlobalRebuild)
		case <-batchTicker.C:
			m.schedule(ctx, protocol.TaskGenerateBatch)
		}
	}
}

func (m *Master) schedule(ctx context.Context, name string) {
	task, err := protocol.NewTask(name, nil)
	if err == nil {
		err = m.Queue.Enqueue(ctx, task, time.Now())
	}
	if err != nil {
		log.Logger().Error("failed to schedule task", zap.String("task", name), zap.Error(err))
		return
	}
	ScheduledTaskTotal.WithLabelValues(name).Inc()
	log.Logger().Debug("schedule task", zap.String("task", name))
}
