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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelStep    = "step"
	LabelStatus  = "status"
	LabelOutcome = "outcome"
	LabelTask    = "task"

	RebuildStatusSucceeded = "succeeded"
	RebuildStatusFailed    = "failed"
)

var (
	RebuildRequestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "placerec",
		Subsystem: "master",
		Name:      "rebuild_request_total",
	}, []string{LabelOutcome})
	RebuildTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "placerec",
		Subsystem: "master",
		Name:      "rebuild_total",
	}, []string{LabelStatus})
	RebuildStepSeconds = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "placerec",
		Subsystem: "master",
		Name:      "rebuild_step_seconds",
	}, []string{LabelStep})
	RebuildTotalSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "placerec",
		Subsystem: "master",
		Name:      "rebuild_total_seconds",
	})
	ScheduledTaskTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "placerec",
		Subsystem: "master",
		Name:      "scheduled_task_total",
	}, []string{LabelTask})
)
