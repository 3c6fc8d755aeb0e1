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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelTask   = "task"
	LabelStatus = "status"

	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusRetried   = "retried"
	StatusDropped   = "dropped"
)

var (
	TaskTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "placerec",
		Subsystem: "worker",
		Name:      "task_total",
	}, []string{LabelTask, LabelStatus})
	TaskSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "placerec",
		Subsystem: "worker",
		Name:      "task_seconds",
	}, []string{LabelTask})
)
