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

package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ServeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "placerec",
		Subsystem: "engine",
		Name:      "serve_seconds",
	})
	ServeBatchMissTimes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "placerec",
		Subsystem: "engine",
		Name:      "serve_batch_miss_times",
	})
	BoostUpdateTimes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "placerec",
		Subsystem: "engine",
		Name:      "boost_update_times",
	})
	GenerateUserBatchSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "placerec",
		Subsystem: "engine",
		Name:      "generate_user_batch_seconds",
	})
	GenerateBatchUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "placerec",
		Subsystem: "engine",
		Name:      "generate_batch_users",
	})
	GenerateBatchSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "placerec",
		Subsystem: "engine",
		Name:      "generate_batch_seconds",
	})
)
