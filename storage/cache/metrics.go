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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GetSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "placerec",
		Subsystem: "cache",
		Name:      "get_seconds",
	})
	SetSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "placerec",
		Subsystem: "cache",
		Name:      "set_seconds",
	})
	IncrHashSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "placerec",
		Subsystem: "cache",
		Name:      "incr_hash_seconds",
	})

	HitTimes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "placerec",
		Subsystem: "cache",
		Name:      "hit_times",
	})
	MissTimes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "placerec",
		Subsystem: "cache",
		Name:      "miss_times",
	})
	LockContendedTimes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "placerec",
		Subsystem: "cache",
		Name:      "lock_contended_times",
	})
	BuildSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "placerec",
		Subsystem: "cache",
		Name:      "build_seconds",
	}, []string{"artifact"})
)
