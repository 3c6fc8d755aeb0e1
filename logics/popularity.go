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

package logics

import (
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/dataset"
	"github.com/placerec/placerec/storage/cache"
	"gonum.org/v1/gonum/floats"
)

// BuildPopularity ranks every place by the weighted sum of min-max normalized
// rating, review count, visit count, like count and share count.
func BuildPopularity(cfg config.PopularityConfig, items []dataset.Item) []cache.Score {
	if len(items) == 0 {
		return nil
	}
	signals := []struct {
		weight float64
		value  func(dataset.Item) float64
	}{
		{cfg.Rating, func(item dataset.Item) float64 { return item.AverageRating }},
		{cfg.Reviews, func(item dataset.Item) float64 { return float64(item.TotalReviews) }},
		{cfg.Visits, func(item dataset.Item) float64 { return float64(item.VisitCount) }},
		{cfg.Likes, func(item dataset.Item) float64 { return float64(item.Likes) }},
		{cfg.Shares, func(item dataset.Item) float64 { return float64(item.Shares) }},
	}
	totals := make([]float64, len(items))
	column := make([]float64, len(items))
	for _, signal := range signals {
		for i, item := range items {
			column[i] = signal.value(item)
		}
		floats.AddScaled(totals, signal.weight, MinMaxScale(column))
	}
	scores := make(map[string]float64, len(items))
	for i, item := range items {
		scores[item.ItemId] = totals[i]
	}
	return cache.TopScores(scores, -1)
}

// MinMaxScale maps values into [0, 1]. Constant values map to 0.5.
func MinMaxScale(values []float64) []float64 {
	scaled := make([]float64, len(values))
	if len(values) == 0 {
		return scaled
	}
	lo, hi := floats.Min(values), floats.Max(values)
	for i, v := range values {
		if hi == lo {
			scaled[i] = 0.5
		} else {
			scaled[i] = (v - lo) / (hi - lo)
		}
	}
	return scaled
}
