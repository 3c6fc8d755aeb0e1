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
	"github.com/placerec/placerec/common/heap"
	"github.com/samber/lo"
)

// Score is a scored place. Lists of scores are cached in descending order.
type Score struct {
	Id    string
	Score float64
}

// TopScores returns at most n entries of scores in descending order. Equal
// scores are ordered by ascending id. A negative n keeps every entry.
func TopScores(scores map[string]float64, n int) []Score {
	if n < 0 {
		n = len(scores)
	}
	filter := heap.NewTopKFilter[string, float64](n)
	for id, score := range scores {
		filter.Push(id, score)
	}
	return lo.Map(filter.PopAll(), func(elem heap.Elem[string, float64], _ int) Score {
		return Score{Id: elem.Value, Score: elem.Weight}
	})
}

// ScoreMap converts a list of scores into a map.
func ScoreMap(scores []Score) map[string]float64 {
	m := make(map[string]float64, len(scores))
	for _, score := range scores {
		m[score.Id] = score.Score
	}
	return m
}
