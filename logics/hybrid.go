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
	"math"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/storage/cache"
)

// Candidates are the ranked lists of the three models for one user.
type Candidates struct {
	UserBased  []cache.Score
	Content    []cache.Score
	Popularity []cache.Score
}

// AdjustWeights renormalizes weights over the models that returned results.
// If every surviving model has zero weight they share the weight equally. It
// reports false when no model returned results.
func AdjustWeights(weights config.Weights, candidates Candidates) (config.Weights, bool) {
	lists := [][]cache.Score{candidates.UserBased, candidates.Content, candidates.Popularity}
	base := []float64{weights.UserBased, weights.Content, weights.Popularity}
	adjusted := make([]float64, len(base))
	var total float64
	var valid int
	for i, list := range lists {
		if len(list) > 0 {
			total += base[i]
			valid++
		}
	}
	if valid == 0 {
		return config.Weights{}, false
	}
	for i, list := range lists {
		if len(list) == 0 {
			continue
		}
		if total > 0 {
			adjusted[i] = base[i] / total
		} else {
			adjusted[i] = 1 / float64(valid)
		}
	}
	return config.Weights{UserBased: adjusted[0], Content: adjusted[1], Popularity: adjusted[2]}, true
}

// RankDecay scores the i-th entry of a ranked list with alpha^i and normalizes
// the scores to sum to one.
func RankDecay(scores []cache.Score, alpha float64) map[string]float64 {
	decayed := make(map[string]float64, len(scores))
	var total float64
	for i, score := range scores {
		if _, exist := decayed[score.Id]; exist {
			continue
		}
		decayed[score.Id] = math.Pow(alpha, float64(i))
		total += decayed[score.Id]
	}
	if total <= 0 {
		return map[string]float64{}
	}
	for id := range decayed {
		decayed[id] /= total
	}
	return decayed
}

// Fuse combines the candidates of the models with rank decay and the adjusted
// weights. The result is empty if no model returned results.
func Fuse(weights config.Weights, alpha float64, candidates Candidates) map[string]float64 {
	adjusted, ok := AdjustWeights(weights, candidates)
	if !ok {
		return map[string]float64{}
	}
	userBased := RankDecay(candidates.UserBased, alpha)
	content := RankDecay(candidates.Content, alpha)
	popularity := RankDecay(candidates.Popularity, alpha)
	union := mapset.NewThreadUnsafeSet[string]()
	for _, m := range []map[string]float64{userBased, content, popularity} {
		for id := range m {
			union.Add(id)
		}
	}
	fused := make(map[string]float64, union.Cardinality())
	for _, id := range union.ToSlice() {
		fused[id] = adjusted.UserBased*userBased[id] +
			adjusted.Content*content[id] +
			adjusted.Popularity*popularity[id]
	}
	return fused
}
