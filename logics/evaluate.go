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
	"github.com/samber/lo"
)

// Precision is the fraction of the top k that is relevant.
func Precision(recommended []string, relevant mapset.Set[string], k int) float64 {
	if len(recommended) == 0 || k == 0 {
		return 0
	}
	return float64(hits(recommended, relevant, k)) / float64(k)
}

// Recall is the fraction of relevant places found in the top k.
func Recall(recommended []string, relevant mapset.Set[string], k int) float64 {
	if relevant.Cardinality() == 0 || k == 0 {
		return 0
	}
	return float64(hits(recommended, relevant, k)) / float64(relevant.Cardinality())
}

func F1(recommended []string, relevant mapset.Set[string], k int) float64 {
	precision := Precision(recommended, relevant, k)
	recall := Recall(recommended, relevant, k)
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

// AP is the average precision at k normalized by min(|relevant|, k).
func AP(recommended []string, relevant mapset.Set[string], k int) float64 {
	if relevant.Cardinality() == 0 || len(recommended) == 0 || k == 0 {
		return 0
	}
	var sum float64
	numHits := 0
	for i, itemId := range topK(recommended, k) {
		if relevant.Contains(itemId) {
			numHits++
			sum += float64(numHits) / float64(i+1)
		}
	}
	return sum / float64(min(relevant.Cardinality(), k))
}

// NDCG with binary relevance.
func NDCG(recommended []string, relevant mapset.Set[string], k int) float64 {
	var dcg float64
	for i, itemId := range topK(recommended, k) {
		if relevant.Contains(itemId) {
			dcg += 1 / math.Log2(float64(i+2))
		}
	}
	var idcg float64
	for i := 0; i < min(relevant.Cardinality(), k); i++ {
		idcg += 1 / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// HitRate is 1 if any relevant place is in the top k.
func HitRate(recommended []string, relevant mapset.Set[string], k int) float64 {
	if hits(recommended, relevant, k) > 0 {
		return 1
	}
	return 0
}

// Diversity is one minus the mean pairwise cosine similarity of the profiles
// of the top k. Fewer than two profiled places are fully diverse.
func Diversity(recommended []string, profiles map[string][]float64, k int) float64 {
	if len(recommended) < 2 || k < 2 {
		return 1
	}
	var vectors [][]float64
	for _, itemId := range topK(recommended, k) {
		if profile, ok := profiles[itemId]; ok {
			vectors = append(vectors, profile)
		}
	}
	if len(vectors) < 2 {
		return 1
	}
	var sum float64
	var pairs int
	for i := range vectors {
		for j := i + 1; j < len(vectors); j++ {
			sum += cosine(vectors[i], vectors[j])
			pairs++
		}
	}
	return 1 - sum/float64(pairs)
}

// Evaluation accumulates metrics over users.
type Evaluation struct {
	K           int
	Precision   float64
	Recall      float64
	F1          float64
	MAP         float64
	NDCG        float64
	HitRate     float64
	Diversity   float64
	NumUsers    int
	recommended mapset.Set[string]
}

func NewEvaluation(k int) *Evaluation {
	return &Evaluation{K: k, recommended: mapset.NewThreadUnsafeSet[string]()}
}

// Add scores the recommendations of one user.
func (e *Evaluation) Add(recommended []string, relevant mapset.Set[string], profiles map[string][]float64) {
	e.Precision += Precision(recommended, relevant, e.K)
	e.Recall += Recall(recommended, relevant, e.K)
	e.F1 += F1(recommended, relevant, e.K)
	e.MAP += AP(recommended, relevant, e.K)
	e.NDCG += NDCG(recommended, relevant, e.K)
	e.HitRate += HitRate(recommended, relevant, e.K)
	e.Diversity += Diversity(recommended, profiles, e.K)
	e.recommended.Append(topK(recommended, e.K)...)
	e.NumUsers++
}

// Result returns the mean of each metric and the catalog coverage.
func (e *Evaluation) Result(catalogSize int) map[string]float64 {
	result := map[string]float64{"catalog_coverage": 0}
	if catalogSize > 0 {
		result["catalog_coverage"] = float64(e.recommended.Cardinality()) / float64(catalogSize)
	}
	n := float64(max(e.NumUsers, 1))
	result["precision"] = e.Precision / n
	result["recall"] = e.Recall / n
	result["f1_score"] = e.F1 / n
	result["map"] = e.MAP / n
	result["ndcg"] = e.NDCG / n
	result["hit_rate"] = e.HitRate / n
	result["diversity"] = e.Diversity / n
	return result
}

func topK(recommended []string, k int) []string {
	return recommended[:min(k, len(recommended))]
}

func hits(recommended []string, relevant mapset.Set[string], k int) int {
	return lo.CountBy(topK(recommended, k), func(itemId string) bool {
		return relevant.Contains(itemId)
	})
}
