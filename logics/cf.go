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
	"context"
	"math"
	"slices"
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/common/heap"
	"github.com/placerec/placerec/common/parallel"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/dataset"
	"github.com/placerec/placerec/storage/cache"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// SparseRow is a row of the user-item matrix. Indices are sorted.
type SparseRow struct {
	Indices []int32
	Values  []float64
}

// Collaborative is the output of the collaborative filtering builder.
type Collaborative struct {
	UserIds []string
	ItemIds []string
	// Matrix holds the summed scores of each user.
	Matrix []SparseRow
	// Similarity is the user-user cosine similarity over mean-centered rows.
	Similarity [][]float64
}

// IsEmpty reports whether there is nothing to recommend from.
func (c *Collaborative) IsEmpty() bool {
	return c == nil || len(c.UserIds) == 0 || len(c.ItemIds) == 0
}

// BuildCollaborative builds the user-item matrix from scored interactions and
// computes user similarities block by block.
func BuildCollaborative(ctx context.Context, cfg config.CollaborativeConfig, interactions []dataset.Interaction) (*Collaborative, error) {
	start := time.Now()
	c := &Collaborative{}
	// index users and places
	userIndex := make(map[string]int32)
	itemIndex := make(map[string]int32)
	for _, interaction := range interactions {
		userIndex[interaction.UserId] = 0
		itemIndex[interaction.ItemId] = 0
	}
	c.UserIds = lo.Keys(userIndex)
	c.ItemIds = lo.Keys(itemIndex)
	slices.Sort(c.UserIds)
	slices.Sort(c.ItemIds)
	for i, userId := range c.UserIds {
		userIndex[userId] = int32(i)
	}
	for i, itemId := range c.ItemIds {
		itemIndex[itemId] = int32(i)
	}
	// sum scores
	sums := make([]map[int32]float64, len(c.UserIds))
	for i := range sums {
		sums[i] = make(map[int32]float64)
	}
	for _, interaction := range interactions {
		sums[userIndex[interaction.UserId]][itemIndex[interaction.ItemId]] += interaction.Score
	}
	c.Matrix = make([]SparseRow, len(sums))
	for i, sum := range sums {
		indices := lo.Keys(sum)
		slices.Sort(indices)
		c.Matrix[i] = SparseRow{
			Indices: indices,
			Values:  lo.Map(indices, func(j int32, _ int) float64 { return sum[j] }),
		}
	}
	if c.IsEmpty() {
		return c, nil
	}

	// center rows over observed entries
	centered := make([]SparseRow, len(c.Matrix))
	norms := make([]float64, len(c.Matrix))
	for i, row := range c.Matrix {
		values := slices.Clone(row.Values)
		var sum float64
		var count int
		for _, v := range values {
			if v != 0 {
				sum += v
				count++
			}
		}
		if count > 0 {
			mean := sum / float64(count)
			for j, v := range values {
				if v != 0 {
					values[j] = v - mean
				}
			}
		}
		centered[i] = SparseRow{Indices: row.Indices, Values: values}
		norms[i] = floats.Norm(values, 2)
	}

	// cosine similarity in blocks of rows
	n := len(c.UserIds)
	c.Similarity = make([][]float64, n)
	blocks := parallel.Blocks(n, cfg.BlockSize)
	numJobs := max(cfg.NumJobs, 1)
	buffers := make([][]float64, numJobs)
	for i := range buffers {
		buffers[i] = make([]float64, len(c.ItemIds))
	}
	err := parallel.Parallel(ctx, len(blocks), numJobs, func(workerId, jobId int) error {
		dense := buffers[workerId]
		for i := blocks[jobId][0]; i < blocks[jobId][1]; i++ {
			row := make([]float64, n)
			if norms[i] > 0 {
				for k, j := range centered[i].Indices {
					dense[j] = centered[i].Values[k]
				}
				for j := range centered {
					if norms[j] == 0 {
						continue
					}
					var dot float64
					for k, idx := range centered[j].Indices {
						dot += dense[idx] * centered[j].Values[k]
					}
					row[j] = dot / (norms[i] * norms[j])
				}
				for _, j := range centered[i].Indices {
					dense[j] = 0
				}
			}
			c.Similarity[i] = row
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("complete building collaborative data",
		zap.Int("n_users", n),
		zap.Int("n_items", len(c.ItemIds)),
		zap.Int("n_blocks", len(blocks)),
		zap.Duration("elapsed", time.Since(start)))
	return c, nil
}

// NumNeighbors returns max(min, ratio * number of users).
func (c *Collaborative) NumNeighbors(cfg config.CollaborativeConfig) int {
	return max(cfg.MinNeighbors, int(cfg.NeighborRatio*float64(len(c.UserIds))))
}

// UserBased scores places for a user from its k most similar users with
// positive similarity. The score of a place is the similarity-weighted mean of
// positive neighbor scores. An unknown user gets nothing.
func (c *Collaborative) UserBased(userId string, k, n int) []cache.Score {
	if c.IsEmpty() {
		return nil
	}
	u, found := slices.BinarySearch(c.UserIds, userId)
	if !found {
		return nil
	}
	neighbors := heap.NewTopKFilter[int, float64](k)
	for v, sim := range c.Similarity[u] {
		if v != u && sim > 0 && !math.IsNaN(sim) {
			neighbors.Push(v, sim)
		}
	}
	numerators := make(map[int32]float64)
	denominators := make(map[int32]float64)
	for _, neighbor := range neighbors.PopAll() {
		row := c.Matrix[neighbor.Value]
		for pos, j := range row.Indices {
			if r := row.Values[pos]; r > 0 {
				numerators[j] += neighbor.Weight * r
				denominators[j] += neighbor.Weight
			}
		}
	}
	scores := make(map[string]float64, len(numerators))
	for j, numerator := range numerators {
		scores[c.ItemIds[j]] = numerator / denominators[j]
	}
	return cache.TopScores(scores, n)
}

// Ratings returns the summed scores of a user.
func (c *Collaborative) Ratings(userId string) map[string]float64 {
	if c.IsEmpty() {
		return nil
	}
	u, found := slices.BinarySearch(c.UserIds, userId)
	if !found {
		return nil
	}
	row := c.Matrix[u]
	ratings := make(map[string]float64, len(row.Indices))
	for pos, j := range row.Indices {
		ratings[c.ItemIds[j]] = row.Values[pos]
	}
	return ratings
}
