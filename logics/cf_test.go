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
	"testing"

	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/dataset"
	"github.com/placerec/placerec/storage/cache"
	"github.com/placerec/placerec/storage/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func newInteractions() []dataset.Interaction {
	return []dataset.Interaction{
		{UserId: "u1", ItemId: "a", Kind: data.Review, Score: 1},
		{UserId: "u1", ItemId: "b", Kind: data.Like, Score: 0.6},
		{UserId: "u2", ItemId: "a", Kind: data.Review, Score: 1},
		{UserId: "u2", ItemId: "b", Kind: data.View, Score: 0.3},
		{UserId: "u2", ItemId: "b", Kind: data.View, Score: 0.3},
		{UserId: "u2", ItemId: "c", Kind: data.View, Score: 0.3},
		{UserId: "u3", ItemId: "c", Kind: data.Review, Score: 1},
	}
}

func TestBuildCollaborative(t *testing.T) {
	cfg := config.GetDefaultConfig().Collaborative
	c, err := BuildCollaborative(context.Background(), cfg, newInteractions())
	require.NoError(t, err)
	assert.False(t, c.IsEmpty())
	assert.Equal(t, []string{"u1", "u2", "u3"}, c.UserIds)
	assert.Equal(t, []string{"a", "b", "c"}, c.ItemIds)
	// views of the same pair are summed
	assert.Equal(t, map[string]float64{"a": 1, "b": 0.6, "c": 0.3}, c.Ratings("u2"))
	assert.Nil(t, c.Ratings("u4"))

	// symmetric with unit diagonal
	for i := range c.UserIds {
		for j := range c.UserIds {
			assert.InDelta(t, c.Similarity[i][j], c.Similarity[j][i], 1e-9)
		}
	}
	assert.InDelta(t, 1, c.Similarity[0][0], 1e-9)
	assert.Greater(t, c.Similarity[0][1], 0.0)
	// a single observed score centers to zero
	assert.Equal(t, []float64{0, 0, 0}, c.Similarity[2])
	assert.Equal(t, 10, c.NumNeighbors(cfg))
}

func TestBuildCollaborativeCentering(t *testing.T) {
	interactions := []dataset.Interaction{
		{UserId: "u1", ItemId: "a", Kind: data.Review, Score: 1},
		{UserId: "u1", ItemId: "b", Kind: data.Like, Score: 0.6},
		{UserId: "u1", ItemId: "c", Kind: data.View, Score: 0.3},
		{UserId: "u2", ItemId: "a", Kind: data.View, Score: 0.3},
		{UserId: "u2", ItemId: "b", Kind: data.Review, Score: 1},
		{UserId: "u2", ItemId: "d", Kind: data.Like, Score: 0.6},
		{UserId: "u3", ItemId: "b", Kind: data.Like, Score: 0.6},
		{UserId: "u3", ItemId: "c", Kind: data.Review, Score: 0.9},
	}
	c, err := BuildCollaborative(context.Background(), config.GetDefaultConfig().Collaborative, interactions)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c", "d"}, c.ItemIds)

	// means are taken over observed places only, unobserved places stay zero
	centered := [][]float64{
		{1 - 1.9/3, 0.6 - 1.9/3, 0.3 - 1.9/3, 0},
		{0.3 - 1.9/3, 1 - 1.9/3, 0, 0.6 - 1.9/3},
		{0, 0.6 - 0.75, 0.9 - 0.75, 0},
	}
	for _, row := range centered {
		var sum float64
		for _, v := range row {
			sum += v
		}
		assert.InDelta(t, 0, sum, 1e-9)
	}
	for i := range centered {
		for j := range centered {
			expected := floats.Dot(centered[i], centered[j]) / (floats.Norm(centered[i], 2) * floats.Norm(centered[j], 2))
			assert.InDelta(t, expected, c.Similarity[i][j], 1e-9, "%s-%s", c.UserIds[i], c.UserIds[j])
		}
	}
}

func TestBuildCollaborativeBlocks(t *testing.T) {
	cfg := config.GetDefaultConfig().Collaborative
	expected, err := BuildCollaborative(context.Background(), cfg, newInteractions())
	require.NoError(t, err)
	cfg.BlockSize = 1
	cfg.NumJobs = 2
	actual, err := BuildCollaborative(context.Background(), cfg, newInteractions())
	require.NoError(t, err)
	assert.Equal(t, expected.Similarity, actual.Similarity)
}

func TestBuildCollaborativeEmpty(t *testing.T) {
	c, err := BuildCollaborative(context.Background(), config.GetDefaultConfig().Collaborative, nil)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	assert.Nil(t, c.UserBased("u1", 10, 10))
}

func TestUserBased(t *testing.T) {
	cfg := config.GetDefaultConfig().Collaborative
	c, err := BuildCollaborative(context.Background(), cfg, newInteractions())
	require.NoError(t, err)
	scores := c.UserBased("u1", c.NumNeighbors(cfg), 10)
	if assert.Len(t, scores, 3) {
		assert.Equal(t, "a", scores[0].Id)
		assert.InDelta(t, 1, scores[0].Score, 1e-9)
		assert.Equal(t, "b", scores[1].Id)
		assert.InDelta(t, 0.6, scores[1].Score, 1e-9)
		assert.Equal(t, "c", scores[2].Id)
		assert.InDelta(t, 0.3, scores[2].Score, 1e-9)
	}
	assert.Len(t, c.UserBased("u1", 10, 2), 2)
	// no neighbor with positive similarity
	assert.Empty(t, c.UserBased("u3", 10, 10))
	assert.Nil(t, c.UserBased("u4", 10, 10))
}

func TestCollaborativeCodec(t *testing.T) {
	c, err := BuildCollaborative(context.Background(), config.GetDefaultConfig().Collaborative, newInteractions())
	require.NoError(t, err)
	b, err := cache.Encode(c)
	require.NoError(t, err)
	decoded, err := cache.Decode[*Collaborative](b)
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}
