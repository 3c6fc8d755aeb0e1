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

package dataset

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/storage/data"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestAge(t *testing.T) {
	assert.Equal(t, 25.0, Age(time.Date(2000, 6, 15, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 24.0, Age(time.Date(2000, 6, 16, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 24.0, Age(time.Date(2000, 7, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 25.0, Age(time.Date(2000, 1, 31, 0, 0, 0, 0, time.UTC), now))
}

func TestScore(t *testing.T) {
	cfg := config.GetDefaultConfig().Interaction
	assert.InDelta(t, 0.8, Score(cfg, data.Review, 4), 1e-9)
	assert.Equal(t, 0.6, Score(cfg, data.Like, 0))
	assert.Equal(t, 0.3, Score(cfg, data.View, 0))
	assert.Equal(t, 0.7, Score(cfg, data.Share, 0))
	assert.Zero(t, Score(cfg, "unknown", 3))
}

func TestCollector(t *testing.T) {
	collector := NewCollector(config.GetDefaultConfig().Interaction)
	collector.Add([]data.Interaction{
		{Kind: data.Review, UserId: "u1", ItemId: "p1", Rating: 2, Status: data.StatusPublished},
		{Kind: data.Like, UserId: "u1", ItemId: "p1"},
		{Kind: data.Review, UserId: "u1", ItemId: "p2", Rating: 5, Status: data.StatusPending},
		{Kind: data.View, UserId: "u2", ItemId: "p1"},
	})
	collector.Add([]data.Interaction{
		{Kind: data.Review, UserId: "u1", ItemId: "p1", Rating: 5, Status: data.StatusPublished},
		{Kind: data.View, UserId: "u2", ItemId: "p1"},
		{Kind: data.Like, UserId: "", ItemId: "p1"},
	})
	interactions := collector.Interactions()
	assert.Len(t, interactions, 4)
	// the later review replaces the earlier one in place
	assert.Equal(t, data.Review, interactions[0].Kind)
	assert.Equal(t, 1.0, interactions[0].Score)
	assert.Equal(t, data.Like, interactions[1].Kind)
	assert.Equal(t, data.View, interactions[2].Kind)
	assert.Equal(t, data.View, interactions[3].Kind)
}

func TestClean(t *testing.T) {
	users := []data.User{
		{UserId: "u1", Gender: data.GenderFemale, DateOfBirth: lo.ToPtr(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))},
		{UserId: "u2", DateOfBirth: lo.ToPtr(time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))},
		{UserId: "u3", Gender: data.GenderMale},
	}
	items := []data.Item{
		{ItemId: "p1", Category: data.CategoryRestaurant, Location: "Paris", PriceRange: "$$", AverageRating: lo.ToPtr(4.0)},
		{ItemId: "p2", PriceRange: "$$", AverageRating: lo.ToPtr(2.0)},
		{ItemId: "p3", PriceRange: "$"},
		{ItemId: "p4"},
	}
	interactions := []Interaction{
		{UserId: "u1", ItemId: "p1", Kind: data.Like},
		{UserId: "u2", ItemId: "p1", Kind: data.Like},
		{UserId: "u2", ItemId: "p1", Kind: data.Share},
		{UserId: "u2", ItemId: "p2", Kind: data.View},
	}
	dataset := Clean(users, items, interactions, now)
	assert.False(t, dataset.IsEmpty())
	assert.Equal(t, now, dataset.Timestamp)

	assert.Equal(t, data.GenderFemale, dataset.Users[0].Gender)
	assert.Equal(t, data.GenderUnknown, dataset.Users[1].Gender)
	assert.Equal(t, 25.0, dataset.Users[0].Age)
	assert.Equal(t, 35.0, dataset.Users[1].Age)
	assert.Equal(t, 30.0, dataset.Users[2].Age)

	assert.Equal(t, "unknown", dataset.Items[1].Category)
	assert.Equal(t, "unknown", dataset.Items[1].Location)
	assert.Equal(t, "$", dataset.Items[2].PriceRange)
	assert.Equal(t, "$$", dataset.Items[3].PriceRange)
	assert.Equal(t, 3.0, dataset.Items[2].AverageRating)
	assert.Equal(t, 2, dataset.Items[0].Likes)
	assert.Equal(t, 1, dataset.Items[0].Shares)
	assert.Zero(t, dataset.Items[1].Likes)
}

func TestCleanEmpty(t *testing.T) {
	dataset := Clean(nil, []data.Item{{ItemId: "p1"}}, nil, now)
	assert.Equal(t, "unknown", dataset.Items[0].PriceRange)
	assert.Zero(t, dataset.Items[0].AverageRating)
	assert.True(t, Clean(nil, nil, nil, now).IsEmpty())
}

func TestLoad(t *testing.T) {
	ctx := context.Background()
	db, err := data.Open("sqlite://"+filepath.Join(t.TempDir(), "data.db"), "")
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Init())

	require.NoError(t, db.BatchInsertUsers(ctx, []data.User{{UserId: "u1"}, {UserId: "u2"}}))
	require.NoError(t, db.BatchInsertItems(ctx, []data.Item{{ItemId: "p1"}, {ItemId: "p2"}}))
	require.NoError(t, db.BatchInsertInteractions(ctx, []data.Interaction{
		{Kind: data.Review, UserId: "u1", ItemId: "p1", Rating: 1, Status: data.StatusPublished, Timestamp: now},
		{Kind: data.Review, UserId: "u1", ItemId: "p1", Rating: 4, Status: data.StatusPublished, Timestamp: now},
		{Kind: data.Review, UserId: "u2", ItemId: "p1", Rating: 4, Status: data.StatusRejected, Timestamp: now},
		{Kind: data.Like, UserId: "u2", ItemId: "p2", Timestamp: now},
		{Kind: data.Like, UserId: "u2", ItemId: "p2", Timestamp: now},
	}))

	dataset, err := Load(ctx, db, config.GetDefaultConfig().Interaction, 2, now)
	require.NoError(t, err)
	assert.Len(t, dataset.Users, 2)
	assert.Len(t, dataset.Items, 2)
	if assert.Len(t, dataset.Interactions, 3) {
		assert.InDelta(t, 0.8, dataset.Interactions[0].Score, 1e-9)
	}
	assert.Equal(t, 2, dataset.Items[1].Likes)
}
