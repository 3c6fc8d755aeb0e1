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
	"context"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/dataset"
	"github.com/placerec/placerec/logics"
	"github.com/placerec/placerec/storage/cache"
	"github.com/placerec/placerec/storage/data"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Split holds out the most recent place of every user with at least two
// distinct places. Interactions with a held out place are removed from the
// training set.
func Split(interactions []dataset.Interaction) (train []dataset.Interaction, test map[string]string) {
	latest := make(map[string]dataset.Interaction)
	places := make(map[string]mapset.Set[string])
	for _, interaction := range interactions {
		if _, exist := places[interaction.UserId]; !exist {
			places[interaction.UserId] = mapset.NewThreadUnsafeSet[string]()
		}
		places[interaction.UserId].Add(interaction.ItemId)
		if last, exist := latest[interaction.UserId]; !exist ||
			interaction.Timestamp.After(last.Timestamp) ||
			(interaction.Timestamp.Equal(last.Timestamp) && interaction.ItemId > last.ItemId) {
			latest[interaction.UserId] = interaction
		}
	}
	test = make(map[string]string)
	for userId, set := range places {
		if set.Cardinality() >= 2 {
			test[userId] = latest[userId].ItemId
		}
	}
	train = lo.Filter(interactions, func(interaction dataset.Interaction, _ int) bool {
		itemId, held := test[interaction.UserId]
		return !held || interaction.ItemId != itemId
	})
	return train, test
}

// Evaluate runs a leave-last-out evaluation of hybrid recommendations on the
// current catalog. Models are trained in memory and nothing is written to the
// cache.
func (e *Engine) Evaluate(ctx context.Context, k int) (map[string]float64, error) {
	start := time.Now()
	ds, err := dataset.Load(ctx, e.DataClient, e.Config.Interaction, e.Config.Collaborative.ChunkSize, time.Now())
	if err != nil {
		return nil, errors.Trace(err)
	}
	evaluation := logics.NewEvaluation(k)
	if ds.IsEmpty() {
		return evaluation.Result(0), nil
	}
	train, test := Split(ds.Interactions)
	collab, err := logics.BuildCollaborative(ctx, e.Config.Collaborative, train)
	if err != nil {
		return nil, errors.Trace(err)
	}
	trainSet := *ds
	trainSet.Interactions = train
	profiles, err := logics.BuildItemProfiles(ctx, &trainSet, e.Extractor)
	if err != nil {
		return nil, errors.Trace(err)
	}
	vectors := make(map[string][]float64, len(profiles.ItemIds))
	for i, itemId := range profiles.ItemIds {
		vectors[itemId] = profiles.Scaled[i]
	}
	popularity := logics.BuildPopularity(e.Config.Popularity, ds.Items)
	popularity = popularity[:min(len(popularity), e.Config.Hybrid.CandidateSize)]

	// engagement of the training history decides the weights
	counts := make(map[string]int)
	for _, interaction := range train {
		switch interaction.Kind {
		case data.Review, data.Like, data.View:
			counts[interaction.UserId]++
		}
	}
	n := e.Config.Hybrid.CandidateSize
	for userId, itemId := range test {
		if err = ctx.Err(); err != nil {
			return nil, errors.Trace(err)
		}
		var candidates logics.Candidates
		if !collab.IsEmpty() {
			candidates.UserBased = collab.UserBased(userId, collab.NumNeighbors(e.Config.Collaborative), n)
		}
		if !profiles.IsEmpty() {
			candidates.Content = profiles.ContentBased(collab.Ratings(userId), n)
		}
		candidates.Popularity = popularity
		fused := logics.Fuse(e.Config.Hybrid.Weights(counts[userId]), e.Config.Hybrid.DecayAlpha, candidates)
		for trained := range collab.Ratings(userId) {
			delete(fused, trained)
		}
		recommended := lo.Map(cache.TopScores(fused, k), func(score cache.Score, _ int) string { return score.Id })
		evaluation.Add(recommended, mapset.NewThreadUnsafeSet(itemId), vectors)
	}
	result := evaluation.Result(len(ds.Items))
	log.Logger().Info("evaluate hybrid recommendations",
		zap.Int("n_users", len(test)),
		zap.Int("k", k),
		zap.Float64("precision", result["precision"]),
		zap.Float64("ndcg", result["ndcg"]),
		zap.Duration("used_time", time.Since(start)))
	return result, nil
}
