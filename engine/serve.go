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
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/protocol"
	"github.com/placerec/placerec/storage/cache"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Recommend returns up to n places for a user. Batch scores and speed-layer
// boosts are added up, places the user has interacted with are removed and the
// rest is ranked. A missing batch entry is computed inline and its rebuild is
// left to a generate_user_batch task, so serving never writes recommendations
// itself. Artifacts missing from the cache are still built under their build
// locks. Failures degrade to popularity or to an empty list.
func (e *Engine) Recommend(ctx context.Context, userId string, n int) []cache.Score {
	start := time.Now()
	defer func() {
		ServeSeconds.Observe(time.Since(start).Seconds())
	}()

	batch, ok, err := cache.Load[map[string]float64](ctx, e.CacheClient, cache.BatchRecommendKey(userId))
	if err != nil {
		log.Logger().Warn("failed to load batch recommendations", zap.String("user_id", userId), zap.Error(err))
	}
	if !ok {
		ServeBatchMissTimes.Inc()
		if batch, err = e.HybridScores(ctx, userId); err != nil {
			log.Logger().Error("failed to compute recommendations inline", zap.String("user_id", userId), zap.Error(err))
		}
		e.requestUserBatch(ctx, userId)
	}
	if len(batch) == 0 {
		batch = e.fallback(ctx)
	}

	boosts, err := e.CacheClient.GetHashFloats(ctx, cache.BoostScoresKey(userId))
	if err != nil {
		log.Logger().Warn("failed to load boost scores", zap.String("user_id", userId), zap.Error(err))
	}
	merged := make(map[string]float64, len(batch)+len(boosts))
	for id, score := range batch {
		merged[id] += score
	}
	for id, score := range boosts {
		merged[id] += score
	}

	for _, id := range e.interacted(ctx, userId) {
		delete(merged, id)
	}
	return cache.TopScores(merged, n)
}

// interacted reads the cached interacted places, falling back to the data store.
func (e *Engine) interacted(ctx context.Context, userId string) []string {
	items, ok, err := cache.Load[[]string](ctx, e.CacheClient, cache.InteractedItemsKey(userId))
	if err != nil {
		log.Logger().Warn("failed to load interacted places", zap.String("user_id", userId), zap.Error(err))
	}
	if ok {
		return items
	}
	if items, err = e.readInteractedItems(ctx, userId); err != nil {
		log.Logger().Warn("failed to read interacted places", zap.String("user_id", userId), zap.Error(err))
	}
	return items
}

// fallback returns the cached popularity ranking, if any.
func (e *Engine) fallback(ctx context.Context) map[string]float64 {
	popularity, _, err := cache.Load[[]cache.Score](ctx, e.CacheClient, cache.PopularityKey)
	if err != nil {
		log.Logger().Warn("failed to load popularity", zap.Error(err))
	}
	return cache.ScoreMap(popularity)
}

// requestUserBatch enqueues generate_user_batch at most once per
// BatchRequestTTL for a user, so users without recommendations do not flood
// the queue.
func (e *Engine) requestUserBatch(ctx context.Context, userId string) {
	if e.Queue == nil {
		return
	}
	marker := cache.BatchRequestKey(userId)
	requested, err := e.CacheClient.SetNX(ctx, marker, []byte(time.Now().Format(time.RFC3339)), e.Config.Serve.BatchRequestTTL)
	if err != nil {
		log.Logger().Warn("failed to mark batch request", zap.String("user_id", userId), zap.Error(err))
		return
	} else if !requested {
		return
	}
	task, err := protocol.NewTask(protocol.TaskGenerateUserBatch, protocol.UserPayload{UserId: userId})
	if err == nil {
		err = e.Queue.Enqueue(ctx, task, time.Now())
	}
	if err != nil {
		log.Logger().Warn("failed to request batch recommendations", zap.String("user_id", userId), zap.Error(err))
		if err = e.CacheClient.Delete(context.WithoutCancel(ctx), marker); err != nil {
			log.Logger().Warn("failed to clear batch request", zap.String("user_id", userId), zap.Error(err))
		}
	}
}

// SimilarTo returns the cached or freshly computed similar places of a place,
// skipping places in exclude.
func (e *Engine) SimilarTo(ctx context.Context, itemId string, exclude ...string) []cache.Score {
	similar, err := e.SimilarItems(ctx, itemId)
	if err != nil {
		log.Logger().Warn("failed to get similar places", zap.String("item_id", itemId), zap.Error(err))
		return nil
	}
	excluded := mapset.NewThreadUnsafeSet(exclude...)
	return lo.Filter(similar, func(score cache.Score, _ int) bool {
		return !excluded.Contains(score.Id)
	})
}
