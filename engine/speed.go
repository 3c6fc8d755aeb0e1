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

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/protocol"
	"github.com/placerec/placerec/storage/cache"
	"go.uber.org/zap"
)

// ApplyInteraction propagates the score delta of an interaction to the places
// similar to the interacted place. Each similar place of the user gains
// delta times the boost fraction and the boost map lives for another BoostTTL.
// Increments commute, so concurrent workers converge to the same boosts.
func (e *Engine) ApplyInteraction(ctx context.Context, payload protocol.InteractionPayload) error {
	// the interacted set changed, serving reads the store until the next batch
	if err := e.CacheClient.Delete(ctx, cache.InteractedItemsKey(payload.UserId)); err != nil {
		log.Logger().Warn("failed to invalidate interacted places", zap.String("user_id", payload.UserId), zap.Error(err))
	}
	if payload.Score == 0 {
		return nil
	}
	similar, err := e.SimilarItems(ctx, payload.ItemId)
	if err != nil {
		return errors.Trace(err)
	}
	if len(similar) == 0 {
		log.Logger().Debug("no similar places to boost", zap.String("item_id", payload.ItemId))
		return nil
	}
	delta := payload.Score * e.Config.Cache.BoostFraction
	increments := make(map[string]float64, len(similar))
	for _, score := range similar {
		increments[score.Id] = delta
	}
	if err = e.CacheClient.IncrHashFloats(ctx, cache.BoostScoresKey(payload.UserId), increments, e.Config.Cache.BoostTTL); err != nil {
		return errors.Trace(err)
	}
	BoostUpdateTimes.Inc()
	log.Logger().Debug("apply interaction boost",
		zap.String("user_id", payload.UserId),
		zap.String("item_id", payload.ItemId),
		zap.String("kind", string(payload.Kind)),
		zap.Float64("delta", delta),
		zap.Int("n_boosted", len(increments)))
	return nil
}

// InvalidateSimilar drops the cached similar places of a changed place.
func (e *Engine) InvalidateSimilar(ctx context.Context, itemId string) error {
	if err := e.CacheClient.Delete(ctx, cache.SimilarItemsKey(itemId)); err != nil {
		return errors.Trace(err)
	}
	log.Logger().Debug("invalidate similar places", zap.String("item_id", itemId))
	return nil
}
