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
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/common/parallel"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/logics"
	"github.com/placerec/placerec/storage/cache"
	"github.com/placerec/placerec/storage/data"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Progress receives the progress of a long running job.
type Progress interface {
	Start(total int)
	Update(done int)
	Finish()
	Fail(err error)
}

// TierCount counts the reviews, likes and views of a user. Shares do not
// count toward engagement.
func (e *Engine) TierCount(ctx context.Context, userId string) (int, error) {
	interactions, err := e.DataClient.GetUserInteractions(ctx, userId)
	if err != nil {
		return 0, errors.Trace(err)
	}
	var count int
	for _, interaction := range interactions {
		switch interaction.Kind {
		case data.Review, data.Like, data.View:
			count++
		}
	}
	return count, nil
}

// Weights picks the base weights of a user by engagement. Users whose history
// cannot be read get the medium weights.
func (e *Engine) Weights(ctx context.Context, userId string) config.Weights {
	count, err := e.TierCount(ctx, userId)
	if err != nil {
		log.Logger().Warn("failed to count interactions, use medium weights",
			zap.String("user_id", userId), zap.Error(err))
		return e.Config.Hybrid.MediumWeights
	}
	return e.Config.Hybrid.Weights(count)
}

// Candidates collects the ranked lists of the three models for a user. A model
// whose artifact is unavailable contributes nothing.
func (e *Engine) Candidates(ctx context.Context, userId string) (logics.Candidates, error) {
	var (
		collab     *logics.Collaborative
		profiles   *logics.ItemProfiles
		popularity []cache.Score
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if collab, err = e.CollaborativeData(gCtx, false); err != nil {
			if gCtx.Err() != nil {
				return errors.Trace(gCtx.Err())
			}
			log.Logger().Warn("collaborative filtering data unavailable", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if profiles, err = e.ItemProfiles(gCtx, false); err != nil {
			if gCtx.Err() != nil {
				return errors.Trace(gCtx.Err())
			}
			log.Logger().Warn("item profiles unavailable", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if popularity, err = e.Popularity(gCtx, false); err != nil {
			if gCtx.Err() != nil {
				return errors.Trace(gCtx.Err())
			}
			log.Logger().Warn("popularity unavailable", zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return logics.Candidates{}, err
	}

	n := e.Config.Hybrid.CandidateSize
	var candidates logics.Candidates
	if !collab.IsEmpty() {
		candidates.UserBased = collab.UserBased(userId, collab.NumNeighbors(e.Config.Collaborative), n)
	}
	if !profiles.IsEmpty() {
		candidates.Content = profiles.ContentBased(collab.Ratings(userId), n)
	}
	if len(popularity) > n {
		candidates.Popularity = popularity[:n]
	} else {
		candidates.Popularity = popularity
	}
	return candidates, nil
}

// HybridScores fuses the candidates of a user into the batch-layer payload.
func (e *Engine) HybridScores(ctx context.Context, userId string) (map[string]float64, error) {
	weights := e.Weights(ctx, userId)
	candidates, err := e.Candidates(ctx, userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return logics.Fuse(weights, e.Config.Hybrid.DecayAlpha, candidates), nil
}

// GenerateUserBatch recomputes and stores the batch recommendations of a user.
// It also refreshes the interacted places used by serving. Empty results are
// not stored.
func (e *Engine) GenerateUserBatch(ctx context.Context, userId string) (int, error) {
	start := time.Now()
	scores, err := e.HybridScores(ctx, userId)
	if err != nil {
		return 0, errors.Trace(err)
	}
	if _, err = e.InteractedItems(ctx, userId, true); err != nil {
		log.Logger().Warn("failed to refresh interacted places", zap.String("user_id", userId), zap.Error(err))
	}
	if len(scores) == 0 {
		return 0, nil
	}
	if err = cache.Store(ctx, e.CacheClient, cache.BatchRecommendKey(userId), scores, e.Config.Cache.BatchTTL); err != nil {
		return 0, errors.Trace(err)
	}
	GenerateUserBatchSeconds.Observe(time.Since(start).Seconds())
	return len(scores), nil
}

// GenerateBatch recomputes batch recommendations of every user active within
// the active window. Collaborative filtering data is rebuilt first and must
// not be empty.
func (e *Engine) GenerateBatch(ctx context.Context, progress Progress) error {
	start := time.Now()
	collab, err := e.CollaborativeData(ctx, true)
	if err != nil {
		progress.Fail(err)
		return errors.Trace(err)
	}
	if collab.IsEmpty() {
		log.Logger().Warn("skip batch generation: no collaborative filtering data")
		progress.Start(0)
		progress.Finish()
		return nil
	}
	users, err := e.DataClient.GetActiveUsers(ctx, time.Now().Add(-e.Config.Rebuild.ActiveWindow))
	if err != nil {
		progress.Fail(err)
		return errors.Trace(err)
	}
	progress.Start(len(users))
	var generated, failed, done atomic.Int64
	err = parallel.Parallel(ctx, len(users), e.Config.Collaborative.NumJobs, func(_, jobId int) error {
		n, err := e.GenerateUserBatch(ctx, users[jobId].UserId)
		progress.Update(int(done.Add(1)))
		if err != nil {
			if ctx.Err() != nil {
				return errors.Trace(ctx.Err())
			}
			failed.Add(1)
			log.Logger().Error("failed to generate batch recommendations",
				zap.String("user_id", users[jobId].UserId), zap.Error(err))
			return nil
		}
		if n > 0 {
			generated.Add(1)
		}
		return nil
	})
	if err != nil {
		progress.Fail(err)
		return errors.Trace(err)
	}
	progress.Finish()
	GenerateBatchUsers.Set(float64(generated.Load()))
	GenerateBatchSeconds.Set(time.Since(start).Seconds())
	log.Logger().Info("generate batch recommendations",
		zap.Int("n_active_users", len(users)),
		zap.Int64("n_generated", generated.Load()),
		zap.Int64("n_failed", failed.Load()),
		zap.Duration("used_time", time.Since(start)))
	return nil
}
