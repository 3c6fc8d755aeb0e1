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

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/dataset"
	"github.com/placerec/placerec/logics"
	"github.com/placerec/placerec/protocol"
	"github.com/placerec/placerec/storage/cache"
	"github.com/placerec/placerec/storage/data"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// Engine owns every cached artifact and the recommendation paths built on top
// of them. Processes share state only through the cache, the data store and
// the task queue, so any number of engines may run side by side.
type Engine struct {
	Config      *config.Config
	CacheClient cache.Database
	DataClient  data.Database
	Queue       *protocol.Queue
	Extractor   logics.Extractor
}

func NewEngine(cfg *config.Config, cacheClient cache.Database, dataClient data.Database, queue *protocol.Queue, extractor logics.Extractor) *Engine {
	return &Engine{
		Config:      cfg,
		CacheClient: cacheClient,
		DataClient:  dataClient,
		Queue:       queue,
		Extractor:   extractor,
	}
}

func buildOptions[T any](cfg config.LockConfig, name string, ttl time.Duration, force bool, empty func(T) bool) cache.BuildOptions[T] {
	return cache.BuildOptions[T]{
		Name:          name,
		TTL:           ttl,
		LockTTL:       cfg.TTL,
		RetryInterval: cfg.RetryInterval,
		MaxRetries:    cfg.MaxRetries,
		ForceRefresh:  force,
		Empty:         empty,
	}
}

// CleanedData returns the cleaned dataset of users, places and scored interactions.
func (e *Engine) CleanedData(ctx context.Context, force bool) (*dataset.Dataset, error) {
	opts := buildOptions(e.Config.Lock, "cleaned_data", e.Config.Cache.ArtifactTTL, force, (*dataset.Dataset).IsEmpty)
	return cache.GetOrBuild(ctx, e.CacheClient, cache.CleanedDataKey, opts, func(ctx context.Context) (*dataset.Dataset, error) {
		start := time.Now()
		ds, err := dataset.Load(ctx, e.DataClient, e.Config.Interaction, e.Config.Collaborative.ChunkSize, time.Now())
		if err != nil {
			return nil, errors.Trace(err)
		}
		log.Logger().Info("load cleaned dataset",
			zap.Int("n_users", len(ds.Users)),
			zap.Int("n_items", len(ds.Items)),
			zap.Int("n_interactions", len(ds.Interactions)),
			zap.Duration("used_time", time.Since(start)))
		return ds, nil
	})
}

// CollaborativeData returns the user-item matrix and user similarities.
func (e *Engine) CollaborativeData(ctx context.Context, force bool) (*logics.Collaborative, error) {
	opts := buildOptions(e.Config.Lock, "collaborative", e.Config.Cache.ArtifactTTL, force, (*logics.Collaborative).IsEmpty)
	return cache.GetOrBuild(ctx, e.CacheClient, cache.CollaborativeDataKey, opts, func(ctx context.Context) (*logics.Collaborative, error) {
		ds, err := e.CleanedData(ctx, false)
		if err != nil {
			return nil, errors.Trace(err)
		}
		start := time.Now()
		collab, err := logics.BuildCollaborative(ctx, e.Config.Collaborative, ds.Interactions)
		if err != nil {
			return nil, errors.Trace(err)
		}
		log.Logger().Info("build collaborative filtering data",
			zap.Int("n_users", len(collab.UserIds)),
			zap.Int("n_items", len(collab.ItemIds)),
			zap.Duration("used_time", time.Since(start)))
		return collab, nil
	})
}

// ItemProfiles returns the standardized profile matrix of the catalog.
func (e *Engine) ItemProfiles(ctx context.Context, force bool) (*logics.ItemProfiles, error) {
	opts := buildOptions(e.Config.Lock, "item_profiles", e.Config.Cache.ArtifactTTL, force, (*logics.ItemProfiles).IsEmpty)
	return cache.GetOrBuild(ctx, e.CacheClient, cache.ItemProfilesKey, opts, func(ctx context.Context) (*logics.ItemProfiles, error) {
		ds, err := e.CleanedData(ctx, false)
		if err != nil {
			return nil, errors.Trace(err)
		}
		start := time.Now()
		profiles, err := logics.BuildItemProfiles(ctx, ds, e.Extractor)
		if err != nil {
			return nil, errors.Trace(err)
		}
		log.Logger().Info("build item profiles",
			zap.Int("n_items", len(profiles.ItemIds)),
			zap.Int("n_columns", len(profiles.Columns)),
			zap.Duration("used_time", time.Since(start)))
		return profiles, nil
	})
}

// Popularity returns the whole catalog ranked by popularity.
func (e *Engine) Popularity(ctx context.Context, force bool) ([]cache.Score, error) {
	opts := buildOptions(e.Config.Lock, "popularity", e.Config.Cache.ArtifactTTL, force, func(scores []cache.Score) bool {
		return len(scores) == 0
	})
	return cache.GetOrBuild(ctx, e.CacheClient, cache.PopularityKey, opts, func(ctx context.Context) ([]cache.Score, error) {
		ds, err := e.CleanedData(ctx, false)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return logics.BuildPopularity(e.Config.Popularity, ds.Items), nil
	})
}

// SimilarItems returns the places most similar in content to a place.
func (e *Engine) SimilarItems(ctx context.Context, itemId string) ([]cache.Score, error) {
	opts := buildOptions(e.Config.Lock, "similar_items", e.Config.Cache.SimilarItemsTTL, false, func(scores []cache.Score) bool {
		return len(scores) == 0
	})
	return cache.GetOrBuild(ctx, e.CacheClient, cache.SimilarItemsKey(itemId), opts, func(ctx context.Context) ([]cache.Score, error) {
		profiles, err := e.ItemProfiles(ctx, false)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return profiles.SimilarItems(itemId, e.Config.Content.NumSimilar), nil
	})
}

// InteractedItems returns the places a user has interacted with in any way.
func (e *Engine) InteractedItems(ctx context.Context, userId string, force bool) ([]string, error) {
	opts := buildOptions(e.Config.Lock, "interacted_items", e.Config.Cache.InteractedTTL, force, func(items []string) bool {
		return len(items) == 0
	})
	return cache.GetOrBuild(ctx, e.CacheClient, cache.InteractedItemsKey(userId), opts, func(ctx context.Context) ([]string, error) {
		return e.readInteractedItems(ctx, userId)
	})
}

func (e *Engine) readInteractedItems(ctx context.Context, userId string) ([]string, error) {
	interactions, err := e.DataClient.GetUserInteractions(ctx, userId)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return lo.Uniq(lo.Map(interactions, func(interaction data.Interaction, _ int) string {
		return interaction.ItemId
	})), nil
}
