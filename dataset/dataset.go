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
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/storage/data"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const unknown = "unknown"

// User is a cleaned user.
type User struct {
	UserId    string
	Gender    string
	Age       float64
	LastLogin time.Time
}

// Item is a cleaned place with its engagement counters.
type Item struct {
	ItemId        string
	Name          string
	Category      string
	Location      string
	Description   string
	PriceRange    string
	AverageRating float64
	TotalReviews  int
	VisitCount    int
	Likes         int
	Shares        int
}

// Interaction is a scored interaction.
type Interaction struct {
	UserId    string
	ItemId    string
	Kind      data.InteractionKind
	Score     float64
	Timestamp time.Time
}

// Dataset is the cleaned snapshot every model is built from.
type Dataset struct {
	Timestamp    time.Time
	Users        []User
	Items        []Item
	Interactions []Interaction
}

// IsEmpty reports whether the catalog is empty.
func (d *Dataset) IsEmpty() bool {
	return d == nil || len(d.Items) == 0
}

// Score maps a raw interaction to its score.
func Score(cfg config.InteractionConfig, kind data.InteractionKind, rating float64) float64 {
	switch kind {
	case data.Review:
		return rating / cfg.ReviewMax
	case data.Like:
		return cfg.LikeWeight
	case data.View:
		return cfg.ViewWeight
	case data.Share:
		return cfg.ShareWeight
	}
	return 0
}

// Collector scores interactions chunk by chunk. Reviews are last write wins per
// (user, place), other kinds are kept per event.
type Collector struct {
	cfg          config.InteractionConfig
	interactions []Interaction
	reviews      map[lo.Tuple2[string, string]]int
}

func NewCollector(cfg config.InteractionConfig) *Collector {
	return &Collector{cfg: cfg, reviews: make(map[lo.Tuple2[string, string]]int)}
}

// Add consumes a chunk of raw interactions in write order.
func (c *Collector) Add(chunk []data.Interaction) {
	for _, raw := range chunk {
		if !raw.IsScored() || raw.UserId == "" || raw.ItemId == "" {
			continue
		}
		interaction := Interaction{
			UserId:    raw.UserId,
			ItemId:    raw.ItemId,
			Kind:      raw.Kind,
			Score:     Score(c.cfg, raw.Kind, raw.Rating),
			Timestamp: raw.Timestamp,
		}
		if raw.Kind == data.Review {
			key := lo.Tuple2[string, string]{A: raw.UserId, B: raw.ItemId}
			if pos, exist := c.reviews[key]; exist {
				c.interactions[pos] = interaction
				continue
			}
			c.reviews[key] = len(c.interactions)
		}
		c.interactions = append(c.interactions, interaction)
	}
}

func (c *Collector) Interactions() []Interaction {
	return c.interactions
}

// Stream reads scored interactions from the database in chunks.
func Stream(ctx context.Context, db data.Database, cfg config.InteractionConfig, chunkSize int) ([]Interaction, error) {
	collector := NewCollector(cfg)
	interactionChan, errChan := db.GetInteractionStream(ctx, chunkSize)
	numChunks := 0
	for chunk := range interactionChan {
		collector.Add(chunk)
		numChunks++
	}
	if err := <-errChan; err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Debug("streamed interactions",
		zap.Int("n_chunks", numChunks),
		zap.Int("n_interactions", len(collector.Interactions())))
	return collector.Interactions(), nil
}

// Load reads and cleans all entities.
func Load(ctx context.Context, db data.Database, cfg config.InteractionConfig, chunkSize int, now time.Time) (*Dataset, error) {
	users, err := db.GetUsers(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	items, err := db.GetItems(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}
	interactions, err := Stream(ctx, db, cfg, chunkSize)
	if err != nil {
		return nil, err
	}
	return Clean(users, items, interactions, now), nil
}

// Clean fills missing attributes and counts likes and shares per place.
func Clean(users []data.User, items []data.Item, interactions []Interaction, now time.Time) *Dataset {
	dataset := &Dataset{Timestamp: now, Interactions: interactions}

	// users
	var ages []float64
	known := make([]bool, len(users))
	dataset.Users = make([]User, len(users))
	for i, user := range users {
		dataset.Users[i] = User{
			UserId:    user.UserId,
			Gender:    lo.Ternary(user.Gender == "", data.GenderUnknown, user.Gender),
			LastLogin: user.LastLogin,
		}
		if user.DateOfBirth != nil {
			dataset.Users[i].Age = Age(*user.DateOfBirth, now)
			ages = append(ages, dataset.Users[i].Age)
			known[i] = true
		}
	}
	if len(ages) > 0 {
		meanAge := lo.Sum(ages) / float64(len(ages))
		for i := range dataset.Users {
			if !known[i] {
				dataset.Users[i].Age = meanAge
			}
		}
	}

	// places
	priceRanges := NewFreqDict()
	var ratings []float64
	for _, item := range items {
		if item.PriceRange != "" {
			priceRanges.Id(item.PriceRange)
		}
		if item.AverageRating != nil {
			ratings = append(ratings, *item.AverageRating)
		}
	}
	modePriceRange, ok := priceRanges.Mode()
	if !ok {
		modePriceRange = unknown
	}
	var meanRating float64
	if len(ratings) > 0 {
		meanRating = lo.Sum(ratings) / float64(len(ratings))
	}
	likes := make(map[string]int)
	shares := make(map[string]int)
	for _, interaction := range interactions {
		switch interaction.Kind {
		case data.Like:
			likes[interaction.ItemId]++
		case data.Share:
			shares[interaction.ItemId]++
		}
	}
	dataset.Items = make([]Item, len(items))
	for i, item := range items {
		dataset.Items[i] = Item{
			ItemId:        item.ItemId,
			Name:          item.Name,
			Category:      lo.Ternary(item.Category == "", unknown, item.Category),
			Location:      lo.Ternary(item.Location == "", unknown, item.Location),
			Description:   item.Description,
			PriceRange:    lo.Ternary(item.PriceRange == "", modePriceRange, item.PriceRange),
			AverageRating: lo.FromPtrOr(item.AverageRating, meanRating),
			TotalReviews:  item.TotalReviews,
			VisitCount:    item.VisitCount,
			Likes:         likes[item.ItemId],
			Shares:        shares[item.ItemId],
		}
	}
	return dataset
}

// Age returns the age in whole years at now.
func Age(dateOfBirth, now time.Time) float64 {
	years := now.Year() - dateOfBirth.Year()
	if now.Month() < dateOfBirth.Month() || (now.Month() == dateOfBirth.Month() && now.Day() < dateOfBirth.Day()) {
		years--
	}
	return float64(years)
}
