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
	"slices"
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/dataset"
	"github.com/placerec/placerec/storage/cache"
	"github.com/placerec/placerec/storage/data"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Genders with a column in item profiles. Unknown genders have no column.
var profileGenders = []string{data.GenderMale, data.GenderFemale, data.GenderOther}

// ItemProfiles holds a feature vector per place: description embedding,
// one-hot category, location and price range, average rating, mean age and
// gender distribution of interacting users.
type ItemProfiles struct {
	ItemIds  []string
	Columns  []string
	Unscaled [][]float64
	Scaled   [][]float64
	// Mean and Scale standardize columns, Scale is 1 for constant columns.
	Mean  []float64
	Scale []float64
}

func (p *ItemProfiles) IsEmpty() bool {
	return p == nil || len(p.ItemIds) == 0
}

// BuildItemProfiles builds and standardizes profiles of every place.
func BuildItemProfiles(ctx context.Context, ds *dataset.Dataset, extractor Extractor) (*ItemProfiles, error) {
	start := time.Now()
	profiles := &ItemProfiles{}
	if ds.IsEmpty() {
		return profiles, nil
	}
	descriptions := make([]string, len(ds.Items))
	for i, item := range ds.Items {
		descriptions[i] = item.Description
	}
	embeddings, err := extractor.Extract(ctx, descriptions)
	if err != nil {
		return nil, errors.Trace(err)
	}
	dimension := 0
	if len(embeddings) > 0 {
		dimension = len(embeddings[0])
	}

	// categorical vocabularies
	categories, locations, priceRanges := dataset.NewFreqDict(), dataset.NewFreqDict(), dataset.NewFreqDict()
	for _, item := range ds.Items {
		categories.Id(item.Category)
		locations.Id(item.Location)
		priceRanges.Id(item.PriceRange)
	}
	vocabularies := []struct {
		name string
		dict *dataset.FreqDict
	}{{"category", categories}, {"location", locations}, {"price_range", priceRanges}}
	for i := 0; i < dimension; i++ {
		profiles.Columns = append(profiles.Columns, "description")
	}
	offsets := make([]map[string]int, len(vocabularies))
	for k, vocabulary := range vocabularies {
		offsets[k] = make(map[string]int)
		for _, value := range vocabulary.dict.Strings() {
			offsets[k][value] = len(profiles.Columns)
			profiles.Columns = append(profiles.Columns, vocabulary.name+"="+value)
		}
	}
	ratingColumn := len(profiles.Columns)
	profiles.Columns = append(profiles.Columns, "average_rating", "mean_age")
	for _, gender := range profileGenders {
		profiles.Columns = append(profiles.Columns, "gender="+gender)
	}

	// demographics of interacting users
	users := make(map[string]dataset.User, len(ds.Users))
	for _, user := range ds.Users {
		users[user.UserId] = user
	}
	globalAge, globalGenders := demographics(ds.Users)
	perItem := make(map[string][]dataset.User)
	for _, interaction := range ds.Interactions {
		if user, ok := users[interaction.UserId]; ok {
			perItem[interaction.ItemId] = append(perItem[interaction.ItemId], user)
		}
	}

	profiles.ItemIds = make([]string, len(ds.Items))
	profiles.Unscaled = make([][]float64, len(ds.Items))
	for i, item := range ds.Items {
		profile := make([]float64, len(profiles.Columns))
		copy(profile, embeddings[i])
		profile[offsets[0][item.Category]] = 1
		profile[offsets[1][item.Location]] = 1
		profile[offsets[2][item.PriceRange]] = 1
		profile[ratingColumn] = item.AverageRating
		age, genders := globalAge, globalGenders
		if interacted := perItem[item.ItemId]; len(interacted) > 0 {
			age, genders = demographics(interacted)
		}
		profile[ratingColumn+1] = age
		copy(profile[ratingColumn+2:], genders)
		profiles.ItemIds[i] = item.ItemId
		profiles.Unscaled[i] = profile
	}
	profiles.standardize()
	log.Logger().Info("complete building item profiles",
		zap.Int("n_items", len(profiles.ItemIds)),
		zap.Int("n_columns", len(profiles.Columns)),
		zap.Duration("elapsed", time.Since(start)))
	return profiles, nil
}

// demographics returns the mean age and the share of each profile gender.
func demographics(users []dataset.User) (float64, []float64) {
	genders := make([]float64, len(profileGenders))
	if len(users) == 0 {
		return 0, genders
	}
	var age float64
	for _, user := range users {
		age += user.Age
		if k := slices.Index(profileGenders, user.Gender); k >= 0 {
			genders[k]++
		}
	}
	floats.Scale(1/float64(len(users)), genders)
	return age / float64(len(users)), genders
}

func (p *ItemProfiles) standardize() {
	numColumns := len(p.Columns)
	p.Mean = make([]float64, numColumns)
	p.Scale = make([]float64, numColumns)
	column := make([]float64, len(p.Unscaled))
	for j := 0; j < numColumns; j++ {
		for i, profile := range p.Unscaled {
			column[i] = profile[j]
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		p.Mean[j] = mean
		if std > 0 {
			p.Scale[j] = std
		} else {
			p.Scale[j] = 1
		}
	}
	p.Scaled = make([][]float64, len(p.Unscaled))
	for i, profile := range p.Unscaled {
		p.Scaled[i] = p.scale(profile)
	}
}

func (p *ItemProfiles) scale(profile []float64) []float64 {
	scaled := make([]float64, len(profile))
	floats.SubTo(scaled, profile, p.Mean)
	floats.Div(scaled, p.Scale)
	return scaled
}

// UserProfile returns the rating-weighted mean of the unscaled profiles of
// positively rated places. Without any, it is the mean of the catalog.
func (p *ItemProfiles) UserProfile(ratings map[string]float64) []float64 {
	profile := make([]float64, len(p.Columns))
	var rated [][]float64
	var weights []float64
	for i, itemId := range p.ItemIds {
		if r := ratings[itemId]; r > 0 {
			rated = append(rated, p.Unscaled[i])
			weights = append(weights, r)
		}
	}
	if len(rated) == 0 {
		rated = p.Unscaled
		weights = nil
	}
	total := floats.Sum(weights)
	if total <= 0 {
		weights = nil
		total = float64(len(rated))
	}
	for k, row := range rated {
		w := 1.0
		if weights != nil {
			w = weights[k]
		}
		floats.AddScaled(profile, w/total, row)
	}
	return profile
}

// ContentBased ranks places by cosine similarity to the user profile.
func (p *ItemProfiles) ContentBased(ratings map[string]float64, n int) []cache.Score {
	if p.IsEmpty() {
		return nil
	}
	target := p.scale(p.UserProfile(ratings))
	scores := make(map[string]float64, len(p.ItemIds))
	for i, itemId := range p.ItemIds {
		scores[itemId] = cosine(target, p.Scaled[i])
	}
	return cache.TopScores(scores, n)
}

// SimilarItems returns the n places most similar to a place, excluding itself.
func (p *ItemProfiles) SimilarItems(itemId string, n int) []cache.Score {
	if p.IsEmpty() {
		return nil
	}
	index := slices.Index(p.ItemIds, itemId)
	if index < 0 {
		return nil
	}
	scores := make(map[string]float64, len(p.ItemIds))
	for i, other := range p.ItemIds {
		if i != index {
			scores[other] = cosine(p.Scaled[index], p.Scaled[i])
		}
	}
	return cache.TopScores(scores, n)
}

func cosine(a, b []float64) float64 {
	norm := floats.Norm(a, 2) * floats.Norm(b, 2)
	if norm == 0 {
		return 0
	}
	return floats.Dot(a, b) / norm
}
