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

package data

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/storage"
)

var (
	ErrUserNotExist        = errors.NotFoundf("user")
	ErrItemNotExist        = errors.NotFoundf("place")
	ErrInteractionNotExist = errors.NotFoundf("interaction")
	ErrNoDatabase          = errors.NotAssignedf("database")
)

// Genders of users. Missing genders are cleaned to GenderUnknown.
const (
	GenderMale    = "male"
	GenderFemale  = "female"
	GenderOther   = "other"
	GenderUnknown = "unknown"
)

// Categories of places.
const (
	CategoryAccommodation = "accommodation"
	CategoryAttraction    = "attraction"
	CategoryRestaurant    = "restaurant"
)

// InteractionKind is the kind of a user-place interaction.
type InteractionKind string

const (
	Review InteractionKind = "review"
	Like   InteractionKind = "like"
	View   InteractionKind = "view"
	Share  InteractionKind = "share"
)

// InteractionKinds lists every kind in a stable order.
var InteractionKinds = []InteractionKind{Review, Like, View, Share}

// Review statuses. Only published reviews are scored.
const (
	StatusPublished = "published"
	StatusPending   = "pending"
	StatusRejected  = "rejected"
)

// User stores the demographic data used by content profiles.
type User struct {
	UserId      string `gorm:"primaryKey"`
	Gender      string
	DateOfBirth *time.Time
	LastLogin   time.Time
}

// Item is a place in the catalog.
type Item struct {
	ItemId        string `gorm:"primaryKey"`
	Name          string
	Category      string
	Location      string
	Description   string
	AverageRating *float64
	PriceRange    string
	TotalReviews  int
	VisitCount    int
	Timestamp     time.Time `gorm:"column:time_stamp"`
}

// Interaction is a single event between a user and a place. Rating and Status
// are only meaningful for reviews.
type Interaction struct {
	Id        int64           `gorm:"primaryKey;autoIncrement"`
	Kind      InteractionKind `gorm:"column:kind"`
	UserId    string
	ItemId    string
	Rating    float64
	Status    string
	Timestamp time.Time `gorm:"column:time_stamp"`
}

// IsScored reports whether the interaction contributes to scores.
func (i Interaction) IsScored() bool {
	return i.Kind != Review || i.Status == StatusPublished
}

type Database interface {
	Init() error
	Ping() error
	Close() error
	Purge() error

	BatchInsertUsers(ctx context.Context, users []User) error
	GetUser(ctx context.Context, userId string) (User, error)
	DeleteUser(ctx context.Context, userId string) error
	GetUsers(ctx context.Context) ([]User, error)
	// GetActiveUsers returns users who logged in since the given time.
	GetActiveUsers(ctx context.Context, since time.Time) ([]User, error)

	BatchInsertItems(ctx context.Context, items []Item) error
	GetItem(ctx context.Context, itemId string) (Item, error)
	DeleteItem(ctx context.Context, itemId string) error
	GetItems(ctx context.Context) ([]Item, error)

	// SaveInteraction inserts an interaction when its Id is zero and updates it otherwise.
	SaveInteraction(ctx context.Context, interaction *Interaction) error
	BatchInsertInteractions(ctx context.Context, interactions []Interaction) error
	GetInteraction(ctx context.Context, id int64) (Interaction, error)
	DeleteInteraction(ctx context.Context, id int64) error
	GetUserInteractions(ctx context.Context, userId string) ([]Interaction, error)
	// GetInteractionStream reads all interactions in batches of batchSize.
	GetInteractionStream(ctx context.Context, batchSize int) (chan []Interaction, chan error)
}

// Open a connection to a SQL database.
func Open(path, tablePrefix string, opts ...storage.Option) (Database, error) {
	opts = append([]storage.Option{storage.WithMySQLParams(map[string]string{
		"sql_mode": "'ONLY_FULL_GROUP_BY,STRICT_TRANS_TABLES,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION'",
	})}, opts...)
	if scheme := storage.ParseScheme(path); !scheme.IsSQL() {
		return nil, errors.NotSupportedf("data store %s", scheme)
	}
	conn, err := storage.OpenSQL(path, tablePrefix, storage.NewOptions(opts...))
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &SQLDatabase{
		TablePrefix: storage.TablePrefix(tablePrefix),
		gormDB:      conn.GORM,
		client:      conn.Client,
		scheme:      conn.Scheme,
	}, nil
}
