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
	"database/sql"
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/storage"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const bufSize = 1

// SQLDatabase stores entities in MySQL, Postgres or SQLite.
type SQLDatabase struct {
	storage.TablePrefix
	gormDB *gorm.DB
	client *sql.DB
	scheme storage.Scheme
}

// Init tables and indices.
func (d *SQLDatabase) Init() error {
	type SQLUser struct {
		UserId      string     `gorm:"column:user_id;type:varchar(256);primaryKey"`
		Gender      string     `gorm:"column:gender;type:varchar(16);not null"`
		DateOfBirth *time.Time `gorm:"column:date_of_birth"`
		LastLogin   time.Time  `gorm:"column:last_login;not null;index"`
	}
	type SQLPlace struct {
		ItemId        string    `gorm:"column:item_id;type:varchar(256);primaryKey"`
		Name          string    `gorm:"column:name;type:varchar(256);not null"`
		Category      string    `gorm:"column:category;type:varchar(32);not null"`
		Location      string    `gorm:"column:location;type:varchar(256);not null"`
		Description   string    `gorm:"column:description;type:text;not null"`
		AverageRating *float64  `gorm:"column:average_rating"`
		PriceRange    string    `gorm:"column:price_range;type:varchar(32);not null"`
		TotalReviews  int       `gorm:"column:total_reviews;not null"`
		VisitCount    int       `gorm:"column:visit_count;not null"`
		Timestamp     time.Time `gorm:"column:time_stamp;not null"`
	}
	type SQLInteraction struct {
		Id        int64     `gorm:"column:id;primaryKey;autoIncrement"`
		Kind      string    `gorm:"column:kind;type:varchar(16);not null"`
		UserId    string    `gorm:"column:user_id;type:varchar(256);not null;index"`
		ItemId    string    `gorm:"column:item_id;type:varchar(256);not null;index"`
		Rating    float64   `gorm:"column:rating;not null"`
		Status    string    `gorm:"column:status;type:varchar(16);not null"`
		Timestamp time.Time `gorm:"column:time_stamp;not null"`
	}
	tx := d.gormDB
	if d.scheme == storage.SchemeMySQL {
		tx = tx.Set("gorm:table_options", "ENGINE=InnoDB")
	}
	if err := tx.AutoMigrate(SQLUser{}, SQLPlace{}, SQLInteraction{}); err != nil {
		return errors.Trace(err)
	}
	return nil
}

func (d *SQLDatabase) Ping() error {
	return d.client.Ping()
}

// Close the database connection.
func (d *SQLDatabase) Close() error {
	return d.client.Close()
}

func (d *SQLDatabase) Purge() error {
	for _, tableName := range []string{d.UsersTable(), d.PlacesTable(), d.InteractionsTable()} {
		if err := d.gormDB.Exec("DELETE FROM " + tableName).Error; err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// BatchInsertUsers inserts users and overwrites existing ones.
func (d *SQLDatabase) BatchInsertUsers(ctx context.Context, users []User) error {
	if len(users) == 0 {
		return nil
	}
	rows := lo.Map(users, func(user User, _ int) User {
		user.LastLogin = user.LastLogin.UTC()
		if user.DateOfBirth != nil {
			user.DateOfBirth = lo.ToPtr(user.DateOfBirth.UTC())
		}
		return user
	})
	err := d.gormDB.WithContext(ctx).Table(d.UsersTable()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	return errors.Trace(err)
}

func (d *SQLDatabase) GetUser(ctx context.Context, userId string) (User, error) {
	var users []User
	if err := d.gormDB.WithContext(ctx).Table(d.UsersTable()).Where("user_id = ?", userId).Limit(1).Find(&users).Error; err != nil {
		return User{}, errors.Trace(err)
	}
	if len(users) == 0 {
		return User{}, errors.Annotate(ErrUserNotExist, userId)
	}
	return users[0], nil
}

// DeleteUser deletes a user and the interactions of the user.
func (d *SQLDatabase) DeleteUser(ctx context.Context, userId string) error {
	return d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(d.UsersTable()).Where("user_id = ?", userId).Delete(&User{}).Error; err != nil {
			return errors.Trace(err)
		}
		if err := tx.Table(d.InteractionsTable()).Where("user_id = ?", userId).Delete(&Interaction{}).Error; err != nil {
			return errors.Trace(err)
		}
		return nil
	})
}

func (d *SQLDatabase) GetUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := d.gormDB.WithContext(ctx).Table(d.UsersTable()).Order("user_id").Find(&users).Error
	return users, errors.Trace(err)
}

func (d *SQLDatabase) GetActiveUsers(ctx context.Context, since time.Time) ([]User, error) {
	var users []User
	err := d.gormDB.WithContext(ctx).Table(d.UsersTable()).
		Where("last_login >= ?", since.UTC()).
		Order("user_id").Find(&users).Error
	return users, errors.Trace(err)
}

// BatchInsertItems inserts places and overwrites existing ones.
func (d *SQLDatabase) BatchInsertItems(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	rows := lo.Map(items, func(item Item, _ int) Item {
		item.Timestamp = item.Timestamp.UTC()
		return item
	})
	err := d.gormDB.WithContext(ctx).Table(d.PlacesTable()).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	return errors.Trace(err)
}

func (d *SQLDatabase) GetItem(ctx context.Context, itemId string) (Item, error) {
	var items []Item
	if err := d.gormDB.WithContext(ctx).Table(d.PlacesTable()).Where("item_id = ?", itemId).Limit(1).Find(&items).Error; err != nil {
		return Item{}, errors.Trace(err)
	}
	if len(items) == 0 {
		return Item{}, errors.Annotate(ErrItemNotExist, itemId)
	}
	return items[0], nil
}

// DeleteItem deletes a place and the interactions with the place.
func (d *SQLDatabase) DeleteItem(ctx context.Context, itemId string) error {
	return d.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(d.PlacesTable()).Where("item_id = ?", itemId).Delete(&Item{}).Error; err != nil {
			return errors.Trace(err)
		}
		if err := tx.Table(d.InteractionsTable()).Where("item_id = ?", itemId).Delete(&Interaction{}).Error; err != nil {
			return errors.Trace(err)
		}
		return nil
	})
}

func (d *SQLDatabase) GetItems(ctx context.Context) ([]Item, error) {
	var items []Item
	err := d.gormDB.WithContext(ctx).Table(d.PlacesTable()).Order("item_id").Find(&items).Error
	return items, errors.Trace(err)
}

func (d *SQLDatabase) SaveInteraction(ctx context.Context, interaction *Interaction) error {
	interaction.Timestamp = interaction.Timestamp.UTC()
	if interaction.Id == 0 {
		err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).Create(interaction).Error
		return errors.Trace(err)
	}
	tx := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).Where("id = ?", interaction.Id).Updates(map[string]any{
		"kind":       interaction.Kind,
		"user_id":    interaction.UserId,
		"item_id":    interaction.ItemId,
		"rating":     interaction.Rating,
		"status":     interaction.Status,
		"time_stamp": interaction.Timestamp,
	})
	if tx.Error != nil {
		return errors.Trace(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return errors.Annotatef(ErrInteractionNotExist, "%d", interaction.Id)
	}
	return nil
}

func (d *SQLDatabase) BatchInsertInteractions(ctx context.Context, interactions []Interaction) error {
	if len(interactions) == 0 {
		return nil
	}
	rows := lo.Map(interactions, func(interaction Interaction, _ int) Interaction {
		interaction.Id = 0
		interaction.Timestamp = interaction.Timestamp.UTC()
		return interaction
	})
	err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).Create(&rows).Error
	return errors.Trace(err)
}

func (d *SQLDatabase) GetInteraction(ctx context.Context, id int64) (Interaction, error) {
	var interactions []Interaction
	if err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).Where("id = ?", id).Limit(1).Find(&interactions).Error; err != nil {
		return Interaction{}, errors.Trace(err)
	}
	if len(interactions) == 0 {
		return Interaction{}, errors.Annotatef(ErrInteractionNotExist, "%d", id)
	}
	return interactions[0], nil
}

func (d *SQLDatabase) DeleteInteraction(ctx context.Context, id int64) error {
	err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).Where("id = ?", id).Delete(&Interaction{}).Error
	return errors.Trace(err)
}

func (d *SQLDatabase) GetUserInteractions(ctx context.Context, userId string) ([]Interaction, error) {
	var interactions []Interaction
	err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).
		Where("user_id = ?", userId).
		Order("id").Find(&interactions).Error
	return interactions, errors.Trace(err)
}

func (d *SQLDatabase) GetInteractionStream(ctx context.Context, batchSize int) (chan []Interaction, chan error) {
	interactionChan := make(chan []Interaction, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(interactionChan)
		defer close(errChan)
		// send query
		result, err := d.gormDB.WithContext(ctx).Table(d.InteractionsTable()).Order("id").Rows()
		if err != nil {
			errChan <- errors.Trace(err)
			return
		}
		// fetch result
		interactions := make([]Interaction, 0, batchSize)
		defer result.Close()
		for result.Next() {
			var interaction Interaction
			if err = d.gormDB.ScanRows(result, &interaction); err != nil {
				errChan <- errors.Trace(err)
				return
			}
			interactions = append(interactions, interaction)
			if len(interactions) == batchSize {
				select {
				case interactionChan <- interactions:
				case <-ctx.Done():
					errChan <- errors.Trace(ctx.Err())
					return
				}
				interactions = make([]Interaction, 0, batchSize)
			}
		}
		if err = result.Err(); err != nil {
			errChan <- errors.Trace(err)
			return
		}
		if len(interactions) > 0 {
			interactionChan <- interactions
		}
		errChan <- nil
	}()
	return interactionChan, errChan
}
