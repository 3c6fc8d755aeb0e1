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

package message

import (
	"context"
	"database/sql"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/placerec/placerec/storage"
	"gorm.io/gorm"
)

// claimAttempts bounds how often Pop retries after losing a row to another consumer.
const claimAttempts = 3

type SQLMessage struct {
	Name      string    `gorm:"type:varchar(256);index:timestamp"`
	Data      string    `gorm:"type:text"`
	Timestamp time.Time `gorm:"index:timestamp"`
	Id        string    `gorm:"type:varchar(64);primaryKey"`
}

// SQL stores messages in a table of a relational database.
type SQL struct {
	storage.TablePrefix
	client *sql.DB
	gormDB *gorm.DB
}

func (db *SQL) Init() error {
	err := db.gormDB.AutoMigrate(&SQLMessage{})
	return errors.Trace(err)
}

func (db *SQL) Close() error {
	return db.client.Close()
}

func (db *SQL) Purge() error {
	err := db.gormDB.Exec("DELETE FROM " + db.MessageTable()).Error
	return errors.Trace(err)
}

func (db *SQL) Push(ctx context.Context, name string, message Message) error {
	if message.Id == "" {
		message.Id = uuid.New().String()
	}
	err := db.gormDB.WithContext(ctx).Create(&SQLMessage{
		Name:      name,
		Data:      message.Data,
		Timestamp: message.Timestamp.UTC(),
		Id:        message.Id,
	}).Error
	return errors.Trace(err)
}

func (db *SQL) Pop(ctx context.Context, name string) (message Message, err error) {
	for i := 0; i < claimAttempts; i++ {
		claimed := false
		err = db.gormDB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row SQLMessage
			if err := tx.Where("name = ? AND timestamp <= ?", name, time.Now().UTC()).Order("timestamp").First(&row).Error; err != nil {
				return err
			}
			result := tx.Where("name = ? AND id = ?", name, row.Id).Delete(&SQLMessage{})
			if result.Error != nil {
				return result.Error
			}
			claimed = result.RowsAffected > 0
			message = Message{
				Id:        row.Id,
				Data:      row.Data,
				Timestamp: row.Timestamp,
			}
			return nil
		})
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Message{}, io.EOF
		} else if err != nil {
			return Message{}, errors.Trace(err)
		} else if claimed {
			return message, nil
		}
	}
	return Message{}, io.EOF
}
