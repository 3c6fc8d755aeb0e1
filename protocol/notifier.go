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

package protocol

import (
	"context"

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/config"
	"github.com/placerec/placerec/dataset"
	"github.com/placerec/placerec/storage/data"
	"go.uber.org/zap"
)

// Notifier writes to the entity store and publishes the resulting events. It
// is the write path used by callers outside the recommender.
type Notifier struct {
	data.Database
	publisher Publisher
	cfg       config.InteractionConfig
}

func NewNotifier(db data.Database, publisher Publisher, cfg config.InteractionConfig) *Notifier {
	return &Notifier{Database: db, publisher: publisher, cfg: cfg}
}

func (n *Notifier) SaveUser(ctx context.Context, user data.User) error {
	if err := n.Database.BatchInsertUsers(ctx, []data.User{user}); err != nil {
		return errors.Trace(err)
	}
	return n.publish(ctx, UserChanged{UserId: user.UserId})
}

func (n *Notifier) DeleteUser(ctx context.Context, userId string) error {
	if err := n.Database.DeleteUser(ctx, userId); err != nil {
		return errors.Trace(err)
	}
	return n.publish(ctx, UserChanged{UserId: userId})
}

func (n *Notifier) SaveItem(ctx context.Context, item data.Item) error {
	if err := n.Database.BatchInsertItems(ctx, []data.Item{item}); err != nil {
		return errors.Trace(err)
	}
	return n.publish(ctx, ItemChanged{ItemId: item.ItemId})
}

func (n *Notifier) DeleteItem(ctx context.Context, itemId string) error {
	if err := n.Database.DeleteItem(ctx, itemId); err != nil {
		return errors.Trace(err)
	}
	return n.publish(ctx, ItemChanged{ItemId: itemId})
}

// SaveInteraction inserts or edits an interaction. Every save of a scored
// interaction with a positive score is published, edits included.
func (n *Notifier) SaveInteraction(ctx context.Context, interaction *data.Interaction) error {
	created := interaction.Id == 0
	if err := n.Database.SaveInteraction(ctx, interaction); err != nil {
		return errors.Trace(err)
	}
	// only reviews are signalled again on edit
	if !created && interaction.Kind != data.Review {
		return nil
	}
	if score := n.score(*interaction); score > 0 {
		return n.publish(ctx, InteractionCreated{
			UserId: interaction.UserId,
			ItemId: interaction.ItemId,
			Kind:   interaction.Kind,
			Score:  score,
		})
	}
	return nil
}

func (n *Notifier) DeleteInteraction(ctx context.Context, id int64) error {
	interaction, err := n.Database.GetInteraction(ctx, id)
	if err != nil {
		return errors.Trace(err)
	}
	if err = n.Database.DeleteInteraction(ctx, id); err != nil {
		return errors.Trace(err)
	}
	if score := n.score(interaction); score > 0 {
		return n.publish(ctx, InteractionDeleted{
			UserId: interaction.UserId,
			ItemId: interaction.ItemId,
			Kind:   interaction.Kind,
			Score:  score,
		})
	}
	return nil
}

func (n *Notifier) score(interaction data.Interaction) float64 {
	if !interaction.IsScored() {
		return 0
	}
	return dataset.Score(n.cfg, interaction.Kind, interaction.Rating)
}

func (n *Notifier) publish(ctx context.Context, event Event) error {
	if err := n.publisher.Publish(ctx, event); err != nil {
		log.Logger().Error("failed to publish event", zap.String("event", event.Type()), zap.Error(err))
		return errors.Trace(err)
	}
	return nil
}
