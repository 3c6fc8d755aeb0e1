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
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/storage/data"
	"go.uber.org/zap"
)

// Event is a mutation of the entity store.
type Event interface {
	Type() string
}

// ItemChanged is published when a place is saved or deleted.
type ItemChanged struct {
	ItemId string
}

// UserChanged is published when a user is saved or deleted.
type UserChanged struct {
	UserId string
}

// InteractionCreated is published when a scored interaction is saved. Score is positive.
type InteractionCreated struct {
	UserId string
	ItemId string
	Kind   data.InteractionKind
	Score  float64
}

// InteractionDeleted is published when a scored interaction is deleted. Score
// is the positive score being withdrawn.
type InteractionDeleted struct {
	UserId string
	ItemId string
	Kind   data.InteractionKind
	Score  float64
}

func (ItemChanged) Type() string        { return "item_changed" }
func (UserChanged) Type() string        { return "user_changed" }
func (InteractionCreated) Type() string { return "interaction_created" }
func (InteractionDeleted) Type() string { return "interaction_deleted" }

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Dispatcher turns events into tasks:
//
//	ItemChanged        -> invalidate_similar, request_global_rebuild
//	UserChanged        -> request_global_rebuild
//	InteractionCreated -> apply_interaction(+score)
//	InteractionDeleted -> apply_interaction(-score)
type Dispatcher struct {
	queue *Queue
}

func NewDispatcher(queue *Queue) *Dispatcher {
	return &Dispatcher{queue: queue}
}

func (d *Dispatcher) Publish(ctx context.Context, event Event) error {
	tasks, err := d.tasks(event)
	if err != nil {
		return errors.Trace(err)
	}
	now := time.Now()
	for _, task := range tasks {
		if err = d.queue.Enqueue(ctx, task, now); err != nil {
			return errors.Trace(err)
		}
	}
	log.Logger().Debug("dispatch event", zap.String("event", event.Type()), zap.Int("n_tasks", len(tasks)))
	return nil
}

func (d *Dispatcher) tasks(event Event) ([]Task, error) {
	switch e := event.(type) {
	case ItemChanged:
		invalidate, err := NewTask(TaskInvalidateSimilar, ItemPayload{ItemId: e.ItemId})
		if err != nil {
			return nil, err
		}
		rebuild, err := NewTask(TaskRequestGlobalRebuild, nil)
		if err != nil {
			return nil, err
		}
		return []Task{invalidate, rebuild}, nil
	case UserChanged:
		rebuild, err := NewTask(TaskRequestGlobalRebuild, nil)
		if err != nil {
			return nil, err
		}
		return []Task{rebuild}, nil
	case InteractionCreated:
		task, err := NewTask(TaskApplyInteraction, InteractionPayload{
			UserId: e.UserId, ItemId: e.ItemId, Kind: e.Kind, Score: e.Score,
		})
		if err != nil {
			return nil, err
		}
		return []Task{task}, nil
	case InteractionDeleted:
		task, err := NewTask(TaskApplyInteraction, InteractionPayload{
			UserId: e.UserId, ItemId: e.ItemId, Kind: e.Kind, Score: -e.Score,
		})
		if err != nil {
			return nil, err
		}
		return []Task{task}, nil
	}
	return nil, errors.NotSupportedf("event %T", event)
}
