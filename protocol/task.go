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

	"github.com/goccy/go-json"
	"github.com/juju/errors"
	"github.com/placerec/placerec/storage/data"
	"github.com/placerec/placerec/storage/message"
)

// QueueName is the name of the task queue in the message store.
const QueueName = "tasks"

// Task names.
const (
	TaskRequestGlobalRebuild = "request_global_rebuild"
	TaskRebuildAll           = "rebuild_all"
	TaskInvalidateSimilar    = "invalidate_similar"
	TaskApplyInteraction     = "apply_interaction"
	TaskGenerateBatch        = "generate_batch"
	TaskGenerateUserBatch    = "generate_user_batch"
)

// Task is a unit of background work. Attempt counts failed executions.
type Task struct {
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Attempt uint            `json:"attempt,omitempty"`
}

type ItemPayload struct {
	ItemId string `json:"item_id"`
}

type UserPayload struct {
	UserId string `json:"user_id"`
}

// InteractionPayload carries a signed score delta for the speed layer.
type InteractionPayload struct {
	UserId string               `json:"user_id"`
	ItemId string               `json:"item_id"`
	Kind   data.InteractionKind `json:"kind"`
	Score  float64              `json:"score"`
}

// NewTask creates a task with an encoded payload. A nil payload is omitted.
func NewTask(name string, payload any) (Task, error) {
	task := Task{Name: name}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return Task{}, errors.Trace(err)
		}
		task.Payload = b
	}
	return task, nil
}

// Decode unmarshals the payload into v.
func (t Task) Decode(v any) error {
	if len(t.Payload) == 0 {
		return errors.NotValidf("empty payload of task %s", t.Name)
	}
	return errors.Trace(json.Unmarshal(t.Payload, v))
}

// Queue is the task queue on top of a message store.
type Queue struct {
	db message.Database
}

func NewQueue(db message.Database) *Queue {
	return &Queue{db: db}
}

// Enqueue schedules a task to run no earlier than eta.
func (q *Queue) Enqueue(ctx context.Context, task Task, eta time.Time) error {
	b, err := json.Marshal(task)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(q.db.Push(ctx, QueueName, message.Message{Data: string(b), Timestamp: eta}))
}

// Dequeue claims the next due task. It returns io.EOF if no task is due.
func (q *Queue) Dequeue(ctx context.Context) (Task, error) {
	msg, err := q.db.Pop(ctx, QueueName)
	if err != nil {
		return Task{}, err
	}
	var task Task
	if err = json.Unmarshal([]byte(msg.Data), &task); err != nil {
		return Task{}, errors.Annotatef(err, "corrupt task %s", msg.Id)
	}
	return task, nil
}
