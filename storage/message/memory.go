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
	"io"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps queues in process memory, ordered by due time. Messages with
// the same due time are delivered in push order.
type Memory struct {
	mu     sync.Mutex
	queues map[string][]Message
}

func NewMemory() *Memory {
	return &Memory{queues: make(map[string][]Message)}
}

func (m *Memory) Init() error {
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) Purge() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.queues)
	return nil
}

func (m *Memory) Push(_ context.Context, name string, message Message) error {
	if message.Id == "" {
		message.Id = uuid.New().String()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.queues[name]
	pos := slices.IndexFunc(queue, func(other Message) bool {
		return other.Timestamp.After(message.Timestamp)
	})
	if pos < 0 {
		pos = len(queue)
	}
	m.queues[name] = slices.Insert(queue, pos, message)
	return nil
}

func (m *Memory) Pop(_ context.Context, name string) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.queues[name]
	if len(queue) == 0 || queue[0].Timestamp.After(time.Now()) {
		return Message{}, io.EOF
	}
	message := queue[0]
	m.queues[name] = queue[1:]
	return message, nil
}
