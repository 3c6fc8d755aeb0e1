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
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/storage"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

var ErrNoDatabase = errors.NotAssignedf("message queue")

// Message is a task payload. A message is not delivered before its Timestamp.
type Message struct {
	Id        string
	Data      string
	Timestamp time.Time
}

// Database is a durable queue of delayed messages. Pop returns io.EOF if no
// message of the queue is due.
type Database interface {
	Init() error
	Close() error
	Purge() error
	Push(ctx context.Context, name string, message Message) error
	Pop(ctx context.Context, name string) (Message, error)
}

func Open(path, prefix string, opts ...storage.Option) (Database, error) {
	switch scheme := storage.ParseScheme(path); {
	case scheme.IsSQL():
		conn, err := storage.OpenSQL(path, prefix, storage.NewOptions(opts...))
		if err != nil {
			return nil, errors.Trace(err)
		}
		return &SQL{TablePrefix: storage.TablePrefix(prefix), client: conn.Client, gormDB: conn.GORM}, nil
	case scheme == storage.SchemeRedis:
		opt, err := redis.ParseURL(path)
		if err != nil {
			return nil, errors.Trace(err)
		}
		database := new(Redis)
		database.TablePrefix = storage.TablePrefix(prefix)
		database.client = redis.NewClient(opt)
		if err = redisotel.InstrumentTracing(database.client); err != nil {
			return nil, errors.Trace(err)
		}
		return database, nil
	case scheme == storage.SchemeMemory:
		return NewMemory(), nil
	default:
		return nil, errors.NotSupportedf("queue store %s", scheme)
	}
}

// NoDatabase means that no message queue is configured.
type NoDatabase struct{}

func (NoDatabase) Init() error {
	return ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Purge() error {
	return ErrNoDatabase
}

func (NoDatabase) Push(_ context.Context, _ string, _ Message) error {
	return ErrNoDatabase
}

func (NoDatabase) Pop(_ context.Context, _ string) (Message, error) {
	return Message{}, ErrNoDatabase
}
