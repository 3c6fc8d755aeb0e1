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
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/placerec/placerec/storage"
	"github.com/redis/go-redis/v9"
)

// Redis stores each queue in a sorted set scored by the due time in milliseconds.
type Redis struct {
	storage.TablePrefix
	client *redis.Client
}

func (r *Redis) queueKey(name string) string {
	return r.Key("queue:" + name)
}

func (r *Redis) Init() error {
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Purge() error {
	ctx := context.Background()
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.Key("queue:*"), 0).Result()
		if err != nil {
			return errors.Trace(err)
		}
		if len(keys) > 0 {
			if err = r.client.Del(ctx, keys...).Err(); err != nil {
				return errors.Trace(err)
			}
		}
		if cursor = next; cursor == 0 {
			return nil
		}
	}
}

func (r *Redis) Push(ctx context.Context, name string, message Message) error {
	if message.Id == "" {
		message.Id = uuid.New().String()
	}
	member, err := json.Marshal(message)
	if err != nil {
		return errors.Trace(err)
	}
	err = r.client.ZAdd(ctx, r.queueKey(name), redis.Z{
		Score:  float64(message.Timestamp.UnixMilli()),
		Member: string(member),
	}).Err()
	return errors.Trace(err)
}

func (r *Redis) Pop(ctx context.Context, name string) (Message, error) {
	for i := 0; i < claimAttempts; i++ {
		members, err := r.client.ZRangeByScore(ctx, r.queueKey(name), &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
			Count: 1,
		}).Result()
		if err != nil {
			return Message{}, errors.Trace(err)
		}
		if len(members) == 0 {
			return Message{}, io.EOF
		}
		// the consumer that removes the member owns it
		removed, err := r.client.ZRem(ctx, r.queueKey(name), members[0]).Result()
		if err != nil {
			return Message{}, errors.Trace(err)
		}
		if removed == 0 {
			continue
		}
		var message Message
		if err = json.Unmarshal([]byte(members[0]), &message); err != nil {
			return Message{}, errors.Trace(err)
		}
		return message, nil
	}
	return Message{}, io.EOF
}
