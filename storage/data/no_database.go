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
)

// NoDatabase means that no database is configured.
type NoDatabase struct{}

func (NoDatabase) Init() error {
	return ErrNoDatabase
}

func (NoDatabase) Ping() error {
	return ErrNoDatabase
}

func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Purge() error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertUsers(_ context.Context, _ []User) error {
	return ErrNoDatabase
}

func (NoDatabase) GetUser(_ context.Context, _ string) (User, error) {
	return User{}, ErrNoDatabase
}

func (NoDatabase) DeleteUser(_ context.Context, _ string) error {
	return ErrNoDatabase
}

func (NoDatabase) GetUsers(_ context.Context) ([]User, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetActiveUsers(_ context.Context, _ time.Time) ([]User, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) BatchInsertItems(_ context.Context, _ []Item) error {
	return ErrNoDatabase
}

func (NoDatabase) GetItem(_ context.Context, _ string) (Item, error) {
	return Item{}, ErrNoDatabase
}

func (NoDatabase) DeleteItem(_ context.Context, _ string) error {
	return ErrNoDatabase
}

func (NoDatabase) GetItems(_ context.Context) ([]Item, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) SaveInteraction(_ context.Context, _ *Interaction) error {
	return ErrNoDatabase
}

func (NoDatabase) BatchInsertInteractions(_ context.Context, _ []Interaction) error {
	return ErrNoDatabase
}

func (NoDatabase) GetInteraction(_ context.Context, _ int64) (Interaction, error) {
	return Interaction{}, ErrNoDatabase
}

func (NoDatabase) DeleteInteraction(_ context.Context, _ int64) error {
	return ErrNoDatabase
}

func (NoDatabase) GetUserInteractions(_ context.Context, _ string) ([]Interaction, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) GetInteractionStream(_ context.Context, _ int) (chan []Interaction, chan error) {
	interactionChan := make(chan []Interaction, bufSize)
	errChan := make(chan error, 1)
	go func() {
		defer close(interactionChan)
		defer close(errChan)
		errChan <- ErrNoDatabase
	}()
	return interactionChan, errChan
}
