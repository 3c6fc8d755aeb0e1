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

package cache

import (
	"context"
	"time"
)

var _ Database = NoDatabase{}

// NoDatabase stands in for an unconfigured cache. Every call fails with ErrNoDatabase.
type NoDatabase struct{}

// Close method of NoDatabase returns ErrNoDatabase.
func (NoDatabase) Close() error {
	return ErrNoDatabase
}

func (NoDatabase) Ping(_ context.Context) error {
	return ErrNoDatabase
}

func (NoDatabase) Purge(_ context.Context) error {
	return ErrNoDatabase
}

func (NoDatabase) Get(_ context.Context, _ string) ([]byte, error) {
	return nil, ErrNoDatabase
}

func (NoDatabase) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return ErrNoDatabase
}

func (NoDatabase) SetNX(_ context.Context, _ string, _ []byte, _ time.Duration) (bool, error) {
	return false, ErrNoDatabase
}

func (NoDatabase) Delete(_ context.Context, _ ...string) error {
	return ErrNoDatabase
}

func (NoDatabase) IncrHashFloats(_ context.Context, _ string, _ map[string]float64, _ time.Duration) error {
	return ErrNoDatabase
}

func (NoDatabase) GetHashFloats(_ context.Context, _ string) (map[string]float64, error) {
	return nil, ErrNoDatabase
}
