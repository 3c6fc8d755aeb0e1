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

package worker

import (
	"encoding/gob"
	std_errors "errors"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"go.uber.org/zap"
)

// State is the identity of a worker node kept across restarts.
type State struct {
	path       string
	WorkerName string
}

// LoadState loads the state from a local file.
func LoadState(path string) (*State, error) {
	state := &State{path: path}
	f, err := os.Open(path)
	if err != nil {
		if std_errors.Is(err, os.ErrNotExist) {
			return state, errors.NotFoundf("state file %s", path)
		}
		return state, errors.Trace(err)
	}
	defer f.Close()
	if err = gob.NewDecoder(f).Decode(&state.WorkerName); err != nil {
		return state, errors.Trace(err)
	}
	return state, nil
}

// Write the state to its local file.
func (s *State) Write() error {
	if err := os.MkdirAll(filepath.Dir(s.path), os.ModePerm); err != nil {
		return errors.Trace(err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	return errors.Trace(gob.NewEncoder(f).Encode(s.WorkerName))
}

// WorkerName returns the persisted name of this worker. A new name is created
// and saved on first start. Without a path the name lives for this process only.
func WorkerName(path string) string {
	if path == "" {
		return uuid.New().String()
	}
	state, err := LoadState(path)
	if err != nil {
		if errors.Is(err, errors.NotFound) {
			log.Logger().Info("no state file found, create a new one", zap.String("path", path))
		} else {
			log.Logger().Error("failed to load worker state", zap.String("path", path), zap.Error(err))
		}
	}
	if state.WorkerName == "" {
		state.WorkerName = uuid.New().String()
		if err = state.Write(); err != nil {
			log.Logger().Error("failed to write worker state", zap.String("path", path), zap.Error(err))
		}
	}
	return state.WorkerName
}
