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

	"github.com/juju/errors"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) TearDownSuite() {
	err := suite.Database.Close()
	suite.NoError(err)
}

func (suite *baseTestSuite) SetupTest() {
	err := suite.Database.Ping(context.Background())
	suite.NoError(err)
	err = suite.Database.Purge(context.Background())
	suite.NoError(err)
}

func (suite *baseTestSuite) TearDownTest() {
	err := suite.Database.Purge(context.Background())
	suite.NoError(err)
}

func (suite *baseTestSuite) TestGetSet() {
	ctx := context.Background()
	err := suite.Database.Set(ctx, "1", []byte("2"), 0)
	suite.NoError(err)
	value, err := suite.Database.Get(ctx, "1")
	suite.NoError(err)
	suite.Equal([]byte("2"), value)
	// overwrite
	err = suite.Database.Set(ctx, "1", []byte("3"), 0)
	suite.NoError(err)
	value, err = suite.Database.Get(ctx, "1")
	suite.NoError(err)
	suite.Equal([]byte("3"), value)
	// get not existed
	_, err = suite.Database.Get(ctx, "1000")
	suite.True(errors.Is(err, errors.NotFound), err)
}

func (suite *baseTestSuite) TestSetNX() {
	ctx := context.Background()
	ok, err := suite.Database.SetNX(ctx, "lock:a", []byte("1"), 0)
	suite.NoError(err)
	suite.True(ok)
	ok, err = suite.Database.SetNX(ctx, "lock:a", []byte("2"), 0)
	suite.NoError(err)
	suite.False(ok)
	value, err := suite.Database.Get(ctx, "lock:a")
	suite.NoError(err)
	suite.Equal([]byte("1"), value)
	// released lock can be acquired again
	err = suite.Database.Delete(ctx, "lock:a")
	suite.NoError(err)
	ok, err = suite.Database.SetNX(ctx, "lock:a", []byte("3"), 0)
	suite.NoError(err)
	suite.True(ok)
}

func (suite *baseTestSuite) TestDelete() {
	ctx := context.Background()
	suite.NoError(suite.Database.Set(ctx, "1", []byte("1"), 0))
	suite.NoError(suite.Database.Set(ctx, "2", []byte("2"), 0))
	err := suite.Database.Delete(ctx, "1", "2", "3")
	suite.NoError(err)
	_, err = suite.Database.Get(ctx, "1")
	suite.True(errors.Is(err, errors.NotFound), err)
	_, err = suite.Database.Get(ctx, "2")
	suite.True(errors.Is(err, errors.NotFound), err)
	// delete nothing
	err = suite.Database.Delete(ctx)
	suite.NoError(err)
}

func (suite *baseTestSuite) TestHashFloats() {
	ctx := context.Background()
	// missing hash is empty
	scores, err := suite.Database.GetHashFloats(ctx, "user:1:boost_scores")
	suite.NoError(err)
	suite.Empty(scores)
	// increments commute
	err = suite.Database.IncrHashFloats(ctx, "user:1:boost_scores", map[string]float64{"10": 0.3}, 0)
	suite.NoError(err)
	err = suite.Database.IncrHashFloats(ctx, "user:1:boost_scores", map[string]float64{"10": -0.1, "20": 1}, 0)
	suite.NoError(err)
	err = suite.Database.IncrHashFloats(ctx, "user:1:boost_scores", map[string]float64{"10": 0.2}, 0)
	suite.NoError(err)
	scores, err = suite.Database.GetHashFloats(ctx, "user:1:boost_scores")
	suite.NoError(err)
	suite.Len(scores, 2)
	suite.InDelta(0.4, scores["10"], 1e-9)
	suite.InDelta(1.0, scores["20"], 1e-9)
	// empty increments
	err = suite.Database.IncrHashFloats(ctx, "user:2:boost_scores", nil, 0)
	suite.NoError(err)
}
