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
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type baseTestSuite struct {
	suite.Suite
	Database
}

func (suite *baseTestSuite) SetupTest() {
	err := suite.Database.Purge()
	suite.NoError(err)
}

func (suite *baseTestSuite) TearDownSuite() {
	err := suite.Database.Close()
	suite.NoError(err)
}

func (suite *baseTestSuite) TestPushPop() {
	ctx := context.Background()
	err := suite.Push(ctx, "a", Message{Data: "1", Timestamp: time.Date(2000, 1, 1, 1, 1, 1, 0, time.UTC)})
	suite.NoError(err)
	err = suite.Push(ctx, "a", Message{Data: "2", Timestamp: time.Date(2001, 1, 1, 1, 1, 1, 0, time.UTC)})
	suite.NoError(err)
	err = suite.Push(ctx, "b", Message{Data: "3", Timestamp: time.Date(2002, 1, 1, 1, 1, 1, 0, time.UTC)})
	suite.NoError(err)
	err = suite.Push(ctx, "b", Message{Data: "4", Timestamp: time.Date(2003, 1, 1, 1, 1, 1, 0, time.UTC)})
	suite.NoError(err)

	message, err := suite.Pop(ctx, "a")
	suite.NoError(err)
	suite.Equal("1", message.Data)
	suite.NotEmpty(message.Id)
	message, err = suite.Pop(ctx, "a")
	suite.NoError(err)
	suite.Equal("2", message.Data)
	message, err = suite.Pop(ctx, "b")
	suite.NoError(err)
	suite.Equal("3", message.Data)
	message, err = suite.Pop(ctx, "b")
	suite.NoError(err)
	suite.Equal("4", message.Data)

	_, err = suite.Pop(ctx, "a")
	suite.ErrorIs(err, io.EOF)
	_, err = suite.Pop(ctx, "b")
	suite.ErrorIs(err, io.EOF)
}

func (suite *baseTestSuite) TestDuplicateTimestamp() {
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		err := suite.Push(ctx, "c", Message{Data: "1", Timestamp: time.Date(2000, 1, 1, 1, 1, 1, 0, time.UTC)})
		suite.NoError(err)
	}
	for i := 0; i < 100; i++ {
		message, err := suite.Pop(ctx, "c")
		suite.NoError(err)
		suite.Equal("1", message.Data)
	}
	_, err := suite.Pop(ctx, "c")
	suite.ErrorIs(err, io.EOF)
}

func (suite *baseTestSuite) TestDelayed() {
	ctx := context.Background()
	err := suite.Push(ctx, "d", Message{Data: "later", Timestamp: time.Now().Add(time.Hour)})
	suite.NoError(err)
	err = suite.Push(ctx, "d", Message{Data: "now", Timestamp: time.Now().Add(-time.Second)})
	suite.NoError(err)
	message, err := suite.Pop(ctx, "d")
	suite.NoError(err)
	suite.Equal("now", message.Data)
	// not due yet
	_, err = suite.Pop(ctx, "d")
	suite.ErrorIs(err, io.EOF)
}

type SQLiteTestSuite struct {
	baseTestSuite
}

func (suite *SQLiteTestSuite) SetupSuite() {
	var err error
	path := filepath.Join(suite.T().TempDir(), "queue.db")
	suite.Database, err = Open("sqlite://"+path, "placerec_")
	suite.NoError(err)
	err = suite.Database.Init()
	suite.NoError(err)
}

func TestSQLite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}

type MemoryTestSuite struct {
	baseTestSuite
}

func (suite *MemoryTestSuite) SetupSuite() {
	var err error
	suite.Database, err = Open("memory://", "")
	suite.NoError(err)
}

func TestMemory(t *testing.T) {
	suite.Run(t, new(MemoryTestSuite))
}

type RedisTestSuite struct {
	baseTestSuite
	server *miniredis.Miniredis
}

func (suite *RedisTestSuite) SetupSuite() {
	var err error
	suite.server, err = miniredis.Run()
	suite.NoError(err)
	suite.Database, err = Open("redis://"+suite.server.Addr(), "placerec_")
	suite.NoError(err)
	err = suite.Database.Init()
	suite.NoError(err)
}

func (suite *RedisTestSuite) TearDownSuite() {
	suite.baseTestSuite.TearDownSuite()
	suite.server.Close()
}

func TestRedis(t *testing.T) {
	suite.Run(t, new(RedisTestSuite))
}

func TestNoDatabase(t *testing.T) {
	ctx := context.Background()
	var database NoDatabase
	err := database.Init()
	assert.ErrorIs(t, err, ErrNoDatabase)
	err = database.Push(ctx, "test", Message{})
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = database.Pop(ctx, "test")
	assert.ErrorIs(t, err, ErrNoDatabase)
}
