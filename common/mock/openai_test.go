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

package mock

import (
	"context"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/suite"
)

const embeddingModel = "text-embedding-3-small"

type EmbeddingServerSuite struct {
	suite.Suite
	server *OpenAIServer
	client *openai.Client
}

func (s *EmbeddingServerSuite) SetupSuite() {
	s.server = NewOpenAIServer()
	go func() {
		_ = s.server.Start()
	}()
	s.server.Ready()
	cfg := openai.DefaultConfig(s.server.AuthToken())
	cfg.BaseURL = s.server.BaseURL()
	s.client = openai.NewClientWithConfig(cfg)
}

func (s *EmbeddingServerSuite) TearDownSuite() {
	s.NoError(s.server.Close())
}

func (s *EmbeddingServerSuite) embed(input any) (openai.EmbeddingResponse, error) {
	return s.client.CreateEmbeddings(context.Background(), openai.EmbeddingRequest{
		Input: input,
		Model: embeddingModel,
	})
}

func (s *EmbeddingServerSuite) TestFixedEmbedding() {
	s.server.Embeddings([]float32{0.5, 0, 1})
	resp, err := s.embed("quiet cafe near the river")
	s.NoError(err)
	if s.Len(resp.Data, 1) {
		s.Equal([]float32{0.5, 0, 1}, resp.Data[0].Embedding)
	}
}

func (s *EmbeddingServerSuite) TestDescriptionBatch() {
	s.server.Embedder(func(input string) []float32 {
		return []float32{float32(len(input))}
	})
	before := s.server.Requests()
	resp, err := s.embed([]string{"museum", "night market", "zoo"})
	s.NoError(err)
	s.Equal(before+1, s.server.Requests())
	if s.Len(resp.Data, 3) {
		s.Equal([]float32{6}, resp.Data[0].Embedding)
		s.Equal([]float32{12}, resp.Data[1].Embedding)
		s.Equal(2, resp.Data[2].Index)
	}
}

func (s *EmbeddingServerSuite) TestUnsupportedInput() {
	_, err := s.embed(42)
	s.Error(err)
}

func TestEmbeddingServer(t *testing.T) {
	suite.Run(t, new(EmbeddingServerSuite))
}
