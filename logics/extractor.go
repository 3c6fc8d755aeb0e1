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

package logics

import (
	"context"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/placerec/placerec/base/log"
	"github.com/placerec/placerec/common/parallel"
	"github.com/placerec/placerec/config"
	"github.com/sashabaranov/go-openai"
	"github.com/tiktoken-go/tokenizer"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// Extractor maps place descriptions to fixed-width vectors.
type Extractor interface {
	Extract(ctx context.Context, texts []string) ([][]float64, error)
}

func NewExtractor(cfg config.ContentConfig) (Extractor, error) {
	switch cfg.Extractor {
	case "local":
		return NewLocalExtractor(cfg.Dimension)
	case "openai":
		return NewOpenAIExtractor(cfg.OpenAI)
	}
	return nil, errors.NotSupportedf("extractor %s", cfg.Extractor)
}

// LocalExtractor hashes BPE tokens into a unit-length term frequency vector.
type LocalExtractor struct {
	codec     tokenizer.Codec
	dimension int
}

func NewLocalExtractor(dimension int) (*LocalExtractor, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &LocalExtractor{codec: codec, dimension: dimension}, nil
}

func (e *LocalExtractor) Extract(_ context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	for i, text := range texts {
		vectors[i] = make([]float64, e.dimension)
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			continue
		}
		ids, _, err := e.codec.Encode(text)
		if err != nil {
			return nil, errors.Trace(err)
		}
		for _, id := range ids {
			bucket := int(id % uint(e.dimension))
			if (id/uint(e.dimension))%2 == 0 {
				vectors[i][bucket]++
			} else {
				vectors[i][bucket]--
			}
		}
		if norm := floats.Norm(vectors[i], 2); norm > 0 {
			floats.Scale(1/norm, vectors[i])
		}
	}
	return vectors, nil
}

const embeddingBatchSize = 64

// OpenAIExtractor embeds descriptions with an OpenAI compatible API.
type OpenAIExtractor struct {
	client    *openai.Client
	model     string
	codec     tokenizer.Codec
	requests  parallel.RateLimiter
	tokens    parallel.RateLimiter
	dimension int
}

func NewOpenAIExtractor(cfg config.OpenAIConfig) (*OpenAIExtractor, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Trace(err)
	}
	clientConfig := openai.DefaultConfig(cfg.AuthToken)
	clientConfig.BaseURL = cfg.BaseURL
	return &OpenAIExtractor{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    cfg.EmbeddingModel,
		codec:    codec,
		requests: parallel.NewRateLimiter(cfg.EmbeddingRPM),
		tokens:   parallel.NewRateLimiter(cfg.EmbeddingTPM),
	}, nil
}

// Extract embeds non-empty texts in batches. Empty texts get zero vectors.
func (e *OpenAIExtractor) Extract(ctx context.Context, texts []string) ([][]float64, error) {
	vectors := make([][]float64, len(texts))
	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			pending = append(pending, i)
		}
	}
	for begin := 0; begin < len(pending); begin += embeddingBatchSize {
		batch := pending[begin:min(begin+embeddingBatchSize, len(pending))]
		inputs := make([]string, len(batch))
		numTokens := 0
		for k, i := range batch {
			inputs[k] = texts[i]
			if ids, _, err := e.codec.Encode(texts[i]); err == nil {
				numTokens += len(ids)
			}
		}
		if err := e.wait(ctx, e.requests.Take(1)+e.tokens.Take(int64(numTokens))); err != nil {
			return nil, err
		}
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: inputs,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			log.Logger().Error("failed to create embeddings", zap.Int("n_inputs", len(inputs)), zap.Error(err))
			return nil, errors.Trace(err)
		}
		if len(resp.Data) != len(inputs) {
			return nil, errors.Errorf("expect %d embeddings, got %d", len(inputs), len(resp.Data))
		}
		for _, embedding := range resp.Data {
			if embedding.Index < 0 || embedding.Index >= len(batch) {
				return nil, errors.Errorf("embedding index %d out of range", embedding.Index)
			}
			if e.dimension == 0 {
				e.dimension = len(embedding.Embedding)
			} else if e.dimension != len(embedding.Embedding) {
				return nil, errors.Errorf("expect %d dimensions, got %d", e.dimension, len(embedding.Embedding))
			}
			vector := make([]float64, len(embedding.Embedding))
			for j, v := range embedding.Embedding {
				vector[j] = float64(v)
			}
			vectors[batch[embedding.Index]] = vector
		}
	}
	for i := range vectors {
		if vectors[i] == nil {
			vectors[i] = make([]float64, e.dimension)
		}
	}
	return vectors, nil
}

func (e *OpenAIExtractor) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case <-timer.C:
		return nil
	}
}
