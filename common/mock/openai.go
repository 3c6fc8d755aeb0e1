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
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/emicklei/go-restful/v3"
	"github.com/sashabaranov/go-openai"
)

// OpenAIServer is an in-process OpenAI compatible embeddings API.
type OpenAIServer struct {
	listener   net.Listener
	httpServer *http.Server
	authToken  string
	ready      chan struct{}

	mu       sync.Mutex
	embedder func(input string) []float32
	requests atomic.Int64
}

func NewOpenAIServer() *OpenAIServer {
	s := &OpenAIServer{}
	ws := new(restful.WebService)
	ws.Path("/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)
	ws.Route(ws.POST("embeddings").
		Reads(openai.EmbeddingRequest{}).
		Writes(openai.EmbeddingResponse{}).
		To(s.embeddings))
	container := restful.NewContainer()
	container.Add(ws)
	s.httpServer = &http.Server{Handler: container}
	s.authToken = "ollama"
	s.ready = make(chan struct{})
	s.embedder = func(string) []float32 { return []float32{0} }
	return s
}

func (s *OpenAIServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return err
	}
	close(s.ready)
	return s.httpServer.Serve(s.listener)
}

func (s *OpenAIServer) BaseURL() string {
	return fmt.Sprintf("http://%s/v1", s.listener.Addr().String())
}

func (s *OpenAIServer) AuthToken() string {
	return s.authToken
}

func (s *OpenAIServer) Ready() {
	<-s.ready
}

func (s *OpenAIServer) Close() error {
	return s.httpServer.Close()
}

// Embeddings makes every input embed to the same vector.
func (s *OpenAIServer) Embeddings(embedding []float32) {
	s.Embedder(func(string) []float32 { return embedding })
}

// Embedder sets the function that embeds each input.
func (s *OpenAIServer) Embedder(embedder func(input string) []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedder = embedder
}

// Requests returns the number of embedding requests served.
func (s *OpenAIServer) Requests() int {
	return int(s.requests.Load())
}

func (s *OpenAIServer) embeddings(req *restful.Request, resp *restful.Response) {
	var r openai.EmbeddingRequest
	err := req.ReadEntity(&r)
	if err != nil {
		_ = resp.WriteError(http.StatusBadRequest, err)
		return
	}
	s.requests.Add(1)
	var inputs []string
	switch input := r.Input.(type) {
	case string:
		inputs = []string{input}
	case []any:
		for _, v := range input {
			text, ok := v.(string)
			if !ok {
				_ = resp.WriteError(http.StatusBadRequest, fmt.Errorf("unsupported input %v", v))
				return
			}
			inputs = append(inputs, text)
		}
	default:
		_ = resp.WriteError(http.StatusBadRequest, fmt.Errorf("unsupported input %v", r.Input))
		return
	}
	s.mu.Lock()
	embedder := s.embedder
	s.mu.Unlock()
	data := make([]openai.Embedding, len(inputs))
	for i, input := range inputs {
		data[i] = openai.Embedding{Object: "embedding", Index: i, Embedding: embedder(input)}
	}
	_ = resp.WriteEntity(openai.EmbeddingResponse{Object: "list", Data: data, Model: r.Model})
}
