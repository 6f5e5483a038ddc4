package rag

import (
	"context"
	"fmt"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"fableweaver/server/internal/config"
)

const embeddingCacheTTL = 24 * time.Hour

// EmbeddingService generates text embeddings through the OpenAI
// embeddings API, with an in-process cache keyed by input text.
type EmbeddingService struct {
	api   *openai.Client
	model openai.EmbeddingModel

	mu    sync.RWMutex
	cache map[string]cachedEmbedding
}

type cachedEmbedding struct {
	vector    []float32
	createdAt time.Time
}

func NewEmbeddingService(cfg config.OpenAIConfig) *EmbeddingService {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &EmbeddingService{
		api:   openai.NewClientWithConfig(clientCfg),
		model: openai.EmbeddingModel(cfg.EmbeddingModel),
		cache: make(map[string]cachedEmbedding),
	}
}

// Embed returns the embedding vector for a single text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := s.fromCache(text); ok {
		return vec, nil
	}

	resp, err := s.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no vectors")
	}

	vec := resp.Data[0].Embedding
	s.put(text, vec)
	return vec, nil
}

func (s *EmbeddingService) fromCache(text string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cached, ok := s.cache[text]
	if !ok || time.Since(cached.createdAt) > embeddingCacheTTL {
		return nil, false
	}
	return cached.vector, true
}

func (s *EmbeddingService) put(text string, vec []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[text] = cachedEmbedding{vector: vec, createdAt: time.Now()}
}

// CacheSize returns the number of cached embeddings.
func (s *EmbeddingService) CacheSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cache)
}
