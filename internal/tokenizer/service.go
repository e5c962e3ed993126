package tokenizer

import (
	"errors"
	"sync/atomic"
)

// Service is the counter handed to the chunker. It asks the precise counter
// first and falls back to the estimator when the model's encoding cannot be
// loaded. Any other error from the precise counter is returned as is.
type Service struct {
	precise  Counter // nil disables precise counting
	fallback Estimator
	cache    *Cache // nil disables caching

	fallbacks atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
}

// NewService creates a Service. precise and cache may be nil.
func NewService(precise Counter, fallback Estimator, cache *Cache) *Service {
	if fallback.Method == "" {
		fallback.Method = MethodMixed
	}
	return &Service{precise: precise, fallback: fallback, cache: cache}
}

// CountTokens implements Counter.
func (s *Service) CountTokens(text, model string) (int, error) {
	if text == "" {
		return 0, nil
	}

	var key string
	if s.cache != nil {
		key = CacheKey(model, text)
		if n, ok := s.cache.Get(key); ok {
			s.hits.Add(1)
			return n, nil
		}
		s.misses.Add(1)
	}

	n, err := s.count(text, model)
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		s.cache.Set(key, n)
	}
	return n, nil
}

// ChunkTextByTokens implements Counter.
func (s *Service) ChunkTextByTokens(text string, maxTokens int, model string) ([]string, error) {
	return SplitByTokens(text, maxTokens, func(piece string) (int, error) {
		return s.CountTokens(piece, model)
	})
}

func (s *Service) count(text, model string) (int, error) {
	if s.precise != nil {
		n, err := s.precise.CountTokens(text, model)
		if err == nil {
			return n, nil
		}
		if !errors.Is(err, ErrEncodingUnavailable) {
			return 0, err
		}
		s.fallbacks.Add(1)
	}
	return s.fallback.Estimate(text), nil
}

// Stats reports counter activity since creation.
type Stats struct {
	CacheHits   int64
	CacheMisses int64
	Fallbacks   int64 // Counts served by the estimator after a precise failure
}

// Stats returns a snapshot of the service counters.
func (s *Service) Stats() Stats {
	return Stats{
		CacheHits:   s.hits.Load(),
		CacheMisses: s.misses.Load(),
		Fallbacks:   s.fallbacks.Load(),
	}
}

// Precise reports whether a precise counter is configured.
func (s *Service) Precise() bool {
	return s.precise != nil
}

// Method returns the fallback estimation method.
func (s *Service) Method() Method {
	return s.fallback.Method
}

// Identity implements Identifier. It names the scheme CountTokens uses for
// model: the tiktoken encoding, or the estimator method when no precise
// counter is configured or the encoding cannot be loaded.
func (s *Service) Identity(model string) string {
	estimate := "estimate/" + string(s.fallback.Method)
	if s.precise == nil {
		return estimate
	}
	if _, err := s.precise.CountTokens("identity", model); errors.Is(err, ErrEncodingUnavailable) {
		return estimate
	}
	return "tiktoken/" + EncodingForModel(model)
}
