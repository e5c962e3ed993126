package tokenizer

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds tokenizer configuration
type Config struct {
	Method    Method // Fallback estimation method (default mixed)
	Precise   bool   // Use tiktoken encodings when available
	CacheSize int    // LRU entries; 0 uses DefaultCacheSize, negative disables
	Loader    EncodingLoader
	Retry     *RetryConfig
}

// New creates a counter service with explicit configuration
func New(cfg Config) (*Service, error) {
	method, err := ParseMethod(string(cfg.Method))
	if err != nil {
		return nil, err
	}

	var cache *Cache
	if cfg.CacheSize >= 0 {
		cache = NewCache(cfg.CacheSize)
	}

	var precise Counter
	if cfg.Precise {
		retry := DefaultRetryConfig()
		if cfg.Retry != nil {
			retry = *cfg.Retry
		}
		precise = NewTiktokenCounter(cfg.Loader, retry)
	}

	return NewService(precise, NewEstimator(method), cache), nil
}

// NewFromEnv creates a counter service from environment variables:
//
//	REPOCHUNK_TOKENIZER_METHOD      mixed | words | chars (default mixed)
//	REPOCHUNK_TOKENIZER_PRECISE     false disables tiktoken (default true)
//	REPOCHUNK_TOKENIZER_CACHE_SIZE  LRU entries (default 10000)
func NewFromEnv() (*Service, error) {
	cfg := Config{
		Method:  Method(os.Getenv("REPOCHUNK_TOKENIZER_METHOD")),
		Precise: true,
	}

	if v := os.Getenv("REPOCHUNK_TOKENIZER_PRECISE"); v != "" {
		precise, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%w: REPOCHUNK_TOKENIZER_PRECISE=%q", ErrInvalidInput, v)
		}
		cfg.Precise = precise
	}

	if v := os.Getenv("REPOCHUNK_TOKENIZER_CACHE_SIZE"); v != "" {
		size, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("%w: REPOCHUNK_TOKENIZER_CACHE_SIZE=%q", ErrInvalidInput, v)
		}
		cfg.CacheSize = size
	}

	return New(cfg)
}
