package tokenizer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Encoder is the part of a BPE encoding the precise counter uses.
type Encoder interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
}

// EncodingLoader loads a BPE encoding by name.
type EncodingLoader func(name string) (Encoder, error)

// LoadTiktokenEncoding loads an encoding through tiktoken-go. The first load
// of each encoding may download its rank file.
func LoadTiktokenEncoding(name string) (Encoder, error) {
	enc, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

// TiktokenCounter counts tokens with the BPE encoding matching each model.
// Encodings load lazily on first use. A failed load is remembered and
// reported as ErrEncodingUnavailable on every later call.
type TiktokenCounter struct {
	loader EncodingLoader
	retry  RetryConfig

	mu        sync.Mutex
	encodings map[string]Encoder
	failures  map[string]error
}

// NewTiktokenCounter creates a precise counter. A nil loader uses
// LoadTiktokenEncoding.
func NewTiktokenCounter(loader EncodingLoader, retry RetryConfig) *TiktokenCounter {
	if loader == nil {
		loader = LoadTiktokenEncoding
	}
	return &TiktokenCounter{
		loader:    loader,
		retry:     retry,
		encodings: make(map[string]Encoder),
		failures:  make(map[string]error),
	}
}

// CountTokens implements Counter.
func (c *TiktokenCounter) CountTokens(text, model string) (int, error) {
	if text == "" {
		return 0, nil
	}
	enc, err := c.encoding(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// ChunkTextByTokens implements Counter.
func (c *TiktokenCounter) ChunkTextByTokens(text string, maxTokens int, model string) ([]string, error) {
	return SplitByTokens(text, maxTokens, func(s string) (int, error) {
		return c.CountTokens(s, model)
	})
}

func (c *TiktokenCounter) encoding(model string) (Encoder, error) {
	name := EncodingForModel(model)

	c.mu.Lock()
	defer c.mu.Unlock()

	if enc, ok := c.encodings[name]; ok {
		return enc, nil
	}
	if err, ok := c.failures[name]; ok {
		return nil, err
	}

	enc, err := retryWithBackoff(context.Background(), c.retry, func() (Encoder, error) {
		return c.loader(name)
	})
	if err == nil && enc == nil {
		err = errors.New("loader returned no encoding")
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %v", ErrEncodingUnavailable, name, err)
		c.failures[name] = wrapped
		return nil, wrapped
	}

	c.encodings[name] = enc
	return enc, nil
}
