package tokenizer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// Common errors
var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrEncodingUnavailable = errors.New("tokenizer encoding unavailable")
	ErrUnsupportedMethod   = errors.New("unsupported estimation method")
)

// Counter converts text into token counts for a named model. Implementations
// must be deterministic for identical (text, model) pairs and safe for
// concurrent use.
type Counter interface {
	// CountTokens returns the number of tokens in text. Empty text is 0.
	CountTokens(text, model string) (int, error)

	// ChunkTextByTokens splits text into ordered pieces of at most maxTokens
	// tokens each. A single word longer than maxTokens is returned uncut.
	ChunkTextByTokens(text string, maxTokens int, model string) ([]string, error)
}

// Identifier is implemented by counters whose counts depend on their
// configuration. Counts from counters with different identities for the same
// model must not be mixed.
type Identifier interface {
	Identity(model string) string
}

// CountFunc counts the tokens of one string for a fixed model.
type CountFunc func(text string) (int, error)

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// CacheKey is the cache key for a (model, text) pair.
func CacheKey(model, text string) string {
	return model + ":" + ComputeHash(text)
}
