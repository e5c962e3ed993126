package tokenizer

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCounter counts words and records calls
type mockCounter struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockCounter) CountTokens(text, _ string) (int, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return len(strings.Fields(text)), nil
}

func (m *mockCounter) ChunkTextByTokens(text string, maxTokens int, model string) ([]string, error) {
	return SplitByTokens(text, maxTokens, func(s string) (int, error) {
		return m.CountTokens(s, model)
	})
}

func (m *mockCounter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// fakeEncoder emits one token per rune
type fakeEncoder struct{}

func (fakeEncoder) Encode(text string, _ []string, _ []string) []int {
	return make([]int, len([]rune(text)))
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func TestService_UsesPreciseCounter(t *testing.T) {
	precise := &mockCounter{}
	svc := NewService(precise, NewEstimator(MethodChars), nil)

	n, err := svc.CountTokens("one two three", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(0), svc.Stats().Fallbacks)
	assert.True(t, svc.Precise())
}

func TestService_FallsBackWhenEncodingUnavailable(t *testing.T) {
	precise := &mockCounter{err: ErrEncodingUnavailable}
	svc := NewService(precise, NewEstimator(MethodMixed), nil)

	n, err := svc.CountTokens("aaaa bbbb cccc dddd", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
	assert.Equal(t, int64(1), svc.Stats().Fallbacks)
}

func TestService_PropagatesOtherErrors(t *testing.T) {
	boom := errors.New("counter exploded")
	svc := NewService(&mockCounter{err: boom}, NewEstimator(MethodMixed), nil)

	_, err := svc.CountTokens("text", "gpt-4o")
	assert.ErrorIs(t, err, boom)
}

func TestService_EmptyText(t *testing.T) {
	precise := &mockCounter{}
	svc := NewService(precise, NewEstimator(MethodMixed), NewCache(10))

	n, err := svc.CountTokens("", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, precise.Calls())
}

func TestService_Caching(t *testing.T) {
	precise := &mockCounter{}
	svc := NewService(precise, NewEstimator(MethodMixed), NewCache(10))

	first, err := svc.CountTokens("alpha beta", "gpt-4o")
	require.NoError(t, err)
	second, err := svc.CountTokens("alpha beta", "gpt-4o")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, precise.Calls())
	assert.Equal(t, int64(1), svc.Stats().CacheHits)
	assert.Equal(t, int64(1), svc.Stats().CacheMisses)

	// Different model is a different key
	_, err = svc.CountTokens("alpha beta", "gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 2, precise.Calls())
}

func TestService_CachedValueMatchesUncached(t *testing.T) {
	cached := NewService(nil, NewEstimator(MethodMixed), NewCache(4))
	uncached := NewService(nil, NewEstimator(MethodMixed), nil)

	texts := []string{"a", "package main", "func f() {}", "x y z w v u", "a"}
	for _, text := range texts {
		got, err := cached.CountTokens(text, "m")
		require.NoError(t, err)
		want, err := uncached.CountTokens(text, "m")
		require.NoError(t, err)
		assert.Equal(t, want, got, text)
	}
}

func TestService_ChunkTextByTokens(t *testing.T) {
	svc := NewService(&mockCounter{}, NewEstimator(MethodMixed), NewCache(100))

	pieces, err := svc.ChunkTextByTokens("one two. three four. five six.", 2, "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, []string{"one two. ", "three four. ", "five six."}, pieces)
}

func TestService_ConcurrentUse(t *testing.T) {
	svc := NewService(&mockCounter{}, NewEstimator(MethodMixed), NewCache(16))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				n, err := svc.CountTokens("one two three", "gpt-4o")
				assert.NoError(t, err)
				assert.Equal(t, 3, n)
			}
		}()
	}
	wg.Wait()
}

func TestTiktokenCounter_LoadsEncodingPerModel(t *testing.T) {
	var mu sync.Mutex
	loaded := map[string]int{}
	loader := func(name string) (Encoder, error) {
		mu.Lock()
		defer mu.Unlock()
		loaded[name]++
		return fakeEncoder{}, nil
	}

	c := NewTiktokenCounter(loader, fastRetry())

	n, err := c.CountTokens("héllo", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = c.CountTokens("more", "gpt-4o-mini")
	require.NoError(t, err)
	_, err = c.CountTokens("text", "gpt-3.5-turbo")
	require.NoError(t, err)

	assert.Equal(t, map[string]int{EncodingO200K: 1, EncodingCL100K: 1}, loaded)
}

func TestTiktokenCounter_RetriesThenRemembersFailure(t *testing.T) {
	attempts := 0
	loader := func(string) (Encoder, error) {
		attempts++
		return nil, errors.New("network down")
	}

	c := NewTiktokenCounter(loader, fastRetry())

	_, err := c.CountTokens("text", "gpt-4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEncodingUnavailable)
	assert.Equal(t, 3, attempts)

	_, err = c.CountTokens("other text", "gpt-4")
	assert.ErrorIs(t, err, ErrEncodingUnavailable)
	assert.Equal(t, 3, attempts, "failed load must not be retried")
}

func TestTiktokenCounter_RetrySucceeds(t *testing.T) {
	attempts := 0
	loader := func(string) (Encoder, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("transient")
		}
		return fakeEncoder{}, nil
	}

	c := NewTiktokenCounter(loader, fastRetry())
	n, err := c.CountTokens("abc", "gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, attempts)
}

func TestTiktokenCounter_EmptyTextSkipsLoad(t *testing.T) {
	c := NewTiktokenCounter(func(string) (Encoder, error) {
		t.Fatal("loader must not be called")
		return nil, nil
	}, fastRetry())

	n, err := c.CountTokens("", "gpt-4")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestService_FallbackWithFailingTiktoken(t *testing.T) {
	precise := NewTiktokenCounter(func(string) (Encoder, error) {
		return nil, errors.New("offline")
	}, fastRetry())
	svc := NewService(precise, NewEstimator(MethodMixed), NewCache(10))

	n, err := svc.CountTokens("aaaa bbbb cccc dddd", "gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestService_Identity(t *testing.T) {
	estimated := NewService(nil, NewEstimator(MethodChars), nil)
	assert.Equal(t, "estimate/chars", estimated.Identity("gpt-4o"))

	working := NewService(NewTiktokenCounter(func(string) (Encoder, error) {
		return fakeEncoder{}, nil
	}, fastRetry()), NewEstimator(MethodMixed), nil)
	assert.Equal(t, "tiktoken/o200k_base", working.Identity("gpt-4o"))
	assert.Equal(t, "tiktoken/cl100k_base", working.Identity("gpt-4"))

	offline := NewService(NewTiktokenCounter(func(string) (Encoder, error) {
		return nil, errors.New("offline")
	}, fastRetry()), NewEstimator(MethodMixed), nil)
	assert.Equal(t, "estimate/mixed", offline.Identity("gpt-4o"))
}
