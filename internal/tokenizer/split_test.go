package tokenizer

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wordCount(s string) (int, error) {
	return len(strings.Fields(s)), nil
}

func charCount(s string) (int, error) {
	return len(s), nil
}

func TestSplitByTokens(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		max   int
		count CountFunc
		want  []string
	}{
		{
			name:  "empty text",
			text:  "",
			max:   10,
			count: wordCount,
			want:  []string{},
		},
		{
			name:  "fits in one piece",
			text:  "One two three. Four.",
			max:   10,
			count: wordCount,
			want:  []string{"One two three. Four."},
		},
		{
			name:  "sentences packed greedily",
			text:  "One two three. Four five six. Seven.",
			max:   4,
			count: wordCount,
			want:  []string{"One two three. ", "Four five six. Seven."},
		},
		{
			name:  "long sentence split by words",
			text:  "a b c d e f g h i j",
			max:   3,
			count: wordCount,
			want:  []string{"a b c ", "d e f ", "g h i ", "j"},
		},
		{
			name:  "overlong word emitted uncut",
			text:  "a bbbbbbbbbb c",
			max:   3,
			count: charCount,
			want:  []string{"a ", "bbbbbbbbbb ", "c"},
		},
		{
			name:  "leading whitespace kept with first word",
			text:  "   w1 w2 w3",
			max:   2,
			count: wordCount,
			want:  []string{"   w1 w2 ", "w3"},
		},
		{
			name:  "multiple terminators",
			text:  "Wait!! Really?? Yes.",
			max:   2,
			count: wordCount,
			want:  []string{"Wait!! Really?? ", "Yes."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SplitByTokens(tt.text, tt.max, tt.count)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, strings.Join(got, ""))
		})
	}
}

func TestSplitByTokens_PiecesWithinBudget(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		b.WriteString("The quick brown fox jumps over the lazy dog. ")
		if i%7 == 0 {
			b.WriteString("Then it rests! ")
		}
	}
	text := b.String()
	e := NewEstimator(MethodMixed)

	pieces, err := e.ChunkTextByTokens(text, 50, "")
	require.NoError(t, err)
	require.NotEmpty(t, pieces)
	assert.Equal(t, text, strings.Join(pieces, ""))
	for i, p := range pieces {
		assert.LessOrEqual(t, e.Estimate(p), 50, "piece %d over budget", i)
	}
}

func TestSplitByTokens_LargeFileThreePieces(t *testing.T) {
	text := strings.Repeat("tok ", 250000)

	pieces, err := SplitByTokens(text, 100000, wordCount)
	require.NoError(t, err)
	require.Len(t, pieces, 3)
	for _, p := range pieces {
		n, _ := wordCount(p)
		assert.LessOrEqual(t, n, 100000)
	}
	assert.Equal(t, text, strings.Join(pieces, ""))
}

func TestSplitByTokens_InvalidBudget(t *testing.T) {
	for _, max := range []int{0, -5} {
		_, err := SplitByTokens("some text", max, wordCount)
		assert.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestSplitByTokens_CounterError(t *testing.T) {
	boom := errors.New("boom")
	_, err := SplitByTokens("some text", 1, func(string) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestSplitByTokens_BacksOffWhenJoinedCountGrows(t *testing.T) {
	// Each unit counts 1 alone, but any joined piece costs an extra token.
	count := func(s string) (int, error) {
		n := len(strings.Fields(s))
		if n > 1 {
			n++
		}
		return n, nil
	}

	got, err := SplitByTokens("a b c d", 3, count)
	require.NoError(t, err)
	assert.Equal(t, "a b c d", strings.Join(got, ""))
	for _, p := range got {
		n, _ := count(p)
		assert.LessOrEqual(t, n, 3)
	}
}

func TestSplitByTokens_MixedEstimatorFillsBudget(t *testing.T) {
	// No sentence terminators, so the text is cut at word boundaries only.
	text := strings.Repeat("x = foo(bar); ", 65790)
	e := NewEstimator(MethodMixed)
	require.Equal(t, 250002, e.Estimate(text))

	pieces, err := e.ChunkTextByTokens(text, 100000, "")
	require.NoError(t, err)
	require.Len(t, pieces, 3)
	assert.Equal(t, text, strings.Join(pieces, ""))
	for i, p := range pieces {
		assert.LessOrEqual(t, e.Estimate(p), 100000, "piece %d over budget", i)
	}
	assert.GreaterOrEqual(t, e.Estimate(pieces[0]), 99990)
	assert.GreaterOrEqual(t, e.Estimate(pieces[1]), 99990)
}

func TestSplitByTokens_JoinedCountBelowUnitSum(t *testing.T) {
	// Units count 2 each alone but 1 per word once joined.
	count := func(s string) (int, error) {
		n := len(strings.Fields(s))
		if n == 1 {
			return 2, nil
		}
		return n, nil
	}

	got, err := SplitByTokens("a b c d e f", 4, count)
	require.NoError(t, err)
	assert.Equal(t, []string{"a b c d ", "e f"}, got)
}
