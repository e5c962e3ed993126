package tokenizer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Method selects how the fallback estimator turns text into a token count.
type Method string

const (
	// MethodMixed blends the word and character estimates 60/40 (default)
	MethodMixed Method = "mixed"
	// MethodWords estimates ceil(words / 0.75)
	MethodWords Method = "words"
	// MethodChars estimates ceil(chars / 4)
	MethodChars Method = "chars"
)

// ParseMethod converts a configuration string into a Method. Empty selects
// MethodMixed.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodMixed:
		return MethodMixed, nil
	case MethodWords:
		return MethodWords, nil
	case MethodChars:
		return MethodChars, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, s)
	}
}

// Estimator is the deterministic, model-independent fallback counter.
type Estimator struct {
	Method Method
}

// NewEstimator creates an estimator using method (MethodMixed when empty).
func NewEstimator(method Method) Estimator {
	if method == "" {
		method = MethodMixed
	}
	return Estimator{Method: method}
}

// Estimate returns the estimated token count of text.
//
//	words = ceil(wordCount / 0.75)
//	chars = ceil(runeCount / 4)
//	mixed = round(0.6*words + 0.4*chars)
//
// Integer arithmetic keeps the result exact: ceil(w/0.75) == (4w+2)/3 and
// round((6a+4b)/10) == (6a+4b+5)/10 for nonnegative inputs.
func (e Estimator) Estimate(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	chars := utf8.RuneCountInString(text)

	wordEst := (4*words + 2) / 3
	charEst := (chars + 3) / 4

	switch e.Method {
	case MethodWords:
		return wordEst
	case MethodChars:
		return charEst
	default:
		return (6*wordEst + 4*charEst + 5) / 10
	}
}

// CountTokens implements Counter. The model is ignored.
func (e Estimator) CountTokens(text, _ string) (int, error) {
	return e.Estimate(text), nil
}

// ChunkTextByTokens implements Counter.
func (e Estimator) ChunkTextByTokens(text string, maxTokens int, _ string) ([]string, error) {
	return SplitByTokens(text, maxTokens, func(s string) (int, error) {
		return e.Estimate(s), nil
	})
}
