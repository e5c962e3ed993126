package tokenizer

import (
	"sort"
	"strings"
)

// DefaultContextWindow is used for models with no known limit.
const DefaultContextWindow = 100000

// Encoding names understood by the precise counter
const (
	EncodingO200K  = "o200k_base"
	EncodingCL100K = "cl100k_base"
)

var defaultLimits = map[string]int{
	"gpt-4o":        128000,
	"gpt-4o-mini":   128000,
	"gpt-4-turbo":   128000,
	"gpt-4":         128000,
	"gpt-4.1":       1047576,
	"gpt-3.5-turbo": 16385,
	"o1":            200000,
	"o3":            200000,
	"claude":        200000,
}

// prefix -> encoding; longest prefix wins
var modelEncodings = map[string]string{
	"gpt-4o":         EncodingO200K,
	"gpt-4.1":        EncodingO200K,
	"o1":             EncodingO200K,
	"o3":             EncodingO200K,
	"o4":             EncodingO200K,
	"gpt-4":          EncodingCL100K,
	"gpt-3.5-turbo":  EncodingCL100K,
	"text-embedding": EncodingCL100K,
}

// ModelLimits maps model names to context-window sizes in tokens.
type ModelLimits struct {
	limits map[string]int
}

// NewModelLimits returns the built-in table with overrides applied.
func NewModelLimits(overrides map[string]int) *ModelLimits {
	limits := make(map[string]int, len(defaultLimits)+len(overrides))
	for k, v := range defaultLimits {
		limits[k] = v
	}
	for k, v := range overrides {
		if v > 0 {
			limits[strings.ToLower(k)] = v
		}
	}
	return &ModelLimits{limits: limits}
}

// Limit returns the context window for model: an exact match first, then the
// longest known prefix, then DefaultContextWindow.
func (m *ModelLimits) Limit(model string) int {
	model = strings.ToLower(strings.TrimSpace(model))
	if v, ok := m.limits[model]; ok {
		return v
	}
	if key, ok := longestPrefix(model, m.limits); ok {
		return m.limits[key]
	}
	return DefaultContextWindow
}

// Models returns the known model names, sorted.
func (m *ModelLimits) Models() []string {
	names := make([]string, 0, len(m.limits))
	for k := range m.limits {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// EncodingForModel returns the BPE encoding name used for model.
// Unknown models use cl100k_base.
func EncodingForModel(model string) string {
	model = strings.ToLower(strings.TrimSpace(model))
	if key, ok := longestPrefix(model, modelEncodings); ok {
		return modelEncodings[key]
	}
	return EncodingCL100K
}

func longestPrefix[V any](s string, table map[string]V) (string, bool) {
	best := ""
	for k := range table {
		if strings.HasPrefix(s, k) && len(k) > len(best) {
			best = k
		}
	}
	return best, best != ""
}
