package chunker

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/dshills/repochunk/pkg/types"
)

// Strategy selects how files are grouped into chunks.
type Strategy string

// Supported strategies
const (
	StrategySemantic        Strategy = "semantic"
	StrategyFileBased       Strategy = "file_based"
	StrategyDirectoryBased  Strategy = "directory_based"
	StrategyDependencyAware Strategy = "dependency_aware"
	StrategySizeBalanced    Strategy = "size_balanced"
)

// Strategies lists every supported strategy in documentation order.
var Strategies = []Strategy{
	StrategySemantic,
	StrategyFileBased,
	StrategyDirectoryBased,
	StrategyDependencyAware,
	StrategySizeBalanced,
}

// ParseStrategy converts a strategy name into a Strategy. Hyphens are accepted
// in place of underscores.
func ParseStrategy(s string) (Strategy, error) {
	name := Strategy(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if _, ok := registry[name]; ok {
		return name, nil
	}
	return "", types.NewConfigurationError("strategy", s, "unknown strategy")
}

// Defaults
const (
	DefaultMaxTokensPerChunk = 100000
	DefaultSoftTargetRatio   = 0.8
	DefaultModel             = "gpt-4o"
)

// Options configures one Pack call. The zero value of an optional field
// selects its default.
type Options struct {
	Strategy          Strategy
	MaxTokensPerChunk int
	Model             string

	// Overlap is recorded on chunk metadata for consumers that stitch chunks
	// back together. File content is never duplicated across chunks.
	Overlap int

	// SoftTargetRatio is the size_balanced packing target as a fraction of
	// MaxTokensPerChunk.
	SoftTargetRatio float64

	// MergeUndersized makes size_balanced merge chunks flagged as needing
	// rebalancing into their predecessor when the union fits the budget.
	MergeUndersized bool

	// Workers bounds concurrent token counting. 0 uses GOMAXPROCS.
	Workers int
}

// DefaultOptions returns options for the semantic strategy with a 100k budget.
func DefaultOptions() Options {
	return Options{
		Strategy:          StrategySemantic,
		MaxTokensPerChunk: DefaultMaxTokensPerChunk,
		Model:             DefaultModel,
		SoftTargetRatio:   DefaultSoftTargetRatio,
	}
}

// withDefaults fills optional fields.
func (o Options) withDefaults() Options {
	if o.SoftTargetRatio == 0 {
		o.SoftTargetRatio = DefaultSoftTargetRatio
	}
	if o.Workers == 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

// Validate reports the first invalid option as a *types.ConfigurationError.
func (o Options) Validate() error {
	if _, ok := registry[o.Strategy]; !ok {
		return types.NewConfigurationError("strategy", string(o.Strategy), "unknown strategy")
	}
	if o.MaxTokensPerChunk <= 0 {
		return types.NewConfigurationError("max_tokens_per_chunk", o.MaxTokensPerChunk, "must be positive")
	}
	if o.Overlap < 0 || o.Overlap >= o.MaxTokensPerChunk {
		return types.NewConfigurationError("overlap", o.Overlap,
			fmt.Sprintf("must be in [0, %d)", o.MaxTokensPerChunk))
	}
	if o.SoftTargetRatio < 0 || o.SoftTargetRatio > 1 {
		return types.NewConfigurationError("soft_target_ratio", o.SoftTargetRatio, "must be in (0, 1]")
	}
	if o.Workers < 0 {
		return types.NewConfigurationError("workers", o.Workers, "must not be negative")
	}
	return nil
}

// softTarget is the size_balanced packing target in tokens, at least 1.
func (o Options) softTarget() int {
	soft := int(o.SoftTargetRatio * float64(o.MaxTokensPerChunk))
	if soft < 1 {
		soft = 1
	}
	return soft
}
