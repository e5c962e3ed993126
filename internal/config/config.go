package config

import (
	"os"
	"path/filepath"

	"github.com/dshills/repochunk/internal/chunker"
	"github.com/dshills/repochunk/internal/discover"
	"github.com/dshills/repochunk/internal/tokenizer"
	"github.com/dshills/repochunk/pkg/types"
)

// Config is the complete repochunk configuration
type Config struct {
	Model     string          `yaml:"model"`
	Tokenizer TokenizerConfig `yaml:"tokenizer"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Discover  DiscoverConfig  `yaml:"discover"`
	Storage   StorageConfig   `yaml:"storage"`
}

// TokenizerConfig selects how tokens are counted
type TokenizerConfig struct {
	Method      string         `yaml:"method"`
	Precise     bool           `yaml:"precise"`
	CacheSize   int            `yaml:"cache_size"`
	ModelLimits map[string]int `yaml:"model_limits"`
}

// ChunkingConfig holds packing options
type ChunkingConfig struct {
	Strategy          string  `yaml:"strategy"`
	MaxTokensPerChunk int     `yaml:"max_tokens_per_chunk"`
	Overlap           int     `yaml:"overlap"`
	SoftTargetRatio   float64 `yaml:"soft_target_ratio"`
	MergeUndersized   bool    `yaml:"merge_undersized"`
	Workers           int     `yaml:"workers"`
}

// DiscoverConfig holds file discovery options
type DiscoverConfig struct {
	MaxFileSize       int64    `yaml:"max_file_size"`
	IncludeExtensions []string `yaml:"include_extensions"`
	ExcludePatterns   []string `yaml:"exclude_patterns"`
	IncludeHidden     bool     `yaml:"include_hidden"`
}

// StorageConfig controls persistence of chunk runs
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	// Cache reuses a stored run when the corpus and options are unchanged.
	Cache bool `yaml:"cache"`
}

// DefaultConfig returns the configuration used when no file or environment
// variable overrides a value.
func DefaultConfig() *Config {
	return &Config{
		Model: chunker.DefaultModel,
		Tokenizer: TokenizerConfig{
			Method:    string(tokenizer.MethodMixed),
			Precise:   true,
			CacheSize: tokenizer.DefaultCacheSize,
		},
		Chunking: ChunkingConfig{
			Strategy:          string(chunker.StrategySemantic),
			MaxTokensPerChunk: chunker.DefaultMaxTokensPerChunk,
			SoftTargetRatio:   chunker.DefaultSoftTargetRatio,
		},
		Discover: DiscoverConfig{
			MaxFileSize: discover.DefaultMaxFileSize,
		},
		Storage: StorageConfig{
			Path:  DefaultDBPath(),
			Cache: true,
		},
	}
}

// DefaultDBPath is ~/.repochunk/repochunk.db, or a relative path when the
// home directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(GlobalConfigDir, "repochunk.db")
	}
	return filepath.Join(home, GlobalConfigDir, "repochunk.db")
}

// Validate reports the first invalid value as a *types.ConfigurationError.
func (c *Config) Validate() error {
	if c.Model == "" {
		return types.NewConfigurationError("model", c.Model, "must not be empty")
	}
	if _, err := tokenizer.ParseMethod(c.Tokenizer.Method); err != nil {
		return types.NewConfigurationError("tokenizer.method", c.Tokenizer.Method, "must be mixed, words or chars")
	}
	for model, limit := range c.Tokenizer.ModelLimits {
		if limit <= 0 {
			return types.NewConfigurationError("tokenizer.model_limits."+model, limit, "must be positive")
		}
	}
	if _, err := c.ChunkOptions(); err != nil {
		return err
	}
	if c.Storage.Enabled && c.Storage.Path == "" {
		return types.NewConfigurationError("storage.path", c.Storage.Path, "required when storage is enabled")
	}
	return nil
}

// ChunkOptions converts the chunking section into validated packer options.
func (c *Config) ChunkOptions() (chunker.Options, error) {
	strategy, err := chunker.ParseStrategy(c.Chunking.Strategy)
	if err != nil {
		return chunker.Options{}, err
	}
	opts := chunker.Options{
		Strategy:          strategy,
		MaxTokensPerChunk: c.Chunking.MaxTokensPerChunk,
		Model:             c.Model,
		Overlap:           c.Chunking.Overlap,
		SoftTargetRatio:   c.Chunking.SoftTargetRatio,
		MergeUndersized:   c.Chunking.MergeUndersized,
		Workers:           c.Chunking.Workers,
	}
	if err := opts.Validate(); err != nil {
		return chunker.Options{}, err
	}
	return opts, nil
}

// TokenizerOptions converts the tokenizer section for tokenizer.New.
func (c *Config) TokenizerOptions() tokenizer.Config {
	return tokenizer.Config{
		Method:    tokenizer.Method(c.Tokenizer.Method),
		Precise:   c.Tokenizer.Precise,
		CacheSize: c.Tokenizer.CacheSize,
	}
}

// ModelLimits returns the context-window table with configured overrides.
func (c *Config) ModelLimits() *tokenizer.ModelLimits {
	return tokenizer.NewModelLimits(c.Tokenizer.ModelLimits)
}

// DiscoverOptions converts the discover section.
func (c *Config) DiscoverOptions() discover.Options {
	return discover.Options{
		MaxFileSize:       c.Discover.MaxFileSize,
		IncludeExtensions: c.Discover.IncludeExtensions,
		ExcludePatterns:   c.Discover.ExcludePatterns,
		IncludeHidden:     c.Discover.IncludeHidden,
		Workers:           c.Chunking.Workers,
	}
}
