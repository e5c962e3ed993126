package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/repochunk/pkg/types"
)

const (
	// EnvPrefix is the prefix for all environment variables.
	EnvPrefix = "REPOCHUNK"
	// ProjectConfigFile is the project-level config file name.
	ProjectConfigFile = ".repochunk.yaml"
	// GlobalConfigDir is the global config directory name.
	GlobalConfigDir = ".repochunk"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
)

// Loader loads configuration from files and environment.
type Loader struct {
	projectRoot string
	skipGlobal  bool
	skipEnv     bool
}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// WithProjectRoot sets the directory searched for ProjectConfigFile.
func (l *Loader) WithProjectRoot(root string) *Loader {
	l.projectRoot = root
	return l
}

// SkipGlobal skips loading global config.
func (l *Loader) SkipGlobal() *Loader {
	l.skipGlobal = true
	return l
}

// SkipEnv skips environment overrides.
func (l *Loader) SkipEnv() *Loader {
	l.skipEnv = true
	return l
}

// Load loads configuration with full precedence order:
// 1. Defaults
// 2. Global Config ($HOME/.repochunk/config.yaml)
// 3. Project Config (./.repochunk.yaml)
// 4. Environment Variables (REPOCHUNK_*)
//
// Missing files are skipped; a file that exists but does not parse is an
// error. The result is validated.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if !l.skipGlobal {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadOptional(filepath.Join(home, GlobalConfigDir, GlobalConfigFile), cfg); err != nil {
				return nil, err
			}
		}
	}

	root := l.projectRoot
	if root == "" {
		root = "."
	}
	if err := loadOptional(filepath.Join(root, ProjectConfigFile), cfg); err != nil {
		return nil, err
	}

	if !l.skipEnv {
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromPath loads defaults overlaid with the file at path, followed by
// environment overrides unless skipped.
func (l *Loader) LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := loadInto(path, cfg); err != nil {
		return nil, err
	}
	if !l.skipEnv {
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadInto decodes the file at path over cfg. Keys absent from the file keep
// their current values.
func loadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}

func loadOptional(path string, cfg *Config) error {
	err := loadInto(path, cfg)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// applyEnvOverrides applies REPOCHUNK_* environment variables.
func applyEnvOverrides(cfg *Config) error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + "_" + name); v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	integer := func(name string, dst *int) error {
		v := os.Getenv(EnvPrefix + "_" + name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return types.NewConfigurationError(EnvPrefix+"_"+name, v, "must be an integer")
		}
		*dst = n
		return nil
	}
	boolean := func(name string, dst *bool) error {
		v := os.Getenv(EnvPrefix + "_" + name)
		if v == "" {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return types.NewConfigurationError(EnvPrefix+"_"+name, v, "must be a boolean")
		}
		*dst = b
		return nil
	}

	str("MODEL", &cfg.Model)
	str("STRATEGY", &cfg.Chunking.Strategy)
	str("TOKENIZER_METHOD", &cfg.Tokenizer.Method)
	str("DB_PATH", &cfg.Storage.Path)

	if v := os.Getenv(EnvPrefix + "_MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return types.NewConfigurationError(EnvPrefix+"_MAX_FILE_SIZE", v, "must be an integer")
		}
		cfg.Discover.MaxFileSize = n
	}

	for _, f := range []func() error{
		func() error { return integer("MAX_TOKENS", &cfg.Chunking.MaxTokensPerChunk) },
		func() error { return integer("OVERLAP", &cfg.Chunking.Overlap) },
		func() error { return integer("WORKERS", &cfg.Chunking.Workers) },
		func() error { return integer("TOKENIZER_CACHE_SIZE", &cfg.Tokenizer.CacheSize) },
		func() error { return boolean("TOKENIZER_PRECISE", &cfg.Tokenizer.Precise) },
		func() error { return boolean("STORAGE_ENABLED", &cfg.Storage.Enabled) },
		func() error { return boolean("STORAGE_CACHE", &cfg.Storage.Cache) },
	} {
		if err := f(); err != nil {
			return err
		}
	}
	return nil
}

// ConfigError reports a config file that could not be read or parsed.
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return "config error in " + e.Path + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
