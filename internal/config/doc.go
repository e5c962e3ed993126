// Package config loads repochunk configuration.
//
// Values are layered in precedence order: built-in defaults, the global file
// $HOME/.repochunk/config.yaml, the project file .repochunk.yaml and finally
// REPOCHUNK_* environment variables:
//
//	model: gpt-4o
//	tokenizer:
//	  method: mixed
//	  precise: true
//	  model_limits:
//	    my-finetune: 32000
//	chunking:
//	  strategy: dependency_aware
//	  max_tokens_per_chunk: 50000
//	discover:
//	  exclude_patterns: ["*.min.js", "testdata/"]
//	storage:
//	  enabled: true
//
// Environment variables: REPOCHUNK_MODEL, REPOCHUNK_STRATEGY,
// REPOCHUNK_MAX_TOKENS, REPOCHUNK_OVERLAP, REPOCHUNK_WORKERS,
// REPOCHUNK_TOKENIZER_METHOD, REPOCHUNK_TOKENIZER_PRECISE,
// REPOCHUNK_TOKENIZER_CACHE_SIZE, REPOCHUNK_MAX_FILE_SIZE,
// REPOCHUNK_DB_PATH, REPOCHUNK_STORAGE_ENABLED and REPOCHUNK_STORAGE_CACHE.
package config
