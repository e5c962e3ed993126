// Package tokenizer counts tokens and splits text against a token budget.
//
// Every component that needs token counts receives a Counter. The usual
// implementation is a Service combining a precise tiktoken counter, a
// deterministic estimator fallback and an LRU cache.
//
// # Basic Usage
//
//	svc, err := tokenizer.New(tokenizer.Config{Precise: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	n, err := svc.CountTokens(source, "gpt-4o")
//	pieces, err := svc.ChunkTextByTokens(source, 100000, "gpt-4o")
//
// # Counting
//
// The precise counter maps the model to a BPE encoding (o200k_base for the
// gpt-4o, gpt-4.1 and o-series families, cl100k_base otherwise) and loads it
// on first use. When the encoding cannot be loaded the Service falls back to
// the Estimator:
//
//	words = ceil(wordCount / 0.75)
//	chars = ceil(runeCount / 4)
//	mixed = round(0.6*words + 0.4*chars)   // default
//
// Counts are cached by model and SHA-256 of the text. Caching never changes
// the value returned.
//
// # Splitting
//
// ChunkTextByTokens cuts text at sentence boundaries, falls back to word
// boundaries for sentences that alone exceed the budget, and emits single
// overlong words uncut. Pieces keep their separators, so joining them
// reproduces the input.
//
// # Model Limits
//
// ModelLimits maps model names to context-window sizes. The table is
// configuration for callers; the chunker never consults it.
//
//	limits := tokenizer.NewModelLimits(map[string]int{"my-model": 32000})
//	limits.Limit("gpt-4o")          // 128000
//	limits.Limit("claude-3-5-sonnet") // 200000
//	limits.Limit("unknown")         // 100000
package tokenizer
