// Package chunker packs a set of source files into an ordered sequence of
// chunks whose token counts stay within a budget.
//
// # Basic Usage
//
//	counter, err := tokenizer.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	p := chunker.New(counter)
//	opts := chunker.DefaultOptions()
//	opts.Strategy = chunker.StrategyDependencyAware
//
//	result, err := p.Pack(ctx, files, opts)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, c := range result.Chunks {
//	    fmt.Printf("%d: %s (%d tokens)\n", c.Index, c.Metadata.Title, c.TokenCount)
//	}
//
// # Strategies
//
// All strategies share one greedy primitive: files are appended to the open
// chunk until the next one would exceed the budget.
//   - semantic: connected groups of files (over resolved dependencies) are
//     kept together when they fit
//   - file_based: files in input order
//   - directory_based: one chunk per directory when the directory fits
//   - dependency_aware: dependency chains from each entry point, then the
//     files no entry point reaches
//   - size_balanced: files in ascending size against a soft target, with
//     undersized chunks flagged (and optionally merged)
//
// # Oversized Files
//
// A file whose token count alone exceeds MaxTokensPerChunk is split with the
// counter's ChunkTextByTokens and each fragment becomes its own chunk.
// Fragments carry OriginalPath, a 1-based PartIndex and TotalParts;
// concatenating them in order reproduces the file.
//
// # Finalization
//
// Token counts are recomputed from content once packing is done, so
// TokenCount always equals the sum of the files' counts. A second pass then
// assigns deterministic UUIDv5 ids, previous/next boundaries and the
// cross-chunk dependency references.
//
// # Concurrency
//
// Token counting is spread over Options.Workers goroutines and collected in
// input order before packing. Packing itself is sequential, so identical
// input produces identical output. A Packer holds no per-call state and may be
// shared.
package chunker
