// Package types provides shared type definitions for repochunk.
//
// This package defines the domain types exchanged between the discovery,
// tokenizer, chunker, summarizer and storage components.
//
// # Core Types
//
// FileRecord is a normalized source file produced by discovery and consumed
// read-only by the chunker:
//
//	f := types.NewFileRecord("internal/app/main.go", content)
//	// f.Extension == ".go", f.Lines and f.Size are populated
//
// Chunk is an ordered group of files (or file fragments) whose token count
// stays within a budget:
//
//	for _, c := range result.Chunks {
//	    fmt.Printf("%s: %d tokens, %d files\n",
//	        c.Metadata.Title, c.TokenCount, len(c.Files))
//	}
//
// A file that alone exceeds the budget is split into fragments. Each fragment
// is a ChunkFile with IsPartial set, OriginalPath pointing at the source file
// and a 1-based PartIndex out of TotalParts:
//
//	if cf.IsPartial {
//	    fmt.Println(cf.Label()) // "big.go (part 2/3)"
//	}
//
// # Navigation
//
// Chunks are linked by position through ContextBoundaries, and dependencies
// that cross chunk boundaries are recorded as CrossReference edges. The
// NavigationIndex gathers both into a table of contents.
//
// # Errors
//
// Two error kinds leave the chunking core:
//
//	errors.Is(err, types.ErrInvalidConfiguration) // bad strategy or budget
//	errors.Is(err, types.ErrTokenization)         // the token counter failed
//
// Use errors.As with *ConfigurationError or *TokenizationError to read the
// details.
package types
