// Package summarizer derives human-readable descriptions from a finished
// chunk sequence: per-chunk summaries with key files, and a navigation index
// linking chunks and their cross references.
//
//	gen := summarizer.New()
//	summaries := gen.Summarize(result.Chunks)
//	nav := gen.Navigation(result.Chunks, result.CrossReferences)
//
// Summaries are pure functions of the chunks; calling them twice yields the
// same output.
package summarizer
