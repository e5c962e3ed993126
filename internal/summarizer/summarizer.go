package summarizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dshills/repochunk/internal/depgraph"
	"github.com/dshills/repochunk/pkg/types"
)

// Defaults
const (
	DefaultMaxLanguages   = 3
	DefaultMaxDirectories = 2
	DefaultMaxKeyFiles    = 5

	// DefaultExportThreshold is the export count a file must exceed to be a
	// key file on exports alone.
	DefaultExportThreshold = 3
)

// Generator describes finished chunks for readers
type Generator struct {
	MaxLanguages    int
	MaxDirectories  int
	MaxKeyFiles     int
	ExportThreshold int
}

// New creates a Generator with the default limits.
func New() *Generator {
	return &Generator{
		MaxLanguages:    DefaultMaxLanguages,
		MaxDirectories:  DefaultMaxDirectories,
		MaxKeyFiles:     DefaultMaxKeyFiles,
		ExportThreshold: DefaultExportThreshold,
	}
}

// Summarize returns one summary per chunk, in chunk order.
func (g *Generator) Summarize(chunks []types.Chunk) []types.ChunkSummary {
	out := make([]types.ChunkSummary, len(chunks))
	for i := range chunks {
		out[i] = g.summarize(&chunks[i])
	}
	return out
}

func (g *Generator) summarize(c *types.Chunk) types.ChunkSummary {
	langs := top(c.Files, g.MaxLanguages, func(f types.ChunkFile) string {
		return types.LanguageOf(f.Extension)
	})
	dirs := top(c.Files, g.MaxDirectories, func(f types.ChunkFile) string {
		return f.Dir()
	})

	return types.ChunkSummary{
		ChunkID:            c.ID,
		FileCount:          len(c.Files),
		TokenCount:         c.TokenCount,
		PrimaryLanguages:   langs,
		PrimaryDirectories: dirs,
		Summary:            sentence(c, langs, dirs),
		KeyFiles:           g.keyFiles(c),
	}
}

// sentence is the one-line description of a chunk.
func sentence(c *types.Chunk, langs, dirs []string) string {
	if len(c.Files) == 1 && c.Files[0].IsPartial {
		f := c.Files[0]
		return fmt.Sprintf("Part %d of %d of %s (%d tokens)", f.PartIndex, f.TotalParts, f.SourcePath(), c.TokenCount)
	}

	noun := "files"
	if len(c.Files) == 1 {
		noun = "file"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d %s", len(c.Files), noun)
	if len(langs) > 0 {
		fmt.Fprintf(&b, " of %s", joinWords(langs))
	}
	if len(dirs) > 0 {
		fmt.Fprintf(&b, " in %s", joinWords(displayDirs(dirs)))
	}
	fmt.Fprintf(&b, " (%d tokens)", c.TokenCount)
	return b.String()
}

// keyFiles picks files worth reading first: entry points, conventionally
// important names, and files exporting more than ExportThreshold symbols.
func (g *Generator) keyFiles(c *types.Chunk) []string {
	exports := make(map[string]int)
	for _, f := range c.Files {
		src := f.SourcePath()
		exports[src] += len(depgraph.ExtractExports(types.NewFileRecord(src, f.Content)))
	}

	keys := []string{}
	for _, p := range c.SourcePaths() {
		if len(keys) >= g.MaxKeyFiles {
			break
		}
		if exports[p] > g.ExportThreshold || depgraph.IsEntryPointName(p) || depgraph.IsKeyName(p) {
			keys = append(keys, p)
		}
	}
	return keys
}

// Navigation builds the table of contents for a chunk sequence.
func (g *Generator) Navigation(chunks []types.Chunk, refs []types.CrossReference) types.NavigationIndex {
	nav := types.NavigationIndex{
		TotalChunks:     len(chunks),
		ChunkIndex:      make([]types.ChunkIndexEntry, len(chunks)),
		CrossReferences: append([]types.CrossReference{}, refs...),
	}

	summaries := g.Summarize(chunks)
	for i := range chunks {
		c := &chunks[i]
		nav.ChunkIndex[i] = types.ChunkIndexEntry{
			ChunkID:            c.ID,
			ChunkNumber:        i + 1,
			Title:              c.Metadata.Title,
			Summary:            summaries[i].Summary,
			FileCount:          len(c.Files),
			TokenCount:         c.TokenCount,
			PrimaryDirectories: summaries[i].PrimaryDirectories,
			PreviousChunk:      c.ContextBoundaries.PreviousChunkID,
			NextChunk:          c.ContextBoundaries.NextChunkID,
		}
	}
	return nav
}

// top returns up to n keys ordered by descending file count; ties keep the
// order in which keys first appear.
func top(files []types.ChunkFile, n int, key func(types.ChunkFile) string) []string {
	counts := make(map[string]int)
	var order []string
	for _, f := range files {
		k := key(f)
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if n >= 0 && len(order) > n {
		order = order[:n]
	}
	if order == nil {
		return []string{}
	}
	return order
}

func displayDirs(dirs []string) []string {
	out := make([]string, len(dirs))
	for i, d := range dirs {
		if d == "." {
			d = "the repository root"
		}
		out[i] = d
	}
	return out
}

// joinWords joins items as "a", "a and b" or "a, b and c".
func joinWords(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
