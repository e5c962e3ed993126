package chunker

import (
	"fmt"
	"math"
	"sort"

	"github.com/dshills/repochunk/internal/depgraph"
	"github.com/dshills/repochunk/pkg/types"
)

// finalize recounts every entry from its content and turns drafts into
// chunks with metadata and context info. Ids and boundaries are set by link.
func (r *run) finalize(drafts []draft) ([]types.Chunk, error) {
	var texts, paths []string
	for i := range drafts {
		for _, f := range drafts[i].files {
			texts = append(texts, f.Content)
			paths = append(paths, f.SourcePath())
		}
	}
	counts, err := r.countAll(texts, paths)
	if err != nil {
		return nil, err
	}

	chunks := make([]types.Chunk, 0, len(drafts))
	k := 0
	for i := range drafts {
		d := &drafts[i]
		files := make([]types.ChunkFile, len(d.files))
		total := 0
		for j, f := range d.files {
			f.Tokens = counts[k]
			k++
			files[j] = f
			total += f.Tokens
		}

		c := types.Chunk{
			Files:      files,
			TokenCount: total,
		}
		c.Metadata = r.metadata(files, total)
		c.Metadata.NeedsRebalancing = d.needsRebalancing
		c.ContextInfo = contextInfo(files, r.graph)
		c.ContextBoundaries.RelatedFilesInOtherChunks = []string{}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func (r *run) metadata(files []types.ChunkFile, total int) types.ChunkMetadata {
	m := types.ChunkMetadata{
		TotalTokens: total,
		FileCount:   len(files),
		Strategy:    string(r.opts.Strategy),
		Overlap:     r.opts.Overlap,
	}

	langs := make(map[string]int)
	dirs := make(map[string]int)
	for _, f := range files {
		m.TotalSizeBytes += f.Size
		m.TotalLines += f.Lines
		langs[types.LanguageOf(f.Extension)]++
		dirs[f.Dir()]++
	}
	m.Languages = sortedKeys(langs)
	m.Directories = sortedKeys(dirs)
	m.Title = title(files, langs, dirs)
	m.ComplexityScore = complexity(m.TotalLines, len(langs), len(files))
	return m
}

// complexity is 0.1 per line, 10 per language and 2 per file, rounded to
// one decimal place.
func complexity(lines, languages, files int) float64 {
	score := 0.1*float64(lines) + 10*float64(languages) + 2*float64(files)
	return math.Round(score*10) / 10
}

// title names a chunk after its single file, its dominant directory, or its
// dominant language when everything sits at the repository root.
func title(files []types.ChunkFile, langs, dirs map[string]int) string {
	if len(files) == 1 {
		return files[0].Label()
	}

	dir := dominant(files, dirs, func(f types.ChunkFile) string { return f.Dir() })
	n := len(files)
	if len(dirs) == 1 {
		if dir == "." {
			lang := dominant(files, langs, func(f types.ChunkFile) string {
				return types.LanguageOf(f.Extension)
			})
			return fmt.Sprintf("%s code (%d files)", lang, n)
		}
		return fmt.Sprintf("%s (%d files)", dir, n)
	}
	if dir == "." {
		dir = "(root)"
	}
	return fmt.Sprintf("%s +%d dirs (%d files)", dir, len(dirs)-1, n)
}

// dominant returns the most frequent key, preferring the first seen in file
// order on ties.
func dominant(files []types.ChunkFile, counts map[string]int, key func(types.ChunkFile) string) string {
	best, bestN := "", 0
	for _, f := range files {
		k := key(f)
		if counts[k] > bestN {
			best, bestN = k, counts[k]
		}
	}
	return best
}

// contextInfo lists the entry points, exports and intra-chunk dependency
// edges of a chunk. Fragments are scanned for exports from their own text.
func contextInfo(files []types.ChunkFile, g *depgraph.Graph) types.ContextInfo {
	info := types.ContextInfo{
		EntryPoints:          []string{},
		Exports:              []string{},
		InternalDependencies: []types.DependencyEdge{},
	}

	inChunk := make(map[string]bool, len(files))
	for _, f := range files {
		inChunk[f.SourcePath()] = true
	}

	seenEntry := make(map[string]bool)
	seenExport := make(map[string]bool)
	seenSource := make(map[string]bool)
	for _, f := range files {
		src := f.SourcePath()
		if g.IsEntryFile(src) && !seenEntry[src] {
			seenEntry[src] = true
			info.EntryPoints = append(info.EntryPoints, src)
		}

		var exports []string
		if f.IsPartial {
			exports = depgraph.ExtractExports(types.NewFileRecord(src, f.Content))
		} else {
			exports = g.Exports(src)
		}
		for _, e := range exports {
			if !seenExport[e] {
				seenExport[e] = true
				info.Exports = append(info.Exports, e)
			}
		}

		if seenSource[src] {
			continue
		}
		seenSource[src] = true
		for _, to := range g.Resolved(src) {
			if inChunk[to] {
				info.InternalDependencies = append(info.InternalDependencies, types.DependencyEdge{From: src, To: to})
			}
		}
	}
	return info
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
