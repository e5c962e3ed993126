package chunker

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/dshills/repochunk/internal/depgraph"
	"github.com/dshills/repochunk/pkg/types"
)

// link is the second pass over the finished sequence. It assigns ids and
// positions, wires previous/next boundaries and records every resolved
// dependency whose target lives in a different chunk.
func link(chunks []types.Chunk, g *depgraph.Graph, ns uuid.UUID, strategy Strategy) []types.CrossReference {
	for i := range chunks {
		c := &chunks[i]
		c.Index = i
		name := fmt.Sprintf("%s|%d|%s", strategy, i, c.ContentHash())
		c.ID = uuid.NewSHA1(ns, []byte(name)).String()
	}

	for i := range chunks {
		b := &chunks[i].ContextBoundaries
		b.PreviousChunkID, b.NextChunkID = nil, nil
		if i > 0 {
			id := chunks[i-1].ID
			b.PreviousChunkID = &id
		}
		if i < len(chunks)-1 {
			id := chunks[i+1].ID
			b.NextChunkID = &id
		}
	}

	// A fragmented file lives in several chunks.
	owners := make(map[string][]int)
	for i := range chunks {
		for _, p := range chunks[i].SourcePaths() {
			owners[p] = append(owners[p], i)
		}
	}

	refs := []types.CrossReference{}
	seen := make(map[types.CrossReference]bool)
	related := make([]map[string]bool, len(chunks))
	for i := range related {
		related[i] = make(map[string]bool)
	}

	for i := range chunks {
		for _, file := range chunks[i].SourcePaths() {
			for _, target := range g.Resolved(file) {
				for _, j := range owners[target] {
					if j == i {
						continue
					}
					ref := types.CrossReference{
						FromChunk:      chunks[i].ID,
						ToChunk:        chunks[j].ID,
						File:           file,
						ReferencedFile: target,
					}
					if seen[ref] {
						continue
					}
					seen[ref] = true
					refs = append(refs, ref)
					related[i][target] = true
					related[j][file] = true
				}
			}
		}
	}

	for i := range chunks {
		files := make([]string, 0, len(related[i]))
		for p := range related[i] {
			files = append(files, p)
		}
		sort.Strings(files)
		chunks[i].ContextBoundaries.RelatedFilesInOtherChunks = files
	}
	return refs
}
