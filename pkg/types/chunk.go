package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ChunkFile is one entry of a chunk: either a whole FileRecord or a fragment
// of a file that was too large for a single chunk.
type ChunkFile struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Extension string `json:"extension"`
	Size      int    `json:"size"`
	Lines     int    `json:"lines"`
	Tokens    int    `json:"tokens"`

	// Fragment fields. PartIndex is 1-based.
	IsPartial    bool   `json:"is_partial,omitempty"`
	OriginalPath string `json:"original_path,omitempty"`
	PartIndex    int    `json:"part_index,omitempty"`
	TotalParts   int    `json:"total_parts,omitempty"`
}

// WholeFile converts a FileRecord into a ChunkFile carrying its token count.
func WholeFile(f FileRecord, tokens int) ChunkFile {
	return ChunkFile{
		Path:      f.Path,
		Content:   f.Content,
		Extension: f.Extension,
		Size:      f.Size,
		Lines:     f.Lines,
		Tokens:    tokens,
	}
}

// Fragment builds a PartialFileFragment of f holding content.
func Fragment(f FileRecord, content string, partIndex, totalParts, tokens int) ChunkFile {
	return ChunkFile{
		Path:         f.Path,
		Content:      content,
		Extension:    f.Extension,
		Size:         len(content),
		Lines:        CountLines(content),
		Tokens:       tokens,
		IsPartial:    true,
		OriginalPath: f.Path,
		PartIndex:    partIndex,
		TotalParts:   totalParts,
	}
}

// SourcePath returns the path of the file this entry came from.
func (cf ChunkFile) SourcePath() string {
	if cf.IsPartial && cf.OriginalPath != "" {
		return cf.OriginalPath
	}
	return cf.Path
}

// Dir returns the directory of the source file.
func (cf ChunkFile) Dir() string {
	return path.Dir(cf.SourcePath())
}

// Label is a human-readable name for the entry ("a/b.go" or "a/b.go (part 2/3)").
func (cf ChunkFile) Label() string {
	if cf.IsPartial {
		return fmt.Sprintf("%s (part %d/%d)", cf.SourcePath(), cf.PartIndex, cf.TotalParts)
	}
	return cf.Path
}

// ChunkMetadata is derived from a chunk's file list and recomputed whenever it
// changes.
type ChunkMetadata struct {
	TotalTokens      int      `json:"total_tokens"`
	FileCount        int      `json:"file_count"`
	TotalSizeBytes   int      `json:"total_size_bytes"`
	TotalLines       int      `json:"total_lines"`
	Languages        []string `json:"languages"`
	Directories      []string `json:"directories"`
	Title            string   `json:"title"`
	ComplexityScore  float64  `json:"complexity_score"`
	Strategy         string   `json:"strategy"`
	Overlap          int      `json:"overlap,omitempty"`
	NeedsRebalancing bool     `json:"needs_rebalancing,omitempty"`
}

// DependencyEdge is a resolved dependency between two files of the same chunk.
type DependencyEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ContextInfo describes what a chunk offers to, and needs from, its neighbours.
type ContextInfo struct {
	EntryPoints          []string         `json:"entry_points"`
	Exports              []string         `json:"exports"`
	InternalDependencies []DependencyEdge `json:"internal_dependencies"`
}

// ContextBoundaries links a chunk to its neighbours in the output sequence.
// A nil id means there is no chunk on that side.
type ContextBoundaries struct {
	PreviousChunkID           *string  `json:"previous_chunk_id"`
	NextChunkID               *string  `json:"next_chunk_id"`
	RelatedFilesInOtherChunks []string `json:"related_files_in_other_chunks"`
}

// CrossReference records that File (in FromChunk) depends on ReferencedFile
// (in ToChunk).
type CrossReference struct {
	FromChunk      string `json:"from_chunk"`
	ToChunk        string `json:"to_chunk"`
	File           string `json:"file"`
	ReferencedFile string `json:"referenced_file"`
}

// Chunk is a bounded-token-budget group of files emitted as one unit.
type Chunk struct {
	ID                string            `json:"id"`
	Index             int               `json:"index"` // 0-based position in the sequence
	Files             []ChunkFile       `json:"files"`
	TokenCount        int               `json:"token_count"`
	Metadata          ChunkMetadata     `json:"metadata"`
	ContextInfo       ContextInfo       `json:"context_info"`
	ContextBoundaries ContextBoundaries `json:"context_boundaries"`
}

// SourcePaths returns the distinct source paths in file order.
func (c *Chunk) SourcePaths() []string {
	seen := make(map[string]struct{}, len(c.Files))
	paths := make([]string, 0, len(c.Files))
	for i := range c.Files {
		p := c.Files[i].SourcePath()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		paths = append(paths, p)
	}
	return paths
}

// ContentHash returns the hex SHA-256 of the concatenated file contents.
func (c *Chunk) ContentHash() string {
	h := sha256.New()
	for i := range c.Files {
		h.Write([]byte(c.Files[i].Label()))
		h.Write([]byte{0})
		h.Write([]byte(c.Files[i].Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Validate checks the chunk's structural invariants against a budget.
// maxTokens <= 0 skips the budget check.
func (c *Chunk) Validate(maxTokens int) error {
	if c.ID == "" {
		return ErrInvalidChunkID
	}
	if len(c.Files) == 0 {
		return ErrEmptyChunk
	}

	sum := 0
	for i := range c.Files {
		sum += c.Files[i].Tokens
	}
	if sum != c.TokenCount {
		return fmt.Errorf("%w: files sum to %d, chunk reports %d", ErrTokenMismatch, sum, c.TokenCount)
	}
	if c.Metadata.TotalTokens != c.TokenCount {
		return fmt.Errorf("%w: metadata reports %d, chunk reports %d", ErrTokenMismatch, c.Metadata.TotalTokens, c.TokenCount)
	}
	if c.Metadata.FileCount != len(c.Files) {
		return errors.New("metadata file count does not match files")
	}
	if maxTokens > 0 && c.TokenCount > maxTokens && !c.isSingleUncutPiece() {
		return fmt.Errorf("%w: %d > %d", ErrBudgetExceeded, c.TokenCount, maxTokens)
	}
	return nil
}

// isSingleUncutPiece reports whether the chunk is one fragment that the text
// splitter could not cut further (a single overlong word).
func (c *Chunk) isSingleUncutPiece() bool {
	return len(c.Files) == 1 && c.Files[0].IsPartial && len(strings.Fields(c.Files[0].Content)) == 1
}
