package types

// ChunkSummary describes one chunk for humans and for navigation.
type ChunkSummary struct {
	ChunkID            string   `json:"chunk_id"`
	FileCount          int      `json:"file_count"`
	TokenCount         int      `json:"token_count"`
	PrimaryLanguages   []string `json:"primary_languages"`
	PrimaryDirectories []string `json:"primary_directories"`
	Summary            string   `json:"summary"`
	KeyFiles           []string `json:"key_files"`
}

// ChunkIndexEntry is one row of the navigation index.
type ChunkIndexEntry struct {
	ChunkID            string   `json:"chunk_id"`
	ChunkNumber        int      `json:"chunk_number"` // 1-based
	Title              string   `json:"title"`
	Summary            string   `json:"summary"`
	FileCount          int      `json:"file_count"`
	TokenCount         int      `json:"token_count"`
	PrimaryDirectories []string `json:"primary_directories"`
	PreviousChunk      *string  `json:"previous_chunk"`
	NextChunk          *string  `json:"next_chunk"`
}

// NavigationIndex is the global table of contents for a chunk sequence.
type NavigationIndex struct {
	TotalChunks     int               `json:"total_chunks"`
	ChunkIndex      []ChunkIndexEntry `json:"chunk_index"`
	CrossReferences []CrossReference  `json:"cross_references"`
}
