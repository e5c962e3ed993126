package storage

import (
	"context"
	"time"

	"github.com/dshills/repochunk/pkg/types"
)

// Storage defines the interface for persisting and querying chunk runs
type Storage interface {
	// Run operations
	SaveRun(ctx context.Context, run *Run, chunks []types.Chunk, summaries []types.ChunkSummary, refs []types.CrossReference) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	FindRunByHash(ctx context.Context, corpusHash string) (*Run, error)
	ListRuns(ctx context.Context, rootPath string, limit int) ([]*Run, error)
	DeleteRun(ctx context.Context, runID string) error

	// Chunk operations
	LoadChunks(ctx context.Context, runID string) ([]types.Chunk, error)
	LoadSummaries(ctx context.Context, runID string) ([]types.ChunkSummary, error)
	GetChunk(ctx context.Context, runID, chunkID string) (*types.Chunk, error)
	ListCrossReferences(ctx context.Context, runID string) ([]types.CrossReference, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Run is one persisted chunking of a repository
type Run struct {
	ID                string // UUID, assigned by SaveRun when empty
	RootPath          string
	CorpusHash        string // Hex SHA-256 over files and options
	Strategy          string
	Model             string
	MaxTokensPerChunk int
	Overlap           int
	TotalFiles        int
	TotalChunks       int
	TotalTokens       int
	Duration          time.Duration
	CreatedAt         time.Time
}

// Status contains statistics about the database
type Status struct {
	RunsCount            int
	ChunksCount          int
	FilesCount           int
	CrossReferencesCount int
	SizeMB               float64
	SchemaVersion        string
	LastRunAt            time.Time
	Health               HealthStatus
}

// HealthStatus represents the health of the database
type HealthStatus struct {
	DatabaseAccessible bool
	SchemaCurrent      bool
}
