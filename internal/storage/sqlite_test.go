package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/repochunk/pkg/types"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	// Use in-memory database for testing
	storage, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	require.NotNil(t, storage)
	return storage
}

func strPtr(s string) *string { return &s }

// testChunks builds two linked chunks; the second holds a fragment.
func testChunks() ([]types.Chunk, []types.ChunkSummary, []types.CrossReference) {
	main := types.WholeFile(types.NewFileRecord("cmd/main.go", "package main\n\nfunc main() {}\n"), 8)
	util := types.WholeFile(types.NewFileRecord("pkg/util.go", "package util\n"), 3)
	part := types.Fragment(types.NewFileRecord("big.txt", "aaaa bbbb"), "bbbb", 2, 2, 1)

	chunks := []types.Chunk{
		{
			ID:         "chunk-a",
			Index:      0,
			Files:      []types.ChunkFile{main, util},
			TokenCount: 11,
			Metadata: types.ChunkMetadata{
				TotalTokens: 11,
				FileCount:   2,
				Languages:   []string{"go"},
				Directories: []string{"cmd", "pkg"},
				Title:       "cmd +1 dirs (2 files)",
				Strategy:    "semantic",
			},
			ContextInfo: types.ContextInfo{
				EntryPoints:          []string{"cmd/main.go"},
				Exports:              []string{},
				InternalDependencies: []types.DependencyEdge{{From: "cmd/main.go", To: "pkg/util.go"}},
			},
			ContextBoundaries: types.ContextBoundaries{
				NextChunkID:               strPtr("chunk-b"),
				RelatedFilesInOtherChunks: []string{"big.txt"},
			},
		},
		{
			ID:         "chunk-b",
			Index:      1,
			Files:      []types.ChunkFile{part},
			TokenCount: 1,
			Metadata: types.ChunkMetadata{
				TotalTokens:      1,
				FileCount:        1,
				Languages:        []string{"text"},
				Directories:      []string{"."},
				Title:            "big.txt (part 2/2)",
				Strategy:         "semantic",
				NeedsRebalancing: true,
			},
			ContextInfo: types.ContextInfo{
				EntryPoints:          []string{},
				Exports:              []string{},
				InternalDependencies: []types.DependencyEdge{},
			},
			ContextBoundaries: types.ContextBoundaries{
				PreviousChunkID:           strPtr("chunk-a"),
				RelatedFilesInOtherChunks: []string{"cmd/main.go"},
			},
		},
	}
	summaries := []types.ChunkSummary{
		{ChunkID: "chunk-a", FileCount: 2, TokenCount: 11, Summary: "2 files of go", KeyFiles: []string{"cmd/main.go"}},
		{ChunkID: "chunk-b", FileCount: 1, TokenCount: 1, Summary: "Part 2 of 2 of big.txt", KeyFiles: []string{}},
	}
	refs := []types.CrossReference{
		{FromChunk: "chunk-a", ToChunk: "chunk-b", File: "cmd/main.go", ReferencedFile: "big.txt"},
	}
	return chunks, summaries, refs
}

func saveTestRun(t *testing.T, s Storage, root, hash string) *Run {
	t.Helper()
	chunks, summaries, refs := testChunks()
	run := &Run{
		RootPath:          root,
		CorpusHash:        hash,
		Strategy:          "semantic",
		Model:             "gpt-4",
		MaxTokensPerChunk: 100000,
		TotalFiles:        3,
		Duration:          1500 * time.Millisecond,
	}
	require.NoError(t, s.SaveRun(context.Background(), run, chunks, summaries, refs))
	return run
}

func TestNewSQLiteStorage(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	assert.NotNil(t, storage.db)
}

func TestClose(t *testing.T) {
	storage := setupTestDB(t)
	err := storage.Close()
	assert.NoError(t, err)
}

func TestSaveRun(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	run := saveTestRun(t, storage, "/repo", "hash-1")
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())
	assert.Equal(t, 2, run.TotalChunks)
	assert.Equal(t, 12, run.TotalTokens)

	got, err := storage.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, "/repo", got.RootPath)
	assert.Equal(t, "hash-1", got.CorpusHash)
	assert.Equal(t, "gpt-4", got.Model)
	assert.Equal(t, 3, got.TotalFiles)
	assert.Equal(t, 1500*time.Millisecond, got.Duration)
}

func TestSaveRun_Duplicate(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	run := saveTestRun(t, storage, "/repo", "hash-1")
	chunks, summaries, refs := testChunks()
	err := storage.SaveRun(context.Background(), &Run{ID: run.ID, RootPath: "/repo"}, chunks, summaries, refs)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSaveRun_SummaryMismatch(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	chunks, summaries, refs := testChunks()
	err := storage.SaveRun(context.Background(), &Run{RootPath: "/repo"}, chunks, summaries[:1], refs)
	assert.Error(t, err)

	runs, err := storage.ListRuns(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestLoadChunks(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	run := saveTestRun(t, storage, "/repo", "hash-1")
	want, _, _ := testChunks()

	got, err := storage.LoadChunks(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadChunks_NotFound(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	_, err := storage.LoadChunks(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadSummaries(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	run := saveTestRun(t, storage, "/repo", "hash-1")
	_, want, _ := testChunks()

	got, err := storage.LoadSummaries(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadSummaries_NotStored(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	chunks, _, refs := testChunks()
	run := &Run{RootPath: "/repo"}
	require.NoError(t, storage.SaveRun(ctx, run, chunks, nil, refs))

	got, err := storage.LoadSummaries(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetChunk(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	first := saveTestRun(t, storage, "/repo", "hash-1")
	second := saveTestRun(t, storage, "/repo", "hash-2")
	want, _, _ := testChunks()

	c, err := storage.GetChunk(ctx, first.ID, "chunk-b")
	require.NoError(t, err)
	assert.Equal(t, want[1], *c)

	// Without a run id the newest run wins
	require.NoError(t, storage.DeleteRun(ctx, first.ID))
	c, err = storage.GetChunk(ctx, "", "chunk-a")
	require.NoError(t, err)
	assert.Equal(t, want[0], *c)

	_, err = storage.GetChunk(ctx, second.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = storage.GetChunk(ctx, "", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetChunk_SharedIDPrefersNewestRun(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	runs := make([]*Run, 3)
	for i := range runs {
		chunks, summaries, refs := testChunks()
		chunks[0].Metadata.Title = fmt.Sprintf("run %d", i)
		runs[i] = &Run{RootPath: "/repo", CorpusHash: "same", Strategy: "semantic", Model: "gpt-4", MaxTokensPerChunk: 100000}
		require.NoError(t, storage.SaveRun(ctx, runs[i], chunks, summaries, refs))
	}

	c, err := storage.GetChunk(ctx, "", "chunk-a")
	require.NoError(t, err)
	assert.Equal(t, "run 2", c.Metadata.Title)

	c, err = storage.GetChunk(ctx, runs[0].ID, "chunk-a")
	require.NoError(t, err)
	assert.Equal(t, "run 0", c.Metadata.Title)

	require.NoError(t, storage.DeleteRun(ctx, runs[2].ID))
	c, err = storage.GetChunk(ctx, "", "chunk-a")
	require.NoError(t, err)
	assert.Equal(t, "run 1", c.Metadata.Title)
}

func TestListCrossReferences(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	run := saveTestRun(t, storage, "/repo", "hash-1")
	_, _, want := testChunks()

	got, err := storage.ListCrossReferences(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFindRunByHash(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	saveTestRun(t, storage, "/repo", "hash-1")
	newer := saveTestRun(t, storage, "/repo", "hash-1")

	got, err := storage.FindRunByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = storage.FindRunByHash(ctx, "other")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRuns(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	a := saveTestRun(t, storage, "/a", "h1")
	b := saveTestRun(t, storage, "/b", "h2")
	c := saveTestRun(t, storage, "/a", "h3")

	tests := []struct {
		name  string
		root  string
		limit int
		want  []string
	}{
		{"all", "", 0, []string{c.ID, b.ID, a.ID}},
		{"limit", "", 2, []string{c.ID, b.ID}},
		{"root", "/a", 0, []string{c.ID, a.ID}},
		{"unknown root", "/x", 0, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := storage.ListRuns(ctx, tt.root, tt.limit)
			require.NoError(t, err)
			ids := make([]string, 0, len(runs))
			for _, r := range runs {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestDeleteRun(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	run := saveTestRun(t, storage, "/repo", "hash-1")
	require.NoError(t, storage.DeleteRun(ctx, run.ID))

	_, err := storage.GetRun(ctx, run.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.ChunksCount)
	assert.Zero(t, status.FilesCount)
	assert.Zero(t, status.CrossReferencesCount)

	assert.ErrorIs(t, storage.DeleteRun(ctx, run.ID), ErrNotFound)
}

func TestGetStatus(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	status, err := storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.RunsCount)
	assert.True(t, status.LastRunAt.IsZero())

	saveTestRun(t, storage, "/repo", "hash-1")
	status, err = storage.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.RunsCount)
	assert.Equal(t, 2, status.ChunksCount)
	assert.Equal(t, 3, status.FilesCount)
	assert.Equal(t, 1, status.CrossReferencesCount)
	assert.Equal(t, CurrentSchemaVersion, status.SchemaVersion)
	assert.True(t, status.Health.DatabaseAccessible)
	assert.True(t, status.Health.SchemaCurrent)
	assert.False(t, status.LastRunAt.IsZero())
}

func TestTransaction(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		run := saveTestRun(t, tx, "/repo", "committed")
		require.NoError(t, tx.Commit())

		_, err = storage.GetRun(ctx, run.ID)
		assert.NoError(t, err)
	})

	t.Run("rollback", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		run := saveTestRun(t, tx, "/repo", "rolled-back")

		chunks, err := tx.LoadChunks(ctx, run.ID)
		require.NoError(t, err)
		assert.Len(t, chunks, 2)
		require.NoError(t, tx.Rollback())

		_, err = storage.GetRun(ctx, run.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nested", func(t *testing.T) {
		tx, err := storage.BeginTx(ctx)
		require.NoError(t, err)
		defer func() { _ = tx.Rollback() }()

		_, err = tx.BeginTx(ctx)
		assert.Error(t, err)
	})
}

func TestMigrations(t *testing.T) {
	storage := setupTestDB(t)
	defer storage.Close()

	ctx := context.Background()
	version, err := SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())

	// Applying again is a no-op
	require.NoError(t, ApplyMigrations(ctx, storage.db))

	require.NoError(t, RollbackMigration(ctx, storage.db))
	version, err = SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", version.String())

	require.NoError(t, RollbackMigration(ctx, storage.db))
	version, err = SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0", version.String())

	assert.Error(t, RollbackMigration(ctx, storage.db))

	require.NoError(t, ApplyMigrations(ctx, storage.db))
	version, err = SchemaVersion(ctx, storage.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version.String())
}
