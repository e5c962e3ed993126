package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/repochunk/internal/chunker"
	"github.com/dshills/repochunk/internal/storage"
	"github.com/dshills/repochunk/internal/tokenizer"
	"github.com/dshills/repochunk/pkg/types"
)

// wordCounter counts one token per whitespace-separated word
type wordCounter struct{}

func (wordCounter) CountTokens(text, model string) (int, error) {
	return len(strings.Fields(text)), nil
}

func (w wordCounter) ChunkTextByTokens(text string, maxTokens int, model string) ([]string, error) {
	return tokenizer.SplitByTokens(text, maxTokens, func(s string) (int, error) {
		return w.CountTokens(s, model)
	})
}

func testFiles() []types.FileRecord {
	return []types.FileRecord{
		types.NewFileRecord("main.go", "package main\n\nimport \"example.com/app/util\"\n\nfunc main() { util.Run() }\n"),
		types.NewFileRecord("util/util.go", "package util\n\nfunc Run() {}\n"),
		types.NewFileRecord("README.md", "# App\n\nSmall example.\n"),
	}
}

func testOptions(budget int) chunker.Options {
	opts := chunker.DefaultOptions()
	opts.Strategy = chunker.StrategyFileBased
	opts.MaxTokensPerChunk = budget
	opts.Model = "gpt-4o"
	return opts
}

func setupStorage(t *testing.T) *storage.SQLiteStorage {
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRun_Files(t *testing.T) {
	p := New(wordCounter{})

	out, err := p.Run(context.Background(), Request{Files: testFiles(), Chunking: testOptions(100)})
	require.NoError(t, err)

	assert.NotEmpty(t, out.RunID)
	assert.NotEmpty(t, out.CorpusHash)
	assert.False(t, out.Cached)
	require.Len(t, out.Chunks, 1)
	assert.Len(t, out.Summaries, 1)
	assert.Equal(t, 1, out.Navigation.TotalChunks)

	stats := out.Statistics
	assert.Equal(t, 3, stats.FilesProcessed)
	assert.Equal(t, 1, stats.TotalChunks)
	assert.Equal(t, out.Chunks[0].TokenCount, stats.TotalTokens)
	assert.Equal(t, "file_based", stats.Strategy)
	assert.Equal(t, 128000, stats.ModelLimit)
	assert.True(t, stats.FitsInWindow)
}

func TestRun_ModelLimit(t *testing.T) {
	p := New(wordCounter{}, WithModelLimits(tokenizer.NewModelLimits(map[string]int{"tiny": 5})))

	opts := testOptions(100)
	opts.Model = "tiny"
	out, err := p.Run(context.Background(), Request{Files: testFiles(), Chunking: opts})
	require.NoError(t, err)

	assert.Equal(t, 5, out.Statistics.ModelLimit)
	assert.False(t, out.Statistics.FitsInWindow)
}

func TestRun_Discover(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "pkg", "lib.go"), []byte("package pkg\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref: main\n"), 0o644))

	p := New(wordCounter{})
	out, err := p.Run(context.Background(), Request{Root: root, Chunking: testOptions(100)})
	require.NoError(t, err)

	assert.Equal(t, 2, out.Statistics.FilesProcessed)
	require.Len(t, out.Chunks, 1)
	assert.Equal(t, []string{"main.go", "pkg/lib.go"}, out.Chunks[0].SourcePaths())
}

func TestRun_Errors(t *testing.T) {
	p := New(wordCounter{})
	ctx := context.Background()

	_, err := p.Run(ctx, Request{Root: filepath.Join(t.TempDir(), "missing"), Chunking: testOptions(100)})
	assert.Error(t, err)

	opts := testOptions(100)
	opts.Overlap = 100
	_, err = p.Run(ctx, Request{Files: testFiles(), Chunking: opts})
	assert.True(t, chunker.IsConfigurationError(err))

	// A failed run leaves nothing behind
	_, err = p.Lookup(ctx, "")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.False(t, p.Running())
}

func TestRun_AlreadyRunning(t *testing.T) {
	p := New(wordCounter{})
	require.True(t, p.lock.TryAcquire())

	_, err := p.Run(context.Background(), Request{Files: testFiles(), Chunking: testOptions(100)})
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	assert.True(t, p.Running())

	p.lock.Release()
	_, err = p.Run(context.Background(), Request{Files: testFiles(), Chunking: testOptions(100)})
	assert.NoError(t, err)
}

func TestRun_CacheInMemory(t *testing.T) {
	p := New(wordCounter{})
	ctx := context.Background()
	req := Request{Files: testFiles(), Chunking: testOptions(100), Cache: true}

	first, err := p.Run(ctx, req)
	require.NoError(t, err)
	second, err := p.Run(ctx, req)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, first.Chunks, second.Chunks)

	req.Cache = false
	third, err := p.Run(ctx, req)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.NotEqual(t, first.RunID, third.RunID)
	assert.Equal(t, first.Chunks, third.Chunks)
}

func TestRun_Storage(t *testing.T) {
	db := setupStorage(t)
	ctx := context.Background()

	var logs bytes.Buffer
	p := New(wordCounter{}, WithStorage(db), WithLogger(log.New(&logs, "", 0)))
	out, err := p.Run(ctx, Request{Root: "/repo", Files: testFiles(), Chunking: testOptions(30), Cache: true})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "stored run "+out.RunID)

	run, err := db.GetRun(ctx, out.RunID)
	require.NoError(t, err)
	assert.Equal(t, "/repo", run.RootPath)
	assert.Equal(t, out.CorpusHash, run.CorpusHash)
	assert.Equal(t, 3, run.TotalFiles)
	assert.Equal(t, len(out.Chunks), run.TotalChunks)

	// A fresh pipeline over the same database reuses the stored run
	other := New(wordCounter{}, WithStorage(db))
	cached, err := other.Run(ctx, Request{Root: "/repo", Files: testFiles(), Chunking: testOptions(30), Cache: true})
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, out.RunID, cached.RunID)
	assert.Equal(t, out.Chunks, cached.Chunks)
	assert.Equal(t, out.Summaries, cached.Summaries)
	assert.Equal(t, out.Navigation, cached.Navigation)
}

func TestRun_StorageCacheKeyedByCounter(t *testing.T) {
	db := setupStorage(t)
	ctx := context.Background()
	req := Request{Root: "/repo", Files: testFiles(), Chunking: testOptions(30), Cache: true}

	byWords, err := tokenizer.New(tokenizer.Config{Method: tokenizer.MethodWords})
	require.NoError(t, err)
	first, err := New(byWords, WithStorage(db)).Run(ctx, req)
	require.NoError(t, err)

	byChars, err := tokenizer.New(tokenizer.Config{Method: tokenizer.MethodChars})
	require.NoError(t, err)
	second, err := New(byChars, WithStorage(db)).Run(ctx, req)
	require.NoError(t, err)

	assert.False(t, second.Cached)
	assert.NotEqual(t, first.CorpusHash, second.CorpusHash)
	assert.NotEqual(t, first.RunID, second.RunID)
	for _, c := range second.Chunks {
		sum := 0
		for _, f := range c.Files {
			n, err := byChars.CountTokens(f.Content, req.Chunking.Model)
			require.NoError(t, err)
			sum += n
		}
		assert.Equal(t, sum, c.TokenCount)
		assert.LessOrEqual(t, c.TokenCount, 30)
	}

	// The same counter configuration still hits the cache
	again, err := New(byWords, WithStorage(db)).Run(ctx, req)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, first.RunID, again.RunID)
}

func TestLookup(t *testing.T) {
	db := setupStorage(t)
	ctx := context.Background()

	p := New(wordCounter{}, WithStorage(db))
	first, err := p.Run(ctx, Request{Files: testFiles(), Chunking: testOptions(30)})
	require.NoError(t, err)
	second, err := p.Run(ctx, Request{Files: testFiles(), Chunking: testOptions(100)})
	require.NoError(t, err)

	latest, err := p.Lookup(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, second.RunID, latest.RunID)

	stored, err := p.Lookup(ctx, first.RunID)
	require.NoError(t, err)
	assert.Equal(t, first.Chunks, stored.Chunks)

	_, err = p.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestChunk(t *testing.T) {
	ctx := context.Background()

	t.Run("in memory", func(t *testing.T) {
		p := New(wordCounter{})
		out, err := p.Run(ctx, Request{Files: testFiles(), Chunking: testOptions(30)})
		require.NoError(t, err)
		require.NotEmpty(t, out.Chunks)
		want := out.Chunks[len(out.Chunks)-1]

		c, err := p.Chunk(ctx, "", want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, *c)

		c, err = p.Chunk(ctx, out.RunID, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, *c)

		_, err = p.Chunk(ctx, "", "missing")
		assert.ErrorIs(t, err, ErrChunkNotFound)
		_, err = p.Chunk(ctx, "other-run", want.ID)
		assert.ErrorIs(t, err, ErrRunNotFound)
	})

	t.Run("stored", func(t *testing.T) {
		db := setupStorage(t)
		first := New(wordCounter{}, WithStorage(db))
		out, err := first.Run(ctx, Request{Files: testFiles(), Chunking: testOptions(30)})
		require.NoError(t, err)
		want := out.Chunks[0]

		p := New(wordCounter{}, WithStorage(db))
		c, err := p.Chunk(ctx, "", want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, *c)

		c, err = p.Chunk(ctx, out.RunID, want.ID)
		require.NoError(t, err)
		assert.Equal(t, want, *c)

		_, err = p.Chunk(ctx, out.RunID, "missing")
		assert.ErrorIs(t, err, ErrChunkNotFound)
		_, err = p.Chunk(ctx, "missing", want.ID)
		assert.ErrorIs(t, err, ErrRunNotFound)
	})
}

func TestCorpusHash(t *testing.T) {
	files := testFiles()
	opts := testOptions(100)
	base := CorpusHash(files, opts, "estimate/words")

	assert.Len(t, base, 64)
	assert.Equal(t, base, CorpusHash(testFiles(), opts, "estimate/words"))
	assert.NotEqual(t, base, CorpusHash(files, opts, "estimate/chars"))
	assert.NotEqual(t, base, CorpusHash(files, opts, "tiktoken/o200k_base"))

	changed := testFiles()
	changed[2].Content += "more"
	assert.NotEqual(t, base, CorpusHash(changed, opts, "estimate/words"))

	renamed := testFiles()
	renamed[2].Path = "docs/README.md"
	assert.NotEqual(t, base, CorpusHash(renamed, opts, "estimate/words"))

	other := opts
	other.Strategy = chunker.StrategySemantic
	assert.NotEqual(t, base, CorpusHash(files, other, "estimate/words"))

	other = opts
	other.MaxTokensPerChunk = 50
	assert.NotEqual(t, base, CorpusHash(files, other, "estimate/words"))
}

func TestRunLock(t *testing.T) {
	var l RunLock
	assert.True(t, l.TryAcquire())
	assert.False(t, l.TryAcquire())
	assert.True(t, l.Held())
	l.Release()
	assert.False(t, l.Held())
	assert.True(t, l.TryAcquire())
}

func TestErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrRunNotFound, ErrChunkNotFound))
	assert.False(t, errors.Is(ErrAlreadyRunning, ErrRunNotFound))
}
