package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/repochunk/internal/chunker"
	"github.com/dshills/repochunk/internal/discover"
	"github.com/dshills/repochunk/internal/storage"
	"github.com/dshills/repochunk/internal/summarizer"
	"github.com/dshills/repochunk/internal/tokenizer"
	"github.com/dshills/repochunk/pkg/types"
)

var (
	// ErrAlreadyRunning is returned when a run is started while another is in progress
	ErrAlreadyRunning = errors.New("chunking already in progress")
	// ErrRunNotFound is returned when a run id is neither stored nor the latest run
	ErrRunNotFound = errors.New("run not found")
	// ErrChunkNotFound is returned when a run has no chunk with the requested id
	ErrChunkNotFound = errors.New("chunk not found")
)

// Pipeline coordinates a chunking run: discover -> count/pack -> summarize -> store
type Pipeline struct {
	counter    tokenizer.Counter
	packer     *chunker.Packer
	summarizer *summarizer.Generator
	storage    storage.Storage
	limits     *tokenizer.ModelLimits
	logger     *log.Logger

	lock RunLock

	mu   sync.RWMutex
	last *Output
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithStorage persists every run and enables lookups of earlier runs.
func WithStorage(s storage.Storage) Option {
	return func(p *Pipeline) { p.storage = s }
}

// WithLogger sets the logger for stage timings and cache hits.
func WithLogger(l *log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithModelLimits replaces the default context-window table.
func WithModelLimits(m *tokenizer.ModelLimits) Option {
	return func(p *Pipeline) { p.limits = m }
}

// WithSummarizer replaces the default summary generator.
func WithSummarizer(g *summarizer.Generator) Option {
	return func(p *Pipeline) { p.summarizer = g }
}

// WithPackerOptions passes options through to the chunk packer.
func WithPackerOptions(opts ...chunker.Option) Option {
	return func(p *Pipeline) { p.packer = chunker.New(p.counter, opts...) }
}

// New creates a Pipeline counting tokens with counter
func New(counter tokenizer.Counter, opts ...Option) *Pipeline {
	p := &Pipeline{
		counter:    counter,
		packer:     chunker.New(counter),
		summarizer: summarizer.New(),
		limits:     tokenizer.NewModelLimits(nil),
		logger:     log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request describes one run. When Files is nil the files are discovered
// under Root.
type Request struct {
	Root     string
	Files    []types.FileRecord
	Discover discover.Options
	Chunking chunker.Options

	// Cache reuses a stored run with the same corpus hash.
	Cache bool
}

// Output is the result of a run
type Output struct {
	RunID           string
	CorpusHash      string
	Cached          bool
	Chunks          []types.Chunk
	Summaries       []types.ChunkSummary
	CrossReferences []types.CrossReference
	Navigation      types.NavigationIndex
	Statistics      Statistics
}

// Statistics contains statistics about a run
type Statistics struct {
	FilesProcessed int
	TotalChunks    int
	TotalTokens    int
	Strategy       string
	Model          string
	ModelLimit     int
	FitsInWindow   bool // TotalTokens <= ModelLimit

	DiscoverDuration  time.Duration
	ChunkDuration     time.Duration
	SummarizeDuration time.Duration
	StoreDuration     time.Duration
	Duration          time.Duration
}

// Run chunks a repository. Only one run per Pipeline may be active; a
// concurrent call returns ErrAlreadyRunning.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Output, error) {
	if !p.lock.TryAcquire() {
		return nil, ErrAlreadyRunning
	}
	defer p.lock.Release()

	startTime := time.Now()
	stats := Statistics{}

	root := req.Root
	if root != "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root: %w", err)
		}
		root = abs
	}

	files := req.Files
	if files == nil {
		stageStart := time.Now()
		discovered, err := discover.Files(ctx, root, req.Discover)
		if err != nil {
			return nil, fmt.Errorf("failed to discover files: %w", err)
		}
		files = discovered
		stats.DiscoverDuration = time.Since(stageStart)
		p.logger.Printf("discovered %d files under %s in %v", len(files), root, stats.DiscoverDuration)
	}

	opts := req.Chunking
	hash := CorpusHash(files, opts, p.counterIdentity(opts.Model))

	out, err := p.cached(ctx, req, hash)
	if err != nil {
		return nil, err
	}

	if out == nil {
		out, err = p.process(ctx, root, hash, files, opts, &stats)
		if err != nil {
			return nil, err
		}
	}

	stats.FilesProcessed = len(files)
	stats.TotalChunks = len(out.Chunks)
	stats.TotalTokens = 0
	for i := range out.Chunks {
		stats.TotalTokens += out.Chunks[i].TokenCount
	}
	stats.Strategy = string(opts.Strategy)
	stats.Model = opts.Model
	stats.ModelLimit = p.limits.Limit(opts.Model)
	stats.FitsInWindow = stats.TotalTokens <= stats.ModelLimit
	stats.Duration = time.Since(startTime)
	out.Statistics = stats

	if s, ok := p.counter.(interface{ Stats() tokenizer.Stats }); ok {
		cs := s.Stats()
		p.logger.Printf("tokenizer: %d cache hits, %d misses, %d fallbacks", cs.CacheHits, cs.CacheMisses, cs.Fallbacks)
	}
	p.logger.Printf("run %s: %d files, %d chunks, %d tokens in %v",
		out.RunID, stats.FilesProcessed, stats.TotalChunks, stats.TotalTokens, stats.Duration)

	p.mu.Lock()
	p.last = out
	p.mu.Unlock()

	return out, nil
}

// cached returns a stored run with the same corpus hash, or nil.
func (p *Pipeline) cached(ctx context.Context, req Request, hash string) (*Output, error) {
	if !req.Cache {
		return nil, nil
	}

	p.mu.RLock()
	last := p.last
	p.mu.RUnlock()
	if last != nil && last.CorpusHash == hash {
		p.logger.Printf("cache hit: reusing run %s", last.RunID)
		out := *last
		out.Cached = true
		return &out, nil
	}

	if p.storage == nil {
		return nil, nil
	}

	run, err := p.storage.FindRunByHash(ctx, hash)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up cached run: %w", err)
	}

	out, err := p.load(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	out.CorpusHash = hash
	out.Cached = true
	p.logger.Printf("cache hit: reusing run %s from %s", run.ID, run.CreatedAt.Format(time.RFC3339))
	return out, nil
}

// process packs, summarizes and optionally stores files.
func (p *Pipeline) process(ctx context.Context, root, hash string, files []types.FileRecord,
	opts chunker.Options, stats *Statistics) (*Output, error) {

	stageStart := time.Now()
	result, err := p.packer.Pack(ctx, files, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk files: %w", err)
	}
	stats.ChunkDuration = time.Since(stageStart)
	p.logger.Printf("packed %d chunks with %s in %v", len(result.Chunks), result.Strategy, stats.ChunkDuration)

	stageStart = time.Now()
	summaries := p.summarizer.Summarize(result.Chunks)
	nav := p.summarizer.Navigation(result.Chunks, result.CrossReferences)
	stats.SummarizeDuration = time.Since(stageStart)

	out := &Output{
		RunID:           uuid.NewString(),
		CorpusHash:      hash,
		Chunks:          result.Chunks,
		Summaries:       summaries,
		CrossReferences: result.CrossReferences,
		Navigation:      nav,
	}

	if p.storage != nil {
		stageStart = time.Now()
		run := &storage.Run{
			ID:                out.RunID,
			RootPath:          root,
			CorpusHash:        hash,
			Strategy:          string(result.Strategy),
			Model:             opts.Model,
			MaxTokensPerChunk: opts.MaxTokensPerChunk,
			Overlap:           opts.Overlap,
			TotalFiles:        len(files),
			Duration:          stats.DiscoverDuration + stats.ChunkDuration + stats.SummarizeDuration,
		}
		if err := p.storage.SaveRun(ctx, run, result.Chunks, summaries, result.CrossReferences); err != nil {
			return nil, fmt.Errorf("failed to store run: %w", err)
		}
		stats.StoreDuration = time.Since(stageStart)
		p.logger.Printf("stored run %s in %v", run.ID, stats.StoreDuration)
	}

	return out, nil
}

// load rebuilds an Output from storage.
func (p *Pipeline) load(ctx context.Context, runID string) (*Output, error) {
	run, err := p.storage.GetRun(ctx, runID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	chunks, err := p.storage.LoadChunks(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	summaries, err := p.storage.LoadSummaries(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load summaries: %w", err)
	}
	if len(summaries) != len(chunks) {
		summaries = p.summarizer.Summarize(chunks)
	}
	refs, err := p.storage.ListCrossReferences(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cross references: %w", err)
	}

	return &Output{
		RunID:           run.ID,
		CorpusHash:      run.CorpusHash,
		Chunks:          chunks,
		Summaries:       summaries,
		CrossReferences: refs,
		Navigation:      p.summarizer.Navigation(chunks, refs),
	}, nil
}

// Lookup returns a run by id. An empty id selects the latest run of this
// Pipeline. Runs other than the latest need storage.
func (p *Pipeline) Lookup(ctx context.Context, runID string) (*Output, error) {
	p.mu.RLock()
	last := p.last
	p.mu.RUnlock()

	if last != nil && (runID == "" || runID == last.RunID) {
		return last, nil
	}
	if runID == "" || p.storage == nil {
		return nil, ErrRunNotFound
	}
	return p.load(ctx, runID)
}

// Chunk returns one chunk by id from a run (see Lookup for runID). With an
// empty runID, stored runs are searched when the latest run lacks the chunk.
func (p *Pipeline) Chunk(ctx context.Context, runID, chunkID string) (*types.Chunk, error) {
	p.mu.RLock()
	last := p.last
	p.mu.RUnlock()

	if last != nil && (runID == "" || runID == last.RunID) {
		for i := range last.Chunks {
			if last.Chunks[i].ID == chunkID {
				return &last.Chunks[i], nil
			}
		}
		if runID != "" || p.storage == nil {
			return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, chunkID)
		}
	}

	if p.storage == nil {
		if runID != "" {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, chunkID)
	}

	if runID != "" {
		if _, err := p.storage.GetRun(ctx, runID); errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		} else if err != nil {
			return nil, err
		}
	}

	c, err := p.storage.GetChunk(ctx, runID, chunkID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrChunkNotFound, chunkID)
	}
	return c, err
}

// Running reports whether a run is in progress.
func (p *Pipeline) Running() bool {
	return p.lock.Held()
}

// Counter returns the token counter the pipeline packs with.
func (p *Pipeline) Counter() tokenizer.Counter {
	return p.counter
}

// ModelLimits returns the context-window table.
func (p *Pipeline) ModelLimits() *tokenizer.ModelLimits {
	return p.limits
}

// counterIdentity names how the pipeline's counter counts for model.
func (p *Pipeline) counterIdentity(model string) string {
	if id, ok := p.counter.(tokenizer.Identifier); ok {
		return id.Identity(model)
	}
	return fmt.Sprintf("%T", p.counter)
}

// CorpusHash is the hex SHA-256 over the counter identity, the packing
// options and every file's path and content, in input order.
func CorpusHash(files []types.FileRecord, opts chunker.Options, counterID string) string {
	h := sha256.New()
	for _, field := range []string{
		counterID,
		string(opts.Strategy),
		strconv.Itoa(opts.MaxTokensPerChunk),
		opts.Model,
		strconv.Itoa(opts.Overlap),
		strconv.FormatFloat(opts.SoftTargetRatio, 'g', -1, 64),
		strconv.FormatBool(opts.MergeUndersized),
	} {
		_, _ = io.WriteString(h, field)
		_, _ = h.Write([]byte{0})
	}
	for _, f := range files {
		_, _ = io.WriteString(h, f.Path)
		_, _ = h.Write([]byte{0})
		_, _ = io.WriteString(h, f.Content)
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
