package chunker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/repochunk/internal/depgraph"
	"github.com/dshills/repochunk/internal/tokenizer"
	"github.com/dshills/repochunk/pkg/types"
)

// DefaultNamespace seeds chunk ids. Ids are UUIDv5 names under it, so the
// same input always yields the same ids.
var DefaultNamespace = uuid.MustParse("6f1d2c1e-8a43-5b7e-9c55-2f4a3e1b7d90")

// Packer groups files into token-bounded chunks
type Packer struct {
	counter   tokenizer.Counter
	namespace uuid.UUID
}

// Option configures a Packer
type Option func(*Packer)

// WithNamespace sets the UUID namespace chunk ids are derived from.
func WithNamespace(ns uuid.UUID) Option {
	return func(p *Packer) {
		p.namespace = ns
	}
}

// New creates a Packer that measures text with counter.
func New(counter tokenizer.Counter, opts ...Option) *Packer {
	p := &Packer{
		counter:   counter,
		namespace: DefaultNamespace,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result is the output of one Pack call.
type Result struct {
	Strategy        Strategy
	Chunks          []types.Chunk
	CrossReferences []types.CrossReference
	Graph           *depgraph.Graph
}

// TotalTokens sums the token counts of all chunks.
func (r *Result) TotalTokens() int {
	total := 0
	for i := range r.Chunks {
		total += r.Chunks[i].TokenCount
	}
	return total
}

// item is an input file with its token count
type item struct {
	file   types.FileRecord
	tokens int
}

// draft is a chunk under construction
type draft struct {
	files            []types.ChunkFile
	tokens           int
	needsRebalancing bool
}

func (d *draft) add(it item) {
	d.files = append(d.files, types.WholeFile(it.file, it.tokens))
	d.tokens += it.tokens
}

func (d *draft) empty() bool {
	return len(d.files) == 0
}

func (d *draft) hasFragments() bool {
	for i := range d.files {
		if d.files[i].IsPartial {
			return true
		}
	}
	return false
}

// run holds the state of one Pack call
type run struct {
	ctx     context.Context
	counter tokenizer.Counter
	opts    Options
	items   []item
	index   map[string]int // path -> position in items
	graph   *depgraph.Graph
}

// Pack partitions files into chunks using opts.Strategy.
//
// Every file ends up in exactly one chunk, or split into fragments spread
// over consecutive chunks when it alone exceeds opts.MaxTokensPerChunk.
// Options are validated before any work starts; an invalid option yields a
// *types.ConfigurationError and a counter failure a *types.TokenizationError.
// No partial result is returned on error.
func (p *Packer) Pack(ctx context.Context, files []types.FileRecord, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if p.counter == nil {
		return nil, types.NewConfigurationError("counter", nil, "token counter is required")
	}
	if err := validateFiles(files); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{Strategy: opts.Strategy, Chunks: []types.Chunk{}, CrossReferences: []types.CrossReference{}}
	if len(files) == 0 {
		result.Graph = depgraph.Build(nil)
		return result, nil
	}

	r := &run{ctx: ctx, counter: p.counter, opts: opts}

	texts := make([]string, len(files))
	paths := make([]string, len(files))
	for i := range files {
		texts[i] = files[i].Content
		paths[i] = files[i].Path
	}
	counts, err := r.countAll(texts, paths)
	if err != nil {
		return nil, err
	}
	r.items = make([]item, len(files))
	r.index = make(map[string]int, len(files))
	for i := range files {
		r.items[i] = item{file: files[i], tokens: counts[i]}
		r.index[files[i].Path] = i
	}

	r.graph = depgraph.Build(files)
	result.Graph = r.graph

	drafts, err := registry[opts.Strategy](r)
	if err != nil {
		return nil, err
	}

	chunks, err := r.finalize(drafts)
	if err != nil {
		return nil, err
	}

	result.CrossReferences = link(chunks, r.graph, p.namespace, opts.Strategy)
	result.Chunks = chunks
	return result, nil
}

// validateFiles rejects records that cannot be keyed by path.
func validateFiles(files []types.FileRecord) error {
	seen := make(map[string]struct{}, len(files))
	for i := range files {
		if err := files[i].Validate(); err != nil {
			return types.NewConfigurationError("files", i, err.Error())
		}
		if _, ok := seen[files[i].Path]; ok {
			return types.NewConfigurationError("files", files[i].Path, "duplicate path")
		}
		seen[files[i].Path] = struct{}{}
	}
	return nil
}

// countAll counts texts concurrently and returns the counts in input order.
func (r *run) countAll(texts, paths []string) ([]int, error) {
	counts := make([]int, len(texts))

	g, gctx := errgroup.WithContext(r.ctx)
	g.SetLimit(r.opts.Workers)

	for i := range texts {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			n, err := r.count(texts[i], paths[i])
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// count measures one text, wrapping counter failures.
func (r *run) count(text, path string) (int, error) {
	n, err := r.counter.CountTokens(text, r.opts.Model)
	if err != nil {
		return 0, types.NewTokenizationError(r.opts.Model, path, err)
	}
	if n < 0 {
		return 0, types.NewTokenizationError(r.opts.Model, path, fmt.Errorf("negative token count %d", n))
	}
	return n, nil
}

// split cuts text into pieces of at most maxTokens tokens.
func (r *run) split(text string, maxTokens int, path string) ([]string, error) {
	pieces, err := r.counter.ChunkTextByTokens(text, maxTokens, r.opts.Model)
	if err != nil {
		return nil, types.NewTokenizationError(r.opts.Model, path, err)
	}
	return pieces, nil
}

// IsConfigurationError reports whether err was caused by invalid options.
func IsConfigurationError(err error) bool {
	return errors.Is(err, types.ErrInvalidConfiguration)
}

// IsTokenizationError reports whether err came from the token counter.
func IsTokenizationError(err error) bool {
	return errors.Is(err, types.ErrTokenization)
}
