package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dshills/repochunk/internal/config"
	"github.com/dshills/repochunk/internal/pipeline"
	"github.com/dshills/repochunk/internal/storage"
	"github.com/dshills/repochunk/internal/tokenizer"
	"github.com/dshills/repochunk/pkg/types"
)

// chunkCmd represents the chunk command
var chunkCmd = &cobra.Command{
	Use:   "chunk <dir>",
	Short: "Chunk a repository",
	Long: `Chunk the files under <dir> into token-bounded chunks.

The default output is a JSON document with every chunk, its summary and the
navigation index. --format summary prints a table of contents instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runChunk,
}

// chunkFlags holds the flags for the chunk command
type chunkFlags struct {
	strategy  string
	maxTokens int
	model     string
	overlap   int
	merge     bool
	format    string
	output    string
	store     bool
	dbPath    string
	noCache   bool
}

var chunkOpts chunkFlags

func init() {
	rootCmd.AddCommand(chunkCmd)

	chunkCmd.Flags().StringVarP(&chunkOpts.strategy, "strategy", "s", "",
		"semantic, file_based, directory_based, dependency_aware or size_balanced")
	chunkCmd.Flags().IntVarP(&chunkOpts.maxTokens, "max-tokens", "m", 0, "token budget per chunk")
	chunkCmd.Flags().StringVar(&chunkOpts.model, "model", "", "model whose tokenizer and context window apply")
	chunkCmd.Flags().IntVar(&chunkOpts.overlap, "overlap", -1, "overlap tokens recorded on chunk metadata")
	chunkCmd.Flags().BoolVar(&chunkOpts.merge, "merge-undersized", false, "size_balanced: merge undersized chunks")
	chunkCmd.Flags().StringVarP(&chunkOpts.format, "format", "f", "json", "output format: json or summary")
	chunkCmd.Flags().StringVarP(&chunkOpts.output, "output", "o", "", "write output to a file instead of stdout")
	chunkCmd.Flags().BoolVar(&chunkOpts.store, "store", false, "persist the run to the database")
	chunkCmd.Flags().StringVar(&chunkOpts.dbPath, "db", "", "database path (implies --store)")
	chunkCmd.Flags().BoolVar(&chunkOpts.noCache, "no-cache", false, "always chunk, even when a stored run matches")
}

// applyChunkFlags overlays command-line flags on cfg
func applyChunkFlags(cmd *cobra.Command, cfg *config.Config) error {
	if chunkOpts.strategy != "" {
		cfg.Chunking.Strategy = chunkOpts.strategy
	}
	if chunkOpts.maxTokens != 0 {
		cfg.Chunking.MaxTokensPerChunk = chunkOpts.maxTokens
	}
	if chunkOpts.model != "" {
		cfg.Model = chunkOpts.model
	}
	if cmd.Flags().Changed("overlap") {
		cfg.Chunking.Overlap = chunkOpts.overlap
	}
	if chunkOpts.merge {
		cfg.Chunking.MergeUndersized = true
	}
	if chunkOpts.store || chunkOpts.dbPath != "" {
		cfg.Storage.Enabled = true
	}
	if chunkOpts.dbPath != "" {
		cfg.Storage.Path = chunkOpts.dbPath
	}
	if chunkOpts.noCache {
		cfg.Storage.Cache = false
	}
	if chunkOpts.format != "json" && chunkOpts.format != "summary" {
		return types.NewConfigurationError("format", chunkOpts.format, "must be json or summary")
	}
	return cfg.Validate()
}

func runChunk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyChunkFlags(cmd, cfg); err != nil {
		return err
	}

	counter, err := tokenizer.New(cfg.TokenizerOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize tokenizer: %w", err)
	}
	opts, err := cfg.ChunkOptions()
	if err != nil {
		return err
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(newLogger()),
		pipeline.WithModelLimits(cfg.ModelLimits()),
	}
	if cfg.Storage.Enabled {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
		db, err := storage.NewSQLiteStorage(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer func() { _ = db.Close() }()
		pipelineOpts = append(pipelineOpts, pipeline.WithStorage(db))
	}

	p := pipeline.New(counter, pipelineOpts...)
	out, err := p.Run(cmd.Context(), pipeline.Request{
		Root:     args[0],
		Discover: cfg.DiscoverOptions(),
		Chunking: opts,
		Cache:    cfg.Storage.Enabled && cfg.Storage.Cache,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if chunkOpts.output != "" {
		f, err := os.Create(chunkOpts.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if chunkOpts.format == "summary" {
		return writeSummary(w, out)
	}
	return writeJSON(w, out)
}

// chunkDocument is the JSON output of the chunk command
type chunkDocument struct {
	RunID      string                `json:"run_id"`
	Cached     bool                  `json:"cached"`
	Statistics statisticsDocument    `json:"statistics"`
	Navigation types.NavigationIndex `json:"navigation"`
	Summaries  []types.ChunkSummary  `json:"summaries"`
	Chunks     []types.Chunk         `json:"chunks"`
}

type statisticsDocument struct {
	FilesProcessed int    `json:"files_processed"`
	TotalChunks    int    `json:"total_chunks"`
	TotalTokens    int    `json:"total_tokens"`
	Strategy       string `json:"strategy"`
	Model          string `json:"model"`
	ModelLimit     int    `json:"model_limit"`
	FitsInWindow   bool   `json:"fits_in_window"`
	DurationMs     int64  `json:"duration_ms"`
}

func writeJSON(w io.Writer, out *pipeline.Output) error {
	stats := out.Statistics
	doc := chunkDocument{
		RunID:  out.RunID,
		Cached: out.Cached,
		Statistics: statisticsDocument{
			FilesProcessed: stats.FilesProcessed,
			TotalChunks:    stats.TotalChunks,
			TotalTokens:    stats.TotalTokens,
			Strategy:       stats.Strategy,
			Model:          stats.Model,
			ModelLimit:     stats.ModelLimit,
			FitsInWindow:   stats.FitsInWindow,
			DurationMs:     stats.Duration.Milliseconds(),
		},
		Navigation: out.Navigation,
		Summaries:  out.Summaries,
		Chunks:     out.Chunks,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

func writeSummary(w io.Writer, out *pipeline.Output) error {
	stats := out.Statistics
	fmt.Fprintf(w, "run %s", out.RunID)
	if out.Cached {
		fmt.Fprint(w, " (cached)")
	}
	fmt.Fprintf(w, "\n%d files, %d chunks, %d tokens (%s, %s limit %d", stats.FilesProcessed,
		stats.TotalChunks, stats.TotalTokens, stats.Strategy, stats.Model, stats.ModelLimit)
	if stats.FitsInWindow {
		fmt.Fprint(w, ", fits in one window")
	}
	fmt.Fprint(w, ")\n\n")

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTOKENS\tFILES\tTITLE")
	for _, entry := range out.Navigation.ChunkIndex {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%s\n", entry.ChunkNumber, entry.TokenCount, entry.FileCount, entry.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if n := len(out.Navigation.CrossReferences); n > 0 {
		fmt.Fprintf(w, "\n%d cross-chunk references\n", n)
	}
	return nil
}
