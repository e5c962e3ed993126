package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/repochunk/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// scanner is implemented by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

// querier returns the transaction querier
func (t *sqliteTx) querier() querier {
	return t.tx
}

// querier returns the DB querier
func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Run operations

// SaveRun stores a run with its chunks, summaries and cross references in
// one transaction. summaries may be nil; otherwise it must match chunks.
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *Run, chunks []types.Chunk,
	summaries []types.ChunkSummary, refs []types.CrossReference) error {

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveRunWithQuerier(ctx, tx, run, chunks, summaries, refs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// saveRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) saveRunWithQuerier(ctx context.Context, q querier, run *Run, chunks []types.Chunk,
	summaries []types.ChunkSummary, refs []types.CrossReference) error {

	if summaries != nil && len(summaries) != len(chunks) {
		return fmt.Errorf("summaries do not match chunks: %d != %d", len(summaries), len(chunks))
	}

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	run.TotalChunks = len(chunks)
	run.TotalTokens = 0
	for i := range chunks {
		run.TotalTokens += chunks[i].TokenCount
	}

	var exists int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM runs WHERE id = ?", run.ID).Scan(&exists)
	if err == nil {
		return fmt.Errorf("run %s: %w", run.ID, ErrAlreadyExists)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO runs (
			id, root_path, corpus_hash, strategy, model, max_tokens_per_chunk, overlap,
			total_files, total_chunks, total_tokens, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.RootPath, run.CorpusHash, run.Strategy, run.Model, run.MaxTokensPerChunk, run.Overlap,
		run.TotalFiles, run.TotalChunks, run.TotalTokens, run.Duration.Milliseconds(), run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}

	for i := range chunks {
		var summary *types.ChunkSummary
		if summaries != nil {
			summary = &summaries[i]
		}
		if err := insertChunk(ctx, q, run.ID, &chunks[i], summary); err != nil {
			return err
		}
	}

	for i, ref := range refs {
		_, err := q.ExecContext(ctx, `
			INSERT INTO cross_references (run_id, position, from_chunk, to_chunk, file, referenced_file)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, i, ref.FromChunk, ref.ToChunk, ref.File, ref.ReferencedFile)
		if err != nil {
			return fmt.Errorf("failed to store cross reference: %w", err)
		}
	}

	return nil
}

func insertChunk(ctx context.Context, q querier, runID string, c *types.Chunk, summary *types.ChunkSummary) error {
	metadata, err := json.Marshal(c.Metadata)
	if err != nil {
		return err
	}
	info, err := json.Marshal(c.ContextInfo)
	if err != nil {
		return err
	}
	related, err := json.Marshal(c.ContextBoundaries.RelatedFilesInOtherChunks)
	if err != nil {
		return err
	}
	var summaryJSON interface{}
	if summary != nil {
		b, err := json.Marshal(summary)
		if err != nil {
			return err
		}
		summaryJSON = string(b)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO chunks (
			run_id, chunk_id, position, title, token_count, metadata, context_info,
			previous_chunk_id, next_chunk_id, related_files, summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, c.ID, c.Index, c.Metadata.Title, c.TokenCount, string(metadata), string(info),
		nullable(c.ContextBoundaries.PreviousChunkID), nullable(c.ContextBoundaries.NextChunkID),
		string(related), summaryJSON)
	if err != nil {
		return fmt.Errorf("failed to store chunk %s: %w", c.ID, err)
	}

	for i, f := range c.Files {
		_, err := q.ExecContext(ctx, `
			INSERT INTO chunk_files (
				run_id, chunk_id, position, path, extension, content, size_bytes, lines, tokens,
				is_partial, original_path, part_index, total_parts
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, runID, c.ID, i, f.Path, f.Extension, f.Content, f.Size, f.Lines, f.Tokens,
			f.IsPartial, f.OriginalPath, f.PartIndex, f.TotalParts)
		if err != nil {
			return fmt.Errorf("failed to store file %s: %w", f.Path, err)
		}
	}
	return nil
}

func nullable(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}

const runColumns = `
	id, root_path, corpus_hash, strategy, model, max_tokens_per_chunk, overlap,
	total_files, total_chunks, total_tokens, duration_ms, created_at
`

func scanRun(row scanner) (*Run, error) {
	var run Run
	var durationMs int64
	err := row.Scan(
		&run.ID, &run.RootPath, &run.CorpusHash, &run.Strategy, &run.Model,
		&run.MaxTokensPerChunk, &run.Overlap, &run.TotalFiles, &run.TotalChunks,
		&run.TotalTokens, &durationMs, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Duration = time.Duration(durationMs) * time.Millisecond
	return &run, nil
}

// getRunWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) getRunWithQuerier(ctx context.Context, q querier, runID string) (*Run, error) {
	run, err := scanRun(q.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

func (s *SQLiteStorage) GetRun(ctx context.Context, runID string) (*Run, error) {
	return s.getRunWithQuerier(ctx, s.querier(), runID)
}

// findRunByHashWithQuerier returns the most recent run with the hash
func (s *SQLiteStorage) findRunByHashWithQuerier(ctx context.Context, q querier, corpusHash string) (*Run, error) {
	run, err := scanRun(q.QueryRowContext(ctx,
		"SELECT "+runColumns+" FROM runs WHERE corpus_hash = ? ORDER BY rowid DESC LIMIT 1", corpusHash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

func (s *SQLiteStorage) FindRunByHash(ctx context.Context, corpusHash string) (*Run, error) {
	return s.findRunByHashWithQuerier(ctx, s.querier(), corpusHash)
}

// listRunsWithQuerier lists runs newest first. An empty rootPath lists all
// runs; limit <= 0 means no limit.
func (s *SQLiteStorage) listRunsWithQuerier(ctx context.Context, q querier, rootPath string, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := q.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs
		WHERE ? = '' OR root_path = ?
		ORDER BY rowid DESC
		LIMIT ?
	`, rootPath, rootPath, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	runs := make([]*Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStorage) ListRuns(ctx context.Context, rootPath string, limit int) ([]*Run, error) {
	return s.listRunsWithQuerier(ctx, s.querier(), rootPath, limit)
}

// deleteRunWithQuerier removes a run and everything stored under it
func (s *SQLiteStorage) deleteRunWithQuerier(ctx context.Context, q querier, runID string) error {
	for _, table := range []string{"cross_references", "chunk_files", "chunks"} {
		if _, err := q.ExecContext(ctx, "DELETE FROM "+table+" WHERE run_id = ?", runID); err != nil {
			return fmt.Errorf("failed to delete %s: %w", table, err)
		}
	}
	result, err := q.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStorage) DeleteRun(ctx context.Context, runID string) error {
	return s.deleteRunWithQuerier(ctx, s.querier(), runID)
}

// Chunk operations

const chunkColumns = `
	chunk_id, position, token_count, metadata, context_info,
	previous_chunk_id, next_chunk_id, related_files
`

func scanChunk(row scanner) (*types.Chunk, error) {
	var c types.Chunk
	var metadata, info, related string
	var prev, next sql.NullString
	err := row.Scan(&c.ID, &c.Index, &c.TokenCount, &metadata, &info, &prev, &next, &related)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metadata), &c.Metadata); err != nil {
		return nil, fmt.Errorf("corrupt metadata for chunk %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(info), &c.ContextInfo); err != nil {
		return nil, fmt.Errorf("corrupt context info for chunk %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(related), &c.ContextBoundaries.RelatedFilesInOtherChunks); err != nil {
		return nil, fmt.Errorf("corrupt related files for chunk %s: %w", c.ID, err)
	}
	if prev.Valid {
		c.ContextBoundaries.PreviousChunkID = &prev.String
	}
	if next.Valid {
		c.ContextBoundaries.NextChunkID = &next.String
	}
	c.Files = []types.ChunkFile{}
	return &c, nil
}

// loadFiles returns the files of a run keyed by chunk id, in file order.
// An empty chunkID loads every chunk of the run.
func loadFiles(ctx context.Context, q querier, runID, chunkID string) (map[string][]types.ChunkFile, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT chunk_id, path, extension, content, size_bytes, lines, tokens,
		       is_partial, original_path, part_index, total_parts
		FROM chunk_files
		WHERE run_id = ? AND (? = '' OR chunk_id = ?)
		ORDER BY chunk_id, position
	`, runID, chunkID, chunkID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	files := make(map[string][]types.ChunkFile)
	for rows.Next() {
		var id string
		var f types.ChunkFile
		var original sql.NullString
		if err := rows.Scan(&id, &f.Path, &f.Extension, &f.Content, &f.Size, &f.Lines, &f.Tokens,
			&f.IsPartial, &original, &f.PartIndex, &f.TotalParts); err != nil {
			return nil, err
		}
		f.OriginalPath = original.String
		files[id] = append(files[id], f)
	}
	return files, rows.Err()
}

// loadChunksWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) loadChunksWithQuerier(ctx context.Context, q querier, runID string) ([]types.Chunk, error) {
	if _, err := s.getRunWithQuerier(ctx, q, runID); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, "SELECT "+chunkColumns+" FROM chunks WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, err
	}
	chunks := make([]types.Chunk, 0)
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	files, err := loadFiles(ctx, q, runID, "")
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		if f, ok := files[chunks[i].ID]; ok {
			chunks[i].Files = f
		}
	}
	return chunks, nil
}

func (s *SQLiteStorage) LoadChunks(ctx context.Context, runID string) ([]types.Chunk, error) {
	return s.loadChunksWithQuerier(ctx, s.querier(), runID)
}

// loadSummariesWithQuerier returns stored summaries in chunk order. Chunks
// saved without a summary are skipped.
func (s *SQLiteStorage) loadSummariesWithQuerier(ctx context.Context, q querier, runID string) ([]types.ChunkSummary, error) {
	if _, err := s.getRunWithQuerier(ctx, q, runID); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		"SELECT summary FROM chunks WHERE run_id = ? AND summary IS NOT NULL ORDER BY position", runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	summaries := make([]types.ChunkSummary, 0)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var summary types.ChunkSummary
		if err := json.Unmarshal([]byte(raw), &summary); err != nil {
			return nil, fmt.Errorf("corrupt summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}

func (s *SQLiteStorage) LoadSummaries(ctx context.Context, runID string) ([]types.ChunkSummary, error) {
	return s.loadSummariesWithQuerier(ctx, s.querier(), runID)
}

// getChunkWithQuerier loads one chunk. An empty runID selects the most
// recent run containing the chunk.
func (s *SQLiteStorage) getChunkWithQuerier(ctx context.Context, q querier, runID, chunkID string) (*types.Chunk, error) {
	if runID == "" {
		err := q.QueryRowContext(ctx, `
			SELECT c.run_id FROM chunks c
			JOIN runs r ON r.id = c.run_id
			WHERE c.chunk_id = ?
			ORDER BY r.rowid DESC
			LIMIT 1
		`, chunkID).Scan(&runID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
	}

	c, err := scanChunk(q.QueryRowContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE run_id = ? AND chunk_id = ?", runID, chunkID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	files, err := loadFiles(ctx, q, runID, chunkID)
	if err != nil {
		return nil, err
	}
	if f, ok := files[chunkID]; ok {
		c.Files = f
	}
	return c, nil
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, runID, chunkID string) (*types.Chunk, error) {
	return s.getChunkWithQuerier(ctx, s.querier(), runID, chunkID)
}

// listCrossReferencesWithQuerier is the internal implementation that uses a querier
func (s *SQLiteStorage) listCrossReferencesWithQuerier(ctx context.Context, q querier, runID string) ([]types.CrossReference, error) {
	if _, err := s.getRunWithQuerier(ctx, q, runID); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT from_chunk, to_chunk, file, referenced_file
		FROM cross_references
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	refs := make([]types.CrossReference, 0)
	for rows.Next() {
		var ref types.CrossReference
		if err := rows.Scan(&ref.FromChunk, &ref.ToChunk, &ref.File, &ref.ReferencedFile); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func (s *SQLiteStorage) ListCrossReferences(ctx context.Context, runID string) ([]types.CrossReference, error) {
	return s.listCrossReferencesWithQuerier(ctx, s.querier(), runID)
}

// Status operations

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	status := &Status{}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM runs", &status.RunsCount},
		{"SELECT COUNT(*) FROM chunks", &status.ChunksCount},
		{"SELECT COUNT(*) FROM chunk_files", &status.FilesCount},
		{"SELECT COUNT(*) FROM cross_references", &status.CrossReferencesCount},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, err
		}
	}

	var lastRun time.Time
	err := s.db.QueryRowContext(ctx, "SELECT created_at FROM runs ORDER BY rowid DESC LIMIT 1").Scan(&lastRun)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	status.LastRunAt = lastRun

	// Calculate database size
	var pageCount, pageSize int
	err = s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount)
	if err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	version, err := SchemaVersion(ctx, s.db)
	if err != nil {
		return nil, err
	}
	status.SchemaVersion = version.String()
	status.Health = HealthStatus{
		DatabaseAccessible: true,
		SchemaCurrent:      status.SchemaVersion == CurrentSchemaVersion,
	}

	return status, nil
}

// Transaction implementations

func (t *sqliteTx) SaveRun(ctx context.Context, run *Run, chunks []types.Chunk,
	summaries []types.ChunkSummary, refs []types.CrossReference) error {
	return t.storage.saveRunWithQuerier(ctx, t.querier(), run, chunks, summaries, refs)
}

func (t *sqliteTx) GetRun(ctx context.Context, runID string) (*Run, error) {
	return t.storage.getRunWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) FindRunByHash(ctx context.Context, corpusHash string) (*Run, error) {
	return t.storage.findRunByHashWithQuerier(ctx, t.querier(), corpusHash)
}

func (t *sqliteTx) ListRuns(ctx context.Context, rootPath string, limit int) ([]*Run, error) {
	return t.storage.listRunsWithQuerier(ctx, t.querier(), rootPath, limit)
}

func (t *sqliteTx) DeleteRun(ctx context.Context, runID string) error {
	return t.storage.deleteRunWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) LoadChunks(ctx context.Context, runID string) ([]types.Chunk, error) {
	return t.storage.loadChunksWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) LoadSummaries(ctx context.Context, runID string) ([]types.ChunkSummary, error) {
	return t.storage.loadSummariesWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) GetChunk(ctx context.Context, runID, chunkID string) (*types.Chunk, error) {
	return t.storage.getChunkWithQuerier(ctx, t.querier(), runID, chunkID)
}

func (t *sqliteTx) ListCrossReferences(ctx context.Context, runID string) ([]types.CrossReference, error) {
	return t.storage.listCrossReferencesWithQuerier(ctx, t.querier(), runID)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return nil, errors.New("status is not available inside a transaction")
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
