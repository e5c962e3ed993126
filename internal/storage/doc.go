// Package storage provides SQLite-based persistence for chunking runs.
//
// A run is one chunking of one repository: the options it used, a hash of
// its input, and the resulting chunks, summaries and cross references.
// Storing runs lets the CLI and the MCP server reuse a previous result when
// the input has not changed, and serve individual chunks by id.
//
// # Database Schema
//
// Tables:
//   - runs: one row per chunking (root path, corpus hash, options, totals)
//   - chunks: chunk metadata, context info and summary as JSON columns
//   - chunk_files: the files and fragments of each chunk, in order
//   - cross_references: dependencies that cross chunk boundaries
//   - schema_version: applied migrations
//
// Chunk ids are deterministic, so chunks are keyed by (run_id, chunk_id).
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage(config.DefaultDBPath())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	run := &storage.Run{RootPath: root, CorpusHash: hash, Strategy: "semantic"}
//	if err := db.SaveRun(ctx, run, result.Chunks, summaries, result.CrossReferences); err != nil {
//	    log.Fatal(err)
//	}
//
//	chunks, err := db.LoadChunks(ctx, run.ID)
//
// # Transactions
//
// SaveRun is atomic on its own. BeginTx groups several operations:
//
//	tx, err := db.BeginTx(ctx)
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := tx.DeleteRun(ctx, old.ID); err != nil {
//	    return err
//	}
//	if err := tx.SaveRun(ctx, run, chunks, summaries, refs); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// # Build Tags
//
// The default build uses modernc.org/sqlite and needs no C compiler. Building
// with the cgo_sqlite tag switches to github.com/mattn/go-sqlite3:
//
//	CGO_ENABLED=1 go build -tags cgo_sqlite ./...
package storage
