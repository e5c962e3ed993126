// Package pipeline runs a complete chunking of a repository.
//
// A run discovers files (or takes them from the request), packs them with
// the chunker, summarizes the chunks, builds the navigation index and, when
// a storage backend is configured, persists everything as one run.
//
//	p := pipeline.New(counter,
//	    pipeline.WithStorage(db),
//	    pipeline.WithLogger(log.New(os.Stderr, "", log.LstdFlags)),
//	)
//	out, err := p.Run(ctx, pipeline.Request{
//	    Root:     "./myrepo",
//	    Chunking: opts,
//	    Cache:    true,
//	})
//
// # Caching
//
// Each run carries a corpus hash over the packing options and every file's
// path and content. With Request.Cache set, a run whose hash matches the
// latest in-memory run or a stored run is returned as is, with Cached set.
//
// # Concurrency
//
// A Pipeline allows one run at a time. Run returns ErrAlreadyRunning instead
// of waiting when another run holds the lock. Lookup and Chunk may be called
// concurrently with a run.
package pipeline
