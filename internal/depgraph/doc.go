// Package depgraph derives a file dependency graph from source text.
//
// Each file is scanned by an extractor chosen by its extension. Go files are
// parsed with go/parser; JavaScript/TypeScript, Python, PHP, Java/Kotlin/Scala,
// Rust, Ruby, C/C++, C# and CSS/SCSS/LESS use regular expressions over import,
// require, use and include statements. Unknown extensions have no
// dependencies.
//
//	g := depgraph.Build(files)
//	g.Dependencies("web/app.ts") // ["./api", "react"]
//	g.Resolved("web/app.ts")     // ["web/api/index.ts"]
//
// Extracted identifiers are resolved heuristically against the input paths:
// relative paths with extension and index-file candidates, dotted module
// names, namespaces, and Go import paths matched to directories. Identifiers
// that resolve to nothing (external libraries, missed matches) are kept in
// Dependencies but take no part in traversal.
//
// Traversal helpers serve the chunking strategies:
//
//	visited := map[string]bool{}
//	group := g.Reachable("cmd/main.go", visited) // BFS over resolved edges
//	roots := g.EntryPoints()                     // in-degree zero, input order
package depgraph
