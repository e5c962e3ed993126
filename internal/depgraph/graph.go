package depgraph

import (
	"github.com/dshills/repochunk/pkg/types"
)

// Graph is the dependency graph of one file set. It keeps the raw extracted
// identifiers for every input path and the subset of them that resolved to
// other paths of the same set. Only resolved edges take part in traversal.
type Graph struct {
	order   []string
	raw     map[string][]string
	edges   map[string][]string
	exports map[string][]string
	mains   map[string]bool
}

// Build extracts dependencies from every file and resolves them against the
// set. Paths are keyed exactly as given; when a path repeats, its first record
// wins.
func Build(files []types.FileRecord) *Graph {
	g := &Graph{
		order:   make([]string, 0, len(files)),
		raw:     make(map[string][]string, len(files)),
		edges:   make(map[string][]string, len(files)),
		exports: make(map[string][]string, len(files)),
		mains:   make(map[string]bool),
	}

	unique := make([]types.FileRecord, 0, len(files))
	for _, f := range files {
		if _, ok := g.raw[f.Path]; ok {
			continue
		}
		g.order = append(g.order, f.Path)
		a := analyze(f)
		g.raw[f.Path] = a.deps
		g.exports[f.Path] = a.exports
		if a.hasMain {
			g.mains[f.Path] = true
		}
		unique = append(unique, f)
	}

	resolver := NewResolver(g.order)
	for _, f := range unique {
		var targets []string
		for _, dep := range g.raw[f.Path] {
			targets = append(targets, resolver.Resolve(f.Path, dep)...)
		}
		g.edges[f.Path] = dedupe(targets)
	}

	return g
}

// Len returns the number of distinct input paths.
func (g *Graph) Len() int {
	return len(g.order)
}

// Paths returns the input paths in input order.
func (g *Graph) Paths() []string {
	return append([]string(nil), g.order...)
}

// Has reports whether p is an input path.
func (g *Graph) Has(p string) bool {
	_, ok := g.raw[p]
	return ok
}

// Dependencies returns the raw identifiers extracted from p. They may name
// modules outside the set.
func (g *Graph) Dependencies(p string) []string {
	return g.raw[p]
}

// Raw returns a copy of the path -> identifiers mapping.
func (g *Graph) Raw() map[string][]string {
	out := make(map[string][]string, len(g.raw))
	for k, v := range g.raw {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Resolved returns the in-set paths p depends on.
func (g *Graph) Resolved(p string) []string {
	return g.edges[p]
}

// Exports returns the exported names detected in p.
func (g *Graph) Exports(p string) []string {
	return g.exports[p]
}

// IsEntryFile reports whether p looks like a program or module entry point:
// an entry-point file name, or a Go main package declaring func main.
func (g *Graph) IsEntryFile(p string) bool {
	return g.mains[p] || IsEntryPointName(p)
}

// Reachable returns start followed by every unvisited path reachable from it
// over resolved edges, in breadth-first order. Returned paths are marked in
// visited. An already visited or unknown start yields nil.
func (g *Graph) Reachable(start string, visited map[string]bool) []string {
	if visited[start] || !g.Has(start) {
		return nil
	}

	visited[start] = true
	out := []string{start}
	for i := 0; i < len(out); i++ {
		for _, next := range g.edges[out[i]] {
			if visited[next] {
				continue
			}
			visited[next] = true
			out = append(out, next)
		}
	}
	return out
}

// InDegree counts, for every path, the distinct other paths that depend on it.
func (g *Graph) InDegree() map[string]int {
	in := make(map[string]int, len(g.order))
	for _, p := range g.order {
		in[p] = 0
	}
	for _, p := range g.order {
		for _, target := range g.edges[p] {
			if target != p {
				in[target]++
			}
		}
	}
	return in
}

// EntryPoints returns the paths no other path depends on, in input order.
func (g *Graph) EntryPoints() []string {
	in := g.InDegree()
	var out []string
	for _, p := range g.order {
		if in[p] == 0 {
			out = append(out, p)
		}
	}
	return out
}

// Edges returns every resolved edge in input order.
func (g *Graph) Edges() []types.DependencyEdge {
	var out []types.DependencyEdge
	for _, p := range g.order {
		for _, target := range g.edges[p] {
			out = append(out, types.DependencyEdge{From: p, To: target})
		}
	}
	return out
}
