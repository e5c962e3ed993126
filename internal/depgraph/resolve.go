package depgraph

import (
	"path"
	"strings"
)

// Resolver maps extracted dependency identifiers onto paths of the input set.
// Resolution is heuristic: an identifier that matches nothing is left
// unresolved and takes no part in traversal.
type Resolver struct {
	paths  map[string]struct{}
	byStem map[string][]string // base name without extension -> paths, input order
	byDir  map[string][]string // directory -> paths, input order
	dirs   []string            // directories in order of first appearance
}

var candidateExtensions = map[family][]string{
	familyJS:     {".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs", ".vue", ".svelte", ".json"},
	familyPython: {".py"},
	familyPHP:    {".php"},
	familyJVM:    {".java", ".kt", ".scala"},
	familyRust:   {".rs"},
	familyRuby:   {".rb"},
	familyC:      {".h", ".hpp", ".hh", ".c", ".cc", ".cpp"},
	familyCSharp: {".cs"},
	familyCSS:    {".scss", ".sass", ".less", ".css"},
}

var indexFiles = map[family][]string{
	familyJS:     {"index"},
	familyPython: {"__init__"},
	familyRust:   {"mod", "lib"},
}

// NewResolver indexes paths for lookup.
func NewResolver(paths []string) *Resolver {
	r := &Resolver{
		paths:  make(map[string]struct{}, len(paths)),
		byStem: make(map[string][]string),
		byDir:  make(map[string][]string),
	}
	for _, p := range paths {
		if _, ok := r.paths[p]; ok {
			continue
		}
		r.paths[p] = struct{}{}
		base := path.Base(p)
		stem := strings.TrimSuffix(base, path.Ext(base))
		r.byStem[stem] = append(r.byStem[stem], p)
		dir := path.Dir(p)
		if _, ok := r.byDir[dir]; !ok {
			r.dirs = append(r.dirs, dir)
		}
		r.byDir[dir] = append(r.byDir[dir], p)
	}
	return r
}

// Resolve returns the in-set paths that dep, referenced from the file at
// from, points to. Self references are dropped.
func (r *Resolver) Resolve(from, dep string) []string {
	if dep == "" {
		return nil
	}
	fam := familyOf(path.Ext(from))

	var found []string
	switch {
	case fam == familyGo:
		found = r.resolveGoPackage(dep)
	case strings.HasPrefix(dep, "./") || strings.HasPrefix(dep, "../") || dep == "." || dep == "..":
		found = r.resolveFile(path.Join(path.Dir(from), dep), fam)
	case fam == familyPython:
		found = r.resolvePython(from, dep)
	case fam == familyPHP && strings.Contains(dep, "\\"):
		found = r.resolveNamespace(strings.ReplaceAll(strings.Trim(dep, "\\"), "\\", "/"), fam, false)
	case fam == familyJVM || fam == familyCSharp:
		found = r.resolveNamespace(strings.ReplaceAll(dep, ".", "/"), fam, fam == familyCSharp)
	case fam == familyRust:
		found = r.resolveRust(from, dep)
	case fam == familyC || fam == familyCSS || fam == familyPHP || fam == familyRuby:
		found = r.resolveFile(path.Join(path.Dir(from), dep), fam)
		if len(found) == 0 {
			found = r.resolveFile(path.Clean(dep), fam)
		}
		if len(found) == 0 && fam != familyRuby {
			found = r.suffixMatch(path.Clean(dep), fam)
		}
	default:
		found = r.resolveFile(path.Clean(dep), fam)
	}

	out := found[:0:0]
	for _, p := range found {
		if p != from {
			out = append(out, p)
		}
	}
	return dedupe(out)
}

// resolveFile tries base as a file, base with each candidate extension, and
// base as a directory holding an index file.
func (r *Resolver) resolveFile(base string, fam family) []string {
	if base == "" || strings.HasPrefix(base, "../") {
		return nil
	}
	if r.has(base) {
		return []string{base}
	}
	exts := candidateExtensions[fam]
	for _, ext := range exts {
		if r.has(base + ext) {
			return []string{base + ext}
		}
	}
	if fam == familyCSS {
		// Sass partials: "_name.scss"
		partial := path.Join(path.Dir(base), "_"+path.Base(base))
		for _, ext := range exts {
			if r.has(partial + ext) {
				return []string{partial + ext}
			}
		}
	}
	for _, index := range indexFiles[fam] {
		for _, ext := range exts {
			candidate := path.Join(base, index+ext)
			if r.has(candidate) {
				return []string{candidate}
			}
		}
	}
	return nil
}

// resolveGoPackage maps an import path onto the longest in-set directory that
// is a proper suffix of it and returns that directory's Go files. A bare
// "fmt" never matches a local fmt directory.
func (r *Resolver) resolveGoPackage(importPath string) []string {
	segments := strings.Split(strings.Trim(importPath, "/"), "/")
	for i := 1; i < len(segments); i++ {
		dir := strings.Join(segments[i:], "/")
		files, ok := r.byDir[dir]
		if !ok {
			continue
		}
		var gofiles []string
		for _, p := range files {
			if path.Ext(p) == ".go" {
				gofiles = append(gofiles, p)
			}
		}
		if len(gofiles) > 0 {
			return gofiles
		}
	}
	return nil
}

func (r *Resolver) resolvePython(from, dep string) []string {
	dots := len(dep) - len(strings.TrimLeft(dep, "."))
	rest := strings.ReplaceAll(dep[dots:], ".", "/")

	if dots > 0 {
		base := path.Dir(from)
		for i := 1; i < dots; i++ {
			base = path.Dir(base)
		}
		if rest != "" {
			base = path.Join(base, rest)
		}
		return r.resolveFile(base, familyPython)
	}

	if found := r.resolveFile(rest, familyPython); len(found) > 0 {
		return found
	}
	if found := r.resolveFile(path.Join(path.Dir(from), rest), familyPython); len(found) > 0 {
		return found
	}
	if found := r.suffixMatch(rest, familyPython); len(found) > 0 {
		return found
	}
	// "from pkg.module import name" where name is a symbol, not a module
	if i := strings.LastIndex(rest, "/"); i > 0 {
		return r.suffixMatch(rest[:i], familyPython)
	}
	return nil
}

func (r *Resolver) resolveRust(from, dep string) []string {
	segments := strings.Split(dep, "::")
	for len(segments) > 0 {
		head := segments[0]
		if head != "crate" && head != "self" && head != "super" {
			break
		}
		segments = segments[1:]
	}
	// Drop trailing item names until a module file matches.
	for n := len(segments); n > 0; n-- {
		ns := strings.Join(segments[:n], "/")
		if found := r.resolveFile(path.Join(path.Dir(from), ns), familyRust); len(found) > 0 {
			return found
		}
		if found := r.suffixMatch(ns, familyRust); len(found) > 0 {
			return found
		}
	}
	return nil
}

// resolveNamespace matches a slash-separated namespace against file paths,
// then against directories when dirFallback is set.
func (r *Resolver) resolveNamespace(ns string, fam family, dirFallback bool) []string {
	if found := r.suffixMatch(ns, fam); len(found) > 0 {
		return found
	}
	if !dirFallback {
		return nil
	}
	exts := candidateExtensions[fam]
	for _, d := range r.dirs {
		if d != ns && !strings.HasSuffix(d, "/"+ns) {
			continue
		}
		var out []string
		for _, p := range r.byDir[d] {
			if hasExt(p, exts) {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// suffixMatch finds files whose extension-less path equals ns or ends with
// "/"+ns. The first match in input order wins.
func (r *Resolver) suffixMatch(ns string, fam family) []string {
	ns = strings.Trim(ns, "/")
	if ns == "" {
		return nil
	}
	base := path.Base(ns)
	stem := strings.TrimSuffix(base, path.Ext(base))
	exts := candidateExtensions[fam]
	for _, key := range []string{base, stem} {
		for _, p := range r.byStem[key] {
			if !hasExt(p, exts) && path.Ext(p) != path.Ext(ns) {
				continue
			}
			withoutExt := strings.TrimSuffix(p, path.Ext(p))
			if p == ns || withoutExt == ns || strings.HasSuffix(p, "/"+ns) || strings.HasSuffix(withoutExt, "/"+ns) {
				return []string{p}
			}
		}
	}
	return nil
}

func (r *Resolver) has(p string) bool {
	_, ok := r.paths[p]
	return ok
}

func hasExt(p string, exts []string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}
