package depgraph

import (
	"path"
	"regexp"
	"strings"

	"github.com/dshills/repochunk/pkg/types"
)

var entryPointNames = map[string]bool{
	"index":     true,
	"main":      true,
	"app":       true,
	"bootstrap": true,
	"__init__":  true,
}

var keyNameParts = []string{"config", "service", "controller", "model"}

// IsEntryPointName reports whether the file name (without extension) is one
// of index, main, app, bootstrap or __init__.
func IsEntryPointName(p string) bool {
	base := path.Base(p)
	stem := strings.ToLower(strings.TrimSuffix(base, path.Ext(base)))
	return entryPointNames[stem]
}

// IsKeyName reports whether the file name contains config, service,
// controller or model.
func IsKeyName(p string) bool {
	base := strings.ToLower(path.Base(p))
	for _, part := range keyNameParts {
		if strings.Contains(base, part) {
			return true
		}
	}
	return false
}

type analysis struct {
	deps    []string
	exports []string
	hasMain bool
}

// analyze extracts dependencies and exports in one pass; Go files are parsed
// once for both.
func analyze(f types.FileRecord) analysis {
	if familyOf(f.Extension) == familyGo {
		result := goParser.ParseSource(f.Path, f.Content)
		return analysis{
			deps:    dedupe(goDependencies(f, result)),
			exports: result.Exports,
			hasMain: result.HasMain,
		}
	}
	return analysis{
		deps:    ExtractDependencies(f),
		exports: ExtractExports(f),
	}
}

var (
	jsExportDecl   = regexp.MustCompile(`(?m)^\s*export\s+(?:default\s+)?(?:declare\s+)?(?:abstract\s+)?(?:async\s+)?(?:function\*?|class|const|let|var|interface|type|enum)\s+([\w$]+)`)
	jsExportList   = regexp.MustCompile(`(?m)^\s*export\s*\{([^}]*)\}`)
	jsExportAnon   = regexp.MustCompile(`(?m)^\s*export\s+default\s+(?:\(|\{|\[|async\s*\(|function\s*\(|class\s*\{|[\w$.]+\s*;?\s*$)`)
	jsModuleExport = regexp.MustCompile(`(?m)^\s*(?:module\.)?exports\.([\w$]+)\s*=`)

	pyTopLevel = regexp.MustCompile(`(?m)^(?:async\s+)?(?:def|class)\s+([A-Za-z]\w*)`)

	phpDecl = regexp.MustCompile(`(?m)^\s*(?:(?:abstract|final|readonly)\s+)*(?:class|interface|trait|enum|function)\s+(\w+)`)

	javaPublic = regexp.MustCompile(`(?m)^\s*public\s+(?:(?:static|final|abstract|sealed|non-sealed)\s+)*(?:class|interface|enum|record|@interface)\s+(\w+)`)
	jvmDecl    = regexp.MustCompile(`(?m)^\s*(?:(?:public|open|data|sealed|abstract|final|enum|annotation|inline|value|case|implicit)\s+)*(?:class|interface|object|trait|fun)\s+(\w+)`)

	rustPub = regexp.MustCompile(`(?m)^\s*pub(?:\([^)]*\))?\s+(?:(?:async|unsafe|const|extern)\s+)*(?:fn|struct|enum|trait|type|const|static|mod|union)\s+(\w+)`)

	rubyDecl = regexp.MustCompile(`(?m)^\s*(?:class|module)\s+([A-Z]\w*(?:::\w+)*)|^\s*def\s+(?:self\.)?([a-z_]\w*[?!]?)`)

	cDecl = regexp.MustCompile(`(?m)^\s*(?:class|struct|enum|union)\s+(\w+)\s*[{:]|^\s*#\s*define\s+([A-Z_][A-Z0-9_]*)`)

	csPublic = regexp.MustCompile(`(?m)^\s*public\s+(?:(?:static|sealed|abstract|partial|readonly|ref)\s+)*(?:class|interface|struct|enum|record)\s+(\w+)`)
)

// ExtractExports returns the names f makes available to other files, as far
// as a per-language heuristic can tell. Go files are parsed; other languages
// are scanned with regular expressions.
func ExtractExports(f types.FileRecord) []string {
	var names []string
	switch familyOf(f.Extension) {
	case familyGo:
		names = goParser.ParseSource(f.Path, f.Content).Exports
	case familyJS:
		names = submatches(jsExportDecl, f.Content, 1)
		for _, m := range jsExportList.FindAllStringSubmatch(f.Content, -1) {
			for _, part := range strings.Split(m[1], ",") {
				fields := strings.Fields(part)
				if len(fields) == 0 {
					continue
				}
				names = append(names, fields[len(fields)-1])
			}
		}
		if jsExportAnon.MatchString(f.Content) {
			names = append(names, "default")
		}
		names = append(names, submatches(jsModuleExport, f.Content, 1)...)
	case familyPython:
		names = submatches(pyTopLevel, f.Content, 1)
	case familyPHP:
		names = submatches(phpDecl, f.Content, 1)
	case familyJVM:
		if strings.EqualFold(f.Extension, ".java") {
			names = submatches(javaPublic, f.Content, 1)
		} else {
			names = submatches(jvmDecl, f.Content, 1)
		}
	case familyRust:
		names = submatches(rustPub, f.Content, 1)
	case familyRuby:
		names = alternation(rubyDecl, f.Content)
	case familyC:
		names = alternation(cDecl, f.Content)
	case familyCSharp:
		names = submatches(csPublic, f.Content, 1)
	}
	return dedupe(names)
}

// alternation collects the first non-empty group of every match.
func alternation(re *regexp.Regexp, content string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		for _, g := range m[1:] {
			if g != "" {
				out = append(out, g)
				break
			}
		}
	}
	return out
}
