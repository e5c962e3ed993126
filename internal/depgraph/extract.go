package depgraph

import (
	"regexp"
	"strings"

	"github.com/dshills/repochunk/internal/parser"
	"github.com/dshills/repochunk/pkg/types"
)

// Extractor pulls referenced module or path strings out of a file's content.
type Extractor func(f types.FileRecord) []string

// Language families share extraction and resolution rules.
type family int

const (
	familyNone family = iota
	familyGo
	familyJS
	familyPython
	familyPHP
	familyJVM
	familyRust
	familyRuby
	familyC
	familyCSharp
	familyCSS
)

var extensionFamilies = map[string]family{
	".go":     familyGo,
	".js":     familyJS,
	".jsx":    familyJS,
	".ts":     familyJS,
	".tsx":    familyJS,
	".mjs":    familyJS,
	".cjs":    familyJS,
	".vue":    familyJS,
	".svelte": familyJS,
	".py":     familyPython,
	".php":    familyPHP,
	".java":   familyJVM,
	".kt":     familyJVM,
	".kts":    familyJVM,
	".scala":  familyJVM,
	".rs":     familyRust,
	".rb":     familyRuby,
	".c":      familyC,
	".h":      familyC,
	".cc":     familyC,
	".cpp":    familyC,
	".cxx":    familyC,
	".hpp":    familyC,
	".hh":     familyC,
	".cs":     familyCSharp,
	".css":    familyCSS,
	".scss":   familyCSS,
	".sass":   familyCSS,
	".less":   familyCSS,
}

var familyExtractors = map[family]Extractor{
	familyGo:     extractGo,
	familyJS:     extractJS,
	familyPython: extractPython,
	familyPHP:    extractPHP,
	familyJVM:    extractJVM,
	familyRust:   extractRust,
	familyRuby:   extractRuby,
	familyC:      extractC,
	familyCSharp: extractCSharp,
	familyCSS:    extractCSS,
}

func familyOf(ext string) family {
	return extensionFamilies[strings.ToLower(ext)]
}

// ExtractDependencies returns the distinct dependency identifiers referenced
// by f, in order of first appearance. Unknown extensions yield nil.
func ExtractDependencies(f types.FileRecord) []string {
	extract, ok := familyExtractors[familyOf(f.Extension)]
	if !ok {
		return nil
	}
	return dedupe(extract(f))
}

var goParser = parser.New()

var (
	goSingleImport = regexp.MustCompile(`(?m)^\s*import\s+(?:[\w.]+\s+)?"([^"]+)"`)
	goImportBlock  = regexp.MustCompile(`(?s)import\s*\((.*?)\)`)
	goBlockEntry   = regexp.MustCompile(`(?m)^\s*(?:[\w.]+\s+)?"([^"]+)"`)
)

func extractGo(f types.FileRecord) []string {
	return goDependencies(f, goParser.ParseSource(f.Path, f.Content))
}

func goDependencies(f types.FileRecord, result *parser.Result) []string {
	if !result.HasErrors() || len(result.Imports) > 0 {
		return result.ImportPaths()
	}

	// The file does not parse far enough to reach its imports; scan the text.
	var deps []string
	deps = append(deps, submatches(goSingleImport, f.Content, 1)...)
	for _, block := range goImportBlock.FindAllStringSubmatch(f.Content, -1) {
		deps = append(deps, submatches(goBlockEntry, block[1], 1)...)
	}
	return deps
}

var (
	jsImport        = regexp.MustCompile(`import\s+(?:[\w*${}\s,]+?\s+from\s+)?['"]([^'"\n]+)['"]`)
	jsExportFrom    = regexp.MustCompile(`export\s+(?:[\w*${}\s,]+?\s+)?from\s+['"]([^'"\n]+)['"]`)
	jsRequire       = regexp.MustCompile(`\brequire\(\s*['"]([^'"\n]+)['"]\s*\)`)
	jsDynamicImport = regexp.MustCompile(`\bimport\(\s*['"]([^'"\n]+)['"]\s*\)`)
)

func extractJS(f types.FileRecord) []string {
	return matchAll(f.Content, jsImport, jsExportFrom, jsRequire, jsDynamicImport)
}

var (
	pyImport     = regexp.MustCompile(`(?m)^[ \t]*import[ \t]+([^\n#;]+)`)
	pyFromImport = regexp.MustCompile(`(?m)^[ \t]*from[ \t]+(\.*[\w.]*)[ \t]+import[ \t]+\(?[ \t]*([\w \t,*]+)`)
)

func extractPython(f types.FileRecord) []string {
	var deps []string
	for _, m := range pyImport.FindAllStringSubmatch(f.Content, -1) {
		for _, part := range strings.Split(m[1], ",") {
			if fields := strings.Fields(part); len(fields) > 0 {
				deps = append(deps, fields[0])
			}
		}
	}
	for _, m := range pyFromImport.FindAllStringSubmatch(f.Content, -1) {
		module := m[1]
		if strings.Trim(module, ".") != "" {
			deps = append(deps, module)
			continue
		}
		// "from . import a, b" references sibling modules a and b.
		for _, part := range strings.Split(m[2], ",") {
			fields := strings.Fields(part)
			if len(fields) == 0 || fields[0] == "*" {
				continue
			}
			deps = append(deps, module+fields[0])
		}
	}
	return deps
}

var (
	phpUse     = regexp.MustCompile(`(?m)^\s*use\s+(?:function\s+|const\s+)?\\?([\w\\]+)`)
	phpRequire = regexp.MustCompile(`\b(?:require|include)(?:_once)?\s*\(?\s*['"]([^'"\n]+)['"]`)
)

func extractPHP(f types.FileRecord) []string {
	return matchAll(f.Content, phpUse, phpRequire)
}

var jvmImport = regexp.MustCompile(`(?m)^\s*import\s+(?:static\s+)?([\w.]+)`)

func extractJVM(f types.FileRecord) []string {
	var deps []string
	for _, dep := range submatches(jvmImport, f.Content, 1) {
		dep = strings.TrimSuffix(strings.TrimSuffix(dep, "._"), ".")
		if dep != "" {
			deps = append(deps, dep)
		}
	}
	return deps
}

var (
	rustUse = regexp.MustCompile(`(?m)^\s*(?:pub(?:\([\w:\s]+\))?\s+)?use\s+([\w:]+)`)
	rustMod = regexp.MustCompile(`(?m)^\s*(?:pub(?:\([\w:\s]+\))?\s+)?mod\s+(\w+)\s*;`)
)

func extractRust(f types.FileRecord) []string {
	var deps []string
	for _, dep := range submatches(rustUse, f.Content, 1) {
		if dep = strings.TrimSuffix(dep, "::"); dep != "" {
			deps = append(deps, dep)
		}
	}
	for _, mod := range submatches(rustMod, f.Content, 1) {
		deps = append(deps, "./"+mod)
	}
	return deps
}

var (
	rubyRequire         = regexp.MustCompile(`\brequire\s*\(?\s*['"]([^'"\n]+)['"]`)
	rubyRequireRelative = regexp.MustCompile(`\brequire_relative\s*\(?\s*['"]([^'"\n]+)['"]`)
)

func extractRuby(f types.FileRecord) []string {
	deps := submatches(rubyRequire, f.Content, 1)
	for _, dep := range submatches(rubyRequireRelative, f.Content, 1) {
		if !strings.HasPrefix(dep, ".") {
			dep = "./" + dep
		}
		deps = append(deps, dep)
	}
	return deps
}

var cInclude = regexp.MustCompile(`(?m)^\s*#\s*include\s*"([^"\n]+)"`)

func extractC(f types.FileRecord) []string {
	return submatches(cInclude, f.Content, 1)
}

var csUsing = regexp.MustCompile(`(?m)^\s*(?:global\s+)?using\s+(?:static\s+)?([\w.]+)\s*;`)

func extractCSharp(f types.FileRecord) []string {
	return submatches(csUsing, f.Content, 1)
}

var cssImport = regexp.MustCompile(`@import\s+(?:url\(\s*)?['"]?([^'")\s;]+)['"]?`)

func extractCSS(f types.FileRecord) []string {
	return submatches(cssImport, f.Content, 1)
}

func matchAll(content string, patterns ...*regexp.Regexp) []string {
	var out []string
	for _, re := range patterns {
		out = append(out, submatches(re, content, 1)...)
	}
	return out
}

func submatches(re *regexp.Regexp, content string, group int) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		if s := strings.TrimSpace(m[group]); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
