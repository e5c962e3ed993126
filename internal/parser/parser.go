package parser

import (
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"
)

// Result is what the chunker needs to know about one Go source file.
type Result struct {
	PackageName string
	Imports     []Import
	Exports     []string // Exported top-level names in declaration order
	HasMain     bool     // package main with a func main
	Errors      []ParseError
}

// Import represents an import statement in a Go file
type Import struct {
	Path  string // Import path (e.g., "github.com/pkg/errors")
	Alias string // Import alias if present (e.g., ".")
}

// ParseError represents an error that occurred during parsing
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	return pe.Message
}

// HasErrors returns true if any parsing errors occurred
func (r *Result) HasErrors() bool {
	return len(r.Errors) > 0
}

// AddError adds a parsing error to the result
func (r *Result) AddError(file string, line, col int, msg string) {
	r.Errors = append(r.Errors, ParseError{
		File:    file,
		Line:    line,
		Column:  col,
		Message: msg,
	})
}

// ImportPaths returns the import paths in source order.
func (r *Result) ImportPaths() []string {
	paths := make([]string, 0, len(r.Imports))
	for _, imp := range r.Imports {
		paths = append(paths, imp.Path)
	}
	return paths
}

// Parser handles AST-based parsing of Go source held in memory
type Parser struct{}

// New creates a new Parser instance
func New() *Parser {
	return &Parser{}
}

// ParseSource parses Go source and extracts imports and exported names.
// Syntax errors are recorded on the result; whatever partial AST the parser
// recovered is still used.
func (p *Parser) ParseSource(filePath, content string) *Result {
	result := &Result{}

	// Each call gets its own FileSet so a Parser can be shared by goroutines.
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filePath, content, parser.SkipObjectResolution)
	if err != nil {
		line, col := 0, 0
		if list, ok := err.(scanner.ErrorList); ok && len(list) > 0 {
			line, col = list[0].Pos.Line, list[0].Pos.Column
		}
		result.AddError(filePath, line, col, "syntax error: "+err.Error())
	}

	if file == nil {
		return result
	}

	if file.Name != nil {
		result.PackageName = file.Name.Name
	}
	result.Imports = extractImports(file)

	ex := &exportExtractor{seen: make(map[string]struct{})}
	for _, decl := range file.Decls {
		ex.visit(decl)
	}
	result.Exports = ex.names
	result.HasMain = result.PackageName == "main" && ex.hasMain

	return result
}

// extractImports extracts import statements from the AST
func extractImports(file *ast.File) []Import {
	imports := make([]Import, 0, len(file.Imports))

	for _, imp := range file.Imports {
		if imp.Path == nil {
			continue
		}
		importSpec := Import{
			Path: strings.Trim(imp.Path.Value, "\"`"),
		}

		if imp.Name != nil {
			importSpec.Alias = imp.Name.Name
		}

		imports = append(imports, importSpec)
	}

	return imports
}

// exportExtractor collects exported top-level declarations
type exportExtractor struct {
	names   []string
	seen    map[string]struct{}
	hasMain bool
}

func (e *exportExtractor) visit(decl ast.Decl) {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		e.extractFunction(d)
	case *ast.GenDecl:
		e.extractGenDecl(d)
	}
}

// extractFunction records exported functions. Methods are reported as
// Receiver.Name when both are exported.
func (e *exportExtractor) extractFunction(funcDecl *ast.FuncDecl) {
	name := funcDecl.Name.Name
	if funcDecl.Recv == nil || len(funcDecl.Recv.List) == 0 {
		if name == "main" {
			e.hasMain = true
		}
		e.add(name)
		return
	}
	recv := receiverType(funcDecl.Recv.List[0].Type)
	if token.IsExported(recv) && token.IsExported(name) {
		e.add(recv + "." + name)
	}
}

// extractGenDecl extracts type, const, and var declarations
func (e *exportExtractor) extractGenDecl(genDecl *ast.GenDecl) {
	for _, spec := range genDecl.Specs {
		switch s := spec.(type) {
		case *ast.TypeSpec:
			e.add(s.Name.Name)
		case *ast.ValueSpec:
			for _, name := range s.Names {
				e.add(name.Name)
			}
		}
	}
}

func (e *exportExtractor) add(name string) {
	if !token.IsExported(name) {
		return
	}
	if _, ok := e.seen[name]; ok {
		return
	}
	e.seen[name] = struct{}{}
	e.names = append(e.names, name)
}

// receiverType extracts the receiver type name from a method
func receiverType(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return receiverType(t.X)
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return receiverType(t.X)
	case *ast.IndexListExpr:
		return receiverType(t.X)
	}
	return ""
}
