// Package parser extracts imports and exported names from Go source using AST parsing.
//
// The parser uses Go's standard library (go/parser, go/ast, go/token) and works on
// source already held in memory, so it can run over discovered files without
// touching the filesystem again.
//
// # Basic Usage
//
//	p := parser.New()
//	result := p.ParseSource("internal/app/server.go", content)
//
//	for _, imp := range result.Imports {
//	    fmt.Println(imp.Path)
//	}
//	fmt.Println(result.Exports) // [Server NewServer Server.Start]
//
// # Exports
//
// Exported top-level functions, types, constants and variables are reported by
// name. Methods are reported as Receiver.Method when both names are exported.
// HasMain is set for package main files that declare func main.
//
// # Error Handling
//
// Syntax errors are non-fatal:
//
//	result := p.ParseSource("broken.go", content)
//	if result.HasErrors() {
//	    for _, parseErr := range result.Errors {
//	        fmt.Printf("Parse error at %d:%d: %v\n", parseErr.Line, parseErr.Column, parseErr.Message)
//	    }
//	}
//
// Imports and exports recovered from the partial AST are still returned.
package parser
