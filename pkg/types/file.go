package types

import (
	"path"
	"strings"
)

// FileRecord is a single normalized source file handed to the chunking core.
// It is immutable once read.
type FileRecord struct {
	Path      string `json:"path"` // Relative to repository root, slash-separated
	Content   string `json:"content"`
	Extension string `json:"extension"` // Lower-case, with leading dot (".go")
	Size      int    `json:"size"`      // Bytes
	Lines     int    `json:"lines"`
}

// NewFileRecord builds a FileRecord from a path and its content, deriving
// extension, size and line count.
func NewFileRecord(filePath, content string) FileRecord {
	p := path.Clean(strings.ReplaceAll(filePath, "\\", "/"))
	return FileRecord{
		Path:      p,
		Content:   content,
		Extension: strings.ToLower(path.Ext(p)),
		Size:      len(content),
		Lines:     CountLines(content),
	}
}

// Dir returns the slash-separated directory of the file ("." for root files).
func (f FileRecord) Dir() string {
	return path.Dir(f.Path)
}

// Validate checks that the record can be chunked
func (f FileRecord) Validate() error {
	if f.Path == "" {
		return ErrEmptyPath
	}
	return nil
}

// CountLines returns the number of lines in content. A trailing newline does
// not start a new line; empty content has zero lines.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	n := strings.Count(content, "\n")
	if !strings.HasSuffix(content, "\n") {
		n++
	}
	return n
}

var languages = map[string]string{
	".go":     "go",
	".js":     "javascript",
	".jsx":    "javascript",
	".mjs":    "javascript",
	".cjs":    "javascript",
	".ts":     "typescript",
	".tsx":    "typescript",
	".vue":    "vue",
	".svelte": "svelte",
	".py":     "python",
	".php":    "php",
	".java":   "java",
	".kt":     "kotlin",
	".kts":    "kotlin",
	".scala":  "scala",
	".rs":     "rust",
	".rb":     "ruby",
	".c":      "c",
	".h":      "c",
	".cc":     "cpp",
	".cpp":    "cpp",
	".cxx":    "cpp",
	".hpp":    "cpp",
	".hh":     "cpp",
	".cs":     "csharp",
	".css":    "css",
	".scss":   "scss",
	".sass":   "sass",
	".less":   "less",
	".md":     "markdown",
	".json":   "json",
	".yaml":   "yaml",
	".yml":    "yaml",
	".sh":     "shell",
	".sql":    "sql",
	".html":   "html",
}

// LanguageOf names the language of a file extension. Unknown extensions are
// returned without their dot; files without an extension are "text".
func LanguageOf(ext string) string {
	ext = strings.ToLower(ext)
	if lang, ok := languages[ext]; ok {
		return lang
	}
	if ext == "" || ext == "." {
		return "text"
	}
	return strings.TrimPrefix(ext, ".")
}
