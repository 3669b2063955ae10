// Package parsers builds syntax trees for source files.
//
// The engine is specified against Python's grammar; other languages plug in
// through the Parser interface and the extension registry.
package parsers

import (
	"errors"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrSyntax is returned when a file cannot be parsed into a usable tree:
// either the content is not valid UTF-8 or the grammar reports syntax
// errors. Callers skip such files; the error is never fatal to a scan.
var ErrSyntax = errors.New("syntax error")

// SourceFile is one parsed source file. It owns its tree; Close must be
// called once analysis for the file is finished.
type SourceFile struct {
	// Path is the path used as the file's unique key.
	Path string

	// Content is the raw UTF-8 content.
	Content []byte

	// Tree is the parsed syntax tree.
	Tree *tree_sitter.Tree
}

// Root returns the tree's root node.
func (f *SourceFile) Root() *tree_sitter.Node {
	return f.Tree.RootNode()
}

// Close releases the underlying tree.
func (f *SourceFile) Close() {
	if f.Tree != nil {
		f.Tree.Close()
		f.Tree = nil
	}
}

// Parser parses source content for one language.
type Parser interface {
	// Parse parses content into a SourceFile. Syntax and encoding problems
	// return ErrSyntax; any other error indicates an environment fault.
	Parse(path string, content []byte) (*SourceFile, error)

	// Language returns the language this parser handles.
	Language() string
}

// Registry maps file extensions to parsers.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry creates a registry with the default Python parser registered.
func NewRegistry() *Registry {
	r := &Registry{byExt: make(map[string]Parser)}
	r.Register(NewPythonParser(), ".py")
	return r
}

// Register associates a parser with one or more extensions.
func (r *Registry) Register(p Parser, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// ForPath returns the parser for a file path, or nil if no parser handles
// its extension.
func (r *Registry) ForPath(path string) Parser {
	idx := strings.LastIndex(path, ".")
	if idx < 0 {
		return nil
	}
	return r.byExt[strings.ToLower(path[idx:])]
}

// Extensions returns the registered extensions.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

// NodeText returns the source text covered by a node.
func NodeText(n *tree_sitter.Node, content []byte) string {
	return string(content[n.StartByte():n.EndByte()])
}

// Line returns the 1-based start line of a node.
func Line(n *tree_sitter.Node) int {
	return int(n.StartPosition().Row) + 1
}
