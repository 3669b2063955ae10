package parsers

import (
	"fmt"
	"sync"
	"unicode/utf8"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

// PythonParser parses Python source with the tree-sitter grammar.
//
// tree-sitter parser handles are not safe for concurrent use, so a pool
// hands each Parse call its own handle.
type PythonParser struct {
	language *tree_sitter.Language
	pool     sync.Pool
}

// NewPythonParser creates a new Python parser.
func NewPythonParser() *PythonParser {
	lang := tree_sitter.NewLanguage(tree_sitter_python.Language())
	p := &PythonParser{language: lang}
	p.pool.New = func() any {
		parser := tree_sitter.NewParser()
		if err := parser.SetLanguage(lang); err != nil {
			return nil
		}
		return parser
	}
	return p
}

// Language returns the language this parser handles.
func (p *PythonParser) Language() string {
	return "python"
}

// Parse parses Python source content. Invalid UTF-8 and grammar-level
// syntax errors return ErrSyntax so the caller can skip the file.
func (p *PythonParser) Parse(path string, content []byte) (*SourceFile, error) {
	if !utf8.Valid(content) {
		return nil, fmt.Errorf("%s: invalid UTF-8: %w", path, ErrSyntax)
	}

	handle, _ := p.pool.Get().(*tree_sitter.Parser)
	if handle == nil {
		return nil, fmt.Errorf("%s: initializing python grammar failed", path)
	}
	defer p.pool.Put(handle)

	tree := handle.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("%s: parser returned no tree", path)
	}
	if tree.RootNode().HasError() {
		tree.Close()
		return nil, fmt.Errorf("%s: %w", path, ErrSyntax)
	}

	return &SourceFile{Path: path, Content: content, Tree: tree}, nil
}
