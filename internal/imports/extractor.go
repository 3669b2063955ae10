// Package imports extracts normalized import records from syntax trees.
package imports

import (
	"strings"
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/siftlab/sift/internal/errs"
	"github.com/siftlab/sift/internal/parsers"
)

// Kind distinguishes the two Python import forms.
type Kind string

const (
	// KindDirect is a plain "import x" statement.
	KindDirect Kind = "import"

	// KindFromImport is a "from x import y" statement.
	KindFromImport Kind = "from_import"
)

// Record is one normalized import. A statement importing several names
// yields one record per name.
type Record struct {
	// SourceFile is the path of the importing file.
	SourceFile string

	// Kind is the import form.
	Kind Kind

	// Module is the imported module path, without any leading relative dots.
	// Empty for "from . import x" style imports.
	Module string

	// Alias is the "as" name, if any.
	Alias string

	// RelativeDepth is the number of leading dots on a relative import.
	// A depth greater than zero always marks a local import, regardless of
	// the module name's shape.
	RelativeDepth int

	// Symbols is the list of names imported from the module. Empty for
	// direct imports.
	Symbols []string

	// Line is the 1-based line of the import statement.
	Line int
}

// Extract walks the file's tree and returns one record per imported name.
func Extract(f *parsers.SourceFile) ([]Record, error) {
	var records []Record

	var walk func(n *tree_sitter.Node) error
	walk = func(n *tree_sitter.Node) error {
		switch n.Kind() {
		case "import_statement":
			recs, err := extractDirect(n, f)
			if err != nil {
				return err
			}
			records = append(records, recs...)
			return nil
		case "import_from_statement":
			recs, err := extractFrom(n, f)
			if err != nil {
				return err
			}
			records = append(records, recs...)
			return nil
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			if err := walk(n.Child(i)); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(f.Root()); err != nil {
		return nil, err
	}
	return records, nil
}

// extractDirect handles "import a.b, c as d".
func extractDirect(n *tree_sitter.Node, f *parsers.SourceFile) ([]Record, error) {
	var records []Record
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		switch child.Kind() {
		case "dotted_name":
			module := parsers.NodeText(child, f.Content)
			if err := ValidateTarget(module); err != nil {
				return nil, err
			}
			records = append(records, Record{
				SourceFile: f.Path,
				Kind:       KindDirect,
				Module:     module,
				Line:       parsers.Line(n),
			})
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode == nil {
				continue
			}
			module := parsers.NodeText(nameNode, f.Content)
			if err := ValidateTarget(module); err != nil {
				return nil, err
			}
			rec := Record{
				SourceFile: f.Path,
				Kind:       KindDirect,
				Module:     module,
				Line:       parsers.Line(n),
			}
			if aliasNode != nil {
				rec.Alias = parsers.NodeText(aliasNode, f.Content)
			}
			records = append(records, rec)
		}
	}
	return records, nil
}

// extractFrom handles "from .a import b, c as d" and "from x import *".
func extractFrom(n *tree_sitter.Node, f *parsers.SourceFile) ([]Record, error) {
	module := ""
	depth := 0

	if moduleNode := n.ChildByFieldName("module_name"); moduleNode != nil {
		switch moduleNode.Kind() {
		case "dotted_name":
			module = parsers.NodeText(moduleNode, f.Content)
		case "relative_import":
			for i := uint(0); i < moduleNode.ChildCount(); i++ {
				child := moduleNode.Child(i)
				switch child.Kind() {
				case "import_prefix":
					depth = len(parsers.NodeText(child, f.Content))
				case "dotted_name":
					module = parsers.NodeText(child, f.Content)
				}
			}
		}
	}
	if module != "" {
		if err := ValidateTarget(module); err != nil {
			return nil, err
		}
	}

	base := Record{
		SourceFile:    f.Path,
		Kind:          KindFromImport,
		Module:        module,
		RelativeDepth: depth,
		Line:          parsers.Line(n),
	}

	var records []Record
	sawModuleName := false
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		switch child.Kind() {
		case "dotted_name", "relative_import":
			// The first dotted_name is the module itself.
			if !sawModuleName {
				sawModuleName = true
				continue
			}
			rec := base
			rec.Symbols = []string{parsers.NodeText(child, f.Content)}
			records = append(records, rec)
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			if nameNode == nil {
				continue
			}
			rec := base
			rec.Symbols = []string{parsers.NodeText(nameNode, f.Content)}
			if aliasNode := child.ChildByFieldName("alias"); aliasNode != nil {
				rec.Alias = parsers.NodeText(aliasNode, f.Content)
			}
			records = append(records, rec)
		case "wildcard_import":
			rec := base
			rec.Symbols = []string{"*"}
			records = append(records, rec)
		}
	}

	// "from . import x" has no module-name field but still yields records;
	// "from x import" with no names parses as an error and never gets here.
	return records, nil
}

// ValidateTarget checks that a module path is a dot-separated sequence of
// identifiers. A malformed target fails with invalid_import_syntax.
func ValidateTarget(module string) error {
	if module == "" {
		return errs.Errorf(errs.KindInvalidImportSyntax, "imports.ValidateTarget", "empty import target")
	}
	for _, part := range strings.Split(module, ".") {
		if !isIdentifier(part) {
			return errs.Errorf(errs.KindInvalidImportSyntax, "imports.ValidateTarget", "invalid import target %q", module)
		}
	}
	return nil
}

// isIdentifier reports whether s is a valid Python identifier.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
