package detect

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/siftlab/sift/internal/parsers"
)

// credentialKeywords flag an assignment target as credential-like.
var credentialKeywords = []string{
	"password", "passwd", "secret", "token", "api_key", "apikey", "credential",
}

// queryKeywords are the command fragments the injection rule looks for
// inside concatenated string literals.
var queryKeywords = []string{
	"SELECT ", "INSERT ", "UPDATE ", "DELETE ", "DROP ", "WHERE ", "EXEC ",
}

// executionCalls are the call names whose arguments the injection rule
// inspects.
var executionCalls = map[string]bool{
	"execute":       true,
	"executemany":   true,
	"executescript": true,
	"query":         true,
	"raw":           true,
	"system":        true,
	"popen":         true,
}

// dynamicExecCalls are Python's dynamic-execution primitives.
var dynamicExecCalls = map[string]bool{
	"eval":       true,
	"exec":       true,
	"compile":    true,
	"__import__": true,
}

// securityRules walks the whole tree once, checking assignments for
// hardcoded credentials and calls for injection and dynamic execution.
func (d *Detector) securityRules(f *parsers.SourceFile) []Finding {
	var findings []Finding

	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		switch n.Kind() {
		case "assignment":
			if finding, ok := checkCredential(n, f); ok {
				findings = append(findings, finding)
			}
		case "call":
			if finding, ok := checkInjection(n, f); ok {
				findings = append(findings, finding)
			}
			if finding, ok := checkDynamicExec(n, f); ok {
				findings = append(findings, finding)
			}
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(f.Root())

	return findings
}

// checkCredential flags an assignment whose target name contains a
// credential keyword and whose value is a non-empty string literal.
func checkCredential(n *tree_sitter.Node, f *parsers.SourceFile) (Finding, bool) {
	left := n.ChildByFieldName("left")
	right := n.ChildByFieldName("right")
	if left == nil || right == nil || right.Kind() != "string" {
		return Finding{}, false
	}

	name := targetName(left, f.Content)
	lower := strings.ToLower(name)
	matched := false
	for _, kw := range credentialKeywords {
		if strings.Contains(lower, kw) {
			matched = true
			break
		}
	}
	if !matched {
		return Finding{}, false
	}

	// Empty literals are placeholders, not leaked values.
	value := parsers.NodeText(right, f.Content)
	if len(strings.Trim(value, `"'`)) == 0 {
		return Finding{}, false
	}

	return Finding{
		Category:   CategorySecurity,
		Subtype:    SubtypeHardcodedCredential,
		File:       f.Path,
		Line:       parsers.Line(n),
		Attributes: map[string]string{"name": name},
	}, true
}

// checkInjection flags an execution/query call fed by string concatenation
// where a literal operand carries a command-keyword fragment.
func checkInjection(n *tree_sitter.Node, f *parsers.SourceFile) (Finding, bool) {
	callee := calleeName(n, f.Content)
	if !executionCalls[callee] {
		return Finding{}, false
	}

	args := n.ChildByFieldName("arguments")
	if args == nil {
		return Finding{}, false
	}
	if !hasKeywordConcat(args, f.Content) {
		return Finding{}, false
	}

	return Finding{
		Category:   CategorySecurity,
		Subtype:    SubtypeSQLInjectionRisk,
		File:       f.Path,
		Line:       parsers.Line(n),
		Attributes: map[string]string{"call": callee},
	}, true
}

// checkDynamicExec flags a dynamic-execution primitive called with a
// non-literal argument.
func checkDynamicExec(n *tree_sitter.Node, f *parsers.SourceFile) (Finding, bool) {
	fnNode := n.ChildByFieldName("function")
	if fnNode == nil || fnNode.Kind() != "identifier" {
		return Finding{}, false
	}
	callee := parsers.NodeText(fnNode, f.Content)
	if !dynamicExecCalls[callee] {
		return Finding{}, false
	}

	args := n.ChildByFieldName("arguments")
	if args == nil {
		return Finding{}, false
	}
	first := firstNamedChild(args)
	if first == nil || first.Kind() == "string" {
		return Finding{}, false
	}

	return Finding{
		Category:   CategorySecurity,
		Subtype:    SubtypeDynamicCodeExecution,
		File:       f.Path,
		Line:       parsers.Line(n),
		Attributes: map[string]string{"call": callee},
	}, true
}

// hasKeywordConcat reports whether the subtree contains a "+" concatenation
// with a string-literal operand carrying a query keyword.
func hasKeywordConcat(n *tree_sitter.Node, content []byte) bool {
	if n.Kind() == "binary_operator" {
		if op := n.ChildByFieldName("operator"); op != nil && parsers.NodeText(op, content) == "+" {
			for _, field := range []string{"left", "right"} {
				operand := n.ChildByFieldName(field)
				if operand == nil {
					continue
				}
				if literalWithKeyword(operand, content) {
					return true
				}
			}
		}
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if hasKeywordConcat(n.Child(i), content) {
			return true
		}
	}
	return false
}

// literalWithKeyword reports whether a subtree contains a string literal
// carrying one of the query keywords.
func literalWithKeyword(n *tree_sitter.Node, content []byte) bool {
	if n.Kind() == "string" {
		upper := strings.ToUpper(parsers.NodeText(n, content))
		for _, kw := range queryKeywords {
			if strings.Contains(upper, kw) {
				return true
			}
		}
		return false
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if literalWithKeyword(n.Child(i), content) {
			return true
		}
	}
	return false
}

// targetName extracts the assigned name from an identifier or attribute
// target.
func targetName(n *tree_sitter.Node, content []byte) string {
	switch n.Kind() {
	case "identifier":
		return parsers.NodeText(n, content)
	case "attribute":
		if attr := n.ChildByFieldName("attribute"); attr != nil {
			return parsers.NodeText(attr, content)
		}
	}
	return parsers.NodeText(n, content)
}

// calleeName returns the called function's bare name: the identifier
// itself, or the attribute name of a method call.
func calleeName(n *tree_sitter.Node, content []byte) string {
	fnNode := n.ChildByFieldName("function")
	if fnNode == nil {
		return ""
	}
	switch fnNode.Kind() {
	case "identifier":
		return parsers.NodeText(fnNode, content)
	case "attribute":
		if attr := fnNode.ChildByFieldName("attribute"); attr != nil {
			return parsers.NodeText(attr, content)
		}
	}
	return ""
}

// firstNamedChild returns the first named child of a node, or nil.
func firstNamedChild(n *tree_sitter.Node) *tree_sitter.Node {
	for i := uint(0); i < n.ChildCount(); i++ {
		child := n.Child(i)
		if child.IsNamed() {
			return child
		}
	}
	return nil
}
