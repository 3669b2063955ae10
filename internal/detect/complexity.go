package detect

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// complexityResult is everything the single depth-tracking traversal of a
// function body yields: the three complexity numbers plus the observations
// the performance rules need, so no rule re-walks the tree.
type complexityResult struct {
	cyclomatic      int
	cognitive       int
	maxNesting      int
	maxLoopNesting  int
	concatLoopLines []int
}

// branch kinds that add one independent control-flow path each.
var cyclomaticKinds = map[string]bool{
	"if_statement":           true,
	"elif_clause":            true,
	"for_statement":          true,
	"while_statement":        true,
	"except_clause":          true,
	"conditional_expression": true,
	"boolean_operator":       true,
	"case_clause":            true,
	"if_clause":              true, // comprehension filters
}

// kinds that open a new nesting level for both cognitive complexity and the
// nesting-depth metric.
var nestingKinds = map[string]bool{
	"if_statement":    true,
	"for_statement":   true,
	"while_statement": true,
	"try_statement":   true,
	"match_statement": true,
}

var loopKinds = map[string]bool{
	"for_statement":   true,
	"while_statement": true,
}

// analyzeComplexity runs one traversal over a function body, tracking
// nesting depth as it descends. Cyclomatic starts at one; cognitive adds
// 1+depth for each nesting construct and a flat point for boolean operators
// and elif/else continuations, so deep nesting costs more than flat
// branching.
func analyzeComplexity(body *tree_sitter.Node, content []byte) complexityResult {
	res := complexityResult{cyclomatic: 1}

	var walk func(n *tree_sitter.Node, depth, loopDepth int)
	walk = func(n *tree_sitter.Node, depth, loopDepth int) {
		kind := n.Kind()

		// Nested function and class bodies are scored on their own.
		if kind == "function_definition" || kind == "class_definition" || kind == "lambda" {
			return
		}

		if cyclomaticKinds[kind] {
			res.cyclomatic++
		}

		nextDepth := depth
		nextLoopDepth := loopDepth
		switch {
		case nestingKinds[kind]:
			res.cognitive += 1 + depth
			nextDepth = depth + 1
			if nextDepth > res.maxNesting {
				res.maxNesting = nextDepth
			}
			if loopKinds[kind] {
				nextLoopDepth = loopDepth + 1
				if nextLoopDepth > res.maxLoopNesting {
					res.maxLoopNesting = nextLoopDepth
				}
			}
		case kind == "elif_clause", kind == "else_clause", kind == "except_clause", kind == "boolean_operator", kind == "conditional_expression", kind == "case_clause":
			res.cognitive++
		}

		if kind == "augmented_assignment" && loopDepth > 0 {
			if op := n.ChildByFieldName("operator"); op != nil && string(content[op.StartByte():op.EndByte()]) == "+=" {
				if right := n.ChildByFieldName("right"); right != nil && containsKind(right, "string") {
					res.concatLoopLines = append(res.concatLoopLines, int(n.StartPosition().Row)+1)
				}
			}
		}

		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i), nextDepth, nextLoopDepth)
		}
	}

	for i := uint(0); i < body.ChildCount(); i++ {
		walk(body.Child(i), 0, 0)
	}
	return res
}

// containsKind reports whether any node in the subtree has the given kind.
func containsKind(n *tree_sitter.Node, kind string) bool {
	if n.Kind() == kind {
		return true
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if containsKind(n.Child(i), kind) {
			return true
		}
	}
	return false
}
