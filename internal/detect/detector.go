package detect

import (
	"strconv"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/siftlab/sift/internal/parsers"
)

// Rule thresholds.
const (
	// LargeClassMethods is the method count above which a class is flagged.
	LargeClassMethods = 10

	// LongMethodStatements is the statement count above which a function
	// body is flagged.
	LongMethodStatements = 20

	// LongParameterList is the positional-parameter count above which a
	// signature is flagged.
	LongParameterList = 5

	// HighCyclomatic is the cyclomatic complexity above which a function
	// is flagged.
	HighCyclomatic = 10

	// DeepLoopNesting is the loop-nesting depth at which the performance
	// rule fires.
	DeepLoopNesting = 3
)

// Detector runs all rules over parsed files. Rules are independent,
// order-insensitive, and never mutate the tree, so one Detector may be
// shared across goroutines.
type Detector struct{}

// NewDetector creates a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect analyzes one file and returns its findings plus complexity
// metrics for every function it defines.
func (d *Detector) Detect(f *parsers.SourceFile) ([]Finding, *FileMetrics) {
	var findings []Finding
	metrics := &FileMetrics{File: f.Path}

	var walk func(n *tree_sitter.Node, className string)
	walk = func(n *tree_sitter.Node, className string) {
		switch n.Kind() {
		case "class_definition":
			findings = append(findings, d.classRules(n, f)...)
			name := fieldText(n, "name", f.Content)
			if body := n.ChildByFieldName("body"); body != nil {
				for i := uint(0); i < body.ChildCount(); i++ {
					walk(body.Child(i), name)
				}
			}
			return
		case "function_definition":
			fn, fnFindings := d.functionRules(n, f, className)
			findings = append(findings, fnFindings...)
			metrics.Functions = append(metrics.Functions, fn)
			if body := n.ChildByFieldName("body"); body != nil {
				for i := uint(0); i < body.ChildCount(); i++ {
					walk(body.Child(i), "")
				}
			}
			return
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i), className)
		}
	}
	walk(f.Root(), "")

	findings = append(findings, d.securityRules(f)...)
	return findings, metrics
}

// classRules runs every class-level rule on one class_definition node.
func (d *Detector) classRules(n *tree_sitter.Node, f *parsers.SourceFile) []Finding {
	var findings []Finding
	className := fieldText(n, "name", f.Content)
	body := n.ChildByFieldName("body")
	if body == nil {
		return nil
	}

	methods := classMethods(body)

	if len(methods) > LargeClassMethods {
		findings = append(findings, Finding{
			Category: CategoryCodeSmell,
			Subtype:  SubtypeLargeClass,
			File:     f.Path,
			Line:     parsers.Line(n),
			Attributes: map[string]string{
				"class":        className,
				"method_count": strconv.Itoa(len(methods)),
			},
		})
	}

	if attr, ok := d.matchSingleton(body, methods, f.Content); ok {
		findings = append(findings, Finding{
			Category: CategoryDesignPattern,
			Subtype:  SubtypeSingleton,
			File:     f.Path,
			Line:     parsers.Line(n),
			Attributes: map[string]string{
				"class":     className,
				"attribute": attr,
			},
		})
	}

	if method, ok := d.matchFactory(methods, f.Content); ok {
		findings = append(findings, Finding{
			Category: CategoryDesignPattern,
			Subtype:  SubtypeFactory,
			File:     f.Path,
			Line:     parsers.Line(n),
			Attributes: map[string]string{
				"class":  className,
				"method": method,
			},
		})
	}

	if d.matchObserver(methods, f.Content) {
		findings = append(findings, Finding{
			Category:   CategoryDesignPattern,
			Subtype:    SubtypeObserver,
			File:       f.Path,
			Line:       parsers.Line(n),
			Attributes: map[string]string{"class": className},
		})
	}

	if !hasDocstring(body) {
		findings = append(findings, Finding{
			Category:   CategoryBestPractice,
			Subtype:    SubtypeMissingDocstring,
			File:       f.Path,
			Line:       parsers.Line(n),
			Attributes: map[string]string{"kind": "class", "name": className},
		})
	}

	return findings
}

// functionRules runs every function-level rule plus the single complexity
// traversal on one function_definition node.
func (d *Detector) functionRules(n *tree_sitter.Node, f *parsers.SourceFile, className string) (FunctionMetrics, []Finding) {
	var findings []Finding
	name := fieldText(n, "name", f.Content)
	displayName := name
	if className != "" {
		displayName = className + "." + name
	}

	body := n.ChildByFieldName("body")
	fn := FunctionMetrics{Name: displayName, Line: parsers.Line(n)}
	if body == nil {
		return fn, nil
	}

	if count := statementCount(body); count > LongMethodStatements {
		findings = append(findings, Finding{
			Category: CategoryCodeSmell,
			Subtype:  SubtypeLongMethod,
			File:     f.Path,
			Line:     parsers.Line(n),
			Attributes: map[string]string{
				"function":        displayName,
				"statement_count": strconv.Itoa(count),
			},
		})
	}

	params := positionalParams(n, f.Content)
	if len(params) > LongParameterList {
		findings = append(findings, Finding{
			Category: CategoryCodeSmell,
			Subtype:  SubtypeLongParameterList,
			File:     f.Path,
			Line:     parsers.Line(n),
			Attributes: map[string]string{
				"function":        displayName,
				"parameter_count": strconv.Itoa(len(params)),
			},
		})
	}

	findings = append(findings, d.unusedParams(body, params, f, displayName)...)

	if !hasDocstring(body) {
		findings = append(findings, Finding{
			Category:   CategoryBestPractice,
			Subtype:    SubtypeMissingDocstring,
			File:       f.Path,
			Line:       parsers.Line(n),
			Attributes: map[string]string{"kind": "function", "name": displayName},
		})
	}

	res := analyzeComplexity(body, f.Content)
	fn.Cyclomatic = res.cyclomatic
	fn.Cognitive = res.cognitive
	fn.MaxNestingDepth = res.maxNesting

	if res.cyclomatic > HighCyclomatic {
		findings = append(findings, Finding{
			Category: CategoryCodeSmell,
			Subtype:  SubtypeHighComplexity,
			File:     f.Path,
			Line:     parsers.Line(n),
			Attributes: map[string]string{
				"function":   displayName,
				"cyclomatic": strconv.Itoa(res.cyclomatic),
			},
		})
	}
	if res.maxLoopNesting >= DeepLoopNesting {
		findings = append(findings, Finding{
			Category: CategoryPerformance,
			Subtype:  SubtypeNestedLoops,
			File:     f.Path,
			Line:     parsers.Line(n),
			Attributes: map[string]string{
				"function": displayName,
				"depth":    strconv.Itoa(res.maxLoopNesting),
			},
		})
	}
	for _, line := range res.concatLoopLines {
		findings = append(findings, Finding{
			Category:   CategoryPerformance,
			Subtype:    SubtypeStringConcatInLoop,
			File:       f.Path,
			Line:       line,
			Attributes: map[string]string{"function": displayName},
		})
	}

	return fn, findings
}

// matchSingleton looks for a private class-level reference attribute plus a
// construction guard: either a __new__ override or a method that branches
// on the attribute.
func (d *Detector) matchSingleton(body *tree_sitter.Node, methods []*tree_sitter.Node, content []byte) (string, bool) {
	var privateAttrs []string
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child.Kind() != "expression_statement" {
			continue
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			assign := child.Child(j)
			if assign.Kind() != "assignment" {
				continue
			}
			left := assign.ChildByFieldName("left")
			if left != nil && left.Kind() == "identifier" {
				name := parsers.NodeText(left, content)
				if strings.HasPrefix(name, "_") {
					privateAttrs = append(privateAttrs, name)
				}
			}
		}
	}

	for _, attr := range privateAttrs {
		for _, m := range methods {
			name := fieldText(m, "name", content)
			mbody := m.ChildByFieldName("body")
			if mbody == nil {
				continue
			}
			if name == "__new__" && strings.Contains(parsers.NodeText(mbody, content), attr) {
				return attr, true
			}
			if guardsOn(mbody, attr, content) {
				return attr, true
			}
		}
	}
	return "", false
}

// guardsOn reports whether any if condition in the body references attr.
func guardsOn(n *tree_sitter.Node, attr string, content []byte) bool {
	if n.Kind() == "if_statement" {
		if cond := n.ChildByFieldName("condition"); cond != nil {
			if strings.Contains(parsers.NodeText(cond, content), attr) {
				return true
			}
		}
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if guardsOn(n.Child(i), attr, content) {
			return true
		}
	}
	return false
}

// factoryVerbs are the construction-verb prefixes a factory method starts with.
var factoryVerbs = []string{"create", "make", "build"}

// matchFactory looks for a construction-verb method whose body branches and
// returns a constructed object.
func (d *Detector) matchFactory(methods []*tree_sitter.Node, content []byte) (string, bool) {
	for _, m := range methods {
		name := fieldText(m, "name", content)
		lower := strings.ToLower(name)
		verb := false
		for _, v := range factoryVerbs {
			if strings.HasPrefix(lower, v) {
				verb = true
				break
			}
		}
		if !verb {
			continue
		}
		body := m.ChildByFieldName("body")
		if body == nil {
			continue
		}
		if containsKind(body, "if_statement") && returnsCall(body) {
			return name, true
		}
	}
	return "", false
}

// returnsCall reports whether any return statement in the subtree returns a
// call expression.
func returnsCall(n *tree_sitter.Node) bool {
	if n.Kind() == "return_statement" && containsKind(n, "call") {
		return true
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if returnsCall(n.Child(i)) {
			return true
		}
	}
	return false
}

var (
	subscribeNames   = []string{"subscribe", "attach", "register", "add_observer", "add_listener"}
	unsubscribeNames = []string{"unsubscribe", "detach", "unregister", "remove_observer", "remove_listener"}
	notifyPrefixes   = []string{"notify", "publish", "emit"}
)

// matchObserver looks for a subscribe/unsubscribe pair plus a notify-style
// method on the same class.
func (d *Detector) matchObserver(methods []*tree_sitter.Node, content []byte) bool {
	var hasSub, hasUnsub, hasNotify bool
	for _, m := range methods {
		name := strings.ToLower(fieldText(m, "name", content))
		for _, s := range subscribeNames {
			if name == s {
				hasSub = true
			}
		}
		for _, s := range unsubscribeNames {
			if name == s {
				hasUnsub = true
			}
		}
		for _, p := range notifyPrefixes {
			if strings.HasPrefix(name, p) {
				hasNotify = true
			}
		}
	}
	return hasSub && hasUnsub && hasNotify
}

// unusedParams flags declared positional parameters that never appear among
// the body's identifier references. Receiver and underscore-prefixed names
// are exempt.
func (d *Detector) unusedParams(body *tree_sitter.Node, params []string, f *parsers.SourceFile, fnName string) []Finding {
	used := make(map[string]bool)
	var collect func(n *tree_sitter.Node)
	collect = func(n *tree_sitter.Node) {
		if n.Kind() == "identifier" {
			used[parsers.NodeText(n, f.Content)] = true
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			collect(n.Child(i))
		}
	}
	collect(body)

	var findings []Finding
	for _, p := range params {
		if p == "self" || p == "cls" || strings.HasPrefix(p, "_") {
			continue
		}
		if !used[p] {
			findings = append(findings, Finding{
				Category:   CategoryBestPractice,
				Subtype:    SubtypeUnusedParameter,
				File:       f.Path,
				Line:       parsers.Line(body.Parent()),
				Attributes: map[string]string{"function": fnName, "parameter": p},
			})
		}
	}
	return findings
}

// classMethods returns the function_definition nodes directly inside a
// class body, looking through decorators.
func classMethods(body *tree_sitter.Node) []*tree_sitter.Node {
	var methods []*tree_sitter.Node
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child.Kind() == "decorated_definition" {
			if def := child.ChildByFieldName("definition"); def != nil {
				child = def
			}
		}
		if child.Kind() == "function_definition" {
			methods = append(methods, child)
		}
	}
	return methods
}

// statementKinds are the node kinds counted by the long-method rule.
var statementKinds = map[string]bool{
	"expression_statement":  true,
	"return_statement":      true,
	"if_statement":          true,
	"for_statement":         true,
	"while_statement":       true,
	"try_statement":         true,
	"with_statement":        true,
	"assert_statement":      true,
	"raise_statement":       true,
	"pass_statement":        true,
	"break_statement":       true,
	"continue_statement":    true,
	"delete_statement":      true,
	"global_statement":      true,
	"nonlocal_statement":    true,
	"import_statement":      true,
	"import_from_statement": true,
	"match_statement":       true,
	"function_definition":   true,
	"class_definition":      true,
}

// statementCount counts statements recursively within a body.
func statementCount(body *tree_sitter.Node) int {
	count := 0
	var walk func(n *tree_sitter.Node)
	walk = func(n *tree_sitter.Node) {
		if statementKinds[n.Kind()] {
			count++
		}
		for i := uint(0); i < n.ChildCount(); i++ {
			walk(n.Child(i))
		}
	}
	walk(body)
	return count
}

// positionalParams returns declared positional parameter names, in order,
// excluding *args/**kwargs splats and keyword-only parameters.
func positionalParams(fn *tree_sitter.Node, content []byte) []string {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}

	var names []string
	for i := uint(0); i < params.ChildCount(); i++ {
		child := params.Child(i)
		switch child.Kind() {
		case "identifier":
			names = append(names, parsers.NodeText(child, content))
		case "typed_parameter":
			// First child is the name identifier.
			if child.ChildCount() > 0 && child.Child(0).Kind() == "identifier" {
				names = append(names, parsers.NodeText(child.Child(0), content))
			}
		case "default_parameter", "typed_default_parameter":
			if nameNode := child.ChildByFieldName("name"); nameNode != nil && nameNode.Kind() == "identifier" {
				names = append(names, parsers.NodeText(nameNode, content))
			}
		case "list_splat_pattern", "dictionary_splat_pattern", "keyword_separator":
			// Splats end the positional section.
			return names
		}
	}
	return names
}

// hasDocstring reports whether a block's first statement is a string
// expression.
func hasDocstring(body *tree_sitter.Node) bool {
	for i := uint(0); i < body.ChildCount(); i++ {
		child := body.Child(i)
		if child.Kind() == "comment" {
			continue
		}
		if child.Kind() != "expression_statement" {
			return false
		}
		for j := uint(0); j < child.ChildCount(); j++ {
			if child.Child(j).Kind() == "string" {
				return true
			}
		}
		return false
	}
	return false
}

// fieldText returns the text of a named field child, or "".
func fieldText(n *tree_sitter.Node, field string, content []byte) string {
	child := n.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return parsers.NodeText(child, content)
}
