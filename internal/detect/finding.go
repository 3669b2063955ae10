// Package detect walks syntax trees and emits structural findings: design
// pattern matches, code smells, security and performance anti-patterns, and
// per-function complexity metrics.
package detect

// Category is the finding's top-level classification.
type Category string

const (
	CategoryDesignPattern Category = "design_pattern"
	CategoryCodeSmell     Category = "code_smell"
	CategorySecurity      Category = "security"
	CategoryPerformance   Category = "performance"
	CategoryBestPractice  Category = "best_practice"
)

// Finding subtypes, one per detector rule.
const (
	SubtypeLargeClass        = "large_class"
	SubtypeLongMethod        = "long_method"
	SubtypeLongParameterList = "long_parameter_list"
	SubtypeHighComplexity    = "high_complexity"

	SubtypeSingleton = "singleton"
	SubtypeFactory   = "factory_method"
	SubtypeObserver  = "observer"

	SubtypeHardcodedCredential  = "hardcoded_credential"
	SubtypeSQLInjectionRisk     = "sql_injection_risk"
	SubtypeDynamicCodeExecution = "dynamic_code_execution"

	SubtypeNestedLoops        = "nested_loops"
	SubtypeStringConcatInLoop = "string_concat_in_loop"

	SubtypeMissingDocstring = "missing_docstring"
	SubtypeUnusedParameter  = "unused_parameter"
)

// Finding is a single detected pattern, smell, or anti-pattern attached to
// a location. Findings are immutable once emitted; a re-scan of a file
// replaces its findings wholesale.
type Finding struct {
	// Category is the top-level classification.
	Category Category `json:"category"`

	// Subtype names the rule that fired.
	Subtype string `json:"subtype"`

	// File is the path of the analyzed file.
	File string `json:"file"`

	// Line is the 1-based line of the construct.
	Line int `json:"line"`

	// Attributes holds rule-specific detail.
	Attributes map[string]string `json:"attributes,omitempty"`
}

// FunctionMetrics is the complexity profile of one function.
type FunctionMetrics struct {
	// Name is the function name; methods are qualified as Class.method.
	Name string `json:"name"`

	// Line is the function's starting line.
	Line int `json:"line"`

	// Cyclomatic is the count of branching and looping constructs plus one.
	Cyclomatic int `json:"cyclomatic"`

	// Cognitive is the nesting-weighted difficulty score.
	Cognitive int `json:"cognitive"`

	// MaxNestingDepth is the deepest nesting of loop/conditional constructs.
	MaxNestingDepth int `json:"max_nesting_depth"`
}

// FileMetrics aggregates complexity over one file.
type FileMetrics struct {
	// File is the analyzed file path.
	File string `json:"file"`

	// Functions holds per-function metrics in source order.
	Functions []FunctionMetrics `json:"functions"`
}

// MaxCyclomatic returns the highest cyclomatic complexity in the file, or
// zero when the file defines no functions.
func (m *FileMetrics) MaxCyclomatic() int {
	max := 0
	for _, f := range m.Functions {
		if f.Cyclomatic > max {
			max = f.Cyclomatic
		}
	}
	return max
}
