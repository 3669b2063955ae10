package detect

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siftlab/sift/internal/parsers"
)

func analyze(t *testing.T, source string) ([]Finding, *FileMetrics) {
	t.Helper()
	f, err := parsers.NewPythonParser().Parse("app.py", []byte(source))
	require.NoError(t, err)
	t.Cleanup(f.Close)
	return NewDetector().Detect(f)
}

func bySubtype(findings []Finding, subtype string) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.Subtype == subtype {
			out = append(out, f)
		}
	}
	return out
}

func classWithMethods(n int) string {
	var sb strings.Builder
	sb.WriteString("class Service:\n")
	sb.WriteString("    \"\"\"Service docs.\"\"\"\n")
	for i := 0; i < n; i++ {
		sb.WriteString(fmt.Sprintf("    def method_%d(self):\n", i))
		sb.WriteString("        \"\"\"Docs.\"\"\"\n")
		sb.WriteString("        return None\n")
	}
	return sb.String()
}

func TestDetect_LargeClass(t *testing.T) {
	t.Parallel()

	t.Run("ElevenMethodsFlagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, classWithMethods(11))
		found := bySubtype(findings, SubtypeLargeClass)
		require.Len(t, found, 1)
		assert.Equal(t, CategoryCodeSmell, found[0].Category)
		assert.Equal(t, "Service", found[0].Attributes["class"])
		assert.Equal(t, "11", found[0].Attributes["method_count"])
	})

	t.Run("TenMethodsNotFlagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, classWithMethods(10))
		assert.Empty(t, bySubtype(findings, SubtypeLargeClass))
	})
}

func TestDetect_LongParameterList(t *testing.T) {
	t.Parallel()

	t.Run("SixFlagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `def run(a, b, c, d, e, f):
    """Docs."""
    return a + b + c + d + e + f
`)
		found := bySubtype(findings, SubtypeLongParameterList)
		require.Len(t, found, 1)
		assert.Equal(t, "run", found[0].Attributes["function"])
		assert.Equal(t, "6", found[0].Attributes["parameter_count"])
	})

	t.Run("FiveNotFlagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `def run(a, b, c, d, e):
    """Docs."""
    return a + b + c + d + e
`)
		assert.Empty(t, bySubtype(findings, SubtypeLongParameterList))
	})

	t.Run("SplatsExcluded", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `def run(a, b, *args, **kwargs):
    """Docs."""
    return a + b + len(args) + len(kwargs)
`)
		assert.Empty(t, bySubtype(findings, SubtypeLongParameterList))
	})
}

func TestDetect_LongMethod(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("def busy():\n")
	sb.WriteString("    \"\"\"Docs.\"\"\"\n")
	for i := 0; i < 21; i++ {
		sb.WriteString(fmt.Sprintf("    x%d = %d\n", i, i))
	}
	findings, _ := analyze(t, sb.String())
	found := bySubtype(findings, SubtypeLongMethod)
	require.Len(t, found, 1)
	assert.Equal(t, "busy", found[0].Attributes["function"])
}

func TestDetect_UnusedParameter(t *testing.T) {
	t.Parallel()

	t.Run("Flagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `def handler(event, context):
    """Docs."""
    return event
`)
		found := bySubtype(findings, SubtypeUnusedParameter)
		require.Len(t, found, 1)
		assert.Equal(t, "context", found[0].Attributes["parameter"])
	})

	t.Run("SelfAndUnderscoreExempt", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `class A:
    """Docs."""
    def m(self, _ignored, used):
        """Docs."""
        return used
`)
		assert.Empty(t, bySubtype(findings, SubtypeUnusedParameter))
	})
}

func TestDetect_MissingDocstring(t *testing.T) {
	t.Parallel()

	t.Run("FunctionWithout", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, "def f():\n    return 1\n")
		found := bySubtype(findings, SubtypeMissingDocstring)
		require.Len(t, found, 1)
		assert.Equal(t, "function", found[0].Attributes["kind"])
		assert.Equal(t, "f", found[0].Attributes["name"])
	})

	t.Run("ClassAndFunctionWith", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `class A:
    """Class docs."""
    def m(self):
        """Method docs."""
        return 1
`)
		assert.Empty(t, bySubtype(findings, SubtypeMissingDocstring))
	})
}

func TestDetect_Singleton(t *testing.T) {
	t.Parallel()

	t.Run("GuardedAccessor", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `class Config:
    """Docs."""
    _instance = None

    @classmethod
    def get_instance(cls):
        """Docs."""
        if cls._instance is None:
            cls._instance = Config()
        return cls._instance
`)
		found := bySubtype(findings, SubtypeSingleton)
		require.Len(t, found, 1)
		assert.Equal(t, CategoryDesignPattern, found[0].Category)
		assert.Equal(t, "Config", found[0].Attributes["class"])
		assert.Equal(t, "_instance", found[0].Attributes["attribute"])
	})

	t.Run("NewOverride", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `class Registry:
    """Docs."""
    _shared = None

    def __new__(cls):
        """Docs."""
        if cls._shared is None:
            cls._shared = super().__new__(cls)
        return cls._shared
`)
		assert.Len(t, bySubtype(findings, SubtypeSingleton), 1)
	})

	t.Run("PlainClassNotFlagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `class Point:
    """Docs."""
    def __init__(self, x):
        """Docs."""
        self.x = x
`)
		assert.Empty(t, bySubtype(findings, SubtypeSingleton))
	})
}

func TestDetect_Factory(t *testing.T) {
	t.Parallel()

	t.Run("CreateMethodWithBranches", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `class ShapeFactory:
    """Docs."""
    def create_shape(self, kind):
        """Docs."""
        if kind == "circle":
            return Circle()
        return Square()
`)
		found := bySubtype(findings, SubtypeFactory)
		require.Len(t, found, 1)
		assert.Equal(t, "create_shape", found[0].Attributes["method"])
	})

	t.Run("CreateWithoutBranchNotFlagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `class Builder:
    """Docs."""
    def create(self):
        """Docs."""
        return Widget()
`)
		assert.Empty(t, bySubtype(findings, SubtypeFactory))
	})
}

func TestDetect_Observer(t *testing.T) {
	t.Parallel()

	t.Run("FullTriad", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `class EventBus:
    """Docs."""
    def subscribe(self, fn):
        """Docs."""
        self.handlers.append(fn)

    def unsubscribe(self, fn):
        """Docs."""
        self.handlers.remove(fn)

    def notify_all(self, event):
        """Docs."""
        for fn in self.handlers:
            fn(event)
`)
		found := bySubtype(findings, SubtypeObserver)
		require.Len(t, found, 1)
		assert.Equal(t, "EventBus", found[0].Attributes["class"])
	})

	t.Run("MissingUnsubscribeNotFlagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `class EventBus:
    """Docs."""
    def subscribe(self, fn):
        """Docs."""
        self.handlers.append(fn)

    def notify(self, event):
        """Docs."""
        pass
`)
		assert.Empty(t, bySubtype(findings, SubtypeObserver))
	})
}

func TestDetect_HighComplexity(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	sb.WriteString("def branchy(n):\n")
	sb.WriteString("    \"\"\"Docs.\"\"\"\n")
	for i := 0; i < 11; i++ {
		sb.WriteString(fmt.Sprintf("    if n == %d:\n        return %d\n", i, i))
	}
	sb.WriteString("    return n\n")

	findings, metrics := analyze(t, sb.String())
	found := bySubtype(findings, SubtypeHighComplexity)
	require.Len(t, found, 1)
	assert.Equal(t, "branchy", found[0].Attributes["function"])
	assert.Equal(t, "12", found[0].Attributes["cyclomatic"])

	require.Len(t, metrics.Functions, 1)
	assert.Equal(t, 12, metrics.Functions[0].Cyclomatic)
	assert.Equal(t, 12, metrics.MaxCyclomatic())
}

func TestDetect_MethodNamesQualified(t *testing.T) {
	t.Parallel()

	_, metrics := analyze(t, `class Calc:
    """Docs."""
    def add(self, a, b):
        """Docs."""
        return a + b
`)
	require.Len(t, metrics.Functions, 1)
	assert.Equal(t, "Calc.add", metrics.Functions[0].Name)
}

func TestDetect_NestedLoops(t *testing.T) {
	t.Parallel()

	t.Run("TripleNestFlagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `def cube(items):
    """Docs."""
    for a in items:
        for b in items:
            for c in items:
                process(a, b, c)
`)
		found := bySubtype(findings, SubtypeNestedLoops)
		require.Len(t, found, 1)
		assert.Equal(t, CategoryPerformance, found[0].Category)
		assert.Equal(t, "3", found[0].Attributes["depth"])
	})

	t.Run("DoubleNestNotFlagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `def square(items):
    """Docs."""
    for a in items:
        for b in items:
            process(a, b)
`)
		assert.Empty(t, bySubtype(findings, SubtypeNestedLoops))
	})
}

func TestDetect_StringConcatInLoop(t *testing.T) {
	t.Parallel()

	t.Run("Flagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `def join(items):
    """Docs."""
    out = ""
    for item in items:
        out += "," + item
    return out
`)
		found := bySubtype(findings, SubtypeStringConcatInLoop)
		require.Len(t, found, 1)
		assert.Equal(t, 5, found[0].Line)
	})

	t.Run("OutsideLoopNotFlagged", func(t *testing.T) {
		t.Parallel()
		findings, _ := analyze(t, `def greet(name):
    """Docs."""
    out = "hi "
    out += "there " + name
    return out
`)
		assert.Empty(t, bySubtype(findings, SubtypeStringConcatInLoop))
	})
}

func TestDetect_NestedFunctionsScoredSeparately(t *testing.T) {
	t.Parallel()

	_, metrics := analyze(t, `def outer():
    """Docs."""
    def inner(x):
        """Docs."""
        if x:
            return 1
        return 0
    return inner
`)
	require.Len(t, metrics.Functions, 2)
	byName := map[string]FunctionMetrics{}
	for _, fn := range metrics.Functions {
		byName[fn.Name] = fn
	}
	assert.Equal(t, 1, byName["outer"].Cyclomatic)
	assert.Equal(t, 2, byName["inner"].Cyclomatic)
}
