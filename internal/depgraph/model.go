// Package depgraph builds and queries the file/module dependency graph.
//
// Nodes are either files from the scanned set or external modules; edges
// represent "imports" relationships. The graph value is built wholesale by
// a Builder on each scan and queried through pure functions — no long-lived
// mutable graph state survives between builds.
package depgraph

import "sort"

// NodeKind tags a node as a scanned file or an external module.
type NodeKind string

const (
	NodeFile   NodeKind = "file"
	NodeModule NodeKind = "module"
)

// ModuleCategory classifies an imported module name.
type ModuleCategory string

const (
	CategoryStandard   ModuleCategory = "standard"
	CategoryLocal      ModuleCategory = "local"
	CategoryThirdParty ModuleCategory = "third_party"
)

// EdgeKind is the relationship type carried by an edge.
type EdgeKind string

// EdgeImports is the only edge kind in the dependency graph.
const EdgeImports EdgeKind = "imports"

// Node is a vertex in the dependency graph.
type Node struct {
	// ID is the file path (file nodes) or module name (module nodes).
	ID string

	// Kind tags the node as file or module.
	Kind NodeKind

	// Category is set on module nodes only.
	Category ModuleCategory
}

// Edge is a directed imports relationship.
type Edge struct {
	// Source is the importing node's ID.
	Source string

	// Target is the imported node's ID.
	Target string

	// Kind is the relationship type.
	Kind EdgeKind

	// Symbols is the union of symbol names imported across statements.
	Symbols []string
}

// pythonStdlib is the allow-list of base-library module names. A name whose
// first segment is listed here categorizes as standard even when it could
// also resolve as third-party.
var pythonStdlib = map[string]bool{
	"abc": true, "argparse": true, "array": true, "ast": true, "asyncio": true,
	"base64": true, "bisect": true, "builtins": true, "bz2": true,
	"calendar": true, "codecs": true, "collections": true, "concurrent": true,
	"configparser": true, "contextlib": true, "copy": true, "csv": true,
	"ctypes": true, "dataclasses": true, "datetime": true, "decimal": true,
	"difflib": true, "dis": true, "email": true, "enum": true, "errno": true,
	"fnmatch": true, "fractions": true, "functools": true, "gc": true,
	"getpass": true, "glob": true, "gzip": true, "hashlib": true,
	"heapq": true, "hmac": true, "html": true, "http": true, "importlib": true,
	"inspect": true, "io": true, "ipaddress": true, "itertools": true,
	"json": true, "keyword": true, "locale": true, "logging": true,
	"lzma": true, "math": true, "mimetypes": true, "multiprocessing": true,
	"numbers": true, "operator": true, "os": true, "pathlib": true,
	"pickle": true, "pkgutil": true, "platform": true, "pprint": true,
	"queue": true, "random": true, "re": true, "secrets": true,
	"select": true, "shlex": true, "shutil": true, "signal": true,
	"site": true, "socket": true, "sqlite3": true, "ssl": true, "stat": true,
	"statistics": true, "string": true, "struct": true, "subprocess": true,
	"sys": true, "sysconfig": true, "tarfile": true, "tempfile": true,
	"textwrap": true, "threading": true, "time": true, "timeit": true,
	"tokenize": true, "traceback": true, "types": true, "typing": true,
	"unicodedata": true, "unittest": true, "urllib": true, "uuid": true,
	"warnings": true, "weakref": true, "xml": true, "zipfile": true,
	"zlib": true, "zoneinfo": true,
}

// Categorize classifies a module name. relativeDepth comes from the import
// record; any depth above zero marks the import local regardless of the
// name's shape. Ties between standard and third-party resolve to standard.
func Categorize(module string, relativeDepth int) ModuleCategory {
	if relativeDepth > 0 {
		return CategoryLocal
	}
	base := module
	if idx := indexDot(module); idx >= 0 {
		base = module[:idx]
	}
	if pythonStdlib[base] {
		return CategoryStandard
	}
	return CategoryThirdParty
}

func indexDot(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			return i
		}
	}
	return -1
}

// sortedStrings returns a sorted copy of the input.
func sortedStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}
