// Sift - static analysis engine for Python codebases.
//
// Sift parses source trees into syntax trees, builds a file-level
// dependency graph, detects design patterns and code smells, and
// persists the results as reusable knowledge.
package main

import (
	"fmt"
	"os"

	"github.com/siftlab/sift/cmd"
)

func main() {
	cli := cmd.NewCLI()

	if err := cli.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
