// Package clusters turns cluster assignments for code blocks into pattern
// summaries.
//
// Assignments normally come from an external model-inference collaborator
// and are treated as opaque; the engine never tokenizes or loads a model.
// The embeddings package can supply local assignments when no collaborator
// is wired in.
package clusters

import (
	"sort"
	"strings"
)

// Noise is the cluster ID assigned to blocks that belong to no cluster.
const Noise = -1

// Assignment maps one code block to a cluster.
type Assignment struct {
	// BlockID identifies the code block (typically a file path).
	BlockID string `json:"block_id"`

	// ClusterID is the opaque cluster identifier; Noise marks outliers.
	ClusterID int `json:"cluster_id"`
}

// PatternSummary describes one recurring pattern group.
type PatternSummary struct {
	// ClusterID is the source cluster.
	ClusterID int `json:"cluster_id"`

	// PatternType is the keyword-derived pattern name.
	PatternType string `json:"pattern_type"`

	// Frequency is the number of blocks in the cluster.
	Frequency int `json:"frequency"`

	// Examples holds up to three member block IDs, in sorted order.
	Examples []string `json:"examples"`
}

// maxExamples caps the example blocks kept per summary.
const maxExamples = 3

// Summarize groups assignments by cluster and derives one summary per
// cluster, dropping noise. blocks maps block IDs to their source text for
// pattern-type naming; a missing entry contributes no keywords.
func Summarize(assignments []Assignment, blocks map[string]string) []PatternSummary {
	groups := make(map[int][]string)
	for _, a := range assignments {
		if a.ClusterID == Noise {
			continue
		}
		groups[a.ClusterID] = append(groups[a.ClusterID], a.BlockID)
	}

	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	summaries := make([]PatternSummary, 0, len(ids))
	for _, id := range ids {
		members := groups[id]
		sort.Strings(members)

		examples := members
		if len(examples) > maxExamples {
			examples = examples[:maxExamples]
		}

		var texts []string
		for _, m := range members {
			if text, ok := blocks[m]; ok {
				texts = append(texts, text)
			}
		}

		summaries = append(summaries, PatternSummary{
			ClusterID:   id,
			PatternType: identifyPatternType(texts),
			Frequency:   len(members),
			Examples:    examples,
		})
	}
	return summaries
}

// identifyPatternType names a cluster by the dominant keyword across its
// member blocks.
func identifyPatternType(texts []string) string {
	combined := strings.ToLower(strings.Join(texts, " "))
	switch {
	case strings.Contains(combined, "class"):
		return "class_definition"
	case strings.Contains(combined, "def "):
		return "function_definition"
	case strings.Contains(combined, "import"):
		return "import_pattern"
	case strings.Contains(combined, "try") && strings.Contains(combined, "except"):
		return "error_handling"
	case strings.Contains(combined, "for ") || strings.Contains(combined, "while "):
		return "loop_pattern"
	default:
		return "general_code_pattern"
	}
}
