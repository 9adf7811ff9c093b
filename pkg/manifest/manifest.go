// Package manifest provides shallow handling of rendered manifest streams:
// document splitting and kind summaries for reporting. It deliberately does
// not interpret Kubernetes resource semantics.
package manifest

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"
)

type docMeta struct {
	Kind string `json:"kind"`
}

// SplitDocs splits a YAML stream into its documents, preserving content
// exactly. Empty and null documents are dropped.
func SplitDocs(data []byte) [][]byte {
	if len(data) == 0 {
		return nil
	}

	// Remove leading/trailing separators that would not be captured by split.
	data, _ = bytes.CutPrefix(data, []byte("---\n"))
	data, _ = bytes.CutSuffix(data, []byte("\n---"))

	docs := bytes.Split(data, []byte("\n---\n"))

	var result [][]byte

	for _, doc := range docs {
		trimmed := bytes.TrimSpace(doc)
		if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
			result = append(result, doc)
		}
	}

	return result
}

// Kinds returns the resource kind of each document in the stream, in order.
// Documents without a kind, or that fail to parse, report "<unknown>".
func Kinds(data []byte) []string {
	docs := SplitDocs(data)
	kinds := make([]string, 0, len(docs))

	for _, doc := range docs {
		var meta docMeta
		if err := yaml.Unmarshal(doc, &meta); err != nil || meta.Kind == "" {
			kinds = append(kinds, "<unknown>")

			continue
		}

		kinds = append(kinds, meta.Kind)
	}

	return kinds
}

// Summary condenses a kind list into "3 Deployment, 1 Service" form, sorted
// by kind name for stable output.
func Summary(kinds []string) string {
	if len(kinds) == 0 {
		return "no documents"
	}

	counts := make(map[string]int)
	for _, kind := range kinds {
		counts[kind]++
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}

	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%d %s", counts[name], name))
	}

	return strings.Join(parts, ", ")
}
