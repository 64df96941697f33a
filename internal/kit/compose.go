package kit

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/mrgoonie/claudekit-cli-sub009/pkg/frontmatter"
)

const composedHeader = "<!-- Managed by ck. Sections are regenerated on update; edit the kit instead. -->\n"

// ComposeSections builds the document for a merge-single target: one "## name"
// section per item in name order. renames maps old section titles to new ones.
func ComposeSections(items []Item, renames map[string]string) []byte {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b Item) int { return strings.Compare(a.Name, b.Name) })

	var buf bytes.Buffer
	buf.WriteString(composedHeader)
	for _, item := range sorted {
		title := item.Name
		for seen := 0; seen < len(renames); seen++ {
			next, ok := renames[title]
			if !ok || next == title {
				break
			}
			title = next
		}

		body, err := frontmatter.Parse(item.Content, &struct{}{})
		if err != nil {
			body = item.Content
		}
		fmt.Fprintf(&buf, "\n## %s\n\n", title)
		if item.Description != "" {
			fmt.Fprintf(&buf, "> %s\n\n", item.Description)
		}
		buf.Write(bytes.TrimSpace(body))
		buf.WriteString("\n")
	}
	return buf.Bytes()
}
