package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fabriclens/engine/internal/models"
)

// Markdown renders a snapshot summary report.
func Markdown(g *models.LineageGraph, stats *models.GraphStats) string {
	var b strings.Builder
	b.WriteString("# Lineage Snapshot\n\n")
	fmt.Fprintf(&b, "Source: `%s`  \nGenerated: %s\n\n", g.Source, g.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	b.WriteString("## Counts\n\n")
	fmt.Fprintf(&b, "| Workspaces | Items | External Sources | Tables | Edges |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %d |\n\n",
		stats.WorkspaceCount, stats.ItemCount, stats.ExternalSourceCount, stats.TableCount, stats.EdgeCount)
	if stats.SkippedRecords > 0 {
		fmt.Fprintf(&b, "%d records skipped for malformed connections.\n\n", stats.SkippedRecords)
	}

	writeCountTable(&b, "Items by type", stats.ItemsByType)
	writeCountTable(&b, "Sources by type", stats.SourcesByType)
	writeCountTable(&b, "Edges by type", stats.EdgesByType)

	if len(stats.TopConnectedItems) > 0 {
		b.WriteString("## Most connected items\n\n")
		for _, n := range stats.TopConnectedItems {
			fmt.Fprintf(&b, "- %s — %d incoming\n", n.Name, n.Connections)
		}
		b.WriteString("\n")
	}
	if len(stats.TopConnectedSources) > 0 {
		b.WriteString("## Most consumed sources\n\n")
		for _, n := range stats.TopConnectedSources {
			fmt.Fprintf(&b, "- %s — %d consumers\n", n.Name, n.Connections)
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeCountTable(b *strings.Builder, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(b, "## %s\n\n| Type | Count |\n|---|---|\n", title)
	for _, k := range keys {
		name := k
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(b, "| %s | %d |\n", name, counts[k])
	}
	b.WriteString("\n")
}
