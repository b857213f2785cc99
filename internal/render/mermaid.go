// Package render turns a lineage snapshot into human-readable artifacts.
package render

import (
	"fmt"
	"strings"

	"github.com/fabriclens/engine/internal/models"
)

// Mermaid renders the snapshot as a mermaid flowchart. Workspaces become
// subgraphs, external sources and tables standalone nodes.
func Mermaid(g *models.LineageGraph) string {
	var b strings.Builder
	b.WriteString("flowchart LR\n")

	byWorkspace := map[string][]models.FabricItem{}
	for _, it := range g.Items {
		byWorkspace[it.WorkspaceID] = append(byWorkspace[it.WorkspaceID], it)
	}

	for _, ws := range g.Workspaces {
		fmt.Fprintf(&b, "    subgraph %s[%q]\n", nodeRef(ws.ID), ws.Name)
		for _, it := range byWorkspace[ws.ID] {
			fmt.Fprintf(&b, "        %s[%q]\n", nodeRef(it.ID), label(it.Name, it.Type))
		}
		b.WriteString("    end\n")
	}
	// Items whose workspace id never resolved still need declaring.
	for _, it := range byWorkspace[""] {
		fmt.Fprintf(&b, "    %s[%q]\n", nodeRef(it.ID), label(it.Name, it.Type))
	}

	for _, src := range g.ExternalSources {
		fmt.Fprintf(&b, "    %s[(%q)]\n", nodeRef(src.ID), label(src.DisplayName, src.Type))
	}
	for _, t := range g.Tables {
		fmt.Fprintf(&b, "    %s[/%q/]\n", nodeRef(t.ID), t.Name)
	}

	for _, e := range g.Edges {
		arrow := "-->"
		if e.Type == models.EdgeTypeInternal {
			arrow = "==>"
		}
		fmt.Fprintf(&b, "    %s %s|%s| %s\n", nodeRef(e.SourceID), arrow, e.Type, nodeRef(e.TargetID))
	}

	return b.String()
}

// nodeRef makes an id safe for mermaid identifiers.
func nodeRef(id string) string {
	r := strings.NewReplacer("-", "_", ".", "_", " ", "_", "/", "_")
	return "n_" + r.Replace(id)
}

func label(name, typ string) string {
	if name == "" {
		return typ
	}
	if typ == "" {
		return name
	}
	return name + " (" + typ + ")"
}
