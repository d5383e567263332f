package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Overlay contains instance state to visualize on the graph.
type Overlay struct {
	Visited []string
	Current string
}

// OverlayFor builds an overlay from a flow state: every step in its history
// is visited and the current step is highlighted.
func OverlayFor(state *domain.FlowState) *Overlay {
	if state == nil {
		return nil
	}
	o := &Overlay{Current: state.StepID}
	for _, e := range state.History {
		o.Visited = append(o.Visited, e.StepID)
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart of def.
// It applies semantic styling:
// - Start: ((Circle))
// - Terminal: ([Stadium])
// - Choice: {Rhombus}
// - Computed: {{Hexagon}}
// - Default: [Rectangle]
// Steps are emitted in sorted order so the output is stable.
func GenerateMermaid(def *domain.FlowDefinition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, id := range def.StepIDs() {
		step := def.Steps[id]
		safeID := sanitizeMermaidID(id)

		opener, closer := "[", "]"
		switch {
		case id == def.Start:
			opener, closer = "((", "))"
		case step.Next.IsTerminal():
			opener, closer = "([", "])"
		case step.Next.Kind() == domain.TransitionChoice:
			opener, closer = "{", "}"
		case step.Next.Kind() == domain.TransitionComputed:
			opener, closer = "{{", "}}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, escapeLabel(id), closer)

		switch step.Next.Kind() {
		case domain.TransitionStep:
			fmt.Fprintf(&sb, "    %s --> %s\n", safeID, sanitizeMermaidID(step.Next.Targets()[0]))
		case domain.TransitionChoice:
			// Choices need a target or resolver at runtime
			for _, to := range step.Next.Targets() {
				fmt.Fprintf(&sb, "    %s -.-> %s\n", safeID, sanitizeMermaidID(to))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Visited {
			// Snapshots may still name steps a newer definition dropped
			if !def.HasStep(id) || id == overlay.Current {
				continue
			}
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
			}
		}
		if def.HasStep(overlay.Current) {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

var idReplacer = strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")

func sanitizeMermaidID(id string) string {
	return idReplacer.Replace(id)
}

func escapeLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
