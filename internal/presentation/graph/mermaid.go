package graph

import (
	"fmt"
	"strings"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/machine"
)

// GenerateMermaid produces a Mermaid state diagram from a machine
// definition. When current is non-empty, that state is highlighted so a
// dashboard can overlay the live position.
func GenerateMermaid(def *machine.Definition, current string) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString(fmt.Sprintf("    [*] --> %s\n", sanitizeMermaidID(def.InitialState)))

	for _, t := range def.Transitions {
		sb.WriteString(fmt.Sprintf("    %s --> %s: %s\n",
			sanitizeMermaidID(t.From),
			sanitizeMermaidID(t.To),
			t.Trigger))
	}

	if current != "" {
		sb.WriteString("\n    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(current)))
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
