package cli

import (
	"fmt"

	"github.com/sheikkinen/statemachine-engine-sub003/internal/machine"
	"github.com/sheikkinen/statemachine-engine-sub003/internal/presentation/graph"
)

// RunGraph prints a Mermaid state diagram for a machine definition.
func RunGraph(definitionPath, current string) error {
	def, err := machine.Load(definitionPath)
	if err != nil {
		return err
	}
	fmt.Print(graph.GenerateMermaid(def, current))
	return nil
}
