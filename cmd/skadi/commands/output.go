package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/skadi/skadi/pkg/circuit"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, s circuit.ResourceSummary) {
	fmt.Fprintf(w, "Operations: %d\n", s.NumOperations)
	fmt.Fprintf(w, "Depth:      %d\n", s.Depth)
	fmt.Fprintf(w, "Wires:      %d\n", s.NumWires)
	if s.NumTrainableParams > 0 {
		fmt.Fprintf(w, "Parameters: %d\n", s.NumTrainableParams)
	}
	if types := s.SortedGateTypes(); len(types) > 0 {
		parts := make([]string, len(types))
		for i, name := range types {
			parts[i] = fmt.Sprintf("%s=%d", name, s.GateTypes[name])
		}
		fmt.Fprintf(w, "Gates:      %s\n", strings.Join(parts, " "))
	}
}

func printImprovement(w io.Writer, imp circuit.Improvement) {
	fmt.Fprintf(w, "Operations: %d -> %d (%.1f%% reduction)\n",
		imp.OperationsBefore, imp.OperationsAfter, imp.OperationsPercent)
	fmt.Fprintf(w, "Depth:      %d -> %d (%.1f%% reduction)\n",
		imp.DepthBefore, imp.DepthAfter, imp.DepthPercent)
}

// printCircuit prints the statistics and diagram of rep.
func printCircuit(w io.Writer, rep *circuit.Representation) error {
	stats, err := rep.Statistics(false)
	if err != nil {
		return err
	}
	diagram, err := rep.Diagram(circuit.DefaultDrawOptions())
	if err != nil {
		return err
	}
	printSummary(w, stats)
	fmt.Fprintf(w, "\n%s\n", diagram)
	return nil
}

// circuitView is the JSON form of a circuit.
type circuitView struct {
	ID          string                    `json:"id"`
	Description string                    `json:"description"`
	Path        string                    `json:"path,omitempty"`
	Summary     circuit.ResourceSummary   `json:"specs"`
	Source      string                    `json:"code,omitempty"`
	Metadata    map[string]string         `json:"metadata,omitempty"`
	History     []circuit.TransformRecord `json:"transform_history,omitempty"`
}

func viewOf(rep *circuit.Representation, path string, withSource bool) (circuitView, error) {
	stats, err := rep.Statistics(false)
	if err != nil {
		return circuitView{}, err
	}
	v := circuitView{
		ID:          rep.ID(),
		Description: rep.Description(),
		Path:        path,
		Summary:     stats,
		Metadata:    rep.Metadata(),
		History:     rep.Log(),
	}
	if withSource {
		v.Source = rep.Source()
	}
	return v, nil
}
