package circuit

import "sort"

// ResourceSummary is the resource profile of a traced program. It is always
// recomputed from a tape, never maintained by hand.
type ResourceSummary struct {
	NumOperations      int            `json:"num_operations"`
	Depth              int            `json:"depth"`
	NumWires           int            `json:"num_wires"`
	NumUsedWires       int            `json:"num_used_wires"`
	NumTrainableParams int            `json:"num_trainable_params"`
	GateTypes          map[string]int `json:"gate_types"`
	GateSizes          map[int]int    `json:"gate_sizes"`
}

// Summarize computes the resource summary of a tape. Measurements are not
// operations. Depth is the longest per-wire dependency chain. Every numeric
// gate parameter counts as trainable.
func Summarize(t *Tape) ResourceSummary {
	s := ResourceSummary{
		NumOperations: len(t.Operations),
		Depth:         BuildDAG(t.Operations).Depth(),
		NumWires:      t.WireCount(),
		NumUsedWires:  len(t.UsedWires()),
		GateTypes:     make(map[string]int),
		GateSizes:     make(map[int]int),
	}
	for _, op := range t.Operations {
		s.GateTypes[op.Name]++
		s.GateSizes[op.Arity()]++
		s.NumTrainableParams += len(op.Params)
	}
	return s
}

// Copy returns a deep copy of the summary.
func (s ResourceSummary) Copy() ResourceSummary {
	c := s
	c.GateTypes = make(map[string]int, len(s.GateTypes))
	for k, v := range s.GateTypes {
		c.GateTypes[k] = v
	}
	c.GateSizes = make(map[int]int, len(s.GateSizes))
	for k, v := range s.GateSizes {
		c.GateSizes[k] = v
	}
	return c
}

// SortedGateTypes returns gate names ordered by descending count, then name.
func (s ResourceSummary) SortedGateTypes() []string {
	names := make([]string, 0, len(s.GateTypes))
	for name := range s.GateTypes {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := s.GateTypes[names[i]], s.GateTypes[names[j]]
		if ci != cj {
			return ci > cj
		}
		return names[i] < names[j]
	})
	return names
}

// Improvement quantifies the change between two summaries. Positive
// reductions mean the second summary is smaller.
type Improvement struct {
	OperationsBefore  int     `json:"operations_before"`
	OperationsAfter   int     `json:"operations_after"`
	OperationsReduced int     `json:"operations_reduced"`
	OperationsPercent float64 `json:"operations_percent"`
	DepthBefore       int     `json:"depth_before"`
	DepthAfter        int     `json:"depth_after"`
	DepthReduced      int     `json:"depth_reduced"`
	DepthPercent      float64 `json:"depth_percent"`
}

// CompareSummaries computes the improvement from before to after.
// Percentages are 0 when the before value is 0, including the 0 to 0 case.
func CompareSummaries(before, after ResourceSummary) Improvement {
	imp := Improvement{
		OperationsBefore:  before.NumOperations,
		OperationsAfter:   after.NumOperations,
		OperationsReduced: before.NumOperations - after.NumOperations,
		DepthBefore:       before.Depth,
		DepthAfter:        after.Depth,
		DepthReduced:      before.Depth - after.Depth,
	}
	imp.OperationsPercent = percent(imp.OperationsReduced, before.NumOperations)
	imp.DepthPercent = percent(imp.DepthReduced, before.Depth)
	return imp
}

func percent(reduced, before int) float64 {
	if before == 0 {
		return 0
	}
	return float64(reduced) / float64(before) * 100
}
