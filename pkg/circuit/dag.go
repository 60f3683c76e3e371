package circuit

import (
	"fmt"
	"strings"
)

// DAG is the dependency graph of a tape's operations. An operation depends
// on the previous operation on each of its wires.
type DAG struct {
	// Nodes are indexed by operation position on the tape.
	Nodes []DAGNode

	// Layers maps layer index to node indices. Nodes in one layer touch
	// disjoint wires.
	Layers [][]int
}

// DAGNode is one operation in the dependency graph.
type DAGNode struct {
	Index        int
	Op           Operation
	Layer        int
	Predecessors []int
	Successors   []int
}

// Depth returns the length of the longest dependency chain.
func (d *DAG) Depth() int {
	return len(d.Layers)
}

// Roots returns the indices of nodes with no predecessors.
func (d *DAG) Roots() []int {
	roots := make([]int, 0)
	for _, n := range d.Nodes {
		if len(n.Predecessors) == 0 {
			roots = append(roots, n.Index)
		}
	}
	return roots
}

// BuildDAG computes the dependency graph of ops and assigns each node to
// the earliest layer after all of its predecessors.
func BuildDAG(ops []Operation) *DAG {
	return buildDAG(ops, false)
}

// buildDAG assigns layers. With span set, a multi-wire operation also
// occupies every wire between its lowest and highest operand, which keeps
// drawn connectors from crossing other gates.
func buildDAG(ops []Operation, span bool) *DAG {
	d := &DAG{Nodes: make([]DAGNode, len(ops)), Layers: make([][]int, 0)}

	// last maps a wire to the index of the last node occupying it
	last := make(map[int]int)
	// frontier maps a wire to the next free layer on it
	frontier := make(map[int]int)

	for i, op := range ops {
		node := DAGNode{Index: i, Op: op}
		occupied := occupiedWires(op, span)

		layer := 0
		for _, w := range occupied {
			if frontier[w] > layer {
				layer = frontier[w]
			}
		}

		seen := make(map[int]bool)
		for _, w := range op.Wires {
			if prev, ok := last[w]; ok && !seen[prev] {
				seen[prev] = true
				node.Predecessors = append(node.Predecessors, prev)
				d.Nodes[prev].Successors = append(d.Nodes[prev].Successors, i)
			}
		}
		for _, w := range op.Wires {
			last[w] = i
		}
		for _, w := range occupied {
			frontier[w] = layer + 1
		}

		node.Layer = layer
		d.Nodes[i] = node
		for len(d.Layers) <= layer {
			d.Layers = append(d.Layers, make([]int, 0))
		}
		d.Layers[layer] = append(d.Layers[layer], i)
	}

	return d
}

func occupiedWires(op Operation, span bool) []int {
	if !span || len(op.Wires) < 2 {
		return op.Wires
	}
	lo, hi := op.Wires[0], op.Wires[0]
	for _, w := range op.Wires {
		if w < lo {
			lo = w
		}
		if w > hi {
			hi = w
		}
	}
	wires := make([]int, 0, hi-lo+1)
	for w := lo; w <= hi; w++ {
		wires = append(wires, w)
	}
	return wires
}

// ToDOT generates a DOT representation of the dependency graph for
// visualization with Graphviz.
func (d *DAG) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph Circuit {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for layer, indices := range d.Layers {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_layer_%d {\n", layer))
		sb.WriteString(fmt.Sprintf("    label=\"Layer %d\";\n", layer))
		sb.WriteString("    style=dashed;\n")

		for _, i := range indices {
			op := d.Nodes[i].Op
			label := fmt.Sprintf("%s\\n%s", op.Name, formatWires(op.Wires))
			sb.WriteString(fmt.Sprintf("    \"op%d\" [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
				i, label, arityColor(op.Arity())))
		}

		sb.WriteString("  }\n\n")
	}

	// Operations with no predecessors hang off a single entry point.
	if roots := d.Roots(); len(roots) > 0 {
		sb.WriteString("  \"start\" [shape=point];\n")
		for _, r := range roots {
			sb.WriteString(fmt.Sprintf("  \"start\" -> \"op%d\" [style=dotted];\n", r))
		}
		sb.WriteString("\n")
	}

	for _, n := range d.Nodes {
		for _, s := range n.Successors {
			sb.WriteString(fmt.Sprintf("  \"op%d\" -> \"op%d\";\n", n.Index, s))
		}
	}

	sb.WriteString("}\n")
	return sb.String()
}

func arityColor(arity int) string {
	switch arity {
	case 1:
		return "lightblue"
	case 2:
		return "lightgreen"
	default:
		return "lightcoral"
	}
}
