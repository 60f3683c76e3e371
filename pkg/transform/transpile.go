package transform

import (
	"fmt"
	"sort"

	"github.com/skadi/skadi/pkg/circuit"
)

// couplingGraph is an undirected device connectivity graph.
type couplingGraph map[int]map[int]bool

func newCouplingGraph(edges [][2]int) (couplingGraph, error) {
	g := make(couplingGraph)
	for _, e := range edges {
		a, b := e[0], e[1]
		if a < 0 || b < 0 {
			return nil, fmt.Errorf("coupling_map: negative wire in edge %v", e)
		}
		if a == b {
			return nil, fmt.Errorf("coupling_map: self loop on wire %d", a)
		}
		if g[a] == nil {
			g[a] = make(map[int]bool)
		}
		if g[b] == nil {
			g[b] = make(map[int]bool)
		}
		g[a][b] = true
		g[b][a] = true
	}
	return g, nil
}

// path returns the shortest path from a to b, inclusive, found by a
// breadth-first search that visits neighbors in ascending order.
func (g couplingGraph) path(a, b int) []int {
	prev := map[int]int{a: a}
	queue := []int{a}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == b {
			break
		}
		for _, next := range sortedKeys(g[cur]) {
			if _, seen := prev[next]; !seen {
				prev[next] = cur
				queue = append(queue, next)
			}
		}
	}
	if _, ok := prev[b]; !ok {
		return nil
	}
	var rev []int
	for cur := b; cur != a; cur = prev[cur] {
		rev = append(rev, cur)
	}
	rev = append(rev, a)
	out := make([]int, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func buildTranspile(p Params) (circuit.TapeTransform, error) {
	edges, err := p.GetEdges("coupling_map")
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, fmt.Errorf("coupling_map must contain at least one edge")
	}
	graph, err := newCouplingGraph(edges)
	if err != nil {
		return nil, err
	}
	return func(t *circuit.Tape) (*circuit.Tape, error) {
		return transpile(t, graph)
	}, nil
}

// transpile routes every two-wire operation onto adjacent device wires.
// Logical wires start on the physical wire of the same number; each SWAP
// inserted while routing moves the logical wires it exchanges, and
// measurements read the final placement.
func transpile(t *circuit.Tape, graph couplingGraph) (*circuit.Tape, error) {
	place := make(map[int]int) // logical -> physical
	owner := make(map[int]int) // physical -> logical
	physical := func(logical int) (int, error) {
		if p, ok := place[logical]; ok {
			return p, nil
		}
		if _, ok := graph[logical]; !ok {
			return 0, fmt.Errorf("wire %d is not in the coupling map", logical)
		}
		place[logical] = logical
		owner[logical] = logical
		return logical, nil
	}
	swap := func(p, q int) {
		lp, okP := owner[p]
		lq, okQ := owner[q]
		delete(owner, p)
		delete(owner, q)
		if okP {
			place[lp] = q
			owner[q] = lp
		}
		if okQ {
			place[lq] = p
			owner[p] = lq
		}
	}

	// Every used wire is placed before routing so swaps never land on an
	// unplaced logical wire.
	for _, wire := range t.UsedWires() {
		if _, err := physical(wire); err != nil {
			return nil, err
		}
	}

	out := make([]circuit.Operation, 0, len(t.Operations))
	for _, op := range t.Operations {
		switch op.Arity() {
		case 0:
			out = append(out, op.Copy())
		case 1:
			mapped := op.Copy()
			mapped.Wires[0] = place[op.Wires[0]]
			out = append(out, mapped)
		case 2:
			pa, pb := place[op.Wires[0]], place[op.Wires[1]]
			if !graph[pa][pb] {
				route := graph.path(pa, pb)
				if route == nil {
					return nil, fmt.Errorf("no path between wires %d and %d in the coupling map", pa, pb)
				}
				for i := 0; i+2 < len(route); i++ {
					out = append(out, circuit.Operation{Name: "SWAP", Wires: []int{route[i], route[i+1]}})
					swap(route[i], route[i+1])
				}
				pa = place[op.Wires[0]]
			}
			mapped := op.Copy()
			mapped.Wires = []int{pa, pb}
			out = append(out, mapped)
		default:
			return nil, fmt.Errorf("operation %s acts on %d wires; decompose it before transpiling", op.Name, op.Arity())
		}
	}

	result := t.WithOperations(out)
	for i := range result.Measurements {
		m := &result.Measurements[i]
		for j, wire := range m.Wires {
			m.Wires[j] = place[wire]
		}
		if m.Observable != nil {
			for j, wire := range m.Observable.Wires {
				m.Observable.Wires[j] = place[wire]
			}
		}
	}
	for p := range owner {
		if p+1 > result.NumWires {
			result.NumWires = p + 1
		}
	}
	return result, nil
}
