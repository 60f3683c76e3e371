package circuit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Operation is one gate application recorded on a tape.
type Operation struct {
	Name   string    `json:"name"`
	Wires  []int     `json:"wires"`
	Params []float64 `json:"params,omitempty"`
}

// Copy returns a deep copy of the operation.
func (o Operation) Copy() Operation {
	c := Operation{Name: o.Name}
	if o.Wires != nil {
		c.Wires = append([]int(nil), o.Wires...)
	}
	if o.Params != nil {
		c.Params = append([]float64(nil), o.Params...)
	}
	return c
}

// Arity returns the number of wires the operation acts on.
func (o Operation) Arity() int {
	return len(o.Wires)
}

// ActsOn reports whether the operation touches wire w.
func (o Operation) ActsOn(w int) bool {
	for _, x := range o.Wires {
		if x == w {
			return true
		}
	}
	return false
}

// SharesWire reports whether two operations touch a common wire.
func (o Operation) SharesWire(other Operation) bool {
	for _, w := range o.Wires {
		if other.ActsOn(w) {
			return true
		}
	}
	return false
}

// String renders the operation in the call syntax of generated source.
func (o Operation) String() string {
	var sb strings.Builder
	sb.WriteString(o.Name)
	sb.WriteString("(")
	for _, p := range o.Params {
		sb.WriteString(strconv.FormatFloat(p, 'g', -1, 64))
		sb.WriteString(", ")
	}
	sb.WriteString("wires=")
	sb.WriteString(formatWires(o.Wires))
	sb.WriteString(")")
	return sb.String()
}

func formatWires(wires []int) string {
	parts := make([]string, len(wires))
	for i, w := range wires {
		parts[i] = strconv.Itoa(w)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MeasurementKind identifies a terminal measurement.
type MeasurementKind string

const (
	MeasureState  MeasurementKind = "state"
	MeasureProbs  MeasurementKind = "probs"
	MeasureExpval MeasurementKind = "expval"
	MeasureVar    MeasurementKind = "var"
	MeasureSample MeasurementKind = "sample"
	MeasureCounts MeasurementKind = "counts"
)

// Measurement is a terminal measurement. Measurements are never counted
// as operations.
type Measurement struct {
	Kind       MeasurementKind `json:"kind"`
	Wires      []int           `json:"wires,omitempty"`
	Observable *Operation      `json:"observable,omitempty"`
}

// Copy returns a deep copy of the measurement.
func (m Measurement) Copy() Measurement {
	c := Measurement{Kind: m.Kind}
	if m.Wires != nil {
		c.Wires = append([]int(nil), m.Wires...)
	}
	if m.Observable != nil {
		obs := m.Observable.Copy()
		c.Observable = &obs
	}
	return c
}

// Label returns the short label used by the drawer.
func (m Measurement) Label() string {
	switch m.Kind {
	case MeasureExpval, MeasureVar:
		name := "?"
		if m.Observable != nil {
			name = m.Observable.Name
			if g, ok := LookupGate(name); ok {
				name = g.Label
			}
		}
		if m.Kind == MeasureVar {
			return "Var[" + name + "]"
		}
		return "<" + name + ">"
	case MeasureProbs:
		return "Probs"
	case MeasureSample:
		return "Sample"
	case MeasureCounts:
		return "Counts"
	default:
		return "State"
	}
}

// Device describes the execution target a program was declared against.
type Device struct {
	Name  string `json:"name"`
	Wires int    `json:"wires"`
	Shots int    `json:"shots,omitempty"`
}

// Tape is the execution trace of a program: the ordered operations and
// terminal measurements it records, plus the declared wire count.
type Tape struct {
	Operations   []Operation   `json:"operations"`
	Measurements []Measurement `json:"measurements"`
	NumWires     int           `json:"num_wires"`
	Device       Device        `json:"device"`
}

// Copy returns a deep copy of the tape.
func (t *Tape) Copy() *Tape {
	if t == nil {
		return nil
	}
	c := &Tape{NumWires: t.NumWires, Device: t.Device}
	c.Operations = make([]Operation, len(t.Operations))
	for i, op := range t.Operations {
		c.Operations[i] = op.Copy()
	}
	c.Measurements = make([]Measurement, len(t.Measurements))
	for i, m := range t.Measurements {
		c.Measurements[i] = m.Copy()
	}
	return c
}

// WithOperations returns a copy of the tape carrying ops instead of its
// own operations.
func (t *Tape) WithOperations(ops []Operation) *Tape {
	c := t.Copy()
	c.Operations = ops
	return c
}

// UsedWires returns the sorted set of wires touched by operations or
// measurements.
func (t *Tape) UsedWires() []int {
	seen := make(map[int]bool)
	for _, op := range t.Operations {
		for _, w := range op.Wires {
			seen[w] = true
		}
	}
	for _, m := range t.Measurements {
		for _, w := range m.Wires {
			seen[w] = true
		}
		if m.Observable != nil {
			for _, w := range m.Observable.Wires {
				seen[w] = true
			}
		}
	}
	wires := make([]int, 0, len(seen))
	for w := range seen {
		wires = append(wires, w)
	}
	sort.Ints(wires)
	return wires
}

// WireCount returns the number of wires to draw and report: the declared
// count, widened to cover any wire the tape actually uses.
func (t *Tape) WireCount() int {
	n := t.NumWires
	for _, w := range t.UsedWires() {
		if w+1 > n {
			n = w + 1
		}
	}
	return n
}

// Validate checks every operation against the gate catalogue and the
// declared wire count.
func (t *Tape) Validate() error {
	for i, op := range t.Operations {
		if err := validateOperation(op, t.NumWires); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	for i, m := range t.Measurements {
		for _, w := range m.Wires {
			if w < 0 || (t.NumWires > 0 && w >= t.NumWires) {
				return fmt.Errorf("measurement %d: wire %d out of range for %d wires", i, w, t.NumWires)
			}
		}
	}
	return nil
}

func validateOperation(op Operation, numWires int) error {
	g, ok := LookupGate(op.Name)
	if !ok {
		return fmt.Errorf("unknown gate %s", op.Name)
	}
	if len(op.Wires) == 0 {
		return fmt.Errorf("%s: no wires given", op.Name)
	}
	if g.NumWires > 0 && len(op.Wires) != g.NumWires {
		return fmt.Errorf("%s: expected %d wires, got %d", op.Name, g.NumWires, len(op.Wires))
	}
	if len(op.Params) != g.NumParams {
		return fmt.Errorf("%s: expected %d parameters, got %d", op.Name, g.NumParams, len(op.Params))
	}
	seen := make(map[int]bool, len(op.Wires))
	for _, w := range op.Wires {
		if w < 0 || (numWires > 0 && w >= numWires) {
			return fmt.Errorf("%s: wire %d out of range for %d wires", op.Name, w, numWires)
		}
		if seen[w] {
			return fmt.Errorf("%s: wire %d repeated", op.Name, w)
		}
		seen[w] = true
	}
	return nil
}
