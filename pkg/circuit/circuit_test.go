package circuit

import (
	"math"
	"strings"
	"testing"
)

func TestLookupGate_Aliases(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"H", "Hadamard"},
		{"X", "PauliX"},
		{"CX", "CNOT"},
		{"CCX", "Toffoli"},
		{"Adjoint(S)", "S"},
		{"Adjoint(Adjoint(T))", "T"},
	}
	for _, tt := range tests {
		g, ok := LookupGate(tt.name)
		if !ok {
			t.Errorf("LookupGate(%q) not found", tt.name)
			continue
		}
		if g.Name != tt.want {
			t.Errorf("LookupGate(%q) = %s, want %s", tt.name, g.Name, tt.want)
		}
	}
	if _, ok := LookupGate("NotAGate"); ok {
		t.Error("unknown gate should not resolve")
	}
}

func TestInverse(t *testing.T) {
	tests := []struct {
		op   Operation
		want Operation
	}{
		{Operation{Name: "Hadamard", Wires: []int{0}}, Operation{Name: "Hadamard", Wires: []int{0}}},
		{Operation{Name: "RX", Wires: []int{0}, Params: []float64{0.5}}, Operation{Name: "RX", Wires: []int{0}, Params: []float64{-0.5}}},
		{Operation{Name: "S", Wires: []int{1}}, Operation{Name: "Adjoint(S)", Wires: []int{1}}},
		{Operation{Name: "Adjoint(T)", Wires: []int{0}}, Operation{Name: "T", Wires: []int{0}}},
		{Operation{Name: "Rot", Wires: []int{0}, Params: []float64{1, 2, 3}}, Operation{Name: "Rot", Wires: []int{0}, Params: []float64{-3, -2, -1}}},
	}
	for _, tt := range tests {
		got := Inverse(tt.op)
		if got.Name != tt.want.Name || !equalInts(got.Wires, tt.want.Wires) || !paramsEqual(got.Params, tt.want.Params, 1) {
			t.Errorf("Inverse(%v) = %v, want %v", tt.op, got, tt.want)
		}
		if !AreInverses(tt.op, got) {
			t.Errorf("AreInverses(%v, %v) = false", tt.op, got)
		}
	}
}

func TestAreInverses_Wires(t *testing.T) {
	cz01 := Operation{Name: "CZ", Wires: []int{0, 1}}
	cz10 := Operation{Name: "CZ", Wires: []int{1, 0}}
	if !AreInverses(cz01, cz10) {
		t.Error("CZ is symmetric in its wires")
	}

	cnot01 := Operation{Name: "CNOT", Wires: []int{0, 1}}
	cnot10 := Operation{Name: "CNOT", Wires: []int{1, 0}}
	if AreInverses(cnot01, cnot10) {
		t.Error("CNOT with swapped control and target does not cancel")
	}

	tof := Operation{Name: "Toffoli", Wires: []int{0, 1, 2}}
	tofSwapped := Operation{Name: "Toffoli", Wires: []int{1, 0, 2}}
	if !AreInverses(tof, tofSwapped) {
		t.Error("Toffoli controls are interchangeable")
	}
}

func TestTape_Validate(t *testing.T) {
	tests := []struct {
		name    string
		tape    *Tape
		wantErr string
	}{
		{"valid", bellTape(), ""},
		{"unknown gate", NewBuilder(1).Op("Foo", []int{0}).Tape(), "unknown gate"},
		{"wrong arity", NewBuilder(2).Op("CNOT", []int{0}).Tape(), "expected 2 wires"},
		{"out of range", NewBuilder(2).Op("Hadamard", []int{5}).Tape(), "out of range"},
		{"repeated wire", NewBuilder(2).Op("CNOT", []int{1, 1}).Tape(), "repeated"},
		{"missing param", NewBuilder(1).Op("RX", []int{0}).Tape(), "expected 1 parameters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tape.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestBuildDAG_Depth(t *testing.T) {
	tests := []struct {
		name  string
		tape  *Tape
		depth int
	}{
		{"empty", NewBuilder(1).Tape(), 0},
		{"parallel", NewBuilder(3).Op("H", []int{0}).Op("H", []int{1}).Op("H", []int{2}).Tape(), 1},
		{"bell", bellTape(), 2},
		{"ghz", NewBuilder(3).Op("H", []int{0}).Op("CNOT", []int{0, 1}).Op("CNOT", []int{1, 2}).Tape(), 3},
		{"disjoint pairs", NewBuilder(4).Op("CNOT", []int{0, 1}).Op("CNOT", []int{2, 3}).Tape(), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dag := BuildDAG(tt.tape.Operations)
			if dag.Depth() != tt.depth {
				t.Errorf("Depth() = %d, want %d", dag.Depth(), tt.depth)
			}
		})
	}
}

func TestBuildDAG_Edges(t *testing.T) {
	dag := BuildDAG(bellTape().Operations)

	if roots := dag.Roots(); len(roots) != 1 || roots[0] != 0 {
		t.Errorf("Roots() = %v, want [0]", roots)
	}
	if len(dag.Nodes[1].Predecessors) != 1 || dag.Nodes[1].Predecessors[0] != 0 {
		t.Errorf("CNOT predecessors = %v", dag.Nodes[1].Predecessors)
	}
	dot := dag.ToDOT()
	if !strings.Contains(dot, "\"op0\" -> \"op1\"") {
		t.Errorf("DOT output missing edge:\n%s", dot)
	}
	if !strings.Contains(dot, "\"start\" -> \"op0\"") || strings.Contains(dot, "\"start\" -> \"op1\"") {
		t.Errorf("DOT entry edges should reach only the roots:\n%s", dot)
	}

	parallel := BuildDAG(NewBuilder(2).Op("Hadamard", []int{0}).Op("PauliX", []int{1}).Tape().Operations)
	if roots := parallel.Roots(); len(roots) != 2 {
		t.Errorf("Roots() = %v, want both operations", roots)
	}
	if empty := BuildDAG(nil).ToDOT(); strings.Contains(empty, "start") {
		t.Errorf("empty DAG has an entry point:\n%s", empty)
	}
}

func TestSummarize_TrainableParams(t *testing.T) {
	tape := NewBuilder(2).
		Op("RX", []int{0}, 0.1).
		Op("Rot", []int{1}, 0.1, 0.2, 0.3).
		Op("CNOT", []int{0, 1}).
		Measure(MeasureExpval, 0).
		Tape()

	s := Summarize(tape)
	if s.NumTrainableParams != 4 {
		t.Errorf("NumTrainableParams = %d, want 4", s.NumTrainableParams)
	}
	if s.NumOperations != 3 {
		t.Errorf("measurements must not count as operations, got %d", s.NumOperations)
	}
}

func TestCompareSummaries(t *testing.T) {
	before := ResourceSummary{NumOperations: 10, Depth: 4}
	after := ResourceSummary{NumOperations: 6, Depth: 3}

	imp := CompareSummaries(before, after)
	if imp.OperationsReduced != 4 || imp.DepthReduced != 1 {
		t.Errorf("reductions = %d/%d", imp.OperationsReduced, imp.DepthReduced)
	}
	if math.Abs(imp.OperationsPercent-40) > 1e-9 {
		t.Errorf("OperationsPercent = %v, want 40", imp.OperationsPercent)
	}
	if math.Abs(imp.DepthPercent-25) > 1e-9 {
		t.Errorf("DepthPercent = %v, want 25", imp.DepthPercent)
	}
}

// The empty-before case reports 0% rather than not-applicable.
func TestCompareSummaries_ZeroBefore(t *testing.T) {
	imp := CompareSummaries(ResourceSummary{}, ResourceSummary{})
	if imp.OperationsPercent != 0 || imp.DepthPercent != 0 {
		t.Errorf("expected 0%% for empty before, got %v/%v", imp.OperationsPercent, imp.DepthPercent)
	}
}

func TestDraw_Bell(t *testing.T) {
	out := Draw(bellTape(), DefaultDrawOptions())
	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d:\n%s", len(lines), out)
	}
	if lines[0] != "0: ──H─╭●─┤  State" {
		t.Errorf("line 0 = %q", lines[0])
	}
	if lines[1] != "1: ────╰X─┤  State" {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestDraw_Params(t *testing.T) {
	tape := NewBuilder(1).Op("RX", []int{0}, math.Pi/2).Measure(MeasureProbs, 0).Tape()

	with := Draw(tape, DrawOptions{ShowParams: true, Decimals: 2})
	if !strings.Contains(with, "RX(1.57)") {
		t.Errorf("expected parameter label, got %q", with)
	}
	without := Draw(tape, DrawOptions{})
	if strings.Contains(without, "1.57") {
		t.Errorf("parameters should be hidden, got %q", without)
	}
}

func TestDraw_Wraps(t *testing.T) {
	b := NewBuilder(1)
	for i := 0; i < 40; i++ {
		b.Op("Hadamard", []int{0})
	}
	out := Draw(b.Tape(), DrawOptions{MaxLength: 30})
	if !strings.Contains(out, "\n\n") {
		t.Errorf("expected wrapped blocks, got:\n%s", out)
	}
	for _, line := range strings.Split(out, "\n") {
		if n := len([]rune(line)); n > 30 {
			t.Errorf("line exceeds max length (%d): %q", n, line)
		}
	}
}

func TestTransformedProgram_Lazy(t *testing.T) {
	base := &countingProgram{tape: bellTape()}
	dropFirst := func(t *Tape) (*Tape, error) {
		return t.WithOperations(t.Operations[1:]), nil
	}
	p := Transform(base, "drop_first", dropFirst)

	if base.traces != 0 {
		t.Fatal("wrapping must not trace the base program")
	}
	tape, err := p.Trace()
	if err != nil {
		t.Fatalf("Trace() error = %v", err)
	}
	if len(tape.Operations) != 1 || tape.Operations[0].Name != "CNOT" {
		t.Errorf("unexpected operations %v", tape.Operations)
	}
	again, _ := base.Trace()
	if len(again.Operations) != 2 {
		t.Error("transform must not mutate the base tape")
	}
}
