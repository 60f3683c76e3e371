package circuit

import (
	"errors"
	"testing"

	"github.com/skadi/skadi/pkg/engine"
)

// countingProgram counts how many times it is traced.
type countingProgram struct {
	tape   *Tape
	traces int
}

func (p *countingProgram) Trace() (*Tape, error) {
	p.traces++
	return p.tape.Copy(), nil
}

func (p *countingProgram) Device() Device { return p.tape.Device }

type failingProgram struct{}

func (failingProgram) Trace() (*Tape, error) { return nil, errors.New("wire 7 out of range") }
func (failingProgram) Device() Device        { return Device{Name: "default.qubit", Wires: 1} }

func bellTape() *Tape {
	return NewBuilder(2).
		Op("Hadamard", []int{0}).
		Op("CNOT", []int{0, 1}).
		Measure(MeasureState).
		Tape()
}

func TestRepresentation_BellStatistics(t *testing.T) {
	rep := New(FromTape(bellTape()), "", "Bell pair", nil)

	stats, err := rep.Statistics(false)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.NumOperations != 2 {
		t.Errorf("NumOperations = %d, want 2", stats.NumOperations)
	}
	if stats.Depth != 2 {
		t.Errorf("Depth = %d, want 2", stats.Depth)
	}
	if stats.NumWires != 2 {
		t.Errorf("NumWires = %d, want 2", stats.NumWires)
	}
	if stats.GateTypes["Hadamard"] != 1 || stats.GateTypes["CNOT"] != 1 {
		t.Errorf("GateTypes = %v", stats.GateTypes)
	}
	if stats.GateSizes[1] != 1 || stats.GateSizes[2] != 1 {
		t.Errorf("GateSizes = %v", stats.GateSizes)
	}
}

func TestRepresentation_StatisticsCached(t *testing.T) {
	prog := &countingProgram{tape: bellTape()}
	rep := New(prog, "", "Bell pair", nil)

	first, err := rep.Statistics(false)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	second, _ := rep.Statistics(false)
	if prog.traces != 1 {
		t.Fatalf("expected one trace for two cached reads, got %d", prog.traces)
	}
	if first.NumOperations != second.NumOperations {
		t.Error("cached statistics differ")
	}

	rep.AddTransform("noop", nil, &first, &second)
	if _, err := rep.Statistics(false); err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if prog.traces != 2 {
		t.Errorf("AddTransform should invalidate the cache, traces = %d", prog.traces)
	}

	if _, err := rep.Statistics(true); err != nil {
		t.Fatalf("Statistics(true) error = %v", err)
	}
	if prog.traces != 3 {
		t.Errorf("refresh should recompute, traces = %d", prog.traces)
	}
}

func TestRepresentation_MissingProgram(t *testing.T) {
	rep := New(nil, "import pennylane as qml", "source only", nil)

	if _, err := rep.Statistics(false); !engine.IsMissingProgram(err) {
		t.Errorf("Statistics() error = %v, want missing program", err)
	}
	if _, err := rep.Diagram(DefaultDrawOptions()); !engine.IsMissingProgram(err) {
		t.Errorf("Diagram() error = %v, want missing program", err)
	}
	if rep.Source() == "" {
		t.Error("source should be kept without a program")
	}
}

func TestRepresentation_TraceError(t *testing.T) {
	rep := New(failingProgram{}, "", "broken", nil)
	if _, err := rep.Statistics(false); err == nil {
		t.Fatal("expected trace error")
	}
}

func TestRepresentation_Clone(t *testing.T) {
	rep := New(FromTape(bellTape()), "src", "Bell pair", map[string]string{"model": "m"})
	stats, _ := rep.Statistics(false)
	rep.AddTransform("cancel_inverses", map[string]interface{}{"k": 1}, &stats, &stats)

	replacement := NewBuilder(1).Op("PauliX", []int{0}).Program()
	clone := rep.Clone(replacement, "")

	if clone.ID() == rep.ID() {
		t.Error("clone should get a new id")
	}
	if clone.Source() != "src" {
		t.Errorf("clone should keep the source, got %q", clone.Source())
	}
	if clone.Description() != "Bell pair" {
		t.Errorf("Description() = %q", clone.Description())
	}
	if len(clone.Log()) != 1 {
		t.Fatalf("clone log length = %d, want 1", len(clone.Log()))
	}

	cs, _ := clone.Statistics(false)
	if cs.NumOperations != 1 {
		t.Errorf("clone should use the new program, ops = %d", cs.NumOperations)
	}

	clone.AddTransform("simplify", nil, nil, nil)
	if len(rep.Log()) != 1 {
		t.Error("appending to the clone must not touch the original log")
	}

	meta := clone.Metadata()
	meta["model"] = "changed"
	if clone.Metadata()["model"] != "m" {
		t.Error("Metadata() must return a copy")
	}
}

func TestRepresentation_LogIsCopied(t *testing.T) {
	rep := New(FromTape(bellTape()), "", "Bell", nil)
	stats, _ := rep.Statistics(false)
	rep.AddTransform("merge_rotations", map[string]interface{}{"a": 1}, &stats, &stats,
		WithImprovement(CompareSummaries(stats, stats)))

	log := rep.Log()
	log[0].Params["a"] = 2
	log[0].Before.GateTypes["Hadamard"] = 99

	again := rep.Log()
	if again[0].Params["a"] != 1 {
		t.Error("record params changed through a copy")
	}
	if again[0].Before.GateTypes["Hadamard"] != 1 {
		t.Error("record summary changed through a copy")
	}
	if again[0].Improvement == nil {
		t.Error("improvement should be recorded")
	}
}

func TestRepresentation_SourceRoundTrip(t *testing.T) {
	rep := New(FromTape(bellTape()), "original", "Bell", nil)
	clone := rep.Clone(nil, "rewritten source")

	a, _ := rep.Statistics(false)
	b, _ := clone.Statistics(false)
	if a.NumOperations != b.NumOperations || a.Depth != b.Depth || a.NumWires != b.NumWires {
		t.Errorf("statistics differ after clone: %+v vs %+v", a, b)
	}
}
