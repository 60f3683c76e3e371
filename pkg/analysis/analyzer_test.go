package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/policy"
	"github.com/skadi/skadi/pkg/synthesis"
)

func rep(b *circuit.Builder, source string) *circuit.Representation {
	return circuit.New(b.Program(), source, "test circuit", nil)
}

func bell() *circuit.Builder {
	return circuit.NewBuilder(2).Op("Hadamard", []int{0}).Op("CNOT", []int{0, 1}).Measure(circuit.MeasureProbs, 0, 1)
}

func chain(n int) *circuit.Builder {
	b := circuit.NewBuilder(2)
	for i := 0; i < n; i++ {
		b.Op("RX", []int{0}, 0.1)
	}
	return b
}

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		name      string
		b         *circuit.Builder
		level     string
		entangled int
		perQubit  float64
	}{
		{"bell", bell(), Simple, 1, 1},
		{"five on one wire", chain(5), Simple, 0, 2.5},
		{"six on one wire", chain(6), Moderate, 0, 3},
		{"ten on one wire", chain(10), Moderate, 0, 5},
		{"eleven deep", chain(11), Complex, 0, 5.5},
		{"empty", circuit.NewBuilder(0), Simple, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassifyComplexity(circuit.Summarize(tt.b.Tape()))
			if c.Level != tt.level {
				t.Errorf("Level = %s, want %s", c.Level, tt.level)
			}
			if c.EntanglingGates != tt.entangled {
				t.Errorf("EntanglingGates = %d, want %d", c.EntanglingGates, tt.entangled)
			}
			if c.OperationsPerQubit != tt.perQubit {
				t.Errorf("OperationsPerQubit = %v, want %v", c.OperationsPerQubit, tt.perQubit)
			}
		})
	}
}

func TestClassifyComplexity_WideShallow(t *testing.T) {
	b := circuit.NewBuilder(21)
	for w := 0; w < 21; w++ {
		b.Op("Hadamard", []int{w})
	}
	if c := ClassifyComplexity(circuit.Summarize(b.Tape())); c.Level != Complex {
		t.Errorf("21 operations at depth 1: Level = %s, want complex", c.Level)
	}
}

func TestCategorizeGates_SumsToTotal(t *testing.T) {
	seeds := []*circuit.Builder{
		bell(),
		chain(3),
		circuit.NewBuilder(3).Op("Toffoli", []int{0, 1, 2}).Op("SWAP", []int{0, 1}).Op("CZ", []int{1, 2}).Op("PauliX", []int{0}),
		circuit.NewBuilder(2).Op("ControlledPhaseShift", []int{0, 1}, 0.2).Op("CRX", []int{0, 1}, 0.3).Op("CY", []int{0, 1}),
		circuit.NewBuilder(1),
	}
	for i, b := range seeds {
		s := circuit.Summarize(b.Tape())
		g := CategorizeGates(s)
		if g.SingleQubitCount+g.MultiQubitCount != s.NumOperations {
			t.Errorf("seed %d: %d + %d != %d", i, g.SingleQubitCount, g.MultiQubitCount, s.NumOperations)
		}
		if g.TotalGates != s.NumOperations {
			t.Errorf("seed %d: TotalGates = %d", i, g.TotalGates)
		}
	}
}

func TestCategorizeGates_Markers(t *testing.T) {
	s := circuit.Summarize(circuit.NewBuilder(3).
		Op("Hadamard", []int{0}).Op("CNOT", []int{0, 1}).Op("CNOT", []int{1, 2}).
		Op("Toffoli", []int{0, 1, 2}).Op("SWAP", []int{0, 2}).Tape())
	g := CategorizeGates(s)
	if g.MultiQubitCount != 4 || g.MultiQubitGates["CNOT"] != 2 {
		t.Errorf("multi = %v (%d)", g.MultiQubitGates, g.MultiQubitCount)
	}
	if g.SingleQubitCount != 1 || g.SingleQubitGates["Hadamard"] != 1 {
		t.Errorf("single = %v (%d)", g.SingleQubitGates, g.SingleQubitCount)
	}
}

func TestCompare(t *testing.T) {
	a := rep(circuit.NewBuilder(2).Op("Hadamard", []int{0}).Op("Hadamard", []int{0}).Op("CNOT", []int{0, 1}), "")
	b := rep(circuit.NewBuilder(3).Op("CNOT", []int{0, 1}), "")

	c, err := Compare(a, b, [2]string{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Names != [2]string{"Circuit 1", "Circuit 2"} {
		t.Errorf("Names = %v", c.Names)
	}
	if c.Differences != (Differences{Operations: -2, Depth: -2, Wires: 1}) {
		t.Errorf("Differences = %+v", c.Differences)
	}
	if c.First.GateTypes["Hadamard"] != 2 || c.Second.Operations != 1 {
		t.Errorf("sides = %+v / %+v", c.First, c.Second)
	}

	c, err = Compare(a, b, [2]string{"original", "optimized"})
	if err != nil {
		t.Fatal(err)
	}
	if c.Names[0] != "original" || c.Names[1] != "optimized" {
		t.Errorf("Names = %v", c.Names)
	}

	if _, err := Compare(a, circuit.New(nil, "", "", nil), [2]string{}); !engine.IsMissingProgram(err) {
		t.Errorf("error = %v, want missing program", err)
	}
}

func TestAnalyze_WithoutSynthesizer(t *testing.T) {
	a := NewAnalyzer(nil)
	out, err := a.Analyze(context.Background(), rep(bell(), ""), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if out.Explanation != "" || out.ExplanationError != "" {
		t.Errorf("unexpected explanation: %+v", out)
	}
	if out.Complexity.Level != Simple || out.Summary.NumOperations != 2 {
		t.Errorf("analysis = %+v", out)
	}
	if out.Diagram == "" {
		t.Error("expected a diagram")
	}
	if out.Policy != nil {
		t.Error("no policy engine configured")
	}

	text, err := a.Explain(context.Background(), rep(bell(), ""))
	if err != nil || text != "" {
		t.Errorf("Explain() = %q, %v", text, err)
	}
}

func TestAnalyze_Explanation(t *testing.T) {
	var prompt string
	stub := synthesis.SynthesizerFunc(func(_ context.Context, p, feedback string) (string, error) {
		prompt = p
		if feedback != "" {
			t.Errorf("feedback = %q", feedback)
		}
		return "A Bell pair.", nil
	})
	a := NewAnalyzer(nil, WithSynthesizer(stub))

	out, err := a.Analyze(context.Background(), rep(bell(), "import pennylane as qml"), DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if out.Explanation != "A Bell pair." {
		t.Errorf("Explanation = %q", out.Explanation)
	}
	for _, want := range []string{
		"- Description: test circuit",
		"- Total operations: 2",
		"- Gate types: {CNOT: 1, Hadamard: 1}",
		"- Complexity level: simple",
		"- Entangling gates: 1",
		"import pennylane as qml",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAnalyze_ExplanationFailureKeepsNumbers(t *testing.T) {
	stub := synthesis.SynthesizerFunc(func(context.Context, string, string) (string, error) {
		return "", errors.New("model offline")
	})
	a := NewAnalyzer(nil, WithSynthesizer(stub))

	out, err := a.Analyze(context.Background(), rep(bell(), ""), DefaultOptions())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if out.ExplanationError != "model offline" || out.Summary.NumOperations != 2 {
		t.Errorf("analysis = %+v", out)
	}
	if _, err := a.Explain(context.Background(), rep(bell(), "")); err == nil {
		t.Error("Explain should surface the synthesizer error")
	}
}

func TestAnalyze_Policies(t *testing.T) {
	eng, err := policy.NewEngine(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	a := NewAnalyzer(nil, WithPolicies(eng, policy.Limits{MaxWires: 1}))

	out, err := a.Analyze(context.Background(), rep(bell(), ""), Options{Policies: true})
	if err != nil {
		t.Fatal(err)
	}
	if out.Policy == nil || out.Policy.Allowed {
		t.Fatalf("policy = %+v, want a blocking violation", out.Policy)
	}
	if out.Diagram != "" {
		t.Error("diagram was not requested")
	}
}

func TestAnalyze_MissingProgram(t *testing.T) {
	_, err := NewAnalyzer(nil).Analyze(context.Background(), circuit.New(nil, "src", "", nil), DefaultOptions())
	if !engine.IsMissingProgram(err) {
		t.Errorf("error = %v, want missing program", err)
	}
}
