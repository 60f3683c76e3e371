package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/knowledge"
)

const ghzSource = `import pennylane as qml

dev = qml.device("default.qubit", wires=3)

@qml.qnode(dev)
def circuit():
    qml.Hadamard(wires=0)
    qml.CNOT(wires=[0, 1])
    qml.CNOT(wires=[1, 2])
    return qml.probs(wires=[0, 1, 2])`

func bellCircuit(t *testing.T, o *Orchestrator) *circuit.Representation {
	t.Helper()
	q, err := o.Verify(context.Background(), bellSource)
	if err != nil {
		t.Fatal(err)
	}
	rep := circuit.New(q, bellSource, "Bell state", map[string]string{"owner": "lab"})
	rep.AddTransform("cancel_inverses", nil, nil, nil)
	return rep
}

func TestRewrite(t *testing.T) {
	synth := &scripted{replies: []string{ghzSource}}
	o := newOrchestrator(t, synth, Options{})
	rw := NewRewriter(o, nil)
	rep := bellCircuit(t, o)

	next, err := rw.Rewrite(context.Background(), rep, "Extend to three qubits", DefaultRewriteOptions())
	if err != nil {
		t.Fatalf("Rewrite() error = %v", err)
	}
	if len(synth.calls) != 1 || synth.calls[0].feedback != "" {
		t.Fatalf("calls = %+v", synth.calls)
	}

	prompt := synth.calls[0].prompt
	for _, want := range []string{
		"Original Circuit Description: Bell state",
		"```python\n" + bellSource + "\n```",
		"Current Circuit Diagram:\n0:",
		"Modification Request: Extend to three qubits",
		"1. " + preserveInstruction,
		"Generate the complete modified circuit code below:",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	if next.Description() != "Bell state - Extend to three qubits" {
		t.Errorf("Description() = %q", next.Description())
	}
	if next.Source() != ghzSource || next.Metadata()["owner"] != "lab" {
		t.Errorf("next = %s, metadata %v", next, next.Metadata())
	}
	if next.ID() == rep.ID() {
		t.Error("rewrite must produce a new representation")
	}
	if got := next.Metadata()[MetaRewrites]; got != "1" {
		t.Errorf("rewrites = %q, want 1", got)
	}
	if _, ok := rep.Metadata()[MetaRewrites]; ok {
		t.Error("rewrite modified the original metadata")
	}

	history := next.Log()
	if len(history) != 2 || history[0].Name != "cancel_inverses" || history[1].Name != RewriteTransform {
		t.Fatalf("log = %+v", history)
	}
	rec := history[1]
	if rec.Params["modification_request"] != "Extend to three qubits" || rec.Params["preserve_structure"] != true {
		t.Errorf("params = %v", rec.Params)
	}
	if rec.Before == nil || rec.Before.NumOperations != 2 || rec.After == nil || rec.After.NumOperations != 3 {
		t.Errorf("before/after = %+v / %+v", rec.Before, rec.After)
	}
	if len(rep.Log()) != 1 || rep.Source() != bellSource {
		t.Error("original circuit was modified")
	}
}

func TestRewrite_Errors(t *testing.T) {
	ctx := context.Background()

	o := newOrchestrator(t, &scripted{replies: []string{bellSource}}, Options{})
	if _, err := NewRewriter(o, nil).Rewrite(ctx, circuit.New(nil, "", "empty", nil), "anything", DefaultRewriteOptions()); !engine.IsInvalidInput(err) {
		t.Errorf("Rewrite() without source error = %v", err)
	}

	tests := []struct {
		name   string
		reply  string
		prefix string
		check  func(error) bool
	}{
		{"validation", "qml.X(wires=0)", "code validation failed: ", engine.IsValidation},
		{"execution", syntaxErrorSource, "code execution failed: ", engine.IsExecution},
		{"compilation", noMeasurementSource, "circuit compilation failed: ", engine.IsCompilation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			synth := &scripted{replies: []string{tt.reply}}
			o := newOrchestrator(t, synth, Options{})
			_, err := NewRewriter(o, nil).Rewrite(ctx, bellCircuit(t, o), "change it", DefaultRewriteOptions())
			if err == nil || !strings.HasPrefix(err.Error(), tt.prefix) || !tt.check(err) {
				t.Errorf("Rewrite() error = %v, want prefix %q", err, tt.prefix)
			}
			if len(synth.calls) != 1 {
				t.Errorf("synthesizer called %d times, want 1", len(synth.calls))
			}
		})
	}

	failing := &scripted{replies: []string{""}, errs: []error{errors.New("offline")}}
	o = newOrchestrator(t, failing, Options{})
	if _, err := NewRewriter(o, nil).Rewrite(ctx, bellCircuit(t, o), "x", DefaultRewriteOptions()); err == nil {
		t.Error("expected synthesis failure")
	}
}

func TestRewrite_Knowledge(t *testing.T) {
	provider := &countingProvider{}
	kb := knowledge.NewBuilder(0, nil)
	if err := kb.Register("notes", 1, provider, 3); err != nil {
		t.Fatal(err)
	}

	synth := &scripted{replies: []string{bellSource}}
	o := newOrchestrator(t, synth, Options{Knowledge: kb})
	rw := NewRewriter(o, nil)
	rep := bellCircuit(t, o)

	if _, err := rw.Rewrite(context.Background(), rep, "Add a phase", DefaultRewriteOptions()); err != nil {
		t.Fatal(err)
	}
	prompt := synth.calls[0].prompt
	if !strings.HasPrefix(prompt, rewriteKnowledgeBase) || !strings.Contains(prompt, "Now generate the code for: Add a phase\n\nYou are modifying") {
		t.Errorf("prompt = %q", prompt)
	}

	if _, err := rw.Rewrite(context.Background(), rep, "Add a phase", RewriteOptions{}); err != nil {
		t.Fatal(err)
	}
	if provider.calls != 1 {
		t.Errorf("knowledge consulted %d times, want 1", provider.calls)
	}
	if !strings.HasPrefix(synth.calls[1].prompt, "You are modifying") {
		t.Errorf("prompt without knowledge = %q", synth.calls[1].prompt)
	}
}

func TestOperationChanges_Request(t *testing.T) {
	changes := OperationChanges{
		Replace:                []Replacement{{From: "Hadamard", To: "X"}, {From: "CZ", To: "CNOT"}},
		Remove:                 []string{"PauliZ"},
		AddBeforeMeasurement:   "RZ(0.5, wires=0)",
		AddAfterInitialization: "Hadamard on all wires",
	}
	want := "Replace all Hadamard gates with X. Replace all CZ gates with CNOT. Remove all PauliZ gates. " +
		"Add RZ(0.5, wires=0) before measurement. Add Hadamard on all wires at the beginning of the circuit"
	if got := changes.Request(); got != want {
		t.Errorf("Request() = %q, want %q", got, want)
	}
	if (OperationChanges{}).Request() != "" {
		t.Error("empty changes should render an empty request")
	}
}

func TestModifyOperationsAndSimplify(t *testing.T) {
	synth := &scripted{replies: []string{bellSource}}
	o := newOrchestrator(t, synth, Options{})
	rw := NewRewriter(o, nil)
	rep := bellCircuit(t, o)
	ctx := context.Background()

	if _, err := rw.ModifyOperations(ctx, rep, OperationChanges{}); err == nil {
		t.Error("expected error for empty changes")
	}

	next, err := rw.ModifyOperations(ctx, rep, OperationChanges{Remove: []string{"PauliZ"}})
	if err != nil {
		t.Fatal(err)
	}
	if next.Description() != "Bell state - Remove all PauliZ gates" {
		t.Errorf("Description() = %q", next.Description())
	}
	again, err := rw.ModifyOperations(ctx, next, OperationChanges{Remove: []string{"PauliY"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := again.Metadata()[MetaRewrites]; got != "2" {
		t.Errorf("rewrites after two changes = %q, want 2", got)
	}

	simplified, err := rw.Simplify(ctx, circuit.New(nil, bellSource, "", nil))
	if err != nil {
		t.Fatal(err)
	}
	if simplified.Description() != "Original circuit - "+SimplifyRequest {
		t.Errorf("Description() = %q", simplified.Description())
	}
	last := synth.calls[len(synth.calls)-1].prompt
	if !strings.Contains(last, "1. "+restructureInstruction) || !strings.Contains(last, "Original Circuit Description: Not provided") {
		t.Errorf("simplify prompt = %q", last)
	}
	if rec := simplified.Log()[0]; rec.Before != nil || rec.Params["preserve_structure"] != false {
		t.Errorf("record = %+v", rec)
	}
}
