package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const redundantSource = `import pennylane as qml

dev = qml.device("default.qubit", wires=2)

@qml.qnode(dev)
def circuit():
    # two Hadamards cancel
    qml.Hadamard(wires=0)
    qml.Hadamard(wires=0)
    qml.Hadamard(wires=0)
    qml.CNOT(wires=[0, 1])
    return qml.probs(wires=[0, 1])
`

// isolate keeps settings independent of the developer environment.
func isolate(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"SKADI_API_KEY", "OPENROUTER_API_KEY", "SKADI_MODEL", "SKADI_BASE_URL",
		"SKADI_CIRCUIT_FILE", "SKADI_METRICS_ADDR", "SKADI_USE_KNOWLEDGE",
	} {
		t.Setenv(name, "")
	}
	t.Setenv("SKADI_DOCS_DB", ":memory:")
	t.Setenv("SKADI_LOG_LEVEL", "error")
}

func writeCircuit(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "circuit.py")
	if err := os.WriteFile(path, []byte(source), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolate(t)
	cmd := newRootCommand("test", "none", "today")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		pairs   []string
		want    map[string]string
		wantErr bool
	}{
		{"none", nil, nil, false},
		{"single", []string{"gate_set=RX,RY"}, map[string]string{"gate_set": "RX,RY"}, false},
		{"trimmed", []string{" coupling_map = 0-1,1-2 "}, map[string]string{"coupling_map": "0-1,1-2"}, false},
		{"empty value", []string{"name="}, map[string]string{"name": ""}, false},
		{"missing equals", []string{"gate_set"}, nil, true},
		{"missing key", []string{"=RX"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.pairs)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseParams() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parseParams() = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("param %s = %v, want %s", k, got[k], v)
				}
			}
		})
	}
}

func TestTransformCommand_SavesTransformedProgram(t *testing.T) {
	path := writeCircuit(t, redundantSource)
	out, err := execute(t, "transform", "cancel_inverses", "--file", path)
	if err != nil {
		t.Fatalf("transform error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "Operations: 4 -> 2") {
		t.Errorf("output lacks the improvement:\n%s", out)
	}

	saved, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(saved), "qml.Hadamard"); got != 1 {
		t.Errorf("saved source has %d Hadamards, want 1:\n%s", got, saved)
	}

	// The saved file loads back as the transformed circuit.
	out, err = execute(t, "analyze", "--json", "--no-diagram", "--file", path)
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	var res struct {
		Specs struct {
			NumOperations int `json:"num_operations"`
		} `json:"specs"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("analyze output is not JSON: %v\n%s", err, out)
	}
	if res.Specs.NumOperations != 2 {
		t.Errorf("reloaded operations = %d, want 2", res.Specs.NumOperations)
	}
}

func TestTransformCommand_Events(t *testing.T) {
	path := writeCircuit(t, redundantSource)
	out, err := execute(t, "transform", "cancel_inverses", "--file", path,
		"--events", "info", "--event-types", "transform.applied")
	if err != nil {
		t.Fatalf("transform error = %v\n%s", err, out)
	}
	if !strings.Contains(out, "info    transform.applied circuit=") {
		t.Errorf("output lacks the transform event:\n%s", out)
	}

	path = writeCircuit(t, redundantSource)
	out, err = execute(t, "transform", "cancel_inverses", "--file", path, "--events", "warning")
	if err != nil {
		t.Fatalf("transform error = %v", err)
	}
	if strings.Contains(out, "transform.applied") {
		t.Errorf("info event printed at warning level:\n%s", out)
	}

	if _, err := execute(t, "transform", "cancel_inverses", "--file", path, "--events", "loud"); err == nil {
		t.Error("expected error for unknown event level")
	}
}

func TestTransformCommand_NoSave(t *testing.T) {
	path := writeCircuit(t, redundantSource)
	if _, err := execute(t, "transform", "cancel_inverses", "--save=false", "--file", path); err != nil {
		t.Fatal(err)
	}
	saved, _ := os.ReadFile(path)
	if string(saved) != redundantSource {
		t.Error("circuit file changed without --save")
	}
}

func TestTransformCommand_List(t *testing.T) {
	out, err := execute(t, "transform", "--list")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"cancel_inverses", "merge_rotations", "decompose", "transpile"} {
		if !strings.Contains(out, name) {
			t.Errorf("list lacks %s:\n%s", name, out)
		}
	}
}

func TestTransformCommand_Errors(t *testing.T) {
	path := writeCircuit(t, redundantSource)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown transform", []string{"transform", "teleport", "--file", path}, "teleport"},
		{"bad param", []string{"transform", "decompose", "--param", "gate_set", "--file", path}, "key=value"},
		{"missing file", []string{"transform", "cancel_inverses", "--file", filepath.Join(t.TempDir(), "none.py")}, "skadi generate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestOptimizeCommand_Compare(t *testing.T) {
	path := writeCircuit(t, redundantSource)
	out, err := execute(t, "optimize", "--compare", "--file", path)
	if err != nil {
		t.Fatalf("optimize error = %v", err)
	}
	for _, level := range []string{"(original)", "basic", "default", "aggressive"} {
		if !strings.Contains(out, level) {
			t.Errorf("comparison lacks %s:\n%s", level, out)
		}
	}
	saved, _ := os.ReadFile(path)
	if string(saved) != redundantSource {
		t.Error("--compare must not write the circuit file")
	}
}

func TestOptimizeCommand_Report(t *testing.T) {
	path := writeCircuit(t, redundantSource)
	out, err := execute(t, "optimize", "--level", "basic", "--report", "--file", path)
	if err != nil {
		t.Fatalf("optimize error = %v", err)
	}
	if !strings.Contains(out, "Applied 1 optimization(s)") {
		t.Errorf("output lacks the report:\n%s", out)
	}
}

func TestOptimizeCommand_UnknownLevel(t *testing.T) {
	path := writeCircuit(t, redundantSource)
	if _, err := execute(t, "optimize", "--level", "ludicrous", "--file", path); err == nil {
		t.Error("expected unknown level error")
	}
}

func TestAnalyzeCommand(t *testing.T) {
	path := writeCircuit(t, redundantSource)
	out, err := execute(t, "analyze", "--file", path)
	if err != nil {
		t.Fatalf("analyze error = %v\n%s", err, out)
	}
	for _, want := range []string{"Complexity: simple", "Multi-qubit gates:  1", "Policies: all passed"} {
		if !strings.Contains(out, want) {
			t.Errorf("analysis lacks %q:\n%s", want, out)
		}
	}
}

func TestAnalyzeCommand_Dot(t *testing.T) {
	path := writeCircuit(t, redundantSource)
	out, err := execute(t, "analyze", "--dot", "--file", path)
	if err != nil {
		t.Fatalf("analyze --dot error = %v\n%s", err, out)
	}
	if !strings.HasPrefix(out, "digraph Circuit {") {
		t.Fatalf("output is not DOT:\n%s", out)
	}
	for _, want := range []string{"\"op2\" -> \"op3\"", "\"start\" -> \"op0\"", "CNOT"} {
		if !strings.Contains(out, want) {
			t.Errorf("DOT lacks %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Complexity:") {
		t.Error("--dot should print only the graph")
	}
}

func TestAnalyzeCommand_Compare(t *testing.T) {
	first := writeCircuit(t, redundantSource)
	second := writeCircuit(t, strings.Replace(redundantSource, "    qml.Hadamard(wires=0)\n", "", 2))
	out, err := execute(t, "analyze", "--json", "--file", first, "--compare", second)
	if err != nil {
		t.Fatalf("analyze error = %v", err)
	}
	var cmp struct {
		Differences struct {
			Operations int `json:"operations"`
		} `json:"differences"`
	}
	if err := json.Unmarshal([]byte(out), &cmp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if cmp.Differences.Operations != -2 {
		t.Errorf("operation difference = %d, want -2", cmp.Differences.Operations)
	}
}

func TestGenerateCommand_RequiresAPIKey(t *testing.T) {
	_, err := execute(t, "generate", "a Bell state", "--file", filepath.Join(t.TempDir(), "circuit.py"))
	if err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("error = %v, want missing API key", err)
	}
}

func TestKnowledgeCommands(t *testing.T) {
	notes := filepath.Join(t.TempDir(), "notes.md")
	content := "# Teleportation\n\nTeleportation moves a qubit state using a Bell pair and two classical bits.\n"
	if err := os.WriteFile(notes, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, "knowledge", "ingest", notes)
	if err != nil {
		t.Fatalf("ingest error = %v", err)
	}
	if !strings.Contains(out, "1 chunk(s)") {
		t.Errorf("ingest output = %q", out)
	}

	out, err = execute(t, "knowledge", "stats")
	if err != nil {
		t.Fatalf("stats error = %v", err)
	}
	if !strings.Contains(out, "pennylane_kb") || !strings.Contains(out, "Cached docs: 0") {
		t.Errorf("stats output:\n%s", out)
	}

	out, err = execute(t, "knowledge", "search", "bell", "state", "--top-k", "2")
	if err != nil {
		t.Fatalf("search error = %v", err)
	}
	if !strings.Contains(out, "1. [") {
		t.Errorf("search output:\n%s", out)
	}
}
