package generator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/knowledge"
	"github.com/skadi/skadi/pkg/telemetry"
)

const bellSource = `import pennylane as qml

dev = qml.device("default.qubit", wires=2)

@qml.qnode(dev)
def circuit():
    qml.Hadamard(wires=0)
    qml.CNOT(wires=[0, 1])
    return qml.state()`

const noMeasurementSource = `import pennylane as qml

dev = qml.device("default.qubit", wires=1)

@qml.qnode(dev)
def circuit():
    qml.Hadamard(wires=0)
    return 1`

const syntaxErrorSource = `import pennylane as qml

dev = qml.device("default.qubit", wires=1)

@qml.qnode(dev)
def circuit(:
    return qml.state()`

type call struct {
	prompt   string
	feedback string
}

// scripted replies in order, repeating the last reply once exhausted.
type scripted struct {
	replies []string
	errs    []error
	calls   []call
}

func (s *scripted) Generate(_ context.Context, prompt, feedback string) (string, error) {
	i := len(s.calls)
	s.calls = append(s.calls, call{prompt: prompt, feedback: feedback})
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i >= len(s.replies) {
		i = len(s.replies) - 1
	}
	return s.replies[i], nil
}

func (s *scripted) Model() string { return "test-model" }

func newOrchestrator(t *testing.T, synth *scripted, opts Options) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(synth, opts, nil)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}
	return o
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   string
	}{
		{"empty", "   \n", "Generated code is empty"},
		{"no import", "dev = qml.device('default.qubit')", "Generated code must import pennylane"},
		{"no device", "import pennylane as qml\n", "Generated code must create a quantum device"},
		{"no function", "from pennylane import qml\nqml.device('d')", "Generated code must define a 'circuit' function"},
		{"no decorator", "import pennylane as qml\nqml.device('d')\ndef circuit():\n    return qml.state()", "Generated code must use @qml.qnode decorator"},
		{"no return", "import pennylane as qml\nqml.device('d')\n@qml.qnode(dev)\ndef circuit():\n    pass", "Circuit function must have a return statement"},
		{"valid", bellSource, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.source)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.want {
				t.Fatalf("Validate() error = %v, want %q", err, tt.want)
			}
			if !engine.IsValidation(err) {
				t.Errorf("expected validation error, got %T", err)
			}
		})
	}
}

func TestNewOrchestrator(t *testing.T) {
	if _, err := NewOrchestrator(nil, Options{}, nil); err == nil {
		t.Error("expected error without synthesizer")
	}
	if _, err := NewOrchestrator(&scripted{}, Options{MaxRetries: -1}, nil); err == nil {
		t.Error("expected error for negative retries")
	}
	o := newOrchestrator(t, &scripted{}, Options{})
	if o.MaxRetries() != DefaultMaxRetries {
		t.Errorf("MaxRetries() = %d", o.MaxRetries())
	}
}

func TestGenerate_Bell(t *testing.T) {
	synth := &scripted{replies: []string{"```python\n" + bellSource + "\n```"}}
	o := newOrchestrator(t, synth, Options{})

	res, err := o.Run(context.Background(), "Create a Bell state")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(synth.calls) != 1 {
		t.Errorf("synthesizer called %d times, want 1", len(synth.calls))
	}
	if res.Summary.NumOperations != 2 || res.Summary.Depth != 2 || res.Summary.NumWires != 2 {
		t.Errorf("summary = %+v", res.Summary)
	}
	if res.Source != bellSource {
		t.Errorf("Source = %q", res.Source)
	}
	if len(res.Attempts) != 1 || res.Attempts[0].Stage != engine.StageSuccess {
		t.Errorf("attempts = %+v", res.Attempts)
	}

	meta := res.Circuit.Metadata()
	if meta[MetaModel] != "test-model" || meta[MetaKnowledge] != "false" || meta[MetaAttempts] != "1" {
		t.Errorf("metadata = %v", meta)
	}
	if res.Circuit.Description() != "Create a Bell state" || res.Circuit.Source() != bellSource {
		t.Errorf("circuit = %s", res.Circuit)
	}
}

func TestGenerate_RoundTrip(t *testing.T) {
	o := newOrchestrator(t, &scripted{replies: []string{bellSource}}, Options{})

	q, source, err := o.GenerateWithSource(context.Background(), "Bell pair")
	if err != nil {
		t.Fatal(err)
	}
	again, err := o.Verify(context.Background(), source)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	a, _ := q.Trace()
	b, _ := again.Trace()
	if len(a.Operations) != len(b.Operations) || a.Operations[1].Name != b.Operations[1].Name {
		t.Errorf("round trip changed operations: %v vs %v", a.Operations, b.Operations)
	}
}

func TestGenerate_RetriesWithFeedback(t *testing.T) {
	synth := &scripted{replies: []string{"print('hi')", noMeasurementSource, bellSource}}
	o := newOrchestrator(t, synth, Options{})

	res, err := o.Run(context.Background(), "Bell state")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(synth.calls) != 3 {
		t.Fatalf("synthesizer called %d times, want 3", len(synth.calls))
	}
	if synth.calls[0].feedback != "" {
		t.Errorf("first attempt feedback = %q", synth.calls[0].feedback)
	}
	want := "Previous attempt failed with error: Generated code must import pennylane\n\nPrevious code:\nprint('hi')"
	if synth.calls[1].feedback != want {
		t.Errorf("second attempt feedback = %q, want %q", synth.calls[1].feedback, want)
	}
	if !strings.HasPrefix(synth.calls[2].feedback, "Previous attempt failed with error: Circuit compilation failed") {
		t.Errorf("third attempt feedback = %q", synth.calls[2].feedback)
	}
	for _, c := range synth.calls {
		if c.prompt != synth.calls[0].prompt {
			t.Error("prompt changed between attempts")
		}
	}

	stages := []engine.Stage{engine.StageValidating, engine.StageCompiling, engine.StageSuccess}
	for i, a := range res.Attempts {
		if a.Number != i+1 || a.Stage != stages[i] {
			t.Errorf("attempt %d = %+v, want stage %s", i, a, stages[i])
		}
	}
	if res.Circuit.Metadata()[MetaAttempts] != "3" {
		t.Errorf("attempts metadata = %s", res.Circuit.Metadata()[MetaAttempts])
	}
}

func TestGenerate_Exhausted(t *testing.T) {
	tests := []struct {
		name      string
		retries   int
		reply     string
		wantCheck func(error) bool
	}{
		{"validation", 3, "", engine.IsValidation},
		{"execution", 2, syntaxErrorSource, engine.IsExecution},
		{"compilation", 1, noMeasurementSource, engine.IsCompilation},
		{"five retries", 5, "import pennylane", engine.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tel := telemetry.Nop()
			tel.Events = telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true, History: 20})
			synth := &scripted{replies: []string{tt.reply}}
			o, err := NewOrchestrator(synth, Options{MaxRetries: tt.retries}, tel)
			if err != nil {
				t.Fatal(err)
			}

			_, err = o.Generate(context.Background(), "anything")
			if !engine.IsSynthesisExhausted(err) {
				t.Fatalf("Generate() error = %v, want synthesis exhausted", err)
			}
			if engine.IsRetryable(err) {
				t.Error("exhausted error must not be retryable")
			}
			if !tt.wantCheck(errors.Unwrap(err)) {
				t.Errorf("last error = %v", errors.Unwrap(err))
			}
			if len(synth.calls) != tt.retries {
				t.Errorf("synthesizer called %d times, want %d", len(synth.calls), tt.retries)
			}

			var failed int
			for _, e := range tel.Events.History() {
				if e.Type == telemetry.EventTypeAttemptFailed {
					failed++
				}
			}
			if failed != tt.retries {
				t.Errorf("%d attempt_failed events, want %d", failed, tt.retries)
			}
		})
	}
}

func TestGenerate_SynthesisErrorIsRetried(t *testing.T) {
	synth := &scripted{
		replies: []string{"", bellSource},
		errs:    []error{errors.New("rate limited")},
	}
	o := newOrchestrator(t, synth, Options{})

	res, err := o.Run(context.Background(), "Bell state")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(synth.calls) != 2 {
		t.Errorf("synthesizer called %d times, want 2", len(synth.calls))
	}
	if res.Attempts[0].Stage != engine.StageDrafting {
		t.Errorf("first attempt stage = %s", res.Attempts[0].Stage)
	}
	if !strings.Contains(synth.calls[1].feedback, "rate limited") {
		t.Errorf("feedback = %q", synth.calls[1].feedback)
	}
}

func TestGenerate_PermanentErrorStops(t *testing.T) {
	synth := &scripted{replies: []string{""}, errs: []error{engine.NewInvalidInputError("bad model")}}
	o := newOrchestrator(t, synth, Options{})

	_, err := o.Generate(context.Background(), "Bell state")
	if err == nil || engine.IsSynthesisExhausted(err) {
		t.Fatalf("Generate() error = %v, want the permanent error", err)
	}
	if len(synth.calls) != 1 {
		t.Errorf("synthesizer called %d times, want 1", len(synth.calls))
	}
}

func TestGenerate_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	synth := &scripted{replies: []string{"print()"}}
	canceling := funcSynth(func(c context.Context, prompt, feedback string) (string, error) {
		cancel()
		return synth.Generate(c, prompt, feedback)
	})
	o, err := NewOrchestrator(canceling, Options{MaxRetries: 5}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := o.Generate(ctx, "Bell state"); !errors.Is(err, context.Canceled) {
		t.Fatalf("Generate() error = %v, want context.Canceled", err)
	}
	if len(synth.calls) != 1 {
		t.Errorf("synthesizer called %d times after cancel, want 1", len(synth.calls))
	}
}

type funcSynth func(ctx context.Context, prompt, feedback string) (string, error)

func (f funcSynth) Generate(ctx context.Context, prompt, feedback string) (string, error) {
	return f(ctx, prompt, feedback)
}

func TestGenerate_EmptyDescription(t *testing.T) {
	synth := &scripted{replies: []string{bellSource}}
	o := newOrchestrator(t, synth, Options{})
	if _, err := o.Generate(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty description")
	}
	if len(synth.calls) != 0 {
		t.Error("synthesizer must not be called")
	}
}

type countingProvider struct {
	calls int
}

func (p *countingProvider) GetContext(context.Context, string) (string, error) {
	p.calls++
	return "Use Hadamard then CNOT.", nil
}

func (p *countingProvider) Search(context.Context, string, int) ([]knowledge.Result, error) {
	return nil, nil
}

func TestGenerate_KnowledgeBuiltOnce(t *testing.T) {
	provider := &countingProvider{}
	kb := knowledge.NewBuilder(0, nil)
	if err := kb.Register("notes", 1, provider, 3); err != nil {
		t.Fatal(err)
	}
	synth := &scripted{replies: []string{"", "", bellSource}}
	o := newOrchestrator(t, synth, Options{Knowledge: kb})

	res, err := o.Run(context.Background(), "Bell state")
	if err != nil {
		t.Fatal(err)
	}
	if provider.calls != 1 {
		t.Errorf("knowledge consulted %d times, want 1", provider.calls)
	}
	for i, c := range synth.calls {
		if !strings.Contains(c.prompt, "**KNOWLEDGE CONTEXT:**") || !strings.Contains(c.prompt, "Use Hadamard then CNOT.") {
			t.Errorf("attempt %d prompt lacks knowledge", i+1)
		}
	}
	if res.Circuit.Metadata()[MetaKnowledge] != "true" || res.Knowledge.Empty() {
		t.Errorf("knowledge metadata = %v", res.Circuit.Metadata())
	}
}

func TestVerify(t *testing.T) {
	o := newOrchestrator(t, &scripted{}, Options{})
	ctx := context.Background()

	if _, err := o.Verify(ctx, bellSource); err != nil {
		t.Errorf("Verify(bell) error = %v", err)
	}
	if _, err := o.Verify(ctx, "import pennylane"); !engine.IsValidation(err) {
		t.Errorf("Verify() error = %v, want validation", err)
	}
	_, err := o.Verify(ctx, syntaxErrorSource)
	if !engine.IsExecution(err) || !strings.HasPrefix(err.Error(), "Syntax error in generated code") {
		t.Errorf("Verify() error = %v, want syntax error", err)
	}
	if _, err := o.Verify(ctx, noMeasurementSource); !engine.IsCompilation(err) {
		t.Errorf("Verify() error = %v, want compilation", err)
	}
}
