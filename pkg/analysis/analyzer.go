package analysis

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/skadi/skadi/pkg/circuit"
	"github.com/skadi/skadi/pkg/engine"
	"github.com/skadi/skadi/pkg/policy"
	"github.com/skadi/skadi/pkg/synthesis"
	"github.com/skadi/skadi/pkg/telemetry"
)

// Complexity levels.
const (
	Simple   = "simple"
	Moderate = "moderate"
	Complex  = "complex"
)

// Complexity is the coarse classification of a circuit.
type Complexity struct {
	Level              string  `json:"level"`
	TotalOperations    int     `json:"total_operations"`
	Depth              int     `json:"circuit_depth"`
	EntanglingGates    int     `json:"entangling_gates"`
	QubitCount         int     `json:"qubit_count"`
	OperationsPerQubit float64 `json:"operations_per_qubit"`
}

// ClassifyComplexity maps operation count and depth to a level: at most 5
// operations and depth 5 is simple, at most 20 operations and depth 10 is
// moderate, anything larger is complex.
func ClassifyComplexity(s circuit.ResourceSummary) Complexity {
	c := Complexity{
		TotalOperations: s.NumOperations,
		Depth:           s.Depth,
		QubitCount:      s.NumWires,
	}
	switch {
	case s.NumOperations <= 5 && s.Depth <= 5:
		c.Level = Simple
	case s.NumOperations <= 20 && s.Depth <= 10:
		c.Level = Moderate
	default:
		c.Level = Complex
	}
	for size, n := range s.GateSizes {
		if size > 1 {
			c.EntanglingGates += n
		}
	}
	if s.NumWires > 0 {
		c.OperationsPerQubit = float64(s.NumOperations) / float64(s.NumWires)
	}
	return c
}

// multiQubitMarkers are the name fragments that classify a gate as
// multi-qubit.
var multiQubitMarkers = []string{"cnot", "cx", "cz", "swap", "toffoli", "controlled"}

// GateAnalysis splits the gate histogram into single- and multi-qubit gates.
type GateAnalysis struct {
	TotalGates       int            `json:"total_gates"`
	GateTypes        map[string]int `json:"gate_types"`
	GateSizes        map[int]int    `json:"gate_sizes"`
	SingleQubitGates map[string]int `json:"single_qubit_gates"`
	MultiQubitGates  map[string]int `json:"multi_qubit_gates"`
	SingleQubitCount int            `json:"single_qubit_count"`
	MultiQubitCount  int            `json:"multi_qubit_count"`
}

// CategorizeGates classifies gate types by name. A gate is multi-qubit when
// its lowercased name contains one of the markers; every other gate counts
// as single-qubit, so the two counts always sum to the total.
func CategorizeGates(s circuit.ResourceSummary) GateAnalysis {
	g := GateAnalysis{
		TotalGates:       s.NumOperations,
		GateTypes:        make(map[string]int, len(s.GateTypes)),
		GateSizes:        make(map[int]int, len(s.GateSizes)),
		SingleQubitGates: make(map[string]int),
		MultiQubitGates:  make(map[string]int),
	}
	for size, n := range s.GateSizes {
		g.GateSizes[size] = n
	}
	for name, n := range s.GateTypes {
		g.GateTypes[name] = n
		if isMultiQubit(name) {
			g.MultiQubitGates[name] = n
			g.MultiQubitCount += n
		} else {
			g.SingleQubitGates[name] = n
			g.SingleQubitCount += n
		}
	}
	return g
}

func isMultiQubit(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range multiQubitMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Side is one circuit of a comparison.
type Side struct {
	Operations int            `json:"operations"`
	Depth      int            `json:"depth"`
	Wires      int            `json:"wires"`
	GateTypes  map[string]int `json:"gate_types"`
}

// Differences are second minus first.
type Differences struct {
	Operations int `json:"operations"`
	Depth      int `json:"depth"`
	Wires      int `json:"wires"`
}

// Comparison places two circuits side by side.
type Comparison struct {
	Names       [2]string   `json:"circuits"`
	First       Side        `json:"circuit1"`
	Second      Side        `json:"circuit2"`
	Differences Differences `json:"differences"`
}

// Compare computes the statistics of both circuits and their signed
// differences. Empty names default to "Circuit 1" and "Circuit 2".
func Compare(a, b *circuit.Representation, names [2]string) (Comparison, error) {
	if names[0] == "" {
		names[0] = "Circuit 1"
	}
	if names[1] == "" {
		names[1] = "Circuit 2"
	}
	sa, err := a.Statistics(false)
	if err != nil {
		return Comparison{}, fmt.Errorf("%s: %w", names[0], err)
	}
	sb, err := b.Statistics(false)
	if err != nil {
		return Comparison{}, fmt.Errorf("%s: %w", names[1], err)
	}
	return Comparison{
		Names:  names,
		First:  side(sa),
		Second: side(sb),
		Differences: Differences{
			Operations: sb.NumOperations - sa.NumOperations,
			Depth:      sb.Depth - sa.Depth,
			Wires:      sb.NumWires - sa.NumWires,
		},
	}, nil
}

func side(s circuit.ResourceSummary) Side {
	types := make(map[string]int, len(s.GateTypes))
	for name, n := range s.GateTypes {
		types[name] = n
	}
	return Side{Operations: s.NumOperations, Depth: s.Depth, Wires: s.NumWires, GateTypes: types}
}

// Options select the optional parts of Analyze.
type Options struct {
	Explanation   bool
	Visualization bool
	Policies      bool
}

// DefaultOptions enables every part.
func DefaultOptions() Options {
	return Options{Explanation: true, Visualization: true, Policies: true}
}

// Analysis is the full report on one circuit.
type Analysis struct {
	CircuitID   string                  `json:"circuit_id"`
	Description string                  `json:"description"`
	Summary     circuit.ResourceSummary `json:"specs"`
	Complexity  Complexity              `json:"complexity"`
	Gates       GateAnalysis            `json:"gates"`
	Diagram     string                  `json:"visualization,omitempty"`
	Explanation string                  `json:"explanation,omitempty"`

	// ExplanationError is set when the explanation was requested but could
	// not be produced. Numeric results are still valid.
	ExplanationError string         `json:"explanation_error,omitempty"`
	Policy           *policy.Result `json:"policy,omitempty"`
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithSynthesizer enables explanations through s.
func WithSynthesizer(s synthesis.Synthesizer) Option {
	return func(a *Analyzer) { a.synth = s }
}

// WithPolicies evaluates eng with limits during Analyze.
func WithPolicies(eng *policy.Engine, limits policy.Limits) Option {
	return func(a *Analyzer) {
		a.policies = eng
		a.limits = limits
	}
}

// Analyzer derives reports from circuit statistics.
type Analyzer struct {
	synth    synthesis.Synthesizer
	policies *policy.Engine
	limits   policy.Limits
	tel      *telemetry.Telemetry
}

// NewAnalyzer creates an analyzer. Without a synthesizer no explanations
// are produced; without a policy engine no policies are evaluated.
func NewAnalyzer(tel *telemetry.Telemetry, opts ...Option) *Analyzer {
	a := &Analyzer{
		limits: policy.DefaultLimits(),
		tel:    tel.Component("analysis"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze reports on rep. Explanation failures are recorded in the
// analysis and never fail the call.
func (a *Analyzer) Analyze(ctx context.Context, rep *circuit.Representation, opts Options) (*Analysis, error) {
	if !rep.HasProgram() {
		return nil, engine.NewMissingProgramError("analyze")
	}
	stats, err := rep.Statistics(false)
	if err != nil {
		return nil, err
	}

	out := &Analysis{
		CircuitID:   rep.ID(),
		Description: rep.Description(),
		Summary:     stats,
		Complexity:  ClassifyComplexity(stats),
		Gates:       CategorizeGates(stats),
	}
	if opts.Visualization {
		diagram, err := rep.Diagram(circuit.DefaultDrawOptions())
		if err != nil {
			return nil, err
		}
		out.Diagram = diagram
	}

	if opts.Policies && a.policies != nil {
		res, err := a.policies.Evaluate(ctx, policy.NewInput(rep.ID(), stats, out.Complexity.Level, a.limits))
		if err != nil {
			return nil, fmt.Errorf("evaluating policies: %w", err)
		}
		out.Policy = res
	}

	if opts.Explanation && a.synth != nil {
		text, err := a.explain(ctx, rep, out)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			a.tel.Logger.WithCircuitID(rep.ID()).WithError(err).Warn("explanation failed")
			out.ExplanationError = err.Error()
		} else {
			out.Explanation = text
		}
	}
	return out, nil
}

// Explain asks the synthesizer for a natural-language explanation of rep.
// It returns an empty string when no synthesizer is configured.
func (a *Analyzer) Explain(ctx context.Context, rep *circuit.Representation) (string, error) {
	if a.synth == nil {
		return "", nil
	}
	report, err := a.Analyze(ctx, rep, Options{Visualization: true})
	if err != nil {
		return "", err
	}
	return a.explain(ctx, rep, report)
}

func (a *Analyzer) explain(ctx context.Context, rep *circuit.Representation, report *Analysis) (string, error) {
	return a.synth.Generate(ctx, ExplanationPrompt(rep, report), "")
}

// ExplanationPrompt renders the explanation request for a report.
func ExplanationPrompt(rep *circuit.Representation, report *Analysis) string {
	description := rep.Description()
	if description == "" {
		description = "Not provided"
	}
	code := rep.Source()
	if code == "" {
		code = "Not available"
	}

	var b strings.Builder
	b.WriteString("Analyze and explain this quantum circuit in clear, concise language.\n\n")
	b.WriteString("Circuit Information:\n")
	fmt.Fprintf(&b, "- Description: %s\n", description)
	fmt.Fprintf(&b, "- Total operations: %d\n", report.Summary.NumOperations)
	fmt.Fprintf(&b, "- Circuit depth: %d\n", report.Summary.Depth)
	fmt.Fprintf(&b, "- Qubits: %d\n", report.Summary.NumWires)
	fmt.Fprintf(&b, "- Gate types: %s\n", formatHistogram(report.Summary.GateTypes))
	fmt.Fprintf(&b, "- Complexity level: %s\n", report.Complexity.Level)
	fmt.Fprintf(&b, "- Entangling gates: %d\n\n", report.Complexity.EntanglingGates)
	fmt.Fprintf(&b, "Circuit Diagram:\n%s\n\n", report.Diagram)
	fmt.Fprintf(&b, "Code:\n%s\n\n", code)
	b.WriteString("Please provide:\n")
	b.WriteString("1. What quantum algorithm or pattern this circuit implements\n")
	b.WriteString("2. Key operations and their purpose\n")
	b.WriteString("3. Expected behavior and use cases\n")
	b.WriteString("4. Any notable characteristics or optimizations\n\n")
	b.WriteString("Keep the explanation concise and suitable for someone familiar with quantum computing basics.")
	return b.String()
}

func formatHistogram(h map[string]int) string {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %d", name, h[name])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
