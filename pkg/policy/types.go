package policy

import (
	"strconv"
	"time"

	"github.com/skadi/skadi/pkg/circuit"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for circuits that should not be accepted.
	SeverityError Severity = "error"

	// SeverityCritical is for circuits that must be rejected.
	SeverityCritical Severity = "critical"
)

// Blocking reports whether the severity rejects the circuit.
func (s Severity) Blocking() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a named Rego module producing a deny set.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Violation is a single denied rule.
type Violation struct {
	// Policy is the name of the policy that was violated.
	Policy string `json:"policy"`

	// CircuitID identifies the evaluated circuit.
	CircuitID string `json:"circuit_id,omitempty"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Remediation suggests a fix, usually a transform to apply.
	Remediation string `json:"remediation,omitempty"`

	// Details contains additional violation details.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Result is the outcome of evaluating every enabled policy against one
// circuit.
type Result struct {
	// Allowed is false when any violation is blocking.
	Allowed bool `json:"allowed"`

	// Violations lists blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings lists non-blocking violations.
	Warnings []Violation `json:"warnings,omitempty"`

	// Errors lists policies that failed to evaluate.
	Errors []string `json:"errors,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the policies were evaluated.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// All returns blocking violations followed by warnings.
func (r *Result) All() []Violation {
	out := make([]Violation, 0, len(r.Violations)+len(r.Warnings))
	out = append(out, r.Violations...)
	return append(out, r.Warnings...)
}

// Limits are the thresholds read by the built-in policies. A zero limit
// disables its policy.
type Limits struct {
	MaxDepth           int `json:"max_depth" yaml:"max_depth"`
	MaxWires           int `json:"max_wires" yaml:"max_wires"`
	MaxEntanglingGates int `json:"max_entangling_gates" yaml:"max_entangling_gates"`
}

// DefaultLimits returns the thresholds used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxDepth:           100,
		MaxWires:           20,
		MaxEntanglingGates: 50,
	}
}

// Summary is the policy view of a resource summary. Gate sizes are keyed
// by the decimal operand count.
type Summary struct {
	NumOperations      int            `json:"num_operations"`
	Depth              int            `json:"depth"`
	NumWires           int            `json:"num_wires"`
	NumUsedWires       int            `json:"num_used_wires"`
	NumTrainableParams int            `json:"num_trainable_params"`
	GateTypes          map[string]int `json:"gate_types"`
	GateSizes          map[string]int `json:"gate_sizes"`
}

// Input is the document policies are evaluated against.
type Input struct {
	CircuitID   string            `json:"circuit_id"`
	Description string            `json:"description,omitempty"`
	Complexity  string            `json:"complexity,omitempty"`
	Summary     Summary           `json:"summary"`
	Limits      Limits            `json:"limits"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// NewInput builds a policy input from a circuit summary.
func NewInput(circuitID string, s circuit.ResourceSummary, complexity string, limits Limits) *Input {
	in := &Input{
		CircuitID:  circuitID,
		Complexity: complexity,
		Limits:     limits,
		Summary: Summary{
			NumOperations:      s.NumOperations,
			Depth:              s.Depth,
			NumWires:           s.NumWires,
			NumUsedWires:       s.NumUsedWires,
			NumTrainableParams: s.NumTrainableParams,
			GateTypes:          make(map[string]int, len(s.GateTypes)),
			GateSizes:          make(map[string]int, len(s.GateSizes)),
		},
	}
	for name, n := range s.GateTypes {
		in.Summary.GateTypes[name] = n
	}
	for size, n := range s.GateSizes {
		in.Summary.GateSizes[strconv.Itoa(size)] = n
	}
	return in
}
