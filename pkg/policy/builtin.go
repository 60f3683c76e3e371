package policy

// Names of the built-in policies.
const (
	MaxDepthPolicy         = "max-depth"
	MaxWiresPolicy         = "max-wires"
	EntanglingBudgetPolicy = "entangling-budget"
	IdleWiresPolicy        = "idle-wires"
)

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		maxDepthPolicy(),
		maxWiresPolicy(),
		entanglingBudgetPolicy(),
		idleWiresPolicy(),
	}
}

// maxDepthPolicy flags circuits deeper than the configured limit.
func maxDepthPolicy() Policy {
	return Policy{
		Name:        MaxDepthPolicy,
		Description: "Flags circuits whose depth exceeds limits.max_depth",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"resources", "depth"},
		Rego: `package skadi.policies.depth

import rego.v1

deny contains violation if {
	limit := input.limits.max_depth
	limit > 0
	input.summary.depth > limit
	violation := {
		"message": sprintf("Circuit depth %d exceeds the limit of %d", [input.summary.depth, limit]),
		"severity": "warning",
		"remediation": "optimize with the default or aggressive level",
	}
}`,
	}
}

// maxWiresPolicy rejects circuits that need more wires than allowed.
func maxWiresPolicy() Policy {
	return Policy{
		Name:        MaxWiresPolicy,
		Description: "Rejects circuits using more than limits.max_wires wires",
		Severity:    SeverityError,
		Enabled:     true,
		Tags:        []string{"resources", "wires"},
		Rego: `package skadi.policies.wires

import rego.v1

deny contains violation if {
	limit := input.limits.max_wires
	limit > 0
	input.summary.num_wires > limit
	violation := {
		"message": sprintf("Circuit uses %d wires, more than the limit of %d", [input.summary.num_wires, limit]),
		"severity": "error",
		"remediation": "rewrite the circuit to use fewer qubits",
	}
}`,
	}
}

// entanglingBudgetPolicy bounds the number of multi-wire gates.
func entanglingBudgetPolicy() Policy {
	return Policy{
		Name:        EntanglingBudgetPolicy,
		Description: "Flags circuits with more multi-wire gates than limits.max_entangling_gates",
		Severity:    SeverityWarning,
		Enabled:     true,
		Tags:        []string{"resources", "entanglement"},
		Rego: `package skadi.policies.entangling

import rego.v1

entangling_gates := sum([n |
	some size, n in input.summary.gate_sizes
	to_number(size) >= 2
])

deny contains violation if {
	limit := input.limits.max_entangling_gates
	limit > 0
	entangling_gates > limit
	violation := {
		"message": sprintf("Circuit has %d multi-wire gates, more than the budget of %d", [entangling_gates, limit]),
		"severity": "warning",
		"remediation": "apply cancel_inverses or commute_controlled",
	}
}`,
	}
}

// idleWiresPolicy reports device wires no operation touches.
func idleWiresPolicy() Policy {
	return Policy{
		Name:        IdleWiresPolicy,
		Description: "Reports device wires that no operation acts on",
		Severity:    SeverityInfo,
		Enabled:     true,
		Tags:        []string{"resources", "wires"},
		Rego: `package skadi.policies.idle

import rego.v1

deny contains violation if {
	input.summary.num_operations > 0
	idle := input.summary.num_wires - input.summary.num_used_wires
	idle > 0
	violation := {
		"message": sprintf("%d of %d wires are never used", [idle, input.summary.num_wires]),
		"severity": "info",
	}
}`,
	}
}
