// Package policy evaluates Open Policy Agent (OPA) Rego policies against
// circuit resource summaries.
//
// Every policy is a Rego module with a deny set. Elements are either strings
// or objects with message, severity and an optional remediation:
//
//	package custom.toffoli
//
//	import rego.v1
//
//	deny contains violation if {
//	    input.summary.gate_types.Toffoli > 0
//	    violation := {
//	        "message": "Toffoli gates are not allowed",
//	        "severity": "error",
//	    }
//	}
//
// The input document carries the circuit id, its complexity class, the
// resource summary (gate_sizes keyed by decimal operand count) and the
// configured limits.
//
// # Built-in Policies
//
//  1. max-depth - depth above limits.max_depth (warning)
//  2. max-wires - more than limits.max_wires wires (error)
//  3. entangling-budget - more multi-wire gates than limits.max_entangling_gates (warning)
//  4. idle-wires - device wires no operation touches (info)
//
// A zero limit disables the matching policy.
//
// # Severity Levels
//
// Violations with severity error or critical make Result.Allowed false.
// Lower severities are reported as warnings.
//
// # Usage
//
//	eng, err := policy.NewEngine(ctx, tel)
//	if err != nil {
//	    return err
//	}
//	result, err := eng.Evaluate(ctx, policy.NewInput(rep.ID(), stats, "simple", policy.DefaultLimits()))
//
// Custom policies are loaded from .rego or .json files with LoadPolicies.
package policy
