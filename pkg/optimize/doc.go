// Package optimize runs named pipelines of circuit transforms and reports
// how much they shrank a circuit.
//
// Levels:
//
//	basic       cancel_inverses
//	default     commute_controlled, cancel_inverses, merge_rotations
//	aggressive  default followed by simplify
//
// Every Optimize call appends a single optimize_<level> record whose
// improvement compares the circuit before and after all passes.
package optimize
