// Package transform provides the registry of named circuit transforms.
//
// A transform maps a circuit program to a new program. Applying one through
// the Engine never mutates its input: the result is a cloned
// circuit.Representation whose program lazily composes the transform with
// the original, and whose log gains a record with before and after
// statistics.
//
// Simple transforms take no parameters:
//
//	cancel_inverses     remove adjacent operations that undo each other
//	merge_rotations     add the angles of adjacent rotations of one kind
//	commute_controlled  move single-wire gates through controlled gates (direction)
//	simplify            drop identities and zero rotations, resolve adjoints
//	adjoint             invert the whole circuit
//
// Parameterized transforms:
//
//	decompose   gate_set (required), max_expansion
//	transpile   coupling_map (required)
//
// Example:
//
//	eng := transform.NewEngine(tel)
//	out, err := eng.ApplySequence(ctx, rep, []transform.Step{
//	    {Name: transform.CancelInverses},
//	    {Name: transform.Decompose, Params: transform.Params{"gate_set": []string{"CNOT", "RZ", "RX"}}},
//	})
package transform
