// Package interpreter loads generated circuit source into a sandboxed
// Starlark namespace and exposes the resulting circuit function as a
// circuit.Program.
//
// Generated source is written against a Python circuit library. Before
// execution, import statements are removed and decorators are rewritten as
// explicit calls, so
//
//	@qml.qnode(dev)
//	def circuit():
//	    ...
//
// runs as
//
//	def circuit():
//	    ...
//	circuit = qml.qnode(dev)(circuit)
//
// The namespace binds only qml/pennylane (gates, devices, measurements,
// adjoint), np/numpy/math and the Starlark builtins. Loading and tracing
// are bounded by a step budget and a timeout.
package interpreter
