// Package engine defines the shared vocabulary of the circuit generation
// pipeline: the classified errors raised by every stage and the states of
// the generation state machine.
//
// # Error taxonomy
//
// Every failure surfaced by the pipeline is a *PipelineError carrying a Class
// and a Code. Retryable errors come from the verification stages and are fed
// back into the next drafting attempt:
//
//   - ValidationError: the source failed a structural check
//   - ExecutionError: the source could not be loaded or has no circuit entry
//   - CompilationError: the program failed its dry-run trace
//
// Permanent errors are returned to the caller directly:
//
//   - SynthesisExhausted: the attempt budget ran out (wraps the last failure)
//   - UnknownTransform, UnknownOptimizationLevel: unregistered names
//   - MissingProgram: the circuit carries no executable program
//
// Use errors.Is with the sentinel values or the Is* predicates:
//
//	if errors.Is(err, engine.ErrSynthesisExhausted) {
//	    // inspect errors.Unwrap(err) for the last stage failure
//	}
//
// # Stages
//
// Generation walks Drafting -> Validating -> Executing -> Compiling -> Success.
// A failure in a verification stage returns to Drafting until the budget is
// exhausted, which ends in Failed.
package engine
