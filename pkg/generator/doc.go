// Package generator turns natural-language descriptions into verified
// circuit programs and rewrites existing ones.
//
// The Orchestrator runs a bounded loop. Each attempt drafts source with one
// synthesis call, then verifies it in three stages:
//
//	drafting -> validating -> executing -> compiling -> success
//
// A rejection at any verification stage feeds the reason and the rejected
// code back into the next draft. When the attempt budget is spent the last
// failure is returned inside a synthesis exhausted error.
//
// The Rewriter sends an existing circuit's source, diagram and a
// modification request to the same synthesizer and verifies the reply
// once, without retries.
package generator
