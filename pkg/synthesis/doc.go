// Package synthesis is the program synthesis client: it sends circuit
// prompts to an OpenAI-compatible chat completion endpoint (OpenRouter by
// default) and returns the generated source.
//
// Any type implementing Synthesizer can stand in for the client, which is
// how tests drive the generation pipeline:
//
//	stub := synthesis.SynthesizerFunc(func(ctx context.Context, prompt, feedback string) (string, error) {
//	    return bellSource, nil
//	})
package synthesis
