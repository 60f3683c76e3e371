// Package knowledge assembles the context that augments circuit
// generation prompts.
//
// A Builder consults registered providers in priority order and combines
// their contexts under a token budget, estimated as one token per four
// characters. Two providers ship with the package: ConceptProvider, a
// keyword matcher over quantum algorithms, gate patterns and terminology,
// and DocsProvider, which serves API documentation from the SQLite doc
// cache in pkg/stores, optionally filling misses from Context7.
//
// Provider failures never fail a build. They are logged at warn level,
// counted in the retrieval metric and the provider is skipped.
package knowledge
