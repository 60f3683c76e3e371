// Package stores provides the SQLite-backed documentation cache used by
// the knowledge providers. It holds API documentation responses keyed by
// library, topic and token limit, evicting the least recently used entry
// past a size limit, and the chunks of locally ingested documents.
//
// The cache never stores circuits.
package stores
