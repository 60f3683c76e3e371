// Package analysis derives complexity classes, gate categories and
// side-by-side comparisons from circuit statistics, and optionally asks the
// synthesis client to explain a circuit in prose.
//
// Numeric analysis never depends on the synthesizer: an Analyzer without
// one, or whose synthesizer fails, still returns the full statistics.
package analysis
