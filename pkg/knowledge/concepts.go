package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Concept kinds.
const (
	KindAlgorithm = "algorithm"
	KindPattern   = "pattern"
	KindConcept   = "concept"
)

// DefaultConceptTopK is the number of concepts included in a context.
const DefaultConceptTopK = 3

type algorithm struct {
	name         string
	description  string
	pattern      string
	gates        []string
	applications []string
}

type gatePattern struct {
	name        string
	description string
	gates       []string
}

type term struct {
	name       string
	definition string
}

var algorithms = []algorithm{
	{
		name:         "bell_state",
		description:  "Creates maximum entanglement between two qubits",
		pattern:      "Apply Hadamard to first qubit, then CNOT with first as control",
		gates:        []string{"Hadamard", "CNOT"},
		applications: []string{"quantum teleportation", "superdense coding"},
	},
	{
		name:         "ghz_state",
		description:  "Generalization of Bell state to N qubits",
		pattern:      "Hadamard on first qubit, then chain of CNOTs",
		gates:        []string{"Hadamard", "CNOT"},
		applications: []string{"quantum communication", "error correction"},
	},
	{
		name:         "quantum_fourier_transform",
		description:  "Quantum version of discrete Fourier transform",
		pattern:      "Series of Hadamard and controlled phase rotations",
		gates:        []string{"Hadamard", "CRot", "SWAP"},
		applications: []string{"phase estimation", "Shor's algorithm"},
	},
	{
		name:         "grover_diffusion",
		description:  "Amplification step in Grover's search algorithm",
		pattern:      "Hadamard all, X all, multi-controlled Z, X all, Hadamard all",
		gates:        []string{"Hadamard", "PauliX", "MultiControlledZ"},
		applications: []string{"database search", "optimization"},
	},
	{
		name:         "phase_estimation",
		description:  "Estimates eigenvalue phase of a unitary operator",
		pattern:      "Hadamard on ancilla, controlled unitaries, inverse QFT",
		gates:        []string{"Hadamard", "ControlU", "QFT"},
		applications: []string{"quantum chemistry", "factoring"},
	},
}

var gatePatterns = []gatePattern{
	{name: "superposition", description: "Creates equal superposition of basis states", gates: []string{"Hadamard"}},
	{name: "entanglement", description: "Creates correlation between qubits", gates: []string{"CNOT", "CZ"}},
	{name: "phase_flip", description: "Applies phase to quantum state", gates: []string{"PauliZ", "S", "T", "RZ"}},
	{name: "bit_flip", description: "Rotates state around X-axis", gates: []string{"PauliX", "RX"}},
	{name: "rotation", description: "Arbitrary single-qubit rotation", gates: []string{"RX", "RY", "RZ", "Rot"}},
}

var terminology = []term{
	{"superposition", "Quantum state that is a linear combination of basis states"},
	{"entanglement", "Quantum correlation that cannot be described classically"},
	{"interference", "Amplification/cancellation of probability amplitudes"},
	{"oracle", "Black-box function implemented as a unitary operator"},
	{"ancilla", "Helper qubit used in quantum algorithms"},
	{"variational", "Parameterized circuit optimized via classical-quantum loop"},
}

// Concept is a matched knowledge base entry.
type Concept struct {
	Kind         string   `json:"type"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Pattern      string   `json:"pattern,omitempty"`
	Gates        []string `json:"gates,omitempty"`
	Applications []string `json:"applications,omitempty"`
	Score        float64  `json:"score"`
}

// ConceptProvider matches queries against a fixed catalogue of quantum
// algorithms, gate patterns and terminology.
type ConceptProvider struct {
	// TopK bounds the concepts included by GetContext.
	TopK int
	// IncludePatterns adds gate patterns to the searched entries.
	IncludePatterns bool
}

// NewConceptProvider creates a provider that includes gate patterns.
func NewConceptProvider() *ConceptProvider {
	return &ConceptProvider{TopK: DefaultConceptTopK, IncludePatterns: true}
}

// Concepts returns the topK entries relevant to query, best first.
func (p *ConceptProvider) Concepts(query string, topK int) []Concept {
	q := strings.ToLower(query)
	var out []Concept

	for _, a := range algorithms {
		score := relevance(q, a.name, a.description, a.gates, a.applications)
		if score > 0 {
			out = append(out, Concept{
				Kind:         KindAlgorithm,
				Name:         a.name,
				Description:  a.description,
				Pattern:      a.pattern,
				Gates:        a.gates,
				Applications: a.applications,
				Score:        score,
			})
		}
	}

	if p.IncludePatterns {
		for _, g := range gatePatterns {
			score := relevance(q, g.name, g.description, g.gates, nil)
			if score > 0 {
				out = append(out, Concept{
					Kind:        KindPattern,
					Name:        g.name,
					Description: g.description,
					Gates:       g.gates,
					Score:       score,
				})
			}
		}
	}

	for _, t := range terminology {
		if strings.Contains(q, t.name) {
			out = append(out, Concept{Kind: KindConcept, Name: t.name, Description: t.definition, Score: 2.0})
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if topK >= 0 && len(out) > topK {
		out = out[:topK]
	}
	return out
}

// relevance scores an entry against a lowercased query: 3 for the full
// name, 1 per name word, 0.5 per description word longer than three
// letters, 1.5 per gate and 1 per application found in the query.
func relevance(query, name, description string, gates, applications []string) float64 {
	score := 0.0

	if strings.Contains(query, strings.ReplaceAll(name, "_", " ")) {
		score += 3.0
	}
	for _, word := range strings.Split(name, "_") {
		if strings.Contains(query, word) {
			score += 1.0
		}
	}
	for _, word := range strings.Fields(strings.ToLower(description)) {
		if len(word) > 3 && strings.Contains(query, word) {
			score += 0.5
		}
	}
	for _, gate := range gates {
		if strings.Contains(query, strings.ToLower(gate)) {
			score += 1.5
		}
	}
	for _, app := range applications {
		if strings.Contains(query, app) {
			score += 1.0
		}
	}
	return score
}

// MeasurementGuidance recommends a measurement for the description.
func MeasurementGuidance(query string) string {
	q := strings.ToLower(query)
	switch {
	case containsAny(q, "probability", "probabilities", "prob"):
		return "qml.probs() - Returns probability distribution over computational basis"
	case containsAny(q, "expectation", "expval", "observable"):
		return "qml.expval() - Returns expectation value of an observable"
	case containsAny(q, "sample", "samples", "measurements"):
		return "qml.sample() - Returns measurement samples"
	case containsAny(q, "state", "statevector", "amplitudes"):
		return "qml.state() - Returns full quantum state vector"
	default:
		return "qml.state() - Default: returns full quantum state vector"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// GetContext formats the matched concepts followed by a measurement
// recommendation.
func (p *ConceptProvider) GetContext(ctx context.Context, query string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var lines []string
	if concepts := p.Concepts(query, p.topK()); len(concepts) > 0 {
		lines = append(lines, "## Relevant Quantum Concepts:")
		for _, c := range concepts {
			lines = append(lines, c.format()...)
		}
	}
	lines = append(lines, "\n## Measurement Recommendation:\n"+MeasurementGuidance(query))
	return strings.Join(lines, "\n"), nil
}

// Search returns concepts as knowledge results.
func (p *ConceptProvider) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	concepts := p.Concepts(query, topK)
	results := make([]Result, len(concepts))
	for i, c := range concepts {
		results[i] = Result{
			Content: strings.TrimSpace(strings.Join(c.format(), "\n")),
			Score:   c.Score,
			Source:  SourceConcepts,
			Kind:    c.Kind,
		}
	}
	return results, nil
}

func (p *ConceptProvider) topK() int {
	if p.TopK <= 0 {
		return DefaultConceptTopK
	}
	return p.TopK
}

func (c Concept) format() []string {
	title := titleCase(strings.ReplaceAll(c.Name, "_", " "))
	switch c.Kind {
	case KindAlgorithm:
		return []string{
			"\n**" + title + "**",
			"- " + c.Description,
			"- Pattern: " + c.Pattern,
			"- Key gates: " + strings.Join(c.Gates, ", "),
		}
	case KindPattern:
		return []string{
			"\n**" + title + " Pattern**",
			"- " + c.Description,
			"- Gates: " + strings.Join(c.Gates, ", "),
		}
	default:
		return []string{fmt.Sprintf("\n**%s**: %s", title, c.Description)}
	}
}

// titleCase upper-cases the first letter of every run of letters and
// lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
