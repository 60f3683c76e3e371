package knowledge

import (
	"github.com/skadi/skadi/pkg/stores"
	"github.com/skadi/skadi/pkg/telemetry"
)

// Config selects the providers of a default builder.
type Config struct {
	UseConcepts  bool `yaml:"use_pennylane_kb" json:"use_pennylane_kb"`
	ConceptsTopK int  `yaml:"pennylane_kb_top_k" json:"pennylane_kb_top_k" validate:"gte=0"`
	UseDocs      bool `yaml:"use_context7" json:"use_context7"`
	DocsTopK     int  `yaml:"context7_top_k" json:"context7_top_k" validate:"gte=0"`
	MaxTokens    int  `yaml:"max_knowledge_tokens" json:"max_knowledge_tokens" validate:"gte=0"`

	LibraryID string `yaml:"context7_library_id" json:"context7_library_id"`
}

// DefaultConfig enables both providers.
func DefaultConfig() Config {
	return Config{
		UseConcepts:  true,
		ConceptsTopK: DefaultConceptTopK,
		UseDocs:      true,
		DocsTopK:     DefaultDocsTopK,
		MaxTokens:    DefaultMaxTokens,
		LibraryID:    DefaultLibraryID,
	}
}

// NewDefaultBuilder registers the concept provider at priority 1 and the
// docs provider at priority 2. The docs provider is skipped when store is
// nil. fetcher may be nil.
func NewDefaultBuilder(cfg Config, store stores.DocStore, fetcher Fetcher, tel *telemetry.Telemetry) (*Builder, error) {
	b := NewBuilder(cfg.MaxTokens, tel)

	if cfg.UseConcepts {
		concepts := NewConceptProvider()
		if cfg.ConceptsTopK > 0 {
			concepts.TopK = cfg.ConceptsTopK
		}
		if err := b.Register(SourceConcepts, 1, concepts, concepts.TopK); err != nil {
			return nil, err
		}
	}

	if cfg.UseDocs && store != nil {
		docs, err := NewDocsProvider(store, DocsOptions{LibraryID: cfg.LibraryID, Fetcher: fetcher}, tel)
		if err != nil {
			return nil, err
		}
		topK := cfg.DocsTopK
		if topK <= 0 {
			topK = DefaultDocsTopK
		}
		if err := b.Register(SourceDocs, 2, docs, topK); err != nil {
			return nil, err
		}
	}
	return b, nil
}
