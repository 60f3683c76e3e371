package knowledge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/skadi/skadi/pkg/stores"
	"github.com/skadi/skadi/pkg/telemetry"
)

// Defaults for the API documentation provider.
const (
	DefaultLibraryID = "/pennylane/pennylane"
	DefaultDocTokens = 2000
	DefaultDocsTopK  = 5

	// KindAPIDoc marks a cached API documentation result.
	KindAPIDoc = "api_documentation"
	// KindChunk marks a result from an ingested document.
	KindChunk = "chunk"

	docsHeader = "## Relevant PennyLane API:\n\n"
)

// Chunking settings for ingested documents.
const (
	ChunkSize    = 1000
	ChunkOverlap = ChunkSize / 10
)

var (
	defaultSeparators  = []string{"\n\n", "\n", " ", ""}
	pythonSeparators   = []string{"\nclass ", "\ndef ", "\n\t", "\n", " "}
	markdownSeparators = []string{
		"\n# ", "\n## ", "\n### ", "\n#### ", "\n##### ", "\n###### ",
		"\n\n", "\n", " ", "",
	}
)

// Fetcher retrieves live documentation for a library topic.
type Fetcher interface {
	Fetch(ctx context.Context, libraryID, topic string, tokens int) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, libraryID, topic string, tokens int) (string, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, libraryID, topic string, tokens int) (string, error) {
	return f(ctx, libraryID, topic, tokens)
}

// DocsOptions configures a DocsProvider.
type DocsOptions struct {
	LibraryID string
	Tokens    int
	// Fetcher fills cache misses. Without one only cached and ingested
	// documentation is served.
	Fetcher Fetcher
	// ChunkResults bounds the ingested chunks added to a context.
	ChunkResults int
}

// DocsProvider serves API documentation from the doc cache.
type DocsProvider struct {
	store     stores.DocStore
	fetcher   Fetcher
	libraryID string
	tokens    int
	chunks    int
	tel       *telemetry.Telemetry
}

// NewDocsProvider creates a provider over store.
func NewDocsProvider(store stores.DocStore, opts DocsOptions, tel *telemetry.Telemetry) (*DocsProvider, error) {
	if store == nil {
		return nil, fmt.Errorf("docs provider requires a store")
	}
	if opts.LibraryID == "" {
		opts.LibraryID = DefaultLibraryID
	}
	if opts.Tokens <= 0 {
		opts.Tokens = DefaultDocTokens
	}
	if opts.ChunkResults <= 0 {
		opts.ChunkResults = 3
	}
	return &DocsProvider{
		store:     store,
		fetcher:   opts.Fetcher,
		libraryID: opts.LibraryID,
		tokens:    opts.Tokens,
		chunks:    opts.ChunkResults,
		tel:       tel.Component("knowledge.docs"),
	}, nil
}

// LibraryID returns the library whose documentation is served.
func (p *DocsProvider) LibraryID() string {
	return p.libraryID
}

// Docs returns the documentation for topic from the cache, fetching and
// caching it on a miss when a fetcher is configured. It returns "" when
// nothing is available.
func (p *DocsProvider) Docs(ctx context.Context, topic string) (string, error) {
	key := stores.DocKey(p.libraryID, topic, p.tokens)
	doc, err := p.store.GetDoc(ctx, key)
	if err == nil {
		return doc.Content, nil
	}
	if !errors.Is(err, stores.ErrNotFound) {
		return "", err
	}
	if p.fetcher == nil {
		return "", nil
	}

	content, err := p.fetcher.Fetch(ctx, p.libraryID, topic, p.tokens)
	if err != nil {
		return "", fmt.Errorf("fetching docs for %q: %w", topic, err)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil
	}
	if err := p.CacheDocs(ctx, topic, content, SourceDocs); err != nil {
		p.tel.Logger.WithError(err).Warn("failed to cache fetched docs")
	}
	return content, nil
}

// CacheDocs stores documentation for topic.
func (p *DocsProvider) CacheDocs(ctx context.Context, topic, content, source string) error {
	return p.store.PutDoc(ctx, &stores.Doc{
		LibraryID: p.libraryID,
		Topic:     topic,
		Tokens:    p.tokens,
		Content:   content,
		Source:    source,
	})
}

// NeedsFetch reports whether topic is absent from the cache.
func (p *DocsProvider) NeedsFetch(ctx context.Context, topic string) (bool, error) {
	_, err := p.store.GetDoc(ctx, stores.DocKey(p.libraryID, topic, p.tokens))
	if errors.Is(err, stores.ErrNotFound) {
		return true, nil
	}
	return false, err
}

// GetContext returns the API documentation for query followed by the
// best matching ingested chunks.
func (p *DocsProvider) GetContext(ctx context.Context, query string) (string, error) {
	docs, err := p.Docs(ctx, query)
	if err != nil {
		return "", err
	}
	chunks, err := p.store.SearchChunks(ctx, searchTerms(query), p.chunks)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(chunks)+1)
	if docs != "" {
		parts = append(parts, docs)
	}
	for _, c := range chunks {
		parts = append(parts, c.Content)
	}
	if len(parts) == 0 {
		return "", nil
	}
	return docsHeader + strings.Join(parts, "\n\n"), nil
}

// Search returns the cached documentation as one result with score 1,
// followed by matching ingested chunks, at most topK in total.
func (p *DocsProvider) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		return []Result{}, nil
	}
	doc, err := p.store.GetDoc(ctx, stores.DocKey(p.libraryID, query, p.tokens))
	if err != nil && !errors.Is(err, stores.ErrNotFound) {
		return nil, err
	}

	results := []Result{}
	if doc != nil {
		results = append(results, Result{Content: doc.Content, Score: 1.0, Source: SourceDocs, Kind: KindAPIDoc})
	}

	chunks, err := p.store.SearchChunks(ctx, searchTerms(query), topK-len(results))
	if err != nil {
		return nil, err
	}
	for _, c := range chunks {
		results = append(results, Result{Content: c.Content, Score: c.Score, Source: c.Source, Kind: KindChunk})
	}
	return results, nil
}

// searchTerms keeps the query words longer than three letters.
func searchTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if len(w) > 3 && !seen[w] {
			seen[w] = true
			terms = append(terms, w)
		}
	}
	return terms
}

// Ingest splits content into chunks and stores them under source. The
// splitter is chosen by the extension of source.
func (p *DocsProvider) Ingest(ctx context.Context, source, content string) (int, error) {
	chunks, err := SplitterFor(source).SplitText(content)
	if err != nil {
		return 0, fmt.Errorf("splitting %s: %w", source, err)
	}
	n, err := p.store.AddChunks(ctx, source, chunks)
	if err != nil {
		return 0, err
	}
	p.tel.Logger.WithField("source", source).WithField("chunks", n).Info("ingested documentation")
	return n, nil
}

// IngestFile reads and ingests a file.
func (p *DocsProvider) IngestFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return p.Ingest(ctx, path, string(data))
}

// SplitterFor returns a recursive character splitter tuned to the file type.
func SplitterFor(filename string) textsplitter.TextSplitter {
	separators := defaultSeparators
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		separators = markdownSeparators
	case ".py":
		separators = pythonSeparators
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(ChunkSize),
		textsplitter.WithChunkOverlap(ChunkOverlap),
		textsplitter.WithSeparators(separators),
	)
}

// ExtractCodeSnippets returns the bodies of python and pycon fenced blocks.
func ExtractCodeSnippets(docs string) []string {
	var snippets []string
	var current []string
	inBlock := false
	for _, line := range strings.Split(docs, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "```python"), strings.HasPrefix(trimmed, "```pycon"):
			inBlock = true
			current = nil
		case trimmed == "```" && inBlock:
			inBlock = false
			if len(current) > 0 {
				snippets = append(snippets, strings.Join(current, "\n"))
			}
		case inBlock:
			current = append(current, line)
		}
	}
	return snippets
}

// FormatForPrompt renders up to maxSnippets code examples from docs. Docs
// without snippets are truncated to 500 characters.
func FormatForPrompt(docs string, maxSnippets int) string {
	if docs == "" {
		return ""
	}
	snippets := ExtractCodeSnippets(docs)
	if len(snippets) == 0 {
		return truncateRunes(docs, 500)
	}
	if len(snippets) > maxSnippets {
		snippets = snippets[:maxSnippets]
	}
	var b strings.Builder
	b.WriteString("PennyLane API Reference Examples:\n\n")
	for i, s := range snippets {
		fmt.Fprintf(&b, "Example %d:\n```python\n%s\n```\n\n", i+1, s)
	}
	return b.String()
}

// OperationTopic is the documentation topic for a gate or measurement.
func OperationTopic(operation string) string {
	return fmt.Sprintf("qml.%s %s gate operation", operation, operation)
}

// DeviceTopic is the documentation topic for a device.
func DeviceTopic(device string) string {
	return fmt.Sprintf("qml.device %s device initialization", device)
}
