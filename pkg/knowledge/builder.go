package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/skadi/skadi/pkg/synthesis"
	"github.com/skadi/skadi/pkg/telemetry"
)

// Provider source identifiers.
const (
	SourceConcepts = "pennylane_kb"
	SourceDocs     = "context7"
)

// DefaultMaxTokens is the default knowledge budget in estimated tokens.
const DefaultMaxTokens = 2000

// minTruncatedTokens is the smallest remainder worth filling with a
// truncated provider context.
const minTruncatedTokens = 100

// Provider supplies knowledge for a query.
type Provider interface {
	// GetContext returns formatted context for query, or "" when the
	// provider has nothing relevant.
	GetContext(ctx context.Context, query string) (string, error)
	// Search returns at most topK scored results for query.
	Search(ctx context.Context, query string, topK int) ([]Result, error)
}

// Result is one scored knowledge item.
type Result struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
	Kind    string  `json:"type,omitempty"`
}

// ContextPart is the contribution of one provider to a knowledge context.
type ContextPart struct {
	SourceID string `json:"source"`
	Content  string `json:"content"`
	Priority int    `json:"priority"`
}

// Context is the combined knowledge for one query.
type Context struct {
	Query     string        `json:"query"`
	Parts     []ContextPart `json:"parts"`
	Truncated bool          `json:"truncated"`
}

// Text joins the parts in priority order.
func (c Context) Text() string {
	contents := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		contents[i] = p.Content
	}
	return strings.Join(contents, "\n\n")
}

// Tokens is the estimated size of Text.
func (c Context) Tokens() int {
	return EstimateTokens(c.Text())
}

// Empty reports whether no provider contributed.
func (c Context) Empty() bool {
	return len(c.Parts) == 0
}

// EstimateTokens approximates a token count as one token per four characters.
func EstimateTokens(s string) int {
	return utf8.RuneCountInString(s) / 4
}

type registration struct {
	id       string
	priority int
	provider Provider
	topK     int
	order    int
}

// Builder merges provider contexts under a token budget.
type Builder struct {
	providers []registration
	maxTokens int
	tel       *telemetry.Telemetry
}

// NewBuilder creates a builder with a budget of maxTokens estimated tokens.
// A non-positive budget uses DefaultMaxTokens.
func NewBuilder(maxTokens int, tel *telemetry.Telemetry) *Builder {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Builder{maxTokens: maxTokens, tel: tel.Component("knowledge")}
}

// Register adds a provider. Lower priorities are consulted first; equal
// priorities keep registration order. topK bounds Search results.
func (b *Builder) Register(id string, priority int, p Provider, topK int) error {
	if id == "" {
		return fmt.Errorf("provider id is required")
	}
	if p == nil {
		return fmt.Errorf("provider %s is nil", id)
	}
	for _, r := range b.providers {
		if r.id == id {
			return fmt.Errorf("provider %s already registered", id)
		}
	}
	b.providers = append(b.providers, registration{
		id:       id,
		priority: priority,
		provider: p,
		topK:     topK,
		order:    len(b.providers),
	})
	sort.SliceStable(b.providers, func(i, j int) bool {
		if b.providers[i].priority != b.providers[j].priority {
			return b.providers[i].priority < b.providers[j].priority
		}
		return b.providers[i].order < b.providers[j].order
	})
	return nil
}

// Sources lists the registered provider ids in consultation order.
func (b *Builder) Sources() []string {
	ids := make([]string, len(b.providers))
	for i, r := range b.providers {
		ids[i] = r.id
	}
	return ids
}

// MaxTokens returns the budget.
func (b *Builder) MaxTokens() int {
	return b.maxTokens
}

// Build consults every provider in priority order and accumulates their
// contexts until the budget is reached. The provider that overflows the
// budget is truncated to the remainder when more than 100 tokens remain,
// and no further providers are consulted. Provider failures are logged and
// skipped; only context cancellation is returned as an error.
func (b *Builder) Build(ctx context.Context, query string) (Context, error) {
	out := Context{Query: query}
	used := 0

	for _, r := range b.providers {
		if err := ctx.Err(); err != nil {
			return Context{}, err
		}

		content, err := b.retrieve(ctx, r, query)
		if err != nil {
			if ctx.Err() != nil {
				return Context{}, ctx.Err()
			}
			continue
		}
		if content == "" {
			continue
		}

		tokens := EstimateTokens(content)
		if used+tokens > b.maxTokens {
			remaining := b.maxTokens - used
			if remaining > minTruncatedTokens {
				out.Parts = append(out.Parts, ContextPart{
					SourceID: r.id,
					Content:  truncateRunes(content, remaining*4),
					Priority: r.priority,
				})
			}
			out.Truncated = true
			break
		}

		out.Parts = append(out.Parts, ContextPart{SourceID: r.id, Content: content, Priority: r.priority})
		used += tokens
	}

	b.tel.Metrics.ObserveContextTokens(out.Tokens())
	b.tel.Logger.
		WithField("parts", len(out.Parts)).
		WithField("tokens", out.Tokens()).
		WithField("truncated", out.Truncated).
		Debug("knowledge context built")
	return out, nil
}

func (b *Builder) retrieve(ctx context.Context, r registration, query string) (string, error) {
	ctx, span := b.tel.Tracer.StartRetrievalSpan(ctx, r.id)
	defer span.End()

	content, err := r.provider.GetContext(ctx, query)
	b.tel.Metrics.RecordRetrieval(r.id, err)
	if err != nil {
		telemetry.RecordError(span, err)
		b.tel.Logger.WithProvider(r.id).WithError(err).Warn("knowledge provider failed, skipping")
		b.tel.Events.PublishRetrievalFailed(r.id, err)
		return "", err
	}
	telemetry.RecordSuccess(span)
	return strings.TrimSpace(content), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// AugmentPrompt appends the knowledge context for query to base. base is
// returned unchanged when no provider contributes.
func (b *Builder) AugmentPrompt(ctx context.Context, query, base string) (string, error) {
	kc, err := b.Build(ctx, query)
	if err != nil {
		return "", err
	}
	if kc.Empty() {
		return base, nil
	}
	return synthesis.KnowledgeSection(base, query, kc.Text()), nil
}

// Search queries every provider with its registered topK and reranks the
// merged results by keyword overlap with query, returning at most topK.
func (b *Builder) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	var all []Result
	for _, r := range b.providers {
		results, err := r.provider.Search(ctx, query, r.topK)
		b.tel.Metrics.RecordRetrieval(r.id, err)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.tel.Logger.WithProvider(r.id).WithError(err).Warn("knowledge search failed, skipping")
			continue
		}
		all = append(all, results...)
	}
	return Rerank(query, all, topK), nil
}

// Rerank orders results by score plus 0.1 per query word found in the
// content and keeps the best topK. The input slice is not modified.
func Rerank(query string, results []Result, topK int) []Result {
	queryWords := wordSet(query)
	type ranked struct {
		Result
		adjusted float64
	}
	rs := make([]ranked, len(results))
	for i, r := range results {
		overlap := 0
		for w := range wordSet(r.Content) {
			if queryWords[w] {
				overlap++
			}
		}
		rs[i] = ranked{Result: r, adjusted: r.Score + float64(overlap)*0.1}
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].adjusted > rs[j].adjusted })
	if topK >= 0 && len(rs) > topK {
		rs = rs[:topK]
	}
	out := make([]Result, len(rs))
	for i, r := range rs {
		out[i] = r.Result
	}
	return out
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// RetrievalStats reports how many results each provider returns for a query.
type RetrievalStats struct {
	Query          string            `json:"query"`
	SourcesEnabled []string          `json:"sources_enabled"`
	Results        map[string]int    `json:"results"`
	Errors         map[string]string `json:"errors,omitempty"`
}

// RetrievalStats searches every provider with its registered topK.
func (b *Builder) RetrievalStats(ctx context.Context, query string) (RetrievalStats, error) {
	stats := RetrievalStats{
		Query:          query,
		SourcesEnabled: b.Sources(),
		Results:        make(map[string]int, len(b.providers)),
	}
	for _, r := range b.providers {
		results, err := r.provider.Search(ctx, query, r.topK)
		if err != nil {
			if ctx.Err() != nil {
				return RetrievalStats{}, ctx.Err()
			}
			if stats.Errors == nil {
				stats.Errors = make(map[string]string)
			}
			stats.Errors[r.id] = err.Error()
			b.tel.Logger.WithProvider(r.id).WithError(err).Warn("knowledge search failed")
		}
		stats.Results[r.id] = len(results)
	}
	return stats, nil
}
