package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/skadi/skadi/pkg/telemetry"
)

type stubProvider struct {
	content string
	results []Result
	err     error
	calls   int
}

func (s *stubProvider) GetContext(context.Context, string) (string, error) {
	s.calls++
	return s.content, s.err
}

func (s *stubProvider) Search(_ context.Context, _ string, topK int) ([]Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.results) > topK {
		return s.results[:topK], nil
	}
	return s.results, nil
}

func mustRegister(t *testing.T, b *Builder, id string, priority int, p Provider) {
	t.Helper()
	if err := b.Register(id, priority, p, 5); err != nil {
		t.Fatalf("Register(%s) error = %v", id, err)
	}
}

func TestBuilder_PriorityOrder(t *testing.T) {
	b := NewBuilder(0, nil)
	mustRegister(t, b, "second", 2, &stubProvider{content: "two"})
	mustRegister(t, b, "first", 1, &stubProvider{content: "one"})
	mustRegister(t, b, "also-second", 2, &stubProvider{content: "three"})

	if got := strings.Join(b.Sources(), ","); got != "first,second,also-second" {
		t.Errorf("Sources() = %s", got)
	}

	kc, err := b.Build(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if kc.Text() != "one\n\ntwo\n\nthree" {
		t.Errorf("Text() = %q", kc.Text())
	}
	if kc.Parts[0].SourceID != "first" || kc.Parts[0].Priority != 1 || kc.Truncated {
		t.Errorf("parts = %+v", kc.Parts)
	}
}

func TestBuilder_Budget(t *testing.T) {
	tests := []struct {
		name      string
		first     int // characters
		second    int
		wantParts int
		wantLast  int // characters of the last part
	}{
		{"fits", 400, 400, 2, 400},
		{"remainder too small", 400, 800, 1, 400},
		{"truncated to remainder", 200, 800, 2, 600},
		{"exact fit", 396, 404, 2, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(200, nil)
			third := &stubProvider{}
			mustRegister(t, b, "a", 1, &stubProvider{content: strings.Repeat("a", tt.first)})
			mustRegister(t, b, "b", 2, &stubProvider{content: strings.Repeat("b", tt.second)})
			mustRegister(t, b, "c", 3, third)

			kc, err := b.Build(context.Background(), "q")
			if err != nil {
				t.Fatal(err)
			}
			if len(kc.Parts) != tt.wantParts {
				t.Fatalf("len(Parts) = %d, want %d", len(kc.Parts), tt.wantParts)
			}
			if got := len(kc.Parts[len(kc.Parts)-1].Content); got != tt.wantLast {
				t.Errorf("last part = %d chars, want %d", got, tt.wantLast)
			}
			if kc.Tokens() > b.MaxTokens() {
				t.Errorf("Tokens() = %d exceeds budget", kc.Tokens())
			}
			overflowed := tt.first/4+tt.second/4 > 200
			if overflowed && third.calls != 0 {
				t.Error("providers after an overflow must not be consulted")
			}
			if kc.Truncated != overflowed {
				t.Errorf("Truncated = %v, want %v", kc.Truncated, overflowed)
			}
		})
	}
}

func TestBuilder_ProviderFailureIsSkipped(t *testing.T) {
	tel := telemetry.Nop()
	tel.Events = telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true, History: 10})

	b := NewBuilder(0, tel)
	mustRegister(t, b, "broken", 1, &stubProvider{err: errors.New("index offline")})
	mustRegister(t, b, "empty", 2, &stubProvider{content: "   "})
	mustRegister(t, b, "ok", 3, &stubProvider{content: "context"})

	kc, err := b.Build(context.Background(), "q")
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(kc.Parts) != 1 || kc.Parts[0].SourceID != "ok" {
		t.Errorf("parts = %+v", kc.Parts)
	}

	history := tel.Events.History()
	if len(history) != 1 || history[0].Type != telemetry.EventTypeRetrievalFailed {
		t.Fatalf("events = %+v", history)
	}
	if history[0].Data["provider"] != "broken" {
		t.Errorf("event data = %v", history[0].Data)
	}
}

func TestBuilder_Canceled(t *testing.T) {
	b := NewBuilder(0, nil)
	mustRegister(t, b, "a", 1, &stubProvider{content: "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := b.Build(ctx, "q"); !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want context.Canceled", err)
	}
}

func TestBuilder_Register(t *testing.T) {
	b := NewBuilder(0, nil)
	if err := b.Register("", 1, &stubProvider{}, 1); err == nil {
		t.Error("expected error for empty id")
	}
	if err := b.Register("a", 1, nil, 1); err == nil {
		t.Error("expected error for nil provider")
	}
	mustRegister(t, b, "a", 1, &stubProvider{})
	if err := b.Register("a", 2, &stubProvider{}, 1); err == nil {
		t.Error("expected error for duplicate id")
	}
	if b.MaxTokens() != DefaultMaxTokens {
		t.Errorf("MaxTokens() = %d", b.MaxTokens())
	}
}

func TestBuilder_AugmentPrompt(t *testing.T) {
	empty := NewBuilder(0, nil)
	got, err := empty.AugmentPrompt(context.Background(), "GHZ", "base prompt")
	if err != nil || got != "base prompt" {
		t.Errorf("AugmentPrompt() without knowledge = %q, %v", got, err)
	}

	b := NewBuilder(0, nil)
	mustRegister(t, b, "a", 1, &stubProvider{content: "use a CNOT chain"})
	got, err = b.AugmentPrompt(context.Background(), "GHZ", "base prompt")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"base prompt", "**KNOWLEDGE CONTEXT:**", "use a CNOT chain", "Now generate the code for: GHZ"} {
		if !strings.Contains(got, want) {
			t.Errorf("augmented prompt missing %q", want)
		}
	}
}

func TestRerank(t *testing.T) {
	results := []Result{
		{Content: "unrelated", Score: 1.0, Source: "a"},
		{Content: "bell state circuit", Score: 0.95, Source: "b"},
		{Content: "low", Score: 0.1, Source: "c"},
	}
	got := Rerank("Bell state", results, 2)
	if len(got) != 2 || got[0].Source != "b" || got[1].Source != "a" {
		t.Errorf("Rerank() = %+v", got)
	}
	if results[0].Source != "a" {
		t.Error("input was reordered")
	}
}

func TestBuilder_SearchAndStats(t *testing.T) {
	b := NewBuilder(0, nil)
	mustRegister(t, b, "a", 1, &stubProvider{results: []Result{{Content: "x", Score: 1}, {Content: "y", Score: 2}}})
	mustRegister(t, b, "broken", 2, &stubProvider{err: errors.New("down")})

	results, err := b.Search(context.Background(), "q", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 || results[0].Content != "y" {
		t.Errorf("Search() = %+v", results)
	}

	stats, err := b.RetrievalStats(context.Background(), "q")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Results["a"] != 2 || stats.Results["broken"] != 0 || stats.Errors["broken"] != "down" {
		t.Errorf("RetrievalStats() = %+v", stats)
	}
	if strings.Join(stats.SourcesEnabled, ",") != "a,broken" {
		t.Errorf("SourcesEnabled = %v", stats.SourcesEnabled)
	}
}
