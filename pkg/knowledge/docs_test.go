package knowledge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skadi/skadi/pkg/stores"
)

func newStore(t *testing.T) *stores.SQLiteStore {
	t.Helper()
	s, err := stores.Open(context.Background(), stores.Config{Path: stores.MemoryPath}, nil)
	if err != nil {
		t.Fatalf("stores.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newDocs(t *testing.T, store stores.DocStore, f Fetcher) *DocsProvider {
	t.Helper()
	p, err := NewDocsProvider(store, DocsOptions{Fetcher: f}, nil)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewDocsProvider_RequiresStore(t *testing.T) {
	if _, err := NewDocsProvider(nil, DocsOptions{}, nil); err == nil {
		t.Error("expected error without store")
	}
}

func TestDocsProvider_MissWithoutFetcher(t *testing.T) {
	p := newDocs(t, newStore(t), nil)
	ctx := context.Background()

	text, err := p.GetContext(ctx, "qml.CNOT")
	if err != nil || text != "" {
		t.Errorf("GetContext() = %q, %v", text, err)
	}
	need, err := p.NeedsFetch(ctx, "qml.CNOT")
	if err != nil || !need {
		t.Errorf("NeedsFetch() = %v, %v", need, err)
	}
	if p.LibraryID() != DefaultLibraryID {
		t.Errorf("LibraryID() = %s", p.LibraryID())
	}
}

func TestDocsProvider_FetchesOnceThenCaches(t *testing.T) {
	calls := 0
	fetcher := FetcherFunc(func(_ context.Context, libraryID, topic string, tokens int) (string, error) {
		calls++
		if libraryID != DefaultLibraryID || tokens != DefaultDocTokens {
			t.Errorf("Fetch(%s, %s, %d)", libraryID, topic, tokens)
		}
		return "qml.CNOT(wires=[0, 1])", nil
	})
	p := newDocs(t, newStore(t), fetcher)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		text, err := p.GetContext(ctx, "qml.CNOT")
		if err != nil {
			t.Fatal(err)
		}
		if text != "## Relevant PennyLane API:\n\nqml.CNOT(wires=[0, 1])" {
			t.Errorf("GetContext() = %q", text)
		}
	}
	if calls != 1 {
		t.Errorf("fetcher called %d times, want 1", calls)
	}

	results, err := p.Search(ctx, "qml.CNOT", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Score != 1.0 || results[0].Kind != KindAPIDoc || results[0].Source != SourceDocs {
		t.Errorf("Search() = %+v", results)
	}
}

func TestDocsProvider_FetchError(t *testing.T) {
	fetcher := FetcherFunc(func(context.Context, string, string, int) (string, error) {
		return "", errors.New("rate limited")
	})
	store := newStore(t)
	p := newDocs(t, store, fetcher)

	if _, err := p.GetContext(context.Background(), "qml.RX"); err == nil {
		t.Fatal("expected fetch error")
	}

	// A failing docs provider does not fail the builder.
	b := NewBuilder(0, nil)
	mustRegister(t, b, SourceConcepts, 1, NewConceptProvider())
	mustRegister(t, b, SourceDocs, 2, p)
	kc, err := b.Build(context.Background(), "qml.RX")
	if err != nil {
		t.Fatal(err)
	}
	if len(kc.Parts) != 1 || kc.Parts[0].SourceID != SourceConcepts {
		t.Errorf("parts = %+v", kc.Parts)
	}
}

func TestDocsProvider_Ingest(t *testing.T) {
	p := newDocs(t, newStore(t), nil)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "gates.md")
	content := "# Gates\n\nqml.Hadamard creates superposition.\n\n## Entangling\n\nqml.CNOT entangles qubits."
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	n, err := p.IngestFile(ctx, path)
	if err != nil || n == 0 {
		t.Fatalf("IngestFile() = %d, %v", n, err)
	}
	if _, err := p.IngestFile(ctx, filepath.Join(t.TempDir(), "missing.md")); err == nil {
		t.Error("expected error for a missing file")
	}

	text, err := p.GetContext(ctx, "entangles two qubits")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(text, docsHeader) || !strings.Contains(text, "qml.CNOT entangles qubits.") {
		t.Errorf("GetContext() = %q", text)
	}

	results, err := p.Search(ctx, "superposition", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || results[0].Kind != KindChunk || results[0].Source != path {
		t.Errorf("Search() = %+v", results)
	}
	if results, _ := p.Search(ctx, "superposition", 0); len(results) != 0 {
		t.Errorf("Search(topK=0) = %+v", results)
	}
}

func TestSplitterFor_ChunksLongText(t *testing.T) {
	text := strings.Repeat("qml.RX(0.1, wires=0)\n", 200)
	chunks, err := SplitterFor("notes.txt").SplitText(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if len(c) > ChunkSize {
			t.Errorf("chunk %d has %d chars", i, len(c))
		}
	}
}

func TestExtractCodeSnippets(t *testing.T) {
	docs := "Intro\n```python\nqml.Hadamard(wires=0)\n```\ntext\n```pycon\n>>> qml.CNOT(wires=[0, 1])\n```\n```bash\npip install pennylane\n```\n"
	snippets := ExtractCodeSnippets(docs)
	if len(snippets) != 2 {
		t.Fatalf("snippets = %q", snippets)
	}
	if snippets[0] != "qml.Hadamard(wires=0)" || snippets[1] != ">>> qml.CNOT(wires=[0, 1])" {
		t.Errorf("snippets = %q", snippets)
	}

	formatted := FormatForPrompt(docs, 1)
	if !strings.HasPrefix(formatted, "PennyLane API Reference Examples:") || strings.Contains(formatted, "Example 2") {
		t.Errorf("FormatForPrompt() = %q", formatted)
	}
	if got := FormatForPrompt(strings.Repeat("x", 600), 3); len(got) != 500 {
		t.Errorf("plain docs truncated to %d chars, want 500", len(got))
	}
	if FormatForPrompt("", 3) != "" {
		t.Error("empty docs should format to empty")
	}
}

func TestContext7Fetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer c7-key" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		switch r.URL.Path {
		case "/v1/pennylane/pennylane":
			q := r.URL.Query()
			if q.Get("topic") != "qnode decorator" || q.Get("tokens") != "2000" || q.Get("type") != "txt" {
				t.Errorf("query = %v", q)
			}
			_, _ = w.Write([]byte("  @qml.qnode(dev)\n"))
		case "/v1/unknown/lib":
			http.NotFound(w, r)
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream"))
		}
	}))
	defer srv.Close()

	f := NewContext7Fetcher(Context7Config{BaseURL: srv.URL + "/", APIKey: "c7-key", RequestsPerMinute: 6000})
	ctx := context.Background()

	got, err := f.Fetch(ctx, "/pennylane/pennylane", "qnode decorator", 2000)
	if err != nil || got != "@qml.qnode(dev)" {
		t.Errorf("Fetch() = %q, %v", got, err)
	}
	if got, err := f.Fetch(ctx, "/unknown/lib", "x", 10); err != nil || got != "" {
		t.Errorf("Fetch() for missing library = %q, %v", got, err)
	}
	if _, err := f.Fetch(ctx, "/broken", "x", 10); err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("Fetch() error = %v, want status 502", err)
	}
}
