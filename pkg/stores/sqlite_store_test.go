package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// setupTestStore creates an in-memory SQLite store for testing
func setupTestStore(t *testing.T, maxDocs int) *SQLiteStore {
	t.Helper()

	store, err := Open(context.Background(), Config{Path: MemoryPath, MaxDocs: maxDocs}, nil)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func putDoc(t *testing.T, s *SQLiteStore, topic, content string) *Doc {
	t.Helper()
	doc := &Doc{LibraryID: "/pennylane/pennylane", Topic: topic, Tokens: 2000, Content: content, Source: "manual"}
	if err := s.PutDoc(context.Background(), doc); err != nil {
		t.Fatalf("PutDoc(%s) error = %v", topic, err)
	}
	return doc
}

func TestNewSQLiteStore_Validation(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}, nil); err == nil {
		t.Error("expected error for empty path")
	}
	if _, err := NewSQLiteStore(Config{Path: MemoryPath, MaxDocs: -1}, nil); err == nil {
		t.Error("expected error for negative max docs")
	}
	s, err := NewSQLiteStore(Config{Path: MemoryPath}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if s.MaxDocs() != DefaultMaxDocs {
		t.Errorf("MaxDocs() = %d, want %d", s.MaxDocs(), DefaultMaxDocs)
	}
	if err := s.HealthCheck(context.Background()); err == nil {
		t.Error("health check before Init should fail")
	}
}

// TestStoreMigrations tests that the schema exists and migrating twice is a no-op
func TestStoreMigrations(t *testing.T) {
	store := setupTestStore(t, 0)
	ctx := context.Background()

	for _, table := range []string{"docs", "chunks"} {
		var count int
		if err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count); err != nil {
			t.Errorf("table %s does not exist or is not accessible: %v", table, err)
		}
	}
	if err := store.Migrate(ctx); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")
	ctx := context.Background()

	store, err := Open(ctx, Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	putDoc(t, store, "qnode decorator", "@qml.qnode(dev)")
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(ctx, Config{Path: path}, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()
	doc, err := reopened.GetDoc(ctx, DocKey("/pennylane/pennylane", "qnode decorator", 2000))
	if err != nil {
		t.Fatalf("GetDoc() after reopen error = %v", err)
	}
	if doc.Content != "@qml.qnode(dev)" {
		t.Errorf("Content = %q", doc.Content)
	}
}

func TestDocKey(t *testing.T) {
	a := DocKey("/pennylane/pennylane", "CNOT", 2000)
	if a != DocKey("/pennylane/pennylane", "CNOT", 2000) {
		t.Error("DocKey is not deterministic")
	}
	if len(a) != 32 {
		t.Errorf("len(DocKey) = %d, want 32", len(a))
	}
	for _, other := range []string{
		DocKey("/pennylane/pennylane", "CNOT", 1000),
		DocKey("/pennylane/pennylane", "CZ", 2000),
		DocKey("/other/lib", "CNOT", 2000),
	} {
		if other == a {
			t.Errorf("key collision for %s", other)
		}
	}
}

func TestDocCRUD(t *testing.T) {
	store := setupTestStore(t, 0)
	ctx := context.Background()

	doc := putDoc(t, store, "qml.Hadamard", "Hadamard gate docs")
	if doc.Key != DocKey(doc.LibraryID, doc.Topic, doc.Tokens) {
		t.Errorf("Key = %s, want derived key", doc.Key)
	}

	got, err := store.GetDoc(ctx, doc.Key)
	if err != nil {
		t.Fatalf("GetDoc() error = %v", err)
	}
	if got.Content != "Hadamard gate docs" || got.Source != "manual" || got.Hits != 1 {
		t.Errorf("GetDoc() = %+v", got)
	}
	got, _ = store.GetDoc(ctx, doc.Key)
	if got.Hits != 2 {
		t.Errorf("Hits = %d, want 2", got.Hits)
	}

	// Replacing keeps the key and updates the content.
	putDoc(t, store, "qml.Hadamard", "updated")
	got, _ = store.GetDoc(ctx, doc.Key)
	if got.Content != "updated" {
		t.Errorf("Content = %q, want updated", got.Content)
	}

	docs, err := store.ListDocs(ctx, 10, 0)
	if err != nil || len(docs) != 1 {
		t.Fatalf("ListDocs() = %d docs, %v", len(docs), err)
	}

	if err := store.DeleteDoc(ctx, doc.Key); err != nil {
		t.Fatalf("DeleteDoc() error = %v", err)
	}
	if _, err := store.GetDoc(ctx, doc.Key); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDoc() after delete error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteDoc(ctx, doc.Key); !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteDoc() twice error = %v, want ErrNotFound", err)
	}
}

func TestPutDoc_RequiresTopic(t *testing.T) {
	store := setupTestStore(t, 0)
	if err := store.PutDoc(context.Background(), &Doc{LibraryID: "/lib"}); err == nil {
		t.Error("expected error without topic")
	}
}

func TestPutDoc_EvictsLeastRecentlyUsed(t *testing.T) {
	store := setupTestStore(t, 2)
	ctx := context.Background()

	a := putDoc(t, store, "a", "A")
	b := putDoc(t, store, "b", "B")
	if _, err := store.GetDoc(ctx, a.Key); err != nil {
		t.Fatal(err)
	}
	c := putDoc(t, store, "c", "C")

	if _, err := store.GetDoc(ctx, b.Key); !errors.Is(err, ErrNotFound) {
		t.Errorf("b should have been evicted, error = %v", err)
	}
	for _, key := range []string{a.Key, c.Key} {
		if _, err := store.GetDoc(ctx, key); err != nil {
			t.Errorf("GetDoc(%s) error = %v", key, err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Docs != 2 || stats.MaxDocs != 2 || len(stats.Keys) != 2 {
		t.Errorf("Stats() = %+v", stats)
	}
	if stats.Keys[0] != c.Key {
		t.Errorf("most recent key = %s, want %s", stats.Keys[0], c.Key)
	}
}

func TestClearDocs(t *testing.T) {
	store := setupTestStore(t, 0)
	putDoc(t, store, "a", "A")
	putDoc(t, store, "b", "B")

	n, err := store.ClearDocs(context.Background())
	if err != nil || n != 2 {
		t.Fatalf("ClearDocs() = %d, %v", n, err)
	}
	stats, _ := store.Stats(context.Background())
	if stats.Docs != 0 {
		t.Errorf("Docs = %d after clear", stats.Docs)
	}
}

func TestChunks(t *testing.T) {
	store := setupTestStore(t, 0)
	ctx := context.Background()

	n, err := store.AddChunks(ctx, "docs/gates.md", []string{
		"qml.CNOT(wires=[0, 1]) entangles two qubits. CNOT is also called CX.",
		"  ",
		"qml.Hadamard(wires=0) creates superposition.",
		"qml.RX(theta, wires=0) rotates about X.",
	})
	if err != nil || n != 3 {
		t.Fatalf("AddChunks() = %d, %v", n, err)
	}
	if _, err := store.AddChunks(ctx, "", []string{"x"}); err == nil {
		t.Error("expected error without source")
	}

	got, err := store.SearchChunks(ctx, []string{"cnot", "wires"}, 2)
	if err != nil {
		t.Fatalf("SearchChunks() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Ordinal != 0 || got[0].Score != 3 {
		t.Errorf("top chunk = %+v, want ordinal 0 with score 3", got[0])
	}

	if got, _ := store.SearchChunks(ctx, []string{"50%_"}, 5); len(got) != 0 {
		t.Errorf("LIKE wildcards should be escaped, got %d chunks", len(got))
	}
	if got, _ := store.SearchChunks(ctx, []string{" "}, 5); len(got) != 0 {
		t.Errorf("blank terms matched %d chunks", len(got))
	}

	// Re-ingesting a source replaces its chunks.
	if n, _ := store.AddChunks(ctx, "docs/gates.md", []string{"only one"}); n != 1 {
		t.Errorf("re-ingest wrote %d chunks", n)
	}
	stats, _ := store.Stats(ctx)
	if stats.Chunks != 1 || stats.Sources != 1 {
		t.Errorf("Stats() = %+v", stats)
	}

	deleted, err := store.DeleteChunks(ctx, "docs/gates.md")
	if err != nil || deleted != 1 {
		t.Errorf("DeleteChunks() = %d, %v", deleted, err)
	}
}
