package stores_test

import (
	"context"
	"fmt"
	"log"

	"github.com/skadi/skadi/pkg/stores"
)

// ExampleOpen demonstrates opening an in-memory doc cache.
func ExampleOpen() {
	store, err := stores.Open(context.Background(), stores.Config{Path: stores.MemoryPath}, nil)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	fmt.Println("Store initialized successfully")
	// Output: Store initialized successfully
}

// ExampleSQLiteStore_PutDoc demonstrates caching documentation for a topic.
func ExampleSQLiteStore_PutDoc() {
	ctx := context.Background()
	store, _ := stores.Open(ctx, stores.Config{Path: stores.MemoryPath}, nil)
	defer store.Close()

	doc := &stores.Doc{
		LibraryID: "/pennylane/pennylane",
		Topic:     "qml.CNOT",
		Tokens:    2000,
		Content:   "qml.CNOT(wires=[control, target])",
		Source:    "manual",
	}
	if err := store.PutDoc(ctx, doc); err != nil {
		log.Fatal(err)
	}

	cached, err := store.GetDoc(ctx, stores.DocKey("/pennylane/pennylane", "qml.CNOT", 2000))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(cached.Content)
	// Output: qml.CNOT(wires=[control, target])
}

// ExampleSQLiteStore_SearchChunks demonstrates keyword search over ingested chunks.
func ExampleSQLiteStore_SearchChunks() {
	ctx := context.Background()
	store, _ := stores.Open(ctx, stores.Config{Path: stores.MemoryPath}, nil)
	defer store.Close()

	_, _ = store.AddChunks(ctx, "notes.md", []string{
		"Use qml.probs to read a probability distribution.",
		"Use qml.state for the full state vector.",
	})

	chunks, _ := store.SearchChunks(ctx, []string{"probs"}, 5)
	for _, c := range chunks {
		fmt.Printf("%s#%d\n", c.Source, c.Ordinal)
	}
	// Output: notes.md#0
}
