package stores

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DefaultMaxDocs is the number of cached documents kept before the least
// recently used entry is evicted.
const DefaultMaxDocs = 50

// ErrNotFound is returned when a document is not in the cache.
var ErrNotFound = errors.New("not found")

// Doc is a cached documentation response for one library topic.
type Doc struct {
	Key        string    `json:"key"`
	LibraryID  string    `json:"library_id"`
	Topic      string    `json:"topic"`
	Tokens     int       `json:"tokens"`
	Content    string    `json:"content"`
	Source     string    `json:"source"` // e.g. "context7", "manual"
	Hits       int       `json:"hits"`
	CreatedAt  time.Time `json:"created_at"`
	AccessedAt time.Time `json:"accessed_at"`
}

// Chunk is a fragment of an ingested document.
type Chunk struct {
	ID        int64     `json:"id"`
	Source    string    `json:"source"` // file path or URL the chunk came from
	Ordinal   int       `json:"ordinal"`
	Content   string    `json:"content"`
	Score     float64   `json:"score,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Stats describes the cache contents.
type Stats struct {
	Docs    int      `json:"size"`
	MaxDocs int      `json:"max_size"`
	Keys    []string `json:"keys"`
	Chunks  int      `json:"chunks"`
	Sources int      `json:"sources"`
}

// DocKey derives the cache key for a library topic at a token limit.
func DocKey(libraryID, topic string, tokens int) string {
	sum := blake2b.Sum256([]byte(fmt.Sprintf("%s:%s:%d", libraryID, topic, tokens)))
	return hex.EncodeToString(sum[:16])
}

// DocStore defines the persistence layer of the documentation cache.
type DocStore interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Doc operations
	GetDoc(ctx context.Context, key string) (*Doc, error)
	PutDoc(ctx context.Context, doc *Doc) error
	DeleteDoc(ctx context.Context, key string) error
	ListDocs(ctx context.Context, limit, offset int) ([]*Doc, error)
	ClearDocs(ctx context.Context) (int64, error)

	// Chunk operations
	AddChunks(ctx context.Context, source string, chunks []string) (int, error)
	SearchChunks(ctx context.Context, terms []string, limit int) ([]*Chunk, error)
	DeleteChunks(ctx context.Context, source string) (int64, error)

	// Utility
	Stats(ctx context.Context) (*Stats, error)
	HealthCheck(ctx context.Context) error
}
