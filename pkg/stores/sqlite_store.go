package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/skadi/skadi/pkg/telemetry"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteStore implements the DocStore interface using SQLite
type SQLiteStore struct {
	db  *sql.DB
	cfg Config
	tel *telemetry.Telemetry
}

// Config holds SQLite store configuration
type Config struct {
	Path            string
	MaxDocs         int
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteStore creates a new SQLite store instance
func NewSQLiteStore(cfg Config, tel *telemetry.Telemetry) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.MaxDocs < 0 {
		return nil, fmt.Errorf("max docs must not be negative, got %d", cfg.MaxDocs)
	}

	// Set defaults
	if cfg.MaxDocs == 0 {
		cfg.MaxDocs = DefaultMaxDocs
	}
	if cfg.MaxOpenConns == 0 {
		cfg.MaxOpenConns = 4
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 2
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	// Every connection to :memory: is a separate database.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
		cfg.ConnMaxLifetime = 0
	}

	return &SQLiteStore{
		cfg: cfg,
		tel: tel.Component("stores"),
	}, nil
}

// Init opens the database connection and enables WAL mode for file databases.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := s.cfg.Path
	if dsn != MemoryPath {
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate", s.cfg.Path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(s.cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	s.tel.Logger.WithField("path", s.cfg.Path).Debug("doc cache opened")
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *SQLiteStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Open creates, initializes and migrates a store in one call.
func Open(ctx context.Context, cfg Config, tel *telemetry.Telemetry) (*SQLiteStore, error) {
	s, err := NewSQLiteStore(cfg, tel)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// MaxDocs returns the eviction limit.
func (s *SQLiteStore) MaxDocs() int {
	return s.cfg.MaxDocs
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetDoc retrieves a cached document and marks it as most recently used.
// A missing key returns an error wrapping ErrNotFound.
func (s *SQLiteStore) GetDoc(ctx context.Context, key string) (*Doc, error) {
	doc := &Doc{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			SELECT key, library_id, topic, tokens, content, source, hits, created_at, accessed_at
			FROM docs
			WHERE key = ?
		`, key).Scan(
			&doc.Key,
			&doc.LibraryID,
			&doc.Topic,
			&doc.Tokens,
			&doc.Content,
			&doc.Source,
			&doc.Hits,
			&doc.CreatedAt,
			&doc.AccessedAt,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("doc %s: %w", key, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to get doc: %w", err)
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			UPDATE docs
			SET hits = hits + 1,
			    access_seq = (SELECT COALESCE(MAX(access_seq), 0) + 1 FROM docs),
			    accessed_at = ?
			WHERE key = ?
		`, now, key)
		if err != nil {
			return fmt.Errorf("failed to touch doc: %w", err)
		}
		doc.Hits++
		doc.AccessedAt = now
		return nil
	})

	s.tel.Metrics.RecordCacheLookup(err == nil)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// PutDoc inserts or replaces a document, then evicts the least recently
// used entries beyond MaxDocs. An empty key is derived with DocKey.
func (s *SQLiteStore) PutDoc(ctx context.Context, doc *Doc) error {
	if doc.LibraryID == "" || doc.Topic == "" {
		return fmt.Errorf("doc requires a library id and a topic")
	}
	if doc.Key == "" {
		doc.Key = DocKey(doc.LibraryID, doc.Topic, doc.Tokens)
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.AccessedAt = now

	var evicted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO docs (key, library_id, topic, tokens, content, source, hits, access_seq, created_at, accessed_at)
			VALUES (?, ?, ?, ?, ?, ?, 0, (SELECT COALESCE(MAX(access_seq), 0) + 1 FROM docs), ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				content = excluded.content,
				source = excluded.source,
				access_seq = excluded.access_seq,
				accessed_at = excluded.accessed_at
		`,
			doc.Key,
			doc.LibraryID,
			doc.Topic,
			doc.Tokens,
			doc.Content,
			doc.Source,
			doc.CreatedAt,
			doc.AccessedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to put doc: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			DELETE FROM docs
			WHERE key IN (SELECT key FROM docs ORDER BY access_seq DESC LIMIT -1 OFFSET ?)
		`, s.cfg.MaxDocs)
		if err != nil {
			return fmt.Errorf("failed to evict docs: %w", err)
		}
		evicted, _ = result.RowsAffected()
		return nil
	})
	if err != nil {
		return err
	}

	if evicted > 0 {
		s.tel.Logger.WithField("evicted", evicted).Debug("doc cache full, evicted least recently used")
	}
	return nil
}

// DeleteDoc deletes a document by key
func (s *SQLiteStore) DeleteDoc(ctx context.Context, key string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM docs WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete doc: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("doc %s: %w", key, ErrNotFound)
	}
	return nil
}

// ListDocs lists documents, most recently used first
func (s *SQLiteStore) ListDocs(ctx context.Context, limit, offset int) ([]*Doc, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, library_id, topic, tokens, content, source, hits, created_at, accessed_at
		FROM docs
		ORDER BY access_seq DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list docs: %w", err)
	}
	defer rows.Close()

	docs := []*Doc{}
	for rows.Next() {
		doc := &Doc{}
		err := rows.Scan(
			&doc.Key,
			&doc.LibraryID,
			&doc.Topic,
			&doc.Tokens,
			&doc.Content,
			&doc.Source,
			&doc.Hits,
			&doc.CreatedAt,
			&doc.AccessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan doc: %w", err)
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating docs: %w", err)
	}
	return docs, nil
}

// ClearDocs removes every cached document and returns how many were removed.
func (s *SQLiteStore) ClearDocs(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM docs`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear docs: %w", err)
	}
	return result.RowsAffected()
}

// AddChunks replaces the chunks stored for source and returns the number
// of non-empty chunks written.
func (s *SQLiteStore) AddChunks(ctx context.Context, source string, chunks []string) (int, error) {
	if source == "" {
		return 0, fmt.Errorf("chunk source is required")
	}

	written := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source); err != nil {
			return fmt.Errorf("failed to replace chunks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (source, ordinal, content, created_at)
			VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare chunk insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, content := range chunks {
			if strings.TrimSpace(content) == "" {
				continue
			}
			if _, err := stmt.ExecContext(ctx, source, written, content, now); err != nil {
				return fmt.Errorf("failed to insert chunk: %w", err)
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// SearchChunks returns the chunks containing any of terms, ranked by the
// number of term occurrences. Matching is case-insensitive.
func (s *SQLiteStore) SearchChunks(ctx context.Context, terms []string, limit int) ([]*Chunk, error) {
	var clauses []string
	var args []interface{}
	var lowered []string
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		lowered = append(lowered, term)
		clauses = append(clauses, "lower(content) LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(term)+"%")
	}
	if len(clauses) == 0 || limit <= 0 {
		return []*Chunk{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, ordinal, content, created_at
		FROM chunks
		WHERE `+strings.Join(clauses, " OR ")+`
		ORDER BY source, ordinal
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	chunks := []*Chunk{}
	for rows.Next() {
		c := &Chunk{}
		if err := rows.Scan(&c.ID, &c.Source, &c.Ordinal, &c.Content, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		content := strings.ToLower(c.Content)
		for _, term := range lowered {
			c.Score += float64(strings.Count(content, term))
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
	if len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// DeleteChunks removes every chunk of source.
func (s *SQLiteStore) DeleteChunks(ctx context.Context, source string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE source = ?`, source)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	return result.RowsAffected()
}

// Stats reports cache size, keys in recency order and chunk counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{MaxDocs: s.cfg.MaxDocs, Keys: []string{}}

	rows, err := s.db.QueryContext(ctx, `SELECT key FROM docs ORDER BY access_seq DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list doc keys: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan doc key: %w", err)
		}
		stats.Keys = append(stats.Keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating doc keys: %w", err)
	}
	stats.Docs = len(stats.Keys)

	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT source) FROM chunks`).Scan(&stats.Chunks, &stats.Sources)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	return stats, nil
}

// HealthCheck verifies the database connection is healthy
func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
