// Package kb provides the internal document knowledge base: ingestion,
// embedding-backed storage, and the retrieval tool the agent exposes to
// the model.
package kb

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/merchantlabs/coo-agent/internal/embeddings"
)

// Passage is one retrievable chunk of an ingested document.
type Passage struct {
	ID      string
	Source  string // Originating file path
	Section string // Heading path within the document
	Seq     int    // Chunk order within the source
	Content string
}

// ScoredPassage pairs a passage with its similarity to a query.
type ScoredPassage struct {
	Passage
	Score float32
}

// Store persists passages and their embeddings in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a passage store at the given database path. The
// schema is created automatically on first use.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open knowledge database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate knowledge schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS passages (
			id          TEXT PRIMARY KEY,
			source      TEXT NOT NULL,
			section     TEXT,
			seq         INTEGER NOT NULL,
			content     TEXT NOT NULL,
			embedding   BLOB,
			ingested_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_passages_source ON passages(source);
	`)
	return err
}

// Add inserts a passage with its embedding. A zero ID gets a UUIDv7.
func (s *Store) Add(ctx context.Context, p Passage, embedding []float32) error {
	if p.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate passage ID: %w", err)
		}
		p.ID = id.String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO passages (id, source, section, seq, content, embedding, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Source, p.Section, p.Seq, p.Content,
		encodeEmbedding(embedding),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert passage: %w", err)
	}
	return nil
}

// DeleteBySource removes all passages from one source file, enabling
// clean re-ingestion.
func (s *Store) DeleteBySource(ctx context.Context, source string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM passages WHERE source = ?`, source)
	if err != nil {
		return fmt.Errorf("delete passages for %s: %w", source, err)
	}
	return nil
}

// Count returns the number of stored passages.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM passages`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count passages: %w", err)
	}
	return n, nil
}

// Search returns the topK passages most similar to the query embedding,
// best first. The corpus is small (hundreds of passages), so a full scan
// with in-memory scoring is fine.
func (s *Store) Search(ctx context.Context, queryEmb []float32, topK int) ([]ScoredPassage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, section, seq, content, embedding
		 FROM passages WHERE embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query passages: %w", err)
	}
	defer rows.Close()

	var candidates []ScoredPassage
	var vectors [][]float32
	for rows.Next() {
		var p Passage
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Source, &p.Section, &p.Seq, &p.Content, &blob); err != nil {
			return nil, fmt.Errorf("scan passage: %w", err)
		}
		emb, err := decodeEmbedding(blob)
		if err != nil {
			continue // Skip corrupt rows rather than failing the search
		}
		candidates = append(candidates, ScoredPassage{Passage: p})
		vectors = append(vectors, emb)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	best := embeddings.TopK(queryEmb, vectors, topK)
	result := make([]ScoredPassage, 0, len(best))
	for _, i := range best {
		sp := candidates[i]
		sp.Score = embeddings.CosineSimilarity(queryEmb, vectors[i])
		result = append(result, sp)
	}
	return result, nil
}

// Embeddings are stored as little-endian float32 blobs, 4 bytes per
// dimension.

func encodeEmbedding(emb []float32) []byte {
	if len(emb) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(emb))
	for i, v := range emb {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty embedding blob")
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d not a multiple of 4", len(blob))
	}
	emb := make([]float32, len(blob)/4)
	for i := range emb {
		emb[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return emb, nil
}
