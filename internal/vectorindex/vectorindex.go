// Package vectorindex wraps the pgvector-backed document_chunks
// collection (spec §4.3, §6). Collection name and batching mirror
// original_source's vector_store.py (COLLECTION_NAME =
// "document_chunks"), backed by pgvector-go rather than LangChain's
// PGVector wrapper.
package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Record is one chunk's text, embedding, and attached metadata ready
// for insertion.
type Record struct {
	DocumentID uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   map[string]any
}

// Match is a single similarity-search hit.
type Match struct {
	ID      uuid.UUID
	Content string
	Metadata map[string]any
}

// Collection is the document_chunks vector collection.
type Collection struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Collection {
	return &Collection{pool: pool}
}

// Insert writes one batch of records in a single statement-per-row
// transaction; callers (internal/indexer) are responsible for
// batching and for aborting the whole document on any error (spec
// §4.3).
func (c *Collection) Insert(ctx context.Context, records []Record) error {
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata for chunk %d: %w", r.ChunkIndex, err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO document_chunks (document_id, chunk_index, content, embedding, metadata)
			 VALUES ($1, $2, $3, $4, $5)`,
			r.DocumentID, r.ChunkIndex, r.Content, pgvector.NewVector(r.Embedding), meta,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", r.ChunkIndex, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit insert tx: %w", err)
	}
	return nil
}

// SimilaritySearch returns the topK nearest chunks to embedding by
// cosine distance.
func (c *Collection) SimilaritySearch(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	rows, err := c.pool.Query(ctx,
		`SELECT id, content, metadata FROM document_chunks
		 ORDER BY embedding <=> $1 LIMIT $2`,
		pgvector.NewVector(embedding), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var rawMeta []byte
		if err := rows.Scan(&m.ID, &m.Content, &rawMeta); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		if len(rawMeta) > 0 {
			if err := json.Unmarshal(rawMeta, &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode match metadata: %w", err)
			}
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return matches, nil
}

// DeleteByDocument removes all chunks belonging to documentID, used
// for reprocessing (spec §4.4). Rollback after a failed ingestion does
// not call it: the pipeline deletes the parent document row and the
// ON DELETE CASCADE removes its chunks.
func (c *Collection) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := c.pool.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("delete chunks for document %s: %w", documentID, err)
	}
	return nil
}
