// Package documents models the parent Document record and its
// relational repository. Chunks cascade on delete (spec §3); the
// vector side of a chunk lives in internal/vectorindex.
package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Document is the parent row created once per successful ingestion
// (spec §3).
type Document struct {
	ID         uuid.UUID `json:"id"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Repository is the relational persistence surface for documents.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new document row and returns it with its generated
// id and timestamp.
func (r *Repository) Create(ctx context.Context, filename, path string) (*Document, error) {
	doc := &Document{Filename: filename, Path: path}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO documents (filename, path) VALUES ($1, $2) RETURNING id, uploaded_at`,
		filename, path,
	).Scan(&doc.ID, &doc.UploadedAt)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

// Delete removes the document row; chunk rows cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

// Get fetches a single document by id.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	doc := &Document{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, filename, path, uploaded_at FROM documents WHERE id = $1`, id,
	).Scan(&doc.ID, &doc.Filename, &doc.Path, &doc.UploadedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return doc, nil
}

// List returns a page of documents ordered newest-first, plus the
// total row count for pagination (spec §6 GET /api/documents).
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Document, int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, filename, path, uploaded_at FROM documents ORDER BY uploaded_at DESC LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.Path, &d.UploadedAt); err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	return docs, total, nil
}
