// Package relationaldb owns the pgxpool connection pool and the
// startup schema check: pgvector extension presence and embedding
// dimension agreement (spec §6, §9 Open Question).
package relationaldb

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// DB wraps a pgxpool.Pool. Grounded on unified-rag-service/main.go's
// pgxpool.New + schema-init sequence and document-chunker/main.go's
// UNIQUE(document_id, chunk_index) constraint.
type DB struct {
	Pool   *pgxpool.Pool
	logger *zap.Logger
}

// Open connects to dsn, runs schema migration, and verifies the
// pgvector extension and embedding dimension. Startup fails if the
// extension is missing (spec §6) or an existing document_chunks
// embedding column disagrees with dimension (spec §9).
func Open(ctx context.Context, dsn string, dimension int, logger *zap.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db := &DB{Pool: pool, logger: logger}
	if err := db.migrate(ctx, dimension); err != nil {
		pool.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) migrate(ctx context.Context, dimension int) error {
	if _, err := db.Pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("pgvector extension unavailable: %w", err)
	}

	schema := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS documents (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			filename TEXT NOT NULL,
			path TEXT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS document_chunks (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE(document_id, chunk_index)
		);

		CREATE INDEX IF NOT EXISTS idx_document_chunks_document ON document_chunks(document_id);
		CREATE INDEX IF NOT EXISTS idx_document_chunks_hnsw ON document_chunks
			USING hnsw (embedding vector_cosine_ops) WITH (m = 16, ef_construction = 64);

		CREATE TABLE IF NOT EXISTS chat_sessions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			metadata JSONB NOT NULL DEFAULT '{}'
		);

		CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions(user_id);

		DO $$ BEGIN
			CREATE TYPE chat_sender AS ENUM ('user', 'assistant', 'system');
		EXCEPTION WHEN duplicate_object THEN NULL;
		END $$;

		CREATE TABLE IF NOT EXISTS chat_messages (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
			sender chat_sender NOT NULL,
			message TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, created_at);
	`, dimension)

	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}

	var existingDim int
	err := db.Pool.QueryRow(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = 'document_chunks'::regclass AND attname = 'embedding'
	`).Scan(&existingDim)
	if err == nil && existingDim > 0 && existingDim != dimension {
		return fmt.Errorf("embedding dimension mismatch: schema has %d, configured %d", existingDim, dimension)
	}

	db.logger.Info("relational schema ready", zap.Int("embedding_dimension", dimension))
	return nil
}

// Close releases all pooled connections.
func (db *DB) Close() {
	db.Pool.Close()
}
