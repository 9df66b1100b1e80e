// Package indexer batches chunks through an embedding provider and
// inserts them into the vector collection, aborting the whole
// document on the first batch failure (spec §4.3). Batch size 100
// mirrors original_source's vector_store.py DEFAULT_BATCH_SIZE.
package indexer

import (
	"context"
	"fmt"

	"docrag/internal/chunker"
	"docrag/internal/embeddings"
	"docrag/internal/vectorindex"

	"github.com/google/uuid"
)

const defaultBatchSize = 100

// Indexer drives embedding generation and vector insertion for one
// document's chunks.
type Indexer struct {
	embedder   embeddings.Provider
	collection *vectorindex.Collection
	batchSize  int
}

func New(embedder embeddings.Provider, collection *vectorindex.Collection, batchSize int) *Indexer {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Indexer{embedder: embedder, collection: collection, batchSize: batchSize}
}

// Index embeds and inserts all chunks for documentID/filename in
// bounded batches. On the first error, it returns immediately without
// attempting further batches; the caller is responsible for rolling
// back the parent document (spec §4.4 step 6).
func (ix *Indexer) Index(ctx context.Context, documentID uuid.UUID, filename string, chunks []chunker.Chunk) error {
	for start := 0; start < len(chunks); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}

		vectors, err := ix.embedder.Embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}

		records := make([]vectorindex.Record, len(batch))
		for i, c := range batch {
			records[i] = vectorindex.Record{
				DocumentID: documentID,
				ChunkIndex: start + i,
				Content:    c.Content,
				Embedding:  vectors[i],
				Metadata: map[string]any{
					"chunk_index":        start + i,
					"filename":           filename,
					"document_id":        documentID.String(),
					"content_type":       string(c.ContentType),
					"is_atomic":          c.IsAtomic,
					"page":               c.Page,
					"total_pages":        c.TotalPages,
					"start_index":        c.StartIndex,
					"merged_small_chunk": c.MergedSmallChunk,
				},
			}
		}

		if err := ix.collection.Insert(ctx, records); err != nil {
			return fmt.Errorf("insert batch [%d:%d]: %w", start, end, err)
		}
	}

	return nil
}
