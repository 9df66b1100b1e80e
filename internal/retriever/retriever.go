// Package retriever issues top-K similarity searches for a set of
// query reformulations and merges them into a deduplicated,
// first-seen-ordered union of chunk texts (spec §4.6). Grounded on
// original_source's retriever.py (seen_chunk_ids set, swallow-errors
// -return-empty).
package retriever

import (
	"context"
	"fmt"

	"docrag/internal/embeddings"
	"docrag/internal/vectorindex"

	"go.uber.org/zap"
)

const defaultTopK = 3

// Retriever merges per-statement similarity searches into a single
// deduplicated result (spec §4.6).
type Retriever struct {
	embedder   embeddings.Provider
	collection *vectorindex.Collection
	topK       int
	logger     *zap.Logger
}

func New(embedder embeddings.Provider, collection *vectorindex.Collection, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Retriever{embedder: embedder, collection: collection, topK: topK, logger: logger}
}

// Retrieve searches for each statement and returns the union of
// matched chunk texts, deduplicated by id and preserving first-seen
// order. Empty input returns an empty result, not an error. Any
// per-statement error is logged and treated as zero matches for that
// statement rather than failing the whole call (spec §4.6 contract).
func (r *Retriever) Retrieve(ctx context.Context, statements []string) []string {
	if len(statements) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var texts []string

	for _, stmt := range statements {
		matches, err := r.searchOne(ctx, stmt)
		if err != nil {
			r.logger.Warn("retrieval failed for statement, continuing", zap.Error(err))
			continue
		}

		for i, m := range matches {
			key := m.ID.String()
			if key == "" {
				key = fmt.Sprintf("pos:%d", i)
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			texts = append(texts, m.Content)
		}
	}

	return texts
}

func (r *Retriever) searchOne(ctx context.Context, statement string) ([]vectorindex.Match, error) {
	vectors, err := r.embedder.Embed(ctx, []string{statement})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return r.collection.SimilaritySearch(ctx, vectors[0], r.topK)
}
