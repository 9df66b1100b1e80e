// Package pipeline orchestrates Extractor -> Chunker -> Indexer for
// one object, persists the parent document record, and drives
// idempotent reprocessing (spec §4.4). Grounded on
// original_source's pipeline.py (process_pdf_pipeline: stage1-4,
// document_id branch deletes existing chunks first, rollback on
// failure).
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"docrag/internal/apperrors"
	"docrag/internal/chunker"
	"docrag/internal/documents"
	"docrag/internal/indexer"
	"docrag/internal/objectstore"
	"docrag/internal/pdfextract"
	"docrag/internal/vectorindex"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline is the Document Pipeline from spec §4.4.
type Pipeline struct {
	store   objectstore.Store
	docs    *documents.Repository
	vectors *vectorindex.Collection
	chunker *chunker.Chunker
	indexer *indexer.Indexer
	logger  *zap.Logger
}

func New(store objectstore.Store, docs *documents.Repository, vectors *vectorindex.Collection, ck *chunker.Chunker, ix *indexer.Indexer, logger *zap.Logger) *Pipeline {
	return &Pipeline{store: store, docs: docs, vectors: vectors, chunker: ck, indexer: ix, logger: logger}
}

// Process runs the full pipeline for objectName, creating a new
// parent document row and indexing its chunks. On any failure after
// the document row is created, the row (and any partial vector
// records) is rolled back (spec §4.4 step 6, §8 "Indexing atomicity").
func (p *Pipeline) Process(ctx context.Context, objectName string) (*documents.Document, error) {
	return p.run(ctx, objectName, nil)
}

// Reprocess re-runs the pipeline for an existing documentID, first
// deleting its current chunks (spec §4.4 idempotence contract, §8
// "Reprocess with a given document_id").
func (p *Pipeline) Reprocess(ctx context.Context, documentID uuid.UUID, objectName string) error {
	if err := p.vectors.DeleteByDocument(ctx, documentID); err != nil {
		return apperrors.New(apperrors.KindExternal, fmt.Errorf("clear existing chunks: %w", err))
	}
	_, err := p.run(ctx, objectName, &documentID)
	return err
}

func (p *Pipeline) run(ctx context.Context, objectName string, existingID *uuid.UUID) (*documents.Document, error) {
	data, err := p.store.Get(ctx, objectName)
	if err != nil {
		return nil, apperrors.New(apperrors.KindExternal, fmt.Errorf("fetch object %q: %w", objectName, err))
	}

	blocks, err := pdfextract.Extract(data, objectName, p.logger)
	if err != nil {
		return nil, apperrors.New(apperrors.KindBadInput, fmt.Errorf("extract %q: %w", objectName, err))
	}
	if len(blocks) == 0 {
		return nil, apperrors.New(apperrors.KindInvariant, fmt.Errorf("empty document %q: no content blocks extracted", objectName))
	}

	chunks := p.chunker.Chunk(blocks)
	filename := filepath.Base(objectName)

	var doc *documents.Document
	if existingID == nil {
		doc, err = p.docs.Create(ctx, filename, objectName)
		if err != nil {
			return nil, apperrors.New(apperrors.KindExternal, fmt.Errorf("create document row: %w", err))
		}
	} else {
		doc = &documents.Document{ID: *existingID, Filename: filename, Path: objectName}
	}

	if err := p.indexer.Index(ctx, doc.ID, filename, chunks); err != nil {
		if existingID == nil {
			if delErr := p.docs.Delete(ctx, doc.ID); delErr != nil {
				p.logger.Error("failed to roll back document after indexing error",
					zap.String("document_id", doc.ID.String()), zap.Error(delErr))
			}
		}
		return nil, apperrors.New(apperrors.KindExternal, fmt.Errorf("index chunks for %q: %w", objectName, err))
	}

	return doc, nil
}

// IsPDF reports whether objectName has a .pdf extension, case
// insensitive (spec §4.5 step 3).
func IsPDF(objectName string) bool {
	return strings.EqualFold(filepath.Ext(objectName), ".pdf")
}
