package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
	"github.com/panjf2000/ants/v2"
)

// Ingestor runs the document ingestion pipeline: register the document,
// chunk the text, embed the chunks, store them, then extract graph knowledge
// from each chunk with bounded concurrency.
//
// Registration, embedding and chunk storage are fatal stages, their failure
// aborts the ingestion. Extraction is best-effort per chunk: a failed chunk
// costs its knowledge, never the document.
type Ingestor struct {
	chunker       ChunkFunc
	embedder      Embedder
	documents     DocumentWriter
	chunks        ChunkWriter
	entities      EntityUpserter
	relationships RelationshipUpserter
	extractor     *Extractor
	config        model.IngestConfig
	logger        *slog.Logger
}

// NewIngestor creates an ingestor. The extractor may be nil, ingestion then
// stores chunks without building the graph.
func NewIngestor(
	embedder Embedder,
	documents DocumentWriter,
	chunks ChunkWriter,
	entities EntityUpserter,
	relationships RelationshipUpserter,
	extractor *Extractor,
	config model.IngestConfig,
	logger *slog.Logger,
) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{
		chunker:       WindowChunker(config.ChunkSize, config.ChunkOverlap),
		embedder:      embedder,
		documents:     documents,
		chunks:        chunks,
		entities:      entities,
		relationships: relationships,
		extractor:     extractor,
		config:        config,
		logger:        logger,
	}
}

// Ingest processes one document for the tenant bound to ctx.
func (i *Ingestor) Ingest(ctx context.Context, filename string, text string, metadata model.Metadata) (*model.IngestResult, error) {
	tenant, err := model.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}

	windows, err := i.chunker(text)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, &helper.ValidationError{Field: "text", Reason: "must not be empty"}
	}

	document := model.NewDocument(filename, int64(len(text)), metadata)
	err = i.documents.InsertDocument(ctx, document)
	if err != nil {
		return nil, helper.NewError("register document", err)
	}

	i.logger.Info("Registered document",
		slog.String("tenant_id", tenant.TenantID),
		slog.String("document_id", document.ID.String()),
		slog.Int("windows", len(windows)),
	)

	texts := make([]string, len(windows))
	for idx, window := range windows {
		texts[idx] = window.Content
	}

	embeddings, err := i.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, helper.NewError("embed chunks", err)
	}
	if len(embeddings) != len(windows) {
		return nil, helper.NewError("embed chunks", fmt.Errorf("expected %d embeddings, got %d", len(windows), len(embeddings)))
	}

	chunks := make([]*model.DocumentChunk, len(windows))
	for idx, window := range windows {
		chunks[idx] = &model.DocumentChunk{
			DocumentID: document.ID,
			Content:    window.Content,
			Embedding:  embeddings[idx],
			ChunkIndex: window.Index,
			Metadata:   window.Metadata,
		}
	}

	err = i.chunks.InsertChunkBatch(ctx, chunks)
	if err != nil {
		return nil, helper.NewError("store chunks", err)
	}

	extracted := i.extractAll(ctx, document, chunks)

	i.logger.Info("Ingested document",
		slog.String("document_id", document.ID.String()),
		slog.Int("chunks", len(chunks)),
		slog.Int64("entities_extracted", extracted),
	)

	return &model.IngestResult{
		DocumentID:        document.ID,
		ChunkCount:        len(chunks),
		EntitiesExtracted: int(extracted),
	}, nil
}

// extractAll runs extraction over all chunks with a bounded worker pool.
// Per-chunk failures are logged and skipped. Context cancellation stops
// submitting new chunks, already stored chunks stay stored.
func (i *Ingestor) extractAll(ctx context.Context, document *model.Document, chunks []*model.DocumentChunk) int64 {
	if i.extractor == nil || i.config.ExtractionWorkers <= 0 {
		return 0
	}

	pool, err := ants.NewPool(i.config.ExtractionWorkers)
	if err != nil {
		i.logger.Warn("failed to create extraction pool", slog.String("error", err.Error()))
		return 0
	}
	defer pool.Release()

	var extracted atomic.Int64
	var wg sync.WaitGroup

	for _, chunk := range chunks {
		if ctx.Err() != nil {
			i.logger.Warn("extraction cancelled",
				slog.String("document_id", document.ID.String()),
			)
			break
		}

		chunk := chunk
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()

			count, err := i.extractor.ExtractAndMerge(ctx, chunk.Content, document.ID, i.entities, i.relationships)
			extracted.Add(int64(count))
			if err != nil {
				i.logger.Warn("extraction merge failed for chunk",
					slog.String("document_id", document.ID.String()),
					slog.Int("chunk_index", chunk.ChunkIndex),
					slog.String("error", err.Error()),
				)
			}
		})
		if err != nil {
			wg.Done()
			i.logger.Warn("failed to submit extraction task", slog.String("error", err.Error()))
		}
	}

	wg.Wait()

	return extracted.Load()
}
