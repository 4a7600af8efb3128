package hivekb

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/kilnworks/hivekb/core/pipeline"
	"github.com/kilnworks/hivekb/core/retrieval"
	"github.com/kilnworks/hivekb/database"
	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
	loadSql "github.com/kilnworks/hivekb/sql"
	"github.com/tmc/langchaingo/llms"
)

// HiveKB provides a unified interface to the knowledge base: ingestion,
// hybrid retrieval and the per-table database handlers. Every operation is
// scoped to the tenant bound to its context.
type HiveKB struct {
	DB            *helper.Database
	Documents     *database.DocumentsDBHandler
	Chunks        *database.ChunksDBHandler
	Entities      *database.EntitiesDBHandler
	Relationships *database.RelationshipsDBHandler
	Ingestor      *pipeline.Ingestor
	Engine        *retrieval.Engine
	// Logging
	log *slog.Logger
}

// New creates a HiveKB instance with all handlers initialized. The chunk
// table is dimensioned to the embedder, so the embedder is fixed for the
// lifetime of the store. llm is optional, without it ingestion stores chunks
// but builds no graph.
func New(config *helper.DatabaseConfiguration, embedder pipeline.Embedder, llm llms.Model, ingestConfig model.IngestConfig) (*HiveKB, error) {
	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("hivekb", config, logger)
	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers in dependency order (documents first, then the
	// tables referencing them). force=false to not reload if functions
	// already exist.
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, embedder.Dimension(), false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	relationships, err := database.NewRelationshipsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create relationships handler", err)
	}

	var extractor *pipeline.Extractor
	if llm != nil {
		extractor = pipeline.NewExtractor(llm, logger)
	}

	ingestor := pipeline.NewIngestor(embedder, documents, chunks, entities, relationships, extractor, ingestConfig, logger)
	engine := retrieval.NewEngine(chunks, entities, relationships, embedder, logger)

	return &HiveKB{
		DB:            db,
		Documents:     documents,
		Chunks:        chunks,
		Entities:      entities,
		Relationships: relationships,
		Ingestor:      ingestor,
		Engine:        engine,
		log:           logger,
	}, nil
}

// NewWithDefaultEmbedder creates a HiveKB instance backed by the local
// all-MiniLM-L6-v2 model (384 dimensions). The model is downloaded on first
// use.
func NewWithDefaultEmbedder(config *helper.DatabaseConfiguration, llm llms.Model, ingestConfig model.IngestConfig) (*HiveKB, error) {
	embedder, err := pipeline.DefaultEmbedder()
	if err != nil {
		return nil, helper.NewError("create default embedder", err)
	}
	return New(config, embedder, llm, ingestConfig)
}

// Close closes the database connection
func (h *HiveKB) Close() error {
	if h.DB != nil && h.DB.Instance != nil {
		return h.DB.Instance.Close()
	}
	return nil
}

// Ingest chunks, embeds and stores a document for the tenant bound to ctx,
// then extracts entities and relationships into the graph.
func (h *HiveKB) Ingest(ctx context.Context, filename string, text string, metadata model.Metadata) (*model.IngestResult, error) {
	return h.Ingestor.Ingest(ctx, filename, text, metadata)
}

// Retrieve runs hybrid retrieval for the tenant bound to ctx: vector
// similarity search over chunks and name search over entities, concurrently.
func (h *HiveKB) Retrieve(ctx context.Context, query string, config model.RetrieveConfig) (*model.HybridResult, error) {
	return h.Engine.Retrieve(ctx, query, config)
}

// EntityConnections returns the relationships of an entity together with the
// neighboring entities.
func (h *HiveKB) EntityConnections(ctx context.Context, entityID string, direction model.Direction, limit int) ([]*model.EntityConnection, error) {
	return h.Engine.EntityConnections(ctx, entityID, direction, limit)
}

// Subgraph returns the subgraph reachable from the root entities within
// maxHops hops.
func (h *HiveKB) Subgraph(ctx context.Context, rootIDs []string, maxHops int) (*model.Subgraph, error) {
	return h.Engine.Subgraph(ctx, rootIDs, maxHops)
}

// DeleteDocument removes a document with its chunks and extracted entities.
// Relationships touching the deleted entities are removed by the database
// cascade.
func (h *HiveKB) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	chunksDeleted, err := h.Chunks.DeleteChunksByDocument(ctx, id)
	if err != nil {
		return helper.NewError("delete document chunks", err)
	}

	entitiesDeleted, err := h.Entities.DeleteEntitiesByDocument(ctx, id)
	if err != nil {
		return helper.NewError("delete document entities", err)
	}

	err = h.Documents.DeleteDocument(ctx, id)
	if err != nil {
		return helper.NewError("delete document", err)
	}

	h.log.Info("Deleted document",
		slog.String("document_id", id.String()),
		slog.Int64("chunks_deleted", chunksDeleted),
		slog.Int64("entities_deleted", entitiesDeleted),
	)

	return nil
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (h *HiveKB) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return h.Chunks.ChangeIndexType(ctx, indexType, params)
}
