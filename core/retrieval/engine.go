package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/kilnworks/hivekb/core/pipeline"
	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
	"golang.org/x/sync/errgroup"
)

// ChunkSearcher performs vector similarity search over stored chunks.
type ChunkSearcher interface {
	SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, documentID *uuid.UUID) ([]*model.DocumentChunk, error)
}

// EntitySearcher performs name search over stored entities.
type EntitySearcher interface {
	SearchEntities(ctx context.Context, search string, entityType *model.EntityType, limit int) ([]*model.Entity, error)
}

// RelationshipReader reads the relationship graph.
type RelationshipReader interface {
	SelectRelationships(ctx context.Context, entityID string, direction model.Direction, limit int) ([]*model.EntityConnection, error)
	Subgraph(ctx context.Context, rootIDs []string, maxHops int) (*model.Subgraph, error)
}

// Engine performs hybrid retrieval: vector similarity search over chunks and
// name search over graph entities, run concurrently against the same tenant
// scope.
type Engine struct {
	chunks        ChunkSearcher
	entities      EntitySearcher
	relationships RelationshipReader
	embedder      pipeline.Embedder
	logger        *slog.Logger
}

// NewEngine creates a new retrieval engine.
func NewEngine(chunks ChunkSearcher, entities EntitySearcher, relationships RelationshipReader, embedder pipeline.Embedder, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		chunks:        chunks,
		entities:      entities,
		relationships: relationships,
		embedder:      embedder,
		logger:        logger,
	}
}

// Retrieve runs both retrieval legs concurrently and returns their results
// side by side, each independently ordered and independently bounded by
// config.Limit. The query is embedded exactly once. A failure in either leg
// fails the retrieval.
func (e *Engine) Retrieve(ctx context.Context, query string, config model.RetrieveConfig) (*model.HybridResult, error) {
	if _, err := model.TenantFromContext(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, &helper.ValidationError{Field: "query", Reason: "must not be empty"}
	}
	if config.Limit <= 0 {
		config.Limit = model.DefaultRetrieveConfig().Limit
	}

	embeddings, err := e.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, helper.NewError("embed query", err)
	}
	if len(embeddings) != 1 {
		return nil, helper.NewError("embed query", &helper.ValidationError{Field: "embedding", Reason: "embedder returned no embedding"})
	}

	result := &model.HybridResult{
		DocumentResults: []*model.DocumentChunk{},
		EntityResults:   []*model.Entity{},
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		chunks, err := e.chunks.SelectChunksBySimilarity(groupCtx, embeddings[0], config.Limit, config.DocumentID)
		if err != nil {
			return helper.NewError("similarity search", err)
		}
		if chunks != nil {
			result.DocumentResults = chunks
		}
		return nil
	})

	group.Go(func() error {
		entities, err := e.entities.SearchEntities(groupCtx, query, config.EntityType, config.Limit)
		if err != nil {
			return helper.NewError("entity search", err)
		}
		if entities != nil {
			result.EntityResults = entities
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}

	e.logger.Info("Hybrid retrieval",
		slog.Int("document_results", len(result.DocumentResults)),
		slog.Int("entity_results", len(result.EntityResults)),
	)

	return result, nil
}

// EntityConnections returns the relationships of an entity annotated with
// the neighboring entities.
func (e *Engine) EntityConnections(ctx context.Context, entityID string, direction model.Direction, limit int) ([]*model.EntityConnection, error) {
	if limit <= 0 {
		limit = model.DefaultRetrieveConfig().Limit
	}
	return e.relationships.SelectRelationships(ctx, entityID, direction, limit)
}

// Subgraph returns the subgraph reachable from the root entities within
// maxHops hops.
func (e *Engine) Subgraph(ctx context.Context, rootIDs []string, maxHops int) (*model.Subgraph, error) {
	return e.relationships.Subgraph(ctx, rootIDs, maxHops)
}
