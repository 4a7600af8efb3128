package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{1, 0, 0}
	}
	return embeddings, nil
}

func (e *fakeEmbedder) Dimension() int {
	return 3
}

type fakeSearcher struct {
	chunks      []*model.DocumentChunk
	entities    []*model.Entity
	connections []*model.EntityConnection
	subgraph    *model.Subgraph

	chunkErr  error
	entityErr error

	gotLimit      int
	gotDocumentID *uuid.UUID
	gotSearch     string
	gotType       *model.EntityType
}

func (s *fakeSearcher) SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, documentID *uuid.UUID) ([]*model.DocumentChunk, error) {
	if s.chunkErr != nil {
		return nil, s.chunkErr
	}
	s.gotLimit = limit
	s.gotDocumentID = documentID
	if len(s.chunks) > limit {
		return s.chunks[:limit], nil
	}
	return s.chunks, nil
}

func (s *fakeSearcher) SearchEntities(ctx context.Context, search string, entityType *model.EntityType, limit int) ([]*model.Entity, error) {
	if s.entityErr != nil {
		return nil, s.entityErr
	}
	s.gotSearch = search
	s.gotType = entityType
	if len(s.entities) > limit {
		return s.entities[:limit], nil
	}
	return s.entities, nil
}

func (s *fakeSearcher) SelectRelationships(ctx context.Context, entityID string, direction model.Direction, limit int) ([]*model.EntityConnection, error) {
	return s.connections, nil
}

func (s *fakeSearcher) Subgraph(ctx context.Context, rootIDs []string, maxHops int) (*model.Subgraph, error) {
	return s.subgraph, nil
}

func tenantCtx() context.Context {
	return model.WithTenant(context.Background(), &model.TenantContext{
		TenantID: "retrieval_tenant",
		UserID:   "test_user",
	})
}

func newTestEngine(searcher *fakeSearcher, embedder *fakeEmbedder) *Engine {
	return NewEngine(searcher, searcher, searcher, embedder, slog.New(slog.DiscardHandler))
}

func TestEngineRetrieve(t *testing.T) {
	t.Run("Returns both result sets side by side", func(t *testing.T) {
		searcher := &fakeSearcher{
			chunks: []*model.DocumentChunk{
				{Content: "best match", Similarity: 0.95},
				{Content: "second match", Similarity: 0.80},
			},
			entities: []*model.Entity{
				{ID: "retrieval_tenant:organization:openai", Name: "OpenAI"},
			},
		}
		engine := newTestEngine(searcher, &fakeEmbedder{})

		result, err := engine.Retrieve(tenantCtx(), "openai", model.DefaultRetrieveConfig())
		require.NoError(t, err)
		assert.Len(t, result.DocumentResults, 2)
		assert.Len(t, result.EntityResults, 1)
		assert.Equal(t, "openai", searcher.gotSearch, "Expected the raw query to drive the entity search")
	})

	t.Run("Query is embedded exactly once", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		engine := newTestEngine(&fakeSearcher{}, embedder)

		_, err := engine.Retrieve(tenantCtx(), "query", model.DefaultRetrieveConfig())
		require.NoError(t, err)
		assert.Equal(t, 1, embedder.calls)
	})

	t.Run("Empty results are empty slices, not nil", func(t *testing.T) {
		engine := newTestEngine(&fakeSearcher{}, &fakeEmbedder{})

		result, err := engine.Retrieve(tenantCtx(), "nothing here", model.DefaultRetrieveConfig())
		require.NoError(t, err)
		assert.NotNil(t, result.DocumentResults)
		assert.NotNil(t, result.EntityResults)
		assert.Empty(t, result.DocumentResults)
		assert.Empty(t, result.EntityResults)
	})

	t.Run("Limit defaults when not positive", func(t *testing.T) {
		searcher := &fakeSearcher{}
		engine := newTestEngine(searcher, &fakeEmbedder{})

		_, err := engine.Retrieve(tenantCtx(), "query", model.RetrieveConfig{})
		require.NoError(t, err)
		assert.Equal(t, model.DefaultRetrieveConfig().Limit, searcher.gotLimit)
	})

	t.Run("Config filters are passed through", func(t *testing.T) {
		searcher := &fakeSearcher{}
		engine := newTestEngine(searcher, &fakeEmbedder{})

		documentID := uuid.New()
		personType := model.EntityTypePerson
		_, err := engine.Retrieve(tenantCtx(), "query", model.RetrieveConfig{
			Limit:      3,
			DocumentID: &documentID,
			EntityType: &personType,
		})
		require.NoError(t, err)
		require.NotNil(t, searcher.gotDocumentID)
		assert.Equal(t, documentID, *searcher.gotDocumentID)
		require.NotNil(t, searcher.gotType)
		assert.Equal(t, personType, *searcher.gotType)
	})

	t.Run("Empty query is rejected", func(t *testing.T) {
		engine := newTestEngine(&fakeSearcher{}, &fakeEmbedder{})

		_, err := engine.Retrieve(tenantCtx(), "   ", model.DefaultRetrieveConfig())
		var validation *helper.ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("Fails closed without tenant", func(t *testing.T) {
		embedder := &fakeEmbedder{}
		engine := newTestEngine(&fakeSearcher{}, embedder)

		_, err := engine.Retrieve(context.Background(), "query", model.DefaultRetrieveConfig())
		assert.ErrorIs(t, err, model.ErrNoTenantContext)
		assert.Equal(t, 0, embedder.calls, "Expected no work before the tenant check")
	})

	t.Run("Embedding failure fails the retrieval", func(t *testing.T) {
		engine := newTestEngine(&fakeSearcher{}, &fakeEmbedder{err: errors.New("model offline")})

		_, err := engine.Retrieve(tenantCtx(), "query", model.DefaultRetrieveConfig())
		assert.Error(t, err)
	})

	t.Run("A failing leg fails the retrieval", func(t *testing.T) {
		searcher := &fakeSearcher{chunkErr: errors.New("connection lost")}
		engine := newTestEngine(searcher, &fakeEmbedder{})

		_, err := engine.Retrieve(tenantCtx(), "query", model.DefaultRetrieveConfig())
		assert.Error(t, err)

		searcher = &fakeSearcher{entityErr: errors.New("connection lost")}
		engine = newTestEngine(searcher, &fakeEmbedder{})

		_, err = engine.Retrieve(tenantCtx(), "query", model.DefaultRetrieveConfig())
		assert.Error(t, err)
	})
}

func TestEngineEntityConnections(t *testing.T) {
	searcher := &fakeSearcher{
		connections: []*model.EntityConnection{
			{RelationshipType: "WORKS_FOR", Direction: model.DirectionOut, NeighborName: "OpenAI"},
		},
	}
	engine := newTestEngine(searcher, &fakeEmbedder{})

	connections, err := engine.EntityConnections(tenantCtx(), "retrieval_tenant:person:sam", model.DirectionBoth, 0)
	require.NoError(t, err)
	require.Len(t, connections, 1)
	assert.Equal(t, "WORKS_FOR", connections[0].RelationshipType)
}

func TestEngineSubgraph(t *testing.T) {
	searcher := &fakeSearcher{
		subgraph: &model.Subgraph{
			Entities:      []*model.Entity{{ID: "a"}, {ID: "b"}},
			Relationships: []*model.Relationship{{SourceID: "a", TargetID: "b", Type: "RELATED_TO"}},
		},
	}
	engine := newTestEngine(searcher, &fakeEmbedder{})

	subgraph, err := engine.Subgraph(tenantCtx(), []string{"a"}, 2)
	require.NoError(t, err)
	assert.Len(t, subgraph.Entities, 2)
	assert.Len(t, subgraph.Relationships, 1)
}
