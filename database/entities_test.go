package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntitiesNewEntitiesDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewEntitiesDBHandler", func(t *testing.T) {
		entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
		assert.NoError(t, err, "Expected NewEntitiesDBHandler to not return an error")
		require.NotNil(t, entitiesDbHandler, "Expected NewEntitiesDBHandler to return a non-nil instance")
		require.NotNil(t, entitiesDbHandler.db, "Expected NewEntitiesDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewEntitiesDBHandler with nil database", func(t *testing.T) {
		_, err := NewEntitiesDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating EntitiesDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil")
	})
}

func TestEntitiesUpsert(t *testing.T) {
	database := initDB(t)

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	ctx := tenantCtx("entities_upsert")

	t.Run("Upsert creates entity with deterministic id", func(t *testing.T) {
		entity, err := entitiesDbHandler.UpsertEntity(ctx, "San Francisco", model.EntityTypeLocation, model.Metadata{"country": "USA"}, nil)
		assert.NoError(t, err)
		assert.Equal(t, "entities_upsert:location:san_francisco", entity.ID)
		assert.Equal(t, model.EntityTypeLocation, entity.Type)
		assert.WithinDuration(t, time.Now(), entity.CreatedAt, 2*time.Second)
	})

	t.Run("Upsert merges properties instead of replacing", func(t *testing.T) {
		first, err := entitiesDbHandler.UpsertEntity(ctx, "OpenAI", model.EntityTypeOrganization, model.Metadata{"industry": "AI", "founded": "2015"}, nil)
		require.NoError(t, err)

		second, err := entitiesDbHandler.UpsertEntity(ctx, "OpenAI", model.EntityTypeOrganization, model.Metadata{"founded": "2015-12", "hq": "San Francisco"}, nil)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID, "Expected re-ingestion to converge on one node")
		assert.Equal(t, "AI", second.Properties["industry"], "Expected untouched keys to survive the merge")
		assert.Equal(t, "2015-12", second.Properties["founded"], "Expected new values to win key by key")
		assert.Equal(t, "San Francisco", second.Properties["hq"])
		assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "Expected CreatedAt to be preserved on merge")
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))

		count, err := entitiesDbHandler.CountEntities(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), count, "Expected exactly one node per distinct entity")
	})

	t.Run("Upsert with case-insensitive type", func(t *testing.T) {
		entity, err := entitiesDbHandler.UpsertEntity(ctx, "Go", "technology", model.Metadata{}, nil)
		assert.NoError(t, err)
		assert.Equal(t, model.EntityTypeTechnology, entity.Type)
	})

	t.Run("Unknown entity type is rejected", func(t *testing.T) {
		_, err := entitiesDbHandler.UpsertEntity(ctx, "Rex", "ANIMAL", model.Metadata{}, nil)
		var validation *helper.ValidationError
		assert.ErrorAs(t, err, &validation)
	})

	t.Run("Empty name is rejected", func(t *testing.T) {
		_, err := entitiesDbHandler.UpsertEntity(ctx, "", model.EntityTypePerson, model.Metadata{}, nil)
		var validation *helper.ValidationError
		assert.ErrorAs(t, err, &validation)
	})
}

func TestEntitiesSelect(t *testing.T) {
	database := initDB(t)

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	ctx := tenantCtx("entities_select")

	inserted, err := entitiesDbHandler.UpsertEntity(ctx, "Sam Altman", model.EntityTypePerson, model.Metadata{"role": "CEO"}, nil)
	require.NoError(t, err)

	t.Run("Select entity by id", func(t *testing.T) {
		entity, err := entitiesDbHandler.SelectEntity(ctx, inserted.ID)
		assert.NoError(t, err)
		assert.Equal(t, "Sam Altman", entity.Name)
		assert.Equal(t, "CEO", entity.Properties["role"])
	})

	t.Run("Select missing entity returns not found", func(t *testing.T) {
		_, err := entitiesDbHandler.SelectEntity(ctx, "entities_select:person:nobody")
		var notFound *helper.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestEntitiesSearch(t *testing.T) {
	database := initDB(t)

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	ctx := tenantCtx("entities_search")

	_, err = entitiesDbHandler.UpsertEntity(ctx, "OpenAI", model.EntityTypeOrganization, model.Metadata{}, nil)
	require.NoError(t, err)
	_, err = entitiesDbHandler.UpsertEntity(ctx, "OpenStack", model.EntityTypeTechnology, model.Metadata{}, nil)
	require.NoError(t, err)
	_, err = entitiesDbHandler.UpsertEntity(ctx, "Anthropic", model.EntityTypeOrganization, model.Metadata{}, nil)
	require.NoError(t, err)

	t.Run("Search is case-insensitive substring match", func(t *testing.T) {
		entities, err := entitiesDbHandler.SearchEntities(ctx, "open", nil, 10)
		assert.NoError(t, err)
		assert.Len(t, entities, 2)
	})

	t.Run("Search with type filter", func(t *testing.T) {
		orgType := model.EntityTypeOrganization
		entities, err := entitiesDbHandler.SearchEntities(ctx, "open", &orgType, 10)
		assert.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, "OpenAI", entities[0].Name)
	})

	t.Run("Search with limit", func(t *testing.T) {
		entities, err := entitiesDbHandler.SearchEntities(ctx, "", nil, 2)
		assert.NoError(t, err)
		assert.Len(t, entities, 2)
	})
}

func TestEntitiesDeleteByDocument(t *testing.T) {
	database := initDB(t)

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	ctx := tenantCtx("entities_delete_doc")
	documentID := uuid.New()
	otherDocumentID := uuid.New()

	_, err = entitiesDbHandler.UpsertEntity(ctx, "From Doc", model.EntityTypeConcept, model.Metadata{}, &documentID)
	require.NoError(t, err)
	_, err = entitiesDbHandler.UpsertEntity(ctx, "From Other Doc", model.EntityTypeConcept, model.Metadata{}, &otherDocumentID)
	require.NoError(t, err)

	deleted, err := entitiesDbHandler.DeleteEntitiesByDocument(ctx, documentID)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err := entitiesDbHandler.CountEntities(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEntitiesTenantIsolation(t *testing.T) {
	database := initDB(t)

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	ctxA := tenantCtx("entities_iso_a")
	ctxB := tenantCtx("entities_iso_b")

	entityA, err := entitiesDbHandler.UpsertEntity(ctxA, "Shared Name", model.EntityTypeOrganization, model.Metadata{"secret": "a"}, nil)
	require.NoError(t, err)

	t.Run("Same name under two tenants yields two distinct nodes", func(t *testing.T) {
		entityB, err := entitiesDbHandler.UpsertEntity(ctxB, "Shared Name", model.EntityTypeOrganization, model.Metadata{"secret": "b"}, nil)
		require.NoError(t, err)
		assert.NotEqual(t, entityA.ID, entityB.ID)
	})

	t.Run("Search never crosses tenants", func(t *testing.T) {
		entities, err := entitiesDbHandler.SearchEntities(ctxB, "shared", nil, 10)
		assert.NoError(t, err)
		require.Len(t, entities, 1)
		assert.Equal(t, "b", entities[0].Properties["secret"])
	})

	t.Run("Select by foreign id behaves as missing", func(t *testing.T) {
		_, err := entitiesDbHandler.SelectEntity(ctxB, entityA.ID)
		var notFound *helper.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestEntitiesWithoutTenant(t *testing.T) {
	database := initDB(t)

	entitiesDbHandler, err := NewEntitiesDBHandler(database, true)
	require.NoError(t, err)

	ctx := context.Background()

	_, err = entitiesDbHandler.UpsertEntity(ctx, "Nobody", model.EntityTypePerson, model.Metadata{}, nil)
	assert.ErrorIs(t, err, model.ErrNoTenantContext)

	_, err = entitiesDbHandler.SearchEntities(ctx, "any", nil, 10)
	assert.ErrorIs(t, err, model.ErrNoTenantContext)
}
