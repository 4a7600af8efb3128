package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
	loadSql "github.com/kilnworks/hivekb/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	UpsertEntity(ctx context.Context, name string, entityType model.EntityType, properties model.Metadata, documentID *uuid.UUID) (*model.Entity, error)
	SelectEntity(ctx context.Context, id string) (*model.Entity, error)
	SearchEntities(ctx context.Context, search string, entityType *model.EntityType, limit int) ([]*model.Entity, error)
	DeleteEntitiesByDocument(ctx context.Context, documentID uuid.UUID) (int64, error)
	CountEntities(ctx context.Context) (int64, error)
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes and isolation policies.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// UpsertEntity inserts or merges an entity. The id is derived from tenant,
// type and normalized name, so re-ingesting the same entity converges on one
// node. On merge, new properties win key by key and existing keys absent
// from the new properties survive.
func (h *EntitiesDBHandler) UpsertEntity(ctx context.Context, name string, entityType model.EntityType, properties model.Metadata, documentID *uuid.UUID) (*model.Entity, error) {
	parsedType, ok := model.ParseEntityType(string(entityType))
	if !ok {
		return nil, &helper.ValidationError{Field: "entity_type", Reason: fmt.Sprintf("unknown entity type %q", entityType)}
	}
	if name == "" {
		return nil, &helper.ValidationError{Field: "name", Reason: "must not be empty"}
	}

	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return nil, err
	}
	defer release()

	entity := &model.Entity{}
	row := conn.QueryRowContext(ctx,
		`SELECT * FROM upsert_entity($1, $2, $3, $4, $5, $6)`,
		tenant.TenantID,
		model.NewEntityID(tenant.TenantID, parsedType, name),
		name,
		parsedType,
		properties,
		documentID,
	)

	err = row.Scan(
		&entity.TenantID,
		&entity.ID,
		&entity.Name,
		&entity.Type,
		&entity.Properties,
		&entity.DocumentID,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SelectEntity retrieves an entity by ID within the tenant's scope. An
// entity of another tenant is indistinguishable from a missing one.
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, id string) (*model.Entity, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return nil, err
	}
	defer release()

	entity := &model.Entity{}
	row := conn.QueryRowContext(ctx,
		`SELECT * FROM select_entity($1, $2)`,
		tenant.TenantID,
		id,
	)

	err = row.Scan(
		&entity.TenantID,
		&entity.ID,
		&entity.Name,
		&entity.Type,
		&entity.Properties,
		&entity.DocumentID,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &helper.NotFoundError{Kind: "entity", ID: id}
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}

// SearchEntities searches entities by case-insensitive name substring,
// optionally filtered by type.
func (h *EntitiesDBHandler) SearchEntities(ctx context.Context, search string, entityType *model.EntityType, limit int) ([]*model.Entity, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := conn.QueryContext(ctx,
		`SELECT * FROM search_entities($1, $2, $3, $4)`,
		tenant.TenantID,
		search,
		entityType,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := rows.Scan(
			&entity.TenantID,
			&entity.ID,
			&entity.Name,
			&entity.Type,
			&entity.Properties,
			&entity.DocumentID,
			&entity.CreatedAt,
			&entity.UpdatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// DeleteEntitiesByDocument deletes all entities last written by the given
// document and returns the number of deleted entities. Relationships of
// deleted entities are removed by the foreign key cascade.
func (h *EntitiesDBHandler) DeleteEntitiesByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return 0, err
	}
	defer release()

	var deleted int64
	err = conn.QueryRowContext(ctx,
		`SELECT delete_entities_by_document($1, $2)`,
		tenant.TenantID,
		documentID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return deleted, nil
}

// CountEntities returns the number of entities of the tenant.
func (h *EntitiesDBHandler) CountEntities(ctx context.Context) (int64, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return 0, err
	}
	defer release()

	var count int64
	err = conn.QueryRowContext(ctx,
		`SELECT count_entities($1)`,
		tenant.TenantID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}
