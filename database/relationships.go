package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
	loadSql "github.com/kilnworks/hivekb/sql"
)

// DefaultRelationshipType is used when sanitizing empties a relationship type.
const DefaultRelationshipType = "RELATED_TO"

// RelationshipsDBHandlerFunctions defines the interface for Relationships database operations.
type RelationshipsDBHandlerFunctions interface {
	UpsertRelationship(ctx context.Context, sourceID string, targetID string, relType string, properties model.Metadata) (*model.Relationship, bool, error)
	SelectRelationships(ctx context.Context, entityID string, direction model.Direction, limit int) ([]*model.EntityConnection, error)
	Subgraph(ctx context.Context, rootIDs []string, maxHops int) (*model.Subgraph, error)
	CountRelationships(ctx context.Context) (int64, error)
}

// RelationshipsDBHandler handles relationship-related database operations
type RelationshipsDBHandler struct {
	db *helper.Database
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// It initializes the database connection and loads relationship-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
// The entities table must exist first because relationships reference it.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
	}

	err := loadSql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// CreateTable creates the 'relationships' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes and isolation policies.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationships();`)
	if err != nil {
		log.Panicf("error initializing relationships table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// UpsertRelationship inserts or merges a relationship between two existing
// entities. When either endpoint does not exist for the tenant the
// relationship is skipped, reported by the second return value, not an
// error. The relationship type is sanitized, never rejected.
func (h *RelationshipsDBHandler) UpsertRelationship(ctx context.Context, sourceID string, targetID string, relType string, properties model.Metadata) (*model.Relationship, bool, error) {
	sanitized := model.SanitizeRelationshipType(relType)
	if sanitized == "" {
		sanitized = DefaultRelationshipType
	}

	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return nil, false, err
	}
	defer release()

	relationship := &model.Relationship{}
	row := conn.QueryRowContext(ctx,
		`SELECT * FROM upsert_relationship($1, $2, $3, $4, $5)`,
		tenant.TenantID,
		sourceID,
		targetID,
		sanitized,
		properties,
	)

	err = row.Scan(
		&relationship.TenantID,
		&relationship.SourceID,
		&relationship.TargetID,
		&relationship.Type,
		&relationship.Properties,
		&relationship.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// A missing endpoint produces no row. The edge is skipped so one
		// dangling relationship cannot fail a whole extraction merge.
		return nil, true, nil
	}
	if err != nil {
		return nil, false, helper.NewError("scan", err)
	}

	return relationship, false, nil
}

// SelectRelationships retrieves the relationships of an entity in the given
// direction, annotated with the neighboring entity.
func (h *RelationshipsDBHandler) SelectRelationships(ctx context.Context, entityID string, direction model.Direction, limit int) ([]*model.EntityConnection, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := h.selectRelationshipRows(ctx, conn, tenant.TenantID, entityID, direction, limit)
	if err != nil {
		return nil, err
	}

	connections := make([]*model.EntityConnection, 0, len(rows))
	for _, r := range rows {
		connections = append(connections, &model.EntityConnection{
			RelationshipType: r.relationship.Type,
			Direction:        r.direction,
			NeighborID:       r.neighborID,
			NeighborName:     r.neighborName,
			Properties:       r.relationship.Properties,
		})
	}

	return connections, nil
}

// Subgraph collects all entities and relationships reachable from the root
// entities within maxHops hops, breadth-first. Entities and relationships
// are deduplicated. Unknown root ids are ignored.
func (h *RelationshipsDBHandler) Subgraph(ctx context.Context, rootIDs []string, maxHops int) (*model.Subgraph, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return nil, err
	}
	defer release()

	subgraph := &model.Subgraph{
		Entities:      []*model.Entity{},
		Relationships: []*model.Relationship{},
	}

	seenEntities := map[string]bool{}
	seenRelationships := map[string]bool{}

	frontier := []string{}
	for _, id := range rootIDs {
		entity, err := h.selectEntityOnConn(ctx, conn, tenant.TenantID, id)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if !seenEntities[entity.ID] {
			seenEntities[entity.ID] = true
			subgraph.Entities = append(subgraph.Entities, entity)
			frontier = append(frontier, entity.ID)
		}
	}

	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		var next []string
		for _, id := range frontier {
			rows, err := h.selectRelationshipRows(ctx, conn, tenant.TenantID, id, model.DirectionBoth, -1)
			if err != nil {
				return nil, err
			}

			for _, r := range rows {
				key := r.relationship.SourceID + "\x00" + r.relationship.TargetID + "\x00" + r.relationship.Type
				if !seenRelationships[key] {
					seenRelationships[key] = true
					subgraph.Relationships = append(subgraph.Relationships, r.relationship)
				}

				if seenEntities[r.neighborID] {
					continue
				}
				neighbor, err := h.selectEntityOnConn(ctx, conn, tenant.TenantID, r.neighborID)
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				if err != nil {
					return nil, err
				}
				seenEntities[neighbor.ID] = true
				subgraph.Entities = append(subgraph.Entities, neighbor)
				next = append(next, neighbor.ID)
			}
		}
		frontier = next
	}

	return subgraph, nil
}

// CountRelationships returns the number of relationships of the tenant.
func (h *RelationshipsDBHandler) CountRelationships(ctx context.Context) (int64, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return 0, err
	}
	defer release()

	var count int64
	err = conn.QueryRowContext(ctx,
		`SELECT count_relationships($1)`,
		tenant.TenantID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}

type relationshipRow struct {
	relationship *model.Relationship
	direction    model.Direction
	neighborID   string
	neighborName string
}

// selectRelationshipRows runs select_relationships on an already scoped
// connection. A negative limit means no limit.
func (h *RelationshipsDBHandler) selectRelationshipRows(ctx context.Context, conn *sql.Conn, tenantID string, entityID string, direction model.Direction, limit int) ([]relationshipRow, error) {
	var limitParam interface{}
	if limit >= 0 {
		limitParam = limit
	}

	rows, err := conn.QueryContext(ctx,
		`SELECT * FROM select_relationships($1, $2, $3, $4)`,
		tenantID,
		entityID,
		string(direction),
		limitParam,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []relationshipRow
	for rows.Next() {
		relationship := &model.Relationship{}
		var r relationshipRow
		err := rows.Scan(
			&relationship.TenantID,
			&relationship.SourceID,
			&relationship.TargetID,
			&relationship.Type,
			&relationship.Properties,
			&relationship.CreatedAt,
			&r.direction,
			&r.neighborID,
			&r.neighborName,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		r.relationship = relationship
		results = append(results, r)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// selectEntityOnConn reads one entity on an already scoped connection.
// Returns sql.ErrNoRows when the entity does not exist for the tenant.
func (h *RelationshipsDBHandler) selectEntityOnConn(ctx context.Context, conn *sql.Conn, tenantID string, id string) (*model.Entity, error) {
	entity := &model.Entity{}
	row := conn.QueryRowContext(ctx,
		`SELECT * FROM select_entity($1, $2)`,
		tenantID,
		id,
	)

	err := row.Scan(
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, helper.NewError("scan", err)
	}

	return entity, nil
}
