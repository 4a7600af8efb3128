package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType is the closed set of entity categories the extractor may emit.
type EntityType string

const (
	EntityTypePerson       EntityType = "PERSON"
	EntityTypeOrganization EntityType = "ORGANIZATION"
	EntityTypeLocation     EntityType = "LOCATION"
	EntityTypeConcept      EntityType = "CONCEPT"
	EntityTypeTechnology   EntityType = "TECHNOLOGY"
	EntityTypeEvent        EntityType = "EVENT"
	EntityTypeProduct      EntityType = "PRODUCT"
)

// EntityTypes lists all valid entity types.
var EntityTypes = []EntityType{
	EntityTypePerson,
	EntityTypeOrganization,
	EntityTypeLocation,
	EntityTypeConcept,
	EntityTypeTechnology,
	EntityTypeEvent,
	EntityTypeProduct,
}

// ParseEntityType normalizes s and reports whether it is a valid entity type.
func ParseEntityType(s string) (EntityType, bool) {
	t := EntityType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range EntityTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Entity is a node in the tenant's knowledge graph.
type Entity struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       EntityType `json:"entity_type"`
	Properties Metadata   `json:"properties,omitempty"`
	TenantID   string     `json:"tenant_id"`
	// DocumentID is the provenance of the most recent write.
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewEntityID derives the deterministic entity id from tenant, type and name:
// "tenant:type:name" lower-cased with whitespace replaced by underscores.
// This is pure content addressing. It performs no semantic entity resolution,
// so two distinct real-world entities with the same normalized name under one
// tenant and type collide into one node.
func NewEntityID(tenantID string, entityType EntityType, name string) string {
	id := strings.ToLower(fmt.Sprintf("%s:%s:%s", tenantID, entityType, name))
	return strings.Join(strings.Fields(id), "_")
}

// Relationship is a typed, directed edge between two entities of one tenant.
type Relationship struct {
	SourceID   string    `json:"source_id"`
	TargetID   string    `json:"target_id"`
	Type       string    `json:"rel_type"`
	Properties Metadata  `json:"properties,omitempty"`
	TenantID   string    `json:"tenant_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// SanitizeRelationshipType upper-cases a free-form relationship type and
// replaces whitespace with underscores ("works for" -> "WORKS_FOR").
// Malformed types are sanitized, never rejected.
func SanitizeRelationshipType(relType string) string {
	return strings.Join(strings.Fields(strings.ToUpper(strings.TrimSpace(relType))), "_")
}

// Direction selects which relationships of an entity to traverse.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionBoth Direction = "both"
)

// EntityConnection is one relationship of an entity, annotated with the
// neighboring entity on the other end.
type EntityConnection struct {
	RelationshipType string    `json:"rel_type"`
	Direction        Direction `json:"direction"`
	NeighborID       string    `json:"neighbor_id"`
	NeighborName     string    `json:"neighbor_name"`
	Properties       Metadata  `json:"properties,omitempty"`
}

// Subgraph is a deduplicated set of entities and relationships reachable from
// a starting entity set within a bounded number of hops.
type Subgraph struct {
	Entities      []*Entity       `json:"entities"`
	Relationships []*Relationship `json:"relationships"`
}
