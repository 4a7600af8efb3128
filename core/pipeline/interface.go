package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/kilnworks/hivekb/model"
)

// ChunkFunc is a function that splits text into overlapping windows.
type ChunkFunc func(text string) ([]ChunkWindow, error)

// ChunkWindow represents one window of the source text before embedding.
type ChunkWindow struct {
	Content  string
	Index    int
	Start    int
	End      int
	Metadata model.Metadata
}

// Embedder generates embeddings for texts. Implementations must return one
// embedding per input text, in order, each of Dimension() length.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// DocumentWriter persists document registry records.
type DocumentWriter interface {
	InsertDocument(ctx context.Context, document *model.Document) error
}

// ChunkWriter persists embedded chunks.
type ChunkWriter interface {
	InsertChunkBatch(ctx context.Context, chunks []*model.DocumentChunk) error
}

// EntityUpserter persists extracted entities.
type EntityUpserter interface {
	UpsertEntity(ctx context.Context, name string, entityType model.EntityType, properties model.Metadata, documentID *uuid.UUID) (*model.Entity, error)
}

// RelationshipUpserter persists extracted relationships.
type RelationshipUpserter interface {
	UpsertRelationship(ctx context.Context, sourceID string, targetID string, relType string, properties model.Metadata) (*model.Relationship, bool, error)
}
