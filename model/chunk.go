package model

import (
	"time"

	"github.com/google/uuid"
)

// DocumentChunk is a bounded window of a document's text with its embedding.
// Chunks are immutable once written, except for deletion by document.
type DocumentChunk struct {
	ID         uuid.UUID `json:"id"`
	TenantID   string    `json:"tenant_id"`
	DocumentID uuid.UUID `json:"document_id"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	ChunkIndex int       `json:"chunk_index"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	// Similarity is populated on search results only (cosine, 1.0 = identical).
	Similarity float64 `json:"similarity,omitempty"`
}
