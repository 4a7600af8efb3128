package model

import (
	"github.com/google/uuid"
)

// IngestConfig controls chunking and extraction during ingestion.
type IngestConfig struct {
	// ChunkSize is the target chunk size in characters.
	ChunkSize int `json:"chunk_size"`
	// ChunkOverlap is the number of characters shared between adjacent chunks.
	ChunkOverlap int `json:"chunk_overlap"`
	// ExtractionWorkers bounds the concurrent per-chunk extraction calls.
	ExtractionWorkers int `json:"extraction_workers"`
}

// DefaultIngestConfig returns the default ingestion configuration.
func DefaultIngestConfig() IngestConfig {
	return IngestConfig{
		ChunkSize:         1000,
		ChunkOverlap:      200,
		ExtractionWorkers: 4,
	}
}

// RetrieveConfig controls a hybrid retrieval query.
type RetrieveConfig struct {
	// Limit bounds each result set independently.
	Limit int `json:"limit"`
	// DocumentID restricts the similarity search to one document.
	DocumentID *uuid.UUID `json:"document_id,omitempty"`
	// EntityType restricts the entity search to one type.
	EntityType *EntityType `json:"entity_type,omitempty"`
}

// DefaultRetrieveConfig returns the default retrieval configuration.
func DefaultRetrieveConfig() RetrieveConfig {
	return RetrieveConfig{Limit: 5}
}
