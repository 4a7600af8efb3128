package model

import "github.com/google/uuid"

// IngestResult summarizes one successful ingestion. EntitiesExtracted may be
// zero on a fully successful run, because extraction is best-effort.
type IngestResult struct {
	DocumentID        uuid.UUID `json:"document_id"`
	ChunkCount        int       `json:"chunk_count"`
	EntitiesExtracted int       `json:"entities_extracted"`
}

// HybridResult carries the two independently ordered result sets of a hybrid
// retrieval. The lists are not merged: weighing vector scores against graph
// matches is left to the caller.
type HybridResult struct {
	DocumentResults []*DocumentChunk `json:"document_results"`
	EntityResults   []*Entity        `json:"entity_results"`
}
