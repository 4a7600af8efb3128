package model

// ExtractedEntity is an entity candidate proposed by the completion model.
type ExtractedEntity struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ExtractedRelationship is a relationship candidate proposed by the
// completion model. Source and Target refer to entity names from the same
// extraction call, not entity ids.
type ExtractedRelationship struct {
	Source      string `json:"source"`
	Target      string `json:"target"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// ExtractionResult holds the candidates of one extraction call. It is
// transient: produced by the extractor, consumed by the merge step, never
// persisted as-is. Extraction is best-effort enrichment, so a degraded call
// yields an empty result with Reason set instead of an error.
type ExtractionResult struct {
	Entities      []ExtractedEntity      `json:"entities"`
	Relationships []ExtractedRelationship `json:"relationships"`
	// Reason notes why the result is empty when extraction degraded.
	Reason string `json:"reason,omitempty"`
}

// EmptyExtractionResult returns a degraded result carrying the reason.
func EmptyExtractionResult(reason string) *ExtractionResult {
	return &ExtractionResult{Reason: reason}
}

// Empty reports whether the extraction produced no candidates.
func (r *ExtractionResult) Empty() bool {
	return len(r.Entities) == 0 && len(r.Relationships) == 0
}
