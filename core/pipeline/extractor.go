package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/kilnworks/hivekb/model"
	"github.com/tmc/langchaingo/llms"
)

const extractionSystemPrompt = `You extract entities and relationships from text.
Valid entity types: PERSON, ORGANIZATION, LOCATION, CONCEPT, TECHNOLOGY, EVENT, PRODUCT.
Respond with a single JSON object and nothing else:
{
  "entities": [{"name": "...", "type": "...", "description": "..."}],
  "relationships": [{"source": "...", "target": "...", "type": "...", "description": "..."}]
}
Relationship source and target must be entity names from the same response.
Use upper case relationship types like WORKS_FOR or LOCATED_IN.
If the text contains no entities, respond with {"entities": [], "relationships": []}.`

// Extractor proposes entities and relationships for a chunk of text using a
// completion model. Extraction is best-effort enrichment: a failing or
// garbled completion degrades to an empty result, never an error, so
// ingestion keeps going.
type Extractor struct {
	client llms.Model
	logger *slog.Logger
}

// NewExtractor creates an extractor on top of any langchaingo completion model.
func NewExtractor(client llms.Model, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		client: client,
		logger: logger,
	}
}

// Extract proposes entity and relationship candidates for one chunk of text.
// Candidates with unknown entity types are dropped. The returned result
// carries a Reason instead of candidates when extraction degraded.
func (e *Extractor) Extract(ctx context.Context, text string) *model.ExtractionResult {
	if strings.TrimSpace(text) == "" {
		return model.EmptyExtractionResult("empty text")
	}

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{
				llms.TextPart(extractionSystemPrompt),
			},
		},
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(text),
			},
		},
	}

	response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
	if err != nil {
		e.logger.Warn("extraction completion failed", slog.String("error", err.Error()))
		return model.EmptyExtractionResult("completion failed")
	}
	if len(response.Choices) < 1 {
		return model.EmptyExtractionResult("no choices returned")
	}

	payload, ok := extractJSONPayload(response.Choices[0].Content)
	if !ok {
		e.logger.Warn("extraction returned no structured payload")
		return model.EmptyExtractionResult("no structured payload")
	}

	var result model.ExtractionResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		e.logger.Warn("extraction returned invalid payload", slog.String("error", err.Error()))
		return model.EmptyExtractionResult("invalid payload")
	}

	// Drop candidates outside the closed entity type set.
	valid := result.Entities[:0]
	for _, entity := range result.Entities {
		if _, ok := model.ParseEntityType(entity.Type); ok && strings.TrimSpace(entity.Name) != "" {
			valid = append(valid, entity)
		}
	}
	result.Entities = valid

	return &result
}

// ExtractAndMerge extracts candidates from one chunk and merges them into
// the graph store. Relationship endpoints are resolved against the entity
// names of the same extraction call. Returns the number of entities written.
// Storage errors are returned, extraction degradation is not.
func (e *Extractor) ExtractAndMerge(ctx context.Context, text string, documentID uuid.UUID, entities EntityUpserter, relationships RelationshipUpserter) (int, error) {
	result := e.Extract(ctx, text)
	if result.Empty() {
		if result.Reason != "" {
			e.logger.Info("extraction degraded", slog.String("reason", result.Reason))
		}
		return 0, nil
	}

	// Map candidate names to stored entity ids for endpoint resolution.
	idsByName := make(map[string]string, len(result.Entities))
	written := 0
	for _, candidate := range result.Entities {
		entityType, _ := model.ParseEntityType(candidate.Type)
		properties := model.Metadata{}
		if candidate.Description != "" {
			properties["description"] = candidate.Description
		}

		entity, err := entities.UpsertEntity(ctx, candidate.Name, entityType, properties, &documentID)
		if err != nil {
			return written, err
		}
		idsByName[candidate.Name] = entity.ID
		written++
	}

	for _, candidate := range result.Relationships {
		sourceID, sourceOK := idsByName[candidate.Source]
		targetID, targetOK := idsByName[candidate.Target]
		if !sourceOK || !targetOK {
			// The model referenced a name it never declared as an entity.
			e.logger.Info("dropping dangling relationship",
				slog.String("source", candidate.Source),
				slog.String("target", candidate.Target),
			)
			continue
		}

		properties := model.Metadata{}
		if candidate.Description != "" {
			properties["description"] = candidate.Description
		}

		_, skipped, err := relationships.UpsertRelationship(ctx, sourceID, targetID, candidate.Type, properties)
		if err != nil {
			return written, err
		}
		if skipped {
			e.logger.Info("skipped relationship with missing endpoint",
				slog.String("source_id", sourceID),
				slog.String("target_id", targetID),
			)
		}
	}

	return written, nil
}

// extractJSONPayload strips markdown code fences and isolates the outermost
// JSON object from a completion response.
func extractJSONPayload(response string) (string, bool) {
	text := strings.TrimSpace(response)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}

	return text[start : end+1], true
}
