package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/kilnworks/hivekb/model"
	"github.com/tmc/langchaingo/llms"
)

// fakeEmbedder returns a deterministic unit vector per text.
type fakeEmbedder struct {
	dimension int
	err       error
	calls     int
}

func newFakeEmbedder(dimension int) *fakeEmbedder {
	return &fakeEmbedder{dimension: dimension}
}

func (e *fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding := make([]float32, e.dimension)
		embedding[len(text)%e.dimension] = 1
		embeddings[i] = embedding
	}
	return embeddings, nil
}

func (e *fakeEmbedder) Dimension() int {
	return e.dimension
}

// fakeStore collects writes in memory behind one mutex so concurrent
// extraction workers can share it.
type fakeStore struct {
	mu            sync.Mutex
	documents     []*model.Document
	chunks        []*model.DocumentChunk
	entities      map[string]*model.Entity
	relationships []*model.Relationship
	chunkErr      error
	documentErr   error
	entityErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{entities: map[string]*model.Entity{}}
}

func (s *fakeStore) InsertDocument(ctx context.Context, document *model.Document) error {
	tenant, err := model.TenantFromContext(ctx)
	if err != nil {
		return err
	}
	if s.documentErr != nil {
		return s.documentErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	document.TenantID = tenant.TenantID
	s.documents = append(s.documents, document)
	return nil
}

func (s *fakeStore) InsertChunkBatch(ctx context.Context, chunks []*model.DocumentChunk) error {
	if _, err := model.TenantFromContext(ctx); err != nil {
		return err
	}
	if s.chunkErr != nil {
		return s.chunkErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *fakeStore) UpsertEntity(ctx context.Context, name string, entityType model.EntityType, properties model.Metadata, documentID *uuid.UUID) (*model.Entity, error) {
	tenant, err := model.TenantFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if s.entityErr != nil {
		return nil, s.entityErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := model.NewEntityID(tenant.TenantID, entityType, name)
	if existing, ok := s.entities[id]; ok {
		for k, v := range properties {
			existing.Properties[k] = v
		}
		return existing, nil
	}

	entity := &model.Entity{
		ID:         id,
		Name:       name,
		Type:       entityType,
		Properties: properties,
		TenantID:   tenant.TenantID,
		DocumentID: documentID,
	}
	s.entities[id] = entity
	return entity, nil
}

func (s *fakeStore) UpsertRelationship(ctx context.Context, sourceID string, targetID string, relType string, properties model.Metadata) (*model.Relationship, bool, error) {
	tenant, err := model.TenantFromContext(ctx)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entities[sourceID]; !ok {
		return nil, true, nil
	}
	if _, ok := s.entities[targetID]; !ok {
		return nil, true, nil
	}

	sanitized := model.SanitizeRelationshipType(relType)
	relationship := &model.Relationship{
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       sanitized,
		Properties: properties,
		TenantID:   tenant.TenantID,
	}
	s.relationships = append(s.relationships, relationship)
	return relationship, false, nil
}

// fakeLLM returns canned responses in order, then repeats the last one.
type fakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (f *fakeLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.responses) == 0 {
		return nil, errors.New("no canned response")
	}

	response := f.responses[0]
	if len(f.responses) > 1 {
		f.responses = f.responses[1:]
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: response}},
	}, nil
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	response, err := f.GenerateContent(ctx, nil, options...)
	if err != nil {
		return "", err
	}
	return response.Choices[0].Content, nil
}

func testTenantCtx() context.Context {
	return model.WithTenant(context.Background(), &model.TenantContext{
		TenantID: "pipeline_tenant",
		UserID:   "test_user",
	})
}
