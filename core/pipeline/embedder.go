package pipeline

import (
	"context"
	"fmt"

	"github.com/kilnworks/hivekb/helper"
	"github.com/knights-analytics/hugot"
)

const (
	// DefaultEmbeddingModel is the sentence transformer used when no model
	// is configured.
	DefaultEmbeddingModel = "sentence-transformers/all-MiniLM-L6-v2"
	// DefaultEmbeddingDim is the output dimension of DefaultEmbeddingModel.
	DefaultEmbeddingDim = 384
)

// LocalEmbedder generates embeddings with a local sentence transformer model
// running on the hugot Go backend. Safe for concurrent use.
type LocalEmbedder struct {
	session   *hugot.Session
	dimension int
	run       func(texts []string) ([][]float32, error)
}

// NewLocalEmbedder downloads the model if needed and initializes an
// embedding pipeline for it.
func NewLocalEmbedder(modelName string, dimension int) (*LocalEmbedder, error) {
	modelPath, err := helper.PrepareModel(modelName)
	if err != nil {
		return nil, err
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create hugot session: %w", err)
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	sentencePipeline, err := hugot.NewPipeline(session, config)
	if err != nil {
		if destroyErr := session.Destroy(); destroyErr != nil {
			return nil, fmt.Errorf("failed to create sentence pipeline: %w (cleanup error: %v)", err, destroyErr)
		}
		return nil, fmt.Errorf("failed to create sentence pipeline: %w", err)
	}

	return &LocalEmbedder{
		session:   session,
		dimension: dimension,
		run: func(texts []string) ([][]float32, error) {
			result, err := sentencePipeline.RunPipeline(texts)
			if err != nil {
				return nil, fmt.Errorf("failed to generate embeddings: %w", err)
			}
			return result.Embeddings, nil
		},
	}, nil
}

// DefaultEmbedder creates a LocalEmbedder with the all-MiniLM-L6-v2 model
// (384 dimensions).
func DefaultEmbedder() (*LocalEmbedder, error) {
	return NewLocalEmbedder(DefaultEmbeddingModel, DefaultEmbeddingDim)
}

// EmbedTexts generates one embedding per input text, in order.
func (e *LocalEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embeddings, err := e.run(texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}

	return embeddings, nil
}

// Dimension returns the embedding dimension of the model.
func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

// Close releases the model session.
func (e *LocalEmbedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}
