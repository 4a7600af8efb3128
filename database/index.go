package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kilnworks/hivekb/helper"
)

// Vector index defaults. HNSW favors recall and incremental inserts, IVFFlat
// favors build speed on large, mostly static chunk sets.
const (
	chunkEmbeddingIndex = "idx_chunks_embedding"
	defaultHnswM        = 16
	defaultHnswEfConstr = 64
	defaultIvfflatLists = 100
	changeIndexTimeout  = 60 * time.Second
	indexTypeHnsw       = "hnsw"
	indexTypeIvfflat    = "ivfflat"
)

// ChangeIndexType rebuilds the vector index behind SelectChunksBySimilarity.
// indexType is "hnsw" or "ivfflat". Recognized params:
//   - hnsw: "m" (int), "ef_construction" (int)
//   - ivfflat: "lists" (int)
//
// The rebuild drops the old index first, so concurrent similarity searches
// briefly fall back to a sequential scan. Missing params use the defaults
// above.
func (h *ChunksDBHandler) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, changeIndexTimeout)
	defer cancel()

	var createIndexSQL string
	switch indexType {
	case indexTypeHnsw:
		m := defaultHnswM
		efConstruction := defaultHnswEfConstr
		if value, ok := params["m"].(int); ok {
			m = value
		}
		if value, ok := params["ef_construction"].(int); ok {
			efConstruction = value
		}
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON chunks USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d);`,
			chunkEmbeddingIndex, m, efConstruction,
		)

	case indexTypeIvfflat:
		lists := defaultIvfflatLists
		if value, ok := params["lists"].(int); ok {
			lists = value
		}
		createIndexSQL = fmt.Sprintf(
			`CREATE INDEX %s ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = %d);`,
			chunkEmbeddingIndex, lists,
		)

	default:
		return helper.NewError("change index type", fmt.Errorf("unsupported index type: %s (use 'hnsw' or 'ivfflat')", indexType))
	}

	_, err := h.db.Instance.ExecContext(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS %s;`, chunkEmbeddingIndex))
	if err != nil {
		return helper.NewError("drop index", err)
	}

	_, err = h.db.Instance.ExecContext(ctx, createIndexSQL)
	if err != nil {
		return helper.NewError("create index", err)
	}

	h.db.Logger.Info("Rebuilt chunk embedding index",
		slog.String("index_type", indexType),
		slog.Any("params", params),
	)

	return nil
}
