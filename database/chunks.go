package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
	loadSql "github.com/kilnworks/hivekb/sql"
	"github.com/pgvector/pgvector-go"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunkBatch(ctx context.Context, chunks []*model.DocumentChunk) error
	SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, documentID *uuid.UUID) ([]*model.DocumentChunk, error)
	SelectChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentChunk, error)
	DeleteChunksByDocument(ctx context.Context, documentID uuid.UUID) (int64, error)
	CountChunks(ctx context.Context, documentID *uuid.UUID) (int64, error)
}

// ChunksDBHandler handles chunk-related database operations
type ChunksDBHandler struct {
	db           *helper.Database
	embeddingDim int
}

// NewChunksDBHandler creates a new chunks database handler.
// It initializes the database connection and loads chunk-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, embeddingDim int, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive, got %d", embeddingDim))
	}

	chunksDbHandler := &ChunksDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes and isolation policies.
func (h *ChunksDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// Dimension returns the configured embedding dimension.
func (h *ChunksDBHandler) Dimension() int {
	return h.embeddingDim
}

// validateEmbedding checks an embedding against the configured dimension
// before it reaches the database.
func (h *ChunksDBHandler) validateEmbedding(embedding []float32) error {
	if len(embedding) != h.embeddingDim {
		return &helper.DimensionMismatchError{Want: h.embeddingDim, Got: len(embedding)}
	}
	return nil
}

// InsertChunkBatch inserts all chunks in one transaction, preserving slice
// order. Either every chunk is stored or none is. Every embedding is
// validated against the configured dimension before the first write.
func (h *ChunksDBHandler) InsertChunkBatch(ctx context.Context, chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if err := h.validateEmbedding(chunk.Embedding); err != nil {
			return err
		}
	}

	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return err
	}
	defer release()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewTransientError("begin transaction", err)
	}
	defer tx.Rollback()

	for _, chunk := range chunks {
		if chunk.ID == uuid.Nil {
			chunk.ID = uuid.New()
		}

		row := tx.QueryRowContext(ctx,
			`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7)`,
			tenant.TenantID,
			chunk.ID,
			chunk.DocumentID,
			chunk.Content,
			pgvector.NewVector(chunk.Embedding),
			chunk.ChunkIndex,
			chunk.Metadata,
		)

		err = row.Scan(
			&chunk.TenantID,
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Content,
			&chunk.ChunkIndex,
			&chunk.Metadata,
			&chunk.CreatedAt,
		)
		if err != nil {
			return helper.NewError("scan", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewTransientError("commit transaction", err)
	}

	return nil
}

// SelectChunksBySimilarity performs vector similarity search within the
// tenant's scope. Results are ordered by descending similarity, ties broken
// by insertion order. If documentID is nil, all documents are searched.
func (h *ChunksDBHandler) SelectChunksBySimilarity(ctx context.Context, embedding []float32, limit int, documentID *uuid.UUID) ([]*model.DocumentChunk, error) {
	if err := h.validateEmbedding(embedding); err != nil {
		return nil, err
	}

	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := conn.QueryContext(ctx,
		`SELECT * FROM select_chunks_by_similarity($1, $2, $3, $4)`,
		tenant.TenantID,
		pgvector.NewVector(embedding),
		limit,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.DocumentChunk
	for rows.Next() {
		chunk := &model.DocumentChunk{}
		err := rows.Scan(
			&chunk.TenantID,
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Content,
			&chunk.ChunkIndex,
			&chunk.Metadata,
			&chunk.CreatedAt,
			&chunk.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

// SelectChunksByDocument retrieves all chunks of a document in chunk order.
func (h *ChunksDBHandler) SelectChunksByDocument(ctx context.Context, documentID uuid.UUID) ([]*model.DocumentChunk, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := conn.QueryContext(ctx,
		`SELECT * FROM select_chunks_by_document($1, $2)`,
		tenant.TenantID,
		documentID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var chunks []*model.DocumentChunk
	for rows.Next() {
		chunk := &model.DocumentChunk{}
		err := rows.Scan(
			&chunk.TenantID,
			&chunk.ID,
			&chunk.DocumentID,
			&chunk.Content,
			&chunk.ChunkIndex,
			&chunk.Metadata,
			&chunk.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		chunks = append(chunks, chunk)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return chunks, nil
}

// DeleteChunksByDocument deletes all chunks of a document and returns the
// number of deleted chunks.
func (h *ChunksDBHandler) DeleteChunksByDocument(ctx context.Context, documentID uuid.UUID) (int64, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return 0, err
	}
	defer release()

	var deleted int64
	err = conn.QueryRowContext(ctx,
		`SELECT delete_chunks_by_document($1, $2)`,
		tenant.TenantID,
		documentID,
	).Scan(&deleted)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return deleted, nil
}

// CountChunks returns the number of chunks of the tenant. If documentID is
// not nil, only chunks of that document are counted.
func (h *ChunksDBHandler) CountChunks(ctx context.Context, documentID *uuid.UUID) (int64, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return 0, err
	}
	defer release()

	var count int64
	err = conn.QueryRowContext(ctx,
		`SELECT count_chunks($1, $2)`,
		tenant.TenantID,
		documentID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}
