package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
	loadSql "github.com/kilnworks/hivekb/sql"
)

// DocumentsDBHandlerFunctions defines the interface for Documents database operations.
type DocumentsDBHandlerFunctions interface {
	InsertDocument(ctx context.Context, document *model.Document) error
	SelectDocument(ctx context.Context, id uuid.UUID) (*model.Document, error)
	SelectAllDocuments(ctx context.Context, limit int) ([]*model.Document, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
	CountDocuments(ctx context.Context) (int64, error)
}

// DocumentsDBHandler handles document-related database operations
type DocumentsDBHandler struct {
	db *helper.Database
}

// NewDocumentsDBHandler creates a new documents database handler.
// It initializes the database connection and loads document-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDocumentsDBHandler(db *helper.Database, force bool) (*DocumentsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	documentsDbHandler := &DocumentsDBHandler{
		db: db,
	}

	err := loadSql.LoadDocumentsSql(documentsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load documents sql", err)
	}

	err = documentsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DocumentsDBHandler")

	return documentsDbHandler, nil
}

// CreateTable creates the 'documents' table in the database.
// If the table already exists, it does not create it again.
func (h *DocumentsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_documents();`)
	if err != nil {
		log.Panicf("error initializing documents table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table documents")

	return nil
}

// InsertDocument inserts a new document record for the tenant bound to ctx.
func (h *DocumentsDBHandler) InsertDocument(ctx context.Context, document *model.Document) error {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return err
	}
	defer release()

	row := conn.QueryRowContext(ctx,
		`SELECT * FROM insert_document($1, $2, $3, $4, $5)`,
		tenant.TenantID,
		document.ID,
		document.Filename,
		document.Size,
		document.Metadata,
	)

	err = row.Scan(
		&document.TenantID,
		&document.ID,
		&document.Filename,
		&document.Size,
		&document.Metadata,
		&document.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectDocument retrieves a document by ID within the tenant's scope.
func (h *DocumentsDBHandler) SelectDocument(ctx context.Context, id uuid.UUID) (*model.Document, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return nil, err
	}
	defer release()

	document := &model.Document{}
	row := conn.QueryRowContext(ctx,
		`SELECT * FROM select_document($1, $2)`,
		tenant.TenantID,
		id,
	)

	err = row.Scan(
		&document.TenantID,
		&document.ID,
		&document.Filename,
		&document.Size,
		&document.Metadata,
		&document.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &helper.NotFoundError{Kind: "document", ID: id.String()}
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	return document, nil
}

// SelectAllDocuments retrieves the tenant's documents, newest first.
func (h *DocumentsDBHandler) SelectAllDocuments(ctx context.Context, limit int) ([]*model.Document, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return nil, err
	}
	defer release()

	rows, err := conn.QueryContext(ctx,
		`SELECT * FROM select_all_documents($1, $2)`,
		tenant.TenantID,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var documents []*model.Document
	for rows.Next() {
		document := &model.Document{}
		err := rows.Scan(
			&document.TenantID,
			&document.ID,
			&document.Filename,
			&document.Size,
			&document.Metadata,
			&document.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		documents = append(documents, document)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return documents, nil
}

// DeleteDocument deletes a document record by ID within the tenant's scope.
// Chunks and entities of the document are deleted by their own handlers.
func (h *DocumentsDBHandler) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return err
	}
	defer release()

	var deleted int64
	err = conn.QueryRowContext(ctx,
		`SELECT delete_document($1, $2)`,
		tenant.TenantID,
		id,
	).Scan(&deleted)
	if err != nil {
		return helper.NewError("exec", err)
	}
	if deleted == 0 {
		return &helper.NotFoundError{Kind: "document", ID: id.String()}
	}

	return nil
}

// CountDocuments returns the number of documents of the tenant.
func (h *DocumentsDBHandler) CountDocuments(ctx context.Context) (int64, error) {
	conn, tenant, release, err := tenantConn(ctx, h.db)
	if err != nil {
		return 0, err
	}
	defer release()

	var count int64
	err = conn.QueryRowContext(ctx,
		`SELECT count_documents($1)`,
		tenant.TenantID,
	).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}

	return count, nil
}
