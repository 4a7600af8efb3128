package model

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Document is the registry record for one uploaded document. The raw text is
// processed into chunks and never stored on the document itself.
type Document struct {
	ID        uuid.UUID `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Metadata  Metadata  `json:"metadata,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewDocument creates a document record with a fresh id. The filename is
// reduced to its base name so callers can pass full paths.
func NewDocument(filename string, size int64, metadata Metadata) *Document {
	if metadata == nil {
		metadata = Metadata{}
	}
	return &Document{
		ID:       uuid.New(),
		Filename: filepath.Base(filename),
		Size:     size,
		Metadata: metadata,
	}
}
