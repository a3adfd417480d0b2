package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/govchat-nl/policyscan/internal/scraper"
)

// ErrNotFound signals that the requested document does not exist.
var ErrNotFound = errors.New("document not found")

// ErrDuplicateContent signals that a document with the same content hash
// already exists.
var ErrDuplicateContent = errors.New("duplicate content hash")

// Status mirrors the documents status column.
type Status string

// Document lifecycle statuses.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusIndexed    Status = "indexed"
	StatusFailed     Status = "failed"
	StatusArchived   Status = "archived"
)

// CanTransition reports whether the lifecycle permits moving from one
// status to another. Archived is terminal; any non-archived status may be
// archived; indexed documents may be reset to pending for reindexing.
func CanTransition(from, to Status) bool {
	if from == StatusArchived {
		return false
	}
	if to == StatusArchived {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusIndexed || to == StatusFailed
	case StatusIndexed:
		return to == StatusProcessing || to == StatusPending
	case StatusFailed:
		return to == StatusProcessing
	default:
		return false
	}
}

// Document models one row of the documents table.
type Document struct {
	ID              uuid.UUID
	SourceID        string
	ExternalID      string
	Title           string
	Description     string
	ContentHash     string
	DocumentURL     string
	DocumentType    scraper.DocumentType
	Municipality    string
	PublicationDate *time.Time
	EffectiveDate   *time.Time
	FileSize        *int64
	PageCount       *int
	Language        string
	Status          Status
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
	IndexedAt       *time.Time
}

// ListFilter narrows ListDocuments. Archived documents are excluded unless
// IncludeArchived is set or Status selects them explicitly.
type ListFilter struct {
	SourceID        string
	Status          Status
	IncludeArchived bool
	Limit           int
	Offset          int
}

// Store persists documents and their lifecycle state.
type Store interface {
	// CreateDocument inserts a document and returns its generated ID.
	// A content hash collision yields ErrDuplicateContent.
	CreateDocument(ctx context.Context, doc *Document) (uuid.UUID, error)
	// GetDocument loads one document or returns ErrNotFound.
	GetDocument(ctx context.Context, id uuid.UUID) (*Document, error)
	// ListDocuments returns documents matching the filter, newest first.
	ListDocuments(ctx context.Context, filter ListFilter) ([]*Document, error)
	// UpdateStatus moves a document to the given status, enforcing the
	// lifecycle transitions.
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status) error
	// SetFailed marks a document failed and records the error message in
	// its metadata.
	SetFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	// MarkIndexed marks the given documents indexed at the given time.
	MarkIndexed(ctx context.Context, ids []uuid.UUID, at time.Time) error
	// FindByContentHash returns the document with the given content hash
	// or ErrNotFound.
	FindByContentHash(ctx context.Context, hash string) (*Document, error)
	// CountByStatus returns the number of documents per status.
	CountByStatus(ctx context.Context) (map[Status]int64, error)
	// Close releases the underlying resources.
	Close()
}
