package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govchat-nl/policyscan/internal/scraper"
	"github.com/govchat-nl/policyscan/internal/store"
)

func newMockStore(t *testing.T) (*DocumentStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	s, err := NewDocumentStoreWithPool(mock)
	require.NoError(t, err)
	return s, mock
}

func documentRow(doc *store.Document) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "source_id", "external_id", "title", "description", "content_hash",
		"document_url", "document_type", "municipality", "publication_date",
		"effective_date", "file_size", "page_count", "language", "status",
		"metadata", "created_at", "updated_at", "indexed_at",
	}).AddRow(
		doc.ID, doc.SourceID, doc.ExternalID, doc.Title, doc.Description,
		doc.ContentHash, doc.DocumentURL, doc.DocumentType, doc.Municipality,
		doc.PublicationDate, doc.EffectiveDate, doc.FileSize, doc.PageCount,
		doc.Language, doc.Status, []byte(`{"category":"verkeer"}`),
		doc.CreatedAt, doc.UpdatedAt, doc.IndexedAt,
	)
}

func TestCreateDocumentInsertsRow(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()

	doc := &store.Document{
		ID:           id,
		SourceID:     "gemeenteblad",
		ExternalID:   "abc123",
		Title:        "Nota parkeerbeleid",
		ContentHash:  "deadbeef",
		DocumentURL:  "https://example.com/nota.pdf",
		DocumentType: scraper.TypePDF,
		Municipality: "Utrecht",
	}

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(
			id, doc.SourceID, doc.ExternalID, doc.Title, doc.Description,
			doc.ContentHash, doc.DocumentURL, doc.DocumentType, doc.Municipality,
			doc.PublicationDate, doc.EffectiveDate, doc.FileSize, doc.PageCount,
			"nl", store.StatusPending, []byte("null"),
		).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))

	got, err := s.CreateDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDocumentDuplicateContent(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectQuery("INSERT INTO documents").
		WithArgs(
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "documents_content_hash_key"})

	_, err := s.CreateDocument(context.Background(), &store.Document{Title: "Nota"})
	require.ErrorIs(t, err, store.ErrDuplicateContent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocument(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()
	now := time.Unix(1700000000, 0).UTC()

	doc := &store.Document{
		ID:           id,
		SourceID:     "gemeenteblad",
		ExternalID:   "abc123",
		Title:        "Nota parkeerbeleid",
		ContentHash:  "deadbeef",
		DocumentURL:  "https://example.com/nota.pdf",
		DocumentType: scraper.TypePDF,
		Municipality: "Utrecht",
		Language:     "nl",
		Status:       store.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").
		WithArgs(id).
		WillReturnRows(documentRow(doc))

	got, err := s.GetDocument(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "Nota parkeerbeleid", got.Title)
	assert.Equal(t, store.StatusPending, got.Status)
	assert.Equal(t, map[string]any{"category": "verkeer"}, got.Metadata)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE id").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetDocument(context.Background(), id)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByContentHashNotFound(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE content_hash").
		WithArgs("deadbeef").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.FindByContentHash(context.Background(), "deadbeef")
	require.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusValidTransition(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT status FROM documents WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(store.StatusPending))
	mock.ExpectExec("UPDATE documents SET status").
		WithArgs(store.StatusProcessing, id, store.StatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.UpdateStatus(context.Background(), id, store.StatusProcessing))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT status FROM documents WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(store.StatusPending))

	err := s.UpdateStatus(context.Background(), id, store.StatusIndexed)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status transition pending -> indexed")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusConcurrentChange(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT status FROM documents WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(store.StatusPending))
	mock.ExpectExec("UPDATE documents SET status").
		WithArgs(store.StatusProcessing, id, store.StatusPending).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateStatus(context.Background(), id, store.StatusProcessing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "changed status concurrently")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetFailed(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE documents").
		WithArgs(store.StatusFailed, "processing failed: no text", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.SetFailed(context.Background(), id, "processing failed: no text"))

	mock.ExpectExec("UPDATE documents").
		WithArgs(store.StatusFailed, "gone", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.ErrorIs(t, s.SetFailed(context.Background(), id, "gone"), store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkIndexed(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	at := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("UPDATE documents").
		WithArgs(store.StatusIndexed, at, ids).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	require.NoError(t, s.MarkIndexed(context.Background(), ids, at))
	require.NoError(t, mock.ExpectationsWereMet())

	// An empty slice issues no query at all.
	require.NoError(t, s.MarkIndexed(context.Background(), nil, at))
}

func TestListDocumentsFilters(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)
	id := uuid.New()
	now := time.Unix(1700000000, 0).UTC()

	doc := &store.Document{
		ID: id, SourceID: "gemeenteblad", Title: "Nota",
		DocumentType: scraper.TypePDF, Language: "nl",
		Status: store.StatusPending, CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE source_id = \\$1 AND status = \\$2 ORDER BY created_at DESC LIMIT \\$3").
		WithArgs("gemeenteblad", store.StatusPending, 10).
		WillReturnRows(documentRow(doc))

	docs, err := s.ListDocuments(context.Background(), store.ListFilter{
		SourceID: "gemeenteblad",
		Status:   store.StatusPending,
		Limit:    10,
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, id, docs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListDocumentsExcludesArchived(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM documents WHERE status <> \\$1 ORDER BY created_at DESC").
		WithArgs(store.StatusArchived).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	docs, err := s.ListDocuments(context.Background(), store.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, docs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCountByStatus(t *testing.T) {
	t.Parallel()

	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT status, COUNT").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow(store.StatusPending, int64(3)).
			AddRow(store.StatusIndexed, int64(12)))

	counts, err := s.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[store.Status]int64{
		store.StatusPending: 3,
		store.StatusIndexed: 12,
	}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}
