// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/govchat-nl/policyscan/internal/store"
)

const uniqueViolation = "23505"

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// DocumentStore implements store.Store on Postgres.
type DocumentStore struct {
	pool pgxPool
}

// NewDocumentStore connects a pool and returns the store.
func NewDocumentStore(ctx context.Context, cfg Config) (*DocumentStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &DocumentStore{pool: pool}, nil
}

// NewDocumentStoreWithPool constructs a store from an existing pool
// (primarily for testing).
func NewDocumentStoreWithPool(pool pgxPool) (*DocumentStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &DocumentStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *DocumentStore) Close() {
	s.pool.Close()
}

const documentColumns = `id, source_id, external_id, title, description, content_hash,
	document_url, document_type, municipality, publication_date, effective_date,
	file_size, page_count, language, status, metadata, created_at, updated_at, indexed_at`

// CreateDocument inserts a document, generating an ID when none is set.
// A content hash collision maps to store.ErrDuplicateContent.
func (s *DocumentStore) CreateDocument(ctx context.Context, doc *store.Document) (uuid.UUID, error) {
	id := doc.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	language := doc.Language
	if language == "" {
		language = "nl"
	}
	status := doc.Status
	if status == "" {
		status = store.StatusPending
	}
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal document metadata: %w", err)
	}

	query := `
		INSERT INTO documents (id, source_id, external_id, title, description, content_hash,
			document_url, document_type, municipality, publication_date, effective_date,
			file_size, page_count, language, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	err = s.pool.QueryRow(ctx, query,
		id,
		doc.SourceID,
		doc.ExternalID,
		doc.Title,
		doc.Description,
		doc.ContentHash,
		doc.DocumentURL,
		doc.DocumentType,
		doc.Municipality,
		doc.PublicationDate,
		doc.EffectiveDate,
		doc.FileSize,
		doc.PageCount,
		language,
		status,
		metadata,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return uuid.Nil, store.ErrDuplicateContent
		}
		return uuid.Nil, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// GetDocument loads one document or returns store.ErrNotFound.
func (s *DocumentStore) GetDocument(ctx context.Context, id uuid.UUID) (*store.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	doc, err := scanDocument(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document: %w", err)
	}
	return doc, nil
}

// FindByContentHash returns the document with the given hash or
// store.ErrNotFound.
func (s *DocumentStore) FindByContentHash(ctx context.Context, hash string) (*store.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE content_hash = $1`
	doc, err := scanDocument(s.pool.QueryRow(ctx, query, hash))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select document by hash: %w", err)
	}
	return doc, nil
}

// ListDocuments returns documents matching the filter, newest first.
func (s *DocumentStore) ListDocuments(ctx context.Context, filter store.ListFilter) ([]*store.Document, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.SourceID != "" {
		conditions = append(conditions, "source_id = "+arg(filter.SourceID))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	} else if !filter.IncludeArchived {
		conditions = append(conditions, "status <> "+arg(store.StatusArchived))
	}

	query := `SELECT ` + documentColumns + ` FROM documents`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []*store.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// UpdateStatus moves a document through the lifecycle, rejecting
// transitions the lifecycle does not permit.
func (s *DocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, to store.Status) error {
	var from store.Status
	err := s.pool.QueryRow(ctx, `SELECT status FROM documents WHERE id = $1`, id).Scan(&from)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select document status: %w", err)
	}
	if !store.CanTransition(from, to) {
		return fmt.Errorf("invalid status transition %s -> %s", from, to)
	}

	query := `UPDATE documents SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	tag, err := s.pool.Exec(ctx, query, to, id, from)
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s changed status concurrently", id)
	}
	return nil
}

// SetFailed marks a document failed and records the error in its metadata.
func (s *DocumentStore) SetFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	query := `
		UPDATE documents
		SET status = $1,
			metadata = COALESCE(metadata, '{}'::jsonb) || jsonb_build_object('error', $2::text),
			updated_at = NOW()
		WHERE id = $3
	`
	tag, err := s.pool.Exec(ctx, query, store.StatusFailed, errMsg, id)
	if err != nil {
		return fmt.Errorf("mark document failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkIndexed marks the given documents indexed at the given time.
func (s *DocumentStore) MarkIndexed(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	query := `
		UPDATE documents
		SET status = $1, indexed_at = $2, updated_at = NOW()
		WHERE id = ANY($3)
	`
	if _, err := s.pool.Exec(ctx, query, store.StatusIndexed, at, ids); err != nil {
		return fmt.Errorf("mark documents indexed: %w", err)
	}
	return nil
}

// CountByStatus returns document counts grouped by status.
func (s *DocumentStore) CountByStatus(ctx context.Context) (map[store.Status]int64, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	defer rows.Close()

	counts := make(map[store.Status]int64)
	for rows.Next() {
		var (
			status store.Status
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}
	return counts, nil
}

func scanDocument(row pgx.Row) (*store.Document, error) {
	var (
		doc      store.Document
		metadata []byte
	)
	err := row.Scan(
		&doc.ID,
		&doc.SourceID,
		&doc.ExternalID,
		&doc.Title,
		&doc.Description,
		&doc.ContentHash,
		&doc.DocumentURL,
		&doc.DocumentType,
		&doc.Municipality,
		&doc.PublicationDate,
		&doc.EffectiveDate,
		&doc.FileSize,
		&doc.PageCount,
		&doc.Language,
		&doc.Status,
		&metadata,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.IndexedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal document metadata: %w", err)
		}
	}
	return &doc, nil
}
