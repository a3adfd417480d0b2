// Package search defines the full-text index boundary for policy documents.
// Implementations live in other packages; callers depend only on the Index
// interface and the filter expression builder.
package search

import (
	"context"
	"strings"
)

// Document is the payload stored in the search index.
type Document struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Content         string `json:"content"`
	Description     string `json:"description,omitempty"`
	Summary         string `json:"summary,omitempty"`
	Municipality    string `json:"municipality,omitempty"`
	Category        string `json:"category,omitempty"`
	DocumentType    string `json:"document_type,omitempty"`
	SourceID        string `json:"source_id,omitempty"`
	PublicationDate string `json:"publication_date,omitempty"`
	Status          string `json:"status,omitempty"`
	URL             string `json:"url,omitempty"`
	WordCount       int    `json:"word_count,omitempty"`
	PageCount       int    `json:"page_count,omitempty"`
}

// Filters narrow a search. Multi-value fields are OR-ed within the field
// and AND-ed across fields.
type Filters struct {
	Municipality []string
	Category     []string
	DocumentType string
	SourceID     string
	// DateFrom and DateTo are ISO dates bounding publication_date.
	DateFrom string
	DateTo   string
}

// Expression renders the filters as a filter string, or "" when empty.
func (f Filters) Expression() string {
	var parts []string

	if group := orGroup("municipality", f.Municipality); group != "" {
		parts = append(parts, group)
	}
	if group := orGroup("category", f.Category); group != "" {
		parts = append(parts, group)
	}
	if f.DocumentType != "" {
		parts = append(parts, equals("document_type", f.DocumentType))
	}
	if f.SourceID != "" {
		parts = append(parts, equals("source_id", f.SourceID))
	}
	if f.DateFrom != "" || f.DateTo != "" {
		var dates []string
		if f.DateFrom != "" {
			dates = append(dates, "publication_date >= "+f.DateFrom)
		}
		if f.DateTo != "" {
			dates = append(dates, "publication_date <= "+f.DateTo)
		}
		parts = append(parts, "("+strings.Join(dates, " AND ")+")")
	}

	return strings.Join(parts, " AND ")
}

func equals(field, value string) string {
	return field + " = '" + strings.ReplaceAll(value, "'", `\'`) + "'"
}

func orGroup(field string, values []string) string {
	var clauses []string
	for _, v := range values {
		if v == "" {
			continue
		}
		clauses = append(clauses, equals(field, v))
	}
	if len(clauses) == 0 {
		return ""
	}
	return "(" + strings.Join(clauses, " OR ") + ")"
}

// Params control one search call. Zero Page and Limit default to 1 and 20.
type Params struct {
	Filters Filters
	Sort    []string
	Page    int
	Limit   int
	Facets  []string
}

// Result is one page of search hits.
type Result struct {
	Hits              []map[string]any `json:"hits"`
	Total             int64            `json:"total"`
	FacetDistribution any              `json:"facetDistribution"`
	ProcessingTimeMs  int64            `json:"processingTimeMs"`
	Query             string           `json:"query"`
	Page              int              `json:"page"`
	Limit             int              `json:"limit"`
}

// Stats summarizes the index state.
type Stats struct {
	NumberOfDocuments int64            `json:"numberOfDocuments"`
	IsIndexing        bool             `json:"isIndexing"`
	FieldDistribution map[string]int64 `json:"fieldDistribution"`
}

// Index is the full-text index boundary.
type Index interface {
	// HealthCheck reports whether the index backend is reachable.
	HealthCheck(ctx context.Context) bool
	// EnsureIndex creates and configures the index; it is idempotent.
	EnsureIndex(ctx context.Context) error
	// AddDocuments indexes documents, replacing existing ones by ID.
	AddDocuments(ctx context.Context, docs []Document) error
	// UpdateDocuments partially updates existing documents by ID.
	UpdateDocuments(ctx context.Context, docs []Document) error
	// DeleteDocuments removes documents by ID.
	DeleteDocuments(ctx context.Context, ids []string) error
	// DeleteAll removes every document from the index.
	DeleteAll(ctx context.Context) error
	// Search runs a query with filters, sorting, paging and facets.
	Search(ctx context.Context, query string, params Params) (*Result, error)
	// Stats returns index statistics.
	Stats(ctx context.Context) (*Stats, error)
}
