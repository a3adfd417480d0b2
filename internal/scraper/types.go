// Package scraper implements the crawler framework for municipal policy
// documents: metadata types, the plugin contract and registry, and the
// politeness middleware stack (rate limiting, retries, bot-detection
// countermeasures, robots.txt).
package scraper

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType identifies the file format of a discovered document.
type DocumentType string

// Document types inferred from URL or file extension.
const (
	TypePDF     DocumentType = "pdf"
	TypeHTML    DocumentType = "html"
	TypeDOCX    DocumentType = "docx"
	TypeXLSX    DocumentType = "xlsx"
	TypeUnknown DocumentType = "unknown"
)

// DocumentMetadata describes a policy document discovered on a source
// website. Instances are produced by a plugin invocation and consumed by
// the caller that persists them.
type DocumentMetadata struct {
	Title           string         `json:"title"`
	URL             string         `json:"url"`
	ExternalID      string         `json:"external_id"`
	PublicationDate *time.Time     `json:"publication_date,omitempty"`
	EffectiveDate   *time.Time     `json:"effective_date,omitempty"`
	Municipality    string         `json:"municipality,omitempty"`
	DocumentType    DocumentType   `json:"document_type"`
	Description     string         `json:"description,omitempty"`
	FileSize        int64          `json:"file_size,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Validate checks the invariants that every discovered document must hold.
func (m *DocumentMetadata) Validate() error {
	if strings.TrimSpace(m.Title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len(m.Title) > maxTitleLength {
		return &ValidationError{Field: "title", Reason: fmt.Sprintf("exceeds %d characters", maxTitleLength)}
	}
	if err := ValidateURL(m.URL); err != nil {
		return err
	}
	if strings.TrimSpace(m.ExternalID) == "" {
		return &ValidationError{Field: "external_id", Reason: "must not be empty"}
	}
	if len(m.Municipality) > maxMunicipalityLength {
		return &ValidationError{Field: "municipality", Reason: fmt.Sprintf("exceeds %d characters", maxMunicipalityLength)}
	}
	if m.FileSize < 0 {
		return &ValidationError{Field: "file_size", Reason: "must not be negative"}
	}
	return nil
}

const (
	maxTitleLength        = 1000
	maxMunicipalityLength = 255
)

// ScrapeResult is the immutable outcome of one Scrape invocation.
// Success is true iff Errors is empty; partial results are kept either way.
type ScrapeResult struct {
	Documents    []DocumentMetadata `json:"documents"`
	TotalFound   int                `json:"total_found"`
	PagesScraped int                `json:"pages_scraped"`
	Duration     time.Duration      `json:"duration"`
	Errors       []string           `json:"errors"`
	Success      bool               `json:"success"`
}
