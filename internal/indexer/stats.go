// Package indexer orchestrates the indexing workflow: fetch documents from
// the store, extract their text, submit them to the search index and track
// lifecycle status.
package indexer

import "time"

// IndexError records one document failure during a run.
type IndexError struct {
	DocumentID string    `json:"document_id"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

// Stats accumulates the outcome of one indexing run.
type Stats struct {
	TotalDocuments int           `json:"total_documents"`
	Processed      int           `json:"processed"`
	Indexed        int           `json:"indexed"`
	Failed         int           `json:"failed"`
	Skipped        int           `json:"skipped"`
	Duration       time.Duration `json:"duration"`
	Errors         []IndexError  `json:"errors"`

	start time.Time
}

func newStats() *Stats {
	return &Stats{start: time.Now()}
}

func (s *Stats) recordSuccess() {
	s.Processed++
	s.Indexed++
}

func (s *Stats) recordFailure(documentID, errMsg string) {
	s.Processed++
	s.Failed++
	s.Errors = append(s.Errors, IndexError{
		DocumentID: documentID,
		Error:      errMsg,
		Timestamp:  time.Now(),
	})
}

func (s *Stats) recordSkip() {
	s.Skipped++
}

func (s *Stats) finish() {
	s.Duration = time.Since(s.start)
}
