package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/govchat-nl/policyscan/internal/filestore"
	"github.com/govchat-nl/policyscan/internal/metrics"
	"github.com/govchat-nl/policyscan/internal/processor"
	"github.com/govchat-nl/policyscan/internal/scraper"
	"github.com/govchat-nl/policyscan/internal/search"
	"github.com/govchat-nl/policyscan/internal/store"
)

// Defaults for the indexing run.
const (
	DefaultBatchSize    = 100
	DefaultListLimit    = 10000
	DefaultStoragePath  = "/var/lib/policyscan/documents"
	defaultDocumentType = scraper.TypePDF
)

// Config tunes the indexing service.
type Config struct {
	BatchSize   int    `mapstructure:"batch_size"`
	StoragePath string `mapstructure:"storage_path"`
}

// Options select the documents for one run.
type Options struct {
	// SourceID restricts the run to one source; empty means all sources.
	SourceID string
	// Status selects candidate documents; defaults to pending. Ignored
	// when ForceReindex is set, which considers every status.
	Status store.Status
	// ForceReindex reprocesses documents that are already indexed.
	ForceReindex bool
	// MaxDocuments caps the run; 0 uses the default listing limit.
	MaxDocuments int
}

// StatusReport combines database counts with search index statistics.
type StatusReport struct {
	Database       map[store.Status]int64 `json:"database"`
	Search         *search.Stats          `json:"search"`
	TotalDocuments int64                  `json:"total_documents"`
}

// Service runs the indexing workflow.
type Service struct {
	store     store.Store
	index     search.Index
	processor *processor.Processor
	logger    *zap.Logger

	batchSize int
	files     *filestore.Store
}

// New builds the service, filling defaulted configuration values.
func New(cfg Config, st store.Store, idx search.Index, proc *processor.Processor, files *filestore.Store, logger *zap.Logger) *Service {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	return &Service{
		store:     st,
		index:     idx,
		processor: proc,
		logger:    logger,
		batchSize: cfg.BatchSize,
		files:     files,
	}
}

// Run indexes candidate documents in batches and returns the run statistics.
func (s *Service) Run(ctx context.Context, opts Options) (*Stats, error) {
	stats := newStats()
	defer stats.finish()

	if !s.index.HealthCheck(ctx) {
		return stats, fmt.Errorf("search index is not reachable")
	}

	status := opts.Status
	if status == "" {
		status = store.StatusPending
	}
	filter := store.ListFilter{
		SourceID: opts.SourceID,
		Status:   status,
		Limit:    opts.MaxDocuments,
	}
	if opts.ForceReindex {
		filter.Status = ""
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultListLimit
	}

	s.logger.Info("fetching documents",
		zap.String("source_id", opts.SourceID),
		zap.String("status", string(status)),
		zap.Bool("force_reindex", opts.ForceReindex))

	documents, err := s.store.ListDocuments(ctx, filter)
	if err != nil {
		return stats, fmt.Errorf("list documents: %w", err)
	}
	stats.TotalDocuments = len(documents)
	s.logger.Info("documents to index", zap.Int("count", len(documents)))

	if len(documents) == 0 {
		return stats, nil
	}

	totalBatches := (len(documents) + s.batchSize - 1) / s.batchSize
	for i := 0; i < len(documents); i += s.batchSize {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		end := i + s.batchSize
		if end > len(documents) {
			end = len(documents)
		}
		batch := documents[i:end]
		s.logger.Info("processing batch",
			zap.Int("batch", i/s.batchSize+1),
			zap.Int("total_batches", totalBatches),
			zap.Int("documents", len(batch)))

		s.processBatch(ctx, batch, stats, opts.ForceReindex)
	}

	s.logger.Info("indexing complete",
		zap.Int("indexed", stats.Indexed),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("duration", time.Since(stats.start)))

	return stats, nil
}

// processBatch processes one batch of documents and submits one bulk index
// call. A failed submit fails every document in the batch.
func (s *Service) processBatch(ctx context.Context, batch []*store.Document, stats *Stats, force bool) {
	start := time.Now()

	var (
		indexDocs []search.Document
		indexIDs  []uuid.UUID
	)
	for _, doc := range batch {
		if doc.Status == store.StatusIndexed && !force {
			s.logger.Debug("skipping already indexed document", zap.String("id", doc.ID.String()))
			stats.recordSkip()
			metrics.ObserveIndexedDocument("skipped")
			continue
		}

		if err := s.store.UpdateStatus(ctx, doc.ID, store.StatusProcessing); err != nil {
			s.fail(ctx, stats, doc.ID, fmt.Sprintf("mark processing: %v", err))
			continue
		}

		payload, err := s.processDocument(ctx, doc)
		if err != nil {
			s.fail(ctx, stats, doc.ID, fmt.Sprintf("processing failed: %v", err))
			continue
		}

		indexDocs = append(indexDocs, *payload)
		indexIDs = append(indexIDs, doc.ID)
	}

	if len(indexDocs) == 0 {
		metrics.ObserveIndexBatch("empty", time.Since(start))
		return
	}

	if err := s.index.AddDocuments(ctx, indexDocs); err != nil {
		s.logger.Error("bulk indexing failed", zap.Error(err))
		for _, id := range indexIDs {
			s.fail(ctx, stats, id, fmt.Sprintf("indexing failed: %v", err))
		}
		metrics.ObserveIndexBatch("error", time.Since(start))
		return
	}

	if err := s.store.MarkIndexed(ctx, indexIDs, time.Now()); err != nil {
		s.logger.Error("marking documents indexed failed", zap.Error(err))
	}
	for range indexIDs {
		stats.recordSuccess()
		metrics.ObserveIndexedDocument("indexed")
	}
	metrics.ObserveIndexBatch("success", time.Since(start))
	s.logger.Info("batch indexed", zap.Int("documents", len(indexDocs)))
}

// processDocument extracts a document's text and builds its index payload.
func (s *Service) processDocument(ctx context.Context, doc *store.Document) (*search.Document, error) {
	path, err := s.resolveFilePath(doc)
	if err != nil {
		return nil, err
	}

	docType := doc.DocumentType
	if docType == "" {
		docType = defaultDocumentType
	}

	result, err := s.processor.Process(ctx, path, docType)
	if err != nil {
		return nil, err
	}

	description := doc.Description
	if description == "" {
		description = result.Summary
	}
	publicationDate := ""
	if doc.PublicationDate != nil {
		publicationDate = doc.PublicationDate.Format("2006-01-02")
	}

	payload := &search.Document{
		ID:              doc.ID.String(),
		Title:           doc.Title,
		Content:         result.Text,
		Description:     description,
		Summary:         result.Summary,
		Municipality:    doc.Municipality,
		DocumentType:    string(docType),
		SourceID:        doc.SourceID,
		PublicationDate: publicationDate,
		Status:          string(store.StatusIndexed),
		URL:             doc.DocumentURL,
		WordCount:       result.WordCount,
		PageCount:       result.PageCount,
	}
	if category, ok := doc.Metadata["category"].(string); ok {
		payload.Category = category
	}
	return payload, nil
}

// resolveFilePath locates the document file: an explicit file_path in the
// metadata wins, otherwise {storage_path}/{source_id}/{id}.{type}.
func (s *Service) resolveFilePath(doc *store.Document) (string, error) {
	if path, ok := doc.Metadata["file_path"].(string); ok && path != "" {
		return path, nil
	}
	if doc.DocumentType == "" {
		return "", fmt.Errorf("document %s has no file path and no document type", doc.ID)
	}
	path := s.files.Path(doc.SourceID, fmt.Sprintf("%s.%s", doc.ID, doc.DocumentType))
	if !s.files.Exists(path) {
		return "", fmt.Errorf("document file not found: %s", path)
	}
	return path, nil
}

// fail records a document failure in the stats and the store.
func (s *Service) fail(ctx context.Context, stats *Stats, id uuid.UUID, errMsg string) {
	s.logger.Error("document failed", zap.String("id", id.String()), zap.String("error", errMsg))
	stats.recordFailure(id.String(), errMsg)
	metrics.ObserveIndexedDocument("failed")
	if err := s.store.SetFailed(ctx, id, errMsg); err != nil {
		s.logger.Error("recording failure failed", zap.String("id", id.String()), zap.Error(err))
	}
}

// ReindexDocument reprocesses and reindexes one document. It reports
// success; failures are logged, not returned.
func (s *Service) ReindexDocument(ctx context.Context, id uuid.UUID) bool {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		s.logger.Error("document not found", zap.String("id", id.String()), zap.Error(err))
		return false
	}

	payload, err := s.processDocument(ctx, doc)
	if err != nil {
		s.logger.Error("reindex processing failed", zap.String("id", id.String()), zap.Error(err))
		return false
	}
	if err := s.index.AddDocuments(ctx, []search.Document{*payload}); err != nil {
		s.logger.Error("reindex submit failed", zap.String("id", id.String()), zap.Error(err))
		return false
	}
	if err := s.store.MarkIndexed(ctx, []uuid.UUID{id}, time.Now()); err != nil {
		s.logger.Error("marking document indexed failed", zap.String("id", id.String()), zap.Error(err))
		return false
	}

	s.logger.Info("document reindexed", zap.String("id", id.String()))
	return true
}

// DeleteFromIndex removes documents from the search index and resets them
// to pending for a later rerun.
func (s *Service) DeleteFromIndex(ctx context.Context, ids []uuid.UUID) error {
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	if err := s.index.DeleteDocuments(ctx, strIDs); err != nil {
		return fmt.Errorf("delete from index: %w", err)
	}

	for _, id := range ids {
		if err := s.store.UpdateStatus(ctx, id, store.StatusPending); err != nil {
			s.logger.Error("resetting document status failed",
				zap.String("id", id.String()), zap.Error(err))
		}
	}

	s.logger.Info("documents deleted from index", zap.Int("count", len(ids)))
	return nil
}

// Status reports per-status database counts alongside index statistics.
func (s *Service) Status(ctx context.Context) (*StatusReport, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count documents: %w", err)
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	report := &StatusReport{
		Database:       counts,
		TotalDocuments: total,
	}
	if stats, err := s.index.Stats(ctx); err != nil {
		s.logger.Warn("search index stats unavailable", zap.Error(err))
	} else {
		report.Search = stats
	}
	return report, nil
}
