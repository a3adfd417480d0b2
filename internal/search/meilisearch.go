package search

import (
	"context"
	"fmt"

	"github.com/meilisearch/meilisearch-go"
	"go.uber.org/zap"
)

// Index configuration for policy documents.
var (
	searchableAttributes = []string{"title", "content", "description", "municipality"}
	filterableAttributes = []string{"municipality", "category", "document_type", "publication_date", "source_id", "status"}
	sortableAttributes   = []string{"publication_date", "title"}
	rankingRules         = []string{"words", "typo", "proximity", "attribute", "sort", "exactness"}

	dutchStopWords = []string{
		"de", "het", "een", "en", "van", "op", "in", "te", "voor", "dat",
		"is", "was", "zijn", "als", "met", "aan", "door", "om", "naar",
	}
)

// Defaults for search paging.
const (
	DefaultPage  = 1
	DefaultLimit = 20
)

var defaultFacets = []string{"municipality", "category", "document_type"}

// MeiliConfig locates the Meilisearch instance.
type MeiliConfig struct {
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api_key"`
	IndexName string `mapstructure:"index_name"`
}

// Meili implements Index on Meilisearch.
type Meili struct {
	client    *meilisearch.Client
	indexName string
	logger    *zap.Logger
}

// NewMeili builds the client. The connection is verified lazily; use
// HealthCheck or EnsureIndex to probe it.
func NewMeili(cfg MeiliConfig, logger *zap.Logger) (*Meili, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("search.url is required")
	}
	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "policy_documents"
	}
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   cfg.URL,
		APIKey: cfg.APIKey,
	})
	return &Meili{
		client:    client,
		indexName: indexName,
		logger:    logger.With(zap.String("index", indexName)),
	}, nil
}

// HealthCheck implements Index.
func (m *Meili) HealthCheck(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		return false
	}
	return m.client.IsHealthy()
}

// EnsureIndex creates the index with its primary key and applies the
// search settings. Creation of an existing index is not an error.
func (m *Meili) EnsureIndex(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.logger.Info("ensuring search index")
	task, err := m.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        m.indexName,
		PrimaryKey: "id",
	})
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	// index_already_exists surfaces as a failed task, which is fine here.
	if _, err := m.client.WaitForTask(task.TaskUID); err != nil {
		return fmt.Errorf("wait for index creation: %w", err)
	}

	settingsTask, err := m.client.Index(m.indexName).UpdateSettings(&meilisearch.Settings{
		SearchableAttributes: searchableAttributes,
		FilterableAttributes: filterableAttributes,
		SortableAttributes:   sortableAttributes,
		RankingRules:         rankingRules,
		StopWords:            dutchStopWords,
	})
	if err != nil {
		return fmt.Errorf("update index settings: %w", err)
	}
	if err := m.awaitTask(settingsTask.TaskUID, "update settings"); err != nil {
		return err
	}

	m.logger.Info("search index configured")
	return nil
}

// AddDocuments implements Index.
func (m *Meili) AddDocuments(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(docs) == 0 {
		m.logger.Warn("no documents to index")
		return nil
	}

	m.logger.Info("indexing documents", zap.Int("count", len(docs)))
	task, err := m.client.Index(m.indexName).AddDocuments(docs)
	if err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return m.awaitTask(task.TaskUID, "add documents")
}

// UpdateDocuments implements Index.
func (m *Meili) UpdateDocuments(ctx context.Context, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}
	task, err := m.client.Index(m.indexName).UpdateDocuments(docs)
	if err != nil {
		return fmt.Errorf("update documents: %w", err)
	}
	return m.awaitTask(task.TaskUID, "update documents")
}

// DeleteDocuments implements Index.
func (m *Meili) DeleteDocuments(ctx context.Context, ids []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	task, err := m.client.Index(m.indexName).DeleteDocuments(ids)
	if err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return m.awaitTask(task.TaskUID, "delete documents")
}

// DeleteAll implements Index.
func (m *Meili) DeleteAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	task, err := m.client.Index(m.indexName).DeleteAllDocuments()
	if err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	if err := m.awaitTask(task.TaskUID, "clear index"); err != nil {
		return err
	}
	m.logger.Info("index cleared")
	return nil
}

// Search implements Index.
func (m *Meili) Search(ctx context.Context, query string, params Params) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page := params.Page
	if page < 1 {
		page = DefaultPage
	}
	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	facets := params.Facets
	if facets == nil {
		facets = defaultFacets
	}

	req := &meilisearch.SearchRequest{
		Limit:  int64(limit),
		Offset: int64((page - 1) * limit),
		Sort:   params.Sort,
		Facets: facets,
	}
	if expr := params.Filters.Expression(); expr != "" {
		req.Filter = expr
	}

	m.logger.Debug("searching",
		zap.String("query", query),
		zap.Any("filter", req.Filter),
		zap.Int("page", page),
		zap.Int("limit", limit))

	resp, err := m.client.Index(m.indexName).Search(query, req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	hits := make([]map[string]any, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		if hit, ok := h.(map[string]any); ok {
			hits = append(hits, hit)
		}
	}

	m.logger.Info("search complete",
		zap.Int64("total", resp.EstimatedTotalHits),
		zap.Int64("processing_ms", resp.ProcessingTimeMs))

	return &Result{
		Hits:              hits,
		Total:             resp.EstimatedTotalHits,
		FacetDistribution: resp.FacetDistribution,
		ProcessingTimeMs:  resp.ProcessingTimeMs,
		Query:             query,
		Page:              page,
		Limit:             limit,
	}, nil
}

// Stats implements Index.
func (m *Meili) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stats, err := m.client.Index(m.indexName).GetStats()
	if err != nil {
		return nil, fmt.Errorf("get index stats: %w", err)
	}
	return &Stats{
		NumberOfDocuments: stats.NumberOfDocuments,
		IsIndexing:        stats.IsIndexing,
		FieldDistribution: stats.FieldDistribution,
	}, nil
}

// awaitTask blocks until the task finishes and fails unless it succeeded.
func (m *Meili) awaitTask(uid int64, op string) error {
	task, err := m.client.WaitForTask(uid)
	if err != nil {
		return fmt.Errorf("%s: wait for task: %w", op, err)
	}
	if task.Status != meilisearch.TaskStatusSucceeded {
		return fmt.Errorf("%s: task %d finished with status %s", op, uid, task.Status)
	}
	return nil
}
