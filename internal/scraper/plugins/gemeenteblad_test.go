package plugins

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/govchat-nl/policyscan/internal/scraper"
)

const searchPage = `<html><body>
<div class="item">
  <h2><a href="/gmb-2024-101.pdf">Nota parkeerbeleid 2024</a></h2>
  <span class="date">15-03-2024</span>
  <span class="muni"> Utrecht </span>
  <p class="desc">Vaststelling parkeerbeleid.</p>
</div>
<div class="item">
  <h2><a href="https://cdn.overheid.nl/gmb-2024-102.html">Verordening afvalstoffen</a></h2>
  <span class="date">2024-03-20</span>
  <span class="muni">Den  Haag</span>
  <p class="desc"></p>
</div>
<div class="item">
  <h2><a href="/broken.pdf"></a></h2>
</div>
</body></html>`

func testConfig(baseURL string) scraper.Config {
	return scraper.Config{
		BaseURL:        baseURL,
		RateLimit:      100,
		CrawlDelay:     100 * time.Millisecond,
		Timeout:        5 * time.Second,
		MaxRetries:     1,
		EmptyPageLimit: 1,
		UserAgent:      "policyscan-test/1.0",
		Selectors: map[string]string{
			"item":         "div.item",
			"title":        "h2 a",
			"url":          "h2 a",
			"date":         "span.date",
			"municipality": "span.muni",
			"description":  "p.desc",
		},
	}
}

// newTestServer serves one page of results and empty pages after it.
func newTestServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		requests.Add(1)
		if r.URL.Query().Get("page") == "" {
			_, _ = w.Write([]byte(searchPage))
			return
		}
		_, _ = w.Write([]byte("<html><body></body></html>"))
	}))
}

func TestNewGemeentebladMissingSelectors(t *testing.T) {
	t.Parallel()

	cfg := testConfig("https://example.com")
	delete(cfg.Selectors, "date")
	delete(cfg.Selectors, "url")

	_, err := NewGemeenteblad(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required selectors: [url, date]")
}

func TestDiscoverDocuments(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := newTestServer(t, &requests)
	defer srv.Close()

	p, err := NewGemeenteblad(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	docs, err := p.DiscoverDocuments(context.Background(), scraper.DiscoverOptions{})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	first := docs[0]
	assert.Equal(t, "Nota parkeerbeleid 2024", first.Title)
	assert.Equal(t, srv.URL+"/gmb-2024-101.pdf", first.URL)
	assert.Len(t, first.ExternalID, 32)
	assert.Equal(t, scraper.TypePDF, first.DocumentType)
	assert.Equal(t, "Utrecht", first.Municipality)
	assert.Equal(t, "Vaststelling parkeerbeleid.", first.Description)
	require.NotNil(t, first.PublicationDate)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), first.PublicationDate.UTC())
	assert.Equal(t, GemeentebladName, first.Metadata["source"])

	second := docs[1]
	assert.Equal(t, "https://cdn.overheid.nl/gmb-2024-102.html", second.URL)
	assert.Equal(t, scraper.TypeHTML, second.DocumentType)
	assert.Equal(t, "Den Haag", second.Municipality)

	// One result page plus one empty page ends discovery.
	assert.Equal(t, int32(2), requests.Load())

	snap := p.Stats()
	assert.Equal(t, 2, snap.TotalRequests)
	assert.Equal(t, 2, snap.DocumentsDiscovered)
}

func TestDiscoverDocumentsMaxPages(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := newTestServer(t, &requests)
	defer srv.Close()

	p, err := NewGemeenteblad(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	docs, err := p.DiscoverDocuments(context.Background(), scraper.DiscoverOptions{MaxPages: 1})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, int32(1), requests.Load())
}

func TestDiscoverDocumentsBotBlockRefetch(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var searches atomic.Int32
	var blockedAgent, retryAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch searches.Add(1) {
		case 1:
			mu.Lock()
			blockedAgent = r.Header.Get("User-Agent")
			mu.Unlock()
			w.WriteHeader(http.StatusForbidden)
		case 2:
			mu.Lock()
			retryAgent = r.Header.Get("User-Agent")
			mu.Unlock()
			_, _ = w.Write([]byte(searchPage))
		default:
			_, _ = w.Write([]byte("<html></html>"))
		}
	}))
	defer srv.Close()

	p, err := NewGemeenteblad(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	docs, err := p.DiscoverDocuments(context.Background(), scraper.DiscoverOptions{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	// The refetch after a block carries a rotated User-Agent.
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "policyscan-test/1.0", blockedAgent)
	assert.NotEqual(t, blockedAgent, retryAgent)
	assert.Contains(t, retryAgent, "Mozilla/5.0")
	assert.Equal(t, 1, p.Stats().RateLimitedRequests)
}

func TestDiscoverDocumentsFetchErrorKeepsPartial(t *testing.T) {
	t.Parallel()

	var searches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if searches.Add(1) == 1 {
			_, _ = w.Write([]byte(searchPage))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p, err := NewGemeenteblad(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	docs, err := p.DiscoverDocuments(context.Background(), scraper.DiscoverOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch page 2")
	assert.Len(t, docs, 2)
}

func TestDiscoverDocumentsHonorsRobotsCrawlDelay(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = w.Write([]byte("Crawl-delay: 0.3\n"))
			return
		}
		_, _ = w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	p, err := NewGemeenteblad(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	start := time.Now()
	_, err = p.DiscoverDocuments(context.Background(), scraper.DiscoverOptions{MaxPages: 1})
	require.NoError(t, err)
	// The robots delay (300ms) wins over the configured 100ms.
	assert.GreaterOrEqual(t, time.Since(start), 300*time.Millisecond)
}

func TestBuildSearchURL(t *testing.T) {
	t.Parallel()

	cfg := testConfig("https://example.com")
	cfg.CustomParams = map[string]string{"sorttype": "1", "organisatietype": "gemeente"}
	plugin, err := NewGemeenteblad(cfg, zap.NewNop())
	require.NoError(t, err)
	p := plugin.(*Gemeenteblad)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	opts := scraper.DiscoverOptions{
		StartDate: &start,
		EndDate:   &end,
		Params:    map[string]string{"municipality": "Utrecht", "query": "parkeren"},
	}

	got := p.buildSearchURL(2, opts)
	want := "https://example.com/search?page=2&from_date=2024-01-01&to_date=2024-06-30" +
		"&municipality=Utrecht&q=parkeren&organisatietype=gemeente&sorttype=1"
	assert.Equal(t, want, got)

	// Same input, same URL.
	assert.Equal(t, got, p.buildSearchURL(2, opts))

	assert.Equal(t, "https://example.com/search", p.buildSearchURL(1, scraper.DiscoverOptions{}))
}

func TestDownloadDocument(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.7 content"))
	}))
	defer srv.Close()

	p, err := NewGemeenteblad(testConfig(srv.URL), zap.NewNop())
	require.NoError(t, err)

	content, err := p.DownloadDocument(context.Background(), scraper.DocumentMetadata{
		Title: "Nota", URL: srv.URL + "/gmb-2024-101.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7 content"), content)

	_, err = p.DownloadDocument(context.Background(), scraper.DocumentMetadata{
		Title: "Weg", URL: srv.URL + "/missing.pdf",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestRegister(t *testing.T) {
	t.Parallel()

	reg := scraper.NewRegistry(zap.NewNop())
	Register(reg)
	assert.Equal(t, []string{GemeentebladName}, reg.List())

	_, err := reg.Get(GemeentebladName, scraper.Config{}, zap.NewNop())
	require.Error(t, err, fmt.Sprintf("config without base_url must fail %s construction", GemeentebladName))
}
