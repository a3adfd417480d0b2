// Package api hosts the HTTP server, middleware, and REST handlers for
// operator access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/status for indexing progress.
//   - GET /v1/plugins for the registered scraper plugins.
//   - GET /v1/search for full-text document search.
package api
