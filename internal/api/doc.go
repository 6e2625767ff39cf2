// Package api hosts the HTTP server, middleware, and REST handlers.
// Notable routes:
//   - GET /_ping, /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /from-url for the compact {text, lang, version} response.
//   - POST /v1/extract and /v1/extract/batch for full results.
//   - POST /internal/from-url, unthrottled and guarded by an API key.
package api
