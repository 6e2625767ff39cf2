// Package cmd defines the CLI for the textextract executable.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, /from-url and the /v1/extract routes. Requests are
//     validated and normalized into extraction.Request values before reaching the pipeline service.
//   - Pipeline: internal/pipeline.Orchestrator runs the fallback state machine. A direct Colly fetch is tried
//     first (with optional robots.txt enforcement); when the extracted text is too short or empty the page is
//     re-rendered through the Chromedp renderer and extracted again. The longest acceptable text wins.
//   - Rate limiting: the limited entry points acquire a permit from internal/policy/ratelimit before every network
//     call. Each registrable domain has its own set of windows; waiters are served first-come first-served and the
//     least recently used domains are evicted once the tracked-domain cap is reached.
//   - Configuration & plumbing: Viper populates config from env/files/flags; zap provides structured logging with
//     optional lumberjack rotation; Prometheus metrics are exported via the metrics middleware and /metrics handler;
//     OpenTelemetry spans cover each pipeline stage when tracing is enabled.
//
// Operational notes:
//   - Concurrency model: each HTTP request runs its own pipeline; batch requests fan out on a bounded errgroup.
//     Headless renders share a semaphore inside the Chromedp renderer.
//   - Cloud Run: the server listens on server.host:server.port, keeps no state beyond the limiter, and drains
//     in-flight requests on SIGTERM.
//
// Quick checklist:
//   - Configure env vars: TEXTEXTRACT_SERVER_PORT, TEXTEXTRACT_HEADLESS_ENABLED, TEXTEXTRACT_RATELIMIT_RATES,
//     TEXTEXTRACT_AUTH_ENABLED with TEXTEXTRACT_AUTH_API_KEY for the internal route.
//   - Run locally: go run . serve --config config.yaml, or go run . extract https://example.com/article.
package cmd
