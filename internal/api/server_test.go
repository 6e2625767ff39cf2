package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/text-extraction/internal/config"
	"github.com/JakeFAU/text-extraction/internal/extraction"
)

type fakeService struct {
	mu          sync.Mutex
	reqs        []extraction.Request
	parallelism int
	result      extraction.Result
	err         error
	panicMsg    string
}

func (f *fakeService) Extract(_ context.Context, req extraction.Request) (extraction.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return extraction.Result{}, f.err
	}
	res := f.result
	res.URL = req.URL
	return res, nil
}

func (f *fakeService) ExtractBatch(ctx context.Context, reqs []extraction.Request, parallelism int) []extraction.Result {
	f.mu.Lock()
	f.parallelism = parallelism
	f.mu.Unlock()
	out := make([]extraction.Result, len(reqs))
	for i, req := range reqs {
		res, err := f.Extract(ctx, req)
		if err != nil {
			res = extraction.Result{URL: req.URL, Tier: extraction.TierNone, Err: err}
		}
		out[i] = res
	}
	return out
}

func (f *fakeService) lastRequest(t *testing.T) extraction.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080, RequestTimeout: 5 * time.Second},
		Pipeline: config.PipelineConfig{
			MaxBatchSize: 3,
		},
		Extraction: extraction.Options{
			Preference:     extraction.PreferenceNone,
			TargetLanguage: extraction.LanguageAuto,
			Format:         extraction.FormatText,
		},
	}
}

func okResult() extraction.Result {
	return extraction.Result{
		Text:     "Rivers return to the valley.",
		FinalURL: "https://example.com/final",
		Metadata: extraction.Metadata{Title: "Rivers", Language: "en", Author: "Dana"},
		Tier:     extraction.TierDirect,
		OK:       true,
		Duration: 250 * time.Millisecond,
	}
}

func newTestServer(svc *fakeService, mutate ...func(*config.Config)) *Server {
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}
	return NewServer(svc, cfg, "v-test", zap.NewNop())
}

func do(t *testing.T, s *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestServer_Probes(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeService{})
	for _, path := range []string{"/_ping", "/healthz", "/readyz"} {
		rec := do(t, server, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := do(t, server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "# HELP")
}

func TestServer_FromURL(t *testing.T) {
	t.Parallel()

	svc := &fakeService{result: okResult()}
	server := newTestServer(svc)
	rec := do(t, server, http.MethodPost, "/from-url", `{"url":"https://example.com/story"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[fromURLResponse](t, rec)
	require.Equal(t, fromURLResponse{
		Text:     "Rivers return to the valley.",
		Lang:     "en",
		Version:  "v-test",
		OK:       true,
		Tier:     extraction.TierDirect,
		Title:    "Rivers",
		Author:   "Dana",
		FinalURL: "https://example.com/final",
	}, got)

	req := svc.lastRequest(t)
	require.False(t, req.Unlimited)
	require.Equal(t, extraction.ModeAuto, req.Mode)
	require.Equal(t, testConfig().Extraction, req.Options)
}

func TestServer_FromURLOptions(t *testing.T) {
	t.Parallel()

	svc := &fakeService{result: okResult()}
	server := newTestServer(svc)
	body := `{"url":"https://example.com","lang":"de","preference":"precision","format":"markdown","headless_only":true,"timeout_ms":1500}`
	rec := do(t, server, http.MethodPost, "/from-url", body)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "de", decode[fromURLResponse](t, rec).Lang)
	require.Equal(t, extraction.Request{
		URL:     "https://example.com",
		Timeout: 1500 * time.Millisecond,
		Mode:    extraction.ModeHeadlessOnly,
		Options: extraction.Options{
			Preference:     extraction.PreferencePrecision,
			TargetLanguage: "de",
			Format:         extraction.FormatMarkdown,
		},
	}, svc.lastRequest(t))
}

func TestServer_FromURLNoContent(t *testing.T) {
	t.Parallel()

	svc := &fakeService{result: extraction.Result{
		Tier: extraction.TierNone,
		Err:  fmt.Errorf("%w: %w", extraction.ErrRenderFailure, extraction.ErrRender),
	}}
	rec := do(t, newTestServer(svc), http.MethodPost, "/from-url", `{"url":"https://example.com"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[fromURLResponse](t, rec)
	require.False(t, got.OK)
	require.Equal(t, extraction.TierNone, got.Tier)
	require.Contains(t, got.Error, "render failure")
	require.Empty(t, got.Text)
}

func TestServer_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"invalid json", "/from-url", "{invalid", "invalid JSON"},
		{"missing url", "/from-url", `{}`, "url required"},
		{"bad preference", "/v1/extract", `{"url":"https://example.com","preference":"all"}`, "preference"},
		{"bad format", "/v1/extract", `{"url":"https://example.com","format":"pdf"}`, "format"},
		{"negative timeout", "/v1/extract", `{"url":"https://example.com","timeout_ms":-1}`, "timeout_ms"},
		{"empty batch", "/v1/extract/batch", `{"requests":[]}`, "requests required"},
		{"oversized batch", "/v1/extract/batch", `{"requests":[{"url":"a"},{"url":"b"},{"url":"c"},{"url":"d"}]}`, "at most 3"},
		{"bad batch item", "/v1/extract/batch", `{"requests":[{"url":"https://a.com"},{"url":""}]}`, "requests[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc := &fakeService{result: okResult()}
			rec := do(t, newTestServer(svc), http.MethodPost, tt.path, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Contains(t, rec.Body.String(), tt.want)
			require.Empty(t, svc.reqs)
		})
	}
}

func TestServer_ExtractErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("resolve: %w", extraction.ErrInvalidURL), http.StatusBadRequest},
		{fmt.Errorf("%w: example.com", extraction.ErrRateLimitTimeout), http.StatusTooManyRequests},
		{context.DeadlineExceeded, http.StatusRequestTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := do(t, newTestServer(&fakeService{err: tt.err}), http.MethodPost, "/v1/extract", `{"url":"https://example.com"}`)
		require.Equal(t, tt.want, rec.Code, tt.err.Error())
		if tt.want == http.StatusTooManyRequests {
			require.Equal(t, "1", rec.Header().Get("Retry-After"))
		}
	}
}

func TestServer_ExtractReturnsResult(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(&fakeService{result: okResult()}), http.MethodPost, "/v1/extract", `{"url":"https://example.com/story"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[map[string]any](t, rec)
	require.Equal(t, "https://example.com/story", got["url"])
	require.Equal(t, "direct", got["tier"])
	require.Equal(t, true, got["ok"])
	require.EqualValues(t, 250, got["duration_ms"])
}

func TestServer_ExtractBatch(t *testing.T) {
	t.Parallel()

	svc := &fakeService{result: okResult()}
	body := `{"parallelism":2,"requests":[{"url":"https://a.example.com"},{"url":"https://b.example.com","format":"html"}]}`
	rec := do(t, newTestServer(svc), http.MethodPost, "/v1/extract/batch", body)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Results, 2)
	require.Equal(t, "https://a.example.com", got.Results[0]["url"])
	require.Equal(t, "https://b.example.com", got.Results[1]["url"])
	require.Equal(t, 2, svc.parallelism)
	require.Equal(t, extraction.FormatHTML, svc.reqs[1].Options.Format)
}

func TestServer_InternalRoute(t *testing.T) {
	t.Parallel()

	disabled := newTestServer(&fakeService{result: okResult()})
	rec := do(t, disabled, http.MethodPost, "/internal/from-url", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	svc := &fakeService{result: okResult()}
	server := newTestServer(svc, func(c *config.Config) {
		c.Auth = config.AuthConfig{Enabled: true, APIKey: "secret"}
	})

	rec = do(t, server, http.MethodPost, "/internal/from-url", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, server, http.MethodPost, "/internal/from-url", `{"url":"https://example.com"}`, "X-API-Key", "wrong")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Empty(t, svc.reqs)

	rec = do(t, server, http.MethodPost, "/internal/from-url", `{"url":"https://example.com"}`, "X-API-Key", "secret")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, svc.lastRequest(t).Unlimited)

	rec = do(t, server, http.MethodPost, "/internal/from-url?api_key=secret", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, server, http.MethodPost, "/from-url", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, "public routes need no key")
	require.False(t, svc.lastRequest(t).Unlimited)
}

func TestRequestIDMiddlewareSetsHeader(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeService{})
	rec := do(t, server, http.MethodGet, "/healthz", "")
	require.Len(t, rec.Header().Get("X-Request-ID"), 36)

	upstream := "0190c8e4-7d2a-7b3c-9d4e-5f6a7b8c9d0e"
	rec = do(t, server, http.MethodGet, "/healthz", "", "X-Request-ID", upstream)
	require.Equal(t, upstream, rec.Header().Get("X-Request-ID"))

	rec = do(t, server, http.MethodGet, "/healthz", "", "X-Request-ID", "caller-id")
	require.NotEqual(t, "caller-id", rec.Header().Get("X-Request-ID"))
	require.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	rec := do(t, newTestServer(&fakeService{panicMsg: "kaboom"}), http.MethodPost, "/v1/extract", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "internal server error"))
}
