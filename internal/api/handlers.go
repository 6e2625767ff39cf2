package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/text-extraction/internal/config"
	"github.com/JakeFAU/text-extraction/internal/extraction"
)

const maxBodyBytes = 1 << 20

type extractRequest struct {
	URL          string `json:"url"`
	Lang         string `json:"lang"`
	Preference   string `json:"preference"`
	Format       string `json:"format"`
	HeadlessOnly bool   `json:"headless_only"`
	TimeoutMs    int    `json:"timeout_ms"`
}

type fromURLResponse struct {
	Text          string          `json:"text"`
	Lang          string          `json:"lang"`
	Version       string          `json:"version"`
	OK            bool            `json:"ok"`
	Tier          extraction.Tier `json:"tier"`
	Error         string          `json:"error,omitempty"`
	Title         string          `json:"title,omitempty"`
	Author        string          `json:"author,omitempty"`
	PublishedDate string          `json:"published_date,omitempty"`
	FinalURL      string          `json:"final_url,omitempty"`
}

type batchRequest struct {
	Requests    []extractRequest `json:"requests"`
	Parallelism int              `json:"parallelism"`
}

type batchResponse struct {
	Results []extraction.Result `json:"results"`
}

func (s *Server) fromURL(unlimited bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in extractRequest
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		req, err := s.toRequest(in, unlimited)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		res, err := s.svc.Extract(r.Context(), req)
		if err != nil {
			s.writeExtractError(w, r, err)
			return
		}

		lang := req.Options.TargetLanguage
		if lang == "" || lang == extraction.LanguageAuto {
			lang = res.Metadata.Language
		}
		out := fromURLResponse{
			Text:          res.Text,
			Lang:          lang,
			Version:       s.version,
			OK:            res.OK,
			Tier:          res.Tier,
			Title:         res.Metadata.Title,
			Author:        res.Metadata.Author,
			PublishedDate: res.Metadata.PublishedDate,
			FinalURL:      res.FinalURL,
		}
		if res.Err != nil {
			out.Error = res.Err.Error()
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) extract(w http.ResponseWriter, r *http.Request) {
	var in extractRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	req, err := s.toRequest(in, false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.svc.Extract(r.Context(), req)
	if err != nil {
		s.writeExtractError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) extractBatch(w http.ResponseWriter, r *http.Request) {
	var in batchRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(in.Requests) == 0 {
		writeError(w, http.StatusBadRequest, "requests required")
		return
	}
	if limit := s.cfg.Pipeline.MaxBatchSize; limit > 0 && len(in.Requests) > limit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d requests per batch", limit))
		return
	}
	reqs := make([]extraction.Request, 0, len(in.Requests))
	for i, item := range in.Requests {
		req, err := s.toRequest(item, false)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("requests[%d]: %v", i, err))
			return
		}
		reqs = append(reqs, req)
	}
	writeJSON(w, http.StatusOK, batchResponse{Results: s.svc.ExtractBatch(r.Context(), reqs, in.Parallelism)})
}

// toRequest validates in and fills unset options from the configured defaults.
func (s *Server) toRequest(in extractRequest, unlimited bool) (extraction.Request, error) {
	if in.URL == "" {
		return extraction.Request{}, errors.New("url required")
	}
	if in.TimeoutMs < 0 {
		return extraction.Request{}, errors.New("timeout_ms must be >= 0")
	}
	opts := extraction.Options{
		Preference:     extraction.Preference(valueOrDefault(in.Preference, string(s.cfg.Extraction.Preference))),
		TargetLanguage: valueOrDefault(in.Lang, s.cfg.Extraction.TargetLanguage),
		Format:         extraction.Format(valueOrDefault(in.Format, string(s.cfg.Extraction.Format))),
	}
	if err := config.ValidateOptions(opts); err != nil {
		return extraction.Request{}, err
	}
	mode := extraction.ModeAuto
	if in.HeadlessOnly {
		mode = extraction.ModeHeadlessOnly
	}
	return extraction.Request{
		URL:       in.URL,
		Unlimited: unlimited,
		Timeout:   time.Duration(in.TimeoutMs) * time.Millisecond,
		Mode:      mode,
		Options:   opts.WithDefaults(),
	}, nil
}

func (s *Server) writeExtractError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	s.logger.Info("extraction rejected",
		zap.String("request_id", RequestID(r.Context())),
		zap.Int("status", status),
		zap.Error(err),
	)
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, extraction.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, extraction.ErrRateLimitTimeout):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func valueOrDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
