package extraction

import (
	"encoding/json"
	"net/http"
	"time"
)

// Tier records which retrieval strategy produced the returned text.
type Tier string

// Tier values reported on every Result.
const (
	TierNone     Tier = "none"
	TierDirect   Tier = "direct"
	TierHeadless Tier = "headless"
)

// Mode selects the entry state of the fallback pipeline.
type Mode string

// Supported pipeline modes.
const (
	ModeAuto         Mode = "auto"
	ModeHeadlessOnly Mode = "headless_only"
)

// Preference biases the extractor towards keeping more or less of the page.
type Preference string

// Extraction preferences.
const (
	PreferenceNone      Preference = "none"
	PreferenceRecall    Preference = "recall"
	PreferencePrecision Preference = "precision"
)

// Format selects the representation of Result.Text.
type Format string

// Output formats.
const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "markdown"
	FormatHTML     Format = "html"
)

// LanguageAuto disables the target-language filter.
const LanguageAuto = "auto"

// Options tune the extraction adapter for a single request.
type Options struct {
	Preference     Preference `json:"preference" mapstructure:"preference"`
	TargetLanguage string     `json:"target_language" mapstructure:"target_language"`
	Format         Format     `json:"format" mapstructure:"format"`
}

// WithDefaults fills unset fields.
func (o Options) WithDefaults() Options {
	if o.Preference == "" {
		o.Preference = PreferenceNone
	}
	if o.TargetLanguage == "" {
		o.TargetLanguage = LanguageAuto
	}
	if o.Format == "" {
		o.Format = FormatText
	}
	return o
}

// Request describes one pipeline invocation. It is treated as immutable once built.
type Request struct {
	URL string
	// Unlimited bypasses the rate limiter for trusted callers.
	Unlimited bool
	// Timeout bounds the whole pipeline; zero means the service default.
	Timeout time.Duration
	Mode    Mode
	Options Options
}

// Metadata carries page-level facts reported by the extractor.
type Metadata struct {
	Title         string `json:"title,omitempty"`
	Author        string `json:"author,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
	Language      string `json:"language,omitempty"`
}

// Document is the output of the extraction adapter.
type Document struct {
	// Text is rendered in the requested Format.
	Text string
	// PlainText is the same content as normalized text; acceptance is judged on it.
	PlainText string
	Metadata  Metadata
}

// Page is the raw retrieval produced by a Fetcher or Renderer.
type Page struct {
	URL          string
	FinalURL     string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// Result is the terminal value of the pipeline.
type Result struct {
	URL        string        `json:"url"`
	FinalURL   string        `json:"final_url,omitempty"`
	Text       string        `json:"text"`
	Metadata   Metadata      `json:"metadata"`
	Tier       Tier          `json:"tier"`
	OK         bool          `json:"ok"`
	Err        error         `json:"-"`
	StatusCode int           `json:"status_code,omitempty"`
	Duration   time.Duration `json:"-"`
}

// MarshalJSON renders Err as a string and Duration in milliseconds.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	out := struct {
		alias
		Error      string `json:"error,omitempty"`
		DurationMs int64  `json:"duration_ms"`
	}{
		alias:      alias(r),
		DurationMs: r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}
