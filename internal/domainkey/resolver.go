// Package domainkey derives the throttling identity of a URL: its registrable
// domain (eTLD+1), lower-cased, so every host owned by one organization shares a
// single rate-limit budget.
package domainkey

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/JakeFAU/text-extraction/internal/extraction"
)

// Key is a normalized registrable domain.
type Key string

// String implements fmt.Stringer.
func (k Key) String() string {
	return string(k)
}

// KeyFunc maps the argument of a wrapped call to its throttling key.
type KeyFunc[A any] func(A) (Key, error)

// Resolve returns the registrable domain of rawURL.
// Scheme-less input such as "example.com/path" is accepted. IP literals and
// single-label hosts are their own key.
func Resolve(rawURL string) (Key, error) {
	host, err := hostOf(rawURL)
	if err != nil {
		return "", err
	}
	if ip := net.ParseIP(host); ip != nil {
		return Key(ip.String()), nil
	}
	if !strings.Contains(host, ".") {
		return Key(host), nil
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		// The host is itself a public suffix (e.g. "co.uk"); use it verbatim.
		return Key(host), nil //nolint:nilerr // suffix-only hosts still throttle as one key
	}
	return Key(registrable), nil
}

// ForString is the KeyFunc for calls whose argument is the URL itself.
func ForString(rawURL string) (Key, error) {
	return Resolve(rawURL)
}

// ForRequest is the KeyFunc for calls taking an extraction.Request.
func ForRequest(req extraction.Request) (Key, error) {
	return Resolve(req.URL)
}

func hostOf(rawURL string) (string, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", extraction.ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", extraction.ErrInvalidURL, err)
	}
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", extraction.ErrInvalidURL, rawURL)
	}
	return host, nil
}
