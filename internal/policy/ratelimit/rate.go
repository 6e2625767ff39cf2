package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Rate admits Count operations per Per interval.
type Rate struct {
	Count int
	Per   time.Duration
}

// String renders the rate in the same form ParseRate accepts, e.g. "5/1s".
func (r Rate) String() string {
	return fmt.Sprintf("%d/%s", r.Count, r.Per)
}

// Validate reports a malformed rate.
func (r Rate) Validate() error {
	if r.Count <= 0 {
		return fmt.Errorf("rate %s: count must be positive", r)
	}
	if r.Per <= 0 {
		return fmt.Errorf("rate %s: interval must be positive", r)
	}
	return nil
}

// ParseRate parses "<count>/<duration>", e.g. "5/1s" or "50/1m".
// A bare unit is read as one of it, so "5/s" equals "5/1s".
func ParseRate(s string) (Rate, error) {
	countPart, perPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rate{}, fmt.Errorf("parse rate %q: want <count>/<duration>", s)
	}
	count, err := strconv.Atoi(strings.TrimSpace(countPart))
	if err != nil {
		return Rate{}, fmt.Errorf("parse rate %q: %w", s, err)
	}
	perPart = strings.TrimSpace(perPart)
	if perPart != "" && (perPart[0] < '0' || perPart[0] > '9') {
		perPart = "1" + perPart
	}
	per, err := time.ParseDuration(perPart)
	if err != nil {
		return Rate{}, fmt.Errorf("parse rate %q: %w", s, err)
	}
	r := Rate{Count: count, Per: per}
	if err := r.Validate(); err != nil {
		return Rate{}, err
	}
	return r, nil
}

// ParseRates parses every entry of specs.
func ParseRates(specs []string) ([]Rate, error) {
	rates := make([]Rate, 0, len(specs))
	for _, s := range specs {
		r, err := ParseRate(s)
		if err != nil {
			return nil, err
		}
		rates = append(rates, r)
	}
	return rates, nil
}
