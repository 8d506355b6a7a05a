// Package pagination parses offset pagination parameters for listing endpoints.
package pagination

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Config configures page size normalization.
type Config struct {
	DefaultLimit int
	MaxLimit     int
}

// Params is a normalized page request.
type Params struct {
	Limit  int
	Offset int
	Prefix string
}

// Page is the pagination block returned alongside listed data.
type Page struct {
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
	Total  int64 `json:"total"`
}

// ClampLimit applies the default for non-positive values and caps at the maximum.
func ClampLimit(value int, cfg Config) int {
	limit := value
	if limit <= 0 {
		limit = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 && limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}

// ParseLenient reads limit, offset and prefix. Malformed or out-of-range
// values fall back to defaults instead of failing.
func ParseLenient(query url.Values, cfg Config) Params {
	limit := 0
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	offset := 0
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			offset = v
		}
	}

	return Params{
		Limit:  ClampLimit(limit, cfg),
		Offset: offset,
		Prefix: query.Get("prefix"),
	}
}

// ValidationError describes a rejected pagination parameter.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ParseStrict is like ParseLenient but rejects malformed or out-of-range values.
func ParseStrict(query url.Values, cfg Config) (Params, error) {
	maxLimit := cfg.MaxLimit
	if maxLimit <= 0 {
		maxLimit = ClampLimit(0, cfg)
	}

	limit := ClampLimit(0, cfg)
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, &ValidationError{Field: "limit", Reason: "must be an integer"}
		}
		if v < 1 || v > maxLimit {
			return Params{}, &ValidationError{Field: "limit", Reason: fmt.Sprintf("must be between 1 and %d", maxLimit)}
		}
		limit = v
	}

	offset := 0
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return Params{}, &ValidationError{Field: "offset", Reason: "must be an integer"}
		}
		if v < 0 {
			return Params{}, &ValidationError{Field: "offset", Reason: "must be a non-negative integer"}
		}
		offset = v
	}

	return Params{Limit: limit, Offset: offset, Prefix: query.Get("prefix")}, nil
}
