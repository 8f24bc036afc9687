// Package problem writes RFC 7807 problem documents. Failures about a
// specific order carry its context and correlation id as extension members.
package problem

import (
	"encoding/json"
	"net/http"
	"strings"
)

const (
	contentType = "application/problem+json"
	baseTypeURL = "https://errors.liquidity-settlement.dev/"

	// TraceHeader carries the request trace id in both directions.
	TraceHeader = "X-Trace-ID"
)

type Details struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail"`
	Instance      string `json:"instance"`
	TraceID       string `json:"trace_id,omitempty"`
	Context       string `json:"context,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Option adds extension members to a problem.
type Option func(*Details)

// ForOrder names the order the problem concerns. Empty values are omitted.
func ForOrder(orderContext, correlationID string) Option {
	return func(d *Details) {
		d.Context = orderContext
		d.CorrelationID = correlationID
	}
}

// Type expands a slug such as "liquidity/not-ready" into a type URI. Absolute
// URIs and about:blank pass through.
func Type(slug string) string {
	if slug == "" || slug == "about:blank" || strings.HasPrefix(slug, "http") {
		return slug
	}
	return baseTypeURL + slug
}

func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string, opts ...Option) {
	d := Details{
		Type:    problemType,
		Title:   title,
		Status:  status,
		Detail:  detail,
		TraceID: w.Header().Get(TraceHeader),
	}
	if d.Title == "" {
		d.Title = http.StatusText(status)
	}
	if d.Type == "" {
		d.Type = "about:blank"
	}
	if r != nil {
		d.Instance = r.URL.Path
		if d.TraceID == "" {
			d.TraceID = r.Header.Get(TraceHeader)
		}
	}
	for _, opt := range opts {
		opt(&d)
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(d)
}
