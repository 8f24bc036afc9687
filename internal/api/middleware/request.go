package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/ayo6706/liquidity-settlement/internal/api/problem"
	"github.com/google/uuid"
)

const (
	requestInfoKey   contextKey = "request_info"
	maxTraceIDLength            = 128
	anonymousCaller             = "anonymous"
)

// requestInfo is shared by every layer of one request. Authentication runs
// inside logging and metrics, so it records the caller here for them.
type requestInfo struct {
	traceID string
	caller  string
}

// RequestContextMiddleware assigns the trace id. A caller-supplied X-Trace-ID
// or X-Request-ID is kept when it is short enough to log.
func RequestContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &requestInfo{traceID: incomingTraceID(r)}
		w.Header().Set(problem.TraceHeader, info.traceID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestInfoKey, info)))
	})
}

func incomingTraceID(r *http.Request) string {
	for _, header := range []string{problem.TraceHeader, "X-Request-ID"} {
		if v := strings.TrimSpace(r.Header.Get(header)); v != "" && len(v) <= maxTraceIDLength {
			return v
		}
	}
	return uuid.NewString()
}

func requestInfoFrom(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoKey).(*requestInfo)
	return info
}

// TraceIDFromContext returns the trace id for the request.
func TraceIDFromContext(ctx context.Context) string {
	if info := requestInfoFrom(ctx); info != nil {
		return info.traceID
	}
	return ""
}

// callerLabel names the authenticated caller for logs and metrics.
func callerLabel(ctx context.Context) string {
	if info := requestInfoFrom(ctx); info != nil && info.caller != "" {
		return info.caller
	}
	return anonymousCaller
}
