package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ayo6706/liquidity-settlement/internal/api/problem"
	"github.com/ayo6706/liquidity-settlement/internal/notification"
	"go.uber.org/zap"
)

// RecoverMiddleware answers a panicking handler with a 500 problem and sends
// an error mail naming the route, caller and trace id. A nil notifier only
// logs.
func RecoverMiddleware(logger *zap.Logger, notifier notification.Notifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				route := routePattern(r)
				caller := callerLabel(r.Context())
				traceID := TraceIDFromContext(r.Context())
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("route", route),
					zap.String("caller", caller),
					zap.String("trace_id", traceID),
					zap.Stack("stack"),
				)
				if notifier != nil {
					notifier.SendErrorMail(context.WithoutCancel(r.Context()), "API handler panic",
						fmt.Sprintf("%s %s called by %s (trace %s)", r.Method, route, caller, traceID),
						fmt.Sprint(rec),
					)
				}

				problem.Write(w, r, http.StatusInternalServerError, problem.Type("internal-server-error"), "", "unexpected server error")
			}()
			next.ServeHTTP(w, r)
		})
	}
}
