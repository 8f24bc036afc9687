package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ayo6706/liquidity-settlement/internal/api/problem"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/ayo6706/liquidity-settlement/internal/strategy"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response. problemType may be a slug.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string, opts ...problem.Option) {
	problem.Write(w, r, status, problem.Type(problemType), http.StatusText(status), message, opts...)
}

// orderRef names the order a request concerns. The zero value names none.
type orderRef struct {
	context       domain.OrderContext
	correlationID string
}

// respondServiceError maps engine errors onto problem responses tagged with
// the order. Unknown errors are logged and reported as 500 with a generic
// message.
func respondServiceError(w http.ResponseWriter, r *http.Request, op string, ref orderRef, err error) {
	tag := problem.ForOrder(string(ref.context), ref.correlationID)
	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		RespondError(w, r, http.StatusBadRequest, "request/invalid", err.Error(), tag)
	case errors.Is(err, strategy.ErrUnsupportedAsset), errors.Is(err, strategy.ErrStrategyNotFound):
		RespondError(w, r, http.StatusBadRequest, "asset/unsupported", err.Error(), tag)
	case errors.Is(err, models.ErrAssetNotFound):
		RespondError(w, r, http.StatusBadRequest, "asset/not-found", err.Error(), tag)
	case errors.Is(err, models.ErrNotEnoughLiquidity):
		RespondError(w, r, http.StatusConflict, "liquidity/not-enough", err.Error(), tag)
	case errors.Is(err, models.ErrPriceSlippage):
		RespondError(w, r, http.StatusConflict, "liquidity/price-slippage", err.Error(), tag)
	case errors.Is(err, models.ErrIndeterminateBroadcast):
		RespondError(w, r, http.StatusConflict, "liquidity/broadcast-unknown", err.Error(), tag)
	case errors.Is(err, models.ErrLiquidityOrderNotReady):
		RespondError(w, r, http.StatusTooEarly, "liquidity/not-ready", err.Error(), tag)
	case errors.Is(err, models.ErrLiquidityOrderNotFound):
		RespondError(w, r, http.StatusNotFound, "liquidity/not-found", "Liquidity order not found", tag)
	case errors.Is(err, models.ErrPayoutOrderNotFound):
		RespondError(w, r, http.StatusNotFound, "payout/not-found", "Payout order not found", tag)
	default:
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message, tag)
			return
		}
		zap.L().Error(op+" failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("context", string(ref.context)),
			zap.String("correlation_id", ref.correlationID),
		)
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error", tag)
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return false
	}
	return true
}
