package handler

import (
	"net/http"

	"github.com/ayo6706/liquidity-settlement/internal/catalog"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/service"
	"github.com/shopspring/decimal"
)

// PayoutHandler handles HTTP requests for payouts.
type PayoutHandler struct {
	svc        *service.PayoutService
	assets     catalog.Resolver
	blockchain domain.Blockchain
}

func NewPayoutHandler(svc *service.PayoutService, assets catalog.Resolver, blockchain domain.Blockchain) *PayoutHandler {
	return &PayoutHandler{svc: svc, assets: assets, blockchain: blockchain}
}

// CreatePayoutRequest represents the request body for creating a payout.
type CreatePayoutRequest struct {
	Context       string          `json:"context"`
	CorrelationID string          `json:"correlation_id"`
	Blockchain    string          `json:"blockchain,omitempty"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	Destination   string          `json:"destination_address"`
}

// CreatePayout handles POST /v1/payouts. Repeating a request with the same
// context and correlation id returns the existing order.
func (h *PayoutHandler) CreatePayout(w http.ResponseWriter, r *http.Request) {
	var req CreatePayoutRequest
	if !decodeBody(w, r, &req) {
		return
	}
	orderContext, ok := service.ParseContext(req.Context)
	if !ok {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-context", "unknown context")
		return
	}
	asset, err := lookupAsset(r.Context(), h.assets, resolveBlockchain(req.Blockchain, h.blockchain), req.Asset)
	if err != nil {
		respondServiceError(w, r, "create payout", orderRef{orderContext, req.CorrelationID}, err)
		return
	}

	order, err := h.svc.RequestPayout(r.Context(), service.PayoutRequest{
		Context:       orderContext,
		CorrelationID: req.CorrelationID,
		Asset:         asset,
		Amount:        req.Amount,
		Destination:   req.Destination,
	})
	if err != nil {
		respondServiceError(w, r, "create payout", orderRef{orderContext, req.CorrelationID}, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, order)
}

// GetPayout handles GET /v1/payouts/{context}/{correlationId}.
func (h *PayoutHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	orderContext, correlationID, ok := orderKey(w, r)
	if !ok {
		return
	}
	order, err := h.svc.GetPayout(r.Context(), orderContext, correlationID)
	if err != nil {
		respondServiceError(w, r, "get payout", orderRef{orderContext, correlationID}, err)
		return
	}
	RespondJSON(w, http.StatusOK, order)
}

// GetCompletion handles GET /v1/payouts/{context}/{correlationId}/completion.
func (h *PayoutHandler) GetCompletion(w http.ResponseWriter, r *http.Request) {
	orderContext, correlationID, ok := orderKey(w, r)
	if !ok {
		return
	}
	completion, err := h.svc.CheckOrderCompletion(r.Context(), orderContext, correlationID)
	if err != nil {
		respondServiceError(w, r, "check payout completion", orderRef{orderContext, correlationID}, err)
		return
	}
	RespondJSON(w, http.StatusOK, completion)
}
