package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ayo6706/liquidity-settlement/internal/catalog"
	"github.com/ayo6706/liquidity-settlement/internal/domain"
	"github.com/ayo6706/liquidity-settlement/internal/models"
	"github.com/ayo6706/liquidity-settlement/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// LiquidityHandler exposes the liquidity order engine.
type LiquidityHandler struct {
	svc        *service.LiquidityService
	assets     catalog.Resolver
	blockchain domain.Blockchain
}

// NewLiquidityHandler creates a handler. Requests that name no blockchain
// default to blockchain.
func NewLiquidityHandler(svc *service.LiquidityService, assets catalog.Resolver, blockchain domain.Blockchain) *LiquidityHandler {
	return &LiquidityHandler{svc: svc, assets: assets, blockchain: blockchain}
}

type liquidityRequestBody struct {
	Context         string          `json:"context"`
	CorrelationID   string          `json:"correlation_id"`
	Blockchain      string          `json:"blockchain,omitempty"`
	ReferenceAsset  string          `json:"reference_asset"`
	ReferenceAmount decimal.Decimal `json:"reference_amount"`
	TargetAsset     string          `json:"target_asset"`
	MaxSlippage     decimal.Decimal `json:"max_slippage"`
}

type sellRequestBody struct {
	Context       string          `json:"context"`
	CorrelationID string          `json:"correlation_id"`
	Blockchain    string          `json:"blockchain,omitempty"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	TargetAsset   string          `json:"target_asset"`
	MaxSlippage   decimal.Decimal `json:"max_slippage"`
}

type checkLiquidityResponse struct {
	*service.CheckLiquidityResult
	Sufficient bool `json:"sufficient"`
}

// CheckLiquidity handles POST /v1/liquidity/check. A shortfall or slippage
// verdict is reported in the body, not as an error status.
func (h *LiquidityHandler) CheckLiquidity(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseLiquidityRequest(w, r)
	if !ok {
		return
	}
	result, err := h.svc.CheckLiquidity(r.Context(), req)
	if err != nil && (result == nil || !isLiquidityVerdict(err)) {
		respondServiceError(w, r, "check liquidity", orderRef{req.Context, req.CorrelationID}, err)
		return
	}
	RespondJSON(w, http.StatusOK, checkLiquidityResponse{CheckLiquidityResult: result, Sufficient: err == nil})
}

// ReserveLiquidity handles POST /v1/liquidity/reserve.
func (h *LiquidityHandler) ReserveLiquidity(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseLiquidityRequest(w, r)
	if !ok {
		return
	}
	order, err := h.svc.ReserveLiquidity(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, "reserve liquidity", orderRef{req.Context, req.CorrelationID}, err)
		return
	}
	RespondJSON(w, http.StatusCreated, order)
}

// PurchaseLiquidity handles POST /v1/liquidity/purchase. The order settles
// asynchronously, so the response is 202.
func (h *LiquidityHandler) PurchaseLiquidity(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseLiquidityRequest(w, r)
	if !ok {
		return
	}
	order, err := h.svc.PurchaseLiquidity(r.Context(), req)
	if err != nil {
		respondServiceError(w, r, "purchase liquidity", orderRef{req.Context, req.CorrelationID}, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, order)
}

// SellLiquidity handles POST /v1/liquidity/sell.
func (h *LiquidityHandler) SellLiquidity(w http.ResponseWriter, r *http.Request) {
	var body sellRequestBody
	if !decodeBody(w, r, &body) {
		return
	}
	orderContext, ok := service.ParseContext(body.Context)
	if !ok {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-context", "unknown context")
		return
	}
	blockchain := h.resolveBlockchain(body.Blockchain)
	asset, err := h.lookup(r.Context(), blockchain, body.Asset)
	if err != nil {
		respondServiceError(w, r, "sell liquidity", orderRef{orderContext, body.CorrelationID}, err)
		return
	}
	target, err := h.lookup(r.Context(), blockchain, body.TargetAsset)
	if err != nil {
		respondServiceError(w, r, "sell liquidity", orderRef{orderContext, body.CorrelationID}, err)
		return
	}

	order, err := h.svc.SellLiquidity(r.Context(), service.SellRequest{
		Context:       orderContext,
		CorrelationID: body.CorrelationID,
		Asset:         asset,
		Amount:        body.Amount,
		TargetAsset:   target,
		MaxSlippage:   body.MaxSlippage,
	})
	if err != nil {
		respondServiceError(w, r, "sell liquidity", orderRef{orderContext, body.CorrelationID}, err)
		return
	}
	RespondJSON(w, http.StatusAccepted, order)
}

// GetTransactionResult handles GET /v1/liquidity/{context}/{correlationId}.
func (h *LiquidityHandler) GetTransactionResult(w http.ResponseWriter, r *http.Request) {
	orderContext, correlationID, ok := orderKey(w, r)
	if !ok {
		return
	}
	result, err := h.svc.FetchLiquidityTransactionResult(r.Context(), orderContext, correlationID)
	if err != nil {
		respondServiceError(w, r, "fetch liquidity result", orderRef{orderContext, correlationID}, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

// GetReady handles GET /v1/liquidity/{context}/{correlationId}/ready.
func (h *LiquidityHandler) GetReady(w http.ResponseWriter, r *http.Request) {
	orderContext, correlationID, ok := orderKey(w, r)
	if !ok {
		return
	}
	ready, err := h.svc.CheckOrderReady(r.Context(), orderContext, correlationID)
	if err != nil {
		respondServiceError(w, r, "check order ready", orderRef{orderContext, correlationID}, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]bool{"is_ready": ready})
}

// GetCompletion handles GET /v1/liquidity/{context}/{correlationId}/completion.
func (h *LiquidityHandler) GetCompletion(w http.ResponseWriter, r *http.Request) {
	orderContext, correlationID, ok := orderKey(w, r)
	if !ok {
		return
	}
	completion, err := h.svc.CheckOrderCompletion(r.Context(), orderContext, correlationID)
	if err != nil {
		respondServiceError(w, r, "check order completion", orderRef{orderContext, correlationID}, err)
		return
	}
	RespondJSON(w, http.StatusOK, completion)
}

// Complete handles POST /v1/liquidity/{context}/{correlationId}/complete.
func (h *LiquidityHandler) Complete(w http.ResponseWriter, r *http.Request) {
	orderContext, correlationID, ok := orderKey(w, r)
	if !ok {
		return
	}
	n, err := h.svc.CompleteOrders(r.Context(), orderContext, correlationID)
	if err != nil {
		respondServiceError(w, r, "complete orders", orderRef{orderContext, correlationID}, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]int64{"completed": n})
}

// GetPendingCount handles GET /v1/liquidity/pending?asset=&blockchain=.
func (h *LiquidityHandler) GetPendingCount(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("asset"))
	if name == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-asset", "asset is required")
		return
	}
	asset, err := h.lookup(r.Context(), h.resolveBlockchain(r.URL.Query().Get("blockchain")), name)
	if err != nil {
		respondServiceError(w, r, "pending orders", orderRef{}, err)
		return
	}
	n, err := h.svc.GetPendingOrdersCount(r.Context(), asset)
	if err != nil {
		respondServiceError(w, r, "pending orders", orderRef{}, err)
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"asset": asset.Name, "pending": n})
}

func (h *LiquidityHandler) parseLiquidityRequest(w http.ResponseWriter, r *http.Request) (service.LiquidityRequest, bool) {
	var body liquidityRequestBody
	if !decodeBody(w, r, &body) {
		return service.LiquidityRequest{}, false
	}
	orderContext, ok := service.ParseContext(body.Context)
	if !ok {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-context", "unknown context")
		return service.LiquidityRequest{}, false
	}
	blockchain := h.resolveBlockchain(body.Blockchain)
	reference, err := h.lookup(r.Context(), blockchain, body.ReferenceAsset)
	if err != nil {
		respondServiceError(w, r, "resolve reference asset", orderRef{orderContext, body.CorrelationID}, err)
		return service.LiquidityRequest{}, false
	}
	target, err := h.lookup(r.Context(), blockchain, body.TargetAsset)
	if err != nil {
		respondServiceError(w, r, "resolve target asset", orderRef{orderContext, body.CorrelationID}, err)
		return service.LiquidityRequest{}, false
	}
	return service.LiquidityRequest{
		Context:         orderContext,
		CorrelationID:   body.CorrelationID,
		ReferenceAsset:  reference,
		ReferenceAmount: body.ReferenceAmount,
		TargetAsset:     target,
		MaxSlippage:     body.MaxSlippage,
	}, true
}

func (h *LiquidityHandler) resolveBlockchain(value string) domain.Blockchain {
	return resolveBlockchain(value, h.blockchain)
}

func resolveBlockchain(value string, fallback domain.Blockchain) domain.Blockchain {
	if v := strings.TrimSpace(value); v != "" {
		return domain.Blockchain(strings.ToUpper(v))
	}
	return fallback
}

func (h *LiquidityHandler) lookup(ctx context.Context, blockchain domain.Blockchain, name string) (models.Asset, error) {
	return lookupAsset(ctx, h.assets, blockchain, name)
}

func lookupAsset(ctx context.Context, assets catalog.Resolver, blockchain domain.Blockchain, name string) (models.Asset, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Asset{}, fmt.Errorf("%w: asset name is required", models.ErrInvalidRequest)
	}
	return assets.Lookup(ctx, blockchain, name)
}

func orderKey(w http.ResponseWriter, r *http.Request) (domain.OrderContext, string, bool) {
	orderContext, ok := service.ParseContext(chi.URLParam(r, "context"))
	if !ok {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-context", "unknown context")
		return "", "", false
	}
	correlationID := strings.TrimSpace(chi.URLParam(r, "correlationId"))
	if correlationID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-correlation-id", "correlation id is required")
		return "", "", false
	}
	return orderContext, correlationID, true
}

func isLiquidityVerdict(err error) bool {
	return errors.Is(err, models.ErrNotEnoughLiquidity) || errors.Is(err, models.ErrPriceSlippage)
}
