package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tably/promo-engine/internal/domain/promotion"
)

type lineItemRequest struct {
	MenuItemID string          `json:"menu_item_id"`
	CategoryID string          `json:"category_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

type calculateRequest struct {
	TenantID   string            `json:"tenant_id"`
	CustomerID string            `json:"customer_id"`
	Items      []lineItemRequest `json:"items"`
	Codes      []string          `json:"codes"`
	At         *time.Time        `json:"at"`
}

type applyCodeRequest struct {
	calculateRequest
	Code string `json:"code"`
}

func (req *calculateRequest) toOrderContext() *promotion.OrderContext {
	items := make([]promotion.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = promotion.LineItem{
			MenuItemID: it.MenuItemID,
			CategoryID: it.CategoryID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
		}
	}
	octx := &promotion.OrderContext{
		TenantID:   req.TenantID,
		CustomerID: req.CustomerID,
		Items:      items,
		Codes:      req.Codes,
	}
	if req.At != nil {
		octx.At = *req.At
	}
	return octx
}

// Calculate handles POST /api/v1/promotions/calculate. It runs the automatic
// promotion pass against the submitted cart without recording any usage.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.engine.Calculate(r.Context(), req.toOrderContext())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondResult(w, http.StatusOK, res)
}

// ApplyCode handles POST /api/v1/promotions/apply-code. It validates the
// named code(s) against the cart, failing loudly when a code cannot apply.
func (h *Handler) ApplyCode(w http.ResponseWriter, r *http.Request) {
	var req applyCodeRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	codes := req.Codes
	if c := strings.TrimSpace(req.Code); c != "" {
		codes = append([]string{c}, codes...)
	}
	if len(codes) == 0 {
		respondError(w, http.StatusBadRequest, "code is required")
		return
	}

	res, err := h.engine.ApplyCodes(r.Context(), codes, req.toOrderContext())
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondResult(w, http.StatusOK, res)
}

// Preview handles POST /api/v1/promotions/preview. Identical to Calculate
// plus any submitted codes, with no side effects.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	octx := req.toOrderContext()
	res, err := h.engine.Preview(r.Context(), octx.TenantID, octx.Items, req.Codes, octx.CustomerID)
	if err != nil {
		respondEngineError(w, err)
		return
	}
	respondResult(w, http.StatusOK, res)
}
