package handler

import (
	"net/http"

	"github.com/go-faster/errors"

	"github.com/tably/promo-engine/internal/domain/order"
	"github.com/tably/promo-engine/internal/domain/promotion"
)

type checkoutRequest struct {
	TenantID   string            `json:"tenant_id"`
	CustomerID string            `json:"customer_id"`
	Items      []lineItemRequest `json:"items"`
	PromoCodes []string          `json:"promo_codes"`
}

// Checkout handles POST /api/v1/orders/checkout. It prices the cart,
// persists the order, and records promotion usage.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decode(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	items := make([]promotion.LineItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = promotion.LineItem{
			MenuItemID: it.MenuItemID,
			CategoryID: it.CategoryID,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
		}
	}

	res, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		TenantID:   req.TenantID,
		CustomerID: req.CustomerID,
		Items:      items,
		PromoCodes: req.PromoCodes,
	})
	if err != nil {
		respondOrderError(w, err)
		return
	}
	respondCheckout(w, res)
}

// respondOrderError maps checkout failures onto HTTP statuses. Promotion
// errors keep the same mapping as the promotion endpoints.
func respondOrderError(w http.ResponseWriter, err error) {
	if errors.Is(err, order.ErrEmptyItems) || errors.Is(err, order.ErrMissingTenant) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var iqErr *order.InvalidQuantityError
	if errors.As(err, &iqErr) {
		respondError(w, http.StatusBadRequest, iqErr.Error())
		return
	}
	respondEngineError(w, err)
}
