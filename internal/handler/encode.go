package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/tably/promo-engine/internal/domain/order"
	"github.com/tably/promo-engine/internal/domain/promotion"
)

// Responses are written with jx so monetary amounts serialize as exact
// decimal strings instead of floats.

func respondResult(w http.ResponseWriter, status int, res *promotion.Result) {
	e := &jx.Encoder{}
	encodeResult(e, res)
	writeJSON(w, status, e.Bytes())
}

func respondCheckout(w http.ResponseWriter, res *order.CheckoutResult) {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("order_id")
	e.Str(res.Order.ID)
	e.FieldStart("subtotal")
	e.Str(res.Order.Subtotal.String())
	e.FieldStart("discount")
	e.Str(res.Order.Discount.String())
	e.FieldStart("total")
	e.Str(res.Order.Total.String())
	e.FieldStart("promotions")
	encodeResult(e, res.Promotions)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, e.Bytes())
}

func encodeResult(e *jx.Encoder, res *promotion.Result) {
	e.ObjStart()
	e.FieldStart("subtotal")
	e.Str(res.Subtotal.String())
	e.FieldStart("total_discount")
	e.Str(res.TotalDiscount.String())
	e.FieldStart("final_amount")
	e.Str(res.FinalAmount.String())
	e.FieldStart("applied")
	e.ArrStart()
	for _, a := range res.Applied {
		e.ObjStart()
		e.FieldStart("promotion_id")
		e.Str(a.PromotionID)
		e.FieldStart("name")
		e.Str(a.Name)
		if a.Code != "" {
			e.FieldStart("code")
			e.Str(a.Code)
		}
		e.FieldStart("amount")
		e.Str(a.Amount.String())
		e.FieldStart("items")
		e.ArrStart()
		for _, it := range a.Items {
			e.ObjStart()
			e.FieldStart("menu_item_id")
			e.Str(it.MenuItemID)
			e.FieldStart("original_price")
			e.Str(it.OriginalPrice.String())
			e.FieldStart("discounted_price")
			e.Str(it.DiscountedPrice.String())
			e.FieldStart("quantity")
			e.Int(it.Quantity)
			e.ObjEnd()
		}
		e.ArrEnd()
		e.ObjEnd()
	}
	e.ArrEnd()
	if len(res.Warnings) > 0 {
		e.FieldStart("warnings")
		e.ArrStart()
		for _, wmsg := range res.Warnings {
			e.Str(wmsg)
		}
		e.ArrEnd()
	}
	e.ObjEnd()
}

func respondError(w http.ResponseWriter, status int, message string) {
	e := &jx.Encoder{}
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, e.Bytes())
}

// respondEngineError maps promotion domain errors onto HTTP statuses.
func respondEngineError(w http.ResponseWriter, err error) {
	var vErr *promotion.ValidationError
	switch {
	case errors.As(err, &vErr):
		respondError(w, http.StatusBadRequest, vErr.Error())
	case errors.Is(err, promotion.ErrInvalidPromoCode):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, promotion.ErrConditionsNotMet),
		errors.Is(err, promotion.ErrUsageLimitReached):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
