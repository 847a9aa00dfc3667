// Package handler exposes the promotion engine over HTTP.
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/tably/promo-engine/internal/domain/order"
	"github.com/tably/promo-engine/internal/domain/promotion"
)

const defaultMaxBodySize = 1 << 20

// Handler routes API requests to the promotion engine and the order service.
type Handler struct {
	engine      *promotion.Engine
	orders      *order.Service
	maxBodySize int64
}

// NewHandler creates a Handler over the given collaborators.
func NewHandler(engine *promotion.Engine, orders *order.Service) *Handler {
	return &Handler{
		engine:      engine,
		orders:      orders,
		maxBodySize: defaultMaxBodySize,
	}
}

// RegisterRoutes mounts all API routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/promotions", func(r chi.Router) {
			r.Post("/calculate", h.Calculate)
			r.Post("/apply-code", h.ApplyCode)
			r.Post("/preview", h.Preview)
		})
		r.Post("/orders/checkout", h.Checkout)
	})
}

// decode reads the request body into dst, enforcing the body size limit.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.Wrap(err, "decode request body")
	}
	return nil
}
