package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tably/promo-engine/internal/domain/promotion"
)

// Sentinel errors for checkout validation.
var (
	ErrEmptyItems      = fmt.Errorf("items required")
	ErrMissingTenant   = fmt.Errorf("tenant id required")
	ErrInvalidQuantity = fmt.Errorf("quantity must be greater than 0")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	MenuItemID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for item %s", e.MenuItemID)
}

// CheckoutRequest holds the input for committing an order.
type CheckoutRequest struct {
	TenantID   string
	CustomerID string
	Items      []promotion.LineItem
	PromoCodes []string
}

// CheckoutResult holds the persisted order together with the promotion
// breakdown used to price it.
type CheckoutResult struct {
	Order      *Order
	Promotions *promotion.Result
}

// Service encapsulates checkout business logic.
type Service struct {
	orders Repository
	engine *promotion.Engine
}

// NewService creates an order Service with the required domain dependencies.
func NewService(orders Repository, engine *promotion.Engine) *Service {
	return &Service{
		orders: orders,
		engine: engine,
	}
}

// Checkout validates the request, runs the full promotion calculation,
// persists the order, and records promotion usage. Usage is only recorded
// here, after the order is committed. Previews never reach this path.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if req.TenantID == "" {
		return nil, ErrMissingTenant
	}
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, &InvalidQuantityError{MenuItemID: item.MenuItemID}
		}
	}

	octx := &promotion.OrderContext{
		TenantID:   req.TenantID,
		CustomerID: req.CustomerID,
		Items:      req.Items,
		Codes:      req.PromoCodes,
	}

	res, err := s.engine.Calculate(ctx, octx)
	if err != nil {
		return nil, fmt.Errorf("calculate promotions: %w", err)
	}

	o := &Order{
		ID:         uuid.New().String(),
		TenantID:   req.TenantID,
		CustomerID: req.CustomerID,
		Items:      req.Items,
		Subtotal:   res.Subtotal.Round(2),
		Discount:   res.TotalDiscount.Round(2),
		Total:      res.FinalAmount,
		PromoCodes: req.PromoCodes,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// Usage recording happens after the order row exists. If a usage limit
	// is exhausted concurrently between Calculate and Commit, the order
	// stays persisted at the discounted total while this returns an error.
	if err := s.engine.Commit(ctx, o.ID, octx, res); err != nil {
		return nil, fmt.Errorf("record promotion usage: %w", err)
	}

	return &CheckoutResult{
		Order:      o,
		Promotions: res,
	}, nil
}
