// Package order hosts the checkout collaborator that feeds assembled line
// items into the promotion engine and persists the priced order.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tably/promo-engine/internal/domain/promotion"
)

// Order is a priced, committed customer order.
type Order struct {
	ID         string
	TenantID   string
	CustomerID string
	Items      []promotion.LineItem
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
	PromoCodes []string
	CreatedAt  time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
}
