package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tably/promo-engine/internal/domain/order"
)

const insertOrderSQL = `INSERT INTO orders
	(id, tenant_id, customer_id, items, subtotal, discount, total, promo_codes, created_at)
	VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository persists checked-out orders in PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	_, err := r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.TenantID, o.CustomerID, encodeLineItems(o.Items),
		o.Subtotal, o.Discount, o.Total, o.PromoCodes, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}
	return nil
}
