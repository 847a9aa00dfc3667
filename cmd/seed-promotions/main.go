package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tably/promo-engine/internal/domain/promotion"
	"github.com/tably/promo-engine/internal/repository"
)

type promotionJSON struct {
	ID           string          `json:"id"`
	TenantID     string          `json:"tenant_id"`
	Name         string          `json:"name"`
	Kind         string          `json:"kind"`
	Value        decimal.Decimal `json:"value"`
	ValueType    string          `json:"value_type"`
	MinCartValue decimal.Decimal `json:"min_cart_value"`
	MinItems     int             `json:"min_items"`
	MaxItems     int             `json:"max_items"`
	MaxDiscount  decimal.Decimal `json:"max_discount"`
	Target       targetJSON      `json:"target"`

	BuyQuantity int         `json:"buy_quantity"`
	GetQuantity int         `json:"get_quantity"`
	BuyTarget   *targetJSON `json:"buy_target"`
	GetTarget   *targetJSON `json:"get_target"`

	WindowStart string `json:"window_start"`
	WindowEnd   string `json:"window_end"`
	DaysOfWeek  []int  `json:"days_of_week"`

	Priority         int        `json:"priority"`
	ActiveFrom       *time.Time `json:"active_from"`
	ActiveUntil      *time.Time `json:"active_until"`
	UsageLimit       int        `json:"usage_limit"`
	PerCustomerLimit int        `json:"per_customer_limit"`

	RequiresCode bool   `json:"requires_code"`
	Code         string `json:"code"`
	Combinable   bool   `json:"combinable"`

	RequiredItems []requiredItemJSON `json:"required_items"`
}

type targetJSON struct {
	Type       string   `json:"type"`
	CategoryID string   `json:"category_id"`
	ItemIDs    []string `json:"item_ids"`
}

type requiredItemJSON struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

func main() {
	var (
		databaseURL    string
		promotionsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&promotionsFile, "promotions-file", "db/seed/promotions.json", "path to promotions JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, promotionsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, promotionsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("reading promotions file", slog.String("path", promotionsFile))

	data, err := os.ReadFile(promotionsFile)
	if err != nil {
		return errors.Wrap(err, "read promotions file")
	}

	var promos []promotionJSON
	if err := json.Unmarshal(data, &promos); err != nil {
		return errors.Wrap(err, "parse promotions JSON")
	}

	repo := repository.NewPromotionRepository(pool)

	slog.Info("inserting promotions", slog.Int("count", len(promos)))

	for _, pj := range promos {
		p := toDomain(pj)
		if err := repo.Create(ctx, &p); err != nil {
			return errors.Wrapf(err, "insert promotion %s", pj.ID)
		}
		slog.Info("inserted promotion",
			slog.String("id", pj.ID), slog.String("name", pj.Name))
	}

	return nil
}

func toDomain(pj promotionJSON) promotion.Promotion {
	p := promotion.Promotion{
		ID:               pj.ID,
		TenantID:         pj.TenantID,
		Name:             pj.Name,
		Kind:             promotion.Kind(pj.Kind),
		Value:            pj.Value,
		ValueType:        promotion.ValueType(pj.ValueType),
		MinCartValue:     pj.MinCartValue,
		MinItems:         pj.MinItems,
		MaxItems:         pj.MaxItems,
		MaxDiscount:      pj.MaxDiscount,
		Target:           toTarget(pj.Target),
		BuyQuantity:      pj.BuyQuantity,
		GetQuantity:      pj.GetQuantity,
		DaysOfWeek:       pj.DaysOfWeek,
		Priority:         pj.Priority,
		ActiveFrom:       pj.ActiveFrom,
		ActiveUntil:      pj.ActiveUntil,
		UsageLimit:       pj.UsageLimit,
		PerCustomerLimit: pj.PerCustomerLimit,
		RequiresCode:     pj.RequiresCode,
		Code:             pj.Code,
		Combinable:       pj.Combinable,
	}
	if pj.BuyTarget != nil {
		p.BuyTarget = toTarget(*pj.BuyTarget)
	}
	if pj.GetTarget != nil {
		p.GetTarget = toTarget(*pj.GetTarget)
	}
	if pj.WindowStart != "" && pj.WindowEnd != "" {
		p.Window = &promotion.TimeWindow{Start: pj.WindowStart, End: pj.WindowEnd}
	}
	for _, ri := range pj.RequiredItems {
		p.RequiredItems = append(p.RequiredItems, promotion.RequiredItem{
			MenuItemID: ri.MenuItemID,
			Quantity:   ri.Quantity,
		})
	}
	return p
}

func toTarget(tj targetJSON) promotion.TargetSpec {
	return promotion.TargetSpec{
		Type:       promotion.TargetType(tj.Type),
		CategoryID: tj.CategoryID,
		ItemIDs:    tj.ItemIDs,
	}
}
