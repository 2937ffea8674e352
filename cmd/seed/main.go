// seed loads the demo catalog and customers into the configured store. It is idempotent:
// products, variants, and customers are upserted, and customer statistics are left alone.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"log"

	"github.com/shopspring/decimal"

	"flower-pos/internal/config"
	"flower-pos/internal/core"
	"flower-pos/internal/logging"
	"flower-pos/internal/store"
)

func strPtr(s string) *string { return &s }

var products = []core.Product{
	{ID: "prod-rose-red", Slug: "rose-red", LegacyID: strPtr("42"), Name: "Red Rose"},
	{ID: "prod-rose-white", Slug: "rose-white", LegacyID: strPtr("43"), Name: "White Rose"},
	{ID: "prod-tulip-yellow", Slug: "tulip-yellow", Name: "Yellow Tulip"},
	{ID: "prod-chrysanthemum", Slug: "chrysanthemum-bush", Name: "Bush Chrysanthemum"},
	{ID: "prod-eucalyptus", Slug: "eucalyptus-cinerea", Name: "Eucalyptus Cinerea"},
}

var variants = []core.Variant{
	{ID: "var-rose-red-50", ProductID: "prod-rose-red", Length: 50, Stock: 200, Price: decimal.NewFromInt(55)},
	{ID: "var-rose-red-60", ProductID: "prod-rose-red", Length: 60, Stock: 150, Price: decimal.NewFromInt(62)},
	{ID: "var-rose-red-70", ProductID: "prod-rose-red", Length: 70, Stock: 80, Price: decimal.NewFromInt(75)},
	{ID: "var-rose-white-60", ProductID: "prod-rose-white", Length: 60, Stock: 120, Price: decimal.NewFromInt(64)},
	{ID: "var-tulip-yellow-40", ProductID: "prod-tulip-yellow", Length: 40, Stock: 300, Price: decimal.NewFromInt(30)},
	{ID: "var-chrysanthemum-70", ProductID: "prod-chrysanthemum", Length: 70, Stock: 90, Price: decimal.RequireFromString("48.50")},
	{ID: "var-eucalyptus-60", ProductID: "prod-eucalyptus", Length: 60, Stock: 60, Price: decimal.NewFromInt(35)},
}

var customers = []core.Customer{
	{ID: "cust-walk-in", Name: "Walk-in"},
	{ID: "cust-flora-shop", Name: "Flora Shop"},
	{ID: "cust-bloom-bar", Name: "Bloom Bar"},
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(logging.Config{
		Level:       cfg.LogLevel,
		ServiceName: "flower-pos-seed",
		Environment: cfg.Environment,
	})

	ctx := context.Background()
	backend, err := store.Open(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer backend.Close()

	for _, p := range products {
		if err := backend.UpsertProduct(ctx, p); err != nil {
			log.Fatalf("Failed to seed product %s: %v", p.Slug, err)
		}
	}
	for _, v := range variants {
		if err := backend.UpsertVariant(ctx, v); err != nil {
			log.Fatalf("Failed to seed variant %s: %v", v.ID, err)
		}
	}
	for _, c := range customers {
		if err := backend.UpsertCustomer(ctx, c); err != nil {
			log.Fatalf("Failed to seed customer %s: %v", c.ID, err)
		}
	}

	logger.Info("seed data restored",
		"products", len(products),
		"variants", len(variants),
		"customers", len(customers),
	)
}
