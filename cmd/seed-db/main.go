package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/tamrhq/supplycart/internal/domain/auth"
	"github.com/tamrhq/supplycart/internal/domain/pricing"
	"github.com/tamrhq/supplycart/internal/domain/product"
	"github.com/tamrhq/supplycart/internal/domain/settings"
	"github.com/tamrhq/supplycart/internal/domain/supplier"
	"github.com/tamrhq/supplycart/internal/handler"
	"github.com/tamrhq/supplycart/internal/repository"
)

type seedFile struct {
	Suppliers []supplierJSON `json:"suppliers"`
	Taxes     []taxJSON      `json:"taxes"`
	Products  []productJSON  `json:"products"`
}

type supplierJSON struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	MinOrderAmount decimal.Decimal `json:"min_order_amount"`
}

type taxJSON struct {
	ID    string          `json:"id"`
	Rate  decimal.Decimal `json:"rate"`
	Group string          `json:"group"`
}

type productJSON struct {
	ID                    string          `json:"id"`
	SupplierID            string          `json:"supplier_id"`
	Name                  string          `json:"name"`
	Description           string          `json:"description"`
	BasePrice             decimal.Decimal `json:"base_price"`
	DiscountRate          decimal.Decimal `json:"discount_rate"`
	StockQty              int             `json:"stock_qty"`
	NearlyOutOfStockLimit int             `json:"nearly_out_of_stock_limit"`
	UnitType              string          `json:"unit_type"`
}

func main() {
	var (
		databaseURL  string
		seedPath     string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to seed JSON file")
	flag.StringVar(&apiKey, "api-key", "", "buyer API key to seed (or SUPPLYCART_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SUPPLYCART_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("SUPPLYCART_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or SUPPLYCART_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SUPPLYCART_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, apiKey, pepper string) error {
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

	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	taxes := make([]pricing.Tax, len(seed.Taxes))
	taxRepo := repository.NewTaxRepository(pool)
	for i, t := range seed.Taxes {
		taxes[i] = pricing.Tax{
			ID:        t.ID,
			Rate:      t.Rate,
			Group:     pricing.TaxGroup(t.Group),
			AppliesTo: pricing.ScopeProduct,
			Active:    true,
		}
		if err := taxRepo.Upsert(ctx, taxes[i]); err != nil {
			return errors.Wrapf(err, "upsert tax %s", t.ID)
		}
	}
	slog.Info("upserted taxes", slog.Int("count", len(taxes)))

	supplierRepo := repository.NewSupplierRepository(pool)
	settingsRepo := repository.NewSettingsRepository(pool)
	store := settings.NewStore(settingsRepo)
	for _, s := range seed.Suppliers {
		if err := supplierRepo.Upsert(ctx, &supplier.Supplier{ID: s.ID, Name: s.Name, Active: true}); err != nil {
			return errors.Wrapf(err, "upsert supplier %s", s.ID)
		}
		if s.MinOrderAmount.IsPositive() {
			if err := store.SetMinOrderAmount(ctx, s.ID, s.MinOrderAmount); err != nil {
				return errors.Wrapf(err, "set min order amount for supplier %s", s.ID)
			}
		}
		slog.Info("upserted supplier", slog.String("id", s.ID), slog.String("name", s.Name))
	}

	productRepo := repository.NewProductRepository(pool)
	for _, in := range seed.Products {
		p := &product.Product{
			ID:                    in.ID,
			SupplierID:            in.SupplierID,
			Name:                  in.Name,
			Description:           in.Description,
			BasePrice:             in.BasePrice,
			DiscountRate:          in.DiscountRate,
			StockQty:              in.StockQty,
			NearlyOutOfStockLimit: in.NearlyOutOfStockLimit,
			Status:                product.StatusPublished,
			Active:                true,
			UnitType:              in.UnitType,
		}
		if err := p.Reprice(taxes); err != nil {
			return errors.Wrapf(err, "price product %s", p.ID)
		}
		if err := productRepo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
	}
	slog.Info("upserted products", slog.Int("count", len(seed.Products)))

	slog.Info("seeding default API key")

	apikeyRepo := repository.NewAPIKeyRepository(pool)
	keyHash := handler.HashAPIKey(apiKey, []byte(pepper))
	if err := apikeyRepo.Upsert(ctx, "default", keyHash, "demo-buyer", auth.RoleBuyer); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	return nil
}
