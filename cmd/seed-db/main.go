// Command seed-db loads a development or test dataset: a small catalog, a
// carrier rate table, a handful of coupons, and one back-office API key.
// Everything is upserted, so re-running is safe.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/craftline/shop-api/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "back-office API key to seed (or SHOP_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("SHOP_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or SHOP_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedShipping(ctx, pool); err != nil {
		return errors.Wrap(err, "seed shipping")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	products := []struct {
		id, name string
		price    string
		stock    int
	}{
		{"desk-lamp", "Desk Lamp", "24.90", 40},
		{"notebook", "Dotted Notebook", "7.50", 200},
		{"fountain-pen", "Fountain Pen", "32.00", 15},
		{"ink-bottle", "Ink Bottle (Blue)", "9.80", 60},
		{"paper-tray", "Paper Tray", "12.40", 25},
	}
	for _, p := range products {
		_, err := pool.Exec(ctx, `INSERT INTO products (id, name, price, stock_qty, active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, stock_qty = EXCLUDED.stock_qty`,
			p.id, p.name, decimal.RequireFromString(p.price), p.stock)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.id)
		}
	}

	_, err := pool.Exec(ctx, `INSERT INTO bundles (id, name, price, active)
		VALUES ('writing-set', 'Writing Starter Set', $1, TRUE)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price`,
		decimal.RequireFromString("44.00"))
	if err != nil {
		return errors.Wrap(err, "upsert bundle")
	}

	slog.Info("seeded catalog", slog.Int("products", len(products)), slog.Int("bundles", 1))
	return nil
}

func seedShipping(ctx context.Context, pool *pgxpool.Pool) error {
	carriers := []struct{ id, name string }{
		{"swift", "Swift Express"},
		{"turtle", "Turtle Post"},
	}
	for _, c := range carriers {
		_, err := pool.Exec(ctx, `INSERT INTO carriers (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, c.id, c.name)
		if err != nil {
			return errors.Wrapf(err, "upsert carrier %s", c.id)
		}
	}

	rates := []struct {
		carrier, region string
		deskP, homeP    string
	}{
		{"swift", "north", "4.50", "7.00"},
		{"swift", "south", "6.00", "9.00"},
		{"turtle", "north", "2.00", "3.50"},
	}
	for _, r := range rates {
		_, err := pool.Exec(ctx, `INSERT INTO shipping_rates (carrier_id, region_code, desk_price, home_price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (carrier_id, region_code)
			DO UPDATE SET desk_price = EXCLUDED.desk_price, home_price = EXCLUDED.home_price`,
			r.carrier, r.region, decimal.RequireFromString(r.deskP), decimal.RequireFromString(r.homeP))
		if err != nil {
			return errors.Wrapf(err, "upsert rate %s/%s", r.carrier, r.region)
		}
	}

	slog.Info("seeded shipping", slog.Int("carriers", len(carriers)), slog.Int("rates", len(rates)))
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	coupons := []struct {
		code, discountType string
		value, minSpend    string
		usageLimit         *int
	}{
		{"WELCOME10", "percentage", "10", "0", nil},
		{"FIVEOFF", "fixed", "5.00", "25.00", nil},
		{"LASTCHANCE", "fixed", "15.00", "0", intPtr(1)},
	}
	for _, c := range coupons {
		_, err := pool.Exec(ctx, `INSERT INTO coupons (code, discount_type, discount_value, min_spend, usage_limit, active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (code) DO UPDATE SET
				discount_type = EXCLUDED.discount_type,
				discount_value = EXCLUDED.discount_value,
				min_spend = EXCLUDED.min_spend,
				usage_limit = EXCLUDED.usage_limit`,
			c.code, c.discountType,
			decimal.RequireFromString(c.value), decimal.RequireFromString(c.minSpend),
			c.usageLimit)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
	}

	slog.Info("seeded coupons", slog.Int("count", len(coupons)))
	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ('default', $1, 'Default back-office key', '{manage_orders,manage_coupons}', TRUE)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash`,
		keyHash)
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("seeded API key", slog.String("id", "default"))
	return nil
}

func intPtr(v int) *int { return &v }
