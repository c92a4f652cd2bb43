// Command seed-db runs migrations and loads demo users, API keys, categories,
// and products into the shop database.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/ugx-shop/internal/domain/auth"
	"github.com/xenking/ugx-shop/internal/storage/postgres"
)

type seedUser struct {
	username string
	email    string
	scopes   []string
	keyEnv   string
}

var seedUsers = []seedUser{
	{"alice", "alice@example.com", []string{auth.ScopeShop}, "SHOP_SEED_KEY_ALICE"},
	{"bob", "bob@example.com", []string{auth.ScopeShop}, "SHOP_SEED_KEY_BOB"},
	{"back-office", "ops@example.com", []string{auth.ScopeShop, auth.ScopeAnalytics, auth.ScopeAdmin}, "SHOP_SEED_KEY_ADMIN"},
}

type seedProduct struct {
	name        string
	description string
	price       int64
	stock       int32
	category    string
}

// Prices in whole UGX, matching the cash denomination set.
var seedProducts = []seedProduct{
	{"Drip Coffee", "Single-origin Mount Elgon drip", 5000, 120, "Beverages"},
	{"Milk Tea", "Black tea with steamed milk", 3500, 80, "Beverages"},
	{"Passion Juice", "Fresh passion fruit juice", 4000, 60, "Beverages"},
	{"Rolex", "Rolled chapati with eggs and vegetables", 3000, 200, "Food"},
	{"Chapati", "Plain fresh chapati", 1000, 300, "Food"},
	{"Beef Samosa", "Fried pastry with spiced beef", 1500, 150, "Food"},
	{"Banana Cake Slice", "Matooke flour banana cake", 2500, 40, "Bakery"},
	{"Queen Cake", "Small sponge cake", 500, 250, "Bakery"},
}

func main() {
	var (
		databaseURL string
		pepper      string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&pepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or SHOP_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("SHOP_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, pepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, pepper string) error {
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

	if err := seedUsersAndKeys(ctx, pool, pepper); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedCatalog(ctx, pool); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	return nil
}

func seedUsersAndKeys(ctx context.Context, pool *pgxpool.Pool, pepper string) error {
	for _, u := range seedUsers {
		var userID int64
		err := pool.QueryRow(ctx,
			`INSERT INTO users (username, email) VALUES ($1, $2)
			 ON CONFLICT (username) DO UPDATE SET email = EXCLUDED.email
			 RETURNING id`,
			u.username, u.email,
		).Scan(&userID)
		if err != nil {
			return errors.Wrapf(err, "upsert user %s", u.username)
		}

		rawKey := os.Getenv(u.keyEnv)
		if rawKey == "" {
			slog.Warn("no API key for user, skipping",
				slog.String("username", u.username), slog.String("env", u.keyEnv))
			continue
		}

		hash := auth.HashKey([]byte(pepper), rawKey)
		_, err = pool.Exec(ctx,
			`INSERT INTO api_keys (id, user_id, key_hash, name, scopes, active)
			 VALUES ($1, $2, $3, $4, $5, TRUE)
			 ON CONFLICT (key_hash) DO UPDATE SET user_id = EXCLUDED.user_id,
			 	scopes = EXCLUDED.scopes, active = TRUE`,
			uuid.NewString(), userID, hash, u.username+" seed key", u.scopes,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert api key for %s", u.username)
		}

		slog.Info("seeded user", slog.String("username", u.username), slog.Int64("id", userID))
	}
	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding catalog", slog.Int("products", len(seedProducts)))

	for _, p := range seedProducts {
		var categoryID int64
		err := pool.QueryRow(ctx,
			`INSERT INTO categories (name) VALUES ($1)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			p.category,
		).Scan(&categoryID)
		if err != nil {
			return errors.Wrapf(err, "upsert category %s", p.category)
		}

		var exists bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE name = $1)`, p.name,
		).Scan(&exists); err != nil {
			return errors.Wrapf(err, "check product %s", p.name)
		}
		if exists {
			continue
		}

		var productID int64
		err = pool.QueryRow(ctx,
			`INSERT INTO products (name, description, price, stock)
			 VALUES ($1, $2, $3, $4) RETURNING id`,
			p.name, p.description, decimal.NewFromInt(p.price), p.stock,
		).Scan(&productID)
		if err != nil {
			return errors.Wrapf(err, "insert product %s", p.name)
		}

		if _, err := pool.Exec(ctx,
			`INSERT INTO product_categories (product_id, category_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			productID, categoryID,
		); err != nil {
			return errors.Wrapf(err, "link product %s to %s", p.name, p.category)
		}

		slog.Info("seeded product", slog.String("name", p.name), slog.Int64("id", productID))
	}
	return nil
}
