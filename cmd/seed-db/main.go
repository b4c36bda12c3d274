// Command seed-db loads a small product catalog and a test session into the
// database, for local development and integration tests.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/solenne/boutique/internal/repository"
)

type variationJSON struct {
	ID       string          `json:"id"`
	Size     string          `json:"size"`
	Color    string          `json:"color"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Image       string          `json:"image"`
	BasePrice   decimal.Decimal `json:"base_price"`
	Variations  []variationJSON `json:"variations"`
}

func main() {
	var (
		databaseURL   string
		productsFile  string
		sessionToken  string
		sessionUserID string
		sessionPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&sessionToken, "session-token", "", "session token to seed (or BOUTIQUE_SEED_SESSION env)")
	flag.StringVar(&sessionUserID, "session-user", "user-1", "user ID the seeded session belongs to")
	flag.StringVar(&sessionPepper, "session-pepper", "", "HMAC pepper for session token hashing (or BOUTIQUE_SESSION_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if sessionToken == "" {
		sessionToken = os.Getenv("BOUTIQUE_SEED_SESSION")
	}
	if sessionPepper == "" {
		sessionPepper = os.Getenv("BOUTIQUE_SESSION_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, sessionToken, sessionUserID, sessionPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, sessionToken, sessionUserID, sessionPepper string) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if sessionToken != "" {
		if err := seedSession(ctx, pool, sessionToken, sessionUserID, sessionPepper); err != nil {
			return errors.Wrap(err, "seed session")
		}
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read %s", path)
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrapf(err, "parse %s", path)
	}

	for _, p := range products {
		_, err := pool.Exec(ctx, `INSERT INTO products (id, name, description, category, image, base_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
				category = EXCLUDED.category, image = EXCLUDED.image, base_price = EXCLUDED.base_price`,
			p.ID, p.Name, p.Description, p.Category, p.Image, p.BasePrice,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		for _, v := range p.Variations {
			_, err := pool.Exec(ctx, `INSERT INTO variations (id, product_id, size, color, quantity, price)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE SET size = EXCLUDED.size, color = EXCLUDED.color,
					quantity = EXCLUDED.quantity, price = EXCLUDED.price`,
				v.ID, p.ID, v.Size, v.Color, v.Quantity, v.Price,
			)
			if err != nil {
				return errors.Wrapf(err, "upsert variation %s", v.ID)
			}
		}
	}

	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}

func seedSession(ctx context.Context, pool *pgxpool.Pool, token, userID, pepper string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	hash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `INSERT INTO sessions (id, token_hash, user_id, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (token_hash) DO UPDATE SET user_id = EXCLUDED.user_id, active = TRUE`,
		uuid.New().String(), hash, userID,
	)
	if err != nil {
		return errors.Wrap(err, "upsert session")
	}

	slog.Info("session seeded", slog.String("user_id", userID))
	return nil
}
