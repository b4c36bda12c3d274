// Command catalog-ingest imports a gzipped JSON-lines catalog feed into the
// database. Feeds from upstream suppliers repeat rows across daily exports, so
// already-seen variations are skipped with a bloom filter before hitting the
// database. Each line is a flat object carrying both product and variation
// fields.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/solenne/boutique/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.0001
	progressEvery = 100_000
)

// feedRow is one line of the catalog feed.
type feedRow struct {
	ProductID   string
	Name        string
	Description string
	Category    string
	Image       string
	BasePrice   decimal.Decimal
	VariationID string
	Size        string
	Color       string
	Quantity    int
	Price       decimal.Decimal
}

func main() {
	var (
		feedFile    string
		databaseURL string
		workers     int
	)

	flag.StringVar(&feedFile, "feed-file", "data/catalog.jsonl.gz", "gzipped JSON-lines catalog feed")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "number of concurrent upsert workers")
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

	if err := run(ctx, feedFile, databaseURL, workers); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, feedFile, databaseURL string, workers int) error {
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	rows := make(chan feedRow, 256)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rows)
		return streamFeed(ctx, feedFile, rows)
	})
	for range workers {
		g.Go(func() error {
			return upsertRows(ctx, pool, rows)
		})
	}

	return g.Wait()
}

// streamFeed reads the gzipped feed line by line, drops rows whose variation
// was already seen, and sends the rest downstream.
func streamFeed(ctx context.Context, path string, out chan<- feedRow) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	var total, skipped uint64

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		row, err := parseRow(scanner.Bytes())
		if err != nil {
			return errors.Wrapf(err, "parse feed line %d", total+1)
		}

		total++
		if total%progressEvery == 0 {
			slog.Info("ingest progress", slog.Uint64("rows", total), slog.Uint64("skipped", skipped))
		}

		// A bloom false positive only skips a duplicate-looking row; the next
		// daily feed retries it.
		if seen.TestString(row.VariationID) {
			skipped++
			continue
		}
		seen.AddString(row.VariationID)

		select {
		case out <- row:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	slog.Info("feed streamed", slog.Uint64("rows", total), slog.Uint64("skipped", skipped))
	return nil
}

// parseRow decodes one feed line.
func parseRow(line []byte) (feedRow, error) {
	var row feedRow
	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "product_id":
			v, err := d.Str()
			row.ProductID = v
			return err
		case "name":
			v, err := d.Str()
			row.Name = v
			return err
		case "description":
			v, err := d.Str()
			row.Description = v
			return err
		case "category":
			v, err := d.Str()
			row.Category = v
			return err
		case "image":
			v, err := d.Str()
			row.Image = v
			return err
		case "base_price":
			raw, err := d.Num()
			if err != nil {
				return err
			}
			row.BasePrice, err = decimal.NewFromString(raw.String())
			return err
		case "variation_id":
			v, err := d.Str()
			row.VariationID = v
			return err
		case "size":
			v, err := d.Str()
			row.Size = v
			return err
		case "color":
			v, err := d.Str()
			row.Color = v
			return err
		case "quantity":
			v, err := d.Int()
			row.Quantity = v
			return err
		case "price":
			raw, err := d.Num()
			if err != nil {
				return err
			}
			row.Price, err = decimal.NewFromString(raw.String())
			return err
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return row, err
	}
	if row.ProductID == "" || row.VariationID == "" {
		return row, errors.New("missing product_id or variation_id")
	}
	return row, nil
}

// upsertRows writes feed rows until the channel closes. Product rows are
// upserted on every variation they arrive with; the last write wins.
func upsertRows(ctx context.Context, pool *pgxpool.Pool, rows <-chan feedRow) error {
	for row := range rows {
		_, err := pool.Exec(ctx, `INSERT INTO products (id, name, description, category, image, base_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
				category = EXCLUDED.category, image = EXCLUDED.image, base_price = EXCLUDED.base_price`,
			row.ProductID, row.Name, row.Description, row.Category, row.Image, row.BasePrice,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", row.ProductID)
		}

		_, err = pool.Exec(ctx, `INSERT INTO variations (id, product_id, size, color, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET size = EXCLUDED.size, color = EXCLUDED.color,
				quantity = EXCLUDED.quantity, price = EXCLUDED.price`,
			row.VariationID, row.ProductID, row.Size, row.Color, row.Quantity, row.Price,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert variation %s", row.VariationID)
		}
	}
	return nil
}
