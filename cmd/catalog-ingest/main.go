// Command catalog-ingest bulk-loads a gzipped JSONL product feed split into
// shards. Supplier feeds repeat products across regional shards; a two-pass
// bloom-filter scan finds the cross-shard repeats cheaply before an exact
// in-memory dedupe, so only one row per product name reaches the database.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/ugx-shop/internal/storage/postgres"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 1_000_000
	batchSize     = 500
)

// feedProduct is one line of the supplier JSONL feed.
type feedProduct struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int32           `json:"stock"`
	Category    string          `json:"category"`
}

// shardResult holds the products of one shard plus a bitmask per name marking
// which other shards also carry it.
type shardResult struct {
	products []feedProduct
	seen     map[string]uint
}

func main() {
	var (
		dataDir     string
		numShards   int
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing products-N.jsonl.gz shards")
	flag.IntVar(&numShards, "shards", 3, "number of feed shards")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, dataDir, numShards, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir string, numShards int, databaseURL string) error {
	files := make([]string, numShards)
	for i := range numShards {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("products-%d.jsonl.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	// Pass 1: one bloom filter of product names per shard, concurrently.
	slog.Info("pass 1: building name filters", slog.Int("shards", numShards))

	filters, err := buildNameFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build name filters")
	}

	// Pass 2: collect shard products and flag cross-shard repeats.
	slog.Info("pass 2: scanning shards")

	products, repeats, err := collectProducts(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "collect products")
	}

	slog.Info("feed scanned",
		slog.Int("unique_products", len(products)),
		slog.Int("cross_shard_repeats", repeats),
	)

	if len(products) == 0 {
		slog.Info("no products to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	if err := writeProducts(ctx, pool, products); err != nil {
		return errors.Wrap(err, "write products")
	}
	return nil
}

// buildNameFilters creates one bloom filter of product names per shard.
func buildNameFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			var count uint64

			err := streamShard(ctx, f, func(p feedProduct) {
				filter.AddString(p.Name)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("shard", i+1), slog.Uint64("lines", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "filter shard %d", i+1)
			}

			slog.Info("pass 1 complete", slog.Int("shard", i+1), slog.Uint64("lines", count))
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// collectProducts scans every shard concurrently, marking names that other
// shards' filters also report, then merges with exact first-shard-wins
// dedupe. The bloom check only decides what gets counted as a repeat; the
// merge map is exact, so false positives cannot drop a product.
func collectProducts(ctx context.Context, files []string, filters []*bloom.BloomFilter) ([]feedProduct, int, error) {
	results := make([]shardResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			res := shardResult{seen: make(map[string]uint)}
			shardBit := uint(1) << uint(i)

			err := streamShard(ctx, f, func(p feedProduct) {
				if _, dup := res.seen[p.Name]; dup {
					return
				}
				mask := shardBit
				for j, filter := range filters {
					if j != i && filter.TestString(p.Name) {
						mask |= uint(1) << uint(j)
					}
				}
				res.seen[p.Name] = mask
				res.products = append(res.products, p)
			})
			if err != nil {
				return errors.Wrapf(err, "scan shard %d", i+1)
			}

			slog.Info("pass 2 complete", slog.Int("shard", i+1), slog.Int("products", len(res.products)))
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	kept := make(map[string]struct{})
	var (
		out     []feedProduct
		repeats int
	)
	for _, res := range results {
		for _, p := range res.products {
			if _, ok := kept[p.Name]; ok {
				continue
			}
			kept[p.Name] = struct{}{}
			out = append(out, p)
			if bits.OnesCount(res.seen[p.Name]) >= 2 {
				repeats++
			}
		}
	}
	return out, repeats, nil
}

// streamShard opens a gzip-compressed JSONL shard and calls fn per product.
func streamShard(ctx context.Context, path string, fn func(p feedProduct)) error {
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

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var p feedProduct
		if err := json.Unmarshal(line, &p); err != nil {
			return errors.Wrap(err, "parse feed line")
		}
		if p.Name == "" {
			continue
		}
		fn(p)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

// writeProducts upserts products in batches, linking each to its category.
func writeProducts(ctx context.Context, pool *pgxpool.Pool, products []feedProduct) error {
	slog.Info("writing products", slog.Int("count", len(products)))

	const upsertSQL = `WITH prod AS (
			INSERT INTO products (name, description, price, stock)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (name) DO UPDATE SET
				description = EXCLUDED.description,
				price = EXCLUDED.price,
				stock = EXCLUDED.stock
			RETURNING id
		), cat AS (
			INSERT INTO categories (name) VALUES ($5)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		)
		INSERT INTO product_categories (product_id, category_id)
		SELECT prod.id, cat.id FROM prod, cat
		ON CONFLICT DO NOTHING`

	for start := 0; start < len(products); start += batchSize {
		end := min(start+batchSize, len(products))

		batch := &pgx.Batch{}
		for _, p := range products[start:end] {
			category := p.Category
			if category == "" {
				category = "Uncategorized"
			}
			batch.Queue(upsertSQL, p.Name, p.Description, p.Price, p.Stock, category)
		}

		if err := pool.SendBatch(ctx, batch).Close(); err != nil {
			return errors.Wrapf(err, "write batch at %d", start)
		}

		slog.Info("write progress", slog.Int("written", end), slog.Int("total", len(products)))
	}
	return nil
}
