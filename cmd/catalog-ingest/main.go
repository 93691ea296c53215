// Command catalog-ingest loads supplier product feeds into the catalog.
// Feeds are gzip-compressed JSON-lines files, one product per line. Product
// IDs seen earlier in the run win; later duplicates are skipped.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/tamrhq/supplycart/internal/domain/pricing"
	"github.com/tamrhq/supplycart/internal/domain/product"
	"github.com/tamrhq/supplycart/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing *.jsonl.gz product feeds")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	feeds, err := filepath.Glob(filepath.Join(dataDir, "*.jsonl.gz"))
	if err != nil {
		return errors.Wrap(err, "glob feeds")
	}
	if len(feeds) == 0 {
		return errors.Errorf("no *.jsonl.gz feeds found in %s", dataDir)
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	taxRepo := repository.NewTaxRepository(pool)
	taxes, err := taxRepo.ActiveProductTaxes(ctx)
	if err != nil {
		return errors.Wrap(err, "load taxes")
	}

	// Readers decode feeds concurrently; a single writer owns the duplicate
	// filter and the catalog writes, so no locking is needed around either.
	records := make(chan *product.Product, 1024)

	g, ctx := errgroup.WithContext(ctx)
	readers, ctx := errgroup.WithContext(ctx)
	for _, feed := range feeds {
		readers.Go(readFeed(ctx, feed, records))
	}
	g.Go(func() error {
		defer close(records)
		return readers.Wait()
	})
	g.Go(writeCatalog(ctx, repository.NewProductRepository(pool), taxes, records))

	return g.Wait()
}

// readFeed streams one gzip feed and sends each decoded product to out.
func readFeed(ctx context.Context, path string, out chan<- *product.Product) func() error {
	return func() error {
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

		var count uint64
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
		for scanner.Scan() {
			p, err := decodeProduct(scanner.Bytes())
			if err != nil {
				return errors.Wrapf(err, "decode line %d of %s", count+1, path)
			}

			select {
			case out <- p:
			case <-ctx.Done():
				return ctx.Err()
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("feed progress", slog.String("feed", path), slog.Uint64("records", count))
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("feed complete", slog.String("feed", path), slog.Uint64("records", count))
		return nil
	}
}

// writeCatalog reprices and upserts products, skipping duplicate IDs. The
// bloom filter keeps the dedup set in fixed memory; on a (rare) false
// positive a genuinely new product is dropped, which a rerun picks up.
func writeCatalog(ctx context.Context, repo *repository.ProductRepository, taxes []pricing.Tax, records <-chan *product.Product) func() error {
	return func() error {
		seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var written, skipped uint64

		for p := range records {
			if seen.TestString(p.ID) {
				skipped++
				continue
			}
			seen.AddString(p.ID)

			if err := p.Reprice(taxes); err != nil {
				return errors.Wrapf(err, "price product %s", p.ID)
			}
			if err := repo.Upsert(ctx, p); err != nil {
				return errors.Wrapf(err, "upsert product %s", p.ID)
			}

			written++
			if written%progressEvery == 0 {
				slog.Info("write progress", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
			}
		}

		slog.Info("catalog written", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
		return nil
	}
}

// decodeProduct parses one feed line. Unknown fields are skipped so feeds can
// carry supplier-specific extras.
func decodeProduct(line []byte) (*product.Product, error) {
	p := &product.Product{Status: product.StatusPublished, Active: true, UnitType: "unit"}

	d := jx.DecodeBytes(line)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "supplier_id":
			p.SupplierID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = d.Str()
		case "base_price":
			p.BasePrice, err = decodeDecimal(d)
		case "discount_rate":
			p.DiscountRate, err = decodeDecimal(d)
		case "stock_qty":
			p.StockQty, err = d.Int()
		case "nearly_out_of_stock_limit":
			p.NearlyOutOfStockLimit, err = d.Int()
		case "unit_type":
			p.UnitType, err = d.Str()
		default:
			return d.Skip()
		}
		return err
	}); err != nil {
		return nil, err
	}

	if p.ID == "" || p.SupplierID == "" {
		return nil, errors.New("feed record is missing id or supplier_id")
	}
	return p, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	num, err := d.Num()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(num.String())
}
