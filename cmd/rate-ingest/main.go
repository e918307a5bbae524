// Command rate-ingest loads carrier shipping rate tables into the database.
//
// Input is one or more CSV files (optionally gzip-compressed, .csv.gz) with
// the columns:
//
//	carrier_id,carrier_name,region_code,desk_price,home_price
//
// A zero or negative price means the carrier does not offer that service in
// the region; the row is still stored so the API can report the carrier as
// unavailable rather than unknown. Files are processed concurrently and rows
// are upserted, so re-running with a corrected table is safe.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/craftline/shop-api/internal/domain/shipping"
	"github.com/craftline/shop-api/internal/storage/postgres"
)

const ingestConcurrency = 4

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if flag.NArg() == 0 {
		slog.Error("no input files: pass one or more rate CSV files (.csv or .csv.gz)")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, flag.Args()); err != nil {
		slog.Error("rate ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("rate ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	repo := postgres.NewShippingRepository(pool)

	var total atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for _, path := range files {
		g.Go(func() error {
			n, err := ingestFile(ctx, repo, path)
			if err != nil {
				return errors.Wrapf(err, "ingest %s", path)
			}
			total.Add(int64(n))
			slog.Info("file ingested", slog.String("file", path), slog.Int("rates", n))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("all files ingested", slog.Int64("total_rates", total.Load()))
	return nil
}

// ingestFile streams one rate table, upserting each carrier and rate row.
// Returns the number of rate rows written.
func ingestFile(ctx context.Context, repo *postgres.ShippingRepository, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrap(err, "open")
	}
	defer func() { _ = f.Close() }()

	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return 0, errors.Wrap(err, "create gzip reader")
		}
		defer func() { _ = gz.Close() }()
		src = gz
	}

	r := csv.NewReader(src)
	r.FieldsPerRecord = 5
	r.TrimLeadingSpace = true

	// Header row.
	if _, err := r.Read(); err != nil {
		return 0, errors.Wrap(err, "read header")
	}

	seen := make(map[string]struct{})
	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, errors.Wrap(err, "read record")
		}

		carrierID, carrierName, regionCode := record[0], record[1], record[2]

		deskPrice, err := decimal.NewFromString(record[3])
		if err != nil {
			return count, errors.Wrapf(err, "parse desk price for %s/%s", carrierID, regionCode)
		}
		homePrice, err := decimal.NewFromString(record[4])
		if err != nil {
			return count, errors.Wrapf(err, "parse home price for %s/%s", carrierID, regionCode)
		}

		if _, ok := seen[carrierID]; !ok {
			if err := repo.UpsertCarrier(ctx, shipping.Carrier{ID: carrierID, Name: carrierName}); err != nil {
				return count, err
			}
			seen[carrierID] = struct{}{}
		}

		if err := repo.UpsertRate(ctx, shipping.Rate{
			CarrierID:  carrierID,
			RegionCode: regionCode,
			DeskPrice:  deskPrice,
			HomePrice:  homePrice,
		}); err != nil {
			return count, err
		}
		count++
	}
}
