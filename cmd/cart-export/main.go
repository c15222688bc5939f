// Command cart-export writes persisted carts that earlier exports do not
// already contain to a new gzip NDJSON file.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/foodhub-storefront/internal/storage/postgres"
	redisstore "github.com/xenking/foodhub-storefront/internal/storage/redis"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
)

type options struct {
	source      string
	redisURL    string
	databaseURL string
	outDir      string
	olderThan   time.Duration
	capacity    uint
}

func main() {
	var opts options
	flag.StringVar(&opts.source, "source", "redis", "cart storage to export from: redis or postgres")
	flag.StringVar(&opts.redisURL, "redis-url", "", "Redis URL (or REDIS_URL env)")
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.outDir, "out-dir", "exports", "directory holding carts-*.ndjson.gz exports")
	flag.DurationVar(&opts.olderThan, "older-than", 0, "only export carts idle for at least this long")
	flag.UintVar(&opts.capacity, "bloom-capacity", bloomCapacity, "expected carts per previous export")
	flag.Parse()

	if opts.redisURL == "" {
		opts.redisURL = os.Getenv("REDIS_URL")
	}
	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Error("Cart export failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
		return errors.Wrap(err, "create output directory")
	}

	src, closeSrc, err := openSource(ctx, opts)
	if err != nil {
		return err
	}
	defer closeSrc()

	e := &exporter{
		src:      src,
		dir:      opts.outDir,
		capacity: opts.capacity,
		fpr:      bloomFPR,
		lg:       lg,
		now:      time.Now,
	}
	st, err := e.Run(ctx, opts.olderThan)
	if err != nil {
		return err
	}

	lg.Info("Cart export completed",
		zap.Int("scanned", st.Scanned),
		zap.Int("skipped", st.Skipped),
		zap.Int("exported", st.Exported),
		zap.String("file", st.File),
	)
	return nil
}

func openSource(ctx context.Context, opts options) (source, func(), error) {
	switch opts.source {
	case "redis":
		if opts.redisURL == "" {
			return nil, nil, errors.New("redis URL is required: set --redis-url or REDIS_URL")
		}
		ropts, err := redis.ParseURL(opts.redisURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(ropts)
		return redisSource{repo: redisstore.NewCartRepository(rdb, 0)}, func() { _ = rdb.Close() }, nil
	case "postgres":
		if opts.databaseURL == "" {
			return nil, nil, errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		pool, err := postgres.NewPool(ctx, opts.databaseURL)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect to database")
		}
		return postgresSource{repo: postgres.NewCartRepository(pool)}, pool.Close, nil
	default:
		return nil, nil, errors.Errorf("unknown source %q", opts.source)
	}
}
