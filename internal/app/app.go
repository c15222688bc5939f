package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xenking/foodhub-storefront/internal/domain/cart"
	"github.com/xenking/foodhub-storefront/internal/domain/checkout"
	"github.com/xenking/foodhub-storefront/internal/foodapi"
	"github.com/xenking/foodhub-storefront/internal/handler"
	"github.com/xenking/foodhub-storefront/internal/storage/memory"
	"github.com/xenking/foodhub-storefront/internal/storage/postgres"
	redisstore "github.com/xenking/foodhub-storefront/internal/storage/redis"
	"github.com/xenking/foodhub-storefront/pkg/health"
	"github.com/xenking/foodhub-storefront/pkg/httpmiddleware"
)

// cartBackend is a cart repository that can be pinged for readiness.
type cartBackend interface {
	cart.Repository
	Ping(ctx context.Context) error
}

// storage is the opened cart backend. rdb is set for the redis driver and
// shared with the rate limiters. shared is set when other instances may
// write the same carts.
type storage struct {
	carts  cartBackend
	rdb    *redis.Client
	shared bool
	close  func()
}

func (s *storage) managerOptions() []cart.ManagerOption {
	if s.shared {
		return []cart.ManagerOption{cart.Shared()}
	}
	return nil
}

func openStorage(ctx context.Context, cfg StorageConfig) (*storage, error) {
	switch cfg.Driver {
	case DriverRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis url")
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, errors.Wrap(err, "ping redis")
		}
		return &storage{
			carts:  redisstore.NewCartRepository(rdb, cfg.CartTTL),
			rdb:    rdb,
			shared: true,
			close:  func() { _ = rdb.Close() },
		}, nil
	case DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		return &storage{
			carts:  postgres.NewCartRepository(pool),
			shared: true,
			close:  pool.Close,
		}, nil
	default:
		return &storage{
			carts: memory.NewCartRepository(),
			close: func() {},
		}, nil
	}
}

// limiter returns a limiter shared through Redis when available, otherwise
// a per-process one whose idle keys are cleaned until ctx is done.
func (s *storage) limiter(ctx context.Context, limit int, window time.Duration) httpmiddleware.Limiter {
	if s.rdb != nil {
		return httpmiddleware.NewRedisLimiter(s.rdb, limit, window)
	}
	l := httpmiddleware.NewMemoryLimiter(limit, window)
	l.StartCleanup(ctx)
	return l
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("api", cfg.API.URL),
	)

	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer store.close()

	calc, err := cfg.Pricing.Calculator()
	if err != nil {
		return errors.Wrap(err, "pricing")
	}

	// FoodHub API and auth service clients.
	apiCfg := cfg.API.client()
	apiCfg.TracerProvider = m.TracerProvider()
	apiCfg.MeterProvider = m.MeterProvider()
	apiCfg.Logger = lg.Named("foodapi")
	api, err := foodapi.New(apiCfg)
	if err != nil {
		return errors.Wrap(err, "create api client")
	}
	sessions := foodapi.NewSessionClient(cfg.API.AuthURL, apiCfg)

	// Domain services.
	carts := cart.NewManager(store.carts, store.managerOptions()...)
	carts.StartJanitor(ctx, cfg.Storage.CartIdleTTL)

	checkoutService, err := checkout.NewService(api, calc, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("cart-store", health.PingCheck(cfg.Storage.Driver, store.carts),
		health.WithTimeout(5*time.Second))
	healthSvc.AddReadinessCheck("order-api", api.Healthy, health.WithThresholds(1, 1))
	healthSvc.AddLivenessCheck("goroutines", health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// HTTP handlers.
	h := handler.NewHandler(carts, api, checkoutService, api, api, calc)
	router := handler.NewRouter(h, handler.RouterConfig{
		Health:   healthSvc,
		Sessions: sessions,
		CheckoutLimit: httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
			Max:     cfg.CheckoutRateLimit.Max,
			Window:  cfg.CheckoutRateLimit.Window,
			Limiter: store.limiter(ctx, cfg.CheckoutRateLimit.Max, cfg.CheckoutRateLimit.Window),
			KeyFunc: handler.UserKey,
			Prefix:  "checkout:",
		}),
	})

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.API.Timeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:     cfg.RateLimit.Max,
				Window:  cfg.RateLimit.Window,
				Limiter: store.limiter(ctx, cfg.RateLimit.Max, cfg.RateLimit.Window),
				Prefix:  "ip:",
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("foodhub-storefront", m.TracerProvider(), m.MeterProvider()),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
