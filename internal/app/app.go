package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/auth"
	"github.com/xenking/storefront/internal/domain/admin"
	"github.com/xenking/storefront/internal/domain/contact"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/product"
	"github.com/xenking/storefront/internal/domain/promo"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/outbox"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storage/redis"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// repositories is the storage backend selected by Config.Storage.
type repositories struct {
	products product.Repository
	// catalog serves storefront reads and admin writes. It is products,
	// optionally behind the Redis cache.
	catalog  product.Repository
	promos   promo.Repository
	orders   order.Repository
	tx       order.TxManager
	messages contact.Repository
	admins   admin.Repository
	events   outbox.Store
}

// openStorage connects the configured backend and registers its readiness
// checks. The returned func releases it.
func openStorage(ctx context.Context, cfg *Config, hs *health.Health) (*repositories, func(), error) {
	if cfg.Storage.Driver == DriverMemory {
		zctx.From(ctx).Warn("Using in-memory storage, data is lost on restart")
		s := memory.New()
		return &repositories{
			products: s.Products(),
			promos:   s.Promos(),
			orders:   s.Orders(),
			tx:       s,
			messages: s.Messages(),
			admins:   s.Admins(),
			events:   s.Outbox(),
		}, func() {}, nil
	}

	if err := postgres.RunMigrations(cfg.Storage.DatabaseURL); err != nil {
		return nil, nil, errors.Wrap(err, "run migrations")
	}
	pool, err := postgres.NewPool(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create db pool")
	}
	hs.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
	return &repositories{
		products: postgres.NewProductRepository(pool),
		promos:   postgres.NewPromoRepository(pool),
		orders:   postgres.NewOrderRepository(pool),
		tx:       postgres.NewTxManager(pool),
		messages: postgres.NewMessageRepository(pool),
		admins:   postgres.NewAdminRepository(pool),
		events:   postgres.NewOutboxRepository(pool),
	}, pool.Close, nil
}

// Run creates all dependencies, starts the HTTP server and the outbox relay,
// and handles graceful shutdown. It is the single wiring point for the
// application.
func Run(ctx context.Context, lg *zap.Logger, m httpmiddleware.TelemetryProvider, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
	)

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	repos, closeStorage, err := openStorage(ctx, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer closeStorage()

	// Product cache.
	if cfg.Redis.URL != "" {
		client, err := redis.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return errors.Wrap(err, "connect redis")
		}
		defer func() { _ = client.Close() }()
		healthSvc.AddReadinessCheck("redis", 2*time.Second, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		repos.catalog = redis.NewProductCache(repos.products, client, cfg.Redis.TTL)
		lg.Info("Product cache enabled", zap.Duration("ttl", cfg.Redis.TTL))
	}

	// Domain services.
	tokens, err := auth.NewJWT(cfg.JWT.Secret, cfg.JWT.TTL)
	if err != nil {
		return errors.Wrap(err, "create token issuer")
	}
	services, err := newServices(cfg, repos, tokens, m.MeterProvider())
	if err != nil {
		return err
	}
	h := handler.NewHandler(handler.Config{
		ImageBaseURL: cfg.ImageBaseURL,
		Guard: httpmiddleware.RouteRateLimit(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Guarded.Max,
			Window: cfg.RateLimit.Guarded.Window,
		}),
	}, services)

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Route-aware middlewares run inside chi so the matched pattern is known.
	r := chi.NewRouter()
	r.Use(
		httpmiddleware.Instrument("storefront-api", m),
		httpmiddleware.LogRequests(),
		httpmiddleware.Labeler(),
	)
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	h.Routes(r)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(r,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   isProbe,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
		),
	}

	g, gCtx := errgroup.WithContext(ctx)

	if len(cfg.Kafka.Brokers) > 0 {
		publisher := outbox.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		defer func() { _ = publisher.Close() }()
		relay := outbox.NewRelay(repos.events, publisher, cfg.Kafka.PollInterval)
		lg.Info("Order event relay enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic),
		)
		g.Go(func() error {
			return relay.Run(gCtx)
		})
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	g.Go(func() error {
		<-gCtx.Done()
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
		return nil
	})

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	return g.Wait()
}

// newServices builds the domain services over repos. Orders read products
// from the uncached repository: sold-out flags, variants and prices must be
// current at order time.
func newServices(cfg *Config, repos *repositories, tokens admin.TokenIssuer, mp metric.MeterProvider) (handler.Services, error) {
	catalog := repos.catalog
	if catalog == nil {
		catalog = repos.products
	}
	promoService := promo.NewService(repos.promos, cfg.StoreTimeout)
	orderService, err := order.NewService(
		repos.products,
		promoService,
		repos.orders,
		repos.tx,
		order.Config{
			StoreTimeout:       cfg.StoreTimeout,
			DefaultCity:        cfg.Defaults.City,
			DefaultGovernorate: cfg.Defaults.Governorate,
		},
		order.WithMeterProvider(mp),
	)
	if err != nil {
		return handler.Services{}, errors.Wrap(err, "create order service")
	}
	return handler.Services{
		Products: product.NewService(catalog),
		Promos:   promoService,
		Orders:   orderService,
		Contact:  contact.NewService(repos.messages),
		Admins:   admin.NewService(repos.admins, tokens, auth.BcryptHasher{}),
	}, nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}
