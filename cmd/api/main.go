package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/fatou-sy/backend-patisserie/internal/cart"
	"github.com/fatou-sy/backend-patisserie/internal/catalog"
	"github.com/fatou-sy/backend-patisserie/internal/checkout"
	"github.com/fatou-sy/backend-patisserie/internal/common"
	"github.com/fatou-sy/backend-patisserie/internal/config"
	"github.com/fatou-sy/backend-patisserie/internal/health"
	"github.com/fatou-sy/backend-patisserie/internal/lock"
	"github.com/fatou-sy/backend-patisserie/internal/migrate"
	"github.com/fatou-sy/backend-patisserie/internal/obs"
	"github.com/fatou-sy/backend-patisserie/internal/offer"
	"github.com/fatou-sy/backend-patisserie/internal/pricing"
	"github.com/fatou-sy/backend-patisserie/internal/sales"
	"github.com/fatou-sy/backend-patisserie/internal/security"
	"github.com/fatou-sy/backend-patisserie/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "patisserie")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "patisserie-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "patisserie-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	if err := migrate.Apply(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("apply migrations")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	validate := validator.New()
	st := store.New(pool)
	delivery := pricing.DeliveryPolicy{Base: cfg.DeliveryFeeBase}
	if cfg.FreeDeliveryThreshold > 0 {
		threshold := cfg.FreeDeliveryThreshold
		delivery.FreeThreshold = &threshold
	}

	catalogSvc := &catalog.Service{
		Q:             st,
		Cache:         catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		CurrencyLabel: cfg.CurrencyLabel,
	}
	catalogHandler := &catalog.Handler{Svc: catalogSvc, Validate: validate}

	offerSvc := &offer.Service{Q: st}
	offerHandler := &offer.Handler{Q: st, Svc: offerSvc, Validate: validate}

	cartSvc := &cart.Service{
		Q:        st,
		Offers:   offerSvc,
		Delivery: delivery,
		TTL:      cfg.CartTTL,
	}
	cartHandler := &cart.Handler{Svc: cartSvc, Validate: validate}

	checkoutSvc := &checkout.Service{
		Tx:       checkout.PoolRunner{Pool: pool, Base: st},
		Locks:    lock.Locker{R: redisClient},
		Delivery: delivery,
	}
	checkoutHandler := &checkout.Handler{Svc: checkoutSvc, Validate: validate, Currency: cfg.CurrencyLabel}

	salesSvc := &sales.Service{Q: st, Redis: redisClient, CacheTTL: cfg.SummaryCacheTTL}
	salesHandler := &sales.Handler{Svc: salesSvc, Validate: validate, Currency: cfg.CurrencyLabel}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}
	adminGuard := security.AdminToken{Token: cfg.AdminToken}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{Enable: true, EnableHSTS: cfg.AppEnv == "production"}.Middleware)
	r.Use(security.BodyLimit{Max: 1 << 20}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Cart-Token", "X-Admin-Token"},
		ExposedHeaders:   []string{"Link", "X-Cart-Token"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.RateLimitPerMinute > 0 {
		rlStore, err := limiterredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "ratelimit"})
		if err != nil {
			logger.Fatal().Err(err).Msg("initialise rate limit store")
		}
		rl := limiterstdlib.NewMiddleware(limiter.New(rlStore, limiter.Rate{
			Period: time.Minute,
			Limit:  int64(cfg.RateLimitPerMinute),
		}))
		r.Use(rl.Handler)
	}

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := health.Handler{
		Checker:      readinessChecker{db: pool, redis: redisClient},
		DBTimeout:    envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500),
		RedisTimeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
	}
	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", catalogHandler.ListCategories)
		v.Get("/products", catalogHandler.ListProducts)
		v.Get("/products/{slug}", catalogHandler.GetProduct)

		v.Route("/carts", func(c chi.Router) {
			c.Post("/", cartHandler.EnsureCart)
			c.Route("/{cartID}", func(g chi.Router) {
				g.Get("/", cartHandler.GetQuote)
				g.Get("/quote", cartHandler.GetQuote)
				g.Post("/items", cartHandler.AddItem)
				g.Patch("/items/{itemID}", cartHandler.UpdateItem)
				g.Delete("/items/{itemID}", cartHandler.RemoveItem)
				g.Post("/offer", cartHandler.ApplyOffer)
				g.Delete("/offer", cartHandler.RemoveOffer)
			})
		})

		v.Post("/offers/preview", offerHandler.Preview)
		v.With(idem.Middleware).Post("/checkout", checkoutHandler.PlaceOrder)

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(adminGuard.Middleware)
			admin.Post("/products", catalogHandler.CreateProduct)
			admin.Put("/products/{productID}", catalogHandler.UpdateProduct)
			admin.Get("/products/{productID}", catalogHandler.GetAdminProduct)

			admin.Get("/offers", offerHandler.List)
			admin.Post("/offers", offerHandler.Create)
			admin.Get("/offers/{code}", offerHandler.Get)
			admin.Put("/offers/{code}", offerHandler.Update)
			admin.Delete("/offers/{code}", offerHandler.Delete)

			admin.With(idem.Middleware).Post("/sales", salesHandler.RecordSale)
			admin.Get("/orders/{orderID}", salesHandler.GetOrder)
			admin.Get("/sales/summary", salesHandler.GetSummary)

			admin.Get("/expenses", salesHandler.ListExpenses)
			admin.Post("/expenses", salesHandler.AddExpense)
			admin.Delete("/expenses/{expenseID}", salesHandler.RemoveExpense)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	// Fail readiness first so load balancers stop routing before we close.
	health.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	logger.Info().Msg("server stopped")
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

type readinessChecker struct {
	db    *pgxpool.Pool
	redis *redis.Client
}

func (c readinessChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.db == nil {
		return errors.New("db not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.db.Ping(ctx)
}

func (c readinessChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.redis == nil {
		return errors.New("redis not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.redis.Ping(ctx).Err()
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
