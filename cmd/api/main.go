package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"

	"github.com/dejobratic/coursepay/internal/config"
	"github.com/dejobratic/coursepay/internal/database"
	idemmemory "github.com/dejobratic/coursepay/internal/idempotency/memory"
	idempostgres "github.com/dejobratic/coursepay/internal/idempotency/postgres"
	"github.com/dejobratic/coursepay/internal/kafka"
	"github.com/dejobratic/coursepay/internal/orders/adapters"
	httpadapter "github.com/dejobratic/coursepay/internal/orders/adapters/http"
	ordersmemory "github.com/dejobratic/coursepay/internal/orders/adapters/memory"
	orderspostgres "github.com/dejobratic/coursepay/internal/orders/adapters/postgres"
	ordersapp "github.com/dejobratic/coursepay/internal/orders/app"
	"github.com/dejobratic/coursepay/internal/orders/domain"
	ordersmetrics "github.com/dejobratic/coursepay/internal/orders/metrics"
	"github.com/dejobratic/coursepay/internal/orders/ports"
	"github.com/dejobratic/coursepay/internal/paystack"
	cachememory "github.com/dejobratic/coursepay/internal/successcache/memory"
	cacheredis "github.com/dejobratic/coursepay/internal/successcache/redis"
	"github.com/dejobratic/coursepay/internal/telemetry"
)

const meterName = "github.com/dejobratic/coursepay"

func main() {
	if err := run(); err != nil {
		slog.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := telemetry.NewLogger(os.Stdout, telemetry.ParseLevel(cfg.Telemetry.LogLevel))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Initialize(ctx, telemetry.Config{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: cfg.Service.Version,
		Environment:    cfg.Service.Environment,
		OTLPEndpoint:   cfg.Telemetry.OTelEndpoint,
		EnableTracing:  cfg.Telemetry.EnableTracing,
		EnableMetrics:  cfg.Telemetry.EnableMetrics,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown failed", "error", err)
		}
	}()

	meter := tel.Meter(meterName)

	store, pool, err := openStore(ctx, cfg.Database, meter, logger)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
	}

	cache, closeCache, err := openSuccessCache(ctx, cfg.SuccessCache, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	events, err := openEventBus(cfg.Kafka, meter, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := events.Close(); err != nil {
			logger.Error("event bus close failed", "error", err)
		}
	}()

	gateway := paystack.NewClient(paystack.Config{
		BaseURL:     cfg.Paystack.BaseURL,
		SecretKey:   cfg.Paystack.SecretKey,
		Timeout:     cfg.Paystack.Timeout,
		MaxAttempts: cfg.Paystack.MaxAttempts,
	})
	if cfg.Paystack.SecretKey == "" {
		logger.Warn("PAYSTACK_SECRET_KEY is empty, gateway calls will be rejected")
	}

	serviceMetrics, err := ordersmetrics.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create service metrics: %w", err)
	}

	service := ordersapp.NewService(ordersapp.Dependencies{
		Orders:      store.orders,
		Payments:    store.payments,
		Catalog:     store.catalog,
		Gateway:     gateway,
		Cache:       cache,
		Events:      events,
		Idempotency: store.idempotency,
	}, ordersapp.PaymentSettings{
		CallbackURL:    cfg.Paystack.CallbackURL,
		ReturnPath:     cfg.Paystack.ReturnPath,
		MinAmountMinor: cfg.Paystack.MinAmountMinor,
	}, logger, serviceMetrics)

	httpMetrics, err := httpadapter.NewMetrics(meter)
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := database.CheckHealth(r.Context(), pool); err != nil {
				respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	mux.HandleFunc("GET "+cfg.HTTP.MetricsPath, func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"metrics_exporter": "otlp",
			"enabled":          tel.MeterProvider() != nil,
		})
	})
	httpadapter.NewHandler(service).Register(mux)

	handler := httpadapter.WithRecovery(
		httpadapter.WithLogging(
			otelhttp.NewHandler(httpadapter.WithMetrics(mux, httpMetrics), cfg.Service.Name),
		),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      2 * cfg.Paystack.Timeout * time.Duration(cfg.Paystack.MaxAttempts),
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "port", cfg.HTTP.Port, "store", cfg.Database.Backend, "success_cache", cfg.SuccessCache.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownGrace)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

type entityStore struct {
	orders      ports.OrderRepository
	payments    ports.PaymentRepository
	catalog     ports.Catalog
	idempotency ports.IdempotencyStore
}

func openStore(ctx context.Context, cfg config.DatabaseConfig, meter metric.Meter, logger *slog.Logger) (*entityStore, *pgxpool.Pool, error) {
	if cfg.Backend == config.BackendMemory {
		logger.Warn("using in-memory entity store, data is lost on restart")
		mem := ordersmemory.NewStore()
		seedDemoCatalog(mem, logger)
		return &entityStore{
			orders:      mem.Orders(),
			payments:    mem.Payments(),
			catalog:     mem,
			idempotency: idemmemory.NewStore(cfg.IdempotencyTTL),
		}, nil, nil
	}

	pool, err := database.NewPool(ctx, cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("create database pool: %w", err)
	}

	if cfg.AutoMigrate {
		logger.Info("running database migrations", "path", cfg.MigrationsPath)
		version, err := database.RunMigrations(cfg.URL, cfg.MigrationsPath)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("migrations completed successfully", "version", version)
	}

	dbMetrics, err := database.NewMetrics(meter)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("create database metrics: %w", err)
	}

	idempotency := idempostgres.NewStore(pool, cfg.IdempotencyTTL)
	go purgeIdempotencyKeys(ctx, idempotency, logger)

	return &entityStore{
		orders:      adapters.NewObservableOrderRepository(orderspostgres.NewOrderRepository(pool), dbMetrics),
		payments:    adapters.NewObservablePaymentRepository(orderspostgres.NewPaymentRepository(pool), dbMetrics),
		catalog:     orderspostgres.NewCatalog(pool),
		idempotency: idempotency,
	}, pool, nil
}

// purgeIdempotencyKeys removes expired keys hourly until ctx is done.
func purgeIdempotencyKeys(ctx context.Context, store *idempostgres.Store, logger *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.Purge(ctx)
			if err != nil {
				logger.WarnContext(ctx, "idempotency purge failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.InfoContext(ctx, "purged expired idempotency keys", "count", removed)
			}
		}
	}
}

// seedDemoCatalog gives the memory backend a user and courses to order against.
func seedDemoCatalog(store *ordersmemory.Store, logger *slog.Logger) {
	user := store.AddUser(domain.User{Email: "demo@coursepay.local"})
	var courseIDs []int64
	for _, c := range []domain.Course{
		{Title: "Robotics Fundamentals", Price: decimal.NewFromInt(60)},
		{Title: "Intro to Electronics", Price: decimal.NewFromInt(40)},
	} {
		courseIDs = append(courseIDs, store.AddCourse(c).ID)
	}
	logger.Info("seeded demo catalog", "user_id", user.ID, "course_ids", courseIDs)
}

func openSuccessCache(ctx context.Context, cfg config.SuccessCacheConfig, logger *slog.Logger) (ports.SuccessDetailCache, func(), error) {
	if cfg.Backend == config.BackendRedis {
		client, err := cacheredis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect success cache: %w", err)
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Error("redis close failed", "error", err)
			}
		}
		return cacheredis.NewStore(client, cfg.TTL), closeFn, nil
	}

	return cachememory.NewStore(
		cachememory.WithCapacity(cfg.MaxEntries),
		cachememory.WithTTL(cfg.TTL),
	), func() {}, nil
}

type closableEventBus interface {
	ports.EventBus
	Close() error
}

type observedEventBus struct {
	*adapters.ObservableEventBus
	closer func() error
}

func (b observedEventBus) Close() error {
	return b.closer()
}

func openEventBus(cfg config.KafkaConfig, meter metric.Meter, logger *slog.Logger) (closableEventBus, error) {
	var bus closableEventBus
	if len(cfg.Brokers) == 0 {
		logger.Info("no KAFKA_BROKERS configured, domain events are discarded")
		bus = kafka.NewNoopEventBus()
	} else {
		bus = kafka.NewEventBus(cfg.Brokers, cfg.TopicPrefix)
	}

	kafkaMetrics, err := kafka.NewMetrics(meter)
	if err != nil {
		_ = bus.Close()
		return nil, fmt.Errorf("create event bus metrics: %w", err)
	}

	return observedEventBus{
		ObservableEventBus: adapters.NewObservableEventBus(bus, kafkaMetrics),
		closer:             bus.Close,
	}, nil
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
