package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bacnet-events/internal/audit"
	"bacnet-events/internal/auth"
	"bacnet-events/internal/device"
	eventapp "bacnet-events/internal/events/application"
	eventrepo "bacnet-events/internal/events/infrastructure/postgres"
	eventhttp "bacnet-events/internal/events/interfaces/http"
	eventnotify "bacnet-events/internal/events/notify"
	"bacnet-events/internal/eventing"
	"bacnet-events/internal/objects"
	"bacnet-events/internal/observability/metrics"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg := loadConfig()
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("db open error", zap.Error(err))
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatal("db ping error", zap.Error(err))
		}
	}
	metrics.Init(db)

	deviceCfg, err := device.LoadConfig()
	if err != nil {
		logger.Fatal("device config error", zap.Error(err))
	}

	store := objects.NewStore()
	registry := eventapp.NewClassRegistry()
	bus := eventing.NewInMemoryBus()

	broker := eventhttp.NewSSEBroker()
	broker.Attach(bus)
	eventnotify.NewWebhookTransport(logger).Attach(bus)

	var history *eventrepo.HistoryRepository
	if db != nil {
		history = eventrepo.NewHistoryRepository(db)
		eventrepo.NewRecorder(history, logger).Attach(bus)
	}

	dispatcher := eventnotify.NewDispatcher(registry, bus, deviceCfg.Device,
		eventnotify.WithLogger(logger))

	engine, err := eventapp.NewEngine(registry, store, dispatcher,
		eventapp.WithLogger(logger),
		eventapp.WithTickInterval(cfg.TickInterval))
	if err != nil {
		logger.Fatal("engine error", zap.Error(err))
	}
	store.OnChange(engine.OnPropertyChanged)

	if err := device.Build(deviceCfg, registry, store, engine); err != nil {
		logger.Fatal("device build error", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go engine.Run(ctx)
	poller := eventapp.NewPoller(engine, objects.NewLocalFetcher(store), cfg.PollInterval, logger)
	go poller.Start(ctx)

	handler, err := eventhttp.NewHandler(engine, historyReader(history))
	if err != nil {
		logger.Fatal("handler error", zap.Error(err))
	}
	if db != nil {
		handler.SetAuditLogger(audit.NewRepository(db))
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/events/stream", eventhttp.NewStreamHandler(broker))
	mux.Handle("/api/v1/events/", handler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", zap.Error(err))
	}
}

// historyReader keeps a nil *HistoryRepository from becoming a non-nil
// interface inside the handler.
func historyReader(repo *eventrepo.HistoryRepository) eventhttp.HistoryReader {
	if repo == nil {
		return nil
	}
	return repo
}

type config struct {
	DatabaseURL  string
	HTTPAddr     string
	JWTSecret    string
	PollInterval time.Duration
	TickInterval time.Duration
}

func loadConfig() config {
	return config{
		DatabaseURL:  getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:     getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:    getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "dev-secret")),
		PollInterval: getenvDuration("POLL_INTERVAL", time.Second),
		TickInterval: getenvDuration("TICK_INTERVAL", 100*time.Millisecond),
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
