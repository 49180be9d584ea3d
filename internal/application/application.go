package application

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/budget-allocator/internal/allocator"
	"github.com/eugenenazirov/budget-allocator/internal/api"
	"github.com/eugenenazirov/budget-allocator/internal/catalog"
	"github.com/eugenenazirov/budget-allocator/internal/config"
	"github.com/eugenenazirov/budget-allocator/internal/metrics"
	"github.com/eugenenazirov/budget-allocator/internal/report"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage   catalog.Storage
	allocator allocator.Allocator
	metrics   *metrics.Metrics
	handler   *api.Handler
	router    http.Handler
	logger    *zap.Logger
	server    *http.Server
}

// New initializes the application with all dependencies from the provided configuration.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	store := catalog.NewMemoryStorage()
	if err := store.SetChannels(cfg.Channels); err != nil {
		return nil, fmt.Errorf("failed to apply initial channels: %w", err)
	}

	var m *metrics.Metrics
	if cfg.EnableMetrics {
		m = metrics.New()
	}

	alloc := allocator.New()
	handler := api.NewHandler(alloc, store,
		api.WithMetrics(m),
		api.WithBatchConcurrency(cfg.BatchConcurrency),
	)
	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		api.WithRequestMetrics(m),
	)

	var metricsHandler http.Handler
	if m != nil {
		metricsHandler = m.Handler()
	}

	return &App{
		storage:   store,
		allocator: alloc,
		metrics:   m,
		handler:   handler,
		router:    apiRouter,
		logger:    logger,
		server:    NewServer(cfg, BuildRootHandler(apiRouter, metricsHandler)),
	}, nil
}

// BuildRootHandler mounts the API under /api/ and, when non-nil, the metrics handler at /metrics.
func BuildRootHandler(apiHandler, metricsHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	if metricsHandler != nil {
		mux.Handle("GET /metrics", metricsHandler)
	}
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening",
			zap.String("addr", a.server.Addr),
			zap.Bool("metrics", a.metrics != nil),
		)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Report solves the configured channels once for budget and writes the text report to w.
// Infeasible or failed solves are written as a report, not returned as errors.
func Report(cfg config.Config, budget float64, w io.Writer, logger *zap.Logger) error {
	names, coeffs, bounds := catalog.Split(cfg.Channels)

	res, err := allocator.New().Allocate(coeffs, budget, bounds)
	if err != nil {
		return fmt.Errorf("allocate: %w", err)
	}
	logger.Debug("allocation solved",
		zap.String("status", res.Status.String()),
		zap.Float64("budget", budget),
		zap.Int("channels", len(names)),
	)

	return report.Write(w, names, res)
}
