// Package app wires the queue store, service, HTTP servers and workers.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/contentq/api/openapi"
	"github.com/bissquit/contentq/internal/config"
	"github.com/bissquit/contentq/internal/contentqueue"
	"github.com/bissquit/contentq/internal/livefeed"
	"github.com/bissquit/contentq/internal/pkg/ctxlog"
	"github.com/bissquit/contentq/internal/pkg/httputil"
	"github.com/bissquit/contentq/internal/pkg/metrics"
	"github.com/bissquit/contentq/internal/pkg/rabbitmq"
	"github.com/bissquit/contentq/internal/social"
	"github.com/bissquit/contentq/internal/social/mattermost"
	"github.com/bissquit/contentq/internal/social/telegram"
	"github.com/bissquit/contentq/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const dbMetricsInterval = 15 * time.Second

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	store         *Store
	service       *contentqueue.Service
	hub           *livefeed.Hub
	broker        *rabbitmq.Publisher
	processor     *contentqueue.Processor
	socialWorker  *social.Worker
	server        *http.Server
	metricsServer *http.Server
	cancel        context.CancelFunc
}

// New connects the configured store and builds the application.
func New(cfg *config.Config) (*App, error) {
	logger := InitLogger(cfg.Log)

	store, err := OpenStore(context.Background(), cfg.Database)
	if err != nil {
		return nil, err
	}

	app, err := NewWithStore(cfg, logger, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return app, nil
}

// NewWithStore builds the application around an opened store.
func NewWithStore(cfg *config.Config, logger *slog.Logger, store *Store) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
		store:  store,
		hub:    livefeed.NewHub(cfg.CORS.AllowedOrigins),
	}

	events := contentqueue.MultiPublisher{app.hub}
	if cfg.Broker.URL != "" {
		broker, err := rabbitmq.Dial(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			return nil, fmt.Errorf("connect broker: %w", err)
		}
		app.broker = broker
		events = append(events, broker)
	}

	app.service = contentqueue.NewService(store, contentqueue.SourcePublisher{Root: cfg.Content.Root}, events)

	if cfg.Social.Enabled {
		worker, err := newSocialWorker(cfg.Social, app.service)
		if err != nil {
			app.closeBroker()
			return nil, err
		}
		app.socialWorker = worker
	}

	if cfg.Processor.Enabled {
		app.processor = contentqueue.NewProcessor(contentqueue.ProcessorConfig{
			PollInterval:  cfg.Processor.PollInterval,
			StatsInterval: cfg.Processor.StatsInterval,
		}, app.service)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

func newSocialWorker(cfg config.SocialConfig, source social.ItemSource) (*social.Worker, error) {
	renderer, err := social.NewRenderer(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("create social renderer: %w", err)
	}

	var posters []social.Poster
	if cfg.Mattermost.WebhookURL != "" {
		posters = append(posters, mattermost.NewPoster(mattermost.Config{
			WebhookURL: cfg.Mattermost.WebhookURL,
			Username:   cfg.Mattermost.Username,
			Timeout:    cfg.Mattermost.Timeout,
		}))
	}
	if cfg.Telegram.BotToken != "" {
		poster, err := telegram.NewPoster(telegram.Config{
			BotToken:  cfg.Telegram.BotToken,
			ChatID:    cfg.Telegram.ChatID,
			RateLimit: cfg.Telegram.RateLimit,
			Timeout:   cfg.Telegram.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("create telegram poster: %w", err)
		}
		posters = append(posters, poster)
	}

	if len(posters) == 0 {
		slog.Warn("social posting enabled without any platform configured, queued items will be skipped")
	}

	return social.NewWorker(social.WorkerConfig{
		BatchSize:      cfg.BatchSize,
		PollInterval:   cfg.PollInterval,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
	}, source, social.NewDispatcher(renderer, posters...)), nil
}

// Service returns the queue service.
func (a *App) Service() *contentqueue.Service {
	return a.service
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Start launches background workers and metrics collection.
func (a *App) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	if a.store.poolStats != nil {
		go a.collectDBMetrics(ctx)
	}
	if a.processor != nil {
		a.processor.Start(ctx)
	}
	if a.socialWorker != nil {
		a.socialWorker.Start(ctx)
	}
}

// Run starts background workers and the HTTP servers. It blocks until the
// main server stops.
func (a *App) Run() error {
	a.Start(context.Background())

	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"driver", a.store.Driver(),
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops workers, drains both servers and closes the store.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	if a.cancel != nil {
		a.cancel()
	}
	if a.processor != nil {
		a.processor.Stop()
	}
	if a.socialWorker != nil {
		a.socialWorker.Stop()
	}
	a.hub.Close()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for name, srv := range map[string]*http.Server{"server": a.server, "metrics server": a.metricsServer} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Shutdown(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("shutdown %s: %w", name, err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	a.closeBroker()
	a.store.Close()

	return errors.Join(errs...)
}

func (a *App) closeBroker() {
	if a.broker == nil {
		return
	}
	if err := a.broker.Close(); err != nil {
		a.logger.Warn("failed to close broker", "error", err)
	}
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordPoolStats(a.store.poolStats())

	ticker := time.NewTicker(dbMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordPoolStats(a.store.poolStats())
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	// Metrics first to measure full request time; CORS before anything
	// that could reject a preflight.
	r.Use(httputil.MetricsMiddleware)
	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		_, _ = w.Write(openapi.Spec)
	})
	r.Get("/docs", docsHandler)

	handler := contentqueue.NewHandler(a.service)

	r.Route("/api/v1", func(r chi.Router) {
		// Long-lived connection, kept out of the request timeout.
		r.Get("/queue/feed", a.hub.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			handler.RegisterPublicRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(httputil.OperatorAuth(a.config.Auth.JWTSecret))
				handler.RegisterOperatorRoutes(r)
			})
		})
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.service.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func docsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>contentq API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
        SwaggerUIBundle({url: "/api/openapi.yaml", dom_id: '#swagger-ui'});
    </script>
</body>
</html>`))
}

// InitLogger builds the process logger from config and installs it as the
// slog default.
func InitLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
