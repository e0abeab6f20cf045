package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abbishal/OrcaStatLLM-Researcher/internal/articlestore"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/citation"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/config"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/domain"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/arxiv"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/crossref"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/llm"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/news"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/render"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/scheduler"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/scraper"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/search"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/storage"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/telegram"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/infrastructure/wikipedia"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/logging"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ports"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/ratelimit"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/research"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/session"
	"github.com/abbishal/OrcaStatLLM-Researcher/internal/usecase"
)

const metricsShutdownTimeout = 5 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	pipeline *usecase.Pipeline
	articles *articlestore.Store
	closers  []io.Closer
}

// Result is what a finished research run reports.
type Result struct {
	SessionID string              `json:"session_id"`
	Status    domain.StatusReport `json:"status"`
}

// New builds the application graph from cfg. The SQL archive is only opened
// when a DSN is configured.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	limiter := ratelimit.New(ratelimit.Config{Intervals: cfg.RateLimits}, baseLogger.With("component", "ratelimit"))
	httpClient := &http.Client{Timeout: cfg.Research.FetchTimeout}

	articles, err := articlestore.Open(cfg.Storage.ArticleDir)
	if err != nil {
		return nil, fmt.Errorf("open article store: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		baseLogger.Warn("LLM api key is not configured; generated sections will fall back to defaults")
	}
	querier := research.NewGatedQuerier(
		llm.NewChatGPTClient(cfg.LLM, limiter, baseLogger),
		int64(cfg.LLM.MaxConcurrency),
	)

	searcher, err := newSearcher(cfg.Search, httpClient, limiter, baseLogger)
	if err != nil {
		return nil, err
	}

	kit, err := research.NewToolkit(research.Toolkit{
		Querier:      querier,
		Searcher:     searcher,
		Papers:       arxiv.New(cfg.Research.ArxivEndpoint, httpClient, limiter, baseLogger),
		DOI:          crossref.New(cfg.Research.CrossrefURL, cfg.Research.MailTo, httpClient, limiter, baseLogger),
		Encyclopedia: wikipedia.New(cfg.Research.WikipediaURL, httpClient, limiter, baseLogger),
		News:         news.New(cfg.Search.NewsEndpoint, httpClient, limiter, baseLogger),
	})
	if err != nil {
		return nil, fmt.Errorf("build research toolkit: %w", err)
	}

	a := &Application{cfg: cfg, logger: baseLogger.With("component", "app"), articles: articles}

	sessions, err := a.sessionStore(ctx, baseLogger)
	if err != nil {
		return nil, err
	}

	renderer, err := render.NewMarkdownRenderer(cfg.Storage.OutputDir, baseLogger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); tg.Configured() {
		notifier = tg
	}

	pipeline, err := usecase.NewPipeline(usecase.PipelineDeps{
		Toolkit:  kit,
		Sessions: sessions,
		Renderer: renderer,
		Notifier: notifier,
		Session: session.Deps{
			Fetcher:  scraper.New(httpClient, cfg.Research.FetchTimeout, baseLogger),
			Articles: articles,
			Logger:   baseLogger,
			Style:    citation.ParseStyle(cfg.Research.CitationStyle),
		},
		Logger:        baseLogger.With("component", "pipeline"),
		MaxSubtopics:  cfg.Research.MaxSubtopics,
		SubtopicBatch: cfg.Research.SubtopicBatch,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	a.pipeline = pipeline

	return a, nil
}

func newSearcher(cfg config.SearchConfig, client *http.Client, limiter *ratelimit.Limiter, logger *slog.Logger) (*search.Client, error) {
	registry := search.NewRegistry()
	registry.Register(search.NewGoogleCSE(search.GoogleConfig{
		Endpoint:   cfg.GoogleEndpoint,
		APIKey:     cfg.GoogleAPIKey,
		CSEID:      cfg.GoogleCSEID,
		MaxRetries: cfg.MaxRetries,
	}, client, limiter, logger))
	registry.Register(search.NewDuckDuckGo(cfg.DuckDuckGoEndpoint, client, limiter, logger))

	var companions []string
	if cfg.BraveEndpoint != "" {
		registry.Register(search.NewBrave(cfg.BraveEndpoint, client, limiter, logger))
		companions = append(companions, search.ProviderBrave)
	}

	primary := search.ProviderGoogle
	if cfg.GoogleAPIKey == "" || cfg.GoogleCSEID == "" {
		primary = ""
	}

	searcher, err := search.NewClient(search.ClientDeps{
		Registry:        registry,
		Primary:         primary,
		Fallback:        search.ProviderDuckDuckGo,
		Companions:      companions,
		BypassThreshold: cfg.BypassThreshold,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build searcher: %w", err)
	}
	return searcher, nil
}

func (a *Application) sessionStore(ctx context.Context, logger *slog.Logger) (ports.SessionStore, error) {
	files, err := storage.NewFileStore(a.cfg.Storage.SessionDir)
	if err != nil {
		return nil, err
	}
	if a.cfg.Database.DSN == "" {
		return files, nil
	}

	archive, err := storage.OpenArchive(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open session archive: %w", err)
	}
	a.closers = append(a.closers, archive)
	return storage.NewChain(logger, files, archive), nil
}

// Research runs one session to a terminal status.
func (a *Application) Research(ctx context.Context, topic string) (Result, error) {
	sc, err := a.pipeline.Run(ctx, topic)
	res := Result{SessionID: sc.ID(), Status: sc.Status()}
	if err != nil {
		return res, fmt.Errorf("research %q: %w", topic, err)
	}
	return res, nil
}

// Status reports a session by id.
func (a *Application) Status(ctx context.Context, id string) (domain.StatusReport, error) {
	return a.pipeline.Status(ctx, id)
}

// Cleanup prunes cached articles older than days once.
func (a *Application) Cleanup(ctx context.Context, days int) (int, error) {
	return usecase.NewJanitor(nil, a.articles, days, a.logger).RunOnce(ctx)
}

// Articles lists cached articles, newest first. A non-empty sourceType
// restricts the listing to that type.
func (a *Application) Articles(sourceType string, limit int) []domain.ArticleRecord {
	if sourceType == "" {
		return a.articles.Recent(limit)
	}
	recs := a.articles.ByType(sourceType)
	slices.Reverse(recs)
	if limit >= 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	if recs == nil {
		recs = []domain.ArticleRecord{}
	}
	return recs
}

// RunJanitor prunes the article cache every interval until ctx ends.
func (a *Application) RunJanitor(ctx context.Context, days int, every time.Duration) error {
	j := usecase.NewJanitor(scheduler.NewTickerScheduler(every), a.articles, days, a.logger)
	if err := j.Start(ctx); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
	defer cancel()
	return j.Stop(stopCtx)
}

// ServeMetrics exposes /metrics on addr until ctx ends.
func (a *Application) ServeMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.logger.Info("metrics listener started", "addr", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Close releases the archive connection, if any.
func (a *Application) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
