package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	httpserver "github.com/hedspi/phone-assistant/internal/http"
	httpH "github.com/hedspi/phone-assistant/internal/http/handlers"
	"github.com/hedspi/phone-assistant/internal/modules/assistant"
	"github.com/hedspi/phone-assistant/internal/modules/retrieval"
	"github.com/hedspi/phone-assistant/internal/modules/routing"
	"github.com/hedspi/phone-assistant/internal/observability"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
	"github.com/hedspi/phone-assistant/internal/platform/redis"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Core     *Core
	Sessions *assistant.Sessions
	Server   *httpserver.Server

	otelShutdown func(context.Context) error
	cacheStore   redis.AnswerStore
}

func New(ctx context.Context) (*App, error) {
	cfg := LoadConfig()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log.Info("Loading environment variables...", "port", cfg.Port, "vector_provider", cfg.VectorProvider)

	a := &App{Log: log, Cfg: cfg}
	a.otelShutdown = observability.InitOTel(ctx, log, cfg.Otel)

	core, err := NewCore(ctx, log, cfg, CoreOptions{RequireGraph: true, RequireLLM: true})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Core = core
	core.Graph.EnsureSchema(ctx)

	router, err := buildRouter(ctx, log, cfg, core)
	if err != nil {
		a.Close()
		return nil, err
	}
	graph, err := core.LoadGraph(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	search := retrieval.NewVectorSearch(log, core.Embedder, core.Store)
	rag := retrieval.NewRAG(log, cfg.Retrieval, search, core.Extractor, graph)

	var cache assistant.AnswerCache
	if cfg.CacheEnabled {
		store, err := redis.NewAnswerStore(log, cfg.Redis)
		if err != nil {
			log.Warn("semantic cache disabled", "error", err)
		} else {
			a.cacheStore = store
			cache = retrieval.NewSemanticCache(log, store, core.Embedder, cfg.CacheThreshold, cfg.CacheLimit)
		}
	}

	a.Sessions = assistant.NewSessions(sessionFactory(sessionDeps{
		log:      log,
		cfg:      cfg,
		core:     core,
		router:   router,
		rag:      rag,
		cache:    cache,
		shopInfo: shopInfoSource(cfg),
		web:      assistant.NewDuckDuckGo(&http.Client{Timeout: 10 * time.Second}),
	}), assistant.WithSessionLimit(cfg.MaxSessions), assistant.WithSessionIdleTTL(cfg.SessionIdleTTL))

	a.Server = httpserver.NewServer(httpserver.RouterConfig{
		Log:           log,
		ServiceName:   ServiceName,
		CORSOrigins:   cfg.CORSOrigins,
		Metrics:       core.Metrics,
		ChatHandler:   httpH.NewChatHandler(log, a.Sessions),
		HealthHandler: httpH.NewHealthHandler(),
	})
	return a, nil
}

func buildRouter(ctx context.Context, log *logger.Logger, cfg Config, core *Core) (*routing.Router, error) {
	var (
		routes []routing.Route
		err    error
	)
	if cfg.RoutesPath != "" {
		routes, err = routing.LoadRoutes(cfg.RoutesPath)
	} else {
		routes, err = routing.DefaultRoutes()
	}
	if err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}
	return routing.BuildIndex(ctx, log, core.Embedder, routes)
}

func shopInfoSource(cfg Config) assistant.ShopInfoSource {
	if cfg.ShopInfoURL == "" {
		return nil
	}
	return &assistant.ShopInfoFetcher{URL: cfg.ShopInfoURL, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := ":" + a.Cfg.Port
	a.Log.Info("HTTP server listening", "addr", addr)
	return a.Server.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.cacheStore != nil {
		_ = a.cacheStore.Close()
	}
	a.Core.Close(ctx)
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
