package app

import (
	"context"
	"fmt"

	"github.com/hedspi/phone-assistant/internal/data/db"
	graphdata "github.com/hedspi/phone-assistant/internal/data/graph"
	"github.com/hedspi/phone-assistant/internal/data/repos"
	"github.com/hedspi/phone-assistant/internal/modules/graphrag"
	"github.com/hedspi/phone-assistant/internal/observability"
	"github.com/hedspi/phone-assistant/internal/platform/llm"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
	"github.com/hedspi/phone-assistant/internal/platform/neo4jdb"
	"github.com/hedspi/phone-assistant/internal/platform/openai"
)

type CoreOptions struct {
	// RequireGraph fails startup when NEO4J_URI is unset.
	RequireGraph bool
	// RequireLLM fails startup when LLM_API_KEYS is empty.
	RequireLLM bool
}

// Core holds the stores and clients shared by the API server and kgctl.
type Core struct {
	Log     *logger.Logger
	Cfg     Config
	Metrics *observability.Metrics

	DB       *db.Service
	Products repos.ProductRepo
	Messages repos.MessageRepo

	Neo4j *neo4jdb.Client
	Graph *graphdata.EntityGraph

	Embedder  openai.Embedder
	Store     ProductStore
	LLM       *llm.Gateway
	Extractor *graphrag.Extractor

	closers []func(context.Context) error
}

func NewCore(ctx context.Context, log *logger.Logger, cfg Config, opts CoreOptions) (_ *Core, err error) {
	c := &Core{Log: log, Cfg: cfg}
	if cfg.MetricsEnabled {
		c.Metrics = observability.NewMetrics()
	}
	defer func() {
		if err != nil {
			c.Close(context.Background())
		}
	}()

	log.Info("Wiring catalog database...")
	dbs, err := db.Open(log, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init catalog db: %w", err)
	}
	c.DB = dbs
	c.closers = append(c.closers, func(context.Context) error { return dbs.Close() })
	if err := dbs.AutoMigrateAll(); err != nil {
		return nil, err
	}
	c.Products = repos.NewProductRepo(dbs.DB(), log)
	c.Messages = repos.NewMessageRepo(dbs.DB(), log)

	log.Info("Wiring embedder...")
	if c.Embedder, err = openai.NewClient(log, cfg.OpenAI); err != nil {
		return nil, fmt.Errorf("init embedder: %w", err)
	}

	if c.Store, err = resolveProductStore(ctx, log, cfg, c.Products, c.Metrics); err != nil {
		return nil, err
	}

	if cfg.Neo4j.URI != "" {
		log.Info("Wiring neo4j...")
		client, err := neo4jdb.New(ctx, log, cfg.Neo4j)
		if err != nil {
			return nil, fmt.Errorf("init neo4j: %w", err)
		}
		c.Neo4j = client
		c.closers = append(c.closers, client.Close)
		c.Graph = graphdata.NewEntityGraph(client, log)
	} else if opts.RequireGraph {
		return nil, neo4jdb.ErrMissingURI
	} else {
		log.Warn("NEO4J_URI not set; graph expansion disabled")
	}

	if len(cfg.LLM.APIKeys) > 0 {
		gw, err := llm.New(log, cfg.LLM, nil)
		if err != nil {
			return nil, fmt.Errorf("init llm gateway: %w", err)
		}
		if c.Metrics != nil {
			gw.SetObserver(c.Metrics.ObserveLLM)
		}
		c.LLM = gw
		c.Extractor = graphrag.NewExtractor(gw.Derive(cfg.LLM.WithTemperature(0)), log, cfg.ExtractConcurrency)
	} else if opts.RequireLLM {
		return nil, llm.ErrNoKeys
	}
	return c, nil
}

// LoadGraph snapshots the entity graph, or returns an empty one without Neo4j.
func (c *Core) LoadGraph(ctx context.Context) (*graphrag.Snapshot, error) {
	if c.Graph == nil {
		return graphrag.NewSnapshot(nil, nil, nil), nil
	}
	snap, err := graphrag.LoadSnapshot(ctx, c.Graph)
	if err != nil {
		return nil, fmt.Errorf("load entity graph: %w", err)
	}
	c.Log.Info("entity graph loaded", "nodes", snap.NodeCount(), "edges", snap.EdgeCount())
	return snap, nil
}

// Close releases clients in reverse order of creation.
func (c *Core) Close(ctx context.Context) {
	if c == nil {
		return
	}
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			c.Log.Warn("close failed", "error", err)
		}
	}
	c.closers = nil
}
