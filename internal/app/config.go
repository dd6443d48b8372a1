package app

import (
	"strings"
	"time"

	"github.com/hedspi/phone-assistant/internal/data/db"
	"github.com/hedspi/phone-assistant/internal/modules/graphrag"
	"github.com/hedspi/phone-assistant/internal/modules/retrieval"
	"github.com/hedspi/phone-assistant/internal/observability"
	"github.com/hedspi/phone-assistant/internal/platform/envutil"
	"github.com/hedspi/phone-assistant/internal/platform/llm"
	"github.com/hedspi/phone-assistant/internal/platform/neo4jdb"
	"github.com/hedspi/phone-assistant/internal/platform/openai"
	"github.com/hedspi/phone-assistant/internal/platform/redis"
)

const ServiceName = "phone-assistant"

type Config struct {
	Port        string
	LogMode     string
	CORSOrigins []string

	// VectorProvider is "local" (catalog table, brute force) or "qdrant".
	VectorProvider string

	NumHistory         int
	MaxHistory         int
	MaxSessions        int
	SessionIdleTTL     time.Duration
	ExtractConcurrency int
	Retrieval          retrieval.Config

	CacheEnabled   bool
	CacheThreshold float64
	CacheLimit     int

	ShopInfoURL    string
	RoutesPath     string
	MetricsEnabled bool

	DB     db.Config
	Neo4j  neo4jdb.Config
	OpenAI openai.Config
	LLM    llm.Config
	Redis  redis.Options
	Otel   observability.OtelConfig
}

func LoadConfig() Config {
	return Config{
		Port:        envutil.String("PORT", "5000"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		CORSOrigins: envutil.List("CORS_ORIGINS"),

		VectorProvider: strings.ToLower(envutil.String("VECTOR_PROVIDER", string(VectorProviderLocal))),

		NumHistory:         envutil.Int("NUM_HISTORY", 10),
		MaxHistory:         envutil.Int("MAX_HISTORY", 20),
		MaxSessions:        envutil.Int("MAX_SESSIONS", 1000),
		SessionIdleTTL:     envutil.Duration("SESSION_IDLE_TTL", 2*time.Hour),
		ExtractConcurrency: envutil.Int("EXTRACT_CONCURRENCY", 5),
		Retrieval: retrieval.Config{
			NumCandidates: envutil.Int("NUM_CANDIDATES", retrieval.DefaultNumCandidates),
			SemanticK:     envutil.Int("SEMANTIC_K", retrieval.DefaultSemanticK),
			RawK:          envutil.Int("RAW_K", retrieval.DefaultRawK),
			Graph: graphrag.Config{
				SemanticK:     envutil.Int("SEMANTIC_K", retrieval.DefaultSemanticK),
				GraphK:        envutil.Int("GRAPH_K", 5),
				MinMatchScore: envutil.Float("GRAPH_MIN_MATCH_SCORE", 0),
			},
		},

		CacheEnabled:   envutil.Bool("CACHE_ENABLED", false),
		CacheThreshold: envutil.Float("CACHE_THRESHOLD", retrieval.DefaultCacheThreshold),
		CacheLimit:     envutil.Int("CACHE_LIMIT", retrieval.DefaultCacheLimit),

		ShopInfoURL:    envutil.String("SHOP_INFO_URL", ""),
		RoutesPath:     envutil.String("ROUTES_PATH", ""),
		MetricsEnabled: envutil.Bool("METRICS_ENABLED", false),

		DB:     db.ConfigFromEnv(),
		Neo4j:  neo4jdb.ConfigFromEnv(),
		OpenAI: openai.ConfigFromEnv(),
		LLM:    llm.ConfigFromEnv(),
		Redis:  redis.OptionsFromEnv(),
		Otel:   observability.OtelConfigFromEnv(ServiceName),
	}
}
