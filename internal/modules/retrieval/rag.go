package retrieval

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/hedspi/phone-assistant/internal/modules/graphrag"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

var tracer = otel.Tracer("github.com/hedspi/phone-assistant/internal/modules/retrieval")

type Config struct {
	NumCandidates int
	SemanticK     int
	RawK          int
	Graph         graphrag.Config
}

func (c Config) withDefaults() Config {
	if c.NumCandidates <= 0 {
		c.NumCandidates = DefaultNumCandidates
	}
	if c.SemanticK <= 0 {
		c.SemanticK = DefaultSemanticK
	}
	if c.RawK <= 0 {
		c.RawK = DefaultRawK
	}
	if c.Graph.SemanticK <= 0 {
		c.Graph.SemanticK = c.SemanticK
	}
	return c
}

// RAG composes vector search and graph expansion into context strings.
type RAG struct {
	log      *logger.Logger
	cfg      Config
	search   *VectorSearch
	expander *graphrag.Expander
}

// NewRAG wires the orchestrator. With a nil extractor, graph search degrades
// to the plain semantic context.
func NewRAG(log *logger.Logger, cfg Config, search *VectorSearch, extractor *graphrag.Extractor, graph *graphrag.Snapshot) *RAG {
	r := &RAG{log: log.With("module", "RAG"), cfg: cfg.withDefaults(), search: search}
	if extractor != nil {
		r.expander = graphrag.NewExpander(log, r.cfg.Graph, r, extractor, graph)
	}
	return r
}

// SemanticBlocks returns formatted product text for the top k hits. An
// unusable query gives no blocks rather than an error.
func (r *RAG) SemanticBlocks(ctx context.Context, query string, k int) ([]string, error) {
	hits, err := r.search.Search(ctx, query, r.cfg.NumCandidates, k)
	if errors.Is(err, ErrInvalidQuery) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return FormatProducts(hits), nil
}

// SearchResult is the plain semantic context over the larger raw k.
func (r *RAG) SearchResult(ctx context.Context, query string) (string, error) {
	hits, err := r.search.Search(ctx, query, r.cfg.NumCandidates, r.cfg.RawK)
	if err != nil {
		return "", err
	}
	return graphrag.Label + strings.Join(FormatProducts(hits), ".\n"), nil
}

func (r *RAG) GraphSearchResult(ctx context.Context, query string) (string, error) {
	if r.expander == nil {
		blocks, err := r.SemanticBlocks(ctx, query, r.cfg.SemanticK)
		if err != nil {
			return "", err
		}
		return graphrag.Label + strings.Join(blocks, ".\n"), nil
	}
	return r.expander.Expand(ctx, query)
}

// ProductLink returns the URL of the closest product, or "" when nothing matches.
func (r *RAG) ProductLink(ctx context.Context, productName string) (string, error) {
	hits, err := r.search.Search(ctx, productName, r.cfg.NumCandidates, 1)
	if errors.Is(err, ErrInvalidQuery) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		return "", nil
	}
	return hits[0].URL, nil
}
