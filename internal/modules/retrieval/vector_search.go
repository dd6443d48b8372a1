package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"

	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
	"github.com/hedspi/phone-assistant/internal/platform/openai"
)

const (
	DefaultNumCandidates = 100
	DefaultSemanticK     = 5
	DefaultRawK          = 20
)

var ErrInvalidQuery = errors.New("retrieval: invalid query or empty embedding")

// ProductIndex answers nearest-neighbour queries over product embeddings.
type ProductIndex interface {
	QueryProducts(ctx context.Context, vec []float32, numCandidates, k int) ([]types.ProductHit, error)
}

// ProductWriter is implemented by indexes that accept ingestion.
type ProductWriter interface {
	UpsertProducts(ctx context.Context, products []types.Product) error
}

type VectorSearch struct {
	log      *logger.Logger
	embedder openai.Embedder
	index    ProductIndex
}

func NewVectorSearch(log *logger.Logger, embedder openai.Embedder, index ProductIndex) *VectorSearch {
	return &VectorSearch{log: log.With("module", "VectorSearch"), embedder: embedder, index: index}
}

// Search embeds query and returns at most min(k, numCandidates) hits ordered
// by descending score. A blank query fails with ErrInvalidQuery.
func (s *VectorSearch) Search(ctx context.Context, query string, numCandidates, k int) ([]types.ProductHit, error) {
	ctx, span := tracer.Start(ctx, "retrieval.vector_search")
	defer span.End()

	if k > numCandidates {
		k = numCandidates
	}
	if k <= 0 {
		return []types.ProductHit{}, nil
	}
	vec, err := openai.EmbedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("vector search: embed: %w", err)
	}
	if len(vec) == 0 {
		return nil, ErrInvalidQuery
	}
	hits, err := s.index.QueryProducts(ctx, vec, numCandidates, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	span.SetAttributes(attribute.Int("k", k), attribute.Int("hits", len(hits)))
	return hits, nil
}
