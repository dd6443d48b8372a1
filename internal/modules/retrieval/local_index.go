package retrieval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hedspi/phone-assistant/internal/data/repos"
	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/pkg/dbctx"
	"github.com/hedspi/phone-assistant/internal/pkg/vecmath"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

// LocalIndex keeps the catalog table in memory and scores every product
// against the query.
type LocalIndex struct {
	log  *logger.Logger
	repo repos.ProductRepo

	mu       sync.RWMutex
	products []types.Product
}

func NewLocalIndex(ctx context.Context, log *logger.Logger, repo repos.ProductRepo) (*LocalIndex, error) {
	idx := &LocalIndex{log: log.With("index", "LocalIndex"), repo: repo}
	if err := idx.Reload(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (l *LocalIndex) Reload(ctx context.Context) error {
	products, err := l.repo.ListAll(dbctx.New(ctx))
	if err != nil {
		return fmt.Errorf("local index: %w", err)
	}
	l.mu.Lock()
	l.products = products
	l.mu.Unlock()
	l.log.Info("local index loaded", "products", len(products))
	return nil
}

func (l *LocalIndex) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.products)
}

func (l *LocalIndex) QueryProducts(ctx context.Context, vec []float32, numCandidates, k int) ([]types.ProductHit, error) {
	if k <= 0 || len(vec) == 0 {
		return []types.ProductHit{}, nil
	}
	l.mu.RLock()
	hits := make([]types.ProductHit, 0, len(l.products))
	for _, p := range l.products {
		if len(p.Embedding) != len(vec) {
			continue
		}
		hits = append(hits, p.Hit(vecmath.Cosine(vec, p.Embedding)))
	}
	l.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if numCandidates > 0 && len(hits) > numCandidates {
		hits = hits[:numCandidates]
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (l *LocalIndex) UpsertProducts(ctx context.Context, products []types.Product) error {
	if _, err := l.repo.Upsert(dbctx.New(ctx), products); err != nil {
		return fmt.Errorf("local index: %w", err)
	}
	return l.Reload(ctx)
}
