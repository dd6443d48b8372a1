package app

import (
	"context"
	"time"

	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/observability"
)

type instrumentedProductStore struct {
	provider string
	inner    ProductStore
	metrics  *observability.Metrics
}

func instrumentProductStore(provider string, inner ProductStore, metrics *observability.Metrics) ProductStore {
	if inner == nil || metrics == nil {
		return inner
	}
	return &instrumentedProductStore{provider: provider, inner: inner, metrics: metrics}
}

func (s *instrumentedProductStore) QueryProducts(ctx context.Context, vec []float32, numCandidates, k int) ([]types.ProductHit, error) {
	start := time.Now()
	out, err := s.inner.QueryProducts(ctx, vec, numCandidates, k)
	s.metrics.ObserveIndexOperation(s.provider, "query", err, time.Since(start))
	return out, err
}

func (s *instrumentedProductStore) UpsertProducts(ctx context.Context, products []types.Product) error {
	start := time.Now()
	err := s.inner.UpsertProducts(ctx, products)
	s.metrics.ObserveIndexOperation(s.provider, "upsert", err, time.Since(start))
	return err
}
