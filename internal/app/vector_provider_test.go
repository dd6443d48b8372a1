package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hedspi/phone-assistant/internal/data/repos"
	"github.com/hedspi/phone-assistant/internal/data/repos/testutil"
	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/observability"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
	"github.com/hedspi/phone-assistant/internal/platform/qdrant"
)

func TestResolveProductStoreQdrantSelected(t *testing.T) {
	origIndex, origCfg := newQdrantIndex, resolveQdrantConfig
	t.Cleanup(func() {
		newQdrantIndex = origIndex
		resolveQdrantConfig = origCfg
	})

	stub := &testProductStore{}
	var captured qdrant.Config
	resolveQdrantConfig = func() (qdrant.Config, error) {
		return qdrant.Config{URL: "http://qdrant:6333", Collection: "products", VectorDim: 1536}, nil
	}
	newQdrantIndex = func(_ context.Context, _ *logger.Logger, cfg qdrant.Config) (ProductStore, error) {
		captured = cfg
		return stub, nil
	}

	store, err := resolveProductStore(context.Background(), logger.Nop(), Config{VectorProvider: "Qdrant"}, nil, nil)
	if err != nil {
		t.Fatalf("resolveProductStore: %v", err)
	}
	if err := store.UpsertProducts(context.Background(), []types.Product{{Title: "iPhone 15"}}); err != nil {
		t.Fatalf("UpsertProducts: %v", err)
	}
	if stub.upsertCalls != 1 {
		t.Fatalf("underlying qdrant store not called; upsert_calls=%d", stub.upsertCalls)
	}
	if captured.Collection != "products" {
		t.Fatalf("qdrant.Collection: want=%q got=%q", "products", captured.Collection)
	}
}

func TestResolveProductStoreLocalDefault(t *testing.T) {
	repo := repos.NewProductRepo(testutil.DB(t), logger.Nop())
	store, err := resolveProductStore(context.Background(), logger.Nop(), Config{}, repo, nil)
	if err != nil {
		t.Fatalf("resolveProductStore: %v", err)
	}
	if err := store.UpsertProducts(context.Background(), []types.Product{
		{Title: "Galaxy S24", Embedding: []float32{1, 0}},
		{Title: "Redmi 13", Embedding: []float32{0, 1}},
	}); err != nil {
		t.Fatalf("UpsertProducts: %v", err)
	}
	hits, err := store.QueryProducts(context.Background(), []float32{1, 0}, 10, 1)
	if err != nil {
		t.Fatalf("QueryProducts: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "Galaxy S24" {
		t.Fatalf("hits: want=[Galaxy S24] got=%+v", hits)
	}
}

func TestResolveProductStoreLocalNeedsCatalog(t *testing.T) {
	_, err := resolveProductStore(context.Background(), logger.Nop(), Config{VectorProvider: "local"}, nil, nil)
	if got := vectorProviderBootstrapErrorCode(err); got != VectorProviderBootstrapErrorMissingCatalog {
		t.Fatalf("code: want=%s got=%s (err=%v)", VectorProviderBootstrapErrorMissingCatalog, got, err)
	}
}

func TestResolveProductStoreInvalidProvider(t *testing.T) {
	_, err := resolveProductStore(context.Background(), logger.Nop(), Config{VectorProvider: "pinecone"}, nil, nil)
	var bootErr *VectorProviderBootstrapError
	if !errors.As(err, &bootErr) {
		t.Fatalf("expected VectorProviderBootstrapError, got=%T %v", err, err)
	}
	if bootErr.Code != VectorProviderBootstrapErrorInvalidProvider || bootErr.Provider != "pinecone" {
		t.Fatalf("unexpected error: %+v", bootErr)
	}
}

func TestResolveProductStoreQdrantConfigErrors(t *testing.T) {
	origCfg := resolveQdrantConfig
	t.Cleanup(func() { resolveQdrantConfig = origCfg })

	cases := []struct {
		code qdrant.ConfigErrorCode
		want VectorProviderBootstrapErrorCode
	}{
		{qdrant.ConfigErrorMissingURL, VectorProviderBootstrapErrorMissingQdrantURL},
		{qdrant.ConfigErrorInvalidURL, VectorProviderBootstrapErrorInvalidQdrantURL},
		{qdrant.ConfigErrorMissingCollection, VectorProviderBootstrapErrorMissingQdrantColl},
		{qdrant.ConfigErrorInvalidVectorDim, VectorProviderBootstrapErrorInvalidQdrantVector},
		{qdrant.ConfigErrorCode("other"), VectorProviderBootstrapErrorQdrantConfigFailed},
	}
	for _, tc := range cases {
		code := tc.code
		resolveQdrantConfig = func() (qdrant.Config, error) {
			return qdrant.Config{}, &qdrant.ConfigError{Code: code}
		}
		_, err := resolveProductStore(context.Background(), logger.Nop(), Config{VectorProvider: "qdrant"}, nil, nil)
		if got := vectorProviderBootstrapErrorCode(err); got != tc.want {
			t.Fatalf("%s: want=%s got=%s", tc.code, tc.want, got)
		}
	}
}

func TestClassifyVectorProviderBootstrapError(t *testing.T) {
	connect := classifyVectorProviderBootstrapError("qdrant", errors.New("qdrant ready check failed: dial tcp: connection refused"))
	if got := vectorProviderBootstrapErrorCode(connect); got != VectorProviderBootstrapErrorConnectFailed {
		t.Fatalf("connect: want=%s got=%s", VectorProviderBootstrapErrorConnectFailed, got)
	}
	other := classifyVectorProviderBootstrapError("qdrant", errors.New("collection dim mismatch"))
	if got := vectorProviderBootstrapErrorCode(other); got != VectorProviderBootstrapErrorProviderInitFailed {
		t.Fatalf("other: want=%s got=%s", VectorProviderBootstrapErrorProviderInitFailed, got)
	}
	already := &VectorProviderBootstrapError{Code: VectorProviderBootstrapErrorInvalidProvider}
	if got := classifyVectorProviderBootstrapError("x", already); got != already {
		t.Fatalf("classified errors must pass through unchanged")
	}
	if !strings.Contains(other.Error(), `provider="qdrant"`) {
		t.Fatalf("message: got=%q", other.Error())
	}
}

type testProductStore struct {
	upsertCalls int
	queryCalls  int
	queryErr    error
}

func (s *testProductStore) QueryProducts(_ context.Context, _ []float32, _, _ int) ([]types.ProductHit, error) {
	s.queryCalls++
	return nil, s.queryErr
}

func (s *testProductStore) UpsertProducts(_ context.Context, _ []types.Product) error {
	s.upsertCalls++
	return nil
}

var _ ProductStore = (*testProductStore)(nil)

func TestInstrumentProductStoreRecordsOperations(t *testing.T) {
	inner := &testProductStore{queryErr: errors.New("boom")}
	m := observability.NewMetrics()
	store := instrumentProductStore("qdrant", inner, m)

	if err := store.UpsertProducts(context.Background(), nil); err != nil {
		t.Fatalf("UpsertProducts: %v", err)
	}
	if _, err := store.QueryProducts(context.Background(), []float32{1}, 5, 1); !errors.Is(err, inner.queryErr) {
		t.Fatalf("QueryProducts: want wrapped %v got=%v", inner.queryErr, err)
	}
	if inner.upsertCalls != 1 || inner.queryCalls != 1 {
		t.Fatalf("calls: upsert=%d query=%d", inner.upsertCalls, inner.queryCalls)
	}

	var b strings.Builder
	if err := m.WritePrometheus(&b); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		`pa_product_index_operations_total{provider="qdrant",op="upsert",status="success"} 1`,
		`pa_product_index_operations_total{provider="qdrant",op="query",status="error"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestInstrumentProductStoreWithoutMetrics(t *testing.T) {
	inner := &testProductStore{}
	if got := instrumentProductStore("local", inner, nil); got != ProductStore(inner) {
		t.Fatalf("expected inner store when metrics are disabled")
	}
}
