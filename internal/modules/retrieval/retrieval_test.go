package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"github.com/hedspi/phone-assistant/internal/data/repos"
	"github.com/hedspi/phone-assistant/internal/data/repos/testutil"
	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
	"github.com/hedspi/phone-assistant/internal/platform/redis"
)

// tableEmbedder returns fixed vectors per text; unknown text maps to {0, 0, 1}.
type tableEmbedder struct {
	vecs  map[string][]float32
	calls int
}

func (e *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := e.vecs[t]; ok {
			out[i] = v
		} else {
			out[i] = []float32{0, 0, 1}
		}
	}
	return out, nil
}

type fakeIndex struct {
	hits    []types.ProductHit
	gotVec  []float32
	gotCand int
	gotK    int
	err     error
}

func (f *fakeIndex) QueryProducts(_ context.Context, vec []float32, numCandidates, k int) ([]types.ProductHit, error) {
	f.gotVec, f.gotCand, f.gotK = vec, numCandidates, k
	if f.err != nil {
		return nil, f.err
	}
	out := append([]types.ProductHit(nil), f.hits...)
	return out, nil
}

func TestCleanQuery(t *testing.T) {
	got := CleanQuery("  Giá   iPhone 15, bao nhiêu?!  ")
	if got != "giá iphone 15 bao nhiêu" {
		t.Fatalf("clean: got=%q", got)
	}
}

func TestFormatProduct(t *testing.T) {
	got := FormatProduct(types.ProductHit{
		Title:        "iPhone 15",
		Promotion:    "Giảm 1 triệu\nTrả góp 0%",
		Specs:        "",
		Price:        "",
		ColorOptions: []string{"Đen", "Hồng"},
	})
	want := "Tên sản phẩm: iPhone 15.\n" +
		"Ưu đãi: Giảm 1 triệu.Trả góp 0%.\n" +
		"Giá tiền: Liên hệ để trao đổi thêm.\n" +
		"Các màu điện thoại: Đen, Hồng.\n"
	if got != want {
		t.Fatalf("format:\nwant=%q\ngot =%q", want, got)
	}
	if FormatProduct(types.ProductHit{Price: "1đ"}) != "Giá tiền: 1đ.\n" {
		t.Fatalf("sparse product formatted wrong")
	}
}

func TestSearchSortsAndTruncates(t *testing.T) {
	idx := &fakeIndex{hits: []types.ProductHit{{Title: "a", Score: 0.2}, {Title: "b", Score: 0.9}, {Title: "c", Score: 0.5}}}
	s := NewVectorSearch(logger.Nop(), &tableEmbedder{}, idx)
	got, err := s.Search(context.Background(), "iphone", 100, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].Title != "b" || got[1].Title != "c" {
		t.Fatalf("hits: got=%+v", got)
	}
	if idx.gotCand != 100 {
		t.Fatalf("candidates: want=100 got=%d", idx.gotCand)
	}
}

func TestSearchZeroK(t *testing.T) {
	emb := &tableEmbedder{}
	s := NewVectorSearch(logger.Nop(), emb, &fakeIndex{hits: []types.ProductHit{{Title: "a"}}})
	got, err := s.Search(context.Background(), "iphone", 100, 0)
	if err != nil || len(got) != 0 {
		t.Fatalf("k=0: want empty got=%v err=%v", got, err)
	}
	if emb.calls != 0 {
		t.Fatalf("k=0 embedded the query")
	}
}

func TestSearchInvalidQuery(t *testing.T) {
	s := NewVectorSearch(logger.Nop(), &tableEmbedder{}, &fakeIndex{})
	if _, err := s.Search(context.Background(), "  ", 100, 5); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("err: want=ErrInvalidQuery got=%v", err)
	}
}

func TestSearchNeverExceedsCandidates(t *testing.T) {
	idx := &fakeIndex{hits: []types.ProductHit{
		{Title: "a", Score: 0.9}, {Title: "b", Score: 0.8}, {Title: "c", Score: 0.7},
		{Title: "d", Score: 0.6}, {Title: "e", Score: 0.5},
	}}
	s := NewVectorSearch(logger.Nop(), &tableEmbedder{}, idx)
	got, err := s.Search(context.Background(), "iphone", 2, 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) > 2 {
		t.Fatalf("hits: want at most num_candidates=2 got=%d", len(got))
	}
	if idx.gotCand != 2 || idx.gotK != 2 {
		t.Fatalf("index request: want candidates=2 k=2 got candidates=%d k=%d", idx.gotCand, idx.gotK)
	}
	if got[0].Title != "a" || got[1].Title != "b" {
		t.Fatalf("order: got=%+v", got)
	}

	none, err := s.Search(context.Background(), "iphone", 0, 5)
	if err != nil || len(none) != 0 {
		t.Fatalf("zero candidates: want empty got=%v err=%v", none, err)
	}
}

func TestSearchIndexError(t *testing.T) {
	s := NewVectorSearch(logger.Nop(), &tableEmbedder{}, &fakeIndex{err: errors.New("down")})
	if _, err := s.Search(context.Background(), "x", 10, 2); err == nil {
		t.Fatalf("want index error")
	}
}

func newLocalIndex(t *testing.T, products []types.Product) *LocalIndex {
	t.Helper()
	repo := repos.NewProductRepo(testutil.DB(t), logger.Nop())
	idx, err := NewLocalIndex(context.Background(), logger.Nop(), repo)
	if err != nil {
		t.Fatalf("NewLocalIndex: %v", err)
	}
	if err := idx.UpsertProducts(context.Background(), products); err != nil {
		t.Fatalf("UpsertProducts: %v", err)
	}
	return idx
}

func TestLocalIndexIngestionRecall(t *testing.T) {
	products := []types.Product{
		{Title: "iPhone 15", URL: "https://shop/iphone-15", Embedding: []float32{1, 0, 0}},
		{Title: "Galaxy S24", URL: "https://shop/s24", Embedding: []float32{0, 1, 0}},
		{Title: "Redmi 13", URL: "https://shop/redmi-13", Embedding: []float32{0.7, 0.7, 0}},
	}
	idx := newLocalIndex(t, products)
	if idx.Len() != 3 {
		t.Fatalf("len: want=3 got=%d", idx.Len())
	}
	for _, p := range products {
		hits, err := idx.QueryProducts(context.Background(), p.Embedding, 100, 1)
		if err != nil {
			t.Fatalf("QueryProducts: %v", err)
		}
		if len(hits) != 1 || hits[0].Title != p.Title {
			t.Fatalf("recall %s: got=%+v", p.Title, hits)
		}
	}

	hits, _ := idx.QueryProducts(context.Background(), []float32{1, 0, 0}, 100, 10)
	if len(hits) != 3 {
		t.Fatalf("k above candidates: want=3 got=%d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Fatalf("scores not descending: %+v", hits)
		}
	}
	if got, _ := idx.QueryProducts(context.Background(), []float32{1, 0, 0}, 1, 10); len(got) != 1 {
		t.Fatalf("numCandidates cap: want=1 got=%d", len(got))
	}
}

func newTestRAG(t *testing.T) (*RAG, *tableEmbedder) {
	t.Helper()
	emb := &tableEmbedder{vecs: map[string][]float32{
		"iphone":     {1, 0, 0},
		"galaxy s24": {0, 1, 0},
	}}
	idx := newLocalIndex(t, []types.Product{
		{Title: "iPhone 15", Price: "20.000.000đ", URL: "https://shop/iphone-15", Embedding: []float32{1, 0.1, 0}},
		{Title: "Galaxy S24", URL: "https://shop/s24", Embedding: []float32{0.1, 1, 0}},
	})
	return NewRAG(logger.Nop(), Config{}, NewVectorSearch(logger.Nop(), emb, idx), nil, nil), emb
}

func TestProductLink(t *testing.T) {
	rag, _ := newTestRAG(t)
	link, err := rag.ProductLink(context.Background(), "galaxy s24")
	if err != nil {
		t.Fatalf("ProductLink: %v", err)
	}
	if link != "https://shop/s24" {
		t.Fatalf("link: got=%q", link)
	}
	if link, _ := rag.ProductLink(context.Background(), " "); link != "" {
		t.Fatalf("blank name: want empty got=%q", link)
	}
}

func TestGraphSearchWithoutGraphUsesSemanticBlocks(t *testing.T) {
	rag, _ := newTestRAG(t)
	got, err := rag.GraphSearchResult(context.Background(), "iphone")
	if err != nil {
		t.Fatalf("GraphSearchResult: %v", err)
	}
	if !strings.HasPrefix(got, "Thông tin bổ sung:\nTên sản phẩm: iPhone 15.\n") {
		t.Fatalf("result: got=%q", got)
	}
	if !strings.Contains(got, ".\n.\nTên sản phẩm: Galaxy S24") {
		t.Fatalf("blocks joined wrong: %q", got)
	}
	empty, _ := rag.GraphSearchResult(context.Background(), "")
	if empty != "Thông tin bổ sung:\n" {
		t.Fatalf("empty query: got=%q", empty)
	}
}

func TestSearchResult(t *testing.T) {
	rag, _ := newTestRAG(t)
	got, err := rag.SearchResult(context.Background(), "iphone")
	if err != nil {
		t.Fatalf("SearchResult: %v", err)
	}
	if strings.Count(got, "Tên sản phẩm:") != 2 {
		t.Fatalf("want both products: %q", got)
	}
}

func TestSemanticCache(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := redis.NewAnswerStore(logger.Nop(), redis.Options{Addr: mr.Addr(), Key: "cache"})
	if err != nil {
		t.Fatalf("NewAnswerStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	emb := &tableEmbedder{vecs: map[string][]float32{
		"giá iphone 15":           {1, 0, 0},
		"iphone 15 giá bao nhiêu": {0.99, 0.05, 0},
		"galaxy s24 màu gì":       {0, 1, 0},
	}}
	cache := NewSemanticCache(logger.Nop(), store, emb, 0, 0)
	ctx := context.Background()

	if err := cache.Store(ctx, "giá iphone 15", "20 triệu"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := cache.Store(ctx, "galaxy s24 màu gì", "Đen, Tím"); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := cache.Store(ctx, "  ", "ignored"); err != nil {
		t.Fatalf("Store blank: %v", err)
	}

	answer, ok := cache.Lookup(ctx, "iphone 15 giá bao nhiêu")
	if !ok || answer != "20 triệu" {
		t.Fatalf("lookup: want hit got=%q ok=%v", answer, ok)
	}
	if _, ok := cache.Lookup(ctx, "unrelated question"); ok {
		t.Fatalf("lookup: want miss for unrelated question")
	}
	hits, err := cache.Search(ctx, "giá iphone 15")
	if err != nil || len(hits) != 1 || hits[0].Score < DefaultCacheThreshold {
		t.Fatalf("search: got=%+v err=%v", hits, err)
	}
}
