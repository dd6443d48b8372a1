package assistant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestShopInfoFetcherStripsScripts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><style>body{color:red}</style></head>
<body><h1>Hedspi Store</h1>
<script>alert(1)</script>
<p>Địa chỉ:   1 Đại Cồ Việt,
 Hà Nội</p></body></html>`))
	}))
	defer srv.Close()

	f := &ShopInfoFetcher{URL: srv.URL, Client: srv.Client()}
	got, err := f.ShopInfo(context.Background(), "địa chỉ")
	if err != nil {
		t.Fatalf("ShopInfo: %v", err)
	}
	if got != "Hedspi Store Địa chỉ: 1 Đại Cồ Việt, Hà Nội" {
		t.Fatalf("text: got=%q", got)
	}

	f.MaxLen = 6
	got, _ = f.ShopInfo(context.Background(), "")
	if got != "Hedspi" {
		t.Fatalf("truncated: got=%q", got)
	}
}

func TestShopInfoFetcherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := &ShopInfoFetcher{URL: srv.URL, Client: srv.Client()}
	if _, err := f.ShopInfo(context.Background(), ""); err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("status error: got=%v", err)
	}
	if _, err := (&ShopInfoFetcher{}).ShopInfo(context.Background(), ""); err == nil {
		t.Fatalf("missing URL: want error")
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`<html><body>
<div class="result"><a class="result__a">Tin <b>A</b></a><a class="result__snippet">Mô tả <img src=x onerror=alert(1)>A</a></div>
<div class="result"><a class="result__a">Tin B</a><a class="result__snippet">Mô tả B</a></div>
<div class="result"></div>
<div class="result"><a class="result__a">Tin C</a><a class="result__snippet">Mô tả C</a></div>
<div class="result"><a class="result__a">Tin D</a><a class="result__snippet">Mô tả D</a></div>
</body></html>`))
	}))
	defer srv.Close()

	d := NewDuckDuckGo(srv.Client())
	d.BaseURL = srv.URL + "/"
	got, err := d.Search(context.Background(), "tin công nghệ")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "tin công nghệ" {
		t.Fatalf("query: got=%q", gotQuery)
	}
	want := "Tin A: Mô tả A\nTin B: Mô tả B\nTin C: Mô tả C"
	if got != want {
		t.Fatalf("results: want=%q got=%q", want, got)
	}
}

func TestDuckDuckGoNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>nothing</p></body></html>`))
	}))
	defer srv.Close()

	d := &DuckDuckGo{BaseURL: srv.URL + "/", Client: srv.Client()}
	got, err := d.Search(context.Background(), "xyz")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got != "Không tìm thấy kết quả phù hợp." {
		t.Fatalf("empty: got=%q", got)
	}
	if _, err := d.Search(context.Background(), " "); err == nil {
		t.Fatalf("blank query: want error")
	}
}
