package observability

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveAPI("POST", "/get_message", 200, 120*time.Millisecond)
	m.ObserveAPI("POST", "/get_message", 200, 3*time.Second)
	m.ObserveLLM("generate", "ok", time.Second)
	m.ObserveTurn("products", "hit", time.Second)
	m.ObserveTurn("products", "", time.Second)
	m.ObserveTurn("chitchat", "", time.Second)

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`pa_api_requests_total{method="POST",route="/get_message",status="200"} 2`,
		`pa_api_request_duration_seconds_bucket{method="POST",route="/get_message",le="0.25"} 1`,
		`pa_api_request_duration_seconds_bucket{method="POST",route="/get_message",le="+Inf"} 2`,
		`pa_llm_requests_total{op="generate",status="ok"} 1`,
		`pa_route_decisions_total{route="chitchat"} 1`,
		`pa_route_decisions_total{route="products"} 2`,
		`pa_answer_cache_lookups_total{result="hit"} 1`,
		"# TYPE pa_api_inflight_requests gauge",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, `result="miss"`) {
		t.Fatalf("turns without a cache must not count lookups")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveAPI("GET", "/", 200, time.Millisecond)
	m.APIInflightInc()
	m.ObserveTurn("products", "miss", 0)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("status: want=503 got=%d", rec.Code)
	}
}

func TestLabelEscaping(t *testing.T) {
	c := NewCounterVec("x_total", "x", []string{"a", "b"})
	c.Inc(`say "hi"`)
	if got := c.Value(`say "hi"`); got != 1 {
		t.Fatalf("value: want=1 got=%v", got)
	}
	var buf bytes.Buffer
	_ = c.WritePrometheus(&buf)
	if !strings.Contains(buf.String(), `x_total{a="say \"hi\"",b="unknown"} 1`) {
		t.Fatalf("escaping: got=%s", buf.String())
	}
}

func TestParseHeaders(t *testing.T) {
	h := parseHeaders("authorization=Bearer x, bad, =v,k=")
	if len(h) != 1 || h["authorization"] != "Bearer x" {
		t.Fatalf("headers: got=%v", h)
	}
	if parseHeaders("") != nil {
		t.Fatalf("empty: want nil")
	}
	if clampRatio(2) != 1 || clampRatio(-1) != 0 {
		t.Fatalf("clampRatio out of range")
	}
}
