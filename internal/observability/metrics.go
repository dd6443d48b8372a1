package observability

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

// Metrics holds the process-wide collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	llmRequests   *CounterVec
	llmLatency    *HistogramVec
	routeDecision *CounterVec
	cacheLookups  *CounterVec
	turnLatency   *HistogramVec
	indexOps      *CounterVec
	indexLatency  *HistogramVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("pa_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"pa_api_request_duration_seconds",
			"API request latency in seconds by method/route.",
			[]string{"method", "route"},
			[]float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		),
		apiInflight:   NewGauge("pa_api_inflight_requests", "In-flight API requests."),
		llmRequests:   NewCounterVec("pa_llm_requests_total", "LLM calls by operation/status.", []string{"op", "status"}),
		llmLatency:    NewHistogramVec("pa_llm_request_duration_seconds", "LLM call latency including key rotation.", []string{"op"}, nil),
		routeDecision: NewCounterVec("pa_route_decisions_total", "Semantic router decisions by route.", []string{"route"}),
		cacheLookups:  NewCounterVec("pa_answer_cache_lookups_total", "Semantic answer cache lookups by result.", []string{"result"}),
		turnLatency:   NewHistogramVec("pa_turn_duration_seconds", "Conversation turn latency by route.", []string{"route"}, nil),
		indexOps:      NewCounterVec("pa_product_index_operations_total", "Product index calls by provider/op/status.", []string{"provider", "op", "status"}),
		indexLatency:  NewHistogramVec("pa_product_index_duration_seconds", "Product index latency by provider/op.", []string{"provider", "op"}, nil),
	}
}

func (m *Metrics) ObserveAPI(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.Inc(method, route, strconv.Itoa(status))
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) APIInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

// ObserveLLM records one gateway call; status is "ok" or "error".
func (m *Metrics) ObserveLLM(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.llmRequests.Inc(op, status)
	m.llmLatency.Observe(dur.Seconds(), op)
}

// ObserveTurn records a finished conversation turn. lookup is the answer
// cache outcome ("hit" or "miss"); empty means no cache was consulted.
func (m *Metrics) ObserveTurn(route, lookup string, dur time.Duration) {
	if m == nil {
		return
	}
	m.routeDecision.Inc(route)
	m.turnLatency.Observe(dur.Seconds(), route)
	if lookup != "" {
		m.cacheLookups.Inc(lookup)
	}
}

func (m *Metrics) ObserveIndexOperation(provider, op string, err error, dur time.Duration) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.indexOps.Inc(provider, op, status)
	m.indexLatency.Observe(dur.Seconds(), provider, op)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []interface{ WritePrometheus(io.Writer) error }{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.llmRequests, m.llmLatency,
		m.routeDecision, m.cacheLookups, m.turnLatency,
		m.indexOps, m.indexLatency,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}
