package routing

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hedspi/phone-assistant/internal/pkg/vecmath"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
	"github.com/hedspi/phone-assistant/internal/platform/openai"
)

const (
	ProductRoute  = "products"
	ChitchatRoute = "chitchat"
)

var ErrEmptyQuery = errors.New("routing: empty query")

//go:embed default_routes.yaml
var defaultRoutesYAML []byte

type Route struct {
	Name    string   `yaml:"name"`
	Samples []string `yaml:"samples"`
}

type routesFile struct {
	Routes []Route `yaml:"routes"`
}

func DefaultRoutes() ([]Route, error) {
	return parseRoutes(defaultRoutesYAML)
}

// LoadRoutes reads routes from a YAML file; an empty path yields the built-in set.
func LoadRoutes(path string) ([]Route, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultRoutes()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}
	return parseRoutes(b)
}

func parseRoutes(b []byte) ([]Route, error) {
	var f routesFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse routes: %w", err)
	}
	seen := map[string]bool{}
	out := make([]Route, 0, len(f.Routes))
	for _, r := range f.Routes {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, fmt.Errorf("parse routes: route without name")
		}
		if seen[name] {
			return nil, fmt.Errorf("parse routes: duplicate route %q", name)
		}
		seen[name] = true
		samples := make([]string, 0, len(r.Samples))
		for _, s := range r.Samples {
			if strings.TrimSpace(s) != "" {
				samples = append(samples, s)
			}
		}
		if len(samples) == 0 {
			return nil, fmt.Errorf("parse routes: route %q has no samples", name)
		}
		out = append(out, Route{Name: name, Samples: samples})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("parse routes: no routes")
	}
	return out, nil
}

// Router picks the route whose sample embeddings are, on average, closest
// to the query. The index is built once and only read afterwards.
type Router struct {
	log      *logger.Logger
	embedder openai.Embedder
	names    []string
	index    map[string][][]float32
}

func BuildIndex(ctx context.Context, log *logger.Logger, embedder openai.Embedder, routes []Route) (*Router, error) {
	if embedder == nil {
		return nil, fmt.Errorf("routing: embedder required")
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("routing: no routes")
	}
	r := &Router{
		log:      log.With("module", "SemanticRouter"),
		embedder: embedder,
		names:    make([]string, 0, len(routes)),
		index:    make(map[string][][]float32, len(routes)),
	}
	for _, route := range routes {
		if _, dup := r.index[route.Name]; dup {
			return nil, fmt.Errorf("routing: duplicate route %q", route.Name)
		}
		vecs, err := embedder.Embed(ctx, route.Samples)
		if err != nil {
			return nil, fmt.Errorf("routing: embed samples for %q: %w", route.Name, err)
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("routing: route %q produced no embeddings", route.Name)
		}
		r.names = append(r.names, route.Name)
		r.index[route.Name] = vecs
	}
	r.log.Info("route index built", "routes", len(r.names))
	return r, nil
}

func (r *Router) Routes() []string {
	return append([]string(nil), r.names...)
}

// Classify returns the best route and its mean similarity. Ties go to the
// route registered first.
func (r *Router) Classify(ctx context.Context, query string) (string, float64, error) {
	vec, err := openai.EmbedQuery(ctx, r.embedder, query)
	if err != nil {
		return "", 0, fmt.Errorf("routing: embed query: %w", err)
	}
	if len(vec) == 0 {
		return "", 0, ErrEmptyQuery
	}
	best := ""
	bestScore := 0.0
	for i, name := range r.names {
		score := meanCosine(vec, r.index[name])
		if i == 0 || score > bestScore {
			best, bestScore = name, score
		}
	}
	return best, bestScore, nil
}

// NeedsRetrieval reports whether the query should go through product retrieval.
// Classification errors count as "no".
func (r *Router) NeedsRetrieval(ctx context.Context, query string) bool {
	name, score, err := r.Classify(ctx, query)
	if err != nil {
		if !errors.Is(err, ErrEmptyQuery) {
			r.log.Warn("route classification failed", "error", err)
		}
		return false
	}
	r.log.Debug("route classified", "route", name, "score", score)
	return name == ProductRoute
}

func meanCosine(q []float32, samples [][]float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += vecmath.Cosine(q, s)
	}
	return sum / float64(len(samples))
}
