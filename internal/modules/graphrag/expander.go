package graphrag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

// Label prefixes every expansion result.
const Label = "Thông tin bổ sung:\n"

var tracer = otel.Tracer("github.com/hedspi/phone-assistant/internal/modules/graphrag")

// BlockSource returns the formatted text of the top k products for query.
// An unusable query yields no blocks and no error.
type BlockSource interface {
	SemanticBlocks(ctx context.Context, query string, k int) ([]string, error)
}

type Config struct {
	SemanticK     int
	GraphK        int
	MinMatchScore float64
}

func (c Config) withDefaults() Config {
	if c.SemanticK <= 0 {
		c.SemanticK = 5
	}
	if c.GraphK <= 0 {
		c.GraphK = 5
	}
	return c
}

type Expander struct {
	log       *logger.Logger
	cfg       Config
	blocks    BlockSource
	extractor *Extractor
	graph     *Snapshot
}

func NewExpander(log *logger.Logger, cfg Config, blocks BlockSource, extractor *Extractor, graph *Snapshot) *Expander {
	if graph == nil {
		graph = NewSnapshot(nil, nil, nil)
	}
	return &Expander{
		log:       log.With("module", "GraphExpander"),
		cfg:       cfg.withDefaults(),
		blocks:    blocks,
		extractor: extractor,
		graph:     graph,
	}
}

// Expand builds the graph-augmented context for query. When nothing in the
// retrieved products maps onto the graph, the product text itself is returned.
func (x *Expander) Expand(ctx context.Context, query string) (string, error) {
	ctx, span := tracer.Start(ctx, "graphrag.expand")
	defer span.End()

	blocks, err := x.blocks.SemanticBlocks(ctx, query, x.cfg.SemanticK)
	if err != nil {
		return "", fmt.Errorf("graph expand: %w", err)
	}
	span.SetAttributes(attribute.Int("blocks", len(blocks)))
	if len(blocks) == 0 {
		return Label, nil
	}

	exs := x.extractor.Extract(ctx, blocks)
	matched := x.match(EntityNames(exs))
	span.SetAttributes(attribute.Int("matched_nodes", len(matched)))
	if len(matched) == 0 {
		return fallback(blocks), nil
	}

	lines := x.relationLines(matched)
	if len(lines) == 0 {
		x.log.Debug("matched entities have no direct relations", "matched", len(matched))
		return fallback(blocks), nil
	}
	return Label + strings.Join(lines, ".\n"), nil
}

func fallback(blocks []string) string {
	return Label + strings.Join(blocks, ".\n")
}

// match maps mentions onto node ids, returned in ascending order.
func (x *Expander) match(mentions []string) []int64 {
	names := x.graph.Names()
	set := map[int64]bool{}
	for _, m := range mentions {
		best, err := MatchOne(m, names)
		if err != nil {
			break
		}
		if best.Score < x.cfg.MinMatchScore {
			x.log.Debug("entity match below threshold", "mention", m, "candidate", best.Name, "score", best.Score)
			continue
		}
		set[x.graph.IDAt(best.Index)] = true
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// relationLines collects the direct relations between each matched node and
// its most similar nodes, grouped per source as "source: rel target, ...".
func (x *Expander) relationLines(matched []int64) []string {
	grouped := map[string][]string{}
	seen := map[string]bool{}
	add := func(src, tgt int64, rel string) {
		srcName, ok1 := x.graph.Name(src)
		tgtName, ok2 := x.graph.Name(tgt)
		if !ok1 || !ok2 {
			return
		}
		entry := rel + " " + tgtName
		key := srcName + "\x00" + entry
		if seen[key] {
			return
		}
		seen[key] = true
		grouped[srcName] = append(grouped[srcName], entry)
	}

	for _, id := range matched {
		for _, sim := range x.graph.Similar(id, x.cfg.GraphK) {
			rel, ok := x.graph.Relation(id, sim)
			if !ok {
				continue
			}
			if x.graph.IsSource(id) {
				add(id, sim, rel)
			} else {
				add(sim, id, rel)
			}
		}
	}

	uniq := map[string]bool{}
	for src, rels := range grouped {
		uniq[src+": "+strings.Join(rels, ", ")] = true
	}
	lines := make([]string, 0, len(uniq))
	for l := range uniq {
		lines = append(lines, l)
	}
	sort.Strings(lines)
	return lines
}
