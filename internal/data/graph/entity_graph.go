package graph

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
	"github.com/hedspi/phone-assistant/internal/platform/neo4jdb"
)

// relationTypePattern limits relationship types to what can be safely
// backtick-quoted into a Cypher statement.
var relationTypePattern = regexp.MustCompile(`^[\p{L}\p{N}_]+$`)

// EntityGraph reads and writes the (:Entity)-[:RELATION]->(:Entity) graph.
type EntityGraph struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewEntityGraph(client *neo4jdb.Client, log *logger.Logger) *EntityGraph {
	return &EntityGraph{client: client, log: log.With("store", "EntityGraph")}
}

func (g *EntityGraph) ready() bool {
	return g != nil && g.client != nil && g.client.Driver != nil
}

func (g *EntityGraph) LoadNodes(ctx context.Context) ([]types.GraphNode, error) {
	if !g.ready() {
		return nil, nil
	}
	recs, err := g.read(ctx, `MATCH (n:Entity) RETURN id(n) AS id, n.name AS name`, nil)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	out := make([]types.GraphNode, 0, len(recs))
	for _, rec := range recs {
		id, ok := int64Value(rec, "id")
		if !ok {
			continue
		}
		name, _ := stringValue(rec, "name")
		out = append(out, types.GraphNode{ID: id, Name: name})
	}
	return out, nil
}

func (g *EntityGraph) LoadEdges(ctx context.Context) ([]types.GraphEdge, error) {
	if !g.ready() {
		return nil, nil
	}
	recs, err := g.read(ctx, `MATCH (n)-[r]->(m) RETURN id(n) AS source, id(m) AS target, type(r) AS relation`, nil)
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	out := make([]types.GraphEdge, 0, len(recs))
	for _, rec := range recs {
		src, ok1 := int64Value(rec, "source")
		tgt, ok2 := int64Value(rec, "target")
		if !ok1 || !ok2 {
			continue
		}
		rel, _ := stringValue(rec, "relation")
		out = append(out, types.GraphEdge{Source: src, Target: tgt, Relation: rel})
	}
	return out, nil
}

// LoadNodeEmbeddings returns the trained node vectors stored on the
// `embedding` property. Nodes without one are omitted.
func (g *EntityGraph) LoadNodeEmbeddings(ctx context.Context) (map[int64][]float32, error) {
	if !g.ready() {
		return map[int64][]float32{}, nil
	}
	recs, err := g.read(ctx, `MATCH (n:Entity) WHERE n.embedding IS NOT NULL RETURN id(n) AS id, n.embedding AS embedding`, nil)
	if err != nil {
		return nil, fmt.Errorf("load node embeddings: %w", err)
	}
	out := make(map[int64][]float32, len(recs))
	for _, rec := range recs {
		id, ok := int64Value(rec, "id")
		if !ok {
			continue
		}
		raw, _ := rec.Get("embedding")
		vec := floatSlice(raw)
		if len(vec) == 0 {
			continue
		}
		out[id] = vec
	}
	return out, nil
}

// MergeExtraction writes every relationship triple of ex as two Entity nodes
// joined by a typed edge. Triples whose relation cannot be used as a type are skipped.
func (g *EntityGraph) MergeExtraction(ctx context.Context, ex types.Extraction) (int, error) {
	if !g.ready() {
		return 0, fmt.Errorf("neo4j entity graph: client not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	byRelation := map[string][]map[string]any{}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, t := range ex.Relationships {
		subj := strings.TrimSpace(t.Subject)
		obj := strings.TrimSpace(t.Object)
		rel := strings.TrimSpace(t.Relation)
		if subj == "" || obj == "" || !relationTypePattern.MatchString(rel) {
			if g.log != nil {
				g.log.Debug("skipping triple", "subject", subj, "relation", rel, "object", obj)
			}
			continue
		}
		byRelation[rel] = append(byRelation[rel], map[string]any{
			"subject":   subj,
			"object":    obj,
			"synced_at": now,
		})
	}
	if len(byRelation) == 0 {
		return 0, nil
	}
	relations := make([]string, 0, len(byRelation))
	for rel := range byRelation {
		relations = append(relations, rel)
	}
	sort.Strings(relations)

	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	written := 0
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, rel := range relations {
			res, err := tx.Run(ctx, `
UNWIND $rows AS row
MERGE (a:Entity {name: row.subject})
MERGE (b:Entity {name: row.object})
MERGE (a)-[e:`+"`"+rel+"`"+`]->(b)
SET e.synced_at = row.synced_at
`, map[string]any{"rows": byRelation[rel]})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
			written += len(byRelation[rel])
		}
		return nil, nil
	})
	if err != nil {
		return 0, fmt.Errorf("merge extraction: %w", err)
	}
	return written, nil
}

// SetNodeEmbeddings stores trained vectors on the `embedding` property of the
// Entity nodes named by the map keys. It returns how many nodes were updated;
// names with no matching node are ignored.
func (g *EntityGraph) SetNodeEmbeddings(ctx context.Context, byName map[string][]float32) (int, error) {
	if !g.ready() {
		return 0, fmt.Errorf("neo4j entity graph: client not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	rows := embeddingRows(byName)
	if len(rows) == 0 {
		return 0, nil
	}

	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
UNWIND $rows AS row
MATCH (n:Entity {name: row.name})
SET n.embedding = row.embedding
RETURN count(n) AS updated
`, map[string]any{"rows": rows})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := int64Value(rec, "updated")
		return int(n), nil
	})
	if err != nil {
		return 0, fmt.Errorf("set node embeddings: %w", err)
	}
	updated, _ := out.(int)
	return updated, nil
}

// embeddingRows turns a name->vector map into Cypher parameters ordered by
// name. Blank names and empty vectors are dropped.
func embeddingRows(byName map[string][]float32) []map[string]any {
	names := make([]string, 0, len(byName))
	for name, vec := range byName {
		if strings.TrimSpace(name) != "" && len(vec) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	rows := make([]map[string]any, 0, len(names))
	for _, name := range names {
		vec := make([]float64, len(byName[name]))
		for i, x := range byName[name] {
			vec[i] = float64(x)
		}
		rows = append(rows, map[string]any{"name": strings.TrimSpace(name), "embedding": vec})
	}
	return rows
}

// EnsureSchema creates the Entity name constraint. Failures are logged and ignored.
func (g *EntityGraph) EnsureSchema(ctx context.Context) {
	if !g.ready() {
		return
	}
	session := g.client.WriteSession(ctx)
	defer session.Close(ctx)
	if res, err := session.Run(ctx, `CREATE CONSTRAINT entity_name_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.name IS UNIQUE`, nil); err != nil {
		g.log.Warn("neo4j schema init failed (continuing)", "error", err)
	} else {
		_, _ = res.Consume(ctx)
	}
}

func (g *EntityGraph) read(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	session := g.client.ReadSession(ctx)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	recs, _ := out.([]*neo4j.Record)
	return recs, nil
}

func int64Value(rec *neo4j.Record, key string) (int64, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

func stringValue(rec *neo4j.Record, key string) (string, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func floatSlice(v any) []float32 {
	switch xs := v.(type) {
	case []float64:
		out := make([]float32, len(xs))
		for i, x := range xs {
			out[i] = float32(x)
		}
		return out
	case []any:
		out := make([]float32, 0, len(xs))
		for _, x := range xs {
			switch f := x.(type) {
			case float64:
				out = append(out, float32(f))
			case int64:
				out = append(out, float32(f))
			default:
				return nil
			}
		}
		return out
	}
	return nil
}
