package graph

import (
	"context"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

func TestFloatSlice(t *testing.T) {
	got := floatSlice([]any{1.5, int64(2), 0.25})
	if len(got) != 3 || got[0] != 1.5 || got[1] != 2 || got[2] != 0.25 {
		t.Fatalf("floatSlice: got=%v", got)
	}
	if floatSlice([]any{"x"}) != nil {
		t.Fatalf("floatSlice: want nil for non-numeric")
	}
	if got := floatSlice([]float64{3}); len(got) != 1 || got[0] != 3 {
		t.Fatalf("floatSlice float64: got=%v", got)
	}
}

func TestRecordValues(t *testing.T) {
	rec := &neo4j.Record{Keys: []string{"id", "name", "missing"}, Values: []any{int64(7), "iPhone 15", nil}}
	if id, ok := int64Value(rec, "id"); !ok || id != 7 {
		t.Fatalf("id: want=7 got=%d ok=%v", id, ok)
	}
	if name, ok := stringValue(rec, "name"); !ok || name != "iPhone 15" {
		t.Fatalf("name: got=%q ok=%v", name, ok)
	}
	if _, ok := int64Value(rec, "missing"); ok {
		t.Fatalf("missing: want ok=false")
	}
}

func TestRelationTypePattern(t *testing.T) {
	for _, ok := range []string{"CÓ_MÀU", "HAS_PRICE", "GIÁ_2024"} {
		if !relationTypePattern.MatchString(ok) {
			t.Fatalf("%q: want match", ok)
		}
	}
	for _, bad := range []string{"", "A`B", "X Y", "A-B"} {
		if relationTypePattern.MatchString(bad) {
			t.Fatalf("%q: want no match", bad)
		}
	}
}

func TestUnconfiguredGraph(t *testing.T) {
	g := NewEntityGraph(nil, logger.Nop())
	nodes, err := g.LoadNodes(context.Background())
	if err != nil || len(nodes) != 0 {
		t.Fatalf("LoadNodes: want empty got=%v err=%v", nodes, err)
	}
	if _, err := g.MergeExtraction(context.Background(), types.Extraction{
		Relationships: []types.Triple{{Subject: "a", Relation: "R", Object: "b"}},
	}); err == nil {
		t.Fatalf("MergeExtraction: want error without client")
	}
	if _, err := g.SetNodeEmbeddings(context.Background(), map[string][]float32{"a": {1}}); err == nil {
		t.Fatalf("SetNodeEmbeddings: want error without client")
	}
}

func TestEmbeddingRows(t *testing.T) {
	rows := embeddingRows(map[string][]float32{
		"iPhone 15": {0.5, 1},
		"Màu hồng":  {0.25},
		"  ":        {1},
		"Trống":     nil,
	})
	if len(rows) != 2 {
		t.Fatalf("rows: want=2 got=%d (%v)", len(rows), rows)
	}
	if rows[0]["name"] != "Màu hồng" || rows[1]["name"] != "iPhone 15" {
		t.Fatalf("order: got=%v", rows)
	}
	vec, ok := rows[1]["embedding"].([]float64)
	if !ok || len(vec) != 2 || vec[0] != 0.5 || vec[1] != 1 {
		t.Fatalf("embedding: got=%#v", rows[1]["embedding"])
	}
}
