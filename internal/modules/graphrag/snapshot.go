package graphrag

import (
	"context"
	"fmt"
	"sort"

	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/pkg/vecmath"
)

// GraphSource enumerates the stored entity graph.
type GraphSource interface {
	LoadNodes(ctx context.Context) ([]types.GraphNode, error)
	LoadEdges(ctx context.Context) ([]types.GraphEdge, error)
	LoadNodeEmbeddings(ctx context.Context) (map[int64][]float32, error)
}

type edgeKey struct{ src, tgt int64 }

// Snapshot is an immutable in-memory copy of the graph taken at startup.
type Snapshot struct {
	ids      []int64
	names    []string
	nameByID map[int64]string
	edges    map[edgeKey]string
	sources  map[int64]bool
	unit     map[int64][]float32
	embedded []int64
	edgeN    int
}

func LoadSnapshot(ctx context.Context, src GraphSource) (*Snapshot, error) {
	nodes, err := src.LoadNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph snapshot: %w", err)
	}
	edges, err := src.LoadEdges(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph snapshot: %w", err)
	}
	embs, err := src.LoadNodeEmbeddings(ctx)
	if err != nil {
		return nil, fmt.Errorf("graph snapshot: %w", err)
	}
	return NewSnapshot(nodes, edges, embs), nil
}

// NewSnapshot indexes nodes by id, keeps the last relation seen per
// (source, target) pair and L2-normalises every node embedding.
func NewSnapshot(nodes []types.GraphNode, edges []types.GraphEdge, embeddings map[int64][]float32) *Snapshot {
	s := &Snapshot{
		nameByID: make(map[int64]string, len(nodes)),
		edges:    make(map[edgeKey]string, len(edges)),
		sources:  map[int64]bool{},
		unit:     make(map[int64][]float32, len(embeddings)),
		edgeN:    len(edges),
	}
	sorted := append([]types.GraphNode(nil), nodes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	for _, n := range sorted {
		if _, dup := s.nameByID[n.ID]; dup {
			continue
		}
		s.nameByID[n.ID] = n.Name
		s.ids = append(s.ids, n.ID)
		s.names = append(s.names, n.Name)
	}
	for _, e := range edges {
		s.edges[edgeKey{e.Source, e.Target}] = e.Relation
		s.sources[e.Source] = true
	}
	for id, v := range embeddings {
		if _, known := s.nameByID[id]; !known || len(v) == 0 {
			continue
		}
		s.unit[id] = vecmath.Normalize(v)
		s.embedded = append(s.embedded, id)
	}
	sort.Slice(s.embedded, func(i, j int) bool { return s.embedded[i] < s.embedded[j] })
	return s
}

func (s *Snapshot) NodeCount() int { return len(s.ids) }
func (s *Snapshot) EdgeCount() int { return s.edgeN }

// Names lists node names in ascending id order; index i belongs to IDAt(i).
func (s *Snapshot) Names() []string { return s.names }

func (s *Snapshot) IDAt(i int) int64 { return s.ids[i] }

func (s *Snapshot) Name(id int64) (string, bool) {
	n, ok := s.nameByID[id]
	return n, ok
}

func (s *Snapshot) Relation(src, tgt int64) (string, bool) {
	r, ok := s.edges[edgeKey{src, tgt}]
	return r, ok
}

// IsSource reports whether id starts at least one edge.
func (s *Snapshot) IsSource(id int64) bool { return s.sources[id] }

// Similar returns up to k node ids ranked by cosine similarity of their
// normalised embeddings to id's. The node itself is included when ranked.
// Equal scores order by ascending id.
func (s *Snapshot) Similar(id int64, k int) []int64 {
	q, ok := s.unit[id]
	if !ok || k <= 0 {
		return nil
	}
	type scored struct {
		id    int64
		score float64
	}
	all := make([]scored, 0, len(s.embedded))
	for _, other := range s.embedded {
		all = append(all, scored{id: other, score: vecmath.Dot(q, s.unit[other])})
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].score > all[j].score })
	if k > len(all) {
		k = len(all)
	}
	out := make([]int64, k)
	for i := 0; i < k; i++ {
		out[i] = all[i].id
	}
	return out
}
