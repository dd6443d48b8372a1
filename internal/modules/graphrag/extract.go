package graphrag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/sync/errgroup"

	types "github.com/hedspi/phone-assistant/internal/domain"
	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

// Completer is the slice of the LLM gateway the extractor needs.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

var (
	entityLine       = regexp.MustCompile(`^- (.+): (.+)$`)
	relationshipLine = regexp.MustCompile(`^- \(([^,]+), ([^,]+), ([^)]+)\)`)
	braceStripper    = strings.NewReplacer("{", "", "}", "")
)

// ExtractionPrompt asks for Vietnamese entities and relationships of text in
// the "Entities:" / "Relationships:" line format ParseExtraction reads.
func ExtractionPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Extract entities (nodes) and their relationships (edges) from the text below.")
	b.WriteString("Entities and relationships MUST be in Vietnamese\n")
	b.WriteString("Follow this format:\n\n")
	b.WriteString("Entities:\n- {Entity}: {Type}\n\n")
	b.WriteString("Relationships:\n- ({Entity1}, {RelationshipType}, {Entity2})\n\n")
	b.WriteString("Text:\n\"" + text + "\"\n\n")
	b.WriteString("Output:\nEntities:\n- {Entity}: {Type}\n...\n\n")
	b.WriteString("Relationships:\n- ({Entity1}, {RelationshipType}, {Entity2})\n")
	return b.String()
}

type section int

const (
	sectionNone section = iota
	sectionEntities
	sectionRelationships
)

func sectionHeader(line string) (section, bool) {
	h := strings.ToLower(strings.Trim(line, "*#: \t"))
	switch h {
	case "entities", "entity":
		return sectionEntities, true
	case "relationships", "relationship", "relations":
		return sectionRelationships, true
	}
	return sectionNone, false
}

// ParseExtraction reads one extraction response. It never fails: missing
// sections give empty lists and lines of the wrong shape are skipped. Before
// any section header, lines are classified by shape alone. Entities are
// returned in response order, repeats included.
func ParseExtraction(raw string) types.Extraction {
	out := types.Extraction{Entities: []types.Entity{}, Relationships: []types.Triple{}}
	current := sectionNone

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if s, ok := sectionHeader(line); ok {
			current = s
			continue
		}

		if current != sectionEntities {
			if t, ok := parseTriple(line); ok {
				out.Relationships = append(out.Relationships, t)
				continue
			}
		}
		if current != sectionRelationships {
			if e, ok := parseEntity(line); ok {
				out.Entities = append(out.Entities, e)
			}
		}
	}
	return out
}

func parseEntity(line string) (types.Entity, bool) {
	m := entityLine.FindStringSubmatch(line)
	if m == nil {
		return types.Entity{}, false
	}
	name := strings.TrimSpace(m[1])
	typ := strings.TrimSpace(m[2])
	if name == "" || strings.HasPrefix(name, "(") {
		return types.Entity{}, false
	}
	return types.Entity{Name: name, Type: typ}, true
}

func parseTriple(line string) (types.Triple, bool) {
	m := relationshipLine.FindStringSubmatch(line)
	if m == nil {
		return types.Triple{}, false
	}
	t := types.Triple{
		Subject:  braceStripper.Replace(strings.TrimSpace(m[1])),
		Relation: SanitizeRelation(m[2]),
		Object:   braceStripper.Replace(strings.TrimSpace(m[3])),
	}
	if t.Subject == "" || t.Relation == "" || t.Object == "" {
		return types.Triple{}, false
	}
	return t, true
}

// SanitizeRelation turns a free-text relation into an edge type:
// spaces become underscores, letters are upper-cased and braces are dropped.
func SanitizeRelation(rel string) string {
	rel = strings.ReplaceAll(strings.TrimSpace(rel), " ", "_")
	return braceStripper.Replace(strings.ToUpper(rel))
}

// Extractor fans extraction calls out over a bounded pool.
type Extractor struct {
	llm         Completer
	log         *logger.Logger
	concurrency int
}

func NewExtractor(llm Completer, log *logger.Logger, concurrency int) *Extractor {
	if concurrency <= 0 {
		concurrency = 5
	}
	return &Extractor{llm: llm, log: log.With("module", "Extractor"), concurrency: concurrency}
}

// Extract runs one call per block. Results line up with blocks; a failed or
// blank block yields an empty extraction and does not stop its siblings.
func (x *Extractor) Extract(ctx context.Context, blocks []string) []types.Extraction {
	out := make([]types.Extraction, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(x.concurrency)
	for i, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}
		g.Go(func() error {
			raw, err := x.llm.Complete(gctx, ExtractionPrompt(block))
			if err != nil {
				x.log.Warn("extraction failed", "block", i, "error", err)
				return nil
			}
			out[i] = ParseExtraction(raw)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// ExtractOne is the single-document form used by the offline graph build.
func (x *Extractor) ExtractOne(ctx context.Context, text string) (types.Extraction, error) {
	raw, err := x.llm.Complete(ctx, ExtractionPrompt(text))
	if err != nil {
		return types.Extraction{}, fmt.Errorf("extract: %w", err)
	}
	return ParseExtraction(raw), nil
}

// EntityNames flattens the entity names of every extraction, keeping duplicates.
func EntityNames(exs []types.Extraction) []string {
	var names []string
	for _, ex := range exs {
		for _, e := range ex.Entities {
			names = append(names, e.Name)
		}
	}
	return names
}
