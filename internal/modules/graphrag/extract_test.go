package graphrag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hedspi/phone-assistant/internal/platform/logger"
)

const sampleResponse = `Entities:
- iPhone 15: Điện thoại
- Màu hồng: Màu sắc
- iPhone 15: Điện thoại
- Trả góp 0%: Ưu đãi

Relationships:
- (iPhone 15, có màu, Màu hồng)
- ({iPhone 15}, được {ưu đãi}, Trả góp 0%)
`

func TestParseExtraction(t *testing.T) {
	ex := ParseExtraction(sampleResponse)
	if len(ex.Entities) != 4 {
		t.Fatalf("entities: want=4 got=%d (%v)", len(ex.Entities), ex.Entities)
	}
	if ex.Entities[2] != ex.Entities[0] {
		t.Fatalf("repeated entity: want=%+v got=%+v", ex.Entities[0], ex.Entities[2])
	}
	if ex.Entities[0].Name != "iPhone 15" || ex.Entities[0].Type != "Điện thoại" {
		t.Fatalf("entity[0]: got=%+v", ex.Entities[0])
	}
	if len(ex.Relationships) != 2 {
		t.Fatalf("relationships: want=2 got=%d", len(ex.Relationships))
	}
	r := ex.Relationships[0]
	if r.Subject != "iPhone 15" || r.Relation != "CÓ_MÀU" || r.Object != "Màu hồng" {
		t.Fatalf("relationship[0]: got=%+v", r)
	}
	r = ex.Relationships[1]
	if r.Subject != "iPhone 15" || r.Relation != "ĐƯỢC_ƯU_ĐÃI" || r.Object != "Trả góp 0%" {
		t.Fatalf("relationship[1]: got=%+v", r)
	}
}

func TestParseExtractionDegradesToEmpty(t *testing.T) {
	cases := []string{
		"",
		"I cannot help with that.",
		"Entities:\nRelationships:\n",
		"- (broken, line\n- no colon here\n* iPhone: Phone",
	}
	for _, raw := range cases {
		ex := ParseExtraction(raw)
		if ex.Entities == nil || ex.Relationships == nil {
			t.Fatalf("%q: want non-nil empty lists", raw)
		}
		if len(ex.Entities) != 0 || len(ex.Relationships) != 0 {
			t.Fatalf("%q: want empty got=%+v", raw, ex)
		}
	}
}

func TestParseExtractionMissingSection(t *testing.T) {
	ex := ParseExtraction("Entities:\n- Galaxy S24: Điện thoại\n- (A, b, C)\n")
	if len(ex.Entities) != 1 || len(ex.Relationships) != 0 {
		t.Fatalf("entities only: got=%+v", ex)
	}
	ex = ParseExtraction("**Relationships:**\n- (Galaxy S24, có giá, 20 triệu)\n- Foo: Bar\n")
	if len(ex.Entities) != 0 || len(ex.Relationships) != 1 {
		t.Fatalf("relationships only: got=%+v", ex)
	}
}

func TestSanitizeRelation(t *testing.T) {
	if got := SanitizeRelation("  có {giá} bán "); got != "CÓ_GIÁ_BÁN" {
		t.Fatalf("sanitize: got=%q", got)
	}
}

func TestExtractionPromptEmbedsText(t *testing.T) {
	p := ExtractionPrompt("iPhone 15 giá 20 triệu")
	if !strings.Contains(p, "Text:\n\"iPhone 15 giá 20 triệu\"") {
		t.Fatalf("prompt missing text: %s", p)
	}
	if !strings.Contains(p, "MUST be in Vietnamese") || !strings.Contains(p, "Relationships:") {
		t.Fatalf("prompt missing format: %s", p)
	}
}

type fakeCompleter struct {
	mu      sync.Mutex
	prompts []string
	fail    func(prompt string) bool
	reply   func(prompt string) string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.fail != nil && f.fail(prompt) {
		return "", errors.New("boom")
	}
	if f.reply != nil {
		return f.reply(prompt), nil
	}
	return "", nil
}

func TestExtractKeepsOrderAndAbsorbsFailures(t *testing.T) {
	llm := &fakeCompleter{
		fail: func(p string) bool { return strings.Contains(p, "doc-b") },
		reply: func(p string) string {
			switch {
			case strings.Contains(p, "doc-a"):
				return "Entities:\n- A: X\n"
			case strings.Contains(p, "doc-c"):
				return "Entities:\n- C: X\n"
			}
			return ""
		},
	}
	x := NewExtractor(llm, logger.Nop(), 2)
	got := x.Extract(context.Background(), []string{"doc-a", "doc-b", "  ", "doc-c"})
	if len(got) != 4 {
		t.Fatalf("len: want=4 got=%d", len(got))
	}
	if len(got[0].Entities) != 1 || got[0].Entities[0].Name != "A" {
		t.Fatalf("slot 0: got=%+v", got[0])
	}
	if len(got[1].Entities) != 0 || len(got[2].Entities) != 0 {
		t.Fatalf("failed/blank slots: want empty got=%+v %+v", got[1], got[2])
	}
	if len(got[3].Entities) != 1 || got[3].Entities[0].Name != "C" {
		t.Fatalf("slot 3: got=%+v", got[3])
	}
	if len(llm.prompts) != 3 {
		t.Fatalf("calls: want=3 got=%d", len(llm.prompts))
	}
	if names := EntityNames(got); len(names) != 2 || names[0] != "A" || names[1] != "C" {
		t.Fatalf("names: got=%v", names)
	}
}
