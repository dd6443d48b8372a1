package graphrag

import (
	"errors"
	"testing"
)

func TestMatchOneEmptyCandidates(t *testing.T) {
	if _, err := MatchOne("iPhone 15", nil); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("err: want=ErrNoCandidates got=%v", err)
	}
}

func TestMatchOneExactAndCaseInsensitive(t *testing.T) {
	names := []string{"Samsung Galaxy S24", "iPhone 15 Pro Max", "iPhone 15"}
	m, err := MatchOne("IPHONE  15", names)
	if err != nil {
		t.Fatalf("MatchOne: %v", err)
	}
	if m.Name != "iPhone 15" || m.Index != 2 || m.Score != 100 {
		t.Fatalf("match: got=%+v", m)
	}
}

func TestMatchOneToleratesTypos(t *testing.T) {
	names := []string{"Màu đen", "Samsung Galaxy S24 Ultra", "Xiaomi Redmi Note 13"}
	m, _ := MatchOne("Samsng Galaxy S24 Ultra", names)
	if m.Index != 1 {
		t.Fatalf("typo: want index=1 got=%+v", m)
	}
}

func TestMatchOneTokenOrder(t *testing.T) {
	names := []string{"Pro Max", "Max Pro iPhone 15"}
	m, _ := MatchOne("iPhone 15 Pro Max", names)
	if m.Index != 1 {
		t.Fatalf("token order: want index=1 got=%+v", m)
	}
}

func TestMatchOneTieKeepsFirst(t *testing.T) {
	m, _ := MatchOne("abc", []string{"abd", "abe"})
	if m.Index != 0 {
		t.Fatalf("tie: want index=0 got=%d", m.Index)
	}
}

func TestMatchOneAlwaysReturnsSomething(t *testing.T) {
	m, err := MatchOne("zzzz", []string{"iPhone"})
	if err != nil || m.Index != 0 {
		t.Fatalf("unrelated: want index=0 got=%+v err=%v", m, err)
	}
	if m.Score >= 50 {
		t.Fatalf("unrelated score: want low got=%v", m.Score)
	}
}

func TestPartialRatioSubstring(t *testing.T) {
	if got := partialRatio("galaxy", "samsung galaxy s24"); got != 100 {
		t.Fatalf("partial: want=100 got=%v", got)
	}
	if got := Score("galaxy", "samsung galaxy s24"); got != 90 {
		t.Fatalf("scaled partial: want=90 got=%v", got)
	}
}
