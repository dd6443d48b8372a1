package assistant

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func countingFactory(built *int) SessionFactory {
	return func(id string) (*Session, error) {
		*built++
		return &Session{ID: id}, nil
	}
}

func TestSessionsReuseAndDefault(t *testing.T) {
	var built int
	s := NewSessions(countingFactory(&built))
	a, err := s.Get("  ")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if a.ID != DefaultSessionID {
		t.Fatalf("blank id: want=%q got=%q", DefaultSessionID, a.ID)
	}
	b, _ := s.Get(DefaultSessionID)
	if a != b || built != 1 {
		t.Fatalf("reuse: same=%v built=%d", a == b, built)
	}
}

func TestSessionsLimitEvictsLeastRecentlyUsed(t *testing.T) {
	var built int
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := NewSessions(countingFactory(&built), WithSessionLimit(2), withSessionClock(clock.now))

	first, _ := s.Get("a")
	clock.advance(time.Second)
	_, _ = s.Get("b")
	clock.advance(time.Second)
	_, _ = s.Get("a")
	clock.advance(time.Second)
	_, _ = s.Get("c")

	if s.Len() != 2 {
		t.Fatalf("len: want=2 got=%d", s.Len())
	}
	again, _ := s.Get("a")
	if again != first {
		t.Fatalf("recently used session was evicted")
	}
	if built != 3 {
		t.Fatalf("built: want=3 got=%d", built)
	}
	_, _ = s.Get("b")
	if built != 4 {
		t.Fatalf("evicted session not rebuilt: built=%d", built)
	}
}

func TestSessionsIdleTTL(t *testing.T) {
	var built int
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	s := NewSessions(countingFactory(&built), WithSessionIdleTTL(time.Minute), withSessionClock(clock.now))

	old, _ := s.Get("a")
	_, _ = s.Get("b")
	clock.advance(30 * time.Second)
	_, _ = s.Get("b")
	clock.advance(45 * time.Second)

	fresh, _ := s.Get("a")
	if fresh == old {
		t.Fatalf("idle session survived past ttl")
	}
	if s.Len() != 2 {
		t.Fatalf("len: want=2 got=%d", s.Len())
	}

	clock.advance(2 * time.Minute)
	_, _ = s.Get("c")
	if s.Len() != 1 {
		t.Fatalf("expired sessions not swept: len=%d", s.Len())
	}
}

func TestSessionsFactoryError(t *testing.T) {
	boom := errors.New("boom")
	s := NewSessions(func(string) (*Session, error) { return nil, boom })
	if _, err := s.Get("x"); !errors.Is(err, boom) {
		t.Fatalf("err: want=boom got=%v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("failed session stored")
	}
}
