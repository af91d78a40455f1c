package id

import "testing"

func TestNextIsMonotonic(t *testing.T) {
	g := NewGenerator()
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		cur := g.Next()
		if cur.Compare(prev) <= 0 {
			t.Fatalf("id %s not greater than %s", cur, prev)
		}
		prev = cur
	}
}

func TestClockGoingBackwards(t *testing.T) {
	orig := NowMs
	defer func() { NowMs = orig }()

	now := int64(5000)
	NowMs = func() int64 { return now }
	g := NewGenerator()
	a := g.Next()
	now = 4000 // clock regresses
	b := g.Next()
	if b.Compare(a) <= 0 {
		t.Fatalf("expected monotonic ids across clock regression")
	}
	if b.TimeMs() != 5000 {
		t.Fatalf("expected reused timestamp, got %d", b.TimeMs())
	}
}

func TestParseRoundTrip(t *testing.T) {
	g := NewGenerator()
	a := g.Next()
	parsed, err := Parse(a.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Compare(a) != 0 {
		t.Fatalf("round trip mismatch")
	}
	if _, err := Parse("zz"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}
