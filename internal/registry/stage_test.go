package registry

import "testing"

func TestParseStageRoundTrip(t *testing.T) {
	for _, s := range Stages() {
		got, err := ParseStage(s.String())
		if err != nil || got != s {
			t.Fatalf("parse %q: %v %v", s.String(), got, err)
		}
	}
	if _, err := ParseStage("bogus"); err == nil {
		t.Fatal("expected error for unknown stage name")
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Stage
		ok       bool
	}{
		{StageRegistered, StageSpecified, true},
		{StageRegistered, StageApplied, true},
		{StageSpecified, StageRegistered, false},
		{StageSpecified, StageSpecified, false},
		{StageDispatched, StageInProgress, true},
		{StageDispatched, StageReviewed, false},
		{StageDispatched, StageApplied, false},
		{StageDispatched, StageRejected, true},
		{StageInProgress, StageApplied, true},
		{StageApplied, StageRejected, false},
		{StageRejected, StageSpecified, false},
		{StageReviewed, StageApplied, true},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.ok {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range Stages() {
		want := s == StageApplied || s == StageRejected
		if s.Terminal() != want {
			t.Errorf("%s.Terminal() = %v, want %v", s, s.Terminal(), want)
		}
	}
}
