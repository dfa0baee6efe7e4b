package ring

import (
	"math"
	"testing"
)

func TestSequenceLoadStore(t *testing.T) {
	s := NewSequence(InitialSequenceValue)
	if got := s.Load(); got != -1 {
		t.Fatalf("want -1, got %d", got)
	}
	s.Set(42)
	if got := s.Load(); got != 42 {
		t.Fatalf("want 42, got %d", got)
	}
	if got := s.Get(); got != 42 {
		t.Fatalf("want 42, got %d", got)
	}
}

func TestSequenceCompareAndSwap(t *testing.T) {
	s := NewSequence(10)
	if !s.CompareAndSwap(10, 20) {
		t.Fatal("expected CAS from the current value to succeed")
	}
	if s.CompareAndSwap(10, 30) {
		t.Fatal("expected CAS from a stale value to fail")
	}
	if got := s.Load(); got != 20 {
		t.Fatalf("want 20, got %d", got)
	}
}

func TestSequenceAddAndGet(t *testing.T) {
	s := NewSequence(0)
	if got := s.AddAndGet(5); got != 5 {
		t.Fatalf("want 5, got %d", got)
	}
	if got := s.AddAndGet(5); got != 10 {
		t.Fatalf("want 10, got %d", got)
	}
}

func TestMinSequence(t *testing.T) {
	a, b, c := NewSequence(5), NewSequence(2), NewSequence(9)
	if got := MinSequence([]*Sequence{a, b, c}); got != 2 {
		t.Fatalf("want 2, got %d", got)
	}
	if got := MinSequence(nil); got != math.MaxInt64 {
		t.Fatalf("want MaxInt64 for no gating consumers, got %d", got)
	}
}
