package ring

import (
	"math"
	"sync/atomic"
)

// InitialSequenceValue is the value a Sequence holds before anything
// has been published through it.
const InitialSequenceValue int64 = -1

// cacheLinePad puts 56 bytes on each side of a Sequence's value (the
// struct is 120 bytes), so no 64-byte cache line holding the value
// also holds whatever the caller places next to it in memory.
type cacheLinePad [7]int64

// Sequence is a padded, atomic, monotonically increasing counter. One
// goroutine owns Set and AddAndGet; CompareAndSwap may be raced by
// several (the multi-producer claim); any number of goroutines may
// read it (Load). Get is a relaxed read and is only safe from the owner.
type Sequence struct {
	_     cacheLinePad
	value int64
	_     cacheLinePad
}

// NewSequence returns a Sequence initialized to initial.
func NewSequence(initial int64) *Sequence {
	s := &Sequence{}
	atomic.StoreInt64(&s.value, initial)
	return s
}

// Get is a relaxed read, valid only from the sequence's owner.
func (s *Sequence) Get() int64 {
	return s.value
}

// Load is an acquire read, paired with Set's release write. Any
// slot writes a producer made before publishing are visible to a
// consumer that observes the published sequence via Load.
func (s *Sequence) Load() int64 {
	return atomic.LoadInt64(&s.value)
}

// Set is a release write.
func (s *Sequence) Set(value int64) {
	atomic.StoreInt64(&s.value, value)
}

// AddAndGet atomically adds delta and returns the new value. Used by
// the owner only.
func (s *Sequence) AddAndGet(delta int64) int64 {
	return atomic.AddInt64(&s.value, delta)
}

// CompareAndSwap performs the CAS the multi-producer sequencer uses to
// arbitrate concurrent claims. A successful CAS observes acquire and
// publishes release, matching the spec's ordering contract.
func (s *Sequence) CompareAndSwap(old, new int64) bool {
	return atomic.CompareAndSwapInt64(&s.value, old, new)
}

// MinSequence returns the smallest Load() across sequences, or
// math.MaxInt64 if sequences is empty (the convention that "no gating
// consumers" imposes no ceiling on producer claims).
func MinSequence(sequences []*Sequence) int64 {
	minimum := int64(math.MaxInt64)
	for _, s := range sequences {
		if v := s.Load(); v < minimum {
			minimum = v
		}
	}
	return minimum
}
