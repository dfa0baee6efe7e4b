package ring

import (
	"math"
	"math/bits"
	"sync/atomic"
)

// MultiProducerSequencer is the claim/publish protocol for any number
// of concurrent producer goroutines. Claims are arbitrated with a CAS
// loop on the cursor; because a successful CAS only proves someone
// reserved the range, not that every producer in it has finished
// writing, publication is additionally tracked per-slot in an
// availability buffer keyed by wrap count (sequence >> indexShift).
// That per-slot marker is the only safe witness of out-of-order
// completion across producers.
type MultiProducerSequencer struct {
	capacity     int64
	indexMask    int64
	indexShift   uint
	waitStrategy WaitStrategy

	cursor       *Sequence
	cachedGating *Sequence
	gating       gatingSequences

	// availableBuffer[i] holds the wrap count of the most recently
	// published sequence whose slot index is i. Initialized to -1 so
	// no slot reads as available before its first publish.
	availableBuffer []int32
}

// NewMultiProducerSequencer builds a sequencer over a ring of the
// given capacity (must be a power of two), using waitStrategy to park
// while a claim would overwrite unconsumed slots.
func NewMultiProducerSequencer(capacity int64, waitStrategy WaitStrategy) *MultiProducerSequencer {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic(ErrNotPowerOfTwo)
	}
	buf := make([]int32, capacity)
	for i := range buf {
		buf[i] = -1
	}
	return &MultiProducerSequencer{
		capacity:        capacity,
		indexMask:       capacity - 1,
		indexShift:      uint(bits.TrailingZeros64(uint64(capacity))),
		waitStrategy:    waitStrategy,
		cursor:          NewSequence(InitialSequenceValue),
		cachedGating:    NewSequence(InitialSequenceValue),
		availableBuffer: buf,
	}
}

func (s *MultiProducerSequencer) Capacity() int64 { return s.capacity }

func (s *MultiProducerSequencer) Next(n int64) int64 {
	if n < 1 {
		panic("ring: n must be >= 1")
	}
	var gateRetries int64
	for {
		current := s.cursor.Load()
		next := current + n
		wrapPoint := next - s.capacity
		cachedGating := s.cachedGating.Get()

		if wrapPoint > cachedGating || cachedGating > current {
			gatingMin := s.gating.min()
			if wrapPoint > gatingMin {
				s.waitStrategy.Gate(gateRetries)
				gateRetries++
				continue
			}
			s.cachedGating.Set(gatingMin)
		}

		if s.cursor.CompareAndSwap(current, next) {
			return next
		}
		// Lost the race against another producer; retry the claim
		// without counting it as a gating wait.
	}
}

func (s *MultiProducerSequencer) TryNext(n int64) (int64, error) {
	if n < 1 {
		panic("ring: n must be >= 1")
	}
	for {
		current := s.cursor.Load()
		next := current + n
		wrapPoint := next - s.capacity
		gatingMin := s.gating.min()
		if wrapPoint > gatingMin {
			return InitialSequenceValue, ErrInsufficientCapacity
		}
		if s.cursor.CompareAndSwap(current, next) {
			s.cachedGating.Set(gatingMin)
			return next, nil
		}
	}
}

func (s *MultiProducerSequencer) Publish(lo, hi int64) {
	for seq := lo; seq <= hi; seq++ {
		s.setAvailable(seq)
	}
	s.waitStrategy.SignalAll()
}

func (s *MultiProducerSequencer) setAvailable(sequence int64) {
	index := sequence & s.indexMask
	wrap := int32(sequence >> s.indexShift)
	atomic.StoreInt32(&s.availableBuffer[index], wrap)
}

func (s *MultiProducerSequencer) IsAvailable(sequence int64) bool {
	index := sequence & s.indexMask
	wrap := int32(sequence >> s.indexShift)
	return atomic.LoadInt32(&s.availableBuffer[index]) == wrap
}

// GetHighestPublishedSequence collapses a range of claimed-but-not-
// necessarily-published sequences into the contiguous consumable
// prefix: the smallest sequence in [lowerBound, availableSequence]
// that is not yet available, minus one — or availableSequence itself
// if every sequence in the range is available.
func (s *MultiProducerSequencer) GetHighestPublishedSequence(lowerBound, availableSequence int64) int64 {
	for seq := lowerBound; seq <= availableSequence; seq++ {
		if !s.IsAvailable(seq) {
			return seq - 1
		}
	}
	return availableSequence
}

func (s *MultiProducerSequencer) Cursor() int64 { return s.cursor.Load() }

func (s *MultiProducerSequencer) RemainingCapacity() int64 {
	consumed := s.gating.min()
	if consumed == math.MaxInt64 {
		return s.capacity
	}
	return s.capacity - (s.cursor.Load() - consumed)
}

func (s *MultiProducerSequencer) AddGatingSequences(sequences ...*Sequence) {
	s.gating.add(sequences...)
}

func (s *MultiProducerSequencer) RemoveGatingSequence(sequence *Sequence) bool {
	return s.gating.remove(sequence)
}

func (s *MultiProducerSequencer) NewBarrier(dependents ...*Sequence) *SequenceBarrier {
	return newSequenceBarrier(s, s.waitStrategy, dependents)
}
