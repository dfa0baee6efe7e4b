package ring

import "math"

// SingleProducerSequencer is the claim/publish protocol for exactly
// one producer goroutine. It keeps nextValue and a cached gating
// sequence as plain (non-atomic) fields: a single producer is the only
// writer, so nothing here needs to be atomic except the cursor that
// consumers read. Calling Next/TryNext/Publish from more than one
// goroutine concurrently is a programmer error and is not detected.
type SingleProducerSequencer struct {
	capacity     int64
	waitStrategy WaitStrategy
	cursor       *Sequence
	gating       gatingSequences

	nextValue            int64
	cachedGatingSequence int64
}

// NewSingleProducerSequencer builds a sequencer over a ring of the
// given capacity (must be a power of two), using waitStrategy to park
// while a claim would overwrite unconsumed slots.
func NewSingleProducerSequencer(capacity int64, waitStrategy WaitStrategy) *SingleProducerSequencer {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic(ErrNotPowerOfTwo)
	}
	return &SingleProducerSequencer{
		capacity:             capacity,
		waitStrategy:         waitStrategy,
		cursor:               NewSequence(InitialSequenceValue),
		nextValue:            InitialSequenceValue,
		cachedGatingSequence: InitialSequenceValue,
	}
}

func (s *SingleProducerSequencer) Capacity() int64 { return s.capacity }

func (s *SingleProducerSequencer) Next(n int64) int64 {
	if n < 1 {
		panic("ring: n must be >= 1")
	}
	next := s.nextValue + n
	wrapPoint := next - s.capacity

	if wrapPoint > s.cachedGatingSequence {
		var retries int64
		for {
			gatingMin := s.gating.min()
			if wrapPoint <= gatingMin {
				s.cachedGatingSequence = gatingMin
				break
			}
			s.waitStrategy.Gate(retries)
			retries++
		}
	}

	s.nextValue = next
	return next
}

func (s *SingleProducerSequencer) TryNext(n int64) (int64, error) {
	if n < 1 {
		panic("ring: n must be >= 1")
	}
	next := s.nextValue + n
	wrapPoint := next - s.capacity
	gatingMin := s.gating.min()
	if wrapPoint > gatingMin {
		return InitialSequenceValue, ErrInsufficientCapacity
	}
	s.cachedGatingSequence = gatingMin
	s.nextValue = next
	return next, nil
}

func (s *SingleProducerSequencer) Publish(lo, hi int64) {
	s.cursor.Set(hi)
	s.waitStrategy.SignalAll()
}

func (s *SingleProducerSequencer) IsAvailable(sequence int64) bool {
	return sequence <= s.cursor.Load()
}

// GetHighestPublishedSequence is trivial for SP: publishes are
// contiguous from -1 upward by construction, so the cursor already is
// the highest contiguous published sequence.
func (s *SingleProducerSequencer) GetHighestPublishedSequence(lowerBound, availableSequence int64) int64 {
	return availableSequence
}

func (s *SingleProducerSequencer) Cursor() int64 { return s.cursor.Load() }

func (s *SingleProducerSequencer) RemainingCapacity() int64 {
	consumed := s.gating.min()
	if consumed == math.MaxInt64 {
		return s.capacity
	}
	return s.capacity - (s.nextValue - consumed)
}

func (s *SingleProducerSequencer) AddGatingSequences(sequences ...*Sequence) {
	s.gating.add(sequences...)
}

func (s *SingleProducerSequencer) RemoveGatingSequence(sequence *Sequence) bool {
	return s.gating.remove(sequence)
}

func (s *SingleProducerSequencer) NewBarrier(dependents ...*Sequence) *SequenceBarrier {
	return newSequenceBarrier(s, s.waitStrategy, dependents)
}
