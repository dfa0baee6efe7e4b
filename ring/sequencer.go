package ring

import "sync"

// Sequencer is the claim/publish protocol that assigns producer slots
// and tracks which slots have been made visible to consumers. Two
// implementations exist: SingleProducerSequencer for exactly one
// producer goroutine, and MultiProducerSequencer for any number of
// concurrent producers.
type Sequencer interface {
	// Next claims n sequences, blocking (per the configured
	// WaitStrategy's Gate policy) until the claim would not overwrite
	// an unconsumed slot. It returns the highest sequence claimed;
	// the claimed range is [returned-n+1, returned].
	Next(n int64) int64

	// TryNext is the non-blocking form of Next: it returns
	// ErrInsufficientCapacity instead of waiting.
	TryNext(n int64) (int64, error)

	// Publish makes sequences [lo, hi] visible to consumers.
	Publish(lo, hi int64)

	// IsAvailable reports whether sequence has been published.
	IsAvailable(sequence int64) bool

	// GetHighestPublishedSequence finds the highest sequence in
	// [lowerBound, availableSequence] such that every sequence from
	// lowerBound up to and including it has been published.
	GetHighestPublishedSequence(lowerBound, availableSequence int64) int64

	// Cursor is the highest sequence known to be safely readable.
	Cursor() int64

	// Capacity is the ring's fixed slot count, N.
	Capacity() int64

	// RemainingCapacity is a snapshot of how many further sequences
	// could be claimed right now without waiting.
	RemainingCapacity() int64

	// AddGatingSequences registers consumer sequences this sequencer
	// must not let a producer claim past. Must be called before any
	// producer publishes.
	AddGatingSequences(sequences ...*Sequence)

	// RemoveGatingSequence deregisters a gating sequence, reporting
	// whether it was present. Safe only after the owning consumer has
	// halted.
	RemoveGatingSequence(sequence *Sequence) bool

	// NewBarrier builds a SequenceBarrier gated on this sequencer's
	// cursor and, additionally, on dependents (upstream consumers a
	// new consumer must not outrun).
	NewBarrier(dependents ...*Sequence) *SequenceBarrier
}

// gatingSequences holds the consumer sequences a sequencer consults
// to refuse wrap-around. Registration/removal is not hot-path: per
// the core's lifecycle rules, registration happens before any
// producer publishes and removal only after a consumer halts, so a
// mutex here never contends with Next/Publish in practice.
type gatingSequences struct {
	mu   sync.RWMutex
	seqs []*Sequence
}

func (g *gatingSequences) add(sequences ...*Sequence) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seqs = append(g.seqs, sequences...)
}

func (g *gatingSequences) remove(sequence *Sequence) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, s := range g.seqs {
		if s == sequence {
			g.seqs = append(g.seqs[:i], g.seqs[i+1:]...)
			return true
		}
	}
	return false
}

// min returns MinSequence over the registered gating sequences, or
// math.MaxInt64 if none are registered — the convention that "no
// gating consumers" imposes no ceiling on producer claims. A caller
// that forgets to register a consumer's sequence gets an unbounded
// ring, not a deadlock; that mirrors the upstream disruptor's own
// documented gotcha rather than inventing new behavior.
func (g *gatingSequences) min() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return MinSequence(g.seqs)
}

func (g *gatingSequences) snapshot() []*Sequence {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Sequence, len(g.seqs))
	copy(out, g.seqs)
	return out
}
