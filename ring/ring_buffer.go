package ring

import "math/bits"

// RingBuffer is a pre-allocated, power-of-two circular array of T.
// Slots are constructed once at NewRingBuffer and reused for the life
// of the buffer; ownership of a slot passes from producer to consumer
// through the sequencer's claim/publish protocol, never through the
// RingBuffer itself.
type RingBuffer[T any] struct {
	entries    []T
	mask       int64
	indexShift uint
}

// NewRingBuffer allocates a buffer of size entries, each constructed
// by factory (factory may be nil for a zero-value T). size must be a
// power of two; NewRingBuffer panics otherwise, since a non-power-of-
// two capacity is a programmer error caught at setup, never on the
// hot path (per the core's error handling design).
func NewRingBuffer[T any](size int64, factory func() T) *RingBuffer[T] {
	if size <= 0 || size&(size-1) != 0 {
		panic(ErrNotPowerOfTwo)
	}
	entries := make([]T, size)
	if factory != nil {
		for i := range entries {
			entries[i] = factory()
		}
	}
	return &RingBuffer[T]{
		entries:    entries,
		mask:       size - 1,
		indexShift: uint(bits.TrailingZeros64(uint64(size))),
	}
}

// Capacity returns N, the fixed slot count.
func (r *RingBuffer[T]) Capacity() int64 { return r.mask + 1 }

// IndexShift is log2(N), used by the multi-producer sequencer to
// derive a sequence's wrap count.
func (r *RingBuffer[T]) IndexShift() uint { return r.indexShift }

// Mask is N-1.
func (r *RingBuffer[T]) Mask() int64 { return r.mask }

// Get returns a pointer to the slot for sequence, allowing in-place
// mutation on publish and in-place reads on consume.
func (r *RingBuffer[T]) Get(sequence int64) *T {
	return &r.entries[sequence&r.mask]
}

// Slice returns the consumable Batch covering [lo, hi] inclusive. The
// batch may straddle a wrap point; Batch.At resolves each index
// through the same mask as Get, so straddling is transparent to the
// caller.
func (r *RingBuffer[T]) Slice(lo, hi int64) Batch[T] {
	return Batch[T]{rb: r, start: lo, end: hi}
}

// Batch is a view over a contiguous, inclusive sequence range
// delivered to a handler in one onBatch call.
type Batch[T any] struct {
	rb    *RingBuffer[T]
	start int64
	end   int64
}

// Start is the sequence of the first event in the batch.
func (b Batch[T]) Start() int64 { return b.start }

// End is the sequence of the last event in the batch.
func (b Batch[T]) End() int64 { return b.end }

// Len is the number of events in the batch.
func (b Batch[T]) Len() int64 {
	if b.end < b.start {
		return 0
	}
	return b.end - b.start + 1
}

// At returns a pointer to the i-th event in the batch (0-indexed),
// i.e. the slot for sequence Start()+i.
func (b Batch[T]) At(i int64) *T {
	return b.rb.Get(b.start + i)
}

// ForEach invokes fn for every sequence in the batch, in order,
// passing the sequence number and a pointer to its slot.
func (b Batch[T]) ForEach(fn func(sequence int64, event *T)) {
	for seq := b.start; seq <= b.end; seq++ {
		fn(seq, b.rb.Get(seq))
	}
}
