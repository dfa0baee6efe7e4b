package ring

import (
	"sync"
	"testing"
)

// TestMultiProducerSequencerConcurrentClaimsAreUnique hammers Next from
// many goroutines with no gating consumer registered. With no gating
// sequence, RemainingCapacity never drops and claims never have to
// wait on a consumer, so every one of the n claims must still resolve
// to a distinct sequence in [0, n).
func TestMultiProducerSequencerConcurrentClaimsAreUnique(t *testing.T) {
	const n = 10000
	seq := NewMultiProducerSequencer(16384, NewYieldingWaitStrategy())

	claimed := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			hi := seq.Next(1)
			claimed[i] = hi
			seq.Publish(hi, hi)
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, c := range claimed {
		if seen[c] {
			t.Fatalf("sequence %d claimed twice", c)
		}
		seen[c] = true
	}
	if len(seen) != n {
		t.Fatalf("want %d unique claims, got %d", n, len(seen))
	}
	if got := seq.Cursor(); got != n-1 {
		t.Fatalf("want cursor %d, got %d", n-1, got)
	}
}

// TestMultiProducerSequencerOutOfOrderPublish verifies that when a
// higher sequence in a claimed batch publishes before a lower one,
// GetHighestPublishedSequence only reports the contiguous prefix that
// is actually safe to consume.
func TestMultiProducerSequencerOutOfOrderPublish(t *testing.T) {
	seq := NewMultiProducerSequencer(8, BusySpinWaitStrategy{})

	hi := seq.Next(3) // claims 0,1,2
	lo := hi - 2

	seq.Publish(2, 2) // publish the tail out of order
	if got := seq.GetHighestPublishedSequence(lo, hi); got != lo-1 {
		t.Fatalf("want %d (nothing contiguous yet), got %d", lo-1, got)
	}

	seq.Publish(0, 0)
	if got := seq.GetHighestPublishedSequence(lo, hi); got != 0 {
		t.Fatalf("want 0, got %d", got)
	}

	seq.Publish(1, 1)
	if got := seq.GetHighestPublishedSequence(lo, hi); got != 2 {
		t.Fatalf("want 2 once the gap fills in, got %d", got)
	}
}

func TestMultiProducerSequencerGatesOnConsumer(t *testing.T) {
	seq := NewMultiProducerSequencer(4, NewYieldingWaitStrategy())
	consumer := NewSequence(InitialSequenceValue)
	seq.AddGatingSequences(consumer)

	hi := seq.Next(4)
	seq.Publish(0, hi)

	if _, err := seq.TryNext(1); err != ErrInsufficientCapacity {
		t.Fatalf("want ErrInsufficientCapacity, got %v", err)
	}

	consumer.Set(0)
	if got, err := seq.TryNext(1); err != nil || got != 4 {
		t.Fatalf("want (4, nil) once a slot frees up, got (%d, %v)", got, err)
	}
}
