package ring

import (
	"testing"
	"time"
)

func TestSingleProducerSequencerClaimPublish(t *testing.T) {
	seq := NewSingleProducerSequencer(8, BusySpinWaitStrategy{})
	hi := seq.Next(4)
	if hi != 3 {
		t.Fatalf("want 3, got %d", hi)
	}
	seq.Publish(0, hi)
	if !seq.IsAvailable(3) {
		t.Fatal("expected sequence 3 to be available")
	}
	if seq.Cursor() != 3 {
		t.Fatalf("want cursor 3, got %d", seq.Cursor())
	}
	if got := seq.GetHighestPublishedSequence(0, 3); got != 3 {
		t.Fatalf("SP publishes are always contiguous, want 3, got %d", got)
	}
}

func TestSingleProducerSequencerGatesOnConsumer(t *testing.T) {
	seq := NewSingleProducerSequencer(4, NewYieldingWaitStrategy())
	consumer := NewSequence(InitialSequenceValue)
	seq.AddGatingSequences(consumer)

	hi := seq.Next(4)
	seq.Publish(0, hi) // ring is now full: consumer hasn't moved

	claimed := make(chan int64, 1)
	go func() { claimed <- seq.Next(1) }()

	select {
	case <-claimed:
		t.Fatal("claim should have blocked: ring is full")
	case <-time.After(50 * time.Millisecond):
	}

	consumer.Set(0) // consumer frees slot 0

	select {
	case got := <-claimed:
		if got != 4 {
			t.Fatalf("want 4, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("claim never unblocked after consumer advanced")
	}
}

func TestSingleProducerSequencerTryNextInsufficientCapacity(t *testing.T) {
	seq := NewSingleProducerSequencer(4, BusySpinWaitStrategy{})
	consumer := NewSequence(InitialSequenceValue)
	seq.AddGatingSequences(consumer)

	hi := seq.Next(4)
	seq.Publish(0, hi)

	if _, err := seq.TryNext(1); err != ErrInsufficientCapacity {
		t.Fatalf("want ErrInsufficientCapacity, got %v", err)
	}

	consumer.Set(0)
	if _, err := seq.TryNext(1); err != nil {
		t.Fatalf("expected claim to succeed once a slot frees up, got %v", err)
	}
}

func TestSingleProducerSequencerRemainingCapacity(t *testing.T) {
	seq := NewSingleProducerSequencer(8, BusySpinWaitStrategy{})
	if got := seq.RemainingCapacity(); got != 8 {
		t.Fatalf("want 8 with no gating consumers registered, got %d", got)
	}

	consumer := NewSequence(InitialSequenceValue)
	seq.AddGatingSequences(consumer)
	hi := seq.Next(3)
	seq.Publish(0, hi)

	if got := seq.RemainingCapacity(); got != 5 {
		t.Fatalf("want 5, got %d", got)
	}
}
