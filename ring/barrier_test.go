package ring

import (
	"testing"
	"time"
)

func TestSequenceBarrierWaitForReturnsOnPublish(t *testing.T) {
	seq := NewSingleProducerSequencer(8, NewBlockingWaitStrategy())
	barrier := seq.NewBarrier()

	result := make(chan int64, 1)
	go func() {
		hi, err := barrier.WaitFor(2)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		result <- hi
	}()

	time.Sleep(10 * time.Millisecond)
	hi := seq.Next(3)
	seq.Publish(0, hi)

	select {
	case got := <-result:
		if got != 2 {
			t.Fatalf("want 2, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitFor never returned after publish")
	}
}

func TestSequenceBarrierCancelReturnsErrAlert(t *testing.T) {
	seq := NewSingleProducerSequencer(8, NewBlockingWaitStrategy())
	barrier := seq.NewBarrier()

	result := make(chan error, 1)
	go func() {
		_, err := barrier.WaitFor(0)
		result <- err
	}()

	time.Sleep(10 * time.Millisecond)
	barrier.Cancel()

	select {
	case err := <-result:
		if err != ErrAlert {
			t.Fatalf("want ErrAlert, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitFor never returned after Cancel")
	}

	if !barrier.IsAlerted() {
		t.Fatal("expected barrier to remain alerted until reset")
	}
	barrier.ResetProcessing()
	if barrier.IsAlerted() {
		t.Fatal("expected ResetProcessing to clear the alert")
	}
}

func TestSequenceBarrierGatesOnDependents(t *testing.T) {
	seq := NewSingleProducerSequencer(8, BusySpinWaitStrategy{})
	dependent := NewSequence(InitialSequenceValue)
	barrier := seq.NewBarrier(dependent)

	hi := seq.Next(5)
	seq.Publish(0, hi) // cursor is now 4, but the dependent consumer hasn't moved

	done := make(chan int64, 1)
	go func() {
		got, _ := barrier.WaitFor(2)
		done <- got
	}()

	select {
	case <-done:
		t.Fatal("WaitFor should have been gated by the dependent sequence")
	case <-time.After(30 * time.Millisecond):
	}

	dependent.Set(2)
	select {
	case got := <-done:
		if got != 2 {
			t.Fatalf("want 2, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitFor never unblocked once the dependent advanced")
	}
}

func TestSequenceBarrierWaitForAlertedBeforeEntering(t *testing.T) {
	seq := NewSingleProducerSequencer(8, BusySpinWaitStrategy{})
	barrier := seq.NewBarrier()
	barrier.Cancel()

	if _, err := barrier.WaitFor(0); err != ErrAlert {
		t.Fatalf("want ErrAlert for an already-alerted barrier, got %v", err)
	}
}

func TestSequenceBarrierTimeout(t *testing.T) {
	seq := NewSingleProducerSequencer(8, NewTimeoutBlockingWaitStrategy(20*time.Millisecond))
	barrier := seq.NewBarrier()

	_, err := barrier.WaitFor(0)
	if err != ErrTimeout {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
}
