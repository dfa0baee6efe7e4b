package ring

import (
	"errors"
	"testing"
	"time"
)

// sumHandler accumulates every delivered int64 event into Sum. Set Fail
// to make OnBatch error the first time the batch contains FailAt. If
// NotifyAt is set and a delivered batch covers that sequence, notifyCh
// is closed once processing for that batch completes — used by tests
// to know it is safe to call Halt.
type sumHandler struct {
	Sum      int64
	Fail     bool
	FailAt   int64
	NotifyAt int64
	notifyCh chan struct{}

	failed   bool
	started  bool
	shutdown bool
}

func newSumHandler(notifyAt int64) *sumHandler {
	return &sumHandler{NotifyAt: notifyAt, notifyCh: make(chan struct{})}
}

func (h *sumHandler) OnStart() error                 { h.started = true; return nil }
func (h *sumHandler) OnShutdown() error               { h.shutdown = true; return nil }
func (h *sumHandler) OnTimeout(sequence int64) error { return nil }

func (h *sumHandler) OnBatch(batch Batch[int64]) error {
	var err error
	batch.ForEach(func(seq int64, event *int64) {
		if h.Fail && !h.failed && seq == h.FailAt {
			h.failed = true
			err = errors.New("boom")
			return
		}
		h.Sum += *event
	})
	if h.notifyCh != nil && batch.End() >= h.NotifyAt {
		select {
		case <-h.notifyCh:
		default:
			close(h.notifyCh)
		}
	}
	return err
}

func (h *sumHandler) waitNotified(t *testing.T) {
	t.Helper()
	select {
	case <-h.notifyCh:
	case <-time.After(time.Second):
		t.Fatal("handler never reached the expected sequence")
	}
}

func newTestTopology(capacity int64, handler EventHandler[int64], exceptionHandler ExceptionHandler[int64]) (*RingBuffer[int64], *SingleProducerSequencer, *BatchEventProcessor[int64]) {
	rb := NewRingBuffer[int64](capacity, func() int64 { return 0 })
	seq := NewSingleProducerSequencer(capacity, NewBlockingWaitStrategy())
	barrier := seq.NewBarrier()
	proc := NewBatchEventProcessor[int64](rb, barrier, handler, exceptionHandler, NewBatchSizeLimiter(capacity))
	seq.AddGatingSequences(proc.Sequence())
	return rb, seq, proc
}

func publishRange(rb *RingBuffer[int64], seq *SingleProducerSequencer, values []int64) {
	hi := seq.Next(int64(len(values)))
	lo := hi - int64(len(values)) + 1
	for i, v := range values {
		*rb.Get(lo + int64(i)) = v
	}
	seq.Publish(lo, hi)
}

// TestBatchEventProcessorSumsPublishedEvents mirrors spec scenario 1: a
// single producer publishes 1..20, one consumer sums them.
func TestBatchEventProcessorSumsPublishedEvents(t *testing.T) {
	values := make([]int64, 20)
	var want int64
	for i := range values {
		values[i] = int64(i + 1)
		want += values[i]
	}

	handler := newSumHandler(int64(len(values) - 1))
	rb, seq, proc := newTestTopology(32, handler, NewFatalExceptionHandler[int64](nil))

	done := make(chan struct{})
	go func() {
		proc.Run()
		close(done)
	}()
	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never started")
	}

	publishRange(rb, seq, values)
	handler.waitNotified(t)
	proc.Halt()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor never returned from Run")
	}

	if handler.Sum != want {
		t.Fatalf("want sum %d, got %d", want, handler.Sum)
	}
	if !handler.started || !handler.shutdown {
		t.Fatal("expected OnStart and OnShutdown to both run")
	}
}

// TestBatchEventProcessorFatalHandlerHaltsAfterAdvancing mirrors spec
// scenario 5 with the default fatal handler: a batch that fails still
// counts as delivered, so the sequence advances to cover it, and the
// processor halts right after rather than requesting another batch.
func TestBatchEventProcessorFatalHandlerHaltsAfterAdvancing(t *testing.T) {
	handler := &sumHandler{Fail: true, FailAt: 99}
	rb, seq, proc := newTestTopology(256, handler, NewFatalExceptionHandler[int64](nil))

	values := make([]int64, 100) // sequences 0..99
	for i := range values {
		values[i] = int64(i)
	}
	publishRange(rb, seq, values)

	done := make(chan struct{})
	go func() {
		proc.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor never halted on a fatal handler error")
	}

	if proc.IsRunning() {
		t.Fatal("expected processor to be idle after a fatal escalation")
	}
	if got := proc.Sequence().Get(); got != 99 {
		t.Fatalf("want sequence 99 (the failing batch still counts as delivered), got %d", got)
	}
}

// TestBatchEventProcessorLoggingHandlerSwallowsAndContinues mirrors
// spec scenario 5's swallowing-handler branch: the processor advances
// past the failing event and keeps delivering the rest of the batch.
func TestBatchEventProcessorLoggingHandlerSwallowsAndContinues(t *testing.T) {
	handler := newSumHandler(2)
	handler.Fail = true
	handler.FailAt = 1
	rb, seq, proc := newTestTopology(32, handler, NewLoggingExceptionHandler[int64](nil))

	done := make(chan struct{})
	go func() {
		proc.Run()
		close(done)
	}()
	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never started")
	}

	publishRange(rb, seq, []int64{10, 20, 30})
	handler.waitNotified(t)
	proc.Halt()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor never returned")
	}

	if got := proc.Sequence().Get(); got != 2 {
		t.Fatalf("want sequence to advance past the failing batch to 2, got %d", got)
	}
	if handler.Sum != 40 { // 10 + 30, the event at the failing sequence is skipped
		t.Fatalf("want sum 40, got %d", handler.Sum)
	}
}

// TestBatchEventProcessorRestartsAfterHalt exercises the Restart
// guarantee: a halted processor can Run again and resumes from
// Sequence()+1.
func TestBatchEventProcessorRestartsAfterHalt(t *testing.T) {
	handler := newSumHandler(2)
	rb, seq, proc := newTestTopology(32, handler, NewFatalExceptionHandler[int64](nil))

	done := make(chan struct{})
	go func() {
		proc.Run()
		close(done)
	}()
	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never started")
	}

	publishRange(rb, seq, []int64{1, 2, 3})
	handler.waitNotified(t)
	proc.Halt()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor never returned after the first run")
	}
	if got := proc.Sequence().Get(); got != 2 {
		t.Fatalf("want sequence 2 after first run, got %d", got)
	}

	handler.notifyCh = make(chan struct{})
	handler.NotifyAt = 4

	done2 := make(chan struct{})
	go func() {
		proc.Run()
		close(done2)
	}()
	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never restarted")
	}

	publishRange(rb, seq, []int64{4, 5})
	handler.waitNotified(t)
	proc.Halt()

	select {
	case <-done2:
	case <-time.After(time.Second):
		t.Fatal("processor never returned after the second run")
	}

	if handler.Sum != 15 {
		t.Fatalf("want cumulative sum 15 across both runs, got %d", handler.Sum)
	}
	if got := proc.Sequence().Get(); got != 4 {
		t.Fatalf("want sequence 4 after the second run, got %d", got)
	}
}

func TestBatchEventProcessorRunTwiceReturnsErrAlreadyRunning(t *testing.T) {
	handler := newSumHandler(0)
	_, _, proc := newTestTopology(8, handler, NewFatalExceptionHandler[int64](nil))

	go proc.Run()
	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never started")
	}

	if err := proc.Run(); err != ErrAlreadyRunning {
		t.Fatalf("want ErrAlreadyRunning, got %v", err)
	}
	proc.Halt()
}

// TestBatchEventProcessorHaltWhileWaiting mirrors spec scenario 6: a
// processor parked in WaitFor with nothing published must still react
// to Halt promptly.
func TestBatchEventProcessorHaltWhileWaiting(t *testing.T) {
	handler := newSumHandler(0)
	_, _, proc := newTestTopology(8, handler, NewFatalExceptionHandler[int64](nil))

	done := make(chan struct{})
	go func() {
		proc.Run()
		close(done)
	}()

	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never started")
	}
	proc.Halt()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor never returned from Run after Halt while waiting")
	}
}
