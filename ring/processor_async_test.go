package ring

import (
	"context"
	"errors"
	"testing"
	"time"
)

type asyncSumHandler struct {
	Sum      int64
	Fail     bool
	FailAt   int64
	NotifyAt int64
	notifyCh chan struct{}

	failed   bool
	started  bool
	shutdown bool
}

func newAsyncSumHandler(notifyAt int64) *asyncSumHandler {
	return &asyncSumHandler{NotifyAt: notifyAt, notifyCh: make(chan struct{})}
}

func (h *asyncSumHandler) OnStart(ctx context.Context) error    { h.started = true; return nil }
func (h *asyncSumHandler) OnShutdown(ctx context.Context) error { h.shutdown = true; return nil }
func (h *asyncSumHandler) OnTimeout(ctx context.Context, sequence int64) error { return nil }

func (h *asyncSumHandler) OnBatch(ctx context.Context, batch Batch[int64]) error {
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

func (h *asyncSumHandler) waitNotified(t *testing.T) {
	t.Helper()
	select {
	case <-h.notifyCh:
	case <-time.After(time.Second):
		t.Fatal("handler never reached the expected sequence")
	}
}

func newAsyncTestTopology(capacity int64, handler AsyncEventHandler[int64], exceptionHandler ExceptionHandler[int64]) (*RingBuffer[int64], *SingleProducerSequencer, *AsyncBatchEventProcessor[int64]) {
	rb := NewRingBuffer[int64](capacity, func() int64 { return 0 })
	seq := NewSingleProducerSequencer(capacity, NewBlockingWaitStrategy())
	barrier := seq.NewBarrier()
	proc := NewAsyncBatchEventProcessor[int64](rb, barrier, handler, exceptionHandler, NewBatchSizeLimiter(capacity))
	seq.AddGatingSequences(proc.Sequence())
	return rb, seq, proc
}

func TestAsyncBatchEventProcessorSumsPublishedEvents(t *testing.T) {
	handler := newAsyncSumHandler(4)
	rb, seq, proc := newAsyncTestTopology(32, handler, NewFatalExceptionHandler[int64](nil))

	done := make(chan struct{})
	go func() {
		proc.RunAsync(context.Background())
		close(done)
	}()
	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never started")
	}

	publishRange(rb, seq, []int64{1, 2, 3, 4, 5})
	handler.waitNotified(t)
	proc.Halt()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor never returned from RunAsync")
	}

	if handler.Sum != 15 {
		t.Fatalf("want sum 15, got %d", handler.Sum)
	}
	if !handler.started || !handler.shutdown {
		t.Fatal("expected OnStart and OnShutdown to both run")
	}
}

// TestAsyncBatchEventProcessorFatalHandlerHaltsAfterAdvancing mirrors
// the sync processor's exception policy: the failing batch still
// counts as delivered before the processor halts.
func TestAsyncBatchEventProcessorFatalHandlerHaltsAfterAdvancing(t *testing.T) {
	handler := &asyncSumHandler{Fail: true, FailAt: 1}
	rb, seq, proc := newAsyncTestTopology(32, handler, NewFatalExceptionHandler[int64](nil))

	publishRange(rb, seq, []int64{10, 20, 30})

	done := make(chan struct{})
	go func() {
		proc.RunAsync(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor never halted on a fatal handler error")
	}

	if got := proc.Sequence().Get(); got != 2 {
		t.Fatalf("want sequence 2 (the failing batch still counts as delivered), got %d", got)
	}
	if handler.Sum != 40 { // 10 + 30, the event at the failing sequence is skipped
		t.Fatalf("want sum 40, got %d", handler.Sum)
	}
}

func TestAsyncBatchEventProcessorContextCancelHalts(t *testing.T) {
	handler := newAsyncSumHandler(0)
	_, _, proc := newAsyncTestTopology(8, handler, NewFatalExceptionHandler[int64](nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		proc.RunAsync(ctx)
		close(done)
	}()

	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never started")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor never returned after context cancellation")
	}
	if proc.IsRunning() {
		t.Fatal("expected processor to stop running once ctx was cancelled")
	}
}
