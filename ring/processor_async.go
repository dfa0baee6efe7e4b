package ring

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// AsyncBatchEventProcessor is the suspension-point-based counterpart
// of BatchEventProcessor: the barrier wait and the handler call are
// both awaitable. The scheduling model stays single-threaded
// cooperative per instance — RunAsync must never be invoked
// concurrently for the same processor, exactly like Run for the sync
// variant. A context cancellation is treated as an Alert and follows
// the same halt rule as the sync processor.
//
// The exception policy is identical to BatchEventProcessor: the
// sequence always advances past a batch handed to OnBatch, success or
// failure, before the exception handler is consulted. A nil return
// from ExceptionHandler.HandleEventException continues to the next
// batch; a non-nil return halts immediately after that same advance.
// Resolving this the same way for both variants was an explicit open
// question in the core design; see DESIGN.md.
type AsyncBatchEventProcessor[T any] struct {
	ringBuffer       *RingBuffer[T]
	barrier          *SequenceBarrier
	handler          AsyncEventHandler[T]
	exceptionHandler ExceptionHandler[T]
	limiter          BatchSizeLimiter

	sequence *Sequence
	runState int32

	mu      sync.Mutex
	started chan struct{}
}

// NewAsyncBatchEventProcessor builds an async processor with the same
// wiring shape as NewBatchEventProcessor.
func NewAsyncBatchEventProcessor[T any](
	ringBuffer *RingBuffer[T],
	barrier *SequenceBarrier,
	handler AsyncEventHandler[T],
	exceptionHandler ExceptionHandler[T],
	limiter BatchSizeLimiter,
) *AsyncBatchEventProcessor[T] {
	p := &AsyncBatchEventProcessor[T]{
		ringBuffer:       ringBuffer,
		barrier:          barrier,
		handler:          handler,
		exceptionHandler: exceptionHandler,
		limiter:          limiter,
		sequence:         NewSequence(InitialSequenceValue),
	}
	if cb, ok := handler.(SequenceCallback); ok {
		cb.SetSequenceCallback(p.sequence)
	}
	return p
}

func (p *AsyncBatchEventProcessor[T]) Sequence() *Sequence { return p.sequence }

func (p *AsyncBatchEventProcessor[T]) IsRunning() bool {
	return atomic.LoadInt32(&p.runState) == processorRunning
}

// Halt requests the processor stop after its current OnBatch call
// returns. Idempotent and non-blocking.
func (p *AsyncBatchEventProcessor[T]) Halt() {
	atomic.StoreInt32(&p.runState, processorHalted)
	p.barrier.Cancel()
}

func (p *AsyncBatchEventProcessor[T]) WaitUntilStarted(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		p.mu.Lock()
		ch := p.started
		p.mu.Unlock()
		if ch != nil {
			select {
			case <-ch:
				return true
			case <-time.After(time.Until(deadline)):
				return false
			}
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}

// RunAsync executes the consumer loop until ctx is cancelled, Halt is
// called, or the exception handler escalates a handler error. It
// returns ErrAlreadyRunning if the processor was not idle.
func (p *AsyncBatchEventProcessor[T]) RunAsync(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&p.runState, processorIdle, processorRunning) {
		return ErrAlreadyRunning
	}

	p.mu.Lock()
	startedCh := make(chan struct{})
	p.started = startedCh
	p.mu.Unlock()

	p.barrier.ResetProcessing()
	if err := p.handler.OnStart(ctx); err != nil {
		p.exceptionHandler.HandleOnStartException(err)
	}
	close(startedCh)

	p.loop(ctx)

	if err := p.handler.OnShutdown(ctx); err != nil {
		p.exceptionHandler.HandleOnShutdownException(err)
	}
	p.mu.Lock()
	p.started = nil
	p.mu.Unlock()
	atomic.StoreInt32(&p.runState, processorIdle)
	return nil
}

func (p *AsyncBatchEventProcessor[T]) loop(ctx context.Context) {
	next := p.sequence.Get() + 1
	for {
		available, err := p.waitFor(ctx, next)
		switch err {
		case ErrAlert:
			if !p.IsRunning() || ctx.Err() != nil {
				return
			}
			continue
		case ErrTimeout:
			if tErr := p.handler.OnTimeout(ctx, p.sequence.Get()); tErr != nil {
				p.exceptionHandler.HandleOnTimeoutException(tErr, p.sequence.Get())
			}
			continue
		}

		capped := p.limiter.Cap(available, next)
		if capped < next {
			continue
		}

		batch := p.ringBuffer.Slice(next, capped)
		var halt bool
		if batchErr := p.handler.OnBatch(ctx, batch); batchErr != nil {
			if escalated := p.exceptionHandler.HandleEventException(batchErr, next, batch); escalated != nil {
				halt = true
			}
		}
		next = capped + 1
		p.sequence.Set(next - 1)
		if halt {
			return
		}
	}
}

// waitFor is the async suspension point: it awaits the barrier in a
// helper goroutine so a ctx cancellation can interrupt the wait
// promptly, without the barrier itself needing to know about
// contexts. This is the one place the async processor allocates a
// goroutine per wait; it is explicitly not on the sync processor's
// hot path.
func (p *AsyncBatchEventProcessor[T]) waitFor(ctx context.Context, next int64) (int64, error) {
	type result struct {
		available int64
		err       error
	}
	resultCh := make(chan result, 1)
	go func() {
		available, err := p.barrier.WaitFor(next)
		resultCh <- result{available, err}
	}()

	select {
	case r := <-resultCh:
		return r.available, r.err
	case <-ctx.Done():
		p.barrier.Cancel()
		<-resultCh
		return InitialSequenceValue, ErrAlert
	}
}
