package ring

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	processorIdle int32 = iota
	processorRunning
	processorHalted
)

// BatchEventProcessor owns a consumer cursor, repeatedly asks a
// SequenceBarrier for work, and delivers batches of events to a user
// handler with the exception semantics ExceptionHandler defines. It
// is the monomorphic, devirtualized consumer loop: one concrete type
// per (event type, handler, limiter) instantiation, no interface
// dispatch inside the loop beyond the handler/exception-handler calls
// the caller supplied.
type BatchEventProcessor[T any] struct {
	ringBuffer       *RingBuffer[T]
	barrier          *SequenceBarrier
	handler          EventHandler[T]
	exceptionHandler ExceptionHandler[T]
	limiter          BatchSizeLimiter

	sequence *Sequence
	runState int32

	mu      sync.Mutex
	started chan struct{}
}

// NewBatchEventProcessor builds a processor reading ringBuffer through
// barrier, delivering batches to handler, routing handler errors
// through exceptionHandler, and capping batch size via limiter.
func NewBatchEventProcessor[T any](
	ringBuffer *RingBuffer[T],
	barrier *SequenceBarrier,
	handler EventHandler[T],
	exceptionHandler ExceptionHandler[T],
	limiter BatchSizeLimiter,
) *BatchEventProcessor[T] {
	p := &BatchEventProcessor[T]{
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

// Sequence is this processor's consumer cursor. Register it as a
// gating sequence on the sequencer whose ring this processor reads,
// and as a dependent on any downstream barrier that must not outrun
// it.
func (p *BatchEventProcessor[T]) Sequence() *Sequence { return p.sequence }

// IsRunning reports whether Run is currently executing the loop.
func (p *BatchEventProcessor[T]) IsRunning() bool {
	return atomic.LoadInt32(&p.runState) == processorRunning
}

// Halt requests the processor stop after its current OnBatch call
// returns. Idempotent and non-blocking: there is no forced
// termination, so a handler mid-OnBatch only observes the halt once
// it returns.
func (p *BatchEventProcessor[T]) Halt() {
	atomic.StoreInt32(&p.runState, processorHalted)
	p.barrier.Cancel()
}

// WaitUntilStarted blocks until a Run call has completed OnStart and
// entered its loop, or timeout elapses first.
func (p *BatchEventProcessor[T]) WaitUntilStarted(timeout time.Duration) bool {
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

// Run executes the consumer loop on the calling goroutine until Halt
// is called or the exception handler escalates a handler error. It
// returns ErrAlreadyRunning if the processor was not idle. A
// processor that has halted can always Run again: it resumes from
// Sequence()+1.
func (p *BatchEventProcessor[T]) Run() error {
	if !atomic.CompareAndSwapInt32(&p.runState, processorIdle, processorRunning) {
		return ErrAlreadyRunning
	}

	p.mu.Lock()
	startedCh := make(chan struct{})
	p.started = startedCh
	p.mu.Unlock()

	p.barrier.ResetProcessing()
	if err := p.handler.OnStart(); err != nil {
		p.exceptionHandler.HandleOnStartException(err)
	}
	close(startedCh)

	p.loop()

	if err := p.handler.OnShutdown(); err != nil {
		p.exceptionHandler.HandleOnShutdownException(err)
	}
	p.mu.Lock()
	p.started = nil
	p.mu.Unlock()
	atomic.StoreInt32(&p.runState, processorIdle)
	return nil
}

func (p *BatchEventProcessor[T]) loop() {
	next := p.sequence.Get() + 1
	for {
		available, err := p.barrier.WaitFor(next)
		switch err {
		case ErrAlert:
			if !p.IsRunning() {
				return
			}
			// Transient barrier reset: the barrier was cancelled
			// without Halt being called on this processor. Re-arm and
			// continue; the caller that cancelled it is responsible
			// for calling ResetProcessing before this happens.
			continue
		case ErrTimeout:
			if tErr := p.handler.OnTimeout(p.sequence.Get()); tErr != nil {
				p.exceptionHandler.HandleOnTimeoutException(tErr, p.sequence.Get())
			}
			continue
		}

		capped := p.limiter.Cap(available, next)
		if capped < next {
			continue
		}

		// The sequence always advances past a batch the handler was
		// given, whether it succeeded or failed: a failing batch is
		// still considered delivered, never redelivered on restart.
		// HandleEventException's return only decides whether the loop
		// continues to the next batch (nil) or halts here (non-nil).
		batch := p.ringBuffer.Slice(next, capped)
		var halt bool
		if batchErr := p.handler.OnBatch(batch); batchErr != nil {
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
