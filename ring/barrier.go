package ring

import (
	"runtime"
	"sync/atomic"
)

// SequenceBarrier is the consumer-side wait point: it combines a
// sequencer's cursor with zero or more dependent (upstream consumer)
// sequences, so a downstream consumer never outruns the consumers it
// depends on.
type SequenceBarrier struct {
	sequencer    Sequencer
	waitStrategy WaitStrategy
	dependents   []*Sequence

	alerted int32
}

func newSequenceBarrier(sequencer Sequencer, waitStrategy WaitStrategy, dependents []*Sequence) *SequenceBarrier {
	return &SequenceBarrier{
		sequencer:    sequencer,
		waitStrategy: waitStrategy,
		dependents:   dependents,
	}
}

// WaitFor blocks until the highest sequence safe to consume is at
// least n. It returns ErrAlert if Cancel has been called (synchronous
// interrupt of the wait, used by halt), or ErrTimeout if a
// timeout-capable WaitStrategy's deadline elapses first. Otherwise it
// returns the sequencer's contiguous-published collapse of the
// available range starting at n — which may itself be less than n for
// a multi-producer sequencer whose cursor has advanced past n but
// whose slot at n has not yet been individually marked published; the
// processor must not consume past what this call returns.
func (b *SequenceBarrier) WaitFor(n int64) (int64, error) {
	if b.IsAlerted() {
		return InitialSequenceValue, ErrAlert
	}

	var retries int64
	for {
		// Snapshot the wait token before checking the predicate: a
		// SignalAll landing between this check and Idle below closes
		// the channel this token names, not one installed later, so
		// Idle returns immediately instead of missing the wakeup.
		token := b.waitStrategy.WaitToken()
		available := b.gatedSequence()
		if available >= n {
			break
		}
		if b.IsAlerted() {
			return InitialSequenceValue, ErrAlert
		}
		if len(b.dependents) > 0 && b.sequencer.Cursor() >= n {
			// Only an upstream consumer lags. Consumers advance their
			// sequence without SignalAll, so yield instead of parking.
			runtime.Gosched()
			retries++
			continue
		}
		if timedOut := b.waitStrategy.Idle(token, retries); timedOut {
			return InitialSequenceValue, ErrTimeout
		}
		retries++
	}

	available := b.gatedSequence()
	return b.sequencer.GetHighestPublishedSequence(n, available), nil
}

// gatedSequence is min(sequencer cursor, dependent sequences...).
func (b *SequenceBarrier) gatedSequence() int64 {
	minimum := b.sequencer.Cursor()
	for _, d := range b.dependents {
		if v := d.Load(); v < minimum {
			minimum = v
		}
	}
	return minimum
}

// Cancel marks the barrier cancelled and wakes any parked wait so a
// halting processor observes it without delay. Idempotent.
func (b *SequenceBarrier) Cancel() {
	atomic.StoreInt32(&b.alerted, 1)
	b.waitStrategy.SignalAll()
}

// IsAlerted reports whether Cancel has been called since the last
// ResetProcessing.
func (b *SequenceBarrier) IsAlerted() bool {
	return atomic.LoadInt32(&b.alerted) != 0
}

// ResetProcessing clears cancellation. Called by a processor on
// (re)start, before entering its run loop.
func (b *SequenceBarrier) ResetProcessing() {
	atomic.StoreInt32(&b.alerted, 0)
}
