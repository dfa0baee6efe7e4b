package ring

import (
	"runtime"
	"sync"
	"time"
)

// WaitStrategy is the blocking/parking policy consumers and producers
// use when the sequence they need is not yet available.
type WaitStrategy interface {
	// WaitToken snapshots whatever state Idle needs to park on,
	// before the caller re-checks its predicate. A SequenceBarrier
	// calls this first, then checks gatedSequence(), then passes the
	// returned token to Idle: a SignalAll landing anywhere in that
	// window either flips the predicate (so Idle is never called) or
	// invalidates the token (so Idle returns immediately instead of
	// parking on a channel whose wakeup already happened). Strategies
	// that don't park on anything return nil.
	WaitToken() any

	// Idle is called by a consumer, once per retry, while a
	// SequenceBarrier waits for a target sequence. It returns true
	// only for a strategy with a configured deadline that has
	// elapsed; every other strategy always returns false and relies
	// on the caller re-checking availability after Idle returns.
	Idle(token any, retries int64) (timedOut bool)

	// Gate is called by a producer, once per retry, while a Sequencer
	// waits for gating consumers to advance past a ring wrap point.
	Gate(retries int64)

	// SignalAll wakes any goroutine this strategy has parked. Called
	// by a sequencer on every publish and by a barrier on halt.
	SignalAll()
}

// BusySpinWaitStrategy never yields or sleeps: lowest latency, worst
// power and worst behavior when the number of waiting goroutines
// exceeds available cores.
type BusySpinWaitStrategy struct{}

func (BusySpinWaitStrategy) WaitToken() any       { return nil }
func (BusySpinWaitStrategy) Idle(any, int64) bool { return false }
func (BusySpinWaitStrategy) Gate(int64)           {}
func (BusySpinWaitStrategy) SignalAll()           {}

// YieldingWaitStrategy spins for SpinTries retries, then cooperatively
// yields the goroutine every retry after that.
type YieldingWaitStrategy struct {
	SpinTries int64
}

// NewYieldingWaitStrategy returns a YieldingWaitStrategy with a
// reasonable default spin count.
func NewYieldingWaitStrategy() *YieldingWaitStrategy {
	return &YieldingWaitStrategy{SpinTries: 100}
}

func (w *YieldingWaitStrategy) WaitToken() any { return nil }

func (w *YieldingWaitStrategy) Idle(_ any, retries int64) bool {
	if retries >= w.SpinTries {
		runtime.Gosched()
	}
	return false
}

func (w *YieldingWaitStrategy) Gate(retries int64) { w.Idle(nil, retries) }
func (w *YieldingWaitStrategy) SignalAll()         {}

// SleepingWaitStrategy spins, then yields, then sleeps with an
// exponential backoff bounded by MaxSleep. A reasonable middle ground
// between latency and CPU usage for a handler that does real work per
// event.
type SleepingWaitStrategy struct {
	SpinTries  int64
	YieldTries int64
	MaxSleep   time.Duration
}

// NewSleepingWaitStrategy returns a SleepingWaitStrategy with
// reasonable defaults: 100 spins, 100 yields, capped at 1ms sleeps.
func NewSleepingWaitStrategy() *SleepingWaitStrategy {
	return &SleepingWaitStrategy{SpinTries: 100, YieldTries: 100, MaxSleep: time.Millisecond}
}

func (w *SleepingWaitStrategy) WaitToken() any { return nil }

func (w *SleepingWaitStrategy) Idle(_ any, retries int64) bool {
	switch {
	case retries < w.SpinTries:
		// busy: do nothing, let the caller retry immediately.
	case retries < w.SpinTries+w.YieldTries:
		runtime.Gosched()
	default:
		backoffShift := retries - w.SpinTries - w.YieldTries
		if backoffShift > 20 {
			backoffShift = 20
		}
		d := time.Duration(int64(1)<<uint(backoffShift)) * time.Nanosecond
		if d > w.MaxSleep {
			d = w.MaxSleep
		}
		time.Sleep(d)
	}
	return false
}

func (w *SleepingWaitStrategy) Gate(retries int64) { w.Idle(nil, retries) }
func (w *SleepingWaitStrategy) SignalAll()         {}

// BlockingWaitStrategy parks on a broadcastable channel protected by a
// mutex, instead of spinning. SignalAll closes the current channel and
// installs a fresh one, waking every parked goroutine at once; this is
// the sequencer's "wake the condition on every publish" contract
// without keeping a live waiter count, since closing a channel with no
// listeners is free.
type BlockingWaitStrategy struct {
	mu   sync.Mutex
	wake chan struct{}
}

// NewBlockingWaitStrategy returns a ready BlockingWaitStrategy.
func NewBlockingWaitStrategy() *BlockingWaitStrategy {
	return &BlockingWaitStrategy{wake: make(chan struct{})}
}

// WaitToken snapshots the current wake channel. Taking the snapshot
// before the caller re-checks its predicate closes the lost-wakeup
// window: a SignalAll landing after the snapshot but before Idle
// closes this exact channel, so Idle's receive returns immediately
// instead of parking on a channel installed after the signal.
func (w *BlockingWaitStrategy) WaitToken() any {
	w.mu.Lock()
	ch := w.wake
	w.mu.Unlock()
	return ch
}

func (w *BlockingWaitStrategy) Idle(token any, _ int64) bool {
	<-token.(chan struct{})
	return false
}

// Gate never blocks indefinitely for producers: a short sleep keeps a
// claim-side wait from pegging a core while a slow consumer catches
// up.
func (w *BlockingWaitStrategy) Gate(int64) {
	time.Sleep(time.Microsecond)
}

func (w *BlockingWaitStrategy) SignalAll() {
	w.mu.Lock()
	old := w.wake
	w.wake = make(chan struct{})
	w.mu.Unlock()
	close(old)
}

// TimeoutBlockingWaitStrategy behaves like BlockingWaitStrategy but
// returns timedOut=true once Timeout elapses without a signal, so the
// processor can surface onTimeout to the handler and retry.
type TimeoutBlockingWaitStrategy struct {
	mu      sync.Mutex
	wake    chan struct{}
	Timeout time.Duration
}

// NewTimeoutBlockingWaitStrategy returns a TimeoutBlockingWaitStrategy
// with the given deadline.
func NewTimeoutBlockingWaitStrategy(timeout time.Duration) *TimeoutBlockingWaitStrategy {
	return &TimeoutBlockingWaitStrategy{wake: make(chan struct{}), Timeout: timeout}
}

// WaitToken snapshots the current wake channel, for the same
// lost-wakeup reason as BlockingWaitStrategy.WaitToken.
func (w *TimeoutBlockingWaitStrategy) WaitToken() any {
	w.mu.Lock()
	ch := w.wake
	w.mu.Unlock()
	return ch
}

func (w *TimeoutBlockingWaitStrategy) Idle(token any, _ int64) bool {
	timer := time.NewTimer(w.Timeout)
	defer timer.Stop()
	select {
	case <-token.(chan struct{}):
		return false
	case <-timer.C:
		return true
	}
}

func (w *TimeoutBlockingWaitStrategy) Gate(int64) {
	time.Sleep(time.Microsecond)
}

func (w *TimeoutBlockingWaitStrategy) SignalAll() {
	w.mu.Lock()
	old := w.wake
	w.wake = make(chan struct{})
	w.mu.Unlock()
	close(old)
}
