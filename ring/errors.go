package ring

import "errors"

var (
	// ErrInsufficientCapacity is returned by TryNext when the ring has
	// no free slots for the requested claim right now.
	ErrInsufficientCapacity = errors.New("ring: insufficient capacity")

	// ErrAlert is the cooperative cancellation signal delivered through
	// a SequenceBarrier when it has been cancelled.
	ErrAlert = errors.New("ring: alert")

	// ErrTimeout is returned by a timeout-capable WaitStrategy when its
	// deadline elapses before the requested sequence becomes available.
	ErrTimeout = errors.New("ring: wait timed out")

	// ErrAlreadyRunning is returned by Run/RunAsync when the processor
	// is not idle.
	ErrAlreadyRunning = errors.New("ring: processor already running")

	// ErrNotPowerOfTwo is a setup-time error: ring capacity must be a
	// power of two.
	ErrNotPowerOfTwo = errors.New("ring: capacity must be a power of two")
)
