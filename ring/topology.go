package ring

import (
	"fmt"
	"sync"
	"time"
)

// startTimeout bounds how long Start waits for each processor to reach
// its run loop. A processor's OnStart only does user setup work, so a
// generous fixed bound is simpler than threading a per-call timeout
// through the topology builder.
const startTimeout = 10 * time.Second

// ProducerType selects the claim/publish protocol a Disruptor's
// sequencer uses. SP is cheaper (no CAS) and must only be used when a
// single goroutine ever calls Next/TryNext/Publish.
type ProducerType int

const (
	ProducerSingle ProducerType = iota
	ProducerMulti
)

// Disruptor wires a RingBuffer, a Sequencer, and a graph of
// BatchEventProcessors into one topology, mirroring the builder shape
// of the source library's DSL (`disruptor.start()`, `.handleEventsWith(...)`).
// It is a convenience layer over ring/sequencer.go/processor.go, not a
// new execution model: everything it does, a caller could do by hand
// with NewRingBuffer, NewSingleProducerSequencer/NewMultiProducerSequencer,
// and NewBatchEventProcessor directly.
type Disruptor[T any] struct {
	ringBuffer *RingBuffer[T]
	sequencer  Sequencer
	processors []*BatchEventProcessor[T]

	mu      sync.Mutex
	running bool
}

// NewDisruptor allocates a ring of capacity size (power of two) and
// its sequencer, selected by producerType, parked by waitStrategy.
func NewDisruptor[T any](size int64, factory func() T, producerType ProducerType, waitStrategy WaitStrategy) *Disruptor[T] {
	rb := NewRingBuffer[T](size, factory)
	var sequencer Sequencer
	switch producerType {
	case ProducerSingle:
		sequencer = NewSingleProducerSequencer(size, waitStrategy)
	case ProducerMulti:
		sequencer = NewMultiProducerSequencer(size, waitStrategy)
	default:
		panic(fmt.Sprintf("ring: unknown producer type %d", producerType))
	}
	return &Disruptor[T]{ringBuffer: rb, sequencer: sequencer}
}

// RingBuffer exposes the underlying buffer for direct Get/Slice access
// from producer code, per the source library's "publishEvent" pattern.
func (d *Disruptor[T]) RingBuffer() *RingBuffer[T] { return d.ringBuffer }

// Sequencer exposes the underlying claim/publish protocol for callers
// that need Next/TryNext/Publish directly.
func (d *Disruptor[T]) Sequencer() Sequencer { return d.sequencer }

// HandleEventsWith builds one BatchEventProcessor per handler, all
// reading from the ring barrier gated by dependents (none, for a
// first stage), registers each processor's sequence as a gating
// sequence on the sequencer, and returns the processors so the caller
// can chain a further stage via WithDependents, or Start/Halt them.
// limiter caps every processor's batch size identically; construct
// processors directly for per-handler limiter tuning.
func (d *Disruptor[T]) HandleEventsWith(limiter BatchSizeLimiter, exceptionHandler ExceptionHandler[T], handlers ...EventHandler[T]) []*BatchEventProcessor[T] {
	return d.handleEventsWith(limiter, exceptionHandler, nil, handlers...)
}

// WithDependents is like HandleEventsWith but gates the new stage's
// barrier on dependents' sequences in addition to the ring cursor, so
// this stage never outruns an upstream stage it depends on.
func (d *Disruptor[T]) WithDependents(limiter BatchSizeLimiter, exceptionHandler ExceptionHandler[T], dependents []*BatchEventProcessor[T], handlers ...EventHandler[T]) []*BatchEventProcessor[T] {
	gates := make([]*Sequence, len(dependents))
	for i, dep := range dependents {
		gates[i] = dep.Sequence()
	}
	return d.handleEventsWith(limiter, exceptionHandler, gates, handlers...)
}

func (d *Disruptor[T]) handleEventsWith(limiter BatchSizeLimiter, exceptionHandler ExceptionHandler[T], dependents []*Sequence, handlers ...EventHandler[T]) []*BatchEventProcessor[T] {
	built := make([]*BatchEventProcessor[T], 0, len(handlers))
	for _, h := range handlers {
		barrier := d.sequencer.NewBarrier(dependents...)
		proc := NewBatchEventProcessor[T](d.ringBuffer, barrier, h, exceptionHandler, limiter)
		d.sequencer.AddGatingSequences(proc.Sequence())
		built = append(built, proc)
	}
	d.processors = append(d.processors, built...)
	return built
}

// Start runs every registered processor on its own goroutine and
// blocks until all have completed OnStart. Calling Start twice without
// an intervening Halt is a programmer error; it panics, matching the
// spec's "fail fast at setup, never on the hot path" policy.
func (d *Disruptor[T]) Start() {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		panic("ring: Disruptor already started")
	}
	d.running = true
	procs := d.processors
	d.mu.Unlock()

	for _, p := range procs {
		go p.Run()
	}
	for _, p := range procs {
		p.WaitUntilStarted(startTimeout)
	}
}

// Halt requests every registered processor stop. It does not block
// until they have actually exited; poll IsRunning on the individual
// processors, or rely on WaitUntilStarted(0)-style synchronization
// built on top of their Sequence, to observe completion.
func (d *Disruptor[T]) Halt() {
	d.mu.Lock()
	d.running = false
	procs := d.processors
	d.mu.Unlock()

	for _, p := range procs {
		p.Halt()
	}
}
