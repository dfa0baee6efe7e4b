// Package ring is a pre-allocated circular buffer for moving fixed-type
// events from one or more producers to one or more consumers with
// minimal coordination overhead.
//
// It has no wire format, no persistence, and no configuration DSL: a
// caller builds a RingBuffer, a Sequencer (single- or multi-producer),
// one or more SequenceBarriers, and one BatchEventProcessor per
// consumer, then wires gating sequences between them. Once a topology
// is running, nothing in this package allocates or blocks outside the
// wait strategy, except that AsyncBatchEventProcessor starts one
// goroutine per barrier wait.
package ring
