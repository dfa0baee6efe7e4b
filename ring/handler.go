package ring

import "context"

// EventHandler is user code invoked by a BatchEventProcessor.
// OnStart/OnShutdown bracket the processor's run loop once each;
// OnBatch delivers one contiguous batch per call; OnTimeout fires
// when a timeout-capable WaitStrategy's deadline elapses with no new
// work to deliver.
type EventHandler[T any] interface {
	OnStart() error
	OnShutdown() error
	OnBatch(batch Batch[T]) error
	OnTimeout(sequence int64) error
}

// SequenceCallback is an optional interface a handler may implement
// to learn its processor's own Sequence, e.g. for watermarking a
// downstream system, without the core needing to expose the processor
// itself through EventHandler.
type SequenceCallback interface {
	SetSequenceCallback(sequence *Sequence)
}

// AsyncEventHandler is the context-aware counterpart of EventHandler
// used by AsyncBatchEventProcessor.
type AsyncEventHandler[T any] interface {
	OnStart(ctx context.Context) error
	OnShutdown(ctx context.Context) error
	OnBatch(ctx context.Context, batch Batch[T]) error
	OnTimeout(ctx context.Context, sequence int64) error
}
