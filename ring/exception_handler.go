package ring

import "log/slog"

// ExceptionHandler routes errors a handler raises back to user policy.
//
// A batch that fails always counts as delivered: the processor
// advances its owned sequence past it before consulting the handler,
// exactly as it would on success, so a failing batch is never
// redelivered after a restart. HandleEventException's return value
// only decides whether the loop continues: nil resumes with the next
// batch, a non-nil error halts the processor immediately after that
// advance. The default FatalExceptionHandler always escalates.
//
// The three lifecycle hooks never escalate — a processor always
// reaches a clean idle state regardless of what they do with the
// error.
type ExceptionHandler[T any] interface {
	HandleEventException(err error, sequence int64, batch Batch[T]) error
	HandleOnStartException(err error)
	HandleOnShutdownException(err error)
	HandleOnTimeoutException(err error, sequence int64)
}

// FatalExceptionHandler is the default policy: event exceptions
// escalate, halting the processor right after the failing batch, whose
// sequences still count as delivered; lifecycle exceptions are logged
// only, so shutdown always completes.
type FatalExceptionHandler[T any] struct {
	Logger *slog.Logger
}

// NewFatalExceptionHandler returns a FatalExceptionHandler logging
// through logger (slog.Default() if nil).
func NewFatalExceptionHandler[T any](logger *slog.Logger) *FatalExceptionHandler[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &FatalExceptionHandler[T]{Logger: logger}
}

func (h *FatalExceptionHandler[T]) HandleEventException(err error, sequence int64, batch Batch[T]) error {
	h.Logger.Error("ring: handler OnBatch failed, halting", "sequence", sequence, "batch_len", batch.Len(), "error", err)
	return err
}

func (h *FatalExceptionHandler[T]) HandleOnStartException(err error) {
	h.Logger.Error("ring: handler OnStart failed", "error", err)
}

func (h *FatalExceptionHandler[T]) HandleOnShutdownException(err error) {
	h.Logger.Error("ring: handler OnShutdown failed", "error", err)
}

func (h *FatalExceptionHandler[T]) HandleOnTimeoutException(err error, sequence int64) {
	h.Logger.Error("ring: handler OnTimeout failed", "sequence", sequence, "error", err)
}

// LoggingExceptionHandler swallows event exceptions: it logs, then
// lets the processor advance past the failing batch and keep
// delivering. Useful for topologies where a deterministic per-event
// failure must not stall the pipeline.
type LoggingExceptionHandler[T any] struct {
	Logger *slog.Logger
}

// NewLoggingExceptionHandler returns a LoggingExceptionHandler logging
// through logger (slog.Default() if nil).
func NewLoggingExceptionHandler[T any](logger *slog.Logger) *LoggingExceptionHandler[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExceptionHandler[T]{Logger: logger}
}

func (h *LoggingExceptionHandler[T]) HandleEventException(err error, sequence int64, batch Batch[T]) error {
	h.Logger.Warn("ring: handler OnBatch failed, skipping batch", "sequence", sequence, "batch_len", batch.Len(), "error", err)
	return nil
}

func (h *LoggingExceptionHandler[T]) HandleOnStartException(err error) {
	h.Logger.Error("ring: handler OnStart failed", "error", err)
}

func (h *LoggingExceptionHandler[T]) HandleOnShutdownException(err error) {
	h.Logger.Error("ring: handler OnShutdown failed", "error", err)
}

func (h *LoggingExceptionHandler[T]) HandleOnTimeoutException(err error, sequence int64) {
	h.Logger.Error("ring: handler OnTimeout failed", "sequence", sequence, "error", err)
}
