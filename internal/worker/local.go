package worker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/ringrelay/ringrelay/internal/app"
	"github.com/ringrelay/ringrelay/internal/metrics"
	"github.com/ringrelay/ringrelay/ring"
)

// defaultTimeoutWaitDeadline is the deadline of the "timeout_blocking"
// wait strategy; the [ring] config has no deadline setting of its own.
const defaultTimeoutWaitDeadline = 500 * time.Millisecond

// LocalWorker drives an in-process ring.RingBuffer[Task]: HTTP
// listener goroutines publish deliveries onto it via Enqueue, and a
// single BatchEventProcessor goroutine drains batches, executing each
// task against its target and handing the delivered batch to a
// caller-supplied accounting callback.
type LocalWorker struct {
	id       string
	f        *app.HookRelayApp
	wp       *WorkerPool
	metrics  *metrics.Metrics
	callback func([]Task) error

	ringBuffer *ring.RingBuffer[Task]
	sequencer  ring.Sequencer
	processor  *ring.BatchEventProcessor[Task]

	ready bool
}

// NewLocalWorker builds and starts the ring topology configured under
// [ring] in the loaded config, wired into f's metrics registry via
// ring.ObserveSequencer. callback is invoked once per delivered batch,
// after every task in it has run Execute.
func NewLocalWorker(f *app.HookRelayApp, wp *WorkerPool, callback func([]Task) error) *LocalWorker {
	cfg := f.Cfg.Ring
	capacity := normalizeCapacity(cfg.Capacity)
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}

	rb := ring.NewRingBuffer[Task](capacity, nil)

	var baseSequencer ring.Sequencer
	waitStrategy := buildWaitStrategy(cfg.WaitStrategy)
	if cfg.Producer == "single" {
		baseSequencer = ring.NewSingleProducerSequencer(capacity, waitStrategy)
	} else {
		baseSequencer = ring.NewMultiProducerSequencer(capacity, waitStrategy)
	}

	lw := &LocalWorker{
		id:       ulid.Make().String(),
		f:        f,
		wp:       wp,
		metrics:  f.Metrics,
		callback: callback,
		ready:    true,
	}

	sequencer := baseSequencer
	if f.Metrics != nil {
		sequencer = ring.ObserveSequencer(baseSequencer, f.Metrics.NewRingMetrics("local"))
	}
	lw.ringBuffer = rb
	lw.sequencer = sequencer

	barrier := sequencer.NewBarrier()
	limiter := ring.NewBatchSizeLimiter(batchSize)
	exceptionHandler := ring.NewLoggingExceptionHandler[Task](slog.Default())
	proc := ring.NewBatchEventProcessor[Task](rb, barrier, lw, exceptionHandler, limiter)
	sequencer.AddGatingSequences(proc.Sequence())
	lw.processor = proc

	go proc.Run()
	proc.WaitUntilStarted(5 * time.Second)

	slog.Info("local worker started", "id", lw.id, "capacity", capacity, "producer", cfg.Producer, "wait_strategy", cfg.WaitStrategy, "batch_size", batchSize)
	return lw
}

func normalizeCapacity(capacity int64) int64 {
	if capacity <= 0 {
		return 4096
	}
	if capacity&(capacity-1) == 0 {
		return capacity
	}
	n := int64(1)
	for n < capacity {
		n <<= 1
	}
	return n
}

func buildWaitStrategy(name string) ring.WaitStrategy {
	switch name {
	case "busy_spin":
		return ring.BusySpinWaitStrategy{}
	case "yielding":
		return ring.NewYieldingWaitStrategy()
	case "sleeping":
		return ring.NewSleepingWaitStrategy()
	case "timeout_blocking":
		return ring.NewTimeoutBlockingWaitStrategy(defaultTimeoutWaitDeadline)
	case "blocking", "":
		return ring.NewBlockingWaitStrategy()
	default:
		slog.Warn("unknown ring wait strategy, defaulting to blocking", "wait_strategy", name)
		return ring.NewBlockingWaitStrategy()
	}
}

// Enqueue claims one sequence non-blocking, so a full ring reports
// ErrInsufficientCapacity back to the caller (typically
// WorkerPool.Schedule) rather than stalling the HTTP request thread
// that produced t.
func (lw *LocalWorker) Enqueue(t Task) error {
	seq, err := lw.sequencer.TryNext(1)
	if err != nil {
		return err
	}
	*lw.ringBuffer.Get(seq) = t
	lw.sequencer.Publish(seq, seq)
	if lw.metrics != nil {
		lw.metrics.UpdateWorkerQueueSize(int(lw.sequencer.Cursor() - lw.processor.Sequence().Get()))
	}
	return nil
}

func (lw *LocalWorker) Ping() error {
	if !lw.ready {
		return errors.New("local worker: not ready")
	}
	return nil
}

func (lw *LocalWorker) Shutdown() {
	lw.processor.Halt()
	lw.ready = false
}

func (lw *LocalWorker) IsReady() bool { return lw.ready }

func (lw *LocalWorker) GetID() string { return lw.id }

func (lw *LocalWorker) GetType() WorkerType { return LocalWorkerType }

func (lw *LocalWorker) GetMetricsHandler() *metrics.Metrics { return lw.metrics }

// OnStart, OnShutdown, OnBatch, OnTimeout implement ring.EventHandler[Task],
// making LocalWorker itself the handler its own processor runs.

func (lw *LocalWorker) OnStart() error {
	slog.Info("local worker processor starting", "id", lw.id)
	return nil
}

func (lw *LocalWorker) OnShutdown() error {
	slog.Info("local worker processor shutting down", "id", lw.id)
	return nil
}

func (lw *LocalWorker) OnBatch(batch ring.Batch[Task]) error {
	tasks := make([]Task, 0, batch.Len())
	batch.ForEach(func(sequence int64, task *Task) {
		t := *task
		if t == nil {
			return
		}
		t.IncDeliveries()
		if err := t.Execute(lw); err != nil {
			slog.Warn("local worker task failed", "trace_id", t.GetTraceID(), "sequence", sequence, "err", err)
		}
		tasks = append(tasks, t)
	})
	if len(tasks) == 0 {
		return nil
	}
	return lw.callback(tasks)
}

func (lw *LocalWorker) OnTimeout(sequence int64) error {
	return nil
}
