package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/ringrelay/ringrelay/internal/app"
	"github.com/ringrelay/ringrelay/internal/metrics"
)

const pingTimeout = 2 * time.Second

const (
	// TypeEventDelivery names the one asynq task type the durable
	// queue ever sees: a webhook delivery. Every Task registered in
	// a MarshalerMap/UnmarshalerMap is filed under this same key.
	TypeEventDelivery = "event:deliver"
	QueueName         = "hookrelay"
)

// QueueWorker hands Tasks to a durable, Redis-backed asynq queue for a
// separate `ringrelay worker` process to execute, used whenever the
// local ring is either absent or over capacity.
type QueueWorker struct {
	id        string
	f         *app.HookRelayApp
	client    *asynq.Client
	redis     *redis.Client
	marshaler MarshalerMap
}

// NewQueueWorker connects to the Redis instance configured under
// [queue_worker], ready to Enqueue Tasks the marshaler map knows how
// to serialize by type name.
func NewQueueWorker(f *app.HookRelayApp, marshaler MarshalerMap) *QueueWorker {
	opt := asynq.RedisClientOpt{
		Addr:     f.Cfg.QueueWorker.Addr,
		DB:       f.Cfg.QueueWorker.Db,
		Password: f.Cfg.QueueWorker.Password,
		Username: f.Cfg.QueueWorker.Username,
	}
	return &QueueWorker{
		id:     "queue",
		f:      f,
		client: asynq.NewClient(opt),
		redis: redis.NewClient(&redis.Options{
			Addr:     f.Cfg.QueueWorker.Addr,
			DB:       f.Cfg.QueueWorker.Db,
			Password: f.Cfg.QueueWorker.Password,
			Username: f.Cfg.QueueWorker.Username,
		}),
		marshaler: marshaler,
	}
}

func (qw *QueueWorker) Enqueue(t Task) error {
	marshal, ok := qw.marshaler[TypeEventDelivery]
	if !ok {
		return fmt.Errorf("queue worker: no marshaler registered for task type %q", TypeEventDelivery)
	}
	payload, err := marshal(t)
	if err != nil {
		return err
	}
	task := asynq.NewTask(TypeEventDelivery, payload)
	info, err := qw.client.Enqueue(task, asynq.Queue(QueueName), asynq.MaxRetry(t.Retries()))
	if err != nil {
		return err
	}
	slog.Info("enqueued task to queue worker", "task_id", info.ID, "queue", info.Queue, "trace_id", t.GetTraceID())
	return nil
}

func (qw *QueueWorker) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return qw.redis.Ping(ctx).Err()
}

func (qw *QueueWorker) Shutdown() {
	qw.client.Close()
	qw.redis.Close()
}

func (qw *QueueWorker) IsReady() bool { return qw.Ping() == nil }

func (qw *QueueWorker) GetID() string { return qw.id }

func (qw *QueueWorker) GetType() WorkerType { return QueueWorkerType }

func (qw *QueueWorker) GetMetricsHandler() *metrics.Metrics { return qw.f.Metrics }

// HandleQueueJob decodes an asynq task back into the Task its type
// name maps to and executes it against wrkr, handing the delivered,
// single-task batch to callback for accounting. This is the shape
// pkg/worker/queue.go's asynq handler drives; wrkr stands in for the
// Worker every Task.Execute expects, so a delivered task can still
// read the executing worker's identity/metrics through the same seam
// the local worker uses.
func HandleQueueJob(ctx context.Context, t *asynq.Task, unmarshalerMap UnmarshalerMap, callback func([]Task) error) error {
	unmarshal, ok := unmarshalerMap[TypeEventDelivery]
	if !ok {
		return fmt.Errorf("queue worker: no unmarshaler registered for task type %q: %w", TypeEventDelivery, asynq.SkipRetry)
	}
	task, err := unmarshal(t.Payload())
	if err != nil {
		return fmt.Errorf("queue worker: failed to decode task: %v: %w", err, asynq.SkipRetry)
	}

	m, _ := ctx.Value(metrics.MetricsContextKey).(*metrics.Metrics)
	wrkr := &queueExecWorker{m: m}

	task.IncDeliveries()
	execErr := task.Execute(wrkr)
	if err := callback([]Task{task}); err != nil {
		slog.Error("queue worker: accounting callback failed", "trace_id", task.GetTraceID(), "err", err)
	}
	if execErr != nil {
		if task.NumDeliveries() >= task.Retries() {
			return fmt.Errorf("queue worker: task %s exhausted retries: %v: %w", task.GetTraceID(), execErr, asynq.SkipRetry)
		}
		return execErr
	}
	return nil
}

// queueExecWorker is the Worker a Task.Execute observes when it is
// delivered through the durable queue rather than the local ring. Its
// metrics handle comes from the asynq handler's context, set by
// pkg/worker/queue.go's metricsWrapper, so Task.Execute records the
// same target/delivery histograms the local worker does.
type queueExecWorker struct {
	m *metrics.Metrics
}

func (queueExecWorker) Enqueue(Task) error { return errors.New("queue worker: re-entrant enqueue not supported") }
func (queueExecWorker) Ping() error        { return nil }
func (queueExecWorker) Shutdown()          {}
func (queueExecWorker) IsReady() bool      { return true }
func (queueExecWorker) GetID() string      { return "queue" }
func (queueExecWorker) GetType() WorkerType { return QueueWorkerType }
func (w queueExecWorker) GetMetricsHandler() *metrics.Metrics { return w.m }
