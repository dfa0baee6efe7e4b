package worker

import (
	"testing"
	"time"

	"github.com/ringrelay/ringrelay/internal/app"
	"github.com/ringrelay/ringrelay/internal/config"
	"github.com/ringrelay/ringrelay/internal/metrics"
)

type recordingTask struct {
	id, traceID string
	retries     int
	deliveries  int
	ran         chan struct{}
}

func (t *recordingTask) GetID() string      { return t.id }
func (t *recordingTask) GetTraceID() string { return t.traceID }
func (t *recordingTask) GetType() string    { return "test.task" }
func (t *recordingTask) Retries() int       { return t.retries }
func (t *recordingTask) NumDeliveries() int { return t.deliveries }
func (t *recordingTask) IncDeliveries()     { t.deliveries++ }

func (t *recordingTask) Execute(w Worker) error {
	close(t.ran)
	return nil
}

func newTestApp() *app.HookRelayApp {
	return &app.HookRelayApp{
		Cfg: &config.Config{
			Ring: config.RingConfig{
				Capacity:     8,
				Producer:     "multi",
				WaitStrategy: "busy_spin",
				BatchSize:    2,
			},
		},
		Metrics: &metrics.Metrics{IsEnabled: false},
	}
}

func TestLocalWorkerDeliversEnqueuedTasks(t *testing.T) {
	f := newTestApp()
	wp := InitPool(f)

	delivered := make(chan []Task, 1)
	lw := CreateLocalWorker(f, wp, func(tasks []Task) error {
		delivered <- tasks
		return nil
	})
	defer lw.Shutdown()
	if err := wp.SetLocalClient(lw); err != nil {
		t.Fatalf("SetLocalClient: %v", err)
	}

	task := &recordingTask{id: "t1", traceID: "trace-1", retries: 3, ran: make(chan struct{})}
	if err := wp.Schedule(task, false); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	select {
	case <-task.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task was never executed")
	}

	select {
	case tasks := <-delivered:
		if len(tasks) != 1 || tasks[0].GetID() != "t1" {
			t.Fatalf("unexpected delivered batch: %+v", tasks)
		}
		if tasks[0].NumDeliveries() != 1 {
			t.Fatalf("expected 1 delivery, got %d", tasks[0].NumDeliveries())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback was never invoked")
	}

	if !lw.IsReady() {
		t.Fatal("worker should still be ready after a successful delivery")
	}
}

func TestLocalWorkerEnqueueFullRingReturnsError(t *testing.T) {
	f := newTestApp()
	f.Cfg.Ring.Capacity = 2
	wp := InitPool(f)

	lw := CreateLocalWorker(f, wp, func(tasks []Task) error { return nil })
	defer lw.Shutdown()
	// Stop the consumer from draining so the ring's small capacity
	// fills up under repeated Enqueue calls.
	lw.processor.Halt()

	var lastErr error
	for i := 0; i < 4; i++ {
		lastErr = lw.Enqueue(&recordingTask{id: "x", ran: make(chan struct{})})
	}
	if lastErr == nil {
		t.Fatal("expected ring exhaustion once the processor stops draining")
	}
}

func TestLocalWorkerShutdownStopsAcceptingWork(t *testing.T) {
	f := newTestApp()
	wp := InitPool(f)

	lw := CreateLocalWorker(f, wp, func(tasks []Task) error { return nil })
	lw.Shutdown()

	if lw.IsReady() {
		t.Fatal("worker should report not ready after Shutdown")
	}
	if err := lw.Ping(); err == nil {
		t.Fatal("Ping should fail after Shutdown")
	}
}
