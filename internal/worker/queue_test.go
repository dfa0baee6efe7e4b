package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/ringrelay/ringrelay/internal/metrics"
)

// echoTask is a minimal Task used to exercise HandleQueueJob without
// pulling in internal/delivery, which itself imports this package.
type echoTask struct {
	ID         string `json:"id"`
	TraceID    string `json:"trace_id"`
	MaxRetries int    `json:"max_retries"`
	Deliveries int    `json:"deliveries"`
	FailWith   string `json:"fail_with"`
}

func (t *echoTask) GetID() string      { return t.ID }
func (t *echoTask) GetTraceID() string { return t.TraceID }
func (t *echoTask) GetType() string    { return TypeEventDelivery }
func (t *echoTask) Retries() int       { return t.MaxRetries }
func (t *echoTask) NumDeliveries() int { return t.Deliveries }
func (t *echoTask) IncDeliveries()     { t.Deliveries++ }

func (t *echoTask) Execute(w Worker) error {
	if t.FailWith != "" {
		return errors.New(t.FailWith)
	}
	return nil
}

func echoUnmarshalerMap() UnmarshalerMap {
	return UnmarshalerMap{
		TypeEventDelivery: func(data []byte) (Task, error) {
			var t echoTask
			if err := json.Unmarshal(data, &t); err != nil {
				return nil, err
			}
			return &t, nil
		},
	}
}

func TestHandleQueueJobDeliversAndAccounts(t *testing.T) {
	payload, err := json.Marshal(&echoTask{ID: "q1", TraceID: "trace-q1", MaxRetries: 3})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	task := asynq.NewTask(TypeEventDelivery, payload)

	ctx := context.WithValue(context.Background(), metrics.MetricsContextKey, &metrics.Metrics{IsEnabled: false})

	var accounted []Task
	callback := func(tasks []Task) error {
		accounted = tasks
		return nil
	}

	if err := HandleQueueJob(ctx, task, echoUnmarshalerMap(), callback); err != nil {
		t.Fatalf("HandleQueueJob: %v", err)
	}
	if len(accounted) != 1 || accounted[0].GetID() != "q1" {
		t.Fatalf("unexpected accounted batch: %+v", accounted)
	}
	if accounted[0].NumDeliveries() != 1 {
		t.Fatalf("expected 1 delivery, got %d", accounted[0].NumDeliveries())
	}
}

func TestHandleQueueJobRetriesBeforeExhaustion(t *testing.T) {
	payload, err := json.Marshal(&echoTask{ID: "q2", TraceID: "trace-q2", MaxRetries: 3, FailWith: "target unreachable"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	task := asynq.NewTask(TypeEventDelivery, payload)
	ctx := context.Background()

	err = HandleQueueJob(ctx, task, echoUnmarshalerMap(), func([]Task) error { return nil })
	if err == nil {
		t.Fatal("expected an error from a failing delivery")
	}
	if errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("delivery had not yet exhausted retries, should not skip retry: %v", err)
	}
}

func TestHandleQueueJobMissingUnmarshalerSkipsRetry(t *testing.T) {
	task := asynq.NewTask(TypeEventDelivery, []byte("{}"))
	err := HandleQueueJob(context.Background(), task, UnmarshalerMap{}, func([]Task) error { return nil })
	if err == nil || !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected a SkipRetry error when no unmarshaler is registered, got %v", err)
	}
}
