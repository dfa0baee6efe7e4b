package ring

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestEndToEndMultiProducerSumsAllPayloads mirrors spec scenario 2:
// several producer goroutines race to publish against one
// MultiProducerSequencer; one consumer must see every payload exactly
// once, in some interleaving, summing to the same total regardless of
// scheduling.
func TestEndToEndMultiProducerSumsAllPayloads(t *testing.T) {
	const producers = 4
	const perProducer = 500
	const total = producers * perProducer

	rb := NewRingBuffer[int64](1024, func() int64 { return 0 })
	seq := NewMultiProducerSequencer(1024, NewYieldingWaitStrategy())
	barrier := seq.NewBarrier()

	var sum int64
	handler := onBatchFunc[int64](func(batch Batch[int64]) error {
		batch.ForEach(func(_ int64, event *int64) {
			atomic.AddInt64(&sum, *event)
		})
		return nil
	})
	proc := NewBatchEventProcessor[int64](rb, barrier, handler, NewFatalExceptionHandler[int64](nil), NewBatchSizeLimiter(64))
	seq.AddGatingSequences(proc.Sequence())

	go proc.Run()
	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never started")
	}

	var wg sync.WaitGroup
	var want int64
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := int64(p*perProducer + i + 1)
				hi := seq.Next(1)
				*rb.Get(hi) = v
				seq.Publish(hi, hi)
			}
		}(p)
	}
	for p := 0; p < producers; p++ {
		for i := 0; i < perProducer; i++ {
			want += int64(p*perProducer + i + 1)
		}
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if atomic.LoadInt64(&sum) == want {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("want sum %d from %d events, got %d", want, total, atomic.LoadInt64(&sum))
		}
		time.Sleep(time.Millisecond)
	}
	proc.Halt()

	if got := seq.Cursor(); got != total-1 {
		t.Fatalf("want cursor %d, got %d", total-1, got)
	}
}

// TestEndToEndSlowConsumerBlocksProducerAtCapacity mirrors spec
// scenario 3: ring size 4, one producer, one consumer with an
// artificial per-batch delay. The producer's next() must block once 4
// slots are unconsumed rather than overwrite them, so every value the
// consumer observes is the one the producer actually wrote.
func TestEndToEndSlowConsumerBlocksProducerAtCapacity(t *testing.T) {
	rb := NewRingBuffer[int64](4, func() int64 { return 0 })
	seq := NewSingleProducerSequencer(4, NewBlockingWaitStrategy())
	barrier := seq.NewBarrier()

	var received []int64
	var mu sync.Mutex
	handler := onBatchFunc[int64](func(batch Batch[int64]) error {
		time.Sleep(2 * time.Millisecond) // slow consumer
		mu.Lock()
		batch.ForEach(func(_ int64, event *int64) {
			received = append(received, *event)
		})
		mu.Unlock()
		return nil
	})
	proc := NewBatchEventProcessor[int64](rb, barrier, handler, NewFatalExceptionHandler[int64](nil), NewBatchSizeLimiter(1))
	seq.AddGatingSequences(proc.Sequence())

	go proc.Run()
	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never started")
	}

	const n = 20
	for i := int64(0); i < n; i++ {
		hi := seq.Next(1) // blocks once 4 unconsumed slots are outstanding
		*rb.Get(hi) = i
		seq.Publish(hi, hi)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		count := len(received)
		mu.Unlock()
		if count == n {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("want %d events delivered, got %d", n, count)
		}
		time.Sleep(time.Millisecond)
	}
	proc.Halt()

	mu.Lock()
	defer mu.Unlock()
	for i, v := range received {
		if v != int64(i) {
			t.Fatalf("want received[%d] == %d (no wrap corruption), got %d", i, i, v)
		}
	}
}

// TestEndToEndTimeoutWaitStrategyFiresWithoutPublishes mirrors spec
// scenario 4: with a timeout-capable wait strategy and no publishes,
// the consumer must observe at least one onTimeout and onBatch must
// never be called.
func TestEndToEndTimeoutWaitStrategyFiresWithoutPublishes(t *testing.T) {
	rb := NewRingBuffer[int64](8, func() int64 { return 0 })
	seq := NewSingleProducerSequencer(8, NewTimeoutBlockingWaitStrategy(20*time.Millisecond))
	barrier := seq.NewBarrier()

	var timeouts int32
	var batches int32
	handler := &timeoutCountingHandler{
		onTimeout: func(int64) error { atomic.AddInt32(&timeouts, 1); return nil },
		onBatch:   func(Batch[int64]) error { atomic.AddInt32(&batches, 1); return nil },
	}
	proc := NewBatchEventProcessor[int64](rb, barrier, handler, NewFatalExceptionHandler[int64](nil), NewBatchSizeLimiter(8))
	seq.AddGatingSequences(proc.Sequence())

	go proc.Run()
	if !proc.WaitUntilStarted(time.Second) {
		t.Fatal("processor never started")
	}

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&timeouts) < 1 {
		if time.Now().After(deadline) {
			t.Fatal("expected at least one onTimeout within 2x the configured timeout")
		}
		time.Sleep(time.Millisecond)
	}
	proc.Halt()

	if atomic.LoadInt32(&batches) != 0 {
		t.Fatalf("onBatch must never fire with nothing published, got %d calls", batches)
	}
}

// onBatchFunc adapts a plain func to EventHandler[T] for handlers that
// only need OnBatch behavior in a test.
type onBatchFunc[T any] func(Batch[T]) error

func (f onBatchFunc[T]) OnStart() error          { return nil }
func (f onBatchFunc[T]) OnShutdown() error       { return nil }
func (f onBatchFunc[T]) OnTimeout(int64) error   { return nil }
func (f onBatchFunc[T]) OnBatch(b Batch[T]) error { return f(b) }

type timeoutCountingHandler struct {
	onTimeout func(int64) error
	onBatch   func(Batch[int64]) error
}

func (h *timeoutCountingHandler) OnStart() error                 { return nil }
func (h *timeoutCountingHandler) OnShutdown() error               { return nil }
func (h *timeoutCountingHandler) OnTimeout(sequence int64) error { return h.onTimeout(sequence) }
func (h *timeoutCountingHandler) OnBatch(batch Batch[int64]) error { return h.onBatch(batch) }
