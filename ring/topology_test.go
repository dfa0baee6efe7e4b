package ring

import (
	"testing"
	"time"
)

func TestDisruptorSingleStageSumsPublishedEvents(t *testing.T) {
	handler := newSumHandler(19)
	d := NewDisruptor[int64](32, func() int64 { return 0 }, ProducerSingle, NewBlockingWaitStrategy())
	d.HandleEventsWith(NewBatchSizeLimiter(32), NewFatalExceptionHandler[int64](nil), handler)
	d.Start()

	seq := d.Sequencer()
	hi := seq.Next(20)
	lo := hi - 19
	var want int64
	for i := int64(0); i < 20; i++ {
		v := i + 1
		*d.RingBuffer().Get(lo + i) = v
		want += v
	}
	seq.Publish(lo, hi)

	handler.waitNotified(t)
	d.Halt()

	deadline := time.Now().Add(time.Second)
	for handler.Sum != want {
		if time.Now().After(deadline) {
			t.Fatalf("want sum %d, got %d after halt", want, handler.Sum)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDisruptorTwoStagePipelineGatesOnUpstream(t *testing.T) {
	first := newSumHandler(2)
	second := newSumHandler(2)

	d := NewDisruptor[int64](8, func() int64 { return 0 }, ProducerSingle, NewBlockingWaitStrategy())
	firstStage := d.HandleEventsWith(NewBatchSizeLimiter(8), NewFatalExceptionHandler[int64](nil), first)
	d.WithDependents(NewBatchSizeLimiter(8), NewFatalExceptionHandler[int64](nil), firstStage, second)
	d.Start()
	defer d.Halt()

	seq := d.Sequencer()
	hi := seq.Next(3)
	lo := hi - 2
	for i, v := range []int64{1, 2, 3} {
		*d.RingBuffer().Get(lo + int64(i)) = v
	}
	seq.Publish(lo, hi)

	first.waitNotified(t)
	second.waitNotified(t)

	if first.Sum != 6 || second.Sum != 6 {
		t.Fatalf("want both stages to sum to 6, got first=%d second=%d", first.Sum, second.Sum)
	}
}

type watermarkHandler struct {
	seq *Sequence
}

func (h *watermarkHandler) SetSequenceCallback(sequence *Sequence) { h.seq = sequence }
func (h *watermarkHandler) OnStart() error                         { return nil }
func (h *watermarkHandler) OnShutdown() error                      { return nil }
func (h *watermarkHandler) OnTimeout(sequence int64) error         { return nil }
func (h *watermarkHandler) OnBatch(batch Batch[int64]) error        { return nil }

func TestBatchEventProcessorWiresSequenceCallback(t *testing.T) {
	handler := &watermarkHandler{}
	_, _, proc := newTestTopology(8, handler, NewFatalExceptionHandler[int64](nil))

	if handler.seq == nil {
		t.Fatal("expected SetSequenceCallback to be invoked by NewBatchEventProcessor")
	}
	if handler.seq != proc.Sequence() {
		t.Fatal("expected the callback to receive the processor's own Sequence")
	}
}
