package ring

import "testing"

func TestRingBufferMaskAndCapacity(t *testing.T) {
	rb := NewRingBuffer[int64](8, func() int64 { return 0 })
	if rb.Capacity() != 8 {
		t.Fatalf("want capacity 8, got %d", rb.Capacity())
	}
	if rb.IndexShift() != 3 {
		t.Fatalf("want indexShift 3, got %d", rb.IndexShift())
	}

	*rb.Get(0) = 100
	*rb.Get(8) = 200 // sequence 8 maps to the same slot as sequence 0
	if got := *rb.Get(0); got != 200 {
		t.Fatalf("want 200 after wrap-around write, got %d", got)
	}
}

func TestRingBufferNonPowerOfTwoPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two capacity")
		}
	}()
	NewRingBuffer[int64](7, nil)
}

func TestBatchForEachAndAt(t *testing.T) {
	rb := NewRingBuffer[int64](8, func() int64 { return 0 })
	for i := int64(0); i < 4; i++ {
		*rb.Get(i) = i * 10
	}

	batch := rb.Slice(0, 3)
	if batch.Len() != 4 {
		t.Fatalf("want len 4, got %d", batch.Len())
	}
	if got := *batch.At(2); got != 20 {
		t.Fatalf("want 20, got %d", got)
	}

	var sum int64
	batch.ForEach(func(seq int64, event *int64) {
		sum += *event
	})
	if sum != 60 {
		t.Fatalf("want 60, got %d", sum)
	}
}
