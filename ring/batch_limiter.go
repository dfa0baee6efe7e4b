package ring

// BatchSizeLimiter caps the batch a processor delivers to its handler
// per loop iteration, independent of how much the barrier reports is
// actually available.
type BatchSizeLimiter struct {
	// MaxBatchSize is the largest batch a single onBatch call may
	// receive. Must be >= 1.
	MaxBatchSize int64
}

// NewBatchSizeLimiter returns a BatchSizeLimiter with the given cap.
func NewBatchSizeLimiter(maxBatchSize int64) BatchSizeLimiter {
	if maxBatchSize < 1 {
		panic("ring: max batch size must be >= 1")
	}
	return BatchSizeLimiter{MaxBatchSize: maxBatchSize}
}

// Cap returns min(available, next + maxBatchSize - 1).
func (l BatchSizeLimiter) Cap(available, next int64) int64 {
	ceiling := next + l.MaxBatchSize - 1
	if ceiling < available {
		return ceiling
	}
	return available
}
