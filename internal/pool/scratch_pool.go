package pool

import "sync"

// Float64Pool implements a pool of float64 slices for efficient reuse of
// reduction scratch space across matching calls.
type Float64Pool struct {
	pool sync.Pool
}

// NewFloat64Pool creates a new pool of float64 slices with the given initial
// capacity.
func NewFloat64Pool(size int) *Float64Pool {
	return &Float64Pool{
		pool: sync.Pool{
			New: func() interface{} {
				buffer := make([]float64, 0, size)
				return &buffer
			},
		},
	}
}

// Get retrieves a slice from the pool or creates a new one if none are available.
func (fp *Float64Pool) Get() *[]float64 {
	return fp.pool.Get().(*[]float64)
}

// Put returns a slice to the pool for reuse.
func (fp *Float64Pool) Put(buffer *[]float64) {
	// Reset length but keep capacity
	*buffer = (*buffer)[:0]
	fp.pool.Put(buffer)
}
