package util

import "sync/atomic"

// SafeCounter is safe to use concurrently.
type SafeCounter struct {
	value int32
}

// NewSafeInt creates a new SafeCounter starting at zero.
func NewSafeInt() *SafeCounter {
	return &SafeCounter{}
}

// Increment increments the counter's value and returns the new value.
func (si *SafeCounter) Increment() int {
	return int(atomic.AddInt32(&si.value, 1))
}

// Value returns the current value of the counter.
func (si *SafeCounter) Value() int {
	return int(atomic.LoadInt32(&si.value))
}
