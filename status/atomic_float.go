package status

import (
	"math"
	"sync/atomic"
)

// AtomicFloat stores a float64 as its IEEE bits
// Zero value reads as 0.0; gain nodes read it from the render thread without locking
type AtomicFloat struct {
	bits atomic.Uint64
}

// NewAtomicFloat returns an AtomicFloat holding val
func NewAtomicFloat(val float64) *AtomicFloat {
	f := &AtomicFloat{}
	f.Set(val)
	return f
}

// Set stores val
func (f *AtomicFloat) Set(val float64) {
	f.bits.Store(math.Float64bits(val))
}

// Get loads the current value
func (f *AtomicFloat) Get() float64 {
	return math.Float64frombits(f.bits.Load())
}

// Swap stores val and returns the previous value
func (f *AtomicFloat) Swap(val float64) float64 {
	return math.Float64frombits(f.bits.Swap(math.Float64bits(val)))
}

// Add adds delta with a CAS loop and returns the new value
func (f *AtomicFloat) Add(delta float64) float64 {
	for {
		old := f.bits.Load()
		next := math.Float64frombits(old) + delta
		if f.bits.CompareAndSwap(old, math.Float64bits(next)) {
			return next
		}
	}
}
