package graph

import (
	"github.com/lixenwraith/beatpad/status"
)

// Gain is a volume node between sources and the destination
// The value is read by the render thread without locking
type Gain struct {
	value status.AtomicFloat
}

func newGain(v float64) *Gain {
	g := &Gain{}
	g.Set(v)
	return g
}

// Set updates the gain; negative values clamp to zero
func (g *Gain) Set(v float64) {
	if v < 0 {
		v = 0
	}
	g.value.Set(v)
}

// Value returns the current gain
func (g *Gain) Value() float64 {
	return g.value.Get()
}
