package audio

import (
	"io"

	"github.com/lixenwraith/beatpad/graph"
)

// Backend is the audio graph the players drive; *graph.Context implements it
type Backend interface {
	CurrentTime() float64
	State() graph.State
	Resume() error
	Suspend() error
	NewSource(buf *graph.Buffer, out *graph.Gain) (*graph.Source, error)
	NewGain(v float64) *graph.Gain
	Decode(r io.Reader, hint string) (*graph.Buffer, error)
}

// ensureRunning resumes a suspended backend before a start is scheduled
func ensureRunning(b Backend) error {
	if b.State() == graph.StateSuspended {
		return b.Resume()
	}
	return nil
}
