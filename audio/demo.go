package audio

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/graph"
	"github.com/lixenwraith/beatpad/status"
)

// DemoResult is how a demo playback finished
type DemoResult int

const (
	// DemoCompleted means the track played to its end
	DemoCompleted DemoResult = iota
	// DemoInterrupted means it was stopped or replaced first
	DemoInterrupted
)

func (r DemoResult) String() string {
	if r == DemoCompleted {
		return "completed"
	}
	return "interrupted"
}

// DemoState is a snapshot of the demo player
type DemoState struct {
	Playing   bool
	Pack      string
	StartedAt float64
	Duration  time.Duration
}

type demoSession struct {
	pack    string
	src     *graph.Source
	started float64
	length  time.Duration
	done    chan DemoResult
	once    sync.Once
}

// resolve delivers the result exactly once and closes the channel
func (s *demoSession) resolve(r DemoResult) {
	s.once.Do(func() {
		s.done <- r
		close(s.done)
	})
}

// DemoPlayer plays at most one pack demo track at a time
type DemoPlayer struct {
	backend Backend
	bank    *Bank
	log     logging.LeveledLogger

	mu     sync.Mutex
	active *demoSession

	played *atomic.Int64
}

// NewDemoPlayer creates an idle demo player
func NewDemoPlayer(backend Backend, bank *Bank, log logging.LeveledLogger, reg *status.Registry) *DemoPlayer {
	if reg == nil {
		reg = status.NewRegistry()
	}
	return &DemoPlayer{
		backend: backend,
		bank:    bank,
		log:     log,
		played:  reg.Ints.Get("demo.played"),
	}
}

// Play stops any current demo and starts packID's demo track
// The returned channel yields DemoCompleted if the track reaches its end while still
// the active demo, DemoInterrupted otherwise; false means nothing started
func (d *DemoPlayer) Play(ctx context.Context, packID string) (<-chan DemoResult, bool) {
	if packID == "" {
		return nil, false
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()

	buf := d.bank.LoadDemo(ctx, packID)
	if buf == nil {
		return nil, false
	}
	if err := ensureRunning(d.backend); err != nil {
		d.log.Warnf("resume audio context: %v", err)
		return nil, false
	}

	src, err := d.backend.NewSource(buf, nil)
	if err != nil {
		d.log.Warnf("demo %s: %v", packID, err)
		return nil, false
	}

	s := &demoSession{
		pack:   packID,
		src:    src,
		length: buf.Duration(),
		done:   make(chan DemoResult, 1),
	}
	src.OnEnded(func() {
		d.mu.Lock()
		if d.active == s {
			d.active = nil
		}
		d.mu.Unlock()
		s.resolve(DemoCompleted)
	})

	if err := src.Start(0); err != nil {
		d.log.Warnf("demo %s: %v", packID, err)
		return nil, false
	}
	s.started = src.StartTime()
	d.active = s
	d.played.Add(1)
	return s.done, true
}

// Stop ends the current demo, resolving it as interrupted
func (d *DemoPlayer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
}

func (d *DemoPlayer) stopLocked() {
	s := d.active
	if s == nil {
		return
	}
	d.active = nil
	_ = s.src.Stop()
	s.resolve(DemoInterrupted)
}

// State returns a snapshot
func (d *DemoPlayer) State() DemoState {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.active == nil {
		return DemoState{}
	}
	return DemoState{
		Playing:   true,
		Pack:      d.active.pack,
		StartedAt: d.active.started,
		Duration:  d.active.length,
	}
}
