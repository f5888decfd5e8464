package graph

import (
	"sync"

	"github.com/gopxl/beep"
)

type sourceState int

const (
	sourceCreated sourceState = iota
	sourceScheduled
	sourceEnded
)

// Source is a one-shot playback of a Buffer
// A source starts at most once; stopping it or reaching the end of the buffer ends it
type Source struct {
	ctx    *Context
	buf    *Buffer
	out    *Gain
	stream beep.StreamSeeker

	// Guarded by ctx.mu
	state      sourceState
	startFrame int64
	onEnded    func()

	endOnce sync.Once
}

// Buffer returns the buffer this source plays
func (s *Source) Buffer() *Buffer {
	return s.buf
}

// OnEnded sets the callback delivered once when the source ends for any reason
func (s *Source) OnEnded(fn func()) {
	s.ctx.mu.Lock()
	s.onEnded = fn
	s.ctx.mu.Unlock()
}

// Start schedules playback at audio clock time at; times not in the future start immediately
func (s *Source) Start(at float64) error {
	c := s.ctx
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateClosed {
		return ErrClosed
	}
	if s.state != sourceCreated {
		return ErrInvalidState
	}

	frame := c.frameAt(at)
	if frame < c.frame {
		frame = c.frame
	}
	s.startFrame = frame
	s.state = sourceScheduled
	c.sources = append(c.sources, s)
	c.active.Store(int64(len(c.sources)))
	return nil
}

// StartTime returns the scheduled start in audio clock seconds
func (s *Source) StartTime() float64 {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return float64(s.startFrame) / float64(s.ctx.rate)
}

// Ended reports whether the source has finished or was stopped
func (s *Source) Ended() bool {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	return s.state == sourceEnded
}

// Stop ends a scheduled or playing source and queues its ended notification
// Returns ErrInvalidState when the source was never started or already ended
func (s *Source) Stop() error {
	c := s.ctx
	c.mu.Lock()
	switch s.state {
	case sourceCreated:
		s.state = sourceEnded
		c.mu.Unlock()
		return ErrInvalidState
	case sourceEnded:
		c.mu.Unlock()
		return ErrInvalidState
	}

	s.state = sourceEnded
	for i, other := range c.sources {
		if other == s {
			c.sources = append(c.sources[:i], c.sources[i+1:]...)
			break
		}
	}
	c.active.Store(int64(len(c.sources)))
	c.mu.Unlock()

	c.queueEnded([]*Source{s})
	return nil
}

func (s *Source) fireEnded() {
	s.endOnce.Do(func() {
		s.ctx.mu.Lock()
		fn := s.onEnded
		s.ctx.mu.Unlock()
		if fn != nil {
			fn()
		}
	})
}
