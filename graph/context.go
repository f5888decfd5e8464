package graph

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/core"
	"github.com/lixenwraith/beatpad/parameter"
	"github.com/lixenwraith/beatpad/status"
)

// Options configures a Context
type Options struct {
	SampleRate beep.SampleRate
	// Running starts the clock immediately instead of suspended
	Running bool
	Logger  logging.LeveledLogger
	Status  *status.Registry
}

// Context is a pull-driven audio graph and the owner of the audio clock
// The clock is the count of frames rendered while running; outputs pull Stream at device pace
// Ended notifications are queued on the render path and delivered outside the graph lock
type Context struct {
	rate beep.SampleRate
	log  logging.LeveledLogger
	dest *Gain

	mu      sync.Mutex
	frame   int64
	state   State
	sources []*Source
	scratch [][2]float64

	endedMu sync.Mutex
	ended   []*Source

	wake      chan struct{}
	done      chan struct{}
	notifying atomic.Bool

	frames *atomic.Int64
	active *atomic.Int64
}

// NewContext creates a suspended (or running) context at the given rate
func NewContext(opts Options) *Context {
	rate := opts.SampleRate
	if rate <= 0 {
		rate = beep.SampleRate(parameter.AudioSampleRate)
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewDefaultLoggerFactory().NewLogger("graph")
	}
	reg := opts.Status
	if reg == nil {
		reg = status.NewRegistry()
	}

	state := StateSuspended
	if opts.Running {
		state = StateRunning
	}

	return &Context{
		rate:   rate,
		log:    log,
		dest:   newGain(1),
		state:  state,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		frames: reg.Ints.Get("graph.frames"),
		active: reg.Ints.Get("graph.active_sources"),
	}
}

// SampleRate returns the rate all buffers of this context are decoded to
func (c *Context) SampleRate() beep.SampleRate {
	return c.rate
}

// Format returns the PCM format used for decoded buffers
func (c *Context) Format() beep.Format {
	return beep.Format{
		SampleRate:  c.rate,
		NumChannels: parameter.AudioChannels,
		Precision:   parameter.AudioBitDepth / 8,
	}
}

// CurrentTime returns the audio clock in seconds
func (c *Context) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return float64(c.frame) / float64(c.rate)
}

// CurrentFrame returns the audio clock in frames
func (c *Context) CurrentFrame() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame
}

// State returns the lifecycle state
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resume starts or continues the clock
func (c *Context) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	c.state = StateRunning
	return nil
}

// Suspend holds the clock; scheduled sources keep their start frames
func (c *Context) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return ErrClosed
	}
	c.state = StateSuspended
	return nil
}

// Close stops every source, delivers their ended notifications and rejects further use
// Safe to call multiple times
func (c *Context) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	stopped := c.sources
	c.sources = nil
	for _, s := range stopped {
		s.state = sourceEnded
	}
	c.active.Store(0)
	c.mu.Unlock()

	c.queueEnded(stopped)
	close(c.done)
	if !c.notifying.Load() {
		c.Flush()
	}
	return nil
}

// Destination returns the master gain every source is finally mixed through
func (c *Context) Destination() *Gain {
	return c.dest
}

// NewGain creates a gain node routed to the destination
func (c *Context) NewGain(v float64) *Gain {
	return newGain(v)
}

// NewSource creates a one-shot source for buf; out nil routes straight to the destination
func (c *Context) NewSource(buf *Buffer, out *Gain) (*Source, error) {
	if buf == nil {
		return nil, ErrInvalidState
	}
	if buf.Format().SampleRate != c.rate {
		return nil, ErrUnsupportedFormat
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		return nil, ErrClosed
	}
	return &Source{
		ctx:    c,
		buf:    buf,
		out:    out,
		stream: buf.streamer(),
	}, nil
}

// Stream renders the next block of the mix; it is the beep.Streamer outputs pull from
// A suspended or closed context yields silence and does not advance the clock
func (c *Context) Stream(samples [][2]float64) (int, bool) {
	for i := range samples {
		samples[i] = [2]float64{}
	}

	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		return len(samples), true
	}

	n := len(samples)
	start := c.frame
	end := start + int64(n)
	if len(c.scratch) < n {
		c.scratch = make([][2]float64, n)
	}
	master := c.dest.Value()

	var finished []*Source
	live := c.sources[:0]
	for _, s := range c.sources {
		if s.startFrame >= end {
			live = append(live, s)
			continue
		}

		off := 0
		if s.startFrame > start {
			off = int(s.startFrame - start)
		}
		want := n - off
		buf := c.scratch[:want]
		got, _ := s.stream.Stream(buf)

		gain := master
		if s.out != nil {
			gain *= s.out.Value()
		}
		for i := 0; i < got; i++ {
			samples[off+i][0] += buf[i][0] * gain
			samples[off+i][1] += buf[i][1] * gain
		}

		if got < want || s.stream.Position() >= s.stream.Len() {
			s.state = sourceEnded
			finished = append(finished, s)
			continue
		}
		live = append(live, s)
	}
	for i := len(live); i < len(c.sources); i++ {
		c.sources[i] = nil
	}
	c.sources = live
	c.frame = end
	c.active.Store(int64(len(live)))
	c.mu.Unlock()

	c.frames.Add(int64(n))
	c.queueEnded(finished)
	return n, true
}

// Err implements beep.Streamer
func (c *Context) Err() error {
	return nil
}

// Render pulls frames synchronously and delivers ended notifications before returning
// Used for offline rendering where no output drives the clock
func (c *Context) Render(frames int) [][2]float64 {
	out := make([][2]float64, frames)
	c.Stream(out)
	c.Flush()
	return out
}

// Flush delivers pending ended notifications on the calling goroutine
func (c *Context) Flush() {
	c.endedMu.Lock()
	pending := c.ended
	c.ended = nil
	c.endedMu.Unlock()

	for _, s := range pending {
		s.fireEnded()
	}
}

// startNotifier moves ended delivery to a background goroutine for live outputs
func (c *Context) startNotifier() {
	if !c.notifying.CompareAndSwap(false, true) {
		return
	}
	core.Go(func() {
		for {
			select {
			case <-c.wake:
				c.Flush()
			case <-c.done:
				c.Flush()
				return
			}
		}
	})
}

func (c *Context) queueEnded(sources []*Source) {
	if len(sources) == 0 {
		return
	}
	c.endedMu.Lock()
	c.ended = append(c.ended, sources...)
	c.endedMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// frameAt converts an audio clock time to a frame index
func (c *Context) frameAt(seconds float64) int64 {
	return int64(math.Round(seconds * float64(c.rate)))
}
