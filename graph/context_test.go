package graph

import (
	"errors"
	"math"
	"testing"

	"github.com/gopxl/beep"
)

const testRate = beep.SampleRate(1000)

func newTestContext() *Context {
	return NewContext(Options{SampleRate: testRate, Running: true})
}

// constBuffer builds a buffer of frames samples at value v on both channels
func constBuffer(c *Context, frames int, v float64) *Buffer {
	gen := beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			samples[i] = [2]float64{v, v}
		}
		return len(samples), true
	})
	return NewBuffer("const", c.Format(), beep.Take(frames, gen))
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

// TestContext_SuspendedHoldsClock verifies a suspended context renders silence without advancing
func TestContext_SuspendedHoldsClock(t *testing.T) {
	c := NewContext(Options{SampleRate: testRate})
	if c.State() != StateSuspended {
		t.Fatalf("Expected suspended, got %s", c.State())
	}

	src, _ := c.NewSource(constBuffer(c, 10, 0.5), nil)
	_ = src.Start(0)

	out := c.Render(50)
	for i, s := range out {
		if s[0] != 0 {
			t.Fatalf("Expected silence at %d, got %f", i, s[0])
		}
	}
	if c.CurrentFrame() != 0 {
		t.Errorf("Expected clock at 0, got %d", c.CurrentFrame())
	}

	if err := c.Resume(); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	out = c.Render(5)
	if !near(out[0][0], 0.5) {
		t.Errorf("Expected 0.5 after resume, got %f", out[0][0])
	}
	if c.CurrentTime() != 0.005 {
		t.Errorf("Expected time 0.005, got %f", c.CurrentTime())
	}
}

// TestSource_StartsAtScheduledFrame verifies sample-accurate scheduled starts
func TestSource_StartsAtScheduledFrame(t *testing.T) {
	c := newTestContext()
	src, err := c.NewSource(constBuffer(c, 10, 0.5), nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	if err := src.Start(0.005); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	out := c.Render(20)
	for i := 0; i < 5; i++ {
		if out[i][0] != 0 {
			t.Errorf("Expected silence before start at %d, got %f", i, out[i][0])
		}
	}
	for i := 5; i < 15; i++ {
		if !near(out[i][0], 0.5) {
			t.Errorf("Expected 0.5 at %d, got %f", i, out[i][0])
		}
	}
	for i := 15; i < 20; i++ {
		if out[i][0] != 0 {
			t.Errorf("Expected silence after end at %d, got %f", i, out[i][0])
		}
	}
	if src.StartTime() != 0.005 {
		t.Errorf("Expected start time 0.005, got %f", src.StartTime())
	}
}

// TestSource_PastStartPlaysNow verifies a start time behind the clock starts immediately
func TestSource_PastStartPlaysNow(t *testing.T) {
	c := newTestContext()
	c.Render(100)

	src, _ := c.NewSource(constBuffer(c, 4, 0.5), nil)
	_ = src.Start(0.01)

	out := c.Render(4)
	if !near(out[0][0], 0.5) {
		t.Errorf("Expected immediate playback, got %f", out[0][0])
	}
	if src.StartTime() != 0.1 {
		t.Errorf("Expected start clamped to 0.1, got %f", src.StartTime())
	}
}

// TestSource_EndedFiresOnce verifies natural end delivers exactly one notification
func TestSource_EndedFiresOnce(t *testing.T) {
	c := newTestContext()
	src, _ := c.NewSource(constBuffer(c, 10, 0.5), nil)

	count := 0
	src.OnEnded(func() { count++ })
	_ = src.Start(0)

	c.Render(5)
	if count != 0 {
		t.Fatalf("Expected no ended before buffer end, got %d", count)
	}
	c.Render(5)
	if count != 1 {
		t.Fatalf("Expected ended at buffer end, got %d", count)
	}
	if !src.Ended() {
		t.Error("Expected source to report ended")
	}

	if err := src.Stop(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState stopping ended source, got %v", err)
	}
	c.Render(5)
	if count != 1 {
		t.Errorf("Expected single ended notification, got %d", count)
	}
}

// TestSource_StopSilencesAndNotifies verifies explicit stop removes the source and queues ended
func TestSource_StopSilencesAndNotifies(t *testing.T) {
	c := newTestContext()
	src, _ := c.NewSource(constBuffer(c, 100, 0.5), nil)
	ended := false
	src.OnEnded(func() { ended = true })
	_ = src.Start(0)
	c.Render(10)

	if err := src.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	out := c.Render(10)
	if out[0][0] != 0 {
		t.Errorf("Expected silence after stop, got %f", out[0][0])
	}
	if !ended {
		t.Error("Expected ended notification after stop")
	}

	idle, _ := c.NewSource(constBuffer(c, 10, 0.5), nil)
	idleEnded := false
	idle.OnEnded(func() { idleEnded = true })
	if err := idle.Stop(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState stopping unstarted source, got %v", err)
	}
	if err := idle.Start(0); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState starting stopped source, got %v", err)
	}
	c.Flush()
	if idleEnded {
		t.Error("Expected no ended notification for unstarted source")
	}
}

// TestGain_ScalesThroughDestination verifies gain nodes and the destination multiply
func TestGain_ScalesThroughDestination(t *testing.T) {
	c := newTestContext()
	g := c.NewGain(0.5)
	c.Destination().Set(0.5)

	src, _ := c.NewSource(constBuffer(c, 10, 0.5), g)
	_ = src.Start(0)
	out := c.Render(2)
	if !near(out[0][0], 0.125) {
		t.Errorf("Expected 0.125, got %f", out[0][0])
	}

	g.Set(-1)
	if g.Value() != 0 {
		t.Errorf("Expected negative gain clamped to 0, got %f", g.Value())
	}
	out = c.Render(2)
	if out[0][0] != 0 {
		t.Errorf("Expected silence at zero gain, got %f", out[0][0])
	}
}

// TestSource_Overlap verifies concurrent sources sum
func TestSource_Overlap(t *testing.T) {
	c := newTestContext()
	a, _ := c.NewSource(constBuffer(c, 10, 0.25), nil)
	b, _ := c.NewSource(constBuffer(c, 10, 0.25), nil)
	_ = a.Start(0)
	_ = b.Start(0)

	out := c.Render(1)
	if !near(out[0][0], 0.5) {
		t.Errorf("Expected summed 0.5, got %f", out[0][0])
	}
}

// TestContext_Close verifies close ends sources and rejects further use
func TestContext_Close(t *testing.T) {
	c := newTestContext()
	src, _ := c.NewSource(constBuffer(c, 100, 0.5), nil)
	ended := 0
	src.OnEnded(func() { ended++ })
	_ = src.Start(0)

	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Expected idempotent close, got %v", err)
	}
	if ended != 1 {
		t.Errorf("Expected one ended notification on close, got %d", ended)
	}
	if c.State() != StateClosed {
		t.Errorf("Expected closed, got %s", c.State())
	}
	if _, err := c.NewSource(constBuffer(c, 1, 0), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from NewSource, got %v", err)
	}
	if err := c.Resume(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Resume, got %v", err)
	}
}

// TestContext_RejectsForeignRate verifies buffers must match the context rate
func TestContext_RejectsForeignRate(t *testing.T) {
	c := newTestContext()
	other := NewContext(Options{SampleRate: 2000, Running: true})
	if _, err := c.NewSource(constBuffer(other, 10, 0.5), nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := c.NewSource(nil, nil); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Expected ErrInvalidState for nil buffer, got %v", err)
	}
}
