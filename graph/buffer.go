package graph

import (
	"time"

	"github.com/gopxl/beep"
)

// Buffer is decoded PCM at its context's sample rate
// Buffers are immutable once built and may back any number of sources
type Buffer struct {
	name string
	data *beep.Buffer
}

// NewBuffer drains s into a Buffer of the given format
func NewBuffer(name string, format beep.Format, s beep.Streamer) *Buffer {
	data := beep.NewBuffer(format)
	data.Append(s)
	return &Buffer{name: name, data: data}
}

// Name returns the asset reference the buffer was decoded from
func (b *Buffer) Name() string {
	return b.name
}

// Frames returns the length in sample frames
func (b *Buffer) Frames() int {
	return b.data.Len()
}

// Format returns the PCM format
func (b *Buffer) Format() beep.Format {
	return b.data.Format()
}

// Duration returns the playback length
func (b *Buffer) Duration() time.Duration {
	return b.data.Format().SampleRate.D(b.data.Len())
}

// Seconds returns the playback length in audio clock seconds
func (b *Buffer) Seconds() float64 {
	return float64(b.data.Len()) / float64(b.data.Format().SampleRate)
}

// streamer returns an independent cursor over the whole buffer
func (b *Buffer) streamer() beep.StreamSeeker {
	return b.data.Streamer(0, b.data.Len())
}
