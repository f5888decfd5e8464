package graph

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/flac"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"

	"github.com/lixenwraith/beatpad/parameter"
)

// Decode reads an encoded asset fully and returns it as a Buffer at the context rate
// The container is sniffed from magic bytes; hint's extension is the fallback
func (c *Context) Decode(r io.Reader, hint string) (*Buffer, error) {
	if c.State() == StateClosed {
		return nil, ErrClosed
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrDecode, hint, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrDecode, hint)
	}

	ext := sniffFormat(data)
	if ext == "" {
		ext = strings.ToLower(path.Ext(hint))
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch ext {
	case ".wav":
		s, format, err = wav.Decode(bytes.NewReader(data))
	case ".mp3":
		s, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	case ".ogg":
		s, format, err = vorbis.Decode(io.NopCloser(bytes.NewReader(data)))
	case ".flac":
		s, format, err = flac.Decode(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, hint)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, hint, err)
	}
	defer s.Close()

	var src beep.Streamer = s
	if format.SampleRate != c.rate {
		src = beep.Resample(parameter.AudioResampleQuality, format.SampleRate, c.rate, s)
	}

	buf := NewBuffer(hint, c.Format(), src)
	if err := src.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, hint, err)
	}
	if buf.Frames() == 0 {
		return nil, fmt.Errorf("%w: %s has no audio frames", ErrDecode, hint)
	}
	return buf, nil
}

// sniffFormat maps container magic bytes to a file extension
func sniffFormat(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return ".wav"
	case bytes.HasPrefix(data, []byte("OggS")):
		return ".ogg"
	case bytes.HasPrefix(data, []byte("fLaC")):
		return ".flac"
	case bytes.HasPrefix(data, []byte("ID3")):
		return ".mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return ".mp3"
	}
	return ""
}
