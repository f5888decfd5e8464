package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/url"
	"strconv"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/wav"
	"github.com/orcaman/writerseeker"
)

// Synth describes a generated one-shot tone
// Reference form: synth://<wave>?freq=1500&ms=30&gain=0.8&decay=40
type Synth struct {
	Wave   string
	Freq   float64
	Length time.Duration
	Gain   float64
	// Decay is the exponential amplitude decay rate per second, 0 for a flat tone
	Decay float64
}

// ParseSynth parses a synth:// reference
func ParseSynth(ref string) (Synth, error) {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "synth" {
		return Synth{}, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}

	s := Synth{
		Wave:   u.Host,
		Freq:   440,
		Length: 100 * time.Millisecond,
		Gain:   0.8,
	}
	q := u.Query()
	for key, dst := range map[string]*float64{"freq": &s.Freq, "gain": &s.Gain, "decay": &s.Decay} {
		if v := q.Get(key); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return Synth{}, fmt.Errorf("%w: %s: bad %s", ErrUnsupportedRef, ref, key)
			}
			*dst = f
		}
	}
	if v := q.Get("ms"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return Synth{}, fmt.Errorf("%w: %s: bad ms", ErrUnsupportedRef, ref)
		}
		s.Length = time.Duration(ms) * time.Millisecond
	}
	return s, nil
}

// Render encodes the tone as a 16-bit stereo WAV
func (s Synth) Render(rate beep.SampleRate) ([]byte, error) {
	osc, err := s.oscillator(rate)
	if err != nil {
		return nil, err
	}

	frames := rate.N(s.Length)
	var tone beep.Streamer = &effects.Gain{Streamer: beep.Take(frames, osc), Gain: s.Gain - 1}
	if s.Decay > 0 {
		tone = &decay{Streamer: tone, factor: math.Exp(-s.Decay / float64(rate)), level: 1}
	}

	ws := &writerseeker.WriterSeeker{}
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(ws, tone, format); err != nil {
		return nil, fmt.Errorf("encode synth tone: %w", err)
	}

	var out bytes.Buffer
	if _, err := out.ReadFrom(ws.Reader()); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func (s Synth) oscillator(rate beep.SampleRate) (beep.Streamer, error) {
	switch s.Wave {
	case "sine":
		return generators.SineTone(rate, s.Freq)
	case "square":
		return generators.SquareTone(rate, s.Freq)
	case "triangle":
		return generators.TriangleTone(rate, s.Freq)
	case "saw":
		return generators.SawtoothTone(rate, s.Freq)
	case "noise":
		rng := rand.New(rand.NewPCG(uint64(s.Freq), 0x9e3779b97f4a7c15))
		return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
			for i := range samples {
				v := rng.Float64()*2 - 1
				samples[i] = [2]float64{v, v}
			}
			return len(samples), true
		}), nil
	default:
		return nil, fmt.Errorf("%w: unknown wave %q", ErrUnsupportedRef, s.Wave)
	}
}

// decay applies an exponential amplitude envelope
type decay struct {
	beep.Streamer
	factor float64
	level  float64
}

func (d *decay) Stream(samples [][2]float64) (int, bool) {
	n, ok := d.Streamer.Stream(samples)
	for i := 0; i < n; i++ {
		samples[i][0] *= d.level
		samples[i][1] *= d.level
		d.level *= d.factor
	}
	return n, ok
}

// SynthResolver renders synth:// references on demand
type SynthResolver struct {
	SampleRate beep.SampleRate
}

func (r *SynthResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := ParseSynth(ref)
	if err != nil {
		return nil, err
	}
	data, err := s.Render(r.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedRef, ref, err)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}
