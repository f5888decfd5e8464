package asset

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gopxl/beep/wav"
)

// TestParseSynth verifies defaults and overrides
func TestParseSynth(t *testing.T) {
	s, err := ParseSynth("synth://sine")
	if err != nil {
		t.Fatalf("ParseSynth failed: %v", err)
	}
	if s.Wave != "sine" || s.Freq != 440 || s.Length != 100*time.Millisecond || s.Gain != 0.8 || s.Decay != 0 {
		t.Errorf("Unexpected defaults: %+v", s)
	}

	s, err = ParseSynth("synth://square?freq=1500&ms=30&gain=0.5&decay=40")
	if err != nil {
		t.Fatalf("ParseSynth failed: %v", err)
	}
	if s.Wave != "square" || s.Freq != 1500 || s.Length != 30*time.Millisecond || s.Gain != 0.5 || s.Decay != 40 {
		t.Errorf("Unexpected overrides: %+v", s)
	}

	for _, bad := range []string{"synth://sine?ms=0", "synth://sine?freq=abc", "synth://sine?gain=-1", "file:///x.wav"} {
		if _, err := ParseSynth(bad); !errors.Is(err, ErrUnsupportedRef) {
			t.Errorf("ParseSynth(%s): expected ErrUnsupportedRef, got %v", bad, err)
		}
	}
}

// TestSynthResolver_RendersDecodableWAV verifies generated assets decode at the requested length
func TestSynthResolver_RendersDecodableWAV(t *testing.T) {
	r := &SynthResolver{SampleRate: 8000}

	for _, wave := range []string{"sine", "square", "triangle", "saw", "noise"} {
		data, err := ReadAll(context.Background(), r, "synth://"+wave+"?freq=500&ms=50&decay=30")
		if err != nil {
			t.Fatalf("%s: ReadAll failed: %v", wave, err)
		}
		s, format, err := wav.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("%s: wav.Decode failed: %v", wave, err)
		}
		if format.SampleRate != 8000 {
			t.Errorf("%s: expected rate 8000, got %d", wave, format.SampleRate)
		}
		if s.Len() != 400 {
			t.Errorf("%s: expected 400 frames, got %d", wave, s.Len())
		}
	}

	if _, err := r.Open(context.Background(), "synth://organ"); !errors.Is(err, ErrUnsupportedRef) {
		t.Errorf("Expected ErrUnsupportedRef for unknown wave, got %v", err)
	}
	if _, err := r.Open(context.Background(), "synth://sine?freq=6000"); !errors.Is(err, ErrUnsupportedRef) {
		t.Errorf("Expected ErrUnsupportedRef above Nyquist, got %v", err)
	}
}
