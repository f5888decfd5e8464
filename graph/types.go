package graph

import (
	"errors"
)

// State is the lifecycle state of a Context
type State int32

const (
	// StateSuspended renders silence and holds the audio clock
	StateSuspended State = iota
	// StateRunning advances the clock and mixes scheduled sources
	StateRunning
	// StateClosed is terminal; no new sources or decodes are accepted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateSuspended:
		return "suspended"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// BackendType identifies a CLI audio backend used by PipeOutput
type BackendType int

const (
	BackendPulse BackendType = iota
	BackendPipeWire
	BackendALSA
	BackendSoX
	BackendFFplay
)

// BackendConfig describes a CLI audio backend
type BackendConfig struct {
	Type BackendType
	Name string
	Path string
	Args []string
}

// Sentinel errors
var (
	ErrClosed            = errors.New("audio context closed")
	ErrInvalidState      = errors.New("invalid source state")
	ErrDecode            = errors.New("audio decode failed")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	ErrNoAudioBackend    = errors.New("no compatible audio backend found")
	ErrPipeClosed        = errors.New("audio pipe closed")
)
