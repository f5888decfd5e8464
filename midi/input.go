// Package midi turns note-on messages from a pad controller into pad hits
package midi

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"

	"github.com/lixenwraith/beatpad/parameter"
	"github.com/lixenwraith/beatpad/status"
)

var ErrNoPorts = errors.New("no MIDI input ports")

// PadHit is a note-on translated to a pad index
type PadHit struct {
	Pad      int
	Velocity uint8
	Channel  uint8
}

// NoteMap maps consecutive notes starting at Base to pads 0..Pads-1
type NoteMap struct {
	Base uint8
	Pads int
}

// DefaultNoteMap starts at the General MIDI kick note
func DefaultNoteMap(pads int) NoteMap {
	return NoteMap{Base: parameter.MidiBaseNote, Pads: pads}
}

// Translate maps a note-on with non-zero velocity; everything else is ignored
func (m NoteMap) Translate(msg gomidi.Message) (PadHit, bool) {
	var channel, note, velocity uint8
	if !msg.GetNoteOn(&channel, &note, &velocity) || velocity == 0 {
		return PadHit{}, false
	}
	if note < m.Base || int(note-m.Base) >= m.Pads {
		return PadHit{}, false
	}
	return PadHit{Pad: int(note - m.Base), Velocity: velocity, Channel: channel}, true
}

// Ports lists the names of available input ports
func Ports() []string {
	ins := gomidi.GetInPorts()
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names
}

// Input listens on one port and delivers pad hits
type Input struct {
	notes NoteMap
	log   logging.LeveledLogger
	port  string
	stop  func()
	hits  chan PadHit

	mu       sync.RWMutex
	closed   bool
	received *atomic.Int64
	dropped  *atomic.Int64
}

func newInput(notes NoteMap, log logging.LeveledLogger, reg *status.Registry) *Input {
	if reg == nil {
		reg = status.NewRegistry()
	}
	return &Input{
		notes:    notes,
		log:      log,
		hits:     make(chan PadHit, parameter.MidiHitBuffer),
		received: reg.Ints.Get("midi.hits"),
		dropped:  reg.Ints.Get("midi.dropped"),
	}
}

// Listen opens the named input port, or the first port when name is empty
func Listen(name string, notes NoteMap, log logging.LeveledLogger, reg *status.Registry) (*Input, error) {
	var port drivers.In
	if name == "" {
		ins := gomidi.GetInPorts()
		if len(ins) == 0 {
			return nil, ErrNoPorts
		}
		port = ins[0]
	} else {
		in, err := gomidi.FindInPort(name)
		if err != nil {
			return nil, fmt.Errorf("find port %q: %w", name, err)
		}
		port = in
	}

	in := newInput(notes, log, reg)
	in.port = port.String()
	stop, err := gomidi.ListenTo(port, in.handle)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", in.port, err)
	}
	in.stop = stop
	log.Infof("listening on %s", in.port)
	return in, nil
}

// handle runs on the driver goroutine and never blocks it
func (in *Input) handle(msg gomidi.Message, timestampms int32) {
	hit, ok := in.notes.Translate(msg)
	if !ok {
		return
	}
	in.received.Add(1)

	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.closed {
		return
	}
	select {
	case in.hits <- hit:
	default:
		in.dropped.Add(1)
	}
}

// Hits delivers pad hits until Close
func (in *Input) Hits() <-chan PadHit {
	return in.hits
}

// Port returns the name of the port being listened to
func (in *Input) Port() string {
	return in.port
}

// Close stops listening and closes the hit channel; safe to repeat
// The driver is stopped outside the lock since it may wait for a callback blocked in handle
func (in *Input) Close() error {
	in.mu.Lock()
	if in.closed {
		in.mu.Unlock()
		return nil
	}
	in.closed = true
	close(in.hits)
	in.mu.Unlock()

	if in.stop != nil {
		in.stop()
	}
	return nil
}
