package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/graph"
	"github.com/lixenwraith/beatpad/parameter"
	"github.com/lixenwraith/beatpad/status"
)

// ErrInvalidBPM rejects a tempo that is not a positive finite number
var ErrInvalidBPM = errors.New("invalid bpm")

func checkBPM(bpm float64) error {
	if bpm <= 0 || math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidBPM, bpm)
	}
	return nil
}

// MetronomeState is a snapshot of the metronome
type MetronomeState struct {
	Running      bool
	BPM          float64
	Sound        string
	Volume       float64
	NextBeatTime float64
}

// Metronome schedules click sources on the audio clock ahead of time
// A wall-clock pass every MetronomeLookahead commits every beat falling within
// MetronomeScheduleAhead seconds, so timer jitter never shifts a click
type Metronome struct {
	backend Backend
	bank    *Bank
	sched   Scheduler
	log     logging.LeveledLogger
	gain    *graph.Gain

	mu       sync.Mutex
	state    MetronomeState
	click    *graph.Buffer
	onTick   func()
	observer func(at float64)
	timer    Timer
	active   map[*graph.Source]struct{}
	lastBeat float64
	beatSeen bool
	// gen invalidates passes and tick callbacks scheduled before the last start or stop
	gen uint64

	beats   *atomic.Int64
	running *atomic.Bool
	bpm     *status.AtomicFloat
}

// NewMetronome creates a stopped metronome; sched nil uses the runtime timer
func NewMetronome(backend Backend, bank *Bank, sched Scheduler, log logging.LeveledLogger, reg *status.Registry) *Metronome {
	if sched == nil {
		sched = TimeScheduler{}
	}
	if reg == nil {
		reg = status.NewRegistry()
	}
	return &Metronome{
		backend: backend,
		bank:    bank,
		sched:   sched,
		log:     log,
		gain:    backend.NewGain(parameter.MetronomeDefaultVolume),
		state: MetronomeState{
			Sound:  parameter.MetronomeDefaultSound,
			Volume: parameter.MetronomeDefaultVolume,
		},
		active:  make(map[*graph.Source]struct{}),
		beats:   reg.Ints.Get("metronome.beats"),
		running: reg.Bools.Get("metronome.running"),
		bpm:     reg.Floats.Get("metronome.bpm"),
	}
}

// SetBeatObserver registers fn to receive the audio clock time of every scheduled click
func (m *Metronome) SetBeatObserver(fn func(at float64)) {
	m.mu.Lock()
	m.observer = fn
	m.mu.Unlock()
}

// Start begins clicking at bpm; onTick is called near each click's audible time
// When already running, Start only updates bpm, sound and volume
func (m *Metronome) Start(ctx context.Context, bpm float64, onTick func(), sound string, volume float64) {
	if err := checkBPM(bpm); err != nil {
		m.log.Warnf("metronome start ignored: %v", err)
		return
	}
	if sound == "" {
		sound = parameter.MetronomeDefaultSound
	}
	click := m.bank.Metronome(ctx, sound)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Running {
		m.setBPMLocked(bpm)
		m.setVolumeLocked(volume)
		if click != nil {
			m.click = click
			m.state.Sound = sound
		}
		return
	}

	if click == nil {
		return
	}
	if err := ensureRunning(m.backend); err != nil {
		m.log.Warnf("resume audio context: %v", err)
		return
	}

	m.stopLocked()
	m.click = click
	m.onTick = onTick
	m.state.Running = true
	m.state.BPM = bpm
	m.state.Sound = sound
	m.setVolumeLocked(volume)
	m.state.NextBeatTime = m.backend.CurrentTime() + parameter.MetronomeStartMargin
	m.beatSeen = false
	m.running.Store(true)
	m.bpm.Set(bpm)

	m.log.Debugf("metronome start: %.1f bpm, sound %s", bpm, sound)
	m.passLocked(m.gen)
}

// Stop halts scheduling, cancels pending clicks and suppresses further onTick calls
func (m *Metronome) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Metronome) stopLocked() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	for src := range m.active {
		_ = src.Stop()
	}
	clear(m.active)
	m.onTick = nil
	m.state.Running = false
	m.running.Store(false)
}

// UpdateBPM changes the interval for clicks not yet scheduled
// The next beat follows the last scheduled one at the new interval
func (m *Metronome) UpdateBPM(bpm float64) {
	if err := checkBPM(bpm); err != nil {
		m.log.Debugf("bpm update ignored: %v", err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setBPMLocked(bpm)
}

func (m *Metronome) setBPMLocked(bpm float64) {
	m.state.BPM = bpm
	m.bpm.Set(bpm)
	if !m.state.Running || !m.beatSeen {
		return
	}
	interval := 60 / bpm
	next := m.lastBeat + interval
	// A faster tempo can land the rebased beat behind the clock; skip whole intervals
	if now := m.backend.CurrentTime(); next < now {
		next += math.Ceil((now-next)/interval) * interval
	}
	m.state.NextBeatTime = next
}

// UpdateVolume sets the shared click gain, taking effect on clicks already scheduled
func (m *Metronome) UpdateVolume(volume float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setVolumeLocked(volume)
}

func (m *Metronome) setVolumeLocked(volume float64) {
	if volume < 0 {
		volume = 0
	}
	m.state.Volume = volume
	m.gain.Set(volume)
}

// UpdateSound switches the click for subsequently scheduled beats
// A name that cannot be loaded leaves the current sound in place
func (m *Metronome) UpdateSound(ctx context.Context, sound string) {
	click := m.bank.Metronome(ctx, sound)
	if click == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.click = click
	m.state.Sound = sound
}

// State returns a snapshot
func (m *Metronome) State() MetronomeState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// pass is the look-ahead timer callback
func (m *Metronome) pass(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen || !m.state.Running {
		return
	}
	m.passLocked(gen)
}

// passLocked schedules every beat before now+ScheduleAhead, then re-arms the timer
func (m *Metronome) passLocked(gen uint64) {
	now := m.backend.CurrentTime()
	for m.state.NextBeatTime < now+parameter.MetronomeScheduleAhead {
		at := m.state.NextBeatTime
		m.scheduleClickLocked(at, now, gen)
		m.lastBeat = at
		m.beatSeen = true
		m.state.NextBeatTime = at + 60/m.state.BPM
	}
	m.timer = m.sched.AfterFunc(parameter.MetronomeLookahead, func() { m.pass(gen) })
}

func (m *Metronome) scheduleClickLocked(at, now float64, gen uint64) {
	src, err := m.backend.NewSource(m.click, m.gain)
	if err != nil {
		m.log.Warnf("metronome click: %v", err)
		return
	}
	m.active[src] = struct{}{}
	src.OnEnded(func() {
		m.mu.Lock()
		delete(m.active, src)
		m.mu.Unlock()
	})
	if err := src.Start(at); err != nil {
		delete(m.active, src)
		m.log.Warnf("metronome click: %v", err)
		return
	}

	m.beats.Add(1)
	if m.observer != nil {
		m.observer(at)
	}

	if tick := m.onTick; tick != nil {
		delay := time.Duration(math.Max(0, at-now) * float64(time.Second))
		m.sched.AfterFunc(delay, func() {
			m.mu.Lock()
			live := gen == m.gen && m.state.Running
			m.mu.Unlock()
			if live {
				tick()
			}
		})
	}
}
