package audio

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/asset"
	"github.com/lixenwraith/beatpad/pack"
	"github.com/lixenwraith/beatpad/status"
)

// Options wires an Engine
type Options struct {
	Catalog  *pack.Catalog
	Resolver asset.Resolver
	Backend  Backend

	// Optional
	Loggers         logging.LoggerFactory
	Status          *status.Registry
	Scheduler       Scheduler
	LoadConcurrency int
	EventBuffer     int
}

// Engine is the facade over the sound bank and the three players
type Engine struct {
	backend   Backend
	catalog   *pack.Catalog
	bank      *Bank
	bus       *Bus
	trigger   *TriggerPlayer
	metronome *Metronome
	demo      *DemoPlayer
	status    *status.Registry
	log       logging.LeveledLogger

	closed atomic.Bool
}

// NewEngine builds the bank, event bus and players over opts.Backend
func NewEngine(opts Options) (*Engine, error) {
	if opts.Catalog == nil {
		return nil, errors.New("audio engine: catalog is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("audio engine: resolver is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("audio engine: backend is required")
	}

	loggers := opts.Loggers
	if loggers == nil {
		loggers = logging.NewDefaultLoggerFactory()
	}
	reg := opts.Status
	if reg == nil {
		reg = status.NewRegistry()
	}

	bank := NewBank(opts.Catalog, opts.Resolver, opts.Backend, loggers.NewLogger("bank"), reg, opts.LoadConcurrency)
	bus := NewBus(opts.EventBuffer, reg)
	e := &Engine{
		backend:   opts.Backend,
		catalog:   opts.Catalog,
		bank:      bank,
		bus:       bus,
		trigger:   NewTriggerPlayer(opts.Backend, bank, opts.Catalog, bus, loggers.NewLogger("trigger"), reg),
		metronome: NewMetronome(opts.Backend, bank, opts.Scheduler, loggers.NewLogger("metronome"), reg),
		demo:      NewDemoPlayer(opts.Backend, bank, loggers.NewLogger("demo"), reg),
		status:    reg,
		log:       loggers.NewLogger("engine"),
	}
	e.trigger.silence = func() {
		e.metronome.Stop()
		e.demo.Stop()
	}
	return e, nil
}

// SetActivePack switches the trigger pack; see TriggerPlayer.SetActivePack
func (e *Engine) SetActivePack(ctx context.Context, packID string) bool {
	if e.closed.Load() {
		return false
	}
	return e.trigger.SetActivePack(ctx, packID)
}

// Play triggers a pad sound; see TriggerPlayer.Play
func (e *Engine) Play(ctx context.Context, packID, sound string) bool {
	if e.closed.Load() {
		return false
	}
	return e.trigger.Play(ctx, packID, sound)
}

// StopSound stops a single trigger sound
func (e *Engine) StopSound(sound string) bool {
	return e.trigger.Stop(sound)
}

// StopAll stops the metronome, the demo and every trigger session
func (e *Engine) StopAll() {
	e.metronome.Stop()
	e.demo.Stop()
	e.trigger.StopAll()
}

// StartMetronome starts or updates the metronome
func (e *Engine) StartMetronome(ctx context.Context, bpm float64, onTick func(), sound string, volume float64) {
	if e.closed.Load() {
		return
	}
	e.metronome.Start(ctx, bpm, onTick, sound, volume)
}

// StopMetronome stops the metronome
func (e *Engine) StopMetronome() {
	e.metronome.Stop()
}

// UpdateBPM changes the metronome tempo
func (e *Engine) UpdateBPM(bpm float64) {
	e.metronome.UpdateBPM(bpm)
}

// UpdateVolume changes the metronome volume
func (e *Engine) UpdateVolume(volume float64) {
	e.metronome.UpdateVolume(volume)
}

// UpdateSound changes the metronome click
func (e *Engine) UpdateSound(ctx context.Context, sound string) {
	e.metronome.UpdateSound(ctx, sound)
}

// PlayDemo plays a pack demo; see DemoPlayer.Play
func (e *Engine) PlayDemo(ctx context.Context, packID string) (<-chan DemoResult, bool) {
	if e.closed.Load() {
		return nil, false
	}
	return e.demo.Play(ctx, packID)
}

// StopDemo stops the demo
func (e *Engine) StopDemo() {
	e.demo.Stop()
}

// Suspend holds the audio clock; scheduled sounds wait until Resume
func (e *Engine) Suspend() error {
	return e.backend.Suspend()
}

// Resume restarts the audio clock
func (e *Engine) Resume() error {
	return e.backend.Resume()
}

// Subscribe registers a SoundEvent listener
func (e *Engine) Subscribe() *Subscription {
	return e.bus.Subscribe()
}

// Unsubscribe removes a listener and closes its channel
func (e *Engine) Unsubscribe(sub *Subscription) {
	e.bus.Unsubscribe(sub)
}

// Close stops all playback and rejects further starts; safe to repeat
func (e *Engine) Close() {
	if !e.closed.CompareAndSwap(false, true) {
		return
	}
	e.StopAll()
	e.log.Debug("engine closed")
}

// Catalog returns the pack catalog
func (e *Engine) Catalog() *pack.Catalog { return e.catalog }

// Bank returns the sound bank
func (e *Engine) Bank() *Bank { return e.bank }

// Trigger returns the trigger player
func (e *Engine) Trigger() *TriggerPlayer { return e.trigger }

// Metronome returns the metronome
func (e *Engine) Metronome() *Metronome { return e.metronome }

// Demo returns the demo player
func (e *Engine) Demo() *DemoPlayer { return e.demo }

// Status returns the metrics registry
func (e *Engine) Status() *status.Registry { return e.status }
