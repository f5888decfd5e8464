package main

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/lixenwraith/beatpad/audio"
	"github.com/lixenwraith/beatpad/core"
	"github.com/lixenwraith/beatpad/midi"
	"github.com/lixenwraith/beatpad/pack"
	"github.com/lixenwraith/beatpad/parameter"
	"github.com/lixenwraith/beatpad/service"
	"github.com/lixenwraith/beatpad/status"
	"github.com/lixenwraith/beatpad/store"
)

const (
	padCount = 16
	padKeys  = "1234qwerasdfzxcv"

	frameInterval = 33 * time.Millisecond
	bpmStep       = 5
	volumeStep    = 0.1
)

type padView struct {
	sound string
	title string
	color tcell.Color
}

// playing tracks the latest session of a sound for the progress bar
type playing struct {
	instance uint64
	started  time.Time
	length   time.Duration
}

type app struct {
	screen tcell.Screen
	ctx    context.Context
	reg    *status.Registry

	audio  *audio.Service
	engine *audio.Engine
	store  *store.Store
	midi   *midi.Service
	sub    *audio.Subscription

	packs   []string
	packIdx int
	pads    []padView
	active  map[string]playing

	bpm       float64
	volume    float64
	sounds    []string
	soundIdx  int
	suspended bool
	beat      time.Time
	ticks     chan struct{}
	demo      <-chan audio.DemoResult
	message   string
}

func newApp(hub *service.Hub, reg *status.Registry) (*app, error) {
	audioSvc := service.MustGet[*audio.Service](hub, "audio")
	a := &app{
		ctx:    context.Background(),
		reg:    reg,
		audio:  audioSvc,
		engine: audioSvc.Engine(),
		store:  service.MustGet[*store.Service](hub, "store").Store(),
		active: make(map[string]playing),
		volume: parameter.MetronomeDefaultVolume,
		ticks:  make(chan struct{}, 1),
	}
	if svc, ok := hub.Get("midi"); ok {
		a.midi, _ = svc.(*midi.Service)
	}

	a.sounds = a.engine.Catalog().MetronomeSounds()
	if i := slices.Index(a.sounds, parameter.MetronomeDefaultSound); i >= 0 {
		a.soundIdx = i
	}

	a.refreshPacks()
	if len(a.packs) == 0 {
		return nil, fmt.Errorf("catalog has no packs")
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	a.screen = screen

	a.sub = a.engine.Subscribe()
	a.selectPack(0)
	return a, nil
}

// refreshPacks lists unlocked packs, falling back to the whole catalog
func (a *app) refreshPacks() {
	a.packs = a.store.Unlocked()
	if len(a.packs) == 0 {
		a.packs = a.engine.Catalog().IDs()
	}
}

func (a *app) currentPack() *pack.Pack {
	p, _ := a.engine.Catalog().Pack(a.packs[a.packIdx])
	return p
}

// selectPack activates pack i; on failure the previous pack stays on screen
func (a *app) selectPack(i int) {
	next := i % len(a.packs)
	p, ok := a.engine.Catalog().Pack(a.packs[next])
	if !ok {
		return
	}
	changed := a.engine.Trigger().ActivePack() != p.ID

	a.message = "loading " + p.Name + "..."
	a.draw()

	if !a.engine.SetActivePack(a.ctx, p.ID) {
		a.message = "pack " + p.Name + " could not be loaded"
		return
	}
	a.message = ""
	if !changed {
		return
	}

	a.packIdx = next
	clear(a.active)
	a.demo = nil

	a.bpm = 120
	if p.BPM > 0 {
		a.bpm = float64(p.BPM)
	}
	a.layout()
}

// layout orders pads by the saved order, or by sound name for packs without a layout
func (a *app) layout() {
	p := a.currentPack()
	a.pads = a.pads[:0]

	if len(p.Pads) == 0 {
		for _, name := range p.SoundNames() {
			a.pads = append(a.pads, padView{sound: name, title: name, color: tcell.ColorSilver})
		}
	} else {
		byID := make(map[int]pack.Pad, len(p.Pads))
		for _, pad := range p.Pads {
			byID[pad.ID] = pad
		}
		for _, id := range a.store.PadOrder(p.ID) {
			pad := byID[id]
			title := pad.Title
			if title == "" {
				title = pad.Sound
			}
			if pad.Icon != "" {
				title = pad.Icon + " " + title
			}
			color := tcell.GetColor(pad.Color)
			if color == tcell.ColorDefault {
				color = tcell.ColorSilver
			}
			a.pads = append(a.pads, padView{sound: pad.Sound, title: title, color: color})
		}
	}
	if len(a.pads) > padCount {
		a.pads = a.pads[:padCount]
	}
}

func (a *app) trigger(i int) {
	if i < 0 || i >= len(a.pads) {
		return
	}
	a.engine.Play(a.ctx, a.packs[a.packIdx], a.pads[i].sound)
}

func (a *app) run() {
	defer a.engine.Unsubscribe(a.sub)

	events := make(chan tcell.Event, 64)
	core.Go(func() {
		for {
			ev := a.screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	})

	var hits <-chan midi.PadHit
	if a.midi != nil {
		hits = a.midi.Hits()
	}

	frames := time.NewTicker(frameInterval)
	defer frames.Stop()

	for {
		select {
		case ev := <-events:
			if !a.handle(ev) {
				return
			}
		case ev := <-a.sub.C:
			a.track(ev)
		case hit, ok := <-hits:
			if !ok {
				hits = nil
				continue
			}
			a.trigger(hit.Pad)
		case <-a.ticks:
			a.beat = time.Now()
		case r, ok := <-a.demo:
			if ok {
				a.message = "demo " + r.String()
			}
			a.demo = nil
		case <-frames.C:
			a.draw()
		}
	}
}

func (a *app) track(ev audio.SoundEvent) {
	switch ev := ev.(type) {
	case audio.Start:
		a.active[ev.SoundName] = playing{instance: ev.PlayInstanceID, started: time.Now(), length: ev.Duration}
	case audio.End:
		if p, ok := a.active[ev.SoundName]; ok && p.instance == ev.PlayInstanceID {
			delete(a.active, ev.SoundName)
		}
	}
}

// handle returns false to quit
func (a *app) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		a.screen.Sync()
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			a.handleRune(ev.Rune())
		}
	}
	return true
}

func (a *app) handleRune(r rune) {
	for i, k := range padKeys {
		if k == r {
			a.trigger(i)
			return
		}
	}

	switch r {
	case ' ':
		a.engine.StopAll()
		a.message = "stopped"
	case 'm':
		if a.engine.Metronome().State().Running {
			a.engine.StopMetronome()
		} else {
			a.engine.StartMetronome(a.ctx, a.bpm, a.onTick, a.clickSound(), a.volume)
		}
	case '+', '=':
		a.setBPM(a.bpm + bpmStep)
	case '-', '_':
		a.setBPM(a.bpm - bpmStep)
	case ']':
		a.setVolume(a.volume + volumeStep)
	case '[':
		a.setVolume(a.volume - volumeStep)
	case 't':
		if len(a.sounds) > 0 {
			a.soundIdx = (a.soundIdx + 1) % len(a.sounds)
			a.engine.UpdateSound(a.ctx, a.clickSound())
		}
	case 'p':
		a.selectPack(a.packIdx + 1)
	case 'u':
		a.unlockNext()
	case 'o':
		a.rotatePads()
	case 'd':
		if a.demo != nil {
			a.engine.StopDemo()
			return
		}
		if ch, ok := a.engine.PlayDemo(a.ctx, a.packs[a.packIdx]); ok {
			a.demo = ch
			a.message = "demo playing"
		} else {
			a.message = "no demo for this pack"
		}
	case 's':
		var err error
		if a.suspended {
			err = a.engine.Resume()
		} else {
			err = a.engine.Suspend()
		}
		if err == nil {
			a.suspended = !a.suspended
		}
	}
}

// onTick runs on a timer goroutine
func (a *app) onTick() {
	select {
	case a.ticks <- struct{}{}:
	default:
	}
}

func (a *app) clickSound() string {
	if len(a.sounds) == 0 {
		return ""
	}
	return a.sounds[a.soundIdx]
}

func (a *app) setBPM(bpm float64) {
	a.bpm = max(parameter.MetronomeMinBPM, min(parameter.MetronomeMaxBPM, bpm))
	a.engine.UpdateBPM(a.bpm)
}

func (a *app) setVolume(v float64) {
	a.volume = max(0, min(1, v))
	a.engine.UpdateVolume(a.volume)
}

func (a *app) unlockNext() {
	for _, id := range a.engine.Catalog().IDs() {
		if a.store.IsUnlocked(id) {
			continue
		}
		if err := a.store.Unlock(id); err != nil {
			a.message = "unlock failed: " + err.Error()
			return
		}
		current := a.packs[a.packIdx]
		a.refreshPacks()
		a.packIdx = max(0, slices.Index(a.packs, current))
		a.message = "unlocked " + id
		return
	}
	a.message = "every pack is unlocked"
}

// rotatePads moves the first pad to the end and persists the order
func (a *app) rotatePads() {
	id := a.packs[a.packIdx]
	order := a.store.PadOrder(id)
	if len(order) < 2 {
		a.message = "this pack has no pad layout"
		return
	}
	order = append(order[1:], order[0])
	if err := a.store.SavePadOrder(id, order); err != nil {
		a.message = "save pad order: " + err.Error()
		return
	}
	a.layout()
}
