package audio

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/graph"
	"github.com/lixenwraith/beatpad/pack"
	"github.com/lixenwraith/beatpad/status"
)

// slotKey identifies what a new trigger supersedes: a whole group, or a single ungrouped sound
type slotKey struct {
	group string
	sound string
}

// session is one playing instance of a sound
type session struct {
	id     uint64
	sound  string
	pack   string
	slot   slotKey
	src    *graph.Source
	once   sync.Once
	player *TriggerPlayer
}

// finish publishes End exactly once, whichever of stop or natural end comes first
func (s *session) finish() {
	s.once.Do(func() {
		s.player.bus.publish(End{SoundName: s.sound, SoundPack: s.pack, PlayInstanceID: s.id})
	})
}

// PackState is a snapshot of the trigger player
type PackState struct {
	ActivePack string
	Playing    []string
}

// TriggerPlayer plays one-shot pad sounds with group exclusivity
// Within a group at most one session is audible; an ungrouped sound restarts on retrigger
type TriggerPlayer struct {
	backend Backend
	bank    *Bank
	catalog *pack.Catalog
	bus     *Bus
	log     logging.LeveledLogger

	// silence stops sibling players when the active pack changes
	silence func()

	mu     sync.Mutex
	active string
	groups pack.GroupIndex
	slots  map[slotKey]*session

	nextID  atomic.Uint64
	played  *atomic.Int64
	stopped *atomic.Int64
	current *status.AtomicString
}

// NewTriggerPlayer creates a player with no active pack
func NewTriggerPlayer(backend Backend, bank *Bank, catalog *pack.Catalog, bus *Bus, log logging.LeveledLogger, reg *status.Registry) *TriggerPlayer {
	if reg == nil {
		reg = status.NewRegistry()
	}
	return &TriggerPlayer{
		backend: backend,
		bank:    bank,
		catalog: catalog,
		bus:     bus,
		log:     log,
		slots:   make(map[slotKey]*session),
		played:  reg.Ints.Get("trigger.played"),
		stopped: reg.Ints.Get("trigger.stopped"),
		current: reg.Strings.Get("trigger.pack"),
	}
}

// SetActivePack stops everything, clears the previous pack's cache and loads packID
// Re-activating the loaded active pack is a no-op
// An unknown or empty pack returns false before anything is stopped or cleared
func (t *TriggerPlayer) SetActivePack(ctx context.Context, packID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setActivePackLocked(ctx, packID)
}

func (t *TriggerPlayer) setActivePackLocked(ctx context.Context, packID string) bool {
	p, ok := t.catalog.Pack(packID)
	if !ok || len(p.Sounds) == 0 {
		t.log.Warnf("cannot activate pack %q: unknown or empty", packID)
		return false
	}
	if packID == t.active && t.bank.Loaded(packID) {
		return true
	}

	if t.silence != nil {
		t.silence()
	}
	t.stopAllLocked()

	if t.active != "" {
		t.bank.Evict(t.active)
	}
	t.bank.Evict(packID)

	t.active = packID
	t.groups = p.GroupIndex()
	t.current.Store(packID)

	if !t.bank.LoadPack(ctx, packID) {
		t.active = ""
		t.groups = nil
		t.current.Store("")
		return false
	}
	return true
}

// Play starts a session for sound in packID, switching packs first if needed
// Any session occupying the same slot is stopped and its End published before the new Start
func (t *TriggerPlayer) Play(ctx context.Context, packID, sound string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if packID != t.active {
		if !t.setActivePackLocked(ctx, packID) {
			return false
		}
	}

	slot := t.slotFor(sound)
	if prev := t.slots[slot]; prev != nil {
		delete(t.slots, slot)
		t.stopSessionLocked(prev)
	}

	buf := t.bank.Buffer(ctx, packID, sound)
	if buf == nil {
		return false
	}

	if err := ensureRunning(t.backend); err != nil {
		t.log.Warnf("resume audio context: %v", err)
		return false
	}

	src, err := t.backend.NewSource(buf, nil)
	if err != nil {
		t.log.Warnf("create source for %s/%s: %v", packID, sound, err)
		return false
	}

	s := &session{
		id:     t.nextID.Add(1),
		sound:  sound,
		pack:   packID,
		slot:   slot,
		src:    src,
		player: t,
	}
	src.OnEnded(func() { t.handleEnded(s) })
	t.slots[slot] = s

	if err := src.Start(0); err != nil {
		delete(t.slots, slot)
		t.log.Warnf("start %s/%s: %v", packID, sound, err)
		return false
	}

	t.played.Add(1)
	t.bus.publish(Start{
		SoundName:      sound,
		SoundPack:      packID,
		Duration:       buf.Duration(),
		PlayInstanceID: s.id,
	})
	return true
}

// handleEnded clears the slot only if it still holds this session
func (t *TriggerPlayer) handleEnded(s *session) {
	t.mu.Lock()
	if t.slots[s.slot] == s {
		delete(t.slots, s.slot)
	}
	t.mu.Unlock()
	s.finish()
}

// Stop ends the session playing sound (or its group), if any
func (t *TriggerPlayer) Stop(sound string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot := t.slotFor(sound)
	s := t.slots[slot]
	if s == nil || s.sound != sound {
		return false
	}
	delete(t.slots, slot)
	t.stopSessionLocked(s)
	return true
}

// StopAll ends every trigger session
func (t *TriggerPlayer) StopAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopAllLocked()
}

func (t *TriggerPlayer) stopAllLocked() {
	for slot, s := range t.slots {
		delete(t.slots, slot)
		t.stopSessionLocked(s)
	}
}

// stopSessionLocked silences the source and publishes End; a source that already ended is ignored
func (t *TriggerPlayer) stopSessionLocked(s *session) {
	_ = s.src.Stop()
	t.stopped.Add(1)
	s.finish()
}

// ActivePack returns the current pack id, "" if none
func (t *TriggerPlayer) ActivePack() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// State returns the active pack and the sounds currently holding a slot
func (t *TriggerPlayer) State() PackState {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := PackState{ActivePack: t.active}
	for _, s := range t.slots {
		st.Playing = append(st.Playing, s.sound)
	}
	sort.Strings(st.Playing)
	return st
}

func (t *TriggerPlayer) slotFor(sound string) slotKey {
	if group, ok := t.groups.GroupOf(sound); ok {
		return slotKey{group: group}
	}
	return slotKey{sound: sound}
}
