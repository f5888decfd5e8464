// Package store persists pack unlock state and custom pad order
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/pion/logging"
	"github.com/quasilyte/gdata"

	"github.com/lixenwraith/beatpad/pack"
)

const (
	unlockedKey    = "unlocked_packs"
	padOrderPrefix = "pad_order_"
)

var (
	ErrUnknownPack  = errors.New("unknown pack")
	ErrInvalidOrder = errors.New("pad order is not a permutation of the pack's pads")
)

// Backend is the key-value storage items are written through
// *gdata.Manager satisfies it
type Backend interface {
	SaveItem(key string, data []byte) error
	LoadItem(key string) ([]byte, error)
}

// Open opens the per-user data directory for appName
func Open(appName string) (*gdata.Manager, error) {
	m, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("open data dir: %w", err)
	}
	return m, nil
}

// Store holds unlock state and pad order for the packs of a catalog
// Unreadable items fall back to catalog defaults and are logged
type Store struct {
	backend Backend
	catalog *pack.Catalog
	log     logging.LeveledLogger

	mu       sync.Mutex
	unlocked map[string]bool
}

// New creates a store over backend; unlock state is read lazily
func New(backend Backend, catalog *pack.Catalog, log logging.LeveledLogger) *Store {
	return &Store{backend: backend, catalog: catalog, log: log}
}

// Unlocked returns the unlocked pack ids in sorted order
func (s *Store) Unlocked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadUnlockedLocked()

	ids := make([]string, 0, len(s.unlocked))
	for id := range s.unlocked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// IsUnlocked reports whether a pack is available
func (s *Store) IsUnlocked(packID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadUnlockedLocked()
	return s.unlocked[packID]
}

// Unlock marks a pack available and persists the set
func (s *Store) Unlock(packID string) error {
	if _, ok := s.catalog.Pack(packID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadUnlockedLocked()
	if s.unlocked[packID] {
		return nil
	}
	s.unlocked[packID] = true

	ids := make([]string, 0, len(s.unlocked))
	for id := range s.unlocked {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if err := s.save(unlockedKey, ids); err != nil {
		delete(s.unlocked, packID)
		return err
	}
	return nil
}

func (s *Store) loadUnlockedLocked() {
	if s.unlocked != nil {
		return
	}
	s.unlocked = make(map[string]bool)
	for _, id := range s.catalog.DefaultUnlocked {
		s.unlocked[id] = true
	}

	var saved []string
	if !s.load(unlockedKey, &saved) {
		return
	}
	for _, id := range saved {
		if _, ok := s.catalog.Pack(id); ok {
			s.unlocked[id] = true
		}
	}
}

// PadOrder returns the pad ids of a pack in display order
// Without a valid saved order it is the catalog order
func (s *Store) PadOrder(packID string) []int {
	p, ok := s.catalog.Pack(packID)
	if !ok {
		return nil
	}
	def := make([]int, len(p.Pads))
	for i, pad := range p.Pads {
		def[i] = pad.ID
	}

	var saved []int
	if !s.load(padOrderPrefix+packID, &saved) {
		return def
	}
	if !isPermutation(saved, def) {
		s.log.Warnf("saved pad order for %s no longer matches its pads", packID)
		return def
	}
	return saved
}

// SavePadOrder persists a custom pad order; it must list every pad id exactly once
func (s *Store) SavePadOrder(packID string, order []int) error {
	p, ok := s.catalog.Pack(packID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}
	ids := make([]int, len(p.Pads))
	for i, pad := range p.Pads {
		ids[i] = pad.ID
	}
	if !isPermutation(order, ids) {
		return fmt.Errorf("%w: %s", ErrInvalidOrder, packID)
	}
	return s.save(padOrderPrefix+packID, order)
}

func (s *Store) save(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.backend.SaveItem(key, data); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// load reports whether key held a decodable value
func (s *Store) load(key string, v any) bool {
	data, err := s.backend.LoadItem(key)
	if err != nil {
		s.log.Warnf("load %s: %v", key, err)
		return false
	}
	if len(data) == 0 {
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warnf("parse %s: %v", key, err)
		return false
	}
	return true
}

func isPermutation(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
