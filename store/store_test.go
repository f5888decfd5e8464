package store

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/pack"
)

const testCatalog = `
default_unlocked = ["free"]

[packs.free]
[packs.free.sounds]
kick = "k.wav"
snare = "s.wav"
hat = "h.wav"

[[packs.free.pads]]
id = 1
sound = "kick"

[[packs.free.pads]]
id = 2
sound = "snare"

[[packs.free.pads]]
id = 3
sound = "hat"

[packs.premium]
[packs.premium.sounds]
bass = "b.wav"
`

// memBackend is an in-memory Backend
type memBackend struct {
	mu    sync.Mutex
	items map[string][]byte
	err   error
}

func newMemBackend() *memBackend {
	return &memBackend{items: make(map[string][]byte)}
}

func (m *memBackend) SaveItem(key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.items[key] = append([]byte(nil), data...)
	return nil
}

func (m *memBackend) LoadItem(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[key], nil
}

func newTestStore(t *testing.T, backend Backend) *Store {
	t.Helper()
	catalog, err := pack.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return New(backend, catalog, logging.NewDefaultLoggerFactory().NewLogger("store"))
}

// TestStore_DefaultUnlocked verifies catalog defaults apply with nothing saved
func TestStore_DefaultUnlocked(t *testing.T) {
	s := newTestStore(t, newMemBackend())

	if got := s.Unlocked(); !reflect.DeepEqual(got, []string{"free"}) {
		t.Errorf("Expected [free], got %v", got)
	}
	if s.IsUnlocked("premium") {
		t.Error("Expected premium locked")
	}
}

// TestStore_UnlockPersists verifies an unlock survives a new store over the same backend
func TestStore_UnlockPersists(t *testing.T) {
	backend := newMemBackend()
	s := newTestStore(t, backend)

	if err := s.Unlock("premium"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if err := s.Unlock("premium"); err != nil {
		t.Errorf("Expected repeated unlock to succeed, got %v", err)
	}
	if got := string(backend.items[unlockedKey]); got != `["free","premium"]` {
		t.Errorf("Expected saved set, got %s", got)
	}

	reopened := newTestStore(t, backend)
	if !reopened.IsUnlocked("premium") {
		t.Error("Expected premium unlocked after reopen")
	}
}

// TestStore_UnlockErrors verifies unknown packs and write failures
func TestStore_UnlockErrors(t *testing.T) {
	backend := newMemBackend()
	s := newTestStore(t, backend)

	if err := s.Unlock("ghost"); !errors.Is(err, ErrUnknownPack) {
		t.Errorf("Expected ErrUnknownPack, got %v", err)
	}

	backend.err = errors.New("disk full")
	if err := s.Unlock("premium"); err == nil {
		t.Error("Expected write failure to surface")
	}
	if s.IsUnlocked("premium") {
		t.Error("Expected failed unlock to be rolled back")
	}
}

// TestStore_CorruptItems verifies unreadable data falls back to defaults
func TestStore_CorruptItems(t *testing.T) {
	backend := newMemBackend()
	backend.items[unlockedKey] = []byte("{not json")
	backend.items[padOrderPrefix+"free"] = []byte("[1, 2]")
	s := newTestStore(t, backend)

	if got := s.Unlocked(); !reflect.DeepEqual(got, []string{"free"}) {
		t.Errorf("Expected defaults, got %v", got)
	}
	if got := s.PadOrder("free"); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("Expected catalog order for a stale save, got %v", got)
	}
}

// TestStore_PadOrder verifies saving, reloading and validating pad order
func TestStore_PadOrder(t *testing.T) {
	s := newTestStore(t, newMemBackend())

	if got := s.PadOrder("free"); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Errorf("Expected catalog order, got %v", got)
	}
	if err := s.SavePadOrder("free", []int{3, 1, 2}); err != nil {
		t.Fatalf("SavePadOrder failed: %v", err)
	}
	if got := s.PadOrder("free"); !reflect.DeepEqual(got, []int{3, 1, 2}) {
		t.Errorf("Expected [3 1 2], got %v", got)
	}

	tests := []struct {
		name  string
		pack  string
		order []int
		want  error
	}{
		{"missing pad", "free", []int{1, 2}, ErrInvalidOrder},
		{"duplicate pad", "free", []int{1, 1, 2}, ErrInvalidOrder},
		{"foreign pad", "free", []int{1, 2, 9}, ErrInvalidOrder},
		{"unknown pack", "ghost", []int{1}, ErrUnknownPack},
	}
	for _, tc := range tests {
		if err := s.SavePadOrder(tc.pack, tc.order); !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if got := s.PadOrder("ghost"); got != nil {
		t.Errorf("Expected nil for unknown pack, got %v", got)
	}
}

// TestService_Lifecycle verifies the service uses an injected backend
func TestService_Lifecycle(t *testing.T) {
	catalog, err := pack.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	svc := NewService("beatpad-test", catalog)
	if err := svc.Start(); err == nil {
		t.Error("Expected Start before Init to fail")
	}

	backend := newMemBackend()
	if err := svc.Init(backend); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := svc.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := svc.Store().Unlock("premium"); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if _, ok := backend.items[unlockedKey]; !ok {
		t.Error("Expected write to the injected backend")
	}
	if err := svc.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
}
