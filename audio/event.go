package audio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lixenwraith/beatpad/parameter"
	"github.com/lixenwraith/beatpad/status"
)

// EventKind discriminates SoundEvent variants
type EventKind int

const (
	EventStart EventKind = iota
	EventEnd
)

func (k EventKind) String() string {
	if k == EventStart {
		return "start"
	}
	return "end"
}

// SoundEvent is published for every trigger session: one Start, then exactly one End
// Implemented only by Start and End
type SoundEvent interface {
	Kind() EventKind
	Sound() string
	Pack() string
	Instance() uint64
	sealed()
}

// Start reports a session that began playing
type Start struct {
	SoundName      string
	SoundPack      string
	Duration       time.Duration
	PlayInstanceID uint64
}

// End reports a session that finished, was superseded or was stopped
type End struct {
	SoundName      string
	SoundPack      string
	PlayInstanceID uint64
}

func (Start) Kind() EventKind    { return EventStart }
func (e Start) Sound() string    { return e.SoundName }
func (e Start) Pack() string     { return e.SoundPack }
func (e Start) Instance() uint64 { return e.PlayInstanceID }
func (Start) sealed()            {}

func (End) Kind() EventKind    { return EventEnd }
func (e End) Sound() string    { return e.SoundName }
func (e End) Pack() string     { return e.SoundPack }
func (e End) Instance() uint64 { return e.PlayInstanceID }
func (End) sealed()            {}

// Subscription delivers events in publication order on C
// C is closed by Unsubscribe
type Subscription struct {
	C  <-chan SoundEvent
	ch chan SoundEvent
}

// Bus fans SoundEvents out to subscribers
// Publishing never blocks: a subscriber whose buffer is full misses the event
type Bus struct {
	mu      sync.Mutex
	subs    map[*Subscription]struct{}
	buffer  int
	dropped *atomic.Int64
}

// NewBus creates a bus with per-subscriber buffer size; <= 0 selects the default
func NewBus(buffer int, reg *status.Registry) *Bus {
	if buffer <= 0 {
		buffer = parameter.EventBufferSize
	}
	if reg == nil {
		reg = status.NewRegistry()
	}
	return &Bus{
		subs:    make(map[*Subscription]struct{}),
		buffer:  buffer,
		dropped: reg.Ints.Get("bus.dropped"),
	}
}

// Subscribe registers a new listener
func (b *Bus) Subscribe() *Subscription {
	ch := make(chan SoundEvent, b.buffer)
	sub := &Subscription{C: ch, ch: ch}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes the listener and closes its channel; safe to repeat
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// publish delivers ev to every subscriber
// Holding the lock across delivery gives all subscribers the same total order
func (b *Bus) publish(ev SoundEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			b.dropped.Add(1)
		}
	}
}

// Len returns the number of subscribers
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
