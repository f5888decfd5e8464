package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/lixenwraith/beatpad/asset"
	"github.com/lixenwraith/beatpad/graph"
	"github.com/lixenwraith/beatpad/pack"
	"github.com/lixenwraith/beatpad/parameter"
	"github.com/lixenwraith/beatpad/status"
)

// Bank caches decoded buffers per pack, plus demos and metronome clicks
// Pack entries are dropped on eviction; clicks survive pack switches
// Concurrent requests for the same asset share one decode
type Bank struct {
	catalog     *pack.Catalog
	resolver    asset.Resolver
	backend     Backend
	log         logging.LeveledLogger
	concurrency int

	mu     sync.RWMutex
	sounds map[string]map[string]*graph.Buffer
	loaded map[string]bool
	epoch  map[string]uint64
	demos  map[string]*graph.Buffer
	clicks map[string]*graph.Buffer
	warn   map[string]*rate.Sometimes

	flight singleflight.Group

	decoded *atomic.Int64
	failed  *atomic.Int64
	hits    *atomic.Int64
}

// NewBank creates an empty bank; concurrency <= 0 selects the default decode parallelism
func NewBank(catalog *pack.Catalog, resolver asset.Resolver, backend Backend, log logging.LeveledLogger, reg *status.Registry, concurrency int) *Bank {
	if concurrency <= 0 {
		concurrency = parameter.BankLoadConcurrency
	}
	if reg == nil {
		reg = status.NewRegistry()
	}
	return &Bank{
		catalog:     catalog,
		resolver:    resolver,
		backend:     backend,
		log:         log,
		concurrency: concurrency,
		sounds:      make(map[string]map[string]*graph.Buffer),
		loaded:      make(map[string]bool),
		epoch:       make(map[string]uint64),
		demos:       make(map[string]*graph.Buffer),
		clicks:      make(map[string]*graph.Buffer),
		warn:        make(map[string]*rate.Sometimes),
		decoded:     reg.Ints.Get("bank.decoded"),
		failed:      reg.Ints.Get("bank.decode_failed"),
		hits:        reg.Ints.Get("bank.hits"),
	}
}

// LoadPack decodes every sound of a pack with bounded parallelism
// Individual failures are logged and skipped; returns false only for an unknown or empty pack
func (b *Bank) LoadPack(ctx context.Context, packID string) bool {
	p, ok := b.catalog.Pack(packID)
	if !ok || len(p.Sounds) == 0 {
		b.log.Warnf("pack %q is unknown or has no sounds", packID)
		return false
	}

	b.mu.RLock()
	done := b.loaded[packID]
	epoch := b.epoch[packID]
	b.mu.RUnlock()
	if done {
		return true
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, name := range p.SoundNames() {
		g.Go(func() error {
			b.Buffer(gctx, packID, name)
			return nil
		})
	}
	_ = g.Wait()

	b.mu.Lock()
	if b.epoch[packID] == epoch {
		b.loaded[packID] = true
	}
	n := len(b.sounds[packID])
	b.mu.Unlock()

	b.log.Infof("pack %s loaded: %d/%d sounds", packID, n, len(p.Sounds))
	return true
}

// Buffer returns the decoded buffer for a pack sound, decoding on demand
// Returns nil if the sound is unknown or cannot be fetched or decoded
func (b *Bank) Buffer(ctx context.Context, packID, sound string) *graph.Buffer {
	b.mu.RLock()
	buf := b.sounds[packID][sound]
	epoch := b.epoch[packID]
	b.mu.RUnlock()
	if buf != nil {
		b.hits.Add(1)
		return buf
	}

	p, ok := b.catalog.Pack(packID)
	if !ok {
		return nil
	}
	ref, ok := p.Asset(sound)
	if !ok {
		b.log.Warnf("pack %s has no sound %q", packID, sound)
		return nil
	}

	key := packID + "/" + sound
	v, err, _ := b.flight.Do(key, func() (any, error) {
		// A flight that just finished may have cached it already
		b.mu.RLock()
		cached := b.sounds[packID][sound]
		b.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		decoded, err := b.decode(ctx, key, ref)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		// A decode that straddled an eviction is returned but not cached
		if b.epoch[packID] != epoch {
			return decoded, nil
		}
		m := b.sounds[packID]
		if m == nil {
			m = make(map[string]*graph.Buffer)
			b.sounds[packID] = m
		}
		m[sound] = decoded
		return decoded, nil
	})
	if err != nil {
		b.warnFailure(key, err)
		return nil
	}
	return v.(*graph.Buffer)
}

// LoadDemo returns the decoded demo track of a pack, nil if it has none or it fails
func (b *Bank) LoadDemo(ctx context.Context, packID string) *graph.Buffer {
	p, ok := b.catalog.Pack(packID)
	if !ok || p.Demo == "" {
		b.log.Warnf("pack %q has no demo", packID)
		return nil
	}
	return b.cached(ctx, b.demos, "demo:"+packID, packID, p.Demo)
}

// Metronome returns the decoded click sound, nil if unknown or it fails
func (b *Bank) Metronome(ctx context.Context, name string) *graph.Buffer {
	ref, ok := b.catalog.MetronomeAsset(name)
	if !ok {
		b.log.Warnf("unknown metronome sound %q", name)
		return nil
	}
	return b.cached(ctx, b.clicks, parameter.MetronomePackID+":"+name, name, ref)
}

// cached serves a side cache that pack eviction never touches
func (b *Bank) cached(ctx context.Context, cache map[string]*graph.Buffer, key, name, ref string) *graph.Buffer {
	b.mu.RLock()
	buf := cache[name]
	b.mu.RUnlock()
	if buf != nil {
		b.hits.Add(1)
		return buf
	}

	v, err, _ := b.flight.Do(key, func() (any, error) {
		b.mu.RLock()
		cached := cache[name]
		b.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		decoded, err := b.decode(ctx, key, ref)
		if err != nil {
			return nil, err
		}
		b.mu.Lock()
		cache[name] = decoded
		b.mu.Unlock()
		return decoded, nil
	})
	if err != nil {
		b.warnFailure(key, err)
		return nil
	}
	return v.(*graph.Buffer)
}

func (b *Bank) decode(ctx context.Context, key, ref string) (*graph.Buffer, error) {
	rc, err := b.resolver.Open(ctx, ref)
	if err != nil {
		b.failed.Add(1)
		return nil, fmt.Errorf("resolve %s: %w", key, err)
	}
	defer rc.Close()

	buf, err := b.backend.Decode(rc, ref)
	if err != nil {
		b.failed.Add(1)
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	b.decoded.Add(1)
	return buf, nil
}

// warnFailure logs a failure at most once per interval per asset
func (b *Bank) warnFailure(key string, err error) {
	b.mu.Lock()
	s, ok := b.warn[key]
	if !ok {
		s = &rate.Sometimes{First: 1, Interval: parameter.BankFailureLogInterval}
		b.warn[key] = s
	}
	b.mu.Unlock()
	s.Do(func() { b.log.Warnf("%v", err) })
}

// Evict drops every cached buffer of a pack; in-flight decodes for it are not cached
func (b *Bank) Evict(packID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sounds, packID)
	delete(b.loaded, packID)
	b.epoch[packID]++
}

// Loaded reports whether LoadPack completed for the pack since its last eviction
func (b *Bank) Loaded(packID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.loaded[packID]
}

// Len returns the number of cached buffers for a pack
func (b *Bank) Len(packID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sounds[packID])
}
