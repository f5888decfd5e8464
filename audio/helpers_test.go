package audio

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/asset"
	"github.com/lixenwraith/beatpad/graph"
	"github.com/lixenwraith/beatpad/pack"
	"github.com/lixenwraith/beatpad/status"
)

const testRate = 8000

const testCatalog = `
default_unlocked = ["alpha"]

[metronome]
tick = "synth://sine?freq=1000&ms=20"
beep = "synth://square?freq=800&ms=20"

[packs.alpha]
name = "Alpha"
bpm = 120
demo = "synth://sine?freq=300&ms=300"

[packs.alpha.sounds]
kick = "synth://sine?freq=60&ms=100"
snare = "synth://noise?freq=1&ms=100"
hat = "synth://noise?freq=2&ms=50"
melody_1 = "synth://triangle?freq=440&ms=1000"
melody_2 = "synth://saw?freq=330&ms=1000"

[packs.alpha.groups]
melody = ["melody_1", "melody_2"]

[packs.beta]
name = "Beta"

[packs.beta.sounds]
kick = "synth://sine?freq=50&ms=100"
bass = "synth://saw?freq=55&ms=500"

[packs.empty]
name = "Empty"

[packs.broken]
[packs.broken.sounds]
ok = "synth://sine?freq=100&ms=50"
missing = "samples/missing.wav"
`

// countingResolver counts opens per reference and can hold one reference until released
type countingResolver struct {
	inner asset.Resolver

	mu     sync.Mutex
	opens  map[string]int
	gates  map[string]chan struct{}
	opened chan string
}

func newCountingResolver() *countingResolver {
	mux := asset.NewMux(&asset.FSResolver{FS: fstest.MapFS{}})
	mux.Handle("synth", &asset.SynthResolver{SampleRate: testRate})
	return &countingResolver{
		inner:  mux,
		opens:  make(map[string]int),
		gates:  make(map[string]chan struct{}),
		opened: make(chan string, 64),
	}
}

func (r *countingResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	r.mu.Lock()
	r.opens[ref]++
	gate := r.gates[ref]
	r.mu.Unlock()

	select {
	case r.opened <- ref:
	default:
	}
	if gate != nil {
		<-gate
	}
	return r.inner.Open(ctx, ref)
}

func (r *countingResolver) count(ref string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opens[ref]
}

func (r *countingResolver) hold(ref string) chan struct{} {
	gate := make(chan struct{})
	r.mu.Lock()
	r.gates[ref] = gate
	r.mu.Unlock()
	return gate
}

// recordLogger captures log lines for assertions
type recordLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordLogger) add(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
}

func (l *recordLogger) count(level, substr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, line := range l.lines {
		if strings.HasPrefix(line, level+" ") && strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func (l *recordLogger) Trace(msg string)                  { l.add("TRACE", "%s", msg) }
func (l *recordLogger) Tracef(format string, args ...any) { l.add("TRACE", format, args...) }
func (l *recordLogger) Debug(msg string)                  { l.add("DEBUG", "%s", msg) }
func (l *recordLogger) Debugf(format string, args ...any) { l.add("DEBUG", format, args...) }
func (l *recordLogger) Info(msg string)                   { l.add("INFO", "%s", msg) }
func (l *recordLogger) Infof(format string, args ...any)  { l.add("INFO", format, args...) }
func (l *recordLogger) Warn(msg string)                   { l.add("WARN", "%s", msg) }
func (l *recordLogger) Warnf(format string, args ...any)  { l.add("WARN", format, args...) }
func (l *recordLogger) Error(msg string)                  { l.add("ERROR", "%s", msg) }
func (l *recordLogger) Errorf(format string, args ...any) { l.add("ERROR", format, args...) }

type recordFactory struct {
	log *recordLogger
}

func (f recordFactory) NewLogger(string) logging.LeveledLogger { return f.log }

// fixture is an engine over an offline graph context and a manual scheduler
type fixture struct {
	ctx      *graph.Context
	engine   *Engine
	sched    *ManualScheduler
	resolver *countingResolver
	log      *recordLogger
	reg      *status.Registry
	sub      *Subscription
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	catalog, err := pack.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse test catalog: %v", err)
	}

	reg := status.NewRegistry()
	f := &fixture{
		ctx:      graph.NewContext(graph.Options{SampleRate: testRate, Status: reg}),
		sched:    NewManualScheduler(),
		resolver: newCountingResolver(),
		log:      &recordLogger{},
		reg:      reg,
	}
	f.engine, err = NewEngine(Options{
		Catalog:   catalog,
		Resolver:  f.resolver,
		Backend:   f.ctx,
		Loggers:   recordFactory{log: f.log},
		Status:    f.reg,
		Scheduler: f.sched,
	})
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	f.sub = f.engine.Subscribe()

	t.Cleanup(func() {
		f.engine.Close()
		_ = f.ctx.Close()
	})
	return f
}

// render advances the audio clock by d, delivering ended notifications
func (f *fixture) render(d time.Duration) {
	f.ctx.Render(f.ctx.SampleRate().N(d))
}

// step renders audio then fires scheduler timers for the same wall time
func (f *fixture) step(audio, wall time.Duration) {
	f.render(audio)
	f.sched.Advance(wall)
}

// events drains every event published so far
func (f *fixture) events() []SoundEvent {
	var out []SoundEvent
	for {
		select {
		case ev := <-f.sub.C:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func describe(evs []SoundEvent) []string {
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = fmt.Sprintf("%s:%s#%d", ev.Kind(), ev.Sound(), ev.Instance())
	}
	return out
}

func itoa(n uint64) string {
	return strconv.FormatUint(n, 10)
}
