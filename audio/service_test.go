package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lixenwraith/beatpad/graph"
	"github.com/lixenwraith/beatpad/pack"
	"github.com/lixenwraith/beatpad/status"
)

// fakeOutput records lifecycle calls; a non-nil err fails Start
type fakeOutput struct {
	name   string
	err    error
	failed chan struct{}

	mu      sync.Mutex
	started bool
	stopped int
}

func (o *fakeOutput) Name() string { return o.name }

func (o *fakeOutput) Start(c *graph.Context) error {
	if o.err != nil {
		return o.err
	}
	o.mu.Lock()
	o.started = true
	o.mu.Unlock()
	return nil
}

func (o *fakeOutput) Stop() {
	o.mu.Lock()
	o.stopped++
	o.mu.Unlock()
}

func (o *fakeOutput) Failed() <-chan struct{} { return o.failed }

func (o *fakeOutput) stops() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopped
}

// newTestService builds a service whose outputs come from outputs, recording the names tried
func newTestService(t *testing.T, cfg *Config, outputs map[string]*fakeOutput) (*Service, *[]string) {
	t.Helper()
	catalog, err := pack.Parse([]byte(testCatalog))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	tried := &[]string{}
	s := NewService(catalog, newCountingResolver())
	s.newOutput = func(name string) graph.Output {
		*tried = append(*tried, name)
		if out, ok := outputs[name]; ok {
			return out
		}
		return &fakeOutput{name: name, err: errors.New("no such output")}
	}

	if err := s.Init(cfg, recordFactory{log: &recordLogger{}}, status.NewRegistry()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s, tried
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.SampleRate = testRate
	cfg.MasterVolume = 0.6
	return cfg
}

// TestService_PreferredOutput verifies the configured output is used when it starts
func TestService_PreferredOutput(t *testing.T) {
	speaker := &fakeOutput{name: OutputSpeaker, failed: make(chan struct{})}
	s, tried := newTestService(t, testConfig(), map[string]*fakeOutput{OutputSpeaker: speaker})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(*tried) != 1 || !speaker.started {
		t.Errorf("Expected only speaker tried and started, got %v", *tried)
	}
	if s.IsSilent() {
		t.Error("Expected audible mode")
	}
	if got := s.Context().State(); got != graph.StateRunning {
		t.Errorf("Expected running context, got %v", got)
	}
	if got := s.Context().Destination().Value(); got != 0.6 {
		t.Errorf("Expected master volume 0.6, got %v", got)
	}
}

// TestService_Fallback verifies a failing device falls through to the pipe, then to silence
func TestService_Fallback(t *testing.T) {
	pipe := &fakeOutput{name: OutputPipe, failed: make(chan struct{})}
	s, tried := newTestService(t, testConfig(), map[string]*fakeOutput{OutputPipe: pipe})
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if want := []string{OutputSpeaker, OutputPipe}; len(*tried) != 2 || (*tried)[1] != want[1] {
		t.Errorf("Expected %v, got %v", want, *tried)
	}
	if s.IsSilent() {
		t.Error("Expected audible mode on the pipe")
	}

	null := &fakeOutput{name: OutputNull}
	s2, tried2 := newTestService(t, testConfig(), map[string]*fakeOutput{OutputNull: null})
	if err := s2.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(*tried2) != 3 {
		t.Errorf("Expected all three outputs tried, got %v", *tried2)
	}
	if !s2.IsSilent() {
		t.Error("Expected silent mode")
	}
}

// TestService_NoOutput verifies Start fails when even the null output cannot start
func TestService_NoOutput(t *testing.T) {
	s, _ := newTestService(t, testConfig(), nil)
	if err := s.Start(); err == nil {
		t.Error("Expected an error")
	}
}

// TestService_Disabled verifies a disabled service goes straight to the null output
func TestService_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	null := &fakeOutput{name: OutputNull}
	s, tried := newTestService(t, cfg, map[string]*fakeOutput{
		OutputSpeaker: {name: OutputSpeaker},
		OutputNull:    null,
	})

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if len(*tried) != 1 || (*tried)[0] != OutputNull {
		t.Errorf("Expected only null tried, got %v", *tried)
	}
	if !s.IsDisabled() || !s.IsSilent() {
		t.Error("Expected disabled and silent")
	}
	if !s.Engine().Play(context.Background(), "alpha", "kick") {
		t.Error("Expected playback to keep working while silent")
	}
}

// TestService_OutputFailure verifies a dying output switches the service to silent mode
func TestService_OutputFailure(t *testing.T) {
	speaker := &fakeOutput{name: OutputSpeaker, failed: make(chan struct{})}
	s, _ := newTestService(t, testConfig(), map[string]*fakeOutput{OutputSpeaker: speaker})
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	close(speaker.failed)
	deadline := time.Now().Add(2 * time.Second)
	for !s.IsSilent() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !s.IsSilent() {
		t.Fatal("Expected silent mode after output failure")
	}
	if speaker.stops() != 1 {
		t.Errorf("Expected failed output stopped once, got %d", speaker.stops())
	}
}

// TestService_StopReleasesWatcher verifies Stop ends the output watcher of a healthy output
func TestService_StopReleasesWatcher(t *testing.T) {
	speaker := &fakeOutput{name: OutputSpeaker, failed: make(chan struct{})}
	s, _ := newTestService(t, testConfig(), map[string]*fakeOutput{OutputSpeaker: speaker})
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	stopped := make(chan error, 1)
	go func() { stopped <- s.Stop() }()
	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Stop to return with the watcher released")
	}

	close(speaker.failed)
	time.Sleep(20 * time.Millisecond)
	if speaker.stops() != 1 {
		t.Errorf("Expected output stopped once, got %d", speaker.stops())
	}
	if s.IsSilent() {
		t.Error("Expected no silent switch after Stop")
	}
}

// TestService_Lifecycle verifies Start and Stop are idempotent and Stop closes the context
func TestService_Lifecycle(t *testing.T) {
	s := NewService(nil, nil)
	if err := s.Start(); err == nil {
		t.Error("Expected Start before Init to fail")
	}
	if err := s.Init(testConfig()); err == nil {
		t.Error("Expected Init without catalog to fail")
	}

	speaker := &fakeOutput{name: OutputSpeaker, failed: make(chan struct{})}
	s, _ = newTestService(t, testConfig(), map[string]*fakeOutput{OutputSpeaker: speaker})
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Errorf("Expected second Start to be a no-op, got %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Expected second Stop to be a no-op, got %v", err)
	}

	if speaker.stops() != 1 {
		t.Errorf("Expected output stopped once, got %d", speaker.stops())
	}
	if got := s.Context().State(); got != graph.StateClosed {
		t.Errorf("Expected closed context, got %v", got)
	}
	if s.Engine().Play(context.Background(), "alpha", "kick") {
		t.Error("Expected play after Stop to fail")
	}
}
