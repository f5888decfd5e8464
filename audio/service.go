package audio

import (
	"errors"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/asset"
	"github.com/lixenwraith/beatpad/core"
	"github.com/lixenwraith/beatpad/graph"
	"github.com/lixenwraith/beatpad/pack"
	"github.com/lixenwraith/beatpad/status"
)

// Service owns the audio context, its output and the Engine
// Handles graceful degradation: without a usable device it runs in silent mode on the null output
type Service struct {
	catalog  *pack.Catalog
	resolver asset.Resolver

	cfg     *Config
	loggers logging.LoggerFactory
	log     logging.LeveledLogger
	status  *status.Registry

	ctx    *graph.Context
	engine *Engine
	output graph.Output

	// newOutput is swapped in tests
	newOutput func(name string) graph.Output

	disabled atomic.Bool
	silent   atomic.Bool
	running  atomic.Bool
	mu       sync.Mutex

	// done is closed by Stop to release output watchers
	done     chan struct{}
	watchers sync.WaitGroup
}

// NewService creates an audio service over a catalog and an asset resolver
func NewService(catalog *pack.Catalog, resolver asset.Resolver) *Service {
	return &Service{catalog: catalog, resolver: resolver}
}

// Name implements service.Service
func (s *Service) Name() string {
	return "audio"
}

// Dependencies implements service.Service
func (s *Service) Dependencies() []string {
	return nil
}

// Init implements service.Service
// Recognized args: *Config, logging.LoggerFactory, *status.Registry; others are ignored
func (s *Service) Init(args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, arg := range args {
		switch v := arg.(type) {
		case *Config:
			s.cfg = v
		case logging.LoggerFactory:
			s.loggers = v
		case *status.Registry:
			s.status = v
		}
	}
	if s.cfg == nil {
		s.cfg = LoadConfig()
	}
	if s.loggers == nil {
		s.loggers = s.cfg.Loggers(os.Stderr)
	}
	if s.status == nil {
		s.status = status.NewRegistry()
	}
	s.log = s.loggers.NewLogger("audio")

	if s.catalog == nil || s.resolver == nil {
		return errors.New("audio service: catalog and resolver are required")
	}

	s.ctx = graph.NewContext(graph.Options{
		SampleRate: beep.SampleRate(s.cfg.SampleRate),
		Logger:     s.loggers.NewLogger("graph"),
		Status:     s.status,
	})
	s.ctx.Destination().Set(s.cfg.MasterVolume)

	engine, err := NewEngine(Options{
		Catalog:         s.catalog,
		Resolver:        s.resolver,
		Backend:         s.ctx,
		Loggers:         s.loggers,
		Status:          s.status,
		LoadConcurrency: s.cfg.LoadConcurrency,
		EventBuffer:     s.cfg.EventBuffer,
	})
	if err != nil {
		return err
	}
	s.engine = engine

	if !s.cfg.Enabled {
		s.disabled.Store(true)
	}
	if s.newOutput == nil {
		s.newOutput = s.defaultOutput
	}
	return nil
}

func (s *Service) defaultOutput(name string) graph.Output {
	switch name {
	case OutputSpeaker:
		return graph.NewSpeakerOutput()
	case OutputPipe:
		return graph.NewPipeOutput(s.loggers.NewLogger("pipe"))
	default:
		return graph.NewNullOutput()
	}
}

// Start implements service.Service
// Tries the configured output, then the pipe, then falls back to the null output
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.engine == nil {
		return errors.New("audio service: not initialized")
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	s.done = make(chan struct{})

	chain := []string{OutputNull}
	if !s.disabled.Load() {
		chain = outputChain(s.cfg.Output)
	}

	for _, name := range chain {
		out := s.newOutput(name)
		if err := out.Start(s.ctx); err != nil {
			s.log.Warnf("output %s unavailable: %v", name, err)
			continue
		}
		s.output = out
		break
	}
	if s.output == nil {
		s.running.Store(false)
		return errors.New("audio service: no output could be started")
	}

	if s.output.Name() == OutputNull {
		s.silent.Store(true)
		s.log.Info("running in silent mode")
	} else {
		s.log.Infof("audio output: %s", s.output.Name())
		s.watchers.Add(1)
		core.Go(s.watchOutput(s.output, s.done))
	}

	return s.ctx.Resume()
}

// outputChain lists outputs to try in order, ending with the null output
func outputChain(preferred string) []string {
	chain := []string{preferred}
	for _, name := range []string{OutputPipe, OutputNull} {
		if name != preferred {
			chain = append(chain, name)
		}
	}
	return chain
}

// watchOutput switches to silent mode if a live output dies; it returns when done closes
func (s *Service) watchOutput(out graph.Output, done <-chan struct{}) func() {
	return func() {
		defer s.watchers.Done()
		failed := out.Failed()
		if failed == nil {
			return
		}
		select {
		case <-failed:
		case <-done:
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.running.Load() || s.output != out {
			return
		}
		s.log.Warnf("output %s failed, switching to silent mode", out.Name())
		out.Stop()
		null := graph.NewNullOutput()
		if err := null.Start(s.ctx); err == nil {
			s.output = null
			s.silent.Store(true)
		}
	}
}

// Stop implements service.Service
func (s *Service) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	// Watchers take mu on failure, so wait for them before locking
	close(s.done)
	s.watchers.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.engine.Close()
	if s.output != nil {
		s.output.Stop()
		s.output = nil
	}
	return s.ctx.Close()
}

// Engine returns the engine, nil before Init
func (s *Service) Engine() *Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Context returns the audio graph, nil before Init
func (s *Service) Context() *graph.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// IsSilent reports whether audio is discarded because no device output is running
func (s *Service) IsSilent() bool {
	return s.silent.Load()
}

// IsDisabled reports whether audio was disabled by configuration
func (s *Service) IsDisabled() bool {
	return s.disabled.Load()
}
