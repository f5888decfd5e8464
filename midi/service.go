package midi

import (
	"sync"

	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/status"
)

// Service opens a MIDI input on Start
// MIDI is optional: a missing port is logged and the service stays idle
type Service struct {
	port  string
	notes NoteMap

	mu      sync.Mutex
	loggers logging.LoggerFactory
	log     logging.LeveledLogger
	status  *status.Registry
	input   *Input
}

// NewService listens on port ("" for the first available) with the given note map
func NewService(port string, notes NoteMap) *Service {
	return &Service{port: port, notes: notes}
}

// Name implements service.Service
func (s *Service) Name() string {
	return "midi"
}

// Dependencies implements service.Service
func (s *Service) Dependencies() []string {
	return []string{"audio"}
}

// Init implements service.Service
// Recognized args: logging.LoggerFactory, *status.Registry
func (s *Service) Init(args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, arg := range args {
		switch v := arg.(type) {
		case logging.LoggerFactory:
			s.loggers = v
		case *status.Registry:
			s.status = v
		}
	}
	if s.loggers == nil {
		s.loggers = logging.NewDefaultLoggerFactory()
	}
	s.log = s.loggers.NewLogger("midi")
	return nil
}

// Start implements service.Service
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input != nil {
		return nil
	}
	in, err := Listen(s.port, s.notes, s.log, s.status)
	if err != nil {
		s.log.Warnf("midi input disabled: %v", err)
		return nil
	}
	s.input = in
	return nil
}

// Stop implements service.Service
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input == nil {
		return nil
	}
	err := s.input.Close()
	s.input = nil
	return err
}

// Hits returns the pad hit channel, nil when no port is open
func (s *Service) Hits() <-chan PadHit {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input == nil {
		return nil
	}
	return s.input.Hits()
}

// Port returns the open port name, "" when idle
func (s *Service) Port() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.input == nil {
		return ""
	}
	return s.input.Port()
}
