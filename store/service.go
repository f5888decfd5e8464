package store

import (
	"errors"
	"sync"

	"github.com/pion/logging"

	"github.com/lixenwraith/beatpad/pack"
)

// Service opens the data directory on Start and exposes the Store
type Service struct {
	appName string
	catalog *pack.Catalog

	mu      sync.Mutex
	backend Backend
	loggers logging.LoggerFactory
	store   *Store
}

// NewService creates a store service persisting under appName
func NewService(appName string, catalog *pack.Catalog) *Service {
	return &Service{appName: appName, catalog: catalog}
}

// Name implements service.Service
func (s *Service) Name() string {
	return "store"
}

// Dependencies implements service.Service
func (s *Service) Dependencies() []string {
	return nil
}

// Init implements service.Service
// Recognized args: logging.LoggerFactory, and a Backend that replaces the data directory
func (s *Service) Init(args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, arg := range args {
		switch v := arg.(type) {
		case logging.LoggerFactory:
			s.loggers = v
		case Backend:
			s.backend = v
		}
	}
	if s.loggers == nil {
		s.loggers = logging.NewDefaultLoggerFactory()
	}
	if s.catalog == nil {
		return errors.New("store service: catalog is required")
	}
	return nil
}

// Start implements service.Service
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store != nil {
		return nil
	}
	if s.loggers == nil {
		return errors.New("store service: not initialized")
	}

	if s.backend == nil {
		m, err := Open(s.appName)
		if err != nil {
			return err
		}
		s.backend = m
	}
	s.store = New(s.backend, s.catalog, s.loggers.NewLogger("store"))
	return nil
}

// Stop implements service.Service; items are written synchronously so there is nothing to flush
func (s *Service) Stop() error {
	return nil
}

// Store returns the store, nil before Start
func (s *Service) Store() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store
}
