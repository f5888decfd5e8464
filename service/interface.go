package service

// Service defines the lifecycle interface for long-lived subsystems
// Services own resources such as the audio device or the persistence directory
//
// Lifecycle:
//  1. Construction
//  2. Init(args...) - configuration picked from args by type
//  3. Start() - open devices, launch background goroutines
//  4. [runtime operation]
//  5. Stop() - halt goroutines, release resources
type Service interface {
	// Name returns the unique identifier for this service
	Name() string

	// Dependencies returns names of services that must Init and Start before this one
	Dependencies() []string

	// Init configures the service; each service ignores args of types it does not know
	Init(args ...any) error

	// Start begins service operation
	// Called after all services have initialized
	Start() error

	// Stop halts service operation and releases resources
	// Must be idempotent - safe to call multiple times
	Stop() error
}
