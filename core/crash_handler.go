package core

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"
)

var (
	crashMu      sync.Mutex
	crashCleanup []func()

	// exit is swapped in tests
	exit = os.Exit
)

// OnCrash registers a cleanup that runs before the crash report is printed
// Cleanups run in reverse registration order; the terminal UI registers Fini here
func OnCrash(fn func()) {
	crashMu.Lock()
	crashCleanup = append(crashCleanup, fn)
	crashMu.Unlock()
}

// HandleCrash runs crash cleanups, prints the panic value with a stack trace and exits
func HandleCrash(r any) {
	if r == nil {
		return
	}

	crashMu.Lock()
	cleanup := crashCleanup
	crashCleanup = nil
	crashMu.Unlock()

	for i := len(cleanup) - 1; i >= 0; i-- {
		runCleanup(cleanup[i])
	}

	fmt.Fprintf(os.Stderr, "\r\n\x1b[31mCRASH DETECTED: %v\x1b[0m\r\n", r)
	fmt.Fprintf(os.Stderr, "Stack Trace:\r\n%s\r\n", debug.Stack())
	os.Stderr.Sync()

	exit(1)
}

// runCleanup isolates a panicking cleanup so the report still prints
func runCleanup(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// Go runs fn in a new goroutine with panic recovery
// Use this instead of the 'go' keyword so a crash in a background loop restores the terminal
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				HandleCrash(r)
			}
		}()
		fn()
	}()
}
