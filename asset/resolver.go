// Package asset maps logical sound references to byte streams
//
// References are either bare relative paths resolved against an asset root,
// or URLs whose scheme selects a resolver (file, http, https, synth).
package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
)

// Sentinel errors
var (
	ErrNotFound       = errors.New("asset not found")
	ErrUnsupportedRef = errors.New("unsupported asset reference")
)

// Resolver opens the bytes behind an asset reference
type Resolver interface {
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(ctx context.Context, ref string) (io.ReadCloser, error)

func (f ResolverFunc) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	return f(ctx, ref)
}

// Mux routes references to resolvers by URL scheme
// References without a scheme go to the fallback resolver
type Mux struct {
	mu       sync.RWMutex
	schemes  map[string]Resolver
	fallback Resolver
}

// NewMux creates a Mux; fallback may be nil to reject bare paths
func NewMux(fallback Resolver) *Mux {
	return &Mux{
		schemes:  make(map[string]Resolver),
		fallback: fallback,
	}
}

// Handle registers r for scheme, replacing any previous registration
func (m *Mux) Handle(scheme string, r Resolver) {
	m.mu.Lock()
	m.schemes[strings.ToLower(scheme)] = r
	m.mu.Unlock()
}

func (m *Mux) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	scheme := schemeOf(ref)

	m.mu.RLock()
	r, ok := m.schemes[scheme]
	if scheme == "" {
		r, ok = m.fallback, m.fallback != nil
	}
	m.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	return r.Open(ctx, ref)
}

// ReadAll opens ref through r and returns its full contents
func ReadAll(ctx context.Context, r Resolver, ref string) ([]byte, error) {
	rc, err := r.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// schemeOf returns the lowercased URL scheme of ref, "" for plain paths
func schemeOf(ref string) string {
	i := strings.Index(ref, "://")
	if i <= 0 {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
