package asset

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func readString(t *testing.T, r Resolver, ref string) string {
	t.Helper()
	data, err := ReadAll(context.Background(), r, ref)
	if err != nil {
		t.Fatalf("ReadAll(%s) failed: %v", ref, err)
	}
	return string(data)
}

// TestMux_RoutesByScheme verifies bare paths hit the fallback and schemes hit their resolver
func TestMux_RoutesByScheme(t *testing.T) {
	fsys := fstest.MapFS{"packs/kick.wav": {Data: []byte("kick")}}
	m := NewMux(&FSResolver{FS: fsys})
	m.Handle("mem", ResolverFunc(func(_ context.Context, ref string) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("mem:" + strings.TrimPrefix(ref, "mem://"))), nil
	}))

	if got := readString(t, m, "packs/kick.wav"); got != "kick" {
		t.Errorf("Expected kick, got %q", got)
	}
	if got := readString(t, m, "/packs/kick.wav"); got != "kick" {
		t.Errorf("Expected leading slash to resolve against root, got %q", got)
	}
	if got := readString(t, m, "mem://snare"); got != "mem:snare" {
		t.Errorf("Expected mem:snare, got %q", got)
	}
	if got := readString(t, m, "MEM://snare"); !strings.HasPrefix(got, "mem:") {
		t.Errorf("Expected scheme match to ignore case, got %q", got)
	}

	if _, err := m.Open(context.Background(), "ftp://host/x.wav"); !errors.Is(err, ErrUnsupportedRef) {
		t.Errorf("Expected ErrUnsupportedRef, got %v", err)
	}
	if _, err := m.Open(context.Background(), "packs/missing.wav"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := NewMux(nil).Open(context.Background(), "kick.wav"); !errors.Is(err, ErrUnsupportedRef) {
		t.Errorf("Expected ErrUnsupportedRef without fallback, got %v", err)
	}
}

// TestFSResolver_RejectsEscape verifies references cannot climb out of the root
func TestFSResolver_RejectsEscape(t *testing.T) {
	r := &FSResolver{FS: fstest.MapFS{}}
	if _, err := r.Open(context.Background(), "../etc/passwd"); !errors.Is(err, ErrUnsupportedRef) {
		t.Errorf("Expected ErrUnsupportedRef, got %v", err)
	}
}

// TestFileResolver verifies file:// URLs read from disk
func TestFileResolver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clap.wav")
	if err := os.WriteFile(path, []byte("clap"), 0o644); err != nil {
		t.Fatal(err)
	}

	if got := readString(t, FileResolver{}, "file://"+path); got != "clap" {
		t.Errorf("Expected clap, got %q", got)
	}
	if _, err := (FileResolver{}).Open(context.Background(), "file://"+filepath.Join(dir, "none.wav")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// TestHTTPResolver verifies status mapping
func TestHTTPResolver(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/hat.wav":
			_, _ = w.Write([]byte("hat"))
		case "/boom":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewHTTPResolver(time.Second)
	if got := readString(t, r, srv.URL+"/hat.wav"); got != "hat" {
		t.Errorf("Expected hat, got %q", got)
	}
	if _, err := r.Open(context.Background(), srv.URL+"/nope.wav"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if _, err := r.Open(context.Background(), srv.URL+"/boom"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("Expected generic fetch error, got %v", err)
	}
}
