package asset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"strings"
)

// FSResolver serves bare relative references from a file system
type FSResolver struct {
	FS fs.FS
}

// NewFSResolver serves references relative to dir on disk
func NewFSResolver(dir string) *FSResolver {
	return &FSResolver{FS: os.DirFS(dir)}
}

func (r *FSResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	name := path.Clean(strings.TrimPrefix(ref, "/"))
	if !fs.ValidPath(name) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	f, err := r.FS.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return f, nil
}

// FileResolver serves file:// URLs from the local disk
type FileResolver struct{}

func (FileResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	u, err := url.Parse(ref)
	if err != nil || u.Scheme != "file" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}
	f, err := os.Open(u.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("open %s: %w", ref, err)
	}
	return f, nil
}
