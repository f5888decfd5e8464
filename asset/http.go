package asset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPResolver fetches http and https references
type HTTPResolver struct {
	Client *http.Client
}

// NewHTTPResolver creates a resolver with a bounded request timeout
func NewHTTPResolver(timeout time.Duration) *HTTPResolver {
	return &HTTPResolver{Client: &http.Client{Timeout: timeout}}
}

func (r *HTTPResolver) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRef, ref)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch %s: %s", ref, resp.Status)
	}
}
