package raster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrNotFound is returned by a Fetcher when the referenced object does not
// exist. Tile stores are sparse: a missing band tile reads as nodata, so the
// dataset layer treats this sentinel differently from transport failures.
var ErrNotFound = errors.New("resource not found")

// Fetcher retrieves the raw bytes behind an asset reference. It is the seam
// between the tile-store reader and the transport (HTTP for remote assets,
// the filesystem for local stores and tests).
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// HTTPFetcher fetches objects over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates an HTTP fetcher with a tuned transport.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", ref, err)
	}
	req.Header.Set("User-Agent", "stac-chipper/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", ref, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ref, err)
	}
	return data, nil
}

// FileFetcher fetches objects from the local filesystem. Plain paths and
// file:// URLs are both accepted.
type FileFetcher struct{}

func (FileFetcher) Fetch(_ context.Context, ref string) ([]byte, error) {
	path := strings.TrimPrefix(ref, "file://")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// SchemeFetcher routes references by scheme: http(s) to an HTTP fetcher,
// everything else to the filesystem.
type SchemeFetcher struct {
	HTTP Fetcher
	File Fetcher
}

// NewSchemeFetcher creates a scheme-routing fetcher with the given HTTP
// timeout.
func NewSchemeFetcher(timeout time.Duration) *SchemeFetcher {
	return &SchemeFetcher{
		HTTP: NewHTTPFetcher(timeout),
		File: FileFetcher{},
	}
}

func (f *SchemeFetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return f.HTTP.Fetch(ctx, ref)
	}
	return f.File.Fetch(ctx, ref)
}
