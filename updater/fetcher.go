package updater

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

var (
	// ErrFetch marks transient failures: network errors, timeouts, bad status codes.
	ErrFetch = errors.New("manifest fetch failed")
	// ErrParse marks a malformed manifest document.
	ErrParse = errors.New("manifest parse failed")
)

// manifests are small documents, anything bigger is suspect
const maxManifestSize = 1 << 20

// Fetcher retrieves and parses the update manifest from a location.
type Fetcher interface {
	// Fetch returns the parsed manifest. Cancelling the context aborts an
	// in-flight request.
	Fetch(ctx context.Context, location string) (*Manifest, error)
}

// HTTPFetcher fetches manifests over http(s) or from a local file path.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with a sane request timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) (*Manifest, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return f.fetchHTTP(ctx, location)
	}
	return f.fetchFile(ctx, strings.TrimPrefix(location, "file://"))
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, url string) (*Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: invalid status code %d from %s", ErrFetch, resp.StatusCode, url)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFetch, err)
	}
	if len(content) > maxManifestSize {
		return nil, fmt.Errorf("%w: response from %s exceeds %d bytes", ErrFetch, url, maxManifestSize)
	}

	return parseManifest(content)
}

func (f *HTTPFetcher) fetchFile(ctx context.Context, path string) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}

	return parseManifest(content)
}

func parseManifest(content []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(content, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &m, nil
}
