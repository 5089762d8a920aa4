package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hfi/authproxy/internal/mapping"
)

// DefaultFetchTimeout bounds an upstream fetch so one slow target
// cannot hold a request forever. Timeout expiry reads the same as any
// other transport failure.
const DefaultFetchTimeout = 30 * time.Second

// Upstream is one response fetched from a target URL. ContentType is
// passed through verbatim; a target that sends none yields "".
type Upstream struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Fetcher is the outbound capability the resolver depends on. The
// production implementation talks HTTP; tests substitute counters.
type Fetcher interface {
	Fetch(ctx context.Context, m *mapping.Mapping) (*Upstream, error)
}

// HTTPFetcher fetches targets over HTTP, injecting credentials per the
// mapping's mode. Basic and bearer are mutually exclusive; a mapping
// carries at most one shape.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher whose requests are bounded by
// timeout. Values below 1 fall back to DefaultFetchTimeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout < 1 {
		timeout = DefaultFetchTimeout
	}

	return &HTTPFetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch issues a GET to the mapping's target and reads the whole body.
func (f *HTTPFetcher) Fetch(ctx context.Context, m *mapping.Mapping) (*Upstream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.TargetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	switch m.Mode {
	case mapping.ModeBasic:
		req.SetBasicAuth(m.Credential.Username, m.Credential.Password)
	case mapping.ModeBearer:
		req.Header.Set("Authorization", "Bearer "+m.Credential.Token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", m.TargetURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}

	return &Upstream{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
