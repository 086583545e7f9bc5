package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/glorpus-work/portalfetch/pkg/errors"
)

// HTTP serves http:// and https:// endpoints. Resume uses a Range request;
// servers that ignore the header get the already-present prefix discarded so
// the byte accounting stays correct either way.
type HTTP struct {
	client    *http.Client
	userAgent string
}

// NewHTTP creates the bulk-HTTP transport with the given request timeout.
func NewHTTP(timeout time.Duration) *HTTP {
	return &HTTP{
		client:    &http.Client{Timeout: timeout},
		userAgent: "portalfetch/1.0",
	}
}

// Scheme implements Transport.
func (t *HTTP) Scheme() string { return "http" }

// Size implements Transport. It prefers a HEAD request and falls back to a
// plain GET for servers that do not answer HEAD.
func (t *HTTP) Size(ctx context.Context, rawURL string) (int64, error) {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, rawURL, http.NoBody)
		if err != nil {
			return 0, errors.Wrap(err, "failed to create request")
		}
		req.Header.Set("User-Agent", t.userAgent)

		resp, err := t.client.Do(req)
		if err != nil {
			return 0, errors.Wrap(err, "size request failed")
		}
		length := resp.ContentLength
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			if method == http.MethodHead {
				// Some servers reject HEAD outright; try the GET before
				// giving up on the candidate.
				continue
			}
			return 0, fmt.Errorf("unexpected status code: %d: %w", resp.StatusCode, errors.ErrTransportOpen)
		}
		if length >= 0 {
			return length, nil
		}
	}
	return 0, errors.ErrSizeUnknown
}

// Open implements Transport.
func (t *HTTP) Open(ctx context.Context, rawURL string, offset int64) (Handle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", t.userAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrTransportOpen, err.Error())
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if offset > 0 {
			// Server ignored the Range header; skip the bytes we already have.
			if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
				_ = resp.Body.Close()
				return nil, errors.Wrap(err, "failed to skip resumed bytes")
			}
		}
	case http.StatusPartialContent:
		// positioned at offset
	default:
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d: %w", resp.StatusCode, errors.ErrTransportOpen)
	}

	return resp.Body, nil
}
