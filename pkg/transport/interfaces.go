// Package transport implements the protocol-specific halves of the download
// engine. Each supported scheme (bulk HTTP, FTP, S3 object storage and the
// fasp high-throughput UDP protocol) provides the same small capability set:
// open a transfer at a byte offset, query the remote size, and stream chunks.
// The engine depends only on these interfaces and never branches on scheme.
//
//go:generate mockgen -destination=./mocks/transport.go . Transport,Handle
package transport

import (
	"context"
	"strings"

	"github.com/glorpus-work/portalfetch/pkg/errors"
)

// Transport is the capability set shared by all protocol variants.
type Transport interface {
	// Scheme returns the priority token this transport serves (e.g. "http").
	Scheme() string

	// Size queries the total byte length of the remote object. Transports
	// without a size notion return errors.ErrSizeUnknown.
	Size(ctx context.Context, rawURL string) (int64, error)

	// Open establishes or reuses a connection and positions the transfer at
	// offset bytes into the remote object where the protocol supports it.
	Open(ctx context.Context, rawURL string, offset int64) (Handle, error)
}

// Handle is an open transfer. Chunked transports stream the remote object
// through Read; a read of up to blockSize bytes is one chunk and io.EOF ends
// the transfer.
type Handle interface {
	Read(p []byte) (int, error)
	Close() error
}

// WholeFileHandle is implemented by handles whose protocol has no chunk
// granularity. Fetch performs the entire transfer to the given local path and
// signals completion or failure atomically; Read on such a handle returns
// io.EOF immediately.
type WholeFileHandle interface {
	Handle
	Fetch(ctx context.Context, localPath string) error
}

// SchemeOf extracts the lowercase scheme token from a scheme-prefixed URL.
// The https scheme maps onto the http token, matching the priority vocabulary.
func SchemeOf(rawURL string) (string, error) {
	idx := strings.Index(rawURL, "://")
	if idx <= 0 {
		return "", errors.Wrapf(errors.ErrUnknownScheme, "no scheme in %q", rawURL)
	}
	scheme := strings.ToLower(rawURL[:idx])
	if scheme == "https" {
		scheme = "http"
	}
	return scheme, nil
}
