package transport

import (
	"context"
	"net/url"
	"strings"

	"github.com/glorpus-work/portalfetch/pkg/errors"
)

// FTP serves ftp:// endpoints through the shared connection pool, one control
// connection per host for the lifetime of the batch. Resume uses the
// server-side REST command, so the data connection starts at the requested
// offset and the client pulls chunks like any other transport.
type FTP struct {
	pool *Pool
}

// NewFTP creates the FTP transport backed by the given pool.
func NewFTP(pool *Pool) *FTP {
	return &FTP{pool: pool}
}

// Scheme implements Transport.
func (t *FTP) Scheme() string { return "ftp" }

// Size implements Transport.
func (t *FTP) Size(ctx context.Context, rawURL string) (int64, error) {
	host, path, err := parseFTPURL(rawURL)
	if err != nil {
		return 0, err
	}
	conn, err := t.pool.FTP(ctx, host)
	if err != nil {
		return 0, err
	}
	size, err := conn.FileSize(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get size of %s", rawURL)
	}
	return size, nil
}

// Open implements Transport. The returned handle wraps the data connection;
// no other command can run on the same control connection until it is closed.
func (t *FTP) Open(ctx context.Context, rawURL string, offset int64) (Handle, error) {
	host, path, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := t.pool.FTP(ctx, host)
	if err != nil {
		return nil, errors.Wrap(errors.ErrTransportOpen, err.Error())
	}
	resp, err := conn.RetrFrom(path, uint64(offset))
	if err != nil {
		return nil, errors.Wrap(errors.ErrTransportOpen, err.Error())
	}
	return resp, nil
}

// parseFTPURL splits an ftp:// URL into host (with optional port) and the
// absolute remote path.
func parseFTPURL(rawURL string) (host, path string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", errors.Wrapf(err, "invalid FTP URL %q", rawURL)
	}
	if !strings.EqualFold(u.Scheme, "ftp") || u.Host == "" {
		return "", "", errors.Wrapf(errors.ErrUnknownScheme, "not an FTP URL: %q", rawURL)
	}
	return u.Host, u.Path, nil
}
