package fetch

import (
	"crypto/md5" //nolint:gosec // content integrity check, not cryptography
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/glorpus-work/portalfetch/pkg/errors"
)

// hashChunkSize is the read size used while digesting a downloaded file.
// Files are hashed in fixed chunks so arbitrarily large downloads never have
// to fit in memory.
const hashChunkSize = 4096

// MD5Sum computes the streaming MD5 digest of the file at path and returns it
// as a lowercase hex string.
func MD5Sum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to open %s for checksum", path)
	}
	defer func() { _ = f.Close() }()

	h := md5.New() //nolint:gosec
	buf := make([]byte, hashChunkSize)
	for {
		n, rerr := f.Read(buf)
		if n > 0 {
			_, _ = h.Write(buf[:n])
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return "", errors.Wrapf(rerr, "failed to hash %s", path)
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChecksumMatches reports whether the file at path digests to the expected
// hex string. The comparison is case-insensitive; a mismatch usually means a
// corrupted transfer, but can also point at a stale digest upstream.
func ChecksumMatches(path, expected string) (bool, error) {
	got, err := MD5Sum(path)
	if err != nil {
		return false, err
	}
	return got == strings.ToLower(strings.TrimSpace(expected)), nil
}
