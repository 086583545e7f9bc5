package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rangeServer serves a fixed payload honoring open-ended Range requests.
func rangeServer(t *testing.T, payload []byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			w.WriteHeader(http.StatusOK)
			return
		}

		if rng := r.Header.Get("Range"); rng != "" {
			var offset int
			_, err := fmt.Sscanf(rng, "bytes=%d-", &offset)
			require.NoError(t, err)
			w.Header().Set("Content-Range",
				fmt.Sprintf("bytes %d-%d/%d", offset, len(payload)-1, len(payload)))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(payload[offset:])
			return
		}
		_, _ = w.Write(payload)
	}))
}

func TestHTTPSize(t *testing.T) {
	payload := []byte("0123456789abcdef")
	server := rangeServer(t, payload)
	defer server.Close()

	tr := NewHTTP(time.Second)
	size, err := tr.Size(context.Background(), server.URL+"/x.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)
}

func TestHTTPSizeHeadRejected(t *testing.T) {
	payload := []byte("0123456789abcdef")
	// Server refuses HEAD but serves GET normally.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	tr := NewHTTP(time.Second)
	size, err := tr.Size(context.Background(), server.URL+"/x.bin")
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)
}

func TestHTTPSizeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	tr := NewHTTP(time.Second)
	_, err := tr.Size(context.Background(), server.URL+"/x.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPOpen(t *testing.T) {
	payload := []byte("0123456789abcdef")

	tests := []struct {
		name   string
		offset int64
		want   string
	}{
		{name: "from start", offset: 0, want: "0123456789abcdef"},
		{name: "resume at 10", offset: 10, want: "abcdef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := rangeServer(t, payload)
			defer server.Close()

			tr := NewHTTP(time.Second)
			h, err := tr.Open(context.Background(), server.URL+"/x.bin", tt.offset)
			require.NoError(t, err)
			defer h.Close()

			got, err := io.ReadAll(h)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestHTTPOpenRangeIgnored(t *testing.T) {
	payload := []byte("0123456789abcdef")
	// Server answers every GET with the whole payload and a 200.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	tr := NewHTTP(time.Second)
	h, err := tr.Open(context.Background(), server.URL+"/x.bin", 10)
	require.NoError(t, err)
	defer h.Close()

	got, err := io.ReadAll(h)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(got), "already-present prefix must be discarded")
}

func TestHTTPOpenError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	tr := NewHTTP(time.Second)
	_, err := tr.Open(context.Background(), server.URL+"/x.bin", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestSchemeOf(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{url: "http://a/x.bin", want: "http"},
		{url: "https://a/x.bin", want: "http"},
		{url: "FTP://a/x.bin", want: "ftp"},
		{url: "s3://bucket/key", want: "s3"},
		{url: "fasp://host/path", want: "fasp"},
		{url: "no-scheme-here", wantErr: true},
		{url: "://empty", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := SchemeOf(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFTPURL(t *testing.T) {
	host, path, err := parseFTPURL("ftp://ftp.example.org/pub/data/x.bin")
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.org", host)
	assert.Equal(t, "/pub/data/x.bin", path)

	host, _, err = parseFTPURL("ftp://ftp.example.org:2121/x.bin")
	require.NoError(t, err)
	assert.Equal(t, "ftp.example.org:2121", host)

	_, _, err = parseFTPURL("http://not-ftp/x.bin")
	require.Error(t, err)
}

func TestParseS3URL(t *testing.T) {
	bucket, key, err := parseS3URL("s3://my-bucket/some/deep/key.bin")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "some/deep/key.bin", key)

	for _, bad := range []string{"s3://bucket-only", "s3:///no-bucket", "http://a/b", "s3://b/"} {
		_, _, err := parseS3URL(bad)
		require.Error(t, err, "url %q", bad)
	}
}

func TestParseFaspURL(t *testing.T) {
	server, path, err := parseFaspURL("fasp://aspera.example.org/data/file.bin")
	require.NoError(t, err)
	assert.Equal(t, "aspera.example.org", server)
	assert.Equal(t, "/data/file.bin", path)

	_, _, err = parseFaspURL("ftp://a/b")
	require.Error(t, err)

	_, _, err = parseFaspURL("fasp://host-only")
	require.Error(t, err)
}

func TestHTTPOpenBadURL(t *testing.T) {
	tr := NewHTTP(time.Second)
	_, err := tr.Open(context.Background(), "http://127.0.0.1:1/refused", 0)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to open endpoint"))
}
