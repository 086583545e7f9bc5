package transport

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/glorpus-work/portalfetch/pkg/errors"
)

func TestCheckAscpVersion(t *testing.T) {
	tests := []struct {
		name    string
		banner  string
		wantErr bool
	}{
		{
			name:   "modern release",
			banner: "Aspera CLI version 4.14.0",
		},
		{
			name:   "exact minimum",
			banner: "ascp version 3.5.0",
		},
		{
			name:    "too old",
			banner:  "ascp version 3.1.1",
			wantErr: true,
		},
		{
			name:    "no version in banner",
			banner:  "garbage output",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkAscpVersion(tt.banner)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestFaspSize(t *testing.T) {
	tr := NewFasp("tester", "")
	_, err := tr.Size(context.Background(), "fasp://host/file")
	require.ErrorIs(t, err, pkgerrors.ErrSizeUnknown)
}

func TestFaspOpenBinaryMissing(t *testing.T) {
	tr := NewFasp("tester", "")
	tr.lookPath = func(string) (string, error) {
		return "", errors.New("executable file not found in $PATH")
	}

	_, err := tr.Open(context.Background(), "fasp://host/data/file.bin", 0)
	require.ErrorIs(t, err, pkgerrors.ErrAscpNotInstalled)
}

func TestFaspOpenOldBinary(t *testing.T) {
	tr := NewFasp("tester", "")
	tr.lookPath = func(string) (string, error) { return "/usr/bin/ascp", nil }
	tr.runCommand = func(cmd *exec.Cmd) error {
		_, err := io.WriteString(cmd.Stdout, "ascp version 2.7.1\n")
		return err
	}

	_, err := tr.Open(context.Background(), "fasp://host/data/file.bin", 0)
	require.ErrorIs(t, err, pkgerrors.ErrAscpVersion)
}

func TestFaspFetch(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "file.bin")

	var gotArgs []string
	tr := NewFasp("tester", "hunter2")
	tr.lookPath = func(string) (string, error) { return "/usr/bin/ascp", nil }
	tr.runCommand = func(cmd *exec.Cmd) error {
		if strings.Contains(strings.Join(cmd.Args, " "), "--version") {
			_, err := io.WriteString(cmd.Stdout, "ascp version 4.1.0\n")
			return err
		}
		gotArgs = cmd.Args
		// Simulate the whole-file transfer.
		return os.WriteFile(dest, []byte("transferred"), 0o644)
	}

	h, err := tr.Open(context.Background(), "fasp://aspera.example.org/data/file.bin", 0)
	require.NoError(t, err)

	whole, ok := h.(WholeFileHandle)
	require.True(t, ok, "fasp handle must be a whole-file handle")

	require.NoError(t, whole.Fetch(context.Background(), dest))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "transferred", string(content))

	joined := strings.Join(gotArgs, " ")
	assert.Contains(t, joined, "tester@aspera.example.org:/data/file.bin")
	assert.Contains(t, joined, dest)

	// Chunk reads are not part of the fasp contract.
	n, err := h.Read(make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, h.Close())
}

func TestFaspFetchFailure(t *testing.T) {
	tr := NewFasp("tester", "")
	tr.lookPath = func(string) (string, error) { return "/usr/bin/ascp", nil }
	tr.runCommand = func(cmd *exec.Cmd) error {
		if strings.Contains(strings.Join(cmd.Args, " "), "--version") {
			_, err := io.WriteString(cmd.Stdout, "ascp version 4.1.0\n")
			return err
		}
		return errors.New("exit status 1")
	}

	h, err := tr.Open(context.Background(), "fasp://host/data/file.bin", 0)
	require.NoError(t, err)

	err = h.(WholeFileHandle).Fetch(context.Background(), filepath.Join(t.TempDir(), "f"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ascp transfer")
}
