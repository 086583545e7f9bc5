package fetch

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path"
	"path/filepath"

	"github.com/glorpus-work/portalfetch/internal/logger"
	"github.com/glorpus-work/portalfetch/pkg/errors"
	"github.com/glorpus-work/portalfetch/pkg/fsutil"
	"github.com/glorpus-work/portalfetch/pkg/manifest"
	"github.com/glorpus-work/portalfetch/pkg/transport"
)

// MismatchPolicy decides what happens to the partial file after a checksum
// mismatch. Keeping it preserves the historical behavior: a later run resumes
// from the same, possibly corrupt, prefix. Discarding forces a clean restart.
type MismatchPolicy int

const (
	// KeepPartial leaves the partial file on disk after a mismatch.
	KeepPartial MismatchPolicy = iota

	// DiscardPartial deletes the partial file after a mismatch.
	DiscardPartial
)

// TransferState is the per-entry mutable state threaded through one engine
// run: where the file lands, how far the transfer has come, and which
// endpoint is active.
type TransferState struct {
	Dest    string
	Partial string
	Offset  int64
	Total   int64
	Scheme  string
	URL     string
}

// Engine drives one manifest entry end to end: select an endpoint, open with
// resume, transfer in chunks, verify and finalize. Failures never propagate
// as errors; every run produces exactly one OutcomeCode.
type Engine struct {
	Selector   *Selector
	Transports map[string]transport.Transport
	Progress   *Reporter

	// DestDir is where finished files land; partial files live next to them
	// with a .partial suffix.
	DestDir string

	// Priority is the comma-separated scheme ordering; empty derives the
	// ordering from the environment.
	Priority string

	// BlockSize is the chunk size in bytes for pull-based transports.
	BlockSize int

	// SkipValidation finalizes transfers without a digest check.
	SkipValidation bool

	// Mismatch selects the partial-file disposition after a failed check.
	Mismatch MismatchPolicy
}

// Run processes a single manifest entry and classifies the result.
func (e *Engine) Run(ctx context.Context, entry manifest.Entry) OutcomeCode {
	candidates := e.Selector.Select(ctx, entry.URLs, e.Priority)
	if len(candidates) == 0 {
		logger.Warn("no valid URL found in the manifest", logger.Fields{"id": entry.ID})
		return NoValidEndpoint
	}

	st := &TransferState{
		Dest: filepath.Join(e.DestDir, path.Base(candidates[0].URL)),
	}
	st.Partial = st.Dest + ".partial"

	// Idempotent skip: a finished file is never re-downloaded or re-verified.
	if _, err := os.Stat(st.Dest); err == nil {
		logger.Debug("file already exists, skipping", logger.Fields{"id": entry.ID, "path": st.Dest})
		return Success
	}

	offset, err := fsutil.FileSize(st.Partial)
	if err != nil {
		logger.Error("cannot stat partial file", logger.Fields{"id": entry.ID, "error": err.Error()})
		return EndpointUnreachable
	}
	st.Offset = offset

	handle, wholeDone := e.openFirstReachable(ctx, candidates, st)
	if handle == nil {
		logger.Warn("skipping entry, no URL succeeded", logger.Fields{
			"id": entry.ID, "candidates": len(candidates),
		})
		return EndpointUnreachable
	}
	defer func() { _ = handle.Close() }()

	if !wholeDone {
		logger.Info("downloading file", logger.Fields{
			"via": st.Scheme, "path": st.Dest, "total_bytes": st.Total,
		})
		if err := e.transfer(handle, st); err != nil {
			logger.Error("transfer failed", logger.Fields{"id": entry.ID, "error": err.Error()})
			return EndpointUnreachable
		}
	}

	return e.finalize(entry, st)
}

// openFirstReachable walks the candidate list in priority order and returns
// the first handle that opens. Whole-file transports complete their transfer
// here, since open and transfer are one atomic step for them.
func (e *Engine) openFirstReachable(ctx context.Context, candidates []Candidate, st *TransferState) (transport.Handle, bool) {
	for _, cand := range candidates {
		tr, ok := e.Transports[cand.Scheme]
		if !ok {
			logger.Debug("no transport for scheme", logger.Fields{"scheme": cand.Scheme})
			continue
		}

		total, err := tr.Size(ctx, cand.URL)
		if err != nil && !stderrors.Is(err, errors.ErrSizeUnknown) {
			logger.Debug("size query failed", logger.Fields{"url": cand.URL, "error": err.Error()})
			continue
		}

		handle, err := tr.Open(ctx, cand.URL, st.Offset)
		if err != nil {
			logger.Debug("open failed", logger.Fields{"url": cand.URL, "error": err.Error()})
			continue
		}

		st.URL = cand.URL
		st.Scheme = cand.Scheme
		st.Total = total

		if whole, ok := handle.(transport.WholeFileHandle); ok {
			if err := whole.Fetch(ctx, st.Partial); err != nil {
				logger.Debug("whole-file transfer failed", logger.Fields{"url": cand.URL, "error": err.Error()})
				_ = handle.Close()
				continue
			}
			return handle, true
		}
		return handle, false
	}
	return nil, false
}

// transfer appends chunks from the handle to the partial file, advancing the
// resume offset and reporting progress after every chunk.
func (e *Engine) transfer(handle transport.Handle, st *TransferState) error {
	file, err := os.OpenFile(st.Partial, os.O_WRONLY|os.O_CREATE|os.O_APPEND, fsutil.FileModeDefault)
	if err != nil {
		return errors.Wrap(err, "cannot open partial file")
	}
	defer func() { _ = file.Close() }()

	if int64(e.BlockSize) > st.Total-st.Offset {
		logger.Debug("block size exceeds remaining bytes, pulling remainder in one read")
	}

	buf := make([]byte, e.BlockSize)
	for {
		n, rerr := handle.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				return errors.Wrap(werr, "cannot append chunk")
			}
			st.Offset += int64(n)
			e.Progress.Progress(st.Offset, st.Total)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return errors.Wrap(rerr, "chunk read failed")
		}
	}
	e.Progress.Finish()
	return nil
}

// finalize verifies the completed partial file and promotes it to the final
// destination path on success.
func (e *Engine) finalize(entry manifest.Entry, st *TransferState) OutcomeCode {
	if !e.SkipValidation {
		ok, err := ChecksumMatches(st.Partial, entry.MD5)
		if err != nil {
			logger.Error("checksum computation failed", logger.Fields{"id": entry.ID, "error": err.Error()})
			return EndpointUnreachable
		}
		if !ok {
			logger.Error("MD5 check failed, data may be corrupted", logger.Fields{"id": entry.ID})
			if e.Mismatch == DiscardPartial {
				if err := os.Remove(st.Partial); err != nil {
					logger.Warn("cannot remove corrupt partial file", logger.Fields{"path": st.Partial})
				}
			}
			return ChecksumMismatch
		}
	}

	if err := fsutil.Move(st.Partial, st.Dest); err != nil {
		logger.Error("cannot finalize file", logger.Fields{"id": entry.ID, "error": err.Error()})
		return EndpointUnreachable
	}
	logger.Success("download complete", logger.Fields{"id": entry.ID, "path": st.Dest})
	return Success
}
