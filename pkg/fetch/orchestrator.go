// Package fetch contains the resumable multi-protocol download engine: the
// endpoint selector, the per-entry transfer engine, and the batch
// orchestrator that ties them to the protocol transports.
package fetch

import (
	"context"
	"io"
	"time"

	"github.com/glorpus-work/portalfetch/internal/logger"
	"github.com/glorpus-work/portalfetch/pkg/errors"
	"github.com/glorpus-work/portalfetch/pkg/manifest"
	"github.com/glorpus-work/portalfetch/pkg/transport"
)

// EntryRunner is the subset of the engine used by the orchestrator.
type EntryRunner interface {
	Run(ctx context.Context, entry manifest.Entry) OutcomeCode
}

// Options configure a batch run.
type Options struct {
	// Dir is the destination directory for downloaded files.
	Dir string

	// Priority is the comma-separated scheme ordering. Empty derives the
	// ordering from the environment.
	Priority string

	// BlockSize is the transfer chunk size in bytes.
	BlockSize int

	// SkipValidation disables the MD5 integrity check.
	SkipValidation bool

	// Mismatch selects the partial-file disposition after a failed check.
	Mismatch MismatchPolicy

	// FTPUser overrides the login presented to FTP servers.
	FTPUser string

	// AsperaUser and AsperaPassword authenticate fasp transfers.
	AsperaUser     string
	AsperaPassword string

	// HTTPTimeout bounds individual HTTP requests.
	HTTPTimeout time.Duration

	// S3Endpoint overrides the object-storage endpoint (tests only).
	S3Endpoint string

	// ProgressOut receives the in-place status line. Nil selects stdout.
	ProgressOut io.Writer

	// Normalizer is an optional URL rewrite hook applied during selection.
	Normalizer func(string) string
}

// Orchestrator iterates a manifest sequentially, one entry to completion
// before the next, and aggregates per-entry outcome codes. It owns the
// connection pool shared by all entries of the run and never aborts the batch
// on an individual failure.
type Orchestrator struct {
	Runner EntryRunner

	pool *transport.Pool
}

// New builds an orchestrator with the full transport set wired to a fresh
// connection pool.
func New(opts Options) (*Orchestrator, error) {
	if opts.Dir == "" {
		return nil, errors.ErrInvalidDirectory
	}
	if opts.BlockSize <= 0 {
		return nil, errors.Wrapf(errors.ErrConfigValidation, "block size must be positive, got %d", opts.BlockSize)
	}
	if opts.HTTPTimeout == 0 {
		opts.HTTPTimeout = 30 * time.Second
	}

	pool := transport.NewPool(transport.PoolOptions{
		FTPUser:    opts.FTPUser,
		S3Endpoint: opts.S3Endpoint,
	})

	httpTransport := transport.NewHTTP(opts.HTTPTimeout)
	ftpTransport := transport.NewFTP(pool)
	s3Transport := transport.NewS3(pool)
	faspTransport := transport.NewFasp(opts.AsperaUser, opts.AsperaPassword)
	transports := map[string]transport.Transport{
		httpTransport.Scheme(): httpTransport,
		ftpTransport.Scheme():  ftpTransport,
		s3Transport.Scheme():   s3Transport,
		faspTransport.Scheme(): faspTransport,
	}

	engine := &Engine{
		Selector: &Selector{
			Sensor:     NewIMDSSensor(),
			Normalizer: opts.Normalizer,
		},
		Transports:     transports,
		Progress:       NewReporter(opts.ProgressOut),
		DestDir:        opts.Dir,
		Priority:       opts.Priority,
		BlockSize:      opts.BlockSize,
		SkipValidation: opts.SkipValidation,
		Mismatch:       opts.Mismatch,
	}

	return &Orchestrator{Runner: engine, pool: pool}, nil
}

// Close tears down the connection pool.
func (o *Orchestrator) Close() {
	if o.pool != nil {
		o.pool.Close()
	}
}

// Run processes every manifest entry in order and returns exactly one
// OutcomeCode per entry. Per-entry failures are captured as data, never as
// errors that halt the batch. Once the context is cancelled the remaining
// entries are marked unreachable without touching the network.
func (o *Orchestrator) Run(ctx context.Context, entries []manifest.Entry) []OutcomeCode {
	codes := make([]OutcomeCode, 0, len(entries))
	for _, entry := range entries {
		if ctx.Err() != nil {
			logger.Warn("run cancelled, skipping entry", logger.Fields{"id": entry.ID})
			codes = append(codes, EndpointUnreachable)
			continue
		}
		codes = append(codes, o.Runner.Run(ctx, entry))
	}
	return codes
}

// RunWithRetries re-runs the whole batch after a failed pass, up to retries
// additional attempts. Entries that finished earlier are skipped idempotently
// by the engine. A batch where every entry lacks a valid endpoint is never
// retried, since another pass cannot change that.
func (o *Orchestrator) RunWithRetries(ctx context.Context, entries []manifest.Entry, retries int) []OutcomeCode {
	codes := o.Run(ctx, entries)

	for attempt := 1; attempt <= retries; attempt++ {
		summary := Summarize(codes)
		if summary.Failed() == 0 || summary.NoValidEndpoint == summary.Total || ctx.Err() != nil {
			break
		}
		logger.Infof("initiating download attempt number %d", attempt+1)
		codes = o.Run(ctx, entries)
	}
	return codes
}

// Summary counts batch outcomes per class.
type Summary struct {
	Total           int
	Success         int
	NoValidEndpoint int
	Unreachable     int
	Mismatch        int
}

// Summarize tallies a batch result list.
func Summarize(codes []OutcomeCode) Summary {
	s := Summary{Total: len(codes)}
	for _, code := range codes {
		switch code {
		case Success:
			s.Success++
		case NoValidEndpoint:
			s.NoValidEndpoint++
		case EndpointUnreachable:
			s.Unreachable++
		case ChecksumMismatch:
			s.Mismatch++
		}
	}
	return s
}

// Failed returns the number of entries that did not succeed.
func (s Summary) Failed() int {
	return s.Total - s.Success
}
