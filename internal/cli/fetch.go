package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/glorpus-work/portalfetch/internal/logger"
	"github.com/glorpus-work/portalfetch/pkg/config"
	"github.com/glorpus-work/portalfetch/pkg/fetch"
	"github.com/glorpus-work/portalfetch/pkg/manifest"
)

type fetchFlags struct {
	manifestPath      string
	manifestURL       string
	destination       string
	endpointPriority  string
	blockSize         int
	retries           int
	user              string
	asperaUser        string
	disableValidation bool
	discardPartial    bool
}

// NewFetchCmd creates the fetch command.
func NewFetchCmd() *cobra.Command {
	flags := &fetchFlags{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the files listed in a manifest",
		Long: `Download every file listed in a tab-separated manifest, trying each
file's endpoints in priority order. Finished files are skipped, interrupted
transfers resume from their partial file, and completed files are verified
against the manifest MD5. A failed file never stops the batch.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.manifestPath, "manifest", "m", "", "path to the manifest file")
	cmd.Flags().StringVar(&flags.manifestURL, "manifest-url", "", "URL to download the manifest from")
	cmd.Flags().StringVarP(&flags.destination, "destination", "d", "", "directory downloaded files land in")
	cmd.Flags().StringVar(&flags.endpointPriority, "endpoint-priority", "", "comma-separated scheme ordering (http, ftp, s3, fasp)")
	cmd.Flags().IntVarP(&flags.blockSize, "block-size", "b", 0, "transfer chunk size in bytes")
	cmd.Flags().IntVarP(&flags.retries, "retries", "r", 0, "additional whole-batch attempts after a failed pass")
	cmd.Flags().StringVarP(&flags.user, "user", "u", "", "login presented to FTP servers")
	cmd.Flags().StringVar(&flags.asperaUser, "aspera-user", "", "login for fasp endpoints")
	cmd.Flags().BoolVar(&flags.disableValidation, "disable-validation", false, "skip the MD5 check on completed files")
	cmd.Flags().BoolVar(&flags.discardPartial, "discard-partial", false, "delete the partial file after a checksum mismatch")

	return cmd
}

func runFetch(cmd *cobra.Command, flags *fetchFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFetchFlags(cmd, cfg, flags)
	logger.InitLogger(cfg.Settings.LogLevel)

	if err := cfg.Validate(); err != nil {
		return err
	}

	entries, err := loadEntries(cmd.Context(), cfg, flags)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("manifest contains no entries")
	}

	mismatch := fetch.KeepPartial
	if flags.discardPartial {
		mismatch = fetch.DiscardPartial
	}

	orch, err := fetch.New(fetch.Options{
		Dir:            cfg.Settings.Destination,
		Priority:       cfg.Settings.EndpointPriority,
		BlockSize:      cfg.Settings.BlockSize,
		SkipValidation: flags.disableValidation,
		Mismatch:       mismatch,
		FTPUser:        cfg.Settings.FTPUser,
		AsperaUser:     cfg.Settings.AsperaUser,
		AsperaPassword: os.Getenv("ASPERA_SCP_PASS"),
		HTTPTimeout:    cfg.Settings.HTTPTimeout,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	logger.Info("starting batch", logger.Fields{
		"entries":     len(entries),
		"destination": cfg.Settings.Destination,
	})

	codes := orch.RunWithRetries(cmd.Context(), entries, cfg.Settings.Retries)
	return reportSummary(fetch.Summarize(codes))
}

// applyFetchFlags overlays explicitly set command-line flags onto the file
// configuration. Unset flags leave the file values alone.
func applyFetchFlags(cmd *cobra.Command, cfg *config.Config, flags *fetchFlags) {
	if cmd.Flags().Changed("destination") {
		cfg.Settings.Destination = flags.destination
	}
	if cmd.Flags().Changed("endpoint-priority") {
		cfg.Settings.EndpointPriority = flags.endpointPriority
	}
	if cmd.Flags().Changed("block-size") {
		cfg.Settings.BlockSize = flags.blockSize
	}
	if cmd.Flags().Changed("retries") {
		cfg.Settings.Retries = flags.retries
	}
	if cmd.Flags().Changed("user") {
		cfg.Settings.FTPUser = flags.user
	}
	if cmd.Flags().Changed("aspera-user") {
		cfg.Settings.AsperaUser = flags.asperaUser
	}
}

func loadEntries(ctx context.Context, cfg *config.Config, flags *fetchFlags) ([]manifest.Entry, error) {
	switch {
	case flags.manifestPath != "" && flags.manifestURL != "":
		return nil, fmt.Errorf("--manifest and --manifest-url are mutually exclusive")
	case flags.manifestPath != "":
		return manifest.FromFile(flags.manifestPath)
	case flags.manifestURL != "":
		return manifest.FromURL(ctx, flags.manifestURL, cfg.Settings.HTTPTimeout)
	default:
		return nil, fmt.Errorf("either --manifest or --manifest-url is required")
	}
}

func reportSummary(summary fetch.Summary) error {
	logger.Successf("%d of %d files downloaded successfully", summary.Success, summary.Total)
	if summary.NoValidEndpoint > 0 {
		logger.Warnf("%d files had no valid URL in the manifest", summary.NoValidEndpoint)
	}
	if summary.Unreachable > 0 {
		logger.Warnf("%d files could not be retrieved from any endpoint", summary.Unreachable)
	}
	if summary.Mismatch > 0 {
		logger.Warnf("%d files failed MD5 validation", summary.Mismatch)
	}

	if failed := summary.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, summary.Total)
	}
	return nil
}
