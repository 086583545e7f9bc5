package errors

import "fmt"

// Common error types.
var (
	// Manifest errors.
	ErrEmptyManifestPath = fmt.Errorf("manifest file path cannot be empty")
	ErrManifestParse     = fmt.Errorf("failed to parse manifest")
	ErrManifestFetch     = fmt.Errorf("failed to fetch manifest")

	// Selection errors.
	ErrInvalidPriority  = fmt.Errorf("invalid endpoint priority")
	ErrNoValidEndpoint  = fmt.Errorf("no valid endpoint in manifest entry")
	ErrUnknownScheme    = fmt.Errorf("unknown URL scheme")
	ErrInvalidDirectory = fmt.Errorf("invalid destination directory")

	// Transport errors.
	ErrTransportOpen       = fmt.Errorf("failed to open endpoint")
	ErrEndpointUnreachable = fmt.Errorf("endpoint unreachable")
	ErrSizeUnknown         = fmt.Errorf("remote size not available")
	ErrAscpNotInstalled    = fmt.Errorf("ascp binary not installed or not on PATH")
	ErrAscpVersion         = fmt.Errorf("unsupported ascp version")

	// Verification errors.
	ErrChecksumMismatch = fmt.Errorf("checksum mismatch")

	// Config errors.
	ErrEmptyConfigPath  = fmt.Errorf("config file path cannot be empty")
	ErrConfigParse      = fmt.Errorf("failed to parse config")
	ErrConfigValidation = fmt.Errorf("invalid configuration")
)

// Wrap wraps an error with additional context.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf wraps an error with additional formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
