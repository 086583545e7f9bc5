package fsutil

// File and directory permission constants.
// These follow standard Unix permission conventions and are used consistently
// throughout the application.
const (
	// FileModeDefault is the default mode for downloaded files.
	FileModeDefault = 0o644 // -rw-r--r--

	// FileModeSecure is used for files that may hold credentials.
	FileModeSecure = 0o640 // -rw-r-----

	// DirModeDefault is the default mode for destination directories.
	DirModeDefault = 0o755 // drwxr-xr-x

	// DirModeSecure is used for config directories.
	DirModeSecure = 0o750 // drwxr-x---
)
