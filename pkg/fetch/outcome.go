package fetch

// OutcomeCode classifies the result of processing one manifest entry. The
// numeric values are part of the caller contract and mirror the exit report:
// one code per entry, in manifest order.
type OutcomeCode int

const (
	// Success means the file was downloaded and verified, or was already
	// present in the destination directory.
	Success OutcomeCode = iota

	// NoValidEndpoint means no candidate URL matched any priority scheme
	// (including the empty URL set).
	NoValidEndpoint

	// EndpointUnreachable means every candidate URL failed to open or the
	// transfer broke down after opening.
	EndpointUnreachable

	// ChecksumMismatch means the transfer completed but the content digest
	// disagreed with the manifest.
	ChecksumMismatch
)

// String implements fmt.Stringer.
func (c OutcomeCode) String() string {
	switch c {
	case Success:
		return "success"
	case NoValidEndpoint:
		return "no valid endpoint"
	case EndpointUnreachable:
		return "endpoint unreachable"
	case ChecksumMismatch:
		return "checksum mismatch"
	default:
		return "unknown"
	}
}
