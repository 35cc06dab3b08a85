package core

// Driver supplies the host-specific capabilities the merger needs but can't
// provide itself (§4.2, §5): minting replacement GUIDs, and leveled logging
// of merge progress. A merge is otherwise a pure function of its two input
// trees, so everything host-specific is funneled through this one interface.
type Driver interface {
	// GenerateNewGuid returns a replacement for invalidGuid. It's called
	// whenever the merger finds a GUID that fails IsValidGuid. The
	// invalidGuid argument is passed through so a driver can log or seed
	// generation deterministically from it. Returning invalidGuid itself
	// tells the merger to keep the original GUID; returning a GUID that
	// the merge has already placed fails the merge with a
	// *DuplicateItemError.
	GenerateNewGuid(invalidGuid Guid) (Guid, error)

	// Trace logs low-level step-by-step merge progress.
	Trace(format string, args ...interface{})
	// Warn logs a recoverable anomaly the merge worked around (e.g. an
	// invalid GUID that needs a replacement).
	Warn(format string, args ...interface{})
	// Error logs a condition serious enough to abort the merge.
	Error(format string, args ...interface{})
}

// AbortSignal lets a caller cancel an in-progress merge cooperatively. The
// merger polls it at the start of every recursive descent step, so a merge
// over a very large tree can be cancelled without waiting for the whole
// walk to finish (§4.5).
type AbortSignal interface {
	// ErrIfAborted returns ErrAborted if the signal has fired, or nil
	// otherwise.
	ErrIfAborted() error
}

// neverAbort is an AbortSignal that never fires.
type neverAbort struct{}

// ErrIfAborted implements AbortSignal.
func (neverAbort) ErrIfAborted() error {
	return nil
}

// NeverAbort is an AbortSignal that never fires, for callers that have no
// cancellation mechanism of their own.
var NeverAbort AbortSignal = neverAbort{}
