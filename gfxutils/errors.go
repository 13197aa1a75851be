package gfxutils

import "github.com/cockroachdb/errors"

// Error kinds shared across the submission core. Callers should match these
// with errors.Is; wrapped variants carry call-site context.
var (
	// ErrInvalidArgument is returned for zero handles, zero capacities and
	// other caller mistakes that are detectable up front.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAllocIDOutOfRange is returned when an allocation id is zero or
	// exceeds the table's configured maximum id range.
	ErrAllocIDOutOfRange = errors.New("allocation id out of range")

	// ErrAllocIDCollision is returned when an allocation id already claims a
	// table slot under a genuinely different object identity.
	ErrAllocIDCollision = errors.New("allocation id collision")

	// ErrAllocIDMismatch is returned when a handle is re-tracked with a
	// different allocation id within one reference table.
	ErrAllocIDMismatch = errors.New("allocation id mismatch for handle")

	// ErrNeedFlush is a control-flow signal, not a failure: the reference
	// table is full and the caller must end the current submission, rotate
	// to a fresh table and retry the call that produced it.
	ErrNeedFlush = errors.New("reference table full: flush and retry")

	// ErrHostCallFailed marks errors propagated from the host submission
	// interface. The host's own error remains in the chain.
	ErrHostCallFailed = errors.New("host call failed")

	// ErrBufferTooSmall is returned when a host-provided transfer buffer
	// cannot hold even a stream header and one packet header.
	ErrBufferTooSmall = errors.New("transfer buffer too small")

	// ErrOutOfMemory is returned when a single packet or reference set
	// cannot fit any obtainable chunk.
	ErrOutOfMemory = errors.New("out of transfer capacity")

	// ErrTimeout is returned by fence waits that expire before the fence
	// completes.
	ErrTimeout = errors.New("timed out waiting for fence")

	// ErrFenceWaitUnsupported is returned when the host provides neither a
	// wait primitive nor a completed-fence query.
	ErrFenceWaitUnsupported = errors.New("host does not support fence waits")

	// ErrNotPow2 is the error returned from CheckPow2 if the number being
	// tested is not a power of two.
	ErrNotPow2 = errors.New("number must be a power of two")
)
