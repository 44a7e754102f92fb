// Package errs collects the sentinel errors shared by every gnzcore package.
//
// Each error identifies one failure mode named in the fatal-error taxonomy
// of the reconstruction engine (format, codec, version, context-invariant,
// and resource errors). Call sites wrap these with fmt.Errorf("...: %w", ...)
// to attach the VB id, line number, and context name required by the
// diagnostic line the engine produces on abort.
package errs

import "errors"

var (
	// Context / dictionary errors.
	ErrWordIndexOutOfRange  = errors.New("gnzcore: word index out of range of dictionary")
	ErrDictNotStable        = errors.New("gnzcore: dictionary word index is not stable across rollback")
	ErrEmptyLocalOnLookup   = errors.New("gnzcore: LOOKUP snip on empty local buffer")
	ErrLocalCursorPastEnd   = errors.New("gnzcore: next_local cursor advanced past end of local buffer")
	ErrUnknownLType         = errors.New("gnzcore: unknown ltype for local buffer interpretation")
	ErrBaseContextNotInt    = errors.New("gnzcore: base context of delta snip does not have store=INT")
	ErrRollbackNoSavepoint  = errors.New("gnzcore: rollback called without a matching savepoint")
	ErrNoSuchContext        = errors.New("gnzcore: no context registered for the given dict id")

	// Snip instruction set errors.
	ErrInvalidSnipOpcode    = errors.New("gnzcore: invalid or unsupported snip opcode")
	ErrTruncatedSnip        = errors.New("gnzcore: snip payload truncated")
	ErrInvalidDictIDBase64  = errors.New("gnzcore: malformed base64-encoded dict id in snip payload")

	// Container engine errors.
	ErrTooManyRepeats       = errors.New("gnzcore: container repeat count exceeds maximum allowed")
	ErrContainerNotCached   = errors.New("gnzcore: container snip referenced before being parsed")
	ErrMissingSeparatorSlot = errors.New("gnzcore: MISSING item had no preceding separator to elide")

	// Deferred insertion errors.
	ErrNoDeferredSlot       = errors.New("gnzcore: finalize called for an unregistered deferred insertion")
	ErrPlaceholderOverlap   = errors.New("gnzcore: deferred insertion placeholder overlaps another reservation")

	// Lookback errors.
	ErrLookbackOutOfRange   = errors.New("gnzcore: lookback distance exceeds ring capacity")
	ErrLookbackEmpty        = errors.New("gnzcore: lookback ring has no entries yet")

	// Codec errors.
	ErrUnknownCodec         = errors.New("gnzcore: unknown codec id")
	ErrDecompressedSizeMismatch = errors.New("gnzcore: decompressed size does not match declared uncompressed length")
	ErrCompoundMissingDependent = errors.New("gnzcore: compound codec primary section has no paired dependent section")

	// Section list errors.
	ErrInvalidHeaderSize    = errors.New("gnzcore: invalid section header size")
	ErrInvalidSectionList   = errors.New("gnzcore: malformed section list encoding")
	ErrUnknownSectionType   = errors.New("gnzcore: unknown section type")
	ErrDictIDIndexOutOfRange = errors.New("gnzcore: first-occurrence dict id index out of range")

	// Reconstruction driver errors.
	ErrReconSizeMismatch    = errors.New("gnzcore: reconstructed txt_data size does not match declared recon_size")

	// Peek stack errors.
	ErrPeekReentrant        = errors.New("gnzcore: context is already peeked (non-reentrant)")
	ErrPeekStackEmpty       = errors.New("gnzcore: unpeek called with no matching peek frame")

	// Generated-component router errors.
	ErrQueueFull            = errors.New("gnzcore: generated-component queue is full and slot allocation was declined")
	ErrRouterFinished       = errors.New("gnzcore: router already marked finished_absorbing")
	ErrNoPrescriptionOpen   = errors.New("gnzcore: re-read prescription rotated with no current prescription open")
	ErrOffloadWriteFailed   = errors.New("gnzcore: failed to offload generated-component batch to scratch file")
	ErrRereadSeekFailed     = errors.New("gnzcore: re-read seek into original input file failed")
)
