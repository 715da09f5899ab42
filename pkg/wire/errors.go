package wire

import "errors"

// Wire protocol errors.
var (
	// ErrFrameTooShort is returned when a frame is shorter than the
	// minimum nonce+overhead size required to contain a sealed box.
	ErrFrameTooShort = errors.New("wire: frame too short")

	// ErrFrameTooLarge is returned when a declared frame length
	// exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("wire: frame too large")

	// ErrDecryptFailed is returned when box authentication fails. This
	// is non-fatal to the session: the offending frame is dropped and
	// the caller keeps reading.
	ErrDecryptFailed = errors.New("wire: decrypt failed")

	// ErrUnknownFrameType is returned for a "type" discriminator the
	// decoder does not recognise.
	ErrUnknownFrameType = errors.New("wire: unknown frame type")
)
