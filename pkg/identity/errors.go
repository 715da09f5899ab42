package identity

import "errors"

// Identity and friend registry errors.
var (
	// ErrInvalidPubKeyLength is returned when a hex-encoded public key
	// does not decode to PubKeySize bytes.
	ErrInvalidPubKeyLength = errors.New("identity: invalid public key length")

	// ErrUnknownFriend is returned by lookups that find no matching entry.
	ErrUnknownFriend = errors.New("identity: unknown friend")

	// ErrFriendTableFull is returned when AddFriend is called at capacity.
	ErrFriendTableFull = errors.New("identity: friend table full")

	// ErrCorruptIdentityFile is returned when identity.dat has the wrong size.
	ErrCorruptIdentityFile = errors.New("identity: corrupt identity file")
)

// unknownUser is the sentinel nickname returned by NicknameFor when no
// friend matches the given public key.
const unknownUser = "unknown user"
