package session

import "errors"

// Session and registry errors.
var (
	// ErrNotFriend is returned when a handshake's remote pubkey is not
	// in the friend registry. The connection is closed, nothing is added.
	ErrNotFriend = errors.New("session: remote public key is not a friend")

	// ErrRegistryFull is returned when Insert is called at MaxPeers capacity.
	ErrRegistryFull = errors.New("session: peer registry full")

	// ErrNotReady is returned when Send is called on a session that has
	// not completed its handshake.
	ErrNotReady = errors.New("session: not ready")

	// ErrInvalidPubKeyLength is returned by Dial when the local
	// identity's public key hex does not decode to 32 bytes.
	ErrInvalidPubKeyLength = errors.New("session: invalid public key length in handshake")
)
