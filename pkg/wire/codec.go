// Package wire implements ZeroLink's encrypted peer-to-peer application
// frame: a length-prefixed, NaCl-box-sealed JSON payload.
//
// Every application message is one logical frame:
//
//	len(4, big-endian) || nonce(24) || mac(16) || ciphertext(N)
//
// where mac||ciphertext is box.SealAfterPrecomputation of the JSON
// payload under a shared key derived once at handshake time via
// box.Precompute. This adds the length prefix flagged as missing in
// the original design (a bare send()/recv() pair does not guarantee
// one write lands in one read on a TCP stream); the seal/open step
// itself is unchanged from the spec's nonce||mac||ciphertext shape.
package wire

import (
	"crypto/rand"

	"golang.org/x/crypto/nacl/box"
)

// NonceSize is the size in bytes of the random nonce prefixing every
// sealed frame.
const NonceSize = 24

// SharedKeySize is the size in bytes of a precomputed shared key.
const SharedKeySize = 32

// MaxFrameSize bounds the length prefix to guard against a malicious
// or corrupt peer claiming an enormous frame and exhausting memory.
const MaxFrameSize = 1 << 20 // 1 MiB

// SharedKey is a symmetric key derived once per session via
// box.Precompute, used for both sealing outgoing frames and opening
// incoming ones.
type SharedKey [SharedKeySize]byte

// Precompute derives the shared key for a session from the remote
// party's public key and the local private key.
func Precompute(remotePub, localPriv *[32]byte) *SharedKey {
	var shared SharedKey
	box.Precompute((*[32]byte)(&shared), remotePub, localPriv)
	return &shared
}

// Seal encrypts plaintext under key with a freshly generated random
// nonce, returning nonce||mac||ciphertext.
func Seal(key *SharedKey, plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, err
	}
	out := make([]byte, 0, NonceSize+len(plaintext)+box.Overhead)
	out = append(out, nonce[:]...)
	out = box.SealAfterPrecomputation(out, plaintext, &nonce, (*[32]byte)(key))
	return out, nil
}

// Open decrypts a nonce||mac||ciphertext frame body produced by Seal.
// A decrypt failure is reported as ErrDecryptFailed; callers treat it
// as a non-fatal, droppable event rather than closing the session.
func Open(key *SharedKey, body []byte) ([]byte, error) {
	if len(body) < NonceSize+box.Overhead {
		return nil, ErrFrameTooShort
	}
	var nonce [NonceSize]byte
	copy(nonce[:], body[:NonceSize])

	plaintext, ok := box.OpenAfterPrecomputation(nil, body[NonceSize:], &nonce, (*[32]byte)(key))
	if !ok {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
