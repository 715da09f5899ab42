// Package identity manages the local node's long-term keypair and its
// friend registry, the two pieces of persisted state that gate every
// peer connection ZeroLink makes.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/box"
)

const (
	// PubKeySize is the size in bytes of a raw public key.
	PubKeySize = 32

	// PrivKeySize is the size in bytes of a raw private key.
	PrivKeySize = 32

	// PKHexLen is the length of the lowercase hex encoding of a public key.
	PKHexLen = PubKeySize * 2
)

// Identity holds the local node's long-term NaCl box keypair.
type Identity struct {
	PublicKey  [PubKeySize]byte
	PrivateKey [PrivKeySize]byte
}

// PublicKeyHex returns the lowercase hex encoding of the public key.
func (id *Identity) PublicKeyHex() string {
	return hex.EncodeToString(id.PublicKey[:])
}

// LoadOrCreate reads the identity file at path. If it does not exist,
// a fresh keypair is generated and written atomically. The identity
// is immutable thereafter: once a file exists it is never regenerated.
func LoadOrCreate(path string) (*Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return parseIdentity(data)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("identity: read %s: %w", path, err)
	}

	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate keypair: %w", err)
	}
	if pub == nil {
		// box.GenerateKey returns nil keys only together with an error;
		// this guards against a nil key all the same.
		return nil, fmt.Errorf("identity: generate keypair: nil public key")
	}

	id := &Identity{PublicKey: *pub, PrivateKey: *priv}
	if err := writeAtomic(path, encodeIdentity(id)); err != nil {
		return nil, fmt.Errorf("identity: write %s: %w", path, err)
	}
	return id, nil
}

func encodeIdentity(id *Identity) []byte {
	out := make([]byte, 0, PubKeySize+PrivKeySize)
	out = append(out, id.PublicKey[:]...)
	out = append(out, id.PrivateKey[:]...)
	return out
}

func parseIdentity(data []byte) (*Identity, error) {
	if len(data) != PubKeySize+PrivKeySize {
		return nil, ErrCorruptIdentityFile
	}
	id := &Identity{}
	copy(id.PublicKey[:], data[:PubKeySize])
	copy(id.PrivateKey[:], data[PubKeySize:])
	return id, nil
}

// writeAtomic writes data to path by writing to a sibling temp file
// and renaming it into place, so a crash mid-write never leaves a
// half-written identity file behind.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".identity-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op if the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// DecodePubKeyHex decodes a hex-encoded public key, validating its
// length. This is the entry point used both for rendezvous-advertised
// dial targets and for user-entered friend public keys.
func DecodePubKeyHex(pkHex string) ([PubKeySize]byte, error) {
	var out [PubKeySize]byte
	if len(pkHex) != PKHexLen {
		return out, ErrInvalidPubKeyLength
	}
	b, err := hex.DecodeString(pkHex)
	if err != nil {
		return out, ErrInvalidPubKeyLength
	}
	copy(out[:], b)
	return out, nil
}
