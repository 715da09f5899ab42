package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func statSize(path string) (int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return int(info.Size()), nil
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadOrCreateGeneratesAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.dat")

	id1, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if len(id1.PublicKeyHex()) != PKHexLen {
		t.Fatalf("PublicKeyHex length = %d, want %d", len(id1.PublicKeyHex()), PKHexLen)
	}

	id2, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate (reload): %v", err)
	}
	if id1.PublicKeyHex() != id2.PublicKeyHex() {
		t.Errorf("reloaded identity differs: %s != %s", id1.PublicKeyHex(), id2.PublicKeyHex())
	}
	if id1.PrivateKey != id2.PrivateKey {
		t.Errorf("reloaded private key differs")
	}
}

func TestLoadOrCreateFileSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.dat")

	if _, err := LoadOrCreate(path); err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}

	info, err := statSize(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info != PubKeySize+PrivKeySize {
		t.Errorf("identity file size = %d, want %d", info, PubKeySize+PrivKeySize)
	}
}

func TestLoadOrCreateRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "identity.dat")
	writeFile(t, path, []byte("too short"))

	if _, err := LoadOrCreate(path); err != ErrCorruptIdentityFile {
		t.Errorf("LoadOrCreate on corrupt file = %v, want ErrCorruptIdentityFile", err)
	}
}

func TestDecodePubKeyHex(t *testing.T) {
	id, err := LoadOrCreate(filepath.Join(t.TempDir(), "identity.dat"))
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}

	got, err := DecodePubKeyHex(id.PublicKeyHex())
	if err != nil {
		t.Fatalf("DecodePubKeyHex: %v", err)
	}
	if got != id.PublicKey {
		t.Errorf("DecodePubKeyHex round trip mismatch")
	}

	if _, err := DecodePubKeyHex("deadbeef"); err != ErrInvalidPubKeyLength {
		t.Errorf("DecodePubKeyHex(short) = %v, want ErrInvalidPubKeyLength", err)
	}
}
