// Package integration provides end-to-end test infrastructure for
// ZeroLink: a real bootstrap server plus one or more zerolink.Context
// clients wired to it over loopback TCP.
package integration

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/zerolink/zerolink/pkg/bootstrap"
	"github.com/zerolink/zerolink/pkg/logsink"
	"github.com/zerolink/zerolink/pkg/zerolink"
)

// StartBootstrap starts a real bootstrap server on loopback and
// returns its address. The server is closed on test cleanup.
func StartBootstrap(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := bootstrap.NewServer(ln, nil)
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return ln.Addr().String()
}

// NewContext builds a zerolink.Context rooted in a fresh temp dir,
// with its own identity, empty friend table, and in-memory store.
func NewContext(t *testing.T, bootstrapAddr string) *zerolink.Context {
	t.Helper()
	dir := t.TempDir()
	cfg := zerolink.Config{
		IdentityPath:  filepath.Join(dir, "identity.dat"),
		FriendsPath:   filepath.Join(dir, "friends.dat"),
		DBPath:        ":memory:",
		BootstrapAddr: bootstrapAddr,
		P2PListenAddr: "127.0.0.1:0",
		LogCapacity:   128,
		LogThreshold:  logsink.LevelInfo,
	}
	c, err := zerolink.New(cfg)
	if err != nil {
		t.Fatalf("zerolink.New: %v", err)
	}
	return c
}

// Befriend records b as a friend of a under nickname "peer".
func Befriend(t *testing.T, a, b *zerolink.Context) {
	t.Helper()
	if err := a.AddFriend(b.PublicKeyHex(), "peer"); err != nil {
		t.Fatalf("AddFriend: %v", err)
	}
}

// TestPair is two mutually-friended, running clients sharing one
// bootstrap server, for chat/sync scenario tests.
type TestPair struct {
	t      *testing.T
	A, B   *zerolink.Context
	ctx    context.Context
	cancel context.CancelFunc
}

// NewTestPair creates A and B, registers them as mutual friends, and
// starts both against a fresh bootstrap server.
func NewTestPair(t *testing.T) *TestPair {
	t.Helper()
	bootstrapAddr := StartBootstrap(t)
	a := NewContext(t, bootstrapAddr)
	b := NewContext(t, bootstrapAddr)
	Befriend(t, a, b)
	Befriend(t, b, a)

	ctx, cancel := context.WithCancel(context.Background())
	p := &TestPair{t: t, A: a, B: b, ctx: ctx, cancel: cancel}

	if err := a.Start(ctx); err != nil {
		t.Fatalf("A.Start: %v", err)
	}
	if err := b.Start(ctx); err != nil {
		t.Fatalf("B.Start: %v", err)
	}
	return p
}

// Close shuts down both clients and cancels the shared context.
func (p *TestPair) Close() {
	p.A.Shutdown(context.Background())
	p.B.Shutdown(context.Background())
	p.cancel()
}

// WaitUntil polls cond until it returns true or timeout elapses,
// failing the test if the deadline is reached first.
func WaitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
