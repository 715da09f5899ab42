package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/nacl/box"

	"github.com/zerolink/zerolink/pkg/wire"
)

type fakeIdentity struct {
	pkHex string
}

func (f fakeIdentity) PublicKeyHex() string { return f.pkHex }

type recordingHandler struct {
	mu     sync.Mutex
	frames []*wire.Frame
	from   []string
}

func (h *recordingHandler) HandleFrame(remotePKHex string, frame *wire.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, frame)
	h.from = append(h.from, remotePKHex)
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.frames)
}

// pipePair returns a connected in-memory (net.Pipe) pair; net.Pipe's
// RemoteAddr() is usable as-is, so no wrapping is needed.
func pipePair(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	return a, b
}

func TestDialAcceptHandshakeReachesReady(t *testing.T) {
	clientPub, clientPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	serverPub, serverPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	serverHandler := &recordingHandler{}
	clientHandler := &recordingHandler{}

	acceptedCh := make(chan *Session, 1)
	acceptErrCh := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			acceptErrCh <- err
			return
		}
		isFriend := func(pkHex string) bool { return pkHex == hex.EncodeToString(clientPub[:]) }
		s, err := Accept(conn, *serverPriv, isFriend, serverHandler, nil)
		if err != nil {
			acceptErrCh <- err
			return
		}
		acceptedCh <- s
	}()

	clientID := fakeIdentity{pkHex: hex.EncodeToString(clientPub[:])}
	clientSession, err := Dial(context.Background(), ln.Addr().String(), *serverPub, *clientPriv, clientID, clientHandler, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer clientSession.Close()

	if clientSession.State() != StateReady {
		t.Fatalf("client state = %v, want Ready", clientSession.State())
	}

	var serverSession *Session
	select {
	case serverSession = <-acceptedCh:
	case err := <-acceptErrCh:
		t.Fatalf("Accept: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Accept")
	}
	defer serverSession.Close()

	if serverSession.State() != StateReady {
		t.Fatalf("server state = %v, want Ready", serverSession.State())
	}
	if serverSession.RemotePKHex() != hex.EncodeToString(clientPub[:]) {
		t.Errorf("server session remote pk mismatch")
	}
}

func TestAcceptRejectsNonFriend(t *testing.T) {
	strangerPub, _, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	_, strangerPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	_, serverPriv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}

	serverConn, clientConn := pipePair(t)
	defer clientConn.Close()

	isFriend := func(string) bool { return false }
	errCh := make(chan error, 1)
	go func() {
		_, err := Accept(serverConn, *serverPriv, isFriend, nil, nil)
		errCh <- err
	}()

	clientConn.Write(strangerPub[:])
	_ = strangerPriv

	select {
	case err := <-errCh:
		if err != ErrNotFriend {
			t.Fatalf("Accept error = %v, want ErrNotFriend", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out")
	}
}

func TestSendReceiveRoundTrip(t *testing.T) {
	clientPub, clientPriv, _ := box.GenerateKey(rand.Reader)
	serverPub, serverPriv, _ := box.GenerateKey(rand.Reader)

	serverConn, clientConn := pipePair(t)

	serverHandler := &recordingHandler{}

	readyCh := make(chan *Session, 1)
	go func() {
		isFriend := func(pkHex string) bool { return pkHex == hex.EncodeToString(clientPub[:]) }
		s, err := Accept(serverConn, *serverPriv, isFriend, serverHandler, nil)
		if err != nil {
			t.Errorf("Accept: %v", err)
			return
		}
		readyCh <- s
	}()

	go clientConn.Write(clientPub[:])

	serverSession := <-readyCh
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go serverSession.Run(ctx)

	clientSharedKey := wire.Precompute(serverPub, clientPriv)
	chatFrame, err := wire.EncodeChat(wire.ChatPayload{UID: "uid-1", Content: "hello", VectorClock: []byte("{}")})
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := wire.Seal(clientSharedKey, chatFrame)
	if err != nil {
		t.Fatal(err)
	}
	if err := wire.WriteFrame(clientConn, sealed); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for serverHandler.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for frame delivery")
		case <-time.After(10 * time.Millisecond):
		}
	}

	serverSession.Close()
	clientConn.Close()
}

func TestSendOnNotReadySessionFails(t *testing.T) {
	s := &Session{state: StateHandshaking}
	if err := s.Send([]byte("x")); err != ErrNotReady {
		t.Fatalf("Send on non-ready session = %v, want ErrNotReady", err)
	}
}
