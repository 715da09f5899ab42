package session

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"sync"

	"github.com/pion/logging"
	"golang.org/x/sync/errgroup"

	"github.com/zerolink/zerolink/pkg/wire"
)

// FrameHandler receives decoded application frames from a ready
// session's receive loop. Implemented by pkg/syncer; defined here
// (rather than imported from there) so pkg/session has no dependency
// on the sync or store packages.
type FrameHandler interface {
	HandleFrame(remotePKHex string, frame *wire.Frame)
}

// Identity is the minimal view of the local node's keypair a Session
// needs, satisfied by *pkg/identity.Identity without importing it.
type Identity interface {
	PublicKeyHex() string
}

// Session is one authenticated, encrypted tunnel to one friend. It
// spans from successful handshake to the first I/O failure or
// explicit Close.
type Session struct {
	conn       net.Conn
	remoteAddr string
	remotePK   [32]byte
	remotePKHex string
	sharedKey  *wire.SharedKey

	handler FrameHandler
	log     logging.LeveledLogger

	mu    sync.RWMutex
	state State

	onClose func(*Session)
}

// Dial opens a TCP connection to addr, sends the local raw public
// key, and derives the shared key from remotePub and localPriv. The
// returned session is State Ready on success.
func Dial(ctx context.Context, addr string, remotePub [32]byte, localPriv [32]byte, localID Identity, handler FrameHandler, log logging.LeveledLogger) (*Session, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("session: dial %s: %w", addr, err)
	}

	s := newSession(conn, handler, log)
	s.setState(StateHandshaking)

	localPub, err := publicKeyFor(localID)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Write(localPub[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: send handshake pubkey: %w", err)
	}

	s.remotePK = remotePub
	s.remotePKHex = hex.EncodeToString(remotePub[:])
	s.sharedKey = wire.Precompute(&remotePub, &localPriv)
	s.setState(StateReady)

	return s, nil
}

// publicKeyFor extracts the raw public key bytes from an Identity.
// Identity only exposes the hex string, so this decodes it; callers
// in practice pass *identity.Identity which also exposes PublicKey
// directly, but going through the interface keeps this package
// decoupled from pkg/identity's concrete type.
func publicKeyFor(id Identity) ([32]byte, error) {
	var out [32]byte
	b, err := hexDecode(id.PublicKeyHex())
	if err != nil || len(b) != 32 {
		return out, ErrInvalidPubKeyLength
	}
	copy(out[:], b)
	return out, nil
}

func hexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// IsFriend authorises an inbound handshake by public key hex.
type IsFriend func(pkHex string) bool

// Accept reads the first 32 bytes off an already-accepted connection
// as the dialer's raw public key, checks isFriend, and on success
// derives the shared key and returns a Ready session. On failure the
// connection is closed and (nil, ErrNotFriend) or a read error is
// returned; the caller must not add the result to a Registry in that
// case.
func Accept(conn net.Conn, localPriv [32]byte, isFriend IsFriend, handler FrameHandler, log logging.LeveledLogger) (*Session, error) {
	s := newSession(conn, handler, log)
	s.setState(StateHandshaking)

	var remotePub [32]byte
	if err := readFull(conn, remotePub[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("session: read handshake pubkey: %w", err)
	}

	remoteHex := hex.EncodeToString(remotePub[:])
	if !isFriend(remoteHex) {
		conn.Close()
		return nil, ErrNotFriend
	}

	s.remotePK = remotePub
	s.remotePKHex = remoteHex
	s.sharedKey = wire.Precompute(&remotePub, &localPriv)
	s.setState(StateReady)

	return s, nil
}

func readFull(conn net.Conn, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := conn.Read(buf[read:])
		if err != nil {
			return err
		}
		read += n
	}
	return nil
}

func newSession(conn net.Conn, handler FrameHandler, log logging.LeveledLogger) *Session {
	return &Session{
		conn:       conn,
		remoteAddr: conn.RemoteAddr().String(),
		handler:    handler,
		log:        log,
		state:      StateConnecting,
	}
}

// RemotePKHex returns the remote peer's hex-encoded public key.
func (s *Session) RemotePKHex() string {
	return s.remotePKHex
}

// RemoteAddr returns the remote peer's address as a string.
func (s *Session) RemoteAddr() string {
	return s.remoteAddr
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// OnClose registers a callback invoked once when the session
// transitions to Closed (used by the Registry to remove itself).
func (s *Session) OnClose(fn func(*Session)) {
	s.mu.Lock()
	s.onClose = fn
	s.mu.Unlock()
}

// Send encrypts and frames payload (already-encoded application JSON)
// and writes it to the connection in one logical write.
func (s *Session) Send(payload []byte) error {
	if s.State() != StateReady {
		return ErrNotReady
	}
	sealed, err := wire.Seal(s.sharedKey, payload)
	if err != nil {
		return fmt.Errorf("session: seal: %w", err)
	}
	return wire.WriteFrame(s.conn, sealed)
}

// Run drives the session's receive loop until the connection errors
// or ctx is cancelled, then transitions to Closed. It blocks; callers
// run it in its own goroutine (or via an errgroup task group scoped
// to the session's lifetime).
func (s *Session) Run(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.receiveLoop(ctx)
	})
	_ = g.Wait()
	s.close()
}

func (s *Session) receiveLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		body, err := wire.ReadFrame(s.conn)
		if err != nil {
			if s.log != nil {
				s.log.Infof("session %s: read error, closing: %v", s.remoteAddr, err)
			}
			return err
		}

		plaintext, err := wire.Open(s.sharedKey, body)
		if err != nil {
			// Decrypt failure on an individual frame is non-fatal: log
			// and keep reading. This absorbs garbage frames without
			// tearing down the session.
			if s.log != nil {
				s.log.Warnf("session %s: dropping undecryptable frame: %v", s.remoteAddr, err)
			}
			continue
		}

		frame, err := wire.DecodeFrame(plaintext)
		if err != nil {
			if s.log != nil {
				s.log.Warnf("session %s: dropping malformed frame: %v", s.remoteAddr, err)
			}
			continue
		}

		if s.handler != nil {
			s.handler.HandleFrame(s.remotePKHex, frame)
		}
	}
}

// Close tears the session down explicitly (UI-driven shutdown, not an
// I/O failure).
func (s *Session) Close() error {
	return s.close()
}

func (s *Session) close() error {
	s.mu.Lock()
	already := s.state == StateClosed
	s.state = StateClosed
	onClose := s.onClose
	s.mu.Unlock()

	if already {
		return nil
	}
	if s.log != nil {
		s.log.Infof("session %s (%s): disconnected", s.remotePKHex, s.remoteAddr)
	}
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	if onClose != nil {
		onClose(s)
	}
	return err
}
