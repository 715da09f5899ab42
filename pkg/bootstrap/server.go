// Package bootstrap implements the rendezvous server side of
// ZeroLink's line-oriented introduction protocol: it accepts
// registrations, relays peer lists to newly-joined clients, and
// broadcasts join/leave events. It holds no persistent state.
package bootstrap

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/pion/logging"
)

// Server accepts TCP connections on a listener and runs one worker
// goroutine per client, serialised against a shared Registry.
type Server struct {
	listener net.Listener
	registry *Registry
	log      logging.LeveledLogger

	wg sync.WaitGroup
}

// NewServer wraps an already-bound listener. LoggerFactory may be nil.
func NewServer(listener net.Listener, loggerFactory logging.LoggerFactory) *Server {
	var log logging.LeveledLogger
	if loggerFactory != nil {
		log = loggerFactory.NewLogger("bootstrap")
	}
	return &Server{
		listener: listener,
		registry: NewRegistry(),
		log:      log,
	}
}

// Serve accepts connections until the listener is closed, spawning a
// worker per client. It blocks; the caller runs it in its own
// goroutine or task group entry and stops it by closing the listener.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.wg.Wait()
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleClient(conn)
		}()
	}
}

// Registry exposes the server's client table, primarily for tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

func (s *Server) handleClient(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		if s.log != nil {
			s.log.Warnf("bootstrap: registration read failed from %s: %v", conn.RemoteAddr(), err)
		}
		return
	}

	pkHex, port, ok := parseRegistration(line)
	if !ok {
		if s.log != nil {
			s.log.Warnf("bootstrap: dropping malformed registration %q from %s", strings.TrimSpace(line), conn.RemoteAddr())
		}
		return
	}

	ip := peerIP(conn)
	c := &client{pkHex: pkHex, ip: ip, port: port, conn: conn}

	if err := s.registry.register(c); err != nil {
		if s.log != nil {
			s.log.Warnf("bootstrap: %v, rejecting %s", err, pkHex)
		}
		return
	}
	defer func() {
		s.registry.unregister(pkHex)
		s.broadcast(pkHex, fmt.Sprintf("DEL_PEER %s\n", pkHex))
	}()

	if err := c.write(fmt.Sprintf("MY_IP %s\n", ip)); err != nil {
		return
	}

	for _, other := range s.registry.othersSnapshot(pkHex) {
		line := fmt.Sprintf("PEER %s %s %d\n", other.pkHex, other.ip, other.port)
		if err := c.write(line); err != nil {
			return
		}
	}

	s.broadcast(pkHex, fmt.Sprintf("NEW_PEER %s %s %d\n", pkHex, ip, port))

	if s.log != nil {
		s.log.Infof("bootstrap: %s joined from %s:%d", pkHex, ip, port)
	}

	// Block until the client disconnects; no further registration
	// traffic is expected on this connection.
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}

func (s *Server) broadcast(excludePKHex, line string) {
	for _, c := range s.registry.othersSnapshot(excludePKHex) {
		c.write(line)
	}
}

func parseRegistration(line string) (pkHex string, port int, ok bool) {
	fields := strings.Fields(line)
	if len(fields) != 2 {
		return "", 0, false
	}
	p, err := strconv.Atoi(fields[1])
	if err != nil {
		return "", 0, false
	}
	return fields[0], p, true
}

func peerIP(conn net.Conn) string {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return conn.RemoteAddr().String()
	}
	return host
}

// Close stops accepting new connections. In-flight client workers
// drain naturally as their sockets close.
func (s *Server) Close() error {
	return s.listener.Close()
}
