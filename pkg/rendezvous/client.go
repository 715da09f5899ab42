package rendezvous

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/pion/logging"

	"github.com/zerolink/zerolink/pkg/session"
)

// DialFunc opens a P2P session to a friend at ip:port, keyed by its
// hex public key. Implemented by the glue layer, which has access to
// pkg/session.Dial and the local identity/registry; pkg/rendezvous
// itself uses pkg/session only for the DialKey/ShouldDial tie-break.
type DialFunc func(ctx context.Context, pkHex, ip string, port int)

// IsFriend reports whether pkHex belongs to a known friend. Events
// about non-friends are recorded but never trigger a dial.
type IsFriend func(pkHex string) bool

// Client holds the persistent connection to the bootstrap server and
// runs its read loop, translating line-protocol events into dial
// decisions.
type Client struct {
	conn      net.Conn
	selfPKHex string
	selfIP    string

	isFriend IsFriend
	dial     DialFunc
	log      logging.LeveledLogger
}

// NewClient wraps an already-connected socket to the bootstrap server.
func NewClient(conn net.Conn, selfPKHex string, isFriend IsFriend, dial DialFunc, log logging.LeveledLogger) *Client {
	return &Client{
		conn:      conn,
		selfPKHex: selfPKHex,
		isFriend:  isFriend,
		dial:      dial,
		log:       log,
	}
}

// SelfIP returns the externally-observed IP learned from the server's
// MY_IP line, or "" before it arrives.
func (c *Client) SelfIP() string {
	return c.selfIP
}

// Run sends the one-time registration line for p2pPort, then reads and
// dispatches bootstrap events until the connection closes or ctx is
// cancelled. It blocks; callers run it in its own goroutine or task
// group entry.
func (c *Client) Run(ctx context.Context, p2pPort int) error {
	if _, err := io.WriteString(c.conn, RegistrationLine(c.selfPKHex, p2pPort)); err != nil {
		return fmt.Errorf("rendezvous: send registration: %w", err)
	}

	scanner := bufio.NewScanner(c.conn)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Text()
		ev, err := ParseLine(line)
		if err != nil {
			if c.log != nil {
				c.log.Warnf("rendezvous: dropping malformed line %q", line)
			}
			continue
		}
		c.handle(ctx, ev, p2pPort)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("rendezvous: read: %w", err)
	}
	return nil
}

func (c *Client) handle(ctx context.Context, ev Event, p2pPort int) {
	switch ev.Kind {
	case EventMyIP:
		c.selfIP = ev.IP
		if c.log != nil {
			c.log.Infof("rendezvous: observed self IP %s", ev.IP)
		}

	case EventPeer, EventNewPeer:
		if !c.isFriend(ev.PKHex) {
			return
		}
		selfKey := session.DialKey(c.selfPKHex, c.selfIP, p2pPort)
		candidateKey := session.DialKey(ev.PKHex, ev.IP, ev.Port)
		if !session.ShouldDial(selfKey, candidateKey) {
			if c.log != nil {
				c.log.Infof("rendezvous: ceding dial to %s (tie-break)", ev.PKHex)
			}
			return
		}
		attempt := uuid.New().String()
		if c.log != nil {
			c.log.Infof("rendezvous: dial attempt %s to friend %s at %s:%d", attempt, ev.PKHex, ev.IP, ev.Port)
		}
		if c.dial != nil {
			c.dial(ctx, ev.PKHex, ev.IP, ev.Port)
		}

	case EventDelPeer:
		// Informational only: actual teardown is driven by the P2P
		// socket closing, not by this event.
		if c.log != nil {
			c.log.Infof("rendezvous: peer %s left", ev.PKHex)
		}
	}
}

// Close closes the underlying bootstrap connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
