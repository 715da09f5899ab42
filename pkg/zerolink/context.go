// Package zerolink aggregates every component (identity, friends,
// store, peer sessions, rendezvous client, anti-entropy sync, and
// logging) behind one owned Context, replacing the reference
// implementation's global mutable state. A Context is constructed
// once per running client and is safe for concurrent use by its
// exported methods; the UI thread calls them directly and never
// touches the network or database on its own.
package zerolink

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/pion/logging"
	"golang.org/x/sync/errgroup"

	"github.com/zerolink/zerolink/pkg/identity"
	"github.com/zerolink/zerolink/pkg/logsink"
	"github.com/zerolink/zerolink/pkg/rendezvous"
	"github.com/zerolink/zerolink/pkg/session"
	"github.com/zerolink/zerolink/pkg/store"
	"github.com/zerolink/zerolink/pkg/syncer"
)

// Config describes where a Context reads its persisted state from and
// how it reaches the network.
type Config struct {
	IdentityPath string // long-term keypair file
	FriendsPath  string // friend table file
	DBPath       string // sqlite message store path

	BootstrapAddr string // "host:port" of the rendezvous server
	P2PListenAddr string // local P2P listen address; "" / ":0" for OS-assigned

	LogCapacity  int          // log queue capacity; <=0 uses logsink.DefaultCapacity
	LogThreshold logsink.Level // minimum level retained in the log queue
}

// Context owns every long-lived collaborator for one running client.
type Context struct {
	cfg Config

	identity *identity.Identity
	friends  *identity.Registry
	store    *store.Store
	sessions *session.Registry
	syncer   *syncer.Syncer

	sink          *logsink.Sink
	loggerFactory *logsink.Factory

	listener   net.Listener
	bootstrapC net.Conn
	rendClient *rendezvous.Client

	g      *errgroup.Group
	cancel context.CancelFunc
}

// New loads persisted state (creating an identity on first run) and
// wires every component together. It does not touch the network; call
// Start to begin listening and connecting to the rendezvous server.
func New(cfg Config) (*Context, error) {
	sink := logsink.NewSink(cfg.LogCapacity)
	factory := logsink.NewFactory(sink, cfg.LogThreshold)

	id, err := identity.LoadOrCreate(cfg.IdentityPath)
	if err != nil {
		return nil, fmt.Errorf("zerolink: load identity: %w", err)
	}

	friends, err := identity.LoadRegistry(cfg.FriendsPath)
	if err != nil {
		return nil, fmt.Errorf("zerolink: load friends: %w", err)
	}

	st, err := store.Open(cfg.DBPath, func() int64 { return time.Now().Unix() })
	if err != nil {
		return nil, fmt.Errorf("zerolink: open store: %w", err)
	}

	// syncer is constructed after the registry because it needs a
	// reference to it, and the registry needs syncer.OnPeerReady as its
	// ReadyFunc; the indirection through a captured pointer breaks the
	// cycle without either package importing the other's constructor.
	var sy *syncer.Syncer
	sessions := session.NewRegistry(func(s *session.Session) {
		if sy != nil {
			sy.OnPeerReady(s)
		}
	})
	sy = syncer.New(st, sessions, id.PublicKeyHex(), factory.NewLogger("syncer"))

	return &Context{
		cfg:           cfg,
		identity:      id,
		friends:       friends,
		store:         st,
		sessions:      sessions,
		syncer:        sy,
		sink:          sink,
		loggerFactory: factory,
	}, nil
}

// Log returns the queue the UI reads log lines from.
func (c *Context) Log() *logsink.Sink {
	return c.sink
}

// PublicKeyHex returns the local node's own public key, hex encoded.
func (c *Context) PublicKeyHex() string {
	return c.identity.PublicKeyHex()
}

// ListenAddr returns the bound P2P listen address. Valid only after Start.
func (c *Context) ListenAddr() net.Addr {
	return c.listener.Addr()
}

// PeerCount returns the number of peer sessions currently in the registry.
func (c *Context) PeerCount() int {
	return c.sessions.Len()
}

// Start binds the P2P listener, begins accepting friend connections,
// and connects to the bootstrap server. It returns once both are
// underway; network errors afterward surface through the log queue,
// not as a return value, per the UI-never-blocks-on-network model.
func (c *Context) Start(ctx context.Context) error {
	listenAddr := c.cfg.P2PListenAddr
	if listenAddr == "" {
		listenAddr = ":0"
	}
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("zerolink: listen %s: %w", listenAddr, err)
	}
	c.listener = ln
	p2pPort := ln.Addr().(*net.TCPAddr).Port

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	g, runCtx := errgroup.WithContext(runCtx)
	c.g = g

	log := c.loggerFactory.NewLogger("zerolink")

	g.Go(func() error {
		return c.acceptLoop(runCtx, log)
	})

	conn, err := net.Dial("tcp", c.cfg.BootstrapAddr)
	if err != nil {
		ln.Close()
		return fmt.Errorf("zerolink: dial bootstrap %s: %w", c.cfg.BootstrapAddr, err)
	}
	c.bootstrapC = conn

	c.rendClient = rendezvous.NewClient(conn, c.identity.PublicKeyHex(), c.friends.IsFriend, c.dialFriend, c.loggerFactory.NewLogger("rendezvous"))
	g.Go(func() error {
		return c.rendClient.Run(runCtx, p2pPort)
	})

	return nil
}

func (c *Context) acceptLoop(ctx context.Context, log logging.LeveledLogger) error {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			return err
		}
		go func() {
			priv := c.identity.PrivateKey
			s, err := session.Accept(conn, priv, c.friends.IsFriend, c.syncer, c.loggerFactory.NewLogger("session"))
			if err != nil {
				log.Warnf("zerolink: rejecting inbound connection: %v", err)
				return
			}
			if err := c.sessions.Insert(s); err != nil {
				log.Warnf("zerolink: dropping session for %s: %v", s.RemotePKHex(), err)
				s.Close()
				return
			}
			log.Infof("zerolink: %s connected (inbound)", s.RemotePKHex())
			s.Run(ctx)
		}()
	}
}

// dialFriend is passed to the rendezvous client as its DialFunc: it
// is invoked when the tie-break elects this side to dial a friend.
func (c *Context) dialFriend(ctx context.Context, pkHex, ip string, port int) {
	log := c.loggerFactory.NewLogger("session")

	remotePub, err := identity.DecodePubKeyHex(pkHex)
	if err != nil {
		log.Warnf("zerolink: bad pubkey in dial target %s: %v", pkHex, err)
		return
	}

	addr := net.JoinHostPort(ip, strconv.Itoa(port))
	s, err := session.Dial(ctx, addr, remotePub, c.identity.PrivateKey, c.identity, c.syncer, log)
	if err != nil {
		log.Warnf("zerolink: dial %s (%s) failed: %v", pkHex, addr, err)
		return
	}
	if err := c.sessions.Insert(s); err != nil {
		log.Warnf("zerolink: dropping dialed session for %s: %v", pkHex, err)
		s.Close()
		return
	}
	log.Infof("zerolink: %s connected (outbound)", pkHex)
	go s.Run(ctx)
}

// SendChat sends content to friendPKHex, per pkg/syncer.SendChat.
func (c *Context) SendChat(friendPKHex, content string) error {
	if !c.friends.IsFriend(friendPKHex) {
		return identity.ErrUnknownFriend
	}
	return c.syncer.SendChat(friendPKHex, content)
}

// SyncNow requests anti-entropy sync against friendPKHex if online.
func (c *Context) SyncNow(friendPKHex string) error {
	return c.syncer.SyncNow(friendPKHex)
}

// LoadHistory returns the most recent messages exchanged with friendPKHex.
func (c *Context) LoadHistory(friendPKHex string) ([]store.HistoryEntry, error) {
	return c.store.LoadHistory(friendPKHex)
}

// AddFriend adds pkHex under nickname to the friend table. A pkHex that
// does not decode to a public key yields identity.ErrInvalidPubKeyLength.
func (c *Context) AddFriend(pkHex, nickname string) error {
	if _, err := identity.DecodePubKeyHex(pkHex); err != nil {
		return err
	}
	return c.friends.AddFriend(pkHex, nickname)
}

// DeleteFriendByName removes the first friend entry with the given nickname.
func (c *Context) DeleteFriendByName(nickname string) error {
	return c.friends.DeleteFriendByName(nickname)
}

// Shutdown closes every network resource and the database, in the
// order sockets-then-store so no late frame races a closed database.
func (c *Context) Shutdown(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	if c.listener != nil {
		c.listener.Close()
	}
	if c.bootstrapC != nil {
		c.bootstrapC.Close()
	}
	if c.sessions != nil {
		c.sessions.CloseAll()
	}
	if c.g != nil {
		c.g.Wait()
	}
	return c.store.Close()
}
