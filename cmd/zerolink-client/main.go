// zerolink-client is the P2P chat client: it registers with a
// bootstrap server for peer introductions, then talks directly and
// end-to-end-encrypted to its friends.
//
// Usage:
//
//	zerolink-client <bootstrap_ip> <bootstrap_port> [p2p_port]
//
// If p2p_port is omitted or 0, the OS assigns a free port.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/zerolink/zerolink/pkg/logsink"
	"github.com/zerolink/zerolink/pkg/zerolink"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if len(os.Args) < 3 || len(os.Args) > 4 {
		fmt.Fprintf(os.Stderr, "usage: %s <bootstrap_ip> <bootstrap_port> [p2p_port]\n", os.Args[0])
		os.Exit(1)
	}

	bootstrapIP := os.Args[1]
	bootstrapPort, err := strconv.Atoi(os.Args[2])
	if err != nil || bootstrapPort <= 0 || bootstrapPort > 65535 {
		fmt.Fprintf(os.Stderr, "%s: invalid bootstrap port %q\n", os.Args[0], os.Args[2])
		os.Exit(1)
	}

	p2pListenAddr := ":0"
	if len(os.Args) == 4 {
		p2pPort, err := strconv.Atoi(os.Args[3])
		if err != nil || p2pPort < 0 || p2pPort > 65535 {
			fmt.Fprintf(os.Stderr, "%s: invalid p2p port %q\n", os.Args[0], os.Args[3])
			os.Exit(1)
		}
		if p2pPort != 0 {
			p2pListenAddr = fmt.Sprintf(":%d", p2pPort)
		}
	}

	cfg := zerolink.Config{
		IdentityPath:  "identity.dat",
		FriendsPath:   "friends.dat",
		DBPath:        "chat.db",
		BootstrapAddr: net.JoinHostPort(bootstrapIP, strconv.Itoa(bootstrapPort)),
		P2PListenAddr: p2pListenAddr,
		LogCapacity:   logsink.DefaultCapacity,
		LogThreshold:  logsink.LevelInfo,
	}

	c, err := zerolink.New(cfg)
	if err != nil {
		log.Fatalf("zerolink-client: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx); err != nil {
		log.Fatalf("zerolink-client: start: %v", err)
	}
	log.Printf("zerolink-client: %s online", c.PublicKeyHex())

	go drainLog(ctx, c)

	<-ctx.Done()
	log.Printf("zerolink-client: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := c.Shutdown(shutdownCtx); err != nil {
		log.Printf("zerolink-client: shutdown: %v", err)
	}
}

// drainLog forwards the Context's log queue to stderr. A full UI would
// read Log() itself; this keeps the bare binary observable.
func drainLog(ctx context.Context, c *zerolink.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.Log().Events():
			log.Println(ev.String())
		}
	}
}
