// zerolink-server is the rendezvous/bootstrap server: it introduces
// peers to each other but never sees a message or a key.
//
// Usage:
//
//	zerolink-server <port>
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/zerolink/zerolink/pkg/bootstrap"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <port>\n", os.Args[0])
		os.Exit(1)
	}
	port, err := strconv.Atoi(os.Args[1])
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(os.Stderr, "%s: invalid port %q\n", os.Args[0], os.Args[1])
		os.Exit(1)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf("0.0.0.0:%d", port))
	if err != nil {
		log.Fatalf("zerolink-server: listen: %v", err)
	}
	log.Printf("zerolink-server: listening on %s", ln.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Printf("zerolink-server: shutting down")
		srvClose(ln)
	}()

	srv := bootstrap.NewServer(ln, nil)
	if err := srv.Serve(); err != nil && !errors.Is(err, net.ErrClosed) {
		log.Fatalf("zerolink-server: serve: %v", err)
	}
}

func srvClose(ln net.Listener) {
	if err := ln.Close(); err != nil {
		log.Printf("zerolink-server: close listener: %v", err)
	}
}
