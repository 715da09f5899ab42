package rendezvous

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"
)

type dialRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (d *dialRecorder) record(_ context.Context, pkHex, ip string, port int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, fmt.Sprintf("%s@%s:%d", pkHex, ip, port))
}

func (d *dialRecorder) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

func TestClientSendsRegistrationLineFirst(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	c := NewClient(client, "selfpk", func(string) bool { return true }, nil, nil)
	go c.Run(context.Background(), 4001)

	reader := bufio.NewReader(server)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatal(err)
	}
	if line != "selfpk 4001\n" {
		t.Errorf("registration line = %q, want %q", line, "selfpk 4001\n")
	}
}

func TestClientDialsFriendWhenElected(t *testing.T) {
	server, client := net.Pipe()

	recorder := &dialRecorder{}
	// self "aaaa"'s dial key sorts smaller than "zzzz", so self elects to dial.
	c := NewClient(client, "aaaa", func(string) bool { return true }, recorder.record, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx, 4001)

	reader := bufio.NewReader(server)
	reader.ReadString('\n') // registration line

	server.Write([]byte("MY_IP 10.0.0.1\n"))
	server.Write([]byte("PEER zzzz 10.0.0.2 4002\n"))

	deadline := time.After(2 * time.Second)
	for recorder.len() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for dial")
		case <-time.After(10 * time.Millisecond):
		}
	}
	server.Close()
}

func TestClientCedesDialWhenNotElected(t *testing.T) {
	server, client := net.Pipe()

	recorder := &dialRecorder{}
	// selfpk "zzzz" sorts larger than candidate "aaaa", so self must not dial.
	c := NewClient(client, "zzzz", func(string) bool { return true }, recorder.record, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx, 4001)

	reader := bufio.NewReader(server)
	reader.ReadString('\n')

	server.Write([]byte("MY_IP 10.0.0.1\n"))
	server.Write([]byte("PEER aaaa 10.0.0.2 4002\n"))
	server.Write([]byte("MY_IP 10.0.0.1\n")) // flush marker: ensures prior line processed

	time.Sleep(50 * time.Millisecond)
	if recorder.len() != 0 {
		t.Fatalf("dial calls = %d, want 0", recorder.len())
	}
	server.Close()
}

func TestClientIgnoresNonFriendPeers(t *testing.T) {
	server, client := net.Pipe()

	recorder := &dialRecorder{}
	c := NewClient(client, "aaaa", func(string) bool { return false }, recorder.record, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx, 4001)

	reader := bufio.NewReader(server)
	reader.ReadString('\n')

	server.Write([]byte("PEER zzzz 10.0.0.2 4002\n"))
	time.Sleep(50 * time.Millisecond)
	if recorder.len() != 0 {
		t.Fatalf("dial calls = %d, want 0 for non-friend", recorder.len())
	}
	server.Close()
}

func TestClientDropsMalformedLinesAndContinues(t *testing.T) {
	server, client := net.Pipe()

	recorder := &dialRecorder{}
	c := NewClient(client, "aaaa", func(string) bool { return true }, recorder.record, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx, 4001)

	reader := bufio.NewReader(server)
	reader.ReadString('\n')

	server.Write([]byte("GARBAGE LINE\n"))
	server.Write([]byte("PEER zzzz 10.0.0.2 4002\n"))

	deadline := time.After(2 * time.Second)
	for recorder.len() == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out: malformed line should not have stopped the read loop")
		case <-time.After(10 * time.Millisecond):
		}
	}
	server.Close()
}
