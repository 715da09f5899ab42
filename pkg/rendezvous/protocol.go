package rendezvous

import (
	"fmt"
	"strconv"
	"strings"
)

// EventKind identifies which bootstrap verb an Event carries.
type EventKind int

const (
	// EventMyIP carries the client's own externally-observed address.
	EventMyIP EventKind = iota
	// EventPeer announces a peer already registered at join time.
	EventPeer
	// EventNewPeer announces a peer that joined after us.
	EventNewPeer
	// EventDelPeer announces a peer that left.
	EventDelPeer
)

func (k EventKind) String() string {
	switch k {
	case EventMyIP:
		return "MY_IP"
	case EventPeer:
		return "PEER"
	case EventNewPeer:
		return "NEW_PEER"
	case EventDelPeer:
		return "DEL_PEER"
	default:
		return "UNKNOWN"
	}
}

// Event is one parsed line from the bootstrap server.
type Event struct {
	Kind  EventKind
	IP    string // set for MyIP, Peer, NewPeer
	PKHex string // set for Peer, NewPeer, DelPeer
	Port  int    // set for Peer, NewPeer
}

// ParseLine parses one \n-stripped line from the bootstrap server into
// an Event. Unrecognized verbs or malformed fields return
// ErrMalformedLine; the caller should drop the line and keep reading.
func ParseLine(line string) (Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Event{}, ErrMalformedLine
	}

	switch fields[0] {
	case "MY_IP":
		if len(fields) != 2 {
			return Event{}, ErrMalformedLine
		}
		return Event{Kind: EventMyIP, IP: fields[1]}, nil

	case "PEER", "NEW_PEER":
		if len(fields) != 4 {
			return Event{}, ErrMalformedLine
		}
		port, err := strconv.Atoi(fields[3])
		if err != nil {
			return Event{}, ErrMalformedLine
		}
		kind := EventPeer
		if fields[0] == "NEW_PEER" {
			kind = EventNewPeer
		}
		return Event{Kind: kind, PKHex: fields[1], IP: fields[2], Port: port}, nil

	case "DEL_PEER":
		if len(fields) != 2 {
			return Event{}, ErrMalformedLine
		}
		return Event{Kind: EventDelPeer, PKHex: fields[1]}, nil

	default:
		return Event{}, ErrMalformedLine
	}
}

// RegistrationLine formats the client's one outbound registration line,
// sent once the local P2P listener is bound.
func RegistrationLine(pkHex string, p2pPort int) string {
	return fmt.Sprintf("%s %d\n", pkHex, p2pPort)
}
