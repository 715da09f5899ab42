package rendezvous

import "errors"

// Rendezvous client errors.
var (
	// ErrMalformedLine is returned by the line parser for input that
	// does not match any known verb.
	ErrMalformedLine = errors.New("rendezvous: malformed line")

	// ErrClosed names the closed-client condition. No Client method
	// returns it: after Close, Run fails with the underlying
	// connection's error instead.
	ErrClosed = errors.New("rendezvous: client closed")
)
