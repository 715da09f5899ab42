// Package vclock implements vector clocks over a node-keyed counter map.
//
// A Clock maps a node identifier (a peer's pk_hex) to a monotonically
// non-decreasing counter. Absent keys read as zero. Clocks are
// exchanged as JSON objects on the wire and stored the same way, so
// the representation here is the JSON-native map rather than a
// specialised struct.
package vclock

import (
	"encoding/json"
	"sort"
)

// Clock is a vector clock: node id (pk_hex) -> counter.
type Clock map[string]uint64

// New returns an empty clock.
func New() Clock {
	return Clock{}
}

// Get returns the counter for nodeID, or 0 if absent.
func (c Clock) Get(nodeID string) uint64 {
	if c == nil {
		return 0
	}
	return c[nodeID]
}

// Clone returns a deep copy of c.
func (c Clock) Clone() Clock {
	out := make(Clock, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Increment returns a new clock equal to c with nodeID's counter
// incremented by one (inserted at 1 if absent). c is not mutated.
func Increment(c Clock, nodeID string) Clock {
	out := c.Clone()
	out[nodeID] = out[nodeID] + 1
	return out
}

// Merge returns a new clock that is the pointwise maximum of local and
// remote: for every key in either clock, the result holds
// max(local[k], remote[k]). Merge is commutative, associative, and
// idempotent.
func Merge(local, remote Clock) Clock {
	out := local.Clone()
	for k, v := range remote {
		if cur := out[k]; v > cur {
			out[k] = v
		}
	}
	return out
}

// Dominates reports whether a dominates b: a[k] >= b[k] for every key
// k present in b. This is the full pointwise dominance check.
func Dominates(a, b Clock) bool {
	for k, v := range b {
		if a.Get(k) < v {
			return false
		}
	}
	return true
}

// MissingAt reports whether a message stamped with vector clock mvc,
// authored by senderPK, is missing at a peer whose vector clock is
// rvc. This is a sender-axis dominance check: it only compares the
// sender's own counter, not the full clock. It is intentionally
// weaker than full happens-before and trades completeness against
// false positives — a peer may resend a message the remote already
// has, but will never wrongly decide a message is not missing.
// Re-applying the idempotent uid insert on the receiving end makes
// the extra sends harmless.
func MissingAt(mvc Clock, senderPK string, rvc Clock) bool {
	return mvc.Get(senderPK) > rvc.Get(senderPK)
}

// Keys returns the clock's node ids in sorted order, for deterministic
// iteration (logging, tests).
func (c Clock) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Marshal encodes the clock as a JSON object.
func (c Clock) Marshal() ([]byte, error) {
	if c == nil {
		return json.Marshal(Clock{})
	}
	return json.Marshal(c)
}

// Parse decodes a JSON object into a Clock. An empty or null input
// yields an empty clock rather than an error, matching the spec's
// "missing/empty vector_clock must not crash the receiver" edge case.
func Parse(data []byte) (Clock, error) {
	if len(data) == 0 {
		return New(), nil
	}
	var c Clock
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	if c == nil {
		c = New()
	}
	return c, nil
}
