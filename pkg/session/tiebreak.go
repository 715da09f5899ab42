package session

import "fmt"

// DialKey forms the lexicographic tie-break key "pk_hex:ip:port" for
// one side of a candidate connection.
func DialKey(pkHex, ip string, port int) string {
	return fmt.Sprintf("%s:%s:%d", pkHex, ip, port)
}

// ShouldDial is the deterministic tie-breaker for simultaneous
// connect: both peers learn of each other via the rendezvous and may
// try to dial at once. Only the side whose key sorts smaller
// initiates; the other waits for the incoming connection. For any
// pair of distinct keys, exactly one of ShouldDial(self, other) and
// ShouldDial(other, self) returns true.
func ShouldDial(selfKey, candidateKey string) bool {
	return selfKey < candidateKey
}
