package orchestrator

import (
	"fmt"
	"math/rand/v2"
	"net"
	"strconv"
)

// Dynamic port range (RFC 6335).
const (
	MinEphemeralPort = 49152
	MaxEphemeralPort = 65535

	portAttempts = 64
)

// portFree reports whether host:port can be bound right now.
func portFree(host string, port int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

// pickPort draws random ports from the dynamic range until free accepts one
// that is not in exclude.
func pickPort(free func(int) bool, exclude ...int) (int, error) {
	span := MaxEphemeralPort - MinEphemeralPort + 1
	for i := 0; i < portAttempts; i++ {
		p := MinEphemeralPort + rand.IntN(span)
		if contains(exclude, p) {
			continue
		}
		if free(p) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("no free port in %d-%d after %d attempts", MinEphemeralPort, MaxEphemeralPort, portAttempts)
}

func contains(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}
