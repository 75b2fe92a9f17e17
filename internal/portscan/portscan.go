// Package portscan finds a free TCP port by probing a bounded range.
package portscan

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

// ErrNoFreePort reports that every candidate port in the scanned range is
// already bound.
var ErrNoFreePort = errors.New("no free port")

// Scan returns the first port in the half-open range [start, end) that
// accepts a loopback bind. Each probe binds and immediately releases a real
// listener, so a returned port is free at probe time only: another process
// may still claim it before the caller binds.
func Scan(start, end int) (int, error) {
	for port := start; port < end; port++ {
		l, err := net.Listen("tcp", net.JoinHostPort("localhost", strconv.Itoa(port)))
		if err != nil {
			continue
		}
		_ = l.Close()
		return port, nil
	}
	return 0, fmt.Errorf("%w in range %d-%d", ErrNoFreePort, start, end)
}
