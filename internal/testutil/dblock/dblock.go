// Package dblock serializes integration tests that share one Postgres
// database across test binaries.
package dblock

import (
	"net"
	"time"
)

const lockAddr = "127.0.0.1:45432"

// Acquire blocks until no other test binary holds the lock and returns its
// release function.
func Acquire() func() {
	for {
		ln, err := net.Listen("tcp", lockAddr)
		if err == nil {
			return func() { ln.Close() }
		}
		time.Sleep(50 * time.Millisecond)
	}
}
