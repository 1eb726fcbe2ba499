// Package dblock serialises test packages that share one ledger database.
package dblock

import (
	"net"
	"os"
	"testing"
	"time"
)

const defaultLockAddr = "127.0.0.1:45432"

// Acquire blocks until this process holds the shared database lock and
// releases it when tb finishes. TREASURY_TEST_DB_LOCK overrides the lock
// address for parallel CI jobs with separate databases.
func Acquire(tb testing.TB) {
	tb.Helper()
	addr := os.Getenv("TREASURY_TEST_DB_LOCK")
	if addr == "" {
		addr = defaultLockAddr
	}
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			tb.Cleanup(func() { ln.Close() })
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
}
