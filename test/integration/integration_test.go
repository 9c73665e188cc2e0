//go:build integration && linux

package integration

import (
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/behrlich/go-uring"
)

// requireIOUring skips the test when the running kernel has no io_uring
// support (pre-5.1, or disabled via sysctl).
func requireIOUring(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		return
	}
	var errno syscall.Errno
	if errors.As(err, &errno) && (errno == syscall.ENOSYS || errno == syscall.EPERM) {
		t.Skipf("io_uring unavailable: %v", err)
	}
	t.Fatalf("ring setup failed: %v", err)
}

func TestKernelNopRoundTrip(t *testing.T) {
	ring, err := uring.New(uring.Config{Entries: 8})
	requireIOUring(t, err)
	defer ring.Close()

	const n = 8
	for tag := uint64(1); tag <= n; tag++ {
		sqe := ring.GetSQE()
		if sqe == nil {
			t.Fatalf("no free slot at tag %d", tag)
		}
		sqe.PrepNop(tag)
	}
	submitted, err := ring.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted != n {
		t.Fatalf("submitted %d, want %d", submitted, n)
	}

	seen := make(map[uint64]bool, n)
	deadline := time.Now().Add(5 * time.Second)
	for len(seen) < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out with %d/%d completions", len(seen), n)
		}
		cqe, err := ring.WaitCQE()
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
		if cqe.Err() != nil {
			t.Fatalf("tag %d failed: %v", cqe.UserData, cqe.Err())
		}
		if seen[cqe.UserData] {
			t.Fatalf("duplicate completion for tag %d", cqe.UserData)
		}
		seen[cqe.UserData] = true
	}

	snap := ring.Metrics().Snapshot()
	if snap.Submitted != n || snap.Completed != n {
		t.Fatalf("metrics mismatch: %s", snap)
	}
}

func TestKernelBatchReuse(t *testing.T) {
	ring, err := uring.New(uring.Config{Entries: 4})
	requireIOUring(t, err)
	defer ring.Close()

	// Push well past the ring capacity to exercise slot reuse.
	tag := uint64(1)
	for round := 0; round < 10; round++ {
		filled := uint32(0)
		for {
			sqe := ring.GetSQE()
			if sqe == nil {
				break
			}
			sqe.PrepNop(tag)
			tag++
			filled++
		}
		if _, err := ring.Submit(); err != nil {
			t.Fatalf("submit round %d: %v", round, err)
		}
		for done := uint32(0); done < filled; done++ {
			if _, err := ring.WaitCQE(); err != nil {
				t.Fatalf("wait round %d: %v", round, err)
			}
		}
	}
}
