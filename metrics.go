package uring

import (
	"fmt"
	"sync/atomic"
)

// Metrics tracks operational statistics for one ring. All counters are
// atomic so a separate goroutine may snapshot them while the ring is in
// use.
type Metrics struct {
	Submitted   atomic.Uint64 // Entries published and accepted by enter
	Completed   atomic.Uint64 // Completions handed to the caller
	EnterCalls  atomic.Uint64 // Kernel entry calls issued
	EnterErrors atomic.Uint64 // Kernel entry calls that failed
	Retries     atomic.Uint64 // Backlog retry attempts after a failed enter
	SQFull      atomic.Uint64 // GetSQE calls rejected for lack of capacity
	Waits       atomic.Uint64 // Blocking waits for a completion
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Submitted   uint64
	Completed   uint64
	InFlight    uint64 // Submitted minus Completed at snapshot time
	EnterCalls  uint64
	EnterErrors uint64
	Retries     uint64
	SQFull      uint64
	Waits       uint64
}

// Snapshot returns a copy of all counters. Individual counters are read
// atomically; the set as a whole is not a transaction.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Submitted:   m.Submitted.Load(),
		Completed:   m.Completed.Load(),
		EnterCalls:  m.EnterCalls.Load(),
		EnterErrors: m.EnterErrors.Load(),
		Retries:     m.Retries.Load(),
		SQFull:      m.SQFull.Load(),
		Waits:       m.Waits.Load(),
	}
	if s.Submitted > s.Completed {
		s.InFlight = s.Submitted - s.Completed
	}
	return s
}

// Reset zeroes all counters.
func (m *Metrics) Reset() {
	m.Submitted.Store(0)
	m.Completed.Store(0)
	m.EnterCalls.Store(0)
	m.EnterErrors.Store(0)
	m.Retries.Store(0)
	m.SQFull.Store(0)
	m.Waits.Store(0)
}

// String returns a human-readable summary of the snapshot.
func (s Snapshot) String() string {
	return fmt.Sprintf(
		"submitted=%d completed=%d in_flight=%d enter=%d enter_errors=%d retries=%d sq_full=%d waits=%d",
		s.Submitted, s.Completed, s.InFlight,
		s.EnterCalls, s.EnterErrors, s.Retries, s.SQFull, s.Waits)
}
