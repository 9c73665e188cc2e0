package uring

import "sync/atomic"

// submissionQueue stages request slots locally and publishes them to the
// kernel through the indirection array. The kernel owns head; we own tail.
//
// localHead/localTail track slots that are filled but not yet published.
// Publishing writes each slot's index into the kernel-visible indirection
// array and then advances the shared tail with a release-ordered store, so
// the kernel can never read a half-written index entry.
type submissionQueue struct {
	khead   *uint32 // kernel consumer index, advanced as entries are taken
	ktail   *uint32 // shared producer index, ours to advance
	mask    uint32
	entries uint32
	kflags  *uint32 // kernel-written runtime flags (SQNeedWakeup)
	dropped *uint32 // kernel count of invalid indirection entries
	array   []uint32
	sqes    []SQE

	localHead uint32
	localTail uint32

	// pending is set when a tail advance was published but the entry call
	// for it failed. The backlog is retried by count before any new work
	// is accepted; sticky until a retry succeeds.
	pending      bool
	pendingCount uint32
}

func newSubmissionQueue(rr *ringRegions, p *Params) submissionQueue {
	base := &rr.sqRing
	q := submissionQueue{
		khead:   base.uint32At(p.SQOff.Head),
		ktail:   base.uint32At(p.SQOff.Tail),
		mask:    *base.uint32At(p.SQOff.RingMask),
		entries: *base.uint32At(p.SQOff.RingEntries),
		kflags:  base.uint32At(p.SQOff.Flags),
		dropped: base.uint32At(p.SQOff.Dropped),
	}
	q.array = base.uint32SliceAt(p.SQOff.Array, q.entries)
	q.sqes = rr.sqes.sqeSliceAt(0, q.entries)
	return q
}

// acquire hands out the next free slot for the caller to fill, or nil when
// all slots are filled-but-unpublished. The slot is private until the next
// flush publishes it; once published it is immutable.
func (q *submissionQueue) acquire() *SQE {
	if q.localTail-q.localHead >= q.entries {
		return nil
	}
	sqe := &q.sqes[q.localTail&q.mask]
	*sqe = SQE{}
	q.localTail++
	return sqe
}

// flush publishes every filled-but-unpublished slot: indirection writes
// first, then a single release-ordered tail store covering all of them.
// Returns the number of newly published entries.
func (q *submissionQueue) flush() uint32 {
	// We own the tail; nobody else advances it, so a plain read of our
	// last stored value would do. The atomic load keeps the access to the
	// shared word uniform.
	tail := atomic.LoadUint32(q.ktail)
	next := tail
	for q.localHead < q.localTail {
		q.array[next&q.mask] = q.localHead & q.mask
		q.localHead++
		next++
	}
	n := next - tail
	if n != 0 {
		// Publish only after every indirection write above is done.
		atomic.StoreUint32(q.ktail, next)
	}
	return n
}

// flags returns the kernel-written SQ runtime flags word.
func (q *submissionQueue) flags() uint32 {
	return atomic.LoadUint32(q.kflags)
}

// droppedCount returns the kernel count of invalid indirection entries.
func (q *submissionQueue) droppedCount() uint32 {
	return atomic.LoadUint32(q.dropped)
}
