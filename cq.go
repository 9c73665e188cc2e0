package uring

import "sync/atomic"

// completionQueue is a read-only view over the kernel-written completion
// array. The kernel owns tail; we own head. Advancing head with a release
// store tells the kernel how much ring space it may reuse.
type completionQueue struct {
	khead    *uint32 // consumer index, ours to advance
	ktail    *uint32 // kernel producer index
	mask     uint32
	entries  uint32
	overflow *uint32 // kernel count of completions dropped on a full ring
	cqes     []CQE
}

func newCompletionQueue(rr *ringRegions, p *Params) completionQueue {
	base := &rr.cqRing
	q := completionQueue{
		khead:    base.uint32At(p.CQOff.Head),
		ktail:    base.uint32At(p.CQOff.Tail),
		mask:     *base.uint32At(p.CQOff.RingMask),
		entries:  *base.uint32At(p.CQOff.RingEntries),
		overflow: base.uint32At(p.CQOff.Overflow),
	}
	q.cqes = rr.cqRing.cqeSliceAt(p.CQOff.CQEs, q.entries)
	return q
}

// poll copies out the oldest unread completion, if one is available. The
// acquire load of the kernel tail orders the slot read after the kernel's
// publish; the release store of head hands the slot back to the kernel.
func (q *completionQueue) poll() (CQE, bool) {
	head := atomic.LoadUint32(q.khead)
	if head == atomic.LoadUint32(q.ktail) {
		return CQE{}, false
	}
	cqe := q.cqes[head&q.mask]
	atomic.StoreUint32(q.khead, head+1)
	return cqe, true
}

// overflowCount reports the kernel-maintained dropped-completions counter
// verbatim. Lost completions are never reconstructed here.
func (q *completionQueue) overflowCount() uint32 {
	return atomic.LoadUint32(q.overflow)
}
