package uring

import (
	"fmt"
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/gammazero/deque"
)

// SimKernel is a deterministic, in-process stand-in for the kernel side of
// the ring protocol. It implements Gateway over plain byte slices, consumes
// published indirection entries in FIFO order, produces scriptable
// completions, and tracks every syscall for verification. Useful for unit
// testing ring users without requiring kernel support.
//
// Like the real counterparty it synchronizes with the ring purely through
// the shared head/tail words of the backing memory.
type SimKernel struct {
	mu sync.Mutex

	fd         int
	setupCalls int
	params     Params

	sqEntries uint32
	cqEntries uint32
	sqMask    uint32
	cqMask    uint32

	sqRing []byte
	sqes   []byte
	cqRing []byte

	// syscall bookkeeping
	mmapOrder   []int64
	unmapOrder  []int64
	mappedBase  map[*byte]int64
	enterCalls  []SimEnterCall
	registerOps []SimRegisterCall
	closedFd    bool

	// failure injection
	setupErr  error
	mmapErrs  map[int64]error
	enterErrs deque.Deque[syscall.Errno]

	// completion production
	inflight  deque.Deque[SQE]
	results   map[uint64]int32
	deferMode bool

	consumedTags []uint64
}

// SimEnterCall records one enter invocation.
type SimEnterCall struct {
	ToSubmit    uint32
	MinComplete uint32
	Flags       EnterFlags
}

// SimRegisterCall records one register invocation.
type SimRegisterCall struct {
	Op     RegisterOp
	NrArgs uint32
}

// NewSimKernel creates an empty simulated kernel. Pass it as Config.Gateway.
func NewSimKernel() *SimKernel {
	return &SimKernel{
		fd:         7,
		mappedBase: make(map[*byte]int64),
		mmapErrs:   make(map[int64]error),
		results:    make(map[uint64]int32),
	}
}

// Simulated ring memory layout. Arbitrary but fixed; the ring only ever
// sees it through the offset tables returned by Setup.
const (
	simOffHead    = 0
	simOffTail    = 4
	simOffMask    = 8
	simOffEntries = 12
	simOffFlags   = 16 // sq: runtime flags; cq: unused
	simOffDropped = 20 // sq only
	simOffArray   = 24 // sq: indirection array; cq: entry array
)

func simWord(buf []byte, off uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&buf[off]))
}

func nextPowerOfTwo(n uint32) uint32 {
	v := uint32(1)
	for v < n {
		v <<= 1
	}
	return v
}

// FailSetup makes the next Setup call fail with err.
func (k *SimKernel) FailSetup(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.setupErr = err
}

// FailMmap makes the mapping at the given magic offset fail with err.
func (k *SimKernel) FailMmap(offset int64, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.mmapErrs[offset] = err
}

// FailEnter queues one enter failure; queued failures are consumed in
// order before any entries are. A failed enter consumes nothing.
func (k *SimKernel) FailEnter(errno syscall.Errno) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.enterErrs.PushBack(errno)
}

// SetResult scripts the completion result for the given correlation tag.
// Unscripted tags complete with 0.
func (k *SimKernel) SetResult(tag uint64, res int32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.results[tag] = res
}

// DeferCompletions stops completions from being produced inside Enter;
// consumed submissions queue up until CompleteNext is called. This lets a
// test hold completions back to exercise waiting and overflow paths.
func (k *SimKernel) DeferCompletions(v bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.deferMode = v
}

// Setup implements Gateway.
func (k *SimKernel) Setup(entries uint32, params *Params) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.setupCalls++
	if k.setupErr != nil {
		err := k.setupErr
		k.setupErr = nil
		return -1, err
	}

	k.sqEntries = nextPowerOfTwo(entries)
	k.cqEntries = k.sqEntries * 2
	k.sqMask = k.sqEntries - 1
	k.cqMask = k.cqEntries - 1

	k.sqRing = make([]byte, simOffArray+4*k.sqEntries)
	k.sqes = make([]byte, uint32(unsafe.Sizeof(SQE{}))*k.sqEntries)
	k.cqRing = make([]byte, simOffArray+uint32(unsafe.Sizeof(CQE{}))*k.cqEntries)

	*simWord(k.sqRing, simOffMask) = k.sqMask
	*simWord(k.sqRing, simOffEntries) = k.sqEntries
	*simWord(k.cqRing, simOffMask) = k.cqMask
	*simWord(k.cqRing, simOffEntries) = k.cqEntries

	params.SQEntries = k.sqEntries
	params.CQEntries = k.cqEntries
	params.SQOff = SQRingOffsets{
		Head:        simOffHead,
		Tail:        simOffTail,
		RingMask:    simOffMask,
		RingEntries: simOffEntries,
		Flags:       simOffFlags,
		Dropped:     simOffDropped,
		Array:       simOffArray,
	}
	params.CQOff = CQRingOffsets{
		Head:        simOffHead,
		Tail:        simOffTail,
		RingMask:    simOffMask,
		RingEntries: simOffEntries,
		Overflow:    simOffFlags,
		CQEs:        simOffArray,
	}
	k.params = *params
	return k.fd, nil
}

// Mmap implements Gateway, handing out the backing slice for the region
// selected by the magic offset.
func (k *SimKernel) Mmap(fd int, offset int64, length int) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if fd != k.fd {
		return nil, syscall.EBADF
	}
	if err, ok := k.mmapErrs[offset]; ok {
		delete(k.mmapErrs, offset)
		return nil, err
	}

	var buf []byte
	switch offset {
	case offSQRing:
		buf = k.sqRing
	case offSQEs:
		buf = k.sqes
	case offCQRing:
		buf = k.cqRing
	default:
		return nil, syscall.EINVAL
	}
	if length > len(buf) {
		return nil, syscall.EINVAL
	}
	k.mmapOrder = append(k.mmapOrder, offset)
	k.mappedBase[&buf[0]] = offset
	return buf, nil
}

// Munmap implements Gateway.
func (k *SimKernel) Munmap(b []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if len(b) == 0 {
		return syscall.EINVAL
	}
	offset, ok := k.mappedBase[&b[0]]
	if !ok {
		return syscall.EINVAL
	}
	delete(k.mappedBase, &b[0])
	k.unmapOrder = append(k.unmapOrder, offset)
	return nil
}

// Close implements Gateway.
func (k *SimKernel) Close(fd int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if fd != k.fd {
		return syscall.EBADF
	}
	k.closedFd = true
	return nil
}

// Register implements Gateway, recording the call without interpreting it.
func (k *SimKernel) Register(fd int, op RegisterOp, arg unsafe.Pointer, nrArgs uint32) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if fd != k.fd {
		return 0, syscall.EBADF
	}
	k.registerOps = append(k.registerOps, SimRegisterCall{Op: op, NrArgs: nrArgs})
	return 0, nil
}

// Enter implements Gateway: consumes up to toSubmit published entries in
// indirection-array order, then produces completions unless deferred. With
// EnterGetEvents it keeps completing queued work until minComplete results
// are visible; if it cannot, it fails with EINTR the way a blocked enter
// interrupted by a signal would.
func (k *SimKernel) Enter(fd int, toSubmit, minComplete uint32, flags EnterFlags, sig unsafe.Pointer) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if fd != k.fd {
		return 0, syscall.EBADF
	}
	k.enterCalls = append(k.enterCalls, SimEnterCall{
		ToSubmit:    toSubmit,
		MinComplete: minComplete,
		Flags:       flags,
	})
	if k.enterErrs.Len() > 0 {
		return 0, k.enterErrs.PopFront()
	}

	consumed := k.consumeLocked(toSubmit)
	if !k.deferMode {
		for k.inflight.Len() > 0 {
			k.completeLocked(k.inflight.PopFront())
		}
	}
	if flags&EnterGetEvents != 0 && minComplete > 0 {
		for k.readyLocked() < minComplete {
			if k.inflight.Len() == 0 {
				return consumed, syscall.EINTR
			}
			k.completeLocked(k.inflight.PopFront())
		}
	}
	return consumed, nil
}

// consumeLocked takes up to n published entries off the submission ring,
// strictly in the order their indices were written to the indirection
// array, advancing the shared SQ head as the kernel would.
func (k *SimKernel) consumeLocked(n uint32) int {
	head := atomic.LoadUint32(simWord(k.sqRing, simOffHead))
	tail := atomic.LoadUint32(simWord(k.sqRing, simOffTail))
	sqeView := unsafe.Slice((*SQE)(unsafe.Pointer(&k.sqes[0])), k.sqEntries)
	array := unsafe.Slice(simWord(k.sqRing, simOffArray), k.sqEntries)

	consumed := 0
	for uint32(consumed) < n && head != tail {
		idx := array[head&k.sqMask]
		if idx >= k.sqEntries {
			drop := simWord(k.sqRing, simOffDropped)
			atomic.StoreUint32(drop, atomic.LoadUint32(drop)+1)
		} else {
			sqe := sqeView[idx]
			k.consumedTags = append(k.consumedTags, sqe.UserData)
			k.inflight.PushBack(sqe)
		}
		head++
		consumed++
	}
	atomic.StoreUint32(simWord(k.sqRing, simOffHead), head)
	return consumed
}

// completeLocked posts one completion, honoring ring capacity: when the
// completion ring is full the result is dropped and the overflow counter
// incremented, exactly once per drop.
func (k *SimKernel) completeLocked(sqe SQE) {
	res, ok := k.results[sqe.UserData]
	if !ok {
		res = 0
	}
	k.postLocked(CQE{UserData: sqe.UserData, Res: res})
}

func (k *SimKernel) postLocked(cqe CQE) {
	head := atomic.LoadUint32(simWord(k.cqRing, simOffHead))
	tail := atomic.LoadUint32(simWord(k.cqRing, simOffTail))
	if tail-head >= k.cqEntries {
		over := simWord(k.cqRing, simOffFlags)
		atomic.StoreUint32(over, atomic.LoadUint32(over)+1)
		return
	}
	cqeView := unsafe.Slice((*CQE)(unsafe.Pointer(&k.cqRing[simOffArray])), k.cqEntries)
	cqeView[tail&k.cqMask] = cqe
	atomic.StoreUint32(simWord(k.cqRing, simOffTail), tail+1)
}

func (k *SimKernel) readyLocked() uint32 {
	head := atomic.LoadUint32(simWord(k.cqRing, simOffHead))
	tail := atomic.LoadUint32(simWord(k.cqRing, simOffTail))
	return tail - head
}

// CompleteNext completes the oldest consumed submission with its scripted
// result. Fails if nothing is in flight.
func (k *SimKernel) CompleteNext() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.inflight.Len() == 0 {
		return fmt.Errorf("simkernel: nothing in flight")
	}
	k.completeLocked(k.inflight.PopFront())
	return nil
}

// Post writes a raw completion directly into the ring, as the kernel would
// for work the simulation did not originate.
func (k *SimKernel) Post(cqe CQE) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.postLocked(cqe)
}

// PeekVisible returns the correlation tags of entries that are published
// (tail advanced) but not yet consumed, without consuming them. Entries
// that are merely filled, with no tail publish covering them, are
// invisible here by construction.
func (k *SimKernel) PeekVisible() []uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()

	head := atomic.LoadUint32(simWord(k.sqRing, simOffHead))
	tail := atomic.LoadUint32(simWord(k.sqRing, simOffTail))
	sqeView := unsafe.Slice((*SQE)(unsafe.Pointer(&k.sqes[0])), k.sqEntries)
	array := unsafe.Slice(simWord(k.sqRing, simOffArray), k.sqEntries)

	var tags []uint64
	for ; head != tail; head++ {
		idx := array[head&k.sqMask]
		if idx < k.sqEntries {
			tags = append(tags, sqeView[idx].UserData)
		}
	}
	return tags
}

// ConsumedTags returns every consumed correlation tag in consumption order.
func (k *SimKernel) ConsumedTags() []uint64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]uint64(nil), k.consumedTags...)
}

// InflightCount returns how many consumed submissions await completion.
func (k *SimKernel) InflightCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.inflight.Len()
}

// SetupCalls returns how many times Setup was invoked.
func (k *SimKernel) SetupCalls() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.setupCalls
}

// EnterCalls returns every recorded enter invocation in order.
func (k *SimKernel) EnterCalls() []SimEnterCall {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]SimEnterCall(nil), k.enterCalls...)
}

// RegisterCalls returns every recorded register invocation in order.
func (k *SimKernel) RegisterCalls() []SimRegisterCall {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]SimRegisterCall(nil), k.registerOps...)
}

// MmapOrder returns the magic offsets of successful mappings in call order.
func (k *SimKernel) MmapOrder() []int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]int64(nil), k.mmapOrder...)
}

// UnmapOrder returns the magic offsets of unmapped regions in call order.
func (k *SimKernel) UnmapOrder() []int64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return append([]int64(nil), k.unmapOrder...)
}

// AllUnmapped reports whether no mapping remains live.
func (k *SimKernel) AllUnmapped() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.mappedBase) == 0
}

// FdClosed reports whether the ring descriptor was closed.
func (k *SimKernel) FdClosed() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.closedFd
}
