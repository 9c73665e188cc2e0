package uring

import "unsafe"

// SQE is a submission queue entry. The layout must match the kernel's
// struct io_uring_sqe exactly (64 bytes); the kernel reads it in place
// from the mapped entry array, so fields must not be reordered or resized.
//
// OpFlags overlays the kernel's per-opcode union (rw_flags / fsync_flags /
// poll_events). Use the typed accessors below instead of touching it raw;
// which interpretation is valid is selected by Opcode.
type SQE struct {
	Opcode      Opcode   // operation to perform
	Flags       SQEFlags // SQE modifier flags (fixed-file etc.)
	Ioprio      uint16   // priority hint
	FD          int32    // target descriptor (or fixed-file index)
	Off         uint64   // file offset
	Addr        uint64   // buffer address, or iovec array address for vectored ops
	Len         uint32   // buffer length, or iovec count for vectored ops
	OpFlags     uint32   // opcode-specific: rw_flags / fsync_flags / poll_events
	UserData    uint64   // caller correlation tag, copied verbatim into the CQE
	BufIndex    uint16   // fixed-buffer index, valid for OpReadFixed/OpWriteFixed only
	Personality uint16
	SpliceOff   int32
	pad         [2]uint64
}

// Compile-time size check - kernel SQEs are exactly 64 bytes.
var _ [64]byte = [unsafe.Sizeof(SQE{})]byte{}

// CQE is a completion queue entry, written by the kernel. 16 bytes exactly.
type CQE struct {
	UserData uint64 // correlation tag copied from the matching SQE
	Res      int32  // negative errno on failure, op-specific value on success
	Flags    uint32 // currently unused by the kernel, preserved verbatim
}

// Compile-time size check - kernel CQEs are exactly 16 bytes.
var _ [16]byte = [unsafe.Sizeof(CQE{})]byte{}

// Err returns the CQE result as an error, or nil on success.
func (c CQE) Err() error {
	if c.Res < 0 {
		return completionErrno(-c.Res)
	}
	return nil
}

// SQRingOffsets locates the SQ ring fields within the SQ ring mapping.
// Filled by the kernel during setup.
type SQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Flags       uint32
	Dropped     uint32
	Array       uint32
	Resv1       uint32
	Resv2       uint64
}

// CQRingOffsets locates the CQ ring fields within the CQ ring mapping.
// Filled by the kernel during setup.
type CQRingOffsets struct {
	Head        uint32
	Tail        uint32
	RingMask    uint32
	RingEntries uint32
	Overflow    uint32
	CQEs        uint32
	Flags       uint32
	Resv1       uint32
	Resv2       uint64
}

// Params is passed to the setup syscall and overwritten in place with the
// actually-allocated entry counts and the two offset tables.
type Params struct {
	SQEntries    uint32
	CQEntries    uint32
	Flags        uint32
	SQThreadCPU  uint32
	SQThreadIdle uint32
	Features     uint32
	WQFd         uint32
	Resv         [3]uint32
	SQOff        SQRingOffsets
	CQOff        CQRingOffsets
}

// Compile-time size checks against the kernel ABI.
var (
	_ [40]byte  = [unsafe.Sizeof(SQRingOffsets{})]byte{}
	_ [40]byte  = [unsafe.Sizeof(CQRingOffsets{})]byte{}
	_ [120]byte = [unsafe.Sizeof(Params{})]byte{}
)

// PrepNop fills the SQE as a no-op carrying only the correlation tag.
func (e *SQE) PrepNop(tag uint64) {
	*e = SQE{Opcode: OpNop, FD: -1, UserData: tag}
}

// PrepReadv fills the SQE as a vectored read. addr must point at an array
// of nrVecs iovec records that stays live until the completion arrives.
func (e *SQE) PrepReadv(fd int32, addr uint64, nrVecs uint32, off uint64, tag uint64) {
	*e = SQE{Opcode: OpReadv, FD: fd, Off: off, Addr: addr, Len: nrVecs, UserData: tag}
}

// PrepWritev fills the SQE as a vectored write. Same lifetime rules as PrepReadv.
func (e *SQE) PrepWritev(fd int32, addr uint64, nrVecs uint32, off uint64, tag uint64) {
	*e = SQE{Opcode: OpWritev, FD: fd, Off: off, Addr: addr, Len: nrVecs, UserData: tag}
}

// PrepFsync fills the SQE as a sync of fd.
func (e *SQE) PrepFsync(fd int32, flags FsyncFlags, tag uint64) {
	*e = SQE{Opcode: OpFsync, FD: fd, OpFlags: uint32(flags), UserData: tag}
}

// PrepReadFixed fills the SQE as a read into a pre-registered buffer.
func (e *SQE) PrepReadFixed(fd int32, addr uint64, length uint32, off uint64, bufIndex uint16, tag uint64) {
	*e = SQE{Opcode: OpReadFixed, FD: fd, Off: off, Addr: addr, Len: length, BufIndex: bufIndex, UserData: tag}
}

// PrepWriteFixed fills the SQE as a write from a pre-registered buffer.
func (e *SQE) PrepWriteFixed(fd int32, addr uint64, length uint32, off uint64, bufIndex uint16, tag uint64) {
	*e = SQE{Opcode: OpWriteFixed, FD: fd, Off: off, Addr: addr, Len: length, BufIndex: bufIndex, UserData: tag}
}

// PrepPollAdd fills the SQE as a one-shot poll for the given event mask.
func (e *SQE) PrepPollAdd(fd int32, events PollEvents, tag uint64) {
	*e = SQE{Opcode: OpPollAdd, FD: fd, OpFlags: uint32(events), UserData: tag}
}

// PrepPollRemove fills the SQE as a removal of the poll identified by target,
// the UserData of the original OpPollAdd.
func (e *SQE) PrepPollRemove(target uint64, tag uint64) {
	*e = SQE{Opcode: OpPollRemove, FD: -1, Addr: target, UserData: tag}
}

// SetRWFlags sets preadv2/pwritev2 flags. Valid for OpReadv/OpWritev only.
func (e *SQE) SetRWFlags(f RWFlags) {
	e.OpFlags = uint32(f)
}

// RWFlags returns the rw_flags interpretation of the union field, and
// whether that interpretation is valid for the SQE's opcode.
func (e *SQE) RWFlags() (RWFlags, bool) {
	if e.Opcode != OpReadv && e.Opcode != OpWritev {
		return 0, false
	}
	return RWFlags(e.OpFlags), true
}

// FsyncFlags returns the fsync_flags interpretation of the union field.
func (e *SQE) FsyncFlags() (FsyncFlags, bool) {
	if e.Opcode != OpFsync {
		return 0, false
	}
	return FsyncFlags(e.OpFlags), true
}

// PollEvents returns the poll_events interpretation of the union field.
func (e *SQE) PollEvents() (PollEvents, bool) {
	if e.Opcode != OpPollAdd {
		return 0, false
	}
	return PollEvents(e.OpFlags), true
}
