package uring

// Opcode identifies the asynchronous operation described by an SQE.
type Opcode uint8

// Supported operations. Values match the kernel's io_uring opcode numbering
// and must not be reordered.
const (
	OpNop        Opcode = 0
	OpReadv      Opcode = 1
	OpWritev     Opcode = 2
	OpFsync      Opcode = 3
	OpReadFixed  Opcode = 4
	OpWriteFixed Opcode = 5
	OpPollAdd    Opcode = 6
	OpPollRemove Opcode = 7
)

// String returns the opcode name for logging.
func (op Opcode) String() string {
	switch op {
	case OpNop:
		return "NOP"
	case OpReadv:
		return "READV"
	case OpWritev:
		return "WRITEV"
	case OpFsync:
		return "FSYNC"
	case OpReadFixed:
		return "READ_FIXED"
	case OpWriteFixed:
		return "WRITE_FIXED"
	case OpPollAdd:
		return "POLL_ADD"
	case OpPollRemove:
		return "POLL_REMOVE"
	default:
		return "UNKNOWN"
	}
}

// SetupFlags configure ring creation.
type SetupFlags uint32

const (
	// SetupIOPoll requests busy-poll completion mode for the target device.
	SetupIOPoll SetupFlags = 1 << 0
	// SetupSQPoll requests a kernel-side submission poller thread.
	// Rejected by New: kernel-side polling is out of scope by design.
	SetupSQPoll SetupFlags = 1 << 1
	// SetupSQAff pins the kernel-side poller to sq_thread_cpu.
	// Only meaningful with SetupSQPoll, rejected with it.
	SetupSQAff SetupFlags = 1 << 2
)

// SQEFlags are per-submission modifier flags.
type SQEFlags uint8

// SQEFixedFile marks the SQE's FD field as an index into the registered
// file set rather than a raw descriptor.
const SQEFixedFile SQEFlags = 1 << 0

// FsyncFlags modify OpFsync submissions.
type FsyncFlags uint32

// FsyncDatasync requests fdatasync semantics instead of a full fsync.
const FsyncDatasync FsyncFlags = 1 << 0

// RWFlags carry preadv2/pwritev2 flags for vectored operations.
type RWFlags int32

// PollEvents is the poll event mask for OpPollAdd.
type PollEvents uint16

// EnterFlags modify the enter syscall.
type EnterFlags uint32

const (
	// EnterGetEvents asks enter to wait until min_complete completions
	// are available before returning.
	EnterGetEvents EnterFlags = 1 << 0
	// EnterSQWakeup wakes a kernel-side poller thread. Unused here since
	// kernel-side polling is out of scope.
	EnterSQWakeup EnterFlags = 1 << 1
)

// SQNeedWakeup is set by the kernel in the SQ ring flags word when a
// kernel-side poller went idle. Exposed read-only via Ring.SQFlags.
const SQNeedWakeup uint32 = 1 << 0

// RegisterOp selects the resource type for the register syscall.
type RegisterOp uint32

const (
	RegBuffers   RegisterOp = 0
	UnregBuffers RegisterOp = 1
	RegFiles     RegisterOp = 2
	UnregFiles   RegisterOp = 3
)

// Magic mmap offsets selecting which ring region a mapping call returns.
const (
	offSQRing int64 = 0x0
	offCQRing int64 = 0x8000000
	offSQEs   int64 = 0x10000000
)
