package uring

import (
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/behrlich/go-uring/internal/logging"
)

// Config controls ring creation.
type Config struct {
	// Entries is the requested submission slot count. The kernel rounds
	// it up to a power of two; the actual counts are visible on the Ring.
	Entries uint32
	// Flags are setup flags. SetupSQPoll and SetupSQAff are rejected
	// before any syscall: kernel-side polling is out of scope by design.
	Flags SetupFlags
	// Gateway substitutes the syscall layer; nil selects the real kernel.
	Gateway Gateway
	// Logger defaults to logging.Default().
	Logger *logging.Logger
	// Metrics defaults to a fresh Metrics instance.
	Metrics *Metrics
}

// Ring is the handle over one io_uring instance. It exclusively owns the
// ring file descriptor and the three mapped regions, released together by
// Close. A Ring supports one producer and one consumer; the second
// synchronizing party is the kernel, reached only through atomic
// loads/stores on the shared head/tail words.
type Ring struct {
	fd      int
	gw      Gateway
	regions ringRegions
	sq      submissionQueue
	cq      completionQueue
	log     *logging.Logger
	metrics *Metrics
	closed  bool
}

// New creates a ring with at least config.Entries submission slots.
func New(config Config) (*Ring, error) {
	if config.Gateway == nil {
		config.Gateway = KernelGateway()
	}
	if config.Logger == nil {
		config.Logger = logging.Default()
	}
	if config.Metrics == nil {
		config.Metrics = NewMetrics()
	}
	if config.Entries == 0 {
		return nil, NewError("SETUP", ErrCodeInvalidParameters, "entries must be non-zero")
	}
	if config.Flags&(SetupSQPoll|SetupSQAff) != 0 {
		// Checked before any syscall: this must fail fast, not fall back
		// to a best-effort emulation.
		return nil, NewError("SETUP", ErrCodePollingUnsupported,
			"SetupSQPoll/SetupSQAff request a kernel-side poller")
	}

	log := config.Logger
	log.Debug("creating io_uring", "entries", config.Entries, "flags", uint32(config.Flags))

	params := Params{Flags: uint32(config.Flags)}
	fd, err := config.Gateway.Setup(config.Entries, &params)
	if err != nil {
		log.Error("io_uring setup failed", "error", err)
		return nil, WrapError("SETUP", ErrCodeSetup, err)
	}

	regions, err := mapRegions(config.Gateway, fd, &params)
	if err != nil {
		config.Gateway.Close(fd)
		log.Error("io_uring mmap failed", "error", err)
		return nil, err
	}

	r := &Ring{
		fd:      fd,
		gw:      config.Gateway,
		regions: regions,
		sq:      newSubmissionQueue(&regions, &params),
		cq:      newCompletionQueue(&regions, &params),
		log:     log.WithRing(fd),
		metrics: config.Metrics,
	}
	r.log.Debug("io_uring created",
		"sq_entries", r.sq.entries, "cq_entries", r.cq.entries)
	return r, nil
}

// FD returns the ring file descriptor.
func (r *Ring) FD() int { return r.fd }

// SQEntries returns the actual submission ring capacity.
func (r *Ring) SQEntries() uint32 { return r.sq.entries }

// CQEntries returns the actual completion ring capacity.
func (r *Ring) CQEntries() uint32 { return r.cq.entries }

// Metrics returns the metrics instance this ring records into.
func (r *Ring) Metrics() *Metrics { return r.metrics }

// GetSQE hands out the next free submission slot for the caller to fill,
// or nil when every slot is filled-but-unpublished. A nil result is not an
// error: the caller must Submit or drain completions to free capacity.
// Non-blocking.
func (r *Ring) GetSQE() *SQE {
	if r.closed {
		return nil
	}
	sqe := r.sq.acquire()
	if sqe == nil {
		r.metrics.SQFull.Add(1)
	}
	return sqe
}

// Submit publishes every filled slot to the kernel and issues one entry
// call for the whole batch, so many requests amortize a single syscall.
//
// If a previous Submit published a tail advance but its entry call failed,
// that backlog is retried first, by count, touching no newly filled slots;
// the error stays sticky until a retry succeeds. A failed entry call after
// a publish does not roll the tail back - the kernel may already be acting
// on the visible entries - it only means this process does not yet know
// the outcome.
//
// Returns the number of entries newly published by this call.
func (r *Ring) Submit() (uint32, error) {
	if r.closed {
		return 0, NewError("SUBMIT", ErrCodeClosed, "")
	}
	if r.sq.pending {
		r.metrics.Retries.Add(1)
		if err := r.enter(r.sq.pendingCount, 0, EnterGetEvents); err != nil {
			return 0, err
		}
		r.sq.pending = false
		r.sq.pendingCount = 0
	}
	n := r.sq.flush()
	if n == 0 {
		return 0, nil
	}
	if err := r.enter(n, 0, EnterGetEvents); err != nil {
		r.sq.pending = true
		r.sq.pendingCount = n
		return 0, err
	}
	r.metrics.Submitted.Add(uint64(n))
	return n, nil
}

// PollCQE copies out the oldest unread completion, if one is readily
// available. Non-blocking.
func (r *Ring) PollCQE() (CQE, bool) {
	cqe, ok := r.cq.poll()
	if ok {
		r.metrics.Completed.Add(1)
	}
	return cqe, ok
}

// DrainCQEs appends every readily available completion to dst and returns
// the extended slice. Non-blocking.
func (r *Ring) DrainCQEs(dst []CQE) []CQE {
	for {
		cqe, ok := r.PollCQE()
		if !ok {
			return dst
		}
		dst = append(dst, cqe)
	}
}

// WaitCQE blocks in the kernel until at least one completion is ready and
// returns it. A wait-path entry failure is surfaced directly with no
// ring-state change. Bounding the wait is the caller's concern: poll
// instead, or race this call against an external cancellation primitive -
// a published submission cannot be withdrawn either way.
func (r *Ring) WaitCQE() (CQE, error) {
	if r.closed {
		return CQE{}, NewError("WAIT", ErrCodeClosed, "")
	}
	for {
		if cqe, ok := r.PollCQE(); ok {
			return cqe, nil
		}
		r.metrics.Waits.Add(1)
		if err := r.enter(0, 1, EnterGetEvents); err != nil {
			return CQE{}, err
		}
	}
}

// Overflow reports the kernel-maintained count of completions dropped
// because the completion ring was full. Dropped completions are not
// recoverable at this layer.
func (r *Ring) Overflow() uint32 {
	return r.cq.overflowCount()
}

// SQFlags returns the kernel-written submission ring runtime flags.
func (r *Ring) SQFlags() uint32 { return r.sq.flags() }

// SQDropped returns the kernel count of submissions dropped for carrying
// an invalid indirection entry.
func (r *Ring) SQDropped() uint32 { return r.sq.droppedCount() }

// Register exposes the raw register syscall for buffer/file
// pre-registration. Not invoked internally.
func (r *Ring) Register(op RegisterOp, arg unsafe.Pointer, nrArgs uint32) error {
	if r.closed {
		return NewError("REGISTER", ErrCodeClosed, "")
	}
	if _, err := r.gw.Register(r.fd, op, arg, nrArgs); err != nil {
		return WrapError("REGISTER", ErrCodeRegister, err)
	}
	return nil
}

// RegisterBuffers pre-registers fixed I/O buffers for OpReadFixed and
// OpWriteFixed. The memory must stay live until unregistered.
func (r *Ring) RegisterBuffers(iovs []unix.Iovec) error {
	if len(iovs) == 0 {
		return NewError("REGISTER", ErrCodeInvalidParameters, "no buffers")
	}
	return r.Register(RegBuffers, unsafe.Pointer(&iovs[0]), uint32(len(iovs)))
}

// UnregisterBuffers releases all fixed buffers.
func (r *Ring) UnregisterBuffers() error {
	return r.Register(UnregBuffers, nil, 0)
}

// RegisterFiles pre-registers a file set for SQEFixedFile submissions.
func (r *Ring) RegisterFiles(fds []int32) error {
	if len(fds) == 0 {
		return NewError("REGISTER", ErrCodeInvalidParameters, "no files")
	}
	return r.Register(RegFiles, unsafe.Pointer(&fds[0]), uint32(len(fds)))
}

// UnregisterFiles releases the registered file set.
func (r *Ring) UnregisterFiles() error {
	return r.Register(UnregFiles, nil, 0)
}

// Close tears the ring down: the submission entry array, the submission
// ring region and the completion ring region are unmapped - each with its
// own recorded base and size - and the ring descriptor is closed. At most
// once per handle; later calls fail with ErrCodeClosed.
func (r *Ring) Close() error {
	if r.closed {
		return NewError("CLOSE", ErrCodeClosed, "")
	}
	r.closed = true
	r.log.Debug("closing io_uring")

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	keep(r.regions.sqes.unmap(r.gw))
	keep(r.regions.sqRing.unmap(r.gw))
	keep(r.regions.cqRing.unmap(r.gw))
	keep(r.gw.Close(r.fd))
	r.fd = -1
	return firstErr
}

// enter wraps the kernel entry call with metrics and error context.
func (r *Ring) enter(toSubmit, minComplete uint32, flags EnterFlags) error {
	r.metrics.EnterCalls.Add(1)
	_, err := r.gw.Enter(r.fd, toSubmit, minComplete, flags, nil)
	if err != nil {
		r.metrics.EnterErrors.Add(1)
		r.log.Debug("io_uring enter failed",
			"to_submit", toSubmit, "min_complete", minComplete, "error", err)
		return WrapError("ENTER", ErrCodeEnter, err)
	}
	return nil
}
