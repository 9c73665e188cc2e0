// Package uring talks directly to the Linux io_uring interface: a pair of
// memory-mapped ring buffers shared between this process and the kernel,
// synchronized with atomic head/tail counters instead of locks.
//
// One Ring supports exactly one producing and one consuming goroutine
// (commonly the same one); concurrent producers need external locking.
package uring

import "unsafe"

// Gateway is the syscall capability a Ring is built on. The default is the
// real kernel on Linux; tests inject a SimKernel to get a deterministic
// counterparty without requiring kernel support.
type Gateway interface {
	// Setup creates a ring of at least entries slots and overwrites params
	// in place with the allocated sizes and region offset tables. Returns
	// the ring file descriptor.
	Setup(entries uint32, params *Params) (int, error)

	// Enter publishes up to toSubmit staged submissions and, when flags
	// carries EnterGetEvents, blocks until minComplete completions are
	// available. sig optionally points at a signal mask to apply while
	// blocked. Returns the number of submissions consumed.
	Enter(fd int, toSubmit, minComplete uint32, flags EnterFlags, sig unsafe.Pointer) (int, error)

	// Register attaches or detaches pre-registered resources (buffers,
	// files) to the ring. Raw capability, not invoked internally.
	Register(fd int, op RegisterOp, arg unsafe.Pointer, nrArgs uint32) (int, error)

	// Mmap maps length bytes of the ring region selected by the magic
	// offset. Munmap releases exactly one previous Mmap result.
	Mmap(fd int, offset int64, length int) ([]byte, error)
	Munmap(b []byte) error

	// Close releases the ring file descriptor.
	Close(fd int) error
}
