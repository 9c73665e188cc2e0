//go:build linux

package uring

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

// kernelGateway issues the real io_uring syscalls.
type kernelGateway struct{}

// Kernel-side sigset size in bytes (_NSIG / 8); the kernel rejects any
// other value when a signal mask is supplied.
const sigsetSize = 8

// KernelGateway returns the Gateway backed by the running kernel.
func KernelGateway() Gateway { return kernelGateway{} }

func (kernelGateway) Setup(entries uint32, params *Params) (int, error) {
	fd, _, errno := syscall.Syscall(unix.SYS_IO_URING_SETUP,
		uintptr(entries),
		uintptr(unsafe.Pointer(params)),
		0)
	if errno != 0 {
		return -1, errno
	}
	return int(fd), nil
}

func (kernelGateway) Enter(fd int, toSubmit, minComplete uint32, flags EnterFlags, sig unsafe.Pointer) (int, error) {
	n, _, errno := syscall.Syscall6(unix.SYS_IO_URING_ENTER,
		uintptr(fd),
		uintptr(toSubmit),
		uintptr(minComplete),
		uintptr(flags),
		uintptr(sig),
		sigsetSize)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

func (kernelGateway) Register(fd int, op RegisterOp, arg unsafe.Pointer, nrArgs uint32) (int, error) {
	n, _, errno := syscall.Syscall6(unix.SYS_IO_URING_REGISTER,
		uintptr(fd),
		uintptr(op),
		uintptr(arg),
		uintptr(nrArgs),
		0, 0)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

func (kernelGateway) Mmap(fd int, offset int64, length int) ([]byte, error) {
	return unix.Mmap(fd, offset, length,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_SHARED|unix.MAP_POPULATE)
}

func (kernelGateway) Munmap(b []byte) error {
	return unix.Munmap(b)
}

func (kernelGateway) Close(fd int) error {
	return unix.Close(fd)
}
