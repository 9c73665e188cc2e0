//go:build !linux

package uring

import (
	"syscall"
	"unsafe"
)

// kernelGateway is unavailable off Linux; every call reports ENOSYS.
// The SimKernel gateway still works everywhere.
type kernelGateway struct{}

// KernelGateway returns the Gateway backed by the running kernel.
func KernelGateway() Gateway { return kernelGateway{} }

func (kernelGateway) Setup(entries uint32, params *Params) (int, error) {
	return -1, syscall.ENOSYS
}

func (kernelGateway) Enter(fd int, toSubmit, minComplete uint32, flags EnterFlags, sig unsafe.Pointer) (int, error) {
	return 0, syscall.ENOSYS
}

func (kernelGateway) Register(fd int, op RegisterOp, arg unsafe.Pointer, nrArgs uint32) (int, error) {
	return 0, syscall.ENOSYS
}

func (kernelGateway) Mmap(fd int, offset int64, length int) ([]byte, error) {
	return nil, syscall.ENOSYS
}

func (kernelGateway) Munmap(b []byte) error {
	return syscall.ENOSYS
}

func (kernelGateway) Close(fd int) error {
	return syscall.ENOSYS
}
