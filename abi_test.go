package uring

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

func TestABISizes(t *testing.T) {
	// The kernel reads and writes these records with this exact layout.
	assert.Equal(t, uintptr(64), unsafe.Sizeof(SQE{}))
	assert.Equal(t, uintptr(16), unsafe.Sizeof(CQE{}))
	assert.Equal(t, uintptr(40), unsafe.Sizeof(SQRingOffsets{}))
	assert.Equal(t, uintptr(40), unsafe.Sizeof(CQRingOffsets{}))
	assert.Equal(t, uintptr(120), unsafe.Sizeof(Params{}))
}

func TestOpcodeValues(t *testing.T) {
	assert.Equal(t, Opcode(0), OpNop)
	assert.Equal(t, Opcode(1), OpReadv)
	assert.Equal(t, Opcode(2), OpWritev)
	assert.Equal(t, Opcode(3), OpFsync)
	assert.Equal(t, Opcode(4), OpReadFixed)
	assert.Equal(t, Opcode(5), OpWriteFixed)
	assert.Equal(t, Opcode(6), OpPollAdd)
	assert.Equal(t, Opcode(7), OpPollRemove)
}

func TestMagicOffsets(t *testing.T) {
	assert.Equal(t, int64(0x0), offSQRing)
	assert.Equal(t, int64(0x8000000), offCQRing)
	assert.Equal(t, int64(0x10000000), offSQEs)
}

func TestPrepNop(t *testing.T) {
	var e SQE
	e.PrepNop(99)
	assert.Equal(t, OpNop, e.Opcode)
	assert.Equal(t, uint64(99), e.UserData)
}

func TestPrepReadv(t *testing.T) {
	var e SQE
	e.PrepReadv(3, 0xdead0000, 2, 4096, 11)
	assert.Equal(t, OpReadv, e.Opcode)
	assert.Equal(t, int32(3), e.FD)
	assert.Equal(t, uint64(0xdead0000), e.Addr)
	assert.Equal(t, uint32(2), e.Len)
	assert.Equal(t, uint64(4096), e.Off)
	assert.Equal(t, uint64(11), e.UserData)
}

func TestPrepFixed(t *testing.T) {
	var e SQE
	e.PrepWriteFixed(5, 0x1000, 512, 0, 3, 21)
	assert.Equal(t, OpWriteFixed, e.Opcode)
	assert.Equal(t, uint16(3), e.BufIndex)

	e.PrepReadFixed(5, 0x2000, 512, 512, 1, 22)
	assert.Equal(t, OpReadFixed, e.Opcode)
	assert.Equal(t, uint16(1), e.BufIndex)
}

func TestTaggedOpFlags(t *testing.T) {
	// The union field is only readable through the interpretation
	// selected by the opcode.
	var e SQE
	e.PrepFsync(1, FsyncDatasync, 31)
	f, ok := e.FsyncFlags()
	assert.True(t, ok)
	assert.Equal(t, FsyncDatasync, f)
	_, ok = e.PollEvents()
	assert.False(t, ok)
	_, ok = e.RWFlags()
	assert.False(t, ok)

	e.PrepPollAdd(1, 0x1f, 32)
	ev, ok := e.PollEvents()
	assert.True(t, ok)
	assert.Equal(t, PollEvents(0x1f), ev)
	_, ok = e.FsyncFlags()
	assert.False(t, ok)

	e.PrepReadv(1, 0, 1, 0, 33)
	e.SetRWFlags(0x4)
	rw, ok := e.RWFlags()
	assert.True(t, ok)
	assert.Equal(t, RWFlags(0x4), rw)
}

func TestPrepClearsStaleFields(t *testing.T) {
	var e SQE
	e.PrepPollAdd(1, 0xffff, 41)
	e.PrepNop(42)
	assert.Equal(t, uint32(0), e.OpFlags)
	assert.Equal(t, uint64(42), e.UserData)
}
