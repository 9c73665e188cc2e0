package uring

import "unsafe"

// region is one mapped ring area. Each region records its own base and
// length; teardown must never borrow another region's size (the kernel
// tracks mappings per region, and mixing them corrupts the unmap).
type region struct {
	buf []byte
}

// uint32At returns a typed pointer to the 32-bit word at the given byte
// offset. Shared head/tail words must be accessed through sync/atomic.
func (m *region) uint32At(off uint32) *uint32 {
	return (*uint32)(unsafe.Pointer(&m.buf[off]))
}

// uint32SliceAt views n 32-bit words starting at the given byte offset.
func (m *region) uint32SliceAt(off, n uint32) []uint32 {
	return unsafe.Slice(m.uint32At(off), n)
}

// sqeSliceAt views n submission slots starting at the given byte offset.
func (m *region) sqeSliceAt(off, n uint32) []SQE {
	return unsafe.Slice((*SQE)(unsafe.Pointer(&m.buf[off])), n)
}

// cqeSliceAt views n completion slots starting at the given byte offset.
func (m *region) cqeSliceAt(off, n uint32) []CQE {
	return unsafe.Slice((*CQE)(unsafe.Pointer(&m.buf[off])), n)
}

func (m *region) unmap(gw Gateway) error {
	if m.buf == nil {
		return nil
	}
	err := gw.Munmap(m.buf)
	m.buf = nil
	return err
}

// ringRegions holds the three mappings backing one ring, in mapping order.
type ringRegions struct {
	sqRing region // SQ head/tail/mask/flags/dropped/indirection array
	sqes   region // SQ entry array
	cqRing region // CQ head/tail/mask/overflow/entry array
}

// mapRegions maps the three ring regions for fd. On any failure every
// already-successful mapping is unmapped, in reverse mapping order, before
// the error is surfaced; a partially mapped result is never returned.
func mapRegions(gw Gateway, fd int, p *Params) (ringRegions, error) {
	var rr ringRegions

	sqRingSize := int(p.SQOff.Array) + int(p.SQEntries)*4
	buf, err := gw.Mmap(fd, offSQRing, sqRingSize)
	if err != nil {
		return ringRegions{}, WrapError("MMAP_SQ_RING", ErrCodeMap, err)
	}
	rr.sqRing = region{buf}

	sqesSize := int(p.SQEntries) * int(unsafe.Sizeof(SQE{}))
	buf, err = gw.Mmap(fd, offSQEs, sqesSize)
	if err != nil {
		rr.unwind(gw)
		return ringRegions{}, WrapError("MMAP_SQES", ErrCodeMap, err)
	}
	rr.sqes = region{buf}

	cqRingSize := int(p.CQOff.CQEs) + int(p.CQEntries)*int(unsafe.Sizeof(CQE{}))
	buf, err = gw.Mmap(fd, offCQRing, cqRingSize)
	if err != nil {
		rr.unwind(gw)
		return ringRegions{}, WrapError("MMAP_CQ_RING", ErrCodeMap, err)
	}
	rr.cqRing = region{buf}

	return rr, nil
}

// unwind releases whatever mapRegions managed to map, newest first.
func (rr *ringRegions) unwind(gw Gateway) {
	rr.cqRing.unmap(gw)
	rr.sqes.unmap(gw)
	rr.sqRing.unmap(gw)
}
