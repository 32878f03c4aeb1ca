package exe2dll

import (
	"debug/pe"
	"fmt"
	"sort"
	"strings"
)

type Permission uint32

const (
	PermRead    Permission = pe.IMAGE_SCN_MEM_READ
	PermWrite   Permission = pe.IMAGE_SCN_MEM_WRITE
	PermExecute Permission = pe.IMAGE_SCN_MEM_EXECUTE

	permMask = PermRead | PermWrite | PermExecute
)

func (p Permission) String() string {
	b := []byte("---")
	if p&PermRead != 0 {
		b[0] = 'r'
	}
	if p&PermWrite != 0 {
		b[1] = 'w'
	}
	if p&PermExecute != 0 {
		b[2] = 'x'
	}
	return string(b)
}

// ParsePermission accepts any combination of r, w and x.
func ParsePermission(s string) (Permission, error) {
	var p Permission
	for _, c := range strings.ToLower(s) {
		switch c {
		case 'r':
			p |= PermRead
		case 'w':
			p |= PermWrite
		case 'x':
			p |= PermExecute
		case '-':
		default:
			return 0, fmt.Errorf("unknown permission %q in %q", c, s)
		}
	}
	return p, nil
}

// Cave is a run of unused raw bytes at the tail of a section. After Reserve
// it describes exactly the payload; the separator byte sits at Offset-1.
type Cave struct {
	Label        string
	Section      string
	SectionIndex int
	Offset       uint32 // file offset
	RVA          uint32
	Size         uint32
	Permissions  Permission
}

func (c Cave) End() uint32 { return c.Offset + c.Size }

func (c Cave) String() string {
	return fmt.Sprintf("%s[%s] off=0x%x rva=0x%x size=%d", c.Section, c.Permissions, c.Offset, c.RVA, c.Size)
}

// Fill writes the zero separator followed by payload.
func (c Cave) Fill(buf []byte, payload []byte) error {
	if uint32(len(payload)) != c.Size {
		return fmt.Errorf("cave %s holds %d bytes, payload is %d", c.Label, c.Size, len(payload))
	}
	if c.Offset == 0 || !CheckSize(len(buf), uint64(c.Offset-1), uint64(c.Size)+1) {
		return fmt.Errorf("%w: cave %s at 0x%x", ErrOffsetOutOfRange, c.Label, c.Offset)
	}
	buf[c.Offset-1] = 0
	copy(buf[c.Offset:], payload)
	return nil
}

// Allocator hands out caves for one conversion. Reservations are tracked
// per section; nothing is written until Cave.Fill.
type Allocator struct {
	img      *Image
	used     map[int]uint32 // section index -> first free file offset
	reserved []Cave
}

func NewAllocator(img *Image) *Allocator {
	return &Allocator{img: img, used: map[int]uint32{}}
}

// virtualRoom is how far a section may extend in memory before it runs
// into the next section or the end of the image.
func (a *Allocator) virtualRoom(sections []Section, s *Section) uint32 {
	limit := uint64(a.img.SizeOfImage())
	for i := range sections {
		va := uint64(sections[i].Header.VirtualAddress)
		if va > uint64(s.Header.VirtualAddress) && va < limit {
			limit = va
		}
	}
	if limit <= uint64(s.Header.VirtualAddress) {
		return 0
	}
	return uint32(limit - uint64(s.Header.VirtualAddress))
}

func (a *Allocator) free(sections []Section, s *Section) (Cave, bool) {
	rawStart, rawEnd := s.raw(len(a.img.buf))
	if s.Header.VirtualSize == 0 || rawEnd <= rawStart {
		return Cave{}, false
	}

	start := uint64(rawStart) + uint64(s.Header.VirtualSize)
	if u, ok := a.used[s.Index]; ok && uint64(u) > start {
		start = uint64(u)
	}
	end := uint64(rawEnd)
	if room := uint64(rawStart) + uint64(a.virtualRoom(sections, s)); room < end {
		end = room
	}
	if start >= end {
		return Cave{}, false
	}

	return Cave{
		Section:      s.Name,
		SectionIndex: s.Index,
		Offset:       uint32(start),
		RVA:          s.Header.VirtualAddress + (uint32(start) - rawStart),
		Size:         uint32(end - start),
		Permissions:  Permission(s.Header.Characteristics) & permMask,
	}, true
}

// Caves lists, in section table order, every free cave whose section grants
// at least perm.
func (a *Allocator) Caves(perm Permission) []Cave {
	var caves []Cave
	sections := a.img.Sections()
	for i := range sections {
		if Permission(sections[i].Header.Characteristics)&perm != perm {
			continue
		}
		if c, ok := a.free(sections, &sections[i]); ok {
			caves = append(caves, c)
		}
	}
	return caves
}

// place returns where a payload of size bytes would start inside c.
func place(c Cave, size, align uint32) (off, rva uint32, ok bool) {
	if align == 0 {
		align = 1
	}
	rva = AlignValueUp(c.RVA+1, align)
	if rva < c.RVA {
		return 0, 0, false
	}
	off = c.Offset + (rva - c.RVA)
	if uint64(off)+uint64(size) > uint64(c.End()) {
		return 0, 0, false
	}
	return off, rva, true
}

// FindCave is deterministic first fit in section table order.
func (a *Allocator) FindCave(size, align uint32, perm Permission) (Cave, error) {
	for _, c := range a.Caves(perm) {
		if _, _, ok := place(c, size, align); ok {
			return c, nil
		}
	}
	return Cave{}, fmt.Errorf("%w: %d bytes aligned to %d with %s", ErrNoSuitableCave, size, align, perm)
}

// Reserve narrows c to a size byte payload and marks it used.
func (a *Allocator) Reserve(c Cave, size, align uint32) (Cave, error) {
	off, rva, ok := place(c, size, align)
	if !ok {
		return Cave{}, fmt.Errorf("%w: %d bytes do not fit %s", ErrNoSuitableCave, size, c)
	}
	if u, used := a.used[c.SectionIndex]; used && off-1 < u {
		return Cave{}, fmt.Errorf("cave %s overlaps an earlier reservation", c)
	}

	a.used[c.SectionIndex] = off + size
	c.Offset, c.RVA, c.Size = off, rva, size
	a.reserved = append(a.reserved, c)
	return c, nil
}

// Claim finds and reserves a cave in one step.
func (a *Allocator) Claim(label string, size, align uint32, perm Permission) (Cave, error) {
	c, err := a.FindCave(size, align, perm)
	if err != nil {
		return Cave{}, fmt.Errorf("%s: %w", label, err)
	}
	c.Label = label
	return a.Reserve(c, size, align)
}

func (a *Allocator) Reserved() []Cave {
	return append([]Cave(nil), a.reserved...)
}

// grow extends VirtualSize of every section that received a reservation so
// the loader maps the new bytes. Growth never passes virtualRoom.
func (a *Allocator) grow() {
	sections := a.img.Sections()
	idx := make([]int, 0, len(a.used))
	for i := range a.used {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	for _, i := range idx {
		s := &sections[i]
		vs := a.used[i] - s.Header.PointerToRawData
		if vs > s.Header.VirtualSize {
			a.img.setVirtualSize(s, vs)
		}
	}
}
