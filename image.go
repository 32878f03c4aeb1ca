package exe2dll

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
	"strings"
)

// Image is a bounds-checked view over an unmapped PE file. It holds no
// copy of the bytes; every setter writes straight into the buffer.
type Image struct {
	buf []byte

	fileOff int // IMAGE_FILE_HEADER
	optOff  int // IMAGE_OPTIONAL_HEADER
	optSize int
	sectOff int // first IMAGE_SECTION_HEADER
	nsect   int
	magic   uint16
}

// Open resolves the MZ -> PE00 -> optional header -> section table chain.
func Open(buf []byte) (*Image, error) {
	if !CheckSize(len(buf), 0, IMAGE_SIZEOF_DOS_HEADER) {
		return nil, malformed("%d bytes is smaller than a dos header", len(buf))
	}
	if m, _ := u16(buf, 0); m != IMAGE_DOS_SIGNATURE {
		return nil, malformed("bad dos signature 0x%04x", m)
	}

	lfanew, _ := u32(buf, offDosLfanew)
	if !CheckSize(len(buf), uint64(lfanew), 4+IMAGE_SIZEOF_FILE_HEADER) {
		return nil, malformed("e_lfanew 0x%x outside of image", lfanew)
	}
	if sig, _ := u32(buf, int(lfanew)); sig != IMAGE_NT_SIGNATURE {
		return nil, malformed("bad nt signature 0x%08x", sig)
	}

	img := &Image{buf: buf, fileOff: int(lfanew) + 4}
	img.optOff = img.fileOff + IMAGE_SIZEOF_FILE_HEADER

	optSize, _ := u16(buf, img.fileOff+offFileSizeOfOptionalHeader)
	img.optSize = int(optSize)
	if !CheckSize(len(buf), uint64(img.optOff), uint64(img.optSize)) {
		return nil, malformed("optional header of %d bytes outside of image", img.optSize)
	}
	if img.optSize < 2 {
		return nil, malformed("optional header of %d bytes", img.optSize)
	}

	img.magic, _ = u16(buf, img.optOff+offOptMagic)
	var need int
	switch img.magic {
	case IMAGE_NT_OPTIONAL_HDR32_MAGIC:
		need = offOpt32DataDirectory
	case IMAGE_NT_OPTIONAL_HDR64_MAGIC:
		need = offOpt64DataDirectory
	default:
		return nil, malformed("unknown optional header magic 0x%04x", img.magic)
	}
	if img.optSize < need {
		return nil, malformed("optional header of %d bytes, need at least %d", img.optSize, need)
	}

	nsect, _ := u16(buf, img.fileOff+offFileNumberOfSections)
	img.nsect = int(nsect)
	img.sectOff = img.optOff + img.optSize
	if !CheckSize(len(buf), uint64(img.sectOff), uint64(img.nsect)*IMAGE_SIZEOF_SECTION_HEADER) {
		return nil, malformed("section table of %d entries outside of image", img.nsect)
	}

	return img, nil
}

func (img *Image) Bytes() []byte { return img.buf }

func (img *Image) FileHeader() pe.FileHeader {
	var fh pe.FileHeader
	_ = binary.Read(bytes.NewReader(img.buf[img.fileOff:img.fileOff+IMAGE_SIZEOF_FILE_HEADER]), binary.LittleEndian, &fh)
	return fh
}

func (img *Image) Machine() uint16 {
	return binary.LittleEndian.Uint16(img.buf[img.fileOff+offFileMachine:])
}

func (img *Image) Magic() uint16 { return img.magic }

func (img *Image) Is64() bool { return img.magic == IMAGE_NT_OPTIONAL_HDR64_MAGIC }

func (img *Image) Characteristics() uint16 {
	return binary.LittleEndian.Uint16(img.buf[img.fileOff+offFileCharacteristics:])
}

func (img *Image) SetCharacteristics(v uint16) {
	binary.LittleEndian.PutUint16(img.buf[img.fileOff+offFileCharacteristics:], v)
}

func (img *Image) EntryPoint() uint32 {
	return binary.LittleEndian.Uint32(img.buf[img.optOff+offOptAddressOfEntryPoint:])
}

func (img *Image) SetEntryPoint(rva uint32) {
	binary.LittleEndian.PutUint32(img.buf[img.optOff+offOptAddressOfEntryPoint:], rva)
}

func (img *Image) SectionAlignment() uint32 {
	return binary.LittleEndian.Uint32(img.buf[img.optOff+offOptSectionAlignment:])
}

func (img *Image) FileAlignment() uint32 {
	return binary.LittleEndian.Uint32(img.buf[img.optOff+offOptFileAlignment:])
}

func (img *Image) SizeOfImage() uint32 {
	return binary.LittleEndian.Uint32(img.buf[img.optOff+offOptSizeOfImage:])
}

func (img *Image) SizeOfHeaders() uint32 {
	return binary.LittleEndian.Uint32(img.buf[img.optOff+offOptSizeOfHeaders:])
}

// CheckSumOffset is the file offset of the optional header CheckSum field.
func (img *Image) CheckSumOffset() int { return img.optOff + offOptCheckSum }

type Section struct {
	Index  int
	Name   string
	Header pe.SectionHeader32

	headerOff int
}

// raw returns the part of the section's raw data actually present in buf.
func (s *Section) raw(size int) (start, end uint32) {
	start = s.Header.PointerToRawData
	if uint64(start) >= uint64(size) {
		return start, start
	}
	e := uint64(start) + uint64(s.Header.SizeOfRawData)
	if e > uint64(size) {
		e = uint64(size)
	}
	return start, uint32(e)
}

func (img *Image) Sections() []Section {
	sections := make([]Section, img.nsect)
	for i := range sections {
		off := img.sectOff + i*IMAGE_SIZEOF_SECTION_HEADER
		s := &sections[i]
		s.Index = i
		s.headerOff = off
		_ = binary.Read(bytes.NewReader(img.buf[off:off+IMAGE_SIZEOF_SECTION_HEADER]), binary.LittleEndian, &s.Header)
		s.Name = strings.TrimRight(string(s.Header.Name[:]), "\x00")
	}
	return sections
}

func (img *Image) setVirtualSize(s *Section, v uint32) {
	binary.LittleEndian.PutUint32(img.buf[s.headerOff+offSectVirtualSize:], v)
	s.Header.VirtualSize = v
}

// OffsetToRVA maps a file offset to the RVA it is loaded at.
func (img *Image) OffsetToRVA(off uint32) (uint32, error) {
	sections := img.Sections()
	for i := range sections {
		start, end := sections[i].raw(len(img.buf))
		if off >= start && off < end {
			return sections[i].Header.VirtualAddress + (off - start), nil
		}
	}
	return 0, fmt.Errorf("%w: file offset 0x%x is in no section", ErrOffsetOutOfRange, off)
}

// RVAToOffset maps an RVA to a file offset, provided the byte exists on disk.
func (img *Image) RVAToOffset(rva uint32) (uint32, error) {
	sections := img.Sections()
	for i := range sections {
		s := &sections[i]
		start, end := s.raw(len(img.buf))
		if rva >= s.Header.VirtualAddress && uint64(rva-s.Header.VirtualAddress) < uint64(end-start) {
			return start + (rva - s.Header.VirtualAddress), nil
		}
	}
	return 0, fmt.Errorf("%w: rva 0x%x has no raw data", ErrOffsetOutOfRange, rva)
}

// DirectoryEntry is a mutable IMAGE_DATA_DIRECTORY inside the optional header.
type DirectoryEntry struct {
	buf []byte
	off int
}

func (img *Image) DirectoryEntry(kind int) (*DirectoryEntry, error) {
	countOff, dirOff := offOpt32NumberOfRvaAndSizes, offOpt32DataDirectory
	if img.Is64() {
		countOff, dirOff = offOpt64NumberOfRvaAndSizes, offOpt64DataDirectory
	}

	count := uint32(0)
	if img.optSize >= countOff+4 {
		count = binary.LittleEndian.Uint32(img.buf[img.optOff+countOff:])
	}
	if kind < 0 || uint32(kind) >= count {
		return nil, fmt.Errorf("%w: entry %d of %d", ErrDirectoryTableTooSmall, kind, count)
	}

	off := dirOff + kind*IMAGE_SIZEOF_DATA_DIRECTORY
	if off+IMAGE_SIZEOF_DATA_DIRECTORY > img.optSize {
		return nil, fmt.Errorf("%w: entry %d past %d byte optional header", ErrDirectoryTableTooSmall, kind, img.optSize)
	}
	return &DirectoryEntry{buf: img.buf, off: img.optOff + off}, nil
}

func (d *DirectoryEntry) VirtualAddress() uint32 {
	return binary.LittleEndian.Uint32(d.buf[d.off:])
}

func (d *DirectoryEntry) Size() uint32 {
	return binary.LittleEndian.Uint32(d.buf[d.off+4:])
}

func (d *DirectoryEntry) Set(va, size uint32) {
	binary.LittleEndian.PutUint32(d.buf[d.off:], va)
	binary.LittleEndian.PutUint32(d.buf[d.off+4:], size)
}
