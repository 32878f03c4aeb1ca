// Package pefixture builds small, deterministic PE images for tests.
package pefixture

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
)

const (
	FileAlignment    = 0x200
	SectionAlignment = 0x1000
	SizeOfHeaders    = 0x400

	lfanew = 0x80

	IMAGE_REL_BASED_HIGHLOW = 3
	IMAGE_REL_BASED_DIR64   = 10

	CodeCharacteristics  = pe.IMAGE_SCN_CNT_CODE | pe.IMAGE_SCN_MEM_EXECUTE | pe.IMAGE_SCN_MEM_READ
	DataCharacteristics  = pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_READ | pe.IMAGE_SCN_MEM_WRITE
	RelocCharacteristics = pe.IMAGE_SCN_CNT_INITIALIZED_DATA | pe.IMAGE_SCN_MEM_DISCARDABLE | pe.IMAGE_SCN_MEM_READ
)

// DOS .EXE header
type IMAGE_DOS_HEADER struct {
	E_magic    uint16
	E_cblp     uint16
	E_cp       uint16
	E_crlc     uint16
	E_cparhdr  uint16
	E_minalloc uint16
	E_maxalloc uint16
	E_ss       uint16
	E_sp       uint16
	E_csum     uint16
	E_ip       uint16
	E_cs       uint16
	E_lfarlc   uint16
	E_ovno     uint16
	E_res      [4]uint16
	E_oemid    uint16
	E_oeminfo  uint16
	E_res2     [10]uint16
	E_lfanew   int32
}

type Section struct {
	Name             string
	VirtualAddress   uint32
	VirtualSize      uint32
	PointerToRawData uint32
	SizeOfRawData    uint32
	Characteristics  uint32

	// Fill covers the first VirtualSize raw bytes; the tail stays zero.
	Fill byte
	// Data is copied to the start of the raw data, after Fill.
	Data []byte
}

type Image struct {
	Machine             uint16
	Characteristics     uint16
	EntryPoint          uint32
	SizeOfImage         uint32
	NumberOfRvaAndSizes uint32
	Directories         map[int]pe.DataDirectory
	Sections            []Section
}

func (m Image) Is64() bool { return m.Machine == pe.IMAGE_FILE_MACHINE_AMD64 }

// RelocBlock encodes one IMAGE_BASE_RELOCATION block for page.
func RelocBlock(page uint32, typ uint16, offsets ...uint16) []byte {
	entries := len(offsets)
	if entries%2 != 0 {
		entries++ // keep blocks DWORD aligned
	}
	b := make([]byte, 8+2*entries)
	binary.LittleEndian.PutUint32(b[0:], page)
	binary.LittleEndian.PutUint32(b[4:], uint32(len(b)))
	for i, off := range offsets {
		binary.LittleEndian.PutUint16(b[8+2*i:], typ<<12|off&0xfff)
	}
	return b
}

// Default64 is a PE32+ console executable:
//
//	.text  rva 0x1000 raw 0x0400 full, entry point 0x1500
//	.code  rva 0x2000 raw 0x1000 0x201 byte tail starting at raw 0x1fff
//	.reloc rva 0x4000 raw 0x2200 one DIR64 block
func Default64() Image {
	return defaults(pe.IMAGE_FILE_MACHINE_AMD64,
		pe.IMAGE_FILE_EXECUTABLE_IMAGE|pe.IMAGE_FILE_LARGE_ADDRESS_AWARE,
		RelocBlock(0x1000, IMAGE_REL_BASED_DIR64, 0x010))
}

// Default32 is the PE32 twin of Default64.
func Default32() Image {
	return defaults(pe.IMAGE_FILE_MACHINE_I386,
		pe.IMAGE_FILE_EXECUTABLE_IMAGE|pe.IMAGE_FILE_32BIT_MACHINE,
		RelocBlock(0x1000, IMAGE_REL_BASED_HIGHLOW, 0x010))
}

func defaults(machine, characteristics uint16, reloc []byte) Image {
	return Image{
		Machine:             machine,
		Characteristics:     characteristics,
		EntryPoint:          0x1500,
		SizeOfImage:         0x5000,
		NumberOfRvaAndSizes: 16,
		Directories: map[int]pe.DataDirectory{
			pe.IMAGE_DIRECTORY_ENTRY_BASERELOC: {VirtualAddress: 0x4000, Size: uint32(len(reloc))},
		},
		Sections: []Section{
			{
				Name:             ".text",
				VirtualAddress:   0x1000,
				VirtualSize:      0xC00,
				PointerToRawData: 0x400,
				SizeOfRawData:    0xC00,
				Characteristics:  CodeCharacteristics,
				Fill:             0xCC,
			},
			{
				Name:             ".code",
				VirtualAddress:   0x2000,
				VirtualSize:      0xFFF,
				PointerToRawData: 0x1000,
				SizeOfRawData:    0x1200,
				Characteristics:  CodeCharacteristics,
				Fill:             0x90,
			},
			{
				Name:             ".reloc",
				VirtualAddress:   0x4000,
				VirtualSize:      uint32(len(reloc)),
				PointerToRawData: 0x2200,
				SizeOfRawData:    0x200,
				Characteristics:  RelocCharacteristics,
				Data:             reloc,
			},
		},
	}
}

// Build lays the image out exactly as described; nothing is recomputed.
func (m Image) Build() []byte {
	var size uint32 = SizeOfHeaders
	for _, s := range m.Sections {
		if end := s.PointerToRawData + s.SizeOfRawData; end > size {
			size = end
		}
	}
	buf := make([]byte, size)

	var hdr bytes.Buffer
	{ // dos header, stub left zero
		dos := IMAGE_DOS_HEADER{E_magic: 0x5A4D, E_cblp: 0x90, E_cp: 3, E_cparhdr: 4, E_maxalloc: 0xFFFF, E_sp: 0xB8, E_lfarlc: 0x40, E_lfanew: lfanew}
		_ = binary.Write(&hdr, binary.LittleEndian, &dos)
		hdr.Write(make([]byte, lfanew-hdr.Len()))
		_ = binary.Write(&hdr, binary.LittleEndian, uint32(0x00004550))
	}

	var dirs [16]pe.DataDirectory
	for i, d := range m.Directories {
		dirs[i] = d
	}

	var opt any
	if m.Is64() {
		opt = &pe.OptionalHeader64{
			Magic:                       0x20b,
			MajorLinkerVersion:          14,
			AddressOfEntryPoint:         m.EntryPoint,
			BaseOfCode:                  0x1000,
			ImageBase:                   0x140000000,
			SectionAlignment:            SectionAlignment,
			FileAlignment:               FileAlignment,
			MajorOperatingSystemVersion: 6,
			MajorSubsystemVersion:       6,
			SizeOfImage:                 m.SizeOfImage,
			SizeOfHeaders:               SizeOfHeaders,
			Subsystem:                   pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
			DllCharacteristics:          pe.IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE | pe.IMAGE_DLLCHARACTERISTICS_NX_COMPAT,
			SizeOfStackReserve:          0x100000,
			SizeOfStackCommit:           0x1000,
			SizeOfHeapReserve:           0x100000,
			SizeOfHeapCommit:            0x1000,
			NumberOfRvaAndSizes:         m.NumberOfRvaAndSizes,
			DataDirectory:               dirs,
		}
	} else {
		opt = &pe.OptionalHeader32{
			Magic:                       0x10b,
			MajorLinkerVersion:          14,
			AddressOfEntryPoint:         m.EntryPoint,
			BaseOfCode:                  0x1000,
			BaseOfData:                  0x2000,
			ImageBase:                   0x400000,
			SectionAlignment:            SectionAlignment,
			FileAlignment:               FileAlignment,
			MajorOperatingSystemVersion: 6,
			MajorSubsystemVersion:       6,
			SizeOfImage:                 m.SizeOfImage,
			SizeOfHeaders:               SizeOfHeaders,
			Subsystem:                   pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
			DllCharacteristics:          pe.IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE | pe.IMAGE_DLLCHARACTERISTICS_NX_COMPAT,
			SizeOfStackReserve:          0x100000,
			SizeOfStackCommit:           0x1000,
			SizeOfHeapReserve:           0x100000,
			SizeOfHeapCommit:            0x1000,
			NumberOfRvaAndSizes:         m.NumberOfRvaAndSizes,
			DataDirectory:               dirs,
		}
	}

	{ // file header, optional header, section table
		fh := pe.FileHeader{
			Machine:              m.Machine,
			NumberOfSections:     uint16(len(m.Sections)),
			SizeOfOptionalHeader: uint16(binary.Size(opt)),
			Characteristics:      m.Characteristics,
		}
		_ = binary.Write(&hdr, binary.LittleEndian, &fh)
		_ = binary.Write(&hdr, binary.LittleEndian, opt)

		for _, s := range m.Sections {
			sh := pe.SectionHeader32{
				VirtualSize:      s.VirtualSize,
				VirtualAddress:   s.VirtualAddress,
				SizeOfRawData:    s.SizeOfRawData,
				PointerToRawData: s.PointerToRawData,
				Characteristics:  s.Characteristics,
			}
			copy(sh.Name[:], s.Name)
			_ = binary.Write(&hdr, binary.LittleEndian, &sh)
		}
	}
	copy(buf, hdr.Bytes())

	for _, s := range m.Sections {
		raw := buf[s.PointerToRawData : s.PointerToRawData+s.SizeOfRawData]
		n := s.VirtualSize
		if n > s.SizeOfRawData {
			n = s.SizeOfRawData
		}
		for i := uint32(0); i < n; i++ {
			raw[i] = s.Fill
		}
		copy(raw, s.Data)
	}
	return buf
}
