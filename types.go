// winnt.h
package exe2dll

import "debug/pe"

type (
	BYTE  = byte
	WORD  = uint16
	DWORD = uint32
	LONG  = int32
)

const (
	IMAGE_DOS_SIGNATURE = 0x5A4D     // MZ
	IMAGE_NT_SIGNATURE  = 0x00004550 // PE00

	IMAGE_NT_OPTIONAL_HDR32_MAGIC = 0x10b
	IMAGE_NT_OPTIONAL_HDR64_MAGIC = 0x20b

	IMAGE_SIZEOF_DOS_HEADER     = 64
	IMAGE_SIZEOF_FILE_HEADER    = 20
	IMAGE_SIZEOF_SECTION_HEADER = 40
	IMAGE_SIZEOF_DATA_DIRECTORY = 8
	IMAGE_SIZEOF_EXPORT_DIR     = 40
)

// e_lfanew sits at the end of IMAGE_DOS_HEADER.
const offDosLfanew = 0x3C

// IMAGE_FILE_HEADER field offsets, relative to the file header.
const (
	offFileMachine              = 0
	offFileNumberOfSections     = 2
	offFileSizeOfOptionalHeader = 16
	offFileCharacteristics      = 18
)

// IMAGE_OPTIONAL_HEADER field offsets shared by PE32 and PE32+.
const (
	offOptMagic               = 0
	offOptAddressOfEntryPoint = 16
	offOptSectionAlignment    = 32
	offOptFileAlignment       = 36
	offOptSizeOfImage         = 56
	offOptSizeOfHeaders       = 60
	offOptCheckSum            = 64
)

// NumberOfRvaAndSizes and DataDirectory differ because ImageBase and the
// stack/heap sizes widen to 64 bits in PE32+.
const (
	offOpt32NumberOfRvaAndSizes = 92
	offOpt32DataDirectory       = 96
	offOpt64NumberOfRvaAndSizes = 108
	offOpt64DataDirectory       = 112
)

// IMAGE_SECTION_HEADER field offsets.
const (
	offSectVirtualSize      = 8
	offSectVirtualAddress   = 12
	offSectSizeOfRawData    = 16
	offSectPointerToRawData = 20
	offSectCharacteristics  = 36
)

// typedef struct _IMAGE_EXPORT_DIRECTORY {...} IMAGE_EXPORT_DIRECTORY;
type IMAGE_EXPORT_DIRECTORY struct {
	Characteristics       DWORD
	TimeDateStamp         DWORD
	MajorVersion          WORD
	MinorVersion          WORD
	Name                  DWORD
	Base                  DWORD
	NumberOfFunctions     DWORD
	NumberOfNames         DWORD
	AddressOfFunctions    DWORD // RVA of array of function RVAs
	AddressOfNames        DWORD // RVA of array of name RVAs
	AddressOfNameOrdinals DWORD // RVA of array of WORD ordinals
}

type IMAGE_DATA_DIRECTORY = pe.DataDirectory

type IMAGE_BASE_RELOCATION struct {
	VirtualAddress DWORD
	SizeOfBlock    DWORD
}
