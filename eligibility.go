package exe2dll

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"fmt"
)

// IsExe reports whether buf is a PE32/PE32+ x86 executable that is not
// already a DLL.
func IsExe(buf []byte) bool {
	_, err := CheckExe(buf)
	return err == nil
}

// IsSafeToConvert reports whether buf carries a usable base relocation table.
func IsSafeToConvert(buf []byte) bool {
	img, err := Open(buf)
	if err != nil {
		return false
	}
	return CheckRelocatable(img) == nil
}

func CheckExe(buf []byte) (*Image, error) {
	img, err := Open(buf)
	if err != nil {
		return nil, err
	}

	switch m := img.Machine(); {
	case m == pe.IMAGE_FILE_MACHINE_I386 && img.Magic() == IMAGE_NT_OPTIONAL_HDR32_MAGIC:
	case m == pe.IMAGE_FILE_MACHINE_AMD64 && img.Magic() == IMAGE_NT_OPTIONAL_HDR64_MAGIC:
	default:
		return nil, fmt.Errorf("%w: machine 0x%04x with optional header magic 0x%04x", ErrUnsupportedMachine, m, img.Magic())
	}

	c := img.Characteristics()
	if c&pe.IMAGE_FILE_DLL != 0 {
		return nil, ErrAlreadyDLL
	}
	if c&pe.IMAGE_FILE_EXECUTABLE_IMAGE == 0 {
		return nil, malformed("characteristics 0x%04x lack the executable image flag", c)
	}
	return img, nil
}

// CheckRelocatable requires a non-empty base relocation directory whose
// blocks lie in raw data. Relocations are never synthesized.
func CheckRelocatable(img *Image) error {
	if img.Characteristics()&pe.IMAGE_FILE_RELOCS_STRIPPED != 0 {
		return fmt.Errorf("%w: relocations stripped", ErrNotRelocatable)
	}

	dir, err := img.DirectoryEntry(pe.IMAGE_DIRECTORY_ENTRY_BASERELOC)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotRelocatable, err)
	}
	if dir.VirtualAddress() == 0 || dir.Size() == 0 {
		return fmt.Errorf("%w: empty relocation directory", ErrNotRelocatable)
	}

	off, err := img.RVAToOffset(dir.VirtualAddress())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotRelocatable, err)
	}
	if !CheckSize(len(img.buf), uint64(off), uint64(dir.Size())) {
		return fmt.Errorf("%w: relocation directory of %d bytes runs past the file", ErrNotRelocatable, dir.Size())
	}

	var block IMAGE_BASE_RELOCATION
	if dir.Size() < uint32(binary.Size(block)) {
		return fmt.Errorf("%w: relocation directory of %d bytes holds no block", ErrNotRelocatable, dir.Size())
	}
	_ = binary.Read(bytes.NewReader(img.buf[off:]), binary.LittleEndian, &block)
	if block.SizeOfBlock < uint32(binary.Size(block)) || block.SizeOfBlock > dir.Size() {
		return fmt.Errorf("%w: first relocation block has size %d", ErrNotRelocatable, block.SizeOfBlock)
	}
	return nil
}

// checkNoExports rejects images that already export something; merging with
// an existing table is not supported.
func checkNoExports(img *Image) error {
	dir, err := img.DirectoryEntry(pe.IMAGE_DIRECTORY_ENTRY_EXPORT)
	if err != nil {
		return err
	}
	if dir.VirtualAddress() != 0 || dir.Size() != 0 {
		return fmt.Errorf("%w: rva 0x%x size %d", ErrExportsPresent, dir.VirtualAddress(), dir.Size())
	}
	return nil
}
