package exe2dll

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	exportOrdinalBase = 1

	alignStub   = 16
	alignTable  = 4
	alignString = 1
)

// ValidateExportName accepts printable ASCII without spaces.
func ValidateExportName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidExportName)
	}
	for i := 0; i < len(name); i++ {
		if c := name[i]; c <= ' ' || c > '~' {
			return fmt.Errorf("%w: byte 0x%02x at %d in %q", ErrInvalidExportName, c, i, name)
		}
	}
	return nil
}

// ExportTable records where each piece of the single-entry export table
// lives. Every RVA is known before the directory itself is encoded.
type ExportTable struct {
	ModuleName   Cave
	FunctionName Cave
	Functions    Cave // AddressOfFunctions, one DWORD
	Names        Cave // AddressOfNames, one DWORD
	Ordinals     Cave // AddressOfNameOrdinals, one WORD
	Directory    Cave

	moduleName   []byte
	functionName []byte
}

func planExportTable(a *Allocator, moduleName, functionName string) (*ExportTable, error) {
	t := &ExportTable{
		moduleName:   cstring(moduleName),
		functionName: cstring(functionName),
	}

	steps := []struct {
		dst   *Cave
		label string
		size  uint32
		align uint32
	}{
		{&t.ModuleName, "export module name", uint32(len(t.moduleName)), alignString},
		{&t.FunctionName, "export function name", uint32(len(t.functionName)), alignString},
		{&t.Functions, "export address table", 4, alignTable},
		{&t.Names, "export name pointer table", 4, alignTable},
		{&t.Ordinals, "export ordinal table", 2, alignTable},
		{&t.Directory, "export directory", IMAGE_SIZEOF_EXPORT_DIR, alignTable},
	}
	for _, s := range steps {
		c, err := a.Claim(s.label, s.size, s.align, PermRead)
		if err != nil {
			return nil, err
		}
		*s.dst = c
	}
	return t, nil
}

func (t *ExportTable) directory() IMAGE_EXPORT_DIRECTORY {
	return IMAGE_EXPORT_DIRECTORY{
		Name:                  t.ModuleName.RVA,
		Base:                  exportOrdinalBase,
		NumberOfFunctions:     1,
		NumberOfNames:         1,
		AddressOfFunctions:    t.Functions.RVA,
		AddressOfNames:        t.Names.RVA,
		AddressOfNameOrdinals: t.Ordinals.RVA,
	}
}

// write fills the planned caves. entry is the image's original entry point.
func (t *ExportTable) write(buf []byte, entry uint32) error {
	functions := make([]byte, 4)
	binary.LittleEndian.PutUint32(functions, entry)

	names := make([]byte, 4)
	binary.LittleEndian.PutUint32(names, t.FunctionName.RVA)

	// name index 0 -> function index 0, ordinal Base+0
	ordinals := make([]byte, 2)

	var dir bytes.Buffer
	if err := binary.Write(&dir, binary.LittleEndian, t.directory()); err != nil {
		return err
	}

	for _, w := range []struct {
		c       Cave
		payload []byte
	}{
		{t.ModuleName, t.moduleName},
		{t.FunctionName, t.functionName},
		{t.Functions, functions},
		{t.Names, names},
		{t.Ordinals, ordinals},
		{t.Directory, dir.Bytes()},
	} {
		if err := w.c.Fill(buf, w.payload); err != nil {
			return err
		}
	}
	return nil
}
