// Package verify re-reads a converted image with parsers that share no code
// with the converter: debug/pe for the headers, saferwall/pe for exports.
package verify

import (
	"bytes"
	"debug/pe"
	"errors"
	"fmt"

	peparser "github.com/saferwall/pe"
)

var ErrMismatch = errors.New("verification failed")

type Export struct {
	Name    string
	Ordinal uint32
	RVA     uint32
}

type Report struct {
	Machine    uint16
	DLL        bool
	EntryPoint uint32
	Module     string
	Exports    []Export
}

func Inspect(image []byte) (*Report, error) {
	f, err := pe.NewFile(bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("debug/pe: %w", err)
	}
	defer f.Close()

	r := &Report{
		Machine: f.FileHeader.Machine,
		DLL:     f.FileHeader.Characteristics&pe.IMAGE_FILE_DLL != 0,
	}
	switch oh := f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		r.EntryPoint = oh.AddressOfEntryPoint
	case *pe.OptionalHeader64:
		r.EntryPoint = oh.AddressOfEntryPoint
	default:
		return nil, fmt.Errorf("debug/pe: no optional header")
	}

	p, err := peparser.NewBytes(image, &peparser.Options{})
	if err != nil {
		return nil, fmt.Errorf("saferwall/pe: %w", err)
	}
	if err := p.Parse(); err != nil {
		return nil, fmt.Errorf("saferwall/pe: %w", err)
	}
	if p.HasExport {
		r.Module = p.Export.Name
		for _, fn := range p.Export.Functions {
			r.Exports = append(r.Exports, Export{Name: fn.Name, Ordinal: fn.Ordinal, RVA: fn.FunctionRVA})
		}
	}
	return r, nil
}

// Check confirms image is a DLL entered at stub that exports exactly one
// function, name, at rva.
func Check(image []byte, name string, rva, stub uint32) error {
	r, err := Inspect(image)
	if err != nil {
		return err
	}
	if !r.DLL {
		return fmt.Errorf("%w: IMAGE_FILE_DLL not set", ErrMismatch)
	}
	if r.EntryPoint != stub {
		return fmt.Errorf("%w: entry point 0x%x, want 0x%x", ErrMismatch, r.EntryPoint, stub)
	}
	if len(r.Exports) != 1 {
		return fmt.Errorf("%w: %d exports, want 1", ErrMismatch, len(r.Exports))
	}
	if e := r.Exports[0]; e.Name != name || e.RVA != rva {
		return fmt.Errorf("%w: export %q at 0x%x, want %q at 0x%x", ErrMismatch, e.Name, e.RVA, name, rva)
	}
	return nil
}
