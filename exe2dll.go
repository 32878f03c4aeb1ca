// Package exe2dll turns a relocatable PE executable into a DLL whose only
// export is the executable's original entry point.
package exe2dll

import (
	"fmt"
	"strings"
)

const DefaultDLLName = "module.dll"

// Stage is one step of a conversion. Stages run in declaration order and
// never go back.
type Stage int

const (
	StageValidated Stage = iota
	StageCavesReserved
	StageStubWritten
	StageExportTableWritten
	StageHeadersPatched
	StageDone
)

var stageNames = [...]string{
	StageValidated:          "validate",
	StageCavesReserved:      "reserve caves",
	StageStubWritten:        "write stub",
	StageExportTableWritten: "write export table",
	StageHeadersPatched:     "patch headers",
	StageDone:               "done",
}

func (s Stage) String() string {
	if s >= 0 && int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

type Options struct {
	// ExportName is the name the original entry point is exported under.
	ExportName string
	// DLLName is stored as the export table module name.
	DLLName string
	// FixChecksum recomputes the optional header CheckSum when done.
	FixChecksum bool
}

type Result struct {
	Image   []byte
	Bitness Bitness

	OriginalEntryPoint uint32
	EntryPoint         uint32 // DllMain stub
	ExportDirectory    uint32
	Checksum           uint32

	Stub   Cave
	Export ExportTable
	Caves  []Cave // every reservation, in the order it was made
}

// Convert rewrites image in place. On error the buffer must be treated as
// scratch: nothing is written before every cave has been reserved, but
// later stages do not roll back.
func Convert(image []byte, opts Options) (*Result, error) {
	fail := func(stage Stage, err error) (*Result, error) {
		return nil, &StageError{Stage: stage, Err: err}
	}
	if opts.DLLName == "" {
		opts.DLLName = DefaultDLLName
	}

	var img *Image
	var bits Bitness
	{ // validate
		var err error
		if err = ValidateExportName(opts.ExportName); err != nil {
			return fail(StageValidated, err)
		}
		if strings.IndexByte(opts.DLLName, 0) >= 0 {
			return fail(StageValidated, fmt.Errorf("%w: nul in module name %q", ErrInvalidExportName, opts.DLLName))
		}
		if img, err = CheckExe(image); err != nil {
			return fail(StageValidated, err)
		}
		if err = CheckRelocatable(img); err != nil {
			return fail(StageValidated, err)
		}
		if err = checkNoExports(img); err != nil {
			return fail(StageValidated, err)
		}
		if bits, err = BitnessOf(img.Machine()); err != nil {
			return fail(StageValidated, err)
		}
		if img.EntryPoint() == 0 {
			return fail(StageValidated, malformed("executable has no entry point"))
		}
	}

	var alloc = NewAllocator(img)
	var code = Stub(bits)
	var stub Cave
	var table *ExportTable
	{ // reserve caves, stub first then the export artifacts
		var err error
		if stub, err = alloc.Claim("entry point stub", uint32(len(code)), alignStub, PermRead|PermExecute); err != nil {
			return fail(StageCavesReserved, err)
		}
		if table, err = planExportTable(alloc, opts.DLLName, opts.ExportName); err != nil {
			return fail(StageCavesReserved, err)
		}
	}

	{ // write stub
		if err := stub.Fill(image, code); err != nil {
			return fail(StageStubWritten, err)
		}
	}

	var entry = img.EntryPoint()
	{ // write export table
		if err := table.write(image, entry); err != nil {
			return fail(StageExportTableWritten, err)
		}
	}

	var result = &Result{
		Image:              image,
		Bitness:            bits,
		OriginalEntryPoint: entry,
		EntryPoint:         stub.RVA,
		ExportDirectory:    table.Directory.RVA,
		Stub:               stub,
		Export:             *table,
		Caves:              alloc.Reserved(),
	}
	{ // patch headers
		alloc.grow()
		SetDLLFlag(img)
		RedirectEntryPoint(img, stub.RVA)
		if err := SetExportDirectory(img, table.Directory.RVA); err != nil {
			return fail(StageHeadersPatched, err)
		}
		if opts.FixChecksum {
			sum, err := UpdateChecksum(image)
			if err != nil {
				return fail(StageHeadersPatched, err)
			}
			result.Checksum = sum
		}
	}

	return result, nil
}
