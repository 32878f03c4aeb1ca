package exe2dll

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedImage     = errors.New("malformed image")
	ErrUnsupportedMachine = errors.New("unsupported machine")
	ErrAlreadyDLL         = errors.New("image is already a dll")
	ErrNotRelocatable     = errors.New("image is not relocatable")
	ErrExportsPresent     = errors.New("image already has an export directory")
	ErrNoSuitableCave     = errors.New("no suitable cave")
	ErrInvalidExportName  = errors.New("invalid export name")

	ErrOffsetOutOfRange       error = &malformedError{"offset out of range"}
	ErrDirectoryTableTooSmall error = &malformedError{"data directory table too small"}
)

// malformedError is a sentinel that also matches ErrMalformedImage.
type malformedError struct{ msg string }

func (e *malformedError) Error() string { return e.msg }

func (e *malformedError) Is(target error) bool { return target == ErrMalformedImage }

func malformed(format string, a ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedImage}, a...)...)
}

// StageError records the pipeline stage a conversion failed to reach.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
