//go:build !windows
// +build !windows

package memorymodule

import "errors"

var ErrUnsupported = errors.New("loading dlls is only supported on windows")

func Probe(path, export string) (uintptr, error) {
	return 0, ErrUnsupported
}
