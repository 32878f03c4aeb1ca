//go:build windows
// +build windows

package memorymodule

import (
	"fmt"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// Probe loads the DLL at path into this process, resolves export and unloads
// it again. The converted DllMain does nothing, so loading is harmless; the
// export itself is never called.
func Probe(path, export string) (uintptr, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}

	handle, err := windows.LoadLibraryEx(abs, 0, windows.LOAD_WITH_ALTERED_SEARCH_PATH)
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", abs, err)
	}
	defer func() {
		_ = windows.FreeLibrary(handle)
	}()

	proc, err := windows.GetProcAddress(handle, export)
	if err != nil {
		return 0, fmt.Errorf("resolve %s!%s: %w", filepath.Base(abs), export, err)
	}
	return proc - uintptr(handle), nil
}
