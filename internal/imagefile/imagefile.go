// Package imagefile moves PE images between disk and memory. Conversion
// itself never touches the file system.
package imagefile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
)

// Read maps path read-only and returns a private, writable copy.
func Read(path string) ([]byte, error) {
	handle, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = handle.Close()
	}()

	st, err := handle.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	data, err := mmap.Map(handle, mmap.RDONLY, 0)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	if err := data.Unmap(); err != nil {
		return nil, err
	}
	return buf, nil
}

// Write replaces path with data, or leaves it untouched on failure.
func Write(path string, data []byte, perm os.FileMode) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Chmod(perm); err != nil && !errors.Is(err, os.ErrInvalid) {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
