package imagefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ReadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.dll")

	require.NoError(t, Write(path, []byte("MZ first"), 0o644))
	require.NoError(t, Write(path, []byte("MZ second"), 0o644))

	buf, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, []byte("MZ second"), buf)

	// the copy is private
	buf[0] = 'X'
	again, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, byte('M'), again[0])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func Test_ReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Read(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Read(empty)
	require.Error(t, err)
}

func Test_WriteFailure(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "missing", "a.dll"), []byte("MZ"), 0o644)
	require.Error(t, err)
}
