package exe2dll

import (
	"debug/pe"
	"testing"

	"exe2dll/internal/pefixture"

	"github.com/stretchr/testify/require"
)

func Test_HeaderRewrite(t *testing.T) {
	img, err := Open(pefixture.Default64().Build())
	require.NoError(t, err)
	before := img.Characteristics()

	SetDLLFlag(img)
	require.Equal(t, before|pe.IMAGE_FILE_DLL, img.Characteristics())

	require.Equal(t, uint32(0x1500), RedirectEntryPoint(img, 0x3000))
	require.Equal(t, uint32(0x3000), img.EntryPoint())

	require.NoError(t, SetExportDirectory(img, 0x302C))
	dir, err := img.DirectoryEntry(pe.IMAGE_DIRECTORY_ENTRY_EXPORT)
	require.NoError(t, err)
	require.Equal(t, uint32(0x302C), dir.VirtualAddress())
	require.Equal(t, uint32(IMAGE_SIZEOF_EXPORT_DIR), dir.Size())

	m := pefixture.Default64()
	m.NumberOfRvaAndSizes = 0
	img, err = Open(m.Build())
	require.NoError(t, err)
	require.ErrorIs(t, SetExportDirectory(img, 0x302C), ErrDirectoryTableTooSmall)
}
