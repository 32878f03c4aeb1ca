package exe2dll

import (
	"bytes"
	"encoding/binary"
	"testing"

	"exe2dll/internal/pefixture"

	"github.com/stretchr/testify/require"
)

func Test_ValidateExportName(t *testing.T) {
	for _, ok := range []string{"Start", "main", "_DllEntry@12", "?x@@YAXXZ"} {
		require.NoError(t, ValidateExportName(ok), ok)
	}
	for _, bad := range []string{"", "two words", "nul\x00", "tab\t", "caf\xc3\xa9", "\x7f"} {
		require.ErrorIs(t, ValidateExportName(bad), ErrInvalidExportName, bad)
	}
}

func Test_ExportTable(t *testing.T) {
	a, buf := newAllocator(t, pefixture.Default64())
	_, err := a.Claim("stub", 6, alignStub, PermRead|PermExecute)
	require.NoError(t, err)

	table, err := planExportTable(a, "out.dll", "Start")
	require.NoError(t, err)

	require.Equal(t, uint32(0x2007), table.ModuleName.Offset)
	require.Equal(t, uint32(0x2010), table.FunctionName.Offset)
	require.Equal(t, uint32(0x3018), table.Functions.RVA)
	require.Equal(t, uint32(0x3020), table.Names.RVA)
	require.Equal(t, uint32(0x3028), table.Ordinals.RVA)
	require.Equal(t, uint32(0x302C), table.Directory.RVA)
	require.Equal(t, uint32(IMAGE_SIZEOF_EXPORT_DIR), table.Directory.Size)
	for _, c := range []Cave{table.Functions, table.Names, table.Ordinals, table.Directory} {
		require.Zero(t, c.RVA%alignTable, c.Label)
	}

	require.NoError(t, table.write(buf, 0x1500))

	require.Equal(t, []byte("out.dll\x00"), buf[0x2007:0x2007+8])
	require.Equal(t, []byte("Start\x00"), buf[0x2010:0x2016])
	require.Equal(t, uint32(0x1500), binary.LittleEndian.Uint32(buf[0x2018:]))
	require.Equal(t, uint32(0x3010), binary.LittleEndian.Uint32(buf[0x2020:]))
	require.Equal(t, uint16(0), binary.LittleEndian.Uint16(buf[0x2028:]))

	var dir IMAGE_EXPORT_DIRECTORY
	require.NoError(t, binary.Read(bytes.NewReader(buf[0x202C:0x202C+IMAGE_SIZEOF_EXPORT_DIR]), binary.LittleEndian, &dir))
	require.Equal(t, IMAGE_EXPORT_DIRECTORY{
		Name:                  0x3007,
		Base:                  1,
		NumberOfFunctions:     1,
		NumberOfNames:         1,
		AddressOfFunctions:    0x3018,
		AddressOfNames:        0x3020,
		AddressOfNameOrdinals: 0x3028,
	}, dir)
}
