package exe2dll

import (
	"debug/pe"
	"encoding/binary"
	"testing"

	"exe2dll/internal/pefixture"

	"github.com/stretchr/testify/require"
)

func Test_CheckExe(t *testing.T) {
	require.True(t, IsExe(pefixture.Default64().Build()))
	require.True(t, IsExe(pefixture.Default32().Build()))
	require.False(t, IsExe([]byte("not a portable executable")))

	t.Run("dll", func(t *testing.T) {
		m := pefixture.Default64()
		m.Characteristics |= pe.IMAGE_FILE_DLL
		_, err := CheckExe(m.Build())
		require.ErrorIs(t, err, ErrAlreadyDLL)
	})

	t.Run("arm64", func(t *testing.T) {
		m := pefixture.Default64()
		m.Machine = pe.IMAGE_FILE_MACHINE_ARM64
		_, err := CheckExe(m.Build())
		require.ErrorIs(t, err, ErrUnsupportedMachine)
	})

	t.Run("machine and magic disagree", func(t *testing.T) {
		buf := pefixture.Default32().Build()
		binary.LittleEndian.PutUint16(buf[0x84+offFileMachine:], pe.IMAGE_FILE_MACHINE_AMD64)
		_, err := CheckExe(buf)
		require.ErrorIs(t, err, ErrUnsupportedMachine)
	})

	t.Run("not executable", func(t *testing.T) {
		m := pefixture.Default64()
		m.Characteristics = pe.IMAGE_FILE_LARGE_ADDRESS_AWARE
		_, err := CheckExe(m.Build())
		require.ErrorIs(t, err, ErrMalformedImage)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := CheckExe(make([]byte, 0x400))
		require.ErrorIs(t, err, ErrMalformedImage)
	})
}

func Test_CheckRelocatable(t *testing.T) {
	check := func(m pefixture.Image) error {
		img, err := Open(m.Build())
		require.NoError(t, err)
		return CheckRelocatable(img)
	}

	require.NoError(t, check(pefixture.Default64()))
	require.NoError(t, check(pefixture.Default32()))
	require.True(t, IsSafeToConvert(pefixture.Default64().Build()))
	require.False(t, IsSafeToConvert(nil))

	for name, edit := range map[string]func(m *pefixture.Image){
		"no directory": func(m *pefixture.Image) {
			delete(m.Directories, pe.IMAGE_DIRECTORY_ENTRY_BASERELOC)
		},
		"stripped": func(m *pefixture.Image) {
			m.Characteristics |= pe.IMAGE_FILE_RELOCS_STRIPPED
		},
		"no raw data": func(m *pefixture.Image) {
			m.Directories[pe.IMAGE_DIRECTORY_ENTRY_BASERELOC] = pe.DataDirectory{VirtualAddress: 0x4f00, Size: 12}
		},
		"runs past file": func(m *pefixture.Image) {
			m.Directories[pe.IMAGE_DIRECTORY_ENTRY_BASERELOC] = pe.DataDirectory{VirtualAddress: 0x4000, Size: 0x1000}
		},
		"no block": func(m *pefixture.Image) {
			m.Directories[pe.IMAGE_DIRECTORY_ENTRY_BASERELOC] = pe.DataDirectory{VirtualAddress: 0x4000, Size: 4}
		},
		"bad block": func(m *pefixture.Image) {
			m.Sections[2].Data = pefixture.RelocBlock(0x1000, pefixture.IMAGE_REL_BASED_DIR64, 1, 2, 3, 4)
		},
		"short table": func(m *pefixture.Image) {
			m.NumberOfRvaAndSizes = 4
		},
	} {
		t.Run(name, func(t *testing.T) {
			m := pefixture.Default64()
			edit(&m)
			require.ErrorIs(t, check(m), ErrNotRelocatable)
		})
	}
}

func Test_CheckNoExports(t *testing.T) {
	m := pefixture.Default64()
	img, err := Open(m.Build())
	require.NoError(t, err)
	require.NoError(t, checkNoExports(img))

	m.Directories[pe.IMAGE_DIRECTORY_ENTRY_EXPORT] = pe.DataDirectory{VirtualAddress: 0x4000, Size: 40}
	img, err = Open(m.Build())
	require.NoError(t, err)
	require.ErrorIs(t, checkNoExports(img), ErrExportsPresent)
}
