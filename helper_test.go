package exe2dll

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_AlignValueUp(t *testing.T) {
	require.Equal(t, uint32(0x3000), AlignValueUp(0x3000, 16))
	require.Equal(t, uint32(0x3010), AlignValueUp(0x3001, 16))
	require.Equal(t, uint32(0x2000), AlignValueUp(0x1001, 0x1000))
	require.Equal(t, uint32(7), AlignValueUp(7, 1))
	require.Equal(t, uint32(7), AlignValueUp(7, 0))
}

func Test_CheckSize(t *testing.T) {
	require.True(t, CheckSize(8, 0, 8))
	require.True(t, CheckSize(8, 8, 0))
	require.False(t, CheckSize(8, 9, 0))
	require.False(t, CheckSize(8, 4, 5))
	require.False(t, CheckSize(8, 1, math.MaxUint64))
}

func Test_ReadWrite(t *testing.T) {
	var data = []byte{1, 2, 3, 4, 5, 6}

	v, ok := u32(data, 1)
	require.True(t, ok)
	require.Equal(t, uint32(0x05040302), v)

	_, ok = u32(data, 3)
	require.False(t, ok)

	require.True(t, putU16(data, 4, 0xf00f))
	require.Equal(t, []byte{1, 2, 3, 4, 0x0f, 0xf0}, data)
	require.False(t, putU32(data, 4, 0))
	require.False(t, putU16(data, -1, 0))
}

func Test_Cstring(t *testing.T) {
	require.Equal(t, []byte("Start\x00"), cstring("Start"))
	require.Equal(t, []byte{0}, cstring(""))
}
