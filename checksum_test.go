package exe2dll

import (
	"encoding/binary"
	"testing"

	"exe2dll/internal/pefixture"

	"github.com/stretchr/testify/require"
)

func Test_UpdateChecksum(t *testing.T) {
	buf := pefixture.Default64().Build()
	img, err := Open(buf)
	require.NoError(t, err)

	sum, err := UpdateChecksum(buf)
	require.NoError(t, err)
	require.GreaterOrEqual(t, sum, uint32(len(buf)))
	require.Equal(t, sum, binary.LittleEndian.Uint32(buf[img.CheckSumOffset():]))

	// the stored field does not feed back into the sum
	again, err := UpdateChecksum(buf)
	require.NoError(t, err)
	require.Equal(t, sum, again)

	buf[0x900] ^= 0xff
	changed, err := UpdateChecksum(buf)
	require.NoError(t, err)
	require.NotEqual(t, sum, changed)

	_, err = UpdateChecksum([]byte("MZ"))
	require.ErrorIs(t, err, ErrMalformedImage)
}
