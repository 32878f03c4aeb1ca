package verify

import (
	"testing"

	"exe2dll/internal/pefixture"

	"github.com/stretchr/testify/require"
)

func Test_Inspect(t *testing.T) {
	r, err := Inspect(pefixture.Default64().Build())
	require.NoError(t, err)
	require.False(t, r.DLL)
	require.Equal(t, uint32(0x1500), r.EntryPoint)
	require.Empty(t, r.Exports)

	_, err = Inspect([]byte("MZ"))
	require.Error(t, err)
}

func Test_Check(t *testing.T) {
	err := Check(pefixture.Default64().Build(), "Start", 0x1500, 0x3000)
	require.ErrorIs(t, err, ErrMismatch)
}
