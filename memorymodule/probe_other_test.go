//go:build !windows
// +build !windows

package memorymodule

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Probe(t *testing.T) {
	_, err := Probe("out.dll", "Start")
	require.ErrorIs(t, err, ErrUnsupported)
}
