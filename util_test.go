package treealloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/treealloc/treealloc"
)

func TestAlignUp(t *testing.T) {
	require.Equal(t, 0, treealloc.AlignUp(0, 8))
	require.Equal(t, 8, treealloc.AlignUp(1, 8))
	require.Equal(t, 8, treealloc.AlignUp(8, 8))
	require.Equal(t, 16, treealloc.AlignUp(9, 8))
	require.Equal(t, 112, treealloc.AlignUp(108, 8))
}

func TestAlignDown(t *testing.T) {
	require.Equal(t, 0, treealloc.AlignDown(7, 8))
	require.Equal(t, 8, treealloc.AlignDown(8, 8))
	require.Equal(t, 1000, treealloc.AlignDown(1007, 8))
}

func TestCheckPow2(t *testing.T) {
	require.NoError(t, treealloc.CheckPow2(64, "alignment"))
	require.NoError(t, treealloc.CheckPow2(1, "alignment"))

	err := treealloc.CheckPow2(48, "alignment")
	require.ErrorIs(t, err, treealloc.ErrPowerOfTwo)
}
