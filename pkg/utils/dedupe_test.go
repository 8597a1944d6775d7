package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDedupePreserveOrder(t *testing.T) {
	require.Equal(t, []uint{129884, 4, 999}, DedupePreserveOrder([]uint{129884, 4, 4, 999}))
	require.Equal(t, []uint{1, 2, 3}, DedupePreserveOrder([]uint{1, 2, 3, 2, 1}))
	require.Empty(t, DedupePreserveOrder([]uint{}))
	require.Equal(t, []string{"b", "a"}, DedupePreserveOrder([]string{"b", "b", "a", "b"}))
}
