package cost

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	cases := []struct {
		a, b, want int
	}{
		{1, 2, 3},
		{0, 0, 0},
		{15, 1, 16},
		{10, 10, Infinity},
		{Infinity, 0, Infinity},
		{0, Infinity, Infinity},
		{Infinity, Infinity, Infinity},
		{20, 1, Infinity},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Add(c.a, c.b), "Add(%d, %d)", c.a, c.b)
	}
}

func TestReachable(t *testing.T) {
	require.True(t, Reachable(0))
	require.True(t, Reachable(15))
	require.False(t, Reachable(16))
	require.False(t, Reachable(100))
}
