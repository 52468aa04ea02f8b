package simrand

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_SameSeedIsReproducible(t *testing.T) {
	a := New(123)
	b := New(123)
	for i := 0; i < 20; i++ {
		require.Equal(t, a.Float64(), b.Float64())
	}
}

func TestUniformDuration_Bounds(t *testing.T) {
	s := New(1)
	for i := 0; i < 200; i++ {
		d := s.UniformDuration(10*time.Second, 20*time.Second)
		require.GreaterOrEqual(t, d, 10*time.Second)
		require.LessOrEqual(t, d, 20*time.Second)
	}
}

func TestUniformDuration_DegenerateRange(t *testing.T) {
	s := New(1)
	require.Equal(t, 5*time.Second, s.UniformDuration(5*time.Second, 5*time.Second))
	require.Equal(t, 5*time.Second, s.UniformDuration(5*time.Second, 4*time.Second))
}

func TestUniformInt_Bounds(t *testing.T) {
	s := New(2)
	for i := 0; i < 200; i++ {
		v := s.UniformInt(1, 10)
		require.GreaterOrEqual(t, v, 1)
		require.LessOrEqual(t, v, 10)
	}
}

func TestJitter_WithinFraction(t *testing.T) {
	s := New(3)
	base := 15 * time.Second
	for i := 0; i < 200; i++ {
		j := s.Jitter(base, 0.1)
		require.GreaterOrEqual(t, j, time.Duration(float64(base)*0.9))
		require.LessOrEqual(t, j, time.Duration(float64(base)*1.1))
	}
}

func TestWeightedChoice_RespectsZeroWeightNeverChosen(t *testing.T) {
	s := New(4)
	weights := []float64{0, 1, 0}
	for i := 0; i < 100; i++ {
		require.Equal(t, 1, s.WeightedChoice(weights))
	}
}

func TestBernoulli_Degenerate(t *testing.T) {
	s := New(5)
	require.False(t, s.Bernoulli(0))
	require.True(t, s.Bernoulli(1))
}

func TestBernoulli_RoughlyMatchesProbability(t *testing.T) {
	s := New(6)
	hits := 0
	const n = 5000
	for i := 0; i < n; i++ {
		if s.Bernoulli(0.3) {
			hits++
		}
	}
	frac := float64(hits) / n
	require.InDelta(t, 0.3, frac, 0.05)
}
