package xsampling_test

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xtracing/pkg/observability/xsampling"
)

func TestConst(t *testing.T) {
	assert.True(t, xsampling.Always().ShouldSample("abc"))
	assert.False(t, xsampling.Never().ShouldSample("abc"))
	assert.Equal(t, "always", fmt.Sprint(xsampling.Always()))
	assert.Equal(t, "never", fmt.Sprint(xsampling.Never()))
}

func TestNewRatioSamplerInvalid(t *testing.T) {
	for _, rate := range []float64{-0.1, 1.1, math.NaN(), math.Inf(1)} {
		_, err := xsampling.NewRatioSampler(rate)
		assert.ErrorIs(t, err, xsampling.ErrInvalidRate, "rate=%v", rate)
	}
}

func TestRatioSamplerBounds(t *testing.T) {
	zero, err := xsampling.NewRatioSampler(0)
	require.NoError(t, err)
	one, err := xsampling.NewRatioSampler(1)
	require.NoError(t, err)

	for i := range 100 {
		id := fmt.Sprintf("%032x", i)
		assert.False(t, zero.ShouldSample(id))
		assert.True(t, one.ShouldSample(id))
	}
}

func TestRatioSamplerConsistent(t *testing.T) {
	a, err := xsampling.NewRatioSampler(0.5)
	require.NoError(t, err)
	b, err := xsampling.NewRatioSampler(0.5)
	require.NoError(t, err)

	for i := range 200 {
		id := fmt.Sprintf("%032x", i*7919)
		assert.Equal(t, a.ShouldSample(id), b.ShouldSample(id), id)
		assert.Equal(t, a.ShouldSample(id), a.ShouldSample(id), id)
	}
	assert.InDelta(t, 0.5, a.Rate(), 0)
	assert.Equal(t, "ratio(0.5)", a.String())
}

func TestRatioSamplerDistribution(t *testing.T) {
	s, err := xsampling.NewRatioSampler(0.25)
	require.NoError(t, err)

	const n = 20000
	hits := 0
	for i := range n {
		if s.ShouldSample(fmt.Sprintf("%016x%016x", i, i*31)) {
			hits++
		}
	}
	assert.InDelta(t, 0.25, float64(hits)/n, 0.03)
}

func TestRatioSamplerEmptyTraceID(t *testing.T) {
	s, err := xsampling.NewRatioSampler(0.5)
	require.NoError(t, err)

	hits := 0
	for range 2000 {
		if s.ShouldSample("") {
			hits++
		}
	}
	assert.Greater(t, hits, 0)
	assert.Less(t, hits, 2000)
}
