package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingCloses(start float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)
	}
	return out
}

func TestComputeRequiresFiveCloses(t *testing.T) {
	_, ok := Compute([]float64{100, 101, 102, 103})
	assert.False(t, ok)

	f, ok := Compute([]float64{100, 101, 102, 103, 104})
	require.True(t, ok)
	assert.Equal(t, 104.0, f.LastClose)
}

func TestRSIBoundsAndSaturation(t *testing.T) {
	// strictly rising series: every delta is a gain
	f, ok := Compute(risingCloses(100, 30))
	require.True(t, ok)
	require.True(t, f.HasRSI)
	assert.Equal(t, 100.0, f.RSI)

	// strictly falling series pins RSI at 0
	falling := make([]float64, 30)
	for i := range falling {
		falling[i] = 200 - float64(i)
	}
	f, ok = Compute(falling)
	require.True(t, ok)
	require.True(t, f.HasRSI)
	assert.Equal(t, 0.0, f.RSI)

	// mixed series stays inside [0,100]
	mixed := []float64{100, 102, 101, 104, 99, 103, 100, 105, 98, 104, 101, 99, 103, 100, 102, 101, 100, 99, 104, 103}
	f, ok = Compute(mixed)
	require.True(t, ok)
	require.True(t, f.HasRSI)
	assert.GreaterOrEqual(t, f.RSI, 0.0)
	assert.LessOrEqual(t, f.RSI, 100.0)
}

func TestRSIUnavailableBelowPeriod(t *testing.T) {
	f, ok := Compute([]float64{100, 101, 102, 103, 104, 105})
	require.True(t, ok)
	assert.False(t, f.HasRSI)
}

func TestRangePosFlatRangeIsCentered(t *testing.T) {
	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 100
	}
	f, ok := Compute(flat)
	require.True(t, ok)
	assert.Equal(t, 0.5, f.RangePos)
	assert.Equal(t, 0.5, f.RangeEdge)
	assert.Equal(t, 0.5, f.RangeCenter)
}

func TestRangePosClampedAndEdges(t *testing.T) {
	f, ok := Compute(risingCloses(100, 60))
	require.True(t, ok)
	assert.Equal(t, 1.0, f.RangePos) // last close is the 50-bar high
	assert.Equal(t, 1.0, f.RangeEdge)
	assert.Equal(t, 0.0, f.RangeCenter)
	assert.GreaterOrEqual(t, f.RangePos, 0.0)
	assert.LessOrEqual(t, f.RangePos, 1.0)
}

func TestMovingAveragesNeedFullPeriod(t *testing.T) {
	f, ok := Compute(risingCloses(100, 25))
	require.True(t, ok)
	assert.NotZero(t, f.FastMA)
	assert.Zero(t, f.SlowMA) // slow MA needs 60 closes

	f, ok = Compute(risingCloses(100, 80))
	require.True(t, ok)
	assert.Greater(t, f.FastMA, f.SlowMA)
}

func TestFastMAValue(t *testing.T) {
	f, ok := Compute(risingCloses(1, 20))
	require.True(t, ok)
	// mean of 1..20
	assert.InDelta(t, 10.5, f.FastMA, 1e-9)
}

func TestMomentumFallback(t *testing.T) {
	// 20 closes: mom_15 is defined, mom_30 falls back to it
	f, ok := Compute(risingCloses(100, 20))
	require.True(t, ok)
	assert.NotZero(t, f.Mom15)
	assert.Equal(t, f.Mom15, f.Mom30)

	// 40 closes: mom_30 deviates from mom_15
	f, ok = Compute(risingCloses(100, 40))
	require.True(t, ok)
	assert.NotEqual(t, f.Mom15, f.Mom30)
}

func TestVolPctFlatSeriesIsZero(t *testing.T) {
	flat := make([]float64, 10)
	for i := range flat {
		flat[i] = 100
	}
	f, ok := Compute(flat)
	require.True(t, ok)
	assert.Zero(t, f.VolPct)
}
