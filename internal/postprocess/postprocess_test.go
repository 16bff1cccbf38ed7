package postprocess

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

func crossing(t *testing.T) *contracts.Forecast {
	t.Helper()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	idx := []time.Time{start, start.Add(15 * time.Minute), start.Add(30 * time.Minute)}
	nan := math.NaN()

	f, err := frame.FromColumns(idx,
		[]string{contracts.ColumnForecast, "quantile_P90", "quantile_P10", "quantile_P50"},
		[][]float64{
			{5, 5, 5},
			{4, 9, nan}, // P90
			{6, 1, 8},   // P10
			{5, 5, 2},   // P50
		})
	require.NoError(t, err)
	fc := contracts.NewForecast(f)
	fc.Quantiles = []float64{0.9, 0.1, 0.5}
	return fc
}

func TestSortQuantiles(t *testing.T) {
	fc := crossing(t)
	assert.Equal(t, 2, CrossingRows(fc))

	out, err := SortQuantiles(fc)
	require.NoError(t, err)
	assert.Zero(t, CrossingRows(out))

	assert.Equal(t, []float64{4, 1, 2}, mustColumn(t, out, "quantile_P10"))
	assert.Equal(t, []float64{5, 5, 8}, mustColumn(t, out, "quantile_P50"))

	p90 := mustColumn(t, out, "quantile_P90")
	assert.Equal(t, 6.0, p90[0])
	assert.Equal(t, 9.0, p90[1])
	assert.True(t, math.IsNaN(p90[2]))

	// point forecast untouched
	assert.Equal(t, []float64{5, 5, 5}, mustColumn(t, out, contracts.ColumnForecast))
}

func TestSortQuantiles_SingleQuantile(t *testing.T) {
	fc := crossing(t)
	fc.Quantiles = []float64{0.5}
	_, err := SortQuantiles(fc)
	require.NoError(t, err)
	assert.Equal(t, []float64{6, 1, 8}, mustColumn(t, fc, "quantile_P10"))
}

func TestAddJobProperties(t *testing.T) {
	job := contracts.DefaultPredictionJob(307)
	job.Name = "Substation A"
	job.Description = "Substation A total load"

	fc := AddJobProperties(crossing(t), job, "xgb")
	assert.Equal(t, int64(307), fc.PID)
	assert.Equal(t, "Substation A", fc.Customer)
	assert.Equal(t, "Substation A total load", fc.Description)
	assert.Equal(t, "demand", fc.Type)
	assert.Equal(t, "xgb", fc.AlgType)
}

func mustColumn(t *testing.T, fc *contracts.Forecast, name string) []float64 {
	t.Helper()
	v, ok := fc.Column(name)
	require.True(t, ok, name)
	return v
}
