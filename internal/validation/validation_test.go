package validation

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

var start = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func quarterHours(n int) []time.Time {
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = start.Add(time.Duration(i) * 15 * time.Minute)
	}
	return idx
}

func loadFrame(t *testing.T, load []float64) *frame.Frame {
	t.Helper()
	f, err := frame.FromColumns(quarterHours(len(load)), []string{contracts.ColumnLoad}, [][]float64{load})
	require.NoError(t, err)
	return f
}

func varying(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 10 + math.Sin(float64(i))
	}
	return out
}

func TestDetectOngoingFlatliner(t *testing.T) {
	threshold := 2 * time.Hour // 8 quarters

	tests := []struct {
		name    string
		tail    []float64
		nonZero bool
		want    bool
	}{
		{"zero tail", []float64{0, 0, 0, 0, 0, 0, 0, 0, 0}, false, true},
		{"zero tail with gaps", []float64{0, 0, math.NaN(), 0, 0, 0, 0, 0, 0, math.NaN()}, false, true},
		{"constant non-zero ignored by default", []float64{5, 5, 5, 5, 5, 5, 5, 5, 5}, false, false},
		{"constant non-zero detected", []float64{5, 5, 5, 5, 5, 5, 5, 5, 5}, true, true},
		{"short zero tail", []float64{0, 0, 0}, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			load := append(varying(20), tt.tail...)
			assert.Equal(t, tt.want, DetectOngoingFlatliner(quarterHours(len(load)), load, threshold, tt.nonZero))
		})
	}

	// 데이터가 threshold보다 짧으면 판단하지 않음
	assert.False(t, DetectOngoingFlatliner(quarterHours(3), []float64{0, 0, 0}, threshold, false))
}

func TestValidate_OngoingFlatliner(t *testing.T) {
	load := append(varying(20), make([]float64, 12)...)
	var buf bytes.Buffer
	v := NewValidator(zerolog.New(&buf))

	_, err := v.Validate(307, loadFrame(t, load), Options{FlatlinerThreshold: 2 * time.Hour})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOngoingFlatliner)
	assert.Contains(t, buf.String(), `"pid":307`)
}

func TestValidate_RemovesFlatlinerPeriods(t *testing.T) {
	load := varying(40)
	for i := 10; i < 22; i++ { // 3 hours of zeros
		load[i] = 0
	}
	load[30], load[31] = 0, 0 // too short

	data := loadFrame(t, load)
	out, err := NewValidator(zerolog.Nop()).Validate(1, data, Options{FlatlinerThreshold: 2 * time.Hour})
	require.NoError(t, err)

	cleaned, _ := out.Column(contracts.ColumnLoad)
	for i := 10; i < 22; i++ {
		assert.True(t, math.IsNaN(cleaned[i]), "row %d", i)
	}
	assert.Equal(t, 0.0, cleaned[30])
	assert.Equal(t, load[9], cleaned[9])

	orig, _ := data.Column(contracts.ColumnLoad)
	assert.Equal(t, 0.0, orig[10], "input is not mutated")
}

func TestValidate_Disabled(t *testing.T) {
	load := make([]float64, 40)
	out, err := NewValidator(zerolog.Nop()).Validate(1, loadFrame(t, load), Options{})
	require.NoError(t, err)
	assert.Equal(t, 40, frame.CountValid(out.ColumnAt(0)))
}

func TestFindFlatliners_NonZero(t *testing.T) {
	load := varying(30)
	for i := 5; i < 15; i++ {
		load[i] = 7
	}
	idx := quarterHours(len(load))

	assert.Empty(t, FindFlatliners(idx, load, 2*time.Hour, false))

	periods := FindFlatliners(idx, load, 2*time.Hour, true)
	require.Len(t, periods, 1)
	assert.Equal(t, idx[5], periods[0].Start)
	assert.Equal(t, idx[14], periods[0].End)
}

func TestCompleteness(t *testing.T) {
	nan := math.NaN()
	idx := quarterHours(8)
	f, err := frame.FromColumns(idx,
		[]string{contracts.ColumnLoad, "T-30min", "temperature", "hour", contracts.ColumnHorizon},
		[][]float64{
			{1, 1, 1, 1, nan, nan, nan, nan},
			{nan, nan, 1, 1, 1, 1, nan, nan}, // 마지막 측정 +30분까지만 셈: 4/6
			{1, 1, 1, 1, nan, nan, nan, nan}, // half
			{1, 1, 1, 1, 1, 1, 1, 1},
			{nan, nan, nan, nan, nan, nan, nan, nan},
		})
	require.NoError(t, err)

	assert.InDelta(t, (4.0/6+0.5+1)/3.0, Completeness(f, nil), 1e-12)

	weights := map[string]float64{"temperature": 3, "hour": 1}
	assert.InDelta(t, (3*0.5+1)/4.0, Completeness(f, weights), 1e-12)

	// load 없으면 lag도 전체 행 기준
	noLoad := f.Drop(contracts.ColumnLoad)
	assert.InDelta(t, (4.0/8+0.5+1)/3.0, Completeness(noLoad, nil), 1e-12)

	assert.Zero(t, Completeness(nil, nil))
}

func TestIsDataSufficient(t *testing.T) {
	nan := math.NaN()
	f, err := frame.FromColumns(quarterHours(4), []string{"temperature"}, [][]float64{{1, nan, nan, nan}})
	require.NoError(t, err)

	s := IsDataSufficient(f, 0.5, 2, nil)
	assert.False(t, s.Sufficient)
	assert.Equal(t, 0.25, s.Completeness)

	s = IsDataSufficient(f, 0.2, 2, nil)
	assert.True(t, s.Sufficient)

	s = IsDataSufficient(f, 0.2, 10, nil)
	assert.False(t, s.Sufficient, "too few rows")
	assert.Equal(t, 4, s.Rows)
}

func TestOptionsFor(t *testing.T) {
	job := contracts.DefaultPredictionJob(1)
	job.DetectNonZeroFlatliner = true
	opts := OptionsFor(job)
	assert.Equal(t, 24*time.Hour, opts.FlatlinerThreshold)
	assert.True(t, opts.DetectNonZeroFlatliner)
}
