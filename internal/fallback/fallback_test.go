package fallback

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

var day0 = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

// 3일 x 시간 단위 load, 둘째 날이 최대
func history(t *testing.T) *frame.Frame {
	t.Helper()
	var (
		idx  []time.Time
		load []float64
	)
	for d := 0; d < 3; d++ {
		scale := 1.0
		if d == 1 {
			scale = 2
		}
		for h := 0; h < 24; h++ {
			idx = append(idx, day0.AddDate(0, 0, d).Add(time.Duration(h)*time.Hour))
			load = append(load, scale*float64(h+1))
		}
	}
	f, err := frame.FromColumns(idx, []string{contracts.ColumnLoad}, [][]float64{load})
	require.NoError(t, err)
	return f
}

func forecastIndex(from time.Time, n int) []time.Time {
	idx := make([]time.Time, n)
	for i := range idx {
		idx[i] = from.Add(time.Duration(i) * time.Hour)
	}
	return idx
}

func TestGenerate_ExtremeDay(t *testing.T) {
	from := day0.AddDate(0, 0, 5).Add(22 * time.Hour)
	idx := forecastIndex(from, 4) // 22h, 23h, 0h, 1h

	fc, err := Generate(idx, history(t), contracts.FallbackExtremeDay, Options{})
	require.NoError(t, err)

	values, ok := fc.Column(contracts.ColumnForecast)
	require.True(t, ok)
	assert.Equal(t, []float64{46, 48, 2, 4}, values)
	assert.Equal(t, contracts.QualityNotRenewed, fc.Quality)
	assert.Equal(t, idx, fc.Index())

	// 기본 전략 = EXTREME_DAY
	fc2, err := Generate(idx, history(t), "", Options{})
	require.NoError(t, err)
	v2, _ := fc2.Column(contracts.ColumnForecast)
	assert.Equal(t, values, v2)
}

func TestGenerate_SkipsIncompleteToday(t *testing.T) {
	data := history(t)
	// 오늘(4번째 날) 오전에 매우 큰 값
	idx := append(append([]time.Time(nil), data.Index()...), day0.AddDate(0, 0, 3).Add(time.Hour))
	load, _ := data.Column(contracts.ColumnLoad)
	load = append(append([]float64(nil), load...), 1000)
	withToday, err := frame.FromColumns(idx, []string{contracts.ColumnLoad}, [][]float64{load})
	require.NoError(t, err)

	now := day0.AddDate(0, 0, 3).Add(2 * time.Hour)
	fc, err := Generate(forecastIndex(now, 2), withToday, contracts.FallbackExtremeDay, Options{Now: now})
	require.NoError(t, err)
	values, _ := fc.Column(contracts.ColumnForecast)
	assert.Equal(t, []float64{6, 8}, values)

	fc, err = Generate(forecastIndex(now, 2), withToday, contracts.FallbackExtremeDay, Options{})
	require.NoError(t, err)
	values, _ = fc.Column(contracts.ColumnForecast)
	assert.True(t, math.IsNaN(values[0]), "today has no 02:00 value")
}

func TestGenerate_Errors(t *testing.T) {
	idx := forecastIndex(day0.AddDate(0, 0, 5), 3)
	empty := history(t)
	load, _ := empty.Column(contracts.ColumnLoad)
	require.NoError(t, empty.Set(contracts.ColumnLoad, frame.NaNs(len(load))))

	tests := []struct {
		name     string
		load     *frame.Frame
		strategy contracts.FallbackStrategy
		want     error
	}{
		{"unsupported", history(t), "SomeWeirdStrategy", ErrUnsupportedStrategy},
		{"unsupported before empty check", empty, "SomeWeirdStrategy", ErrUnsupportedStrategy},
		{"empty load extreme day", empty, contracts.FallbackExtremeDay, ErrNoLoadData},
		{"empty load raise error", empty, contracts.FallbackRaiseError, ErrNoLoadData},
		{"nil load", nil, contracts.FallbackExtremeDay, ErrNoLoadData},
		{"raise error", history(t), contracts.FallbackRaiseError, ErrFallbackSuppressed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc, err := Generate(idx, tt.load, tt.strategy, Options{})
			assert.Nil(t, fc)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
