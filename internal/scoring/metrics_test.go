package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	realised := []float64{1, 2, 3, 4, math.NaN()}
	forecast := []float64{2, 2, 1, 4, 10}

	tests := []struct {
		name   string
		metric string
		want   float64
	}{
		{"mae skips NaN pairs", "mae", 0.75},
		{"l1 alias", "l1", 0.75},
		{"mse", "mse", 1.25},
		{"rmse", "rmse", math.Sqrt(1.25)},
		{"relative mae", "r_mae", 0.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fn, err := MetricFunc(tt.metric)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, fn(realised, forecast), 1e-12)
		})
	}
}

func TestMetricFunc_Unknown(t *testing.T) {
	_, err := MetricFunc("mape")
	assert.Error(t, err)
}

func TestRelativeMAETails(t *testing.T) {
	realised := make([]float64, 100)
	forecast := make([]float64, 100)
	for i := range realised {
		realised[i] = float64(i)
		forecast[i] = float64(i)
	}
	// 상위 구간에서만 오차
	for i := 95; i < 100; i++ {
		forecast[i] = realised[i] + 9.9
	}
	assert.Greater(t, RelativeMAEHighest(realised, forecast), 0.0)
	assert.Equal(t, 0.0, RelativeMAELowest(realised, forecast))
}

func TestSkillScore(t *testing.T) {
	realised := []float64{1, 2, 3, 4}
	assert.InDelta(t, -1.0, SkillScore(realised, realised), 1e-12, "perfect forecast")
	assert.InDelta(t, 0.0, SkillScore(realised, []float64{2.5, 2.5, 2.5, 2.5}), 1e-12, "mean forecast")
}

func TestScore(t *testing.T) {
	s := Score([]float64{1, 2}, []float64{math.NaN(), math.NaN()})
	assert.Equal(t, 0, s.Rows)
	assert.Equal(t, math.MaxFloat64, s.MAE, "non-finite metrics are widened")

	s = Score([]float64{0, 10}, []float64{1, 9})
	assert.Equal(t, 2, s.Rows)
	assert.InDelta(t, 1.0, s.MAE, 1e-12)
	assert.InDelta(t, 0.1, s.RelativeMAE, 1e-12)
}
