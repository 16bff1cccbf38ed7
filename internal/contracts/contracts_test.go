package contracts

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

func TestQuantileColumn(t *testing.T) {
	tests := []struct {
		q    float64
		want string
	}{
		{0.05, "quantile_P05"},
		{0.1, "quantile_P10"},
		{0.5, "quantile_P50"},
		{0.95, "quantile_P95"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuantileColumn(tt.q))
	}
}

func TestForecast_QuantileColumns(t *testing.T) {
	index := []time.Time{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	f := frame.New(index, ColumnForecast, QuantileColumn(0.9), QuantileColumn(0.1))
	fc := NewForecast(f)
	// 없는 컬럼은 건너뛰고 중복 제거
	fc.Quantiles = []float64{0.9, 0.5, 0.1, 0.9}

	assert.Equal(t, []string{"quantile_P10", "quantile_P90"}, fc.QuantileColumns())
	assert.Equal(t, QualityActual, fc.Quality)
	assert.True(t, math.IsNaN(fc.At(ColumnForecast, 0)))
}

func TestPredictionJob_ModelPID(t *testing.T) {
	job := DefaultPredictionJob(307)
	assert.Equal(t, int64(307), job.ModelPID())
	assert.Equal(t, "307", job.ExperimentName())

	alt := int64(308)
	job.AlternativeForecastModelPID = &alt
	assert.Equal(t, int64(308), job.ModelPID())
	assert.Equal(t, "308", job.ExperimentName())

	zero := int64(0)
	job.AlternativeForecastModelPID = &zero
	assert.Equal(t, int64(307), job.ModelPID())
}

func TestFallbackStrategy_Resolve(t *testing.T) {
	assert.Equal(t, FallbackExtremeDay, FallbackStrategy("").Resolve())
	assert.Equal(t, FallbackRaiseError, FallbackRaiseError.Resolve())
	assert.Equal(t, FallbackStrategy("unknown"), FallbackStrategy("unknown").Resolve())
}

func TestAllStages(t *testing.T) {
	stages := AllStages()
	assert.Equal(t, StageLoad, stages[0])
	assert.Equal(t, StageMetadata, stages[len(stages)-1])
	assert.Equal(t, "quantile_repair", StageQuantileRepair.String())
}
