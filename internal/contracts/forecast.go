package contracts

import (
	"fmt"
	"sort"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

// Forecast column names
const (
	ColumnForecast = "forecast"
	ColumnStdev    = "stdev"
	ColumnLoad     = "load"
	ColumnHorizon  = "horizon"

	quantilePrefix = "quantile_P"
)

// Forecast quality flags
const (
	QualityActual     = "actual"
	QualityNotRenewed = "not_renewed"
)

// Forecast 예측 결과 테이블 + 작업 메타데이터
type Forecast struct {
	*frame.Frame

	// 요청된 분위수 (컬럼 순서와 무관하게 오름차순 정렬에 사용)
	Quantiles []float64 `json:"quantiles"`
	Quality   string    `json:"quality"`

	// 메타데이터 (add job properties)
	PID         int64  `json:"pid"`
	Customer    string `json:"customer"`
	Description string `json:"description"`
	Type        string `json:"type"`
	AlgType     string `json:"algtype"`
}

// NewForecast wraps a frame holding at least the forecast column.
func NewForecast(f *frame.Frame) *Forecast {
	return &Forecast{Frame: f, Quality: QualityActual}
}

// QuantileColumn returns the column name for a quantile, e.g. 0.05 -> quantile_P05.
func QuantileColumn(q float64) string {
	return fmt.Sprintf("%s%02.0f", quantilePrefix, q*100)
}

// QuantileColumns returns the quantile columns present in the forecast,
// ordered by increasing quantile.
func (f *Forecast) QuantileColumns() []string {
	qs := append([]float64(nil), f.Quantiles...)
	sort.Float64s(qs)

	seen := make(map[string]struct{}, len(qs))
	cols := make([]string, 0, len(qs))
	for _, q := range qs {
		name := QuantileColumn(q)
		if _, dup := seen[name]; dup || !f.Has(name) {
			continue
		}
		seen[name] = struct{}{}
		cols = append(cols, name)
	}
	return cols
}
