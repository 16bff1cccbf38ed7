package confidence

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
)

// Applicator 점 예측에 stdev 및 분위수 컬럼 추가
type Applicator struct {
	model *regressor.Model
	// input 예측 구간 피처 (분위수 모델용, nil이면 Gaussian만 사용)
	input *frame.Frame
}

// NewApplicator creates an applicator for one forecast.
func NewApplicator(model *regressor.Model, input *frame.Frame) *Applicator {
	return &Applicator{model: model, input: input}
}

// Apply adds the stdev column and one quantile column per requested quantile.
// now is the forecast creation time; lead time is measured from it.
func (a *Applicator) Apply(fc *contracts.Forecast, quantiles []float64, now time.Time) (*contracts.Forecast, error) {
	point, ok := fc.Column(contracts.ColumnForecast)
	if !ok {
		return nil, fmt.Errorf("confidence: forecast column missing")
	}

	out := &contracts.Forecast{
		Frame:       fc.Frame.Clone(),
		Quantiles:   append([]float64(nil), quantiles...),
		Quality:     fc.Quality,
		PID:         fc.PID,
		Customer:    fc.Customer,
		Description: fc.Description,
		Type:        fc.Type,
		AlgType:     fc.AlgType,
	}

	stdev := a.stdevColumn(fc.Index(), now)
	if err := out.Set(contracts.ColumnStdev, stdev); err != nil {
		return nil, err
	}

	if qe, ok := a.quantileModel(quantiles); ok {
		for _, q := range quantiles {
			values, err := qe.PredictQuantile(a.input, q)
			if err != nil {
				return nil, fmt.Errorf("confidence: quantile %.2f: %w", q, err)
			}
			if err := out.Set(contracts.QuantileColumn(q), values); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	for _, q := range quantiles {
		z := distuv.UnitNormal.Quantile(q)
		values := make([]float64, len(point))
		for i := range values {
			values[i] = point[i] + stdev[i]*z
		}
		if err := out.Set(contracts.QuantileColumn(q), values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (a *Applicator) quantileModel(quantiles []float64) (regressor.QuantileEstimator, bool) {
	if a.input == nil || a.model == nil {
		return nil, false
	}
	return a.model.QuantileModel(quantiles)
}

// stdevColumn interpolates between the near- and far-horizon stdev of each hour by lead time.
// 테이블이 없으면 0 (분위수 = 점 예측)
func (a *Applicator) stdevColumn(index []time.Time, now time.Time) []float64 {
	out := make([]float64, len(index))
	if a.model == nil || len(a.model.StandardDeviation) == 0 {
		return out
	}

	table := a.model.StandardDeviation
	near, far := table[0].Horizon, table[0].Horizon
	for _, row := range table {
		near = math.Min(near, row.Horizon)
		far = math.Max(far, row.Horizon)
	}
	nearByHour := make(map[int]float64)
	farByHour := make(map[int]float64)
	for _, row := range table {
		if row.Horizon == near {
			nearByHour[row.Hour] = row.Stdev
		}
		if row.Horizon == far {
			farByHour[row.Hour] = row.Stdev
		}
	}

	for i, t := range index {
		h := t.Hour()
		sNear, okNear := nearByHour[h]
		sFar, okFar := farByHour[h]
		switch {
		case !okNear && !okFar:
			out[i] = 0
			continue
		case !okNear:
			sNear = sFar
		case !okFar:
			sFar = sNear
		}

		weight := 0.0
		if far > near {
			hoursAhead := t.Sub(now).Hours()
			weight = (hoursAhead - near) / (far - near)
			weight = math.Max(0, math.Min(1, weight))
		}
		out[i] = sNear*(1-weight) + sFar*weight
	}
	return out
}
