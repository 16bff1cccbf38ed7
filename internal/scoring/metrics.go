package scoring

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Func scores a forecast against realised values. Lower is better.
type Func func(realised, forecast []float64) float64

// DefaultMetric 튜닝 기본 평가 지표
const DefaultMetric = "mae"

// MetricFunc returns the evaluation function for a metric name.
func MetricFunc(name string) (Func, error) {
	switch name {
	case "mae", "l1":
		return MAE, nil
	case "rmse":
		return RMSE, nil
	case "mse", "l2":
		return MSE, nil
	case "r_mae":
		return RelativeMAE, nil
	case "r_mae_highest":
		return RelativeMAEHighest, nil
	case "r_mae_lowest":
		return RelativeMAELowest, nil
	case "skill_score":
		return SkillScore, nil
	default:
		return nil, fmt.Errorf("unknown evaluation metric %q", name)
	}
}

// pairs drops rows where either side is NaN.
func pairs(realised, forecast []float64) ([]float64, []float64) {
	n := len(realised)
	if len(forecast) < n {
		n = len(forecast)
	}
	r := make([]float64, 0, n)
	f := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(realised[i]) || math.IsNaN(forecast[i]) {
			continue
		}
		r = append(r, realised[i])
		f = append(f, forecast[i])
	}
	return r, f
}

// MAE mean absolute error
func MAE(realised, forecast []float64) float64 {
	r, f := pairs(realised, forecast)
	if len(r) == 0 {
		return math.NaN()
	}
	return floats.Distance(r, f, 1) / float64(len(r))
}

// MSE mean squared error
func MSE(realised, forecast []float64) float64 {
	r, f := pairs(realised, forecast)
	if len(r) == 0 {
		return math.NaN()
	}
	d := floats.Distance(r, f, 2)
	return d * d / float64(len(r))
}

// RMSE root mean squared error
func RMSE(realised, forecast []float64) float64 {
	return math.Sqrt(MSE(realised, forecast))
}

// RelativeMAE MAE divided by the range of the realised values.
func RelativeMAE(realised, forecast []float64) float64 {
	r, f := pairs(realised, forecast)
	if len(r) == 0 {
		return math.NaN()
	}
	rng := floats.Max(r) - floats.Min(r)
	if rng == 0 {
		return math.NaN()
	}
	return MAE(r, f) / rng
}

// RelativeMAEHighest relative MAE over the highest 10% of realised values.
func RelativeMAEHighest(realised, forecast []float64) float64 {
	return relativeMAETail(realised, forecast, 0.9, true)
}

// RelativeMAELowest relative MAE over the lowest 10% of realised values.
func RelativeMAELowest(realised, forecast []float64) float64 {
	return relativeMAETail(realised, forecast, 0.1, false)
}

func relativeMAETail(realised, forecast []float64, q float64, upper bool) float64 {
	r, f := pairs(realised, forecast)
	if len(r) == 0 {
		return math.NaN()
	}
	sorted := append([]float64(nil), r...)
	sort.Float64s(sorted)
	threshold := stat.Quantile(q, stat.Empirical, sorted, nil)

	var tr, tf []float64
	for i := range r {
		if (upper && r[i] >= threshold) || (!upper && r[i] <= threshold) {
			tr = append(tr, r[i])
			tf = append(tf, f[i])
		}
	}
	rng := floats.Max(r) - floats.Min(r)
	if len(tr) == 0 || rng == 0 {
		return math.NaN()
	}
	return MAE(tr, tf) / rng
}

// SkillScore 1 - MSE(forecast) / MSE(mean forecast); returned negated so lower is better.
func SkillScore(realised, forecast []float64) float64 {
	r, f := pairs(realised, forecast)
	if len(r) == 0 {
		return math.NaN()
	}
	mean := stat.Mean(r, nil)
	base := make([]float64, len(r))
	for i := range base {
		base[i] = mean
	}
	baseMSE := MSE(r, base)
	if baseMSE == 0 {
		return math.NaN()
	}
	return -(1 - MSE(r, f)/baseMSE)
}
