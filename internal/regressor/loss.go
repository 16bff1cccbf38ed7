package regressor

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// loss 그래디언트 부스팅 목적 함수
type loss interface {
	gradHess(y, pred float64) (float64, float64)
	baseScore(y []float64) float64
}

// squaredLoss reg:squarederror
type squaredLoss struct{}

func (squaredLoss) gradHess(y, pred float64) (float64, float64) {
	return pred - y, 1
}

func (squaredLoss) baseScore(y []float64) float64 {
	return stat.Mean(y, nil)
}

// pinballLoss 분위수 손실
type pinballLoss struct {
	alpha float64
}

func (l pinballLoss) gradHess(y, pred float64) (float64, float64) {
	if y > pred {
		return -l.alpha, 1
	}
	return 1 - l.alpha, 1
}

func (l pinballLoss) baseScore(y []float64) float64 {
	return empiricalQuantile(y, l.alpha)
}

// arctanLoss 부드러운 분위수 손실
// L(u) = u(α - ½ + arctan(u/s)/π) + s/π,  u = y - pred
// hessian은 1 이상 (target에서 먼 leaf의 step이 pinball과 동일)
type arctanLoss struct {
	alpha     float64
	smoothing float64
}

func (l arctanLoss) gradHess(y, pred float64) (float64, float64) {
	s := l.smoothing
	u := y - pred
	z := u / s
	dz := l.alpha - 0.5 + math.Atan(z)/math.Pi + z/(math.Pi*(1+z*z))
	hess := 2 / (math.Pi * s * (1 + z*z) * (1 + z*z))
	return -dz, math.Max(hess, 1)
}

func (l arctanLoss) baseScore(y []float64) float64 {
	return empiricalQuantile(y, l.alpha)
}

func empiricalQuantile(y []float64, q float64) float64 {
	if len(y) == 0 {
		return 0
	}
	sorted := append([]float64(nil), y...)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil)
}
