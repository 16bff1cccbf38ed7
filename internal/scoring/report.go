package scoring

import "math"

// SplitScore 한 데이터 분할에 대한 지표
type SplitScore struct {
	Rows        int     `json:"rows"`
	MAE         float64 `json:"mae"`
	RMSE        float64 `json:"rmse"`
	RelativeMAE float64 `json:"r_mae"`
}

// Report 학습 리포트 (train / validation / test)
type Report struct {
	Train      SplitScore `json:"train"`
	Validation SplitScore `json:"validation"`
	Test       SplitScore `json:"test"`
}

// Score computes the report metrics for one split.
func Score(realised, forecast []float64) SplitScore {
	r, f := pairs(realised, forecast)
	return SplitScore{
		Rows:        len(r),
		MAE:         Finite(MAE(r, f)),
		RMSE:        Finite(RMSE(r, f)),
		RelativeMAE: Finite(RelativeMAE(r, f)),
	}
}

// Finite widens a metric value into something JSON can represent.
// NaN and ±Inf become the largest float64 (worst possible score).
func Finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return math.MaxFloat64
	}
	return v
}
