package confidence

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/split"
)

// groupKey hour-of-day × horizon
type groupKey struct {
	hour    int
	horizon float64
}

// GenerateStandardDeviation 검증 데이터 잔차로 표준편차 테이블 생성
// 반환값은 StandardDeviation이 채워진 새 스냅샷 (입력 모델은 변경하지 않음)
func GenerateStandardDeviation(model *regressor.Model, validation *frame.Frame) (*regressor.Model, error) {
	if err := split.CheckColumnOrder(validation); err != nil {
		return nil, fmt.Errorf("standard deviation: %w", err)
	}
	x, y := split.XY(validation)
	pred, err := model.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("standard deviation: predict validation data: %w", err)
	}
	horizon := validation.ColumnAt(len(validation.Columns()) - 1)

	groups := make(map[groupKey][]float64)
	for i, t := range validation.Index() {
		if math.IsNaN(y[i]) || math.IsNaN(pred[i]) || math.IsNaN(horizon[i]) {
			continue
		}
		k := groupKey{hour: t.Hour(), horizon: horizon[i]}
		groups[k] = append(groups[k], y[i]-pred[i])
	}

	table := make([]regressor.StandardDeviation, 0, len(groups))
	for k, residuals := range groups {
		if len(residuals) < 2 {
			continue
		}
		table = append(table, regressor.StandardDeviation{
			Hour:    k.hour,
			Horizon: k.horizon,
			Stdev:   stat.StdDev(residuals, nil),
		})
	}
	sort.Slice(table, func(i, j int) bool {
		if table[i].Horizon != table[j].Horizon {
			return table[i].Horizon < table[j].Horizon
		}
		return table[i].Hour < table[j].Hour
	})

	out := model.Clone()
	out.StandardDeviation = table
	return out, nil
}
