package postprocess

import (
	"math"
	"sort"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
)

// SortQuantiles repairs crossing quantiles: per row the quantile values are sorted
// so that a higher quantile is never below a lower one. NaN values keep their place.
// The forecast is modified in place and returned.
func SortQuantiles(fc *contracts.Forecast) (*contracts.Forecast, error) {
	cols := fc.QuantileColumns()
	if len(cols) < 2 {
		return fc, nil
	}

	values := make([][]float64, len(cols))
	for i, c := range cols {
		v, _ := fc.Column(c)
		values[i] = append([]float64(nil), v...)
	}

	row := make([]float64, 0, len(cols))
	slots := make([]int, 0, len(cols))
	for r := 0; r < fc.Len(); r++ {
		row, slots = row[:0], slots[:0]
		for i := range cols {
			if v := values[i][r]; !math.IsNaN(v) {
				row = append(row, v)
				slots = append(slots, i)
			}
		}
		if sort.Float64sAreSorted(row) {
			continue
		}
		sort.Float64s(row)
		for k, i := range slots {
			values[i][r] = row[k]
		}
	}

	for i, c := range cols {
		if err := fc.Set(c, values[i]); err != nil {
			return nil, err
		}
	}
	return fc, nil
}

// CrossingRows returns the number of rows where a higher quantile is below a lower one.
func CrossingRows(fc *contracts.Forecast) int {
	cols := fc.QuantileColumns()
	n := 0
	for r := 0; r < fc.Len(); r++ {
		prev := math.Inf(-1)
		for _, c := range cols {
			v := fc.At(c, r)
			if math.IsNaN(v) {
				continue
			}
			if v < prev {
				n++
				break
			}
			prev = v
		}
	}
	return n
}

// AddJobProperties attaches the job metadata to the forecast.
func AddJobProperties(fc *contracts.Forecast, job contracts.PredictionJob, algType string) *contracts.Forecast {
	fc.PID = job.ID
	fc.Customer = job.Name
	fc.Description = job.Description
	fc.Type = job.ForecastType
	if fc.Type == "" {
		fc.Type = "demand"
	}
	fc.AlgType = algType
	return fc
}
