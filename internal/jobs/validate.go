package jobs

import (
	"fmt"
	"sort"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/fallback"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
)

// ValidationError 작업 설정 검증 실패
type ValidationError struct {
	JobID   int64
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("job %d: %s: %s", e.JobID, e.Field, e.Message)
}

// Validate checks every job and the uniqueness of job ids.
func Validate(jobs []contracts.PredictionJob) error {
	seen := make(map[int64]struct{}, len(jobs))
	for _, job := range jobs {
		if err := ValidateJob(job); err != nil {
			return err
		}
		if _, dup := seen[job.ID]; dup {
			return ValidationError{job.ID, "id", "duplicate"}
		}
		seen[job.ID] = struct{}{}
	}
	return nil
}

// ValidateJob checks the constraints of a single job.
func ValidateJob(job contracts.PredictionJob) error {
	if job.ID <= 0 {
		return ValidationError{job.ID, "id", "must be > 0"}
	}
	if !knownModel(job.Model) {
		return ValidationError{job.ID, "model", fmt.Sprintf("unknown model type %q", job.Model)}
	}
	if job.ResolutionMinutes <= 0 {
		return ValidationError{job.ID, "resolution_minutes", "must be > 0"}
	}
	if job.HorizonMinutes < job.ResolutionMinutes {
		return ValidationError{job.ID, "horizon_minutes", "must be >= resolution_minutes"}
	}

	if !sort.Float64sAreSorted(job.Quantiles) {
		return ValidationError{job.ID, "quantiles", "must be in increasing order"}
	}
	for i, q := range job.Quantiles {
		if q <= 0 || q >= 1 {
			return ValidationError{job.ID, "quantiles", fmt.Sprintf("%g not in (0, 1)", q)}
		}
		if i > 0 && q == job.Quantiles[i-1] {
			return ValidationError{job.ID, "quantiles", fmt.Sprintf("duplicate %g", q)}
		}
	}

	if job.CompletenessThreshold > 1 {
		return ValidationError{job.ID, "completeness_threshold", "must be <= 1"}
	}
	if job.MinimalTableLength < 0 {
		return ValidationError{job.ID, "minimal_table_length", "must be >= 0"}
	}
	if !fallback.Supported(job.FallbackStrategy) {
		return ValidationError{job.ID, "fallback_strategy", fmt.Sprintf("unsupported %q", job.FallbackStrategy)}
	}
	if p := job.AlternativeForecastModelPID; p != nil && *p < 0 {
		return ValidationError{job.ID, "alternative_forecast_model_pid", "must be >= 0"}
	}
	return nil
}

func knownModel(name string) bool {
	for _, t := range regressor.AllModelTypes() {
		if string(t) == name {
			return true
		}
	}
	return false
}
