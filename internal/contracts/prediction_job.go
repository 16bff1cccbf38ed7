package contracts

import "fmt"

// FallbackStrategy 폴백 예측 전략
type FallbackStrategy string

const (
	// FallbackExtremeDay 과거 최대 부하일의 프로파일을 재사용 (기본값)
	FallbackExtremeDay FallbackStrategy = "extreme_day"
	// FallbackRaiseError 폴백 대신 에러 반환 (저품질 예측이 하위 시스템에 전달되면 안 되는 경우)
	FallbackRaiseError FallbackStrategy = "raise_error"
)

// Resolve returns the effective strategy; empty means the default.
func (s FallbackStrategy) Resolve() FallbackStrategy {
	if s == "" {
		return FallbackExtremeDay
	}
	return s
}

// PredictionJob 단일 예측 대상 설정
// ⭐ SSOT: 파이프라인 실행 중 불변 (값으로 전달)
type PredictionJob struct {
	ID           int64  `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Description  string `yaml:"description" json:"description"`
	ForecastType string `yaml:"forecast_type" json:"forecast_type"` // demand, wind, solar...
	Model        string `yaml:"model" json:"model"`                 // 모델 타입 (xgb, lgb, linear...)

	ResolutionMinutes int       `yaml:"resolution_minutes" json:"resolution_minutes"`
	HorizonMinutes    int       `yaml:"horizon_minutes" json:"horizon_minutes"`
	Quantiles         []float64 `yaml:"quantiles" json:"quantiles"`

	// 입력 데이터 품질 기준
	FlatlinerThresholdMinutes int     `yaml:"flatliner_threshold_minutes" json:"flatliner_threshold_minutes"` // 0 = 검사 안함
	DetectNonZeroFlatliner    bool    `yaml:"detect_non_zero_flatliner" json:"detect_non_zero_flatliner"`
	CompletenessThreshold     float64 `yaml:"completeness_threshold" json:"completeness_threshold"`
	MinimalTableLength        int     `yaml:"minimal_table_length" json:"minimal_table_length"`

	FallbackStrategy FallbackStrategy `yaml:"fallback_strategy" json:"fallback_strategy"`

	// 선택 항목
	AlternativeForecastModelPID *int64 `yaml:"alternative_forecast_model_pid,omitempty" json:"alternative_forecast_model_pid,omitempty"`
	DataPrepClass               string `yaml:"data_prep_class,omitempty" json:"data_prep_class,omitempty"`
	ModelRunID                  string `yaml:"model_run_id,omitempty" json:"model_run_id,omitempty"`
}

// DefaultPredictionJob returns a job with the standard thresholds filled in.
func DefaultPredictionJob(id int64) PredictionJob {
	return PredictionJob{
		ID:                        id,
		ForecastType:              "demand",
		Model:                     "xgb",
		ResolutionMinutes:         15,
		HorizonMinutes:            2880,
		Quantiles:                 []float64{0.05, 0.1, 0.3, 0.5, 0.7, 0.9, 0.95},
		FlatlinerThresholdMinutes: 1440,
		CompletenessThreshold:     0.5,
		MinimalTableLength:        100,
		FallbackStrategy:          FallbackExtremeDay,
	}
}

// ModelPID returns the experiment the model is loaded from.
// 대체 모델이 지정되면 그 pid를 사용
func (j PredictionJob) ModelPID() int64 {
	if j.AlternativeForecastModelPID != nil && *j.AlternativeForecastModelPID != 0 {
		return *j.AlternativeForecastModelPID
	}
	return j.ID
}

// ExperimentName is the registry key for this job's model.
func (j PredictionJob) ExperimentName() string {
	return fmt.Sprintf("%d", j.ModelPID())
}
