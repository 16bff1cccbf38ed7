package contracts

// Forecast pipeline stage 정의 (SSOT)
// 모든 로그와 메트릭 라벨에서 이 상수를 사용해야 함
//
// 파이프라인 흐름:
//   Load → Validate → DataPrep → Sufficiency → Predict|Fallback → Confidence → QuantileRepair → Metadata

// Stage represents a forecast pipeline stage
type Stage string

const (
	// StageLoad 모델 레지스트리에서 (model, spec) 로드
	StageLoad Stage = "load_model"

	// StageValidate 입력 검증 및 flatliner 정리
	StageValidate Stage = "validate"

	// StageDataPrep 피처 생성 (커스텀 data prep 또는 기본 applicator)
	StageDataPrep Stage = "data_prep"

	// StageSufficiency 완전성/최소 길이 검사
	StageSufficiency Stage = "sufficiency"

	// StagePredict 모델 추론
	StagePredict Stage = "predict"

	// StageFallback 휴리스틱 폴백 예측
	StageFallback Stage = "fallback"

	// StageConfidence 표준편차 및 분위수 추가
	StageConfidence Stage = "confidence"

	// StageQuantileRepair 분위수 교차 제거
	StageQuantileRepair Stage = "quantile_repair"

	// StageMetadata 작업 메타데이터 추가
	StageMetadata Stage = "metadata"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// AllStages returns the stages in execution order.
func AllStages() []Stage {
	return []Stage{
		StageLoad,
		StageValidate,
		StageDataPrep,
		StageSufficiency,
		StagePredict,
		StageFallback,
		StageConfidence,
		StageQuantileRepair,
		StageMetadata,
	}
}
