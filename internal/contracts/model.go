package contracts

// ModelSpecification 학습된 모델의 명세
// ⭐ SSOT: 모델 레지스트리가 소유, 읽기 전용으로 로드
type ModelSpecification struct {
	ID              string         `json:"id"`
	FeatureNames    []string       `json:"feature_names,omitempty"`
	FeatureModules  []string       `json:"feature_modules,omitempty"`
	Hyperparameters map[string]any `json:"hyperparameters,omitempty"`
}
