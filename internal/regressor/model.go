package regressor

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

// FeatureImportance 피처별 중요도
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// StandardDeviation 잔차 표준편차 (hour-of-day × horizon)
type StandardDeviation struct {
	Hour    int     `json:"hour"`
	Horizon float64 `json:"horizon"`
	Stdev   float64 `json:"stdev"`
}

// Model 학습된 모델 스냅샷
// ⭐ SSOT: 예측 파이프라인은 Model만 사용 (estimator 직접 접근 금지)
type Model struct {
	Type              ModelType
	Estimator         Estimator
	FeatureImportance []FeatureImportance
	StandardDeviation []StandardDeviation
	// Path 레지스트리 저장 위치 (load 시 설정)
	Path string
}

// NewModel creates an unfitted model of the given family.
func NewModel(t ModelType) (*Model, error) {
	est, err := NewEstimator(t)
	if err != nil {
		return nil, err
	}
	return &Model{Type: t, Estimator: est}, nil
}

// Clone returns an independent copy (hyperparameters may be changed on the clone).
func (m *Model) Clone() *Model {
	c := &Model{
		Type:              m.Type,
		Estimator:         m.Estimator.Clone(),
		FeatureImportance: append([]FeatureImportance(nil), m.FeatureImportance...),
		StandardDeviation: append([]StandardDeviation(nil), m.StandardDeviation...),
		Path:              m.Path,
	}
	return c
}

// Predict returns point forecasts.
func (m *Model) Predict(x *frame.Frame) ([]float64, error) {
	return m.Estimator.Predict(x)
}

// FeatureNames returns the features used for training, in order.
func (m *Model) FeatureNames() []string {
	return m.Estimator.FeatureNames()
}

// UpdateFeatureImportance refreshes the importance table from the estimator.
func (m *Model) UpdateFeatureImportance() {
	imp := m.Estimator.FeatureImportance()
	rows := make([]FeatureImportance, 0, len(imp))
	for f, v := range imp {
		rows = append(rows, FeatureImportance{Feature: f, Importance: v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Importance != rows[j].Importance {
			return rows[i].Importance > rows[j].Importance
		}
		return rows[i].Feature < rows[j].Feature
	})
	m.FeatureImportance = rows
}

// Importance returns the stored importance of a feature (0 if unknown).
func (m *Model) Importance(feature string) float64 {
	for _, fi := range m.FeatureImportance {
		if fi.Feature == feature {
			return fi.Importance
		}
	}
	return 0
}

// QuantileModel returns the quantile estimator if it covers every requested quantile.
func (m *Model) QuantileModel(quantiles []float64) (QuantileEstimator, bool) {
	qe, ok := m.Estimator.(QuantileEstimator)
	if !ok {
		return nil, false
	}
	have := make(map[float64]struct{})
	for _, q := range qe.Quantiles() {
		have[q] = struct{}{}
	}
	for _, q := range quantiles {
		if _, ok := have[q]; !ok {
			return nil, false
		}
	}
	return qe, true
}

// =============================================================================
// JSON codec (레지스트리 저장 형식)
// =============================================================================

type modelJSON struct {
	Type              ModelType           `json:"type"`
	Estimator         json.RawMessage     `json:"estimator"`
	FeatureImportance []FeatureImportance `json:"feature_importance,omitempty"`
	StandardDeviation []StandardDeviation `json:"standard_deviation,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (m *Model) MarshalJSON() ([]byte, error) {
	est, err := json.Marshal(m.Estimator)
	if err != nil {
		return nil, fmt.Errorf("encode estimator: %w", err)
	}
	return json.Marshal(modelJSON{
		Type:              m.Type,
		Estimator:         est,
		FeatureImportance: m.FeatureImportance,
		StandardDeviation: m.StandardDeviation,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Model) UnmarshalJSON(data []byte) error {
	var raw modelJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	est, err := NewEstimator(raw.Type)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw.Estimator, est); err != nil {
		return fmt.Errorf("decode %s estimator: %w", raw.Type, err)
	}
	m.Type = raw.Type
	m.Estimator = est
	m.FeatureImportance = raw.FeatureImportance
	m.StandardDeviation = raw.StandardDeviation
	return nil
}
