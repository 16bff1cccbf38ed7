package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
)

// ErrModelNotFound 레지스트리에 해당 실험/실행의 모델이 없음
var ErrModelNotFound = errors.New("model not found")

// Registry 학습된 모델 저장소
// ⭐ SSOT: 예측 파이프라인과 튜닝 드라이버는 이 인터페이스로만 모델에 접근
type Registry interface {
	// Load returns the model and its specification. An empty runID selects the latest run.
	Load(ctx context.Context, experiment, runID string) (*regressor.Model, *contracts.ModelSpecification, error)
	// Save stores a model and returns the new run id.
	Save(ctx context.Context, experiment string, model *regressor.Model, spec contracts.ModelSpecification) (string, error)
}

// Run 저장된 모델 실행 정보
type Run struct {
	Experiment string    `json:"experiment"`
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// record 직렬화된 (model, spec) 쌍
// 모델은 JSON으로 보관해 로드할 때마다 독립된 스냅샷을 만든다.
type record struct {
	Model *regressor.Model             `json:"model"`
	Spec  contracts.ModelSpecification `json:"spec"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// ModelPath is the registry location of a run.
func ModelPath(experiment, runID string) string {
	return fmt.Sprintf("%s/%s", experiment, runID)
}

func encode(model *regressor.Model, spec contracts.ModelSpecification) ([]byte, []byte, error) {
	if model == nil || model.Estimator == nil {
		return nil, nil, errors.New("registry: nil model")
	}
	m, err := json.Marshal(model)
	if err != nil {
		return nil, nil, fmt.Errorf("encode model: %w", err)
	}
	s, err := json.Marshal(spec)
	if err != nil {
		return nil, nil, fmt.Errorf("encode specification: %w", err)
	}
	return m, s, nil
}

func decode(experiment, runID string, modelData, specData []byte) (*regressor.Model, *contracts.ModelSpecification, error) {
	var model regressor.Model
	if err := json.Unmarshal(modelData, &model); err != nil {
		return nil, nil, fmt.Errorf("decode model %s: %w", ModelPath(experiment, runID), err)
	}
	var spec contracts.ModelSpecification
	if err := json.Unmarshal(specData, &spec); err != nil {
		return nil, nil, fmt.Errorf("decode specification %s: %w", ModelPath(experiment, runID), err)
	}
	model.Path = ModelPath(experiment, runID)
	return &model, &spec, nil
}
