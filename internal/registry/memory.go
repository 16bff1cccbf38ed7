package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
)

// Memory 프로세스 내 레지스트리 (테스트, 단발성 CLI 실행용)
type Memory struct {
	mu   sync.RWMutex
	runs map[string][]memoryRun
	now  func() time.Time
}

type memoryRun struct {
	Run
	model []byte
	spec  []byte
}

var _ Registry = (*Memory)(nil)

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string][]memoryRun), now: time.Now}
}

// Load implements Registry.
func (m *Memory) Load(ctx context.Context, experiment, runID string) (*regressor.Model, *contracts.ModelSpecification, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := m.runs[experiment]
	if len(runs) == 0 {
		return nil, nil, fmt.Errorf("experiment %q: %w", experiment, ErrModelNotFound)
	}
	if runID == "" {
		r := runs[len(runs)-1]
		return decode(experiment, r.RunID, r.model, r.spec)
	}
	for _, r := range runs {
		if r.RunID == runID {
			return decode(experiment, r.RunID, r.model, r.spec)
		}
	}
	return nil, nil, fmt.Errorf("run %s: %w", ModelPath(experiment, runID), ErrModelNotFound)
}

// Save implements Registry.
func (m *Memory) Save(ctx context.Context, experiment string, model *regressor.Model, spec contracts.ModelSpecification) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	modelData, specData, err := encode(model, spec)
	if err != nil {
		return "", err
	}
	runID := NewRunID()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[experiment] = append(m.runs[experiment], memoryRun{
		Run:   Run{Experiment: experiment, RunID: runID, CreatedAt: m.now()},
		model: modelData,
		spec:  specData,
	})
	return runID, nil
}

// Runs lists the runs of an experiment, oldest first.
func (m *Memory) Runs(experiment string) []Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Run, 0, len(m.runs[experiment]))
	for _, r := range m.runs[experiment] {
		out = append(out, r.Run)
	}
	return out
}
