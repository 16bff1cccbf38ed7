package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/regressor"
)

// Schema model registry 테이블 DDL
const Schema = `
CREATE SCHEMA IF NOT EXISTS stef;
CREATE TABLE IF NOT EXISTS stef.model_runs (
	experiment    TEXT        NOT NULL,
	run_id        TEXT        NOT NULL,
	model_type    TEXT        NOT NULL,
	model         JSONB       NOT NULL,
	specification JSONB       NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (experiment, run_id)
);
CREATE INDEX IF NOT EXISTS model_runs_latest ON stef.model_runs (experiment, created_at DESC);
`

// Postgres PostgreSQL 기반 레지스트리
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Registry = (*Postgres)(nil)

// NewPostgres creates a registry on the given pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate creates the registry tables when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate model registry: %w", err)
	}
	return nil
}

// Load implements Registry.
func (p *Postgres) Load(ctx context.Context, experiment, runID string) (*regressor.Model, *contracts.ModelSpecification, error) {
	query := `
		SELECT run_id, model, specification
		FROM stef.model_runs
		WHERE experiment = $1 AND ($2 = '' OR run_id = $2)
		ORDER BY created_at DESC
		LIMIT 1`

	var (
		id        string
		modelData []byte
		specData  []byte
	)
	err := p.pool.QueryRow(ctx, query, experiment, runID).Scan(&id, &modelData, &specData)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, fmt.Errorf("run %s: %w", ModelPath(experiment, runID), ErrModelNotFound)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load model %s: %w", experiment, err)
	}
	return decode(experiment, id, modelData, specData)
}

// Save implements Registry.
func (p *Postgres) Save(ctx context.Context, experiment string, model *regressor.Model, spec contracts.ModelSpecification) (string, error) {
	modelData, specData, err := encode(model, spec)
	if err != nil {
		return "", err
	}
	runID := NewRunID()

	query := `
		INSERT INTO stef.model_runs (experiment, run_id, model_type, model, specification)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := p.pool.Exec(ctx, query, experiment, runID, string(model.Type), modelData, specData); err != nil {
		return "", fmt.Errorf("save model %s: %w", experiment, err)
	}
	return runID, nil
}

// Runs lists the runs of an experiment, newest first.
func (p *Postgres) Runs(ctx context.Context, experiment string) ([]Run, error) {
	query := `
		SELECT experiment, run_id, created_at
		FROM stef.model_runs
		WHERE experiment = $1
		ORDER BY created_at DESC`

	rows, err := p.pool.Query(ctx, query, experiment)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.Experiment, &r.RunID, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
