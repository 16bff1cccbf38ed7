package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

// ErrNoForecast 저장된 예측 없음
var ErrNoForecast = errors.New("no stored forecast")

// Schema 예측 결과 테이블 DDL
const Schema = `
CREATE SCHEMA IF NOT EXISTS stef;
CREATE TABLE IF NOT EXISTS stef.forecasts (
	pid         BIGINT           NOT NULL,
	ts          TIMESTAMPTZ      NOT NULL,
	forecast    DOUBLE PRECISION,
	stdev       DOUBLE PRECISION,
	quantiles   JSONB            NOT NULL DEFAULT '{}',
	quality     TEXT             NOT NULL,
	customer    TEXT             NOT NULL DEFAULT '',
	description TEXT             NOT NULL DEFAULT '',
	type        TEXT             NOT NULL DEFAULT '',
	algtype     TEXT             NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ      NOT NULL DEFAULT now(),
	PRIMARY KEY (pid, ts)
);
`

// Row 저장 단위 (예측 1행)
type Row struct {
	Time      time.Time
	Forecast  float64
	Stdev     float64
	Quantiles map[string]float64
}

// Repository 예측 결과 저장소
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the forecast table when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate forecasts: %w", err)
	}
	return nil
}

// Save upserts every row of a forecast in one batch. A newer forecast for the
// same timestamp replaces the stored one.
func (r *Repository) Save(ctx context.Context, fc *contracts.Forecast) error {
	rows := Rows(fc)
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO stef.forecasts
			(pid, ts, forecast, stdev, quantiles, quality, customer, description, type, algtype, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (pid, ts) DO UPDATE SET
			forecast = EXCLUDED.forecast,
			stdev = EXCLUDED.stdev,
			quantiles = EXCLUDED.quantiles,
			quality = EXCLUDED.quality,
			customer = EXCLUDED.customer,
			description = EXCLUDED.description,
			type = EXCLUDED.type,
			algtype = EXCLUDED.algtype,
			created_at = EXCLUDED.created_at`

	batch := &pgx.Batch{}
	for _, row := range rows {
		quantiles, err := json.Marshal(row.Quantiles)
		if err != nil {
			return err
		}
		batch.Queue(query, fc.PID, row.Time, nullableArg(row.Forecast), nullableArg(row.Stdev),
			quantiles, fc.Quality, fc.Customer, fc.Description, fc.Type, fc.AlgType)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save forecast pid %d: %w", fc.PID, err)
		}
	}
	return nil
}

// Get returns the stored forecast of a pid between from and to.
func (r *Repository) Get(ctx context.Context, pid int64, from, to time.Time) (*contracts.Forecast, error) {
	query := `
		SELECT ts, forecast, stdev, quantiles, quality, customer, description, type, algtype
		FROM stef.forecasts
		WHERE pid = $1 AND ts BETWEEN $2 AND $3
		ORDER BY ts`

	rows, err := r.pool.Query(ctx, query, pid, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out  []Row
		meta contracts.Forecast
	)
	for rows.Next() {
		var (
			row             Row
			forecast, stdev *float64
			quantiles       []byte
		)
		if err := rows.Scan(&row.Time, &forecast, &stdev, &quantiles,
			&meta.Quality, &meta.Customer, &meta.Description, &meta.Type, &meta.AlgType); err != nil {
			return nil, err
		}
		row.Forecast = nullable(forecast)
		row.Stdev = nullable(stdev)
		if err := json.Unmarshal(quantiles, &row.Quantiles); err != nil {
			return nil, fmt.Errorf("decode quantiles: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("pid %d: %w", pid, ErrNoForecast)
	}

	fc, err := FromRows(out)
	if err != nil {
		return nil, err
	}
	fc.PID = pid
	fc.Quality = meta.Quality
	fc.Customer = meta.Customer
	fc.Description = meta.Description
	fc.Type = meta.Type
	fc.AlgType = meta.AlgType
	return fc, nil
}

// Rows flattens a forecast into storage rows.
func Rows(fc *contracts.Forecast) []Row {
	point, _ := fc.Column(contracts.ColumnForecast)
	stdev, hasStdev := fc.Column(contracts.ColumnStdev)
	qcols := fc.QuantileColumns()

	out := make([]Row, fc.Len())
	for i, t := range fc.Index() {
		row := Row{Time: t, Forecast: math.NaN(), Stdev: math.NaN(), Quantiles: make(map[string]float64, len(qcols))}
		if point != nil {
			row.Forecast = point[i]
		}
		if hasStdev {
			row.Stdev = stdev[i]
		}
		for _, c := range qcols {
			if v := fc.At(c, i); !math.IsNaN(v) {
				row.Quantiles[c] = v
			}
		}
		out[i] = row
	}
	return out
}

// FromRows rebuilds a forecast from storage rows.
func FromRows(rows []Row) (*contracts.Forecast, error) {
	index := make([]time.Time, len(rows))
	point := make([]float64, len(rows))
	stdev := make([]float64, len(rows))
	quantiles := make(map[string][]float64)
	for i, row := range rows {
		index[i] = row.Time
		point[i] = row.Forecast
		stdev[i] = row.Stdev
		for c := range row.Quantiles {
			if _, ok := quantiles[c]; !ok {
				quantiles[c] = frame.NaNs(len(rows))
			}
		}
	}
	for i, row := range rows {
		for c, v := range row.Quantiles {
			quantiles[c][i] = v
		}
	}

	f := frame.New(index)
	if err := f.Set(contracts.ColumnForecast, point); err != nil {
		return nil, err
	}
	if frame.CountValid(stdev) > 0 {
		if err := f.Set(contracts.ColumnStdev, stdev); err != nil {
			return nil, err
		}
	}

	fc := contracts.NewForecast(f)
	names := make([]string, 0, len(quantiles))
	for c := range quantiles {
		names = append(names, c)
	}
	sort.Strings(names)
	for _, c := range names {
		q, ok := parseQuantileColumn(c)
		if !ok {
			continue
		}
		if err := f.Set(c, quantiles[c]); err != nil {
			return nil, err
		}
		fc.Quantiles = append(fc.Quantiles, q)
	}
	return fc, nil
}

func parseQuantileColumn(name string) (float64, bool) {
	var pct float64
	if !strings.HasPrefix(name, "quantile_P") {
		return 0, false
	}
	if _, err := fmt.Sscanf(strings.TrimPrefix(name, "quantile_P"), "%g", &pct); err != nil {
		return 0, false
	}
	return pct / 100, true
}

func nullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func nullableArg(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}
