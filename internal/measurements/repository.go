package measurements

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
)

// Schema 측정값/예측 변수 테이블 DDL
const Schema = `
CREATE SCHEMA IF NOT EXISTS stef;
CREATE TABLE IF NOT EXISTS stef.measurements (
	pid  BIGINT           NOT NULL,
	ts   TIMESTAMPTZ      NOT NULL,
	load DOUBLE PRECISION,
	PRIMARY KEY (pid, ts)
);
CREATE TABLE IF NOT EXISTS stef.predictors (
	pid   BIGINT           NOT NULL,
	name  TEXT             NOT NULL,
	ts    TIMESTAMPTZ      NOT NULL,
	value DOUBLE PRECISION,
	PRIMARY KEY (pid, name, ts)
);
`

// Point 단일 시계열 값
type Point struct {
	Name  string
	Time  time.Time
	Value float64
}

// Window 예측 입력 구간
type Window struct {
	From time.Time
	To   time.Time
	// Resolution 행 간격 (0이면 15분)
	Resolution time.Duration
}

// InputWindow returns the input window of a job at now: history days back, the
// job horizon ahead, aligned to the job resolution.
func InputWindow(job contracts.PredictionJob, now time.Time, historyDays int) Window {
	res := time.Duration(job.ResolutionMinutes) * time.Minute
	if res <= 0 {
		res = 15 * time.Minute
	}
	end := now.Truncate(res)
	return Window{
		From:       end.AddDate(0, 0, -historyDays),
		To:         end.Add(time.Duration(job.HorizonMinutes) * time.Minute),
		Resolution: res,
	}
}

// Repository 측정값 저장소
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository 새 저장소 생성
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Migrate creates the measurement tables when missing.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate measurements: %w", err)
	}
	return nil
}

// Input loads measured load and predictors of a pid onto the window grid.
// Grid rows without a measurement hold NaN.
func (r *Repository) Input(ctx context.Context, pid int64, w Window) (*frame.Frame, error) {
	loadQuery := `
		SELECT ts, load
		FROM stef.measurements
		WHERE pid = $1 AND ts BETWEEN $2 AND $3
		ORDER BY ts`

	load, err := r.points(ctx, loadQuery, pid, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("load measurements pid %d: %w", pid, err)
	}

	predictorQuery := `
		SELECT name, ts, value
		FROM stef.predictors
		WHERE pid = $1 AND ts BETWEEN $2 AND $3
		ORDER BY name, ts`

	rows, err := r.pool.Query(ctx, predictorQuery, pid, w.From, w.To)
	if err != nil {
		return nil, fmt.Errorf("load predictors pid %d: %w", pid, err)
	}
	defer rows.Close()

	var predictors []Point
	for rows.Next() {
		var (
			p     Point
			value *float64
		)
		if err := rows.Scan(&p.Name, &p.Time, &value); err != nil {
			return nil, err
		}
		p.Value = nullable(value)
		predictors = append(predictors, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return BuildFrame(w, load, predictors)
}

func (r *Repository) points(ctx context.Context, query string, args ...any) ([]Point, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var (
			p     Point
			value *float64
		)
		if err := rows.Scan(&p.Time, &value); err != nil {
			return nil, err
		}
		p.Name = contracts.ColumnLoad
		p.Value = nullable(value)
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveLoad upserts measured load values in one batch.
func (r *Repository) SaveLoad(ctx context.Context, pid int64, points []Point) error {
	query := `
		INSERT INTO stef.measurements (pid, ts, load)
		VALUES ($1, $2, $3)
		ON CONFLICT (pid, ts) DO UPDATE SET load = EXCLUDED.load`

	return r.sendBatch(ctx, points, func(b *pgx.Batch, p Point) {
		b.Queue(query, pid, p.Time, nullableArg(p.Value))
	})
}

// SavePredictors upserts predictor values in one batch.
func (r *Repository) SavePredictors(ctx context.Context, pid int64, points []Point) error {
	query := `
		INSERT INTO stef.predictors (pid, name, ts, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pid, name, ts) DO UPDATE SET value = EXCLUDED.value`

	return r.sendBatch(ctx, points, func(b *pgx.Batch, p Point) {
		b.Queue(query, pid, p.Name, p.Time, nullableArg(p.Value))
	})
}

func (r *Repository) sendBatch(ctx context.Context, points []Point, queue func(*pgx.Batch, Point)) error {
	if len(points) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		queue(batch, p)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range points {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ImportFrame converts a frame (load + predictor columns) into points for saving.
func ImportFrame(f *frame.Frame) (load []Point, predictors []Point) {
	index := f.Index()
	for _, c := range f.Columns() {
		values, _ := f.Column(c)
		for i, v := range values {
			if math.IsNaN(v) {
				continue
			}
			p := Point{Name: c, Time: index[i], Value: v}
			if c == contracts.ColumnLoad {
				load = append(load, p)
			} else {
				predictors = append(predictors, p)
			}
		}
	}
	return load, predictors
}

// BuildFrame places points on the regular window grid. The load column is first;
// predictor columns follow in name order. Points off the grid are ignored.
func BuildFrame(w Window, load []Point, predictors []Point) (*frame.Frame, error) {
	res := w.Resolution
	if res <= 0 {
		res = 15 * time.Minute
	}
	if w.To.Before(w.From) {
		return nil, fmt.Errorf("window ends before it starts: %s < %s", w.To, w.From)
	}

	var index []time.Time
	for t := w.From; !t.After(w.To); t = t.Add(res) {
		index = append(index, t.UTC())
	}
	rowAt := make(map[int64]int, len(index))
	for i, t := range index {
		rowAt[t.UnixNano()] = i
	}

	columns := map[string][]float64{contracts.ColumnLoad: frame.NaNs(len(index))}
	place := func(p Point) {
		i, ok := rowAt[p.Time.UnixNano()]
		if !ok {
			return
		}
		col, ok := columns[p.Name]
		if !ok {
			col = frame.NaNs(len(index))
			columns[p.Name] = col
		}
		col[i] = p.Value
	}
	for _, p := range load {
		p.Name = contracts.ColumnLoad
		place(p)
	}
	for _, p := range predictors {
		if p.Name == contracts.ColumnLoad || p.Name == contracts.ColumnHorizon {
			continue
		}
		place(p)
	}

	names := make([]string, 0, len(columns))
	for n := range columns {
		if n != contracts.ColumnLoad {
			names = append(names, n)
		}
	}
	sort.Strings(names)

	out := frame.New(index)
	for _, n := range append([]string{contracts.ColumnLoad}, names...) {
		if err := out.Set(n, columns[n]); err != nil {
			return nil, err
		}
	}
	return out, nil
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
