package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/features"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/forecast"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/frame"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/jobs"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/measurements"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/metrics"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/objective"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/pipeline"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/registry"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/tuning"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/config"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/database"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/httputil"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/redis"
)

// app 명령어 공통 의존성
// ⭐ SSOT: 컴포넌트 조립은 여기서만
type app struct {
	cfg       *config.Config
	log       *logger.Logger
	db        *database.DB // DATABASE_URL 없으면 nil
	redis     *redis.Client
	registry  registry.Registry
	jobs      []contracts.PredictionJob
	functions features.Functions

	measurements *measurements.Repository
	forecasts    *forecast.Repository
}

// newApp loads config, jobs and holidays and connects the stores
func newApp(ctx context.Context) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if jobsFile != "" {
		cfg.JobsFile = jobsFile
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	if cfg.MetricsEnabled {
		if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	// 3. Prediction jobs
	predictionJobs, err := jobs.Load(cfg.JobsFile)
	if err != nil {
		return nil, err
	}

	// 4. Holiday feature functions
	holidays, err := loadHolidays(ctx, httputil.New(cfg, log), cfg.HolidayFiles)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		jobs:      predictionJobs,
		functions: features.HolidayFunctions(holidays),
	}

	// 5. Connect to database
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.measurements = measurements.NewRepository(db.Pool)
		a.forecasts = forecast.NewRepository(db.Pool)
	}

	// 6. Redis (캐시 실패는 치명적이지 않음)
	rc, err := redis.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		rc = redis.Disabled()
	}
	a.redis = rc

	// 7. Model registry
	var base registry.Registry
	switch cfg.Registry.Backend {
	case config.RegistryPostgres:
		base = registry.NewPostgres(a.db.Pool)
	default:
		base = registry.NewMemory()
	}
	cached := registry.NewCached(base, redis.NewCache(rc, "stef:registry", cfg.Registry.CacheTTL), log.Zerolog())
	a.registry = registry.NewThrottled(cached, cfg.Registry.LoadRate, cfg.Registry.LoadBurst)

	log.WithFields(map[string]interface{}{
		"jobs":     len(predictionJobs),
		"holidays": len(holidays),
		"registry": cfg.Registry.Backend,
		"database": a.db != nil,
		"redis":    rc.Enabled(),
	}).Info("Application initialized")

	return a, nil
}

// Close releases connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.redis.Close()
}

// requireDB fails when no database is configured
func (a *app) requireDB() error {
	if a.db == nil {
		return fmt.Errorf("DATABASE_URL is required for this command")
	}
	return nil
}

func (a *app) pipeline() *pipeline.Pipeline {
	return pipeline.NewPipelineWithConfig(pipeline.Config{Features: a.functions}, a.registry, a.log.Zerolog())
}

func (a *app) trainer() *tuning.Trainer {
	tc := a.cfg.Tuning
	objCfg := objective.DefaultConfig()
	objCfg.TestFraction = tc.TestFraction
	objCfg.ValidationFraction = tc.ValidationFraction
	objCfg.EvalMetric = tc.EvalMetric

	opts := tuning.Options{
		Trials:        tc.Trials,
		Parallelism:   tc.Parallelism,
		Seed:          tc.Seed,
		StartupTrials: tc.StartupTrials,
		WarmupSteps:   tc.WarmupSteps,
	}
	// 학습 피처 해상도: 15분
	applicator := features.NewApplicator(a.functions, 15*time.Minute, a.log.Zerolog())
	return tuning.NewTrainer(a.registry, applicator, objCfg, opts, a.log.Zerolog())
}

// selectJobs returns the jobs for the given pids (all jobs when empty)
func (a *app) selectJobs(pids []int64) ([]contracts.PredictionJob, error) {
	if len(pids) == 0 {
		return a.jobs, nil
	}
	out := make([]contracts.PredictionJob, 0, len(pids))
	for _, pid := range pids {
		job, ok := jobs.Find(a.jobs, pid)
		if !ok {
			return nil, fmt.Errorf("unknown prediction job %d", pid)
		}
		out = append(out, job)
	}
	return out, nil
}

// loadHolidays reads holiday CSVs from local paths or http(s) URLs
func loadHolidays(ctx context.Context, client *httputil.Client, sources []string) ([]features.Holiday, error) {
	var out []features.Holiday
	for _, src := range sources {
		if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
			hs, err := features.LoadHolidayFiles(src)
			if err != nil {
				return nil, err
			}
			out = append(out, hs...)
			continue
		}

		body, err := client.Fetch(ctx, src)
		if err != nil {
			return nil, fmt.Errorf("fetch holidays: %w", err)
		}
		hs, err := features.ParseHolidays(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src, err)
		}
		out = append(out, hs...)
	}
	return out, nil
}

// readFrameFile reads a CSV frame from disk
func readFrameFile(path string) (*frame.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	data, err := frame.ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data.SortByIndex(), nil
}

// writeFrameFile writes a CSV frame to path, or stdout when path is empty
func writeFrameFile(path string, f *frame.Frame) error {
	if path == "" {
		return frame.WriteCSV(os.Stdout, f)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := frame.WriteCSV(out, f); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
