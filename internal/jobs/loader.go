package jobs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/contracts"
)

// File 예측 작업 설정 파일
//
//	jobs:
//	  - id: 307
//	    name: Substation A
//	    model: xgb
//	    quantiles: [0.05, 0.5, 0.95]
type File struct {
	Jobs []contracts.PredictionJob `yaml:"jobs" json:"jobs"`
}

// Load reads and validates a jobs file.
func Load(path string) ([]contracts.PredictionJob, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes jobs YAML, fills defaults and validates every job.
// SSOT 핵심: KnownFields(true)로 오타/미사용 필드 즉시 실패
func Parse(r io.Reader) ([]contracts.PredictionJob, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var file File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true) // 알 수 없는 필드 발견 시 에러 반환
	if err := dec.Decode(&file); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}

	jobs := make([]contracts.PredictionJob, len(file.Jobs))
	for i, job := range file.Jobs {
		jobs[i] = WithDefaults(job)
	}
	if err := Validate(jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

// WithDefaults fills zero-valued fields with the standard job settings.
// 음수 threshold는 해당 검사 비활성화
func WithDefaults(job contracts.PredictionJob) contracts.PredictionJob {
	def := contracts.DefaultPredictionJob(job.ID)
	if job.ForecastType == "" {
		job.ForecastType = def.ForecastType
	}
	if job.Model == "" {
		job.Model = def.Model
	}
	if job.ResolutionMinutes == 0 {
		job.ResolutionMinutes = def.ResolutionMinutes
	}
	if job.HorizonMinutes == 0 {
		job.HorizonMinutes = def.HorizonMinutes
	}
	if len(job.Quantiles) == 0 {
		job.Quantiles = append([]float64(nil), def.Quantiles...)
	}
	if job.FlatlinerThresholdMinutes == 0 {
		job.FlatlinerThresholdMinutes = def.FlatlinerThresholdMinutes
	}
	if job.CompletenessThreshold == 0 {
		job.CompletenessThreshold = def.CompletenessThreshold
	}
	if job.MinimalTableLength == 0 {
		job.MinimalTableLength = def.MinimalTableLength
	}
	job.FallbackStrategy = job.FallbackStrategy.Resolve()
	return job
}

// Hash returns the SHA256 of the jobs' canonical JSON (audit / change detection).
func Hash(jobs []contracts.PredictionJob) (string, error) {
	data, err := json.Marshal(File{Jobs: jobs})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Find returns the job with the given id.
func Find(jobs []contracts.PredictionJob, id int64) (contracts.PredictionJob, bool) {
	for _, j := range jobs {
		if j.ID == id {
			return j, true
		}
	}
	return contracts.PredictionJob{}, false
}
