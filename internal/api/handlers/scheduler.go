package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/scheduler"
	"github.com/lf-energy-projects-renovation-state/openstef/pkg/logger"
)

// JobRunner 스케줄러 조회/수동 실행
type JobRunner interface {
	GetJobStats() map[string]scheduler.JobStats
	RunJob(jobName string) error
}

// SchedulerHandler handles scheduler API endpoints
type SchedulerHandler struct {
	scheduler JobRunner
	logger    *logger.Logger
}

// NewSchedulerHandler creates a new scheduler handler
func NewSchedulerHandler(s JobRunner, log *logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s, logger: log}
}

// GetStats returns statistics for all scheduled jobs
// GET /api/scheduler/jobs
func (h *SchedulerHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}

// RunJob triggers a scheduled job outside of its schedule
// POST /api/scheduler/jobs/{name}/run
func (h *SchedulerHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := h.scheduler.RunJob(name); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	h.logger.WithField("job", name).Info("Job triggered via API")
	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"job":    name,
	})
}
