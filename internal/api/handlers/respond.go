package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lf-energy-projects-renovation-state/openstef/internal/fallback"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/registry"
	"github.com/lf-energy-projects-renovation-state/openstef/internal/validation"
)

// errorBody 에러 응답 본문
// Kind 는 파이프라인 센티넬 에러에서만 채움 (클라이언트 분기용)
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// pipelineErrors 센티넬 → (HTTP status, kind)
// ⭐ SSOT: 예측 에러의 HTTP 매핑은 여기서만
var pipelineErrors = []struct {
	target error
	status int
	kind   string
}{
	{registry.ErrModelNotFound, http.StatusNotFound, "model_not_found"},
	{validation.ErrOngoingFlatliner, http.StatusUnprocessableEntity, "ongoing_flatliner"},
	{fallback.ErrFallbackSuppressed, http.StatusUnprocessableEntity, "fallback_suppressed"},
	{fallback.ErrNoLoadData, http.StatusUnprocessableEntity, "no_load_data"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondPipelineError writes err with the status of the first matching sentinel, 500 otherwise
func respondPipelineError(w http.ResponseWriter, err error) {
	for _, pe := range pipelineErrors {
		if errors.Is(err, pe.target) {
			respondJSON(w, pe.status, errorBody{Error: err.Error(), Kind: pe.kind})
			return
		}
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}
