package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/service"
	"go.uber.org/zap"
)

// Response общий конверт ответа API
type Response[T any] struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      *T        `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
	Code      string    `json:"code,omitempty"`
}

func respondWithSuccess[T any](w http.ResponseWriter, statusCode int, data *T) {
	resp := Response[T]{
		Status:    "success",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

func respondWithError(w http.ResponseWriter, statusCode int, code, message string) {
	resp := Response[any]{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     message,
		Code:      code,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{service.ErrNoManagerAssigned, http.StatusConflict, "no_manager_assigned"},
	{service.ErrInvalidAssignment, http.StatusConflict, "invalid_assignment"},
	{service.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
	{service.ErrDuplicateOnboardingMeeting, http.StatusConflict, "duplicate_onboarding_meeting"},
	{service.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{service.ErrNoPendingReschedule, http.StatusConflict, "no_pending_reschedule"},
	{service.ErrReschedulePending, http.StatusConflict, "reschedule_pending"},
	{service.ErrApplicationReviewed, http.StatusConflict, "application_reviewed"},
	{service.ErrApplicationExists, http.StatusConflict, "application_exists"},
	{service.ErrOverrideExists, http.StatusConflict, "override_exists"},
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{service.ErrForbidden, http.StatusForbidden, "forbidden"},
	{service.ErrSectionLocked, http.StatusForbidden, "section_locked"},
	{service.ErrCreatorNotFound, http.StatusNotFound, "creator_not_found"},
	{service.ErrMeetingNotFound, http.StatusNotFound, "meeting_not_found"},
	{service.ErrApplicationNotFound, http.StatusNotFound, "application_not_found"},
	{service.ErrRuleNotFound, http.StatusNotFound, "rule_not_found"},
	{service.ErrManagerProfileMissing, http.StatusInternalServerError, "manager_profile_missing"},
}

// respondWithServiceError переводит ошибку сервиса в HTTP-ответ.
// Текст внутренних ошибок наружу не отдаётся.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			if m.status >= http.StatusInternalServerError {
				logger.Error("Data integrity error",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				respondWithError(w, m.status, m.code, "internal error")
				return
			}
			respondWithError(w, m.status, m.code, err.Error())
			return
		}
	}

	logger.Error("Request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, "internal", "internal error")
}
