package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/service"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	svc      Services
	activity ActivityTracker
	logger   *zap.Logger
}

func NewHandler(svc Services, activity ActivityTracker, logger *zap.Logger) *Handler {
	return &Handler{
		svc:      svc,
		activity: activity,
		logger:   logger,
	}
}

// actor пользователь запроса. Роль читается из базы, а не из токена.
func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return nil, false
	}

	user, err := h.svc.Users.GetByID(r.Context(), claims.UserID)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return nil, false
	}

	if user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized. Unknown user")
		return nil, false
	}

	return user, true
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad %s", service.ErrInvalidInput, name)
	}
	return id, nil
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", service.ErrInvalidInput)
	}
	d, err := model.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}
	return d, nil
}

func parsePurpose(s string) (model.MeetingPurpose, error) {
	if s == "" {
		return model.PurposeOnboarding, nil
	}
	p := model.MeetingPurpose(s)
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown purpose %q", service.ErrInvalidInput, s)
	}
	return p, nil
}

// canViewCreator свои данные видит создатель, чужие - сотрудники
func canViewCreator(actor *model.User, creatorID int64) bool {
	return actor.ID == creatorID || actor.Role.IsStaff()
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithSuccess(w, http.StatusOK, &map[string]string{"state": "ok"})
}

// ManagerSlots GET /managers/{id}/slots?date=&purpose=
func (h *Handler) ManagerSlots(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}

	managerID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	purpose, err := parsePurpose(r.URL.Query().Get("purpose"))
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	schedule, err := h.svc.Slots.GenerateSlots(r.Context(), managerID, date, purpose)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, schedule)
}

// OpenSlots GET /creators/{id}/open-slots?date=&purpose=
func (h *Handler) OpenSlots(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	creatorID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if !canViewCreator(actor, creatorID) {
		respondWithServiceError(w, h.logger, r, service.ErrForbidden)
		return
	}

	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	purpose, err := parsePurpose(r.URL.Query().Get("purpose"))
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	schedule, err := h.svc.Booking.OpenSlots(r.Context(), creatorID, date, purpose)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, schedule)
}

// Stages GET /creators/{id}/stages
func (h *Handler) Stages(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	creatorID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if !canViewCreator(actor, creatorID) {
		respondWithServiceError(w, h.logger, r, service.ErrForbidden)
		return
	}

	progress, err := h.svc.Lifecycle.Stages(r.Context(), creatorID)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, &progress)
}

type accessResponse struct {
	CreatorID int64       `json:"creator_id"`
	Level     model.Level `json:"level"`
}

// Access GET /creators/{id}/access
func (h *Handler) Access(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	creatorID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if !canViewCreator(actor, creatorID) {
		respondWithServiceError(w, h.logger, r, service.ErrForbidden)
		return
	}

	level, err := h.svc.Access.Resolve(r.Context(), creatorID)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, &accessResponse{CreatorID: creatorID, Level: level})
}

type grantAccessRequest struct {
	Level model.Level `json:"level"`
}

// GrantAccess POST /creators/{id}/access
func (h *Handler) GrantAccess(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	creatorID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	var req grantAccessRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	record, err := h.svc.Access.GrantAccess(r.Context(), actor, creatorID, req.Level)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, record)
}

type bookRequest struct {
	CreatorID *int64               `json:"creator_id"`
	Date      string               `json:"date"`
	Time      model.TimeOfDay      `json:"time"`
	Type      model.MeetingType    `json:"type"`
	Purpose   model.MeetingPurpose `json:"purpose"`
}

// bookingTarget создатель, за которого записывается actor, и инициатор записи
func bookingTarget(actor *model.User, creatorID *int64) (int64, service.Initiator, error) {
	if creatorID == nil || *creatorID == actor.ID {
		if actor.Role.IsStaff() && creatorID == nil {
			return 0, "", fmt.Errorf("%w: creator_id is required", service.ErrInvalidInput)
		}
		return actor.ID, service.InitiatorCreator, nil
	}
	if !actor.Role.IsStaff() {
		return 0, "", service.ErrForbidden
	}
	return *creatorID, service.InitiatorManager, nil
}

// BookMeeting POST /meetings
func (h *Handler) BookMeeting(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	creatorID, initiator, err := bookingTarget(actor, req.CreatorID)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if req.Type == "" {
		req.Type = model.MeetingTypeRemote
	}
	if req.Purpose == "" {
		req.Purpose = model.PurposeOnboarding
	}

	meeting, err := h.svc.Booking.BookOrReschedule(r.Context(), service.BookingRequest{
		CreatorID: creatorID,
		ActorID:   actor.ID,
		Date:      date,
		Time:      req.Time,
		Type:      req.Type,
		Purpose:   req.Purpose,
		Initiator: initiator,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, meeting)
}

type rescheduleRequest struct {
	CreatorID *int64          `json:"creator_id"`
	Date      string          `json:"date"`
	Time      model.TimeOfDay `json:"time"`
}

// RequestReschedule POST /meetings/{id}/reschedule
func (h *Handler) RequestReschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	meetingID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	var req rescheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	creatorID, initiator, err := bookingTarget(actor, req.CreatorID)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	meeting, err := h.svc.Booking.BookOrReschedule(r.Context(), service.BookingRequest{
		CreatorID: creatorID,
		ActorID:   actor.ID,
		Date:      date,
		Time:      req.Time,
		Initiator: initiator,
		MeetingID: meetingID,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusAccepted, meeting)
}

type decisionRequest struct {
	Approve bool `json:"approve"`
}

// DecideReschedule POST /meetings/{id}/reschedule/decision
func (h *Handler) DecideReschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	meetingID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	var req decisionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	meeting, err := h.svc.Booking.DecideReschedule(r.Context(), actor, meetingID, req.Approve)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, meeting)
}

type meetingAction func(h *Handler, r *http.Request, actor *model.User, meetingID int64) (*model.Meeting, error)

func (h *Handler) meetingAction(action meetingAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := h.actor(w, r)
		if !ok {
			return
		}

		meetingID, err := pathID(r, "id")
		if err != nil {
			respondWithServiceError(w, h.logger, r, err)
			return
		}

		meeting, err := action(h, r, actor, meetingID)
		if err != nil {
			respondWithServiceError(w, h.logger, r, err)
			return
		}

		respondWithSuccess(w, http.StatusOK, meeting)
	}
}

// ConfirmMeeting POST /meetings/{id}/confirm
func (h *Handler) ConfirmMeeting() http.HandlerFunc {
	return h.meetingAction(func(h *Handler, r *http.Request, actor *model.User, id int64) (*model.Meeting, error) {
		return h.svc.Booking.ConfirmMeeting(r.Context(), actor, id)
	})
}

// CancelMeeting POST /meetings/{id}/cancel
func (h *Handler) CancelMeeting() http.HandlerFunc {
	return h.meetingAction(func(h *Handler, r *http.Request, actor *model.User, id int64) (*model.Meeting, error) {
		return h.svc.Booking.CancelMeeting(r.Context(), actor, id)
	})
}

// CompleteMeeting POST /meetings/{id}/complete
func (h *Handler) CompleteMeeting() http.HandlerFunc {
	return h.meetingAction(func(h *Handler, r *http.Request, actor *model.User, id int64) (*model.Meeting, error) {
		return h.svc.Booking.CompleteMeeting(r.Context(), actor, id)
	})
}

type applicationRequest struct {
	ContactIdentity string `json:"contact_identity"`
	DisplayName     string `json:"display_name"`
}

// SubmitApplication POST /applications, без авторизации
func (h *Handler) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	var req applicationRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	app, err := h.svc.Applications.Submit(r.Context(), req.ContactIdentity, req.DisplayName)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, app)
}

type reviewRequest struct {
	Approve   bool   `json:"approve"`
	Notes     string `json:"notes"`
	ManagerID *int64 `json:"manager_id"`
}

type reviewResponse struct {
	Application *model.Application `json:"application"`
	Creator     *model.User        `json:"creator,omitempty"`
}

// ReviewApplication POST /applications/{id}/review
func (h *Handler) ReviewApplication(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	appID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	var req reviewRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	app, creator, err := h.svc.Applications.Review(r.Context(), actor, appID, service.ReviewDecision{
		Approve:   req.Approve,
		Notes:     req.Notes,
		ManagerID: req.ManagerID,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, &reviewResponse{Application: app, Creator: creator})
}

type notesRequest struct {
	Notes string `json:"notes"`
}

// UpdateApplicationNotes POST /applications/{id}/notes
func (h *Handler) UpdateApplicationNotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	appID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	var req notesRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if err := h.svc.Applications.UpdateNotes(r.Context(), actor, appID, req.Notes); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, &map[string]int64{"updated": appID})
}

type assignManagerRequest struct {
	ManagerID int64 `json:"manager_id"`
}

// ListManagers GET /managers
func (h *Handler) ListManagers(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	if !actor.Role.IsAdmin() {
		respondWithServiceError(w, h.logger, r, service.ErrForbidden)
		return
	}

	managers, err := h.svc.Users.ListManagers(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if managers == nil {
		managers = []*model.User{}
	}
	respondWithSuccess(w, http.StatusOK, &managers)
}

// AssignManager POST /creators/{id}/manager
func (h *Handler) AssignManager(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	creatorID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	var req assignManagerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	creator, err := h.svc.Applications.AssignManager(r.Context(), actor, creatorID, req.ManagerID)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, creator)
}

// CompleteSection POST /creators/{id}/sections/{n}
func (h *Handler) CompleteSection(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	creatorID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if !canViewCreator(actor, creatorID) {
		respondWithServiceError(w, h.logger, r, service.ErrForbidden)
		return
	}

	section, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		respondWithServiceError(w, h.logger, r, fmt.Errorf("%w: bad section", service.ErrInvalidInput))
		return
	}

	progress, err := h.svc.Onboarding.CompleteSection(r.Context(), creatorID, section)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, progress)
}

// SignContract POST /creators/{id}/contract/sign, только сам создатель
func (h *Handler) SignContract(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	creatorID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if actor.ID != creatorID {
		respondWithServiceError(w, h.logger, r, service.ErrForbidden)
		return
	}

	contract, err := h.svc.Contracts.Sign(r.Context(), creatorID)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, contract)
}

type ruleRequest struct {
	DayOfWeek       *int            `json:"day_of_week"`
	SpecificDate    *string         `json:"specific_date"`
	StartTime       model.TimeOfDay `json:"start_time"`
	EndTime         model.TimeOfDay `json:"end_time"`
	DurationMinutes int             `json:"duration_minutes"`
	IsAvailable     *bool           `json:"is_available"`
}

func (req ruleRequest) toRule(managerID int64) (*model.AvailabilityRule, error) {
	rule := &model.AvailabilityRule{
		ManagerID:       managerID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		DurationMinutes: req.DurationMinutes,
		IsAvailable:     true,
	}

	if req.IsAvailable != nil {
		rule.IsAvailable = *req.IsAvailable
	}

	if req.DayOfWeek != nil {
		wd := time.Weekday(*req.DayOfWeek)
		rule.DayOfWeek = &wd
	}

	if req.SpecificDate != nil {
		date, err := parseDate(*req.SpecificDate)
		if err != nil {
			return nil, err
		}
		rule.SpecificDate = &date
	}

	return rule, nil
}

type rulesResponse struct {
	Rules []*model.AvailabilityRule `json:"rules"`
}

// ListRules GET /managers/{id}/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}

	managerID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	rules, err := h.svc.Availability.ListRules(r.Context(), managerID)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if rules == nil {
		rules = []*model.AvailabilityRule{}
	}

	respondWithSuccess(w, http.StatusOK, &rulesResponse{Rules: rules})
}

// CreateRule POST /managers/{id}/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	managerID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	var req ruleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	rule, err := req.toRule(managerID)
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if err := h.svc.Availability.CreateRule(r.Context(), actor, rule); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusCreated, rule)
}

// DeleteRule DELETE /managers/{id}/rules/{ruleID}
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}

	managerID, err := pathID(r, "id")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	ruleID, err := pathID(r, "ruleID")
	if err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	if err := h.svc.Availability.DeleteRule(r.Context(), actor, managerID, ruleID); err != nil {
		respondWithServiceError(w, h.logger, r, err)
		return
	}

	respondWithSuccess(w, http.StatusOK, &map[string]int64{"deleted": ruleID})
}

type sessionResponse struct {
	UserID           int64 `json:"user_id"`
	RemainingSeconds int64 `json:"remaining_seconds"`
}

// Session GET /session, оставшееся время до подсказки о выходе
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	var remaining time.Duration
	if h.activity != nil {
		remaining = h.activity.Remaining(claims.UserID)
	}

	respondWithSuccess(w, http.StatusOK, &sessionResponse{
		UserID:           claims.UserID,
		RemainingSeconds: int64(remaining / time.Second),
	})
}

// Logout POST /session/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	if h.activity != nil {
		h.activity.Remove(claims.UserID)
	}

	respondWithSuccess(w, http.StatusOK, &sessionResponse{UserID: claims.UserID})
}

type linkCodeResponse struct {
	Code      string `json:"code"`
	ExpiresIn int64  `json:"expires_in"`
}

// TelegramCode POST /session/telegram-code
func (h *Handler) TelegramCode(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
		return
	}

	if h.svc.LinkCodes == nil {
		respondWithError(w, http.StatusNotFound, "telegram_disabled", "Telegram linking is disabled")
		return
	}

	code, ttl := h.svc.LinkCodes.Issue(claims.UserID)
	respondWithSuccess(w, http.StatusCreated, &linkCodeResponse{
		Code:      code,
		ExpiresIn: int64(ttl / time.Second),
	})
}
