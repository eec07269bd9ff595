package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/service"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type mockUsers map[int64]*model.User

func (m mockUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return m[id], nil
}

func (m mockUsers) ListManagers(ctx context.Context) ([]*model.User, error) {
	var managers []*model.User
	for _, u := range m {
		if u.Role == model.RoleManager {
			managers = append(managers, u)
		}
	}
	return managers, nil
}

type mockBooking struct {
	bookFunc     func(ctx context.Context, req service.BookingRequest) (*model.Meeting, error)
	completeFunc func(ctx context.Context, actor *model.User, id int64) (*model.Meeting, error)
}

func (m *mockBooking) BookOrReschedule(ctx context.Context, req service.BookingRequest) (*model.Meeting, error) {
	return m.bookFunc(ctx, req)
}

func (m *mockBooking) DecideReschedule(ctx context.Context, actor *model.User, id int64, approve bool) (*model.Meeting, error) {
	return &model.Meeting{ID: id}, nil
}

func (m *mockBooking) ConfirmMeeting(ctx context.Context, actor *model.User, id int64) (*model.Meeting, error) {
	return &model.Meeting{ID: id, Status: model.MeetingStatusConfirmed}, nil
}

func (m *mockBooking) CancelMeeting(ctx context.Context, actor *model.User, id int64) (*model.Meeting, error) {
	return &model.Meeting{ID: id, Status: model.MeetingStatusCancelled}, nil
}

func (m *mockBooking) CompleteMeeting(ctx context.Context, actor *model.User, id int64) (*model.Meeting, error) {
	return m.completeFunc(ctx, actor, id)
}

func (m *mockBooking) OpenSlots(ctx context.Context, creatorID int64, date time.Time, purpose model.MeetingPurpose) (*service.Schedule, error) {
	return &service.Schedule{Date: date, Slots: []service.Slot{}}, nil
}

type mockLifecycle struct{}

func (mockLifecycle) Stages(ctx context.Context, creatorID int64) (model.Progress, error) {
	return service.ComputeStages(service.LifecycleInputs{}), nil
}

type mockApplications struct {
	submitted []string
	notes     map[int64]string
}

func (m *mockApplications) Submit(ctx context.Context, contact, displayName string) (*model.Application, error) {
	m.submitted = append(m.submitted, contact)
	return &model.Application{ID: 1, ContactIdentity: contact, Status: model.ApplicationStatusPending}, nil
}

func (m *mockApplications) Review(ctx context.Context, admin *model.User, appID int64, d service.ReviewDecision) (*model.Application, *model.User, error) {
	return nil, nil, service.ErrForbidden
}

func (m *mockApplications) UpdateNotes(ctx context.Context, admin *model.User, appID int64, notes string) error {
	if !admin.Role.IsAdmin() {
		return service.ErrForbidden
	}
	if m.notes == nil {
		m.notes = make(map[int64]string)
	}
	m.notes[appID] = notes
	return nil
}

func (m *mockApplications) AssignManager(ctx context.Context, admin *model.User, creatorID, managerID int64) (*model.User, error) {
	if creatorID == managerID {
		return nil, service.ErrInvalidAssignment
	}
	return &model.User{ID: creatorID, ManagerID: &managerID}, nil
}

func newTestRouter(t *testing.T, booking *mockBooking, apps *mockApplications) http.Handler {
	t.Helper()

	users := mockUsers{
		1:  {ID: 1, Role: model.RoleCreator},
		2:  {ID: 2, Role: model.RoleCreator},
		10: {ID: 10, Role: model.RoleManager},
		99: {ID: 99, Role: model.RoleAdmin},
	}

	if booking == nil {
		booking = &mockBooking{}
	}
	if apps == nil {
		apps = &mockApplications{}
	}

	return NewRouter(RouterConfig{
		JWTSecret:         testSecret,
		AllowedOrigins:    []string{"*"},
		BookingRatePerMin: 3,
	}, Services{
		Users:        users,
		Booking:      booking,
		Lifecycle:    mockLifecycle{},
		Applications: apps,
	}, nil, nil, zap.NewNop())
}

func authorized(t *testing.T, req *http.Request, userID int64, role model.Role) *http.Request {
	t.Helper()
	token, err := IssueToken(testSecret, userID, role, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return bytes.NewReader(b)
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) Response[json.RawMessage] {
	t.Helper()
	var resp Response[json.RawMessage]
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestAuth_MissingToken(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/creators/1/stages", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestAuth_WrongSecret(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	token, _ := IssueToken("other-secret", 1, model.RoleCreator, time.Hour)
	req := httptest.NewRequest("GET", "/api/v1/creators/1/stages", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestStages_OwnAndForeign(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("GET", "/api/v1/creators/1/stages", nil), 1, model.RoleCreator))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var progress model.Progress
	resp := decodeResponse(t, rr)
	if err := json.Unmarshal(*resp.Data, &progress); err != nil {
		t.Fatalf("decode progress: %v", err)
	}
	if len(progress.Stages) != len(model.StageOrder) {
		t.Errorf("expected %d stages, got %d", len(model.StageOrder), len(progress.Stages))
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("GET", "/api/v1/creators/2/stages", nil), 1, model.RoleCreator))
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for foreign creator, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("GET", "/api/v1/creators/2/stages", nil), 10, model.RoleManager))
	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 for staff, got %d", rr.Code)
	}
}

func TestBookMeeting_CreatorSelfService(t *testing.T) {
	var got service.BookingRequest
	booking := &mockBooking{bookFunc: func(ctx context.Context, req service.BookingRequest) (*model.Meeting, error) {
		got = req
		return &model.Meeting{ID: 5, CreatorID: req.CreatorID, Status: model.MeetingStatusPending}, nil
	}}
	router := newTestRouter(t, booking, nil)

	body := jsonBody(t, map[string]string{"date": "2024-06-03", "time": "10:00"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("POST", "/api/v1/meetings", body), 1, model.RoleCreator))

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.CreatorID != 1 || got.Initiator != service.InitiatorCreator {
		t.Errorf("unexpected request %+v", got)
	}
	if got.Purpose != model.PurposeOnboarding || got.Type != model.MeetingTypeRemote {
		t.Errorf("expected defaults onboarding/remote, got %s/%s", got.Purpose, got.Type)
	}
	if got.Time != model.NewTimeOfDay(10, 0) {
		t.Errorf("time = %s", got.Time)
	}
}

func TestBookMeeting_ManagerForCreator(t *testing.T) {
	var got service.BookingRequest
	booking := &mockBooking{bookFunc: func(ctx context.Context, req service.BookingRequest) (*model.Meeting, error) {
		got = req
		return &model.Meeting{ID: 5}, nil
	}}
	router := newTestRouter(t, booking, nil)

	body := jsonBody(t, map[string]any{"creator_id": 1, "date": "2024-06-03", "time": "10:00", "purpose": "studio"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("POST", "/api/v1/meetings", body), 10, model.RoleManager))

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	if got.Initiator != service.InitiatorManager || got.CreatorID != 1 || got.ActorID != 10 {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestBookMeeting_CreatorForOtherCreator(t *testing.T) {
	router := newTestRouter(t, &mockBooking{}, nil)

	body := jsonBody(t, map[string]any{"creator_id": 2, "date": "2024-06-03", "time": "10:00"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("POST", "/api/v1/meetings", body), 1, model.RoleCreator))

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", rr.Code)
	}
}

func TestBookMeeting_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no manager", service.ErrNoManagerAssigned, http.StatusConflict, "no_manager_assigned"},
		{"self assignment", service.ErrInvalidAssignment, http.StatusConflict, "invalid_assignment"},
		{"slot unavailable", service.ErrSlotUnavailable, http.StatusConflict, "slot_unavailable"},
		{"duplicate onboarding", service.ErrDuplicateOnboardingMeeting, http.StatusConflict, "duplicate_onboarding_meeting"},
		{"wrapped validation", fmt.Errorf("%w: bad", service.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{"integrity", service.ErrManagerProfileMissing, http.StatusInternalServerError, "manager_profile_missing"},
		{"unknown", fmt.Errorf("db: connection reset"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			booking := &mockBooking{bookFunc: func(ctx context.Context, req service.BookingRequest) (*model.Meeting, error) {
				return nil, tt.err
			}}
			router := newTestRouter(t, booking, nil)

			body := jsonBody(t, map[string]string{"date": "2024-06-03", "time": "10:00"})
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, authorized(t, httptest.NewRequest("POST", "/api/v1/meetings", body), 1, model.RoleCreator))

			if rr.Code != tt.status {
				t.Fatalf("Expected status %d, got %d", tt.status, rr.Code)
			}

			resp := decodeResponse(t, rr)
			if resp.Status != "error" || resp.Code != tt.code {
				t.Errorf("unexpected envelope %+v", resp)
			}
			if tt.status == http.StatusInternalServerError && resp.Error != "internal error" {
				t.Errorf("internal error text leaked: %q", resp.Error)
			}
		})
	}
}

func TestBookMeeting_InvalidJSON(t *testing.T) {
	router := newTestRouter(t, &mockBooking{}, nil)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/meetings", bytes.NewReader([]byte("invalid json")))
	router.ServeHTTP(rr, authorized(t, req, 1, model.RoleCreator))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestBookMeeting_BadTime(t *testing.T) {
	router := newTestRouter(t, &mockBooking{}, nil)

	body := jsonBody(t, map[string]string{"date": "2024-06-03", "time": "25:99"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("POST", "/api/v1/meetings", body), 1, model.RoleCreator))

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}
}

func TestBookMeeting_RateLimited(t *testing.T) {
	booking := &mockBooking{bookFunc: func(ctx context.Context, req service.BookingRequest) (*model.Meeting, error) {
		return &model.Meeting{ID: 1}, nil
	}}
	router := newTestRouter(t, booking, nil)

	var last int
	for i := 0; i < 4; i++ {
		body := jsonBody(t, map[string]string{"date": "2024-06-03", "time": "10:00"})
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, authorized(t, httptest.NewRequest("POST", "/api/v1/meetings", body), 1, model.RoleCreator))
		last = rr.Code
	}

	if last != http.StatusTooManyRequests {
		t.Errorf("Expected status 429 after burst, got %d", last)
	}
}

func TestRescheduleRequestCarriesMeetingID(t *testing.T) {
	var got service.BookingRequest
	booking := &mockBooking{bookFunc: func(ctx context.Context, req service.BookingRequest) (*model.Meeting, error) {
		got = req
		return &model.Meeting{ID: req.MeetingID}, nil
	}}
	router := newTestRouter(t, booking, nil)

	body := jsonBody(t, map[string]string{"date": "2024-06-04", "time": "11:00"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("POST", "/api/v1/meetings/7/reschedule", body), 1, model.RoleCreator))

	if rr.Code != http.StatusAccepted {
		t.Fatalf("Expected status 202, got %d", rr.Code)
	}
	if got.MeetingID != 7 || got.CreatorID != 1 {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestCompleteMeeting_PassesActor(t *testing.T) {
	var actorID int64
	booking := &mockBooking{completeFunc: func(ctx context.Context, actor *model.User, id int64) (*model.Meeting, error) {
		actorID = actor.ID
		return &model.Meeting{ID: id, Status: model.MeetingStatusCompleted}, nil
	}}
	router := newTestRouter(t, booking, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("POST", "/api/v1/meetings/3/complete", nil), 10, model.RoleManager))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if actorID != 10 {
		t.Errorf("actor = %d, want 10", actorID)
	}
}

func TestSubmitApplication_Public(t *testing.T) {
	apps := &mockApplications{}
	router := newTestRouter(t, nil, apps)

	body := jsonBody(t, map[string]string{"contact_identity": "@new_creator", "display_name": "New"})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/applications", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", rr.Code)
	}
	if len(apps.submitted) != 1 || apps.submitted[0] != "@new_creator" {
		t.Errorf("unexpected submissions %v", apps.submitted)
	}
}

func TestAssignManager_SelfAssignment(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	body := jsonBody(t, map[string]int64{"manager_id": 1})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("POST", "/api/v1/creators/1/manager", body), 99, model.RoleAdmin))

	if rr.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", rr.Code)
	}
}

func TestUnknownUserInToken(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("GET", "/api/v1/creators/500/stages", nil), 500, model.RoleCreator))

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", rr.Code)
	}
}

func TestTelegramCode_Disabled(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	req := authorized(t, httptest.NewRequest("POST", "/api/v1/session/telegram-code", nil), 1, model.RoleCreator)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected status 404, got %d", rr.Code)
	}
	if resp := decodeResponse(t, rr); resp.Code != "telegram_disabled" {
		t.Errorf("Expected code telegram_disabled, got %q", resp.Code)
	}
}

func TestListManagers_AdminOnly(t *testing.T) {
	router := newTestRouter(t, nil, nil)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("GET", "/api/v1/managers", nil), 1, model.RoleCreator))
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for creator, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authorized(t, httptest.NewRequest("GET", "/api/v1/managers", nil), 99, model.RoleAdmin))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for admin, got %d", rr.Code)
	}

	var managers []model.User
	if err := json.Unmarshal(*decodeResponse(t, rr).Data, &managers); err != nil {
		t.Fatalf("decode managers: %v", err)
	}
	if len(managers) != 1 || managers[0].ID != 10 {
		t.Errorf("Expected manager 10, got %+v", managers)
	}
}

func TestUpdateApplicationNotes(t *testing.T) {
	apps := &mockApplications{}
	router := newTestRouter(t, nil, apps)

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/v1/applications/7/notes", jsonBody(t, map[string]string{"notes": "call back in May"}))
	router.ServeHTTP(rr, authorized(t, req, 99, model.RoleAdmin))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if apps.notes[7] != "call back in May" {
		t.Errorf("Expected notes to reach the service, got %q", apps.notes[7])
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/api/v1/applications/7/notes", jsonBody(t, map[string]string{"notes": "x"}))
	router.ServeHTTP(rr, authorized(t, req, 10, model.RoleManager))
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for manager, got %d", rr.Code)
	}
}
