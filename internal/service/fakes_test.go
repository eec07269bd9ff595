package service

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository"
	"github.com/google/uuid"
)

// Хранилища в памяти. Ограничения повторяют уникальные индексы и условия UPDATE из миграции.

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]*model.User
}

func newFakeUsers(users ...*model.User) *fakeUsers {
	f := &fakeUsers{users: make(map[int64]*model.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) SetManager(ctx context.Context, creatorID, managerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[creatorID]
	if !ok {
		return repository.ErrNotFound
	}
	u.ManagerID = &managerID
	return nil
}

type fakeAccess struct {
	mu     sync.Mutex
	levels map[int64]*model.AccessLevel
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{levels: make(map[int64]*model.AccessLevel)}
}

func (f *fakeAccess) Get(ctx context.Context, creatorID int64) (*model.AccessLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.get(creatorID), nil
}

func (f *fakeAccess) get(creatorID int64) *model.AccessLevel {
	l, ok := f.levels[creatorID]
	if !ok {
		return nil
	}
	cp := *l
	return &cp
}

func (f *fakeAccess) Set(ctx context.Context, level *model.AccessLevel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *level
	f.levels[level.CreatorID] = &cp
	return nil
}

// upgrade повышает уровень, не понижая
func (f *fakeAccess) upgrade(grant *model.AccessLevel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.levels[grant.CreatorID]
	if ok && current.Level.Rank() >= grant.Level.Rank() {
		return
	}
	cp := *grant
	f.levels[grant.CreatorID] = &cp
}

type fakeMeetings struct {
	mu       sync.Mutex
	nextID   int64
	meetings map[int64]*model.Meeting
	access   *fakeAccess
}

func newFakeMeetings(access *fakeAccess) *fakeMeetings {
	return &fakeMeetings{meetings: make(map[int64]*model.Meeting), access: access}
}

func copyMeeting(m *model.Meeting) *model.Meeting {
	cp := *m
	if m.Reschedule != nil {
		r := *m.Reschedule
		cp.Reschedule = &r
	}
	return &cp
}

// slotTaken другая забронированная встреча менеджера уже стоит на этом слоте
func (f *fakeMeetings) slotTaken(candidate *model.Meeting, date *time.Time, at *model.TimeOfDay) bool {
	if !candidate.Status.IsBooked() || date == nil || at == nil {
		return false
	}
	for _, m := range f.meetings {
		if m.ID != candidate.ID && m.ManagerID == candidate.ManagerID && m.Occupies(*date, *at) {
			return true
		}
	}
	return false
}

func (f *fakeMeetings) onboardingTaken(candidate *model.Meeting) bool {
	if !candidate.IsOnboarding() || candidate.Status == model.MeetingStatusCancelled {
		return false
	}
	for _, m := range f.meetings {
		if m.ID != candidate.ID && m.CreatorID == candidate.CreatorID && m.IsOnboarding() && m.Status != model.MeetingStatusCancelled {
			return true
		}
	}
	return false
}

func (f *fakeMeetings) Create(ctx context.Context, meeting *model.Meeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slotTaken(meeting, meeting.Date, meeting.Time) {
		return repository.ErrSlotTaken
	}
	if f.onboardingTaken(meeting) {
		return repository.ErrOnboardingExists
	}
	f.nextID++
	meeting.ID = f.nextID
	f.meetings[meeting.ID] = copyMeeting(meeting)
	return nil
}

func (f *fakeMeetings) GetByID(ctx context.Context, id int64) (*model.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok {
		return nil, nil
	}
	return copyMeeting(m), nil
}

func (f *fakeMeetings) ListByCreator(ctx context.Context, creatorID int64) ([]*model.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Meeting
	for id := int64(1); id <= f.nextID; id++ {
		if m, ok := f.meetings[id]; ok && m.CreatorID == creatorID {
			out = append(out, copyMeeting(m))
		}
	}
	return out, nil
}

func (f *fakeMeetings) ListBookedByManagerDate(ctx context.Context, managerID int64, date time.Time) ([]*model.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Meeting
	for _, m := range f.meetings {
		if m.ManagerID == managerID && m.Status.IsBooked() && m.Date != nil && model.SameDate(*m.Date, date) {
			out = append(out, copyMeeting(m))
		}
	}
	return out, nil
}

func (f *fakeMeetings) UpdateBooking(ctx context.Context, meeting *model.Meeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.meetings[meeting.ID]
	if !ok || (stored.Status != model.MeetingStatusNotBooked && stored.Status != model.MeetingStatusPending) {
		return repository.ErrNotFound
	}
	if f.slotTaken(meeting, meeting.Date, meeting.Time) {
		return repository.ErrSlotTaken
	}
	f.meetings[meeting.ID] = copyMeeting(meeting)
	return nil
}

func (f *fakeMeetings) UpdateStatus(ctx context.Context, id int64, from, to model.MeetingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok || m.Status != from {
		return repository.ErrNotFound
	}
	m.Status = to
	return nil
}

func (f *fakeMeetings) SaveReschedule(ctx context.Context, meetingID int64, req *model.RescheduleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[meetingID]
	if !ok || (m.Status != model.MeetingStatusPending && m.Status != model.MeetingStatusConfirmed) || m.Reschedule.IsPending() {
		return repository.ErrNotFound
	}
	r := *req
	m.Reschedule = &r
	return nil
}

func (f *fakeMeetings) ApplyReschedule(ctx context.Context, meetingID int64, requestID uuid.UUID, decidedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[meetingID]
	if !ok || !m.Reschedule.IsPending() || m.Reschedule.ID != requestID {
		return repository.ErrNotFound
	}
	date, at := m.Reschedule.RequestedDate, m.Reschedule.RequestedTime
	if f.slotTaken(m, &date, &at) {
		return repository.ErrSlotTaken
	}
	m.Date = &date
	m.Time = &at
	m.Reschedule.Status = model.RescheduleStatusApproved
	m.Reschedule.DecidedAt = &decidedAt
	return nil
}

func (f *fakeMeetings) RejectReschedule(ctx context.Context, meetingID int64, requestID uuid.UUID, decidedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[meetingID]
	if !ok || !m.Reschedule.IsPending() || m.Reschedule.ID != requestID {
		return repository.ErrNotFound
	}
	m.Reschedule.Status = model.RescheduleStatusRejected
	m.Reschedule.DecidedAt = &decidedAt
	return nil
}

func (f *fakeMeetings) Complete(ctx context.Context, meetingID int64, completedAt time.Time, grant *model.AccessLevel) (before, after *model.AccessLevel, err error) {
	f.mu.Lock()
	m, ok := f.meetings[meetingID]
	if !ok || (m.Status != model.MeetingStatusPending && m.Status != model.MeetingStatusConfirmed) {
		f.mu.Unlock()
		return nil, nil, repository.ErrNotFound
	}
	m.Status = model.MeetingStatusCompleted
	m.CompletedAt = &completedAt
	f.mu.Unlock()

	if grant == nil {
		return nil, nil, nil
	}

	before, _ = f.access.Get(ctx, grant.CreatorID)
	f.access.upgrade(grant)
	after, _ = f.access.Get(ctx, grant.CreatorID)
	return before, after, nil
}

// stored встреча как она лежит в хранилище
func (f *fakeMeetings) stored(id int64) *model.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyMeeting(f.meetings[id])
}

type fakeRules struct {
	mu     sync.Mutex
	nextID int64
	rules  []*model.AvailabilityRule
	reads  int
}

func (f *fakeRules) add(rule *model.AvailabilityRule) *model.AvailabilityRule {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rule.ID = f.nextID
	f.rules = append(f.rules, rule)
	return rule
}

func (f *fakeRules) ListRecurring(ctx context.Context, managerID int64, weekday time.Weekday) ([]*model.AvailabilityRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	var out []*model.AvailabilityRule
	for _, r := range f.rules {
		if r.ManagerID == managerID && r.DayOfWeek != nil && *r.DayOfWeek == weekday {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRules) GetOverride(ctx context.Context, managerID int64, date time.Time) (*model.AvailabilityRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rules {
		if r.ManagerID == managerID && r.SpecificDate != nil && model.SameDate(*r.SpecificDate, date) {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeRules) Create(ctx context.Context, rule *model.AvailabilityRule) error {
	if rule.SpecificDate != nil {
		existing, _ := f.GetOverride(ctx, rule.ManagerID, *rule.SpecificDate)
		if existing != nil {
			return repository.ErrDuplicate
		}
	}
	f.add(rule)
	return nil
}

func (f *fakeRules) Delete(ctx context.Context, managerID, ruleID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rules {
		if r.ID == ruleID && r.ManagerID == managerID {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeRules) ListByManager(ctx context.Context, managerID int64) ([]*model.AvailabilityRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.AvailabilityRule
	for _, r := range f.rules {
		if r.ManagerID == managerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRules) ListAllRecurring(ctx context.Context) ([]*model.AvailabilityRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.AvailabilityRule
	for _, r := range f.rules {
		if r.DayOfWeek != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeApplications struct {
	mu     sync.Mutex
	nextID int64
	apps   map[int64]*model.Application
	users  *fakeUsers
	// meetings получает ознакомительную встречу при одобрении с менеджером
	meetings *fakeMeetings
}

func newFakeApplications(users *fakeUsers, meetings *fakeMeetings) *fakeApplications {
	return &fakeApplications{apps: make(map[int64]*model.Application), users: users, meetings: meetings}
}

func (f *fakeApplications) Create(ctx context.Context, app *model.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		if a.ContactIdentity == app.ContactIdentity {
			return repository.ErrDuplicate
		}
	}
	f.nextID++
	app.ID = f.nextID
	app.CreatedAt = time.Now().UTC()
	cp := *app
	f.apps[app.ID] = &cp
	return nil
}

func (f *fakeApplications) GetByID(ctx context.Context, id int64) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (f *fakeApplications) GetByContactIdentity(ctx context.Context, contact string) (*model.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.apps {
		if a.ContactIdentity == contact {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeApplications) review(id int64, status model.ApplicationStatus, notes string, reviewedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok || a.Status != model.ApplicationStatusPending {
		return repository.ErrNotFound
	}
	a.Status = status
	a.AdminNotes = notes
	a.ReviewedAt = &reviewedAt
	return nil
}

func (f *fakeApplications) Approve(ctx context.Context, id int64, notes string, reviewedAt time.Time, creator *model.User) (*model.Meeting, error) {
	if err := f.review(id, model.ApplicationStatusApproved, notes, reviewedAt); err != nil {
		return nil, err
	}

	f.users.mu.Lock()
	var maxID int64
	for uid := range f.users.users {
		if uid > maxID {
			maxID = uid
		}
	}
	creator.ID = maxID + 1
	cp := *creator
	f.users.users[creator.ID] = &cp
	f.users.mu.Unlock()

	if creator.ManagerID == nil {
		return nil, nil
	}

	meeting := &model.Meeting{
		CreatorID: creator.ID,
		ManagerID: *creator.ManagerID,
		Type:      model.MeetingTypeRemote,
		Purpose:   model.PurposeOnboarding,
		Status:    model.MeetingStatusNotBooked,
	}
	if err := f.meetings.Create(ctx, meeting); err != nil {
		return nil, err
	}
	return meeting, nil
}

func (f *fakeApplications) Decline(ctx context.Context, id int64, notes string, reviewedAt time.Time) error {
	return f.review(id, model.ApplicationStatusDeclined, notes, reviewedAt)
}

func (f *fakeApplications) UpdateNotes(ctx context.Context, id int64, notes string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return repository.ErrNotFound
	}
	a.AdminNotes = notes
	return nil
}

type fakeOnboarding struct {
	mu       sync.Mutex
	progress map[int64]*model.OnboardingProgress
}

func newFakeOnboarding() *fakeOnboarding {
	return &fakeOnboarding{progress: make(map[int64]*model.OnboardingProgress)}
}

func (f *fakeOnboarding) Get(ctx context.Context, creatorID int64) (*model.OnboardingProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.progress[creatorID]
	if !ok {
		return nil, nil
	}
	cp := *p
	cp.CompletedSections = append([]int(nil), p.CompletedSections...)
	return &cp, nil
}

func (f *fakeOnboarding) Save(ctx context.Context, progress *model.OnboardingProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *progress
	cp.CompletedSections = append([]int(nil), progress.CompletedSections...)
	f.progress[progress.CreatorID] = &cp
	return nil
}

type fakeContracts struct {
	mu        sync.Mutex
	contracts map[int64]*model.Contract
}

func newFakeContracts() *fakeContracts {
	return &fakeContracts{contracts: make(map[int64]*model.Contract)}
}

func (f *fakeContracts) Get(ctx context.Context, creatorID int64) (*model.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[creatorID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (f *fakeContracts) Sign(ctx context.Context, creatorID int64, signedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contracts[creatorID]
	if ok && c.SignedAt != nil {
		return false, nil
	}
	f.contracts[creatorID] = &model.Contract{CreatorID: creatorID, SignedAt: &signedAt}
	return true, nil
}

// recordingPublisher запоминает опубликованные события
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event model.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) kinds() []model.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]model.EventKind, 0, len(p.events))
	for _, e := range p.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// helpers

func weekday(d time.Weekday) *time.Weekday { return &d }

func int64Ptr(v int64) *int64 { return &v }

func clock(s string) model.TimeOfDay {
	t, err := model.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func date(s string) time.Time {
	d, err := model.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func recurring(managerID int64, day time.Weekday, start, end string, duration int) *model.AvailabilityRule {
	return &model.AvailabilityRule{
		ManagerID:       managerID,
		DayOfWeek:       weekday(day),
		StartTime:       clock(start),
		EndTime:         clock(end),
		DurationMinutes: duration,
		IsAvailable:     true,
	}
}

func override(managerID int64, on time.Time, available bool) *model.AvailabilityRule {
	return &model.AvailabilityRule{
		ManagerID:    managerID,
		SpecificDate: &on,
		StartTime:    clock("00:00"),
		EndTime:      clock("23:59"),
		IsAvailable:  available,
	}
}
