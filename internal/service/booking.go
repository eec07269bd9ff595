package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/metrics"
	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Initiator кто инициирует запись
type Initiator string

const (
	InitiatorCreator Initiator = "creator" // самостоятельная запись создателя
	InitiatorManager Initiator = "manager" // запись назначает менеджер
)

// BookingRequest запрос на запись или перенос. MeetingID != 0 означает перенос.
type BookingRequest struct {
	CreatorID int64
	ActorID   int64
	Date      time.Time
	Time      model.TimeOfDay
	Type      model.MeetingType
	Purpose   model.MeetingPurpose
	Initiator Initiator
	MeetingID int64
}

// SlotSource источник слотов для проверки запроса
type SlotSource interface {
	GenerateSlots(ctx context.Context, managerID int64, date time.Time, purpose model.MeetingPurpose) (*Schedule, error)
}

// BookingPolicy флаги политики записи
type BookingPolicy struct {
	// EarlyAccess - после ознакомительной встречи сразу выдавать полный доступ
	EarlyAccess bool
}

type BookingCoordinator struct {
	users    UserStore
	meetings MeetingStore
	access   AccessLevelStore
	slots    SlotSource
	events   EventPublisher
	metrics  *metrics.Registry
	policy   BookingPolicy
	now      func() time.Time
	logger   *zap.Logger
}

func NewBookingCoordinator(
	users UserStore,
	meetings MeetingStore,
	access AccessLevelStore,
	slots SlotSource,
	events EventPublisher,
	metricsReg *metrics.Registry,
	policy BookingPolicy,
	logger *zap.Logger,
) *BookingCoordinator {
	if events == nil {
		events = noopPublisher{}
	}
	return &BookingCoordinator{
		users:    users,
		meetings: meetings,
		access:   access,
		slots:    slots,
		events:   events,
		metrics:  metricsReg,
		policy:   policy,
		now:      time.Now,
		logger:   logger,
	}
}

// assignedManager проверяет назначение менеджера: сначала его наличие, затем
// запрет самоназначения, затем существование профиля менеджера
func (c *BookingCoordinator) assignedManager(ctx context.Context, creatorID int64) (*model.User, *model.User, error) {
	creator, err := c.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, nil, fmt.Errorf("get creator: %w", err)
	}

	if creator == nil {
		return nil, nil, ErrCreatorNotFound
	}

	if creator.ManagerID == nil {
		return nil, nil, ErrNoManagerAssigned
	}

	if *creator.ManagerID == creator.ID {
		return nil, nil, ErrInvalidAssignment
	}

	manager, err := c.users.GetByID(ctx, *creator.ManagerID)
	if err != nil {
		return nil, nil, fmt.Errorf("get manager: %w", err)
	}

	if manager == nil {
		c.logger.Error("Manager profile missing",
			zap.Int64("creator_id", creator.ID),
			zap.Int64("manager_id", *creator.ManagerID))
		return nil, nil, ErrManagerProfileMissing
	}

	return creator, manager, nil
}

func validateRequest(req BookingRequest) error {
	if req.MeetingID == 0 && !req.Type.Valid() {
		return fmt.Errorf("%w: unknown meeting type %q", ErrInvalidInput, req.Type)
	}
	if req.MeetingID == 0 && !req.Purpose.Valid() {
		return fmt.Errorf("%w: unknown meeting purpose %q", ErrInvalidInput, req.Purpose)
	}
	if !req.Time.Valid() {
		return fmt.Errorf("%w: time out of range", ErrInvalidInput)
	}
	if req.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	return nil
}

// BookOrReschedule проверяет запрос и фиксирует запись или запрос на перенос.
// Проверки идут по порядку, возвращается первая сработавшая.
func (c *BookingCoordinator) BookOrReschedule(ctx context.Context, req BookingRequest) (*model.Meeting, error) {
	meeting, err := c.bookOrReschedule(ctx, req)
	c.metrics.ObserveBooking(bookingOutcome(err))
	return meeting, err
}

func (c *BookingCoordinator) bookOrReschedule(ctx context.Context, req BookingRequest) (*model.Meeting, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	req.Date = model.DateOnly(req.Date)

	creator, manager, err := c.assignedManager(ctx, req.CreatorID)
	if err != nil {
		return nil, err
	}

	// при переносе слот проверяется по цели самой встречи
	var target *model.Meeting
	if req.MeetingID != 0 {
		target, err = c.meetings.GetByID(ctx, req.MeetingID)
		if err != nil {
			return nil, fmt.Errorf("get meeting: %w", err)
		}
		if target == nil || target.CreatorID != creator.ID {
			return nil, ErrMeetingNotFound
		}
		req.Purpose = target.Purpose
	}

	// перенос остаётся у менеджера встречи, даже если создателя переназначили
	slotManagerID := manager.ID
	if target != nil {
		slotManagerID = target.ManagerID
	}

	schedule, err := c.slots.GenerateSlots(ctx, slotManagerID, req.Date, req.Purpose)
	if err != nil {
		return nil, fmt.Errorf("generate slots: %w", err)
	}

	if !schedule.Contains(req.Time) {
		return nil, ErrSlotUnavailable
	}

	if target != nil {
		return c.requestReschedule(ctx, req, target)
	}

	meetings, err := c.meetings.ListByCreator(ctx, creator.ID)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}

	var open *model.Meeting
	if req.Purpose == model.PurposeOnboarding {
		for _, m := range meetings {
			if !m.IsOnboarding() {
				continue
			}
			switch m.Status {
			case model.MeetingStatusConfirmed, model.MeetingStatusCompleted:
				return nil, ErrDuplicateOnboardingMeeting
			case model.MeetingStatusNotBooked, model.MeetingStatusPending:
				open = m
			}
		}
	} else {
		record, err := c.access.Get(ctx, creator.ID)
		if err != nil {
			return nil, fmt.Errorf("get access level: %w", err)
		}
		if !Resolve(creator, record).AtLeast(model.LevelMeetingOnly) {
			return nil, ErrForbidden
		}
	}

	status := model.MeetingStatusConfirmed
	if req.Initiator != InitiatorManager && !manager.AutoApproveBookings {
		status = model.MeetingStatusPending
	}

	date, at := req.Date, req.Time
	meeting := open
	if meeting != nil {
		meeting.ManagerID = manager.ID
		meeting.Date = &date
		meeting.Time = &at
		meeting.Type = req.Type
		meeting.Status = status
		err = c.meetings.UpdateBooking(ctx, meeting)
	} else {
		meeting = &model.Meeting{
			CreatorID: creator.ID,
			ManagerID: manager.ID,
			Date:      &date,
			Time:      &at,
			Type:      req.Type,
			Purpose:   req.Purpose,
			Status:    status,
		}
		err = c.meetings.Create(ctx, meeting)
	}

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrSlotTaken):
			// параллельная запись успела занять слот
			return nil, ErrSlotUnavailable
		case errors.Is(err, repository.ErrOnboardingExists):
			return nil, ErrDuplicateOnboardingMeeting
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("save meeting: %w", err)
	}

	c.logger.Info("Meeting booked",
		zap.Int64("meeting_id", meeting.ID),
		zap.Int64("creator_id", creator.ID),
		zap.Int64("manager_id", manager.ID),
		zap.String("date", model.FormatDate(date)),
		zap.String("time", at.String()),
		zap.String("purpose", string(meeting.Purpose)),
		zap.String("status", string(status)),
	)

	kind := model.EventMeetingBooked
	if status == model.MeetingStatusConfirmed {
		kind = model.EventMeetingConfirmed
	}
	c.events.Publish(ctx, meetingEvent(kind, meeting))

	return meeting, nil
}

// requestReschedule добавляет к встрече запрос на перенос.
// Подтверждённые дата и время остаются прежними до решения менеджера.
func (c *BookingCoordinator) requestReschedule(ctx context.Context, req BookingRequest, meeting *model.Meeting) (*model.Meeting, error) {
	if meeting.Status != model.MeetingStatusPending && meeting.Status != model.MeetingStatusConfirmed {
		return nil, ErrInvalidTransition
	}

	if meeting.Reschedule.IsPending() {
		return nil, ErrReschedulePending
	}

	if meeting.Occupies(req.Date, req.Time) {
		return nil, fmt.Errorf("%w: meeting already at requested slot", ErrInvalidInput)
	}

	booked, err := c.meetings.ListBookedByManagerDate(ctx, meeting.ManagerID, req.Date)
	if err != nil {
		return nil, fmt.Errorf("list booked meetings: %w", err)
	}
	for _, m := range booked {
		if m.ID != meeting.ID && m.Occupies(req.Date, req.Time) {
			return nil, ErrSlotUnavailable
		}
	}

	reschedule := &model.RescheduleRequest{
		ID:            uuid.New(),
		RequestedDate: req.Date,
		RequestedTime: req.Time,
		RequestedBy:   req.ActorID,
		RequestedAt:   c.now().UTC(),
		Status:        model.RescheduleStatusPending,
	}

	if err := c.meetings.SaveReschedule(ctx, meeting.ID, reschedule); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("save reschedule: %w", err)
	}

	meeting.Reschedule = reschedule

	c.logger.Info("Reschedule requested",
		zap.Int64("meeting_id", meeting.ID),
		zap.String("request_id", reschedule.ID.String()),
		zap.String("requested_date", model.FormatDate(req.Date)),
		zap.String("requested_time", req.Time.String()),
	)

	event := meetingEvent(model.EventRescheduleRequested, meeting)
	event.Payload["requested_date"] = model.FormatDate(req.Date)
	event.Payload["requested_time"] = req.Time.String()
	c.events.Publish(ctx, event)

	return meeting, nil
}

// managedMeeting загружает встречу и проверяет что действие выполняет её менеджер или администратор
func (c *BookingCoordinator) managedMeeting(ctx context.Context, actor *model.User, meetingID int64) (*model.Meeting, error) {
	meeting, err := c.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}

	if meeting == nil {
		return nil, ErrMeetingNotFound
	}

	if actor == nil || !(actor.Role.IsAdmin() || (actor.Role.IsStaff() && actor.ID == meeting.ManagerID)) {
		return nil, ErrForbidden
	}

	return meeting, nil
}

// DecideReschedule одобряет или отклоняет запрос на перенос
func (c *BookingCoordinator) DecideReschedule(ctx context.Context, actor *model.User, meetingID int64, approve bool) (*model.Meeting, error) {
	meeting, err := c.managedMeeting(ctx, actor, meetingID)
	if err != nil {
		return nil, err
	}

	if !meeting.Reschedule.IsPending() {
		return nil, ErrNoPendingReschedule
	}

	req := meeting.Reschedule
	decidedAt := c.now().UTC()

	if approve {
		schedule, err := c.slots.GenerateSlots(ctx, meeting.ManagerID, req.RequestedDate, meeting.Purpose)
		if err != nil {
			return nil, fmt.Errorf("generate slots: %w", err)
		}

		if !schedule.Contains(req.RequestedTime) {
			return nil, ErrSlotUnavailable
		}

		err = c.meetings.ApplyReschedule(ctx, meeting.ID, req.ID, decidedAt)
		switch {
		case errors.Is(err, repository.ErrSlotTaken):
			return nil, ErrSlotUnavailable
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNoPendingReschedule
		case err != nil:
			return nil, fmt.Errorf("apply reschedule: %w", err)
		}

		date, at := req.RequestedDate, req.RequestedTime
		meeting.Date = &date
		meeting.Time = &at
		req.Status = model.RescheduleStatusApproved
	} else {
		err = c.meetings.RejectReschedule(ctx, meeting.ID, req.ID, decidedAt)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrNoPendingReschedule
		case err != nil:
			return nil, fmt.Errorf("reject reschedule: %w", err)
		}
		req.Status = model.RescheduleStatusRejected
	}
	req.DecidedAt = &decidedAt

	c.logger.Info("Reschedule decided",
		zap.Int64("meeting_id", meeting.ID),
		zap.Int64("actor_id", actor.ID),
		zap.Bool("approved", approve),
	)

	event := meetingEvent(model.EventRescheduleDecided, meeting)
	event.Payload["decision"] = string(req.Status)
	c.events.Publish(ctx, event)

	return meeting, nil
}

// ConfirmMeeting менеджер подтверждает ожидающую встречу
func (c *BookingCoordinator) ConfirmMeeting(ctx context.Context, actor *model.User, meetingID int64) (*model.Meeting, error) {
	meeting, err := c.managedMeeting(ctx, actor, meetingID)
	if err != nil {
		return nil, err
	}

	if err := c.transition(ctx, meeting, model.MeetingStatusConfirmed); err != nil {
		return nil, err
	}

	c.logger.Info("Meeting confirmed",
		zap.Int64("meeting_id", meeting.ID),
		zap.Int64("actor_id", actor.ID),
	)

	c.events.Publish(ctx, meetingEvent(model.EventMeetingConfirmed, meeting))

	return meeting, nil
}

// CancelMeeting отменяет встречу. Запись не удаляется, только отменяется.
func (c *BookingCoordinator) CancelMeeting(ctx context.Context, actor *model.User, meetingID int64) (*model.Meeting, error) {
	meeting, err := c.meetings.GetByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}

	if meeting == nil {
		return nil, ErrMeetingNotFound
	}

	allowed := actor != nil && (actor.ID == meeting.CreatorID || actor.Role.IsAdmin() ||
		(actor.Role.IsStaff() && actor.ID == meeting.ManagerID))
	if !allowed {
		return nil, ErrForbidden
	}

	if err := c.transition(ctx, meeting, model.MeetingStatusCancelled); err != nil {
		return nil, err
	}

	c.logger.Info("Meeting canceled",
		zap.Int64("meeting_id", meeting.ID),
		zap.Int64("actor_id", actor.ID),
	)

	c.events.Publish(ctx, meetingEvent(model.EventMeetingCancelled, meeting))

	return meeting, nil
}

func (c *BookingCoordinator) transition(ctx context.Context, meeting *model.Meeting, to model.MeetingStatus) error {
	if !meeting.Status.CanTransition(to) {
		return ErrInvalidTransition
	}

	if err := c.meetings.UpdateStatus(ctx, meeting.ID, meeting.Status, to); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// статус успели поменять параллельно
			return ErrInvalidTransition
		}
		return fmt.Errorf("update meeting status: %w", err)
	}

	meeting.Status = to
	return nil
}

// CompleteMeeting отмечает встречу проведённой. Для ознакомительной встречи
// в той же транзакции уровень доступа повышается минимум до meeting_only
// (до full_access при включённом раннем доступе). Понижения не бывает.
func (c *BookingCoordinator) CompleteMeeting(ctx context.Context, actor *model.User, meetingID int64) (*model.Meeting, error) {
	meeting, err := c.managedMeeting(ctx, actor, meetingID)
	if err != nil {
		return nil, err
	}

	if !meeting.Status.CanTransition(model.MeetingStatusCompleted) || meeting.Status == model.MeetingStatusNotBooked {
		return nil, ErrInvalidTransition
	}

	completedAt := c.now().UTC()

	var grant *model.AccessLevel
	if meeting.IsOnboarding() {
		grant = &model.AccessLevel{
			CreatorID: meeting.CreatorID,
			Level:     model.LevelMeetingOnly,
			GrantedBy: &actor.ID,
			GrantedAt: completedAt,
			Method:    model.GrantMethodMeetingCompleted,
		}
		if c.policy.EarlyAccess {
			grant.Level = model.LevelFullAccess
			grant.Method = model.GrantMethodEarlyAccess
		}
	}

	before, after, err := c.meetings.Complete(ctx, meeting.ID, completedAt, grant)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("complete meeting: %w", err)
	}

	meeting.Status = model.MeetingStatusCompleted
	meeting.CompletedAt = &completedAt

	c.logger.Info("Meeting completed",
		zap.Int64("meeting_id", meeting.ID),
		zap.Int64("creator_id", meeting.CreatorID),
		zap.String("purpose", string(meeting.Purpose)),
	)

	c.events.Publish(ctx, meetingEvent(model.EventMeetingCompleted, meeting))

	if grant != nil && after != nil {
		from := model.LevelNoAccess
		if before != nil {
			from = before.Level
		}
		if after.Level.Rank() > from.Rank() {
			c.logger.Info("Access level upgraded",
				zap.Int64("creator_id", meeting.CreatorID),
				zap.String("from", string(from)),
				zap.String("to", string(after.Level)),
			)
			c.events.Publish(ctx, accessChangedEvent(meeting.CreatorID, from, after.Level, grant.Method))
		}
	}

	return meeting, nil
}

// OpenSlots слоты назначенного менеджера без уже занятых
func (c *BookingCoordinator) OpenSlots(ctx context.Context, creatorID int64, date time.Time, purpose model.MeetingPurpose) (*Schedule, error) {
	_, manager, err := c.assignedManager(ctx, creatorID)
	if err != nil {
		return nil, err
	}

	date = model.DateOnly(date)
	schedule, err := c.slots.GenerateSlots(ctx, manager.ID, date, purpose)
	if err != nil {
		return nil, fmt.Errorf("generate slots: %w", err)
	}

	booked, err := c.meetings.ListBookedByManagerDate(ctx, manager.ID, date)
	if err != nil {
		return nil, fmt.Errorf("list booked meetings: %w", err)
	}

	open := make([]Slot, 0, len(schedule.Slots))
	for _, slot := range schedule.Slots {
		taken := false
		for _, m := range booked {
			if m.Occupies(date, slot.Start) {
				taken = true
				break
			}
		}
		if !taken {
			open = append(open, slot)
		}
	}
	schedule.Slots = open

	return schedule, nil
}

func meetingEvent(kind model.EventKind, meeting *model.Meeting) model.Event {
	event := model.NewEvent(kind)
	event.CreatorID = meeting.CreatorID
	event.ManagerID = meeting.ManagerID
	event.MeetingID = meeting.ID
	event.Payload["purpose"] = string(meeting.Purpose)
	event.Payload["status"] = string(meeting.Status)
	if meeting.Date != nil {
		event.Payload["date"] = model.FormatDate(*meeting.Date)
	}
	if meeting.Time != nil {
		event.Payload["time"] = meeting.Time.String()
	}
	return event
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoManagerAssigned):
		return "no_manager"
	case errors.Is(err, ErrInvalidAssignment):
		return "invalid_assignment"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrDuplicateOnboardingMeeting):
		return "duplicate_onboarding"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	}
	return "error"
}
