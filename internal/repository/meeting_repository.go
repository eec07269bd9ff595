package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository/base"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const meetingColumns = `
	id, creator_id, manager_id, date, time, type, purpose, status, completed_at,
	reschedule_id, reschedule_requested_date, reschedule_requested_time,
	reschedule_requested_by, reschedule_requested_at, reschedule_status, reschedule_decided_at,
	created_at, updated_at`

// Имена уникальных индексов из миграции
const (
	constraintManagerSlot = "uq_meetings_manager_slot"
	constraintOnboarding  = "uq_meetings_onboarding"
)

type MeetingRepository struct {
	*base.Repository
	logger *zap.Logger
}

func NewMeetingRepository(pool *pgxpool.Pool, logger *zap.Logger) *MeetingRepository {
	return &MeetingRepository{
		Repository: base.NewRepository(pool),
		logger:     logger,
	}
}

func scanMeeting(row pgx.Row) (*model.Meeting, error) {
	var (
		m               model.Meeting
		date            pgtype.Date
		at              pgtype.Time
		rescheduleID    *uuid.UUID
		requestedDate   pgtype.Date
		requestedTime   pgtype.Time
		requestedBy     *int64
		requestedAt     *time.Time
		rescheduleState *string
		decidedAt       *time.Time
	)

	err := row.Scan(
		&m.ID,
		&m.CreatorID,
		&m.ManagerID,
		&date,
		&at,
		&m.Type,
		&m.Purpose,
		&m.Status,
		&m.CompletedAt,
		&rescheduleID,
		&requestedDate,
		&requestedTime,
		&requestedBy,
		&requestedAt,
		&rescheduleState,
		&decidedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Date = fromPGDate(date)
	m.Time = fromPGTime(at)

	if rescheduleID != nil {
		req := &model.RescheduleRequest{ID: *rescheduleID, DecidedAt: decidedAt}
		if d := fromPGDate(requestedDate); d != nil {
			req.RequestedDate = *d
		}
		if t := fromPGTime(requestedTime); t != nil {
			req.RequestedTime = *t
		}
		if requestedBy != nil {
			req.RequestedBy = *requestedBy
		}
		if requestedAt != nil {
			req.RequestedAt = *requestedAt
		}
		if rescheduleState != nil {
			req.Status = model.RescheduleStatus(*rescheduleState)
		}
		m.Reschedule = req
	}

	return &m, nil
}

// mapConstraint переводит нарушение уникального индекса в доменную ошибку
func mapConstraint(err error, op string) error {
	if name, ok := base.UniqueViolation(err); ok {
		switch name {
		case constraintManagerSlot:
			return ErrSlotTaken
		case constraintOnboarding:
			return ErrOnboardingExists
		}
		return ErrDuplicate
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Create создаёт встречу
func (r *MeetingRepository) Create(ctx context.Context, meeting *model.Meeting) error {
	return createMeeting(ctx, r.Pool(), meeting)
}

func createMeeting(ctx context.Context, q base.Querier, meeting *model.Meeting) error {
	query := `
		INSERT INTO meetings (creator_id, manager_id, date, time, type, purpose, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := q.QueryRow(
		ctx, query,
		meeting.CreatorID,
		meeting.ManagerID,
		toPGDate(meeting.Date),
		toPGTime(meeting.Time),
		meeting.Type,
		meeting.Purpose,
		meeting.Status,
	).Scan(&meeting.ID, &meeting.CreatedAt, &meeting.UpdatedAt)

	if err != nil {
		return mapConstraint(err, "create meeting")
	}

	return nil
}

// GetByID получает встречу по ID
func (r *MeetingRepository) GetByID(ctx context.Context, id int64) (*model.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE id = $1`

	meeting, err := scanMeeting(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get meeting by id: %w", err)
	}

	return meeting, nil
}

// ListByCreator получает все встречи создателя, включая отменённые
func (r *MeetingRepository) ListByCreator(ctx context.Context, creatorID int64) ([]*model.Meeting, error) {
	query := `SELECT ` + meetingColumns + ` FROM meetings WHERE creator_id = $1 ORDER BY created_at`
	return r.list(ctx, "list meetings by creator", query, creatorID)
}

// ListBookedByManagerDate получает встречи менеджера, занимающие слоты в указанную дату
func (r *MeetingRepository) ListBookedByManagerDate(ctx context.Context, managerID int64, date time.Time) ([]*model.Meeting, error) {
	query := `
		SELECT ` + meetingColumns + `
		FROM meetings
		WHERE manager_id = $1 AND date = $2 AND status IN ('pending', 'confirmed', 'completed')
		ORDER BY time
	`
	return r.list(ctx, "list booked meetings", query, managerID, toPGDate(&date))
}

func (r *MeetingRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.Meeting, error) {
	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var meetings []*model.Meeting
	for rows.Next() {
		meeting, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		meetings = append(meetings, meeting)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return meetings, nil
}

// UpdateBooking записывает дату, время, тип и статус ещё не подтверждённой встречи
func (r *MeetingRepository) UpdateBooking(ctx context.Context, meeting *model.Meeting) error {
	query := `
		UPDATE meetings
		SET date = $2, time = $3, type = $4, status = $5, manager_id = $6, updated_at = now()
		WHERE id = $1 AND status IN ('not_booked', 'pending')
		RETURNING updated_at
	`

	err := r.Pool().QueryRow(
		ctx, query,
		meeting.ID,
		toPGDate(meeting.Date),
		toPGTime(meeting.Time),
		meeting.Type,
		meeting.Status,
		meeting.ManagerID,
	).Scan(&meeting.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return ErrNotFound
		}
		return mapConstraint(err, "update meeting booking")
	}

	return nil
}

// UpdateStatus меняет статус, если встреча всё ещё в ожидаемом статусе
func (r *MeetingRepository) UpdateStatus(ctx context.Context, id int64, from, to model.MeetingStatus) error {
	query := `
		UPDATE meetings
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`

	result, err := r.Pool().Exec(ctx, query, id, from, to)
	if err != nil {
		return mapConstraint(err, "update meeting status")
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// SaveReschedule добавляет к встрече запрос на перенос, не трогая её дату и время.
// Пока предыдущий запрос ожидает решения, новый не сохраняется.
func (r *MeetingRepository) SaveReschedule(ctx context.Context, meetingID int64, req *model.RescheduleRequest) error {
	query := `
		UPDATE meetings
		SET reschedule_id = $2,
		    reschedule_requested_date = $3,
		    reschedule_requested_time = $4,
		    reschedule_requested_by = $5,
		    reschedule_requested_at = $6,
		    reschedule_status = $7,
		    reschedule_decided_at = NULL,
		    updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'confirmed')
		  AND reschedule_status IS DISTINCT FROM 'pending'
	`

	result, err := r.Pool().Exec(
		ctx, query,
		meetingID,
		req.ID,
		toPGDate(&req.RequestedDate),
		toPGTime(&req.RequestedTime),
		req.RequestedBy,
		req.RequestedAt,
		req.Status,
	)
	if err != nil {
		return fmt.Errorf("save reschedule request: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// ApplyReschedule переносит встречу на запрошенный слот и закрывает запрос
func (r *MeetingRepository) ApplyReschedule(ctx context.Context, meetingID int64, requestID uuid.UUID, decidedAt time.Time) error {
	query := `
		UPDATE meetings
		SET date = reschedule_requested_date,
		    time = reschedule_requested_time,
		    reschedule_status = 'approved',
		    reschedule_decided_at = $3,
		    updated_at = now()
		WHERE id = $1 AND reschedule_id = $2 AND reschedule_status = 'pending'
	`

	result, err := r.Pool().Exec(ctx, query, meetingID, requestID, decidedAt)
	if err != nil {
		return mapConstraint(err, "apply reschedule")
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// RejectReschedule отклоняет запрос, подтверждённый слот остаётся прежним
func (r *MeetingRepository) RejectReschedule(ctx context.Context, meetingID int64, requestID uuid.UUID, decidedAt time.Time) error {
	query := `
		UPDATE meetings
		SET reschedule_status = 'rejected', reschedule_decided_at = $3, updated_at = now()
		WHERE id = $1 AND reschedule_id = $2 AND reschedule_status = 'pending'
	`

	result, err := r.Pool().Exec(ctx, query, meetingID, requestID, decidedAt)
	if err != nil {
		return fmt.Errorf("reject reschedule: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Complete завершает встречу и, если передан grant, в той же транзакции
// повышает уровень доступа создателя. Понижения не происходит никогда.
// Возвращает уровень доступа до и после.
func (r *MeetingRepository) Complete(ctx context.Context, meetingID int64, completedAt time.Time, grant *model.AccessLevel) (before, after *model.AccessLevel, err error) {
	err = r.WithTx(ctx, func(q base.Querier) error {
		result, err := q.Exec(ctx, `
			UPDATE meetings
			SET status = 'completed', completed_at = $2, updated_at = now()
			WHERE id = $1 AND status IN ('pending', 'confirmed')
		`, meetingID, completedAt)
		if err != nil {
			return fmt.Errorf("complete meeting: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}

		if grant == nil {
			return nil
		}

		before, err = getAccessLevel(ctx, q, grant.CreatorID, true)
		if err != nil {
			return err
		}

		if err := upgradeAccessLevel(ctx, q, grant); err != nil {
			return err
		}

		after, err = getAccessLevel(ctx, q, grant.CreatorID, false)
		return err
	})

	if err != nil {
		return nil, nil, err
	}

	r.logger.Debug("Meeting completed in store",
		zap.Int64("meeting_id", meetingID),
		zap.Bool("access_upgraded", grant != nil))

	return before, after, nil
}
