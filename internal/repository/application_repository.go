package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationColumns = `id, contact_identity, display_name, status, admin_notes, created_at, reviewed_at`

// ApplicationRepository хранит заявки создателей
type ApplicationRepository struct {
	*base.Repository
	users *UserRepository
}

func NewApplicationRepository(pool *pgxpool.Pool, users *UserRepository) *ApplicationRepository {
	return &ApplicationRepository{
		Repository: base.NewRepository(pool),
		users:      users,
	}
}

func scanApplication(row pgx.Row) (*model.Application, error) {
	var app model.Application
	err := row.Scan(
		&app.ID,
		&app.ContactIdentity,
		&app.DisplayName,
		&app.Status,
		&app.AdminNotes,
		&app.CreatedAt,
		&app.ReviewedAt,
	)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// Create создаёт заявку; повторная заявка с тем же контактом возвращает ErrDuplicate
func (r *ApplicationRepository) Create(ctx context.Context, app *model.Application) error {
	query := `
		INSERT INTO applications (contact_identity, display_name, status)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`

	err := r.Pool().QueryRow(ctx, query, app.ContactIdentity, app.DisplayName, app.Status).
		Scan(&app.ID, &app.CreatedAt)
	if err != nil {
		if _, ok := base.UniqueViolation(err); ok {
			return ErrDuplicate
		}
		return fmt.Errorf("create application: %w", err)
	}

	return nil
}

// GetByID получает заявку по ID
func (r *ApplicationRepository) GetByID(ctx context.Context, id int64) (*model.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`

	app, err := scanApplication(r.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application by id: %w", err)
	}

	return app, nil
}

// GetByContactIdentity получает заявку по контакту
func (r *ApplicationRepository) GetByContactIdentity(ctx context.Context, contact string) (*model.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE contact_identity = $1`

	app, err := scanApplication(r.Pool().QueryRow(ctx, query, contact))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get application by contact: %w", err)
	}

	return app, nil
}

// Decline отклоняет заявку, если она ещё не рассмотрена
func (r *ApplicationRepository) Decline(ctx context.Context, id int64, notes string, reviewedAt time.Time) error {
	query := `
		UPDATE applications
		SET status = 'declined', admin_notes = $2, reviewed_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.Pool().Exec(ctx, query, id, notes, reviewedAt)
	if err != nil {
		return fmt.Errorf("decline application: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateNotes меняет заметки администратора, единственное изменяемое поле после рассмотрения
func (r *ApplicationRepository) UpdateNotes(ctx context.Context, id int64, notes string) error {
	result, err := r.Pool().Exec(ctx, `UPDATE applications SET admin_notes = $2 WHERE id = $1`, id, notes)
	if err != nil {
		return fmt.Errorf("update application notes: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Approve одобряет заявку, заводит создателя (если его ещё нет) и, если передан
// менеджер, неназначенную ознакомительную встречу. Всё в одной транзакции.
func (r *ApplicationRepository) Approve(ctx context.Context, id int64, notes string, reviewedAt time.Time, creator *model.User) (*model.Meeting, error) {
	var meeting *model.Meeting

	err := r.WithTx(ctx, func(q base.Querier) error {
		result, err := q.Exec(ctx, `
			UPDATE applications
			SET status = 'approved', admin_notes = $2, reviewed_at = $3
			WHERE id = $1 AND status = 'pending'
		`, id, notes, reviewedAt)
		if err != nil {
			return fmt.Errorf("approve application: %w", err)
		}
		if result.RowsAffected() == 0 {
			return ErrNotFound
		}

		existing, err := scanUser(q.QueryRow(ctx,
			`SELECT `+userColumns+` FROM users WHERE contact_identity = $1`, creator.ContactIdentity))
		switch {
		case err == nil:
			managerID := creator.ManagerID
			*creator = *existing
			if creator.ManagerID == nil && managerID != nil {
				if _, err := q.Exec(ctx, `UPDATE users SET manager_id = $1 WHERE id = $2`, *managerID, creator.ID); err != nil {
					return fmt.Errorf("link manager: %w", err)
				}
				creator.ManagerID = managerID
			}
		case base.IsNotFound(err):
			if err := r.users.create(ctx, q, creator); err != nil {
				return err
			}
		default:
			return fmt.Errorf("get creator: %w", err)
		}

		if creator.ManagerID == nil {
			return nil
		}

		// ошибка уникального индекса оборвала бы транзакцию, поэтому проверяем заранее
		var exists bool
		err = q.QueryRow(ctx, `
			SELECT EXISTS(
				SELECT 1 FROM meetings
				WHERE creator_id = $1 AND purpose = 'onboarding' AND status <> 'cancelled'
			)
		`, creator.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check onboarding meeting: %w", err)
		}
		if exists {
			return nil
		}

		meeting = &model.Meeting{
			CreatorID: creator.ID,
			ManagerID: *creator.ManagerID,
			Type:      model.MeetingTypeRemote,
			Purpose:   model.PurposeOnboarding,
			Status:    model.MeetingStatusNotBooked,
		}
		return createMeeting(ctx, q, meeting)
	})

	if err != nil {
		return nil, err
	}

	return meeting, nil
}
