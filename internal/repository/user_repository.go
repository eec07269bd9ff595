package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, telegram_id, contact_identity, display_name, role, manager_id, auto_approve_bookings, created_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.TelegramID,
		&user.ContactIdentity,
		&user.DisplayName,
		&user.Role,
		&user.ManagerID,
		&user.AutoApproveBookings,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) create(ctx context.Context, q base.Querier, user *model.User) error {
	query := `
		INSERT INTO users (telegram_id, contact_identity, display_name, role, manager_id, auto_approve_bookings)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	err := q.QueryRow(
		ctx, query,
		user.TelegramID,
		user.ContactIdentity,
		user.DisplayName,
		user.Role,
		user.ManagerID,
		user.AutoApproveBookings,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if _, ok := base.UniqueViolation(err); ok {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}

	return nil
}

// GetByID получает пользователя по ID
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}

	return user, nil
}

// ListManagers получает всех пользователей с ролью менеджера
func (r *UserRepository) ListManagers(ctx context.Context) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1 ORDER BY id`

	rows, err := r.pool.Query(ctx, query, model.RoleManager)
	if err != nil {
		return nil, fmt.Errorf("list managers: %w", err)
	}
	defer rows.Close()

	var managers []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan manager: %w", err)
		}
		managers = append(managers, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate managers: %w", err)
	}

	return managers, nil
}

// SetManager назначает менеджера создателю
func (r *UserRepository) SetManager(ctx context.Context, creatorID, managerID int64) error {
	query := `UPDATE users SET manager_id = $1 WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, managerID, creatorID)
	if err != nil {
		return fmt.Errorf("set manager: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.pool.QueryRow(ctx, query, telegramID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by telegram id: %w", err)
	}

	return user, nil
}

// SetTelegramID привязывает чат Telegram к пользователю
func (r *UserRepository) SetTelegramID(ctx context.Context, userID, telegramID int64) error {
	query := `UPDATE users SET telegram_id = $1 WHERE id = $2`

	result, err := r.pool.Exec(ctx, query, telegramID, userID)
	if err != nil {
		if _, ok := base.UniqueViolation(err); ok {
			return ErrDuplicate
		}
		return fmt.Errorf("set telegram id: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
