package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"go.uber.org/zap"
)

// Resolve вычисляет эффективный уровень доступа. Сотрудники всегда получают полный
// доступ; для создателя берётся сохранённая запись, без записи - no_access.
func Resolve(user *model.User, record *model.AccessLevel) model.Level {
	if user == nil {
		return model.LevelNoAccess
	}
	if user.Role.IsStaff() {
		return model.LevelFullAccess
	}
	if record == nil || !record.Level.Valid() {
		return model.LevelNoAccess
	}
	return record.Level
}

// CanEditSection разделы 1-2 открыты всегда, остальные - при полном доступе
// или после проведённой ознакомительной встречи
func CanEditSection(level model.Level, onboardingMeetingCompleted bool, section int) bool {
	if !model.ValidSection(section) {
		return false
	}
	if section <= model.AlwaysEditableSections {
		return true
	}
	return level == model.LevelFullAccess || onboardingMeetingCompleted
}

// AccessService читает уровень доступа в каждой точке авторизации, без кеширования
type AccessService struct {
	users  UserStore
	access AccessLevelStore
	events EventPublisher
	logger *zap.Logger
}

func NewAccessService(users UserStore, access AccessLevelStore, events EventPublisher, logger *zap.Logger) *AccessService {
	if events == nil {
		events = noopPublisher{}
	}
	return &AccessService{
		users:  users,
		access: access,
		events: events,
		logger: logger,
	}
}

// Resolve получает пользователя и его запись доступа и вычисляет уровень
func (s *AccessService) Resolve(ctx context.Context, userID int64) (model.Level, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return model.LevelNoAccess, fmt.Errorf("get user: %w", err)
	}

	if user == nil {
		return model.LevelNoAccess, ErrCreatorNotFound
	}

	if user.Role.IsStaff() {
		return Resolve(user, nil), nil
	}

	record, err := s.access.Get(ctx, userID)
	if err != nil {
		return model.LevelNoAccess, fmt.Errorf("get access level: %w", err)
	}

	return Resolve(user, record), nil
}

// GrantAccess административная установка уровня. Единственный путь понизить доступ.
func (s *AccessService) GrantAccess(ctx context.Context, admin *model.User, creatorID int64, level model.Level) (*model.AccessLevel, error) {
	if admin == nil || !admin.Role.IsAdmin() {
		return nil, ErrForbidden
	}

	if !level.Valid() {
		return nil, fmt.Errorf("%w: unknown level %q", ErrInvalidInput, level)
	}

	creator, err := s.users.GetByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get creator: %w", err)
	}

	if creator == nil {
		return nil, ErrCreatorNotFound
	}

	previous, err := s.access.Get(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("get access level: %w", err)
	}

	grant := &model.AccessLevel{
		CreatorID: creatorID,
		Level:     level,
		GrantedBy: &admin.ID,
		GrantedAt: time.Now().UTC(),
		Method:    model.GrantMethodAdmin,
	}

	if err := s.access.Set(ctx, grant); err != nil {
		return nil, fmt.Errorf("set access level: %w", err)
	}

	s.logger.Info("Access level granted",
		zap.Int64("creator_id", creatorID),
		zap.Int64("admin_id", admin.ID),
		zap.String("level", string(level)),
	)

	previousLevel := model.LevelNoAccess
	if previous != nil {
		previousLevel = previous.Level
	}
	if previousLevel != level {
		s.events.Publish(ctx, accessChangedEvent(creatorID, previousLevel, level, model.GrantMethodAdmin))
	}

	return grant, nil
}

func accessChangedEvent(creatorID int64, from, to model.Level, method model.GrantMethod) model.Event {
	event := model.NewEvent(model.EventAccessLevelChanged)
	event.CreatorID = creatorID
	event.Payload["from"] = string(from)
	event.Payload["to"] = string(to)
	event.Payload["method"] = string(method)
	return event
}
