package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/creator_pipeline/internal/model"
	"github.com/Freeeeeet/creator_pipeline/internal/repository"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

type UserStore interface {
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	SetTelegramID(ctx context.Context, userID, telegramID int64) error
}

type LinkCodeRedeemer interface {
	Redeem(code string) (int64, bool)
}

type StageReader interface {
	Stages(ctx context.Context, creatorID int64) (model.Progress, error)
}

type AccessReader interface {
	Resolve(ctx context.Context, userID int64) (model.Level, error)
}

// BotController команды бота для создателей: привязка чата и просмотр прогресса.
// Запись на встречи идёт через HTTP API, бот только информирует.
type BotController struct {
	bot    *bot.Bot
	users  UserStore
	codes  LinkCodeRedeemer
	stages StageReader
	access AccessReader
	logger *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	users UserStore,
	codes LinkCodeRedeemer,
	stages StageReader,
	access AccessReader,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:    botInstance,
		users:  users,
		codes:  codes,
		stages: stages,
		access: access,
		logger: logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypeExact, c.command(c.startText))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/help", bot.MatchTypeExact, c.command(c.helpText))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/status", bot.MatchTypeExact, c.command(c.statusText))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/access", bot.MatchTypeExact, c.command(c.accessText))
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/link", bot.MatchTypePrefix, c.command(c.linkText))

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Начать работу с ботом"},
		{Command: "link", Description: "🔗 Привязать аккаунт по коду"},
		{Command: "status", Description: "📋 Мой прогресс"},
		{Command: "access", Description: "🔓 Мой уровень доступа"},
		{Command: "help", Description: "❓ Справка по командам"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{Commands: commands})
	if err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	}
	return nil
}

// Start запускает long polling до отмены контекста
func (c *BotController) Start(ctx context.Context) {
	c.logger.Info("Starting telegram bot")
	c.bot.Start(ctx)
}

// replyFunc вычисляет ответ на команду
type replyFunc func(ctx context.Context, telegramID int64, text string) string

func (c *BotController) command(reply replyFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}

		text := reply(ctx, update.Message.From.ID, update.Message.Text)
		c.sendMessage(ctx, b, update.Message.Chat.ID, text)
	}
}

// sendMessage отправляет сообщение и логирует если не удалось
func (c *BotController) sendMessage(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		c.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

const errorText = "❌ Произошла ошибка. Попробуйте позже."

const notLinkedText = "❌ Аккаунт не привязан.\n\nПолучите код в личном кабинете и отправьте /link КОД"

// linkedUser пользователь, привязанный к чату
func (c *BotController) linkedUser(ctx context.Context, telegramID int64) (*model.User, string) {
	user, err := c.users.GetByTelegramID(ctx, telegramID)
	if err != nil {
		c.logger.Error("Failed to get user", zap.Int64("telegram_id", telegramID), zap.Error(err))
		return nil, errorText
	}

	if user == nil {
		return nil, notLinkedText
	}

	return user, ""
}

func (c *BotController) startText(ctx context.Context, telegramID int64, _ string) string {
	user, fail := c.linkedUser(ctx, telegramID)
	if user == nil {
		if fail == notLinkedText {
			return "👋 Привет!\n\nЧтобы получать уведомления о встречах, привяжите аккаунт: " +
				"получите код в личном кабинете и отправьте /link КОД"
		}
		return fail
	}

	return fmt.Sprintf("👋 Привет, %s!\n\n"+
		"Доступные команды:\n"+
		"/status - Мой прогресс\n"+
		"/access - Мой уровень доступа\n"+
		"/help - Справка", user.DisplayName)
}

func (c *BotController) helpText(ctx context.Context, telegramID int64, _ string) string {
	return "📚 Справка по командам:\n\n" +
		"/start - Начать работу с ботом\n" +
		"/link КОД - Привязать аккаунт\n" +
		"/status - Этапы подключения\n" +
		"/access - Уровень доступа\n" +
		"/help - Показать эту справку\n\n" +
		"Запись на встречи - в личном кабинете."
}

func (c *BotController) linkText(ctx context.Context, telegramID int64, text string) string {
	code := strings.TrimSpace(strings.TrimPrefix(text, "/link"))
	if code == "" {
		return "❌ Укажите код: /link КОД"
	}

	userID, ok := c.codes.Redeem(code)
	if !ok {
		return "❌ Код не найден или устарел. Получите новый код в личном кабинете."
	}

	err := c.users.SetTelegramID(ctx, userID, telegramID)
	if errors.Is(err, repository.ErrDuplicate) {
		return "❌ Этот чат уже привязан к другому аккаунту."
	}
	if err != nil {
		c.logger.Error("Failed to link telegram",
			zap.Int64("user_id", userID),
			zap.Int64("telegram_id", telegramID),
			zap.Error(err))
		return errorText
	}

	c.logger.Info("Telegram linked",
		zap.Int64("user_id", userID),
		zap.Int64("telegram_id", telegramID))

	return "✅ Аккаунт привязан. Уведомления о встречах будут приходить сюда."
}

var stageTitles = map[model.StageID]string{
	model.StageApplication: "Заявка",
	model.StageMeeting:     "Ознакомительная встреча",
	model.StageOnboarding:  "Анкета",
	model.StageContract:    "Договор",
	model.StageAccess:      "Полный доступ",
}

var stageMarks = map[model.StageStatus]string{
	model.StageStatusCompleted: "✅",
	model.StageStatusCurrent:   "▶️",
	model.StageStatusUpcoming:  "⏳",
	model.StageStatusLocked:    "🔒",
}

func (c *BotController) statusText(ctx context.Context, telegramID int64, _ string) string {
	user, fail := c.linkedUser(ctx, telegramID)
	if user == nil {
		return fail
	}

	progress, err := c.stages.Stages(ctx, user.ID)
	if err != nil {
		c.logger.Error("Failed to get stages", zap.Int64("user_id", user.ID), zap.Error(err))
		return errorText
	}

	return FormatProgress(progress)
}

// FormatProgress текст прогресса по этапам
func FormatProgress(progress model.Progress) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 Прогресс: %d%%\n\n", progress.Percent))
	for _, stage := range progress.Stages {
		sb.WriteString(fmt.Sprintf("%s %s\n", stageMarks[stage.Status], stageTitles[stage.ID]))
	}
	return strings.TrimRight(sb.String(), "\n")
}

var levelTitles = map[model.Level]string{
	model.LevelNoAccess:    "нет доступа",
	model.LevelMeetingOnly: "только встречи",
	model.LevelFullAccess:  "полный доступ",
}

func (c *BotController) accessText(ctx context.Context, telegramID int64, _ string) string {
	user, fail := c.linkedUser(ctx, telegramID)
	if user == nil {
		return fail
	}

	level, err := c.access.Resolve(ctx, user.ID)
	if err != nil {
		c.logger.Error("Failed to resolve access", zap.Int64("user_id", user.ID), zap.Error(err))
		return errorText
	}

	return fmt.Sprintf("🔓 Уровень доступа: %s", levelTitles[level])
}
