package service

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/booking"
	"telegram_appointment_bot/internal/clock"
	"telegram_appointment_bot/internal/config"
	"telegram_appointment_bot/internal/notify"
	"telegram_appointment_bot/internal/session"
	"telegram_appointment_bot/internal/storage"
	"telegram_appointment_bot/pkg/logger"
)

// TelegramAPI описывает используемое подмножество API go-telegram/bot.
// *bot.Bot реализует его; в тестах подменяется фейком.
type TelegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

// Service связывает обработчики пользовательского бота с доменом
type Service struct {
	api      TelegramAPI
	store    storage.Storage
	ledger   *booking.Ledger
	sessions *session.Store
	notifier *notify.Notifier
	clk      clock.Clock
	cfg      *config.Config
	log      *logger.Logger
}

// New создает сервис пользовательского бота
func New(
	api TelegramAPI,
	store storage.Storage,
	ledger *booking.Ledger,
	sessions *session.Store,
	notifier *notify.Notifier,
	clk clock.Clock,
	cfg *config.Config,
	log *logger.Logger,
) *Service {
	return &Service{
		api:      api,
		store:    store,
		ledger:   ledger,
		sessions: sessions,
		notifier: notifier,
		clk:      clk,
		cfg:      cfg,
		log:      log.WithFields(logger.String("component", "user_bot")),
	}
}

// Storage возвращает хранилище
func (s *Service) Storage() storage.Storage { return s.store }

// Ledger возвращает реестр записей
func (s *Service) Ledger() *booking.Ledger { return s.ledger }

// Sessions возвращает хранилище сессий
func (s *Service) Sessions() *session.Store { return s.sessions }

// Notifier возвращает рассыльщика уведомлений
func (s *Service) Notifier() *notify.Notifier { return s.notifier }

// Clock возвращает часы сервиса
func (s *Service) Clock() clock.Clock { return s.clk }

// Config возвращает конфигурацию
func (s *Service) Config() *config.Config { return s.cfg }

// Logger возвращает логгер
func (s *Service) Logger() *logger.Logger { return s.log }

// SendMessage отправляет сообщение и возвращает его id
func (s *Service) SendMessage(ctx context.Context, chatID int64, text string, markup tgmodels.ReplyMarkup) (int, error) {
	msg, err := s.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return msg.ID, nil
}

// EditMessage редактирует текст и клавиатуру сообщения.
// При messageID == 0 отправляет новое сообщение.
func (s *Service) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup tgmodels.ReplyMarkup) (int, error) {
	if messageID == 0 {
		return s.SendMessage(ctx, chatID, text, markup)
	}

	_, err := s.api.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		// Сообщение могло устареть или быть удалено; отправляем новое
		s.log.Debug("не удалось отредактировать сообщение, отправляем новое",
			logger.Int64("chat_id", chatID), logger.Error(err))
		return s.SendMessage(ctx, chatID, text, markup)
	}
	return messageID, nil
}

// AnswerCallback отвечает на callback query
func (s *Service) AnswerCallback(ctx context.Context, callbackID, text string) {
	_, err := s.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	})
	if err != nil {
		s.log.Debug("не удалось ответить на callback", logger.Error(err))
	}
}

// AnswerCallbackAlert отвечает на callback query всплывающим предупреждением
func (s *Service) AnswerCallbackAlert(ctx context.Context, callbackID, text string) {
	_, err := s.api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
	if err != nil {
		s.log.Debug("не удалось ответить на callback", logger.Error(err))
	}
}

// DeleteMessage удаляет сообщение
func (s *Service) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := s.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    chatID,
		MessageID: messageID,
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
