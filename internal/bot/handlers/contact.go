package handlers

import (
	"context"

	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/bot/keyboard"
	"telegram_appointment_bot/internal/bot/service"
	"telegram_appointment_bot/internal/session"
	"telegram_appointment_bot/pkg/logger"
)

// ContactHandler обрабатывает присланный контакт
type ContactHandler struct {
	service *service.Service
}

// NewContactHandler создает обработчик контактов
func NewContactHandler(svc *service.Service) *ContactHandler {
	return &ContactHandler{service: svc}
}

// Handle сохраняет телефон и продолжает прерванную запись
func (h *ContactHandler) Handle(ctx context.Context, msg *tgmodels.Message) {
	chatID := msg.Chat.ID
	svc := h.service

	if msg.Contact == nil {
		return
	}
	// Принимаем только собственный контакт пользователя
	if msg.Contact.UserID != 0 && msg.Contact.UserID != chatID {
		if _, err := svc.SendMessage(ctx, chatID, "Пожалуйста, поделитесь своим номером телефона.", nil); err != nil {
			svc.Logger().Debug("не удалось отправить сообщение", logger.Error(err))
		}
		return
	}

	unlock := svc.Sessions().Lock(chatID)
	defer unlock()

	if err := svc.Storage().UpdateUserPhone(ctx, chatID, msg.Contact.PhoneNumber); err != nil {
		svc.Logger().Error("не удалось сохранить телефон",
			logger.Int64("chat_id", chatID), logger.Error(err))
		if _, serr := svc.SendMessage(ctx, chatID, "Не удалось сохранить номер, попробуйте ещё раз.", nil); serr != nil {
			svc.Logger().Debug("не удалось отправить сообщение", logger.Error(serr))
		}
		return
	}

	if _, err := svc.SendMessage(ctx, chatID, "Спасибо! Номер сохранён.", keyboard.CreateRemoveKeyboard()); err != nil {
		svc.Logger().Debug("не удалось отправить сообщение", logger.Error(err))
	}

	sess := svc.Sessions().Get(chatID)
	if sess.State == session.StateAwaitingContact {
		h.resumeBooking(ctx, chatID, sess)
		return
	}

	sess.LastMessageID = 0
	showMain(ctx, svc, chatID, sess)
}

// HandleSkip продолжает прерванную запись без номера телефона
func (h *ContactHandler) HandleSkip(ctx context.Context, msg *tgmodels.Message) {
	chatID := msg.Chat.ID
	svc := h.service

	unlock := svc.Sessions().Lock(chatID)
	defer unlock()

	sess := svc.Sessions().Get(chatID)
	if sess.State != session.StateAwaitingContact {
		sess.LastMessageID = 0
		showMain(ctx, svc, chatID, sess)
		return
	}

	sess.PhoneSkipped = true
	if _, err := svc.SendMessage(ctx, chatID, "Хорошо, продолжим без номера.", keyboard.CreateRemoveKeyboard()); err != nil {
		svc.Logger().Debug("не удалось отправить сообщение", logger.Error(err))
	}
	h.resumeBooking(ctx, chatID, sess)
}

// resumeBooking возвращает диалог к шагу, прерванному запросом контакта.
// Телефон запрашивался либо в начале записи, либо на подтверждении.
func (h *ContactHandler) resumeBooking(ctx context.Context, chatID int64, sess *session.Session) {
	svc := h.service

	sess.Back()
	sess.LastMessageID = 0
	if sess.State == session.StateConfirmationPrompt {
		showConfirmation(ctx, svc, chatID, sess)
		return
	}
	sess.Push(session.StateServices)
	showServices(ctx, svc, chatID, sess)
}
