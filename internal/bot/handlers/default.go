package handlers

import (
	"context"

	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/bot/service"
)

// DefaultHandler обрабатывает прочие сообщения
type DefaultHandler struct {
	service *service.Service
}

// NewDefaultHandler создает обработчик по умолчанию
func NewDefaultHandler(svc *service.Service) *DefaultHandler {
	return &DefaultHandler{service: svc}
}

// Handle возвращает пользователя в главное меню.
// Возврат в меню сбрасывает накопленные выборы.
func (h *DefaultHandler) Handle(ctx context.Context, msg *tgmodels.Message) {
	chatID := msg.Chat.ID
	svc := h.service

	unlock := svc.Sessions().Lock(chatID)
	defer unlock()

	sess := svc.Sessions().Get(chatID)
	sess.Reset()
	sess.LastMessageID = 0
	showMain(ctx, svc, chatID, sess)
}
