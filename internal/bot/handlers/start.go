package handlers

import (
	"context"

	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/bot/service"
	"telegram_appointment_bot/internal/storage/models"
	"telegram_appointment_bot/pkg/logger"
)

// StartHandler обрабатывает команду /start
type StartHandler struct {
	service *service.Service
}

// NewStartHandler создает обработчик команды /start
func NewStartHandler(svc *service.Service) *StartHandler {
	return &StartHandler{service: svc}
}

// Handle сохраняет профиль пользователя и показывает главное меню
func (h *StartHandler) Handle(ctx context.Context, msg *tgmodels.Message) {
	chatID := msg.Chat.ID
	svc := h.service

	unlock := svc.Sessions().Lock(chatID)
	defer unlock()

	user := &models.User{ID: chatID}
	if msg.From != nil {
		user.Username = msg.From.Username
		user.FirstName = msg.From.FirstName
		user.LastName = msg.From.LastName
	}

	if err := svc.Storage().SaveUser(ctx, user); err != nil {
		svc.Logger().Error("не удалось сохранить пользователя",
			logger.Int64("chat_id", chatID), logger.Error(err))
	}

	sess := svc.Sessions().Get(chatID)
	sess.Reset()
	sess.LastMessageID = 0
	showMain(ctx, svc, chatID, sess)
}
