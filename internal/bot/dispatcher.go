package bot

import (
	"context"
	"strings"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/bot/handlers"
	"telegram_appointment_bot/internal/bot/keyboard"
	"telegram_appointment_bot/internal/bot/service"
	"telegram_appointment_bot/pkg/logger"
)

// Dispatcher управляет обработкой входящих обновлений пользовательского бота
type Dispatcher struct {
	startHandler    *handlers.StartHandler
	contactHandler  *handlers.ContactHandler
	callbackHandler *handlers.CallbackHandler
	defaultHandler  *handlers.DefaultHandler
	log             *logger.Logger
}

// NewDispatcher создает диспетчер обновлений
func NewDispatcher(svc *service.Service) *Dispatcher {
	return &Dispatcher{
		startHandler:    handlers.NewStartHandler(svc),
		contactHandler:  handlers.NewContactHandler(svc),
		callbackHandler: handlers.NewCallbackHandler(svc),
		defaultHandler:  handlers.NewDefaultHandler(svc),
		log:             svc.Logger(),
	}
}

// HandleUpdate обрабатывает входящее обновление от Telegram
func (d *Dispatcher) HandleUpdate(ctx context.Context, _ *tgbot.Bot, update *tgmodels.Update) {
	if update.CallbackQuery != nil {
		cb := update.CallbackQuery
		chatID := cb.From.ID
		if cb.Message.Message != nil {
			chatID = cb.Message.Message.Chat.ID
		}
		d.log.Debug("callback пользователя",
			logger.Int64("chat_id", chatID), logger.String("data", cb.Data))
		d.callbackHandler.Handle(ctx, chatID, cb.ID, cb.Data)
		return
	}

	if update.Message != nil {
		msg := update.Message

		if msg.Contact != nil {
			d.contactHandler.Handle(ctx, msg)
			return
		}

		if msg.Text == keyboard.ButtonSkipContact {
			d.contactHandler.HandleSkip(ctx, msg)
			return
		}

		if strings.HasPrefix(msg.Text, "/start") {
			d.startHandler.Handle(ctx, msg)
			return
		}

		d.defaultHandler.Handle(ctx, msg)
		return
	}
}
