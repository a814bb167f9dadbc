package admin

import (
	"context"
	"fmt"

	"telegram_appointment_bot/internal/session"
	"telegram_appointment_bot/internal/storage/models"
	"telegram_appointment_bot/internal/validation"
	"telegram_appointment_bot/pkg/logger"
)

// handleText обрабатывает свободный текстовый ввод администратора.
// Чего бот ждёт, определяет помеченное действие в сессии;
// невалидный ввод переспрашивает, не теряя накопленный контекст.
func (h *Handler) handleText(ctx context.Context, chatID int64, text string) {
	sess := h.sessions.Get(chatID)

	switch sess.Action.Kind {
	case session.ActionServiceName:
		h.handleServiceName(ctx, chatID, sess, text)
	case session.ActionServicePrice:
		h.handleServicePrice(ctx, chatID, sess, text)
	case session.ActionServiceDuration:
		h.handleServiceDuration(ctx, chatID, sess, text)
	case session.ActionStudioField:
		h.handleStudioField(ctx, chatID, sess, text)
	default:
		sess.LastMessageID = 0
		h.showMain(ctx, chatID, sess)
	}
}

func (h *Handler) handleServiceName(ctx context.Context, chatID int64, sess *session.AdminSession, text string) {
	name, err := validation.ParseServiceName(text)
	if err != nil {
		h.send(ctx, chatID, "Название не подходит. Введите от 1 до 100 символов:", nil)
		return
	}

	sess.Action = session.Action{Kind: session.ActionServicePrice, Name: name}
	h.send(ctx, chatID, fmt.Sprintf("«%s». Теперь введите цену в рублях:", name), nil)
}

func (h *Handler) handleServicePrice(ctx context.Context, chatID int64, sess *session.AdminSession, text string) {
	price, err := validation.ParsePrice(text)
	if err != nil {
		h.send(ctx, chatID, "Цена не подходит. Введите целое число рублей:", nil)
		return
	}

	// Редактирование существующей услуги
	if sess.Action.ServiceID != 0 {
		if err := h.store.UpdateServicePrice(ctx, sess.Action.ServiceID, price); err != nil {
			h.log.Error("не удалось обновить цену",
				logger.Int("service_id", sess.Action.ServiceID), logger.Error(err))
			h.send(ctx, chatID, "Не удалось обновить цену.", nil)
			return
		}
		sess.Action = session.Action{}
		sess.LastMessageID = 0
		h.showServiceEdit(ctx, chatID, sess)
		return
	}

	// Шаг мастера создания услуги
	sess.Action = session.Action{
		Kind:  session.ActionServiceDuration,
		Name:  sess.Action.Name,
		Price: price,
	}
	h.send(ctx, chatID, "Теперь введите длительность в минутах:", nil)
}

func (h *Handler) handleServiceDuration(ctx context.Context, chatID int64, sess *session.AdminSession, text string) {
	minutes, err := validation.ParseDuration(text)
	if err != nil {
		h.send(ctx, chatID, "Длительность не подходит. Введите число минут от 5 до 600:", nil)
		return
	}

	if sess.Action.ServiceID != 0 {
		if err := h.store.UpdateServiceDuration(ctx, sess.Action.ServiceID, minutes); err != nil {
			h.log.Error("не удалось обновить длительность",
				logger.Int("service_id", sess.Action.ServiceID), logger.Error(err))
			h.send(ctx, chatID, "Не удалось обновить длительность.", nil)
			return
		}
		sess.Action = session.Action{}
		sess.LastMessageID = 0
		h.showServiceEdit(ctx, chatID, sess)
		return
	}

	svc := &models.Service{
		Name:            sess.Action.Name,
		DurationMinutes: minutes,
		Price:           sess.Action.Price,
		Active:          true,
	}
	if err := h.store.CreateService(ctx, svc); err != nil {
		h.log.Error("не удалось создать услугу", logger.Error(err))
		h.send(ctx, chatID, "Не удалось создать услугу.", nil)
		return
	}

	h.log.Info("создана услуга",
		logger.Int("service_id", svc.ID), logger.String("name", svc.Name))
	sess.Action = session.Action{}
	sess.State = session.AdminStateServiceList
	sess.LastMessageID = 0
	h.showServiceList(ctx, chatID, sess)
}

func (h *Handler) handleStudioField(ctx context.Context, chatID int64, sess *session.AdminSession, text string) {
	studio, err := h.store.GetStudio(ctx)
	if err != nil {
		h.log.Error("не удалось загрузить настройки студии", logger.Error(err))
		h.send(ctx, chatID, "Не удалось сохранить значение.", nil)
		return
	}

	switch sess.Action.StudioField {
	case "name":
		studio.Name = text
	case "address":
		studio.Address = text
	case "phone":
		studio.Phone = text
	case "instagram":
		studio.Instagram = text
	case "telegram":
		studio.Telegram = text
	case "description":
		studio.Description = text
	default:
		sess.Action = session.Action{}
		return
	}

	if err := h.store.UpdateStudio(ctx, studio); err != nil {
		h.log.Error("не удалось обновить настройки студии", logger.Error(err))
		h.send(ctx, chatID, "Не удалось сохранить значение.", nil)
		return
	}

	sess.Action = session.Action{}
	sess.State = session.AdminStateStudioSettings
	sess.LastMessageID = 0
	h.showStudioSettings(ctx, chatID, sess)
}
