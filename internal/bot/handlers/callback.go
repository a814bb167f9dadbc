package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"telegram_appointment_bot/internal/booking"
	"telegram_appointment_bot/internal/bot/keyboard"
	"telegram_appointment_bot/internal/bot/service"
	"telegram_appointment_bot/internal/session"
	"telegram_appointment_bot/internal/storage/models"
	apperrors "telegram_appointment_bot/pkg/errors"
	"telegram_appointment_bot/pkg/logger"
)

// CallbackHandler обрабатывает нажатия inline-кнопок пользователя
type CallbackHandler struct {
	service *service.Service
}

// NewCallbackHandler создает обработчик callback query
func NewCallbackHandler(svc *service.Service) *CallbackHandler {
	return &CallbackHandler{service: svc}
}

// Handle разбирает токен кнопки и продвигает диалог.
// Обновления одного пользователя обрабатываются строго по одному.
func (h *CallbackHandler) Handle(ctx context.Context, chatID int64, callbackID, data string) {
	unlock := h.service.Sessions().Lock(chatID)
	defer unlock()

	sess := h.service.Sessions().Get(chatID)
	svc := h.service

	switch {
	case data == keyboard.TokenIgnore:
		svc.AnswerCallback(ctx, callbackID, "")

	case data == keyboard.TokenMain:
		sess.Reset()
		showMain(ctx, svc, chatID, sess)
		svc.AnswerCallback(ctx, callbackID, "")

	case data == keyboard.TokenBack:
		sess.Back()
		renderState(ctx, svc, chatID, sess)
		svc.AnswerCallback(ctx, callbackID, "")

	case data == keyboard.TokenBook:
		h.handleBookStart(ctx, chatID, callbackID, sess)

	case strings.HasPrefix(data, keyboard.PrefixService):
		h.handleServiceToggle(ctx, chatID, callbackID, sess, data)

	case data == keyboard.TokenServicesDone:
		h.handleServicesDone(ctx, chatID, callbackID, sess)

	case strings.HasPrefix(data, keyboard.PrefixMonth):
		h.handleMonthNav(ctx, chatID, callbackID, sess, data)

	case strings.HasPrefix(data, keyboard.PrefixDate):
		h.handleDateToggle(ctx, chatID, callbackID, sess, data)

	case data == keyboard.TokenDateDone:
		h.handleDateDone(ctx, chatID, callbackID, sess)

	case strings.HasPrefix(data, keyboard.PrefixTime):
		h.handleTimeToggle(ctx, chatID, callbackID, sess, data)

	case data == keyboard.TokenTimeDone:
		h.handleTimeDone(ctx, chatID, callbackID, sess)

	case data == keyboard.TokenConfirm:
		h.handleConfirm(ctx, chatID, callbackID, sess)

	case data == keyboard.TokenMyBookings:
		sess.Reset()
		showMyBookings(ctx, svc, chatID, sess)
		svc.AnswerCallback(ctx, callbackID, "")

	case strings.HasPrefix(data, keyboard.PrefixMyBooking):
		if id, err := strconv.Atoi(strings.TrimPrefix(data, keyboard.PrefixMyBooking)); err == nil {
			showBookingDetail(ctx, svc, chatID, sess, id)
		}
		svc.AnswerCallback(ctx, callbackID, "")

	case strings.HasPrefix(data, keyboard.PrefixMyCancel):
		h.handleUserCancel(ctx, chatID, callbackID, sess, data)

	case strings.HasPrefix(data, keyboard.PrefixRemindOK):
		h.handleReminderConfirm(ctx, chatID, callbackID, data)

	case strings.HasPrefix(data, keyboard.PrefixRemindCancel):
		h.handleReminderCancel(ctx, chatID, callbackID, data)

	case data == keyboard.TokenAbout:
		showAbout(ctx, svc, chatID, sess)
		svc.AnswerCallback(ctx, callbackID, "")

	default:
		svc.AnswerCallback(ctx, callbackID, "Неверный выбор")
	}
}

func (h *CallbackHandler) handleBookStart(ctx context.Context, chatID int64, callbackID string, sess *session.Session) {
	svc := h.service

	user, err := svc.Storage().GetUser(ctx, chatID)
	if (err != nil || user.Phone == "") && !sess.PhoneSkipped {
		// Просим контакт для администратора, но запись возможна и без него
		sess.Push(session.StateAwaitingContact)
		_, sendErr := svc.SendMessage(ctx, chatID,
			"Чтобы записаться, поделитесь номером телефона:", keyboard.CreateContactKeyboard())
		if sendErr != nil {
			svc.Logger().Error("не удалось запросить контакт", logger.Error(sendErr))
		}
		svc.AnswerCallback(ctx, callbackID, "")
		return
	}

	sess.Push(session.StateServices)
	showServices(ctx, svc, chatID, sess)
	svc.AnswerCallback(ctx, callbackID, "")
}

func (h *CallbackHandler) handleServiceToggle(ctx context.Context, chatID int64, callbackID string, sess *session.Session, data string) {
	svc := h.service

	if sess.State != session.StateServices {
		svc.AnswerCallback(ctx, callbackID, "")
		return
	}

	id, err := strconv.Atoi(strings.TrimPrefix(data, keyboard.PrefixService))
	if err != nil {
		svc.AnswerCallback(ctx, callbackID, "Неверный выбор")
		return
	}

	selected := sess.ToggleService(id)
	showServices(ctx, svc, chatID, sess)
	if selected {
		svc.AnswerCallback(ctx, callbackID, "Услуга добавлена")
	} else {
		svc.AnswerCallback(ctx, callbackID, "Услуга убрана")
	}
}

func (h *CallbackHandler) handleServicesDone(ctx context.Context, chatID int64, callbackID string, sess *session.Session) {
	svc := h.service

	if err := sess.AdvanceToCalendar(); err != nil {
		svc.AnswerCallbackAlert(ctx, callbackID, "Сначала выберите хотя бы одну услугу")
		return
	}

	showCalendar(ctx, svc, chatID, sess)
	svc.AnswerCallback(ctx, callbackID, "")
}

func (h *CallbackHandler) handleMonthNav(ctx context.Context, chatID int64, callbackID string, sess *session.Session, data string) {
	svc := h.service

	month, err := time.ParseInLocation(keyboard.MonthLayout,
		strings.TrimPrefix(data, keyboard.PrefixMonth), svc.Clock().Location())
	if err != nil {
		svc.AnswerCallback(ctx, callbackID, "Неверный выбор")
		return
	}

	// В прошлые месяцы листать нечего
	now := svc.Clock().Now()
	currentMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, svc.Clock().Location())
	if month.Before(currentMonth) {
		svc.AnswerCallback(ctx, callbackID, "")
		return
	}

	sess.CurrentMonth = month
	showCalendar(ctx, svc, chatID, sess)
	svc.AnswerCallback(ctx, callbackID, "")
}

func (h *CallbackHandler) handleDateToggle(ctx context.Context, chatID int64, callbackID string, sess *session.Session, data string) {
	svc := h.service

	if sess.State != session.StateCalendar {
		svc.AnswerCallback(ctx, callbackID, "")
		return
	}
	if !sess.HasServices() {
		svc.AnswerCallbackAlert(ctx, callbackID, "Сначала выберите услуги")
		return
	}

	// Повторное нажатие снимает дату, состояние не меняется
	date := strings.TrimPrefix(data, keyboard.PrefixDate)
	if sess.ToggleDate(date) {
		svc.AnswerCallback(ctx, callbackID, "")
	} else {
		svc.AnswerCallback(ctx, callbackID, "Дата убрана")
	}
	showCalendar(ctx, svc, chatID, sess)
}

func (h *CallbackHandler) handleDateDone(ctx context.Context, chatID int64, callbackID string, sess *session.Session) {
	svc := h.service

	if err := sess.AdvanceToTimeSelection(); err != nil {
		svc.AnswerCallbackAlert(ctx, callbackID, "Сначала выберите дату")
		return
	}

	showTimes(ctx, svc, chatID, sess)
	svc.AnswerCallback(ctx, callbackID, "")
}

func (h *CallbackHandler) handleTimeToggle(ctx context.Context, chatID int64, callbackID string, sess *session.Session, data string) {
	svc := h.service

	if sess.State != session.StateTimeSelection {
		svc.AnswerCallback(ctx, callbackID, "")
		return
	}

	date, startTime, ok := keyboard.ParseTimeToken(data, keyboard.PrefixTime)
	if !ok || !sess.HasServices() || sess.SelectedDate != date {
		svc.AnswerCallback(ctx, callbackID, "Неверный выбор")
		return
	}

	// Повторное нажатие снимает время, состояние не меняется
	if sess.ToggleTime(startTime) {
		svc.AnswerCallback(ctx, callbackID, "")
	} else {
		svc.AnswerCallback(ctx, callbackID, "Время убрано")
	}
	showTimes(ctx, svc, chatID, sess)
}

func (h *CallbackHandler) handleTimeDone(ctx context.Context, chatID int64, callbackID string, sess *session.Session) {
	svc := h.service

	if err := sess.AdvanceToConfirmation(); err != nil {
		svc.AnswerCallbackAlert(ctx, callbackID, "Сначала выберите время")
		return
	}

	showConfirmation(ctx, svc, chatID, sess)
	svc.AnswerCallback(ctx, callbackID, "")
}

func (h *CallbackHandler) handleConfirm(ctx context.Context, chatID int64, callbackID string, sess *session.Session) {
	svc := h.service

	// Невыполненное предусловие не трогает состояние: выбор сохраняется
	if !sess.HasServices() || sess.SelectedDate == "" || sess.SelectedTime == "" {
		svc.AnswerCallbackAlert(ctx, callbackID, "Запись не заполнена")
		return
	}

	user, uerr := svc.Storage().GetUser(ctx, chatID)
	if (uerr != nil || user.Phone == "") && !sess.PhoneSkipped {
		// Просим телефон, но позволяем продолжить без него; выбор сохраняется
		sess.Push(session.StateAwaitingContact)
		if _, sendErr := svc.SendMessage(ctx, chatID,
			"Чтобы подтвердить запись, поделитесь номером телефона:", keyboard.CreateContactKeyboard()); sendErr != nil {
			svc.Logger().Error("не удалось запросить контакт", logger.Error(sendErr))
		}
		svc.AnswerCallback(ctx, callbackID, "")
		return
	}
	if user == nil {
		user = &models.User{ID: chatID}
	}

	created, err := svc.Ledger().CreateBooking(ctx, chatID, sess.SelectedDate, sess.SelectedTime, sess.ServiceIDs())
	if err != nil {
		if errors.Is(err, apperrors.ErrSlotTaken) {
			// Кто-то успел раньше: возвращаем к выбору времени
			svc.AnswerCallbackAlert(ctx, callbackID, "Это время уже заняли, выберите другое")
			sess.SelectedTime = ""
			sess.Back()
			showTimes(ctx, svc, chatID, sess)
			return
		}
		svc.Logger().Error("не удалось создать запись",
			logger.Int64("chat_id", chatID), logger.Error(err))
		svc.AnswerCallbackAlert(ctx, callbackID, "Не получилось создать запись, попробуйте позже")
		return
	}

	svc.Notifier().BookingCreated(ctx, created, user)

	text := "✅ Вы записаны!\n\n" +
		"Дата: " + created.Date + " в " + created.StartTime + "\n" +
		"За сутки до визита мы пришлём напоминание."
	sess.Reset()
	render(ctx, svc, chatID, sess, text, keyboard.CreateMainMenuKeyboard())
	svc.AnswerCallback(ctx, callbackID, "Запись создана")
}

func (h *CallbackHandler) handleUserCancel(ctx context.Context, chatID int64, callbackID string, sess *session.Session, data string) {
	svc := h.service

	id, err := strconv.Atoi(strings.TrimPrefix(data, keyboard.PrefixMyCancel))
	if err != nil {
		svc.AnswerCallback(ctx, callbackID, "Неверный выбор")
		return
	}

	// Отменять можно только собственные записи
	existing, err := svc.Ledger().GetBooking(ctx, id)
	if err != nil || existing.UserID != chatID {
		svc.AnswerCallback(ctx, callbackID, "Запись не найдена")
		showMyBookings(ctx, svc, chatID, sess)
		return
	}

	cancelled, err := svc.Ledger().CancelBooking(ctx, id, booking.CancelReasonUser)
	if err != nil {
		svc.AnswerCallback(ctx, callbackID, "Запись не найдена")
		showMyBookings(ctx, svc, chatID, sess)
		return
	}

	if user, uerr := svc.Storage().GetUser(ctx, chatID); uerr == nil {
		svc.Notifier().BookingCancelled(ctx, cancelled, user, booking.CancelReasonUser)
	}

	svc.AnswerCallback(ctx, callbackID, "Запись отменена")
	sess.Reset()
	showMyBookings(ctx, svc, chatID, sess)
}

func (h *CallbackHandler) handleReminderConfirm(ctx context.Context, chatID int64, callbackID, data string) {
	svc := h.service

	id, err := strconv.Atoi(strings.TrimPrefix(data, keyboard.PrefixRemindOK))
	if err != nil {
		svc.AnswerCallback(ctx, callbackID, "Неверный выбор")
		return
	}

	existing, err := svc.Ledger().GetBooking(ctx, id)
	if err != nil || existing.UserID != chatID {
		svc.AnswerCallback(ctx, callbackID, "Запись не найдена")
		return
	}

	if err := svc.Ledger().ConfirmReminder(ctx, id); err != nil {
		svc.Logger().Error("не удалось подтвердить визит",
			logger.Int("booking_id", id), logger.Error(err))
		svc.AnswerCallback(ctx, callbackID, "Попробуйте позже")
		return
	}

	svc.AnswerCallback(ctx, callbackID, "Ждём вас!")
	if _, err := svc.SendMessage(ctx, chatID, "Спасибо за подтверждение, ждём вас! 💅", nil); err != nil {
		svc.Logger().Debug("не удалось отправить подтверждение", logger.Error(err))
	}
}

func (h *CallbackHandler) handleReminderCancel(ctx context.Context, chatID int64, callbackID, data string) {
	svc := h.service

	id, err := strconv.Atoi(strings.TrimPrefix(data, keyboard.PrefixRemindCancel))
	if err != nil {
		svc.AnswerCallback(ctx, callbackID, "Неверный выбор")
		return
	}

	existing, err := svc.Ledger().GetBooking(ctx, id)
	if err != nil || existing.UserID != chatID {
		svc.AnswerCallback(ctx, callbackID, "Запись не найдена")
		return
	}

	cancelled, err := svc.Ledger().CancelBooking(ctx, id, booking.CancelReasonUser)
	if err != nil {
		svc.AnswerCallback(ctx, callbackID, "Запись не найдена")
		return
	}

	if user, uerr := svc.Storage().GetUser(ctx, chatID); uerr == nil {
		svc.Notifier().BookingCancelled(ctx, cancelled, user, booking.CancelReasonUser)
	}

	svc.AnswerCallback(ctx, callbackID, "Запись отменена")
	if _, err := svc.SendMessage(ctx, chatID, "Запись отменена. Будем рады видеть вас в другой раз!", nil); err != nil {
		svc.Logger().Debug("не удалось отправить уведомление об отмене", logger.Error(err))
	}
}
