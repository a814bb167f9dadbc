package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/bot/keyboard"
	"telegram_appointment_bot/internal/notify"
	"telegram_appointment_bot/internal/session"
	"telegram_appointment_bot/internal/storage/models"
	"telegram_appointment_bot/pkg/logger"
)

func (h *Handler) showMain(ctx context.Context, chatID int64, sess *session.AdminSession) {
	h.render(ctx, chatID, sess, "Панель администратора. Выберите раздел:", keyboard.CreateAdminMainKeyboard())
}

func (h *Handler) showServiceList(ctx context.Context, chatID int64, sess *session.AdminSession) {
	services, err := h.store.ActiveServices(ctx)
	if err != nil {
		h.log.Error("не удалось загрузить услуги", logger.Error(err))
		h.render(ctx, chatID, sess, "Не удалось загрузить услуги.", keyboard.CreateAdminMainKeyboard())
		return
	}

	text := "Услуги студии:"
	if len(services) == 0 {
		text = "Услуг пока нет. Добавьте первую:"
	}
	h.render(ctx, chatID, sess, text, keyboard.CreateAdminServicesKeyboard(services))
}

func (h *Handler) showServiceEdit(ctx context.Context, chatID int64, sess *session.AdminSession) {
	svc, err := h.store.GetService(ctx, sess.EditServiceID)
	if err != nil {
		sess.State = session.AdminStateServiceList
		h.showServiceList(ctx, chatID, sess)
		return
	}

	text := fmt.Sprintf("%s\n\nДлительность: %d мин\nЦена: %d ₽",
		svc.Name, svc.DurationMinutes, svc.Price)
	h.render(ctx, chatID, sess, text, keyboard.CreateAdminServiceEditKeyboard(svc.ID))
}

func (h *Handler) showSlotCalendar(ctx context.Context, chatID int64, sess *session.AdminSession) {
	month := sess.CurrentMonth
	if month.IsZero() {
		now := h.clk.Now()
		month = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.clk.Location())
		sess.CurrentMonth = month
	}

	text := "Выберите дату для управления окнами:"
	kb := keyboard.CreateCalendarKeyboard(month, nil, keyboard.PrefixAdmDate, keyboard.PrefixAdmMonth)
	h.render(ctx, chatID, sess, text, kb)
}

func (h *Handler) showSlotPicker(ctx context.Context, chatID int64, sess *session.AdminSession) {
	existing, err := h.store.SlotsForDate(ctx, sess.SelectedDate)
	if err != nil {
		h.log.Error("не удалось загрузить окна",
			logger.String("date", sess.SelectedDate), logger.Error(err))
		h.render(ctx, chatID, sess, "Не удалось загрузить окна.", keyboard.CreateAdminMainKeyboard())
		return
	}

	candidates := dayTimes(h.cfg.Studio.DayStart, h.cfg.Studio.DayEnd, h.cfg.Studio.SlotStepMins)

	text := fmt.Sprintf("Окна на %s.\nОтметьте времена и нажмите «Сохранить». 🗑 удаляет свободное окно, 🔒 — окно с записью.",
		notify.FormatDate(sess.SelectedDate, h.clk.Location()))
	if booked := h.bookedCount(ctx, existing); booked > 0 {
		text += fmt.Sprintf("\nЗаписей на эту дату: %d", booked)
	}
	h.render(ctx, chatID, sess, text, keyboard.CreateAdminTimePickerKeyboard(candidates, sess.SelectedTimes, existing))
}

func (h *Handler) showBookingList(ctx context.Context, chatID int64, sess *session.AdminSession) {
	bookings, err := h.ledger.AllBookings(ctx)
	if err != nil {
		h.log.Error("не удалось загрузить записи", logger.Error(err))
		h.render(ctx, chatID, sess, "Не удалось загрузить записи.", keyboard.CreateAdminMainKeyboard())
		return
	}

	text := "Записи клиентов:"
	if len(bookings) == 0 {
		text = "Записей пока нет."
	}
	h.render(ctx, chatID, sess, text, keyboard.CreateAdminBookingsKeyboard(bookings, h.clk.Location()))
}

func (h *Handler) showBookingDetail(ctx context.Context, chatID int64, sess *session.AdminSession) {
	booking, err := h.ledger.GetBooking(ctx, sess.ViewBookingID)
	if err != nil {
		sess.State = session.AdminStateBookingList
		h.showBookingList(ctx, chatID, sess)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Запись #%d\n\n", booking.ID)
	fmt.Fprintf(&sb, "Дата: %s в %s\n",
		notify.FormatDate(booking.Date, h.clk.Location()), booking.StartTime)

	if user, uerr := h.store.GetUser(ctx, booking.UserID); uerr == nil {
		fmt.Fprintf(&sb, "Клиент: %s\n", user.DisplayName())
		if user.Phone != "" {
			fmt.Fprintf(&sb, "Телефон: %s\n", user.Phone)
		}
	}

	fmt.Fprintf(&sb, "Услуги: %s\n", strings.Join(booking.ServiceNames(), ", "))
	fmt.Fprintf(&sb, "Длительность: %d мин\n", int(booking.TotalDuration().Minutes()))
	fmt.Fprintf(&sb, "Стоимость: %d ₽\n", booking.TotalPrice())

	if booking.ReminderSent {
		if booking.ReminderConfirmed {
			sb.WriteString("\nВизит подтверждён ✅")
		} else {
			sb.WriteString("\nНапоминание отправлено, ждём подтверждения ⏳")
		}
	}

	h.render(ctx, chatID, sess, sb.String(), keyboard.CreateAdminBookingDetailKeyboard(booking.ID))
}

func (h *Handler) showStudioSettings(ctx context.Context, chatID int64, sess *session.AdminSession) {
	studio, err := h.store.GetStudio(ctx)
	if err != nil {
		h.log.Error("не удалось загрузить настройки студии", logger.Error(err))
		h.render(ctx, chatID, sess, "Не удалось загрузить настройки.", keyboard.CreateAdminMainKeyboard())
		return
	}

	text := fmt.Sprintf("Настройки студии:\n\nНазвание: %s\nАдрес: %s\nТелефон: %s\nInstagram: %s\nTelegram: %s\nОписание: %s\n\nВыберите поле для изменения:",
		studio.Name, studio.Address, studio.Phone,
		orDash(studio.Instagram), orDash(studio.Telegram), orDash(studio.Description))
	h.render(ctx, chatID, sess, text, keyboard.CreateAdminStudioKeyboard())
}

// renderState перерисовывает экран текущего состояния
func (h *Handler) renderState(ctx context.Context, chatID int64, sess *session.AdminSession) {
	switch sess.State {
	case session.AdminStateServiceList:
		h.showServiceList(ctx, chatID, sess)
	case session.AdminStateServiceEdit:
		h.showServiceEdit(ctx, chatID, sess)
	case session.AdminStateTimeslotCalendar:
		h.showSlotCalendar(ctx, chatID, sess)
	case session.AdminStateTimeslotPicker:
		h.showSlotPicker(ctx, chatID, sess)
	case session.AdminStateBookingList:
		h.showBookingList(ctx, chatID, sess)
	case session.AdminStateBookingDetail:
		h.showBookingDetail(ctx, chatID, sess)
	case session.AdminStateStudioSettings:
		h.showStudioSettings(ctx, chatID, sess)
	default:
		sess.Reset()
		h.showMain(ctx, chatID, sess)
	}
}

func (h *Handler) render(ctx context.Context, chatID int64, sess *session.AdminSession, text string, markup tgmodels.ReplyMarkup) {
	if sess.LastMessageID != 0 {
		_, err := h.api.EditMessageText(ctx, &tgbot.EditMessageTextParams{
			ChatID:      chatID,
			MessageID:   sess.LastMessageID,
			Text:        text,
			ReplyMarkup: markup,
		})
		if err == nil {
			return
		}
	}

	msg, err := h.api.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		h.log.Error("не удалось показать экран",
			logger.Int64("chat_id", chatID), logger.Error(err))
		return
	}
	sess.LastMessageID = msg.ID
}

func (h *Handler) send(ctx context.Context, chatID int64, text string, markup tgmodels.ReplyMarkup) {
	if _, err := h.api.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	}); err != nil {
		h.log.Error("не удалось отправить сообщение",
			logger.Int64("chat_id", chatID), logger.Error(err))
	}
}

func (h *Handler) answer(ctx context.Context, callbackID, text string) {
	if _, err := h.api.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}); err != nil {
		h.log.Debug("не удалось ответить на callback", logger.Error(err))
	}
}

// bookedCount считает записи, привязанные к занятым окнам.
// По инварианту аллокатора на окно приходится не больше одной записи,
// но суммируем честно.
func (h *Handler) bookedCount(ctx context.Context, slots []*models.Slot) int {
	total := 0
	for _, slot := range slots {
		if !slot.Occupied {
			continue
		}
		n, err := h.store.BookingCountForSlot(ctx, slot.Date, slot.StartTime)
		if err != nil {
			h.log.Error("не удалось посчитать записи окна",
				logger.String("slot", models.FormatSlotKey(slot.Date, slot.StartTime)), logger.Error(err))
			continue
		}
		total += n
	}
	return total
}

// dayTimes строит сетку времён рабочего дня с заданным шагом
func dayTimes(dayStart, dayEnd string, stepMinutes int) []string {
	start, err := time.Parse(models.TimeLayout, dayStart)
	if err != nil {
		return nil
	}
	end, err := time.Parse(models.TimeLayout, dayEnd)
	if err != nil || stepMinutes <= 0 {
		return nil
	}

	var times []string
	for t := start; !t.After(end); t = t.Add(time.Duration(stepMinutes) * time.Minute) {
		times = append(times, t.Format(models.TimeLayout))
	}
	return times
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}
