package handlers

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/bot/keyboard"
	"telegram_appointment_bot/internal/bot/service"
	"telegram_appointment_bot/internal/notify"
	"telegram_appointment_bot/internal/session"
	"telegram_appointment_bot/pkg/logger"
)

// Экраны диалога. Каждый экран редактирует последнее сообщение бота,
// чтобы диалог не разрастался в ленту.

func showMain(ctx context.Context, svc *service.Service, chatID int64, sess *session.Session) {
	text := "Здравствуйте! Я помогу записаться в студию.\n\nВыберите действие:"
	render(ctx, svc, chatID, sess, text, keyboard.CreateMainMenuKeyboard())
}

func showServices(ctx context.Context, svc *service.Service, chatID int64, sess *session.Session) {
	services, err := svc.Storage().ActiveServices(ctx)
	if err != nil {
		svc.Logger().Error("не удалось загрузить услуги", logger.Error(err))
		render(ctx, svc, chatID, sess, "Не удалось загрузить услуги, попробуйте позже.", keyboard.CreateMainMenuKeyboard())
		return
	}
	if len(services) == 0 {
		render(ctx, svc, chatID, sess, "Пока нет доступных услуг. Загляните позже!", keyboard.CreateMainMenuKeyboard())
		return
	}

	text := "Выберите услуги (можно несколько):"
	render(ctx, svc, chatID, sess, text, keyboard.CreateServicesKeyboard(services, sess.SelectedServices))
}

func showCalendar(ctx context.Context, svc *service.Service, chatID int64, sess *session.Session) {
	month := sess.CurrentMonth
	if month.IsZero() {
		now := svc.Clock().Now()
		month = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, svc.Clock().Location())
		sess.CurrentMonth = month
	}

	freeDates, err := svc.Ledger().FreeDates(ctx, month)
	if err != nil {
		svc.Logger().Error("не удалось загрузить календарь", logger.Error(err))
		render(ctx, svc, chatID, sess, "Не удалось загрузить календарь, попробуйте позже.", keyboard.CreateMainMenuKeyboard())
		return
	}

	text := "Выберите дату. Точками отмечены дни со свободными окошками:"
	kb := keyboard.CreateBookingCalendarKeyboard(month, freeDates, sess.SelectedDate)
	render(ctx, svc, chatID, sess, text, kb)
}

func showTimes(ctx context.Context, svc *service.Service, chatID int64, sess *session.Session) {
	slots, err := svc.Ledger().FreeSlotsForDate(ctx, sess.SelectedDate)
	if err != nil {
		svc.Logger().Error("не удалось загрузить окна", logger.Error(err))
		render(ctx, svc, chatID, sess, "Не удалось загрузить свободное время, попробуйте позже.", keyboard.CreateMainMenuKeyboard())
		return
	}

	if len(slots) == 0 {
		sess.Back()
		showCalendar(ctx, svc, chatID, sess)
		return
	}

	text := fmt.Sprintf("Свободное время на %s:",
		notify.FormatDate(sess.SelectedDate, svc.Clock().Location()))
	render(ctx, svc, chatID, sess, text, keyboard.CreateTimeKeyboard(slots, sess.SelectedTime))
}

func showConfirmation(ctx context.Context, svc *service.Service, chatID int64, sess *session.Session) {
	services, err := svc.Storage().ActiveServices(ctx)
	if err != nil {
		svc.Logger().Error("не удалось загрузить услуги", logger.Error(err))
		render(ctx, svc, chatID, sess, "Что-то пошло не так, попробуйте позже.", keyboard.CreateMainMenuKeyboard())
		return
	}

	var names []string
	var totalPrice, totalMinutes int
	for _, s := range services {
		if sess.SelectedServices[s.ID] {
			names = append(names, s.Name)
			totalPrice += s.Price
			totalMinutes += s.DurationMinutes
		}
	}

	var sb strings.Builder
	sb.WriteString("Проверьте детали записи:\n\n")
	fmt.Fprintf(&sb, "Услуги: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(&sb, "Дата: %s в %s\n", notify.FormatDate(sess.SelectedDate, svc.Clock().Location()), sess.SelectedTime)
	fmt.Fprintf(&sb, "Длительность: %d мин\n", totalMinutes)
	fmt.Fprintf(&sb, "Стоимость: %d ₽", totalPrice)

	render(ctx, svc, chatID, sess, sb.String(), keyboard.CreateConfirmationKeyboard())
}

func showMyBookings(ctx context.Context, svc *service.Service, chatID int64, sess *session.Session) {
	bookings, err := svc.Ledger().UserBookings(ctx, chatID)
	if err != nil {
		svc.Logger().Error("не удалось загрузить записи", logger.Error(err))
		render(ctx, svc, chatID, sess, "Не удалось загрузить ваши записи, попробуйте позже.", keyboard.CreateMainMenuKeyboard())
		return
	}

	if len(bookings) == 0 {
		render(ctx, svc, chatID, sess, "У вас пока нет записей.", keyboard.CreateMainMenuKeyboard())
		return
	}

	text := "Ваши записи:"
	render(ctx, svc, chatID, sess, text, keyboard.CreateMyBookingsKeyboard(bookings, svc.Clock().Location()))
}

func showBookingDetail(ctx context.Context, svc *service.Service, chatID int64, sess *session.Session, bookingID int) {
	booking, err := svc.Ledger().GetBooking(ctx, bookingID)
	if err != nil || booking.UserID != chatID {
		showMyBookings(ctx, svc, chatID, sess)
		return
	}
	sess.Push(session.StateConfirmationDone)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Запись на %s в %s\n\n",
		notify.FormatDate(booking.Date, svc.Clock().Location()), booking.StartTime)
	fmt.Fprintf(&sb, "Услуги: %s\n", strings.Join(booking.ServiceNames(), ", "))
	fmt.Fprintf(&sb, "Длительность: %d мин\n", int(booking.TotalDuration().Minutes()))
	fmt.Fprintf(&sb, "Стоимость: %d ₽", booking.TotalPrice())

	render(ctx, svc, chatID, sess, sb.String(), keyboard.CreateBookingDetailKeyboard(booking.ID))
}

func showAbout(ctx context.Context, svc *service.Service, chatID int64, sess *session.Session) {
	studio, err := svc.Storage().GetStudio(ctx)
	if err != nil {
		svc.Logger().Error("не удалось загрузить данные студии", logger.Error(err))
		render(ctx, svc, chatID, sess, "Информация временно недоступна.", keyboard.CreateMainMenuKeyboard())
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "✨ %s\n\n", studio.Name)
	if studio.Description != "" {
		sb.WriteString(studio.Description + "\n\n")
	}
	fmt.Fprintf(&sb, "📍 %s\n📞 %s", studio.Address, studio.Phone)
	if studio.Instagram != "" {
		fmt.Fprintf(&sb, "\n📷 %s", studio.Instagram)
	}
	if studio.Telegram != "" {
		fmt.Fprintf(&sb, "\n💬 %s", studio.Telegram)
	}

	render(ctx, svc, chatID, sess, sb.String(), keyboard.CreateMainMenuKeyboard())
}

// renderState перерисовывает экран текущего состояния.
// Используется кнопкой "Назад".
func renderState(ctx context.Context, svc *service.Service, chatID int64, sess *session.Session) {
	switch sess.State {
	case session.StateServices:
		showServices(ctx, svc, chatID, sess)
	case session.StateCalendar:
		showCalendar(ctx, svc, chatID, sess)
	case session.StateTimeSelection:
		showTimes(ctx, svc, chatID, sess)
	case session.StateConfirmationPrompt:
		showConfirmation(ctx, svc, chatID, sess)
	default:
		sess.Reset()
		showMain(ctx, svc, chatID, sess)
	}
}

// render показывает экран, редактируя последнее сообщение бота
func render(ctx context.Context, svc *service.Service, chatID int64, sess *session.Session, text string, markup tgmodels.ReplyMarkup) {
	id, err := svc.EditMessage(ctx, chatID, sess.LastMessageID, text, markup)
	if err != nil {
		svc.Logger().Error("не удалось показать экран",
			logger.Int64("chat_id", chatID), logger.Error(err))
		return
	}
	sess.LastMessageID = id
}
