package keyboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	storagemodels "telegram_appointment_bot/internal/storage/models"
)

// Токены callback-данных пользовательского бота
const (
	TokenBook         = "MENU:book"
	TokenMyBookings   = "MENU:my"
	TokenAbout        = "MENU:about"
	TokenBack         = "BACK"
	TokenMain         = "MAIN"
	TokenServicesDone = "SERVICES_DONE"
	TokenDateDone     = "DATE_DONE"
	TokenTimeDone     = "TIME_DONE"
	TokenConfirm      = "CONFIRM_BOOKING"
	TokenIgnore       = "IGNORE"

	PrefixService      = "SERVICE:"
	PrefixDate         = "DATE:"
	PrefixMonth        = "MONTH:"
	PrefixTime         = "TIME:"
	PrefixMyBooking    = "MYBOOK:"
	PrefixMyCancel     = "MYCANCEL:"
	PrefixRemindOK     = "REMIND_OK:"
	PrefixRemindCancel = "REMIND_CANCEL:"
)

// MonthLayout задает формат месяца в токенах навигации календаря
const MonthLayout = "2006-01"

// ButtonSkipContact подпись кнопки отказа от отправки номера.
// Нажатие приходит обычным текстом, диспетчер узнаёт его по подписи.
const ButtonSkipContact = "Продолжить без номера"

var ruMonths = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

var ruWeekdayHeader = []string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"}

// TimeToken собирает токен выбора времени
func TimeToken(prefix, date, startTime string) string {
	return prefix + date + "_" + startTime
}

// ParseTimeToken разбирает токен выбора времени на дату и время
func ParseTimeToken(data, prefix string) (date, startTime string, ok bool) {
	payload := strings.TrimPrefix(data, prefix)
	parts := strings.SplitN(payload, "_", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// CreateMainMenuKeyboard создает главное меню пользователя
func CreateMainMenuKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "📝 Записаться", CallbackData: TokenBook}},
			{{Text: "📋 Мои записи", CallbackData: TokenMyBookings}},
			{{Text: "ℹ️ О студии", CallbackData: TokenAbout}},
		},
	}
}

// CreateServicesKeyboard создает меню выбора услуг с отметками выбранных
func CreateServicesKeyboard(services []*storagemodels.Service, selected map[int]bool) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, svc := range services {
		text := fmt.Sprintf("%s — %d ₽", svc.Name, svc.Price)
		if selected[svc.ID] {
			text = "✅ " + text
		}
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         text,
			CallbackData: fmt.Sprintf("%s%d", PrefixService, svc.ID),
		}})
	}

	if len(selected) > 0 {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         "Выбрать дату ➡️",
			CallbackData: TokenServicesDone,
		}})
	}
	rows = append(rows, backRow())

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateCalendarKeyboard создает календарь месяца.
// enabled помечает выбираемые даты; nil разрешает все дни.
// Невыбираемые дни остаются в сетке как неактивные кнопки.
func CreateCalendarKeyboard(month time.Time, enabled map[string]bool, datePrefix, monthPrefix string) *models.InlineKeyboardMarkup {
	rows := calendarGrid(month, enabled, "", datePrefix, monthPrefix)
	rows = append(rows, backRow())
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateBookingCalendarKeyboard создает календарь выбора даты записи.
// Выбранная дата отмечается; кнопка перехода к времени появляется
// только когда дата выбрана.
func CreateBookingCalendarKeyboard(month time.Time, enabled map[string]bool, selected string) *models.InlineKeyboardMarkup {
	rows := calendarGrid(month, enabled, selected, PrefixDate, PrefixMonth)
	if selected != "" {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         "Выбрать время ➡️",
			CallbackData: TokenDateDone,
		}})
	}
	rows = append(rows, backRow())
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func calendarGrid(month time.Time, enabled map[string]bool, selected, datePrefix, monthPrefix string) [][]models.InlineKeyboardButton {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	daysInMonth := first.AddDate(0, 1, -1).Day()

	header := []models.InlineKeyboardButton{
		{Text: "◀️", CallbackData: monthPrefix + first.AddDate(0, -1, 0).Format(MonthLayout)},
		{Text: fmt.Sprintf("%s %d", ruMonths[first.Month()-1], first.Year()), CallbackData: TokenIgnore},
		{Text: "▶️", CallbackData: monthPrefix + first.AddDate(0, 1, 0).Format(MonthLayout)},
	}

	weekdays := make([]models.InlineKeyboardButton, 0, 7)
	for _, wd := range ruWeekdayHeader {
		weekdays = append(weekdays, models.InlineKeyboardButton{Text: wd, CallbackData: TokenIgnore})
	}

	rows := [][]models.InlineKeyboardButton{header, weekdays}

	// Сдвиг первого дня: неделя начинается с понедельника
	offset := (int(first.Weekday()) + 6) % 7
	week := make([]models.InlineKeyboardButton, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, models.InlineKeyboardButton{Text: " ", CallbackData: TokenIgnore})
	}

	for day := 1; day <= daysInMonth; day++ {
		date := time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, first.Location()).Format(storagemodels.DateLayout)
		btn := models.InlineKeyboardButton{Text: fmt.Sprintf("%d", day), CallbackData: TokenIgnore}
		if enabled == nil || enabled[date] {
			text := fmt.Sprintf("· %d ·", day)
			if date == selected {
				text = fmt.Sprintf("✅ %d", day)
			}
			btn = models.InlineKeyboardButton{
				Text:         text,
				CallbackData: datePrefix + date,
			}
		}
		week = append(week, btn)

		if len(week) == 7 {
			rows = append(rows, week)
			week = make([]models.InlineKeyboardButton, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, models.InlineKeyboardButton{Text: " ", CallbackData: TokenIgnore})
		}
		rows = append(rows, week)
	}

	return rows
}

// CreateTimeKeyboard создает меню выбора времени, по две кнопки в ряд.
// Выбранное время отмечается; кнопка перехода к подтверждению
// появляется только когда время выбрано.
func CreateTimeKeyboard(slots []*storagemodels.Slot, selected string) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton

	for _, slot := range slots {
		text := slot.StartTime
		if slot.StartTime == selected {
			text = "✅ " + text
		}
		row = append(row, models.InlineKeyboardButton{
			Text:         text,
			CallbackData: TimeToken(PrefixTime, slot.Date, slot.StartTime),
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if selected != "" {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         "К подтверждению ➡️",
			CallbackData: TokenTimeDone,
		}})
	}
	rows = append(rows, backRow())
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateConfirmationKeyboard создает подтверждение записи
func CreateConfirmationKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "✅ Подтвердить запись", CallbackData: TokenConfirm}},
			backRow(),
		},
	}
}

// CreateMyBookingsKeyboard создает список записей пользователя
func CreateMyBookingsKeyboard(bookings []*storagemodels.Booking, loc *time.Location) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, b := range bookings {
		text := fmt.Sprintf("%s в %s", formatShortDate(b.Date, loc), b.StartTime)
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         text,
			CallbackData: fmt.Sprintf("%s%d", PrefixMyBooking, b.ID),
		}})
	}
	rows = append(rows, mainRow())

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateBookingDetailKeyboard создает карточку записи пользователя
func CreateBookingDetailKeyboard(bookingID int) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "❌ Отменить запись", CallbackData: fmt.Sprintf("%s%d", PrefixMyCancel, bookingID)}},
			backRow(),
		},
	}
}

// CreateReminderKeyboard создает кнопки подтверждения визита
func CreateReminderKeyboard(bookingID int) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "✅ Приду", CallbackData: fmt.Sprintf("%s%d", PrefixRemindOK, bookingID)}},
			{{Text: "❌ Отменить запись", CallbackData: fmt.Sprintf("%s%d", PrefixRemindCancel, bookingID)}},
		},
	}
}

// CreateContactKeyboard создает клавиатуру для запроса контакта.
// Вторая кнопка позволяет продолжить запись без номера.
func CreateContactKeyboard() *models.ReplyKeyboardMarkup {
	return &models.ReplyKeyboardMarkup{
		Keyboard: [][]models.KeyboardButton{
			{
				{
					Text:           "Поделиться телефоном",
					RequestContact: true,
				},
			},
			{
				{Text: ButtonSkipContact},
			},
		},
		OneTimeKeyboard: true,
		ResizeKeyboard:  true,
	}
}

// CreateRemoveKeyboard создает объект для удаления клавиатуры
func CreateRemoveKeyboard() *models.ReplyKeyboardRemove {
	return &models.ReplyKeyboardRemove{
		RemoveKeyboard: true,
	}
}

func backRow() []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{{Text: "⬅️ Назад", CallbackData: TokenBack}}
}

func mainRow() []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{{Text: "🏠 В главное меню", CallbackData: TokenMain}}
}

func formatShortDate(date string, loc *time.Location) string {
	t, err := time.ParseInLocation(storagemodels.DateLayout, date, loc)
	if err != nil {
		return date
	}
	return t.Format("02.01")
}
