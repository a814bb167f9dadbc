package keyboard

import (
	"fmt"
	"time"

	"github.com/go-telegram/bot/models"

	storagemodels "telegram_appointment_bot/internal/storage/models"
)

// Токены callback-данных админского бота
const (
	TokenAdmServices   = "ADM:services"
	TokenAdmSlots      = "ADM:slots"
	TokenAdmBookings   = "ADM:bookings"
	TokenAdmStudio     = "ADM:studio"
	TokenAdmPublish    = "ADM:publish"
	TokenAdmBack       = "ABACK"
	TokenAdmServiceAdd = "ASVC_ADD"
	TokenAdmTimeSave   = "ATIME_SAVE"

	PrefixAdmService       = "ASVC:"
	PrefixAdmServicePrice  = "ASVC_PRICE:"
	PrefixAdmServiceDur    = "ASVC_DUR:"
	PrefixAdmServiceDel    = "ASVC_DEL:"
	PrefixAdmDate          = "ADATE:"
	PrefixAdmMonth         = "AMONTH:"
	PrefixAdmTime          = "ATIME:"
	PrefixAdmSlotDel       = "ASLOT_DEL:"
	PrefixAdmBooking       = "ABOOK:"
	PrefixAdmBookingCancel = "ABOOK_CANCEL:"
	PrefixAdmStudio        = "ASTUDIO:"
)

// StudioFields перечисляет редактируемые поля настроек студии
var StudioFields = []struct {
	Key   string
	Label string
}{
	{"name", "Название"},
	{"address", "Адрес"},
	{"phone", "Телефон"},
	{"instagram", "Instagram"},
	{"telegram", "Telegram"},
	{"description", "Описание"},
}

// CreateAdminMainKeyboard создает главное меню администратора
func CreateAdminMainKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "💅 Услуги", CallbackData: TokenAdmServices}},
			{{Text: "🕐 Окна записи", CallbackData: TokenAdmSlots}},
			{{Text: "📋 Записи клиентов", CallbackData: TokenAdmBookings}},
			{{Text: "⚙️ Настройки студии", CallbackData: TokenAdmStudio}},
			{{Text: "📢 Обновить пост в канале", CallbackData: TokenAdmPublish}},
		},
	}
}

// CreateAdminServicesKeyboard создает список услуг для редактирования
func CreateAdminServicesKeyboard(services []*storagemodels.Service) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, svc := range services {
		text := fmt.Sprintf("%s — %d мин, %d ₽", svc.Name, svc.DurationMinutes, svc.Price)
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         text,
			CallbackData: fmt.Sprintf("%s%d", PrefixAdmService, svc.ID),
		}})
	}
	rows = append(rows,
		[]models.InlineKeyboardButton{{Text: "➕ Добавить услугу", CallbackData: TokenAdmServiceAdd}},
		adminBackRow(),
	)

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateAdminServiceEditKeyboard создает меню редактирования услуги
func CreateAdminServiceEditKeyboard(serviceID int) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "💰 Изменить цену", CallbackData: fmt.Sprintf("%s%d", PrefixAdmServicePrice, serviceID)}},
			{{Text: "⏱ Изменить длительность", CallbackData: fmt.Sprintf("%s%d", PrefixAdmServiceDur, serviceID)}},
			{{Text: "🗑 Удалить услугу", CallbackData: fmt.Sprintf("%s%d", PrefixAdmServiceDel, serviceID)}},
			adminBackRow(),
		},
	}
}

// CreateAdminTimePickerKeyboard создает мультивыбор времён для даты.
// Существующие свободные окна можно удалить, занятые показаны замком.
func CreateAdminTimePickerKeyboard(candidates []string, selected map[string]bool, existing []*storagemodels.Slot) *models.InlineKeyboardMarkup {
	existingByTime := make(map[string]*storagemodels.Slot, len(existing))
	for _, slot := range existing {
		existingByTime[slot.StartTime] = slot
	}

	var rows [][]models.InlineKeyboardButton
	var row []models.InlineKeyboardButton
	for _, startTime := range candidates {
		var btn models.InlineKeyboardButton
		switch {
		case existingByTime[startTime] != nil && existingByTime[startTime].Occupied:
			btn = models.InlineKeyboardButton{Text: "🔒 " + startTime, CallbackData: TokenIgnore}
		case existingByTime[startTime] != nil:
			btn = models.InlineKeyboardButton{
				Text:         "🗑 " + startTime,
				CallbackData: fmt.Sprintf("%s%d", PrefixAdmSlotDel, existingByTime[startTime].ID),
			}
		case selected[startTime]:
			btn = models.InlineKeyboardButton{Text: "✅ " + startTime, CallbackData: PrefixAdmTime + startTime}
		default:
			btn = models.InlineKeyboardButton{Text: startTime, CallbackData: PrefixAdmTime + startTime}
		}

		row = append(row, btn)
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	if len(selected) > 0 {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         fmt.Sprintf("💾 Сохранить (%d)", len(selected)),
			CallbackData: TokenAdmTimeSave,
		}})
	}
	rows = append(rows, adminBackRow())

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateAdminBookingsKeyboard создает список записей клиентов
func CreateAdminBookingsKeyboard(bookings []*storagemodels.Booking, loc *time.Location) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton

	for _, b := range bookings {
		text := fmt.Sprintf("%s в %s", formatShortDate(b.Date, loc), b.StartTime)
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         text,
			CallbackData: fmt.Sprintf("%s%d", PrefixAdmBooking, b.ID),
		}})
	}
	rows = append(rows, adminBackRow())

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// CreateAdminBookingDetailKeyboard создает карточку записи клиента
func CreateAdminBookingDetailKeyboard(bookingID int) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			{{Text: "❌ Отменить запись", CallbackData: fmt.Sprintf("%s%d", PrefixAdmBookingCancel, bookingID)}},
			adminBackRow(),
		},
	}
}

// CreateAdminStudioKeyboard создает меню настроек студии
func CreateAdminStudioKeyboard() *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	for _, field := range StudioFields {
		rows = append(rows, []models.InlineKeyboardButton{{
			Text:         field.Label,
			CallbackData: PrefixAdmStudio + field.Key,
		}})
	}
	rows = append(rows, adminBackRow())

	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func adminBackRow() []models.InlineKeyboardButton {
	return []models.InlineKeyboardButton{{Text: "⬅️ Назад", CallbackData: TokenAdmBack}}
}
