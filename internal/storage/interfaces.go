package storage

import (
	"context"
	"time"

	"telegram_appointment_bot/internal/storage/models"
)

// UserRepository определяет интерфейс для работы с пользователями
type UserRepository interface {
	SaveUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, chatID int64) (*models.User, error)
	UpdateUserPhone(ctx context.Context, chatID int64, phone string) error
}

// ServiceRepository определяет интерфейс для работы с каталогом услуг
type ServiceRepository interface {
	CreateService(ctx context.Context, service *models.Service) error
	ActiveServices(ctx context.Context) ([]*models.Service, error)
	GetService(ctx context.Context, id int) (*models.Service, error)
	UpdateServicePrice(ctx context.Context, id, price int) error
	UpdateServiceDuration(ctx context.Context, id, durationMinutes int) error
	DeleteService(ctx context.Context, id int) error
}

// SlotRepository определяет интерфейс аллокатора временных окон.
// ReserveSlot и ReleaseSlot являются единственными операциями, меняющими
// флаг занятости.
type SlotRepository interface {
	CreateSlot(ctx context.Context, slot *models.Slot) error
	GetSlot(ctx context.Context, id int) (*models.Slot, error)
	DeleteSlot(ctx context.Context, id int) error

	// SetSlotActive включает или выключает окно без его удаления.
	// Неактивное окно не показывается и не резервируется.
	SetSlotActive(ctx context.Context, id int, active bool) error

	// ReserveSlot атомарно занимает свободное активное окно.
	// Возвращает ErrSlotTaken, если окно уже занято,
	// и ErrSlotNotFound, если окна нет или оно неактивно.
	ReserveSlot(ctx context.Context, date, startTime string) error

	// ReleaseSlot освобождает окно; операция идемпотентна: освобождение
	// свободного или несуществующего окна не является ошибкой.
	ReleaseSlot(ctx context.Context, date, startTime string) error

	// FreeSlots возвращает свободные активные окна диапазона дат,
	// упорядоченные по дате и времени. Для сегодняшней даты
	// прошедшие времена исключаются по now.
	FreeSlots(ctx context.Context, fromDate, toDate string, now time.Time) ([]*models.Slot, error)

	// SlotsForDate возвращает все активные окна даты (включая занятые)
	SlotsForDate(ctx context.Context, date string) ([]*models.Slot, error)

	// BookingCountForSlot возвращает число записей, привязанных к окну
	BookingCountForSlot(ctx context.Context, date, startTime string) (int, error)
}

// BookingRepository определяет интерфейс реестра записей
type BookingRepository interface {
	// CreateBooking в одной транзакции занимает слот и создаёт запись
	// со снимками услуг. Конфликт за слот возвращается как ErrSlotTaken
	// без частичных изменений. Момент создания передаёт вызывающий.
	CreateBooking(ctx context.Context, userID int64, date, startTime string, services []*models.Service, createdAt time.Time) (*models.Booking, error)

	// DeleteBooking в одной транзакции удаляет запись со связями
	// и освобождает её слот. Возвращает ErrBookingNotFound,
	// если записи уже нет.
	DeleteBooking(ctx context.Context, id int) (*models.Booking, error)

	GetBooking(ctx context.Context, id int) (*models.Booking, error)
	UserBookings(ctx context.Context, userID int64) ([]*models.Booking, error)
	AllBookings(ctx context.Context) ([]*models.Booking, error)

	MarkReminderSent(ctx context.Context, id int, sentAt time.Time) error
	ConfirmReminder(ctx context.Context, id int) error
	BookingsWithoutReminder(ctx context.Context) ([]*models.Booking, error)
	BookingsForAutoCancel(ctx context.Context, cutoff time.Time) ([]*models.Booking, error)
}

// StudioRepository определяет интерфейс настроек студии
type StudioRepository interface {
	GetStudio(ctx context.Context) (*models.Studio, error)
	UpdateStudio(ctx context.Context, studio *models.Studio) error
}

// ChannelRepository хранит id последнего сообщения канала на админа
type ChannelRepository interface {
	LastChannelMessageID(ctx context.Context, adminID int64) (int, error)
	SetLastChannelMessageID(ctx context.Context, adminID int64, messageID int) error
}

// Storage объединяет все репозитории в единый интерфейс
type Storage interface {
	UserRepository
	ServiceRepository
	SlotRepository
	BookingRepository
	StudioRepository
	ChannelRepository
	Close() error
	Ping(ctx context.Context) error
}
