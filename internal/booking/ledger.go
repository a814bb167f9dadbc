package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"telegram_appointment_bot/internal/clock"
	"telegram_appointment_bot/internal/storage"
	"telegram_appointment_bot/internal/storage/models"
	apperrors "telegram_appointment_bot/pkg/errors"
	"telegram_appointment_bot/pkg/logger"
	"telegram_appointment_bot/pkg/metrics"
)

// Причины отмены записи
const (
	CancelReasonUser  = "user"
	CancelReasonAdmin = "admin"
	CancelReasonAuto  = "auto"
)

// Ledger ведёт реестр записей поверх хранилища.
// Все изменения расписания проходят через него, чтобы подписчики
// (публикация свободных окон в канал) узнавали о каждом изменении.
type Ledger struct {
	store storage.Storage
	clk   clock.Clock
	log   *logger.Logger

	mu          sync.Mutex
	subscribers []func()
}

// NewLedger создает реестр записей
func NewLedger(store storage.Storage, clk clock.Clock, log *logger.Logger) *Ledger {
	return &Ledger{
		store: store,
		clk:   clk,
		log:   log.WithFields(logger.String("component", "ledger")),
	}
}

// OnSlotsChanged регистрирует подписчика на изменения расписания.
// Подписчики вызываются асинхронно после каждого изменения.
func (l *Ledger) OnSlotsChanged(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, fn)
}

func (l *Ledger) notifySlotsChanged() {
	l.mu.Lock()
	subs := make([]func(), len(l.subscribers))
	copy(subs, l.subscribers)
	l.mu.Unlock()

	for _, fn := range subs {
		go fn()
	}
}

// CreateBooking создает запись на окно с выбранными услугами.
// Цены и продолжительности фиксируются на момент создания.
// Конфликт за окно возвращается как ErrSlotTaken без частичных изменений.
func (l *Ledger) CreateBooking(ctx context.Context, userID int64, date, startTime string, serviceIDs []int) (*models.Booking, error) {
	if len(serviceIDs) == 0 {
		return nil, apperrors.ErrNoServicesSelected
	}

	services := make([]*models.Service, 0, len(serviceIDs))
	for _, id := range serviceIDs {
		svc, err := l.store.GetService(ctx, id)
		if err != nil {
			return nil, err
		}
		if !svc.Active {
			return nil, apperrors.ErrServiceNotFound
		}
		services = append(services, svc)
	}

	booking, err := l.store.CreateBooking(ctx, userID, date, startTime, services, l.clk.Now())
	if err != nil {
		if errors.Is(err, apperrors.ErrSlotTaken) {
			metrics.RecordReserveConflict()
			l.log.Warn("конфликт за окно",
				logger.Int64("user_id", userID),
				logger.String("slot", models.FormatSlotKey(date, startTime)))
		}
		return nil, err
	}

	metrics.RecordBookingCreated()
	l.log.Info("создана запись",
		logger.Int("booking_id", booking.ID),
		logger.Int64("user_id", userID),
		logger.String("slot", models.FormatSlotKey(date, startTime)),
		logger.Int("services", len(services)))

	l.notifySlotsChanged()
	return booking, nil
}

// CancelBooking отменяет запись и освобождает её окно.
// Возвращает удалённую запись для уведомлений.
// Повторная отмена возвращает ErrBookingNotFound.
func (l *Ledger) CancelBooking(ctx context.Context, id int, reason string) (*models.Booking, error) {
	booking, err := l.store.DeleteBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.RecordBookingCancelled(reason)
	l.log.Info("отменена запись",
		logger.Int("booking_id", id),
		logger.Int64("user_id", booking.UserID),
		logger.String("reason", reason),
		logger.String("slot", models.FormatSlotKey(booking.Date, booking.StartTime)))

	l.notifySlotsChanged()
	return booking, nil
}

// ConfirmReminder отмечает, что пользователь подтвердил визит
func (l *Ledger) ConfirmReminder(ctx context.Context, bookingID int) error {
	if err := l.store.ConfirmReminder(ctx, bookingID); err != nil {
		return err
	}
	l.log.Info("подтверждено напоминание", logger.Int("booking_id", bookingID))
	return nil
}

// GetBooking возвращает запись по id
func (l *Ledger) GetBooking(ctx context.Context, id int) (*models.Booking, error) {
	return l.store.GetBooking(ctx, id)
}

// UserBookings возвращает записи пользователя
func (l *Ledger) UserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	return l.store.UserBookings(ctx, userID)
}

// AllBookings возвращает все записи
func (l *Ledger) AllBookings(ctx context.Context) ([]*models.Booking, error) {
	return l.store.AllBookings(ctx)
}

// FreeSlots возвращает свободные окна от текущего момента до горизонта
func (l *Ledger) FreeSlots(ctx context.Context, horizon time.Duration) ([]*models.Slot, error) {
	now := l.clk.Now()
	from := now.Format(models.DateLayout)
	to := now.Add(horizon).Format(models.DateLayout)
	return l.store.FreeSlots(ctx, from, to, now)
}

// FreeSlotsForDate возвращает свободные окна конкретной даты
func (l *Ledger) FreeSlotsForDate(ctx context.Context, date string) ([]*models.Slot, error) {
	now := l.clk.Now()
	return l.store.FreeSlots(ctx, date, date, now)
}

// FreeDates возвращает даты месяца, на которые есть свободные окна.
// Используется для подсветки дней в календаре.
func (l *Ledger) FreeDates(ctx context.Context, month time.Time) (map[string]bool, error) {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, l.clk.Location())
	last := first.AddDate(0, 1, -1)

	slots, err := l.store.FreeSlots(ctx,
		first.Format(models.DateLayout), last.Format(models.DateLayout), l.clk.Now())
	if err != nil {
		return nil, err
	}

	dates := make(map[string]bool, len(slots))
	for _, slot := range slots {
		dates[slot.Date] = true
	}
	return dates, nil
}

// AddSlots создает окна даты, пропуская уже существующие.
// Возвращает число созданных окон.
func (l *Ledger) AddSlots(ctx context.Context, date string, times []string) (int, error) {
	existing, err := l.store.SlotsForDate(ctx, date)
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(existing))
	for _, slot := range existing {
		seen[slot.StartTime] = true
	}

	created := 0
	for _, startTime := range times {
		if seen[startTime] {
			continue
		}
		slot := &models.Slot{Date: date, StartTime: startTime, Active: true}
		if err := l.store.CreateSlot(ctx, slot); err != nil {
			return created, fmt.Errorf("failed to add slot %s: %w", models.FormatSlotKey(date, startTime), err)
		}
		seen[startTime] = true
		created++
	}

	if created > 0 {
		metrics.SlotsCreated.Add(float64(created))
		l.log.Info("добавлены окна", logger.String("date", date), logger.Int("created", created))
		l.notifySlotsChanged()
	}
	return created, nil
}

// RemoveSlot удаляет свободное окно.
// Окно с активной записью удалить нельзя: сначала отмена записи.
func (l *Ledger) RemoveSlot(ctx context.Context, id int) error {
	slot, err := l.store.GetSlot(ctx, id)
	if err != nil {
		return err
	}
	if slot.Occupied {
		return apperrors.ErrSlotTaken
	}

	if err := l.store.DeleteSlot(ctx, id); err != nil {
		return err
	}

	l.log.Info("удалено окно", logger.String("slot", models.FormatSlotKey(slot.Date, slot.StartTime)))
	l.notifySlotsChanged()
	return nil
}

// SetSlotActive скрывает окно из расписания или возвращает его обратно.
// В отличие от RemoveSlot окно сохраняется вместе с историей.
func (l *Ledger) SetSlotActive(ctx context.Context, id int, active bool) error {
	if err := l.store.SetSlotActive(ctx, id, active); err != nil {
		return err
	}

	l.log.Info("изменена активность окна", logger.Int("slot_id", id), logger.Any("active", active))
	l.notifySlotsChanged()
	return nil
}
