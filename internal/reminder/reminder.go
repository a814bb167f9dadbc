package reminder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"telegram_appointment_bot/internal/booking"
	"telegram_appointment_bot/internal/bot/keyboard"
	"telegram_appointment_bot/internal/clock"
	"telegram_appointment_bot/internal/config"
	"telegram_appointment_bot/internal/notify"
	"telegram_appointment_bot/internal/storage"
	"telegram_appointment_bot/internal/storage/models"
	"telegram_appointment_bot/pkg/logger"
	"telegram_appointment_bot/pkg/metrics"
)

// Scheduler периодически рассылает напоминания о визитах
// и автоматически отменяет неподтверждённые записи.
type Scheduler struct {
	store    storage.Storage
	ledger   *booking.Ledger
	sender   notify.Sender
	notifier *notify.Notifier
	clk      clock.Clock
	cfg      config.ReminderConfig
	log      *logger.Logger
}

// New создает планировщик напоминаний
func New(
	store storage.Storage,
	ledger *booking.Ledger,
	sender notify.Sender,
	notifier *notify.Notifier,
	clk clock.Clock,
	cfg config.ReminderConfig,
	log *logger.Logger,
) *Scheduler {
	return &Scheduler{
		store:    store,
		ledger:   ledger,
		sender:   sender,
		notifier: notifier,
		clk:      clk,
		cfg:      cfg,
		log:      log.WithFields(logger.String("component", "reminder")),
	}
}

// Run запускает цикл планировщика до отмены контекста
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("планировщик напоминаний запущен",
		logger.Duration("interval", s.cfg.Interval))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("планировщик напоминаний остановлен")
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle выполняет один проход: напоминания, затем автоотмена.
// Ошибка по одной записи не прерывает проход.
func (s *Scheduler) RunCycle(ctx context.Context) {
	s.remindPass(ctx)
	s.autoCancelPass(ctx)
}

// remindPass отправляет напоминания о записях, до начала которых
// осталось около суток. Запись помечается только после успешной
// отправки: при сбое следующий проход повторит попытку.
func (s *Scheduler) remindPass(ctx context.Context) {
	bookings, err := s.store.BookingsWithoutReminder(ctx)
	if err != nil {
		s.log.Error("не удалось загрузить записи для напоминаний", logger.Error(err))
		return
	}

	now := s.clk.Now()
	for _, b := range bookings {
		startAt, err := b.StartAt(s.clk.Location())
		if err != nil {
			s.log.Error("не удалось разобрать время записи",
				logger.Int("booking_id", b.ID), logger.Error(err))
			continue
		}

		until := startAt.Sub(now)
		if until < s.cfg.Horizon-s.cfg.HalfWidth || until > s.cfg.Horizon+s.cfg.HalfWidth {
			continue
		}

		if err := s.sendReminder(ctx, b); err != nil {
			metrics.RecordReminder("error")
			s.log.Error("не удалось отправить напоминание",
				logger.Int("booking_id", b.ID), logger.Error(err))
			continue
		}

		if err := s.store.MarkReminderSent(ctx, b.ID, now); err != nil {
			s.log.Error("не удалось отметить напоминание",
				logger.Int("booking_id", b.ID), logger.Error(err))
			continue
		}

		metrics.RecordReminder("ok")
		s.log.Info("отправлено напоминание",
			logger.Int("booking_id", b.ID), logger.Int64("user_id", b.UserID))
	}
}

func (s *Scheduler) sendReminder(ctx context.Context, b *models.Booking) error {
	text := fmt.Sprintf("Напоминаем: завтра, %s в %s, у вас запись.\nУслуги: %s\n\nПодтвердите, пожалуйста, визит:",
		notify.FormatDate(b.Date, s.clk.Location()), b.StartTime,
		strings.Join(b.ServiceNames(), ", "))

	_, err := s.sender.SendToUser(ctx, b.UserID, text, keyboard.CreateReminderKeyboard(b.ID))
	return err
}

// autoCancelPass отменяет записи, по которым напоминание
// осталось без ответа дольше грейс-периода
func (s *Scheduler) autoCancelPass(ctx context.Context) {
	cutoff := s.clk.Now().Add(-s.cfg.GracePeriod)

	candidates, err := s.store.BookingsForAutoCancel(ctx, cutoff)
	if err != nil {
		s.log.Error("не удалось загрузить кандидатов на автоотмену", logger.Error(err))
		return
	}

	for _, b := range candidates {
		cancelled, err := s.ledger.CancelBooking(ctx, b.ID, booking.CancelReasonAuto)
		if err != nil {
			s.log.Error("не удалось автоотменить запись",
				logger.Int("booking_id", b.ID), logger.Error(err))
			continue
		}

		metrics.AutoCancellations.Inc()
		s.log.Info("запись автоотменена",
			logger.Int("booking_id", b.ID), logger.Int64("user_id", b.UserID))

		if err := s.notifier.NotifyUserCancelled(ctx, cancelled, booking.CancelReasonAuto); err != nil {
			s.log.Error("не удалось уведомить клиента об автоотмене",
				logger.Int("booking_id", b.ID), logger.Error(err))
		}
		if user, uerr := s.store.GetUser(ctx, cancelled.UserID); uerr == nil {
			s.notifier.BookingCancelled(ctx, cancelled, user, booking.CancelReasonAuto)
		}
	}
}
