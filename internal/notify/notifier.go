package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/clock"
	"telegram_appointment_bot/internal/storage"
	"telegram_appointment_bot/internal/storage/models"
	"telegram_appointment_bot/pkg/logger"
	"telegram_appointment_bot/pkg/metrics"
)

// Sender абстрагирует отправку сообщений через Telegram.
// В тестах подменяется фейком.
type Sender interface {
	SendToUser(ctx context.Context, chatID int64, text string, markup tgmodels.ReplyMarkup) (int, error)
	SendToAdmins(ctx context.Context, text string)
	SendToChannel(ctx context.Context, text string) (int, error)
	EditChannelMessage(ctx context.Context, messageID int, text string) error
}

// TelegramSender отправляет сообщения через ботов Telegram
type TelegramSender struct {
	userBot   *bot.Bot
	adminBot  *bot.Bot
	adminIDs  []int64
	channelID string
	log       *logger.Logger
}

// NewTelegramSender создает отправителя поверх двух ботов
func NewTelegramSender(userBot, adminBot *bot.Bot, adminIDs []int64, channelID string, log *logger.Logger) *TelegramSender {
	return &TelegramSender{
		userBot:   userBot,
		adminBot:  adminBot,
		adminIDs:  adminIDs,
		channelID: channelID,
		log:       log.WithFields(logger.String("component", "sender")),
	}
}

// SendToUser отправляет сообщение пользователю через пользовательского бота
func (s *TelegramSender) SendToUser(ctx context.Context, chatID int64, text string, markup tgmodels.ReplyMarkup) (int, error) {
	msg, err := s.userBot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:      chatID,
		Text:        text,
		ReplyMarkup: markup,
	})
	if err != nil {
		metrics.RecordNotification("user", "error")
		return 0, fmt.Errorf("failed to send message to user %d: %w", chatID, err)
	}
	metrics.RecordNotification("user", "ok")
	return msg.ID, nil
}

// SendToAdmins отправляет сообщение всем администраторам.
// Ошибка по одному админу не мешает остальным.
func (s *TelegramSender) SendToAdmins(ctx context.Context, text string) {
	for _, adminID := range s.adminIDs {
		_, err := s.adminBot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID: adminID,
			Text:   text,
		})
		if err != nil {
			metrics.RecordNotification("admin", "error")
			s.log.Error("не удалось уведомить администратора",
				logger.Int64("admin_id", adminID), logger.Error(err))
			continue
		}
		metrics.RecordNotification("admin", "ok")
	}
}

// SendToChannel публикует сообщение в канал и возвращает его id
func (s *TelegramSender) SendToChannel(ctx context.Context, text string) (int, error) {
	msg, err := s.adminBot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: s.channelID,
		Text:   text,
	})
	if err != nil {
		metrics.RecordNotification("channel", "error")
		return 0, fmt.Errorf("failed to send to channel: %w", err)
	}
	metrics.RecordNotification("channel", "ok")
	return msg.ID, nil
}

// EditChannelMessage редактирует ранее опубликованное сообщение канала
func (s *TelegramSender) EditChannelMessage(ctx context.Context, messageID int, text string) error {
	_, err := s.adminBot.EditMessageText(ctx, &bot.EditMessageTextParams{
		ChatID:    s.channelID,
		MessageID: messageID,
		Text:      text,
	})
	if err != nil {
		return fmt.Errorf("failed to edit channel message %d: %w", messageID, err)
	}
	return nil
}

// Ключ канального поста в channel_posts для автоматической публикации
const channelPostKey int64 = 0

// Notifier строит и рассылает уведомления о событиях записи
type Notifier struct {
	sender  Sender
	store   storage.Storage
	clk     clock.Clock
	horizon time.Duration
	log     *logger.Logger
}

// NewNotifier создает рассыльщика уведомлений.
// horizon задаёт глубину дайджеста свободных окон для канала.
func NewNotifier(sender Sender, store storage.Storage, clk clock.Clock, horizon time.Duration, log *logger.Logger) *Notifier {
	return &Notifier{
		sender:  sender,
		store:   store,
		clk:     clk,
		horizon: horizon,
		log:     log.WithFields(logger.String("component", "notifier")),
	}
}

// BookingCreated уведомляет администраторов о новой записи
func (n *Notifier) BookingCreated(ctx context.Context, booking *models.Booking, user *models.User) {
	var sb strings.Builder
	sb.WriteString("🆕 Новая запись\n\n")
	fmt.Fprintf(&sb, "Клиент: %s\n", user.DisplayName())
	if user.Phone != "" {
		fmt.Fprintf(&sb, "Телефон: %s\n", user.Phone)
	}
	fmt.Fprintf(&sb, "Дата: %s в %s\n", FormatDate(booking.Date, n.clk.Location()), booking.StartTime)
	fmt.Fprintf(&sb, "Услуги: %s\n", strings.Join(booking.ServiceNames(), ", "))
	fmt.Fprintf(&sb, "Длительность: %d мин\n", int(booking.TotalDuration().Minutes()))
	fmt.Fprintf(&sb, "Стоимость: %d ₽", booking.TotalPrice())

	n.sender.SendToAdmins(ctx, sb.String())
}

// BookingCancelled уведомляет администраторов об отмене записи
func (n *Notifier) BookingCancelled(ctx context.Context, booking *models.Booking, user *models.User, reason string) {
	label := "клиентом"
	switch reason {
	case "admin":
		label = "администратором"
	case "auto":
		label = "автоматически (визит не подтверждён)"
	}

	text := fmt.Sprintf("❌ Запись отменена %s\n\nКлиент: %s\nДата: %s в %s\nУслуги: %s",
		label, user.DisplayName(),
		FormatDate(booking.Date, n.clk.Location()), booking.StartTime,
		strings.Join(booking.ServiceNames(), ", "))

	n.sender.SendToAdmins(ctx, text)
}

// NotifyUserCancelled сообщает пользователю об отмене его записи
func (n *Notifier) NotifyUserCancelled(ctx context.Context, booking *models.Booking, reason string) error {
	var text string
	if reason == "auto" {
		text = fmt.Sprintf("Ваша запись на %s в %s отменена: визит не был подтверждён. Вы можете записаться заново.",
			FormatDate(booking.Date, n.clk.Location()), booking.StartTime)
	} else {
		text = fmt.Sprintf("Ваша запись на %s в %s отменена администратором. Приносим извинения за неудобства.",
			FormatDate(booking.Date, n.clk.Location()), booking.StartTime)
	}

	_, err := n.sender.SendToUser(ctx, booking.UserID, text, nil)
	return err
}

// PublishFreeSlots публикует дайджест свободных окон в канал.
// Существующий пост редактируется, а не дублируется.
func (n *Notifier) PublishFreeSlots(ctx context.Context) error {
	now := n.clk.Now()
	from := now.Format(models.DateLayout)
	to := now.Add(n.horizon).Format(models.DateLayout)

	slots, err := n.store.FreeSlots(ctx, from, to, now)
	if err != nil {
		return fmt.Errorf("failed to load free slots: %w", err)
	}

	text := n.buildDigest(slots)

	messageID, err := n.store.LastChannelMessageID(ctx, channelPostKey)
	if err != nil {
		return err
	}

	if messageID != 0 {
		if err := n.sender.EditChannelMessage(ctx, messageID, text); err == nil {
			return nil
		}
		// Пост могли удалить из канала руками; публикуем заново
		n.log.Warn("не удалось отредактировать пост канала, публикуем новый",
			logger.Int("message_id", messageID))
	}

	newID, err := n.sender.SendToChannel(ctx, text)
	if err != nil {
		return err
	}
	return n.store.SetLastChannelMessageID(ctx, channelPostKey, newID)
}

// buildDigest группирует свободные окна по датам
func (n *Notifier) buildDigest(slots []*models.Slot) string {
	if len(slots) == 0 {
		return "🗓 Свободных окошек пока нет. Следите за обновлениями!"
	}

	var sb strings.Builder
	sb.WriteString("🗓 Свободные окошки:\n")

	var currentDate string
	var times []string
	flush := func() {
		if currentDate == "" {
			return
		}
		fmt.Fprintf(&sb, "\n%s: %s", FormatDate(currentDate, n.clk.Location()), strings.Join(times, ", "))
	}

	for _, slot := range slots {
		if slot.Date != currentDate {
			flush()
			currentDate = slot.Date
			times = times[:0]
		}
		times = append(times, slot.StartTime)
	}
	flush()

	sb.WriteString("\n\nЗаписывайтесь через бота 💅")
	return sb.String()
}

var ruWeekdays = map[time.Weekday]string{
	time.Monday:    "пн",
	time.Tuesday:   "вт",
	time.Wednesday: "ср",
	time.Thursday:  "чт",
	time.Friday:    "пт",
	time.Saturday:  "сб",
	time.Sunday:    "вс",
}

// FormatDate возвращает дату в виде "02.01 (пн)".
// Нераспознанная дата возвращается как есть.
func FormatDate(date string, loc *time.Location) string {
	t, err := time.ParseInLocation(models.DateLayout, date, loc)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%s (%s)", t.Format("02.01"), ruWeekdays[t.Weekday()])
}
