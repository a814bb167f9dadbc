package admin

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/booking"
	"telegram_appointment_bot/internal/bot/keyboard"
	"telegram_appointment_bot/internal/bot/service"
	"telegram_appointment_bot/internal/clock"
	"telegram_appointment_bot/internal/config"
	"telegram_appointment_bot/internal/notify"
	"telegram_appointment_bot/internal/session"
	"telegram_appointment_bot/internal/storage"
	"telegram_appointment_bot/internal/validation"
	apperrors "telegram_appointment_bot/pkg/errors"
	"telegram_appointment_bot/pkg/logger"
)

// Handler обрабатывает обновления админского бота
type Handler struct {
	api      service.TelegramAPI
	store    storage.Storage
	ledger   *booking.Ledger
	notifier *notify.Notifier
	sessions *session.AdminStore
	clk      clock.Clock
	cfg      *config.Config
	log      *logger.Logger
}

// NewHandler создает обработчик админского бота
func NewHandler(
	api service.TelegramAPI,
	store storage.Storage,
	ledger *booking.Ledger,
	notifier *notify.Notifier,
	sessions *session.AdminStore,
	clk clock.Clock,
	cfg *config.Config,
	log *logger.Logger,
) *Handler {
	return &Handler{
		api:      api,
		store:    store,
		ledger:   ledger,
		notifier: notifier,
		sessions: sessions,
		clk:      clk,
		cfg:      cfg,
		log:      log.WithFields(logger.String("component", "admin_bot")),
	}
}

// HandleUpdate обрабатывает входящее обновление админского бота.
// Чаты не из списка администраторов получают отказ.
func (h *Handler) HandleUpdate(ctx context.Context, _ *tgbot.Bot, update *tgmodels.Update) {
	if update.CallbackQuery != nil {
		cb := update.CallbackQuery
		chatID := cb.From.ID
		if cb.Message.Message != nil {
			chatID = cb.Message.Message.Chat.ID
		}

		if !h.cfg.IsAdmin(chatID) {
			h.answer(ctx, cb.ID, "Доступ запрещён")
			return
		}

		unlock := h.sessions.Lock(chatID)
		defer unlock()
		h.handleCallback(ctx, chatID, cb.ID, cb.Data)
		return
	}

	if update.Message != nil {
		msg := update.Message
		chatID := msg.Chat.ID

		if !h.cfg.IsAdmin(chatID) {
			h.send(ctx, chatID, "Этот бот доступен только администраторам студии.", nil)
			return
		}

		unlock := h.sessions.Lock(chatID)
		defer unlock()

		if strings.HasPrefix(msg.Text, "/start") {
			sess := h.sessions.Get(chatID)
			sess.Reset()
			sess.LastMessageID = 0
			h.showMain(ctx, chatID, sess)
			return
		}

		h.handleText(ctx, chatID, msg.Text)
	}
}

func (h *Handler) handleCallback(ctx context.Context, chatID int64, callbackID, data string) {
	sess := h.sessions.Get(chatID)

	switch {
	case data == keyboard.TokenIgnore:
		h.answer(ctx, callbackID, "")

	case data == keyboard.TokenAdmBack:
		sess.Action = session.Action{}
		sess.Back()
		h.renderState(ctx, chatID, sess)
		h.answer(ctx, callbackID, "")

	case data == keyboard.TokenAdmServices:
		sess.Push(session.AdminStateServiceList)
		h.showServiceList(ctx, chatID, sess)
		h.answer(ctx, callbackID, "")

	case data == keyboard.TokenAdmServiceAdd:
		sess.Action = session.Action{Kind: session.ActionServiceName}
		h.send(ctx, chatID, "Введите название новой услуги:", nil)
		h.answer(ctx, callbackID, "")

	case strings.HasPrefix(data, keyboard.PrefixAdmServicePrice):
		h.startFieldEdit(ctx, chatID, callbackID, sess, data, keyboard.PrefixAdmServicePrice,
			session.ActionServicePrice, "Введите новую цену в рублях:")

	case strings.HasPrefix(data, keyboard.PrefixAdmServiceDur):
		h.startFieldEdit(ctx, chatID, callbackID, sess, data, keyboard.PrefixAdmServiceDur,
			session.ActionServiceDuration, "Введите новую длительность в минутах:")

	case strings.HasPrefix(data, keyboard.PrefixAdmServiceDel):
		h.handleServiceDelete(ctx, chatID, callbackID, sess, data)

	case strings.HasPrefix(data, keyboard.PrefixAdmService):
		if id, err := strconv.Atoi(strings.TrimPrefix(data, keyboard.PrefixAdmService)); err == nil {
			sess.EditServiceID = id
			sess.Push(session.AdminStateServiceEdit)
			h.showServiceEdit(ctx, chatID, sess)
		}
		h.answer(ctx, callbackID, "")

	case data == keyboard.TokenAdmSlots:
		sess.Push(session.AdminStateTimeslotCalendar)
		h.showSlotCalendar(ctx, chatID, sess)
		h.answer(ctx, callbackID, "")

	case strings.HasPrefix(data, keyboard.PrefixAdmMonth):
		h.handleMonthNav(ctx, chatID, callbackID, sess, data)

	case strings.HasPrefix(data, keyboard.PrefixAdmDate):
		date := strings.TrimPrefix(data, keyboard.PrefixAdmDate)
		if err := validation.ValidateDate(date); err != nil {
			h.answer(ctx, callbackID, "Неверный выбор")
			return
		}
		sess.SelectedDate = date
		sess.SelectedTimes = make(map[string]bool)
		sess.Push(session.AdminStateTimeslotPicker)
		h.showSlotPicker(ctx, chatID, sess)
		h.answer(ctx, callbackID, "")

	case strings.HasPrefix(data, keyboard.PrefixAdmTime):
		h.handleTimeToggle(ctx, chatID, callbackID, sess, data)

	case data == keyboard.TokenAdmTimeSave:
		h.handleTimeSave(ctx, chatID, callbackID, sess)

	case strings.HasPrefix(data, keyboard.PrefixAdmSlotDel):
		h.handleSlotDelete(ctx, chatID, callbackID, sess, data)

	case data == keyboard.TokenAdmBookings:
		sess.Push(session.AdminStateBookingList)
		h.showBookingList(ctx, chatID, sess)
		h.answer(ctx, callbackID, "")

	case strings.HasPrefix(data, keyboard.PrefixAdmBookingCancel):
		h.handleBookingCancel(ctx, chatID, callbackID, sess, data)

	case strings.HasPrefix(data, keyboard.PrefixAdmBooking):
		if id, err := strconv.Atoi(strings.TrimPrefix(data, keyboard.PrefixAdmBooking)); err == nil {
			sess.ViewBookingID = id
			sess.Push(session.AdminStateBookingDetail)
			h.showBookingDetail(ctx, chatID, sess)
		}
		h.answer(ctx, callbackID, "")

	case data == keyboard.TokenAdmStudio:
		sess.Push(session.AdminStateStudioSettings)
		h.showStudioSettings(ctx, chatID, sess)
		h.answer(ctx, callbackID, "")

	case strings.HasPrefix(data, keyboard.PrefixAdmStudio):
		field := strings.TrimPrefix(data, keyboard.PrefixAdmStudio)
		sess.Action = session.Action{Kind: session.ActionStudioField, StudioField: field}
		h.send(ctx, chatID, "Введите новое значение:", nil)
		h.answer(ctx, callbackID, "")

	case data == keyboard.TokenAdmPublish:
		if err := h.notifier.PublishFreeSlots(ctx); err != nil {
			h.log.Error("не удалось обновить пост канала", logger.Error(err))
			h.answer(ctx, callbackID, "Не удалось обновить пост")
			return
		}
		h.answer(ctx, callbackID, "Пост в канале обновлён")

	default:
		h.answer(ctx, callbackID, "Неверный выбор")
	}
}

func (h *Handler) startFieldEdit(ctx context.Context, chatID int64, callbackID string, sess *session.AdminSession, data, prefix string, kind session.ActionKind, prompt string) {
	id, err := strconv.Atoi(strings.TrimPrefix(data, prefix))
	if err != nil {
		h.answer(ctx, callbackID, "Неверный выбор")
		return
	}

	sess.Action = session.Action{Kind: kind, ServiceID: id}
	h.send(ctx, chatID, prompt, nil)
	h.answer(ctx, callbackID, "")
}

func (h *Handler) handleServiceDelete(ctx context.Context, chatID int64, callbackID string, sess *session.AdminSession, data string) {
	id, err := strconv.Atoi(strings.TrimPrefix(data, keyboard.PrefixAdmServiceDel))
	if err != nil {
		h.answer(ctx, callbackID, "Неверный выбор")
		return
	}

	if err := h.store.DeleteService(ctx, id); err != nil {
		h.log.Error("не удалось удалить услугу", logger.Int("service_id", id), logger.Error(err))
		h.answer(ctx, callbackID, "Не удалось удалить услугу")
		return
	}

	h.answer(ctx, callbackID, "Услуга удалена")
	sess.State = session.AdminStateServiceList
	h.showServiceList(ctx, chatID, sess)
}

func (h *Handler) handleMonthNav(ctx context.Context, chatID int64, callbackID string, sess *session.AdminSession, data string) {
	month, err := time.ParseInLocation(keyboard.MonthLayout,
		strings.TrimPrefix(data, keyboard.PrefixAdmMonth), h.clk.Location())
	if err != nil {
		h.answer(ctx, callbackID, "Неверный выбор")
		return
	}

	sess.CurrentMonth = month
	h.showSlotCalendar(ctx, chatID, sess)
	h.answer(ctx, callbackID, "")
}

func (h *Handler) handleTimeToggle(ctx context.Context, chatID int64, callbackID string, sess *session.AdminSession, data string) {
	if sess.State != session.AdminStateTimeslotPicker {
		h.answer(ctx, callbackID, "")
		return
	}

	startTime := strings.TrimPrefix(data, keyboard.PrefixAdmTime)
	if err := validation.ValidateTime(startTime); err != nil {
		h.answer(ctx, callbackID, "Неверный выбор")
		return
	}
	sess.ToggleTime(startTime)
	h.showSlotPicker(ctx, chatID, sess)
	h.answer(ctx, callbackID, "")
}

func (h *Handler) handleTimeSave(ctx context.Context, chatID int64, callbackID string, sess *session.AdminSession) {
	if len(sess.SelectedTimes) == 0 {
		h.answer(ctx, callbackID, "Ничего не выбрано")
		return
	}

	times := make([]string, 0, len(sess.SelectedTimes))
	for startTime := range sess.SelectedTimes {
		times = append(times, startTime)
	}
	sort.Strings(times)

	created, err := h.ledger.AddSlots(ctx, sess.SelectedDate, times)
	if err != nil {
		h.log.Error("не удалось добавить окна",
			logger.String("date", sess.SelectedDate), logger.Error(err))
		h.answer(ctx, callbackID, "Не удалось добавить окна")
		return
	}

	sess.SelectedTimes = make(map[string]bool)
	h.showSlotPicker(ctx, chatID, sess)
	h.answer(ctx, callbackID, "Добавлено окон: "+strconv.Itoa(created))
}

func (h *Handler) handleSlotDelete(ctx context.Context, chatID int64, callbackID string, sess *session.AdminSession, data string) {
	id, err := strconv.Atoi(strings.TrimPrefix(data, keyboard.PrefixAdmSlotDel))
	if err != nil {
		h.answer(ctx, callbackID, "Неверный выбор")
		return
	}

	if err := h.ledger.RemoveSlot(ctx, id); err != nil {
		if errors.Is(err, apperrors.ErrSlotTaken) {
			h.answer(ctx, callbackID, "На это окно есть запись, сначала отмените её")
		} else {
			h.answer(ctx, callbackID, "Не удалось удалить окно")
		}
		return
	}

	h.showSlotPicker(ctx, chatID, sess)
	h.answer(ctx, callbackID, "Окно удалено")
}

func (h *Handler) handleBookingCancel(ctx context.Context, chatID int64, callbackID string, sess *session.AdminSession, data string) {
	id, err := strconv.Atoi(strings.TrimPrefix(data, keyboard.PrefixAdmBookingCancel))
	if err != nil {
		h.answer(ctx, callbackID, "Неверный выбор")
		return
	}

	cancelled, err := h.ledger.CancelBooking(ctx, id, booking.CancelReasonAdmin)
	if err != nil {
		h.answer(ctx, callbackID, "Запись не найдена")
		sess.State = session.AdminStateBookingList
		h.showBookingList(ctx, chatID, sess)
		return
	}

	if err := h.notifier.NotifyUserCancelled(ctx, cancelled, booking.CancelReasonAdmin); err != nil {
		h.log.Error("не удалось уведомить клиента об отмене",
			logger.Int("booking_id", id), logger.Error(err))
	}

	h.answer(ctx, callbackID, "Запись отменена")
	sess.State = session.AdminStateBookingList
	h.showBookingList(ctx, chatID, sess)
}
