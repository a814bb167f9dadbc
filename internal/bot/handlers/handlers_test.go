package handlers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/booking"
	"telegram_appointment_bot/internal/bot/keyboard"
	"telegram_appointment_bot/internal/bot/service"
	"telegram_appointment_bot/internal/clock"
	"telegram_appointment_bot/internal/config"
	"telegram_appointment_bot/internal/notify"
	"telegram_appointment_bot/internal/session"
	"telegram_appointment_bot/internal/storage/models"
	"telegram_appointment_bot/internal/storage/sqlite"
	"telegram_appointment_bot/pkg/logger"
)

type fakeAPI struct {
	mu      sync.Mutex
	nextID  int
	sent    []string
	edited  []string
	answers []string
	alerts  []string
}

func (f *fakeAPI) SendMessage(_ context.Context, params *bot.SendMessageParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, params.Text)
	return &tgmodels.Message{ID: f.nextID}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, params *bot.EditMessageTextParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edited = append(f.edited, params.Text)
	return &tgmodels.Message{ID: params.MessageID}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, params *bot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if params.ShowAlert {
		f.alerts = append(f.alerts, params.Text)
	} else {
		f.answers = append(f.answers, params.Text)
	}
	return true, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, _ *bot.DeleteMessageParams) (bool, error) {
	return true, nil
}

type nullSender struct {
	mu            sync.Mutex
	adminMessages []string
}

func (s *nullSender) SendToUser(_ context.Context, _ int64, _ string, _ tgmodels.ReplyMarkup) (int, error) {
	return 1, nil
}

func (s *nullSender) SendToAdmins(_ context.Context, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adminMessages = append(s.adminMessages, text)
}

func (s *nullSender) SendToChannel(_ context.Context, _ string) (int, error) { return 1, nil }

func (s *nullSender) EditChannelMessage(_ context.Context, _ int, _ string) error { return nil }

type env struct {
	handler *CallbackHandler
	api     *fakeAPI
	sender  *nullSender
	store   *sqlite.SQLiteStorage
	svc     *service.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := logger.New(logger.LevelError)
	clk := &clock.Fixed{T: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)}
	ledger := booking.NewLedger(store, clk, log)
	api := &fakeAPI{}
	sender := &nullSender{}
	notifier := notify.NewNotifier(sender, store, clk, 14*24*time.Hour, log)
	svc := service.New(api, store, ledger, session.NewStore(), notifier, clk, &config.Config{}, log)

	return &env{
		handler: NewCallbackHandler(svc),
		api:     api,
		sender:  sender,
		store:   store,
		svc:     svc,
	}
}

func (e *env) seedUser(t *testing.T, chatID int64, phone string) {
	t.Helper()
	user := &models.User{ID: chatID, Username: "anna", FirstName: "Анна", Phone: phone}
	if err := e.store.SaveUser(context.Background(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
}

func (e *env) seedService(t *testing.T, name string, duration, price int) *models.Service {
	t.Helper()
	svc := &models.Service{Name: name, DurationMinutes: duration, Price: price, Active: true}
	if err := e.store.CreateService(context.Background(), svc); err != nil {
		t.Fatalf("failed to seed service: %v", err)
	}
	return svc
}

func (e *env) seedSlot(t *testing.T, date, startTime string) {
	t.Helper()
	slot := &models.Slot{Date: date, StartTime: startTime, Active: true}
	if err := e.store.CreateSlot(context.Background(), slot); err != nil {
		t.Fatalf("failed to seed slot: %v", err)
	}
}

func TestServicesDoneRequiresSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	e.seedService(t, "Маникюр", 60, 1200)

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")

	sess := e.svc.Sessions().Get(100)
	if sess.State != session.StateServices {
		t.Fatalf("expected services state, got %s", sess.State)
	}

	// Переход к дате без выбранных услуг запрещён
	e.handler.Handle(ctx, 100, "cb2", "SERVICES_DONE")

	if sess.State != session.StateServices {
		t.Errorf("guard must keep services state, got %s", sess.State)
	}
	if len(e.api.alerts) == 0 {
		t.Error("expected alert about empty selection")
	}
}

func TestServiceToggle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	svc := e.seedService(t, "Маникюр", 60, 1200)

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")
	e.handler.Handle(ctx, 100, "cb2", "SERVICE:1")

	sess := e.svc.Sessions().Get(100)
	if !sess.SelectedServices[svc.ID] {
		t.Error("service should be selected after first toggle")
	}

	e.handler.Handle(ctx, 100, "cb3", "SERVICE:1")
	if sess.SelectedServices[svc.ID] {
		t.Error("service should be deselected after second toggle")
	}
}

func TestBookingFlowEndToEnd(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	e.seedService(t, "Маникюр", 60, 1200)
	e.seedSlot(t, "2026-09-10", "12:00")

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")
	e.handler.Handle(ctx, 100, "cb2", "SERVICE:1")
	e.handler.Handle(ctx, 100, "cb3", "SERVICES_DONE")
	e.handler.Handle(ctx, 100, "cb4", "DATE:2026-09-10")
	e.handler.Handle(ctx, 100, "cb5", "DATE_DONE")
	e.handler.Handle(ctx, 100, "cb6", "TIME:2026-09-10_12:00")
	e.handler.Handle(ctx, 100, "cb7", "TIME_DONE")

	sess := e.svc.Sessions().Get(100)
	if sess.State != session.StateConfirmationPrompt {
		t.Fatalf("expected confirmation prompt, got %s", sess.State)
	}

	e.handler.Handle(ctx, 100, "cb8", "CONFIRM_BOOKING")

	bookings, err := e.store.UserBookings(ctx, 100)
	if err != nil {
		t.Fatalf("UserBookings failed: %v", err)
	}
	if len(bookings) != 1 {
		t.Fatalf("expected 1 booking, got %d", len(bookings))
	}
	if bookings[0].Date != "2026-09-10" || bookings[0].StartTime != "12:00" {
		t.Errorf("unexpected booking slot: %s %s", bookings[0].Date, bookings[0].StartTime)
	}

	// Сессия сброшена, выборы очищены
	if sess.State != session.StateMain || sess.HasServices() {
		t.Error("session must be reset after booking")
	}

	// Администраторы уведомлены
	if len(e.sender.adminMessages) != 1 {
		t.Fatalf("expected 1 admin notification, got %d", len(e.sender.adminMessages))
	}
	if !strings.Contains(e.sender.adminMessages[0], "Маникюр") {
		t.Errorf("admin notification missing service: %q", e.sender.adminMessages[0])
	}
}

func TestDateToggleDeselects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	e.seedService(t, "Маникюр", 60, 1200)
	e.seedSlot(t, "2026-09-10", "12:00")

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")
	e.handler.Handle(ctx, 100, "cb2", "SERVICE:1")
	e.handler.Handle(ctx, 100, "cb3", "SERVICES_DONE")

	sess := e.svc.Sessions().Get(100)
	depth := len(sess.History)

	e.handler.Handle(ctx, 100, "cb4", "DATE:2026-09-10")
	if sess.State != session.StateCalendar || sess.SelectedDate != "2026-09-10" {
		t.Fatalf("selection must not change state: %s %q", sess.State, sess.SelectedDate)
	}

	// Повторное нажатие снимает дату; история не растёт
	e.handler.Handle(ctx, 100, "cb5", "DATE:2026-09-10")
	if sess.SelectedDate != "" {
		t.Errorf("second tap must deselect, got %q", sess.SelectedDate)
	}
	if sess.State != session.StateCalendar {
		t.Errorf("state must stay calendar, got %s", sess.State)
	}
	if len(sess.History) != depth {
		t.Errorf("history must not grow on toggles: %d -> %d", depth, len(sess.History))
	}
}

func TestTimeToggleDeselects(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	e.seedService(t, "Маникюр", 60, 1200)
	e.seedSlot(t, "2026-09-10", "12:00")

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")
	e.handler.Handle(ctx, 100, "cb2", "SERVICE:1")
	e.handler.Handle(ctx, 100, "cb3", "SERVICES_DONE")
	e.handler.Handle(ctx, 100, "cb4", "DATE:2026-09-10")
	e.handler.Handle(ctx, 100, "cb5", "DATE_DONE")

	sess := e.svc.Sessions().Get(100)
	depth := len(sess.History)

	e.handler.Handle(ctx, 100, "cb6", "TIME:2026-09-10_12:00")
	e.handler.Handle(ctx, 100, "cb7", "TIME:2026-09-10_12:00")

	if sess.SelectedTime != "" {
		t.Errorf("second tap must deselect, got %q", sess.SelectedTime)
	}
	if sess.State != session.StateTimeSelection || len(sess.History) != depth {
		t.Errorf("toggles must not change state or history: %s %d", sess.State, len(sess.History))
	}
}

func TestForwardGuardsBlockWithoutSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	e.seedService(t, "Маникюр", 60, 1200)
	e.seedSlot(t, "2026-09-10", "12:00")

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")
	e.handler.Handle(ctx, 100, "cb2", "SERVICE:1")
	e.handler.Handle(ctx, 100, "cb3", "SERVICES_DONE")

	sess := e.svc.Sessions().Get(100)

	// К выбору времени без даты не пройти
	e.handler.Handle(ctx, 100, "cb4", "DATE_DONE")
	if sess.State != session.StateCalendar {
		t.Errorf("guard must keep calendar state, got %s", sess.State)
	}
	if len(e.api.alerts) != 1 {
		t.Fatalf("expected 1 guard alert, got %d", len(e.api.alerts))
	}

	// К подтверждению без времени не пройти
	e.handler.Handle(ctx, 100, "cb5", "DATE:2026-09-10")
	e.handler.Handle(ctx, 100, "cb6", "DATE_DONE")
	e.handler.Handle(ctx, 100, "cb7", "TIME_DONE")
	if sess.State != session.StateTimeSelection {
		t.Errorf("guard must keep time selection state, got %s", sess.State)
	}
	if len(e.api.alerts) != 2 {
		t.Errorf("expected 2 guard alerts, got %d", len(e.api.alerts))
	}
}

func TestConfirmIncompleteWarnsWithoutReset(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	e.seedService(t, "Маникюр", 60, 1200)

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")
	e.handler.Handle(ctx, 100, "cb2", "SERVICE:1")

	// Нажатие подтверждения с устаревшего экрана не сбрасывает диалог
	e.handler.Handle(ctx, 100, "cb3", "CONFIRM_BOOKING")

	sess := e.svc.Sessions().Get(100)
	if sess.State != session.StateServices {
		t.Errorf("state must be unchanged, got %s", sess.State)
	}
	if !sess.HasServices() {
		t.Error("selections must survive the failed guard")
	}
	if len(e.api.alerts) == 0 {
		t.Error("expected guard alert")
	}
}

func TestConfirmConflictReturnsToTimeSelection(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	svc := e.seedService(t, "Маникюр", 60, 1200)
	e.seedSlot(t, "2026-09-10", "12:00")
	e.seedSlot(t, "2026-09-10", "15:00")

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")
	e.handler.Handle(ctx, 100, "cb2", "SERVICE:1")
	e.handler.Handle(ctx, 100, "cb3", "SERVICES_DONE")
	e.handler.Handle(ctx, 100, "cb4", "DATE:2026-09-10")
	e.handler.Handle(ctx, 100, "cb5", "DATE_DONE")
	e.handler.Handle(ctx, 100, "cb6", "TIME:2026-09-10_12:00")
	e.handler.Handle(ctx, 100, "cb7", "TIME_DONE")

	// Конкурент успевает раньше
	ledger := e.svc.Ledger()
	if _, err := ledger.CreateBooking(ctx, 200, "2026-09-10", "12:00", []int{svc.ID}); err != nil {
		t.Fatalf("competitor booking failed: %v", err)
	}

	e.handler.Handle(ctx, 100, "cb8", "CONFIRM_BOOKING")

	sess := e.svc.Sessions().Get(100)
	if sess.State != session.StateTimeSelection {
		t.Errorf("expected return to time selection, got %s", sess.State)
	}
	if sess.SelectedTime != "" {
		t.Error("stale time selection must be cleared")
	}
	if len(e.api.alerts) == 0 {
		t.Error("expected conflict alert")
	}

	bookings, err := e.store.UserBookings(ctx, 100)
	if err != nil {
		t.Fatalf("UserBookings failed: %v", err)
	}
	if len(bookings) != 0 {
		t.Errorf("loser must not get a booking, got %d", len(bookings))
	}
}

func TestBookRequestsContactWithoutPhone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "")
	e.seedService(t, "Маникюр", 60, 1200)

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")

	sess := e.svc.Sessions().Get(100)
	if sess.State != session.StateAwaitingContact {
		t.Errorf("expected awaiting contact, got %s", sess.State)
	}

	found := false
	for _, text := range e.api.sent {
		if strings.Contains(text, "телефон") {
			found = true
		}
	}
	if !found {
		t.Error("expected contact request message")
	}
}

func TestSkipContactCompletesBookingWithoutPhone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "")
	e.seedService(t, "Маникюр", 60, 1200)
	e.seedSlot(t, "2026-09-10", "12:00")

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")

	sess := e.svc.Sessions().Get(100)
	if sess.State != session.StateAwaitingContact {
		t.Fatalf("expected awaiting contact, got %s", sess.State)
	}

	// Отказ от номера возвращает к выбору услуг
	contact := NewContactHandler(e.svc)
	contact.HandleSkip(ctx, &tgmodels.Message{
		Chat: tgmodels.Chat{ID: 100},
		Text: keyboard.ButtonSkipContact,
	})
	if sess.State != session.StateServices {
		t.Fatalf("expected services after skip, got %s", sess.State)
	}

	e.handler.Handle(ctx, 100, "cb2", "SERVICE:1")
	e.handler.Handle(ctx, 100, "cb3", "SERVICES_DONE")
	e.handler.Handle(ctx, 100, "cb4", "DATE:2026-09-10")
	e.handler.Handle(ctx, 100, "cb5", "DATE_DONE")
	e.handler.Handle(ctx, 100, "cb6", "TIME:2026-09-10_12:00")
	e.handler.Handle(ctx, 100, "cb7", "TIME_DONE")
	e.handler.Handle(ctx, 100, "cb8", "CONFIRM_BOOKING")

	// Запись создаётся и без телефона
	bookings, err := e.store.UserBookings(ctx, 100)
	if err != nil {
		t.Fatalf("UserBookings failed: %v", err)
	}
	if len(bookings) != 1 {
		t.Fatalf("expected 1 booking without phone, got %d", len(bookings))
	}

	user, err := e.store.GetUser(ctx, 100)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Phone != "" {
		t.Errorf("skip must not invent a phone, got %q", user.Phone)
	}
}

func TestFreeTextResetsSelections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	e.seedService(t, "Маникюр", 60, 1200)
	e.seedSlot(t, "2026-09-10", "12:00")

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")
	e.handler.Handle(ctx, 100, "cb2", "SERVICE:1")
	e.handler.Handle(ctx, 100, "cb3", "SERVICES_DONE")
	e.handler.Handle(ctx, 100, "cb4", "DATE:2026-09-10")

	// Свободный текст возвращает в меню и чистит накопленные выборы
	def := NewDefaultHandler(e.svc)
	def.Handle(ctx, &tgmodels.Message{Chat: tgmodels.Chat{ID: 100}, Text: "привет"})

	sess := e.svc.Sessions().Get(100)
	if sess.State != session.StateMain {
		t.Errorf("expected main state, got %s", sess.State)
	}
	if sess.HasServices() || sess.SelectedDate != "" || len(sess.History) != 0 {
		t.Error("free text must clear stale selections")
	}
}

func TestCancelForeignBookingRejected(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	svc := e.seedService(t, "Маникюр", 60, 1200)
	e.seedSlot(t, "2026-09-10", "12:00")

	created, err := e.svc.Ledger().CreateBooking(ctx, 200, "2026-09-10", "12:00", []int{svc.ID})
	if err != nil {
		t.Fatalf("seed booking failed: %v", err)
	}

	// Чужую запись отменить нельзя
	e.handler.Handle(ctx, 100, "cb1", "MYCANCEL:1")

	if _, err := e.store.GetBooking(ctx, created.ID); err != nil {
		t.Errorf("foreign booking must survive: %v", err)
	}
}

func TestBackFromCalendarReturnsToServices(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.seedUser(t, 100, "+79990001122")
	e.seedService(t, "Маникюр", 60, 1200)

	e.handler.Handle(ctx, 100, "cb1", "MENU:book")
	e.handler.Handle(ctx, 100, "cb2", "SERVICE:1")
	e.handler.Handle(ctx, 100, "cb3", "SERVICES_DONE")

	sess := e.svc.Sessions().Get(100)
	if sess.State != session.StateCalendar {
		t.Fatalf("expected calendar, got %s", sess.State)
	}

	e.handler.Handle(ctx, 100, "cb4", "BACK")
	if sess.State != session.StateServices {
		t.Errorf("expected services after back, got %s", sess.State)
	}

	// Выбор услуг сохраняется при возврате
	if !sess.HasServices() {
		t.Error("selection must survive back navigation")
	}
}
