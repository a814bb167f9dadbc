package admin

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"

	"telegram_appointment_bot/internal/booking"
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
	answers []string
}

func (f *fakeAPI) SendMessage(_ context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.sent = append(f.sent, params.Text)
	return &tgmodels.Message{ID: f.nextID}, nil
}

func (f *fakeAPI) EditMessageText(_ context.Context, params *tgbot.EditMessageTextParams) (*tgmodels.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, params.Text)
	return &tgmodels.Message{ID: params.MessageID}, nil
}

func (f *fakeAPI) AnswerCallbackQuery(_ context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, params.Text)
	return true, nil
}

func (f *fakeAPI) DeleteMessage(_ context.Context, _ *tgbot.DeleteMessageParams) (bool, error) {
	return true, nil
}

func (f *fakeAPI) lastText(t *testing.T) string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("no messages sent")
	}
	return f.sent[len(f.sent)-1]
}

type userSink struct {
	mu       sync.Mutex
	messages map[int64][]string
}

func (s *userSink) SendToUser(_ context.Context, chatID int64, text string, _ tgmodels.ReplyMarkup) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.messages == nil {
		s.messages = make(map[int64][]string)
	}
	s.messages[chatID] = append(s.messages[chatID], text)
	return 1, nil
}

func (s *userSink) SendToAdmins(_ context.Context, _ string) {}

func (s *userSink) SendToChannel(_ context.Context, _ string) (int, error) { return 1, nil }

func (s *userSink) EditChannelMessage(_ context.Context, _ int, _ string) error { return nil }

type env struct {
	handler *Handler
	api     *fakeAPI
	sink    *userSink
	store   *sqlite.SQLiteStorage
	clk     *clock.Fixed
}

const adminChatID int64 = 42

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
	sink := &userSink{}
	notifier := notify.NewNotifier(sink, store, clk, 14*24*time.Hour, log)

	cfg := &config.Config{
		Telegram: config.TelegramConfig{AdminChatIDs: []int64{adminChatID}},
		Studio:   config.StudioConfig{DayStart: "10:00", DayEnd: "12:00", SlotStepMins: 60},
	}

	handler := NewHandler(api, store, ledger, notifier, session.NewAdminStore(), clk, cfg, log)
	return &env{handler: handler, api: api, sink: sink, store: store, clk: clk}
}

func TestNonAdminRejected(t *testing.T) {
	e := newEnv(t)

	update := &tgmodels.Update{
		Message: &tgmodels.Message{
			Chat: tgmodels.Chat{ID: 777},
			Text: "/start",
		},
	}
	e.handler.HandleUpdate(context.Background(), nil, update)

	if !strings.Contains(e.api.lastText(t), "только администраторам") {
		t.Errorf("expected rejection message, got %q", e.api.lastText(t))
	}
}

func TestServiceWizard(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.handler.handleCallback(ctx, adminChatID, "cb1", "ASVC_ADD")
	e.handler.handleText(ctx, adminChatID, "Классическое наращивание")
	e.handler.handleText(ctx, adminChatID, "2000")
	e.handler.handleText(ctx, adminChatID, "90")

	services, err := e.store.ActiveServices(ctx)
	if err != nil {
		t.Fatalf("ActiveServices failed: %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("expected 1 service, got %d", len(services))
	}
	svc := services[0]
	if svc.Name != "Классическое наращивание" || svc.Price != 2000 || svc.DurationMinutes != 90 {
		t.Errorf("unexpected service: %+v", svc)
	}
}

func TestServiceWizardRepromptKeepsContext(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.handler.handleCallback(ctx, adminChatID, "cb1", "ASVC_ADD")
	e.handler.handleText(ctx, adminChatID, "Маникюр")

	// Невалидная цена переспрашивает, не теряя название
	e.handler.handleText(ctx, adminChatID, "дорого")

	sess := e.handler.sessions.Get(adminChatID)
	if sess.Action.Kind != session.ActionServicePrice {
		t.Errorf("expected price step preserved, got %v", sess.Action.Kind)
	}
	if sess.Action.Name != "Маникюр" {
		t.Errorf("wizard name lost: %q", sess.Action.Name)
	}

	e.handler.handleText(ctx, adminChatID, "1200")
	e.handler.handleText(ctx, adminChatID, "60")

	services, err := e.store.ActiveServices(ctx)
	if err != nil || len(services) != 1 {
		t.Fatalf("expected service created, got %d, err %v", len(services), err)
	}
	if services[0].Name != "Маникюр" {
		t.Errorf("unexpected name: %q", services[0].Name)
	}
}

func TestServicePriceEdit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	svc := &models.Service{Name: "Маникюр", DurationMinutes: 60, Price: 1200, Active: true}
	if err := e.store.CreateService(ctx, svc); err != nil {
		t.Fatalf("failed to seed service: %v", err)
	}

	e.handler.handleCallback(ctx, adminChatID, "cb1", "ASVC_PRICE:1")
	e.handler.handleText(ctx, adminChatID, "1500")

	got, err := e.store.GetService(ctx, svc.ID)
	if err != nil {
		t.Fatalf("GetService failed: %v", err)
	}
	if got.Price != 1500 {
		t.Errorf("expected price 1500, got %d", got.Price)
	}
}

func TestTimePickerSavesSlots(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.handler.handleCallback(ctx, adminChatID, "cb1", "ADM:slots")
	e.handler.handleCallback(ctx, adminChatID, "cb2", "ADATE:2026-09-10")
	e.handler.handleCallback(ctx, adminChatID, "cb3", "ATIME:10:00")
	e.handler.handleCallback(ctx, adminChatID, "cb4", "ATIME:11:00")
	e.handler.handleCallback(ctx, adminChatID, "cb5", "ATIME:11:00")
	e.handler.handleCallback(ctx, adminChatID, "cb6", "ATIME_SAVE")

	slots, err := e.store.SlotsForDate(ctx, "2026-09-10")
	if err != nil {
		t.Fatalf("SlotsForDate failed: %v", err)
	}
	if len(slots) != 1 || slots[0].StartTime != "10:00" {
		t.Fatalf("expected single 10:00 slot after toggle off, got %d", len(slots))
	}

	// Выбор очищен после сохранения
	sess := e.handler.sessions.Get(adminChatID)
	if len(sess.SelectedTimes) != 0 {
		t.Errorf("selection must be cleared after save: %v", sess.SelectedTimes)
	}
}

func TestSlotPickerShowsBookedCount(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	svc := &models.Service{Name: "Маникюр", DurationMinutes: 60, Price: 1200, Active: true}
	if err := e.store.CreateService(ctx, svc); err != nil {
		t.Fatalf("failed to seed service: %v", err)
	}
	slot := &models.Slot{Date: "2026-09-10", StartTime: "11:00", Active: true}
	if err := e.store.CreateSlot(ctx, slot); err != nil {
		t.Fatalf("failed to seed slot: %v", err)
	}
	if _, err := e.store.CreateBooking(ctx, 100, "2026-09-10", "11:00", []*models.Service{svc}, e.clk.T); err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}

	e.handler.handleCallback(ctx, adminChatID, "cb1", "ADM:slots")
	e.handler.handleCallback(ctx, adminChatID, "cb2", "ADATE:2026-09-10")

	if text := e.api.lastText(t); !strings.Contains(text, "Записей на эту дату: 1") {
		t.Errorf("picker must show booked count, got %q", text)
	}
}

func TestAdminCancelNotifiesUser(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	svc := &models.Service{Name: "Маникюр", DurationMinutes: 60, Price: 1200, Active: true}
	if err := e.store.CreateService(ctx, svc); err != nil {
		t.Fatalf("failed to seed service: %v", err)
	}
	slot := &models.Slot{Date: "2026-09-10", StartTime: "12:00", Active: true}
	if err := e.store.CreateSlot(ctx, slot); err != nil {
		t.Fatalf("failed to seed slot: %v", err)
	}
	created, err := e.store.CreateBooking(ctx, 100, "2026-09-10", "12:00", []*models.Service{svc}, e.clk.T)
	if err != nil {
		t.Fatalf("failed to seed booking: %v", err)
	}

	e.handler.handleCallback(ctx, adminChatID, "cb1", "ABOOK_CANCEL:1")

	if _, err := e.store.GetBooking(ctx, created.ID); err == nil {
		t.Error("booking must be deleted")
	}

	msgs := e.sink.messages[100]
	if len(msgs) != 1 || !strings.Contains(msgs[0], "отменена администратором") {
		t.Errorf("expected user cancellation notice, got %v", msgs)
	}
}

func TestStudioFieldEdit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.handler.handleCallback(ctx, adminChatID, "cb1", "ADM:studio")
	e.handler.handleCallback(ctx, adminChatID, "cb2", "ASTUDIO:address")
	e.handler.handleText(ctx, adminChatID, "ул. Ленина, 10")

	studio, err := e.store.GetStudio(ctx)
	if err != nil {
		t.Fatalf("GetStudio failed: %v", err)
	}
	if studio.Address != "ул. Ленина, 10" {
		t.Errorf("expected updated address, got %q", studio.Address)
	}
}

func TestDayTimes(t *testing.T) {
	times := dayTimes("10:00", "12:00", 60)
	want := []string{"10:00", "11:00", "12:00"}
	if len(times) != len(want) {
		t.Fatalf("expected %v, got %v", want, times)
	}
	for i := range want {
		if times[i] != want[i] {
			t.Errorf("expected %v, got %v", want, times)
			break
		}
	}
}
