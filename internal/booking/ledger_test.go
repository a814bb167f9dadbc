package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"telegram_appointment_bot/internal/clock"
	"telegram_appointment_bot/internal/storage/models"
	"telegram_appointment_bot/internal/storage/sqlite"
	apperrors "telegram_appointment_bot/pkg/errors"
	"telegram_appointment_bot/pkg/logger"
)

func newTestLedger(t *testing.T) (*Ledger, *sqlite.SQLiteStorage) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clk := &clock.Fixed{T: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)}
	return NewLedger(store, clk, logger.New(logger.LevelError)), store
}

func seedSlot(t *testing.T, store *sqlite.SQLiteStorage, date, startTime string) {
	t.Helper()
	slot := &models.Slot{Date: date, StartTime: startTime, Active: true}
	if err := store.CreateSlot(context.Background(), slot); err != nil {
		t.Fatalf("failed to seed slot: %v", err)
	}
}

func seedService(t *testing.T, store *sqlite.SQLiteStorage, name string, duration, price int) *models.Service {
	t.Helper()
	svc := &models.Service{Name: name, DurationMinutes: duration, Price: price, Active: true}
	if err := store.CreateService(context.Background(), svc); err != nil {
		t.Fatalf("failed to seed service: %v", err)
	}
	return svc
}

func TestCreateBookingEndToEnd(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	seedSlot(t, store, "2026-09-10", "12:00")
	svc1 := seedService(t, store, "Коррекция", 45, 1000)
	svc2 := seedService(t, store, "Окрашивание", 30, 1500)

	booking, err := ledger.CreateBooking(ctx, 100, "2026-09-10", "12:00", []int{svc1.ID, svc2.ID})
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	if booking.TotalDuration() != 75*time.Minute {
		t.Errorf("expected 75m total, got %v", booking.TotalDuration())
	}
	if booking.TotalPrice() != 2500 {
		t.Errorf("expected 2500 total, got %d", booking.TotalPrice())
	}

	// Момент создания фиксируется часами реестра
	want := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	if !booking.CreatedAt.Equal(want) {
		t.Errorf("expected created_at %v, got %v", want, booking.CreatedAt)
	}

	free, err := ledger.FreeSlotsForDate(ctx, "2026-09-10")
	if err != nil {
		t.Fatalf("FreeSlotsForDate failed: %v", err)
	}
	if len(free) != 0 {
		t.Errorf("booked slot must not be free, got %d slots", len(free))
	}
}

func TestCreateBookingRequiresServices(t *testing.T) {
	ledger, store := newTestLedger(t)
	seedSlot(t, store, "2026-09-10", "12:00")

	_, err := ledger.CreateBooking(context.Background(), 100, "2026-09-10", "12:00", nil)
	if !errors.Is(err, apperrors.ErrNoServicesSelected) {
		t.Errorf("expected ErrNoServicesSelected, got %v", err)
	}
}

func TestCreateBookingRejectsUnknownService(t *testing.T) {
	ledger, store := newTestLedger(t)
	seedSlot(t, store, "2026-09-10", "12:00")

	_, err := ledger.CreateBooking(context.Background(), 100, "2026-09-10", "12:00", []int{999})
	if !errors.Is(err, apperrors.ErrServiceNotFound) {
		t.Errorf("expected ErrServiceNotFound, got %v", err)
	}

	// Слот не должен остаться занятым после отказа
	free, err := ledger.FreeSlotsForDate(context.Background(), "2026-09-10")
	if err != nil {
		t.Fatalf("FreeSlotsForDate failed: %v", err)
	}
	if len(free) != 1 {
		t.Errorf("slot must stay free after rejected booking, got %d free", len(free))
	}
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	seedSlot(t, store, "2026-09-10", "12:00")
	svc := seedService(t, store, "Маникюр", 60, 1200)

	const contenders = 10
	var wg sync.WaitGroup
	results := make(chan error, contenders)

	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			_, err := ledger.CreateBooking(ctx, userID, "2026-09-10", "12:00", []int{svc.ID})
			results <- err
		}(int64(100 + i))
	}
	wg.Wait()
	close(results)

	winners, conflicts := 0, 0
	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, apperrors.ErrSlotTaken):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
	if conflicts != contenders-1 {
		t.Errorf("expected %d conflicts, got %d", contenders-1, conflicts)
	}
}

func TestCancelBookingFreesSlotOnce(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	seedSlot(t, store, "2026-09-10", "12:00")
	svc := seedService(t, store, "Маникюр", 60, 1200)

	booking, err := ledger.CreateBooking(ctx, 100, "2026-09-10", "12:00", []int{svc.ID})
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	cancelled, err := ledger.CancelBooking(ctx, booking.ID, CancelReasonUser)
	if err != nil {
		t.Fatalf("CancelBooking failed: %v", err)
	}
	if cancelled.UserID != 100 {
		t.Errorf("expected cancelled booking of user 100, got %d", cancelled.UserID)
	}

	free, err := ledger.FreeSlotsForDate(ctx, "2026-09-10")
	if err != nil {
		t.Fatalf("FreeSlotsForDate failed: %v", err)
	}
	if len(free) != 1 {
		t.Errorf("slot must be free after cancel, got %d free", len(free))
	}

	// Повторная отмена: записи уже нет
	if _, err := ledger.CancelBooking(ctx, booking.ID, CancelReasonUser); !errors.Is(err, apperrors.ErrBookingNotFound) {
		t.Errorf("expected ErrBookingNotFound on repeat cancel, got %v", err)
	}
}

func TestSlotsChangedEvents(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	seedSlot(t, store, "2026-09-10", "12:00")
	svc := seedService(t, store, "Маникюр", 60, 1200)

	events := make(chan struct{}, 10)
	ledger.OnSlotsChanged(func() { events <- struct{}{} })

	booking, err := ledger.CreateBooking(ctx, 100, "2026-09-10", "12:00", []int{svc.ID})
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	waitEvent(t, events, "create")

	if _, err := ledger.CancelBooking(ctx, booking.ID, CancelReasonAdmin); err != nil {
		t.Fatalf("CancelBooking failed: %v", err)
	}
	waitEvent(t, events, "cancel")

	if _, err := ledger.AddSlots(ctx, "2026-09-11", []string{"10:00"}); err != nil {
		t.Fatalf("AddSlots failed: %v", err)
	}
	waitEvent(t, events, "add slots")
}

func waitEvent(t *testing.T, events <-chan struct{}, op string) {
	t.Helper()
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatalf("no slots-changed event after %s", op)
	}
}

func TestAddSlotsSkipsExisting(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	seedSlot(t, store, "2026-09-10", "12:00")

	created, err := ledger.AddSlots(ctx, "2026-09-10", []string{"12:00", "13:00", "14:00"})
	if err != nil {
		t.Fatalf("AddSlots failed: %v", err)
	}
	if created != 2 {
		t.Errorf("expected 2 created slots, got %d", created)
	}

	slots, err := store.SlotsForDate(ctx, "2026-09-10")
	if err != nil {
		t.Fatalf("SlotsForDate failed: %v", err)
	}
	if len(slots) != 3 {
		t.Errorf("expected 3 slots total, got %d", len(slots))
	}
}

func TestRemoveSlotRefusesOccupied(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	seedSlot(t, store, "2026-09-10", "12:00")
	svc := seedService(t, store, "Маникюр", 60, 1200)

	if _, err := ledger.CreateBooking(ctx, 100, "2026-09-10", "12:00", []int{svc.ID}); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	slots, err := store.SlotsForDate(ctx, "2026-09-10")
	if err != nil || len(slots) != 1 {
		t.Fatalf("failed to load slot: %v", err)
	}

	if err := ledger.RemoveSlot(ctx, slots[0].ID); !errors.Is(err, apperrors.ErrSlotTaken) {
		t.Errorf("expected ErrSlotTaken for occupied slot, got %v", err)
	}
}

func TestSetSlotActiveHidesSlot(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	seedSlot(t, store, "2026-09-10", "12:00")
	svc := seedService(t, store, "Маникюр", 60, 1200)

	slots, err := store.SlotsForDate(ctx, "2026-09-10")
	if err != nil || len(slots) != 1 {
		t.Fatalf("failed to load slot: %v", err)
	}
	id := slots[0].ID

	if err := ledger.SetSlotActive(ctx, id, false); err != nil {
		t.Fatalf("SetSlotActive failed: %v", err)
	}

	free, err := ledger.FreeSlotsForDate(ctx, "2026-09-10")
	if err != nil {
		t.Fatalf("FreeSlotsForDate failed: %v", err)
	}
	if len(free) != 0 {
		t.Errorf("inactive slot must not be listed, got %d free", len(free))
	}

	// Неактивное окно нельзя занять
	if _, err := ledger.CreateBooking(ctx, 100, "2026-09-10", "12:00", []int{svc.ID}); err == nil {
		t.Error("booking an inactive slot must fail")
	}

	if err := ledger.SetSlotActive(ctx, id, true); err != nil {
		t.Fatalf("SetSlotActive failed: %v", err)
	}
	if _, err := ledger.CreateBooking(ctx, 100, "2026-09-10", "12:00", []int{svc.ID}); err != nil {
		t.Errorf("reactivated slot must be bookable: %v", err)
	}
}

func TestFreeDates(t *testing.T) {
	ledger, store := newTestLedger(t)
	ctx := context.Background()

	seedSlot(t, store, "2026-09-10", "12:00")
	seedSlot(t, store, "2026-09-15", "14:00")
	taken := &models.Slot{Date: "2026-09-20", StartTime: "10:00", Active: true, Occupied: true}
	if err := store.CreateSlot(ctx, taken); err != nil {
		t.Fatalf("failed to seed occupied slot: %v", err)
	}

	dates, err := ledger.FreeDates(ctx, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("FreeDates failed: %v", err)
	}

	if !dates["2026-09-10"] || !dates["2026-09-15"] {
		t.Errorf("expected free dates marked, got %v", dates)
	}
	if dates["2026-09-20"] {
		t.Error("fully booked date must not be marked free")
	}
}
