package session

import (
	"errors"
	"sync"
	"testing"

	apperrors "telegram_appointment_bot/pkg/errors"
)

func TestToggleService(t *testing.T) {
	s := newSession(1)

	if selected := s.ToggleService(3); !selected {
		t.Error("first toggle should select")
	}
	if !s.HasServices() {
		t.Error("expected selected services")
	}

	// Повторный выбор снимает отметку
	if selected := s.ToggleService(3); selected {
		t.Error("second toggle should deselect")
	}
	if s.HasServices() {
		t.Error("expected no selected services")
	}
}

func TestToggleDateRoundTrip(t *testing.T) {
	s := newSession(1)

	if selected := s.ToggleDate("2026-09-10"); !selected {
		t.Error("first toggle should select")
	}
	if s.SelectedDate != "2026-09-10" {
		t.Errorf("unexpected date: %q", s.SelectedDate)
	}

	// Повторный выбор снимает дату
	if selected := s.ToggleDate("2026-09-10"); selected {
		t.Error("second toggle should deselect")
	}
	if s.SelectedDate != "" {
		t.Errorf("date must be cleared, got %q", s.SelectedDate)
	}

	// Смена даты сбрасывает выбранное время
	s.ToggleDate("2026-09-10")
	s.ToggleTime("12:00")
	s.ToggleDate("2026-09-11")
	if s.SelectedDate != "2026-09-11" || s.SelectedTime != "" {
		t.Errorf("date switch must clear time: %q %q", s.SelectedDate, s.SelectedTime)
	}
}

func TestToggleTimeRoundTrip(t *testing.T) {
	s := newSession(1)

	if selected := s.ToggleTime("12:00"); !selected {
		t.Error("first toggle should select")
	}
	if selected := s.ToggleTime("12:00"); selected {
		t.Error("second toggle should deselect")
	}
	if s.SelectedTime != "" {
		t.Errorf("time must be cleared, got %q", s.SelectedTime)
	}
}

func TestAdvanceGuards(t *testing.T) {
	s := newSession(1)
	s.Push(StateServices)

	// Без услуг к календарю не пройти
	if err := s.AdvanceToCalendar(); !errors.Is(err, apperrors.ErrGuardNotMet) {
		t.Errorf("expected guard error, got %v", err)
	}
	if s.State != StateServices || len(s.History) != 1 {
		t.Error("failed guard must not change state")
	}

	s.ToggleService(1)
	if err := s.AdvanceToCalendar(); err != nil {
		t.Fatalf("advance with services failed: %v", err)
	}

	if err := s.AdvanceToTimeSelection(); !errors.Is(err, apperrors.ErrGuardNotMet) {
		t.Errorf("expected guard error without date, got %v", err)
	}
	if s.State != StateCalendar {
		t.Error("failed guard must keep calendar state")
	}

	s.ToggleDate("2026-09-10")
	if err := s.AdvanceToTimeSelection(); err != nil {
		t.Fatalf("advance with date failed: %v", err)
	}

	if err := s.AdvanceToConfirmation(); !errors.Is(err, apperrors.ErrGuardNotMet) {
		t.Errorf("expected guard error without time, got %v", err)
	}

	s.ToggleTime("12:00")
	if err := s.AdvanceToConfirmation(); err != nil {
		t.Fatalf("advance with time failed: %v", err)
	}
	if s.State != StateConfirmationPrompt {
		t.Errorf("expected confirmation prompt, got %s", s.State)
	}
}

func TestServiceIDsStableOrder(t *testing.T) {
	s := newSession(1)
	s.ToggleService(5)
	s.ToggleService(1)
	s.ToggleService(3)

	ids := s.ServiceIDs()
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 3 || ids[2] != 5 {
		t.Errorf("expected [1 3 5], got %v", ids)
	}
}

func TestBackPopsHistory(t *testing.T) {
	s := newSession(1)
	s.Push(StateServices)
	s.Push(StateCalendar)
	s.Push(StateTimeSelection)

	if got := s.Back(); got != StateCalendar {
		t.Errorf("expected calendar, got %s", got)
	}
	if got := s.Back(); got != StateServices {
		t.Errorf("expected services, got %s", got)
	}
	if got := s.Back(); got != StateMain {
		t.Errorf("expected main, got %s", got)
	}

	// Пустая история всегда ведёт в главное меню
	if got := s.Back(); got != StateMain {
		t.Errorf("expected main on empty history, got %s", got)
	}
}

func TestResetClearsSelections(t *testing.T) {
	s := newSession(1)
	s.Push(StateServices)
	s.ToggleService(2)
	s.SelectedDate = "2026-09-10"
	s.SelectedTime = "12:00"

	s.Reset()

	if s.State != StateMain {
		t.Errorf("expected main state, got %s", s.State)
	}
	if s.HasServices() || s.SelectedDate != "" || s.SelectedTime != "" {
		t.Error("reset should clear all selections")
	}
	if len(s.History) != 0 {
		t.Error("reset should clear history")
	}
}

func TestStoreGetCreatesOnce(t *testing.T) {
	store := NewStore()

	s1 := store.Get(10)
	s1.Push(StateServices)

	s2 := store.Get(10)
	if s2.State != StateServices {
		t.Error("Get should return the same session")
	}

	store.Clear(10)
	if store.Get(10).State != StateMain {
		t.Error("Clear should drop the session")
	}
}

func TestStoreLockSerializes(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := store.Lock(10)
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("expected 50 increments, got %d", counter)
	}
}

func TestAdminActionPreservedAcrossReprompt(t *testing.T) {
	store := NewAdminStore()
	s := store.Get(42)

	s.Push(AdminStateServiceList)
	s.Action = Action{Kind: ActionServicePrice, Name: "Маникюр"}

	// Невалидный ввод цены не должен терять накопленное имя
	got := store.Get(42)
	if got.Action.Kind != ActionServicePrice || got.Action.Name != "Маникюр" {
		t.Errorf("action tag lost: %+v", got.Action)
	}
}

func TestAdminToggleTime(t *testing.T) {
	s := newAdminSession(42)

	if !s.ToggleTime("12:00") {
		t.Error("first toggle should select")
	}
	s.ToggleTime("13:00")
	if s.ToggleTime("12:00") {
		t.Error("second toggle should deselect")
	}
	if len(s.SelectedTimes) != 1 || !s.SelectedTimes["13:00"] {
		t.Errorf("unexpected selection: %v", s.SelectedTimes)
	}
}
