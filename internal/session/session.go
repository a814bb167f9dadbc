package session

import (
	"sort"
	"sync"
	"time"

	apperrors "telegram_appointment_bot/pkg/errors"
)

// State задает состояние диалога пользователя
type State string

const (
	StateMain               State = "main"
	StateServices           State = "services"
	StateCalendar           State = "calendar"
	StateTimeSelection      State = "time_selection"
	StateConfirmationPrompt State = "confirmation_prompt"
	StateConfirmationDone   State = "confirmation_done"
	StateAwaitingContact    State = "awaiting_contact"
)

// Session хранит состояние диалога и текущие выборы пользователя.
// Живёт только в памяти: после рестарта пользователь начинает с главного меню.
type Session struct {
	UserID           int64
	State            State
	History          []State
	SelectedServices map[int]bool
	SelectedDate     string
	SelectedTime     string
	PhoneSkipped     bool
	CurrentMonth     time.Time
	LastMessageID    int
}

func newSession(userID int64) *Session {
	return &Session{
		UserID:           userID,
		State:            StateMain,
		SelectedServices: make(map[int]bool),
	}
}

// Push переходит в состояние next, запоминая текущее в истории
func (s *Session) Push(next State) {
	s.History = append(s.History, s.State)
	s.State = next
}

// Back возвращает в предыдущее состояние из истории.
// При пустой истории возвращает в главное меню.
func (s *Session) Back() State {
	if len(s.History) == 0 {
		s.State = StateMain
		return s.State
	}
	s.State = s.History[len(s.History)-1]
	s.History = s.History[:len(s.History)-1]
	return s.State
}

// Reset сбрасывает диалог в главное меню и очищает все выборы
func (s *Session) Reset() {
	s.State = StateMain
	s.History = nil
	s.SelectedServices = make(map[int]bool)
	s.SelectedDate = ""
	s.SelectedTime = ""
	s.PhoneSkipped = false
	s.CurrentMonth = time.Time{}
}

// ToggleService переключает выбор услуги.
// Повторный выбор снимает отметку. Возвращает новое состояние отметки.
func (s *Session) ToggleService(id int) bool {
	if s.SelectedServices[id] {
		delete(s.SelectedServices, id)
		return false
	}
	s.SelectedServices[id] = true
	return true
}

// HasServices сообщает, выбрана ли хотя бы одна услуга
func (s *Session) HasServices() bool {
	return len(s.SelectedServices) > 0
}

// ToggleDate переключает выбор даты.
// Повторный выбор снимает дату вместе с выбранным временем.
// Возвращает новое состояние отметки.
func (s *Session) ToggleDate(date string) bool {
	if s.SelectedDate == date {
		s.SelectedDate = ""
		s.SelectedTime = ""
		return false
	}
	s.SelectedDate = date
	s.SelectedTime = ""
	return true
}

// ToggleTime переключает выбор времени. Возвращает новое состояние отметки.
func (s *Session) ToggleTime(startTime string) bool {
	if s.SelectedTime == startTime {
		s.SelectedTime = ""
		return false
	}
	s.SelectedTime = startTime
	return true
}

// Защищённые переходы вперёд. Каждый требует выполненного предусловия
// предыдущего шага; иначе возвращает ErrGuardNotMet и не меняет состояние.

// AdvanceToCalendar переходит к выбору даты
func (s *Session) AdvanceToCalendar() error {
	if !s.HasServices() {
		return apperrors.ErrGuardNotMet
	}
	s.Push(StateCalendar)
	return nil
}

// AdvanceToTimeSelection переходит к выбору времени
func (s *Session) AdvanceToTimeSelection() error {
	if s.SelectedDate == "" {
		return apperrors.ErrGuardNotMet
	}
	s.Push(StateTimeSelection)
	return nil
}

// AdvanceToConfirmation переходит к подтверждению записи
func (s *Session) AdvanceToConfirmation() error {
	if s.SelectedDate == "" || s.SelectedTime == "" {
		return apperrors.ErrGuardNotMet
	}
	s.Push(StateConfirmationPrompt)
	return nil
}

// ServiceIDs возвращает выбранные услуги в стабильном порядке
func (s *Session) ServiceIDs() []int {
	ids := make([]int, 0, len(s.SelectedServices))
	for id := range s.SelectedServices {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Store хранит сессии пользователей, доступ потокобезопасен.
// Lock сериализует обработку апдейтов одного пользователя:
// два одновременных колбэка не наступают друг другу на состояние.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	locks    map[int64]*sync.Mutex
}

// NewStore создает хранилище сессий
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Get возвращает сессию пользователя, создавая её при необходимости
func (st *Store) Get(userID int64) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[userID]
	if !ok {
		s = newSession(userID)
		st.sessions[userID] = s
	}
	return s
}

// Clear удаляет сессию пользователя
func (st *Store) Clear(userID int64) {
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, userID)
}

// Lock захватывает персональную блокировку пользователя
// и возвращает функцию освобождения
func (st *Store) Lock(userID int64) func() {
	st.mu.Lock()
	l, ok := st.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		st.locks[userID] = l
	}
	st.mu.Unlock()

	l.Lock()
	return l.Unlock
}
