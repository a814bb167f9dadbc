package session

import (
	"sync"
	"time"
)

// AdminState задает состояние диалога администратора
type AdminState string

const (
	AdminStateMain             AdminState = "admin_main"
	AdminStateServiceList      AdminState = "service_list"
	AdminStateServiceEdit      AdminState = "service_edit"
	AdminStateTimeslotCalendar AdminState = "timeslot_calendar"
	AdminStateTimeslotPicker   AdminState = "timeslot_picker"
	AdminStateBookingList      AdminState = "booking_list"
	AdminStateBookingDetail    AdminState = "booking_detail"
	AdminStateStudioSettings   AdminState = "studio_settings"
)

// ActionKind определяет, чего бот ждёт в следующем текстовом сообщении админа
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionServiceName
	ActionServicePrice
	ActionServiceDuration
	ActionStudioField
)

// Action описывает помеченное ожидание текстового ввода.
// Kind задаёт шаг, остальные поля несут контекст шага:
// Name и Price накапливают ответы мастера создания услуги,
// StudioField называет редактируемое поле настроек.
type Action struct {
	Kind        ActionKind
	ServiceID   int
	StudioField string
	Name        string
	Price       int
}

// AdminSession хранит состояние диалога администратора
type AdminSession struct {
	AdminID       int64
	State         AdminState
	History       []AdminState
	Action        Action
	CurrentMonth  time.Time
	SelectedDate  string
	SelectedTimes map[string]bool
	EditServiceID int
	ViewBookingID int
	LastMessageID int
}

func newAdminSession(adminID int64) *AdminSession {
	return &AdminSession{
		AdminID:       adminID,
		State:         AdminStateMain,
		SelectedTimes: make(map[string]bool),
	}
}

// Push переходит в состояние next, запоминая текущее в истории
func (s *AdminSession) Push(next AdminState) {
	s.History = append(s.History, s.State)
	s.State = next
}

// Back возвращает в предыдущее состояние из истории.
// При пустой истории возвращает в главное меню.
func (s *AdminSession) Back() AdminState {
	if len(s.History) == 0 {
		s.State = AdminStateMain
		return s.State
	}
	s.State = s.History[len(s.History)-1]
	s.History = s.History[:len(s.History)-1]
	return s.State
}

// Reset сбрасывает диалог администратора в главное меню
func (s *AdminSession) Reset() {
	s.State = AdminStateMain
	s.History = nil
	s.Action = Action{}
	s.SelectedDate = ""
	s.SelectedTimes = make(map[string]bool)
	s.EditServiceID = 0
	s.ViewBookingID = 0
}

// ToggleTime переключает выбор времени в мультипикере окон
func (s *AdminSession) ToggleTime(startTime string) bool {
	if s.SelectedTimes[startTime] {
		delete(s.SelectedTimes, startTime)
		return false
	}
	s.SelectedTimes[startTime] = true
	return true
}

// AdminStore хранит админские сессии, доступ потокобезопасен
type AdminStore struct {
	mu       sync.Mutex
	sessions map[int64]*AdminSession
	locks    map[int64]*sync.Mutex
}

// NewAdminStore создает хранилище админских сессий
func NewAdminStore() *AdminStore {
	return &AdminStore{
		sessions: make(map[int64]*AdminSession),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Get возвращает сессию администратора, создавая её при необходимости
func (st *AdminStore) Get(adminID int64) *AdminSession {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[adminID]
	if !ok {
		s = newAdminSession(adminID)
		st.sessions[adminID] = s
	}
	return s
}

// Lock захватывает персональную блокировку администратора
// и возвращает функцию освобождения
func (st *AdminStore) Lock(adminID int64) func() {
	st.mu.Lock()
	l, ok := st.locks[adminID]
	if !ok {
		l = &sync.Mutex{}
		st.locks[adminID] = l
	}
	st.mu.Unlock()

	l.Lock()
	return l.Unlock
}
