package models

import (
	"fmt"
	"time"
)

// DateLayout и TimeLayout задают канонические форматы даты и времени слота
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// User представляет пользователя системы с ключом по Telegram chat id
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DisplayName возвращает имя для уведомлений администратору
func (u *User) DisplayName() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	name := u.FirstName
	if u.LastName != "" {
		name += " " + u.LastName
	}
	if name == "" {
		return "Не указан"
	}
	return name
}

// Service представляет услугу из каталога
type Service struct {
	ID              int    `json:"id" db:"id"`
	Name            string `json:"name" db:"name"`
	DurationMinutes int    `json:"duration_minutes" db:"duration_minutes"`
	Price           int    `json:"price" db:"price"`
	Active          bool   `json:"active" db:"active"`
}

// Slot представляет временное окно для записи
type Slot struct {
	ID        int    `json:"id" db:"id"`
	Date      string `json:"date" db:"date"`
	StartTime string `json:"start_time" db:"start_time"`
	Active    bool   `json:"active" db:"active"`
	Occupied  bool   `json:"occupied" db:"occupied"`
}

// IsAvailable проверяет, доступен ли слот для бронирования
func (s *Slot) IsAvailable() bool {
	return s.Active && !s.Occupied
}

// StartAt возвращает момент начала слота в зоне loc
func (s *Slot) StartAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, s.Date+" "+s.StartTime, loc)
}

// Booking представляет подтверждённую запись на слот
type Booking struct {
	ID                int              `json:"id" db:"id"`
	UserID            int64            `json:"user_id" db:"user_id"`
	Date              string           `json:"date" db:"date"`
	StartTime         string           `json:"start_time" db:"start_time"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	ReminderSent      bool             `json:"reminder_sent" db:"reminder_sent"`
	ReminderSentAt    *time.Time       `json:"reminder_sent_at,omitempty" db:"reminder_sent_at"`
	ReminderConfirmed bool             `json:"reminder_confirmed" db:"reminder_confirmed"`
	Services          []BookingService `json:"services,omitempty"`
}

// StartAt возвращает момент начала записи в зоне loc
func (b *Booking) StartAt(loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(DateLayout+" "+TimeLayout, b.Date+" "+b.StartTime, loc)
}

// TotalDuration возвращает суммарную продолжительность услуг записи
func (b *Booking) TotalDuration() time.Duration {
	var mins int
	for _, s := range b.Services {
		mins += s.DurationMinutes
	}
	return time.Duration(mins) * time.Minute
}

// TotalPrice возвращает суммарную стоимость услуг записи
func (b *Booking) TotalPrice() int {
	var total int
	for _, s := range b.Services {
		total += s.Price
	}
	return total
}

// ServiceNames возвращает названия услуг записи
func (b *Booking) ServiceNames() []string {
	names := make([]string, 0, len(b.Services))
	for _, s := range b.Services {
		names = append(names, s.Name)
	}
	return names
}

// BookingService хранит снимок услуги на момент создания записи.
// Цена и продолжительность фиксируются здесь и не меняются
// при последующих правках каталога.
type BookingService struct {
	BookingID       int    `json:"booking_id" db:"booking_id"`
	ServiceID       int    `json:"service_id" db:"service_id"`
	Name            string `json:"name" db:"name"`
	DurationMinutes int    `json:"duration_minutes" db:"duration_minutes"`
	Price           int    `json:"price" db:"price"`
}

// Studio представляет единственную строку с настройками студии
type Studio struct {
	ID          int    `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Address     string `json:"address" db:"address"`
	Phone       string `json:"phone" db:"phone"`
	Instagram   string `json:"instagram" db:"instagram"`
	Telegram    string `json:"telegram" db:"telegram"`
	Description string `json:"description" db:"description"`
}

// FormatSlotKey возвращает человекочитаемый ключ слота для логов
func FormatSlotKey(date, startTime string) string {
	return fmt.Sprintf("%s %s", date, startTime)
}
