package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"telegram_appointment_bot/internal/storage/models"
	apperrors "telegram_appointment_bot/pkg/errors"

	_ "modernc.org/sqlite"
)

// SQLiteStorage реализует интерфейс Storage для SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// New создает новое подключение к SQLite базе данных
func New(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite поддерживает только одно write-подключение
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	storage := &SQLiteStorage{db: db}

	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return storage, nil
}

// migrate выполняет миграции базы данных
func (s *SQLiteStorage) migrate() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if _, err := s.db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS services (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			price INTEGER NOT NULL,
			active INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS slots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			occupied INTEGER NOT NULL DEFAULT 0,
			UNIQUE(date, start_time)
		)`,
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			start_time TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			reminder_sent INTEGER NOT NULL DEFAULT 0,
			reminder_sent_at DATETIME,
			reminder_confirmed INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS booking_services (
			booking_id INTEGER NOT NULL,
			service_id INTEGER NOT NULL,
			name TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			price INTEGER NOT NULL,
			FOREIGN KEY(booking_id) REFERENCES bookings(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS studio (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			name TEXT NOT NULL DEFAULT 'Студия красоты',
			address TEXT NOT NULL DEFAULT 'Адрес не указан',
			phone TEXT NOT NULL DEFAULT 'Телефон не указан',
			instagram TEXT NOT NULL DEFAULT '',
			telegram TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS channel_posts (
			admin_id INTEGER PRIMARY KEY,
			message_id INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_date ON slots(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_date ON bookings(date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_reminder ON bookings(reminder_sent, reminder_confirmed)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_services_booking ON booking_services(booking_id)`,
		`INSERT OR IGNORE INTO studio (id) VALUES (1)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration query: %w", err)
		}
	}

	return nil
}

// Close закрывает подключение к базе данных
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping проверяет подключение к базе данных
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Пользователи ---

// SaveUser сохраняет пользователя, обновляя профиль при повторном заходе
func (s *SQLiteStorage) SaveUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, username, first_name, last_name, phone)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(id) DO UPDATE SET
				username = excluded.username,
				first_name = excluded.first_name,
				last_name = excluded.last_name,
				phone = CASE WHEN excluded.phone != '' THEN excluded.phone ELSE users.phone END`

	_, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.FirstName, user.LastName, user.Phone)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}

// GetUser получает пользователя по chat id
func (s *SQLiteStorage) GetUser(ctx context.Context, chatID int64) (*models.User, error) {
	user := &models.User{}
	query := `SELECT id, username, first_name, last_name, phone, created_at
			  FROM users WHERE id = ?`

	err := s.db.QueryRowContext(ctx, query, chatID).Scan(
		&user.ID, &user.Username, &user.FirstName, &user.LastName, &user.Phone, &user.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

// UpdateUserPhone обновляет телефон пользователя
func (s *SQLiteStorage) UpdateUserPhone(ctx context.Context, chatID int64, phone string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET phone = ? WHERE id = ?`, phone, chatID)
	if err != nil {
		return fmt.Errorf("failed to update user phone: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrUserNotFound
	}

	return nil
}

// --- Каталог услуг ---

// CreateService создает услугу
func (s *SQLiteStorage) CreateService(ctx context.Context, service *models.Service) error {
	query := `INSERT INTO services (name, duration_minutes, price, active) VALUES (?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query, service.Name, service.DurationMinutes, service.Price, service.Active)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get service ID: %w", err)
	}

	service.ID = int(id)
	return nil
}

// ActiveServices возвращает активные услуги каталога
func (s *SQLiteStorage) ActiveServices(ctx context.Context) ([]*models.Service, error) {
	query := `SELECT id, name, duration_minutes, price, active
			  FROM services WHERE active = 1 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active services: %w", err)
	}
	defer rows.Close()

	var services []*models.Service
	for rows.Next() {
		svc := &models.Service{}
		if err := rows.Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.Price, &svc.Active); err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, svc)
	}

	return services, rows.Err()
}

// GetService получает услугу по id
func (s *SQLiteStorage) GetService(ctx context.Context, id int) (*models.Service, error) {
	svc := &models.Service{}
	query := `SELECT id, name, duration_minutes, price, active FROM services WHERE id = ?`

	err := s.db.QueryRowContext(ctx, query, id).Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.Price, &svc.Active)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrServiceNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", err)
	}

	return svc, nil
}

// UpdateServicePrice обновляет цену услуги
func (s *SQLiteStorage) UpdateServicePrice(ctx context.Context, id, price int) error {
	return s.updateServiceField(ctx, id, `UPDATE services SET price = ? WHERE id = ?`, price)
}

// UpdateServiceDuration обновляет продолжительность услуги
func (s *SQLiteStorage) UpdateServiceDuration(ctx context.Context, id, durationMinutes int) error {
	return s.updateServiceField(ctx, id, `UPDATE services SET duration_minutes = ? WHERE id = ?`, durationMinutes)
}

func (s *SQLiteStorage) updateServiceField(ctx context.Context, id int, query string, value int) error {
	result, err := s.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrServiceNotFound
	}

	return nil
}

// DeleteService удаляет услугу из каталога.
// Снимки в booking_services не трогаются.
func (s *SQLiteStorage) DeleteService(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM services WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrServiceNotFound
	}

	return nil
}

// --- Слоты ---

// CreateSlot создает временное окно
func (s *SQLiteStorage) CreateSlot(ctx context.Context, slot *models.Slot) error {
	query := `INSERT INTO slots (date, start_time, active, occupied) VALUES (?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query, slot.Date, slot.StartTime, slot.Active, slot.Occupied)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get slot ID: %w", err)
	}

	slot.ID = int(id)
	return nil
}

// GetSlot получает окно по id
func (s *SQLiteStorage) GetSlot(ctx context.Context, id int) (*models.Slot, error) {
	slot := &models.Slot{}
	query := `SELECT id, date, start_time, active, occupied FROM slots WHERE id = ?`

	err := s.db.QueryRowContext(ctx, query, id).Scan(&slot.ID, &slot.Date, &slot.StartTime, &slot.Active, &slot.Occupied)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrSlotNotFound
		}
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}

	return slot, nil
}

// DeleteSlot удаляет окно
func (s *SQLiteStorage) DeleteSlot(ctx context.Context, id int) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrSlotNotFound
	}

	return nil
}

// SetSlotActive включает или выключает окно без его удаления
func (s *SQLiteStorage) SetSlotActive(ctx context.Context, id int, active bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE slots SET active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return apperrors.ErrSlotNotFound
	}

	return nil
}

// ReserveSlot атомарно занимает свободное активное окно.
// Условный UPDATE гарантирует ровно одного победителя
// при одновременных попытках занять одно и то же окно.
func (s *SQLiteStorage) ReserveSlot(ctx context.Context, date, startTime string) error {
	return reserveSlot(ctx, s.db, date, startTime)
}

// dbtx покрывает общие методы *sql.DB и *sql.Tx,
// чтобы операции аллокатора работали и внутри транзакций
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func reserveSlot(ctx context.Context, db dbtx, date, startTime string) error {
	query := `UPDATE slots SET occupied = 1
			  WHERE date = ? AND start_time = ? AND active = 1 AND occupied = 0`

	result, err := db.ExecContext(ctx, query, date, startTime)
	if err != nil {
		return fmt.Errorf("failed to reserve slot: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// Различаем "занято" и "нет такого окна"
	var exists bool
	row := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM slots WHERE date = ? AND start_time = ? AND active = 1)`, date, startTime)
	if err := row.Scan(&exists); err != nil {
		return fmt.Errorf("failed to check slot existence: %w", err)
	}
	if exists {
		return apperrors.ErrSlotTaken
	}
	return apperrors.ErrSlotNotFound
}

// ReleaseSlot освобождает окно; идемпотентна
func (s *SQLiteStorage) ReleaseSlot(ctx context.Context, date, startTime string) error {
	return releaseSlot(ctx, s.db, date, startTime)
}

func releaseSlot(ctx context.Context, db dbtx, date, startTime string) error {
	_, err := db.ExecContext(ctx, `UPDATE slots SET occupied = 0 WHERE date = ? AND start_time = ?`, date, startTime)
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	return nil
}

// FreeSlots возвращает свободные активные окна диапазона,
// исключая прошедшие времена для сегодняшней даты
func (s *SQLiteStorage) FreeSlots(ctx context.Context, fromDate, toDate string, now time.Time) ([]*models.Slot, error) {
	today := now.Format(models.DateLayout)
	nowTime := now.Format(models.TimeLayout)

	query := `SELECT id, date, start_time, active, occupied
			  FROM slots
			  WHERE active = 1 AND occupied = 0
				AND date >= ? AND date <= ?
				AND (date != ? OR start_time > ?)
			  ORDER BY date, start_time`

	rows, err := s.db.QueryContext(ctx, query, fromDate, toDate, today, nowTime)
	if err != nil {
		return nil, fmt.Errorf("failed to get free slots: %w", err)
	}
	defer rows.Close()

	return scanSlots(rows)
}

// SlotsForDate возвращает все активные окна даты, включая занятые
func (s *SQLiteStorage) SlotsForDate(ctx context.Context, date string) ([]*models.Slot, error) {
	query := `SELECT id, date, start_time, active, occupied
			  FROM slots WHERE date = ? AND active = 1
			  ORDER BY start_time`

	rows, err := s.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("failed to get slots for date: %w", err)
	}
	defer rows.Close()

	return scanSlots(rows)
}

// BookingCountForSlot возвращает число записей, привязанных к окну.
// По инварианту аллокатора значение 0 или 1, но считаем честно.
func (s *SQLiteStorage) BookingCountForSlot(ctx context.Context, date, startTime string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM bookings WHERE date = ? AND start_time = ?`

	if err := s.db.QueryRowContext(ctx, query, date, startTime).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count bookings for slot: %w", err)
	}

	return count, nil
}

func scanSlots(rows *sql.Rows) ([]*models.Slot, error) {
	var slots []*models.Slot
	for rows.Next() {
		slot := &models.Slot{}
		if err := rows.Scan(&slot.ID, &slot.Date, &slot.StartTime, &slot.Active, &slot.Occupied); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, slot)
	}
	return slots, rows.Err()
}

// --- Записи ---

// CreateBooking в одной транзакции занимает слот и создаёт запись
// со снимками услуг
func (s *SQLiteStorage) CreateBooking(ctx context.Context, userID int64, date, startTime string, services []*models.Service, createdAt time.Time) (*models.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := reserveSlot(ctx, tx, date, startTime); err != nil {
		return nil, err
	}

	createdAt = createdAt.UTC()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (user_id, date, start_time, created_at, reminder_sent, reminder_confirmed)
		 VALUES (?, ?, ?, ?, 0, 0)`,
		userID, date, startTime, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get booking ID: %w", err)
	}

	booking := &models.Booking{
		ID:        int(id),
		UserID:    userID,
		Date:      date,
		StartTime: startTime,
		CreatedAt: createdAt,
	}

	for _, svc := range services {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO booking_services (booking_id, service_id, name, duration_minutes, price)
			 VALUES (?, ?, ?, ?, ?)`,
			booking.ID, svc.ID, svc.Name, svc.DurationMinutes, svc.Price)
		if err != nil {
			return nil, fmt.Errorf("failed to link service: %w", err)
		}
		booking.Services = append(booking.Services, models.BookingService{
			BookingID:       booking.ID,
			ServiceID:       svc.ID,
			Name:            svc.Name,
			DurationMinutes: svc.DurationMinutes,
			Price:           svc.Price,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking: %w", err)
	}

	return booking, nil
}

// DeleteBooking в одной транзакции удаляет запись со связями
// и освобождает её слот
func (s *SQLiteStorage) DeleteBooking(ctx context.Context, id int) (*models.Booking, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	booking, err := s.getBooking(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_services WHERE booking_id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete booking services: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("failed to delete booking: %w", err)
	}

	if err := releaseSlot(ctx, tx, booking.Date, booking.StartTime); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit booking deletion: %w", err)
	}

	return booking, nil
}

// GetBooking получает запись по id вместе со снимками услуг
func (s *SQLiteStorage) GetBooking(ctx context.Context, id int) (*models.Booking, error) {
	return s.getBooking(ctx, s.db, id)
}

func (s *SQLiteStorage) getBooking(ctx context.Context, db dbtx, id int) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT id, user_id, date, start_time, created_at, reminder_sent, reminder_sent_at, reminder_confirmed
			  FROM bookings WHERE id = ?`

	err := db.QueryRowContext(ctx, query, id).Scan(
		&booking.ID, &booking.UserID, &booking.Date, &booking.StartTime,
		&booking.CreatedAt, &booking.ReminderSent, &booking.ReminderSentAt, &booking.ReminderConfirmed,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperrors.ErrBookingNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	if err := s.loadBookingServices(ctx, db, booking); err != nil {
		return nil, err
	}

	return booking, nil
}

func (s *SQLiteStorage) loadBookingServices(ctx context.Context, db dbtx, booking *models.Booking) error {
	rows, err := db.QueryContext(ctx,
		`SELECT booking_id, service_id, name, duration_minutes, price
		 FROM booking_services WHERE booking_id = ?`, booking.ID)
	if err != nil {
		return fmt.Errorf("failed to get booking services: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bs models.BookingService
		if err := rows.Scan(&bs.BookingID, &bs.ServiceID, &bs.Name, &bs.DurationMinutes, &bs.Price); err != nil {
			return fmt.Errorf("failed to scan booking service: %w", err)
		}
		booking.Services = append(booking.Services, bs)
	}

	return rows.Err()
}

// UserBookings возвращает записи пользователя, сначала новые
func (s *SQLiteStorage) UserBookings(ctx context.Context, userID int64) ([]*models.Booking, error) {
	query := `SELECT id, user_id, date, start_time, created_at, reminder_sent, reminder_sent_at, reminder_confirmed
			  FROM bookings WHERE user_id = ?
			  ORDER BY date DESC, start_time DESC`

	return s.queryBookings(ctx, query, userID)
}

// AllBookings возвращает все записи для административного просмотра
func (s *SQLiteStorage) AllBookings(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT id, user_id, date, start_time, created_at, reminder_sent, reminder_sent_at, reminder_confirmed
			  FROM bookings ORDER BY date, start_time`

	return s.queryBookings(ctx, query)
}

// BookingsWithoutReminder возвращает записи без отправленного напоминания
func (s *SQLiteStorage) BookingsWithoutReminder(ctx context.Context) ([]*models.Booking, error) {
	query := `SELECT id, user_id, date, start_time, created_at, reminder_sent, reminder_sent_at, reminder_confirmed
			  FROM bookings WHERE reminder_sent = 0
			  ORDER BY date, start_time`

	return s.queryBookings(ctx, query)
}

// BookingsForAutoCancel возвращает записи с неподтверждённым
// напоминанием, отправленным раньше cutoff
func (s *SQLiteStorage) BookingsForAutoCancel(ctx context.Context, cutoff time.Time) ([]*models.Booking, error) {
	query := `SELECT id, user_id, date, start_time, created_at, reminder_sent, reminder_sent_at, reminder_confirmed
			  FROM bookings
			  WHERE reminder_sent = 1 AND reminder_confirmed = 0 AND reminder_sent_at < ?
			  ORDER BY date, start_time`

	return s.queryBookings(ctx, query, cutoff)
}

func (s *SQLiteStorage) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking := &models.Booking{}
		err := rows.Scan(
			&booking.ID, &booking.UserID, &booking.Date, &booking.StartTime,
			&booking.CreatedAt, &booking.ReminderSent, &booking.ReminderSentAt, &booking.ReminderConfirmed,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, booking := range bookings {
		if err := s.loadBookingServices(ctx, s.db, booking); err != nil {
			return nil, err
		}
	}

	return bookings, nil
}

// MarkReminderSent помечает запись как напомненную
func (s *SQLiteStorage) MarkReminderSent(ctx context.Context, id int, sentAt time.Time) error {
	query := `UPDATE bookings SET reminder_sent = 1, reminder_sent_at = ? WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, query, sentAt, id); err != nil {
		return fmt.Errorf("failed to mark reminder sent: %w", err)
	}

	return nil
}

// ConfirmReminder подтверждает напоминание; отсутствие записи не является ошибкой
func (s *SQLiteStorage) ConfirmReminder(ctx context.Context, id int) error {
	query := `UPDATE bookings SET reminder_confirmed = 1 WHERE id = ?`

	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to confirm reminder: %w", err)
	}

	return nil
}

// --- Студия ---

// GetStudio возвращает единственную строку настроек студии
func (s *SQLiteStorage) GetStudio(ctx context.Context) (*models.Studio, error) {
	studio := &models.Studio{}
	query := `SELECT id, name, address, phone, instagram, telegram, description FROM studio WHERE id = 1`

	err := s.db.QueryRowContext(ctx, query).Scan(
		&studio.ID, &studio.Name, &studio.Address, &studio.Phone,
		&studio.Instagram, &studio.Telegram, &studio.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get studio: %w", err)
	}

	return studio, nil
}

// UpdateStudio обновляет настройки студии
func (s *SQLiteStorage) UpdateStudio(ctx context.Context, studio *models.Studio) error {
	query := `UPDATE studio SET name = ?, address = ?, phone = ?, instagram = ?, telegram = ?, description = ?
			  WHERE id = 1`

	_, err := s.db.ExecContext(ctx, query,
		studio.Name, studio.Address, studio.Phone, studio.Instagram, studio.Telegram, studio.Description)
	if err != nil {
		return fmt.Errorf("failed to update studio: %w", err)
	}

	return nil
}

// --- Сообщения канала ---

// LastChannelMessageID возвращает id последнего сообщения канала
// для админа; 0 означает, что сообщения ещё не было
func (s *SQLiteStorage) LastChannelMessageID(ctx context.Context, adminID int64) (int, error) {
	var messageID int
	query := `SELECT message_id FROM channel_posts WHERE admin_id = ?`

	err := s.db.QueryRowContext(ctx, query, adminID).Scan(&messageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get channel message id: %w", err)
	}

	return messageID, nil
}

// SetLastChannelMessageID запоминает id последнего сообщения канала
func (s *SQLiteStorage) SetLastChannelMessageID(ctx context.Context, adminID int64, messageID int) error {
	query := `INSERT INTO channel_posts (admin_id, message_id) VALUES (?, ?)
			  ON CONFLICT(admin_id) DO UPDATE SET message_id = excluded.message_id`

	if _, err := s.db.ExecContext(ctx, query, adminID, messageID); err != nil {
		return fmt.Errorf("failed to set channel message id: %w", err)
	}

	return nil
}
