package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики бота записи
var (
	// Метрики записей
	BookingsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointment_bot_bookings_created_total",
			Help: "Общее количество созданных записей",
		},
	)

	BookingsCancelled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_bot_bookings_cancelled_total",
			Help: "Общее количество отменённых записей по причинам",
		},
		[]string{"reason"}, // user, admin, auto
	)

	// Метрики слотов
	SlotsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointment_bot_slots_created_total",
			Help: "Общее количество созданных временных окон",
		},
	)

	ReserveConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointment_bot_reserve_conflicts_total",
			Help: "Количество попыток занять уже занятый слот",
		},
	)

	// Метрики напоминаний
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_bot_reminders_sent_total",
			Help: "Количество отправленных напоминаний",
		},
		[]string{"status"}, // ok, error
	)

	AutoCancellations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "appointment_bot_auto_cancellations_total",
			Help: "Количество автоотмен из-за неподтверждённых напоминаний",
		},
	)

	// Метрики уведомлений
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_bot_notifications_sent_total",
			Help: "Количество отправленных уведомлений",
		},
		[]string{"type", "status"},
	)

	// Метрики производительности
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "appointment_bot_memory_usage_bytes",
			Help: "Использование памяти в байтах",
		},
	)

	GoroutinesCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "appointment_bot_goroutines_count",
			Help: "Количество активных горутин",
		},
	)

	// Метрики HTTP сервера
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "appointment_bot_http_requests_total",
			Help: "Общее количество HTTP запросов",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "appointment_bot_http_request_duration_seconds",
			Help:    "Время обработки HTTP запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordBookingCreated записывает метрику создания записи
func RecordBookingCreated() {
	BookingsCreated.Inc()
}

// RecordBookingCancelled записывает метрику отмены записи
func RecordBookingCancelled(reason string) {
	BookingsCancelled.WithLabelValues(reason).Inc()
}

// RecordReserveConflict записывает метрику конфликта резервирования
func RecordReserveConflict() {
	ReserveConflicts.Inc()
}

// RecordReminder записывает метрику отправки напоминания
func RecordReminder(status string) {
	RemindersSent.WithLabelValues(status).Inc()
}

// RecordNotification записывает метрику отправки уведомления
func RecordNotification(notificationType, status string) {
	NotificationsSent.WithLabelValues(notificationType, status).Inc()
}

// RecordHTTPRequest записывает метрику HTTP запроса
func RecordHTTPRequest(method, endpoint, status string) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
}
