package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"telegram_appointment_bot/internal/storage"
	"telegram_appointment_bot/pkg/metrics"
)

// HealthResponse представляет ответ health check
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker проверяет состояние системы
type HealthChecker struct {
	storage   storage.Storage
	startTime time.Time
}

// NewHealthChecker создает новый health checker
func NewHealthChecker(storage storage.Storage) *HealthChecker {
	return &HealthChecker{
		storage:   storage,
		startTime: time.Now(),
	}
}

// HealthHandler обрабатывает запросы health check
func (h *HealthChecker) HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	overallStatus := "healthy"

	if err := h.checkDatabase(ctx); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
	} else {
		checks["database"] = "healthy"
	}

	if memStatus := h.checkMemory(); memStatus != "healthy" {
		checks["memory"] = memStatus
		if overallStatus == "healthy" {
			overallStatus = "warning"
		}
	} else {
		checks["memory"] = "healthy"
	}

	if goroutineStatus := h.checkGoroutines(); goroutineStatus != "healthy" {
		checks["goroutines"] = goroutineStatus
		if overallStatus == "healthy" {
			overallStatus = "warning"
		}
	} else {
		checks["goroutines"] = "healthy"
	}

	response := HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(h.startTime).String(),
		Checks:    checks,
	}

	w.Header().Set("Content-Type", "application/json")
	if overallStatus == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkDatabase проверяет соединение с базой данных
func (h *HealthChecker) checkDatabase(ctx context.Context) error {
	if h.storage == nil {
		return nil
	}
	return h.storage.Ping(ctx)
}

// checkMemory проверяет использование памяти
func (h *HealthChecker) checkMemory() string {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	metrics.MemoryUsage.Set(float64(m.Alloc))

	const warningLimit = 500 * 1024 * 1024   // 500MB
	const criticalLimit = 1024 * 1024 * 1024 // 1GB

	if m.Alloc > criticalLimit {
		return "critical: memory usage > 1GB"
	} else if m.Alloc > warningLimit {
		return "warning: memory usage > 500MB"
	}

	return "healthy"
}

// checkGoroutines проверяет количество горутин
func (h *HealthChecker) checkGoroutines() string {
	count := float64(runtime.NumGoroutine())

	metrics.GoroutinesCount.Set(count)

	const warningLimit = 100
	const criticalLimit = 1000

	if count > criticalLimit {
		return "critical: too many goroutines"
	} else if count > warningLimit {
		return "warning: high goroutine count"
	}

	return "healthy"
}
