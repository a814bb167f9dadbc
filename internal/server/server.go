package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"telegram_appointment_bot/internal/config"
	"telegram_appointment_bot/internal/middleware"
	"telegram_appointment_bot/internal/storage"
	"telegram_appointment_bot/pkg/logger"
)

// UpdateHandler обрабатывает обновление Telegram
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, b *tgbot.Bot, update *tgmodels.Update)
}

// Server представляет HTTP сервер с двумя webhook-маршрутами:
// клиентский бот и админский бот принимают обновления раздельно.
type Server struct {
	httpServer    *http.Server
	config        *config.Config
	log           *logger.Logger
	rateLimiter   *middleware.RateLimiter
	healthChecker *HealthChecker

	userHandler  UpdateHandler
	adminHandler UpdateHandler
	userBot      *tgbot.Bot
	adminBot     *tgbot.Bot
}

// New создает новый HTTP сервер
func New(
	cfg *config.Config,
	log *logger.Logger,
	store storage.Storage,
	userHandler UpdateHandler,
	adminHandler UpdateHandler,
	userBot *tgbot.Bot,
	adminBot *tgbot.Bot,
) *Server {
	s := &Server{
		config:        cfg,
		log:           log.WithFields(logger.String("component", "server")),
		rateLimiter:   middleware.NewRateLimiter(100, time.Minute, log),
		healthChecker: NewHealthChecker(store),
		userHandler:   userHandler,
		adminHandler:  adminHandler,
		userBot:       userBot,
		adminBot:      adminBot,
	}

	s.httpServer = &http.Server{
		Addr:           ":" + cfg.Server.Port,
		Handler:        s.setupRoutes(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	return s
}

// setupRoutes настраивает маршруты с middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthChecker.HealthHandler)
	mux.HandleFunc("/webhook/user", s.webhookHandler(s.userHandler, s.userBot))
	mux.HandleFunc("/webhook/admin", s.webhookHandler(s.adminHandler, s.adminBot))

	// Метрики Prometheus
	mux.Handle("/metrics", promhttp.Handler())

	return s.applyMiddleware(mux)
}

// applyMiddleware применяет middleware в обратном порядке:
// последний применённый выполняется первым
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	h := handler
	h = middleware.Prometheus(h)
	h = middleware.RateLimit(s.rateLimiter)(h)
	return h
}

// webhookHandler строит обработчик webhook для заданного бота
func (s *Server) webhookHandler(handler UpdateHandler, b *tgbot.Bot) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var update tgmodels.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			s.log.Error("не удалось декодировать обновление", logger.Error(err))
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		handler.HandleUpdate(ctx, b, &update)

		w.WriteHeader(http.StatusOK)
	}
}

// Start запускает сервер и блокируется до отмены контекста
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("HTTP сервер запускается", logger.String("addr", s.httpServer.Addr))

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown корректно завершает работу сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("HTTP сервер останавливается")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if s.rateLimiter != nil {
		s.rateLimiter.Close()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.log.Error("ошибка при остановке сервера", logger.Error(err))
		return err
	}

	s.log.Info("HTTP сервер остановлен")
	return nil
}
