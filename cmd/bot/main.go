package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/joho/godotenv"

	"telegram_appointment_bot/internal/admin"
	botpkg "telegram_appointment_bot/internal/bot"
	"telegram_appointment_bot/internal/bot/service"
	"telegram_appointment_bot/internal/booking"
	"telegram_appointment_bot/internal/clock"
	"telegram_appointment_bot/internal/config"
	"telegram_appointment_bot/internal/notify"
	"telegram_appointment_bot/internal/reminder"
	"telegram_appointment_bot/internal/server"
	"telegram_appointment_bot/internal/session"
	"telegram_appointment_bot/internal/storage/sqlite"
	"telegram_appointment_bot/pkg/logger"
)

// Горизонт дайджеста свободных окон в канале
const channelDigestHorizon = 14 * 24 * time.Hour

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		log.Printf(".env не найден, используем переменные окружения")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLog := logger.New(logger.LevelInfo)
	appLog.Info("конфигурация загружена")

	clk, err := clock.NewSystem(cfg.Reminder.Timezone)
	if err != nil {
		log.Fatalf("Failed to load timezone: %v", err)
	}

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing storage: %v", err)
		}
	}()
	appLog.Info("хранилище инициализировано", logger.String("path", cfg.Database.Path))

	userBot, err := tgbot.New(cfg.Telegram.UserBotToken)
	if err != nil {
		log.Fatalf("Failed to create user bot: %v", err)
	}
	adminBot, err := tgbot.New(cfg.Telegram.AdminBotToken)
	if err != nil {
		log.Fatalf("Failed to create admin bot: %v", err)
	}
	appLog.Info("боты созданы")

	sender := notify.NewTelegramSender(userBot, adminBot, cfg.Telegram.AdminChatIDs, cfg.Telegram.ChannelID, appLog)
	notifier := notify.NewNotifier(sender, store, clk, channelDigestHorizon, appLog)

	ledger := booking.NewLedger(store, clk, appLog)

	// Любое изменение расписания обновляет дайджест в канале
	ledger.OnSlotsChanged(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := notifier.PublishFreeSlots(ctx); err != nil {
			appLog.Error("не удалось обновить дайджест канала", logger.Error(err))
		}
	})

	botService := service.New(userBot, store, ledger, session.NewStore(), notifier, clk, cfg, appLog)
	dispatcher := botpkg.NewDispatcher(botService)
	adminHandler := admin.NewHandler(adminBot, store, ledger, notifier, session.NewAdminStore(), clk, cfg, appLog)

	if err := setupWebhook(userBot, cfg.Telegram.WebhookURL+"/webhook/user"); err != nil {
		log.Fatalf("Failed to setup user webhook: %v", err)
	}
	if err := setupWebhook(adminBot, cfg.Telegram.WebhookURL+"/webhook/admin"); err != nil {
		log.Fatalf("Failed to setup admin webhook: %v", err)
	}
	appLog.Info("webhook настроены")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := reminder.New(store, ledger, sender, notifier, clk, cfg.Reminder, appLog)
	go scheduler.Run(ctx)

	srv := server.New(cfg, appLog, store, dispatcher, adminHandler, userBot, adminBot)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		appLog.Info("получен сигнал завершения")
		cancel()
	}()

	appLog.Info("HTTP сервер запускается", logger.String("port", cfg.Server.Port))
	if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	appLog.Info("сервер остановлен")
}

// setupWebhook переустанавливает webhook бота на заданный URL
func setupWebhook(b *tgbot.Bot, webhookURL string) error {
	ctx := context.Background()

	if _, err := b.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{}); err != nil {
		log.Printf("Warning: failed to delete existing webhook: %v", err)
	}

	if _, err := b.SetWebhook(ctx, &tgbot.SetWebhookParams{URL: webhookURL}); err != nil {
		return err
	}

	log.Printf("Webhook set to %s", webhookURL)
	return nil
}
