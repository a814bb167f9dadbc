package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Reminder ReminderConfig `json:"reminder"`
	Studio   StudioConfig   `json:"studio"`
}

// TelegramConfig содержит настройки Telegram ботов
type TelegramConfig struct {
	UserBotToken  string  `json:"user_bot_token"`
	AdminBotToken string  `json:"admin_bot_token"`
	WebhookURL    string  `json:"webhook_url"`
	AdminChatIDs  []int64 `json:"admin_chat_ids"`
	ChannelID     string  `json:"channel_id"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string        `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
}

// DatabaseConfig содержит настройки базы данных
type DatabaseConfig struct {
	Path string `json:"path"`
}

// ReminderConfig содержит настройки напоминаний и автоотмены
type ReminderConfig struct {
	Interval    time.Duration `json:"interval"`
	Horizon     time.Duration `json:"horizon"`
	HalfWidth   time.Duration `json:"half_width"`
	GracePeriod time.Duration `json:"grace_period"`
	Timezone    string        `json:"timezone"`
}

// StudioConfig содержит настройки сетки окон для админ-пикера
type StudioConfig struct {
	DayStart     string `json:"day_start"`
	DayEnd       string `json:"day_end"`
	SlotStepMins int    `json:"slot_step_mins"`
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	adminIDs, err := parseAdminIDs(os.Getenv("ADMIN_CHAT_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADMIN_CHAT_IDS: %w", err)
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			UserBotToken:  os.Getenv("USER_BOT_TOKEN"),
			AdminBotToken: os.Getenv("ADMIN_BOT_TOKEN"),
			WebhookURL:    os.Getenv("WEBHOOK_URL"),
			AdminChatIDs:  adminIDs,
			ChannelID:     os.Getenv("NOTIFICATION_CHANNEL"),
		},
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Database: DatabaseConfig{
			Path: getEnv("DB_FILE", "appointments.db"),
		},
		Reminder: ReminderConfig{
			Interval:    getEnvAsDuration("REMINDER_INTERVAL", 15*time.Minute),
			Horizon:     getEnvAsDuration("REMINDER_HORIZON", 24*time.Hour),
			HalfWidth:   getEnvAsDuration("REMINDER_HALF_WIDTH", 40*time.Minute),
			GracePeriod: getEnvAsDuration("REMINDER_GRACE_PERIOD", 3*time.Hour),
			Timezone:    getEnv("TIMEZONE", "Europe/Moscow"),
		},
		Studio: StudioConfig{
			DayStart:     getEnv("DAY_START", "09:00"),
			DayEnd:       getEnv("DAY_END", "20:00"),
			SlotStepMins: getEnvAsInt("SLOT_STEP", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.Telegram.UserBotToken == "" {
		return fmt.Errorf("USER_BOT_TOKEN is required")
	}
	if c.Telegram.AdminBotToken == "" {
		return fmt.Errorf("ADMIN_BOT_TOKEN is required")
	}
	if c.Telegram.WebhookURL == "" {
		return fmt.Errorf("WEBHOOK_URL is required")
	}
	if len(c.Telegram.AdminChatIDs) == 0 {
		return fmt.Errorf("ADMIN_CHAT_IDS is required")
	}

	if _, err := time.LoadLocation(c.Reminder.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE: %w", err)
	}

	if _, err := time.Parse("15:04", c.Studio.DayStart); err != nil {
		return fmt.Errorf("invalid DAY_START format (expected HH:MM): %w", err)
	}
	if _, err := time.Parse("15:04", c.Studio.DayEnd); err != nil {
		return fmt.Errorf("invalid DAY_END format (expected HH:MM): %w", err)
	}

	if c.Studio.SlotStepMins <= 0 {
		return fmt.Errorf("SLOT_STEP must be positive")
	}
	if c.Reminder.Interval <= 0 {
		return fmt.Errorf("REMINDER_INTERVAL must be positive")
	}
	if c.Reminder.HalfWidth <= 0 || c.Reminder.HalfWidth >= c.Reminder.Horizon {
		return fmt.Errorf("REMINDER_HALF_WIDTH must be positive and less than REMINDER_HORIZON")
	}
	if c.Reminder.GracePeriod <= 0 {
		return fmt.Errorf("REMINDER_GRACE_PERIOD must be positive")
	}

	return nil
}

// IsAdmin проверяет, входит ли чат в список администраторов
func (c *Config) IsAdmin(chatID int64) bool {
	for _, id := range c.Telegram.AdminChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// parseAdminIDs разбирает список идентификаторов через запятую
func parseAdminIDs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// getEnv получает переменную окружения или возвращает значение по умолчанию
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvAsInt получает переменную окружения как число
func getEnvAsInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvAsDuration получает переменную окружения как duration
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
