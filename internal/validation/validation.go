package validation

import (
	"strconv"
	"strings"
	"time"

	"telegram_appointment_bot/internal/storage/models"
	apperrors "telegram_appointment_bot/pkg/errors"
)

// Границы значений, принимаемых от администратора
const (
	MinPrice           = 1
	MaxPrice           = 1_000_000
	MinDurationMinutes = 5
	MaxDurationMinutes = 600
	MaxServiceNameLen  = 100
)

// ParsePrice разбирает цену услуги из текстового ввода администратора
func ParsePrice(input string) (int, error) {
	price, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, apperrors.ErrInvalidPrice
	}
	if price < MinPrice || price > MaxPrice {
		return 0, apperrors.ErrInvalidPrice
	}
	return price, nil
}

// ParseDuration разбирает продолжительность услуги в минутах
func ParseDuration(input string) (int, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, apperrors.ErrInvalidDuration
	}
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return 0, apperrors.ErrInvalidDuration
	}
	return minutes, nil
}

// ParseServiceName проверяет название услуги
func ParseServiceName(input string) (string, error) {
	name := strings.TrimSpace(input)
	if name == "" || len([]rune(name)) > MaxServiceNameLen {
		return "", apperrors.ErrInvalidToken
	}
	return name, nil
}

// ValidateDate проверяет дату в каноническом формате
func ValidateDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return apperrors.ErrInvalidDate
	}
	return nil
}

// ValidateTime проверяет время начала окна
func ValidateTime(startTime string) error {
	if _, err := time.Parse(models.TimeLayout, startTime); err != nil {
		return apperrors.ErrInvalidTime
	}
	return nil
}
