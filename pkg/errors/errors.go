package errors

import "fmt"

// BotError представляет ошибку бота с кодом и контекстом
type BotError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Err     error       `json:"-"`
	Context interface{} `json:"context,omitempty"`
}

// Error реализует интерфейс error
func (e *BotError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap позволяет использовать errors.Is и errors.As
func (e *BotError) Unwrap() error {
	return e.Err
}

// Is сравнивает ошибки по коду, чтобы errors.Is распознавал
// обёрнутые варианты предопределённых ошибок
func (e *BotError) Is(target error) bool {
	t, ok := target.(*BotError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithContext добавляет контекст к ошибке
func (e *BotError) WithContext(ctx interface{}) *BotError {
	return &BotError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Context: ctx,
	}
}

// WithError добавляет underlying ошибку
func (e *BotError) WithError(err error) *BotError {
	return &BotError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
		Context: e.Context,
	}
}

// Предопределенные ошибки
var (
	// Ошибки слотов
	ErrSlotNotFound = &BotError{
		Code:    "SLOT_NOT_FOUND",
		Message: "слот не найден",
	}

	ErrSlotTaken = &BotError{
		Code:    "SLOT_TAKEN",
		Message: "слот уже занят",
	}

	// Ошибки записей
	ErrBookingNotFound = &BotError{
		Code:    "BOOKING_NOT_FOUND",
		Message: "запись не найдена",
	}

	// Ошибки каталога услуг
	ErrServiceNotFound = &BotError{
		Code:    "SERVICE_NOT_FOUND",
		Message: "услуга не найдена",
	}

	ErrNoServicesSelected = &BotError{
		Code:    "NO_SERVICES_SELECTED",
		Message: "не выбрана ни одна услуга",
	}

	// Ошибки переходов диалога
	ErrGuardNotMet = &BotError{
		Code:    "GUARD_NOT_MET",
		Message: "не выполнено условие перехода",
	}

	// Ошибки валидации
	ErrInvalidToken = &BotError{
		Code:    "INVALID_TOKEN",
		Message: "некорректный токен выбора",
	}

	ErrInvalidDate = &BotError{
		Code:    "INVALID_DATE",
		Message: "некорректная дата",
	}

	ErrInvalidTime = &BotError{
		Code:    "INVALID_TIME",
		Message: "некорректное время",
	}

	ErrInvalidPrice = &BotError{
		Code:    "INVALID_PRICE",
		Message: "некорректная цена",
	}

	ErrInvalidDuration = &BotError{
		Code:    "INVALID_DURATION",
		Message: "некорректная продолжительность",
	}

	// Ошибки пользователей
	ErrUserNotFound = &BotError{
		Code:    "USER_NOT_FOUND",
		Message: "пользователь не найден",
	}

	ErrNotAdmin = &BotError{
		Code:    "NOT_ADMIN",
		Message: "нет прав администратора",
	}

	// Системные ошибки
	ErrDatabaseConnection = &BotError{
		Code:    "DATABASE_CONNECTION",
		Message: "ошибка подключения к базе данных",
	}

	ErrConfigurationInvalid = &BotError{
		Code:    "CONFIGURATION_INVALID",
		Message: "некорректная конфигурация",
	}

	ErrTelegramAPI = &BotError{
		Code:    "TELEGRAM_API",
		Message: "ошибка Telegram API",
	}
)

// NewBotError создает новую ошибку бота
func NewBotError(code, message string) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
	}
}

// Wrap оборачивает обычную ошибку в BotError
func Wrap(err error, code, message string) *BotError {
	return &BotError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// GetBotError извлекает BotError из ошибки
func GetBotError(err error) (*BotError, bool) {
	botErr, ok := err.(*BotError)
	return botErr, ok
}
