package clock

import "time"

// Clock выдаёт текущее время в канонической тайм-зоне сервиса.
// Вся логика "сегодня/прошлое время" проходит через него,
// чтобы напоминания и автоотмену можно было тестировать
// на синтетическом времени.
type Clock interface {
	Now() time.Time
	Location() *time.Location
}

// SystemClock возвращает системное время в заданной зоне
type SystemClock struct {
	loc *time.Location
}

// NewSystem создает системные часы для тайм-зоны tz
func NewSystem(tz string) (*SystemClock, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, err
	}
	return &SystemClock{loc: loc}, nil
}

func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

func (c *SystemClock) Location() *time.Location {
	return c.loc
}

// Fixed возвращает часы, всегда показывающие t. Используется в тестах.
type Fixed struct {
	T time.Time
}

func (f *Fixed) Now() time.Time {
	return f.T
}

func (f *Fixed) Location() *time.Location {
	return f.T.Location()
}
