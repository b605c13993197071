package utils

import (
	"time"
)

// time.go - утилиты для работы со временем
//
// Назначение:
// Границы календарных периодов для агрегации прибыли по журналу
// сделок (сводка за день / неделю / месяц) и форматирование
// возраста позиции.
//
// Все расчёты выполняются в UTC.

// ============================================================
// Границы периодов
// ============================================================

// GetDayStartFrom возвращает начало дня (00:00:00 UTC) для указанного времени
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetWeekStartFrom возвращает начало недели для указанного времени
//
// Неделя начинается с понедельника (ISO 8601).
//
// Параметры:
//   - t: исходное время
//
// Возвращает: понедельник 00:00:00 UTC недели, содержащей указанную дату
func GetWeekStartFrom(t time.Time) time.Time {
	t = t.UTC()

	// time.Weekday: 0=Sunday ... 6=Saturday; приводим к ISO (1=Monday ... 7=Sunday)
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}

	monday := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// GetMonthStartFrom возвращает начало месяца (1-е число 00:00:00 UTC)
func GetMonthStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// ============================================================
// Периоды сводки
// ============================================================

// PeriodType тип периода для агрегации прибыли
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
	PeriodAll   PeriodType = "all"
)

// GetPeriodStartFrom возвращает начало периода указанного типа
// относительно переданного момента времени
func GetPeriodStartFrom(period PeriodType, t time.Time) time.Time {
	switch period {
	case PeriodDay:
		return GetDayStartFrom(t)
	case PeriodWeek:
		return GetWeekStartFrom(t)
	case PeriodMonth:
		return GetMonthStartFrom(t)
	case PeriodAll:
		return time.Time{} // нулевое время - вся история
	default:
		return GetDayStartFrom(t)
	}
}

// ============================================================
// Форматирование
// ============================================================

// FormatDuration форматирует возраст позиции в человекочитаемый вид
//
// Примеры:
//   - "45s"
//   - "5m30s"
//   - "2h15m"
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		if minutes > 0 {
			return (time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute).String()
		}
		return (time.Duration(hours) * time.Hour).String()
	}

	if minutes > 0 {
		if seconds > 0 {
			return (time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second).String()
		}
		return (time.Duration(minutes) * time.Minute).String()
	}

	return (time.Duration(seconds) * time.Second).String()
}
