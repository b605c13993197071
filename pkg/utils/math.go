package utils

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// math.go - математические утилиты для позиционной торговли
//
// Назначение:
// Вспомогательные математические функции для расчёта цен, объёмов
// и результатов сделок. Все функции являются чистыми (pure functions)
// без побочных эффектов.
//
// Функции:
// - Round8: округление денежных величин до 8 знаков
// - Round4: округление процентов до 4 знаков
// - PercentChange: относительное изменение цены
// - WeightedRate: средневзвешенная цена по уровням стакана

// Round8 округляет денежную величину до 8 десятичных знаков.
//
// Все цены, объёмы и стоимости в журнале сделок фиксируются с точностью
// 8 знаков (минимальный шаг биржи - 1 сатоши). Округление выполняется
// через decimal, чтобы исключить артефакты двоичного представления
// float64 на границе разряда.
//
// Параметры:
//   - value: исходное значение
//
// Возвращает:
//   - Значение, округлённое до 8 знаков (половина - от нуля)
//
// Примеры:
//   - Round8(0.123456789) = 0.12345679
//   - Round8(0.000000015) = 0.00000002
func Round8(value float64) float64 {
	f, _ := decimal.NewFromFloat(value).Round(8).Float64()
	return f
}

// Round4 округляет процентную величину до 4 десятичных знаков.
//
// Используется для процента прибыли в записях о продаже.
//
// Параметры:
//   - value: исходное значение (доля, например 0.061234567)
//
// Возвращает:
//   - Значение, округлённое до 4 знаков
func Round4(value float64) float64 {
	f, _ := decimal.NewFromFloat(value).Round(4).Float64()
	return f
}

// PercentChange возвращает относительное изменение цены.
//
// Формула:
//
//	change = (current - base) / base
//
// Параметры:
//   - base: базовая цена (цена входа, опорная цена)
//   - current: текущая цена
//
// Возвращает:
//   - Изменение в долях (0.05 = +5%)
//   - 0 если base <= 0
//
// Примеры:
//   - PercentChange(100.0, 105.0) = 0.05
//   - PercentChange(0.022, 0.011) = -0.5
func PercentChange(base, current float64) float64 {
	if base <= 0 {
		return 0
	}
	return (current - base) / base
}

// WeightedRate вычисляет средневзвешенную по объёму цену.
//
// Используется для агрегации верхних уровней стакана в одну
// репрезентативную цену стороны.
//
// Формула:
//
//	rate = Σ(rate_i × qty_i) / Σ(qty_i)
//
// Параметры:
//   - rates: цены уровней
//   - quantities: объёмы уровней
//
// Возвращает:
//   - Средневзвешенная цена
//   - 0 если входные данные некорректны
//
// Примеры:
//
//	rates      = [100.0, 101.0, 102.0]
//	quantities = [10.0, 20.0, 10.0]
//	rate = (100*10 + 101*20 + 102*10) / 40 = 101.0
func WeightedRate(rates, quantities []float64) float64 {
	if len(rates) == 0 || len(rates) != len(quantities) {
		return 0
	}

	var sumWeighted, sumQty float64
	for i := range rates {
		if quantities[i] < 0 {
			continue // пропускаем отрицательные объёмы
		}
		sumWeighted += rates[i] * quantities[i]
		sumQty += quantities[i]
	}

	if sumQty == 0 {
		return 0
	}
	return sumWeighted / sumQty
}

// FormatTicker форматирует строку тикера позиции для уведомлений.
//
// Параметры:
//   - pair: торговая пара, например "BTC-ETH"
//   - price: текущая цена за единицу
//   - change: изменение относительно входа в долях (0.05 = +5%)
//
// Возвращает:
//   - Строка вида "[BTC-ETH / 0.02200000 BTC / +5.00%]"
func FormatTicker(pair string, price, change float64) string {
	return fmt.Sprintf("[%s / %.8f BTC / %+.2f%%]", pair, price, change*100)
}

// Abs возвращает абсолютное значение числа.
func Abs(x float64) float64 {
	return math.Abs(x)
}

// Min возвращает минимум из двух чисел.
func Min(a, b float64) float64 {
	return math.Min(a, b)
}

// Max возвращает максимум из двух чисел.
func Max(a, b float64) float64 {
	return math.Max(a, b)
}

// Clamp ограничивает значение диапазоном [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
