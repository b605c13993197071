package utils

import (
	"fmt"
	"regexp"
	"strings"
)

// validator.go - валидация данных
//
// Назначение:
// Проверка корректности входных данных: торговых пар, цен и объёмов
// из сигналов и API-запросов, учётных данных биржи.
//
// Возвращает error с описанием проблемы или nil.

// pairPattern - формат рынка Bittrex: КВОТА-БАЗА, например "BTC-ETH"
var pairPattern = regexp.MustCompile(`^[A-Z0-9]{2,10}-[A-Z0-9]{2,10}$`)

// ValidatePair проверяет формат торговой пары.
//
// Ожидаемый формат: "QUOTE-BASE" в верхнем регистре, например "BTC-ETH".
func ValidatePair(pair string) error {
	if pair == "" {
		return fmt.Errorf("пара не указана")
	}
	if !pairPattern.MatchString(pair) {
		return fmt.Errorf("некорректный формат пары: %q (ожидается QUOTE-BASE, например BTC-ETH)", pair)
	}
	return nil
}

// NormalizePair приводит пару к каноническому виду (верхний регистр, без пробелов)
func NormalizePair(pair string) string {
	return strings.ToUpper(strings.TrimSpace(pair))
}

// ExtractQuoteCurrency возвращает валюту котировки пары ("BTC-ETH" -> "BTC")
func ExtractQuoteCurrency(pair string) string {
	if i := strings.IndexByte(pair, '-'); i > 0 {
		return pair[:i]
	}
	return ""
}

// ExtractBaseCurrency возвращает базовую валюту пары ("BTC-ETH" -> "ETH")
func ExtractBaseCurrency(pair string) string {
	if i := strings.IndexByte(pair, '-'); i >= 0 && i < len(pair)-1 {
		return pair[i+1:]
	}
	return ""
}

// ValidatePrice проверяет, что цена положительна
func ValidatePrice(price float64) error {
	if price <= 0 {
		return fmt.Errorf("цена должна быть положительной, получено %v", price)
	}
	return nil
}

// ValidateQuantity проверяет, что объём положителен
func ValidateQuantity(qty float64) error {
	if qty <= 0 {
		return fmt.Errorf("объём должен быть положительным, получено %v", qty)
	}
	return nil
}

// ValidateAPIKey выполняет базовую проверку API-ключа биржи
func ValidateAPIKey(apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("API-ключ не указан")
	}
	if len(apiKey) < 16 {
		return fmt.Errorf("API-ключ слишком короткий (%d символов)", len(apiKey))
	}
	return nil
}

// ValidateAPISecret выполняет базовую проверку секретного ключа биржи
func ValidateAPISecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("секретный ключ не указан")
	}
	if len(secret) < 16 {
		return fmt.Errorf("секретный ключ слишком короткий (%d символов)", len(secret))
	}
	return nil
}

// ============================================================
// Накопление ошибок валидации
// ============================================================

// ValidationErrors накапливает несколько ошибок валидации
type ValidationErrors []error

// AddError добавляет ошибку, если err != nil
func (e *ValidationErrors) AddError(err error) {
	if err != nil {
		*e = append(*e, err)
	}
}

// HasErrors возвращает true при наличии хотя бы одной ошибки
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Error объединяет все ошибки в одну строку
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}
