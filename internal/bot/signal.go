package bot

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"coinsignals/internal/models"
	"coinsignals/pkg/utils"
)

// Формат текстового сигнала: ^ACTION*PAIR*QTY*PRICE*TAG^
// QTY и PRICE - десятичное число либо сентинел "A" (по рынку).
//
// Пример: ^BUY*BTC-ETH*A*A*tradingview-4521^
var signalPattern = regexp.MustCompile(`\^(\w+)\*([A-Za-z0-9]+-[A-Za-z0-9]+)\*(A|\d*\.?\d+)\*(A|\d*\.?\d+)\*([^*^]*)\^`)

// ParseError - ошибка разбора текстового сигнала
type ParseError struct {
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse signal %q: %s", e.Text, e.Reason)
}

// ParseSignal разбирает текстовый сигнал в типизированную структуру.
// Парсер не зависит от транспорта: текст может прийти из HTTP запроса,
// чата или очереди сообщений.
func ParseSignal(text string) (*models.Signal, error) {
	matches := signalPattern.FindStringSubmatch(text)
	if matches == nil {
		return nil, &ParseError{Text: text, Reason: "does not match signal format"}
	}

	action := strings.ToUpper(matches[1])
	if action != models.SignalBuy && action != models.SignalSell {
		return nil, &ParseError{Text: text, Reason: "unknown action " + matches[1]}
	}

	pair := utils.NormalizePair(matches[2])
	if utils.ValidatePair(pair) != nil {
		return nil, &ParseError{Text: text, Reason: "invalid pair " + matches[2]}
	}

	qty, err := parseOrderValue(matches[3])
	if err != nil {
		return nil, &ParseError{Text: text, Reason: "invalid quantity: " + err.Error()}
	}
	price, err := parseOrderValue(matches[4])
	if err != nil {
		return nil, &ParseError{Text: text, Reason: "invalid price: " + err.Error()}
	}

	return &models.Signal{
		Action: action,
		Pair:   pair,
		Qty:    qty,
		Price:  price,
		Tag:    strings.TrimSpace(matches[5]),
	}, nil
}

// parseOrderValue разбирает значение цены/количества:
// "A" означает "по рынку", иначе положительное десятичное число
func parseOrderValue(s string) (models.OrderValue, error) {
	if s == "A" {
		return models.MarketValue(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return models.OrderValue{}, err
	}
	if v <= 0 {
		return models.OrderValue{}, fmt.Errorf("must be positive, got %v", v)
	}
	return models.ExplicitValue(v), nil
}
