package exchange

import (
	"context"
	"fmt"
	"time"
)

// MarketDataProvider предоставляет рыночные данные биржи
type MarketDataProvider interface {
	// GetMarketSummaries возвращает сводки по всем рынкам
	GetMarketSummaries(ctx context.Context) ([]MarketSummary, error)

	// GetMarketSummary возвращает сводку по одному рынку
	GetMarketSummary(ctx context.Context, pair string) (*MarketSummary, error)

	// GetOrderBook возвращает стакан рынка (обе стороны)
	GetOrderBook(ctx context.Context, pair string) (*OrderBook, error)
}

// ExecutionClient исполняет ордера и читает состояние аккаунта
type ExecutionClient interface {
	// BuyLimit размещает лимитный ордер на покупку, возвращает uuid ордера
	BuyLimit(ctx context.Context, pair string, qty, rate float64) (string, error)

	// SellLimit размещает лимитный ордер на продажу, возвращает uuid ордера
	SellLimit(ctx context.Context, pair string, qty, rate float64) (string, error)

	// CancelOrder отменяет ордер по uuid
	CancelOrder(ctx context.Context, orderID string) error

	// GetOpenOrders возвращает открытые (неисполненные) ордера аккаунта
	GetOpenOrders(ctx context.Context) ([]OpenOrder, error)

	// GetBalance возвращает доступный остаток валюты
	GetBalance(ctx context.Context, currency string) (float64, error)
}

// Client объединяет рыночные данные и исполнение
type Client interface {
	MarketDataProvider
	ExecutionClient
}

// MarketSummary - сводка рынка за сутки
type MarketSummary struct {
	Pair   string  `json:"pair"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Last   float64 `json:"last"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
	Volume float64 `json:"volume"`

	// Производные величины
	Spread           float64 `json:"spread"`            // ask - bid
	SpreadPercentage float64 `json:"spread_percentage"` // spread / ask
	HighPercentage   float64 `json:"high_percentage"`   // (ask - low) / (high - low)

	Timestamp time.Time `json:"timestamp"`
}

// OrderBook - стакан рынка
type OrderBook struct {
	Pair      string       `json:"pair"`
	Bids      []PriceLevel `json:"bids"` // по убыванию цены
	Asks      []PriceLevel `json:"asks"` // по возрастанию цены
	Timestamp time.Time    `json:"timestamp"`
}

// PriceLevel - один уровень стакана
type PriceLevel struct {
	Rate     float64 `json:"rate"`
	Quantity float64 `json:"quantity"`
}

// Типы открытых ордеров
const (
	OrderTypeLimitBuy  = "LIMIT_BUY"
	OrderTypeLimitSell = "LIMIT_SELL"
)

// OpenOrder - открытый ордер аккаунта
type OpenOrder struct {
	ID                string    `json:"id"`
	Pair              string    `json:"pair"`
	Type              string    `json:"type"` // LIMIT_BUY / LIMIT_SELL
	Quantity          float64   `json:"quantity"`
	QuantityRemaining float64   `json:"quantity_remaining"`
	Rate              float64   `json:"rate"`
	Opened            time.Time `json:"opened"`
}

// ExchangeError - отказ биржи на уровне API (success=false в конверте ответа)
type ExchangeError struct {
	Endpoint string
	Message  string
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("exchange: %s: %s", e.Endpoint, e.Message)
}

// Retryable: бизнес-отказы биржи (нет средств, неизвестный рынок)
// повторять бессмысленно
func (e *ExchangeError) Retryable() bool {
	return false
}

// HTTPError - ошибка транспортного уровня (статус != 200)
type HTTPError struct {
	Endpoint   string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("exchange: %s: http status %d", e.Endpoint, e.StatusCode)
}

// Retryable: 5xx и 429 стоит повторить
func (e *HTTPError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}
