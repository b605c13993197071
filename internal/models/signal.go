package models

// Действия сигналов
const (
	SignalBuy  = "BUY"
	SignalSell = "SELL"
)

// OrderValue - явная сумма-тип для цены/количества сигнала
//
// Исходная система кодировала "по рынку" строковым литералом "A".
// Здесь сентинел размечен явно: либо конкретное значение, либо Market.
type OrderValue struct {
	Market bool    `json:"market"`
	Value  float64 `json:"value,omitempty"`
}

// MarketValue возвращает рыночный сентинел
func MarketValue() OrderValue {
	return OrderValue{Market: true}
}

// ExplicitValue возвращает конкретное значение
func ExplicitValue(v float64) OrderValue {
	return OrderValue{Value: v}
}

// Signal - типизированный входящий торговый сигнал
type Signal struct {
	Action string     `json:"action"` // BUY или SELL
	Pair   string     `json:"pair"`
	Qty    OrderValue `json:"qty"`
	Price  OrderValue `json:"price"`

	// Свободный тег источника; становится основой идентификатора трейда
	Tag string `json:"tag"`
}

// Explicit возвращает true если и цена, и количество заданы явно
func (s *Signal) Explicit() bool {
	return !s.Price.Market && !s.Qty.Market
}
