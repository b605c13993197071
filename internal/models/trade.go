package models

import "time"

// Статусы трейда
//
// Жизненный цикл монотонный, без регрессий:
//
//	live:  created → reserved → filled
//	paper: created → filled (сразу)
//
// Терминальные варианты refunded / writeoff замещают filled, когда позиция
// отменена до исполнения или списана вручную.
const (
	TradeStatusCreated  = "created"
	TradeStatusReserved = "reserved"
	TradeStatusFilled   = "filled"
	TradeStatusRefunded = "refunded"
	TradeStatusWriteoff = "writeoff"
)

// Стороны трейда (суффиксы идентификаторов)
const (
	TradeSideBuy      = "buy"
	TradeSideSell     = "sell"
	TradeSideRefund   = "refund"
	TradeSideWriteoff = "writeoff"
)

// ValidStatusTransitions определяет допустимые переходы статуса трейда
var ValidStatusTransitions = map[string][]string{
	TradeStatusCreated:  {TradeStatusReserved, TradeStatusFilled, TradeStatusRefunded, TradeStatusWriteoff},
	TradeStatusReserved: {TradeStatusFilled, TradeStatusRefunded, TradeStatusWriteoff},
	TradeStatusFilled:   {},
	TradeStatusRefunded: {},
	TradeStatusWriteoff: {},
}

// CanTransitionStatus проверяет допустимость перехода статуса
func CanTransitionStatus(from, to string) bool {
	allowed, ok := ValidStatusTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminalStatus возвращает true для статусов без исходящих переходов
func IsTerminalStatus(s string) bool {
	allowed, ok := ValidStatusTransitions[s]
	return ok && len(allowed) == 0
}

// Profit - зафиксированный результат продажи
type Profit struct {
	Amount     float64 `json:"amount"`     // квотируемая валюта
	Percentage float64 `json:"percentage"` // доля от стоимости входа, 4 знака
}

// TradeMeta - статус исполнения трейда
type TradeMeta struct {
	Status     string `json:"status"`
	OrderID    string `json:"order_id,omitempty"`
	Liquidated bool   `json:"liquidated,omitempty"` // ручная ликвидация
}

// Trade - неизменяемая запись журнала сделок
//
// Знаковая конвенция Cost: положительный cost - отток квотируемой валюты
// (покупка), отрицательный - приток (продажа, возврат, списание).
type Trade struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
	Pair    string    `json:"pair"`

	Price float64 `json:"price"` // цена за единицу
	Units float64 `json:"units"`
	Cost  float64 `json:"cost"`

	// Снимок лимитов на момент сделки
	Limits Limits `json:"limits"`

	// Заполняется только для продаж
	Profit *Profit `json:"profit,omitempty"`

	Meta TradeMeta `json:"meta"`
}

// Side возвращает сторону трейда по суффиксу идентификатора
func (t *Trade) Side() string {
	for i := len(t.ID) - 1; i >= 0; i-- {
		if t.ID[i] == '-' {
			return t.ID[i+1:]
		}
	}
	return ""
}
