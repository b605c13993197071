package models

import "time"

// Статусы торговли портфеля
const (
	TradingActive      = "active"
	TradingPaused      = "paused"
	TradingPausedUntil = "paused_until"
)

// TradingState - явное трёхзначное состояние торговли
//
// Исходная система хранила в одном поле и bool, и timestamp возобновления.
// Здесь состояние размечено явно:
//   - active: торговля разрешена
//   - paused: остановлена вручную (halt), возобновляется только вручную
//   - paused_until: остановлена защитой от волатильности до ResumeAt
type TradingState struct {
	Status   string    `json:"status"`
	ResumeAt time.Time `json:"resume_at,omitempty"`
}

// Active возвращает true если торговля разрешена
func (s TradingState) Active() bool {
	return s.Status == TradingActive
}

// Halt переводит торговлю в ручную паузу (только мониторинг)
func (s *TradingState) Halt() {
	s.Status = TradingPaused
	s.ResumeAt = time.Time{}
}

// Resume возобновляет торговлю вручную
func (s *TradingState) Resume() {
	s.Status = TradingActive
	s.ResumeAt = time.Time{}
}

// PauseUntil останавливает торговлю до указанного момента (circuit breaker)
func (s *TradingState) PauseUntil(t time.Time) {
	s.Status = TradingPausedUntil
	s.ResumeAt = t
}

// MaybeResume возвращает торговлю в active если таймаут паузы истёк.
// Ручная пауза (paused) таймаутом не снимается.
func (s *TradingState) MaybeResume(now time.Time) bool {
	if s.Status != TradingPausedUntil {
		return false
	}
	if now.Before(s.ResumeAt) {
		return false
	}
	s.Resume()
	return true
}

// Portfolio - единственный живой документ портфеля
//
// Инварианты:
//   - позиции уникальны по паре (максимум одна открытая позиция на пару)
//   - баланс списывается ровно один раз на покупку (cost включает комиссию)
//   - Pending заполняется только в live режиме (отложенные продажи)
type Portfolio struct {
	ID      string  `json:"id"`
	Balance float64 `json:"balance"` // квотируемая валюта (BTC)

	State TradingState `json:"state"`

	// Live должен совпадать с конфигурацией движка,
	// иначе все мутирующие операции отклоняются
	Live bool `json:"live"`

	// Последняя наблюдаемая цена референсной пары (USDT-BTC)
	// для расчёта дельты волатильности
	ReferencePrice float64 `json:"reference_price"`

	// Открытые позиции: пара → позиция
	Positions map[string]*Position `json:"positions"`

	// Продажи, ожидающие подтверждения исполнения биржей (только live)
	Pending map[string]*Trade `json:"pending"`

	// Чёрный список: пара → момент истечения
	Blacklist map[string]time.Time `json:"blacklist"`
}

// NewPortfolio создаёт пустой портфель с начальным балансом
func NewPortfolio(id string, balance float64, live bool) *Portfolio {
	return &Portfolio{
		ID:        id,
		Balance:   balance,
		State:     TradingState{Status: TradingActive},
		Live:      live,
		Positions: make(map[string]*Position),
		Pending:   make(map[string]*Trade),
		Blacklist: make(map[string]time.Time),
	}
}

// IsBlacklisted проверяет, находится ли пара в неистёкшем чёрном списке
func (p *Portfolio) IsBlacklisted(pair string, now time.Time) bool {
	expiry, ok := p.Blacklist[pair]
	if !ok {
		return false
	}
	return now.Before(expiry)
}

// PruneBlacklist удаляет истёкшие записи чёрного списка.
// Возвращает удалённые пары.
func (p *Portfolio) PruneBlacklist(now time.Time) []string {
	var pruned []string
	for pair, expiry := range p.Blacklist {
		if !now.Before(expiry) {
			delete(p.Blacklist, pair)
			pruned = append(pruned, pair)
		}
	}
	return pruned
}

// Limits - абсолютные ценовые границы позиции (stop-loss / take-profit)
type Limits struct {
	Loss   float64 `json:"loss"`
	Profit float64 `json:"profit"`
}

// PositionMeta - флаги и статус исполнения позиции
type PositionMeta struct {
	// Warning: первая просадка ниже stop-loss получена, следующая продаёт
	Warning bool `json:"warning"`

	// Secure: прибыль зафиксирована ratchet'ом, лимиты подтянуты к цене
	Secure bool `json:"secure"`

	// Статус трейда, открывшего позицию (created/reserved/filled)
	Status string `json:"status"`

	// Идентификатор лимитного ордера на бирже (только live)
	OrderID string `json:"order_id,omitempty"`
}

// Position - открытая непроданная позиция по одной паре
type Position struct {
	Pair    string    `json:"pair"`
	TradeID string    `json:"trade_id"` // трейд покупки
	Created time.Time `json:"created"`

	Price float64 `json:"price"` // цена входа за единицу
	Units float64 `json:"units"`
	Cost  float64 `json:"cost"` // квотируемая валюта, с комиссией

	Limits Limits       `json:"limits"`
	Meta   PositionMeta `json:"meta"`

	// Последняя наблюдаемая цена (bid либо взвешенная по стакану)
	Current float64 `json:"current"`

	// Снимок статистики стакана; присутствует только в режиме мониторинга
	Book *BookStats `json:"book,omitempty"`
}

// Age возвращает возраст позиции
func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.Created)
}

// Monitoring возвращает true если позиция в режиме мониторинга стакана
func (p *Position) Monitoring(orderParsing bool) bool {
	return p.Meta.Secure && orderParsing
}

// BookStats - производные метрики стакана для размера позиции
//
// Fill-цены отвечают на вопрос "почём реально продать/купить весь объём
// позиции", в отличие от top-of-book котировки
type BookStats struct {
	// Сторона bid: продажа позиции
	BidFillPrice float64 `json:"bid_fill_price"` // средневзвешенная цена исполнения
	BidOrderRate float64 `json:"bid_order_rate"` // ставка последнего потреблённого ордера

	// Сторона ask: выкуп объёма
	AskFillPrice float64 `json:"ask_fill_price"`
	AskOrderRate float64 `json:"ask_order_rate"`

	// Спред между fill-ценами сторон
	AskSpread     float64 `json:"ask_spread"`
	AskSpreadFrac float64 `json:"ask_spread_frac"` // доля от AskFillPrice

	// Отклонение bid fill-цены от средневзвешенной ставки стакана
	AvgSpread     float64 `json:"avg_spread"`
	AvgSpreadFrac float64 `json:"avg_spread_frac"` // доля от взвешенной ставки
}
