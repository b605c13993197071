package service

import (
	"time"

	"coinsignals/internal/models"
	"coinsignals/pkg/utils"
)

// Ограничения выборки истории трейдов
const (
	defaultTradeLimit = 50
	maxTradeLimit     = 200
)

// PortfolioSummary - агрегированное состояние портфеля для дашборда
type PortfolioSummary struct {
	Balance        float64             `json:"balance"`
	State          models.TradingState `json:"state"`
	Live           bool                `json:"live"`
	OpenPositions  int                 `json:"open_positions"`
	PositionsCost  float64             `json:"positions_cost"`  // вложено в открытые позиции
	PositionsValue float64             `json:"positions_value"` // по последним ценам
	PendingSells   int                 `json:"pending_sells"`
	BlacklistSize  int                 `json:"blacklist_size"`
	TotalProfit    float64             `json:"total_profit"`
	ProfitToday    float64             `json:"profit_today"`
	ProfitWeek     float64             `json:"profit_week"`
	ProfitMonth    float64             `json:"profit_month"`
}

// PortfolioService предоставляет бизнес-логику чтения портфеля и истории.
//
// Отвечает за:
// - Отдачу живого документа портфеля
// - Сводку для дашборда: баланс, позиции, реализованная прибыль
//   за день/неделю/месяц/всё время
// - Историю трейдов (общую и по паре)
//
// Сервис только читает: все мутации проходят через движок.
type PortfolioService struct {
	store       PortfolioStoreInterface
	ledger      TradeLedgerInterface
	portfolioID string

	now func() time.Time
}

// NewPortfolioService создает новый экземпляр PortfolioService
func NewPortfolioService(store PortfolioStoreInterface, ledger TradeLedgerInterface, portfolioID string) *PortfolioService {
	return &PortfolioService{
		store:       store,
		ledger:      ledger,
		portfolioID: portfolioID,
		now:         time.Now,
	}
}

// GetPortfolio возвращает живой документ портфеля
func (s *PortfolioService) GetPortfolio() (*models.Portfolio, error) {
	return s.store.Get(s.portfolioID)
}

// Summary возвращает агрегированную сводку портфеля.
//
// Прибыль за периоды считается по журналу трейдов от начала
// календарного дня/недели/месяца (понедельник - начало недели).
func (s *PortfolioService) Summary() (*PortfolioSummary, error) {
	p, err := s.store.Get(s.portfolioID)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{
		Balance:       p.Balance,
		State:         p.State,
		Live:          p.Live,
		OpenPositions: len(p.Positions),
		PendingSells:  len(p.Pending),
		BlacklistSize: len(p.Blacklist),
	}

	cost, value := 0.0, 0.0
	for _, pos := range p.Positions {
		cost += pos.Cost
		value += pos.Units * pos.Current
	}
	summary.PositionsCost = utils.Round8(cost)
	summary.PositionsValue = utils.Round8(value)

	if summary.TotalProfit, err = s.ledger.TotalProfit(); err != nil {
		return nil, err
	}

	now := s.now()
	if summary.ProfitToday, err = s.ledger.ProfitSince(utils.GetDayStartFrom(now)); err != nil {
		return nil, err
	}
	if summary.ProfitWeek, err = s.ledger.ProfitSince(utils.GetWeekStartFrom(now)); err != nil {
		return nil, err
	}
	if summary.ProfitMonth, err = s.ledger.ProfitSince(utils.GetMonthStartFrom(now)); err != nil {
		return nil, err
	}

	return summary, nil
}

// RecentTrades возвращает последние трейды журнала
func (s *PortfolioService) RecentTrades(limit int) ([]*models.Trade, error) {
	return s.ledger.GetRecent(clampLimit(limit))
}

// TradesByPair возвращает историю трейдов по паре
func (s *PortfolioService) TradesByPair(pair string, limit int) ([]*models.Trade, error) {
	pair = utils.NormalizePair(pair)
	if err := utils.ValidatePair(pair); err != nil {
		return nil, err
	}
	return s.ledger.GetByPair(pair, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultTradeLimit
	}
	if limit > maxTradeLimit {
		return maxTradeLimit
	}
	return limit
}
