package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"coinsignals/internal/models"
	"coinsignals/pkg/utils"
)

// ============================================================================
// Жизненный цикл трейдов
// ============================================================================
//
// Каждая операция состоит из двух фаз: make* строит неизменяемую запись
// журнала (и в live режиме размещает ордер на бирже), apply* применяет
// её к портфелю. Денежные величины округляются до 8 знаков на границе
// построения трейда, чтобы учётные тождества не плыли на двоичных дробях.

// tradeStem возвращает основу идентификатора трейда без суффикса стороны.
// Продажа, возврат и списание переиспользуют основу трейда покупки.
func tradeStem(id string) string {
	if i := strings.LastIndex(id, "-"); i >= 0 {
		return id[:i]
	}
	return id
}

// makeBuyTrade строит трейд покупки и в live режиме размещает лимитный ордер
func (e *Engine) makeBuyTrade(ctx context.Context, sig *models.Signal, per, purchase float64, now time.Time) (*models.Trade, error) {
	per = utils.Round8(per)
	trade := &models.Trade{
		ID:      sig.Tag + "-" + models.TradeSideBuy,
		Created: now,
		Pair:    sig.Pair,
		Price:   per,
		Units:   utils.Round8(purchase / per),
		Cost:    utils.Round8(purchase * (1 + e.cfg.Trading.Fee)),
		Limits:  freshLimits(&e.cfg.Trading, per),
		Meta: models.TradeMeta{
			Status: models.TradeStatusFilled,
		},
	}

	if e.cfg.Exchange.Live {
		trade.Meta.Status = models.TradeStatusCreated
		orderID, err := e.exch.BuyLimit(ctx, trade.Pair, trade.Units, trade.Price)
		if err != nil {
			return nil, fmt.Errorf("place buy order: %w", err)
		}
		trade.Meta.Status = models.TradeStatusReserved
		trade.Meta.OrderID = orderID
		e.log.Info("размещён live ордер на покупку",
			utils.Pair(trade.Pair), utils.OrderID(orderID))
	}

	if err := e.ledger.Save(trade); err != nil {
		return nil, fmt.Errorf("save buy trade: %w", err)
	}

	e.log.Info("трейд покупки создан",
		utils.TradeID(trade.ID), utils.Pair(trade.Pair),
		utils.Price(trade.Price), utils.Units(trade.Units), utils.Cost(trade.Cost))
	return trade, nil
}

// applyBuyTrade списывает стоимость покупки и открывает позицию
func (e *Engine) applyBuyTrade(p *models.Portfolio, trade *models.Trade) {
	p.Balance = utils.Round8(p.Balance - trade.Cost)
	p.Positions[trade.Pair] = &models.Position{
		Pair:    trade.Pair,
		TradeID: trade.ID,
		Created: trade.Created,
		Price:   trade.Price,
		Units:   trade.Units,
		Cost:    trade.Cost,
		Limits:  trade.Limits,
		Current: trade.Price,
		Meta: models.PositionMeta{
			Status:  trade.Meta.Status,
			OrderID: trade.Meta.OrderID,
		},
	}
}

// makeSellTrade строит трейд продажи позиции по цене per.
//
// Знаковая конвенция: cost продажи отрицателен (приток средств),
// поэтому реализованная прибыль = -(sellCost + entryCost).
func (e *Engine) makeSellTrade(ctx context.Context, pos *models.Position, per float64, limits models.Limits, liquidated bool, now time.Time) (*models.Trade, error) {
	per = utils.Round8(per)
	cost := utils.Round8(-(pos.Units * per) * (1 - e.cfg.Trading.Fee))
	amount := utils.Round8(-(cost + pos.Cost))

	trade := &models.Trade{
		ID:      tradeStem(pos.TradeID) + "-" + models.TradeSideSell,
		Created: now,
		Pair:    pos.Pair,
		Price:   per,
		Units:   pos.Units,
		Cost:    cost,
		Limits:  limits,
		Profit: &models.Profit{
			Amount:     amount,
			Percentage: utils.Round4(amount / pos.Cost),
		},
		Meta: models.TradeMeta{
			Status:     models.TradeStatusFilled,
			Liquidated: liquidated,
		},
	}

	if e.cfg.Exchange.Live {
		trade.Meta.Status = models.TradeStatusCreated
		orderID, err := e.exch.SellLimit(ctx, trade.Pair, trade.Units, trade.Price)
		if err != nil {
			return nil, fmt.Errorf("place sell order: %w", err)
		}
		trade.Meta.Status = models.TradeStatusReserved
		trade.Meta.OrderID = orderID
		e.log.Info("размещён live ордер на продажу",
			utils.Pair(trade.Pair), utils.OrderID(orderID))
	}

	if err := e.ledger.Save(trade); err != nil {
		return nil, fmt.Errorf("save sell trade: %w", err)
	}

	e.log.Info("трейд продажи создан",
		utils.TradeID(trade.ID), utils.Pair(trade.Pair),
		utils.Price(trade.Price), utils.Profit(trade.Profit.Amount))
	return trade, nil
}

// applySellTrade закрывает позицию.
//
// В live режиме приток средств откладывается до подтверждения исполнения
// биржей: трейд попадает в Pending, баланс корректирует reconcile.
// В бумажном режиме средства возвращаются сразу.
func (e *Engine) applySellTrade(p *models.Portfolio, trade *models.Trade) {
	delete(p.Positions, trade.Pair)
	if e.cfg.Exchange.Live {
		p.Pending[trade.Pair] = trade
		return
	}
	p.Balance = utils.Round8(p.Balance - trade.Cost)
}

// makeRefundTrade отменяет неисполненный ордер позиции и строит
// возвратный трейд на полную стоимость входа
func (e *Engine) makeRefundTrade(ctx context.Context, pos *models.Position, now time.Time) (*models.Trade, error) {
	if e.cfg.Exchange.Live && pos.Meta.OrderID != "" {
		if err := e.exch.CancelOrder(ctx, pos.Meta.OrderID); err != nil {
			return nil, fmt.Errorf("cancel order %s: %w", pos.Meta.OrderID, err)
		}
		e.log.Info("ордер отменён", utils.Pair(pos.Pair), utils.OrderID(pos.Meta.OrderID))
	}

	trade := &models.Trade{
		ID:      tradeStem(pos.TradeID) + "-" + models.TradeSideRefund,
		Created: now,
		Pair:    pos.Pair,
		Price:   pos.Price,
		Units:   pos.Units,
		Cost:    utils.Round8(-pos.Cost),
		Limits:  pos.Limits,
		Meta: models.TradeMeta{
			Status:  models.TradeStatusRefunded,
			OrderID: pos.Meta.OrderID,
		},
	}

	if err := e.ledger.Save(trade); err != nil {
		return nil, fmt.Errorf("save refund trade: %w", err)
	}

	e.log.Info("трейд возврата создан", utils.TradeID(trade.ID), utils.Pair(trade.Pair))
	return trade, nil
}

// applyRefundTrade удаляет позицию и возвращает стоимость входа на баланс
func (e *Engine) applyRefundTrade(p *models.Portfolio, trade *models.Trade) {
	delete(p.Positions, trade.Pair)
	p.Balance = utils.Round8(p.Balance - trade.Cost)
}

// makeWriteoffTrade строит трейд ручного списания позиции
func (e *Engine) makeWriteoffTrade(pos *models.Position, now time.Time) (*models.Trade, error) {
	trade := &models.Trade{
		ID:      tradeStem(pos.TradeID) + "-" + models.TradeSideWriteoff,
		Created: now,
		Pair:    pos.Pair,
		Price:   pos.Price,
		Units:   pos.Units,
		Cost:    utils.Round8(-pos.Cost),
		Limits:  pos.Limits,
		Meta: models.TradeMeta{
			Status:     models.TradeStatusWriteoff,
			OrderID:    pos.Meta.OrderID,
			Liquidated: true,
		},
	}

	if err := e.ledger.Save(trade); err != nil {
		return nil, fmt.Errorf("save writeoff trade: %w", err)
	}

	e.log.Info("трейд списания создан", utils.TradeID(trade.ID), utils.Pair(trade.Pair))
	return trade, nil
}

// applyWriteoffTrade удаляет позицию и возвращает стоимость входа на баланс
func (e *Engine) applyWriteoffTrade(p *models.Portfolio, trade *models.Trade) {
	delete(p.Positions, trade.Pair)
	p.Balance = utils.Round8(p.Balance - trade.Cost)
}

// ============================================================================
// Сверка с биржей
// ============================================================================

// reconcile сверяет зарезервированные трейды со списком открытых ордеров
// биржи. Ордер, пропавший из списка, считается исполненным.
//
// Сверка восстанавливает состояние независимо от того, успела ли запись
// в журнал после размещения ордера: после рестарта следующий успешный
// цикл приводит учёт в соответствие с биржей.
func (e *Engine) reconcile(ctx context.Context, p *models.Portfolio) error {
	if len(p.Positions) == 0 && len(p.Pending) == 0 {
		return nil
	}

	orders, err := e.exch.GetOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("fetch open orders: %w", err)
	}

	open := make(map[string]bool, len(orders))
	for _, o := range orders {
		open[o.ID] = true
	}

	for _, pair := range sortedKeys(p.Positions) {
		pos := p.Positions[pair]
		if pos.Meta.Status != models.TradeStatusReserved || open[pos.Meta.OrderID] {
			continue
		}
		pos.Meta.Status = models.TradeStatusFilled
		e.fillLedgerTrade(pos.TradeID)
		e.log.Info("покупка исполнена биржей", utils.Pair(pair), utils.TradeID(pos.TradeID))
	}

	for _, pair := range sortedKeys(p.Pending) {
		trade := p.Pending[pair]
		if trade.Meta.Status != models.TradeStatusReserved || open[trade.Meta.OrderID] {
			continue
		}
		trade.Meta.Status = models.TradeStatusFilled
		if err := e.ledger.Save(trade); err != nil {
			return fmt.Errorf("save filled sell trade: %w", err)
		}
		// отложенный приток средств от продажи
		p.Balance = utils.Round8(p.Balance - trade.Cost)
		delete(p.Pending, pair)
		e.log.Info("продажа исполнена биржей", utils.Pair(pair), utils.TradeID(trade.ID))
	}

	return nil
}

// fillLedgerTrade переводит запись журнала в filled.
// Отсутствие записи не фатально для сверки: портфель уже обновлён,
// а журнал догонит на следующем цикле.
func (e *Engine) fillLedgerTrade(id string) {
	trade, err := e.ledger.GetByID(id)
	if err != nil {
		e.log.Warn("запись журнала не найдена при сверке", utils.TradeID(id), utils.Err(err))
		return
	}
	if !models.CanTransitionStatus(trade.Meta.Status, models.TradeStatusFilled) {
		return
	}
	trade.Meta.Status = models.TradeStatusFilled
	if err := e.ledger.Save(trade); err != nil {
		e.log.Warn("не удалось обновить запись журнала", utils.TradeID(id), utils.Err(err))
	}
}

// sortedKeys возвращает ключи карты в детерминированном порядке.
// Позиции обрабатываются ровно один раз за цикл; порядок между парами
// корректностью не требуется, но детерминизм упрощает тесты и логи.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
