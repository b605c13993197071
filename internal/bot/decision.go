package bot

import (
	"context"
	"time"

	"coinsignals/internal/exchange"
	"coinsignals/internal/models"
	"coinsignals/pkg/utils"
)

// ============================================================================
// Решения по открытым позициям
// ============================================================================
//
// Каждая позиция проходит фиксированную последовательность ветвей,
// первая сработавшая побеждает:
//
//  1. цена выше профит-лимита: продажа при низком спреде или резком
//     скачке, иначе подтягивание лимитов (ratchet) без продажи
//  2. цена ниже лосс-лимита: льготный период для молодых позиций,
//     первая просадка даёт warning, вторая продаёт
//  3. режим мониторинга: продажа только при подходящем состоянии
//     стакана, с отдельными insta-порогами
//  4. лимб между лимитами: удержание, синхронизация возрастных лимитов
//  5. чистый убыток: бэкофф пары в чёрном списке пропорционально убытку
//  6. исполнение: refund для неисполненных ордеров, иначе sell

// evaluatePositions прогоняет все открытые позиции через решающую
// последовательность. Возвращает сообщения о совершённых трейдах.
func (e *Engine) evaluatePositions(ctx context.Context, p *models.Portfolio, markets map[string]*exchange.MarketSummary, now time.Time) ([]string, error) {
	var messages []string

	for _, pair := range sortedKeys(p.Positions) {
		pos := p.Positions[pair]

		summary, ok := markets[pair]
		if !ok {
			e.log.Warn("нет рыночной сводки для позиции", utils.Pair(pair))
			continue
		}

		msg, err := e.evaluatePosition(ctx, p, pos, summary, now)
		if err != nil {
			return messages, err
		}
		if msg != "" {
			messages = append(messages, msg)
		}
	}

	return messages, nil
}

// evaluatePosition принимает решение по одной позиции.
// Возвращает сообщение трейда, если позиция была закрыта.
func (e *Engine) evaluatePosition(ctx context.Context, p *models.Portfolio, pos *models.Position, summary *exchange.MarketSummary, now time.Time) (string, error) {
	cfg := &e.cfg.Trading

	aged := agedLimits(cfg, pos, now)
	per := utils.Round8(summary.Bid)
	last := pos.Current

	monitoring := pos.Monitoring(cfg.OrderParsing) && pos.Book != nil
	if monitoring {
		// взвешенная fill-цена вместо top-of-book котировки
		per = pos.Book.BidFillPrice
	}
	pos.Current = per

	limits := aged.Limits
	isLosing := per <= pos.Price
	lowSpread := per > pos.Price && summary.Spread <= cfg.SpreadToSell

	ticker := utils.FormatTicker(pos.Pair, per, utils.PercentChange(pos.Price, per))

	// убыточную позицию перестаём сопровождать по стакану
	if monitoring && isLosing {
		pos.Meta.Secure = false
		monitoring = false
	}

	if !p.State.Active() {
		e.log.Debug("торговля приостановлена, только наблюдение", utils.Pair(pos.Pair))
		return "", nil
	}

	selling := false

	// 1. Зона прибыли
	if per > limits.Profit {
		delta := (per - last) / pos.Price
		switch {
		case lowSpread:
			e.log.Info("низкий спред, продаём " + ticker)
			selling = true
		case delta < cfg.ProfitIncreaseOverride:
			// фиксация прибыли: лимиты подтягиваются к цене, продажи нет
			limits.Loss = utils.Round8(per * (1 - cfg.ProfitSlip))
			limits.Profit = utils.Round8(per * (1 + cfg.ProfitIncrease))
			pos.Limits = limits
			pos.Meta.Secure = true
			pos.Meta.Warning = false
			e.log.Info("прибыль зафиксирована "+ticker, utils.Price(limits.Profit))
			RecordRatchet(pos.Pair)
			return "", nil
		default:
			// скачок за один тик слишком велик, чтобы ему доверять
			e.log.Info("превышен порог прироста за тик, продаём " + ticker)
			selling = true
		}
	}

	// 2. Зона убытка: льгота по возрасту, затем warning, затем продажа
	if per < limits.Loss && per < pos.Price && !selling {
		if aged.Age < cfg.InitialSellDelay {
			e.log.Warn("убыточная продажа отложена по возрасту "+ticker,
				utils.String("age", utils.FormatDuration(aged.Age)))
			return "", nil
		}
		if !pos.Meta.Warning {
			pos.Limits.Loss = per
			pos.Meta.Warning = true
			e.log.Warn("позиция переведена в warning " + ticker)
			return "", nil
		}
	}

	// 3. Мониторинг стакана: продаём только при подходящем спреде
	if monitoring {
		book := pos.Book
		askOK := book.AskSpreadFrac <= cfg.SpreadAsk
		avgOK := book.AvgSpreadFrac >= cfg.SpreadAvg
		if !askOK || !avgOK {
			askInsta := book.AskSpreadFrac <= cfg.SpreadAskInsta
			avgInsta := book.AvgSpreadFrac >= cfg.SpreadAvgInsta
			if !askInsta && !avgInsta {
				return "", nil
			}
		}
		e.log.Info("продажа по состоянию стакана " + ticker)
		selling = true
		// исполняемся по ставке последнего потреблённого ask-ордера
		per = book.AskOrderRate
	}

	// 4. Лимб между лимитами: держим и синхронизируем возрастную корзину
	if per >= limits.Loss && per <= limits.Profit && !selling {
		if pos.Limits.Profit != limits.Profit {
			pos.Limits = limits
			pos.Meta.Warning = false
			e.log.Debug("позиция перешла в другую возрастную корзину", utils.Pair(pos.Pair))
		}
		return "", nil
	}

	// 5. Бэкофф токсичного актива пропорционально величине убытка
	lossPct := utils.PercentChange(pos.Price, per)
	if lossPct < 0 {
		backoff := time.Duration(lossPct * -100 * cfg.ToxicBackoff * float64(time.Millisecond))
		if backoff > cfg.MaxToxicBackoff {
			backoff = cfg.MaxToxicBackoff
		}
		p.Blacklist[pos.Pair] = now.Add(backoff)
		e.log.Warn("пара в чёрном списке "+ticker,
			utils.String("backoff", utils.FormatDuration(backoff)))
		RecordBlacklist(pos.Pair)
	}

	// 6. Исполнение: неподтверждённый ордер отменяем, остальное продаём
	var trade *models.Trade
	var err error
	if pos.Meta.Status != models.TradeStatusFilled {
		e.log.Info("отмена неисполненного ордера " + ticker)
		trade, err = e.makeRefundTrade(ctx, pos, now)
		if err != nil {
			return "", err
		}
		e.applyRefundTrade(p, trade)
	} else {
		trade, err = e.makeSellTrade(ctx, pos, per, limits, false, now)
		if err != nil {
			return "", err
		}
		e.applySellTrade(p, trade)
	}
	RecordTrade(trade)

	return tradeMessage(trade), nil
}
