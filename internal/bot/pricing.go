package bot

import (
	"coinsignals/internal/exchange"
	"coinsignals/internal/models"
	"coinsignals/pkg/utils"
)

// Глубина стакана, участвующая в расчёте взвешенных цен
const bookDepth = 10

// walkLadder проходит по лестнице ордеров, потребляя ордера целиком,
// пока не будет набран требуемый объём или не кончится глубина.
//
// Возвращает:
//   - fillPrice: средневзвешенная цена исполнения всего объёма
//   - lastRate: ставка ордера, закрывшего остаток объёма
//     (0 если глубины не хватило)
func walkLadder(levels []exchange.PriceLevel, qty float64) (fillPrice, lastRate float64) {
	if qty <= 0 {
		return 0, 0
	}

	unitsLeft := qty
	cost := 0.0
	for _, level := range levels {
		if unitsLeft <= 0 {
			break
		}
		if level.Quantity >= unitsLeft {
			// ордер больше остатка: добираем и запоминаем ставку исполнения
			cost += unitsLeft * level.Rate
			lastRate = level.Rate
			unitsLeft = 0
		} else {
			// забираем ордер целиком и идём глубже
			cost += level.Quantity * level.Rate
			unitsLeft -= level.Quantity
		}
	}

	return utils.Round8(cost / qty), lastRate
}

// ComputeBookStats вычисляет метрики стакана для позиции размера qty.
//
// Top-of-book котировка занижает или завышает реальную цену выхода из
// позиции нетривиального размера; fill-цены отвечают на вопрос
// "почём фактически исполнится весь объём".
//
// Стороны стакана обрезаются до bookDepth уровней. Базой AvgSpread
// служит средневзвешенная по объёму ставка bid-стороны.
func ComputeBookStats(book *exchange.OrderBook, qty float64) *models.BookStats {
	bids := book.Bids
	if len(bids) > bookDepth {
		bids = bids[:bookDepth]
	}
	asks := book.Asks
	if len(asks) > bookDepth {
		asks = asks[:bookDepth]
	}

	stats := &models.BookStats{}
	stats.BidFillPrice, stats.BidOrderRate = walkLadder(bids, qty)
	stats.AskFillPrice, stats.AskOrderRate = walkLadder(asks, qty)

	stats.AskSpread = utils.Round8(stats.AskFillPrice - stats.BidFillPrice)
	if stats.AskFillPrice > 0 {
		stats.AskSpreadFrac = stats.AskSpread / stats.AskFillPrice
	}

	avgBidRate := weightedBidRate(bids)
	stats.AvgSpread = utils.Round8(stats.BidFillPrice - avgBidRate)
	if avgBidRate > 0 {
		stats.AvgSpreadFrac = stats.AvgSpread / avgBidRate
	}

	return stats
}

// weightedBidRate возвращает средневзвешенную по объёму ставку стороны
func weightedBidRate(levels []exchange.PriceLevel) float64 {
	rates := make([]float64, len(levels))
	quantities := make([]float64, len(levels))
	for i, level := range levels {
		rates[i] = level.Rate
		quantities[i] = level.Quantity
	}
	return utils.WeightedRate(rates, quantities)
}
