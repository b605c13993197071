package bot

import (
	"time"

	"coinsignals/internal/config"
	"coinsignals/internal/models"
	"coinsignals/pkg/utils"
)

// Имена возрастных корзин
const (
	bracketFresh = "fresh"
	bracketStale = "stale"
	bracketOld   = "old"
)

// ageResult - лимиты позиции, пересчитанные по её возрасту
type ageResult struct {
	Age     time.Duration
	Bracket string
	Limits  models.Limits
}

// agedLimits выбирает возрастную корзину позиции и возвращает
// соответствующие ей абсолютные лимиты.
//
// Чем старше позиция, тем шире коридор: уверенность в импульсе
// со временем падает, и выход откладывается в пользу более
// свободных границ.
//
// Если на позиции стоит warning или secure, уже подтянутые лимиты
// возвращаются без изменений: ручное ужесточение риска не должно
// перетираться более свободной возрастной корзиной.
func agedLimits(cfg *config.TradingConfig, pos *models.Position, now time.Time) ageResult {
	age := pos.Age(now)

	if pos.Meta.Warning || pos.Meta.Secure {
		return ageResult{Age: age, Limits: pos.Limits}
	}

	var bracket string
	var lossFrac, profitFrac float64
	switch {
	case age <= cfg.FreshMaxAge:
		bracket = bracketFresh
		lossFrac, profitFrac = cfg.FreshLoss, cfg.FreshProfit
	case age <= cfg.StaleMaxAge:
		bracket = bracketStale
		lossFrac, profitFrac = cfg.StaleLoss, cfg.StaleProfit
	default:
		bracket = bracketOld
		lossFrac, profitFrac = cfg.OldLoss, cfg.OldProfit
	}

	return ageResult{
		Age:     age,
		Bracket: bracket,
		Limits: models.Limits{
			Loss:   utils.Round8(pos.Price * (1 - lossFrac)),
			Profit: utils.Round8(pos.Price * (1 + profitFrac)),
		},
	}
}

// freshLimits возвращает лимиты свежей корзины для цены входа.
// Используется при создании позиции.
func freshLimits(cfg *config.TradingConfig, price float64) models.Limits {
	return models.Limits{
		Loss:   utils.Round8(price * (1 - cfg.FreshLoss)),
		Profit: utils.Round8(price * (1 + cfg.FreshProfit)),
	}
}
