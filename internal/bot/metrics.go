package bot

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"coinsignals/internal/models"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о залипших циклах и обвалах

// ============ Метрики цикла ============

// CycleDuration - длительность полного цикла переоценки
var CycleDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "coinsignals",
		Subsystem: "engine",
		Name:      "cycle_duration_seconds",
		Help:      "Duration of a full position update cycle in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
)

// CyclesTotal - количество циклов по исходу (ok/error/busy)
var CyclesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinsignals",
		Subsystem: "engine",
		Name:      "cycles_total",
		Help:      "Total number of update cycles by outcome",
	},
	[]string{"outcome"},
)

// ============ Метрики трейдов ============

// TradesTotal - количество трейдов по сторонам
var TradesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinsignals",
		Subsystem: "engine",
		Name:      "trades_total",
		Help:      "Total number of trades by side",
	},
	[]string{"side"},
)

// RealizedProfit - накопленная зафиксированная прибыль (может убывать)
var RealizedProfit = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "coinsignals",
		Subsystem: "engine",
		Name:      "realized_profit_btc",
		Help:      "Cumulative realized profit of the current process in BTC",
	},
)

// SignalRejections - отказы политики по причинам
var SignalRejections = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinsignals",
		Subsystem: "engine",
		Name:      "signal_rejections_total",
		Help:      "Total number of buy signals rejected by policy",
	},
	[]string{"reason"},
)

// ============ Метрики состояния портфеля ============

// PortfolioBalance - текущий баланс квотируемой валюты
var PortfolioBalance = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "coinsignals",
		Subsystem: "portfolio",
		Name:      "balance_btc",
		Help:      "Current quote currency balance in BTC",
	},
)

// OpenPositions - количество открытых позиций
var OpenPositions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "coinsignals",
		Subsystem: "portfolio",
		Name:      "open_positions",
		Help:      "Number of open positions",
	},
)

// BlacklistSize - размер чёрного списка
var BlacklistSize = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "coinsignals",
		Subsystem: "portfolio",
		Name:      "blacklist_size",
		Help:      "Number of blacklisted pairs",
	},
)

// ============ Метрики защитных механизмов ============

// RatchetsTotal - подтягивания лимитов по парам
var RatchetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinsignals",
		Subsystem: "engine",
		Name:      "ratchets_total",
		Help:      "Total number of profit ratchets by pair",
	},
	[]string{"pair"},
)

// BlacklistsTotal - попадания пар в чёрный список
var BlacklistsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "coinsignals",
		Subsystem: "engine",
		Name:      "blacklists_total",
		Help:      "Total number of blacklist entries by pair",
	},
	[]string{"pair"},
)

// VolatilityBreaksTotal - срабатывания защиты от волатильности
var VolatilityBreaksTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "coinsignals",
		Subsystem: "engine",
		Name:      "volatility_breaks_total",
		Help:      "Total number of volatility circuit breaker activations",
	},
)

// ============ Помощники записи ============

// RecordCycle инкрементирует счётчик циклов
func RecordCycle(outcome string) {
	CyclesTotal.WithLabelValues(outcome).Inc()
}

// ObserveCycleDuration записывает длительность цикла
func ObserveCycleDuration(d time.Duration) {
	CycleDuration.Observe(d.Seconds())
}

// RecordTrade учитывает совершённый трейд
func RecordTrade(t *models.Trade) {
	TradesTotal.WithLabelValues(t.Side()).Inc()
	if t.Profit != nil {
		RealizedProfit.Add(t.Profit.Amount)
	}
}

// RecordRatchet учитывает подтягивание лимитов
func RecordRatchet(pair string) {
	RatchetsTotal.WithLabelValues(pair).Inc()
}

// RecordBlacklist учитывает попадание пары в чёрный список
func RecordBlacklist(pair string) {
	BlacklistsTotal.WithLabelValues(pair).Inc()
}

// RecordBreaker учитывает срабатывание защиты от волатильности
func RecordBreaker() {
	VolatilityBreaksTotal.Inc()
}

// RecordRejection учитывает отказ политики по известной причине
func RecordRejection(err error) {
	switch {
	case errors.Is(err, ErrTradingPaused):
		SignalRejections.WithLabelValues("paused").Inc()
	case errors.Is(err, ErrExitOnly):
		SignalRejections.WithLabelValues("exit_only").Inc()
	case errors.Is(err, ErrBalanceFloor):
		SignalRejections.WithLabelValues("balance").Inc()
	case errors.Is(err, ErrBlacklisted):
		SignalRejections.WithLabelValues("blacklist").Inc()
	case errors.Is(err, ErrPositionCap):
		SignalRejections.WithLabelValues("position_cap").Inc()
	case errors.Is(err, ErrDuplicatePosition):
		SignalRejections.WithLabelValues("duplicate").Inc()
	case errors.Is(err, ErrModeMismatch):
		SignalRejections.WithLabelValues("mode_mismatch").Inc()
	default:
		SignalRejections.WithLabelValues("other").Inc()
	}
}

// SetPortfolioGauges обновляет gauge-метрики состояния портфеля
func SetPortfolioGauges(p *models.Portfolio) {
	PortfolioBalance.Set(p.Balance)
	OpenPositions.Set(float64(len(p.Positions)))
	BlacklistSize.Set(float64(len(p.Blacklist)))
}
