package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"coinsignals/internal/config"
	"coinsignals/internal/exchange"
	"coinsignals/internal/models"
	"coinsignals/pkg/utils"
)

// PortfolioID - идентификатор единственного живого документа портфеля
const PortfolioID = "portfolio"

// Отказы политики: состояние не изменяется, трейд не совершается.
// Отличимы от внешних сбоев (сеть, биржа, хранилище), которые
// прерывают цикл и пробрасываются как есть.
var (
	ErrUpdateInFlight    = errors.New("update cycle already in flight")
	ErrTradingPaused     = errors.New("trading is paused")
	ErrExitOnly          = errors.New("exit-only mode, new buys disabled")
	ErrModeMismatch      = errors.New("trading mode does not match portfolio")
	ErrBalanceFloor      = errors.New("balance at minimum limit")
	ErrBlacklisted       = errors.New("pair is blacklisted")
	ErrPositionCap       = errors.New("too many open positions")
	ErrDuplicatePosition = errors.New("position already open for pair")
	ErrNoPosition        = errors.New("no open position for pair")
	ErrUnknownPair       = errors.New("unknown market pair")
)

// PortfolioStore - хранилище документа портфеля
type PortfolioStore interface {
	Get(id string) (*models.Portfolio, error)
	Save(p *models.Portfolio) error
}

// TradeLedger - журнал сделок
type TradeLedger interface {
	Save(t *models.Trade) error
	GetByID(id string) (*models.Trade, error)
}

// Engine - движок управления рисками позиций.
//
// Один изменяемый портфель на процесс; все мутирующие входы (плановый
// тик, входящий сигнал, ручная команда) конкурируют за single-flight
// guard. Попытка начать цикл во время другого отклоняется немедленно,
// без очереди и ожидания. Guard снимается на каждом пути выхода,
// включая ошибки: залипший guard блокирует все последующие циклы.
//
// Внутри цикла операции строго последовательны; параллельной обработки
// позиций нет и не предполагается.
type Engine struct {
	cfg    *config.Config
	store  PortfolioStore
	ledger TradeLedger
	exch   exchange.Client
	log    *utils.Logger

	portfolioID string

	busy     int32
	exitOnly int32

	// подменяется в тестах
	now func() time.Time
}

// NewEngine создает движок
func NewEngine(cfg *config.Config, store PortfolioStore, ledger TradeLedger, exch exchange.Client, log *utils.Logger) *Engine {
	return &Engine{
		cfg:         cfg,
		store:       store,
		ledger:      ledger,
		exch:        exch,
		log:         log.WithComponent("engine"),
		portfolioID: PortfolioID,
		now:         time.Now,
	}
}

// acquire захватывает single-flight guard.
// Возвращает false, если цикл уже идёт.
func (e *Engine) acquire() bool {
	return atomic.CompareAndSwapInt32(&e.busy, 0, 1)
}

// release снимает guard. Вызывается через defer на каждом входе.
func (e *Engine) release() {
	atomic.StoreInt32(&e.busy, 0)
}

// ExitOnly возвращает true, если новые покупки запрещены
func (e *Engine) ExitOnly() bool {
	return atomic.LoadInt32(&e.exitOnly) == 1
}

// ToggleExitOnly переключает режим "только выход" и возвращает новое
// состояние. Существующие позиции продолжают сопровождаться.
func (e *Engine) ToggleExitOnly() bool {
	for {
		old := atomic.LoadInt32(&e.exitOnly)
		if atomic.CompareAndSwapInt32(&e.exitOnly, old, 1-old) {
			on := old == 0
			e.log.Info("режим exit-only переключен", utils.String("exit_only", strconv.FormatBool(on)))
			return on
		}
	}
}

// ============================================================================
// Плановый цикл
// ============================================================================

// Tick выполняет один полный цикл переоценки:
// загрузка портфеля → сверка с биржей → рыночные данные → обслуживание
// состояния (возобновление после паузы, волатильность, чёрный список) →
// снимки стакана → решения по позициям → единственное сохранение.
//
// Возвращает сообщения совершённых трейдов. Внешний сбой прерывает цикл
// без сохранения; журнал догоняет портфель сверкой на следующем цикле.
func (e *Engine) Tick(ctx context.Context) ([]string, error) {
	if !e.acquire() {
		RecordCycle("busy")
		e.log.Warn("цикл отклонён: предыдущий ещё выполняется")
		return nil, ErrUpdateInFlight
	}
	defer e.release()

	start := e.now()
	messages, err := e.runCycle(ctx)
	if err != nil {
		RecordCycle("error")
		return nil, err
	}
	ObserveCycleDuration(e.now().Sub(start))
	RecordCycle("ok")
	return messages, nil
}

func (e *Engine) runCycle(ctx context.Context) ([]string, error) {
	now := e.now()
	e.log.Debug("начало цикла переоценки")

	p, err := e.store.Get(e.portfolioID)
	if err != nil {
		return nil, fmt.Errorf("load portfolio: %w", err)
	}
	if p.Live != e.cfg.Exchange.Live {
		return nil, ErrModeMismatch
	}

	if e.cfg.Exchange.Live {
		if err := e.reconcile(ctx, p); err != nil {
			return nil, err
		}
	}

	markets, err := e.fetchMarkets(ctx)
	if err != nil {
		return nil, err
	}

	e.maintainState(p, markets, now)

	if err := e.snapshotBooks(ctx, p); err != nil {
		return nil, err
	}

	messages, err := e.evaluatePositions(ctx, p, markets, now)
	if err != nil {
		return nil, err
	}

	if err := e.store.Save(p); err != nil {
		return nil, fmt.Errorf("save portfolio: %w", err)
	}

	SetPortfolioGauges(p)
	return messages, nil
}

// fetchMarkets загружает сводки всех рынков и индексирует их по паре
func (e *Engine) fetchMarkets(ctx context.Context) (map[string]*exchange.MarketSummary, error) {
	summaries, err := e.exch.GetMarketSummaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	markets := make(map[string]*exchange.MarketSummary, len(summaries))
	for i := range summaries {
		markets[summaries[i].Pair] = &summaries[i]
	}
	return markets, nil
}

// maintainState обслуживает состояние портфеля перед решениями:
// снимает истёкшую паузу волатильности, чистит чёрный список,
// проверяет дельту опорной пары.
func (e *Engine) maintainState(p *models.Portfolio, markets map[string]*exchange.MarketSummary, now time.Time) {
	if p.State.MaybeResume(now) {
		e.log.Info("таймаут волатильности истёк, торговля возобновлена")
	}

	for _, pair := range p.PruneBlacklist(now) {
		e.log.Info("пара исключена из чёрного списка", utils.Pair(pair))
	}

	ref, ok := markets[e.cfg.Trading.ReferencePair]
	if !ok {
		e.log.Warn("нет сводки опорной пары", utils.Pair(e.cfg.Trading.ReferencePair))
		return
	}

	delta := 0.0
	if ref.Bid != 0 && p.ReferencePrice != 0 {
		delta = utils.PercentChange(p.ReferencePrice, ref.Bid)
	}
	if utils.Abs(delta) >= e.cfg.Trading.MaxVolatility && p.State.Status != models.TradingPaused {
		// ручная пауза сильнее автоматической и не перетирается
		p.State.PauseUntil(now.Add(e.cfg.Trading.VolatilityTimeout))
		e.log.Warn("обвал опорной пары, торговля приостановлена",
			utils.Pair(e.cfg.Trading.ReferencePair),
			utils.String("delta", strconv.FormatFloat(delta, 'f', 6, 64)))
		RecordBreaker()
	}
	p.ReferencePrice = ref.Bid
}

// snapshotBooks обновляет снимки стакана сопровождаемых позиций.
// У несопровождаемых позиций снимок сбрасывается.
func (e *Engine) snapshotBooks(ctx context.Context, p *models.Portfolio) error {
	for _, pair := range sortedKeys(p.Positions) {
		pos := p.Positions[pair]
		if !pos.Monitoring(e.cfg.Trading.OrderParsing) {
			pos.Book = nil
			continue
		}
		book, err := e.exch.GetOrderBook(ctx, pair)
		if err != nil {
			return fmt.Errorf("fetch order book %s: %w", pair, err)
		}
		pos.Book = ComputeBookStats(book, pos.Units)
		e.log.Debug("снимок стакана обновлён", utils.Pair(pair),
			utils.String("ask_spread", strconv.FormatFloat(pos.Book.AskSpreadFrac, 'f', 4, 64)),
			utils.String("avg_spread", strconv.FormatFloat(pos.Book.AvgSpreadFrac, 'f', 4, 64)))
	}
	return nil
}

// ============================================================================
// Входящие сигналы
// ============================================================================

// SubmitSignal обрабатывает типизированный торговый сигнал.
// Возвращает сообщение совершённого трейда либо отказ политики.
func (e *Engine) SubmitSignal(ctx context.Context, sig *models.Signal) (string, error) {
	if !e.acquire() {
		return "", ErrUpdateInFlight
	}
	defer e.release()

	switch sig.Action {
	case models.SignalBuy:
		msg, err := e.buySignal(ctx, sig)
		if err != nil {
			RecordRejection(err)
		}
		return msg, err
	case models.SignalSell:
		return e.sellSignal(ctx, sig)
	default:
		return "", fmt.Errorf("unknown signal action %q", sig.Action)
	}
}

func (e *Engine) buySignal(ctx context.Context, sig *models.Signal) (string, error) {
	now := e.now()
	e.log.Info("получен сигнал на покупку", utils.Pair(sig.Pair))

	p, err := e.store.Get(e.portfolioID)
	if err != nil {
		return "", fmt.Errorf("load portfolio: %w", err)
	}

	if err := e.validateBuy(p, sig.Pair, now); err != nil {
		return "", err
	}

	per, purchase, err := e.resolveBuyPrices(ctx, p, sig)
	if err != nil {
		return "", err
	}

	if sig.Tag == "" {
		sig.Tag = fmt.Sprintf("%d-signal", now.UnixMilli())
	}

	trade, err := e.makeBuyTrade(ctx, sig, per, purchase, now)
	if err != nil {
		return "", err
	}
	e.applyBuyTrade(p, trade)

	if err := e.store.Save(p); err != nil {
		return "", fmt.Errorf("save portfolio: %w", err)
	}

	RecordTrade(trade)
	SetPortfolioGauges(p)
	return tradeMessage(trade), nil
}

// validateBuy применяет политики допуска новой покупки
func (e *Engine) validateBuy(p *models.Portfolio, pair string, now time.Time) error {
	if e.ExitOnly() {
		return ErrExitOnly
	}
	if !p.State.Active() {
		return ErrTradingPaused
	}
	if p.Live != e.cfg.Exchange.Live {
		return ErrModeMismatch
	}
	if p.Balance <= e.cfg.Trading.MinBalance {
		return fmt.Errorf("%w: %v", ErrBalanceFloor, p.Balance)
	}
	if p.IsBlacklisted(pair, now) {
		remaining := p.Blacklist[pair].Sub(now)
		return fmt.Errorf("%w: %s for %s", ErrBlacklisted, pair, utils.FormatDuration(remaining))
	}
	if len(p.Positions) >= e.cfg.Trading.MaxPositions {
		return fmt.Errorf("%w: %d", ErrPositionCap, len(p.Positions))
	}
	if _, ok := p.Positions[pair]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicatePosition, pair)
	}
	return nil
}

// resolveBuyPrices определяет цену за единицу и сумму покупки.
// Явные цена и количество используются как есть; рыночный сентинел
// берёт ask и меньшее из максимального размера позиции и остатка
// баланса за вычетом минимума.
func (e *Engine) resolveBuyPrices(ctx context.Context, p *models.Portfolio, sig *models.Signal) (per, purchase float64, err error) {
	cfg := &e.cfg.Trading

	if sig.Explicit() {
		per = sig.Price.Value
		notional := sig.Price.Value * sig.Qty.Value
		purchase = notional
		if p.Balance <= notional {
			purchase = p.Balance - cfg.MinBalance
		}
	} else {
		summary, err := e.exch.GetMarketSummary(ctx, sig.Pair)
		if err != nil {
			var exchErr *exchange.ExchangeError
			if errors.As(err, &exchErr) {
				return 0, 0, fmt.Errorf("%w: %s", ErrUnknownPair, sig.Pair)
			}
			return 0, 0, fmt.Errorf("fetch market %s: %w", sig.Pair, err)
		}
		per = summary.Ask
		purchase = utils.Min(cfg.MaxPositionPrice, p.Balance-cfg.MinBalance)
	}

	if per <= 0 {
		return 0, 0, fmt.Errorf("invalid price %v for %s", per, sig.Pair)
	}
	if purchase <= 0 {
		return 0, 0, fmt.Errorf("%w: %v", ErrBalanceFloor, p.Balance)
	}
	return per, purchase, nil
}

func (e *Engine) sellSignal(ctx context.Context, sig *models.Signal) (string, error) {
	now := e.now()
	e.log.Info("получен сигнал на продажу", utils.Pair(sig.Pair))

	p, err := e.store.Get(e.portfolioID)
	if err != nil {
		return "", fmt.Errorf("load portfolio: %w", err)
	}
	if p.Live != e.cfg.Exchange.Live {
		return "", ErrModeMismatch
	}

	pos, ok := p.Positions[sig.Pair]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoPosition, sig.Pair)
	}

	per := sig.Price.Value
	if sig.Price.Market {
		summary, err := e.exch.GetMarketSummary(ctx, sig.Pair)
		if err != nil {
			return "", fmt.Errorf("fetch market %s: %w", sig.Pair, err)
		}
		per = summary.Bid
	}

	trade, err := e.makeSellTrade(ctx, pos, per, pos.Limits, false, now)
	if err != nil {
		return "", err
	}
	e.applySellTrade(p, trade)

	if err := e.store.Save(p); err != nil {
		return "", fmt.Errorf("save portfolio: %w", err)
	}

	RecordTrade(trade)
	SetPortfolioGauges(p)
	return tradeMessage(trade), nil
}

// ============================================================================
// Ручные команды
// ============================================================================

// ManualBuy открывает позицию по явным цене и количеству.
// Административная операция: пропускает политики активности и чёрного
// списка, но не допускает дубликат пары и уход баланса в минус.
func (e *Engine) ManualBuy(ctx context.Context, pair string, price, qty float64) (string, error) {
	if !e.acquire() {
		return "", ErrUpdateInFlight
	}
	defer e.release()

	now := e.now()
	e.log.Info("ручная покупка", utils.Pair(pair), utils.Price(price), utils.Units(qty))

	if price <= 0 || qty <= 0 {
		return "", fmt.Errorf("invalid manual buy: price %v qty %v", price, qty)
	}

	p, err := e.store.Get(e.portfolioID)
	if err != nil {
		return "", fmt.Errorf("load portfolio: %w", err)
	}
	if p.Live != e.cfg.Exchange.Live {
		return "", ErrModeMismatch
	}
	if _, ok := p.Positions[pair]; ok {
		return "", fmt.Errorf("%w: %s", ErrDuplicatePosition, pair)
	}
	purchase := price * qty
	if p.Balance-purchase*(1+e.cfg.Trading.Fee) < 0 {
		return "", fmt.Errorf("%w: %v", ErrBalanceFloor, p.Balance)
	}

	sig := &models.Signal{
		Action: models.SignalBuy,
		Pair:   pair,
		Price:  models.ExplicitValue(price),
		Qty:    models.ExplicitValue(qty),
		Tag:    fmt.Sprintf("%d-command", now.UnixMilli()),
	}

	trade, err := e.makeBuyTrade(ctx, sig, price, purchase, now)
	if err != nil {
		return "", err
	}
	e.applyBuyTrade(p, trade)

	if err := e.store.Save(p); err != nil {
		return "", fmt.Errorf("save portfolio: %w", err)
	}

	RecordTrade(trade)
	SetPortfolioGauges(p)
	return tradeMessage(trade), nil
}

// ManualSell ликвидирует позицию по указанной либо рыночной цене
func (e *Engine) ManualSell(ctx context.Context, pair string, price models.OrderValue) (string, error) {
	if !e.acquire() {
		return "", ErrUpdateInFlight
	}
	defer e.release()

	now := e.now()
	e.log.Info("ручная ликвидация", utils.Pair(pair))

	p, err := e.store.Get(e.portfolioID)
	if err != nil {
		return "", fmt.Errorf("load portfolio: %w", err)
	}
	if p.Live != e.cfg.Exchange.Live {
		return "", ErrModeMismatch
	}

	pos, ok := p.Positions[pair]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoPosition, pair)
	}

	per := price.Value
	if price.Market {
		summary, err := e.exch.GetMarketSummary(ctx, pair)
		if err != nil {
			return "", fmt.Errorf("fetch market %s: %w", pair, err)
		}
		per = summary.Bid
	}

	trade, err := e.makeSellTrade(ctx, pos, per, pos.Limits, true, now)
	if err != nil {
		return "", err
	}
	e.applySellTrade(p, trade)

	if err := e.store.Save(p); err != nil {
		return "", fmt.Errorf("save portfolio: %w", err)
	}

	RecordTrade(trade)
	SetPortfolioGauges(p)
	return tradeMessage(trade), nil
}

// Writeoff списывает позицию без продажи: терминальный трейд,
// стоимость входа возвращается на баланс
func (e *Engine) Writeoff(ctx context.Context, pair string) (string, error) {
	if !e.acquire() {
		return "", ErrUpdateInFlight
	}
	defer e.release()

	now := e.now()
	e.log.Info("списание позиции", utils.Pair(pair))

	p, err := e.store.Get(e.portfolioID)
	if err != nil {
		return "", fmt.Errorf("load portfolio: %w", err)
	}

	pos, ok := p.Positions[pair]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoPosition, pair)
	}

	trade, err := e.makeWriteoffTrade(pos, now)
	if err != nil {
		return "", err
	}
	e.applyWriteoffTrade(p, trade)

	if err := e.store.Save(p); err != nil {
		return "", fmt.Errorf("save portfolio: %w", err)
	}

	RecordTrade(trade)
	SetPortfolioGauges(p)
	return tradeMessage(trade), nil
}

// Halt переводит торговлю в ручную паузу; позиции только наблюдаются
func (e *Engine) Halt(ctx context.Context) error {
	return e.setState(func(s *models.TradingState) { s.Halt() }, "торговля остановлена, только наблюдение")
}

// Resume возобновляет торговлю после ручной паузы
func (e *Engine) Resume(ctx context.Context) error {
	return e.setState(func(s *models.TradingState) { s.Resume() }, "торговля возобновлена")
}

func (e *Engine) setState(mutate func(*models.TradingState), msg string) error {
	if !e.acquire() {
		return ErrUpdateInFlight
	}
	defer e.release()

	p, err := e.store.Get(e.portfolioID)
	if err != nil {
		return fmt.Errorf("load portfolio: %w", err)
	}
	mutate(&p.State)
	if err := e.store.Save(p); err != nil {
		return fmt.Errorf("save portfolio: %w", err)
	}
	e.log.Info(msg, utils.State(p.State.Status))
	return nil
}

// ============================================================================
// Сообщения трейдов
// ============================================================================

// tradeMessage форматирует человекочитаемое сообщение о трейде
func tradeMessage(t *models.Trade) string {
	units := strconv.FormatFloat(t.Units, 'f', -1, 64)
	price := strconv.FormatFloat(t.Price, 'f', -1, 64)

	switch t.Side() {
	case models.TradeSideBuy:
		cost := strconv.FormatFloat(t.Cost, 'f', -1, 64)
		return fmt.Sprintf("[%s] Buy %s - %s @ %s - %s BTC", t.ID, t.Pair, units, price, cost)
	case models.TradeSideSell:
		amount := strconv.FormatFloat(t.Profit.Amount, 'f', -1, 64)
		return fmt.Sprintf("[%s] Sell %s - %s @ %s - Profit: %s [%.3f%%] BTC",
			t.ID, t.Pair, units, price, amount, t.Profit.Percentage*100)
	case models.TradeSideRefund:
		return fmt.Sprintf("[%s] Refund %s - %s @ %s BTC", t.ID, t.Pair, units, price)
	case models.TradeSideWriteoff:
		return fmt.Sprintf("[%s] Writeoff %s - %s @ %s BTC", t.ID, t.Pair, units, price)
	default:
		return fmt.Sprintf("[%s] %s - %s @ %s BTC", t.ID, t.Pair, units, price)
	}
}
