package bot

import (
	"context"
	"errors"
	"sync"
	"time"

	"coinsignals/internal/config"
	"coinsignals/internal/exchange"
	"coinsignals/internal/models"
	"coinsignals/pkg/utils"
)

// ============================================================================
// Моки коллабораторов движка
// ============================================================================

type mockStore struct {
	mu        sync.Mutex
	portfolio *models.Portfolio
	getErr    error
	saveErr   error
	saves     int
}

func (m *mockStore) Get(id string) (*models.Portfolio, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.portfolio, nil
}

func (m *mockStore) Save(p *models.Portfolio) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	m.portfolio = p
	return nil
}

type mockLedger struct {
	mu      sync.Mutex
	saved   []*models.Trade
	saveErr error
}

func (m *mockLedger) Save(t *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *t
	m.saved = append(m.saved, &copied)
	return nil
}

func (m *mockLedger) GetByID(id string) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].ID == id {
			copied := *m.saved[i]
			return &copied, nil
		}
	}
	return nil, errors.New("trade not found")
}

func (m *mockLedger) bySide(side string) []*models.Trade {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Trade
	for _, t := range m.saved {
		if t.Side() == side {
			out = append(out, t)
		}
	}
	return out
}

type mockExchange struct {
	mu sync.Mutex

	summaries   []exchange.MarketSummary
	summaryErr  error
	books       map[string]*exchange.OrderBook
	bookErr     error
	openOrders  []exchange.OpenOrder
	ordersErr   error
	buyOrderID  string
	sellOrderID string
	placeErr    error

	buys      []placedOrder
	sells     []placedOrder
	cancelled []string
}

type placedOrder struct {
	Pair string
	Qty  float64
	Rate float64
}

func (m *mockExchange) GetMarketSummaries(ctx context.Context) ([]exchange.MarketSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summaryErr != nil {
		return nil, m.summaryErr
	}
	return m.summaries, nil
}

func (m *mockExchange) GetMarketSummary(ctx context.Context, pair string) (*exchange.MarketSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summaryErr != nil {
		return nil, m.summaryErr
	}
	for i := range m.summaries {
		if m.summaries[i].Pair == pair {
			return &m.summaries[i], nil
		}
	}
	return nil, &exchange.ExchangeError{Endpoint: "getmarketsummary", Message: "INVALID_MARKET"}
}

func (m *mockExchange) GetOrderBook(ctx context.Context, pair string) (*exchange.OrderBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bookErr != nil {
		return nil, m.bookErr
	}
	book, ok := m.books[pair]
	if !ok {
		return nil, &exchange.ExchangeError{Endpoint: "getorderbook", Message: "INVALID_MARKET"}
	}
	return book, nil
}

func (m *mockExchange) BuyLimit(ctx context.Context, pair string, qty, rate float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placeErr != nil {
		return "", m.placeErr
	}
	m.buys = append(m.buys, placedOrder{Pair: pair, Qty: qty, Rate: rate})
	return m.buyOrderID, nil
}

func (m *mockExchange) SellLimit(ctx context.Context, pair string, qty, rate float64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.placeErr != nil {
		return "", m.placeErr
	}
	m.sells = append(m.sells, placedOrder{Pair: pair, Qty: qty, Rate: rate})
	return m.sellOrderID, nil
}

func (m *mockExchange) CancelOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelled = append(m.cancelled, orderID)
	return nil
}

func (m *mockExchange) GetOpenOrders(ctx context.Context) ([]exchange.OpenOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ordersErr != nil {
		return nil, m.ordersErr
	}
	return m.openOrders, nil
}

func (m *mockExchange) GetBalance(ctx context.Context, currency string) (float64, error) {
	return 0, nil
}

// ============================================================================
// Конструкторы тестового окружения
// ============================================================================

func testConfig(live bool) *config.Config {
	return &config.Config{
		Exchange: config.ExchangeConfig{Live: live},
		Trading: config.TradingConfig{
			Fee: 0.0025,

			FreshProfit: 0.04,
			FreshLoss:   0.07,
			FreshMaxAge: 30 * time.Minute,
			StaleProfit: 0.03,
			StaleLoss:   0.06,
			StaleMaxAge: 60 * time.Minute,
			OldProfit:   0.02,
			OldLoss:     0.05,

			ProfitIncrease:         0.005,
			ProfitSlip:             0.005,
			ProfitIncreaseOverride: 0.05,

			OrderParsing:   true,
			SpreadAsk:      0.01,
			SpreadAskInsta: 0.001,
			SpreadAvg:      0.015,
			SpreadAvgInsta: 0.03,

			InitialSellDelay: 10 * time.Minute,
			SpreadToSell:     0.00000001,

			MinBalance:       0.00001,
			MaxPositionPrice: 0.022,
			MaxPositions:     10,
			SeedBalance:      0.25,

			ReferencePair:     "USDT-BTC",
			MaxVolatility:     0.0075,
			VolatilityTimeout: 45 * time.Minute,

			ToxicBackoff:    100000,
			MaxToxicBackoff: 24 * time.Hour,
		},
	}
}

type testEnv struct {
	engine *Engine
	store  *mockStore
	ledger *mockLedger
	exch   *mockExchange
	now    time.Time
}

func newTestEnv(live bool) *testEnv {
	cfg := testConfig(live)
	store := &mockStore{portfolio: models.NewPortfolio(PortfolioID, 1.0, live)}
	ledger := &mockLedger{}
	exch := &mockExchange{
		books:       make(map[string]*exchange.OrderBook),
		buyOrderID:  "buy-uuid",
		sellOrderID: "sell-uuid",
		summaries: []exchange.MarketSummary{
			{Pair: "USDT-BTC", Bid: 9000, Ask: 9010, Last: 9005},
		},
	}
	log := utils.InitLogger(utils.LogConfig{Level: "error", Format: "json"})

	env := &testEnv{
		engine: NewEngine(cfg, store, ledger, exch, log),
		store:  store,
		ledger: ledger,
		exch:   exch,
		now:    time.Date(2023, 11, 14, 12, 0, 0, 0, time.UTC),
	}
	env.engine.now = func() time.Time { return env.now }
	return env
}

// addMarket добавляет сводку рынка с производными величинами
func (env *testEnv) addMarket(pair string, bid, ask float64) {
	env.exch.mu.Lock()
	defer env.exch.mu.Unlock()
	env.exch.summaries = append(env.exch.summaries, exchange.MarketSummary{
		Pair:   pair,
		Bid:    bid,
		Ask:    ask,
		Last:   bid,
		Spread: ask - bid,
	})
}

// setMarket заменяет котировки существующей сводки
func (env *testEnv) setMarket(pair string, bid, ask float64) {
	env.exch.mu.Lock()
	defer env.exch.mu.Unlock()
	for i := range env.exch.summaries {
		if env.exch.summaries[i].Pair == pair {
			env.exch.summaries[i].Bid = bid
			env.exch.summaries[i].Ask = ask
			env.exch.summaries[i].Spread = ask - bid
			return
		}
	}
}

// advance сдвигает тестовые часы
func (env *testEnv) advance(d time.Duration) {
	env.now = env.now.Add(d)
}

// openPosition открывает позицию через сигнал с явными ценой и количеством
func (env *testEnv) openPosition(t interface {
	Helper()
	Fatalf(format string, args ...interface{})
}, pair string, price, qty float64) *models.Position {
	t.Helper()
	env.addMarket(pair, price, price)
	_, err := env.engine.SubmitSignal(context.Background(), &models.Signal{
		Action: models.SignalBuy,
		Pair:   pair,
		Price:  models.ExplicitValue(price),
		Qty:    models.ExplicitValue(qty),
		Tag:    "test-" + pair,
	})
	if err != nil {
		t.Fatalf("failed to open position in %s: %v", pair, err)
	}
	pos, ok := env.store.portfolio.Positions[pair]
	if !ok {
		t.Fatalf("position in %s not created", pair)
	}
	return pos
}
