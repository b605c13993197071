// Package integration содержит интеграционные тесты риск-движка.
//
// Тесты проверяют взаимодействие компонентов целиком:
// - API: полный HTTP цикл Handler → Service → Engine → Repository → Database
// - WebSocket: подключение, broadcast сообщений
// - Database: схема, round-trip документов портфеля и журнала трейдов
//
// Тестам нужен живой PostgreSQL (переменные TEST_DB_*); без него
// тесты пропускаются через t.Skip.
// Запуск: go test ./tests/integration/...
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"coinsignals/internal/api"
	"coinsignals/internal/bot"
	"coinsignals/internal/config"
	"coinsignals/internal/exchange"
	"coinsignals/internal/models"
	"coinsignals/internal/repository"
	"coinsignals/internal/service"
	"coinsignals/internal/websocket"
	"coinsignals/pkg/crypto"
	"coinsignals/pkg/utils"

	_ "github.com/lib/pq"
)

// testAdminToken - токен администратора, под которым тесты ходят в API
const testAdminToken = "integration-test-token"

// TestConfig - параметры подключения к тестовой базе
type TestConfig struct {
	DBDriver   string
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
}

// getTestConfig читает параметры тестовой базы из окружения
func getTestConfig() TestConfig {
	return TestConfig{
		DBDriver:   getEnv("TEST_DB_DRIVER", "postgres"),
		DBHost:     getEnv("TEST_DB_HOST", "localhost"),
		DBPort:     getEnv("TEST_DB_PORT", "5432"),
		DBName:     getEnv("TEST_DB_NAME", "coinsignals_test"),
		DBUser:     getEnv("TEST_DB_USER", "postgres"),
		DBPassword: getEnv("TEST_DB_PASSWORD", "postgres"),
		DBSSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// SetupTestDB открывает соединение с тестовой базой и готовит схему.
// Недоступная база означает пропуск теста, не провал.
func SetupTestDB(t *testing.T) (*sql.DB, func()) {
	t.Helper()
	cfg := getTestConfig()

	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode,
	)

	db, err := sql.Open(cfg.DBDriver, connStr)
	if err != nil {
		t.Skipf("Skipping integration test: cannot open database: %v", err)
		return nil, func() {}
	}

	if err := db.Ping(); err != nil {
		t.Skipf("Skipping integration test: cannot ping database: %v", err)
		return nil, func() {}
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := repository.InitSchema(db); err != nil {
		t.Skipf("Skipping integration test: cannot initialize schema: %v", err)
		return nil, func() {}
	}
	truncateTables(db)

	cleanup := func() {
		truncateTables(db)
		if err := db.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}

	return db, cleanup
}

// truncateTables очищает таблицы между тестами
func truncateTables(db *sql.DB) {
	for _, table := range []string{"trades", "portfolios"} {
		db.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
	}
}

// ============================================================
// Фейковая биржа
// ============================================================

// fakeExchange - детерминированная биржа для интеграционных тестов.
// Отдаёт заранее заданные сводки и стаканы, ордера исполняет мгновенно.
type fakeExchange struct {
	mu        sync.Mutex
	summaries map[string]exchange.MarketSummary
	books     map[string]*exchange.OrderBook
	orderSeq  int
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		summaries: make(map[string]exchange.MarketSummary),
		books:     make(map[string]*exchange.OrderBook),
	}
}

// setMarket задаёт сводку рынка с производными величинами
func (f *fakeExchange) setMarket(pair string, bid, ask float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	spread := ask - bid
	f.summaries[pair] = exchange.MarketSummary{
		Pair:             pair,
		Bid:              bid,
		Ask:              ask,
		Last:             bid,
		High:             ask * 1.05,
		Low:              bid * 0.95,
		Spread:           spread,
		SpreadPercentage: spread / ask,
		Timestamp:        time.Now(),
	}
}

func (f *fakeExchange) GetMarketSummaries(ctx context.Context) ([]exchange.MarketSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]exchange.MarketSummary, 0, len(f.summaries))
	for _, s := range f.summaries {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeExchange) GetMarketSummary(ctx context.Context, pair string) (*exchange.MarketSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.summaries[pair]
	if !ok {
		return nil, &exchange.ExchangeError{Endpoint: "getmarketsummary", Message: "INVALID_MARKET"}
	}
	return &s, nil
}

func (f *fakeExchange) GetOrderBook(ctx context.Context, pair string) (*exchange.OrderBook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	book, ok := f.books[pair]
	if !ok {
		return nil, &exchange.ExchangeError{Endpoint: "getorderbook", Message: "INVALID_MARKET"}
	}
	return book, nil
}

func (f *fakeExchange) BuyLimit(ctx context.Context, pair string, qty, rate float64) (string, error) {
	return f.nextOrderID("buy"), nil
}

func (f *fakeExchange) SellLimit(ctx context.Context, pair string, qty, rate float64) (string, error) {
	return f.nextOrderID("sell"), nil
}

func (f *fakeExchange) CancelOrder(ctx context.Context, orderID string) error {
	return nil
}

func (f *fakeExchange) GetOpenOrders(ctx context.Context) ([]exchange.OpenOrder, error) {
	return nil, nil
}

func (f *fakeExchange) GetBalance(ctx context.Context, currency string) (float64, error) {
	return 0, nil
}

func (f *fakeExchange) nextOrderID(side string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orderSeq++
	return fmt.Sprintf("fake-%s-%d", side, f.orderSeq)
}

var _ exchange.Client = (*fakeExchange)(nil)

// ============================================================
// Тестовый сервер
// ============================================================

// TestServer инкапсулирует компоненты, собранные как в cmd/server
type TestServer struct {
	DB        *sql.DB
	Server    *httptest.Server
	Hub       *websocket.Hub
	Exchange  *fakeExchange
	Engine    *bot.Engine
	Portfolio *repository.PortfolioRepository
	Trades    *repository.TradeRepository
	Cleanup   func()
}

// testTradingConfig возвращает конфигурацию движка с дефолтами продакшена
func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		TickInterval: 10 * time.Second,
		Fee:          0.0025,

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
	}
}

// SetupTestServer собирает полный стек поверх тестовой базы.
// Портфель засеян балансом 0.25 BTC в бумажном режиме.
func SetupTestServer(t *testing.T) *TestServer {
	t.Helper()

	db, dbCleanup := SetupTestDB(t)
	if db == nil {
		return nil
	}

	logger := utils.InitGlobalLogger(utils.LogConfig{Level: "error", Format: "json"})

	cfg := &config.Config{
		Exchange: config.ExchangeConfig{Live: false},
		Trading:  testTradingConfig(),
	}

	portfolioRepo := repository.NewPortfolioRepository(db)
	tradeRepo := repository.NewTradeRepository(db)

	seed := models.NewPortfolio(bot.PortfolioID, cfg.Trading.SeedBalance, false)
	if err := portfolioRepo.Save(seed); err != nil {
		dbCleanup()
		t.Fatalf("failed to seed portfolio: %v", err)
	}

	exch := newFakeExchange()
	exch.setMarket(cfg.Trading.ReferencePair, 9000, 9010)

	engine := bot.NewEngine(cfg, portfolioRepo, tradeRepo, exch, logger)

	hub := websocket.NewHub()
	go hub.Run()

	tradingService := service.NewTradingService(engine, logger)
	tradingService.SetWebSocketHub(hub)
	portfolioService := service.NewPortfolioService(portfolioRepo, tradeRepo, bot.PortfolioID)

	tokenHash, err := crypto.HashToken(testAdminToken)
	if err != nil {
		dbCleanup()
		t.Fatalf("failed to hash admin token: %v", err)
	}

	router := api.SetupRoutes(&api.Dependencies{
		TradingService:   tradingService,
		PortfolioService: portfolioService,
		Hub:              hub,
		AdminTokenHash:   tokenHash,
	})

	server := httptest.NewServer(router)

	return &TestServer{
		DB:        db,
		Server:    server,
		Hub:       hub,
		Exchange:  exch,
		Engine:    engine,
		Portfolio: portfolioRepo,
		Trades:    tradeRepo,
		Cleanup: func() {
			server.Close()
			dbCleanup()
		},
	}
}
