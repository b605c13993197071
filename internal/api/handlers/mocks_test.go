package handlers

import (
	"context"

	"coinsignals/internal/models"
	"coinsignals/internal/service"
)

// ============ Mock TradingService ============

type MockTradingService struct {
	signalMsg string
	signalErr error
	signals   []string

	tickMessages []string
	tickErr      error

	buyMsg      string
	buyErr      error
	sellMsg     string
	sellErr     error
	sellPrices  []models.OrderValue
	writeoffMsg string
	writeoffErr error

	haltErr   error
	resumeErr error

	exitOnly bool
}

func (m *MockTradingService) ProcessSignal(ctx context.Context, text string) (string, error) {
	m.signals = append(m.signals, text)
	if m.signalErr != nil {
		return "", m.signalErr
	}
	return m.signalMsg, nil
}

func (m *MockTradingService) RunTick(ctx context.Context) ([]string, error) {
	if m.tickErr != nil {
		return nil, m.tickErr
	}
	return m.tickMessages, nil
}

func (m *MockTradingService) Buy(ctx context.Context, pair string, price, qty float64) (string, error) {
	return m.buyMsg, m.buyErr
}

func (m *MockTradingService) Sell(ctx context.Context, pair string, price models.OrderValue) (string, error) {
	m.sellPrices = append(m.sellPrices, price)
	return m.sellMsg, m.sellErr
}

func (m *MockTradingService) Writeoff(ctx context.Context, pair string) (string, error) {
	return m.writeoffMsg, m.writeoffErr
}

func (m *MockTradingService) Halt(ctx context.Context) error {
	return m.haltErr
}

func (m *MockTradingService) Resume(ctx context.Context) error {
	return m.resumeErr
}

func (m *MockTradingService) ToggleExitOnly() bool {
	m.exitOnly = !m.exitOnly
	return m.exitOnly
}

func (m *MockTradingService) ExitOnly() bool {
	return m.exitOnly
}

// ============ Mock PortfolioService ============

type MockPortfolioService struct {
	portfolio    *models.Portfolio
	portfolioErr error

	summary    *service.PortfolioSummary
	summaryErr error

	trades    []*models.Trade
	tradesErr error

	recentLimits []int
	byPairCalls  []string
}

func (m *MockPortfolioService) GetPortfolio() (*models.Portfolio, error) {
	if m.portfolioErr != nil {
		return nil, m.portfolioErr
	}
	return m.portfolio, nil
}

func (m *MockPortfolioService) Summary() (*service.PortfolioSummary, error) {
	if m.summaryErr != nil {
		return nil, m.summaryErr
	}
	return m.summary, nil
}

func (m *MockPortfolioService) RecentTrades(limit int) ([]*models.Trade, error) {
	m.recentLimits = append(m.recentLimits, limit)
	if m.tradesErr != nil {
		return nil, m.tradesErr
	}
	return m.trades, nil
}

func (m *MockPortfolioService) TradesByPair(pair string, limit int) ([]*models.Trade, error) {
	m.byPairCalls = append(m.byPairCalls, pair)
	if m.tradesErr != nil {
		return nil, m.tradesErr
	}
	return m.trades, nil
}
