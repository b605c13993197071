package service

import (
	"context"
	"time"

	"coinsignals/internal/models"
)

// ============ Mock Engine ============

type MockEngine struct {
	tickMessages []string
	tickErr      error
	tickCalls    int

	submitted []*models.Signal
	submitMsg string
	submitErr error

	buyMsg      string
	buyErr      error
	sellMsg     string
	sellErr     error
	writeoffMsg string
	writeoffErr error

	haltErr   error
	resumeErr error
	halted    bool

	exitOnly bool
}

func NewMockEngine() *MockEngine {
	return &MockEngine{}
}

func (m *MockEngine) Tick(ctx context.Context) ([]string, error) {
	m.tickCalls++
	if m.tickErr != nil {
		return nil, m.tickErr
	}
	return m.tickMessages, nil
}

func (m *MockEngine) SubmitSignal(ctx context.Context, sig *models.Signal) (string, error) {
	m.submitted = append(m.submitted, sig)
	if m.submitErr != nil {
		return "", m.submitErr
	}
	return m.submitMsg, nil
}

func (m *MockEngine) ManualBuy(ctx context.Context, pair string, price, qty float64) (string, error) {
	return m.buyMsg, m.buyErr
}

func (m *MockEngine) ManualSell(ctx context.Context, pair string, price models.OrderValue) (string, error) {
	return m.sellMsg, m.sellErr
}

func (m *MockEngine) Writeoff(ctx context.Context, pair string) (string, error) {
	return m.writeoffMsg, m.writeoffErr
}

func (m *MockEngine) Halt(ctx context.Context) error {
	if m.haltErr != nil {
		return m.haltErr
	}
	m.halted = true
	return nil
}

func (m *MockEngine) Resume(ctx context.Context) error {
	if m.resumeErr != nil {
		return m.resumeErr
	}
	m.halted = false
	return nil
}

func (m *MockEngine) ToggleExitOnly() bool {
	m.exitOnly = !m.exitOnly
	return m.exitOnly
}

func (m *MockEngine) ExitOnly() bool {
	return m.exitOnly
}

// ============ Mock PortfolioStore ============

type MockPortfolioStore struct {
	portfolio *models.Portfolio
	getErr    error
}

func NewMockPortfolioStore(p *models.Portfolio) *MockPortfolioStore {
	return &MockPortfolioStore{portfolio: p}
}

func (m *MockPortfolioStore) Get(id string) (*models.Portfolio, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.portfolio, nil
}

// ============ Mock TradeLedger ============

type MockTradeLedger struct {
	trades []*models.Trade

	totalProfit float64
	profitSince map[time.Time]float64

	recentErr error
	byPairErr error
	totalErr  error
	sinceErr  error

	recentLimits []int
}

func NewMockTradeLedger() *MockTradeLedger {
	return &MockTradeLedger{
		profitSince: make(map[time.Time]float64),
	}
}

func (m *MockTradeLedger) GetRecent(limit int) ([]*models.Trade, error) {
	m.recentLimits = append(m.recentLimits, limit)
	if m.recentErr != nil {
		return nil, m.recentErr
	}
	if limit > len(m.trades) {
		limit = len(m.trades)
	}
	return m.trades[:limit], nil
}

func (m *MockTradeLedger) GetByPair(pair string, limit int) ([]*models.Trade, error) {
	if m.byPairErr != nil {
		return nil, m.byPairErr
	}
	var result []*models.Trade
	for _, t := range m.trades {
		if t.Pair == pair && len(result) < limit {
			result = append(result, t)
		}
	}
	return result, nil
}

func (m *MockTradeLedger) TotalProfit() (float64, error) {
	if m.totalErr != nil {
		return 0, m.totalErr
	}
	return m.totalProfit, nil
}

func (m *MockTradeLedger) ProfitSince(t time.Time) (float64, error) {
	if m.sinceErr != nil {
		return 0, m.sinceErr
	}
	return m.profitSince[t], nil
}

// ============ Mock TradeBroadcaster ============

type MockHub struct {
	messages []string
}

func (m *MockHub) BroadcastTrade(message string) {
	m.messages = append(m.messages, message)
}
