package service

import (
	"context"
	"time"

	"coinsignals/internal/bot"
	"coinsignals/internal/models"
	"coinsignals/internal/repository"
)

// EngineInterface определяет интерфейс торгового движка
type EngineInterface interface {
	Tick(ctx context.Context) ([]string, error)
	SubmitSignal(ctx context.Context, sig *models.Signal) (string, error)
	ManualBuy(ctx context.Context, pair string, price, qty float64) (string, error)
	ManualSell(ctx context.Context, pair string, price models.OrderValue) (string, error)
	Writeoff(ctx context.Context, pair string) (string, error)
	Halt(ctx context.Context) error
	Resume(ctx context.Context) error
	ToggleExitOnly() bool
	ExitOnly() bool
}

// PortfolioStoreInterface определяет интерфейс хранилища портфеля
type PortfolioStoreInterface interface {
	Get(id string) (*models.Portfolio, error)
}

// TradeLedgerInterface определяет интерфейс журнала трейдов
type TradeLedgerInterface interface {
	GetRecent(limit int) ([]*models.Trade, error)
	GetByPair(pair string, limit int) ([]*models.Trade, error)
	TotalProfit() (float64, error)
	ProfitSince(t time.Time) (float64, error)
}

// Проверяем, что реальные реализации удовлетворяют интерфейсам
var _ EngineInterface = (*bot.Engine)(nil)
var _ PortfolioStoreInterface = (*repository.PortfolioRepository)(nil)
var _ TradeLedgerInterface = (*repository.TradeRepository)(nil)

// ============ Интерфейсы сервисов для Dependency Injection ============

// TradingServiceInterface определяет интерфейс торгового сервиса
type TradingServiceInterface interface {
	ProcessSignal(ctx context.Context, text string) (string, error)
	RunTick(ctx context.Context) ([]string, error)
	Buy(ctx context.Context, pair string, price, qty float64) (string, error)
	Sell(ctx context.Context, pair string, price models.OrderValue) (string, error)
	Writeoff(ctx context.Context, pair string) (string, error)
	Halt(ctx context.Context) error
	Resume(ctx context.Context) error
	ToggleExitOnly() bool
	ExitOnly() bool
}

// PortfolioServiceInterface определяет интерфейс сервиса портфеля
type PortfolioServiceInterface interface {
	GetPortfolio() (*models.Portfolio, error)
	Summary() (*PortfolioSummary, error)
	RecentTrades(limit int) ([]*models.Trade, error)
	TradesByPair(pair string, limit int) ([]*models.Trade, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ TradingServiceInterface = (*TradingService)(nil)
var _ PortfolioServiceInterface = (*PortfolioService)(nil)
