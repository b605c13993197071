package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"coinsignals/internal/api/handlers"
	"coinsignals/internal/api/middleware"
	"coinsignals/internal/service"
	"coinsignals/internal/websocket"
)

// Dependencies содержит все зависимости для API handlers
type Dependencies struct {
	TradingService   service.TradingServiceInterface
	PortfolioService service.PortfolioServiceInterface
	Hub              *websocket.Hub

	// bcrypt-хеш административного токена для auth middleware
	AdminTokenHash string
}

// SetupRoutes настраивает все HTTP маршруты приложения
//
// Структура маршрутов:
//
// /api/v1/
//
//	├── POST /signals - принять текстовый торговый сигнал
//	├── POST /positions/buy - ручная покупка
//	├── POST /positions/{pair}/sell - принудительная продажа
//	├── POST /positions/{pair}/writeoff - списание позиции
//	├── POST /trading/halt - остановить торговлю
//	├── POST /trading/resume - возобновить торговлю
//	├── POST /trading/exit-only - переключить режим "только выход"
//	├── POST /tick - запустить торговый цикл вручную
//	├── GET /portfolio - живой документ портфеля
//	├── GET /portfolio/summary - сводка для дашборда
//	└── GET /trades - история трейдов
//
// /ws/stream - WebSocket для real-time обновлений
// /metrics - Prometheus метрики
// /health - жив ли процесс
//
// Middleware применяется в следующем порядке:
// 1. Recovery (для всех маршрутов)
// 2. Logging (для всех маршрутов)
// 3. CORS (для всех маршрутов)
// 4. TokenAuth (только для /api/v1)
func SetupRoutes(deps *Dependencies) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)

	var tradingHandler *handlers.TradingHandler
	if deps != nil && deps.TradingService != nil {
		tradingHandler = handlers.NewTradingHandler(deps.TradingService)
	}

	var portfolioHandler *handlers.PortfolioHandler
	if deps != nil && deps.PortfolioService != nil {
		portfolioHandler = handlers.NewPortfolioHandler(deps.PortfolioService)
	}

	// API v1 routes за токеном
	api := router.PathPrefix("/api/v1").Subrouter()
	if deps != nil {
		api.Use(middleware.TokenAuth(deps.AdminTokenHash))
	}

	if tradingHandler != nil {
		api.HandleFunc("/signals", tradingHandler.SubmitSignal).Methods("POST")
		api.HandleFunc("/positions/buy", tradingHandler.Buy).Methods("POST")
		api.HandleFunc("/positions/{pair}/sell", tradingHandler.Sell).Methods("POST")
		api.HandleFunc("/positions/{pair}/writeoff", tradingHandler.Writeoff).Methods("POST")
		api.HandleFunc("/trading/halt", tradingHandler.Halt).Methods("POST")
		api.HandleFunc("/trading/resume", tradingHandler.Resume).Methods("POST")
		api.HandleFunc("/trading/exit-only", tradingHandler.ToggleExitOnly).Methods("POST")
		api.HandleFunc("/tick", tradingHandler.Tick).Methods("POST")
	}

	if portfolioHandler != nil {
		api.HandleFunc("/portfolio", portfolioHandler.GetPortfolio).Methods("GET")
		api.HandleFunc("/portfolio/summary", portfolioHandler.GetSummary).Methods("GET")
		api.HandleFunc("/trades", portfolioHandler.GetTrades).Methods("GET")
	}

	// WebSocket route
	if deps != nil && deps.Hub != nil {
		hub := deps.Hub
		router.HandleFunc("/ws/stream", func(w http.ResponseWriter, r *http.Request) {
			websocket.ServeWS(hub, w, r)
		})
	}

	// Prometheus метрики
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
