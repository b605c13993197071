package handlers

import (
	"net/http"
	"strconv"

	"coinsignals/internal/service"
	"coinsignals/pkg/utils"
)

// PortfolioHandler обрабатывает HTTP запросы чтения портфеля и истории.
//
// Endpoints:
// - GET /api/v1/portfolio - живой документ портфеля
// - GET /api/v1/portfolio/summary - агрегированная сводка для дашборда
// - GET /api/v1/trades?limit=50&pair=BTC-ETH - история трейдов
type PortfolioHandler struct {
	portfolioService service.PortfolioServiceInterface
}

// NewPortfolioHandler создает новый PortfolioHandler с внедрением зависимостей.
func NewPortfolioHandler(portfolioService service.PortfolioServiceInterface) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
	}
}

// GetPortfolio возвращает живой документ портфеля.
//
// GET /api/v1/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	if h.portfolioService == nil {
		writeError(w, http.StatusInternalServerError, "portfolio service not initialized", nil)
		return
	}

	p, err := h.portfolioService.GetPortfolio()
	if err != nil {
		writeError(w, statusForError(err), "failed to get portfolio", err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// GetSummary возвращает агрегированную сводку портфеля.
//
// GET /api/v1/portfolio/summary
//
// Response 200 OK:
//
//	{
//	  "balance": 0.4,
//	  "state": {"status": "active"},
//	  "live": false,
//	  "open_positions": 2,
//	  "positions_cost": 0.523305,
//	  "positions_value": 0.5415,
//	  "total_profit": 0.0315,
//	  "profit_today": 0.001,
//	  ...
//	}
func (h *PortfolioHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	if h.portfolioService == nil {
		writeError(w, http.StatusInternalServerError, "portfolio service not initialized", nil)
		return
	}

	summary, err := h.portfolioService.Summary()
	if err != nil {
		writeError(w, statusForError(err), "failed to get summary", err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetTrades возвращает историю трейдов.
//
// GET /api/v1/trades?limit=50&pair=BTC-ETH
//
// Параметр pair опционален; без него возвращаются последние трейды
// по всем парам.
func (h *PortfolioHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	if h.portfolioService == nil {
		writeError(w, http.StatusInternalServerError, "portfolio service not initialized", nil)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit", err)
			return
		}
		limit = parsed
	}

	pair := r.URL.Query().Get("pair")
	if pair != "" {
		if err := utils.ValidatePair(utils.NormalizePair(pair)); err != nil {
			writeError(w, http.StatusBadRequest, "invalid pair", err)
			return
		}
	}

	var err error
	var trades interface{}
	if pair != "" {
		trades, err = h.portfolioService.TradesByPair(pair, limit)
	} else {
		trades, err = h.portfolioService.RecentTrades(limit)
	}
	if err != nil {
		writeError(w, statusForError(err), "failed to get trades", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Data: trades})
}
