package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"coinsignals/internal/models"
	"coinsignals/internal/service"
)

// TradingHandler обрабатывает HTTP запросы торговых операций.
//
// Endpoints:
// - POST /api/v1/signals - принять текстовый торговый сигнал
// - POST /api/v1/positions/buy - ручная покупка по явной цене
// - POST /api/v1/positions/{pair}/sell - принудительное закрытие позиции
// - POST /api/v1/positions/{pair}/writeoff - списание позиции
// - POST /api/v1/trading/halt - остановить торговлю
// - POST /api/v1/trading/resume - возобновить торговлю
// - POST /api/v1/trading/exit-only - переключить режим "только выход"
// - POST /api/v1/tick - запустить торговый цикл вручную
type TradingHandler struct {
	tradingService service.TradingServiceInterface
}

// NewTradingHandler создает новый TradingHandler с внедрением зависимостей.
func NewTradingHandler(tradingService service.TradingServiceInterface) *TradingHandler {
	return &TradingHandler{
		tradingService: tradingService,
	}
}

// SignalRequest - тело запроса текстового сигнала
type SignalRequest struct {
	Text string `json:"text"`
}

// BuyRequest - тело запроса ручной покупки
type BuyRequest struct {
	Pair  string  `json:"pair"`
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// SellRequest - тело запроса принудительной продажи.
// Нулевая или отсутствующая цена означает продажу по рынку.
type SellRequest struct {
	Price float64 `json:"price,omitempty"`
}

// SubmitSignal принимает текстовый сигнал в формате источника.
//
// POST /api/v1/signals
// Request: {"text": "^BUY*BTC-ETH*A*A*tradingview-4521^"}
//
// Response 200 OK: {"message": "[tradingview-4521-buy] Buy BTC-ETH - ..."}
// Response 400 Bad Request: сигнал не распознан
// Response 409 Conflict: отказ политики (пауза, чёрный список, лимит позиций...)
func (h *TradingHandler) SubmitSignal(w http.ResponseWriter, r *http.Request) {
	if h.tradingService == nil {
		writeError(w, http.StatusInternalServerError, "trading service not initialized", nil)
		return
	}

	var req SignalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required", nil)
		return
	}

	msg, err := h.tradingService.ProcessSignal(r.Context(), req.Text)
	if err != nil {
		writeError(w, statusForError(err), "signal rejected", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: msg})
}

// Buy открывает позицию по явным цене и количеству (команда оператора).
//
// POST /api/v1/positions/buy
// Request: {"pair": "BTC-ETH", "price": 0.05, "qty": 10}
func (h *TradingHandler) Buy(w http.ResponseWriter, r *http.Request) {
	if h.tradingService == nil {
		writeError(w, http.StatusInternalServerError, "trading service not initialized", nil)
		return
	}

	var req BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Pair == "" {
		writeError(w, http.StatusBadRequest, "pair is required", nil)
		return
	}

	msg, err := h.tradingService.Buy(r.Context(), req.Pair, req.Price, req.Qty)
	if err != nil {
		writeError(w, statusForError(err), "buy rejected", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: msg})
}

// Sell принудительно закрывает позицию.
//
// POST /api/v1/positions/{pair}/sell
// Request (опционально): {"price": 0.052} - без тела продаёт по рынку
func (h *TradingHandler) Sell(w http.ResponseWriter, r *http.Request) {
	if h.tradingService == nil {
		writeError(w, http.StatusInternalServerError, "trading service not initialized", nil)
		return
	}

	pair := mux.Vars(r)["pair"]

	price := models.MarketValue()
	if r.Body != nil {
		var req SellRequest
		// пустое тело допустимо
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil && req.Price > 0 {
			price = models.ExplicitValue(req.Price)
		}
	}

	msg, err := h.tradingService.Sell(r.Context(), pair, price)
	if err != nil {
		writeError(w, statusForError(err), "sell rejected", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: msg})
}

// Writeoff списывает позицию без продажи.
//
// POST /api/v1/positions/{pair}/writeoff
func (h *TradingHandler) Writeoff(w http.ResponseWriter, r *http.Request) {
	if h.tradingService == nil {
		writeError(w, http.StatusInternalServerError, "trading service not initialized", nil)
		return
	}

	pair := mux.Vars(r)["pair"]

	msg, err := h.tradingService.Writeoff(r.Context(), pair)
	if err != nil {
		writeError(w, statusForError(err), "writeoff rejected", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: msg})
}

// Halt останавливает торговлю вручную.
//
// POST /api/v1/trading/halt
func (h *TradingHandler) Halt(w http.ResponseWriter, r *http.Request) {
	if h.tradingService == nil {
		writeError(w, http.StatusInternalServerError, "trading service not initialized", nil)
		return
	}

	if err := h.tradingService.Halt(r.Context()); err != nil {
		writeError(w, statusForError(err), "halt failed", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "trading halted"})
}

// Resume возобновляет торговлю после ручной остановки.
//
// POST /api/v1/trading/resume
func (h *TradingHandler) Resume(w http.ResponseWriter, r *http.Request) {
	if h.tradingService == nil {
		writeError(w, http.StatusInternalServerError, "trading service not initialized", nil)
		return
	}

	if err := h.tradingService.Resume(r.Context()); err != nil {
		writeError(w, statusForError(err), "resume failed", err)
		return
	}

	writeJSON(w, http.StatusOK, SuccessResponse{Message: "trading resumed"})
}

// ToggleExitOnly переключает режим "только выход".
//
// POST /api/v1/trading/exit-only
// Response 200 OK: {"data": {"exit_only": true}}
func (h *TradingHandler) ToggleExitOnly(w http.ResponseWriter, r *http.Request) {
	if h.tradingService == nil {
		writeError(w, http.StatusInternalServerError, "trading service not initialized", nil)
		return
	}

	exitOnly := h.tradingService.ToggleExitOnly()
	writeJSON(w, http.StatusOK, SuccessResponse{
		Data: map[string]bool{"exit_only": exitOnly},
	})
}

// Tick запускает один торговый цикл вручную.
//
// POST /api/v1/tick
// Response 200 OK: {"data": {"messages": [...]}}
// Response 409 Conflict: цикл уже выполняется
func (h *TradingHandler) Tick(w http.ResponseWriter, r *http.Request) {
	if h.tradingService == nil {
		writeError(w, http.StatusInternalServerError, "trading service not initialized", nil)
		return
	}

	messages, err := h.tradingService.RunTick(r.Context())
	if err != nil {
		writeError(w, statusForError(err), "tick failed", err)
		return
	}
	if messages == nil {
		messages = []string{}
	}

	writeJSON(w, http.StatusOK, SuccessResponse{
		Data: map[string][]string{"messages": messages},
	})
}
