package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"coinsignals/internal/bot"
	"coinsignals/internal/repository"
)

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse стандартный формат успешного ответа
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusForError переводит ошибки движка в HTTP статусы.
//
// Отказы политики не являются сбоями сервера: движок отклонил
// операцию по своим правилам, клиент получает 409.
func statusForError(err error) int {
	var parseErr *bot.ParseError
	switch {
	case errors.As(err, &parseErr):
		return http.StatusBadRequest
	case errors.Is(err, bot.ErrNoPosition),
		errors.Is(err, bot.ErrUnknownPair),
		errors.Is(err, repository.ErrPortfolioNotFound),
		errors.Is(err, repository.ErrTradeNotFound):
		return http.StatusNotFound
	case errors.Is(err, bot.ErrUpdateInFlight):
		return http.StatusConflict
	case errors.Is(err, bot.ErrTradingPaused),
		errors.Is(err, bot.ErrExitOnly),
		errors.Is(err, bot.ErrBalanceFloor),
		errors.Is(err, bot.ErrBlacklisted),
		errors.Is(err, bot.ErrPositionCap),
		errors.Is(err, bot.ErrDuplicatePosition),
		errors.Is(err, bot.ErrModeMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
