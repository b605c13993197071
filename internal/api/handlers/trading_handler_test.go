package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"coinsignals/internal/bot"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp
}

func TestSubmitSignalOK(t *testing.T) {
	svc := &MockTradingService{signalMsg: "[tv-1-buy] Buy BTC-ETH - 10 @ 0.05 - 0.50125 BTC"}
	handler := NewTradingHandler(svc)

	body := bytes.NewBufferString(`{"text": "^BUY*BTC-ETH*A*A*tv-1^"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", body)
	rec := httptest.NewRecorder()

	handler.SubmitSignal(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp SuccessResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Message != svc.signalMsg {
		t.Errorf("message = %q, want %q", resp.Message, svc.signalMsg)
	}
	if len(svc.signals) != 1 || svc.signals[0] != "^BUY*BTC-ETH*A*A*tv-1^" {
		t.Errorf("service received %v", svc.signals)
	}
}

func TestSubmitSignalBadBody(t *testing.T) {
	handler := NewTradingHandler(&MockTradingService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", strings.NewReader("{broken"))
	rec := httptest.NewRecorder()

	handler.SubmitSignal(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitSignalEmptyText(t *testing.T) {
	handler := NewTradingHandler(&MockTradingService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", strings.NewReader(`{"text":""}`))
	rec := httptest.NewRecorder()

	handler.SubmitSignal(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestSubmitSignalStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"ошибка разбора", &bot.ParseError{Text: "x", Reason: "no match"}, http.StatusBadRequest},
		{"торговля на паузе", bot.ErrTradingPaused, http.StatusConflict},
		{"режим exit-only", bot.ErrExitOnly, http.StatusConflict},
		{"пара в чёрном списке", bot.ErrBlacklisted, http.StatusConflict},
		{"лимит позиций", bot.ErrPositionCap, http.StatusConflict},
		{"дубликат позиции", bot.ErrDuplicatePosition, http.StatusConflict},
		{"минимальный баланс", bot.ErrBalanceFloor, http.StatusConflict},
		{"неизвестная пара", bot.ErrUnknownPair, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewTradingHandler(&MockTradingService{signalErr: tt.err})

			body := strings.NewReader(`{"text": "^BUY*BTC-ETH*A*A*tv^"}`)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/signals", body)
			rec := httptest.NewRecorder()

			handler.SubmitSignal(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if resp := decodeError(t, rec); resp.Error == "" {
				t.Error("error body must carry a message")
			}
		})
	}
}

func TestSellMarketByDefault(t *testing.T) {
	svc := &MockTradingService{sellMsg: "[x-sell] Sell BTC-ETH - 10 @ 0.052 - Profit: 0.01744 [3.48%] BTC"}
	handler := NewTradingHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/positions/BTC-ETH/sell", nil)
	req = mux.SetURLVars(req, map[string]string{"pair": "BTC-ETH"})
	rec := httptest.NewRecorder()

	handler.Sell(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if len(svc.sellPrices) != 1 || !svc.sellPrices[0].Market {
		t.Errorf("sell prices = %+v, want a single market value", svc.sellPrices)
	}
}

func TestSellExplicitPrice(t *testing.T) {
	svc := &MockTradingService{sellMsg: "ok"}
	handler := NewTradingHandler(svc)

	body := strings.NewReader(`{"price": 0.052}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/positions/BTC-ETH/sell", body)
	req = mux.SetURLVars(req, map[string]string{"pair": "BTC-ETH"})
	rec := httptest.NewRecorder()

	handler.Sell(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(svc.sellPrices) != 1 || svc.sellPrices[0].Market || svc.sellPrices[0].Value != 0.052 {
		t.Errorf("sell prices = %+v, want explicit 0.052", svc.sellPrices)
	}
}

func TestSellNoPosition(t *testing.T) {
	handler := NewTradingHandler(&MockTradingService{sellErr: bot.ErrNoPosition})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/positions/BTC-ETH/sell", nil)
	req = mux.SetURLVars(req, map[string]string{"pair": "BTC-ETH"})
	rec := httptest.NewRecorder()

	handler.Sell(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestBuyValidatesPair(t *testing.T) {
	handler := NewTradingHandler(&MockTradingService{})

	body := strings.NewReader(`{"price": 0.05, "qty": 10}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/positions/buy", body)
	rec := httptest.NewRecorder()

	handler.Buy(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for missing pair", rec.Code)
	}
}

func TestTickBusy(t *testing.T) {
	handler := NewTradingHandler(&MockTradingService{tickErr: bot.ErrUpdateInFlight})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tick", nil)
	rec := httptest.NewRecorder()

	handler.Tick(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestTickReturnsMessages(t *testing.T) {
	svc := &MockTradingService{tickMessages: []string{"[a-sell] Sell ..."}}
	handler := NewTradingHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tick", nil)
	rec := httptest.NewRecorder()

	handler.Tick(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data struct {
			Messages []string `json:"messages"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Messages) != 1 {
		t.Errorf("messages = %v, want 1 entry", resp.Data.Messages)
	}
}

func TestToggleExitOnlyRoundTrip(t *testing.T) {
	svc := &MockTradingService{}
	handler := NewTradingHandler(svc)

	for _, want := range []bool{true, false} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/trading/exit-only", nil)
		rec := httptest.NewRecorder()

		handler.ToggleExitOnly(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var resp struct {
			Data map[string]bool `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Data["exit_only"] != want {
			t.Errorf("exit_only = %v, want %v", resp.Data["exit_only"], want)
		}
	}
}

func TestHaltAndResume(t *testing.T) {
	svc := &MockTradingService{}
	handler := NewTradingHandler(svc)

	for _, call := range []func(http.ResponseWriter, *http.Request){handler.Halt, handler.Resume} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/trading/halt", nil)
		rec := httptest.NewRecorder()

		call(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rec.Code)
		}
	}
}

func TestNilServiceGuard(t *testing.T) {
	handler := NewTradingHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tick", nil)
	rec := httptest.NewRecorder()

	handler.Tick(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
