package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"coinsignals/pkg/ratelimit"
	"coinsignals/pkg/retry"
	"coinsignals/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Проверка реализации интерфейса на этапе компиляции
var _ Client = (*Bittrex)(nil)

// Категории rate limit: публичные данные и подписанные account-вызовы
const (
	rateCategoryPublic  = "public"
	rateCategoryAccount = "account"
)

// bittrexTimeLayout - формат времени в ответах API (без зоны, UTC)
const bittrexTimeLayout = "2006-01-02T15:04:05.999999999"

// BittrexConfig - настройки клиента Bittrex
type BittrexConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string

	RequestTimeout time.Duration
	MaxRetries     int

	PublicRate  float64 // запросов/сек на публичные эндпоинты
	AccountRate float64 // запросов/сек на подписанные эндпоинты
}

// Bittrex - REST клиент биржи Bittrex (API v1.1)
//
// Подписанные запросы: полный URI с параметрами apikey и nonce
// подписывается HMAC-SHA512 секретным ключом, подпись передаётся
// в заголовке apisign.
type Bittrex struct {
	cfg        BittrexConfig
	httpClient *http.Client
	limiter    *ratelimit.MultiLimiter
	retryCfg   retry.Config
	log        *utils.Logger
}

// NewBittrex создаёт клиент с pooled HTTP-транспортом и раздельными
// лимитами на публичные и account-запросы
func NewBittrex(cfg BittrexConfig, log *utils.Logger) *Bittrex {
	httpCfg := DefaultHTTPClientConfig()
	if cfg.RequestTimeout > 0 {
		httpCfg.TotalTimeout = cfg.RequestTimeout
	}

	limiter := ratelimit.NewMultiLimiter()
	limiter.Add(rateCategoryPublic, cfg.PublicRate, cfg.PublicRate*3)
	limiter.Add(rateCategoryAccount, cfg.AccountRate, cfg.AccountRate*3)

	retryCfg := retry.DefaultConfig()
	if cfg.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.MaxRetries
	}
	retryCfg.RetryIf = func(err error) bool {
		return retry.IsRetryable(err) && retry.RetryIfNotContext(err)
	}

	return &Bittrex{
		cfg:        cfg,
		httpClient: NewHTTPClient(httpCfg),
		limiter:    limiter,
		retryCfg:   retryCfg,
		log:        log.WithComponent("bittrex"),
	}
}

// Close закрывает простаивающие соединения
func (b *Bittrex) Close() {
	CloseIdleConnections(b.httpClient)
}

// envelope - стандартный конверт ответа API v1.1
type envelope struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Result  jsoniter.RawMessage `json:"result"`
}

// sign вычисляет HMAC-SHA512 подпись полного URI
func (b *Bittrex) sign(uri string) string {
	h := hmac.New(sha512.New, []byte(b.cfg.APISecret))
	h.Write([]byte(uri))
	return hex.EncodeToString(h.Sum(nil))
}

// doRequest выполняет запрос с учётом rate limit и повторных попыток,
// разворачивает конверт и возвращает result
func (b *Bittrex) doRequest(ctx context.Context, category, endpoint string, params url.Values, signed bool) (jsoniter.RawMessage, error) {
	return retry.DoWithResult(ctx, func() (jsoniter.RawMessage, error) {
		if err := b.limiter.Wait(ctx, category); err != nil {
			return nil, err
		}

		if params == nil {
			params = url.Values{}
		}
		if signed {
			// nonce входит в подписываемый URI
			params.Set("apikey", b.cfg.APIKey)
			params.Set("nonce", strconv.FormatInt(time.Now().UnixNano(), 10))
		}

		uri := b.cfg.BaseURL + endpoint
		if encoded := params.Encode(); encoded != "" {
			uri += "?" + encoded
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
		if err != nil {
			return nil, retry.Permanent(err)
		}
		if signed {
			req.Header.Set("apisign", b.sign(uri))
		}

		start := time.Now()
		resp, err := b.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}

		b.log.Debug("запрос к бирже",
			utils.String("endpoint", endpoint),
			utils.Int("status", resp.StatusCode),
			utils.Latency(float64(time.Since(start).Milliseconds())),
		)

		if resp.StatusCode != http.StatusOK {
			return nil, &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode}
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("exchange: %s: decode envelope: %w", endpoint, err)
		}
		if !env.Success {
			return nil, &ExchangeError{Endpoint: endpoint, Message: env.Message}
		}
		return env.Result, nil
	}, b.retryCfg)
}

// ============================================================
// Рыночные данные
// ============================================================

// rawSummary - сводка рынка в формате API
type rawSummary struct {
	MarketName string  `json:"MarketName"`
	High       float64 `json:"High"`
	Low        float64 `json:"Low"`
	Last       float64 `json:"Last"`
	Bid        float64 `json:"Bid"`
	Ask        float64 `json:"Ask"`
	Volume     float64 `json:"Volume"`
}

// GetMarketSummaries возвращает сводки по всем рынкам с производными
// величинами спреда
func (b *Bittrex) GetMarketSummaries(ctx context.Context) ([]MarketSummary, error) {
	result, err := b.doRequest(ctx, rateCategoryPublic, "/public/getmarketsummaries", nil, false)
	if err != nil {
		return nil, err
	}

	var raw []rawSummary
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("exchange: getmarketsummaries: decode: %w", err)
	}

	now := time.Now().UTC()
	summaries := make([]MarketSummary, 0, len(raw))
	for _, r := range raw {
		summaries = append(summaries, deriveSummary(r, now))
	}
	return summaries, nil
}

// GetMarketSummary возвращает сводку одного рынка
func (b *Bittrex) GetMarketSummary(ctx context.Context, pair string) (*MarketSummary, error) {
	params := url.Values{}
	params.Set("market", pair)

	result, err := b.doRequest(ctx, rateCategoryPublic, "/public/getmarketsummary", params, false)
	if err != nil {
		return nil, err
	}

	// API возвращает массив из одного элемента
	var raw []rawSummary
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("exchange: getmarketsummary: decode: %w", err)
	}
	if len(raw) == 0 {
		return nil, &ExchangeError{Endpoint: "getmarketsummary", Message: "market not found: " + pair}
	}

	summary := deriveSummary(raw[0], time.Now().UTC())
	return &summary, nil
}

// deriveSummary дополняет сводку производными величинами
func deriveSummary(r rawSummary, now time.Time) MarketSummary {
	s := MarketSummary{
		Pair:      r.MarketName,
		High:      r.High,
		Low:       r.Low,
		Last:      r.Last,
		Bid:       r.Bid,
		Ask:       r.Ask,
		Volume:    r.Volume,
		Timestamp: now,
	}

	s.Spread = s.Ask - s.Bid
	if s.Ask > 0 {
		s.SpreadPercentage = s.Spread / s.Ask
	}
	// положение ask внутри суточного диапазона: 0 у минимума, 1 у максимума
	if priceRange := s.High - s.Low; priceRange > 0 {
		s.HighPercentage = (s.Ask - s.Low) / priceRange
	}
	return s
}

// rawBookEntry - уровень стакана в формате API
type rawBookEntry struct {
	Quantity float64 `json:"Quantity"`
	Rate     float64 `json:"Rate"`
}

// GetOrderBook возвращает обе стороны стакана
func (b *Bittrex) GetOrderBook(ctx context.Context, pair string) (*OrderBook, error) {
	params := url.Values{}
	params.Set("market", pair)
	params.Set("type", "both")

	result, err := b.doRequest(ctx, rateCategoryPublic, "/public/getorderbook", params, false)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Buy  []rawBookEntry `json:"buy"`
		Sell []rawBookEntry `json:"sell"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("exchange: getorderbook: decode: %w", err)
	}

	book := &OrderBook{
		Pair:      pair,
		Bids:      make([]PriceLevel, 0, len(raw.Buy)),
		Asks:      make([]PriceLevel, 0, len(raw.Sell)),
		Timestamp: time.Now().UTC(),
	}
	for _, e := range raw.Buy {
		book.Bids = append(book.Bids, PriceLevel{Rate: e.Rate, Quantity: e.Quantity})
	}
	for _, e := range raw.Sell {
		book.Asks = append(book.Asks, PriceLevel{Rate: e.Rate, Quantity: e.Quantity})
	}
	return book, nil
}

// ============================================================
// Исполнение и аккаунт
// ============================================================

// placeLimit размещает лимитный ордер указанного направления
func (b *Bittrex) placeLimit(ctx context.Context, endpoint, pair string, qty, rate float64) (string, error) {
	params := url.Values{}
	params.Set("market", pair)
	params.Set("quantity", strconv.FormatFloat(qty, 'f', -1, 64))
	params.Set("rate", strconv.FormatFloat(rate, 'f', -1, 64))

	result, err := b.doRequest(ctx, rateCategoryAccount, endpoint, params, true)
	if err != nil {
		return "", err
	}

	var r struct {
		UUID string `json:"uuid"`
	}
	if err := json.Unmarshal(result, &r); err != nil {
		return "", fmt.Errorf("exchange: %s: decode: %w", endpoint, err)
	}
	return r.UUID, nil
}

// BuyLimit размещает лимитный ордер на покупку
func (b *Bittrex) BuyLimit(ctx context.Context, pair string, qty, rate float64) (string, error) {
	return b.placeLimit(ctx, "/market/buylimit", pair, qty, rate)
}

// SellLimit размещает лимитный ордер на продажу
func (b *Bittrex) SellLimit(ctx context.Context, pair string, qty, rate float64) (string, error) {
	return b.placeLimit(ctx, "/market/selllimit", pair, qty, rate)
}

// CancelOrder отменяет ордер по uuid
func (b *Bittrex) CancelOrder(ctx context.Context, orderID string) error {
	params := url.Values{}
	params.Set("uuid", orderID)

	_, err := b.doRequest(ctx, rateCategoryAccount, "/market/cancel", params, true)
	return err
}

// rawOpenOrder - открытый ордер в формате API
type rawOpenOrder struct {
	OrderUUID         string  `json:"OrderUuid"`
	Exchange          string  `json:"Exchange"`
	OrderType         string  `json:"OrderType"`
	Quantity          float64 `json:"Quantity"`
	QuantityRemaining float64 `json:"QuantityRemaining"`
	Limit             float64 `json:"Limit"`
	Opened            string  `json:"Opened"`
}

// GetOpenOrders возвращает все открытые ордера аккаунта
func (b *Bittrex) GetOpenOrders(ctx context.Context) ([]OpenOrder, error) {
	result, err := b.doRequest(ctx, rateCategoryAccount, "/market/getopenorders", nil, true)
	if err != nil {
		return nil, err
	}

	var raw []rawOpenOrder
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("exchange: getopenorders: decode: %w", err)
	}

	orders := make([]OpenOrder, 0, len(raw))
	for _, r := range raw {
		opened, _ := time.Parse(bittrexTimeLayout, r.Opened)
		orders = append(orders, OpenOrder{
			ID:                r.OrderUUID,
			Pair:              r.Exchange,
			Type:              r.OrderType,
			Quantity:          r.Quantity,
			QuantityRemaining: r.QuantityRemaining,
			Rate:              r.Limit,
			Opened:            opened,
		})
	}
	return orders, nil
}

// GetBalance возвращает доступный остаток валюты
func (b *Bittrex) GetBalance(ctx context.Context, currency string) (float64, error) {
	params := url.Values{}
	params.Set("currency", currency)

	result, err := b.doRequest(ctx, rateCategoryAccount, "/account/getbalance", params, true)
	if err != nil {
		return 0, err
	}

	var r struct {
		Available float64 `json:"Available"`
	}
	if err := json.Unmarshal(result, &r); err != nil {
		return 0, fmt.Errorf("exchange: getbalance: decode: %w", err)
	}
	return r.Available, nil
}
