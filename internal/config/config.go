package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config содержит всю конфигурацию приложения
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Security SecurityConfig
	Exchange ExchangeConfig
	Trading  TradingConfig
	Logging  LoggingConfig
}

// ServerConfig - настройки HTTP сервера
type ServerConfig struct {
	Port     int
	Host     string
	UseHTTPS bool
	CertFile string
	KeyFile  string
}

// DatabaseConfig - настройки подключения к БД
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

// SecurityConfig - настройки безопасности
type SecurityConfig struct {
	// AdminTokenHash - bcrypt-хеш административного токена.
	// Сам токен нигде не хранится.
	AdminTokenHash string
}

// ExchangeConfig - настройки клиента биржи
type ExchangeConfig struct {
	BaseURL   string
	APIKey    string
	APISecret string

	// Live - исполнять ордера на бирже; false = бумажный режим
	Live bool

	RequestTimeout time.Duration
	MaxRetries     int

	// Лимиты запросов (запросов в секунду)
	PublicRate  float64
	AccountRate float64
}

// TradingConfig - торговые параметры движка
type TradingConfig struct {
	// Интервал цикла переоценки позиций
	TickInterval time.Duration

	// Комиссия биржи (доля от суммы сделки, в обе стороны)
	Fee float64

	// Лимиты по возрасту позиции: чем старше позиция, тем уже
	// допустимый коридор прибыли/убытка
	FreshProfit float64
	FreshLoss   float64
	FreshMaxAge time.Duration

	StaleProfit float64
	StaleLoss   float64
	StaleMaxAge time.Duration

	OldProfit float64
	OldLoss   float64

	// Трейлинг зафиксированной прибыли
	ProfitIncrease         float64 // шаг подъёма верхнего лимита
	ProfitSlip             float64 // допустимый откат ниже текущей цены
	ProfitIncreaseOverride float64 // дельта, выше которой лимиты не подтягиваются

	// Анализ стакана при сопровождении прибыльной позиции
	OrderParsing   bool
	SpreadAsk      float64 // максимальный спред ask-fill для продажи
	SpreadAskInsta float64 // спред, при котором продаём немедленно
	SpreadAvg      float64 // минимальный средний спред для продажи
	SpreadAvgInsta float64 // средний спред немедленной продажи

	// Задержка перед первой реакцией на убыток
	InitialSellDelay time.Duration

	// Минимальный спред размещения лимитного ордера на продажу
	SpreadToSell float64

	// Ограничения портфеля
	MinBalance       float64
	MaxPositionPrice float64
	MaxPositions     int
	SeedBalance      float64

	// Защита от волатильности опорной пары
	ReferencePair     string
	MaxVolatility     float64
	VolatilityTimeout time.Duration

	// Чёрный список токсичных активов
	ToxicBackoff    float64       // множитель длительности бана (мс на процент убытка)
	MaxToxicBackoff time.Duration // верхняя граница бана
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
}

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			Host:     getEnv("SERVER_HOST", "0.0.0.0"),
			UseHTTPS: getEnvAsBool("USE_HTTPS", false),
			CertFile: getEnv("CERT_FILE", ""),
			KeyFile:  getEnv("KEY_FILE", ""),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "postgres"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "coinsignals"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Security: SecurityConfig{
			AdminTokenHash: getEnv("ADMIN_TOKEN_HASH", ""),
		},
		Exchange: ExchangeConfig{
			BaseURL:        getEnv("EXCHANGE_BASE_URL", "https://bittrex.com/api/v1.1"),
			APIKey:         getEnv("EXCHANGE_API_KEY", ""),
			APISecret:      getEnv("EXCHANGE_API_SECRET", ""),
			Live:           getEnvAsBool("EXCHANGE_LIVE", false),
			RequestTimeout: getEnvAsDuration("EXCHANGE_TIMEOUT", 10*time.Second),
			MaxRetries:     getEnvAsInt("EXCHANGE_MAX_RETRIES", 4),
			PublicRate:     getEnvAsFloat("EXCHANGE_PUBLIC_RATE", 5),
			AccountRate:    getEnvAsFloat("EXCHANGE_ACCOUNT_RATE", 1),
		},
		Trading: TradingConfig{
			TickInterval: getEnvAsDuration("TICK_INTERVAL", 10*time.Second),

			Fee: getEnvAsFloat("TRADING_FEE", 0.0025),

			FreshProfit: getEnvAsFloat("FRESH_PROFIT", 0.04),
			FreshLoss:   getEnvAsFloat("FRESH_LOSS", 0.07),
			FreshMaxAge: getEnvAsDuration("FRESH_MAX_AGE", 30*time.Minute),

			StaleProfit: getEnvAsFloat("STALE_PROFIT", 0.03),
			StaleLoss:   getEnvAsFloat("STALE_LOSS", 0.06),
			StaleMaxAge: getEnvAsDuration("STALE_MAX_AGE", 60*time.Minute),

			OldProfit: getEnvAsFloat("OLD_PROFIT", 0.02),
			OldLoss:   getEnvAsFloat("OLD_LOSS", 0.05),

			ProfitIncrease:         getEnvAsFloat("PROFIT_INCREASE", 0.005),
			ProfitSlip:             getEnvAsFloat("PROFIT_SLIP", 0.005),
			ProfitIncreaseOverride: getEnvAsFloat("PROFIT_INCREASE_OVERRIDE", 0.05),

			OrderParsing:   getEnvAsBool("ORDER_PARSING", true),
			SpreadAsk:      getEnvAsFloat("SPREAD_ASK", 0.01),
			SpreadAskInsta: getEnvAsFloat("SPREAD_ASK_INSTA", 0.001),
			SpreadAvg:      getEnvAsFloat("SPREAD_AVG", 0.015),
			SpreadAvgInsta: getEnvAsFloat("SPREAD_AVG_INSTA", 0.03),

			InitialSellDelay: getEnvAsDuration("INITIAL_SELL_DELAY", 10*time.Minute),

			SpreadToSell: getEnvAsFloat("SPREAD_TO_SELL", 0.00000001),

			MinBalance:       getEnvAsFloat("MIN_BALANCE", 0.00001),
			MaxPositionPrice: getEnvAsFloat("MAX_POSITION_PRICE", 0.022),
			MaxPositions:     getEnvAsInt("MAX_POSITIONS", 10),
			SeedBalance:      getEnvAsFloat("SEED_BALANCE", 0.25),

			ReferencePair:     getEnv("REFERENCE_PAIR", "USDT-BTC"),
			MaxVolatility:     getEnvAsFloat("MAX_VOLATILITY", 0.0075),
			VolatilityTimeout: getEnvAsDuration("VOLATILITY_TIMEOUT", 45*time.Minute),

			ToxicBackoff:    getEnvAsFloat("TOXIC_ASSET_BACKOFF", 100000),
			MaxToxicBackoff: getEnvAsDuration("MAX_TOXIC_BACKOFF", 24*time.Hour),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Валидация критичных параметров безопасности
	if err := cfg.validateSecurity(); err != nil {
		return nil, err
	}

	// Валидация числовых диапазонов
	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateSecurity проверяет параметры безопасности
func (c *Config) validateSecurity() error {
	// Хеш админского токена обязателен: без него API доступно всем
	if c.Security.AdminTokenHash == "" {
		return fmt.Errorf("ADMIN_TOKEN_HASH is required to protect the admin API")
	}

	// Live-режим требует учётных данных биржи
	if c.Exchange.Live {
		if c.Exchange.APIKey == "" {
			return fmt.Errorf("EXCHANGE_API_KEY is required when EXCHANGE_LIVE=true")
		}
		if c.Exchange.APISecret == "" {
			return fmt.Errorf("EXCHANGE_API_SECRET is required when EXCHANGE_LIVE=true")
		}
	}

	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Exchange.MaxRetries < 0 {
		return fmt.Errorf("EXCHANGE_MAX_RETRIES cannot be negative, got %d", c.Exchange.MaxRetries)
	}

	if c.Exchange.RequestTimeout <= 0 {
		return fmt.Errorf("EXCHANGE_TIMEOUT must be positive, got %v", c.Exchange.RequestTimeout)
	}

	if c.Trading.TickInterval <= 0 {
		return fmt.Errorf("TICK_INTERVAL must be positive, got %v", c.Trading.TickInterval)
	}

	if c.Trading.Fee < 0 || c.Trading.Fee >= 1 {
		return fmt.Errorf("TRADING_FEE must be in [0, 1), got %v", c.Trading.Fee)
	}

	// Коридоры лимитов должны сужаться с возрастом позиции
	if c.Trading.FreshProfit <= 0 || c.Trading.FreshLoss <= 0 {
		return fmt.Errorf("fresh limits must be positive, got profit=%v loss=%v",
			c.Trading.FreshProfit, c.Trading.FreshLoss)
	}

	// В каждой корзине loss шире profit: stop-loss даёт позиции больше
	// хода вниз, чем take-profit вверх. Перепутанные местами доли
	// переворачивают коридор
	brackets := []struct {
		name         string
		loss, profit float64
	}{
		{"fresh", c.Trading.FreshLoss, c.Trading.FreshProfit},
		{"stale", c.Trading.StaleLoss, c.Trading.StaleProfit},
		{"old", c.Trading.OldLoss, c.Trading.OldProfit},
	}
	for _, b := range brackets {
		if b.loss <= b.profit {
			return fmt.Errorf("%s loss fraction (%v) must exceed %s profit fraction (%v)",
				b.name, b.loss, b.name, b.profit)
		}
	}

	if c.Trading.StaleMaxAge <= c.Trading.FreshMaxAge {
		return fmt.Errorf("STALE_MAX_AGE (%v) must exceed FRESH_MAX_AGE (%v)",
			c.Trading.StaleMaxAge, c.Trading.FreshMaxAge)
	}

	if c.Trading.MaxPositions < 1 {
		return fmt.Errorf("MAX_POSITIONS must be at least 1, got %d", c.Trading.MaxPositions)
	}

	if c.Trading.MaxPositionPrice <= 0 {
		return fmt.Errorf("MAX_POSITION_PRICE must be positive, got %v", c.Trading.MaxPositionPrice)
	}

	if c.Trading.MinBalance < 0 {
		return fmt.Errorf("MIN_BALANCE cannot be negative, got %v", c.Trading.MinBalance)
	}

	if c.Trading.MaxVolatility <= 0 {
		return fmt.Errorf("MAX_VOLATILITY must be positive, got %v", c.Trading.MaxVolatility)
	}

	if c.Trading.ToxicBackoff < 0 {
		return fmt.Errorf("TOXIC_ASSET_BACKOFF cannot be negative, got %v", c.Trading.ToxicBackoff)
	}

	if c.Trading.MaxToxicBackoff <= 0 {
		return fmt.Errorf("MAX_TOXIC_BACKOFF must be positive, got %v", c.Trading.MaxToxicBackoff)
	}

	return nil
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
