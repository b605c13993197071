package config

import (
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ADMIN_TOKEN_HASH", "$2a$12$fakehashfortestsonly000000000000000000000000000000000")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, ожидалось 8080", cfg.Server.Port)
	}
	if cfg.Trading.Fee != 0.0025 {
		t.Errorf("Trading.Fee = %v, ожидалось 0.0025", cfg.Trading.Fee)
	}
	// Ориентация корзин как в проде: допустимая просадка шире цели
	// прибыли. Для входа 0.05 это стоп 0.0465 и цель 0.052
	if cfg.Trading.FreshLoss != 0.07 || cfg.Trading.FreshProfit != 0.04 {
		t.Errorf("fresh-лимиты = loss %v / profit %v, ожидалось 0.07/0.04",
			cfg.Trading.FreshLoss, cfg.Trading.FreshProfit)
	}
	if cfg.Trading.StaleLoss != 0.06 || cfg.Trading.StaleProfit != 0.03 {
		t.Errorf("stale-лимиты = loss %v / profit %v, ожидалось 0.06/0.03",
			cfg.Trading.StaleLoss, cfg.Trading.StaleProfit)
	}
	if cfg.Trading.OldLoss != 0.05 || cfg.Trading.OldProfit != 0.02 {
		t.Errorf("old-лимиты = loss %v / profit %v, ожидалось 0.05/0.02",
			cfg.Trading.OldLoss, cfg.Trading.OldProfit)
	}
	if cfg.Trading.FreshMaxAge != 30*time.Minute {
		t.Errorf("FreshMaxAge = %v, ожидалось 30m", cfg.Trading.FreshMaxAge)
	}
	if cfg.Trading.MaxPositions != 10 {
		t.Errorf("MaxPositions = %d, ожидалось 10", cfg.Trading.MaxPositions)
	}
	if cfg.Trading.ReferencePair != "USDT-BTC" {
		t.Errorf("ReferencePair = %q, ожидалось USDT-BTC", cfg.Trading.ReferencePair)
	}
	if cfg.Exchange.Live {
		t.Error("Exchange.Live по умолчанию должен быть false (бумажный режим)")
	}
	if cfg.Trading.MaxToxicBackoff != 24*time.Hour {
		t.Errorf("MaxToxicBackoff = %v, ожидалось 24h", cfg.Trading.MaxToxicBackoff)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRADING_FEE", "0.001")
	t.Setenv("MAX_POSITIONS", "5")
	t.Setenv("TICK_INTERVAL", "30s")
	t.Setenv("ORDER_PARSING", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Trading.Fee != 0.001 {
		t.Errorf("Trading.Fee = %v, ожидалось 0.001", cfg.Trading.Fee)
	}
	if cfg.Trading.MaxPositions != 5 {
		t.Errorf("MaxPositions = %d, ожидалось 5", cfg.Trading.MaxPositions)
	}
	if cfg.Trading.TickInterval != 30*time.Second {
		t.Errorf("TickInterval = %v, ожидалось 30s", cfg.Trading.TickInterval)
	}
	if cfg.Trading.OrderParsing {
		t.Error("OrderParsing должен быть выключен")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantSub string
	}{
		{
			name:    "нет хеша админского токена",
			env:     map[string]string{"ADMIN_TOKEN_HASH": ""},
			wantSub: "ADMIN_TOKEN_HASH",
		},
		{
			name: "live без ключа API",
			env: map[string]string{
				"EXCHANGE_LIVE": "true",
			},
			wantSub: "EXCHANGE_API_KEY",
		},
		{
			name: "некорректный порт",
			env: map[string]string{
				"SERVER_PORT": "99999",
			},
			wantSub: "SERVER_PORT",
		},
		{
			name: "комиссия вне диапазона",
			env: map[string]string{
				"TRADING_FEE": "1.5",
			},
			wantSub: "TRADING_FEE",
		},
		{
			name: "stale моложе fresh",
			env: map[string]string{
				"FRESH_MAX_AGE": "2h",
				"STALE_MAX_AGE": "1h",
			},
			wantSub: "STALE_MAX_AGE",
		},
		{
			name: "нулевой лимит позиций",
			env: map[string]string{
				"MAX_POSITIONS": "0",
			},
			wantSub: "MAX_POSITIONS",
		},
		{
			name: "перевёрнутая fresh-корзина",
			env: map[string]string{
				"FRESH_PROFIT": "0.07",
				"FRESH_LOSS":   "0.04",
			},
			wantSub: "fresh loss fraction",
		},
		{
			name: "перевёрнутая old-корзина",
			env: map[string]string{
				"OLD_PROFIT": "0.05",
				"OLD_LOSS":   "0.02",
			},
			wantSub: "old loss fraction",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatal("Load() должен вернуть ошибку")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("ошибка %q не содержит %q", err.Error(), tt.wantSub)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.local",
		Port:     5432,
		Name:     "coinsignals",
		User:     "app",
		Password: "secret",
		SSLMode:  "disable",
	}

	dsn := d.DSN()
	if !strings.Contains(dsn, "password=secret") {
		t.Errorf("DSN не содержит пароль: %s", dsn)
	}

	safe := d.DSNWithoutPassword()
	if strings.Contains(safe, "secret") {
		t.Errorf("DSNWithoutPassword содержит пароль: %s", safe)
	}
	if !strings.Contains(safe, "dbname=coinsignals") {
		t.Errorf("DSNWithoutPassword не содержит имя БД: %s", safe)
	}
}
