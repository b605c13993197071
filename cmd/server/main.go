package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"coinsignals/internal/api"
	"coinsignals/internal/bot"
	"coinsignals/internal/config"
	"coinsignals/internal/exchange"
	"coinsignals/internal/models"
	"coinsignals/internal/repository"
	"coinsignals/internal/service"
	"coinsignals/internal/websocket"
	"coinsignals/pkg/retry"
	"coinsignals/pkg/utils"
)

func main() {
	seed := flag.Bool("seed", false, "создать начальный документ портфеля и выйти")
	flag.Parse()

	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := utils.InitGlobalLogger(utils.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	// Инициализация базы данных
	db, err := initDatabase(cfg)
	if err != nil {
		log.Fatal("не удалось подключиться к базе данных", utils.Err(err))
	}
	defer db.Close()

	if err := repository.InitSchema(db); err != nil {
		log.Fatal("не удалось инициализировать схему", utils.Err(err))
	}
	log.Info("база данных готова")

	// Инициализация репозиториев
	portfolioRepo := repository.NewPortfolioRepository(db)
	tradeRepo := repository.NewTradeRepository(db)

	if *seed {
		if err := seedPortfolio(portfolioRepo, cfg); err != nil {
			log.Fatal("не удалось создать портфель", utils.Err(err))
		}
		return
	}

	if exists, err := portfolioRepo.Exists(bot.PortfolioID); err != nil {
		log.Fatal("не удалось проверить портфель", utils.Err(err))
	} else if !exists {
		log.Warn("документ портфеля отсутствует, запустите с флагом --seed")
	}

	// Клиент биржи
	exch := exchange.NewBittrex(exchange.BittrexConfig{
		BaseURL:        cfg.Exchange.BaseURL,
		APIKey:         cfg.Exchange.APIKey,
		APISecret:      cfg.Exchange.APISecret,
		RequestTimeout: cfg.Exchange.RequestTimeout,
		MaxRetries:     cfg.Exchange.MaxRetries,
		PublicRate:     cfg.Exchange.PublicRate,
		AccountRate:    cfg.Exchange.AccountRate,
	}, log)

	// Торговый движок
	engine := bot.NewEngine(cfg, portfolioRepo, tradeRepo, exch, log)

	// WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Сервисы
	tradingService := service.NewTradingService(engine, log)
	tradingService.SetWebSocketHub(hub)
	portfolioService := service.NewPortfolioService(portfolioRepo, tradeRepo, bot.PortfolioID)

	// Планировщик торговых циклов
	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	go runScheduler(schedulerCtx, cfg, tradingService, portfolioService, hub, log)

	// Настройка зависимостей для API
	deps := &api.Dependencies{
		TradingService:   tradingService,
		PortfolioService: portfolioService,
		Hub:              hub,
		AdminTokenHash:   cfg.Security.AdminTokenHash,
	}

	router := api.SetupRoutes(deps)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("сервер запускается", utils.String("addr", server.Addr))
		var serveErr error
		if cfg.Server.UseHTTPS {
			serveErr = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			serveErr = server.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			log.Fatal("сервер упал", utils.Err(serveErr))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("останавливаемся...")
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("принудительная остановка сервера", utils.Err(err))
	}

	log.Info("сервер остановлен")
}

// runScheduler запускает торговый цикл по таймеру.
//
// Цикл, отклонённый из-за уже идущего обновления, пропускается:
// следующий таймерный тик играет роль повтора. После успешного
// цикла клиентам рассылается свежая сводка портфеля.
func runScheduler(ctx context.Context, cfg *config.Config, trading service.TradingServiceInterface, portfolio service.PortfolioServiceInterface, hub *websocket.Hub, log *utils.Logger) {
	log = log.WithComponent("scheduler")
	ticker := time.NewTicker(cfg.Trading.TickInterval)
	defer ticker.Stop()

	log.Info("планировщик запущен",
		utils.String("interval", cfg.Trading.TickInterval.String()))

	for {
		select {
		case <-ctx.Done():
			log.Info("планировщик остановлен")
			return
		case <-ticker.C:
			if _, err := trading.RunTick(ctx); err != nil {
				if errors.Is(err, bot.ErrUpdateInFlight) {
					log.Debug("цикл пропущен, предыдущий ещё идёт")
					continue
				}
				log.Error("торговый цикл завершился ошибкой", utils.Err(err))
				continue
			}

			summary, err := portfolio.Summary()
			if err != nil {
				log.Warn("не удалось собрать сводку портфеля", utils.Err(err))
				continue
			}
			hub.BroadcastPortfolio(summary)
		}
	}
}

// seedPortfolio создаёт начальный документ портфеля
func seedPortfolio(repo *repository.PortfolioRepository, cfg *config.Config) error {
	exists, err := repo.Exists(bot.PortfolioID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("портфель %q уже существует", bot.PortfolioID)
	}

	p := models.NewPortfolio(bot.PortfolioID, cfg.Trading.SeedBalance, cfg.Exchange.Live)
	if err := repo.Save(p); err != nil {
		return err
	}

	utils.Info("портфель создан",
		utils.String("id", bot.PortfolioID),
		utils.Balance(p.Balance),
		utils.Bool("live", p.Live))
	return nil
}

// initDatabase создает подключение к базе данных с повторами
func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// база может подниматься параллельно с ботом
	if err := retry.Do(ctx, func() error {
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		return db.PingContext(pingCtx)
	}, retry.NetworkConfig()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
