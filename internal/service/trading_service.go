package service

import (
	"context"
	"strconv"

	"coinsignals/internal/bot"
	"coinsignals/internal/models"
	"coinsignals/pkg/utils"
)

// TradeBroadcaster - интерфейс для отправки торговых событий через WebSocket
type TradeBroadcaster interface {
	BroadcastTrade(message string)
}

// TradingService предоставляет бизнес-логику торговых операций.
//
// Отвечает за:
// - Приём текстовых сигналов, их разбор и передачу движку
// - Ручные операции оператора (покупка, продажа, списание)
// - Управление режимом торговли (halt/resume/exit-only)
// - Запуск торгового цикла по расписанию
//
// WebSocket интеграция:
// - Каждый совершённый трейд транслируется подключенным клиентам
type TradingService struct {
	engine EngineInterface
	log    *utils.Logger
	wsHub  TradeBroadcaster
}

// NewTradingService создает новый экземпляр TradingService
func NewTradingService(engine EngineInterface, log *utils.Logger) *TradingService {
	return &TradingService{
		engine: engine,
		log:    log.WithComponent("trading_service"),
	}
}

// SetWebSocketHub устанавливает WebSocket hub для broadcast трейдов.
//
// Вызывается после инициализации Hub в main.go.
func (s *TradingService) SetWebSocketHub(hub TradeBroadcaster) {
	s.wsHub = hub
}

// ProcessSignal разбирает текстовый сигнал и передаёт его движку.
//
// Формат сигнала: ^ACTION*PAIR*QTY*PRICE*TAG^, где "A" означает
// рыночное значение. Текст вокруг сигнала игнорируется.
//
// Возвращает сообщение совершённого трейда либо ошибку разбора/политики.
func (s *TradingService) ProcessSignal(ctx context.Context, text string) (string, error) {
	sig, err := bot.ParseSignal(text)
	if err != nil {
		s.log.Warn("сигнал отклонён", utils.Err(err))
		return "", err
	}

	msg, err := s.engine.SubmitSignal(ctx, sig)
	if err != nil {
		return "", err
	}

	s.broadcast(msg)
	return msg, nil
}

// RunTick запускает один торговый цикл.
//
// Вызывается планировщиком и вручную через API. Совершённые в цикле
// трейды транслируются через WebSocket. Отклонение по занятости
// (bot.ErrUpdateInFlight) отдаётся вызывающему без трансляции.
func (s *TradingService) RunTick(ctx context.Context) ([]string, error) {
	messages, err := s.engine.Tick(ctx)
	if err != nil {
		return nil, err
	}

	for _, msg := range messages {
		s.broadcast(msg)
	}
	return messages, nil
}

// Buy открывает позицию по явным цене и количеству (команда оператора)
func (s *TradingService) Buy(ctx context.Context, pair string, price, qty float64) (string, error) {
	msg, err := s.engine.ManualBuy(ctx, pair, price, qty)
	if err != nil {
		return "", err
	}
	s.broadcast(msg)
	return msg, nil
}

// Sell принудительно закрывает позицию (команда оператора).
// Рыночная цена берётся при price.Market.
func (s *TradingService) Sell(ctx context.Context, pair string, price models.OrderValue) (string, error) {
	msg, err := s.engine.ManualSell(ctx, pair, price)
	if err != nil {
		return "", err
	}
	s.broadcast(msg)
	return msg, nil
}

// Writeoff списывает позицию без продажи, возвращая её стоимость в баланс
func (s *TradingService) Writeoff(ctx context.Context, pair string) (string, error) {
	msg, err := s.engine.Writeoff(ctx, pair)
	if err != nil {
		return "", err
	}
	s.broadcast(msg)
	return msg, nil
}

// Halt останавливает торговлю вручную (остаётся только мониторинг)
func (s *TradingService) Halt(ctx context.Context) error {
	return s.engine.Halt(ctx)
}

// Resume возобновляет торговлю после ручной остановки
func (s *TradingService) Resume(ctx context.Context) error {
	return s.engine.Resume(ctx)
}

// ToggleExitOnly переключает режим "только выход" и возвращает новое значение
func (s *TradingService) ToggleExitOnly() bool {
	exitOnly := s.engine.ToggleExitOnly()
	s.log.Info("режим exit-only переключён",
		utils.String("exit_only", strconv.FormatBool(exitOnly)))
	return exitOnly
}

// ExitOnly возвращает текущее состояние режима "только выход"
func (s *TradingService) ExitOnly() bool {
	return s.engine.ExitOnly()
}

func (s *TradingService) broadcast(msg string) {
	if s.wsHub != nil && msg != "" {
		s.wsHub.BroadcastTrade(msg)
	}
}
