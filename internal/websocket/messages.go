package websocket

import (
	"time"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeTrade - совершённый трейд (покупка, продажа, refund, списание).
	// Отправляется сразу после исполнения.
	MessageTypeTrade MessageType = "trade"

	// MessageTypePortfolio - обновление сводки портфеля.
	// Отправляется после каждого торгового цикла.
	MessageTypePortfolio MessageType = "portfolioUpdate"

	// MessageTypeState - смена режима торговли (halt/resume/exit-only).
	MessageTypeState MessageType = "stateUpdate"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// TradeMessage - сообщение о совершённом трейде
type TradeMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// PortfolioMessage - сообщение со сводкой портфеля
type PortfolioMessage struct {
	BaseMessage
	Data interface{} `json:"data"`
}

// StateMessage - сообщение о смене режима торговли
type StateMessage struct {
	BaseMessage
	State string `json:"state"`
}

// NewTradeMessage создает сообщение о трейде
func NewTradeMessage(message string) *TradeMessage {
	return &TradeMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeTrade,
			Timestamp: time.Now(),
		},
		Message: message,
	}
}

// NewPortfolioMessage создает сообщение со сводкой портфеля
func NewPortfolioMessage(data interface{}) *PortfolioMessage {
	return &PortfolioMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypePortfolio,
			Timestamp: time.Now(),
		},
		Data: data,
	}
}

// NewStateMessage создает сообщение о смене режима
func NewStateMessage(state string) *StateMessage {
	return &StateMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeState,
			Timestamp: time.Now(),
		},
		State: state,
	}
}
