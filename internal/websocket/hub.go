package websocket

import (
	"sync"
	"sync/atomic"

	jsoniter "github.com/json-iterator/go"

	"coinsignals/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub управляет всеми активными WebSocket соединениями
//
// Центральный менеджер для broadcast сообщений всем подключенным
// клиентам: трейды, сводки портфеля, смена режима торговли.
//
// Использование:
//  1. Создать hub: hub := NewHub()
//  2. Запустить в горутине: go hub.Run()
//  3. Отправлять сообщения: hub.BroadcastTrade(msg)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Счётчик сообщений, отброшенных из-за медленных клиентов
	dropped int64

	mu sync.RWMutex

	log *utils.Logger
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        utils.GetGlobalLogger().WithComponent("websocket"),
	}
}

// Run запускает главный цикл Hub.
//
// Должен запускаться в отдельной горутине: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("клиент подключился", utils.Int("clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("клиент отключился", utils.Int("clients", total))

		case message := <-h.broadcast:
			// копируем список под коротким RLock,
			// отправка не блокирует регистрацию
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// клиент не успевает читать
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				atomic.AddInt64(&h.dropped, int64(len(toRemove)))
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				h.log.Warn("отключены медленные клиенты",
					utils.Int("removed", len(toRemove)), utils.Int("clients", total))
			}
		}
	}
}

// Broadcast сериализует сообщение и отправляет его всем клиентам
func (h *Hub) Broadcast(message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		h.log.Error("не удалось сериализовать сообщение", utils.Err(err))
		return
	}
	h.broadcast <- data
}

// BroadcastTrade отправляет сообщение о совершённом трейде
func (h *Hub) BroadcastTrade(message string) {
	h.Broadcast(NewTradeMessage(message))
}

// BroadcastPortfolio отправляет сводку портфеля
func (h *Hub) BroadcastPortfolio(data interface{}) {
	h.Broadcast(NewPortfolioMessage(data))
}

// BroadcastState отправляет смену режима торговли
func (h *Hub) BroadcastState(state string) {
	h.Broadcast(NewStateMessage(state))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages возвращает количество отброшенных сообщений
func (h *Hub) DroppedMessages() int64 {
	return atomic.LoadInt64(&h.dropped)
}
