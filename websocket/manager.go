// websocket/manager.go
package websocket

import (
	"context"
	"encoding/json"

	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/ETL/utils"
)

// NewManager создает новый экземпляр Manager. snapshots может быть nil
func NewManager(snapshots SnapshotSource, logger *utils.ETLLogger) *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Broadcast:  make(chan []byte, broadcastBuffer),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		snapshots:  snapshots,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Run обслуживает регистрацию клиентов и рассылку до отмены ctx
func (manager *Manager) Run(ctx context.Context) {
	defer close(manager.done)

	for {
		select {
		case <-ctx.Done():
			for id, client := range manager.clients {
				close(client.Send)
				delete(manager.clients, id)
			}
			manager.connected.Store(0)
			manager.logger.Info("Лента хода синхронизации остановлена")
			return

		case client := <-manager.Register:
			manager.clients[client.ID] = client
			manager.connected.Store(int64(len(manager.clients)))
			manager.logger.Debug("Подписчик %s подключен, всего %d", client.ID, len(manager.clients))

		case client := <-manager.Unregister:
			if _, ok := manager.clients[client.ID]; ok {
				delete(manager.clients, client.ID)
				close(client.Send)
				manager.connected.Store(int64(len(manager.clients)))
				manager.logger.Debug("Подписчик %s отключен", client.ID)
			}

		case message := <-manager.Broadcast:
			for id, client := range manager.clients {
				select {
				case client.Send <- message:
				default:
					// Медленный клиент отключается
					close(client.Send)
					delete(manager.clients, id)
					manager.logger.Warn("Подписчик %s не успевает читать ленту и отключен", id)
				}
			}
			manager.connected.Store(int64(len(manager.clients)))
		}
	}
}

// OnEvent публикует событие репортера. Не блокируется: при переполнении буфера событие отбрасывается
func (manager *Manager) OnEvent(e report.Event) {
	manager.publish(Message{Type: MessageEvent, Event: &e})
}

// PublishSummary публикует итог завершенного запуска
func (manager *Manager) PublishSummary(s report.Summary) {
	totals := s.Totals()
	manager.publish(Message{Type: MessageSummary, Summary: &s, Totals: &totals})
}

func (manager *Manager) publish(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		manager.logger.Error("Ошибка кодирования сообщения ленты: %v", err)
		return
	}
	select {
	case manager.Broadcast <- data:
	default:
		manager.dropped.Add(1)
	}
}

// snapshot кодирует сводку текущего запуска для нового подписчика
func (manager *Manager) snapshot() ([]byte, bool) {
	if manager.snapshots == nil {
		return nil, false
	}
	s, running, ok := manager.snapshots.Current()
	if !ok {
		return nil, false
	}
	totals := s.Totals()
	data, err := json.Marshal(Message{Type: MessageSnapshot, Running: running, Summary: &s, Totals: &totals})
	if err != nil {
		manager.logger.Error("Ошибка кодирования сводки: %v", err)
		return nil, false
	}
	return data, true
}

// register передает клиента в Run; false, если менеджер уже остановлен
func (manager *Manager) register(c *Client) bool {
	select {
	case manager.Register <- c:
		return true
	case <-manager.done:
		return false
	}
}

func (manager *Manager) unregister(c *Client) {
	select {
	case manager.Unregister <- c:
	case <-manager.done:
	}
}

// ClientCount возвращает число подключенных подписчиков
func (manager *Manager) ClientCount() int {
	return int(manager.connected.Load())
}

// Dropped возвращает число событий, отброшенных из-за переполнения буфера
func (manager *Manager) Dropped() int64 {
	return manager.dropped.Load()
}
