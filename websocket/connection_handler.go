// websocket/connection_handler.go
package websocket

import (
	"net/http"

	"github.com/google/uuid"
)

// HandleProgress подключает клиента к ленте хода синхронизации
func (manager *Manager) HandleProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		manager.logger.Warn("Ошибка при установке WebSocket-соединения: %v", err)
		return
	}

	client := &Client{
		ID:     uuid.NewString(),
		Socket: conn,
		Send:   make(chan []byte, sendBuffer),
	}

	// Новый подписчик сначала получает сводку текущего запуска
	if data, ok := manager.snapshot(); ok {
		client.Send <- data
	}

	if !manager.register(client) {
		conn.Close()
		return
	}
	manager.logger.Info("Подписчик %s подключился к ленте с адреса %s", client.ID, r.RemoteAddr)

	go client.writePump(manager)
	go client.readPump(manager)
}
