// websocket/read_pump.go
package websocket

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

// readPump обрабатывает чтение сообщений от клиента
func (c *Client) readPump(manager *Manager) {
	defer func() {
		// Канал Send мог быть закрыт менеджером во время ответа
		if r := recover(); r != nil {
			manager.logger.Warn("Паника при чтении сообщений клиента %s: %v", c.ID, r)
		}

		manager.unregister(c)
		c.Socket.Close()
		manager.logger.Debug("Завершение readPump для клиента %s", c.ID)
	}()

	// Устанавливаем параметры подключения
	c.Socket.SetReadLimit(maxMessageSize)
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				manager.logger.Warn("Ошибка чтения от клиента %s: %v", c.ID, err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			manager.logger.Debug("Ошибка декодирования сообщения клиента %s: %v", c.ID, err)
			continue
		}

		switch msg.Type {
		case MessagePing:
			if data, err := json.Marshal(Message{Type: MessagePong}); err == nil {
				c.reply(data)
			}
		case MessageSnapshot:
			if data, ok := manager.snapshot(); ok {
				c.reply(data)
			}
		}
	}
}

// reply ставит ответ в очередь клиента, не блокируясь
func (c *Client) reply(data []byte) {
	select {
	case c.Send <- data:
	default:
	}
}
