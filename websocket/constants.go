// websocket/constants.go
package websocket

import (
	"time"
)

// Константы для WebSocket-соединения
const (
	// Время ожидания записи сообщения клиенту
	writeWait = 10 * time.Second

	// Время ожидания сообщения от клиента
	pongWait = 60 * time.Second

	// Период отправки пинг-сообщений
	pingPeriod = (pongWait * 9) / 10

	// Максимальный размер сообщения от клиента
	maxMessageSize = 4 * 1024

	// Буфер исходящих сообщений одного клиента
	sendBuffer = 256

	// Буфер общей рассылки
	broadcastBuffer = 1024
)

// Типы сообщений ленты хода синхронизации
const (
	MessageEvent    = "event"
	MessageSnapshot = "snapshot"
	MessageSummary  = "summary"
	MessagePing     = "ping"
	MessagePong     = "pong"
)
