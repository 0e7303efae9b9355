// websocket/types.go
package websocket

import (
	"net/http"
	"sync/atomic"

	"github.com/LilVoxy/budget_graph/ETL/report"
	"github.com/LilVoxy/budget_graph/ETL/utils"
	"github.com/gorilla/websocket"
)

// SnapshotSource отдает сводку текущего запуска новым подписчикам
type SnapshotSource interface {
	Current() (s report.Summary, running bool, ok bool)
}

// Message сообщение ленты хода синхронизации
type Message struct {
	Type    string          `json:"type"`
	Running bool            `json:"running,omitempty"`
	Event   *report.Event   `json:"event,omitempty"`
	Summary *report.Summary `json:"summary,omitempty"`
	Totals  *report.Totals  `json:"totals,omitempty"`
}

// Client подписчик ленты
type Client struct {
	ID     string
	Socket *websocket.Conn
	Send   chan []byte
}

// Manager рассылает события синхронизации подключенным клиентам.
// Карта clients принадлежит горутине Run
type Manager struct {
	clients    map[string]*Client
	Broadcast  chan []byte
	Register   chan *Client
	Unregister chan *Client

	snapshots SnapshotSource
	logger    *utils.ETLLogger
	done      chan struct{}
	connected atomic.Int64
	dropped   atomic.Int64
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
