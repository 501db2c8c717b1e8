package internal

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second // 單次寫入期限
	maxMessageSize = 8 * 1024         // 單則訊息上限
)

// WebSocketHub 將 HTTP 連接升級為 WebSocket 並接上會話伺服器
type WebSocketHub struct {
	server   *Server
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHub 創建 WebSocket Hub
func NewWebSocketHub(server *Server, logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{
		server: server,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 匿名玩家，不限制來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// wsTransport gorilla 連接的 Transport 實作
type wsTransport struct {
	conn *websocket.Conn
}

// Ping 發送 ping 控制幀（WriteControl 可與其他寫入並行）
func (t wsTransport) Ping() error {
	return t.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (t wsTransport) Close() error {
	return t.conn.Close()
}

// ServeWS 處理 WebSocket 連接
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	client := hub.server.Connect(wsTransport{conn: conn})

	go hub.writePump(client, conn)
	go hub.readPump(client, conn)

	hub.logger.Debug("WebSocket 連接建立",
		"client_id", client.ID(),
		"remote_addr", r.RemoteAddr)
}

// readPump 依序讀取並分派客戶端訊息
func (hub *WebSocketHub) readPump(c *Client, conn *websocket.Conn) {
	defer func() {
		hub.server.Disconnect(c)
		conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		c.MarkAlive()
		return nil
	})

	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				hub.logger.Warn("WebSocket 讀取錯誤",
					"error", err,
					"client_id", c.ID())
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}
		hub.dispatch(c, message)
	}
}

// dispatch 單則訊息處理，panic 不影響連接
func (hub *WebSocketHub) dispatch(c *Client, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			hub.logger.Error("處理訊息時發生 panic",
				"client_id", c.ID(),
				"error", fmt.Sprint(r))
		}
	}()
	hub.server.Router.Dispatch(c, message)
}

// writePump 將發送佇列寫入連接，佇列關閉時送出關閉幀
func (hub *WebSocketHub) writePump(c *Client, conn *websocket.Conn) {
	defer conn.Close()

	for message := range c.Outbound() {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			hub.logger.Error("設置寫入期限失敗", "error", err)
		}
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			hub.logger.Debug("發送消息失敗", "client_id", c.ID(), "error", err)
			return
		}
	}

	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
}
